package models

import (
	"fmt"
	"strings"
)

// SetupType selects the creative/line item shape produced for a run.
type SetupType string

const (
	SetupWeb          SetupType = "WEB"
	SetupWebSafeFrame SetupType = "WEB_SAFEFRAME"
	SetupAMP          SetupType = "AMP"
	SetupInApp        SetupType = "IN_APP"
	SetupInAppVideo   SetupType = "IN_APP_VIDEO"
	SetupInAppNative  SetupType = "IN_APP_NATIVE"
	SetupNative       SetupType = "NATIVE"
	SetupVideo        SetupType = "VIDEO"
	SetupJWPlayer     SetupType = "JWPLAYER"
	SetupAdPod        SetupType = "ADPOD"
)

// SetupTypes lists every supported setup type.
var SetupTypes = []SetupType{
	SetupWeb, SetupWebSafeFrame, SetupAMP, SetupInApp, SetupInAppVideo,
	SetupInAppNative, SetupNative, SetupVideo, SetupJWPlayer, SetupAdPod,
}

// SetupFamily groups setup types that share placeholder, creative and video
// behaviour. It is the single dispatch point used by the builders.
type SetupFamily int

const (
	FamilyDisplay SetupFamily = iota
	FamilyNative
	FamilyVideo
	FamilyAdPod
)

func (f SetupFamily) String() string {
	switch f {
	case FamilyNative:
		return "native"
	case FamilyVideo:
		return "video"
	case FamilyAdPod:
		return "adpod"
	default:
		return "display"
	}
}

// UnsupportedSetupTypeError is returned for setup types outside SetupTypes.
type UnsupportedSetupTypeError struct {
	SetupType string
}

func (e *UnsupportedSetupTypeError) Error() string {
	return fmt.Sprintf("unsupported setup type %q", e.SetupType)
}

// ParseSetupType normalises s and validates it. An empty string means WEB.
func ParseSetupType(s string) (SetupType, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return SetupWeb, nil
	}
	for _, st := range SetupTypes {
		if string(st) == s {
			return st, nil
		}
	}
	return "", &UnsupportedSetupTypeError{SetupType: s}
}

// Family returns the behaviour group for the setup type.
func (s SetupType) Family() SetupFamily {
	switch s {
	case SetupNative, SetupInAppNative:
		return FamilyNative
	case SetupVideo, SetupJWPlayer, SetupInAppVideo:
		return FamilyVideo
	case SetupAdPod:
		return FamilyAdPod
	default:
		return FamilyDisplay
	}
}

// IsVideo reports whether line items need video player environment settings.
func (s SetupType) IsVideo() bool {
	f := s.Family()
	return f == FamilyVideo || f == FamilyAdPod
}

// Platform returns the canonical pwtplt value the wrapper emits for this
// setup type.
func (s SetupType) Platform() string {
	switch s {
	case SetupWeb, SetupWebSafeFrame:
		return "DISPLAY"
	case SetupInApp, SetupInAppVideo:
		return "IN_APP"
	case SetupAMP:
		return "AMP"
	case SetupNative, SetupInAppNative:
		return "NATIVE"
	case SetupVideo, SetupJWPlayer, SetupAdPod:
		return "VIDEO"
	default:
		return string(s)
	}
}
