// Package creative builds the creative payloads and line item creative
// associations for a setup run.
package creative

import (
	"errors"
	"fmt"

	"github.com/patrickwarner/openwrap-setup/internal/gam"
	"github.com/patrickwarner/openwrap-setup/internal/macros"
	"github.com/patrickwarner/openwrap-setup/internal/models"
)

// VAST redirect targets and durations (ms) per video setup type.
const (
	VideoVastURL     = "https://ow.pubmatic.com/cache?uuid=%%PATTERN:pwtcid%%"
	VideoDuration    = 1000
	SDKVastURL       = "https://trinity.pubmatic.com/openwrapsdk/assets/gam/signallingvast?ad_id=%%PATTERN:pwtsid_pubmatic%%"
	SDKDuration      = 15000
	JWPlayerVastURL  = "https://vpb-cache.jwplayer.com/cache?uuid=%%PATTERN:vpb_pubmatic_key%%"
	JWPlayerDuration = 60000

	DefaultAdPodCacheURL = "https://ow.pubmatic.com"

	NativeDestinationURL = "https://pubmatic.com/"
	NativeTitleVariable  = "Title"

	vastRedirectLinear = "LINEAR"
)

var (
	// ErrNoSizes is returned when an ADPOD run has no creative size.
	ErrNoSizes = errors.New("creative: at least one size is required")
	// ErrNoTemplates is returned for native runs without template ids.
	ErrNoTemplates = errors.New("creative: native setup requires creative template ids")
	// ErrNoDurations is returned for ADPOD runs without durations.
	ErrNoDurations = errors.New("creative: adpod setup requires durations")
)

// Params describes the creatives for one run.
type Params struct {
	SetupType    models.SetupType
	AdvertiserID int64
	Order        string
	Bidder       string
	Prefix       string
	Sizes        []models.Size
	NumCreatives int
	// Use1x1 creates 1x1 creatives regardless of Sizes; LICAs still carry
	// Sizes as overrides.
	Use1x1 bool

	TemplateIDs    []int64
	UserDefinedVar string
	Durations      []int
	Slot           string
	CacheURL       string
	UniqueID       string
}

// Builder turns Params into creative payloads.
type Builder struct {
	names *macros.Service
}

// NewBuilder returns a Builder naming creatives through names.
func NewBuilder(names *macros.Service) *Builder {
	return &Builder{names: names}
}

// Build dispatches on the setup type family.
func (b *Builder) Build(p Params) ([]gam.Creative, error) {
	if p.NumCreatives < 1 {
		p.NumCreatives = 1
	}
	switch p.SetupType.Family() {
	case models.FamilyNative:
		return b.Native(p)
	case models.FamilyVideo:
		return b.Video(p)
	case models.FamilyAdPod:
		return b.AdPod(p)
	default:
		return b.Display(p)
	}
}

// Display builds NumCreatives third-party snippet creatives per size, or
// per run when Use1x1 is set.
func (b *Builder) Display(p Params) ([]gam.Creative, error) {
	snippet, err := Snippet(p.SetupType)
	if err != nil {
		return nil, err
	}
	safeFrame := p.SetupType == models.SetupWebSafeFrame

	sizes := p.Sizes
	sized := true
	if p.Use1x1 || len(sizes) == 0 {
		sizes = []models.Size{models.OneByOne}
		sized = false
	}

	var out []gam.Creative
	for _, sz := range sizes {
		for n := 1; n <= max(p.NumCreatives, 1); n++ {
			name, err := b.names.DisplayName(&macros.ExpansionContext{
				Order:  p.Order,
				Bidder: p.Bidder,
				Prefix: p.Prefix,
				Width:  sz.Width,
				Height: sz.Height,
				Num:    n,
			}, sized)
			if err != nil {
				return nil, fmt.Errorf("display creative name: %w", err)
			}
			out = append(out, gam.Creative{
				XSIType:               gam.TypeThirdPartyCreative,
				AdvertiserID:          p.AdvertiserID,
				Name:                  name,
				Size:                  gam.Size{Width: sz.Width, Height: sz.Height},
				Snippet:               snippet,
				IsSafeFrameCompatible: safeFrame,
			})
		}
	}
	return out, nil
}

// Native builds NumCreatives template creatives per template id.
func (b *Builder) Native(p Params) ([]gam.Creative, error) {
	if len(p.TemplateIDs) == 0 {
		return nil, ErrNoTemplates
	}
	var values []gam.TemplateVariableValue
	if p.UserDefinedVar != "" {
		values = []gam.TemplateVariableValue{{
			XSIType:    gam.TypeStringTemplateValue,
			UniqueName: NativeTitleVariable,
			Value:      p.UserDefinedVar,
		}}
	}

	var out []gam.Creative
	for _, tid := range p.TemplateIDs {
		name, err := b.names.NativeName(&macros.ExpansionContext{Prefix: p.Prefix, Template: tid})
		if err != nil {
			return nil, fmt.Errorf("native creative name: %w", err)
		}
		for n := 1; n <= max(p.NumCreatives, 1); n++ {
			out = append(out, gam.Creative{
				XSIType:                gam.TypeTemplateCreative,
				AdvertiserID:           p.AdvertiserID,
				Name:                   name,
				Size:                   gam.Size{Width: 1, Height: 1, IsAspectRatio: false},
				CreativeTemplateID:     tid,
				DestinationURL:         NativeDestinationURL,
				CreativeTemplateValues: values,
				IsSafeFrameCompatible:  true,
				IsNativeEligible:       true,
			})
		}
	}
	return out, nil
}

// VastTarget returns the redirect URL and duration for a video setup type.
func VastTarget(st models.SetupType) (string, int64, error) {
	switch st {
	case models.SetupVideo:
		return VideoVastURL, VideoDuration, nil
	case models.SetupInAppVideo:
		return SDKVastURL, SDKDuration, nil
	case models.SetupJWPlayer:
		return JWPlayerVastURL, JWPlayerDuration, nil
	}
	return "", 0, &models.UnsupportedSetupTypeError{SetupType: string(st)}
}

// Video builds one VAST redirect creative per size.
func (b *Builder) Video(p Params) ([]gam.Creative, error) {
	url, dur, err := VastTarget(p.SetupType)
	if err != nil {
		return nil, err
	}
	sizes := p.Sizes
	if len(sizes) == 0 {
		sizes = []models.Size{models.OneByOne}
	}

	out := make([]gam.Creative, 0, len(sizes))
	for _, sz := range sizes {
		name, err := b.names.VideoName(&macros.ExpansionContext{Prefix: p.Prefix, Width: sz.Width, Height: sz.Height})
		if err != nil {
			return nil, fmt.Errorf("video creative name: %w", err)
		}
		out = append(out, gam.Creative{
			XSIType:          gam.TypeVastRedirectCreative,
			AdvertiserID:     p.AdvertiserID,
			Name:             name,
			Size:             gam.Size{Width: sz.Width, Height: sz.Height},
			VastXMLURL:       url,
			Duration:         dur,
			VastRedirectType: vastRedirectLinear,
		})
	}
	return out, nil
}

// AdPod builds one VAST redirect creative per duration, in duration order,
// all using the first size.
func (b *Builder) AdPod(p Params) ([]gam.Creative, error) {
	if len(p.Sizes) == 0 {
		return nil, ErrNoSizes
	}
	if len(p.Durations) == 0 {
		return nil, ErrNoDurations
	}
	cache := p.CacheURL
	if cache == "" {
		cache = DefaultAdPodCacheURL
	}
	sz := p.Sizes[0]

	out := make([]gam.Creative, 0, len(p.Durations))
	for _, d := range p.Durations {
		ctx := &macros.ExpansionContext{
			Slot:     p.Slot,
			CacheURL: cache,
			UniqueID: p.UniqueID,
			Width:    sz.Width,
			Height:   sz.Height,
			Duration: d,
		}
		name, err := b.names.AdPodName(ctx)
		if err != nil {
			return nil, fmt.Errorf("adpod creative name: %w", err)
		}
		url, err := b.names.AdPodVastURL(ctx)
		if err != nil {
			return nil, fmt.Errorf("adpod vast url: %w", err)
		}
		out = append(out, gam.Creative{
			XSIType:          gam.TypeVastRedirectCreative,
			AdvertiserID:     p.AdvertiserID,
			Name:             name,
			Size:             gam.Size{Width: sz.Width, Height: sz.Height},
			VastXMLURL:       url,
			Duration:         int64(d) * 1000,
			VastRedirectType: vastRedirectLinear,
		})
	}
	return out, nil
}
