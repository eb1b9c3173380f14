package models

import (
	"fmt"
	"strings"
)

// LineItemType mirrors the ad server's LineItemType enum.
type LineItemType string

const (
	LineItemSponsorship   LineItemType = "SPONSORSHIP"
	LineItemStandard      LineItemType = "STANDARD"
	LineItemNetwork       LineItemType = "NETWORK"
	LineItemBulk          LineItemType = "BULK"
	LineItemPricePriority LineItemType = "PRICE_PRIORITY"
	LineItemHouse         LineItemType = "HOUSE"
)

// ParseLineItemType validates s against the known line item types. An empty
// string means PRICE_PRIORITY.
func ParseLineItemType(s string) (LineItemType, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	switch LineItemType(s) {
	case "":
		return LineItemPricePriority, nil
	case LineItemSponsorship, LineItemStandard, LineItemNetwork, LineItemBulk, LineItemPricePriority, LineItemHouse:
		return LineItemType(s), nil
	}
	return "", fmt.Errorf("unknown line item type %q", s)
}

// VideoPosition is a video ad break position.
type VideoPosition string

const (
	VideoPositionNone     VideoPosition = ""
	VideoPositionPreroll  VideoPosition = "PREROLL"
	VideoPositionMidroll  VideoPosition = "MIDROLL"
	VideoPositionPostroll VideoPosition = "POSTROLL"
)

// ParseVideoPosition accepts PREROLL, MIDROLL, POSTROLL or an empty string.
func ParseVideoPosition(s string) (VideoPosition, error) {
	switch p := VideoPosition(strings.ToUpper(strings.TrimSpace(s))); p {
	case VideoPositionNone, VideoPositionPreroll, VideoPositionMidroll, VideoPositionPostroll:
		return p, nil
	}
	return "", fmt.Errorf("unknown video position %q", s)
}

// Size is a creative or placeholder size in pixels.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// OneByOne is the fixed size used for native and 1x1 creatives.
var OneByOne = Size{Width: 1, Height: 1}

// ParseSizes parses a comma separated list such as "300x250, 728x90".
func ParseSizes(s string) ([]Size, error) {
	var sizes []Size
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		var sz Size
		if _, err := fmt.Sscanf(strings.ToLower(part), "%dx%d", &sz.Width, &sz.Height); err != nil {
			return nil, fmt.Errorf("parse size %q: %w", part, err)
		}
		if sz.Width <= 0 || sz.Height <= 0 {
			return nil, fmt.Errorf("parse size %q: dimensions must be positive", part)
		}
		sizes = append(sizes, sz)
	}
	return sizes, nil
}
