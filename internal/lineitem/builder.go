// Package lineitem turns a price bucket's targeting into a line item
// configuration. Each setup family has its own variant type; the wire form is
// produced only by ToWire.
package lineitem

import (
	"errors"
	"fmt"

	"github.com/patrickwarner/openwrap-setup/internal/gam"
	"github.com/patrickwarner/openwrap-setup/internal/models"
)

var (
	// ErrMissingDurationTargeting is returned when an ADPOD duration has no
	// creative targeting tree.
	ErrMissingDurationTargeting = errors.New("missing creative targeting for duration")
	// ErrInvalidParams is wrapped by every parameter validation failure.
	ErrInvalidParams = errors.New("invalid line item parameters")
)

// Roadblocking types.
const (
	RoadblockOneOrMore        = "ONE_OR_MORE"
	RoadblockOnlyOne          = "ONLY_ONE"
	RoadblockAsManyAsPossible = "AS_MANY_AS_POSSIBLE"
	RoadblockAllRoadblock     = "ALL_ROADBLOCK"
)

// Params is everything Build needs for one line item.
type Params struct {
	Name         string
	OrderID      int64
	PlacementIDs []int64
	AdUnitIDs    []string
	CPMMicros    int64
	Sizes        []models.Size
	LineItemType models.LineItemType
	CurrencyCode string
	SetupType    models.SetupType
	Targeting    models.TargetingTree

	CreativeTemplateIDs []int64

	Durations         []int
	Slot              string
	DurationTargeting map[int]models.TargetingTree
	VideoPosition     models.VideoPosition

	DeviceCategories        []int64
	DeviceCapabilities      []int64
	RoadblockType           string
	SameAdvertiserException bool
}

// Config is one of DisplayLineItem, NativeLineItem, VideoLineItem or
// AdPodLineItem.
type Config interface {
	Common() *Base
	ToWire() gam.LineItem
	isConfig()
}

// Base holds the fields every variant shares. Targeting is nil when the
// line item carries no custom targeting.
type Base struct {
	Name                    string
	OrderID                 int64
	PlacementIDs            []int64
	AdUnitIDs               []string
	CPMMicros               int64
	CurrencyCode            string
	LineItemType            models.LineItemType
	Targeting               *models.TargetingTree
	DeviceCategories        []int64
	DeviceCapabilities      []int64
	RoadblockType           string
	SameAdvertiserException bool
}

func (b *Base) Common() *Base { return b }
func (b *Base) isConfig()     {}

// DisplayLineItem covers WEB, WEB_SAFEFRAME, AMP and IN_APP.
type DisplayLineItem struct {
	Base
	Sizes []models.Size
}

// NativeLineItem covers NATIVE and IN_APP_NATIVE.
type NativeLineItem struct {
	Base
	TemplateIDs []int64
}

// VideoLineItem covers VIDEO, JWPLAYER and IN_APP_VIDEO.
type VideoLineItem struct {
	Base
	SetupType models.SetupType
	Sizes     []models.Size
	Position  models.VideoPosition
}

// AdPodLineItem is a single ADPOD slot with one placeholder per duration.
type AdPodLineItem struct {
	Base
	Size              models.Size
	Slot              string
	Durations         []int
	Position          models.VideoPosition
	DurationTargeting map[int]models.TargetingTree
}

// Build validates p and returns the variant for its setup type.
func Build(p Params) (Config, error) {
	if p.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidParams)
	}
	if p.CurrencyCode == "" {
		p.CurrencyCode = "USD"
	}
	if p.LineItemType == "" {
		p.LineItemType = models.LineItemPricePriority
	}
	if p.RoadblockType == "" {
		p.RoadblockType = RoadblockOneOrMore
	}

	base := Base{
		Name:                    p.Name,
		OrderID:                 p.OrderID,
		PlacementIDs:            p.PlacementIDs,
		AdUnitIDs:               p.AdUnitIDs,
		CPMMicros:               p.CPMMicros,
		CurrencyCode:            p.CurrencyCode,
		LineItemType:            p.LineItemType,
		DeviceCategories:        p.DeviceCategories,
		DeviceCapabilities:      p.DeviceCapabilities,
		RoadblockType:           p.RoadblockType,
		SameAdvertiserException: p.SameAdvertiserException,
	}
	if !p.Targeting.IsEmpty() && !IsSentinel(p.Targeting) {
		t := p.Targeting
		base.Targeting = &t
	}

	switch p.SetupType.Family() {
	case models.FamilyNative:
		if len(p.CreativeTemplateIDs) == 0 {
			return nil, fmt.Errorf("%w: native line items need creative template ids", ErrInvalidParams)
		}
		return &NativeLineItem{Base: base, TemplateIDs: p.CreativeTemplateIDs}, nil

	case models.FamilyAdPod:
		if len(p.Sizes) == 0 {
			return nil, fmt.Errorf("%w: adpod line items need a size", ErrInvalidParams)
		}
		if p.Slot == "" || len(p.Durations) == 0 {
			return nil, fmt.Errorf("%w: adpod line items need a slot and durations", ErrInvalidParams)
		}
		for _, d := range p.Durations {
			if _, ok := p.DurationTargeting[d]; !ok {
				return nil, fmt.Errorf("%w: %s %ds", ErrMissingDurationTargeting, p.Slot, d)
			}
		}
		return &AdPodLineItem{
			Base:              base,
			Size:              p.Sizes[0],
			Slot:              p.Slot,
			Durations:         p.Durations,
			Position:          p.VideoPosition,
			DurationTargeting: p.DurationTargeting,
		}, nil

	case models.FamilyVideo:
		if len(p.Sizes) == 0 {
			return nil, fmt.Errorf("%w: video line items need sizes", ErrInvalidParams)
		}
		return &VideoLineItem{Base: base, SetupType: p.SetupType, Sizes: p.Sizes, Position: p.VideoPosition}, nil

	default:
		if _, err := models.ParseSetupType(string(p.SetupType)); err != nil {
			return nil, err
		}
		if len(p.Sizes) == 0 {
			return nil, fmt.Errorf("%w: display line items need sizes", ErrInvalidParams)
		}
		return &DisplayLineItem{Base: base, Sizes: p.Sizes}, nil
	}
}

// AdPodTargetingName is the placeholder and association name of one ADPOD
// duration.
func AdPodTargetingName(slot string, duration int) string {
	return fmt.Sprintf("%s_%dsecond_ad", slot, duration)
}

// IsSentinel reports whether t is nothing but a stubbed lookup: a single
// criterion on the placeholder key 123456 or with the lone value id 1. Such
// trees are never submitted. A tree that also holds real criteria is kept.
// Provisional: the ids are not a documented contract of the ad server.
func IsSentinel(t models.TargetingTree) bool {
	if len(t.Children) != 1 {
		return false
	}
	c := t.Children[0]
	return c.KeyID == 123456 || (len(c.ValueIDs) == 1 && c.ValueIDs[0] == 1)
}

func (d *DisplayLineItem) ToWire() gam.LineItem {
	li := d.wire()
	for _, s := range d.Sizes {
		li.CreativePlaceholders = append(li.CreativePlaceholders, gam.CreativePlaceholder{Size: wireSize(s)})
	}
	return li
}

func (n *NativeLineItem) ToWire() gam.LineItem {
	li := n.wire()
	for _, id := range n.TemplateIDs {
		li.CreativePlaceholders = append(li.CreativePlaceholders, gam.CreativePlaceholder{
			Size:               wireSize(models.OneByOne),
			CreativeTemplateID: id,
			CreativeSizeType:   "NATIVE",
		})
	}
	return li
}

func (v *VideoLineItem) ToWire() gam.LineItem {
	li := v.wire()
	for _, s := range v.Sizes {
		li.CreativePlaceholders = append(li.CreativePlaceholders, gam.CreativePlaceholder{Size: wireSize(s)})
	}
	applyVideo(&li, v.SetupType)
	if v.SetupType == models.SetupVideo {
		applyPosition(&li, v.Position)
	}
	return li
}

func (a *AdPodLineItem) ToWire() gam.LineItem {
	li := a.wire()
	for _, d := range a.Durations {
		name := AdPodTargetingName(a.Slot, d)
		li.CreativePlaceholders = append(li.CreativePlaceholders, gam.CreativePlaceholder{
			Size:          wireSize(a.Size),
			TargetingName: name,
		})
		li.CreativeTargetings = append(li.CreativeTargetings, gam.CreativeTargeting{
			Name:      name,
			Targeting: gam.Targeting{CustomTargeting: WireCriteria(a.DurationTargeting[d])},
		})
	}
	applyVideo(&li, models.SetupAdPod)
	applyPosition(&li, a.Position)
	return li
}

// wire fills the fields every variant shares.
func (b *Base) wire() gam.LineItem {
	price := gam.Money{CurrencyCode: b.CurrencyCode, MicroAmount: b.CPMMicros}
	li := gam.LineItem{
		OrderID:              b.OrderID,
		Name:                 b.Name,
		StartDateTimeType:    "IMMEDIATELY",
		UnlimitedEndDateTime: true,
		CreativeRotationType: "EVEN",
		RoadblockingType:     b.RoadblockType,
		LineItemType:         string(b.LineItemType),
		CostPerUnit:          price,
		ValueCostPerUnit:     price,
		CostType:             "CPM",
		DisableSameAdvertiserCompetitiveExclusion: b.SameAdvertiserException,
		PrimaryGoal: gam.Goal{GoalType: "NONE"},
	}
	applyGoal(&li, b.LineItemType)

	inv := &gam.InventoryTargeting{TargetedPlacementIDs: b.PlacementIDs}
	for _, id := range b.AdUnitIDs {
		inv.TargetedAdUnits = append(inv.TargetedAdUnits, gam.AdUnitTargeting{AdUnitID: id, IncludeDescendants: true})
	}
	li.Targeting.InventoryTargeting = inv

	if b.Targeting != nil {
		li.Targeting.CustomTargeting = WireCriteria(*b.Targeting)
	}
	if len(b.DeviceCategories) > 0 || len(b.DeviceCapabilities) > 0 {
		tech := &gam.TechnologyTargeting{}
		if len(b.DeviceCategories) > 0 {
			tech.DeviceCategory = &gam.DeviceCategoryTargeting{}
			for _, id := range b.DeviceCategories {
				tech.DeviceCategory.Targeted = append(tech.DeviceCategory.Targeted, gam.Technology{ID: id})
			}
		}
		if len(b.DeviceCapabilities) > 0 {
			tech.DeviceCapability = &gam.DeviceCapabilityTargeting{}
			for _, id := range b.DeviceCapabilities {
				tech.DeviceCapability.Targeted = append(tech.DeviceCapability.Targeted, gam.Technology{ID: id})
			}
		}
		li.Targeting.TechnologyTargeting = tech
	}
	return li
}

// applyGoal sets the delivery goal for the line item type. Types not listed
// keep goal NONE.
func applyGoal(li *gam.LineItem, t models.LineItemType) {
	switch t {
	case models.LineItemNetwork, models.LineItemHouse:
		li.PrimaryGoal = gam.Goal{GoalType: "DAILY", Units: 100}
	case models.LineItemSponsorship:
		li.PrimaryGoal = gam.Goal{GoalType: "DAILY", UnitType: "IMPRESSIONS", Units: 100}
		li.SkipInventoryCheck = true
		li.AllowOverbook = true
	}
}

// Video max durations in milliseconds.
const (
	InAppVideoMaxDuration = 15000
	VideoMaxDuration      = 60000
)

func applyVideo(li *gam.LineItem, st models.SetupType) {
	li.EnvironmentType = "VIDEO_PLAYER"
	li.VideoMaxDuration = VideoMaxDuration
	platforms := []string{"VIDEO_PLAYER"}
	if st == models.SetupInAppVideo {
		li.VideoMaxDuration = InAppVideoMaxDuration
		platforms = []string{"MOBILE_APP", "VIDEO_PLAYER"}
	}
	li.Targeting.RequestPlatformTargeting = &gam.RequestPlatformTargeting{TargetedRequestPlatforms: platforms}
}

func applyPosition(li *gam.LineItem, pos models.VideoPosition) {
	if pos == models.VideoPositionNone {
		return
	}
	li.Targeting.VideoPositionTargeting = &gam.VideoPositionTargeting{
		TargetedPositions: []gam.VideoPositionTarget{{VideoPosition: gam.VideoPosition{PositionType: string(pos)}}},
	}
}

// WireCriteria converts a targeting tree to its wire form. Empty trees give nil.
func WireCriteria(t models.TargetingTree) *gam.CustomCriteriaSet {
	if t.IsEmpty() {
		return nil
	}
	set := &gam.CustomCriteriaSet{LogicalOperator: t.LogicalOperator}
	for _, c := range t.Children {
		set.Children = append(set.Children, gam.CustomCriteria{
			XSIType:  gam.TypeCustomCriteria,
			KeyID:    c.KeyID,
			ValueIDs: c.ValueIDs,
			Operator: c.Operator,
		})
	}
	return set
}

func wireSize(s models.Size) gam.Size {
	return gam.Size{Width: s.Width, Height: s.Height}
}
