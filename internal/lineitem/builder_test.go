package lineitem

import (
	"errors"
	"testing"

	"github.com/patrickwarner/openwrap-setup/internal/gam"
	"github.com/patrickwarner/openwrap-setup/internal/models"
)

func tree(pairs ...int64) models.TargetingTree {
	t := models.NewTargetingTree()
	for i := 0; i+1 < len(pairs); i += 2 {
		t.Add(pairs[i], pairs[i+1])
	}
	return t
}

func baseParams(st models.SetupType) Params {
	return Params{
		Name:         "Top Bid: HB $1.00",
		OrderID:      77,
		AdUnitIDs:    []string{"21700000"},
		CPMMicros:    1_000_000,
		Sizes:        []models.Size{{Width: 300, Height: 250}, {Width: 728, Height: 90}},
		CurrencyCode: "USD",
		SetupType:    st,
		Targeting:    tree(11, 101, 12, 201, 13, 301),
	}
}

func TestBuild_AdPodPlaceholders(t *testing.T) {
	p := baseParams(models.SetupAdPod)
	p.Slot = "s1"
	p.Durations = []int{10, 15}
	p.Sizes = []models.Size{{Width: 640, Height: 480}}
	p.DurationTargeting = map[int]models.TargetingTree{10: tree(50, 510), 15: tree(50, 515)}

	cfg, err := Build(p)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if _, ok := cfg.(*AdPodLineItem); !ok {
		t.Fatalf("expected AdPodLineItem, got %T", cfg)
	}
	li := cfg.ToWire()

	if len(li.CreativePlaceholders) != 2 {
		t.Fatalf("expected 2 placeholders, got %d", len(li.CreativePlaceholders))
	}
	for i, want := range []string{"s1_10second_ad", "s1_15second_ad"} {
		ph := li.CreativePlaceholders[i]
		if ph.TargetingName != want {
			t.Errorf("placeholder %d name = %q, want %q", i, ph.TargetingName, want)
		}
		if ph.Size.Width != 640 || ph.Size.Height != 480 {
			t.Errorf("placeholder %d size = %+v", i, ph.Size)
		}
		ct := li.CreativeTargetings[i]
		if ct.Name != want {
			t.Errorf("creative targeting %d name = %q", i, ct.Name)
		}
	}
	if got := li.CreativeTargetings[1].Targeting.CustomTargeting.Children[0].ValueIDs[0]; got != 515 {
		t.Errorf("15s creative targeting value = %d", got)
	}
	if li.EnvironmentType != "VIDEO_PLAYER" || li.VideoMaxDuration != 60000 {
		t.Errorf("unexpected video fields %s/%d", li.EnvironmentType, li.VideoMaxDuration)
	}
	if li.Targeting.CustomTargeting == nil || len(li.Targeting.CustomTargeting.Children) != 3 {
		t.Error("top level tree should be kept for adpod")
	}
}

func TestBuild_AdPodMissingDurationTargeting(t *testing.T) {
	p := baseParams(models.SetupAdPod)
	p.Slot = "s1"
	p.Durations = []int{10, 15}
	p.DurationTargeting = map[int]models.TargetingTree{10: tree(50, 510)}

	_, err := Build(p)
	if !errors.Is(err, ErrMissingDurationTargeting) {
		t.Fatalf("expected ErrMissingDurationTargeting, got %v", err)
	}
}

func TestBuild_NativePlaceholders(t *testing.T) {
	p := baseParams(models.SetupInAppNative)
	p.CreativeTemplateIDs = []int64{9001, 9002}

	li := mustWire(t, p)
	if len(li.CreativePlaceholders) != 2 {
		t.Fatalf("expected one placeholder per template, got %d", len(li.CreativePlaceholders))
	}
	for _, ph := range li.CreativePlaceholders {
		if ph.Size.Width != 1 || ph.Size.Height != 1 || ph.CreativeSizeType != "NATIVE" {
			t.Errorf("unexpected native placeholder %+v", ph)
		}
	}
	if li.CreativePlaceholders[1].CreativeTemplateID != 9002 {
		t.Errorf("template id not carried")
	}
	if li.EnvironmentType != "" {
		t.Error("native must not set a video environment")
	}
}

func TestBuild_NativeRequiresTemplates(t *testing.T) {
	_, err := Build(baseParams(models.SetupNative))
	if !errors.Is(err, ErrInvalidParams) {
		t.Fatalf("expected ErrInvalidParams, got %v", err)
	}
}

func TestBuild_DisplayDefaults(t *testing.T) {
	li := mustWire(t, baseParams(models.SetupWeb))

	if len(li.CreativePlaceholders) != 2 {
		t.Fatalf("expected one placeholder per size")
	}
	checks := map[string]bool{
		"start immediately":  li.StartDateTimeType == "IMMEDIATELY",
		"unlimited end":      li.UnlimitedEndDateTime,
		"cpm":                li.CostType == "CPM",
		"even rotation":      li.CreativeRotationType == "EVEN",
		"roadblock default":  li.RoadblockingType == RoadblockOneOrMore,
		"price priority":     li.LineItemType == "PRICE_PRIORITY",
		"goal none":          li.PrimaryGoal.GoalType == "NONE",
		"micro amount":       li.CostPerUnit.MicroAmount == 1_000_000,
		"value cost":         li.ValueCostPerUnit == li.CostPerUnit,
		"no video":           li.EnvironmentType == "" && li.Targeting.RequestPlatformTargeting == nil,
		"ad unit targeted":   len(li.Targeting.InventoryTargeting.TargetedAdUnits) == 1,
		"custom targeting":   li.Targeting.CustomTargeting != nil,
		"no technology":      li.Targeting.TechnologyTargeting == nil,
		"no video positions": li.Targeting.VideoPositionTargeting == nil,
	}
	for name, ok := range checks {
		if !ok {
			t.Errorf("%s check failed: %+v", name, li)
		}
	}
	for _, c := range li.Targeting.CustomTargeting.Children {
		if c.XSIType != gam.TypeCustomCriteria || c.Operator != "IS" {
			t.Errorf("unexpected criteria %+v", c)
		}
	}
}

func TestBuild_GoalPolicy(t *testing.T) {
	tests := []struct {
		typ      models.LineItemType
		goal     gam.Goal
		overbook bool
	}{
		{models.LineItemNetwork, gam.Goal{GoalType: "DAILY", Units: 100}, false},
		{models.LineItemHouse, gam.Goal{GoalType: "DAILY", Units: 100}, false},
		{models.LineItemSponsorship, gam.Goal{GoalType: "DAILY", UnitType: "IMPRESSIONS", Units: 100}, true},
		{models.LineItemStandard, gam.Goal{GoalType: "NONE"}, false},
		{models.LineItemPricePriority, gam.Goal{GoalType: "NONE"}, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			p := baseParams(models.SetupWeb)
			p.LineItemType = tt.typ
			li := mustWire(t, p)
			if li.PrimaryGoal != tt.goal {
				t.Errorf("goal = %+v, want %+v", li.PrimaryGoal, tt.goal)
			}
			if li.AllowOverbook != tt.overbook || li.SkipInventoryCheck != tt.overbook {
				t.Errorf("overbook/skip = %v/%v", li.AllowOverbook, li.SkipInventoryCheck)
			}
		})
	}
}

func TestBuild_VideoVariants(t *testing.T) {
	tests := []struct {
		st        models.SetupType
		maxDur    int64
		platforms []string
		position  bool
	}{
		{models.SetupVideo, 60000, []string{"VIDEO_PLAYER"}, true},
		{models.SetupJWPlayer, 60000, []string{"VIDEO_PLAYER"}, false},
		{models.SetupInAppVideo, 15000, []string{"MOBILE_APP", "VIDEO_PLAYER"}, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.st), func(t *testing.T) {
			p := baseParams(tt.st)
			p.VideoPosition = models.VideoPositionPreroll
			li := mustWire(t, p)

			if li.EnvironmentType != "VIDEO_PLAYER" {
				t.Errorf("environment = %q", li.EnvironmentType)
			}
			if li.VideoMaxDuration != tt.maxDur {
				t.Errorf("max duration = %d, want %d", li.VideoMaxDuration, tt.maxDur)
			}
			got := li.Targeting.RequestPlatformTargeting.TargetedRequestPlatforms
			if len(got) != len(tt.platforms) || got[0] != tt.platforms[0] {
				t.Errorf("platforms = %v, want %v", got, tt.platforms)
			}
			hasPos := li.Targeting.VideoPositionTargeting != nil
			if hasPos != tt.position {
				t.Errorf("video position targeting present = %v, want %v", hasPos, tt.position)
			}
		})
	}
}

func TestBuild_SentinelTargetingOmitted(t *testing.T) {
	for name, tr := range map[string]models.TargetingTree{
		"sentinel key":   tree(123456, 99),
		"sentinel value": tree(11, 1),
		"empty":          models.NewTargetingTree(),
	} {
		t.Run(name, func(t *testing.T) {
			p := baseParams(models.SetupWeb)
			p.Targeting = tr
			li := mustWire(t, p)
			if li.Targeting.CustomTargeting != nil {
				t.Errorf("expected custom targeting to be omitted")
			}
		})
	}
}

func TestBuild_RealTargetingWithValueOneKept(t *testing.T) {
	for name, tr := range map[string]models.TargetingTree{
		"value id 1 among criteria": tree(11, 1, 12, 40, 13, 50),
		"key 123456 among criteria": tree(11, 30, 123456, 99),
		"value id 1 with others":    {LogicalOperator: "AND", Children: []models.CustomCriteria{{KeyID: 11, ValueIDs: []int64{1, 2}, Operator: "IS"}}},
	} {
		t.Run(name, func(t *testing.T) {
			p := baseParams(models.SetupWeb)
			p.Targeting = tr
			li := mustWire(t, p)
			if li.Targeting.CustomTargeting == nil {
				t.Fatal("expected custom targeting to be kept")
			}
			if IsSentinel(tr) {
				t.Errorf("IsSentinel(%+v) = true", tr)
			}
		})
	}
}

func TestBuild_DeviceTargeting(t *testing.T) {
	p := baseParams(models.SetupWeb)
	p.DeviceCategories = []int64{30000, 30001}
	p.DeviceCapabilities = []int64{5005}
	li := mustWire(t, p)

	tech := li.Targeting.TechnologyTargeting
	if tech == nil {
		t.Fatal("expected technology targeting")
	}
	if tech.DeviceCategory == nil || len(tech.DeviceCategory.Targeted) != 2 ||
		tech.DeviceCapability == nil || len(tech.DeviceCapability.Targeted) != 1 {
		t.Errorf("unexpected technology targeting %+v", tech)
	}
}

func TestBuild_UnsupportedSetupType(t *testing.T) {
	_, err := Build(baseParams(models.SetupType("BANNER")))
	var ue *models.UnsupportedSetupTypeError
	if !errors.As(err, &ue) {
		t.Fatalf("expected UnsupportedSetupTypeError, got %v", err)
	}
}

func TestName(t *testing.T) {
	b := models.PriceBucket{StartRange: "1.25", Granularity: "0.05"}
	if got := Name("", b); got != "Top Bid: HB $1.25" {
		t.Errorf("got %q", got)
	}
	if got := Name("pm", b); got != "pm_Top Bid: HB $1.25" {
		t.Errorf("got %q", got)
	}
	ca := models.PriceBucket{StartRange: "20.00", EndRange: "50.00", Granularity: "-1", IsCatchAll: true}
	if got := Name("", ca); got != "Top Bid: HB $20.00+ (Catch-all 20.00-50.00)" {
		t.Errorf("got %q", got)
	}
}

func mustWire(t *testing.T, p Params) gam.LineItem {
	t.Helper()
	cfg, err := Build(p)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return cfg.ToWire()
}
