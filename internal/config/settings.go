package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/patrickwarner/openwrap-setup/internal/models"
	"github.com/patrickwarner/openwrap-setup/internal/pricing"
	"github.com/patrickwarner/openwrap-setup/internal/setup"
)

// Settings are the inputs of one setup run as an operator writes them in
// the environment or on the command line.
type Settings struct {
	OrderName       string `validate:"required,max=255"`
	AdvertiserName  string `validate:"required"`
	TraffickerEmail string `validate:"required,email"`
	LineItemType    string `validate:"omitempty,oneof=PRICE_PRIORITY STANDARD SPONSORSHIP NETWORK BULK HOUSE"`
	LineItemPrefix  string
	SetupType       string `validate:"required,setuptype"`
	Sizes           string `validate:"omitempty,sizes"`
	PlacementNames  []string
	RangesFile      string `validate:"required"`

	Currency       string `validate:"currency"`
	ExchangeRate   bool
	TargetCurrency string `validate:"required_if=ExchangeRate true,currency"`

	Bidder         string
	NumCreatives   int `validate:"gte=0,lte=50"`
	Use1x1         bool
	TemplateIDs    []int64 `validate:"dive,gt=0"`
	UserDefinedVar string

	Durations     []int  `validate:"dive,gt=0"`
	Slots         []int  `validate:"dive,gt=0"`
	VideoPosition string `validate:"omitempty,oneof=PREROLL MIDROLL POSTROLL"`
	CacheURL      string `validate:"omitempty,url"`

	DeviceCategories        []int64 `validate:"dive,gt=0"`
	DeviceCapabilities      []int64 `validate:"dive,gt=0"`
	RoadblockType           string  `validate:"omitempty,oneof=ONE_OR_MORE ONLY_ONE AS_MANY_AS_POSSIBLE ALL_ROADBLOCK CREATIVE_SET"`
	SameAdvertiserException bool
}

// LoadSettings reads run settings from OWSETUP_* variables. Call Load first
// so .env files are applied.
func LoadSettings() Settings {
	return Settings{
		OrderName:               getenv("OWSETUP_ORDER_NAME", ""),
		AdvertiserName:          getenv("OWSETUP_ADVERTISER_NAME", "PubMatic"),
		TraffickerEmail:         getenv("OWSETUP_TRAFFICKER_EMAIL", ""),
		LineItemType:            getenv("OWSETUP_LINE_ITEM_TYPE", string(models.LineItemPricePriority)),
		LineItemPrefix:          getenv("OWSETUP_LINE_ITEM_PREFIX", ""),
		SetupType:               getenv("OWSETUP_SETUP_TYPE", string(models.SetupWeb)),
		Sizes:                   getenv("OWSETUP_SIZES", ""),
		PlacementNames:          envList("OWSETUP_PLACEMENTS"),
		RangesFile:              getenv("OWSETUP_RANGES_FILE", "LineItem.csv"),
		Currency:                getenv("OWSETUP_CURRENCY", "USD"),
		ExchangeRate:            envBool("OWSETUP_CURRENCY_EXCHANGE", false),
		TargetCurrency:          getenv("OWSETUP_TARGET_CURRENCY", ""),
		Bidder:                  getenv("OWSETUP_BIDDER", ""),
		NumCreatives:            envInt("OWSETUP_NUM_CREATIVES", 1),
		Use1x1:                  envBool("OWSETUP_USE_1X1", false),
		TemplateIDs:             envInt64s("OWSETUP_CREATIVE_TEMPLATE_IDS"),
		UserDefinedVar:          getenv("OWSETUP_USER_DEFINED_VAR", ""),
		Durations:               envInts("OWSETUP_VIDEO_LENGTHS"),
		Slots:                   envInts("OWSETUP_ADPOD_SLOTS"),
		VideoPosition:           getenv("OWSETUP_VIDEO_POSITION", ""),
		CacheURL:                getenv("OWSETUP_ADPOD_CACHE_URL", ""),
		DeviceCategories:        envInt64s("OWSETUP_DEVICE_CATEGORIES"),
		DeviceCapabilities:      envInt64s("OWSETUP_DEVICE_CAPABILITIES"),
		RoadblockType:           getenv("OWSETUP_ROADBLOCK_TYPE", ""),
		SameAdvertiserException: envBool("OWSETUP_SAME_ADVERTISER_EXCEPTION", false),
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("setuptype", func(fl validator.FieldLevel) bool {
		_, err := models.ParseSetupType(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("currency", func(fl validator.FieldLevel) bool {
		c := fl.Field().String()
		return c == "" || (len(c) == 3 && strings.ToUpper(c) == c && strings.Trim(c, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") == "")
	})
	_ = v.RegisterValidation("sizes", func(fl validator.FieldLevel) bool {
		_, err := models.ParseSizes(fl.Field().String())
		return err == nil
	})
	return v
}

// ValidationError lists every settings field that failed validation.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "invalid settings: " + strings.Join(e.Fields, "; ")
}

// Validate checks field formats. Cross-field rules that depend on the setup
// type are enforced when the run starts.
func (s Settings) Validate() error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &ValidationError{}
	for _, fe := range verrs {
		msg := fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag())
		if fe.Param() != "" {
			msg += " (" + fe.Param() + ")"
		}
		out.Fields = append(out.Fields, msg)
	}
	return out
}

// Request validates the settings, loads the range file and returns the
// run request.
func (s Settings) Request() (setup.Request, error) {
	if err := s.Validate(); err != nil {
		return setup.Request{}, err
	}
	sizes, err := models.ParseSizes(s.Sizes)
	if err != nil {
		return setup.Request{}, err
	}
	ranges, err := pricing.LoadRanges(s.RangesFile)
	if err != nil {
		return setup.Request{}, fmt.Errorf("load ranges: %w", err)
	}
	return s.toRequest(sizes, ranges), nil
}

func (s Settings) toRequest(sizes []models.Size, ranges []models.PriceRange) setup.Request {
	return setup.Request{
		OrderName:               s.OrderName,
		AdvertiserName:          s.AdvertiserName,
		TraffickerEmail:         s.TraffickerEmail,
		LineItemType:            models.LineItemType(s.LineItemType),
		LineItemPrefix:          s.LineItemPrefix,
		SetupType:               models.SetupType(strings.ToUpper(s.SetupType)),
		Sizes:                   sizes,
		PlacementNames:          s.PlacementNames,
		Ranges:                  ranges,
		Currency:                s.Currency,
		ExchangeRate:            s.ExchangeRate,
		TargetCurrency:          s.TargetCurrency,
		Bidder:                  s.Bidder,
		NumCreatives:            s.NumCreatives,
		Use1x1:                  s.Use1x1,
		TemplateIDs:             s.TemplateIDs,
		UserDefinedVar:          s.UserDefinedVar,
		Durations:               s.Durations,
		Slots:                   s.Slots,
		VideoPosition:           models.VideoPosition(s.VideoPosition),
		CacheURL:                s.CacheURL,
		DeviceCategories:        s.DeviceCategories,
		DeviceCapabilities:      s.DeviceCapabilities,
		RoadblockType:           s.RoadblockType,
		SameAdvertiserException: s.SameAdvertiserException,
	}
}
