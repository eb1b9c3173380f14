package setup

import (
	"errors"
	"fmt"
	"strings"

	"github.com/patrickwarner/openwrap-setup/internal/models"
	"github.com/patrickwarner/openwrap-setup/internal/pricing"
)

var (
	// ErrTraffickerNotFound is returned when an order must be created and no
	// user has the trafficker email.
	ErrTraffickerNotFound = errors.New("trafficker not found")
	// ErrInvalidRequest wraps request validation failures.
	ErrInvalidRequest = errors.New("invalid setup request")
)

// Request is everything one setup run needs.
type Request struct {
	RunID string `json:"run_id,omitempty"`

	OrderName       string              `json:"order_name"`
	AdvertiserName  string              `json:"advertiser_name"`
	TraffickerEmail string              `json:"trafficker_email"`
	LineItemType    models.LineItemType `json:"line_item_type"`
	LineItemPrefix  string              `json:"line_item_prefix,omitempty"`
	SetupType       models.SetupType    `json:"setup_type"`
	Sizes           []models.Size       `json:"sizes"`
	PlacementNames  []string            `json:"placement_names,omitempty"`
	Ranges          []models.PriceRange `json:"ranges"`

	Currency       string `json:"currency,omitempty"`
	ExchangeRate   bool   `json:"exchange_rate,omitempty"`
	TargetCurrency string `json:"target_currency,omitempty"`

	Bidder         string  `json:"bidder,omitempty"`
	NumCreatives   int     `json:"num_creatives,omitempty"`
	Use1x1         bool    `json:"use_1x1,omitempty"`
	TemplateIDs    []int64 `json:"creative_template_ids,omitempty"`
	UserDefinedVar string  `json:"user_defined_var,omitempty"`

	Durations     []int                `json:"durations,omitempty"`
	Slots         []int                `json:"slots,omitempty"`
	VideoPosition models.VideoPosition `json:"video_position,omitempty"`
	CacheURL      string               `json:"cache_url,omitempty"`

	DeviceCategories        []int64 `json:"device_categories,omitempty"`
	DeviceCapabilities      []int64 `json:"device_capabilities,omitempty"`
	RoadblockType           string  `json:"roadblock_type,omitempty"`
	SameAdvertiserException bool    `json:"same_advertiser_exception,omitempty"`
}

// SlotName is the ADPOD slot label used in order, placeholder and targeting
// names.
func SlotName(n int) string {
	return fmt.Sprintf("s%d", n)
}

// normalize fills defaults and rejects requests no run could complete.
func (r *Request) normalize() error {
	r.OrderName = strings.TrimSpace(r.OrderName)
	if r.OrderName == "" {
		return fmt.Errorf("%w: order name is required", ErrInvalidRequest)
	}
	if strings.TrimSpace(r.AdvertiserName) == "" {
		return fmt.Errorf("%w: advertiser name is required", ErrInvalidRequest)
	}

	st, err := models.ParseSetupType(string(r.SetupType))
	if err != nil {
		return err
	}
	r.SetupType = st

	lit, err := models.ParseLineItemType(string(r.LineItemType))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	r.LineItemType = lit

	if r.Currency == "" {
		r.Currency = "USD"
	}
	r.Currency = strings.ToUpper(r.Currency)
	r.TargetCurrency = strings.ToUpper(r.TargetCurrency)
	if r.ExchangeRate && r.TargetCurrency == "" {
		return fmt.Errorf("%w: target currency is required with exchange rate", ErrInvalidRequest)
	}
	if r.NumCreatives < 1 {
		r.NumCreatives = 1
	}
	if len(r.Ranges) == 0 {
		return pricing.ErrNoRanges
	}

	switch st.Family() {
	case models.FamilyAdPod:
		if len(r.Slots) == 0 {
			return fmt.Errorf("%w: adpod setup needs slots", ErrInvalidRequest)
		}
		if len(r.Durations) == 0 {
			return fmt.Errorf("%w: adpod setup needs durations", ErrInvalidRequest)
		}
		if len(r.Sizes) != 1 {
			return fmt.Errorf("%w: adpod setup takes exactly one size", ErrInvalidRequest)
		}
	case models.FamilyNative:
		if len(r.TemplateIDs) == 0 {
			return fmt.Errorf("%w: native setup needs creative template ids", ErrInvalidRequest)
		}
	default:
		if len(r.Sizes) == 0 {
			return fmt.Errorf("%w: at least one size is required", ErrInvalidRequest)
		}
	}
	return nil
}

// lineItemCurrency is the currency line items are priced in.
func (r *Request) lineItemCurrency() string {
	if r.ExchangeRate {
		return r.TargetCurrency
	}
	return r.Currency
}

// associationSizes are the size overrides every LICA carries.
func (r *Request) associationSizes() []models.Size {
	if r.SetupType.Family() == models.FamilyNative {
		return []models.Size{models.OneByOne}
	}
	return r.Sizes
}
