// Package gam holds the ad server wire types and two implementations of the
// services a setup run talks to: a SOAP client for the real API and an
// in-memory server used for dry runs and tests.
package gam

import "encoding/xml"

// APIVersion is the ad server API version every service URL is built with.
const APIVersion = "v202502"

// Namespace is the XML namespace of API payloads.
const Namespace = "https://www.google.com/apis/ads/publisher/" + APIVersion

// Size is a creative or placeholder size.
type Size struct {
	Width         int  `xml:"width" json:"width"`
	Height        int  `xml:"height" json:"height"`
	IsAspectRatio bool `xml:"isAspectRatio" json:"isAspectRatio"`
}

// Money is an amount in micros of a currency unit.
type Money struct {
	CurrencyCode string `xml:"currencyCode" json:"currencyCode"`
	MicroAmount  int64  `xml:"microAmount" json:"microAmount"`
}

// CustomTargetingKey is a remote targeting key.
type CustomTargetingKey struct {
	ID          int64  `xml:"id,omitempty" json:"id,omitempty"`
	Name        string `xml:"name" json:"name"`
	DisplayName string `xml:"displayName,omitempty" json:"displayName,omitempty"`
	Type        string `xml:"type" json:"type"`
}

// CustomTargetingValue is a remote targeting value under a key.
type CustomTargetingValue struct {
	ID                   int64  `xml:"id,omitempty" json:"id,omitempty"`
	CustomTargetingKeyID int64  `xml:"customTargetingKeyId" json:"customTargetingKeyId"`
	Name                 string `xml:"name" json:"name"`
	DisplayName          string `xml:"displayName,omitempty" json:"displayName,omitempty"`
	MatchType            string `xml:"matchType" json:"matchType"`
}

// Company is an advertiser.
type Company struct {
	ID   int64  `xml:"id,omitempty" json:"id,omitempty"`
	Name string `xml:"name" json:"name"`
	Type string `xml:"type" json:"type"`
}

// User is an ad server user, looked up for the trafficker.
type User struct {
	ID    int64  `xml:"id" json:"id"`
	Name  string `xml:"name" json:"name"`
	Email string `xml:"email" json:"email"`
}

// Order groups line items for one advertiser.
type Order struct {
	ID           int64  `xml:"id,omitempty" json:"id,omitempty"`
	Name         string `xml:"name" json:"name"`
	AdvertiserID int64  `xml:"advertiserId" json:"advertiserId"`
	TraffickerID int64  `xml:"traffickerId" json:"traffickerId"`
}

// Placement is a named group of ad units.
type Placement struct {
	ID   int64  `xml:"id" json:"id"`
	Name string `xml:"name" json:"name"`
}

// Network is the subset of the current network the setup needs.
type Network struct {
	NetworkCode            string   `xml:"networkCode" json:"networkCode"`
	EffectiveRootAdUnitID  string   `xml:"effectiveRootAdUnitId" json:"effectiveRootAdUnitId"`
	CurrencyCode           string   `xml:"currencyCode" json:"currencyCode"`
	SecondaryCurrencyCodes []string `xml:"secondaryCurrencyCodes,omitempty" json:"secondaryCurrencyCodes,omitempty"`
}

// RawElement is an element the wire types do not model. Reads keep such
// elements so that an update sends back everything the read returned.
type RawElement struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Inner   []byte     `xml:",innerxml"`
}

// CustomCriteria is one key IS values leaf. Other criteria node types, such
// as nested sets or audience segments, keep their content in Extra.
type CustomCriteria struct {
	XSIType  string       `xml:"xsi:type,attr" json:"-"`
	KeyID    int64        `xml:"keyId,omitempty" json:"keyId"`
	ValueIDs []int64      `xml:"valueIds" json:"valueIds"`
	Operator string       `xml:"operator,omitempty" json:"operator"`
	Extra    []RawElement `xml:",any" json:"-"`
}

// CustomCriteriaSet combines criteria with one logical operator.
type CustomCriteriaSet struct {
	LogicalOperator string           `xml:"logicalOperator" json:"logicalOperator"`
	Children        []CustomCriteria `xml:"children" json:"children"`
}

// AdUnitTargeting targets one ad unit.
type AdUnitTargeting struct {
	AdUnitID           string `xml:"adUnitId" json:"adUnitId"`
	IncludeDescendants bool   `xml:"includeDescendants" json:"includeDescendants"`
}

// InventoryTargeting lists placements and ad units.
type InventoryTargeting struct {
	TargetedAdUnits      []AdUnitTargeting `xml:"targetedAdUnits,omitempty" json:"targetedAdUnits,omitempty"`
	TargetedPlacementIDs []int64           `xml:"targetedPlacementIds,omitempty" json:"targetedPlacementIds,omitempty"`
	Extra                []RawElement      `xml:",any" json:"-"`
}

// Technology is a device category or capability reference.
type Technology struct {
	ID   int64  `xml:"id" json:"id"`
	Name string `xml:"name,omitempty" json:"name,omitempty"`
}

// DeviceCategoryTargeting lists targeted device categories.
type DeviceCategoryTargeting struct {
	Targeted []Technology `xml:"targetedDeviceCategories,omitempty" json:"targeted,omitempty"`
	Extra    []RawElement `xml:",any" json:"-"`
}

// DeviceCapabilityTargeting lists targeted device capabilities.
type DeviceCapabilityTargeting struct {
	Targeted []Technology `xml:"targetedDeviceCapabilities,omitempty" json:"targeted,omitempty"`
	Extra    []RawElement `xml:",any" json:"-"`
}

// TechnologyTargeting restricts by device.
type TechnologyTargeting struct {
	DeviceCategory   *DeviceCategoryTargeting   `xml:"deviceCategoryTargeting,omitempty" json:"deviceCategory,omitempty"`
	DeviceCapability *DeviceCapabilityTargeting `xml:"deviceCapabilityTargeting,omitempty" json:"deviceCapability,omitempty"`
	Extra            []RawElement               `xml:",any" json:"-"`
}

// VideoPosition is one ad break position.
type VideoPosition struct {
	PositionType string       `xml:"positionType" json:"positionType"`
	Extra        []RawElement `xml:",any" json:"-"`
}

// VideoPositionTarget is one targeted video position.
type VideoPositionTarget struct {
	VideoPosition VideoPosition `xml:"videoPosition" json:"videoPosition"`
	Extra         []RawElement  `xml:",any" json:"-"`
}

// VideoPositionTargeting restricts video line items to ad break positions.
type VideoPositionTargeting struct {
	TargetedPositions []VideoPositionTarget `xml:"targetedPositions" json:"targetedPositions"`
}

// RequestPlatformTargeting restricts by request platform.
type RequestPlatformTargeting struct {
	TargetedRequestPlatforms []string `xml:"targetedRequestPlatforms" json:"targetedRequestPlatforms"`
}

// Targeting is the full targeting of a line item or creative targeting entry.
type Targeting struct {
	InventoryTargeting       *InventoryTargeting       `xml:"inventoryTargeting,omitempty" json:"inventoryTargeting,omitempty"`
	CustomTargeting          *CustomCriteriaSet        `xml:"customTargeting,omitempty" json:"customTargeting,omitempty"`
	TechnologyTargeting      *TechnologyTargeting      `xml:"technologyTargeting,omitempty" json:"technologyTargeting,omitempty"`
	VideoPositionTargeting   *VideoPositionTargeting   `xml:"videoPositionTargeting,omitempty" json:"videoPositionTargeting,omitempty"`
	RequestPlatformTargeting *RequestPlatformTargeting `xml:"requestPlatformTargeting,omitempty" json:"requestPlatformTargeting,omitempty"`
	Extra                    []RawElement              `xml:",any" json:"-"`
}

// CreativePlaceholder describes a creative slot a line item expects.
type CreativePlaceholder struct {
	Size               Size         `xml:"size" json:"size"`
	CreativeTemplateID int64        `xml:"creativeTemplateId,omitempty" json:"creativeTemplateId,omitempty"`
	CreativeSizeType   string       `xml:"creativeSizeType,omitempty" json:"creativeSizeType,omitempty"`
	TargetingName      string       `xml:"targetingName,omitempty" json:"targetingName,omitempty"`
	Extra              []RawElement `xml:",any" json:"-"`
}

// CreativeTargeting is a named targeting scope used by placeholders and
// associations.
type CreativeTargeting struct {
	Name      string    `xml:"name" json:"name"`
	Targeting Targeting `xml:"targeting" json:"targeting"`
}

// Goal is a line item's delivery goal.
type Goal struct {
	GoalType string `xml:"goalType" json:"goalType"`
	UnitType string `xml:"unitType,omitempty" json:"unitType,omitempty"`
	Units    int64  `xml:"units,omitempty" json:"units,omitempty"`
}

// LineItem is the wire form of a line item.
type LineItem struct {
	ID                                        int64                 `xml:"id,omitempty" json:"id,omitempty"`
	OrderID                                   int64                 `xml:"orderId" json:"orderId"`
	Name                                      string                `xml:"name" json:"name"`
	StartDateTimeType                         string                `xml:"startDateTimeType" json:"startDateTimeType"`
	UnlimitedEndDateTime                      bool                  `xml:"unlimitedEndDateTime" json:"unlimitedEndDateTime"`
	CreativeRotationType                      string                `xml:"creativeRotationType" json:"creativeRotationType"`
	RoadblockingType                          string                `xml:"roadblockingType" json:"roadblockingType"`
	LineItemType                              string                `xml:"lineItemType" json:"lineItemType"`
	CostPerUnit                               Money                 `xml:"costPerUnit" json:"costPerUnit"`
	ValueCostPerUnit                          Money                 `xml:"valueCostPerUnit" json:"valueCostPerUnit"`
	CostType                                  string                `xml:"costType" json:"costType"`
	DisableSameAdvertiserCompetitiveExclusion bool                  `xml:"disableSameAdvertiserCompetitiveExclusion" json:"disableSameAdvertiserCompetitiveExclusion"`
	SkipInventoryCheck                        bool                  `xml:"skipInventoryCheck,omitempty" json:"skipInventoryCheck,omitempty"`
	AllowOverbook                             bool                  `xml:"allowOverbook,omitempty" json:"allowOverbook,omitempty"`
	EnvironmentType                           string                `xml:"environmentType,omitempty" json:"environmentType,omitempty"`
	VideoMaxDuration                          int64                 `xml:"videoMaxDuration,omitempty" json:"videoMaxDuration,omitempty"`
	CreativePlaceholders                      []CreativePlaceholder `xml:"creativePlaceholders" json:"creativePlaceholders"`
	CreativeTargetings                        []CreativeTargeting   `xml:"creativeTargetings,omitempty" json:"creativeTargetings,omitempty"`
	PrimaryGoal                               Goal                  `xml:"primaryGoal" json:"primaryGoal"`
	Targeting                                 Targeting             `xml:"targeting" json:"targeting"`
	Status                                    string                `xml:"status,omitempty" json:"status,omitempty"`
	Extra                                     []RawElement          `xml:",any" json:"-"`
}

// Creative is the wire form of every creative flavour the setup creates.
// XSIType selects which of the optional fields apply.
type Creative struct {
	XSIType      string `xml:"xsi:type,attr" json:"type"`
	ID           int64  `xml:"id,omitempty" json:"id,omitempty"`
	AdvertiserID int64  `xml:"advertiserId" json:"advertiserId"`
	Name         string `xml:"name" json:"name"`
	Size         Size   `xml:"size" json:"size"`

	// ThirdPartyCreative
	Snippet               string `xml:"snippet,omitempty" json:"snippet,omitempty"`
	IsSafeFrameCompatible bool   `xml:"isSafeFrameCompatible,omitempty" json:"isSafeFrameCompatible,omitempty"`

	// TemplateCreative
	CreativeTemplateID     int64                   `xml:"creativeTemplateId,omitempty" json:"creativeTemplateId,omitempty"`
	DestinationURL         string                  `xml:"destinationUrl,omitempty" json:"destinationUrl,omitempty"`
	CreativeTemplateValues []TemplateVariableValue `xml:"creativeTemplateVariableValues,omitempty" json:"creativeTemplateVariableValues,omitempty"`
	IsNativeEligible       bool                    `xml:"isNativeEligible,omitempty" json:"isNativeEligible,omitempty"`

	// VastRedirectCreative
	VastXMLURL       string `xml:"vastXmlUrl,omitempty" json:"vastXmlUrl,omitempty"`
	VastRedirectType string `xml:"vastRedirectType,omitempty" json:"vastRedirectType,omitempty"`
	Duration         int64  `xml:"duration,omitempty" json:"duration,omitempty"`
}

// TemplateVariableValue fills a user-defined template variable.
type TemplateVariableValue struct {
	XSIType    string `xml:"xsi:type,attr" json:"type"`
	UniqueName string `xml:"uniqueName" json:"uniqueName"`
	Value      string `xml:"value" json:"value"`
}

// LICA associates one creative (or creative set) with a line item.
type LICA struct {
	LineItemID    int64  `xml:"lineItemId" json:"lineItemId"`
	CreativeID    int64  `xml:"creativeId,omitempty" json:"creativeId,omitempty"`
	CreativeSetID int64  `xml:"creativeSetId,omitempty" json:"creativeSetId,omitempty"`
	Sizes         []Size `xml:"sizes,omitempty" json:"sizes,omitempty"`
	TargetingName string `xml:"targetingName,omitempty" json:"targetingName,omitempty"`
}

// XSI type names.
const (
	TypeCustomCriteria       = "CustomCriteria"
	TypeThirdPartyCreative   = "ThirdPartyCreative"
	TypeTemplateCreative     = "TemplateCreative"
	TypeVastRedirectCreative = "VastRedirectCreative"
	TypeStringTemplateValue  = "StringCreativeTemplateVariableValue"
	TypeTextValue            = "TextValue"
	TypeNumberValue          = "NumberValue"
)

// Statement is a PQL filter with bound values.
type Statement struct {
	Query  string         `xml:"query"`
	Values []StatementArg `xml:"values,omitempty"`
}

// StatementArg binds :key in a Statement query.
type StatementArg struct {
	Key   string     `xml:"key"`
	Value StatementV `xml:"value"`
}

// StatementV is a typed PQL value.
type StatementV struct {
	XSIType string `xml:"xsi:type,attr"`
	Value   string `xml:"value"`
}
