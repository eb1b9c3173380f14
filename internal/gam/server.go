package gam

import "context"

// Server is the ad server API surface a setup run uses. Find methods return
// nil without error when nothing matches.
type Server interface {
	FindTargetingKey(ctx context.Context, name string) (*CustomTargetingKey, error)
	CreateTargetingKey(ctx context.Context, name string) (*CustomTargetingKey, error)
	FindTargetingValue(ctx context.Context, keyID int64, name string) (*CustomTargetingValue, error)
	CreateTargetingValue(ctx context.Context, keyID int64, name, matchType string) (*CustomTargetingValue, error)

	FindOrder(ctx context.Context, name string) (*Order, error)
	CreateOrder(ctx context.Context, o Order) (*Order, error)
	FindAdvertiser(ctx context.Context, name string) (*Company, error)
	CreateAdvertiser(ctx context.Context, name string) (*Company, error)
	FindUserByEmail(ctx context.Context, email string) (*User, error)

	FindPlacements(ctx context.Context, names []string) ([]Placement, error)
	CurrentNetwork(ctx context.Context) (*Network, error)

	CreateLineItems(ctx context.Context, items []LineItem) ([]LineItem, error)
	CountLineItems(ctx context.Context, orderID int64) (int, error)
	FindLineItems(ctx context.Context, f LineItemFilter) ([]LineItem, error)
	UpdateLineItems(ctx context.Context, items []LineItem) ([]LineItem, error)

	CreateCreatives(ctx context.Context, creatives []Creative) ([]Creative, error)
	CreateLICAs(ctx context.Context, licas []LICA) ([]LICA, error)
}

// LineItemFilter selects line items of one order. NameLike uses PQL LIKE
// wildcards; empty fields do not filter.
type LineItemFilter struct {
	OrderID      int64
	NameLike     string
	LineItemType string
}

// Service names used in URLs, errors and metrics.
const (
	ServiceTargeting = "CustomTargetingService"
	ServiceOrder     = "OrderService"
	ServiceCompany   = "CompanyService"
	ServiceUser      = "UserService"
	ServicePlacement = "PlacementService"
	ServiceNetwork   = "NetworkService"
	ServiceLineItem  = "LineItemService"
	ServiceCreative  = "CreativeService"
	ServiceLICA      = "LineItemCreativeAssociationService"
)

var (
	_ Server = (*Client)(nil)
	_ Server = (*Memory)(nil)
)
