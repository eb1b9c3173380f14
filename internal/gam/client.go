package gam

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/patrickwarner/openwrap-setup/internal/observability"
	"github.com/patrickwarner/openwrap-setup/internal/ratelimit"
)

const (
	soapEnvNS = "http://schemas.xmlsoap.org/soap/envelope/"
	xsiNS     = "http://www.w3.org/2001/XMLSchema-instance"

	// DefaultEndpoint is the production API base URL.
	DefaultEndpoint = "https://ads.google.com/apis/ads/publisher"
)

// ClientConfig configures the SOAP client. Obtaining AccessToken is left to
// the caller.
type ClientConfig struct {
	Endpoint        string
	NetworkCode     string
	ApplicationName string
	AccessToken     string
	Timeout         time.Duration
	PageSize        int
	RateLimit       ratelimit.Config
}

// Client talks to the ad server SOAP API.
type Client struct {
	cfg        ClientConfig
	httpClient *http.Client
	logger     *zap.Logger
	metrics    observability.MetricsRegistry
	limiter    *ratelimit.Limiter
}

// NewClient creates a SOAP client. Requests are traced through otelhttp.
func NewClient(cfg ClientConfig, logger *zap.Logger, metrics observability.MetricsRegistry) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 500
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger:  logger,
		metrics: metrics,
		limiter: ratelimit.NewLimiter(cfg.RateLimit, metrics),
	}
}

type requestHeader struct {
	XMLNS           string `xml:"xmlns,attr"`
	NetworkCode     string `xml:"networkCode"`
	ApplicationName string `xml:"applicationName"`
}

type soapBody struct {
	Payload any
}

type envelope struct {
	XMLName xml.Name      `xml:"soapenv:Envelope"`
	SoapEnv string        `xml:"xmlns:soapenv,attr"`
	XSI     string        `xml:"xmlns:xsi,attr"`
	Header  requestHeader `xml:"soapenv:Header>RequestHeader"`
	Body    soapBody      `xml:"soapenv:Body"`
}

type soapFault struct {
	Code   string `xml:"faultcode"`
	String string `xml:"faultstring"`
}

type responseEnvelope struct {
	Body struct {
		Fault *soapFault `xml:"Fault"`
		Inner []byte     `xml:",innerxml"`
	} `xml:"Body"`
}

// call posts one SOAP request and decodes the response body into out.
func (c *Client) call(ctx context.Context, service, method string, payload, out any) (err error) {
	if err := c.limiter.Wait(ctx, service); err != nil {
		return &RemoteError{Service: service, Method: method, Err: fmt.Errorf("rate limit: %w", err)}
	}

	start := time.Now()
	defer func() {
		outcome := "success"
		if err != nil {
			outcome = "failure"
		}
		c.metrics.RecordRemoteCallLatency(service, method, time.Since(start))
		c.metrics.IncrementRemoteCalls(service, method, outcome)
	}()

	env := envelope{
		SoapEnv: soapEnvNS,
		XSI:     xsiNS,
		Header: requestHeader{
			XMLNS:           Namespace,
			NetworkCode:     c.cfg.NetworkCode,
			ApplicationName: c.cfg.ApplicationName,
		},
		Body: soapBody{Payload: payload},
	}
	body, err := xml.Marshal(env)
	if err != nil {
		return &RemoteError{Service: service, Method: method, Err: fmt.Errorf("marshal request: %w", err)}
	}

	url := fmt.Sprintf("%s/%s/%s", strings.TrimRight(c.cfg.Endpoint, "/"), APIVersion, service)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(append([]byte(xml.Header), body...)))
	if err != nil {
		return &RemoteError{Service: service, Method: method, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", `""`)
	if c.cfg.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &RemoteError{Service: service, Method: method, Err: fmt.Errorf("http request: %w", err)}
	}
	defer func() {
		if err := resp.Body.Close(); err != nil && c.logger != nil {
			c.logger.Warn("failed to close response body", zap.Error(err))
		}
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &RemoteError{Service: service, Method: method, StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}

	var renv responseEnvelope
	if uerr := xml.Unmarshal(raw, &renv); uerr != nil {
		if resp.StatusCode != http.StatusOK {
			return &RemoteError{Service: service, Method: method, StatusCode: resp.StatusCode, Err: fmt.Errorf("%s", truncate(raw, 256))}
		}
		return &RemoteError{Service: service, Method: method, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode envelope: %w", uerr)}
	}
	if f := renv.Body.Fault; f != nil {
		c.logger.Debug("soap fault",
			zap.String("service", service),
			zap.String("method", method),
			zap.String("fault", f.String))
		return &RemoteError{Service: service, Method: method, StatusCode: resp.StatusCode, Fault: f.String}
	}
	if resp.StatusCode != http.StatusOK {
		return &RemoteError{Service: service, Method: method, StatusCode: resp.StatusCode}
	}
	if out == nil {
		return nil
	}
	if err := xml.Unmarshal(renv.Body.Inner, out); err != nil {
		return &RemoteError{Service: service, Method: method, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode %s response: %w", method, err)}
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

type byStatementRequest struct {
	XMLName xml.Name
	XMLNS   string    `xml:"xmlns,attr"`
	Filter  Statement `xml:"filterStatement"`
}

type page[T any] struct {
	TotalResultSetSize int `xml:"rval>totalResultSetSize"`
	StartIndex         int `xml:"rval>startIndex"`
	Results            []T `xml:"rval>results"`
}

type rvalResponse[T any] struct {
	Rval []T `xml:"rval"`
}

func textArg(key, v string) StatementArg {
	return StatementArg{Key: key, Value: StatementV{XSIType: TypeTextValue, Value: v}}
}

func numberArg(key string, v int64) StatementArg {
	return StatementArg{Key: key, Value: StatementV{XSIType: TypeNumberValue, Value: fmt.Sprint(v)}}
}

func statementRequest(method, query string, args []StatementArg) byStatementRequest {
	return byStatementRequest{
		XMLName: xml.Name{Local: method},
		XMLNS:   Namespace,
		Filter:  Statement{Query: query, Values: args},
	}
}

// queryAll pages through a get*ByStatement method.
func queryAll[T any](ctx context.Context, c *Client, service, method, where string, args ...StatementArg) ([]T, error) {
	var all []T
	for offset := 0; ; offset += c.cfg.PageSize {
		q := fmt.Sprintf("%s LIMIT %d OFFSET %d", where, c.cfg.PageSize, offset)
		var p page[T]
		if err := c.call(ctx, service, method, statementRequest(method, q, args), &p); err != nil {
			return nil, err
		}
		all = append(all, p.Results...)
		if len(p.Results) == 0 || offset+len(p.Results) >= p.TotalResultSetSize {
			return all, nil
		}
	}
}

func first[T any](items []T) *T {
	if len(items) == 0 {
		return nil
	}
	return &items[0]
}

// FindTargetingKey looks a key up by name.
func (c *Client) FindTargetingKey(ctx context.Context, name string) (*CustomTargetingKey, error) {
	keys, err := queryAll[CustomTargetingKey](ctx, c, ServiceTargeting, "getCustomTargetingKeysByStatement",
		"WHERE name = :name", textArg("name", name))
	if err != nil {
		return nil, err
	}
	return first(keys), nil
}

// CreateTargetingKey creates a freeform key.
func (c *Client) CreateTargetingKey(ctx context.Context, name string) (*CustomTargetingKey, error) {
	req := struct {
		XMLName xml.Name             `xml:"createCustomTargetingKeys"`
		XMLNS   string               `xml:"xmlns,attr"`
		Keys    []CustomTargetingKey `xml:"keys"`
	}{XMLNS: Namespace, Keys: []CustomTargetingKey{{Name: name, DisplayName: name, Type: "FREEFORM"}}}
	var resp rvalResponse[CustomTargetingKey]
	if err := c.call(ctx, ServiceTargeting, "createCustomTargetingKeys", req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Rval) == 0 {
		return nil, &RemoteError{Service: ServiceTargeting, Method: "createCustomTargetingKeys", Err: fmt.Errorf("empty response")}
	}
	return &resp.Rval[0], nil
}

// FindTargetingValue looks a value up by key id and name.
func (c *Client) FindTargetingValue(ctx context.Context, keyID int64, name string) (*CustomTargetingValue, error) {
	vals, err := queryAll[CustomTargetingValue](ctx, c, ServiceTargeting, "getCustomTargetingValuesByStatement",
		"WHERE customTargetingKeyId = :keyId AND name = :name", numberArg("keyId", keyID), textArg("name", name))
	if err != nil {
		return nil, err
	}
	return first(vals), nil
}

// CreateTargetingValue creates a value with the given match type.
func (c *Client) CreateTargetingValue(ctx context.Context, keyID int64, name, matchType string) (*CustomTargetingValue, error) {
	req := struct {
		XMLName xml.Name               `xml:"createCustomTargetingValues"`
		XMLNS   string                 `xml:"xmlns,attr"`
		Values  []CustomTargetingValue `xml:"values"`
	}{XMLNS: Namespace, Values: []CustomTargetingValue{{CustomTargetingKeyID: keyID, Name: name, DisplayName: name, MatchType: matchType}}}
	var resp rvalResponse[CustomTargetingValue]
	if err := c.call(ctx, ServiceTargeting, "createCustomTargetingValues", req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Rval) == 0 {
		return nil, &RemoteError{Service: ServiceTargeting, Method: "createCustomTargetingValues", Err: fmt.Errorf("empty response")}
	}
	return &resp.Rval[0], nil
}

// FindOrder looks an order up by name.
func (c *Client) FindOrder(ctx context.Context, name string) (*Order, error) {
	orders, err := queryAll[Order](ctx, c, ServiceOrder, "getOrdersByStatement", "WHERE name = :name", textArg("name", name))
	if err != nil {
		return nil, err
	}
	return first(orders), nil
}

// CreateOrder creates one order.
func (c *Client) CreateOrder(ctx context.Context, o Order) (*Order, error) {
	req := struct {
		XMLName xml.Name `xml:"createOrders"`
		XMLNS   string   `xml:"xmlns,attr"`
		Orders  []Order  `xml:"orders"`
	}{XMLNS: Namespace, Orders: []Order{o}}
	var resp rvalResponse[Order]
	if err := c.call(ctx, ServiceOrder, "createOrders", req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Rval) == 0 {
		return nil, &RemoteError{Service: ServiceOrder, Method: "createOrders", Err: fmt.Errorf("empty response")}
	}
	return &resp.Rval[0], nil
}

// FindAdvertiser looks an advertiser company up by name.
func (c *Client) FindAdvertiser(ctx context.Context, name string) (*Company, error) {
	cs, err := queryAll[Company](ctx, c, ServiceCompany, "getCompaniesByStatement",
		"WHERE name = :name AND type = :type", textArg("name", name), textArg("type", "ADVERTISER"))
	if err != nil {
		return nil, err
	}
	return first(cs), nil
}

// CreateAdvertiser creates an advertiser company.
func (c *Client) CreateAdvertiser(ctx context.Context, name string) (*Company, error) {
	req := struct {
		XMLName   xml.Name  `xml:"createCompanies"`
		XMLNS     string    `xml:"xmlns,attr"`
		Companies []Company `xml:"companies"`
	}{XMLNS: Namespace, Companies: []Company{{Name: name, Type: "ADVERTISER"}}}
	var resp rvalResponse[Company]
	if err := c.call(ctx, ServiceCompany, "createCompanies", req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Rval) == 0 {
		return nil, &RemoteError{Service: ServiceCompany, Method: "createCompanies", Err: fmt.Errorf("empty response")}
	}
	return &resp.Rval[0], nil
}

// FindUserByEmail looks a user up by email.
func (c *Client) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	us, err := queryAll[User](ctx, c, ServiceUser, "getUsersByStatement", "WHERE email = :email", textArg("email", email))
	if err != nil {
		return nil, err
	}
	return first(us), nil
}

// FindPlacements returns the placements matching names. Unknown names are
// skipped.
func (c *Client) FindPlacements(ctx context.Context, names []string) ([]Placement, error) {
	var out []Placement
	for _, n := range names {
		ps, err := queryAll[Placement](ctx, c, ServicePlacement, "getPlacementsByStatement", "WHERE name = :name", textArg("name", n))
		if err != nil {
			return nil, err
		}
		out = append(out, ps...)
	}
	return out, nil
}

// CurrentNetwork returns the network the client is scoped to.
func (c *Client) CurrentNetwork(ctx context.Context) (*Network, error) {
	req := struct {
		XMLName xml.Name `xml:"getCurrentNetwork"`
		XMLNS   string   `xml:"xmlns,attr"`
	}{XMLNS: Namespace}
	var resp struct {
		Rval Network `xml:"rval"`
	}
	if err := c.call(ctx, ServiceNetwork, "getCurrentNetwork", req, &resp); err != nil {
		return nil, err
	}
	return &resp.Rval, nil
}

// CreateLineItems creates line items and returns them with ids.
func (c *Client) CreateLineItems(ctx context.Context, items []LineItem) ([]LineItem, error) {
	return c.writeLineItems(ctx, "createLineItems", items)
}

// UpdateLineItems updates existing line items.
func (c *Client) UpdateLineItems(ctx context.Context, items []LineItem) ([]LineItem, error) {
	return c.writeLineItems(ctx, "updateLineItems", items)
}

func (c *Client) writeLineItems(ctx context.Context, method string, items []LineItem) ([]LineItem, error) {
	req := struct {
		XMLName   xml.Name
		XMLNS     string     `xml:"xmlns,attr"`
		LineItems []LineItem `xml:"lineItems"`
	}{XMLName: xml.Name{Local: method}, XMLNS: Namespace, LineItems: items}
	var resp rvalResponse[LineItem]
	if err := c.call(ctx, ServiceLineItem, method, req, &resp); err != nil {
		return nil, err
	}
	return resp.Rval, nil
}

// CountLineItems returns how many line items the order holds.
func (c *Client) CountLineItems(ctx context.Context, orderID int64) (int, error) {
	const method = "getLineItemsByStatement"
	var p page[LineItem]
	req := statementRequest(method, "WHERE orderId = :orderId LIMIT 1", []StatementArg{numberArg("orderId", orderID)})
	if err := c.call(ctx, ServiceLineItem, method, req, &p); err != nil {
		return 0, err
	}
	return p.TotalResultSetSize, nil
}

// FindLineItems returns line items matching f.
func (c *Client) FindLineItems(ctx context.Context, f LineItemFilter) ([]LineItem, error) {
	var conds []string
	var args []StatementArg
	if f.OrderID != 0 {
		conds = append(conds, "orderId = :orderId")
		args = append(args, numberArg("orderId", f.OrderID))
	}
	if f.NameLike != "" {
		conds = append(conds, "name LIKE :name")
		args = append(args, textArg("name", f.NameLike))
	}
	if f.LineItemType != "" {
		conds = append(conds, "lineItemType = :lineItemType")
		args = append(args, textArg("lineItemType", f.LineItemType))
	}
	where := "WHERE " + strings.Join(conds, " AND ")
	if len(conds) == 0 {
		where = "ORDER BY id ASC"
	}
	return queryAll[LineItem](ctx, c, ServiceLineItem, "getLineItemsByStatement", where, args...)
}

// CreateCreatives creates creatives and returns them with ids.
func (c *Client) CreateCreatives(ctx context.Context, creatives []Creative) ([]Creative, error) {
	req := struct {
		XMLName   xml.Name   `xml:"createCreatives"`
		XMLNS     string     `xml:"xmlns,attr"`
		Creatives []Creative `xml:"creatives"`
	}{XMLNS: Namespace, Creatives: creatives}
	var resp rvalResponse[Creative]
	if err := c.call(ctx, ServiceCreative, "createCreatives", req, &resp); err != nil {
		return nil, err
	}
	// the decoder does not see the xsi prefix
	for i := range resp.Rval {
		if i < len(creatives) && resp.Rval[i].XSIType == "" {
			resp.Rval[i].XSIType = creatives[i].XSIType
		}
	}
	return resp.Rval, nil
}

// CreateLICAs creates line item creative associations.
func (c *Client) CreateLICAs(ctx context.Context, licas []LICA) ([]LICA, error) {
	const method = "createLineItemCreativeAssociations"
	req := struct {
		XMLName xml.Name `xml:"createLineItemCreativeAssociations"`
		XMLNS   string   `xml:"xmlns,attr"`
		LICAs   []LICA   `xml:"lineItemCreativeAssociations"`
	}{XMLNS: Namespace, LICAs: licas}
	var resp rvalResponse[LICA]
	if err := c.call(ctx, ServiceLICA, method, req, &resp); err != nil {
		return nil, err
	}
	return resp.Rval, nil
}
