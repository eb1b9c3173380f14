package gam

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// Memory is an in-process Server. It backs dry runs and tests, and mimics
// the remote registry closely enough that get-or-create logic behaves the
// same against it.
type Memory struct {
	mu sync.Mutex

	nextID int64

	keys      map[string]*CustomTargetingKey
	values    map[int64]map[string]*CustomTargetingValue
	orders    map[string]*Order
	companies map[string]*Company
	users     map[string]*User
	places    map[string]*Placement
	network   Network

	LineItems []LineItem
	Creatives []Creative
	LICAs     []LICA

	// Calls counts invocations per method name.
	Calls map[string]int
	// FailOn, when it returns an error for a method name, makes that call fail.
	FailOn func(method string) error
}

// NewMemory returns an empty in-memory server for the given root ad unit.
func NewMemory(rootAdUnitID string) *Memory {
	return &Memory{
		nextID:    1000,
		keys:      map[string]*CustomTargetingKey{},
		values:    map[int64]map[string]*CustomTargetingValue{},
		orders:    map[string]*Order{},
		companies: map[string]*Company{},
		users:     map[string]*User{},
		places:    map[string]*Placement{},
		network:   Network{NetworkCode: "memory", EffectiveRootAdUnitID: rootAdUnitID, CurrencyCode: "USD"},
		Calls:     map[string]int{},
	}
}

// AddUser seeds a user so trafficker lookups succeed.
func (m *Memory) AddUser(name, email string) *User {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := &User{ID: m.id(), Name: name, Email: email}
	m.users[strings.ToLower(email)] = u
	return u
}

// AddPlacement seeds a placement.
func (m *Memory) AddPlacement(name string) *Placement {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := &Placement{ID: m.id(), Name: name}
	m.places[name] = p
	return p
}

// Values returns every value stored under keyID.
func (m *Memory) Values(keyID int64) []CustomTargetingValue {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]CustomTargetingValue, 0, len(m.values[keyID]))
	for _, v := range m.values[keyID] {
		out = append(out, *v)
	}
	return out
}

func (m *Memory) id() int64 {
	m.nextID++
	return m.nextID
}

// enter records the call and applies FailOn. Callers hold no lock.
func (m *Memory) enter(service, method string) error {
	m.mu.Lock()
	m.Calls[method]++
	fail := m.FailOn
	m.mu.Unlock()
	if fail == nil {
		return nil
	}
	if err := fail(method); err != nil {
		return &RemoteError{Service: service, Method: method, Err: err}
	}
	return nil
}

func (m *Memory) FindTargetingKey(ctx context.Context, name string) (*CustomTargetingKey, error) {
	if err := m.enter(ServiceTargeting, "getCustomTargetingKeysByStatement"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if k, ok := m.keys[name]; ok {
		c := *k
		return &c, nil
	}
	return nil, nil
}

func (m *Memory) CreateTargetingKey(ctx context.Context, name string) (*CustomTargetingKey, error) {
	if err := m.enter(ServiceTargeting, "createCustomTargetingKeys"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.keys[name]; ok {
		return nil, &RemoteError{Service: ServiceTargeting, Method: "createCustomTargetingKeys",
			Fault: fmt.Sprintf("UniqueError.NOT_UNIQUE @ name; %s", name)}
	}
	k := &CustomTargetingKey{ID: m.id(), Name: name, DisplayName: name, Type: "FREEFORM"}
	m.keys[name] = k
	m.values[k.ID] = map[string]*CustomTargetingValue{}
	c := *k
	return &c, nil
}

func (m *Memory) FindTargetingValue(ctx context.Context, keyID int64, name string) (*CustomTargetingValue, error) {
	if err := m.enter(ServiceTargeting, "getCustomTargetingValuesByStatement"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.values[keyID][name]; ok {
		c := *v
		return &c, nil
	}
	return nil, nil
}

func (m *Memory) CreateTargetingValue(ctx context.Context, keyID int64, name, matchType string) (*CustomTargetingValue, error) {
	const method = "createCustomTargetingValues"
	if err := m.enter(ServiceTargeting, method); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	vals, ok := m.values[keyID]
	if !ok {
		return nil, &RemoteError{Service: ServiceTargeting, Method: method,
			Fault: fmt.Sprintf("CommonError.NOT_FOUND @ customTargetingKeyId; %d", keyID)}
	}
	if _, ok := vals[name]; ok {
		return nil, &RemoteError{Service: ServiceTargeting, Method: method,
			Fault: fmt.Sprintf("UniqueError.NOT_UNIQUE @ name; %s", name)}
	}
	v := &CustomTargetingValue{ID: m.id(), CustomTargetingKeyID: keyID, Name: name, DisplayName: name, MatchType: matchType}
	vals[name] = v
	c := *v
	return &c, nil
}

func (m *Memory) FindOrder(ctx context.Context, name string) (*Order, error) {
	if err := m.enter(ServiceOrder, "getOrdersByStatement"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.orders[name]; ok {
		c := *o
		return &c, nil
	}
	return nil, nil
}

func (m *Memory) CreateOrder(ctx context.Context, o Order) (*Order, error) {
	if err := m.enter(ServiceOrder, "createOrders"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[o.Name]; ok {
		return nil, &RemoteError{Service: ServiceOrder, Method: "createOrders",
			Fault: fmt.Sprintf("UniqueError.NOT_UNIQUE @ name; %s", o.Name)}
	}
	o.ID = m.id()
	m.orders[o.Name] = &o
	c := o
	return &c, nil
}

func (m *Memory) FindAdvertiser(ctx context.Context, name string) (*Company, error) {
	if err := m.enter(ServiceCompany, "getCompaniesByStatement"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.companies[name]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}

func (m *Memory) CreateAdvertiser(ctx context.Context, name string) (*Company, error) {
	if err := m.enter(ServiceCompany, "createCompanies"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c := &Company{ID: m.id(), Name: name, Type: "ADVERTISER"}
	m.companies[name] = c
	cp := *c
	return &cp, nil
}

func (m *Memory) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	if err := m.enter(ServiceUser, "getUsersByStatement"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[strings.ToLower(email)]; ok {
		c := *u
		return &c, nil
	}
	return nil, nil
}

func (m *Memory) FindPlacements(ctx context.Context, names []string) ([]Placement, error) {
	if err := m.enter(ServicePlacement, "getPlacementsByStatement"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Placement
	for _, n := range names {
		if p, ok := m.places[n]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *Memory) CurrentNetwork(ctx context.Context) (*Network, error) {
	if err := m.enter(ServiceNetwork, "getCurrentNetwork"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.network
	return &n, nil
}

func (m *Memory) CreateLineItems(ctx context.Context, items []LineItem) ([]LineItem, error) {
	if err := m.enter(ServiceLineItem, "createLineItems"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]LineItem, len(items))
	for i, li := range items {
		li.ID = m.id()
		if li.Status == "" {
			li.Status = "DRAFT"
		}
		m.LineItems = append(m.LineItems, li)
		out[i] = li
	}
	return out, nil
}

func (m *Memory) CountLineItems(ctx context.Context, orderID int64) (int, error) {
	if err := m.enter(ServiceLineItem, "getLineItemsByStatement"); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, li := range m.LineItems {
		if li.OrderID == orderID {
			n++
		}
	}
	return n, nil
}

func (m *Memory) FindLineItems(ctx context.Context, f LineItemFilter) ([]LineItem, error) {
	if err := m.enter(ServiceLineItem, "getLineItemsByStatement"); err != nil {
		return nil, err
	}
	var like *regexp.Regexp
	if f.NameLike != "" {
		like = likePattern(f.NameLike)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []LineItem
	for _, li := range m.LineItems {
		if f.OrderID != 0 && li.OrderID != f.OrderID {
			continue
		}
		if f.LineItemType != "" && li.LineItemType != f.LineItemType {
			continue
		}
		if like != nil && !like.MatchString(li.Name) {
			continue
		}
		out = append(out, li)
	}
	return out, nil
}

func (m *Memory) UpdateLineItems(ctx context.Context, items []LineItem) ([]LineItem, error) {
	const method = "updateLineItems"
	if err := m.enter(ServiceLineItem, method); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, upd := range items {
		found := false
		for i := range m.LineItems {
			if m.LineItems[i].ID == upd.ID {
				m.LineItems[i] = upd
				found = true
				break
			}
		}
		if !found {
			return nil, &RemoteError{Service: ServiceLineItem, Method: method,
				Fault: fmt.Sprintf("CommonError.NOT_FOUND @ id; %d", upd.ID)}
		}
	}
	return items, nil
}

func (m *Memory) CreateCreatives(ctx context.Context, creatives []Creative) ([]Creative, error) {
	if err := m.enter(ServiceCreative, "createCreatives"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Creative, len(creatives))
	for i, c := range creatives {
		c.ID = m.id()
		m.Creatives = append(m.Creatives, c)
		out[i] = c
	}
	return out, nil
}

func (m *Memory) CreateLICAs(ctx context.Context, licas []LICA) ([]LICA, error) {
	if err := m.enter(ServiceLICA, "createLineItemCreativeAssociations"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LICAs = append(m.LICAs, licas...)
	return licas, nil
}

// likePattern compiles a PQL LIKE pattern ('%' any run, '_' one char).
func likePattern(p string) *regexp.Regexp {
	var b strings.Builder
	b.WriteString("^")
	for _, r := range p {
		switch r {
		case '%':
			b.WriteString(".*")
		case '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return regexp.MustCompile(b.String())
}
