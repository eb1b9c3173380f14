package models

// Targeting key names used by the OpenWrap wrapper.
const (
	KeyPrice    = "pwtecp"
	KeyPlatform = "pwtplt"
	KeyBoost    = "pwtbst"
	KeyBidder   = "pwtpid"

	// BoostValue is the constant marker targeted on every generated line item.
	BoostValue = "1"
)

// DurationKey returns the per-slot duration key used by ADPOD creative
// targeting, e.g. "s1_pwtdur".
func DurationKey(slot string) string {
	return slot + "_pwtdur"
}

// MatchType controls how a custom targeting value is compared.
type MatchType string

const (
	MatchExact  MatchType = "EXACT"
	MatchPrefix MatchType = "PREFIX"
)

// CustomCriteria is a single key IS (v1 OR v2 ...) leaf.
type CustomCriteria struct {
	KeyID    int64   `json:"key_id"`
	ValueIDs []int64 `json:"value_ids"`
	Operator string  `json:"operator"`
}

// TargetingTree is the AND of its children.
type TargetingTree struct {
	LogicalOperator string           `json:"logical_operator"`
	Children        []CustomCriteria `json:"children"`
}

// NewTargetingTree returns an empty AND tree.
func NewTargetingTree() TargetingTree {
	return TargetingTree{LogicalOperator: "AND"}
}

// Add appends an IS criterion.
func (t *TargetingTree) Add(keyID int64, valueIDs ...int64) {
	t.Children = append(t.Children, CustomCriteria{KeyID: keyID, ValueIDs: valueIDs, Operator: "IS"})
}

// IsEmpty reports whether the tree has no criteria.
func (t TargetingTree) IsEmpty() bool {
	return len(t.Children) == 0
}
