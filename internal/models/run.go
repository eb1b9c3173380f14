package models

import "time"

// RunStatus is the lifecycle state of a setup run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
	RunPlanned   RunStatus = "planned"
)

// SetupRun is the ledger row for one setup invocation.
type SetupRun struct {
	ID         string    `json:"id"`
	OrderName  string    `json:"order_name"`
	SetupType  SetupType `json:"setup_type"`
	Currency   string    `json:"currency"`
	Bidder     string    `json:"bidder,omitempty"`
	Status     RunStatus `json:"status"`
	Buckets    int       `json:"buckets"`
	Orders     int       `json:"orders"`
	LineItems  int       `json:"line_items"`
	Creatives  int       `json:"creatives"`
	LICAs      int       `json:"licas"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

// CreatedLineItem records one line item a run created.
type CreatedLineItem struct {
	RunID      string `json:"run_id"`
	LineItemID int64  `json:"line_item_id"`
	OrderID    int64  `json:"order_id"`
	Name       string `json:"name"`
	CPMMicros  int64  `json:"cpm_micros"`
	Currency   string `json:"currency"`
	StartRange string `json:"start_range"`
	IsCatchAll bool   `json:"is_catch_all"`
	Slot       string `json:"slot,omitempty"`
}

// Audit event kinds.
const (
	EventOrder    = "order"
	EventLineItem = "line_item"
	EventCreative = "creative"
	EventLICA     = "lica"
	EventUpdate   = "line_item_update"
)

// SetupEvent is one audited remote object change.
type SetupEvent struct {
	RunID     string    `json:"run_id"`
	Timestamp time.Time `json:"timestamp"`
	Kind      string    `json:"kind"`
	ObjectID  int64     `json:"object_id"`
	ParentID  int64     `json:"parent_id,omitempty"`
	Name      string    `json:"name"`
	SetupType SetupType `json:"setup_type"`
}
