// Package planning turns pending customer orders into purchase suggestions
// and, once approved, into supplier purchase orders.
package planning

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vic4or/sistemaMype-sub000/internal/shared"
)

// SuggestionState is the lifecycle of a purchase suggestion.
type SuggestionState string

const (
	StatePending        SuggestionState = "PENDING"
	StateOrderGenerated SuggestionState = "ORDER_GENERATED"
)

// RunSource records what triggered a run.
type RunSource string

const (
	SourceManual    RunSource = "manual"
	SourceScheduled RunSource = "scheduled"
)

// Run is one execution of the planning engine over a delivery window.
type Run struct {
	ID          int64     `json:"id"`
	ExecutedAt  time.Time `json:"executed_at"`
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
	Source      RunSource `json:"source"`
}

// GrossRequirement is the rounded total demand of a material in a run.
type GrossRequirement struct {
	RunID      int64           `json:"run_id"`
	MaterialID int64           `json:"material_id"`
	Quantity   decimal.Decimal `json:"quantity"`
}

// Suggestion is a proposed purchase for one material of a run.
type Suggestion struct {
	ID          int64           `json:"id"`
	RunID       int64           `json:"run_id"`
	MaterialID  int64           `json:"material_id"`
	SupplierID  int64           `json:"supplier_id"`
	UnitID      int64           `json:"unit_id"`
	Gross       decimal.Decimal `json:"gross"`
	Stock       decimal.Decimal `json:"stock"`
	Net         decimal.Decimal `json:"net"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	OrderDate   time.Time       `json:"order_date"`
	ArrivalDate time.Time       `json:"arrival_date"`
	State       SuggestionState `json:"state"`
	POLineID    int64           `json:"purchase_order_line_id,omitempty"`

	MaterialCode string `json:"material_code,omitempty"`
	MaterialName string `json:"material_name,omitempty"`
	SupplierName string `json:"supplier_name,omitempty"`
	UnitCode     string `json:"unit_code,omitempty"`
}

// RunSummary lists a run with its suggestions and linked customer orders.
type RunSummary struct {
	Run
	OrderIDs    []int64      `json:"order_ids"`
	Suggestions []Suggestion `json:"suggestions"`
}

// RunDetail carries a run with its gross requirements.
type RunDetail struct {
	Run
	OrderIDs     []int64            `json:"order_ids"`
	Requirements []GrossRequirement `json:"requirements"`
}

// ExecuteInput parameterises ExecutePlan.
type ExecuteInput struct {
	Start  time.Time
	End    time.Time
	Source RunSource
}

// ExecuteResult summarises a completed run.
type ExecuteResult struct {
	RunID        int64 `json:"run_id"`
	Orders       int   `json:"orders"`
	Requirements int   `json:"requirements"`
	Suggestions  int   `json:"suggestions"`
	SkippedLines int   `json:"skipped_lines"`
}

// ApprovalResult reports the purchase orders generated by an approval.
type ApprovalResult struct {
	Message         string  `json:"message"`
	OrdersGenerated int     `json:"orders_generated"`
	OrderIDs        []int64 `json:"order_ids"`
}

var (
	// ErrNotFound indicates the run does not exist.
	ErrNotFound = fmt.Errorf("planning: run %w", shared.ErrNotFound)
	// ErrValidation indicates malformed input.
	ErrValidation = fmt.Errorf("planning: %w", shared.ErrValidation)
	// ErrTransaction indicates a storage failure during approval.
	ErrTransaction = fmt.Errorf("planning: %w", shared.ErrTransaction)
)

// ApprovalError reports a failed supplier group together with the orders
// committed by earlier groups.
type ApprovalError struct {
	SupplierID int64
	Created    []int64
	Err        error
}

func (e *ApprovalError) Error() string {
	created := make([]string, len(e.Created))
	for i, id := range e.Created {
		created[i] = fmt.Sprint(id)
	}
	return fmt.Sprintf("planning: approve supplier %d (orders created before failure: [%s]): %v",
		e.SupplierID, strings.Join(created, ","), e.Err)
}

func (e *ApprovalError) Unwrap() []error {
	return []error{ErrTransaction, e.Err}
}

// AsApprovalError extracts an ApprovalError from err.
func AsApprovalError(err error) (*ApprovalError, bool) {
	var target *ApprovalError
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}
