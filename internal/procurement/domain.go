package procurement

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vic4or/sistemaMype-sub000/internal/shared"
)

// Purchase order lifecycle statuses.
type POStatus string

const (
	POStatusIssued    POStatus = "ISSUED"
	POStatusReceived  POStatus = "RECEIVED"
	POStatusCancelled POStatus = "CANCELLED"
)

// Purchase order line fulfillment states.
type LineState string

const (
	LineStatePending   LineState = "PENDING"
	LineStatePartial   LineState = "PARTIAL"
	LineStateFulfilled LineState = "FULFILLED"
)

// PurchaseOrder domain model.
type PurchaseOrder struct {
	ID            int64           `json:"id"`
	Number        int64           `json:"number"`
	SupplierID    int64           `json:"supplier_id"`
	Status        POStatus        `json:"status"`
	IssuedAt      time.Time       `json:"issued_at"`
	ExpectedDate  time.Time       `json:"expected_date"`
	Total         decimal.Decimal `json:"total"`
	PlanningRunID int64           `json:"planning_run_id,omitempty"`
}

// Code renders the display number of the order.
func (po PurchaseOrder) Code() string {
	return FormatNumber(po.Number)
}

// FormatNumber renders a sequential order number for display.
func FormatNumber(number int64) string {
	return fmt.Sprintf("OC-%06d", number)
}

// POLine represents a purchase order line.
type POLine struct {
	ID         int64           `json:"id"`
	POID       int64           `json:"purchase_order_id"`
	MaterialID int64           `json:"material_id"`
	Qty        decimal.Decimal `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	State      LineState       `json:"state"`
}

// LatestLine is the most recent purchase of a material.
type LatestLine struct {
	MaterialID int64
	SupplierID int64
	IssuedAt   time.Time
}

var (
	// ErrNotFound indicates record missing.
	ErrNotFound = fmt.Errorf("procurement: purchase order %w", shared.ErrNotFound)
	// ErrValidation indicates invalid input.
	ErrValidation = fmt.Errorf("procurement: %w", shared.ErrValidation)
)
