package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the customer order lifecycle state.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusDelivered  Status = "DELIVERED"
	StatusCancelled  Status = "CANCELLED"
)

// Order is a customer order awaiting production.
type Order struct {
	ID            int64           `json:"id"`
	ProductID     int64           `json:"product_id"`
	TotalQuantity decimal.Decimal `json:"total_quantity"`
	DeliveryDate  time.Time       `json:"delivery_date"`
	Status        Status          `json:"status"`
	Lines         []Line          `json:"lines"`
}

// Line is a per-variant quantity inside an order. VariantID is zero when the
// stored reference is missing.
type Line struct {
	ID        int64           `json:"id"`
	OrderID   int64           `json:"order_id"`
	VariantID int64           `json:"variant_id"`
	Quantity  decimal.Decimal `json:"quantity"`
}
