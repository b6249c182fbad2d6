package planning

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vic4or/sistemaMype-sub000/internal/masterdata"
	"github.com/vic4or/sistemaMype-sub000/internal/procurement"
	"github.com/vic4or/sistemaMype-sub000/internal/sales/orders"
	"github.com/vic4or/sistemaMype-sub000/internal/shared"
)

// OrderSource supplies pending customer orders.
type OrderSource interface {
	FindPendingOrders(ctx context.Context, start, end time.Time) ([]orders.Order, error)
}

// Catalog exposes the master data read by the engine.
type Catalog interface {
	BaseBOM(ctx context.Context, productID int64) ([]masterdata.BOMLine, error)
	VariantBOM(ctx context.Context, variantID int64) ([]masterdata.BOMLine, error)
	Variant(ctx context.Context, variantID int64) (masterdata.Variant, error)
	Material(ctx context.Context, materialID int64) (masterdata.Material, error)
	MaterialSuppliers(ctx context.Context, materialID int64) ([]masterdata.SupplierLink, error)
	LabelMaterial(ctx context.Context, sizeID, categoryID int64) (int64, bool, error)
}

// PurchaseHistory returns the most recent purchase of a material.
type PurchaseHistory interface {
	LatestLine(ctx context.Context, materialID int64) (procurement.LatestLine, bool, error)
}

// SuggestionCache caches suggestion listings per run.
type SuggestionCache interface {
	BuildKey(ctx context.Context, namespace string, parts ...string) (string, error)
	FetchJSON(ctx context.Context, key string, dest any, loader func(context.Context) (any, error)) error
	Bump(ctx context.Context, namespace string) error
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Metrics records planning telemetry.
type Metrics interface {
	PlanningRun(err error, suggestions int)
	SkippedLine(reason string)
	OrdersGenerated(count int)
}

// RepositoryPort is the planning persistence boundary.
type RepositoryPort interface {
	// WithTx runs fn in a repeatable read transaction.
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	// WithLockingTx runs fn in a read committed transaction so row locks
	// re-read rows committed by a concurrent holder.
	WithLockingTx(ctx context.Context, fn func(context.Context, TxRepository) error) error

	GetRun(ctx context.Context, id int64) (Run, error)
	ListRuns(ctx context.Context, limit, offset int) ([]Run, error)
	CountRuns(ctx context.Context) (int, error)
	RunOrderIDs(ctx context.Context, runIDs []int64) (map[int64][]int64, error)
	ListSuggestions(ctx context.Context, runIDs []int64) (map[int64][]Suggestion, error)
	ListGrossRequirements(ctx context.Context, runID int64) ([]GrossRequirement, error)
}

// TxRepository is the write surface bound to one transaction.
type TxRepository interface {
	CreateRun(ctx context.Context, run Run) (int64, error)
	LinkOrder(ctx context.Context, runID, orderID int64) error
	InsertGrossRequirement(ctx context.Context, req GrossRequirement) error
	InsertSuggestion(ctx context.Context, s Suggestion) (int64, error)

	// LockPendingSuggestions locks and returns the pending suggestions of the
	// run among ids.
	LockPendingSuggestions(ctx context.Context, runID int64, ids []int64) ([]Suggestion, error)
	MarkOrderGenerated(ctx context.Context, suggestionID, poLineID int64) error

	NextPurchaseOrderNumber(ctx context.Context) (int64, error)
	CreatePurchaseOrder(ctx context.Context, po procurement.PurchaseOrder) (int64, error)
	CreatePurchaseOrderLine(ctx context.Context, line procurement.POLine) (int64, error)
	SetPurchaseOrderTotal(ctx context.Context, poID int64, total decimal.Decimal) error
}
