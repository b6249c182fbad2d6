package procurement

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/vic4or/sistemaMype-sub000/internal/platform/db"
)

// numberLockKey is the advisory lock serialising order number allocation.
const numberLockKey int64 = 0x4f43_4e554d // "OCNUM"

// Writer persists purchase orders inside a caller-owned transaction.
type Writer struct {
	q db.Querier
}

// NewWriter binds a writer to q, normally a pgx.Tx.
func NewWriter(q db.Querier) *Writer {
	return &Writer{q: q}
}

// NextNumber allocates the next sequential order number. The advisory lock is
// held until the surrounding transaction ends, so concurrent allocators queue
// behind the first and read its committed maximum. The transaction must run at
// READ COMMITTED for the second reader to observe that commit.
func (w *Writer) NextNumber(ctx context.Context) (int64, error) {
	if _, err := w.q.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, numberLockKey); err != nil {
		return 0, fmt.Errorf("procurement: lock numbering: %w", err)
	}
	var next int64
	if err := w.q.QueryRow(ctx, `SELECT COALESCE(MAX(number), 0) + 1 FROM purchase_orders`).Scan(&next); err != nil {
		return 0, fmt.Errorf("procurement: next number: %w", err)
	}
	return next, nil
}

// CreateOrder inserts the purchase order header.
func (w *Writer) CreateOrder(ctx context.Context, po PurchaseOrder) (int64, error) {
	if po.SupplierID == 0 || po.Number == 0 {
		return 0, ErrValidation
	}
	var runID *int64
	if po.PlanningRunID != 0 {
		runID = &po.PlanningRunID
	}
	var id int64
	err := w.q.QueryRow(ctx, `INSERT INTO purchase_orders (number, supplier_id, status, issued_at, expected_date, total, planning_run_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		po.Number, po.SupplierID, po.Status, po.IssuedAt, po.ExpectedDate, po.Total, runID).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("procurement: insert order %d: %w", po.Number, err)
	}
	return id, nil
}

// CreateLine inserts a purchase order line and returns its id.
func (w *Writer) CreateLine(ctx context.Context, line POLine) (int64, error) {
	if line.POID == 0 || line.MaterialID == 0 {
		return 0, ErrValidation
	}
	var id int64
	err := w.q.QueryRow(ctx, `INSERT INTO purchase_order_lines (purchase_order_id, material_id, quantity, unit_price, subtotal, state)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		line.POID, line.MaterialID, line.Qty, line.UnitPrice, line.Subtotal, line.State).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("procurement: insert line: %w", err)
	}
	return id, nil
}

// SetTotal stores the order total.
func (w *Writer) SetTotal(ctx context.Context, poID int64, total decimal.Decimal) error {
	tag, err := w.q.Exec(ctx, `UPDATE purchase_orders SET total = $2 WHERE id = $1`, poID, total)
	if err != nil {
		return fmt.Errorf("procurement: set total: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
