package procurement

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/vic4or/sistemaMype-sub000/internal/platform/db"
)

// Repository reads purchase orders from PostgreSQL.
type Repository struct {
	db db.Querier
}

// NewRepository constructs the read side.
func NewRepository(q db.Querier) *Repository {
	return &Repository{db: q}
}

// GetOrder loads an order with its lines.
func (r *Repository) GetOrder(ctx context.Context, id int64) (PurchaseOrder, []POLine, error) {
	var po PurchaseOrder
	err := r.db.QueryRow(ctx, `SELECT id, number, supplier_id, status, issued_at, expected_date, total, COALESCE(planning_run_id, 0)
		FROM purchase_orders WHERE id = $1`, id).
		Scan(&po.ID, &po.Number, &po.SupplierID, &po.Status, &po.IssuedAt, &po.ExpectedDate, &po.Total, &po.PlanningRunID)
	if errors.Is(err, pgx.ErrNoRows) {
		return PurchaseOrder{}, nil, ErrNotFound
	}
	if err != nil {
		return PurchaseOrder{}, nil, fmt.Errorf("procurement: get order %d: %w", id, err)
	}

	rows, err := r.db.Query(ctx, `SELECT id, purchase_order_id, material_id, quantity, unit_price, subtotal, state
		FROM purchase_order_lines WHERE purchase_order_id = $1 ORDER BY id`, id)
	if err != nil {
		return PurchaseOrder{}, nil, fmt.Errorf("procurement: order lines %d: %w", id, err)
	}
	defer rows.Close()

	var lines []POLine
	for rows.Next() {
		var l POLine
		if err := rows.Scan(&l.ID, &l.POID, &l.MaterialID, &l.Qty, &l.UnitPrice, &l.Subtotal, &l.State); err != nil {
			return PurchaseOrder{}, nil, err
		}
		lines = append(lines, l)
	}
	return po, lines, rows.Err()
}

// LatestLine returns the most recently issued purchase of materialID.
func (r *Repository) LatestLine(ctx context.Context, materialID int64) (LatestLine, bool, error) {
	var l LatestLine
	err := r.db.QueryRow(ctx, `SELECT pol.material_id, po.supplier_id, po.issued_at
		FROM purchase_order_lines pol
		JOIN purchase_orders po ON po.id = pol.purchase_order_id
		WHERE pol.material_id = $1 AND po.status <> $2
		ORDER BY po.issued_at DESC, pol.id DESC
		LIMIT 1`, materialID, POStatusCancelled).Scan(&l.MaterialID, &l.SupplierID, &l.IssuedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return LatestLine{}, false, nil
	}
	if err != nil {
		return LatestLine{}, false, fmt.Errorf("procurement: latest line for material %d: %w", materialID, err)
	}
	return l, true, nil
}
