package orders

import (
	"context"
	"time"

	"github.com/vic4or/sistemaMype-sub000/internal/platform/db"
)

// Repository reads customer orders from PostgreSQL.
type Repository struct {
	db db.Querier
}

// NewRepository constructs the order source.
func NewRepository(q db.Querier) *Repository {
	return &Repository{db: q}
}

// FindPendingOrders returns pending orders whose delivery date falls within
// [start, end], ordered by delivery date, with their lines attached.
func (r *Repository) FindPendingOrders(ctx context.Context, start, end time.Time) ([]Order, error) {
	query := `SELECT id, product_id, total_quantity, delivery_date, status
		FROM orders
		WHERE status = $1 AND delivery_date BETWEEN $2 AND $3 AND deleted_at IS NULL
		ORDER BY delivery_date, id`
	rows, err := r.db.Query(ctx, query, StatusPending, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []Order
	var ids []int64
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.ProductID, &o.TotalQuantity, &o.DeliveryDate, &o.Status); err != nil {
			return nil, err
		}
		orders = append(orders, o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return orders, nil
	}

	lines, err := r.linesFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	return attachLines(orders, lines), nil
}

func (r *Repository) linesFor(ctx context.Context, orderIDs []int64) ([]Line, error) {
	query := `SELECT id, order_id, COALESCE(variant_id, 0), quantity
		FROM order_lines
		WHERE order_id = ANY($1) AND deleted_at IS NULL
		ORDER BY order_id, id`
	rows, err := r.db.Query(ctx, query, orderIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.OrderID, &l.VariantID, &l.Quantity); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func attachLines(orders []Order, lines []Line) []Order {
	index := make(map[int64]int, len(orders))
	for i, o := range orders {
		index[o.ID] = i
	}
	for _, l := range lines {
		if i, ok := index[l.OrderID]; ok {
			orders[i].Lines = append(orders[i].Lines, l)
		}
	}
	return orders
}
