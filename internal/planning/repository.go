package planning

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/vic4or/sistemaMype-sub000/internal/platform/db"
	"github.com/vic4or/sistemaMype-sub000/internal/procurement"
	"github.com/vic4or/sistemaMype-sub000/internal/shared"
)

// Pool is satisfied by *pgxpool.Pool.
type Pool interface {
	db.Querier
	db.TxBeginner
}

// Repository persists planning runs in PostgreSQL.
type Repository struct {
	pool Pool
}

// NewRepository constructs a repository backed by pool.
func NewRepository(pool Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepo struct {
	tx     pgx.Tx
	orders *procurement.Writer
}

// WithTx runs fn inside a repeatable read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx, orders: procurement.NewWriter(tx)})
	})
}

// WithLockingTx runs fn inside a read committed transaction.
func (r *Repository) WithLockingTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTxOptions(ctx, r.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx, orders: procurement.NewWriter(tx)})
	})
}

const runColumns = `id, executed_at, window_start, window_end, source`

func scanRun(row pgx.Row) (Run, error) {
	var run Run
	err := row.Scan(&run.ID, &run.ExecutedAt, &run.WindowStart, &run.WindowEnd, &run.Source)
	return run, err
}

// GetRun loads a run by id.
func (r *Repository) GetRun(ctx context.Context, id int64) (Run, error) {
	run, err := scanRun(r.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM planning_runs WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Run{}, ErrNotFound
	}
	if err != nil {
		return Run{}, fmt.Errorf("planning: get run %d: %w", id, err)
	}
	return run, nil
}

// ListRuns pages runs most recent first.
func (r *Repository) ListRuns(ctx context.Context, limit, offset int) ([]Run, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+runColumns+` FROM planning_runs
		ORDER BY executed_at DESC, id DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("planning: list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// CountRuns returns the number of runs.
func (r *Repository) CountRuns(ctx context.Context) (int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM planning_runs`).Scan(&total); err != nil {
		return 0, fmt.Errorf("planning: count runs: %w", err)
	}
	return total, nil
}

// RunOrderIDs returns the linked customer orders per run.
func (r *Repository) RunOrderIDs(ctx context.Context, runIDs []int64) (map[int64][]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT run_id, order_id FROM planning_run_orders
		WHERE run_id = ANY($1) ORDER BY run_id, order_id`, runIDs)
	if err != nil {
		return nil, fmt.Errorf("planning: run orders: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][]int64, len(runIDs))
	for rows.Next() {
		var runID, orderID int64
		if err := rows.Scan(&runID, &orderID); err != nil {
			return nil, err
		}
		out[runID] = append(out[runID], orderID)
	}
	return out, rows.Err()
}

// ListSuggestions returns suggestions per run with material, supplier and
// unit display data.
func (r *Repository) ListSuggestions(ctx context.Context, runIDs []int64) (map[int64][]Suggestion, error) {
	rows, err := r.pool.Query(ctx, `SELECT s.id, s.run_id, s.material_id, s.supplier_id, COALESCE(s.unit_id, 0),
			s.gross, s.stock, s.net, s.quantity, s.unit_price, s.order_date, s.arrival_date, s.state,
			COALESCE(s.purchase_order_line_id, 0),
			m.code, m.name, COALESCE(sp.name, ''), COALESCE(u.code, '')
		FROM planning_suggestions s
		JOIN materials m ON m.id = s.material_id
		LEFT JOIN suppliers sp ON sp.id = s.supplier_id
		LEFT JOIN units u ON u.id = s.unit_id
		WHERE s.run_id = ANY($1)
		ORDER BY s.run_id, s.id`, runIDs)
	if err != nil {
		return nil, fmt.Errorf("planning: list suggestions: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][]Suggestion, len(runIDs))
	for rows.Next() {
		var sg Suggestion
		if err := rows.Scan(&sg.ID, &sg.RunID, &sg.MaterialID, &sg.SupplierID, &sg.UnitID,
			&sg.Gross, &sg.Stock, &sg.Net, &sg.Quantity, &sg.UnitPrice, &sg.OrderDate, &sg.ArrivalDate, &sg.State,
			&sg.POLineID, &sg.MaterialCode, &sg.MaterialName, &sg.SupplierName, &sg.UnitCode); err != nil {
			return nil, err
		}
		out[sg.RunID] = append(out[sg.RunID], sg)
	}
	return out, rows.Err()
}

// ListGrossRequirements returns the gross requirements of a run.
func (r *Repository) ListGrossRequirements(ctx context.Context, runID int64) ([]GrossRequirement, error) {
	rows, err := r.pool.Query(ctx, `SELECT run_id, material_id, quantity FROM planning_gross_requirements
		WHERE run_id = $1 ORDER BY material_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("planning: gross requirements: %w", err)
	}
	defer rows.Close()

	var reqs []GrossRequirement
	for rows.Next() {
		var req GrossRequirement
		if err := rows.Scan(&req.RunID, &req.MaterialID, &req.Quantity); err != nil {
			return nil, err
		}
		reqs = append(reqs, req)
	}
	return reqs, rows.Err()
}

func (t *txRepo) CreateRun(ctx context.Context, run Run) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO planning_runs (executed_at, window_start, window_end, source)
		VALUES ($1, $2, $3, $4) RETURNING id`, run.ExecutedAt, run.WindowStart, run.WindowEnd, run.Source).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("planning: insert run: %w", err)
	}
	return id, nil
}

func (t *txRepo) LinkOrder(ctx context.Context, runID, orderID int64) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO planning_run_orders (run_id, order_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, runID, orderID)
	if err != nil {
		return fmt.Errorf("planning: link order %d: %w", orderID, err)
	}
	return nil
}

func (t *txRepo) InsertGrossRequirement(ctx context.Context, req GrossRequirement) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO planning_gross_requirements (run_id, material_id, quantity)
		VALUES ($1, $2, $3)`, req.RunID, req.MaterialID, req.Quantity)
	if db.IsUniqueViolation(err) {
		return fmt.Errorf("planning: duplicate requirement for material %d: %w", req.MaterialID, shared.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("planning: insert requirement: %w", err)
	}
	return nil
}

func (t *txRepo) InsertSuggestion(ctx context.Context, s Suggestion) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO planning_suggestions
		(run_id, material_id, supplier_id, unit_id, gross, stock, net, quantity, unit_price, order_date, arrival_date, state)
		VALUES ($1, $2, $3, NULLIF($4::bigint, 0), $5, $6, $7, $8, $9, $10, $11, $12) RETURNING id`,
		s.RunID, s.MaterialID, s.SupplierID, s.UnitID, s.Gross, s.Stock, s.Net, s.Quantity, s.UnitPrice,
		s.OrderDate, s.ArrivalDate, s.State).Scan(&id)
	if db.IsUniqueViolation(err) {
		return 0, fmt.Errorf("planning: duplicate suggestion for material %d: %w", s.MaterialID, shared.ErrConflict)
	}
	if err != nil {
		return 0, fmt.Errorf("planning: insert suggestion: %w", err)
	}
	return id, nil
}

func (t *txRepo) LockPendingSuggestions(ctx context.Context, runID int64, ids []int64) ([]Suggestion, error) {
	rows, err := t.tx.Query(ctx, `SELECT id, run_id, material_id, supplier_id, COALESCE(unit_id, 0),
			gross, stock, net, quantity, unit_price, order_date, arrival_date, state
		FROM planning_suggestions
		WHERE run_id = $1 AND id = ANY($2) AND state = $3
		ORDER BY id
		FOR UPDATE`, runID, ids, StatePending)
	if err != nil {
		return nil, fmt.Errorf("planning: lock suggestions: %w", err)
	}
	defer rows.Close()

	var out []Suggestion
	for rows.Next() {
		var sg Suggestion
		if err := rows.Scan(&sg.ID, &sg.RunID, &sg.MaterialID, &sg.SupplierID, &sg.UnitID,
			&sg.Gross, &sg.Stock, &sg.Net, &sg.Quantity, &sg.UnitPrice, &sg.OrderDate, &sg.ArrivalDate, &sg.State); err != nil {
			return nil, err
		}
		out = append(out, sg)
	}
	return out, rows.Err()
}

func (t *txRepo) MarkOrderGenerated(ctx context.Context, suggestionID, poLineID int64) error {
	tag, err := t.tx.Exec(ctx, `UPDATE planning_suggestions SET state = $2, purchase_order_line_id = $3
		WHERE id = $1 AND state = $4`, suggestionID, StateOrderGenerated, poLineID, StatePending)
	if err != nil {
		return fmt.Errorf("planning: mark suggestion %d: %w", suggestionID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("planning: suggestion %d no longer pending: %w", suggestionID, shared.ErrConflict)
	}
	return nil
}

func (t *txRepo) NextPurchaseOrderNumber(ctx context.Context) (int64, error) {
	return t.orders.NextNumber(ctx)
}

func (t *txRepo) CreatePurchaseOrder(ctx context.Context, po procurement.PurchaseOrder) (int64, error) {
	return t.orders.CreateOrder(ctx, po)
}

func (t *txRepo) CreatePurchaseOrderLine(ctx context.Context, line procurement.POLine) (int64, error) {
	return t.orders.CreateLine(ctx, line)
}

func (t *txRepo) SetPurchaseOrderTotal(ctx context.Context, poID int64, total decimal.Decimal) error {
	return t.orders.SetTotal(ctx, poID, total)
}
