package planning

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vic4or/sistemaMype-sub000/internal/procurement"
	"github.com/vic4or/sistemaMype-sub000/internal/shared"
)

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

// Config tunes the engine. A zero ClusterToleranceDays clusters only orders
// due on the same day; start from DefaultConfig for the usual one-day window.
type Config struct {
	LabelCategoryID      int64
	DaysPerOrder         int
	ClusterToleranceDays int
	SingleYieldDivision  bool
	PrefetchConcurrency  int
}

// DefaultConfig returns the engine defaults. LabelCategoryID has no default.
func DefaultConfig() Config {
	return Config{
		DaysPerOrder:         defaultDaysPerOrder,
		ClusterToleranceDays: defaultToleranceDays,
		PrefetchConcurrency:  defaultPrefetchConcurrency,
	}
}

// Dependencies collects the collaborators of Service.
type Dependencies struct {
	Repo    RepositoryPort
	Orders  OrderSource
	Catalog Catalog
	History PurchaseHistory
	Cache   SuggestionCache
	Audit   AuditPort
	Metrics Metrics
	Logger  *slog.Logger
	Config  Config
}

// Service orchestrates planning runs and their approval.
type Service struct {
	repo    RepositoryPort
	orders  OrderSource
	catalog Catalog
	history PurchaseHistory
	cache   SuggestionCache
	audit   AuditPort
	metrics Metrics
	logger  *slog.Logger
	cfg     Config
	now     func() time.Time
}

// NewService constructs the planning service.
func NewService(deps Dependencies) *Service {
	cfg := deps.Config
	if cfg.DaysPerOrder <= 0 {
		cfg.DaysPerOrder = defaultDaysPerOrder
	}
	if cfg.ClusterToleranceDays < 0 {
		cfg.ClusterToleranceDays = defaultToleranceDays
	}
	if cfg.PrefetchConcurrency <= 0 {
		cfg.PrefetchConcurrency = defaultPrefetchConcurrency
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:    deps.Repo,
		orders:  deps.Orders,
		catalog: deps.Catalog,
		history: deps.History,
		cache:   deps.Cache,
		audit:   deps.Audit,
		metrics: deps.Metrics,
		logger:  logger,
		cfg:     cfg,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// ExecutePlan aggregates, nets and schedules demand for pending orders due
// within [Start, End] and persists the run atomically.
func (s *Service) ExecutePlan(ctx context.Context, in ExecuteInput) (ExecuteResult, error) {
	result, err := s.executePlan(ctx, in)
	if s.metrics != nil {
		s.metrics.PlanningRun(err, result.Suggestions)
	}
	return result, err
}

func (s *Service) executePlan(ctx context.Context, in ExecuteInput) (ExecuteResult, error) {
	if in.Start.IsZero() || in.End.IsZero() {
		return ExecuteResult{}, fmt.Errorf("%w: start and end dates are required", ErrValidation)
	}
	start, end := truncateDay(in.Start), truncateDay(in.End)
	if end.Before(start) {
		return ExecuteResult{}, fmt.Errorf("%w: end date before start date", ErrValidation)
	}
	source := in.Source
	if source == "" {
		source = SourceManual
	}

	pending, err := s.orders.FindPendingOrders(ctx, start, end)
	if err != nil {
		return ExecuteResult{}, fmt.Errorf("planning: load pending orders: %w", err)
	}

	agg := newAggregator(s.catalog, s.cfg.LabelCategoryID, s.logger, s.metrics)
	demand, err := agg.Aggregate(ctx, pending)
	if err != nil {
		return ExecuteResult{}, err
	}

	n := netter{
		singleYield: s.cfg.SingleYieldDivision,
		scheduler:   scheduler{DaysPerOrder: s.cfg.DaysPerOrder, ToleranceDays: s.cfg.ClusterToleranceDays},
		logger:      s.logger,
		metrics:     s.metrics,
	}
	sources, err := prefetchSourcing(ctx, s.catalog, s.history, n.Shortfalls(demand, agg.materials), s.cfg.PrefetchConcurrency)
	if err != nil {
		return ExecuteResult{}, err
	}
	p := n.Net(demand, agg.materials, sources)

	run := Run{ExecutedAt: s.now(), WindowStart: start, WindowEnd: end, Source: source}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.CreateRun(ctx, run)
		if err != nil {
			return err
		}
		run.ID = id
		for _, orderID := range demand.OrderIDs {
			if err := tx.LinkOrder(ctx, id, orderID); err != nil {
				return err
			}
		}
		for _, req := range p.Requirements {
			req.RunID = id
			if err := tx.InsertGrossRequirement(ctx, req); err != nil {
				return err
			}
		}
		for _, sg := range p.Suggestions {
			sg.RunID = id
			if _, err := tx.InsertSuggestion(ctx, sg); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return ExecuteResult{}, fmt.Errorf("planning: persist run: %w", err)
	}

	result := ExecuteResult{
		RunID:        run.ID,
		Orders:       len(demand.OrderIDs),
		Requirements: len(p.Requirements),
		Suggestions:  len(p.Suggestions),
		SkippedLines: demand.Skipped,
	}
	s.logger.Info("planning run completed",
		slog.Int64("run_id", run.ID),
		slog.String("source", string(source)),
		slog.Int("orders", result.Orders),
		slog.Int("requirements", result.Requirements),
		slog.Int("suggestions", result.Suggestions),
		slog.Int("skipped_lines", result.SkippedLines))
	s.record(ctx, shared.AuditLog{
		Action:   "planning.run.executed",
		Entity:   "planning_run",
		EntityID: strconv.FormatInt(run.ID, 10),
		Meta: map[string]any{
			"source":       source,
			"window_start": start.Format("2006-01-02"),
			"window_end":   end.Format("2006-01-02"),
			"suggestions":  result.Suggestions,
		},
	})
	return result, nil
}

func suggestionNamespace(runID int64) string {
	return "planning:run:" + strconv.FormatInt(runID, 10)
}

// GetSuggestions returns the enriched suggestions of a run.
func (s *Service) GetSuggestions(ctx context.Context, runID int64) ([]Suggestion, error) {
	if runID <= 0 {
		return nil, fmt.Errorf("%w: invalid run id", ErrValidation)
	}
	if _, err := s.repo.GetRun(ctx, runID); err != nil {
		return nil, err
	}
	load := func(ctx context.Context) (any, error) {
		byRun, err := s.repo.ListSuggestions(ctx, []int64{runID})
		if err != nil {
			return nil, err
		}
		list := byRun[runID]
		if list == nil {
			list = []Suggestion{}
		}
		return list, nil
	}
	if s.cache == nil {
		list, err := load(ctx)
		if err != nil {
			return nil, err
		}
		return list.([]Suggestion), nil
	}
	key, err := s.cache.BuildKey(ctx, suggestionNamespace(runID), "suggestions")
	if err != nil {
		s.logger.Warn("planning cache key", slog.Int64("run_id", runID), slog.Any("error", err))
		list, err := load(ctx)
		if err != nil {
			return nil, err
		}
		return list.([]Suggestion), nil
	}
	var out []Suggestion
	if err := s.cache.FetchJSON(ctx, key, &out, load); err != nil {
		return nil, err
	}
	return out, nil
}

// GetRun returns a run with its gross requirements and linked orders.
func (s *Service) GetRun(ctx context.Context, runID int64) (RunDetail, error) {
	if runID <= 0 {
		return RunDetail{}, fmt.Errorf("%w: invalid run id", ErrValidation)
	}
	run, err := s.repo.GetRun(ctx, runID)
	if err != nil {
		return RunDetail{}, err
	}
	reqs, err := s.repo.ListGrossRequirements(ctx, runID)
	if err != nil {
		return RunDetail{}, err
	}
	orderIDs, err := s.repo.RunOrderIDs(ctx, []int64{runID})
	if err != nil {
		return RunDetail{}, err
	}
	detail := RunDetail{Run: run, OrderIDs: orderIDs[runID], Requirements: reqs}
	if detail.OrderIDs == nil {
		detail.OrderIDs = []int64{}
	}
	if detail.Requirements == nil {
		detail.Requirements = []GrossRequirement{}
	}
	return detail, nil
}

// ListRuns returns runs most recent first with their suggestions and linked
// orders.
func (s *Service) ListRuns(ctx context.Context, page, perPage int) ([]RunSummary, shared.Pagination, error) {
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	if page <= 0 {
		page = 1
	}
	total, err := s.repo.CountRuns(ctx)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	pagination := shared.NewPagination(page, perPage, total)

	runs, err := s.repo.ListRuns(ctx, perPage, (page-1)*perPage)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	ids := make([]int64, len(runs))
	for i, r := range runs {
		ids[i] = r.ID
	}
	summaries := make([]RunSummary, 0, len(runs))
	if len(ids) == 0 {
		return summaries, pagination, nil
	}
	orderIDs, err := s.repo.RunOrderIDs(ctx, ids)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	suggestions, err := s.repo.ListSuggestions(ctx, ids)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	for _, r := range runs {
		sum := RunSummary{Run: r, OrderIDs: orderIDs[r.ID], Suggestions: suggestions[r.ID]}
		if sum.OrderIDs == nil {
			sum.OrderIDs = []int64{}
		}
		if sum.Suggestions == nil {
			sum.Suggestions = []Suggestion{}
		}
		summaries = append(summaries, sum)
	}
	return summaries, pagination, nil
}

// ApproveSuggestions turns the selected pending suggestions of a run into
// one purchase order per supplier. Each supplier group commits on its own;
// suggestions already ordered or outside the run are ignored.
func (s *Service) ApproveSuggestions(ctx context.Context, runID int64, ids []int64) (ApprovalResult, error) {
	if runID <= 0 {
		return ApprovalResult{}, fmt.Errorf("%w: invalid run id", ErrValidation)
	}
	if len(ids) == 0 {
		return ApprovalResult{}, fmt.Errorf("%w: no suggestions selected", ErrValidation)
	}
	if _, err := s.repo.GetRun(ctx, runID); err != nil {
		return ApprovalResult{}, err
	}

	groups, err := s.pendingBySupplier(ctx, runID, ids)
	if err != nil {
		return ApprovalResult{}, err
	}
	suppliers := make([]int64, 0, len(groups))
	for id := range groups {
		suppliers = append(suppliers, id)
	}
	sort.Slice(suppliers, func(i, j int) bool { return suppliers[i] < suppliers[j] })

	created := make([]int64, 0, len(suppliers))
	for _, supplierID := range suppliers {
		poID, err := s.approveGroup(ctx, runID, supplierID, groups[supplierID])
		if err != nil {
			s.logger.Error("planning approval group failed",
				slog.Int64("run_id", runID),
				slog.Int64("supplier_id", supplierID),
				slog.Any("created_orders", created),
				slog.Any("error", err))
			s.afterApproval(ctx, runID, len(created))
			return ApprovalResult{}, &ApprovalError{SupplierID: supplierID, Created: created, Err: err}
		}
		if poID != 0 {
			created = append(created, poID)
			s.record(ctx, shared.AuditLog{
				Action:   "planning.suggestions.approved",
				Entity:   "purchase_order",
				EntityID: strconv.FormatInt(poID, 10),
				Meta:     map[string]any{"run_id": runID, "supplier_id": supplierID},
			})
		}
	}
	s.afterApproval(ctx, runID, len(created))

	s.logger.Info("planning suggestions approved",
		slog.Int64("run_id", runID),
		slog.Int("selected", len(ids)),
		slog.Int("orders", len(created)))
	return ApprovalResult{
		Message:         fmt.Sprintf("%d purchase orders generated", len(created)),
		OrdersGenerated: len(created),
		OrderIDs:        created,
	}, nil
}

// pendingBySupplier groups the selected pending suggestion ids by supplier.
func (s *Service) pendingBySupplier(ctx context.Context, runID int64, ids []int64) (map[int64][]int64, error) {
	selected := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		selected[id] = struct{}{}
	}
	byRun, err := s.repo.ListSuggestions(ctx, []int64{runID})
	if err != nil {
		return nil, err
	}
	groups := make(map[int64][]int64)
	for _, sg := range byRun[runID] {
		if _, ok := selected[sg.ID]; !ok || sg.State != StatePending {
			continue
		}
		groups[sg.SupplierID] = append(groups[sg.SupplierID], sg.ID)
	}
	return groups, nil
}

// approveGroup writes one purchase order for a supplier group. It returns a
// zero id when a concurrent approval already took every suggestion.
func (s *Service) approveGroup(ctx context.Context, runID, supplierID int64, ids []int64) (int64, error) {
	var poID int64
	err := s.repo.WithLockingTx(ctx, func(ctx context.Context, tx TxRepository) error {
		locked, err := tx.LockPendingSuggestions(ctx, runID, ids)
		if err != nil {
			return err
		}
		if len(locked) == 0 {
			return nil
		}
		number, err := tx.NextPurchaseOrderNumber(ctx)
		if err != nil {
			return err
		}
		expected := locked[0].ArrivalDate
		for _, sg := range locked[1:] {
			if sg.ArrivalDate.Before(expected) {
				expected = sg.ArrivalDate
			}
		}
		id, err := tx.CreatePurchaseOrder(ctx, procurement.PurchaseOrder{
			Number:        number,
			SupplierID:    supplierID,
			Status:        procurement.POStatusIssued,
			IssuedAt:      s.now(),
			ExpectedDate:  expected,
			Total:         decimal.Zero,
			PlanningRunID: runID,
		})
		if err != nil {
			return err
		}

		total := decimal.Zero
		for _, sg := range locked {
			subtotal := sg.Quantity.Mul(sg.UnitPrice)
			lineID, err := tx.CreatePurchaseOrderLine(ctx, procurement.POLine{
				POID:       id,
				MaterialID: sg.MaterialID,
				Qty:        sg.Quantity,
				UnitPrice:  sg.UnitPrice,
				Subtotal:   subtotal,
				State:      procurement.LineStatePending,
			})
			if err != nil {
				return err
			}
			if err := tx.MarkOrderGenerated(ctx, sg.ID, lineID); err != nil {
				return err
			}
			total = total.Add(subtotal)
		}
		if err := tx.SetPurchaseOrderTotal(ctx, id, total); err != nil {
			return err
		}
		poID = id
		return nil
	})
	if err != nil {
		return 0, err
	}
	return poID, nil
}

func (s *Service) afterApproval(ctx context.Context, runID int64, orders int) {
	if orders == 0 {
		return
	}
	if s.metrics != nil {
		s.metrics.OrdersGenerated(orders)
	}
	if s.cache != nil {
		if err := s.cache.Bump(ctx, suggestionNamespace(runID)); err != nil {
			s.logger.Warn("planning cache invalidate", slog.Int64("run_id", runID), slog.Any("error", err))
		}
	}
}

func (s *Service) record(ctx context.Context, log shared.AuditLog) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, log); err != nil {
		s.logger.Warn("planning audit", slog.String("action", log.Action), slog.Any("error", err))
	}
}
