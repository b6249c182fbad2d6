package planning

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vic4or/sistemaMype-sub000/internal/masterdata"
	"github.com/vic4or/sistemaMype-sub000/internal/procurement"
	"github.com/vic4or/sistemaMype-sub000/internal/sales/orders"
	"github.com/vic4or/sistemaMype-sub000/internal/shared"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type memoryState struct {
	runs         map[int64]Run
	runOrders    map[int64][]int64
	requirements map[int64][]GrossRequirement
	suggestions  map[int64]Suggestion
	orders       map[int64]procurement.PurchaseOrder
	lines        map[int64]procurement.POLine
	nextID       int64
}

func newMemoryState() *memoryState {
	return &memoryState{
		runs:         make(map[int64]Run),
		runOrders:    make(map[int64][]int64),
		requirements: make(map[int64][]GrossRequirement),
		suggestions:  make(map[int64]Suggestion),
		orders:       make(map[int64]procurement.PurchaseOrder),
		lines:        make(map[int64]procurement.POLine),
	}
}

func (s *memoryState) clone() *memoryState {
	c := newMemoryState()
	c.nextID = s.nextID
	for k, v := range s.runs {
		c.runs[k] = v
	}
	for k, v := range s.runOrders {
		c.runOrders[k] = append([]int64(nil), v...)
	}
	for k, v := range s.requirements {
		c.requirements[k] = append([]GrossRequirement(nil), v...)
	}
	for k, v := range s.suggestions {
		c.suggestions[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.lines {
		c.lines[k] = v
	}
	return c
}

func (s *memoryState) id() int64 {
	s.nextID++
	return s.nextID
}

// memoryPlanningRepo serialises transactions and discards their changes on error.
type memoryPlanningRepo struct {
	mu    sync.Mutex
	state *memoryState

	failInsertSuggestion error
	failOrderForSupplier int64
}

type memoryPlanningTx struct {
	repo  *memoryPlanningRepo
	state *memoryState
}

func newMemoryPlanningRepo() *memoryPlanningRepo {
	return &memoryPlanningRepo{state: newMemoryState()}
}

func (r *memoryPlanningRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	work := r.state.clone()
	if err := fn(ctx, &memoryPlanningTx{repo: r, state: work}); err != nil {
		return err
	}
	r.state = work
	return nil
}

func (r *memoryPlanningRepo) WithLockingTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return r.WithTx(ctx, fn)
}

func (r *memoryPlanningRepo) GetRun(ctx context.Context, id int64) (Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.state.runs[id]
	if !ok {
		return Run{}, ErrNotFound
	}
	return run, nil
}

func (r *memoryPlanningRepo) ListRuns(ctx context.Context, limit, offset int) ([]Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	runs := make([]Run, 0, len(r.state.runs))
	for _, run := range r.state.runs {
		runs = append(runs, run)
	}
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].ExecutedAt.Equal(runs[j].ExecutedAt) {
			return runs[i].ID > runs[j].ID
		}
		return runs[i].ExecutedAt.After(runs[j].ExecutedAt)
	})
	if offset >= len(runs) {
		return nil, nil
	}
	runs = runs[offset:]
	if len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

func (r *memoryPlanningRepo) CountRuns(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.state.runs), nil
}

func (r *memoryPlanningRepo) RunOrderIDs(ctx context.Context, runIDs []int64) (map[int64][]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[int64][]int64)
	for _, id := range runIDs {
		if ids, ok := r.state.runOrders[id]; ok {
			out[id] = append([]int64(nil), ids...)
		}
	}
	return out, nil
}

func (r *memoryPlanningRepo) ListSuggestions(ctx context.Context, runIDs []int64) (map[int64][]Suggestion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	wanted := make(map[int64]struct{}, len(runIDs))
	for _, id := range runIDs {
		wanted[id] = struct{}{}
	}
	out := make(map[int64][]Suggestion)
	for _, sg := range r.state.suggestions {
		if _, ok := wanted[sg.RunID]; ok {
			out[sg.RunID] = append(out[sg.RunID], sg)
		}
	}
	for id := range out {
		list := out[id]
		sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	}
	return out, nil
}

func (r *memoryPlanningRepo) ListGrossRequirements(ctx context.Context, runID int64) ([]GrossRequirement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]GrossRequirement(nil), r.state.requirements[runID]...), nil
}

func (r *memoryPlanningRepo) snapshot() *memoryState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.clone()
}

func (t *memoryPlanningTx) CreateRun(ctx context.Context, run Run) (int64, error) {
	run.ID = t.state.id()
	t.state.runs[run.ID] = run
	return run.ID, nil
}

func (t *memoryPlanningTx) LinkOrder(ctx context.Context, runID, orderID int64) error {
	for _, id := range t.state.runOrders[runID] {
		if id == orderID {
			return nil
		}
	}
	t.state.runOrders[runID] = append(t.state.runOrders[runID], orderID)
	return nil
}

func (t *memoryPlanningTx) InsertGrossRequirement(ctx context.Context, req GrossRequirement) error {
	for _, existing := range t.state.requirements[req.RunID] {
		if existing.MaterialID == req.MaterialID {
			return shared.ErrConflict
		}
	}
	t.state.requirements[req.RunID] = append(t.state.requirements[req.RunID], req)
	return nil
}

func (t *memoryPlanningTx) InsertSuggestion(ctx context.Context, s Suggestion) (int64, error) {
	if t.repo.failInsertSuggestion != nil {
		return 0, t.repo.failInsertSuggestion
	}
	for _, existing := range t.state.suggestions {
		if existing.RunID == s.RunID && existing.MaterialID == s.MaterialID {
			return 0, shared.ErrConflict
		}
	}
	s.ID = t.state.id()
	t.state.suggestions[s.ID] = s
	return s.ID, nil
}

func (t *memoryPlanningTx) LockPendingSuggestions(ctx context.Context, runID int64, ids []int64) ([]Suggestion, error) {
	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	var out []Suggestion
	for _, id := range sorted {
		sg, ok := t.state.suggestions[id]
		if ok && sg.RunID == runID && sg.State == StatePending {
			out = append(out, sg)
		}
	}
	return out, nil
}

func (t *memoryPlanningTx) MarkOrderGenerated(ctx context.Context, suggestionID, poLineID int64) error {
	sg, ok := t.state.suggestions[suggestionID]
	if !ok || sg.State != StatePending {
		return shared.ErrConflict
	}
	sg.State = StateOrderGenerated
	sg.POLineID = poLineID
	t.state.suggestions[suggestionID] = sg
	return nil
}

func (t *memoryPlanningTx) NextPurchaseOrderNumber(ctx context.Context) (int64, error) {
	var highest int64
	for _, po := range t.state.orders {
		if po.Number > highest {
			highest = po.Number
		}
	}
	return highest + 1, nil
}

func (t *memoryPlanningTx) CreatePurchaseOrder(ctx context.Context, po procurement.PurchaseOrder) (int64, error) {
	if t.repo.failOrderForSupplier != 0 && po.SupplierID == t.repo.failOrderForSupplier {
		return 0, errors.New("insert purchase order: connection reset")
	}
	po.ID = t.state.id()
	t.state.orders[po.ID] = po
	return po.ID, nil
}

func (t *memoryPlanningTx) CreatePurchaseOrderLine(ctx context.Context, line procurement.POLine) (int64, error) {
	if _, ok := t.state.orders[line.POID]; !ok {
		return 0, procurement.ErrNotFound
	}
	line.ID = t.state.id()
	t.state.lines[line.ID] = line
	return line.ID, nil
}

func (t *memoryPlanningTx) SetPurchaseOrderTotal(ctx context.Context, poID int64, total decimal.Decimal) error {
	po, ok := t.state.orders[poID]
	if !ok {
		return procurement.ErrNotFound
	}
	po.Total = total
	t.state.orders[poID] = po
	return nil
}

type fakeCatalog struct {
	base       map[int64][]masterdata.BOMLine
	variantBOM map[int64][]masterdata.BOMLine
	variants   map[int64]masterdata.Variant
	materials  map[int64]masterdata.Material
	suppliers  map[int64][]masterdata.SupplierLink
	labels     map[[2]int64]int64

	mu            sync.Mutex
	materialCalls int
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		base:       make(map[int64][]masterdata.BOMLine),
		variantBOM: make(map[int64][]masterdata.BOMLine),
		variants:   make(map[int64]masterdata.Variant),
		materials:  make(map[int64]masterdata.Material),
		suppliers:  make(map[int64][]masterdata.SupplierLink),
		labels:     make(map[[2]int64]int64),
	}
}

func (c *fakeCatalog) BaseBOM(ctx context.Context, productID int64) ([]masterdata.BOMLine, error) {
	return c.base[productID], nil
}

func (c *fakeCatalog) VariantBOM(ctx context.Context, variantID int64) ([]masterdata.BOMLine, error) {
	return c.variantBOM[variantID], nil
}

func (c *fakeCatalog) Variant(ctx context.Context, variantID int64) (masterdata.Variant, error) {
	v, ok := c.variants[variantID]
	if !ok {
		return masterdata.Variant{}, masterdata.ErrNotFound
	}
	return v, nil
}

func (c *fakeCatalog) Material(ctx context.Context, materialID int64) (masterdata.Material, error) {
	c.mu.Lock()
	c.materialCalls++
	c.mu.Unlock()
	m, ok := c.materials[materialID]
	if !ok {
		return masterdata.Material{}, masterdata.ErrNotFound
	}
	return m, nil
}

func (c *fakeCatalog) MaterialSuppliers(ctx context.Context, materialID int64) ([]masterdata.SupplierLink, error) {
	return c.suppliers[materialID], nil
}

func (c *fakeCatalog) LabelMaterial(ctx context.Context, sizeID, categoryID int64) (int64, bool, error) {
	id, ok := c.labels[[2]int64{sizeID, categoryID}]
	return id, ok, nil
}

type fakeOrders struct {
	list []orders.Order
}

func (f *fakeOrders) FindPendingOrders(ctx context.Context, start, end time.Time) ([]orders.Order, error) {
	var out []orders.Order
	for _, o := range f.list {
		if o.Status != orders.StatusPending {
			continue
		}
		if o.DeliveryDate.Before(start) || o.DeliveryDate.After(end) {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

type fakeHistory struct {
	latest map[int64]procurement.LatestLine
}

func (f *fakeHistory) LatestLine(ctx context.Context, materialID int64) (procurement.LatestLine, bool, error) {
	l, ok := f.latest[materialID]
	return l, ok, nil
}

type fakeMetrics struct {
	mu      sync.Mutex
	skipped map[string]int
	runs    int
	failed  int
	orders  int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{skipped: make(map[string]int)}
}

func (m *fakeMetrics) PlanningRun(err error, suggestions int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.failed++
		return
	}
	m.runs++
}

func (m *fakeMetrics) SkippedLine(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.skipped[reason]++
}

func (m *fakeMetrics) OrdersGenerated(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders += count
}

type fakeAudit struct {
	mu      sync.Mutex
	actions []string
}

func (a *fakeAudit) Record(ctx context.Context, log shared.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.actions = append(a.actions, log.Action)
	return nil
}

// Material fixtures shared by the tests.
const (
	matThread  int64 = 1
	matFabric  int64 = 2
	matLabel   int64 = 3
	matButton  int64 = 4
	labelCat   int64 = 9
	productTee int64 = 100
)

func trimCategory() masterdata.Category {
	return masterdata.Category{ID: 1, Name: "Trims", ShrinkPercent: dec("10")}
}

func fabricCategory() masterdata.Category {
	return masterdata.Category{ID: 2, Name: "Fabric", ShrinkPercent: dec("10"), IsFabric: true}
}

func labelCategory() masterdata.Category {
	return masterdata.Category{ID: labelCat, Name: "Labels", ShrinkPercent: dec("5")}
}

// threadCatalog holds material M1: 0.5 per unit, 10% shrink, stock 20,
// packages of 10, MOQ 2.
func threadCatalog() *fakeCatalog {
	c := newFakeCatalog()
	c.materials[matThread] = masterdata.Material{
		ID: matThread, Code: "M1", Name: "Thread", Category: trimCategory(), UnitID: 7, UnitCode: "CONE",
		Stock: dec("20"), ConversionFactor: dec("10"),
	}
	c.base[productTee] = []masterdata.BOMLine{{MaterialID: matThread, QuantityPerUnit: dec("0.5")}}
	c.suppliers[matThread] = []masterdata.SupplierLink{
		{MaterialID: matThread, SupplierID: 11, SupplierName: "Hilos SAC", LeadTimeDays: 3, PurchasePrice: dec("2.5"), MinimumOrder: dec("2"), Active: true},
		{MaterialID: matThread, SupplierID: 10, SupplierName: "Textil Norte", LeadTimeDays: 5, PurchasePrice: dec("2.1"), MinimumOrder: dec("1"), Active: true},
	}
	return c
}

func pendingOrder(id int64, qty string, due string, lines ...orders.Line) orders.Order {
	return orders.Order{
		ID:            id,
		ProductID:     productTee,
		TotalQuantity: dec(qty),
		DeliveryDate:  day(due),
		Status:        orders.StatusPending,
		Lines:         lines,
	}
}

type fixture struct {
	repo    *memoryPlanningRepo
	catalog *fakeCatalog
	orders  *fakeOrders
	history *fakeHistory
	metrics *fakeMetrics
	audit   *fakeAudit
	cache   SuggestionCache
	cfg     Config
}

func newFixture(catalog *fakeCatalog, list ...orders.Order) *fixture {
	return &fixture{
		repo:    newMemoryPlanningRepo(),
		catalog: catalog,
		orders:  &fakeOrders{list: list},
		history: &fakeHistory{latest: map[int64]procurement.LatestLine{}},
		metrics: newFakeMetrics(),
		audit:   &fakeAudit{},
		cfg:     Config{LabelCategoryID: labelCat, DaysPerOrder: 2, ClusterToleranceDays: 1},
	}
}

func (f *fixture) service() *Service {
	svc := NewService(Dependencies{
		Repo:    f.repo,
		Orders:  f.orders,
		Catalog: f.catalog,
		History: f.history,
		Cache:   f.cache,
		Audit:   f.audit,
		Metrics: f.metrics,
		Logger:  discardLogger(),
		Config:  f.cfg,
	})
	svc.now = func() time.Time { return time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC) }
	return svc
}

// seedRun stores a run with the given suggestions and returns the run id and
// suggestion ids.
func (f *fixture) seedRun(suggestions ...Suggestion) (int64, []int64) {
	var runID int64
	var ids []int64
	err := f.repo.WithTx(context.Background(), func(ctx context.Context, tx TxRepository) error {
		id, err := tx.CreateRun(ctx, Run{ExecutedAt: time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC), WindowStart: day("2024-03-01"), WindowEnd: day("2024-03-31"), Source: SourceManual})
		if err != nil {
			return err
		}
		runID = id
		for _, sg := range suggestions {
			sg.RunID = id
			if sg.State == "" {
				sg.State = StatePending
			}
			sid, err := tx.InsertSuggestion(ctx, sg)
			if err != nil {
				return err
			}
			ids = append(ids, sid)
		}
		return nil
	})
	if err != nil {
		panic(err)
	}
	return runID, ids
}
