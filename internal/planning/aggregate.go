package planning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vic4or/sistemaMype-sub000/internal/masterdata"
	"github.com/vic4or/sistemaMype-sub000/internal/sales/orders"
)

// Skip reasons reported to telemetry.
const (
	skipMissingVariant  = "missing_variant"
	skipMissingMaterial = "missing_material"
	skipEmptyBOM        = "empty_variant_bom"
)

// accumulator collects the demand of one material across a run.
type accumulator struct {
	Total decimal.Decimal
	Dates []time.Time
}

// demand is the aggregation result of one run.
type demand struct {
	OrderIDs  []int64
	Materials map[int64]*accumulator
	Skipped   int
}

func newDemand() *demand {
	return &demand{Materials: make(map[int64]*accumulator)}
}

func (d *demand) add(materialID int64, qty decimal.Decimal, date time.Time, recordDate bool) {
	acc, ok := d.Materials[materialID]
	if !ok {
		acc = &accumulator{}
		d.Materials[materialID] = acc
	}
	acc.Total = acc.Total.Add(qty)
	if recordDate {
		acc.Dates = append(acc.Dates, date)
	}
}

// MaterialIDs returns the touched materials in ascending id order.
func (d *demand) MaterialIDs() []int64 {
	ids := make([]int64, 0, len(d.Materials))
	for id := range d.Materials {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// seenMaterials tracks the materials that already recorded a date for the
// current order.
type seenMaterials map[int64]struct{}

// first marks id and reports whether this is its first touch.
func (s seenMaterials) first(id int64) bool {
	if _, ok := s[id]; ok {
		return false
	}
	s[id] = struct{}{}
	return true
}

// aggregator explodes bills of materials over a set of orders. It is created
// per run and keeps a material cache for that run only.
type aggregator struct {
	catalog         Catalog
	labelCategoryID int64
	logger          *slog.Logger
	metrics         Metrics

	materials map[int64]masterdata.Material
	missing   map[int64]struct{}
}

func newAggregator(catalog Catalog, labelCategoryID int64, logger *slog.Logger, metrics Metrics) *aggregator {
	return &aggregator{
		catalog:         catalog,
		labelCategoryID: labelCategoryID,
		logger:          logger,
		metrics:         metrics,
		materials:       make(map[int64]masterdata.Material),
		missing:         make(map[int64]struct{}),
	}
}

// Aggregate accumulates gross demand per material for orders.
func (a *aggregator) Aggregate(ctx context.Context, list []orders.Order) (*demand, error) {
	d := newDemand()
	for _, order := range list {
		if err := a.aggregateOrder(ctx, d, order); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func (a *aggregator) aggregateOrder(ctx context.Context, d *demand, order orders.Order) error {
	d.OrderIDs = append(d.OrderIDs, order.ID)

	base, err := a.catalog.BaseBOM(ctx, order.ProductID)
	if err != nil {
		return fmt.Errorf("planning: base bom for product %d: %w", order.ProductID, err)
	}
	for _, line := range base {
		qty := line.QuantityPerUnit.Mul(order.TotalQuantity)
		if err := a.contribute(ctx, d, line.MaterialID, qty, order.DeliveryDate, nil, true); err != nil {
			return err
		}
	}

	seen := make(seenMaterials)
	for _, line := range order.Lines {
		if err := a.aggregateLine(ctx, d, order, line, seen); err != nil {
			return err
		}
	}
	return nil
}

func (a *aggregator) aggregateLine(ctx context.Context, d *demand, order orders.Order, line orders.Line, seen seenMaterials) error {
	variant, err := a.variant(ctx, line.VariantID)
	if errors.Is(err, masterdata.ErrNotFound) {
		d.Skipped++
		a.skip(skipMissingVariant, slog.Int64("order_id", order.ID), slog.Int64("line_id", line.ID), slog.Int64("variant_id", line.VariantID))
		return nil
	}
	if err != nil {
		return err
	}

	bom, err := a.catalog.VariantBOM(ctx, variant.ID)
	if err != nil {
		return fmt.Errorf("planning: variant bom %d: %w", variant.ID, err)
	}
	if len(bom) == 0 {
		a.skip(skipEmptyBOM, slog.Int64("order_id", order.ID), slog.Int64("variant_id", variant.ID))
	}
	for _, item := range bom {
		qty := line.Quantity.Mul(item.QuantityPerUnit)
		if err := a.contribute(ctx, d, item.MaterialID, qty, order.DeliveryDate, seen, true); err != nil {
			return err
		}
	}

	if !variant.HasSize() {
		return nil
	}
	labelID, ok, err := a.catalog.LabelMaterial(ctx, variant.SizeID, a.labelCategoryID)
	if err != nil {
		return fmt.Errorf("planning: label for size %d: %w", variant.SizeID, err)
	}
	if !ok {
		return nil
	}
	return a.contribute(ctx, d, labelID, line.Quantity, order.DeliveryDate, seen, false)
}

// contribute adds qty of a material after shrink and, when applyYield is set,
// fabric yield adjustment. A nil seen set records the date unconditionally.
func (a *aggregator) contribute(ctx context.Context, d *demand, materialID int64, qty decimal.Decimal, date time.Time, seen seenMaterials, applyYield bool) error {
	material, ok, err := a.material(ctx, materialID)
	if err != nil || !ok {
		return err
	}
	qty = qty.Mul(material.Category.ShrinkFactor())
	if applyYield && material.Category.IsFabric {
		qty = qty.Div(material.Yield())
	}
	recordDate := seen == nil || seen.first(materialID)
	d.add(materialID, qty, date, recordDate)
	return nil
}

func (a *aggregator) variant(ctx context.Context, id int64) (masterdata.Variant, error) {
	if id <= 0 {
		return masterdata.Variant{}, masterdata.ErrNotFound
	}
	return a.catalog.Variant(ctx, id)
}

// material loads and caches a material. A missing material reports false.
func (a *aggregator) material(ctx context.Context, id int64) (masterdata.Material, bool, error) {
	if m, ok := a.materials[id]; ok {
		return m, true, nil
	}
	if _, gone := a.missing[id]; gone {
		return masterdata.Material{}, false, nil
	}
	m, err := a.catalog.Material(ctx, id)
	if errors.Is(err, masterdata.ErrNotFound) {
		a.missing[id] = struct{}{}
		a.skip(skipMissingMaterial, slog.Int64("material_id", id))
		return masterdata.Material{}, false, nil
	}
	if err != nil {
		return masterdata.Material{}, false, fmt.Errorf("planning: material %d: %w", id, err)
	}
	a.materials[id] = m
	return m, true, nil
}

func (a *aggregator) skip(reason string, attrs ...any) {
	if a.metrics != nil {
		a.metrics.SkippedLine(reason)
	}
	a.logger.Warn("planning data gap", append([]any{slog.String("reason", reason)}, attrs...)...)
}
