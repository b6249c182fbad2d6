package planning

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/vic4or/sistemaMype-sub000/internal/masterdata"
	"github.com/vic4or/sistemaMype-sub000/internal/procurement"
)

const (
	defaultPrefetchConcurrency = 8

	// quantityScale bounds the digits kept before rounding up, so the residue
	// of inexact divisions never adds a whole unit.
	quantityScale = 8
)

// sourcing is the supplier data of one material.
type sourcing struct {
	Links     []masterdata.SupplierLink
	Latest    procurement.LatestLine
	HasLatest bool
}

// grossQuantity rounds accumulated demand up to a whole reporting unit.
// Fabric totals are divided by yield again unless singleYield is set.
func grossQuantity(m masterdata.Material, total decimal.Decimal, singleYield bool) decimal.Decimal {
	if m.Category.IsFabric && !singleYield {
		total = total.Div(m.Yield())
	}
	gross := ceilQuantity(total)
	if gross.IsNegative() {
		return decimal.Zero
	}
	return gross
}

// netQuantity is gross minus stock, floored at zero.
func netQuantity(gross, stock decimal.Decimal) decimal.Decimal {
	net := gross.Sub(stock)
	if net.IsNegative() {
		return decimal.Zero
	}
	return net
}

// selectSupplier reuses the supplier of the latest purchase when it is still
// linked, otherwise picks the shortest lead time with the lowest supplier id
// breaking ties.
func selectSupplier(src sourcing) (masterdata.SupplierLink, bool) {
	var active []masterdata.SupplierLink
	for _, link := range src.Links {
		if link.Active {
			active = append(active, link)
		}
	}
	if len(active) == 0 {
		return masterdata.SupplierLink{}, false
	}
	if src.HasLatest {
		for _, link := range active {
			if link.SupplierID == src.Latest.SupplierID {
				return link, true
			}
		}
	}
	best := active[0]
	for _, link := range active[1:] {
		if link.LeadTimeDays < best.LeadTimeDays ||
			(link.LeadTimeDays == best.LeadTimeDays && link.SupplierID < best.SupplierID) {
			best = link
		}
	}
	return best, true
}

// orderQuantity converts net demand into the quantity sent to the supplier.
// Fabric is ordered in its base unit; other materials in purchase packages.
func orderQuantity(m masterdata.Material, net, moq decimal.Decimal) decimal.Decimal {
	var qty decimal.Decimal
	if m.Category.IsFabric {
		qty = ceilQuantity(net)
	} else {
		qty = ceilQuantity(net.Div(m.PurchaseFactor()))
	}
	return decimal.Max(qty, moq)
}

func ceilQuantity(q decimal.Decimal) decimal.Decimal {
	return q.Round(quantityScale).Ceil()
}

// prefetchSourcing loads supplier links and purchase history for ids with
// bounded parallelism.
func prefetchSourcing(ctx context.Context, catalog Catalog, history PurchaseHistory, ids []int64, limit int) (map[int64]sourcing, error) {
	if limit <= 0 {
		limit = defaultPrefetchConcurrency
	}
	var (
		mu  sync.Mutex
		out = make(map[int64]sourcing, len(ids))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, id := range ids {
		g.Go(func() error {
			links, err := catalog.MaterialSuppliers(gctx, id)
			if err != nil {
				return fmt.Errorf("planning: suppliers of material %d: %w", id, err)
			}
			src := sourcing{Links: links}
			if history != nil {
				latest, ok, err := history.LatestLine(gctx, id)
				if err != nil {
					return fmt.Errorf("planning: purchase history of material %d: %w", id, err)
				}
				src.Latest, src.HasLatest = latest, ok
			}
			mu.Lock()
			out[id] = src
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// netter sizes the replenishment of each material.
type netter struct {
	singleYield bool
	scheduler   scheduler
	logger      *slog.Logger
	metrics     Metrics
}

// plan is the in-memory outcome of a run before persistence.
type plan struct {
	Requirements []GrossRequirement
	Suggestions  []Suggestion
}

// Shortfalls lists the materials whose gross demand exceeds stock.
func (n netter) Shortfalls(d *demand, materials map[int64]masterdata.Material) []int64 {
	var ids []int64
	for _, id := range d.MaterialIDs() {
		m, ok := materials[id]
		if !ok {
			continue
		}
		if netQuantity(grossQuantity(m, d.Materials[id].Total, n.singleYield), m.Stock).IsPositive() {
			ids = append(ids, id)
		}
	}
	return ids
}

func (n netter) Net(d *demand, materials map[int64]masterdata.Material, sources map[int64]sourcing) plan {
	var out plan
	for _, id := range d.MaterialIDs() {
		m, ok := materials[id]
		if !ok {
			continue
		}
		acc := d.Materials[id]
		gross := grossQuantity(m, acc.Total, n.singleYield)
		out.Requirements = append(out.Requirements, GrossRequirement{MaterialID: id, Quantity: gross})

		net := netQuantity(gross, m.Stock)
		if !net.IsPositive() {
			continue
		}
		link, ok := selectSupplier(sources[id])
		if !ok {
			n.logger.Warn("planning data gap", slog.String("reason", "no_active_supplier"), slog.Int64("material_id", id))
			if n.metrics != nil {
				n.metrics.SkippedLine("no_active_supplier")
			}
			continue
		}
		if link.PurchasePrice.IsZero() {
			n.logger.Warn("planning data gap", slog.String("reason", "missing_price"),
				slog.Int64("material_id", id), slog.Int64("supplier_id", link.SupplierID))
		}
		orderDate, arrival := n.scheduler.Schedule(acc.Dates, link.LeadTimeDays)
		out.Suggestions = append(out.Suggestions, Suggestion{
			MaterialID:  id,
			SupplierID:  link.SupplierID,
			UnitID:      m.UnitID,
			Gross:       gross,
			Stock:       m.Stock,
			Net:         net,
			Quantity:    orderQuantity(m, net, link.MinimumOrder),
			UnitPrice:   link.PurchasePrice,
			OrderDate:   orderDate,
			ArrivalDate: arrival,
			State:       StatePending,
		})
	}
	return out
}
