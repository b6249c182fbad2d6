package app

import (
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vic4or/sistemaMype-sub000/internal/masterdata"
	"github.com/vic4or/sistemaMype-sub000/internal/observability"
	"github.com/vic4or/sistemaMype-sub000/internal/planning"
	"github.com/vic4or/sistemaMype-sub000/internal/platform/cache"
	"github.com/vic4or/sistemaMype-sub000/internal/procurement"
	"github.com/vic4or/sistemaMype-sub000/internal/sales/orders"
	"github.com/vic4or/sistemaMype-sub000/internal/shared"
)

// NewPlanningService wires the planning engine against Postgres and the
// suggestion cache. Both the API and the worker build it the same way.
func NewPlanningService(cfg *Config, pool *pgxpool.Pool, suggestions *cache.Cache, metrics *observability.Metrics, logger *slog.Logger) *planning.Service {
	return planning.NewService(planning.Dependencies{
		Repo:    planning.NewRepository(pool),
		Orders:  orders.NewRepository(pool),
		Catalog: masterdata.NewRepository(pool),
		History: procurement.NewRepository(pool),
		Cache:   suggestions,
		Audit:   shared.NewAuditLogger(pool),
		Metrics: metrics,
		Logger:  logger.With(slog.String("module", "planning")),
		Config: planning.Config{
			LabelCategoryID:      cfg.LabelCategoryID,
			DaysPerOrder:         cfg.DaysPerOrder,
			ClusterToleranceDays: cfg.ClusterToleranceDays,
			SingleYieldDivision:  cfg.SingleYieldDivision,
			PrefetchConcurrency:  cfg.PrefetchConcurrency,
		},
	})
}
