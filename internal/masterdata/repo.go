package masterdata

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/vic4or/sistemaMype-sub000/internal/platform/db"
)

// Repository reads catalog data with PostgreSQL.
type Repository struct {
	db db.Querier
}

// NewRepository creates a new master data repository.
func NewRepository(q db.Querier) *Repository {
	return &Repository{db: q}
}

// BaseBOM returns the product level bill of materials.
func (r *Repository) BaseBOM(ctx context.Context, productID int64) ([]BOMLine, error) {
	query := `SELECT material_id, quantity_per_unit FROM product_bom WHERE product_id = $1 AND active ORDER BY id`
	return r.bomLines(ctx, query, productID)
}

// VariantBOM returns materials specific to a product+size+color variant.
func (r *Repository) VariantBOM(ctx context.Context, variantID int64) ([]BOMLine, error) {
	query := `SELECT material_id, quantity_per_unit FROM variant_bom WHERE variant_id = $1 AND active ORDER BY id`
	return r.bomLines(ctx, query, variantID)
}

func (r *Repository) bomLines(ctx context.Context, query string, id int64) ([]BOMLine, error) {
	rows, err := r.db.Query(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []BOMLine
	for rows.Next() {
		var l BOMLine
		if err := rows.Scan(&l.MaterialID, &l.QuantityPerUnit); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// Variant loads an active product variant.
func (r *Repository) Variant(ctx context.Context, variantID int64) (Variant, error) {
	query := `SELECT id, product_id, COALESCE(size_id, 0), COALESCE(color_id, 0) FROM product_variants WHERE id = $1 AND active`
	var v Variant
	err := r.db.QueryRow(ctx, query, variantID).Scan(&v.ID, &v.ProductID, &v.SizeID, &v.ColorID)
	if errors.Is(err, pgx.ErrNoRows) {
		return Variant{}, ErrNotFound
	}
	return v, err
}

// Material loads a material with its category, unit and purchase presentation.
func (r *Repository) Material(ctx context.Context, materialID int64) (Material, error) {
	query := `SELECT m.id, m.code, m.name, m.unit_id, COALESCE(u.code, ''), COALESCE(m.stock, 0),
		COALESCE(p.conversion_factor, 1), COALESCE(m.fabric_yield, 1),
		c.id, c.name, COALESCE(c.shrink_percent, 0), c.is_fabric, c.varies_by_size_color
		FROM materials m
		JOIN material_categories c ON c.id = m.category_id
		LEFT JOIN units u ON u.id = m.unit_id
		LEFT JOIN category_presentations p ON p.id = m.presentation_id
		WHERE m.id = $1 AND m.active`
	var m Material
	err := r.db.QueryRow(ctx, query, materialID).Scan(
		&m.ID, &m.Code, &m.Name, &m.UnitID, &m.UnitCode, &m.Stock,
		&m.ConversionFactor, &m.FabricYield,
		&m.Category.ID, &m.Category.Name, &m.Category.ShrinkPercent, &m.Category.IsFabric, &m.Category.VariesBySizeColor,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Material{}, ErrNotFound
	}
	return m, err
}

// MaterialSuppliers lists active supplier links for a material.
func (r *Repository) MaterialSuppliers(ctx context.Context, materialID int64) ([]SupplierLink, error) {
	query := `SELECT ms.material_id, s.id, s.name, s.lead_time_days,
		COALESCE(ms.purchase_price, 0), COALESCE(ms.minimum_order, 0), ms.active AND s.active
		FROM material_suppliers ms
		JOIN suppliers s ON s.id = ms.supplier_id
		WHERE ms.material_id = $1 AND ms.active AND s.active
		ORDER BY s.lead_time_days, s.id`
	rows, err := r.db.Query(ctx, query, materialID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []SupplierLink
	for rows.Next() {
		var l SupplierLink
		if err := rows.Scan(&l.MaterialID, &l.SupplierID, &l.SupplierName, &l.LeadTimeDays, &l.PurchasePrice, &l.MinimumOrder, &l.Active); err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

// LabelMaterial finds the label material tied to a size within a category.
// The boolean is false when the size has no label.
func (r *Repository) LabelMaterial(ctx context.Context, sizeID, categoryID int64) (int64, bool, error) {
	query := `SELECT id FROM materials WHERE size_id = $1 AND category_id = $2 AND active ORDER BY id LIMIT 1`
	var id int64
	err := r.db.QueryRow(ctx, query, sizeID, categoryID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}
