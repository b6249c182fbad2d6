package masterdata

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/vic4or/sistemaMype-sub000/internal/shared"
)

var (
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
)

// ErrNotFound indicates a master data record is missing or inactive.
var ErrNotFound = fmt.Errorf("masterdata: %w", shared.ErrNotFound)

// Category groups materials that share waste and yield behaviour.
type Category struct {
	ID                int64           `json:"id"`
	Name              string          `json:"name"`
	ShrinkPercent     decimal.Decimal `json:"shrink_percent"`
	IsFabric          bool            `json:"is_fabric"`
	VariesBySizeColor bool            `json:"varies_by_size_color"`
}

// ShrinkFactor returns 1 + shrink/100.
func (c Category) ShrinkFactor() decimal.Decimal {
	return one.Add(c.ShrinkPercent.Div(hundred))
}

// Material is a purchasable input consumed by production.
type Material struct {
	ID               int64           `json:"id"`
	Code             string          `json:"code"`
	Name             string          `json:"name"`
	Category         Category        `json:"category"`
	UnitID           int64           `json:"unit_id"`
	UnitCode         string          `json:"unit_code"`
	Stock            decimal.Decimal `json:"stock"`
	ConversionFactor decimal.Decimal `json:"conversion_factor"`
	FabricYield      decimal.Decimal `json:"fabric_yield"`
}

// PurchaseFactor is the number of consumption units per purchase package.
// Unset or non-positive factors count as one.
func (m Material) PurchaseFactor() decimal.Decimal {
	if !m.ConversionFactor.IsPositive() {
		return one
	}
	return m.ConversionFactor
}

// Yield returns the fabric yield ratio, or one when unset.
func (m Material) Yield() decimal.Decimal {
	if !m.FabricYield.IsPositive() {
		return one
	}
	return m.FabricYield
}

// BOMLine is one material entry of a product or variant bill of materials.
type BOMLine struct {
	MaterialID      int64           `json:"material_id"`
	QuantityPerUnit decimal.Decimal `json:"quantity_per_unit"`
}

// Variant is a product in a specific size and color.
type Variant struct {
	ID        int64 `json:"id"`
	ProductID int64 `json:"product_id"`
	SizeID    int64 `json:"size_id"`
	ColorID   int64 `json:"color_id"`
}

// HasSize reports whether the variant carries a size.
func (v Variant) HasSize() bool {
	return v.SizeID > 0
}

// SupplierLink joins a material with a supplier that can deliver it.
type SupplierLink struct {
	MaterialID    int64           `json:"material_id"`
	SupplierID    int64           `json:"supplier_id"`
	SupplierName  string          `json:"supplier_name"`
	LeadTimeDays  int             `json:"lead_time_days"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	MinimumOrder  decimal.Decimal `json:"minimum_order"`
	Active        bool            `json:"active"`
}
