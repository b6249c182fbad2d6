package planning

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"
)

const exportSheet = "Suggestions"

var exportHeaders = []string{
	"ID", "Material", "Name", "Supplier", "Unit", "Gross", "Stock", "Net",
	"Quantity", "Unit price", "Order date", "Arrival date", "State",
}

// ExportSuggestions renders the suggestions of a run as an XLSX workbook.
func (s *Service) ExportSuggestions(ctx context.Context, runID int64) ([]byte, error) {
	list, err := s.GetSuggestions(ctx, runID)
	if err != nil {
		return nil, err
	}
	return buildWorkbook(list)
}

func buildWorkbook(list []Suggestion) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return nil, fmt.Errorf("planning: export sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#D3D3D3"}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("planning: export style: %w", err)
	}

	for i, header := range exportHeaders {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(exportSheet, cell, header); err != nil {
			return nil, err
		}
		if err := f.SetCellStyle(exportSheet, cell, cell, headerStyle); err != nil {
			return nil, err
		}
	}

	for r, sg := range list {
		row := []any{
			sg.ID, sg.MaterialCode, sg.MaterialName, sg.SupplierName, sg.UnitCode,
			sg.Gross.InexactFloat64(), sg.Stock.InexactFloat64(), sg.Net.InexactFloat64(),
			sg.Quantity.InexactFloat64(), sg.UnitPrice.InexactFloat64(),
			sg.OrderDate.Format("2006-01-02"), sg.ArrivalDate.Format("2006-01-02"), string(sg.State),
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("planning: export row %d: %w", r+2, err)
		}
	}

	last, err := excelize.ColumnNumberToName(len(exportHeaders))
	if err != nil {
		return nil, err
	}
	if err := f.SetColWidth(exportSheet, "A", last, 15); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("planning: export write: %w", err)
	}
	return buf.Bytes(), nil
}
