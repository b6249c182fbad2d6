package orders

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestAttachLinesGroupsByOrder(t *testing.T) {
	orders := []Order{{ID: 1}, {ID: 2}}
	lines := []Line{
		{ID: 10, OrderID: 1, VariantID: 5, Quantity: decimal.NewFromInt(3)},
		{ID: 11, OrderID: 2, VariantID: 6, Quantity: decimal.NewFromInt(4)},
		{ID: 12, OrderID: 1, VariantID: 7, Quantity: decimal.NewFromInt(1)},
		{ID: 13, OrderID: 99, VariantID: 8, Quantity: decimal.NewFromInt(1)},
	}

	got := attachLines(orders, lines)

	require.Len(t, got[0].Lines, 2)
	require.Equal(t, int64(10), got[0].Lines[0].ID)
	require.Equal(t, int64(12), got[0].Lines[1].ID)
	require.Len(t, got[1].Lines, 1)
	require.Equal(t, int64(11), got[1].Lines[0].ID)
}
