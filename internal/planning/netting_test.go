package planning

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vic4or/sistemaMype-sub000/internal/masterdata"
	"github.com/vic4or/sistemaMype-sub000/internal/procurement"
)

func TestGrossQuantityRoundsUp(t *testing.T) {
	trim := masterdata.Material{Category: trimCategory()}
	require.True(t, grossQuantity(trim, dec("55"), false).Equal(dec("55")))
	require.True(t, grossQuantity(trim, dec("54.01"), false).Equal(dec("55")))
	require.True(t, grossQuantity(trim, dec("-3"), false).Equal(dec("0")))

	fabric := masterdata.Material{Category: fabricCategory(), FabricYield: dec("0.9")}
	require.True(t, grossQuantity(fabric, dec("55"), false).Equal(dec("62")))
	require.True(t, grossQuantity(fabric, dec("55"), true).Equal(dec("55")))
}

func TestGrossQuantityIgnoresDivisionResidue(t *testing.T) {
	fabric := masterdata.Material{Category: masterdata.Category{IsFabric: true}, FabricYield: dec("0.9")}
	total := dec("0")
	for i := 0; i < 81; i++ {
		total = total.Add(dec("5").Div(fabric.Yield()))
	}
	require.True(t, total.GreaterThan(dec("450")))
	require.True(t, grossQuantity(fabric, total, false).Equal(dec("500")), "got %s", grossQuantity(fabric, total, false))

	thin := masterdata.Material{Category: masterdata.Category{IsFabric: true}, FabricYield: dec("0.3")}
	total = dec("0")
	for i := 0; i < 3; i++ {
		total = total.Add(dec("2").Div(thin.Yield()))
	}
	require.True(t, total.GreaterThan(dec("20")))
	require.True(t, grossQuantity(thin, total, true).Equal(dec("20")), "got %s", grossQuantity(thin, total, true))

	require.True(t, grossQuantity(thin, dec("20.001"), true).Equal(dec("21")))
}

func TestNetQuantityFloorsAtZero(t *testing.T) {
	require.True(t, netQuantity(dec("55"), dec("20")).Equal(dec("35")))
	require.True(t, netQuantity(dec("20"), dec("20")).IsZero())
	require.True(t, netQuantity(dec("10"), dec("25")).IsZero())
}

func TestOrderQuantity(t *testing.T) {
	cases := []struct {
		name     string
		material masterdata.Material
		net      string
		moq      string
		want     string
	}{
		{"packages", masterdata.Material{Category: trimCategory(), ConversionFactor: dec("10")}, "35", "2", "4"},
		{"moq floor", masterdata.Material{Category: trimCategory(), ConversionFactor: dec("10")}, "5", "3", "3"},
		{"unset factor", masterdata.Material{Category: trimCategory()}, "7.2", "0", "8"},
		{"fabric ignores factor", masterdata.Material{Category: fabricCategory(), ConversionFactor: dec("25")}, "62", "50", "62"},
		{"fabric moq", masterdata.Material{Category: fabricCategory()}, "12", "50", "50"},
		{"fabric residue", masterdata.Material{Category: fabricCategory()}, "62.0000000000000036", "0", "62"},
		{"package residue", masterdata.Material{Category: trimCategory(), ConversionFactor: dec("3")}, "12.0000000000000003", "0", "4"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := orderQuantity(tc.material, dec(tc.net), dec(tc.moq))
			require.True(t, got.Equal(dec(tc.want)), "got %s", got)
		})
	}
}

func TestSelectSupplier(t *testing.T) {
	links := []masterdata.SupplierLink{
		{SupplierID: 12, LeadTimeDays: 3, Active: true},
		{SupplierID: 10, LeadTimeDays: 5, Active: true},
		{SupplierID: 11, LeadTimeDays: 3, Active: true},
		{SupplierID: 9, LeadTimeDays: 1, Active: false},
	}

	link, ok := selectSupplier(sourcing{Links: links})
	require.True(t, ok)
	require.Equal(t, int64(11), link.SupplierID)

	link, ok = selectSupplier(sourcing{Links: links, HasLatest: true, Latest: procurement.LatestLine{SupplierID: 10}})
	require.True(t, ok)
	require.Equal(t, int64(10), link.SupplierID)

	link, ok = selectSupplier(sourcing{Links: links, HasLatest: true, Latest: procurement.LatestLine{SupplierID: 9}})
	require.True(t, ok)
	require.Equal(t, int64(11), link.SupplierID)

	_, ok = selectSupplier(sourcing{Links: links[3:]})
	require.False(t, ok)
}

func TestNetSkipsCoveredAndUnsourcedMaterials(t *testing.T) {
	d := newDemand()
	d.add(matThread, dec("55"), day("2024-03-15"), true)
	d.add(matButton, dec("8"), day("2024-03-15"), true)
	d.add(matLabel, dec("30"), day("2024-03-15"), true)

	materials := map[int64]masterdata.Material{
		matThread: {ID: matThread, Category: trimCategory(), Stock: dec("20"), ConversionFactor: dec("10")},
		matButton: {ID: matButton, Category: trimCategory(), Stock: dec("8")},
		matLabel:  {ID: matLabel, Category: labelCategory()},
	}
	sources := map[int64]sourcing{
		matThread: {Links: []masterdata.SupplierLink{{SupplierID: 11, LeadTimeDays: 3, MinimumOrder: dec("2"), PurchasePrice: dec("2.5"), Active: true}}},
	}
	metrics := newFakeMetrics()
	n := netter{scheduler: scheduler{DaysPerOrder: 2, ToleranceDays: 1}, logger: discardLogger(), metrics: metrics}

	require.Equal(t, []int64{matThread, matLabel}, n.Shortfalls(d, materials))

	p := n.Net(d, materials, sources)
	require.Len(t, p.Requirements, 3)
	require.Len(t, p.Suggestions, 1)
	require.Equal(t, 1, metrics.skipped["no_active_supplier"])

	sg := p.Suggestions[0]
	require.Equal(t, matThread, sg.MaterialID)
	require.True(t, sg.Gross.Equal(dec("55")))
	require.True(t, sg.Net.Equal(dec("35")))
	require.True(t, sg.Quantity.Equal(dec("4")))
	require.True(t, sg.UnitPrice.Equal(dec("2.5")))
	require.Equal(t, StatePending, sg.State)
}

func TestPrefetchSourcingLoadsHistory(t *testing.T) {
	catalog := threadCatalog()
	history := &fakeHistory{latest: map[int64]procurement.LatestLine{matThread: {MaterialID: matThread, SupplierID: 10}}}

	out, err := prefetchSourcing(context.Background(), catalog, history, []int64{matThread, matButton}, 2)
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.True(t, out[matThread].HasLatest)
	require.Len(t, out[matThread].Links, 2)
	require.False(t, out[matButton].HasLatest)
}
