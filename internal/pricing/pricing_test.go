package pricing

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLineTotal(t *testing.T) {
	line := Line{
		Included:       true,
		Qty:            1,
		MaterialCost:   100,
		Margin:         20,
		Extras:         []Extra{{Name: "varnish", Qty: 2, UnitPrice: 15}},
		LaborWorkers:   2,
		LaborDays:      3,
		LaborDailyRate: 50,
	}
	require.InDelta(t, 450.0, LineTotal(line), 0.0001)
}

func TestLineTotalMissingFieldsAreZero(t *testing.T) {
	require.InDelta(t, 0.0, LineTotal(Line{Qty: 3}), 0.0001)
	require.InDelta(t, 0.0, LineTotal(Line{MaterialCost: 100, Margin: 50}), 0.0001)

	// Labor contributes nothing unless all three factors are set.
	require.InDelta(t, 120.0, LineTotal(Line{Qty: 2, MaterialCost: 60, LaborWorkers: 4}), 0.0001)
}

func TestLineTotalScalesWithQuantity(t *testing.T) {
	line := Line{Qty: 4, MaterialCost: 25, Margin: 5}
	require.InDelta(t, 120.0, LineTotal(line), 0.0001)
}

func TestDocumentTotalsScenario(t *testing.T) {
	doc := Document{
		Lines: []Line{{
			Included:       true,
			Qty:            1,
			MaterialCost:   100,
			Margin:         20,
			Extras:         []Extra{{Qty: 2, UnitPrice: 15}},
			LaborWorkers:   2,
			LaborDays:      3,
			LaborDailyRate: 50,
		}},
		TransportCost: 30,
		IncludeTax:    true,
		TaxRate:       17,
	}

	totals := DocumentTotals(doc)
	require.InDelta(t, 450.0, totals.Subtotal, 0.0001)
	require.InDelta(t, 30.0, totals.Transport, 0.0001)
	require.InDelta(t, 0.0, totals.Discount, 0.0001)
	require.InDelta(t, 81.6, totals.TaxAmount, 0.0001)
	require.InDelta(t, 561.6, totals.Total, 0.0001)
}

func TestDocumentTotalsSkipsExcludedLines(t *testing.T) {
	doc := Document{
		Lines: []Line{
			{Included: true, Qty: 1, MaterialCost: 100},
			{Included: false, Qty: 1, MaterialCost: 9999},
		},
	}
	totals := DocumentTotals(doc)
	require.InDelta(t, 100.0, totals.Subtotal, 0.0001)
	require.InDelta(t, 100.0, totals.Total, 0.0001)
}

func TestDocumentTotalsDiscountRequiresOnsiteFlag(t *testing.T) {
	doc := Document{
		Lines:          []Line{{Included: true, Qty: 1, MaterialCost: 200}},
		OnsiteDiscount: 50,
	}

	totals := DocumentTotals(doc)
	require.InDelta(t, 0.0, totals.Discount, 0.0001)
	require.InDelta(t, 200.0, totals.Total, 0.0001)

	doc.OnsiteAssembly = true
	totals = DocumentTotals(doc)
	require.InDelta(t, 50.0, totals.Discount, 0.0001)
	require.InDelta(t, 150.0, totals.Total, 0.0001)
}

func TestDocumentTotalsNegativeNotClamped(t *testing.T) {
	doc := Document{
		Lines:          []Line{{Included: true, Qty: 1, MaterialCost: 10}},
		OnsiteAssembly: true,
		OnsiteDiscount: 100,
	}
	totals := DocumentTotals(doc)
	require.InDelta(t, -90.0, totals.Total, 0.0001)
}

func TestExtraTotal(t *testing.T) {
	require.InDelta(t, 30.0, ExtraTotal(2, 15), 0.0001)
	require.InDelta(t, 0.0, ExtraTotal(0, 15), 0.0001)
}
