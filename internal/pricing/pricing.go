// Package pricing contains the pure cost arithmetic for offer documents.
// Every function here operates on the numbers it is handed; currency
// conversion happens at the document save boundary, never inside a total.
package pricing

// Extra is an ad-hoc priced service or material attached to a line.
type Extra struct {
	Name      string
	Qty       float64
	Unit      string
	UnitPrice float64
}

// Line carries the cost inputs of one offer line.
type Line struct {
	Included       bool
	Qty            float64
	MaterialCost   float64
	Margin         float64
	Extras         []Extra
	LaborWorkers   float64
	LaborDays      float64
	LaborDailyRate float64
}

// Document carries the document-level adjustments of an offer.
type Document struct {
	Lines          []Line
	TransportCost  float64
	OnsiteAssembly bool
	OnsiteDiscount float64
	IncludeTax     bool
	TaxRate        float64
}

// Totals is the derived money breakdown of a document.
type Totals struct {
	Subtotal  float64
	Transport float64
	Discount  float64
	TaxAmount float64
	Total     float64
}

// ExtraTotal recomputes an extra's amount from its current quantity and price.
func ExtraTotal(qty, unitPrice float64) float64 {
	return qty * unitPrice
}

// LineTotal derives the sell price of a line. Missing inputs are zero, so a
// bare line with only a quantity prices at zero rather than erroring.
func LineTotal(line Line) float64 {
	var extras float64
	for _, e := range line.Extras {
		extras += ExtraTotal(e.Qty, e.UnitPrice)
	}
	labor := line.LaborWorkers * line.LaborDays * line.LaborDailyRate
	return (line.MaterialCost + line.Margin + extras + labor) * line.Qty
}

// DocumentTotals rolls lines and document adjustments into the final amounts.
// The discount only counts when the on-site assembly flag is set; a stored
// discount on a document without the flag is ignored, not cleared. Totals are
// not clamped: an oversized discount produces a negative total and downstream
// display has to tolerate it.
func DocumentTotals(doc Document) Totals {
	var subtotal float64
	for _, line := range doc.Lines {
		if !line.Included {
			continue
		}
		subtotal += LineTotal(line)
	}

	discount := 0.0
	if doc.OnsiteAssembly {
		discount = doc.OnsiteDiscount
	}

	base := subtotal + doc.TransportCost - discount
	tax := 0.0
	if doc.IncludeTax {
		tax = base * doc.TaxRate / 100
	}

	return Totals{
		Subtotal:  subtotal,
		Transport: doc.TransportCost,
		Discount:  discount,
		TaxAmount: tax,
		Total:     base + tax,
	}
}
