// Package offers implements the quotation lifecycle: drafting against the
// project catalog, full-replace saves with pricing and currency applied at
// the boundary, and status transitions guarded by the conflict resolver.
package offers

import (
	"fmt"
	"time"

	"github.com/atelier-erp/atelier-erp/internal/pricing"
	"github.com/atelier-erp/atelier-erp/internal/shared"
)

// OfferStatus is the workflow state of a quotation. Only Draft and Accepted
// carry engine semantics; the rest exist for the sales workflow.
type OfferStatus string

const (
	StatusDraft    OfferStatus = "DRAFT"
	StatusSent     OfferStatus = "SENT"
	StatusAccepted OfferStatus = "ACCEPTED"
	StatusRejected OfferStatus = "REJECTED"
	StatusExpired  OfferStatus = "EXPIRED"
)

// Valid reports whether s is a known workflow status.
func (s OfferStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusSent, StatusAccepted, StatusRejected, StatusExpired:
		return true
	}
	return false
}

// Offer is a customer-facing quotation for one project. All money fields are
// stored pre-converted into Currency; there is no original-currency copy.
type Offer struct {
	ID             int64       `json:"id"`
	Number         string      `json:"number"`
	ProjectID      int64       `json:"project_id"`
	Status         OfferStatus `json:"status"`
	Currency       string      `json:"currency"`
	IncludeTax     bool        `json:"include_tax"`
	TaxRate        float64     `json:"tax_rate"`
	TransportCost  float64     `json:"transport_cost"`
	OnsiteAssembly bool        `json:"onsite_assembly"`
	OnsiteDiscount float64     `json:"onsite_discount"`
	Notes          string      `json:"notes"`
	ValidUntil     time.Time   `json:"valid_until"`
	Subtotal       float64     `json:"subtotal"`
	Total          float64     `json:"total"`
	Version        int64       `json:"version"`
	Lines          []Line      `json:"lines"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// Line prices one product inside an offer.
type Line struct {
	ID             int64   `json:"id"`
	OfferID        int64   `json:"offer_id"`
	ProductID      int64   `json:"product_id"`
	ProductName    string  `json:"product_name,omitempty"`
	Included       bool    `json:"included"`
	Qty            float64 `json:"qty"`
	MaterialCost   float64 `json:"material_cost"`
	Margin         float64 `json:"margin"`
	LaborWorkers   float64 `json:"labor_workers"`
	LaborDays      float64 `json:"labor_days"`
	LaborDailyRate float64 `json:"labor_daily_rate"`
	LineTotal      float64 `json:"line_total"`
	LineOrder      int     `json:"line_order"`
	Extras         []Extra `json:"extras"`
}

// Extra is an ad-hoc priced service attached to a line.
type Extra struct {
	ID        int64   `json:"id"`
	LineID    int64   `json:"line_id"`
	Name      string  `json:"name"`
	Qty       float64 `json:"qty"`
	Unit      string  `json:"unit"`
	UnitPrice float64 `json:"unit_price"`
	Total     float64 `json:"total"`
}

var (
	ErrNotFound     = fmt.Errorf("offers: %w", shared.ErrNotFound)
	ErrValidation   = fmt.Errorf("offers: %w", shared.ErrValidation)
	ErrInvalidState = fmt.Errorf("offers: %w", shared.ErrInvalidState)
	ErrStaleWrite   = fmt.Errorf("offers: %w", shared.ErrStaleWrite)
)

// pricingLine maps a persisted line onto the pure pricing input.
func pricingLine(line Line) pricing.Line {
	extras := make([]pricing.Extra, 0, len(line.Extras))
	for _, e := range line.Extras {
		extras = append(extras, pricing.Extra{Name: e.Name, Qty: e.Qty, Unit: e.Unit, UnitPrice: e.UnitPrice})
	}
	return pricing.Line{
		Included:       line.Included,
		Qty:            line.Qty,
		MaterialCost:   line.MaterialCost,
		Margin:         line.Margin,
		Extras:         extras,
		LaborWorkers:   line.LaborWorkers,
		LaborDays:      line.LaborDays,
		LaborDailyRate: line.LaborDailyRate,
	}
}

// pricingDocument maps an offer onto the pure pricing input.
func pricingDocument(offer Offer) pricing.Document {
	lines := make([]pricing.Line, 0, len(offer.Lines))
	for _, l := range offer.Lines {
		lines = append(lines, pricingLine(l))
	}
	return pricing.Document{
		Lines:          lines,
		TransportCost:  offer.TransportCost,
		OnsiteAssembly: offer.OnsiteAssembly,
		OnsiteDiscount: offer.OnsiteDiscount,
		IncludeTax:     offer.IncludeTax,
		TaxRate:        offer.TaxRate,
	}
}

// Totals recomputes the document totals from the offer's current lines.
func (o Offer) Totals() pricing.Totals {
	return pricing.DocumentTotals(pricingDocument(o))
}

// IncludedProductIDs returns product IDs of included lines, in line order.
func (o Offer) IncludedProductIDs() []int64 {
	var ids []int64
	for _, line := range o.Lines {
		if line.Included {
			ids = append(ids, line.ProductID)
		}
	}
	return ids
}
