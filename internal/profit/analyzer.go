// Package profit derives per-product profitability from the accepted offer's
// priced line and recorded labor postings.
package profit

import (
	"context"
	"errors"
	"log/slog"

	"github.com/atelier-erp/atelier-erp/internal/labor"
	"github.com/atelier-erp/atelier-erp/internal/offers"
	"github.com/atelier-erp/atelier-erp/internal/shared"
)

// Report is the profitability breakdown of one product. TransportShare and
// DiscountShare are tracked for reporting but excluded from Profit; they are
// pass-through costs, not production costs.
type Report struct {
	ProductID      int64   `json:"product_id"`
	OfferID        int64   `json:"offer_id,omitempty"`
	OfferNumber    string  `json:"offer_number,omitempty"`
	Currency       string  `json:"currency,omitempty"`
	SellingPrice   float64 `json:"selling_price"`
	MaterialCost   float64 `json:"material_cost"`
	LaborCost      float64 `json:"labor_cost"`
	TransportShare float64 `json:"transport_share"`
	DiscountShare  float64 `json:"discount_share"`
	Profit         float64 `json:"profit"`
	Margin         float64 `json:"margin"`
	MarginDefined  bool    `json:"margin_defined"`
}

// OffersPort locates the accepted offer line selling a product.
type OffersPort interface {
	FindAcceptedLineForProduct(ctx context.Context, productID int64) (offers.Offer, offers.Line, error)
}

// LaborPort reads labor postings.
type LaborPort interface {
	PostingsForProduct(ctx context.Context, productID int64) ([]labor.Posting, error)
}

// Allocate apportions a document-level amount to one line by revenue share.
// A zero subtotal allocates nothing.
func Allocate(amount, sellingPrice, subtotal float64) float64 {
	if subtotal == 0 {
		return 0
	}
	return amount * (sellingPrice / subtotal)
}

// Service computes product profitability.
type Service struct {
	offers OffersPort
	labor  LaborPort
	logger *slog.Logger
}

// NewService constructs the analyzer.
func NewService(offersPort OffersPort, laborPort LaborPort, logger *slog.Logger) *Service {
	return &Service{offers: offersPort, labor: laborPort, logger: logger}
}

// ProductProfit computes the report for one product. When no accepted offer
// sells the product, selling price and material cost are zero and the margin
// is undefined; recorded labor still counts against the product.
func (s *Service) ProductProfit(ctx context.Context, productID int64) (Report, error) {
	report := Report{ProductID: productID}

	postings, err := s.labor.PostingsForProduct(ctx, productID)
	if err != nil {
		return Report{}, err
	}
	report.LaborCost = labor.Sum(postings)

	offer, line, err := s.offers.FindAcceptedLineForProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			report.Profit = -report.LaborCost
			return report, nil
		}
		return Report{}, err
	}

	report.OfferID = offer.ID
	report.OfferNumber = offer.Number
	report.Currency = offer.Currency
	report.SellingPrice = line.LineTotal
	report.MaterialCost = line.MaterialCost
	for _, extra := range line.Extras {
		report.MaterialCost += extra.Total
	}
	report.TransportShare = Allocate(offer.TransportCost, report.SellingPrice, offer.Subtotal)
	report.DiscountShare = Allocate(offer.OnsiteDiscount, report.SellingPrice, offer.Subtotal)

	report.Profit = report.SellingPrice - report.MaterialCost - report.LaborCost
	if report.SellingPrice != 0 {
		report.Margin = report.Profit / report.SellingPrice * 100
		report.MarginDefined = true
	}
	return report, nil
}
