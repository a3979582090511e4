package offers

import "time"

// SaveOfferRequest is the full-replace save payload. Amounts arrive in BGN as
// the user typed them; when Currency is EUR they are converted once on save.
type SaveOfferRequest struct {
	ID             int64                  `json:"id"`
	ProjectID      int64                  `json:"project_id" validate:"required,gt=0"`
	Currency       string                 `json:"currency" validate:"required,oneof=BGN EUR"`
	IncludeTax     bool                   `json:"include_tax"`
	TaxRate        float64                `json:"tax_rate" validate:"gte=0,lte=100"`
	TransportCost  float64                `json:"transport_cost" validate:"gte=0"`
	OnsiteAssembly bool                   `json:"onsite_assembly"`
	OnsiteDiscount float64                `json:"onsite_discount" validate:"gte=0"`
	Notes          string                 `json:"notes"`
	ValidUntil     time.Time              `json:"valid_until"`
	Version        int64                  `json:"version" validate:"gte=0"`
	Lines          []SaveOfferLineRequest `json:"lines" validate:"required,min=1,dive"`
}

// SaveOfferLineRequest is one line of the save payload.
type SaveOfferLineRequest struct {
	ProductID      int64              `json:"product_id" validate:"required,gt=0"`
	Included       bool               `json:"included"`
	Qty            float64            `json:"qty" validate:"gte=0"`
	MaterialCost   float64            `json:"material_cost" validate:"gte=0"`
	Margin         float64            `json:"margin" validate:"gte=0"`
	LaborWorkers   float64            `json:"labor_workers" validate:"gte=0"`
	LaborDays      float64            `json:"labor_days" validate:"gte=0"`
	LaborDailyRate float64            `json:"labor_daily_rate" validate:"gte=0"`
	LineOrder      int                `json:"line_order" validate:"gte=0"`
	Extras         []SaveExtraRequest `json:"extras" validate:"dive"`
}

// SaveExtraRequest is one ad-hoc extra of a line.
type SaveExtraRequest struct {
	Name      string  `json:"name" validate:"required"`
	Qty       float64 `json:"qty" validate:"gte=0"`
	Unit      string  `json:"unit"`
	UnitPrice float64 `json:"unit_price" validate:"gte=0"`
}

// ChangeStatusRequest asks for a workflow transition.
type ChangeStatusRequest struct {
	Status  OfferStatus `json:"status" validate:"required,oneof=DRAFT SENT ACCEPTED REJECTED EXPIRED"`
	Version int64       `json:"version" validate:"gte=0"`
}

// ListFilters narrows offer listings.
type ListFilters struct {
	ProjectID int64
	Status    OfferStatus
	Limit     int
	Offset    int
}

// Summary is the listing row for an offer.
type Summary struct {
	ID         int64       `json:"id"`
	Number     string      `json:"number"`
	ProjectID  int64       `json:"project_id"`
	Status     OfferStatus `json:"status"`
	Currency   string      `json:"currency"`
	Subtotal   float64     `json:"subtotal"`
	Total      float64     `json:"total"`
	ValidUntil time.Time   `json:"valid_until"`
	CreatedAt  time.Time   `json:"created_at"`
}
