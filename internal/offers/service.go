package offers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/atelier-erp/atelier-erp/internal/catalog"
	"github.com/atelier-erp/atelier-erp/internal/pricing"
	"github.com/atelier-erp/atelier-erp/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Offer, error)
	ListByProject(ctx context.Context, projectID int64) ([]Offer, error)
	List(ctx context.Context, filters ListFilters) ([]Summary, int, error)
	ListOverdue(ctx context.Context, asOf time.Time) ([]Summary, error)
	GenerateNumber(ctx context.Context, date time.Time) (string, error)
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	InsertOffer(ctx context.Context, offer Offer) (int64, error)
	UpdateOffer(ctx context.Context, offer Offer) error
	ReplaceLines(ctx context.Context, offerID int64, lines []Line) error
	UpdateStatus(ctx context.Context, id int64, status OfferStatus, version int64) error
	DeleteOffer(ctx context.Context, id int64) error
}

// CatalogPort is the read-only slice of the project catalog the service uses.
type CatalogPort interface {
	GetProject(ctx context.Context, id int64) (catalog.Project, error)
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service orchestrates the offer lifecycle.
type Service struct {
	repo     RepositoryPort
	catalog  CatalogPort
	resolver *Resolver
	audit    AuditPort
	events   EventHandler
	logger   *slog.Logger
}

// NewService constructs the offer service. audit and events may be nil.
func NewService(repo RepositoryPort, cat CatalogPort, resolver *Resolver, audit AuditPort, events EventHandler, logger *slog.Logger) *Service {
	return &Service{repo: repo, catalog: cat, resolver: resolver, audit: audit, events: events, logger: logger}
}

// BuildDraft seeds a new draft from the project's products. Products already
// committed to an accepted offer of the same project are left out entirely,
// the same check the accept transition runs later. The draft is not persisted.
func (s *Service) BuildDraft(ctx context.Context, projectID int64) (Offer, error) {
	if projectID <= 0 {
		return Offer{}, fmt.Errorf("%w: project reference required", ErrValidation)
	}
	project, err := s.catalog.GetProject(ctx, projectID)
	if err != nil {
		return Offer{}, fmt.Errorf("offers: load project: %w", err)
	}
	claimed, err := s.resolver.ClaimedProducts(ctx, projectID, 0)
	if err != nil {
		return Offer{}, err
	}

	draft := Offer{
		ProjectID: projectID,
		Status:    StatusDraft,
		Currency:  pricing.CurrencyBGN,
	}
	order := 0
	for _, product := range project.Products {
		if claimed[product.ID] {
			continue
		}
		qty := product.Qty
		if qty == 0 {
			qty = 1
		}
		order++
		line := Line{
			ProductID:    product.ID,
			ProductName:  product.Name,
			Included:     true,
			Qty:          qty,
			MaterialCost: product.BaseMaterialCost,
			LineOrder:    order,
		}
		line.LineTotal = pricing.LineTotal(pricingLine(line))
		draft.Lines = append(draft.Lines, line)
	}
	totals := draft.Totals()
	draft.Subtotal = totals.Subtotal
	draft.Total = totals.Total
	return draft, nil
}

// Save persists the offer as a full replacement: header and every line go in
// one transaction, never a partial line update. Amounts are converted into
// the document currency here, once, at this boundary.
func (s *Service) Save(ctx context.Context, req SaveOfferRequest) (Offer, error) {
	if req.ProjectID <= 0 {
		return Offer{}, fmt.Errorf("%w: project reference required", ErrValidation)
	}
	if !pricing.IsSupported(req.Currency) {
		return Offer{}, fmt.Errorf("%w: unsupported currency %q", ErrValidation, req.Currency)
	}
	included := false
	for _, line := range req.Lines {
		if line.Included {
			included = true
			break
		}
	}
	if !included {
		return Offer{}, fmt.Errorf("%w: at least one line must be included", ErrValidation)
	}

	offer := assembleOffer(req)
	if offer.Currency == pricing.CurrencyEUR {
		convertToSecondary(&offer)
	}
	recomputeTotals(&offer)

	if req.ID != 0 {
		existing, err := s.repo.Get(ctx, req.ID)
		if err != nil {
			return Offer{}, err
		}
		if existing.Status != StatusDraft {
			return Offer{}, fmt.Errorf("%w: only draft offers can be re-saved", ErrInvalidState)
		}
		offer.Number = existing.Number
		offer.Status = existing.Status
		offer.CreatedAt = existing.CreatedAt
	} else {
		number, err := s.repo.GenerateNumber(ctx, time.Now())
		if err != nil {
			return Offer{}, fmt.Errorf("offers: generate number: %w", err)
		}
		offer.Number = number
		offer.Status = StatusDraft
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if offer.ID == 0 {
			id, err := tx.InsertOffer(ctx, offer)
			if err != nil {
				return err
			}
			offer.ID = id
		} else {
			if err := tx.UpdateOffer(ctx, offer); err != nil {
				return err
			}
		}
		return tx.ReplaceLines(ctx, offer.ID, offer.Lines)
	})
	if err != nil {
		return Offer{}, err
	}

	s.recordAudit(ctx, "OFFER_SAVE", offer.ID, map[string]any{"number": offer.Number, "total": offer.Total, "currency": offer.Currency})
	s.dispatchSaved(ctx, offer)
	return s.repo.Get(ctx, offer.ID)
}

// ChangeStatus applies a workflow transition. Moving to Accepted consults the
// resolver first: on conflict nothing is written and the caller receives the
// blocking product list. Every other target applies unconditionally.
func (s *Service) ChangeStatus(ctx context.Context, offerID int64, req ChangeStatusRequest) (Offer, error) {
	if !req.Status.Valid() {
		return Offer{}, fmt.Errorf("%w: unknown status %q", ErrValidation, req.Status)
	}
	offer, err := s.repo.Get(ctx, offerID)
	if err != nil {
		return Offer{}, err
	}

	if req.Status == StatusAccepted {
		conflicts, err := s.resolver.FindConflicts(ctx, offer)
		if err != nil {
			return Offer{}, err
		}
		if len(conflicts) > 0 {
			return Offer{}, fmt.Errorf("offers: %w", &shared.ConflictError{ProjectID: offer.ProjectID, ProductIDs: conflicts})
		}
	}

	version := req.Version
	if version == 0 {
		version = offer.Version
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateStatus(ctx, offerID, req.Status, version)
	})
	if err != nil {
		return Offer{}, err
	}

	s.recordAudit(ctx, "OFFER_STATUS", offerID, map[string]any{"number": offer.Number, "from": offer.Status, "to": req.Status})
	s.dispatchStatusChanged(ctx, offer, req.Status)
	return s.repo.Get(ctx, offerID)
}

// ExpireOverdue flips every SENT offer whose validity date has passed to
// EXPIRED. The worker's daily scan drives this; it returns the flipped IDs so
// the scan can enqueue reminders.
func (s *Service) ExpireOverdue(ctx context.Context, asOf time.Time) ([]int64, error) {
	overdue, err := s.repo.ListOverdue(ctx, asOf)
	if err != nil {
		return nil, err
	}
	var expired []int64
	for _, summary := range overdue {
		if _, err := s.ChangeStatus(ctx, summary.ID, ChangeStatusRequest{Status: StatusExpired}); err != nil {
			if s.logger != nil {
				s.logger.Warn("expire offer", slog.Int64("offer_id", summary.ID), slog.Any("error", err))
			}
			continue
		}
		expired = append(expired, summary.ID)
	}
	return expired, nil
}

// Delete destroys the offer and its lines.
func (s *Service) Delete(ctx context.Context, offerID int64) error {
	offer, err := s.repo.Get(ctx, offerID)
	if err != nil {
		return err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.DeleteOffer(ctx, offerID)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, "OFFER_DELETE", offerID, map[string]any{"number": offer.Number})
	return nil
}

// Get loads one offer with its lines.
func (s *Service) Get(ctx context.Context, offerID int64) (Offer, error) {
	return s.repo.Get(ctx, offerID)
}

// List returns offer summaries.
func (s *Service) List(ctx context.Context, filters ListFilters) ([]Summary, int, error) {
	return s.repo.List(ctx, filters)
}

func assembleOffer(req SaveOfferRequest) Offer {
	offer := Offer{
		ID:             req.ID,
		ProjectID:      req.ProjectID,
		Currency:       req.Currency,
		IncludeTax:     req.IncludeTax,
		TaxRate:        req.TaxRate,
		TransportCost:  req.TransportCost,
		OnsiteAssembly: req.OnsiteAssembly,
		OnsiteDiscount: req.OnsiteDiscount,
		Notes:          req.Notes,
		ValidUntil:     req.ValidUntil,
		Version:        req.Version,
	}
	for i, lineReq := range req.Lines {
		line := Line{
			ProductID:      lineReq.ProductID,
			Included:       lineReq.Included,
			Qty:            lineReq.Qty,
			MaterialCost:   lineReq.MaterialCost,
			Margin:         lineReq.Margin,
			LaborWorkers:   lineReq.LaborWorkers,
			LaborDays:      lineReq.LaborDays,
			LaborDailyRate: lineReq.LaborDailyRate,
			LineOrder:      lineReq.LineOrder,
		}
		if line.LineOrder == 0 {
			line.LineOrder = i + 1
		}
		for _, extraReq := range lineReq.Extras {
			line.Extras = append(line.Extras, Extra{
				Name:      extraReq.Name,
				Qty:       extraReq.Qty,
				Unit:      extraReq.Unit,
				UnitPrice: extraReq.UnitPrice,
			})
		}
		offer.Lines = append(offer.Lines, line)
	}
	return offer
}

// convertToSecondary rewrites every money field from primary-currency input
// into EUR. Counts (quantity, workers, days) stay untouched. The conversion
// is applied exactly once; the stored document keeps no BGN original.
func convertToSecondary(offer *Offer) {
	offer.TransportCost = pricing.ToSecondary(offer.TransportCost)
	offer.OnsiteDiscount = pricing.ToSecondary(offer.OnsiteDiscount)
	for i := range offer.Lines {
		line := &offer.Lines[i]
		line.MaterialCost = pricing.ToSecondary(line.MaterialCost)
		line.Margin = pricing.ToSecondary(line.Margin)
		line.LaborDailyRate = pricing.ToSecondary(line.LaborDailyRate)
		for j := range line.Extras {
			line.Extras[j].UnitPrice = pricing.ToSecondary(line.Extras[j].UnitPrice)
		}
	}
}

func recomputeTotals(offer *Offer) {
	for i := range offer.Lines {
		line := &offer.Lines[i]
		for j := range line.Extras {
			line.Extras[j].Total = pricing.ExtraTotal(line.Extras[j].Qty, line.Extras[j].UnitPrice)
		}
		line.LineTotal = pricing.LineTotal(pricingLine(*line))
	}
	totals := offer.Totals()
	offer.Subtotal = totals.Subtotal
	offer.Total = totals.Total
}

func (s *Service) recordAudit(ctx context.Context, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	refID := uuid.NewSHA1(uuid.Nil, []byte(fmt.Sprintf("OFFER:%d", entityID)))
	meta["ref"] = refID.String()
	_ = s.audit.Record(ctx, shared.AuditLog{Action: action, Entity: "offers", EntityID: fmt.Sprintf("%d", entityID), Meta: meta})
}

func (s *Service) dispatchSaved(ctx context.Context, offer Offer) {
	if s.events == nil {
		return
	}
	evt := OfferSavedEvent{
		ID:        offer.ID,
		Number:    offer.Number,
		ProjectID: offer.ProjectID,
		Currency:  offer.Currency,
		Subtotal:  offer.Subtotal,
		Total:     offer.Total,
		SavedAt:   time.Now(),
	}
	if err := s.events.HandleOfferSaved(ctx, evt); err != nil && s.logger != nil {
		s.logger.Warn("offer saved event", slog.Int64("offer_id", offer.ID), slog.Any("error", err))
	}
}

func (s *Service) dispatchStatusChanged(ctx context.Context, offer Offer, to OfferStatus) {
	if s.events == nil {
		return
	}
	evt := OfferStatusChangedEvent{
		ID:        offer.ID,
		Number:    offer.Number,
		ProjectID: offer.ProjectID,
		From:      offer.Status,
		To:        to,
		ChangedAt: time.Now(),
	}
	if err := s.events.HandleOfferStatusChanged(ctx, evt); err != nil && s.logger != nil {
		s.logger.Warn("offer status event", slog.Int64("offer_id", offer.ID), slog.Any("error", err))
	}
}
