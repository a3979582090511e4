package offers

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/atelier-erp/atelier-erp/internal/catalog"
	"github.com/atelier-erp/atelier-erp/internal/shared"
)

type memoryRepo struct {
	offers     map[int64]Offer
	nextOffer  int64
	nextLine   int64
	numberSeq  int
	savedCalls int
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{offers: make(map[int64]Offer)}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (Offer, error) {
	offer, ok := r.offers[id]
	if !ok {
		return Offer{}, ErrNotFound
	}
	return cloneOffer(offer), nil
}

func (r *memoryRepo) ListByProject(ctx context.Context, projectID int64) ([]Offer, error) {
	var out []Offer
	for id := int64(1); id <= r.nextOffer; id++ {
		if offer, ok := r.offers[id]; ok && offer.ProjectID == projectID {
			out = append(out, cloneOffer(offer))
		}
	}
	return out, nil
}

func (r *memoryRepo) List(ctx context.Context, filters ListFilters) ([]Summary, int, error) {
	var out []Summary
	for id := int64(1); id <= r.nextOffer; id++ {
		offer, ok := r.offers[id]
		if !ok {
			continue
		}
		if filters.ProjectID > 0 && offer.ProjectID != filters.ProjectID {
			continue
		}
		if filters.Status != "" && offer.Status != filters.Status {
			continue
		}
		out = append(out, Summary{ID: offer.ID, Number: offer.Number, ProjectID: offer.ProjectID,
			Status: offer.Status, Currency: offer.Currency, Subtotal: offer.Subtotal, Total: offer.Total})
	}
	return out, len(out), nil
}

func (r *memoryRepo) ListOverdue(ctx context.Context, asOf time.Time) ([]Summary, error) {
	var out []Summary
	for id := int64(1); id <= r.nextOffer; id++ {
		offer, ok := r.offers[id]
		if !ok || offer.Status != StatusSent || offer.ValidUntil.IsZero() {
			continue
		}
		if offer.ValidUntil.Before(asOf) {
			out = append(out, Summary{ID: offer.ID, Number: offer.Number, ProjectID: offer.ProjectID, Status: offer.Status})
		}
	}
	return out, nil
}

func (r *memoryRepo) GenerateNumber(ctx context.Context, date time.Time) (string, error) {
	r.numberSeq++
	return fmt.Sprintf("OF-%s-%04d", date.Format("0601"), r.numberSeq), nil
}

func (tx *memoryTx) InsertOffer(ctx context.Context, offer Offer) (int64, error) {
	tx.repo.nextOffer++
	offer.ID = tx.repo.nextOffer
	offer.Version = 1
	offer.CreatedAt = time.Now()
	offer.UpdatedAt = offer.CreatedAt
	tx.repo.offers[offer.ID] = cloneOffer(offer)
	return offer.ID, nil
}

func (tx *memoryTx) UpdateOffer(ctx context.Context, offer Offer) error {
	existing, ok := tx.repo.offers[offer.ID]
	if !ok {
		return ErrNotFound
	}
	if existing.Version != offer.Version {
		return ErrStaleWrite
	}
	updated := cloneOffer(offer)
	updated.Version = existing.Version + 1
	updated.Status = existing.Status
	updated.Lines = existing.Lines
	updated.UpdatedAt = time.Now()
	tx.repo.offers[offer.ID] = updated
	return nil
}

func (tx *memoryTx) ReplaceLines(ctx context.Context, offerID int64, lines []Line) error {
	offer, ok := tx.repo.offers[offerID]
	if !ok {
		return ErrNotFound
	}
	offer.Lines = nil
	for _, line := range lines {
		tx.repo.nextLine++
		line.ID = tx.repo.nextLine
		line.OfferID = offerID
		offer.Lines = append(offer.Lines, line)
	}
	tx.repo.offers[offerID] = offer
	tx.repo.savedCalls++
	return nil
}

func (tx *memoryTx) UpdateStatus(ctx context.Context, id int64, status OfferStatus, version int64) error {
	offer, ok := tx.repo.offers[id]
	if !ok {
		return ErrNotFound
	}
	if offer.Version != version {
		return ErrStaleWrite
	}
	offer.Status = status
	offer.Version++
	offer.UpdatedAt = time.Now()
	tx.repo.offers[id] = offer
	return nil
}

func (tx *memoryTx) DeleteOffer(ctx context.Context, id int64) error {
	if _, ok := tx.repo.offers[id]; !ok {
		return ErrNotFound
	}
	delete(tx.repo.offers, id)
	return nil
}

func cloneOffer(offer Offer) Offer {
	out := offer
	out.Lines = make([]Line, len(offer.Lines))
	copy(out.Lines, offer.Lines)
	for i := range out.Lines {
		extras := make([]Extra, len(offer.Lines[i].Extras))
		copy(extras, offer.Lines[i].Extras)
		out.Lines[i].Extras = extras
	}
	return out
}

type catalogStub struct {
	projects map[int64]catalog.Project
}

func (c *catalogStub) GetProject(ctx context.Context, id int64) (catalog.Project, error) {
	project, ok := c.projects[id]
	if !ok {
		return catalog.Project{}, shared.ErrNotFound
	}
	return project, nil
}

func newService(repo *memoryRepo, cat CatalogPort) *Service {
	return NewService(repo, cat, NewResolver(repo), nil, nil, nil)
}

func fixtureCatalog() *catalogStub {
	return &catalogStub{projects: map[int64]catalog.Project{
		1: {ID: 1, Name: "Apartment Lozenets", Products: []catalog.Product{
			{ID: 10, ProjectID: 1, Name: "Wardrobe", Qty: 1, BaseMaterialCost: 100},
			{ID: 11, ProjectID: 1, Name: "Desk", Qty: 2, BaseMaterialCost: 80},
		}},
		2: {ID: 2, Name: "Office Mladost", Products: []catalog.Product{
			{ID: 10, ProjectID: 2, Name: "Wardrobe", Qty: 1, BaseMaterialCost: 100},
		}},
	}}
}

func saveRequest(projectID int64) SaveOfferRequest {
	return SaveOfferRequest{
		ProjectID:     projectID,
		Currency:      "BGN",
		IncludeTax:    true,
		TaxRate:       17,
		TransportCost: 30,
		Lines: []SaveOfferLineRequest{{
			ProductID:      10,
			Included:       true,
			Qty:            1,
			MaterialCost:   100,
			Margin:         20,
			LaborWorkers:   2,
			LaborDays:      3,
			LaborDailyRate: 50,
			Extras:         []SaveExtraRequest{{Name: "varnish", Qty: 2, UnitPrice: 15}},
		}},
	}
}

func TestSaveComputesTotals(t *testing.T) {
	repo := newMemoryRepo()
	svc := newService(repo, fixtureCatalog())
	ctx := context.Background()

	offer, err := svc.Save(ctx, saveRequest(1))
	require.NoError(t, err)
	require.Equal(t, StatusDraft, offer.Status)
	require.NotEmpty(t, offer.Number)
	require.InDelta(t, 450.0, offer.Subtotal, 0.0001)
	require.InDelta(t, 561.6, offer.Total, 0.0001)
	require.InDelta(t, 450.0, offer.Lines[0].LineTotal, 0.0001)
	require.InDelta(t, 30.0, offer.Lines[0].Extras[0].Total, 0.0001)
}

func TestSaveReloadKeepsLineTotals(t *testing.T) {
	repo := newMemoryRepo()
	svc := newService(repo, fixtureCatalog())
	ctx := context.Background()

	saved, err := svc.Save(ctx, saveRequest(1))
	require.NoError(t, err)

	reloaded, err := svc.Get(ctx, saved.ID)
	require.NoError(t, err)
	require.Equal(t, saved.Subtotal, reloaded.Subtotal)
	require.Equal(t, saved.Total, reloaded.Total)
	require.Equal(t, saved.Lines[0].LineTotal, reloaded.Lines[0].LineTotal)
}

func TestSaveRejectsEmptySelection(t *testing.T) {
	repo := newMemoryRepo()
	svc := newService(repo, fixtureCatalog())

	req := saveRequest(1)
	req.Lines[0].Included = false
	_, err := svc.Save(context.Background(), req)
	require.ErrorIs(t, err, shared.ErrValidation)

	req = saveRequest(0)
	_, err = svc.Save(context.Background(), req)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestSaveConvertsEURAtBoundary(t *testing.T) {
	repo := newMemoryRepo()
	svc := newService(repo, fixtureCatalog())

	req := saveRequest(1)
	req.Currency = "EUR"
	offer, err := svc.Save(context.Background(), req)
	require.NoError(t, err)

	// 100 BGN material cost lands as 100/1.95583 EUR; counts stay as typed.
	require.InDelta(t, 51.1291, offer.Lines[0].MaterialCost, 0.0001)
	require.InDelta(t, 2.0, offer.Lines[0].LaborWorkers, 0.0001)
	require.InDelta(t, 15.3388, offer.Lines[0].Extras[0].UnitPrice, 0.0001)
	require.InDelta(t, 30.0/1.95583, offer.TransportCost, 0.0001)
	require.InDelta(t, 450.0/1.95583, offer.Subtotal, 0.0001)
}

func TestResaveRequiresDraft(t *testing.T) {
	repo := newMemoryRepo()
	svc := newService(repo, fixtureCatalog())
	ctx := context.Background()

	offer, err := svc.Save(ctx, saveRequest(1))
	require.NoError(t, err)

	offer, err = svc.ChangeStatus(ctx, offer.ID, ChangeStatusRequest{Status: StatusAccepted})
	require.NoError(t, err)

	req := saveRequest(1)
	req.ID = offer.ID
	req.Version = offer.Version
	_, err = svc.Save(ctx, req)
	require.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestResaveReplacesAllLines(t *testing.T) {
	repo := newMemoryRepo()
	svc := newService(repo, fixtureCatalog())
	ctx := context.Background()

	offer, err := svc.Save(ctx, saveRequest(1))
	require.NoError(t, err)

	req := saveRequest(1)
	req.ID = offer.ID
	req.Version = offer.Version
	req.Lines = append(req.Lines, SaveOfferLineRequest{ProductID: 11, Included: true, Qty: 2, MaterialCost: 80})
	updated, err := svc.Save(ctx, req)
	require.NoError(t, err)
	require.Len(t, updated.Lines, 2)
	require.Equal(t, offer.Number, updated.Number)
	require.InDelta(t, 450.0+160.0, updated.Subtotal, 0.0001)
}

func TestStaleVersionRejected(t *testing.T) {
	repo := newMemoryRepo()
	svc := newService(repo, fixtureCatalog())
	ctx := context.Background()

	offer, err := svc.Save(ctx, saveRequest(1))
	require.NoError(t, err)

	req := saveRequest(1)
	req.ID = offer.ID
	req.Version = offer.Version
	_, err = svc.Save(ctx, req)
	require.NoError(t, err)

	// Replaying the original version after a successful re-save must fail.
	_, err = svc.Save(ctx, req)
	require.ErrorIs(t, err, shared.ErrStaleWrite)
}

func TestChangeStatusNonAcceptIsUnconditional(t *testing.T) {
	repo := newMemoryRepo()
	svc := newService(repo, fixtureCatalog())
	ctx := context.Background()

	first, err := svc.Save(ctx, saveRequest(1))
	require.NoError(t, err)
	_, err = svc.ChangeStatus(ctx, first.ID, ChangeStatusRequest{Status: StatusAccepted})
	require.NoError(t, err)

	// A second offer claiming the same product may still be sent or rejected,
	// only accepting is guarded.
	second, err := svc.Save(ctx, saveRequest(1))
	require.NoError(t, err)
	_, err = svc.ChangeStatus(ctx, second.ID, ChangeStatusRequest{Status: StatusSent})
	require.NoError(t, err)
	_, err = svc.ChangeStatus(ctx, second.ID, ChangeStatusRequest{Status: StatusRejected})
	require.NoError(t, err)
}

func TestBuildDraftSeedsFromProject(t *testing.T) {
	repo := newMemoryRepo()
	svc := newService(repo, fixtureCatalog())

	draft, err := svc.BuildDraft(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, StatusDraft, draft.Status)
	require.Equal(t, "BGN", draft.Currency)
	require.Zero(t, draft.ID)
	require.Len(t, draft.Lines, 2)
	require.Equal(t, int64(10), draft.Lines[0].ProductID)
	require.True(t, draft.Lines[0].Included)
	require.InDelta(t, 100.0, draft.Lines[0].MaterialCost, 0.0001)
	require.InDelta(t, 160.0, draft.Lines[1].LineTotal, 0.0001)
}

func TestBuildDraftExcludesClaimedProducts(t *testing.T) {
	repo := newMemoryRepo()
	svc := newService(repo, fixtureCatalog())
	ctx := context.Background()

	offer, err := svc.Save(ctx, saveRequest(1))
	require.NoError(t, err)
	_, err = svc.ChangeStatus(ctx, offer.ID, ChangeStatusRequest{Status: StatusAccepted})
	require.NoError(t, err)

	draft, err := svc.BuildDraft(ctx, 1)
	require.NoError(t, err)
	require.Len(t, draft.Lines, 1)
	require.Equal(t, int64(11), draft.Lines[0].ProductID)
}

func TestExpireOverdue(t *testing.T) {
	repo := newMemoryRepo()
	svc := newService(repo, fixtureCatalog())
	ctx := context.Background()

	req := saveRequest(1)
	req.ValidUntil = time.Now().Add(-48 * time.Hour)
	offer, err := svc.Save(ctx, req)
	require.NoError(t, err)
	_, err = svc.ChangeStatus(ctx, offer.ID, ChangeStatusRequest{Status: StatusSent})
	require.NoError(t, err)

	expired, err := svc.ExpireOverdue(ctx, time.Now())
	require.NoError(t, err)
	require.Equal(t, []int64{offer.ID}, expired)

	reloaded, err := svc.Get(ctx, offer.ID)
	require.NoError(t, err)
	require.Equal(t, StatusExpired, reloaded.Status)
}

func TestDelete(t *testing.T) {
	repo := newMemoryRepo()
	svc := newService(repo, fixtureCatalog())
	ctx := context.Background()

	offer, err := svc.Save(ctx, saveRequest(1))
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, offer.ID))

	_, err = svc.Get(ctx, offer.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
}
