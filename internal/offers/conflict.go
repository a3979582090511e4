package offers

import (
	"context"
)

// ResolverRepository is the slice of persistence the resolver needs.
type ResolverRepository interface {
	ListByProject(ctx context.Context, projectID int64) ([]Offer, error)
}

// Resolver detects products claimed by more than one accepted offer of the
// same project. Both the draft-seeding filter and the accept-time check go
// through it, so the two call sites cannot drift apart.
type Resolver struct {
	repo ResolverRepository
}

// NewResolver constructs a resolver.
func NewResolver(repo ResolverRepository) *Resolver {
	return &Resolver{repo: repo}
}

// ClaimedProducts returns the product IDs included in accepted offers of the
// project, excluding excludeOfferID. First accepted wins: acceptance order is
// the only priority.
func (r *Resolver) ClaimedProducts(ctx context.Context, projectID, excludeOfferID int64) (map[int64]bool, error) {
	others, err := r.repo.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	claimed := make(map[int64]bool)
	for _, other := range others {
		if other.ID == excludeOfferID || other.Status != StatusAccepted {
			continue
		}
		for _, productID := range other.IncludedProductIDs() {
			claimed[productID] = true
		}
	}
	return claimed, nil
}

// FindConflicts computes the intersection of the offer's included products
// with products already claimed by other accepted offers of its project.
// Offers for other projects never block, whatever products they carry.
func (r *Resolver) FindConflicts(ctx context.Context, offer Offer) ([]int64, error) {
	claimed, err := r.ClaimedProducts(ctx, offer.ProjectID, offer.ID)
	if err != nil {
		return nil, err
	}
	var conflicts []int64
	for _, productID := range offer.IncludedProductIDs() {
		if claimed[productID] {
			conflicts = append(conflicts, productID)
		}
	}
	return conflicts, nil
}
