package offers

import (
	"context"
	"time"
)

// OfferSavedEvent is emitted after a successful full-document save.
type OfferSavedEvent struct {
	ID        int64
	Number    string
	ProjectID int64
	Currency  string
	Subtotal  float64
	Total     float64
	SavedAt   time.Time
}

// OfferStatusChangedEvent is emitted after a persisted status transition.
type OfferStatusChangedEvent struct {
	ID        int64
	Number    string
	ProjectID int64
	From      OfferStatus
	To        OfferStatus
	ChangedAt time.Time
}

// EventHandler receives offer lifecycle events. The hosting UI's subscribe
// port hangs off this interface; dispatch is best effort after commit.
type EventHandler interface {
	HandleOfferSaved(ctx context.Context, evt OfferSavedEvent) error
	HandleOfferStatusChanged(ctx context.Context, evt OfferStatusChangedEvent) error
}
