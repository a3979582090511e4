package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/atelier-erp/atelier-erp/internal/jobs"
	"github.com/atelier-erp/atelier-erp/internal/offers"
	"github.com/atelier-erp/atelier-erp/internal/shared"
)

// OfferExpiryScanner runs the daily validity scan. Each run flips every SENT
// offer whose validity date passed and enqueues one reminder per offer,
// deduplicated through the idempotency store so a rescheduled scan does not
// signal the same offer twice on the same day.
type OfferExpiryScanner struct {
	offers      *offers.Service
	idempotency *shared.IdempotencyStore
	client      *Client
	metrics     *jobmetrics.Metrics
	logger      *slog.Logger
}

// NewOfferExpiryScanner constructs the scanner. client and metrics may be nil.
func NewOfferExpiryScanner(offerService *offers.Service, idempotency *shared.IdempotencyStore, client *Client, metrics *jobmetrics.Metrics, logger *slog.Logger) *OfferExpiryScanner {
	return &OfferExpiryScanner{offers: offerService, idempotency: idempotency, client: client, metrics: metrics, logger: logger}
}

// HandleScan processes TaskOfferExpiryScan tasks.
func (s *OfferExpiryScanner) HandleScan(ctx context.Context, t *asynq.Task) error {
	tracker := s.metrics.Track("offer_expiry_scan")
	return tracker.End(s.scan(ctx))
}

func (s *OfferExpiryScanner) scan(ctx context.Context) error {
	now := time.Now()
	expired, err := s.offers.ExpireOverdue(ctx, now)
	if err != nil {
		return err
	}
	if len(expired) == 0 {
		return nil
	}
	s.logger.Info("offer expiry scan", slog.Int("expired", len(expired)))
	s.metrics.AddExpiredOffers(len(expired))

	for _, offerID := range expired {
		if err := s.enqueueReminder(ctx, offerID, now); err != nil {
			s.logger.Warn("enqueue reminder", slog.Int64("offer_id", offerID), slog.Any("error", err))
		}
	}
	return nil
}

func (s *OfferExpiryScanner) enqueueReminder(ctx context.Context, offerID int64, day time.Time) error {
	if s.client == nil {
		return nil
	}
	if s.idempotency != nil {
		key := shared.OfferExpiryKey(offerID, day)
		err := s.idempotency.CheckAndInsert(ctx, key, "offers")
		if errors.Is(err, shared.ErrIdempotencyConflict) {
			return nil
		}
		if err != nil {
			return err
		}
	}
	offer, err := s.offers.Get(ctx, offerID)
	if err != nil {
		return err
	}
	return s.client.EnqueueOfferReminder(ctx, OfferReminderPayload{OfferID: offer.ID, Number: offer.Number})
}

// HandleOfferReminderTask logs the reminder; delivery to sales staff is the
// notification layer's concern, the queue entry is the hand-off point.
func HandleOfferReminderTask(logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload OfferReminderPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		logger.Info("offer expired reminder",
			slog.Int64("offer_id", payload.OfferID),
			slog.String("number", payload.Number))
		return nil
	}
}
