// Package jobs holds the background work: the daily offer-validity scan and
// the reminder tasks it produces.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskOfferExpiryScan flips overdue SENT offers to EXPIRED.
	TaskOfferExpiryScan = "offers:expire"
	// TaskOfferReminder signals one expired offer to the notification layer.
	TaskOfferReminder = "offers:reminder"
)

// OfferReminderPayload identifies the expired offer a reminder is about.
type OfferReminderPayload struct {
	OfferID int64  `json:"offer_id"`
	Number  string `json:"number"`
}

// NewOfferExpiryScanTask constructs the scan task. It carries no payload;
// the scan always works against the current clock.
func NewOfferExpiryScanTask() *asynq.Task {
	return asynq.NewTask(TaskOfferExpiryScan, nil)
}

// NewOfferReminderTask constructs a reminder task.
func NewOfferReminderTask(payload OfferReminderPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOfferReminder, data), nil
}
