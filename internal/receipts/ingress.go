// Package receipts accepts delivery receipts from vendors and hands them to
// the delivery queue. It never writes log records itself.
package receipts

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	appErrors "github.com/unclebandit/campaign-delivery/internal/errors"
	"github.com/unclebandit/campaign-delivery/internal/model"
)

type LogLookup interface {
	GetByMessageID(ctx context.Context, messageID string) (*model.CommunicationLog, error)
}

type Enqueuer interface {
	Enqueue(updates ...model.ReceiptUpdate) error
}

// Deduplicator is satisfied by *cache.Deduplicator.
type Deduplicator interface {
	IsDuplicate(ctx context.Context, messageID, status string) (bool, error)
	Forget(ctx context.Context, messageID, status string) error
}

// Ack tells the caller the receipt was queued, not applied.
type Ack struct {
	Accepted  bool   `json:"accepted"`
	Queued    bool   `json:"queued"`
	Duplicate bool   `json:"duplicate,omitempty"`
	MessageID string `json:"messageId"`
	Status    string `json:"status"`
}

type Ingress struct {
	logs  LogLookup
	queue Enqueuer
	dedup Deduplicator
	log   logrus.FieldLogger
}

// NewIngress builds an ingress. dedup may be nil.
func NewIngress(logs LogLookup, queue Enqueuer, dedup Deduplicator, log logrus.FieldLogger) *Ingress {
	return &Ingress{logs: logs, queue: queue, dedup: dedup, log: log}
}

func (i *Ingress) Receive(ctx context.Context, r model.DeliveryReceipt) (Ack, error) {
	r.MessageID = strings.TrimSpace(r.MessageID)
	r.Status = strings.ToLower(strings.TrimSpace(r.Status))
	if r.MessageID == "" {
		return Ack{}, appErrors.NewValidation("messageId", "is required")
	}
	if r.Status == "" {
		return Ack{}, appErrors.NewValidation("status", "is required")
	}
	if !model.IsReceiptStatus(r.Status) {
		return Ack{}, appErrors.NewValidation("status", "must be one of sent, delivered, failed")
	}

	entry, err := i.logs.GetByMessageID(ctx, r.MessageID)
	if err != nil {
		return Ack{}, err
	}

	ack := Ack{Accepted: true, MessageID: r.MessageID, Status: r.Status}
	if i.dedup != nil {
		dup, err := i.dedup.IsDuplicate(ctx, r.MessageID, r.Status)
		if err != nil {
			// best effort: fall through and enqueue
			i.log.WithError(err).WithField("message_id", r.MessageID).Warn("receipt dedup check failed")
		} else if dup {
			ack.Duplicate = true
			return ack, nil
		}
	}

	update := model.ReceiptUpdate{
		MessageID:  r.MessageID,
		CampaignID: entry.CampaignID,
		Status:     r.Status,
		Metadata:   r.Metadata,
	}
	if err := i.queue.Enqueue(update); err != nil {
		if i.dedup != nil {
			_ = i.dedup.Forget(ctx, r.MessageID, r.Status)
		}
		return Ack{}, err
	}

	ack.Queued = true
	i.log.WithFields(logrus.Fields{
		"message_id":  r.MessageID,
		"campaign_id": entry.CampaignID,
		"status":      r.Status,
	}).Debug("receipt queued")
	return ack, nil
}

// DirectSink feeds vendor receipts straight into an Ingress, for vendors
// running in the same process.
type DirectSink struct {
	Ingress *Ingress
}

func (s *DirectSink) Publish(ctx context.Context, r model.DeliveryReceipt) error {
	_, err := s.Ingress.Receive(ctx, r)
	return err
}
