package receipts_test

import (
	"context"
	"errors"
	"testing"
	"time"

	appErrors "github.com/unclebandit/campaign-delivery/internal/errors"
	"github.com/unclebandit/campaign-delivery/internal/logger"
	"github.com/unclebandit/campaign-delivery/internal/model"
	"github.com/unclebandit/campaign-delivery/internal/queue"
	"github.com/unclebandit/campaign-delivery/internal/receipts"
	"github.com/unclebandit/campaign-delivery/internal/repository"
)

type captureQueue struct {
	updates []model.ReceiptUpdate
	err     error
}

func (q *captureQueue) Enqueue(updates ...model.ReceiptUpdate) error {
	if q.err != nil {
		return q.err
	}
	q.updates = append(q.updates, updates...)
	return nil
}

type memoryDedup struct {
	seen map[string]bool
}

func (d *memoryDedup) IsDuplicate(ctx context.Context, messageID, status string) (bool, error) {
	key := messageID + "/" + status
	if d.seen[key] {
		return true, nil
	}
	d.seen[key] = true
	return false, nil
}

func (d *memoryDedup) Forget(ctx context.Context, messageID, status string) error {
	delete(d.seen, messageID+"/"+status)
	return nil
}

func sentLogStore(t *testing.T, messageID string) repository.CommunicationLogRepositoryInterface {
	t.Helper()
	ctx := context.Background()
	logs := repository.NewMemoryStore().Logs()
	l := &model.CommunicationLog{CampaignID: "camp-1", CustomerID: "c-1", UserID: "u-1"}
	if err := logs.Create(ctx, l); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := logs.MarkSent(ctx, l.ID, messageID, time.Now()); err != nil {
		t.Fatalf("mark sent: %v", err)
	}
	return logs
}

func TestIngressQueuesKnownMessage(t *testing.T) {
	q := &captureQueue{}
	ing := receipts.NewIngress(sentLogStore(t, "msg-1"), q, nil, logger.Discard())

	ack, err := ing.Receive(context.Background(), model.DeliveryReceipt{MessageID: "msg-1", Status: "Delivered"})
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if !ack.Accepted || !ack.Queued {
		t.Errorf("expected accepted and queued, got %+v", ack)
	}
	if len(q.updates) != 1 || q.updates[0].CampaignID != "camp-1" || q.updates[0].Status != model.StatusDelivered {
		t.Errorf("unexpected queued updates %+v", q.updates)
	}
}

func TestIngressValidation(t *testing.T) {
	ing := receipts.NewIngress(sentLogStore(t, "msg-1"), &captureQueue{}, nil, logger.Discard())

	tests := []model.DeliveryReceipt{
		{Status: "delivered"},
		{MessageID: "msg-1"},
		{MessageID: "msg-1", Status: "pending"},
		{MessageID: "msg-1", Status: "read"},
	}
	for _, r := range tests {
		if _, err := ing.Receive(context.Background(), r); !appErrors.IsValidation(err) {
			t.Errorf("%+v: expected validation error, got %v", r, err)
		}
	}
}

func TestIngressUnknownMessageLeavesQueueUntouched(t *testing.T) {
	logs := sentLogStore(t, "msg-1")
	q := queue.New(logs, nil, logger.Discard(), queue.Options{})
	ing := receipts.NewIngress(logs, q, nil, logger.Discard())

	before := q.Status().QueueLength
	_, err := ing.Receive(context.Background(), model.DeliveryReceipt{MessageID: "msg-unknown", Status: "delivered"})
	if !appErrors.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if after := q.Status(); after.QueueLength != before || after.IsDraining {
		t.Errorf("queue changed: before=%d after=%+v", before, after)
	}
}

func TestIngressDropsDuplicates(t *testing.T) {
	q := &captureQueue{}
	ing := receipts.NewIngress(sentLogStore(t, "msg-1"), q, &memoryDedup{seen: map[string]bool{}}, logger.Discard())

	r := model.DeliveryReceipt{MessageID: "msg-1", Status: "delivered"}
	if _, err := ing.Receive(context.Background(), r); err != nil {
		t.Fatalf("first receive: %v", err)
	}
	ack, err := ing.Receive(context.Background(), r)
	if err != nil {
		t.Fatalf("second receive: %v", err)
	}
	if !ack.Accepted || !ack.Duplicate || ack.Queued {
		t.Errorf("expected accepted duplicate, got %+v", ack)
	}
	if len(q.updates) != 1 {
		t.Errorf("expected one queued update, got %d", len(q.updates))
	}
}

func TestIngressForgetsDedupMarkWhenQueueRejects(t *testing.T) {
	dedup := &memoryDedup{seen: map[string]bool{}}
	q := &captureQueue{err: queue.ErrClosed}
	ing := receipts.NewIngress(sentLogStore(t, "msg-1"), q, dedup, logger.Discard())

	r := model.DeliveryReceipt{MessageID: "msg-1", Status: "delivered"}
	if _, err := ing.Receive(context.Background(), r); !errors.Is(err, queue.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if len(dedup.seen) != 0 {
		t.Errorf("expected dedup mark removed, got %v", dedup.seen)
	}
}
