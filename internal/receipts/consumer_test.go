package receipts_test

import (
	"context"
	"errors"
	"testing"

	appErrors "github.com/unclebandit/campaign-delivery/internal/errors"
	"github.com/unclebandit/campaign-delivery/internal/logger"
	"github.com/unclebandit/campaign-delivery/internal/model"
	"github.com/unclebandit/campaign-delivery/internal/receipts"
)

type stubReceiver struct {
	err error
	got []model.DeliveryReceipt
}

func (s *stubReceiver) Receive(ctx context.Context, r model.DeliveryReceipt) (receipts.Ack, error) {
	s.got = append(s.got, r)
	return receipts.Ack{Accepted: s.err == nil}, s.err
}

func TestConsumerHandleOutcomes(t *testing.T) {
	body := []byte(`{"messageId":"msg-1","status":"delivered","metadata":{"provider":"simulator"}}`)
	tests := []struct {
		name        string
		body        []byte
		err         error
		redelivered bool
		want        receipts.Outcome
	}{
		{"accepted", body, nil, false, receipts.OutcomeAck},
		{"bad json", []byte(`{`), nil, false, receipts.OutcomeDrop},
		{"invalid", body, appErrors.NewValidation("status", "bad"), false, receipts.OutcomeDrop},
		{"unknown first time", body, appErrors.NewNotFound("communication log for message", "msg-1"), false, receipts.OutcomeRequeue},
		{"unknown redelivered", body, appErrors.NewNotFound("communication log for message", "msg-1"), true, receipts.OutcomeDrop},
		{"transient", body, errors.New("db down"), false, receipts.OutcomeRequeue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rcv := &stubReceiver{err: tt.err}
			c := receipts.NewConsumer(nil, rcv, logger.Discard())
			if got := c.Handle(context.Background(), tt.body, tt.redelivered); got != tt.want {
				t.Errorf("expected outcome %d, got %d", tt.want, got)
			}
		})
	}
}

func TestConsumerHandleDecodesReceipt(t *testing.T) {
	rcv := &stubReceiver{}
	c := receipts.NewConsumer(nil, rcv, logger.Discard())
	c.Handle(context.Background(), []byte(`{"messageId":"msg-9","status":"failed","metadata":{"error":"Delivery timeout"}}`), false)

	if len(rcv.got) != 1 {
		t.Fatalf("expected one receipt, got %d", len(rcv.got))
	}
	r := rcv.got[0]
	if r.MessageID != "msg-9" || r.Status != "failed" || r.Metadata["error"] != "Delivery timeout" {
		t.Errorf("unexpected receipt %+v", r)
	}
}
