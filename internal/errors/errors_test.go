package appErrors

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassifiersSeeThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("load campaign: %w", NewCampaignNotFound("c1"))
	if !IsNotFound(wrapped) {
		t.Fatalf("expected wrapped not-found to be classified")
	}
	if IsValidation(wrapped) || IsDelivery(wrapped) {
		t.Fatalf("not-found misclassified")
	}
	if got := wrapped.Error(); got != "load campaign: campaign with ID c1 not found" {
		t.Errorf("unexpected message %q", got)
	}
}

func TestQueueApplyErrorUnwraps(t *testing.T) {
	cause := errors.New("connection reset")
	err := error(&QueueApplyError{BatchSize: 3, Err: cause})
	if !errors.Is(err, cause) {
		t.Fatalf("expected QueueApplyError to unwrap to its cause")
	}
}

func TestValidationMessage(t *testing.T) {
	if got := NewValidation("status", "must be one of sent, delivered, failed").Error(); got != "invalid status: must be one of sent, delivered, failed" {
		t.Errorf("unexpected message %q", got)
	}
	if got := NewValidation("", "body required").Error(); got != "body required" {
		t.Errorf("unexpected message %q", got)
	}
}
