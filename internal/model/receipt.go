package model

import (
	"fmt"
	"time"
)

// ReceiptUpdate is a queued, not yet applied, status change for one message.
// It only lives in the delivery queue's buffer.
type ReceiptUpdate struct {
	MessageID  string    `json:"messageId"`
	CampaignID string    `json:"campaignId"`
	Status     string    `json:"status"`
	Metadata   Metadata  `json:"metadata,omitempty"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// ErrorText returns the failure reason carried in the metadata.
func (u ReceiptUpdate) ErrorText() string {
	if v, ok := u.Metadata["error"]; ok && v != nil {
		return fmt.Sprint(v)
	}
	return "Unknown error"
}

// DeliveryReceipt is a vendor callback reporting a message's status.
type DeliveryReceipt struct {
	MessageID string    `json:"messageId"`
	Status    string    `json:"status"`
	Metadata  Metadata  `json:"metadata,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}
