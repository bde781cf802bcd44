package model

import "time"

const (
	StatusPending   = "pending"
	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusFailed    = "failed"
)

type CommunicationLog struct {
	ID          string     `db:"id" json:"id"`
	CampaignID  string     `db:"campaign_id" json:"campaign_id"`
	CustomerID  string     `db:"customer_id" json:"customer_id"`
	UserID      string     `db:"user_id" json:"user_id"`
	Message     string     `db:"message" json:"message"`
	Status      string     `db:"status" json:"status"` // pending, sent, delivered, failed
	MessageID   *string    `db:"message_id" json:"message_id,omitempty"`
	SentAt      *time.Time `db:"sent_at" json:"sent_at,omitempty"`
	DeliveredAt *time.Time `db:"delivered_at" json:"delivered_at,omitempty"`
	FailedAt    *time.Time `db:"failed_at" json:"failed_at,omitempty"`
	Error       string     `db:"error" json:"error,omitempty"`
	Metadata    Metadata   `db:"metadata" json:"metadata,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

func statusRank(status string) int {
	switch status {
	case StatusPending:
		return 0
	case StatusSent:
		return 1
	case StatusDelivered, StatusFailed:
		return 2
	}
	return -1
}

// IsTerminal reports whether no further transition is expected from status.
func IsTerminal(status string) bool {
	return status == StatusDelivered || status == StatusFailed
}

// CanTransition enforces pending -> sent -> {delivered, failed}. Terminal
// states never move and a status never moves backwards or repeats.
func CanTransition(from, to string) bool {
	if IsTerminal(from) || statusRank(to) < 0 {
		return false
	}
	return statusRank(to) > statusRank(from)
}

// IsReceiptStatus reports whether status may arrive through a delivery receipt.
func IsReceiptStatus(status string) bool {
	return status == StatusSent || status == StatusDelivered || status == StatusFailed
}

// Outranks reports whether applying a after b would leave a's status, i.e. a
// ranks strictly higher. Used to collapse several updates for one message.
func Outranks(a, b string) bool {
	return statusRank(a) > statusRank(b)
}
