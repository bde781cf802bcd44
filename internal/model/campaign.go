// internal/model/campaign.go
package model

import "time"

const (
	CampaignStatusPending    = "pending"
	CampaignStatusProcessing = "processing"
	CampaignStatusCompleted  = "completed"
	CampaignStatusFailed     = "failed"
)

type Campaign struct {
	ID            string       `db:"id" json:"id"`
	UserID        string       `db:"user_id" json:"user_id"`
	SegmentRuleID string       `db:"segment_rule_id" json:"segment_rule_id"`
	Name          string       `db:"name" json:"name"`
	Intent        string       `db:"intent" json:"intent"`
	Message       string       `db:"message" json:"message"`
	Status        string       `db:"status" json:"status"`
	Stats         StatusCounts `db:"stats" json:"stats"`
	CreatedAt     time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt     *time.Time   `db:"updated_at" json:"updated_at,omitempty"`
}

// CampaignStats is derived from the campaign's communication logs.
type CampaignStats struct {
	CampaignID   string  `json:"campaign_id,omitempty"`
	Name         string  `json:"name,omitempty"`
	Message      string  `json:"message,omitempty"`
	SegmentName  string  `json:"segmentName,omitempty"`
	Total        int     `json:"total"`
	Pending      int     `json:"pending"`
	Sent         int     `json:"sent"`
	Delivered    int     `json:"delivered"`
	Failed       int     `json:"failed"`
	DeliveryRate float64 `json:"deliveryRate"`
	FailureRate  float64 `json:"failureRate"`
	Summary      string  `json:"summary,omitempty"`
}

// StatsFromCounts builds stats from per-status counts. Rates are zero when there are no logs.
func StatsFromCounts(counts StatusCounts) CampaignStats {
	s := CampaignStats{
		Pending:   counts[StatusPending],
		Sent:      counts[StatusSent],
		Delivered: counts[StatusDelivered],
		Failed:    counts[StatusFailed],
	}
	for _, n := range counts {
		s.Total += n
	}
	if s.Total > 0 {
		s.DeliveryRate = float64(s.Delivered) / float64(s.Total)
		s.FailureRate = float64(s.Failed) / float64(s.Total)
	}
	return s
}
