package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	appErrors "github.com/unclebandit/campaign-delivery/internal/errors"
	"github.com/unclebandit/campaign-delivery/internal/model"
)

type CommunicationLogRepository struct {
	DB *sqlx.DB
}

const logColumns = `id, campaign_id, customer_id, user_id, message, status, message_id, sent_at, delivered_at, failed_at, error, metadata, created_at, updated_at`

// Create inserts a new log; callers persist it before the vendor is invoked.
func (r *CommunicationLogRepository) Create(ctx context.Context, l *model.CommunicationLog) error {
	now := time.Now().UTC()
	if l.ID == "" {
		l.ID = newID()
	}
	if l.Status == "" {
		l.Status = model.StatusPending
	}
	l.CreatedAt = now
	l.UpdatedAt = now
	_, err := r.DB.NamedExecContext(ctx, `
		INSERT INTO communication_logs (`+logColumns+`)
		VALUES (:id, :campaign_id, :customer_id, :user_id, :message, :status, :message_id, :sent_at, :delivered_at, :failed_at, :error, :metadata, :created_at, :updated_at)
	`, l)
	return err
}

func (r *CommunicationLogRepository) MarkSent(ctx context.Context, id, messageID string, at time.Time) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE communication_logs
		SET status='sent', message_id=$1, sent_at=$2, updated_at=$2
		WHERE id=$3 AND status='pending'
	`, messageID, at, id)
	if err != nil {
		return err
	}
	return requireRow(res, appErrors.NewLogNotFound(id))
}

func (r *CommunicationLogRepository) MarkFailed(ctx context.Context, id, reason string, at time.Time) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE communication_logs
		SET status='failed', error=$1, failed_at=$2, updated_at=$2
		WHERE id=$3 AND status='pending'
	`, reason, at, id)
	if err != nil {
		return err
	}
	return requireRow(res, appErrors.NewLogNotFound(id))
}

func (r *CommunicationLogRepository) GetByMessageID(ctx context.Context, messageID string) (*model.CommunicationLog, error) {
	var l model.CommunicationLog
	err := r.DB.GetContext(ctx, &l, `SELECT `+logColumns+` FROM communication_logs WHERE message_id=$1`, messageID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewNotFound("communication log for message", messageID)
		}
		return nil, err
	}
	return &l, nil
}

func (r *CommunicationLogRepository) GetByID(ctx context.Context, userID, id string) (*model.CommunicationLog, error) {
	var l model.CommunicationLog
	err := r.DB.GetContext(ctx, &l, `SELECT `+logColumns+` FROM communication_logs WHERE id=$1 AND user_id=$2`, id, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewLogNotFound(id)
		}
		return nil, err
	}
	return &l, nil
}

func (r *CommunicationLogRepository) list(ctx context.Context, where string, args ...any) ([]model.CommunicationLog, error) {
	logs := []model.CommunicationLog{}
	err := r.DB.SelectContext(ctx, &logs, `SELECT `+logColumns+` FROM communication_logs WHERE `+where+` ORDER BY created_at, id`, args...)
	return logs, err
}

func (r *CommunicationLogRepository) ListByUser(ctx context.Context, userID string) ([]model.CommunicationLog, error) {
	return r.list(ctx, `user_id=$1`, userID)
}

func (r *CommunicationLogRepository) ListByCampaign(ctx context.Context, userID, campaignID string) ([]model.CommunicationLog, error) {
	return r.list(ctx, `user_id=$1 AND campaign_id=$2`, userID, campaignID)
}

func (r *CommunicationLogRepository) ListByCustomer(ctx context.Context, userID, customerID string) ([]model.CommunicationLog, error) {
	return r.list(ctx, `user_id=$1 AND customer_id=$2`, userID, customerID)
}

func (r *CommunicationLogRepository) countBy(ctx context.Context, column, value string) (model.StatusCounts, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT status, COUNT(*) FROM communication_logs WHERE `+column+`=$1 GROUP BY status`, value)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := model.StatusCounts{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

func (r *CommunicationLogRepository) CountByCampaign(ctx context.Context, campaignID string) (model.StatusCounts, error) {
	return r.countBy(ctx, "campaign_id", campaignID)
}

func (r *CommunicationLogRepository) CountByUser(ctx context.Context, userID string) (model.StatusCounts, error) {
	return r.countBy(ctx, "user_id", userID)
}

// The guard mirrors model.CanTransition: only pending/sent rows move, and only forwards.
const bulkApplyReceipts = `
	UPDATE communication_logs AS l
	SET status       = u.status,
	    sent_at      = CASE WHEN u.status = 'sent' THEN $5 ELSE l.sent_at END,
	    delivered_at = CASE WHEN u.status = 'delivered' THEN $5 ELSE l.delivered_at END,
	    failed_at    = CASE WHEN u.status = 'failed' THEN $5 ELSE l.failed_at END,
	    error        = CASE WHEN u.status = 'failed' THEN u.error ELSE l.error END,
	    metadata     = COALESCE(NULLIF(u.metadata, '')::jsonb, l.metadata),
	    updated_at   = $5
	FROM unnest($1::text[], $2::text[], $3::text[], $4::text[]) AS u(message_id, status, error, metadata)
	WHERE l.message_id = u.message_id
	  AND l.status IN ('pending', 'sent')
	  AND (CASE u.status WHEN 'sent' THEN 1 ELSE 2 END) > (CASE l.status WHEN 'pending' THEN 0 ELSE 1 END)
`

func (r *CommunicationLogRepository) BulkApplyReceipts(ctx context.Context, updates []model.ReceiptUpdate, now time.Time) (int64, error) {
	collapsed := collapseReceipts(updates)
	if len(collapsed) == 0 {
		return 0, nil
	}

	ids := make([]string, len(collapsed))
	statuses := make([]string, len(collapsed))
	errs := make([]string, len(collapsed))
	metas := make([]string, len(collapsed))
	for i, u := range collapsed {
		ids[i] = u.MessageID
		statuses[i] = u.Status
		if u.Status == model.StatusFailed {
			errs[i] = u.ErrorText()
		}
		if u.Metadata != nil {
			b, err := json.Marshal(u.Metadata)
			if err != nil {
				return 0, fmt.Errorf("marshal metadata for %s: %w", u.MessageID, err)
			}
			metas[i] = string(b)
		}
	}

	res, err := r.DB.ExecContext(ctx, bulkApplyReceipts,
		pq.Array(ids), pq.Array(statuses), pq.Array(errs), pq.Array(metas), now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// collapseReceipts keeps, per message id, the update a sequential guarded
// apply would end on. An UPDATE ... FROM joining the same row twice applies
// an arbitrary one, so duplicates are resolved here first.
func collapseReceipts(updates []model.ReceiptUpdate) []model.ReceiptUpdate {
	index := make(map[string]int, len(updates))
	out := make([]model.ReceiptUpdate, 0, len(updates))
	for _, u := range updates {
		if !model.IsReceiptStatus(u.Status) {
			continue
		}
		i, seen := index[u.MessageID]
		if !seen {
			index[u.MessageID] = len(out)
			out = append(out, u)
			continue
		}
		if model.Outranks(u.Status, out[i].Status) && !model.IsTerminal(out[i].Status) {
			out[i] = u
		}
	}
	return out
}

func (r *CommunicationLogRepository) Delete(ctx context.Context, userID, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM communication_logs WHERE id=$1 AND user_id=$2`, id, userID)
	if err != nil {
		return err
	}
	return requireRow(res, appErrors.NewLogNotFound(id))
}

var _ CommunicationLogRepositoryInterface = (*CommunicationLogRepository)(nil)
