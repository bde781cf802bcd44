package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	appErrors "github.com/unclebandit/campaign-delivery/internal/errors"
	"github.com/unclebandit/campaign-delivery/internal/model"
)

type CampaignRepository struct {
	DB *sqlx.DB
}

const campaignColumns = `id, user_id, segment_rule_id, name, intent, message, status, stats, created_at, updated_at`

// ====================== Campaign CRUD ======================

func (r *CampaignRepository) Create(ctx context.Context, c *model.Campaign) error {
	if c.ID == "" {
		c.ID = newID()
	}
	c.CreatedAt = time.Now().UTC()
	if c.Status == "" {
		c.Status = model.CampaignStatusPending
	}
	if c.Stats == nil {
		c.Stats = model.StatusCounts{}
	}
	_, err := r.DB.NamedExecContext(ctx, `
		INSERT INTO campaigns (`+campaignColumns+`)
		VALUES (:id, :user_id, :segment_rule_id, :name, :intent, :message, :status, :stats, :created_at, :updated_at)
	`, c)
	return err
}

func (r *CampaignRepository) GetByID(ctx context.Context, userID, id string) (*model.Campaign, error) {
	var c model.Campaign
	err := r.DB.GetContext(ctx, &c, `SELECT `+campaignColumns+` FROM campaigns WHERE id=$1 AND user_id=$2`, id, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewCampaignNotFound(id)
		}
		return nil, err
	}
	return &c, nil
}

func (r *CampaignRepository) ListByUser(ctx context.Context, userID string) ([]model.Campaign, error) {
	campaigns := []model.Campaign{}
	err := r.DB.SelectContext(ctx, &campaigns, `SELECT `+campaignColumns+` FROM campaigns WHERE user_id=$1 ORDER BY created_at DESC, id`, userID)
	return campaigns, err
}

func (r *CampaignRepository) Update(ctx context.Context, c *model.Campaign) error {
	now := time.Now().UTC()
	c.UpdatedAt = &now
	res, err := r.DB.NamedExecContext(ctx, `
		UPDATE campaigns
		SET name=:name, intent=:intent, message=:message, segment_rule_id=:segment_rule_id, updated_at=:updated_at
		WHERE id=:id AND user_id=:user_id
	`, c)
	if err != nil {
		return err
	}
	return requireRow(res, appErrors.NewCampaignNotFound(c.ID))
}

func (r *CampaignRepository) UpdateStatus(ctx context.Context, id, status string) error {
	_, err := r.DB.ExecContext(ctx, `UPDATE campaigns SET status=$1, updated_at=$2 WHERE id=$3`, status, time.Now().UTC(), id)
	return err
}

// UpdateStats materializes recomputed counts on the campaign row.
func (r *CampaignRepository) UpdateStats(ctx context.Context, id string, counts model.StatusCounts) error {
	_, err := r.DB.ExecContext(ctx, `UPDATE campaigns SET stats=$1, updated_at=$2 WHERE id=$3`, counts, time.Now().UTC(), id)
	return err
}

// Delete removes the campaign's logs and then the campaign, in one transaction.
func (r *CampaignRepository) Delete(ctx context.Context, userID, id string) error {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM communication_logs WHERE campaign_id=$1 AND user_id=$2`, id, userID); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM campaigns WHERE id=$1 AND user_id=$2`, id, userID)
	if err != nil {
		return err
	}
	if err := requireRow(res, appErrors.NewCampaignNotFound(id)); err != nil {
		return err
	}
	return tx.Commit()
}

var _ CampaignRepositoryInterface = (*CampaignRepository)(nil)
