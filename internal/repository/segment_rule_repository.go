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

type SegmentRuleRepository struct {
	DB *sqlx.DB
}

const segmentRuleColumns = `id, user_id, name, logic_type, rules, created_at, updated_at`

func (r *SegmentRuleRepository) Create(ctx context.Context, rule *model.SegmentRule) error {
	now := time.Now().UTC()
	if rule.ID == "" {
		rule.ID = newID()
	}
	if rule.LogicType == "" {
		rule.LogicType = model.LogicAND
	}
	rule.CreatedAt = now
	rule.UpdatedAt = now
	_, err := r.DB.NamedExecContext(ctx, `
		INSERT INTO segment_rules (`+segmentRuleColumns+`)
		VALUES (:id, :user_id, :name, :logic_type, :rules, :created_at, :updated_at)
	`, rule)
	return err
}

func (r *SegmentRuleRepository) GetByID(ctx context.Context, userID, id string) (*model.SegmentRule, error) {
	var rule model.SegmentRule
	err := r.DB.GetContext(ctx, &rule, `SELECT `+segmentRuleColumns+` FROM segment_rules WHERE id=$1 AND user_id=$2`, id, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewSegmentRuleNotFound(id)
		}
		return nil, err
	}
	return &rule, nil
}

func (r *SegmentRuleRepository) ListByUser(ctx context.Context, userID string) ([]model.SegmentRule, error) {
	rules := []model.SegmentRule{}
	err := r.DB.SelectContext(ctx, &rules, `SELECT `+segmentRuleColumns+` FROM segment_rules WHERE user_id=$1 ORDER BY created_at, id`, userID)
	return rules, err
}

func (r *SegmentRuleRepository) Update(ctx context.Context, rule *model.SegmentRule) error {
	rule.UpdatedAt = time.Now().UTC()
	if rule.LogicType == "" {
		rule.LogicType = model.LogicAND
	}
	res, err := r.DB.NamedExecContext(ctx, `
		UPDATE segment_rules
		SET name=:name, logic_type=:logic_type, rules=:rules, updated_at=:updated_at
		WHERE id=:id AND user_id=:user_id
	`, rule)
	if err != nil {
		return err
	}
	return requireRow(res, appErrors.NewSegmentRuleNotFound(rule.ID))
}

func (r *SegmentRuleRepository) Delete(ctx context.Context, userID, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM segment_rules WHERE id=$1 AND user_id=$2`, id, userID)
	if err != nil {
		return err
	}
	return requireRow(res, appErrors.NewSegmentRuleNotFound(id))
}

var _ SegmentRuleRepositoryInterface = (*SegmentRuleRepository)(nil)
