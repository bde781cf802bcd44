package service

import (
	"context"

	"github.com/unclebandit/campaign-delivery/internal/model"
	"github.com/unclebandit/campaign-delivery/internal/repository"
	"github.com/unclebandit/campaign-delivery/internal/segment"
)

type SegmentService struct {
	SegmentRepo  repository.SegmentRuleRepositoryInterface
	CustomerRepo repository.CustomerRepositoryInterface
}

type SegmentRuleInput struct {
	Name      string           `json:"name" validate:"required"`
	LogicType model.LogicType  `json:"logicType"`
	Rules     model.Conditions `json:"rules"`
}

func (in SegmentRuleInput) toRule(userID string) *model.SegmentRule {
	rules := in.Rules
	if rules == nil {
		rules = model.Conditions{}
	}
	return &model.SegmentRule{UserID: userID, Name: in.Name, LogicType: in.LogicType, Rules: rules}
}

func (s *SegmentService) checkRule(in SegmentRuleInput, rule *model.SegmentRule) error {
	if err := validateInput(in); err != nil {
		return err
	}
	return segment.Validate(rule)
}

func (s *SegmentService) CreateRule(ctx context.Context, userID string, in SegmentRuleInput) (*model.SegmentRule, error) {
	rule := in.toRule(userID)
	if err := s.checkRule(in, rule); err != nil {
		return nil, err
	}
	if err := s.SegmentRepo.Create(ctx, rule); err != nil {
		return nil, err
	}
	return rule, nil
}

func (s *SegmentService) GetRule(ctx context.Context, userID, id string) (*model.SegmentRule, error) {
	return s.SegmentRepo.GetByID(ctx, userID, id)
}

func (s *SegmentService) ListRules(ctx context.Context, userID string) ([]model.SegmentRule, error) {
	return s.SegmentRepo.ListByUser(ctx, userID)
}

func (s *SegmentService) UpdateRule(ctx context.Context, userID, id string, in SegmentRuleInput) (*model.SegmentRule, error) {
	rule := in.toRule(userID)
	rule.ID = id
	if err := s.checkRule(in, rule); err != nil {
		return nil, err
	}
	if err := s.SegmentRepo.Update(ctx, rule); err != nil {
		return nil, err
	}
	return rule, nil
}

// DeleteRule does not touch campaigns that reference the rule; their stats
// then report an unknown segment.
func (s *SegmentService) DeleteRule(ctx context.Context, userID, id string) error {
	return s.SegmentRepo.Delete(ctx, userID, id)
}

// CustomersForSegment evaluates the rule against the tenant's own customers.
func (s *SegmentService) CustomersForSegment(ctx context.Context, userID, ruleID string) ([]model.Customer, error) {
	rule, err := s.SegmentRepo.GetByID(ctx, userID, ruleID)
	if err != nil {
		return nil, err
	}
	customers, err := s.CustomerRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return segment.Filter(customers, rule), nil
}
