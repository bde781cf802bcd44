package service

import (
	"context"

	"github.com/unclebandit/campaign-delivery/internal/model"
	"github.com/unclebandit/campaign-delivery/internal/repository"
)

// LogService serves read access to communication logs.
type LogService struct {
	LogRepo      repository.CommunicationLogRepositoryInterface
	CampaignRepo repository.CampaignRepositoryInterface
	CustomerRepo repository.CustomerRepositoryInterface
}

func (s *LogService) ListLogs(ctx context.Context, userID string) ([]model.CommunicationLog, error) {
	return s.LogRepo.ListByUser(ctx, userID)
}

func (s *LogService) GetLog(ctx context.Context, userID, id string) (*model.CommunicationLog, error) {
	return s.LogRepo.GetByID(ctx, userID, id)
}

func (s *LogService) ListByCampaign(ctx context.Context, userID, campaignID string) ([]model.CommunicationLog, error) {
	if _, err := s.CampaignRepo.GetByID(ctx, userID, campaignID); err != nil {
		return nil, err
	}
	return s.LogRepo.ListByCampaign(ctx, userID, campaignID)
}

func (s *LogService) ListByCustomer(ctx context.Context, userID, customerID string) ([]model.CommunicationLog, error) {
	if _, err := s.CustomerRepo.GetByID(ctx, userID, customerID); err != nil {
		return nil, err
	}
	return s.LogRepo.ListByCustomer(ctx, userID, customerID)
}

func (s *LogService) DeleteLog(ctx context.Context, userID, id string) error {
	return s.LogRepo.Delete(ctx, userID, id)
}

// Stats aggregates every log of the tenant.
func (s *LogService) Stats(ctx context.Context, userID string) (model.CampaignStats, error) {
	counts, err := s.LogRepo.CountByUser(ctx, userID)
	if err != nil {
		return model.CampaignStats{}, err
	}
	return model.StatsFromCounts(counts), nil
}
