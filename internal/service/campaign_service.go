// internal/service/campaign_service.go
package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	appErrors "github.com/unclebandit/campaign-delivery/internal/errors"
	"github.com/unclebandit/campaign-delivery/internal/model"
	"github.com/unclebandit/campaign-delivery/internal/repository"
)

type CampaignService struct {
	CampaignRepo repository.CampaignRepositoryInterface
	LogRepo      repository.CommunicationLogRepositoryInterface
	SegmentRepo  repository.SegmentRuleRepositoryInterface
	CustomerRepo repository.CustomerRepositoryInterface
	Segments     *SegmentService
	Dispatcher   *Dispatcher
	Cache        Cache
	Log          logrus.FieldLogger
}

type CampaignInput struct {
	Name          string `json:"name" validate:"required"`
	Intent        string `json:"intent"`
	Message       string `json:"message" validate:"required"`
	SegmentRuleID string `json:"segmentRuleId" validate:"required"`
}

// SendResult summarizes the synchronous phase of a campaign send.
type SendResult struct {
	CampaignID        string                   `json:"campaignId"`
	Status            string                   `json:"status"`
	CustomersCount    int                      `json:"customersCount"`
	CommunicationLogs []model.CommunicationLog `json:"communicationLogs"`
}

type CampaignWithStats struct {
	model.Campaign
	SegmentName string              `json:"segmentName"`
	Stats       model.CampaignStats `json:"stats"`
}

func (s *CampaignService) CreateCampaign(ctx context.Context, userID string, in CampaignInput) (*model.Campaign, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if _, err := s.SegmentRepo.GetByID(ctx, userID, in.SegmentRuleID); err != nil {
		return nil, err
	}

	c := &model.Campaign{
		UserID:        userID,
		SegmentRuleID: in.SegmentRuleID,
		Name:          in.Name,
		Intent:        in.Intent,
		Message:       in.Message,
		Status:        model.CampaignStatusPending,
	}
	if err := s.CampaignRepo.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// ListCampaigns fetches campaigns with pagination
func (s *CampaignService) ListCampaigns(ctx context.Context, userID string, page, pageSize int) ([]model.Campaign, map[string]int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	offset := (page - 1) * pageSize

	all, err := s.CampaignRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	total := len(all)

	campaigns := []model.Campaign{}
	if offset < total {
		campaigns = all[offset:min(offset+pageSize, total)]
	}

	totalPages := (total + pageSize - 1) / pageSize
	pagination := map[string]int{
		"page":        page,
		"page_size":   pageSize,
		"total_count": total,
		"total_pages": totalPages,
	}
	return campaigns, pagination, nil
}

func (s *CampaignService) GetCampaign(ctx context.Context, userID, id string) (*model.Campaign, error) {
	return s.CampaignRepo.GetByID(ctx, userID, id)
}

func (s *CampaignService) UpdateCampaign(ctx context.Context, userID, id string, in CampaignInput) (*model.Campaign, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	c, err := s.CampaignRepo.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if in.SegmentRuleID != c.SegmentRuleID {
		if _, err := s.SegmentRepo.GetByID(ctx, userID, in.SegmentRuleID); err != nil {
			return nil, err
		}
	}
	c.Name = in.Name
	c.Intent = in.Intent
	c.Message = in.Message
	c.SegmentRuleID = in.SegmentRuleID
	if err := s.CampaignRepo.Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// RenderPreview personalizes the campaign message, or overrideTemplate when
// it is not blank, for one customer without sending anything.
func (s *CampaignService) RenderPreview(ctx context.Context, userID, campaignID, customerID string, overrideTemplate *string) (string, error) {
	campaign, err := s.CampaignRepo.GetByID(ctx, userID, campaignID)
	if err != nil {
		return "", err
	}
	customer, err := s.CustomerRepo.GetByID(ctx, userID, customerID)
	if err != nil {
		return "", err
	}

	template := campaign.Message
	if overrideTemplate != nil && strings.TrimSpace(*overrideTemplate) != "" {
		template = *overrideTemplate
	}
	if strings.TrimSpace(template) == "" {
		return "", appErrors.NewValidation("template", "cannot be empty")
	}
	return Personalize(template, customer), nil
}

// DeleteCampaign removes the campaign together with all of its logs.
func (s *CampaignService) DeleteCampaign(ctx context.Context, userID, id string) error {
	if err := s.CampaignRepo.Delete(ctx, userID, id); err != nil {
		return err
	}
	s.invalidateStats(ctx, id)
	return nil
}

// SendCampaignMessages resolves the campaign's audience and runs the
// accept/reject phase for every customer. Delivery outcomes arrive later
// through the receipt queue.
func (s *CampaignService) SendCampaignMessages(ctx context.Context, userID, campaignID string) (*SendResult, error) {
	campaign, err := s.CampaignRepo.GetByID(ctx, userID, campaignID)
	if err != nil {
		return nil, err
	}
	log := s.Log.WithFields(logrus.Fields{"campaign_id": campaign.ID, "user_id": userID})

	if err := s.CampaignRepo.UpdateStatus(ctx, campaign.ID, model.CampaignStatusProcessing); err != nil {
		return nil, err
	}

	audience, err := s.Segments.CustomersForSegment(ctx, userID, campaign.SegmentRuleID)
	if err != nil {
		s.setStatus(ctx, campaign.ID, model.CampaignStatusFailed)
		return nil, fmt.Errorf("resolve audience: %w", err)
	}
	log.WithField("customers", len(audience)).Info("sending campaign")

	logs, err := s.Dispatcher.Dispatch(ctx, campaign, audience)
	if err != nil {
		s.setStatus(ctx, campaign.ID, model.CampaignStatusFailed)
		return nil, err
	}

	s.setStatus(ctx, campaign.ID, model.CampaignStatusCompleted)
	if err := s.RecomputeStats(ctx, campaign.ID); err != nil {
		log.WithError(err).Warn("failed to refresh campaign stats")
	}

	result := &SendResult{
		CampaignID:        campaign.ID,
		Status:            model.CampaignStatusCompleted,
		CustomersCount:    len(audience),
		CommunicationLogs: logs,
	}
	log.WithField("customers", result.CustomersCount).Info("campaign send finished")
	return result, nil
}

func (s *CampaignService) setStatus(ctx context.Context, id, status string) {
	if err := s.CampaignRepo.UpdateStatus(ctx, id, status); err != nil {
		s.Log.WithError(err).WithFields(logrus.Fields{"campaign_id": id, "status": status}).Error("failed to update campaign status")
	}
}

// RecomputeStats refreshes the per-status counts stored on the campaign.
// The cached stats are invalidated before counting.
func (s *CampaignService) RecomputeStats(ctx context.Context, campaignID string) error {
	s.invalidateStats(ctx, campaignID)
	counts, err := s.LogRepo.CountByCampaign(ctx, campaignID)
	if err != nil {
		return err
	}
	return s.CampaignRepo.UpdateStats(ctx, campaignID, counts)
}

func (s *CampaignService) invalidateStats(ctx context.Context, campaignID string) {
	if s.Cache == nil {
		return
	}
	if _, err := s.Cache.Incr(ctx, statsGenerationKey(campaignID)); err != nil {
		s.Log.WithError(err).WithField("campaign_id", campaignID).Warn("failed to invalidate stats cache")
	}
}

// GetCampaignStats counts the campaign's logs per status. Zero logs yields
// zero counts and zero rates.
func (s *CampaignService) GetCampaignStats(ctx context.Context, userID, campaignID string) (*model.CampaignStats, error) {
	campaign, err := s.CampaignRepo.GetByID(ctx, userID, campaignID)
	if err != nil {
		return nil, err
	}
	return s.statsFor(ctx, campaign)
}

func (s *CampaignService) statsFor(ctx context.Context, campaign *model.Campaign) (*model.CampaignStats, error) {
	var stats model.CampaignStats
	key := ""
	if s.Cache != nil {
		var generation int64
		if _, err := s.Cache.GetJSON(ctx, statsGenerationKey(campaign.ID), &generation); err != nil {
			s.Log.WithError(err).Warn("stats cache read failed")
		} else {
			key = statsKey(campaign.ID, generation)
			found, err := s.Cache.GetJSON(ctx, key, &stats)
			if err != nil {
				s.Log.WithError(err).Warn("stats cache read failed")
			} else if found {
				return &stats, nil
			}
		}
	}

	counts, err := s.LogRepo.CountByCampaign(ctx, campaign.ID)
	if err != nil {
		return nil, err
	}
	stats = model.StatsFromCounts(counts)
	stats.CampaignID = campaign.ID
	stats.Name = campaign.Name
	stats.Message = campaign.Message
	stats.SegmentName = s.segmentName(ctx, campaign)
	stats.Summary = fmt.Sprintf("Campaign sent to %d customers.", stats.Total)

	if key != "" {
		if err := s.Cache.SetJSON(ctx, key, stats); err != nil {
			s.Log.WithError(err).Warn("stats cache write failed")
		}
	}
	return &stats, nil
}

// segmentName tolerates a rule deleted after the campaign was created.
func (s *CampaignService) segmentName(ctx context.Context, campaign *model.Campaign) string {
	rule, err := s.SegmentRepo.GetByID(ctx, campaign.UserID, campaign.SegmentRuleID)
	if err != nil {
		if !appErrors.IsNotFound(err) {
			s.Log.WithError(err).WithField("campaign_id", campaign.ID).Warn("failed to resolve segment name")
		}
		return "Unknown"
	}
	return rule.Name
}

func (s *CampaignService) ListCampaignsWithStats(ctx context.Context, userID string) ([]CampaignWithStats, error) {
	campaigns, err := s.CampaignRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]CampaignWithStats, 0, len(campaigns))
	for i := range campaigns {
		stats, err := s.statsFor(ctx, &campaigns[i])
		if err != nil {
			return nil, err
		}
		out = append(out, CampaignWithStats{
			Campaign:    campaigns[i],
			SegmentName: stats.SegmentName,
			Stats:       *stats,
		})
	}
	return out, nil
}
