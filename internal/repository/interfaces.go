package repository

import (
	"context"
	"time"

	"github.com/unclebandit/campaign-delivery/internal/model"
)

// Every lookup is scoped by userID (the tenant) except the receipt path,
// which only knows the vendor message id.

type CustomerRepositoryInterface interface {
	Create(ctx context.Context, c *model.Customer) error
	BulkCreate(ctx context.Context, customers []*model.Customer) error
	GetByID(ctx context.Context, userID, id string) (*model.Customer, error)
	ListByUser(ctx context.Context, userID string) ([]model.Customer, error)
	Update(ctx context.Context, c *model.Customer) error
	Delete(ctx context.Context, userID, id string) error
	RecordPurchase(ctx context.Context, userID, id string, amount float64, at time.Time) (*model.Customer, error)
}

type OrderRepositoryInterface interface {
	// Create stores the order and adds it to the customer's spend and visit
	// totals in one transaction, returning the updated customer.
	Create(ctx context.Context, o *model.Order) (*model.Customer, error)
	// BulkCreate is Create for every order, all or nothing.
	BulkCreate(ctx context.Context, orders []*model.Order) error
	GetByID(ctx context.Context, userID, id string) (*model.Order, error)
	ListByUser(ctx context.Context, userID string) ([]model.Order, error)
	ListByCustomer(ctx context.Context, userID, customerID string) ([]model.Order, error)
	// Update rewrites the order only. Customer totals keep what was recorded
	// when the order was placed.
	Update(ctx context.Context, o *model.Order) error
	Delete(ctx context.Context, userID, id string) error
}

type SegmentRuleRepositoryInterface interface {
	Create(ctx context.Context, r *model.SegmentRule) error
	GetByID(ctx context.Context, userID, id string) (*model.SegmentRule, error)
	ListByUser(ctx context.Context, userID string) ([]model.SegmentRule, error)
	Update(ctx context.Context, r *model.SegmentRule) error
	Delete(ctx context.Context, userID, id string) error
}

type CampaignRepositoryInterface interface {
	Create(ctx context.Context, c *model.Campaign) error
	GetByID(ctx context.Context, userID, id string) (*model.Campaign, error)
	ListByUser(ctx context.Context, userID string) ([]model.Campaign, error)
	Update(ctx context.Context, c *model.Campaign) error
	UpdateStatus(ctx context.Context, id, status string) error
	UpdateStats(ctx context.Context, id string, counts model.StatusCounts) error
	// Delete removes the campaign and all of its communication logs.
	Delete(ctx context.Context, userID, id string) error
}

type CommunicationLogRepositoryInterface interface {
	Create(ctx context.Context, l *model.CommunicationLog) error
	// MarkSent records the vendor message id; only applies to pending logs.
	MarkSent(ctx context.Context, id, messageID string, at time.Time) error
	// MarkFailed records a synchronous rejection; only applies to pending logs.
	MarkFailed(ctx context.Context, id, reason string, at time.Time) error
	GetByMessageID(ctx context.Context, messageID string) (*model.CommunicationLog, error)
	GetByID(ctx context.Context, userID, id string) (*model.CommunicationLog, error)
	ListByUser(ctx context.Context, userID string) ([]model.CommunicationLog, error)
	ListByCampaign(ctx context.Context, userID, campaignID string) ([]model.CommunicationLog, error)
	ListByCustomer(ctx context.Context, userID, customerID string) ([]model.CommunicationLog, error)
	CountByCampaign(ctx context.Context, campaignID string) (model.StatusCounts, error)
	CountByUser(ctx context.Context, userID string) (model.StatusCounts, error)
	// BulkApplyReceipts applies a batch as one write keyed by message id and
	// returns how many logs changed. Transitions that would move a log
	// backwards or out of a terminal state are skipped.
	BulkApplyReceipts(ctx context.Context, updates []model.ReceiptUpdate, now time.Time) (int64, error)
	Delete(ctx context.Context, userID, id string) error
}
