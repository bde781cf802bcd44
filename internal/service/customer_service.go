package service

import (
	"context"
	"fmt"
	"time"

	"github.com/unclebandit/campaign-delivery/internal/model"
	"github.com/unclebandit/campaign-delivery/internal/repository"
)

type CustomerService struct {
	CustomerRepo repository.CustomerRepositoryInterface
}

type CustomerInput struct {
	Name       string           `json:"name" validate:"required"`
	Email      string           `json:"email" validate:"omitempty,email"`
	Phone      string           `json:"phone"`
	Location   string           `json:"location"`
	TotalSpend float64          `json:"total_spend" validate:"gte=0"`
	VisitCount int              `json:"visit_count" validate:"gte=0"`
	LastActive *time.Time       `json:"last_active"`
	Attributes model.Attributes `json:"attributes"`
}

func (in CustomerInput) toCustomer(userID string) *model.Customer {
	c := &model.Customer{
		UserID:     userID,
		Name:       in.Name,
		Email:      in.Email,
		Phone:      in.Phone,
		Location:   in.Location,
		TotalSpend: in.TotalSpend,
		VisitCount: in.VisitCount,
		Attributes: in.Attributes,
	}
	if in.LastActive != nil {
		c.LastActive = *in.LastActive
	}
	return c
}

func (s *CustomerService) CreateCustomer(ctx context.Context, userID string, in CustomerInput) (*model.Customer, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	c := in.toCustomer(userID)
	if err := s.CustomerRepo.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// ImportCustomers validates every row before inserting any of them.
func (s *CustomerService) ImportCustomers(ctx context.Context, userID string, in []CustomerInput) ([]*model.Customer, error) {
	customers := make([]*model.Customer, 0, len(in))
	for i, row := range in {
		if err := validateInput(row); err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		customers = append(customers, row.toCustomer(userID))
	}
	if err := s.CustomerRepo.BulkCreate(ctx, customers); err != nil {
		return nil, err
	}
	return customers, nil
}

func (s *CustomerService) GetCustomer(ctx context.Context, userID, id string) (*model.Customer, error) {
	return s.CustomerRepo.GetByID(ctx, userID, id)
}

func (s *CustomerService) ListCustomers(ctx context.Context, userID string) ([]model.Customer, error) {
	return s.CustomerRepo.ListByUser(ctx, userID)
}

func (s *CustomerService) UpdateCustomer(ctx context.Context, userID, id string, in CustomerInput) (*model.Customer, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	existing, err := s.CustomerRepo.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	c := in.toCustomer(userID)
	c.ID = id
	c.CreatedAt = existing.CreatedAt
	if c.LastActive.IsZero() {
		c.LastActive = existing.LastActive
	}
	if err := s.CustomerRepo.Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *CustomerService) DeleteCustomer(ctx context.Context, userID, id string) error {
	return s.CustomerRepo.Delete(ctx, userID, id)
}
