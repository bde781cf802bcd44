package service

import (
	"context"
	"fmt"
	"time"

	appErrors "github.com/unclebandit/campaign-delivery/internal/errors"
	"github.com/unclebandit/campaign-delivery/internal/model"
	"github.com/unclebandit/campaign-delivery/internal/repository"
)

// OrderService records purchases. Placing an order is what moves a
// customer's total_spend, visit_count and last_active.
type OrderService struct {
	OrderRepo    repository.OrderRepositoryInterface
	CustomerRepo repository.CustomerRepositoryInterface
}

type OrderItemInput struct {
	Name     string  `json:"name" validate:"required"`
	Price    float64 `json:"price" validate:"gte=0"`
	Quantity int     `json:"quantity" validate:"gte=1"`
}

// OrderInput is a new or replacement order. A zero Total is taken from the
// items.
type OrderInput struct {
	CustomerID string           `json:"customer_id" validate:"required"`
	Date       *time.Time       `json:"date"`
	Items      []OrderItemInput `json:"items" validate:"dive"`
	Total      float64          `json:"total" validate:"gte=0"`
	Status     string           `json:"status" validate:"omitempty,oneof=pending completed cancelled"`
}

func (in OrderInput) toOrder(userID string) (*model.Order, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	o := &model.Order{
		UserID:     userID,
		CustomerID: in.CustomerID,
		Items:      make(model.OrderItems, 0, len(in.Items)),
		Total:      in.Total,
		Status:     in.Status,
	}
	for _, it := range in.Items {
		o.Items = append(o.Items, model.OrderItem{Name: it.Name, Price: it.Price, Quantity: it.Quantity})
	}
	if o.Total == 0 {
		o.Total = o.Items.Sum()
	}
	if o.Total <= 0 {
		return nil, appErrors.NewValidation("total", "must be greater than 0")
	}
	if in.Date != nil {
		o.Date = in.Date.UTC()
	}
	return o, nil
}

// AddOrder stores the order and applies it to the customer in one
// transaction. The customer is returned with its new totals.
func (s *OrderService) AddOrder(ctx context.Context, userID string, in OrderInput) (*model.Order, *model.Customer, error) {
	o, err := in.toOrder(userID)
	if err != nil {
		return nil, nil, err
	}
	c, err := s.OrderRepo.Create(ctx, o)
	if err != nil {
		return nil, nil, err
	}
	return o, c, nil
}

// ImportOrders validates every row before placing any of them.
func (s *OrderService) ImportOrders(ctx context.Context, userID string, in []OrderInput) ([]*model.Order, error) {
	orders := make([]*model.Order, 0, len(in))
	for i, row := range in {
		o, err := row.toOrder(userID)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		orders = append(orders, o)
	}
	if err := s.OrderRepo.BulkCreate(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (s *OrderService) GetOrder(ctx context.Context, userID, id string) (*model.Order, error) {
	return s.OrderRepo.GetByID(ctx, userID, id)
}

func (s *OrderService) ListOrders(ctx context.Context, userID string) ([]model.Order, error) {
	return s.OrderRepo.ListByUser(ctx, userID)
}

func (s *OrderService) ListCustomerOrders(ctx context.Context, userID, customerID string) ([]model.Order, error) {
	if _, err := s.CustomerRepo.GetByID(ctx, userID, customerID); err != nil {
		return nil, err
	}
	return s.OrderRepo.ListByCustomer(ctx, userID, customerID)
}

// UpdateOrder rewrites items, total, date and status. An order cannot move
// to another customer.
func (s *OrderService) UpdateOrder(ctx context.Context, userID, id string, in OrderInput) (*model.Order, error) {
	existing, err := s.OrderRepo.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if in.CustomerID == "" {
		in.CustomerID = existing.CustomerID
	}
	o, err := in.toOrder(userID)
	if err != nil {
		return nil, err
	}
	if o.CustomerID != existing.CustomerID {
		return nil, appErrors.NewValidation("customer_id", "cannot change")
	}
	o.ID = id
	o.CreatedAt = existing.CreatedAt
	if o.Date.IsZero() {
		o.Date = existing.Date
	}
	if o.Status == "" {
		o.Status = existing.Status
	}
	if err := s.OrderRepo.Update(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *OrderService) DeleteOrder(ctx context.Context, userID, id string) error {
	return s.OrderRepo.Delete(ctx, userID, id)
}
