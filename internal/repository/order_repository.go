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

// OrderRepository is the Postgres implementation
type OrderRepository struct {
	DB *sqlx.DB
}

const orderColumns = `id, user_id, customer_id, date, items, total, status, created_at, updated_at`

const insertOrder = `
	INSERT INTO orders (` + orderColumns + `)
	VALUES (:id, :user_id, :customer_id, :date, :items, :total, :status, :created_at, :updated_at)
`

func prepareOrder(o *model.Order) {
	now := time.Now().UTC()
	if o.ID == "" {
		o.ID = newID()
	}
	if o.Date.IsZero() {
		o.Date = now
	}
	if o.Status == "" {
		o.Status = model.OrderStatusPending
	}
	if o.Items == nil {
		o.Items = model.OrderItems{}
	}
	o.CreatedAt = now
	o.UpdatedAt = now
}

// placeOrder bumps the owning customer first so an order can never land
// against another tenant's customer.
func placeOrder(ctx context.Context, tx *sqlx.Tx, o *model.Order) (*model.Customer, error) {
	prepareOrder(o)
	c, err := recordPurchase(ctx, tx, o.UserID, o.CustomerID, o.Total, o.CreatedAt)
	if err != nil {
		return nil, err
	}
	if _, err := tx.NamedExecContext(ctx, insertOrder, o); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *OrderRepository) Create(ctx context.Context, o *model.Order) (*model.Customer, error) {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	c, err := placeOrder(ctx, tx, o)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *OrderRepository) BulkCreate(ctx context.Context, orders []*model.Order) error {
	if len(orders) == 0 {
		return nil
	}
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, o := range orders {
		if _, err := placeOrder(ctx, tx, o); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *OrderRepository) GetByID(ctx context.Context, userID, id string) (*model.Order, error) {
	var o model.Order
	err := r.DB.GetContext(ctx, &o, `SELECT `+orderColumns+` FROM orders WHERE id=$1 AND user_id=$2`, id, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewOrderNotFound(id)
		}
		return nil, err
	}
	return &o, nil
}

// ListByUser returns the tenant's orders, newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]model.Order, error) {
	orders := []model.Order{}
	err := r.DB.SelectContext(ctx, &orders, `SELECT `+orderColumns+` FROM orders WHERE user_id=$1 ORDER BY date DESC, id`, userID)
	return orders, err
}

func (r *OrderRepository) ListByCustomer(ctx context.Context, userID, customerID string) ([]model.Order, error) {
	orders := []model.Order{}
	err := r.DB.SelectContext(ctx, &orders, `
		SELECT `+orderColumns+` FROM orders
		WHERE user_id=$1 AND customer_id=$2
		ORDER BY date DESC, id`, userID, customerID)
	return orders, err
}

func (r *OrderRepository) Update(ctx context.Context, o *model.Order) error {
	o.UpdatedAt = time.Now().UTC()
	if o.Items == nil {
		o.Items = model.OrderItems{}
	}
	res, err := r.DB.NamedExecContext(ctx, `
		UPDATE orders
		SET date=:date, items=:items, total=:total, status=:status, updated_at=:updated_at
		WHERE id=:id AND user_id=:user_id
	`, o)
	if err != nil {
		return err
	}
	return requireRow(res, appErrors.NewOrderNotFound(o.ID))
}

func (r *OrderRepository) Delete(ctx context.Context, userID, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM orders WHERE id=$1 AND user_id=$2`, id, userID)
	if err != nil {
		return err
	}
	return requireRow(res, appErrors.NewOrderNotFound(id))
}

var _ OrderRepositoryInterface = (*OrderRepository)(nil)
