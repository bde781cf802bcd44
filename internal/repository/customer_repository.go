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

// CustomerRepository is the Postgres implementation
type CustomerRepository struct {
	DB *sqlx.DB
}

const customerColumns = `id, user_id, name, email, phone, location, total_spend, visit_count, last_active, attributes, created_at, updated_at`

const insertCustomer = `
	INSERT INTO customers (` + customerColumns + `)
	VALUES (:id, :user_id, :name, :email, :phone, :location, :total_spend, :visit_count, :last_active, :attributes, :created_at, :updated_at)
`

func prepareCustomer(c *model.Customer) {
	now := time.Now().UTC()
	if c.ID == "" {
		c.ID = newID()
	}
	if c.LastActive.IsZero() {
		c.LastActive = now
	}
	if c.Attributes == nil {
		c.Attributes = model.Attributes{}
	}
	c.CreatedAt = now
	c.UpdatedAt = now
}

func (r *CustomerRepository) Create(ctx context.Context, c *model.Customer) error {
	prepareCustomer(c)
	_, err := r.DB.NamedExecContext(ctx, insertCustomer, c)
	return err
}

// BulkCreate inserts all customers in one transaction.
func (r *CustomerRepository) BulkCreate(ctx context.Context, customers []*model.Customer) error {
	if len(customers) == 0 {
		return nil
	}
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, c := range customers {
		prepareCustomer(c)
		if _, err := tx.NamedExecContext(ctx, insertCustomer, c); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetByID fetches a customer owned by userID
func (r *CustomerRepository) GetByID(ctx context.Context, userID, id string) (*model.Customer, error) {
	var c model.Customer
	err := r.DB.GetContext(ctx, &c, `SELECT `+customerColumns+` FROM customers WHERE id=$1 AND user_id=$2`, id, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewCustomerNotFound(id)
		}
		return nil, err
	}
	return &c, nil
}

// ListByUser fetches every customer of a tenant (used to resolve segments)
func (r *CustomerRepository) ListByUser(ctx context.Context, userID string) ([]model.Customer, error) {
	customers := []model.Customer{}
	err := r.DB.SelectContext(ctx, &customers, `SELECT `+customerColumns+` FROM customers WHERE user_id=$1 ORDER BY created_at, id`, userID)
	return customers, err
}

func (r *CustomerRepository) Update(ctx context.Context, c *model.Customer) error {
	c.UpdatedAt = time.Now().UTC()
	if c.Attributes == nil {
		c.Attributes = model.Attributes{}
	}
	res, err := r.DB.NamedExecContext(ctx, `
		UPDATE customers
		SET name=:name, email=:email, phone=:phone, location=:location,
		    total_spend=:total_spend, visit_count=:visit_count, last_active=:last_active,
		    attributes=:attributes, updated_at=:updated_at
		WHERE id=:id AND user_id=:user_id
	`, c)
	if err != nil {
		return err
	}
	return requireRow(res, appErrors.NewCustomerNotFound(c.ID))
}

func (r *CustomerRepository) Delete(ctx context.Context, userID, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM customers WHERE id=$1 AND user_id=$2`, id, userID)
	if err != nil {
		return err
	}
	return requireRow(res, appErrors.NewCustomerNotFound(id))
}

// RecordPurchase applies an order to the customer's running totals atomically.
func (r *CustomerRepository) RecordPurchase(ctx context.Context, userID, id string, amount float64, at time.Time) (*model.Customer, error) {
	return recordPurchase(ctx, r.DB, userID, id, amount, at)
}

func recordPurchase(ctx context.Context, q sqlx.QueryerContext, userID, id string, amount float64, at time.Time) (*model.Customer, error) {
	var c model.Customer
	err := sqlx.GetContext(ctx, q, &c, `
		UPDATE customers
		SET total_spend = total_spend + $1, visit_count = visit_count + 1, last_active = $2, updated_at = $2
		WHERE id=$3 AND user_id=$4
		RETURNING `+customerColumns, amount, at, id, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewCustomerNotFound(id)
		}
		return nil, err
	}
	return &c, nil
}

var _ CustomerRepositoryInterface = (*CustomerRepository)(nil)
