package model

import (
	"database/sql/driver"
	"time"
)

const (
	OrderStatusPending   = "pending"
	OrderStatusCompleted = "completed"
	OrderStatusCancelled = "cancelled"
)

type OrderItem struct {
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

// OrderItems is stored as a JSONB array.
type OrderItems []OrderItem

func (items OrderItems) Value() (driver.Value, error) {
	if items == nil {
		return "[]", nil
	}
	return valueJSON([]OrderItem(items))
}

func (items *OrderItems) Scan(src any) error {
	out := []OrderItem{}
	if err := scanJSON(src, &out); err != nil {
		return err
	}
	*items = out
	return nil
}

// Sum is price times quantity over every line.
func (items OrderItems) Sum() float64 {
	var total float64
	for _, it := range items {
		total += it.Price * float64(it.Quantity)
	}
	return total
}

type Order struct {
	ID         string     `db:"id" json:"id"`
	UserID     string     `db:"user_id" json:"user_id"`
	CustomerID string     `db:"customer_id" json:"customer_id"`
	Date       time.Time  `db:"date" json:"date"`
	Items      OrderItems `db:"items" json:"items"`
	Total      float64    `db:"total" json:"total"`
	Status     string     `db:"status" json:"status"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
}
