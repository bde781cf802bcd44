// internal/model/customer.go
package model

import "time"

type Customer struct {
	ID         string     `db:"id" json:"id"`
	UserID     string     `db:"user_id" json:"user_id"`
	Name       string     `db:"name" json:"name"`
	Email      string     `db:"email" json:"email"`
	Phone      string     `db:"phone" json:"phone"`
	Location   string     `db:"location" json:"location"`
	TotalSpend float64    `db:"total_spend" json:"total_spend"`
	VisitCount int        `db:"visit_count" json:"visit_count"`
	LastActive time.Time  `db:"last_active" json:"last_active"`
	Attributes Attributes `db:"attributes" json:"attributes,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
}

// Field resolves a segmentation field by its JSON name. Built-in columns
// take precedence over free-form attributes.
func (c *Customer) Field(name string) (any, bool) {
	switch name {
	case "id", "_id":
		return c.ID, true
	case "name":
		return c.Name, true
	case "email":
		return c.Email, true
	case "phone":
		return c.Phone, true
	case "location":
		return c.Location, true
	case "total_spend":
		return c.TotalSpend, true
	case "visit_count":
		return c.VisitCount, true
	case "last_active":
		if c.LastActive.IsZero() {
			return nil, false
		}
		return c.LastActive, true
	}
	v, ok := c.Attributes[name]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}
