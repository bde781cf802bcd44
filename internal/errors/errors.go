// internal/errors/errors.go
package appErrors

import (
	"errors"
	"fmt"
)

// ValidationError reports malformed input. Never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func NewValidation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// NotFoundError reports an unknown id or an unresolved reference.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %s not found", e.Resource, e.ID)
}

func NewNotFound(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// Helper constructors for the common resources
func NewCampaignNotFound(id string) error    { return NewNotFound("campaign", id) }
func NewCustomerNotFound(id string) error    { return NewNotFound("customer", id) }
func NewSegmentRuleNotFound(id string) error { return NewNotFound("segment rule", id) }
func NewLogNotFound(id string) error         { return NewNotFound("communication log", id) }
func NewOrderNotFound(id string) error       { return NewNotFound("order", id) }

// DeliveryError is a vendor rejection of a single send attempt.
type DeliveryError struct {
	Code   string
	Reason string
}

func (e *DeliveryError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("message delivery failed: %s", e.Code)
	}
	return fmt.Sprintf("message delivery failed: %s: %s", e.Code, e.Reason)
}

func NewDelivery(code, reason string) error {
	return &DeliveryError{Code: code, Reason: reason}
}

// QueueApplyError wraps a failed bulk write of a receipt batch. The batch is dropped.
type QueueApplyError struct {
	BatchSize int
	Err       error
}

func (e *QueueApplyError) Error() string {
	return fmt.Sprintf("apply batch of %d receipt updates: %v", e.BatchSize, e.Err)
}

func (e *QueueApplyError) Unwrap() error { return e.Err }

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

func IsDelivery(err error) bool {
	var target *DeliveryError
	return errors.As(err, &target)
}
