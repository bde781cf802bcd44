package service_test

import (
	"context"
	"errors"
	"testing"

	appErrors "github.com/unclebandit/campaign-delivery/internal/errors"
	"github.com/unclebandit/campaign-delivery/internal/model"
	"github.com/unclebandit/campaign-delivery/internal/repository"
	"github.com/unclebandit/campaign-delivery/internal/service"
)

func TestCustomerValidation(t *testing.T) {
	svc := &service.CustomerService{CustomerRepo: repository.NewMemoryStore().Customers()}
	ctx := context.Background()

	tests := []struct {
		in    service.CustomerInput
		field string
	}{
		{service.CustomerInput{}, "name"},
		{service.CustomerInput{Name: "A", Email: "not-an-email"}, "email"},
		{service.CustomerInput{Name: "A", TotalSpend: -1}, "total_spend"},
	}
	for _, tt := range tests {
		_, err := svc.CreateCustomer(ctx, tenant, tt.in)
		var verr *appErrors.ValidationError
		if !errors.As(err, &verr) || verr.Field != tt.field {
			t.Errorf("%+v: expected validation error on %s, got %v", tt.in, tt.field, err)
		}
	}
}

func TestImportCustomersIsAllOrNothing(t *testing.T) {
	repo := repository.NewMemoryStore().Customers()
	svc := &service.CustomerService{CustomerRepo: repo}
	ctx := context.Background()

	_, err := svc.ImportCustomers(ctx, tenant, []service.CustomerInput{{Name: "A"}, {Email: "b@example.com"}})
	if !appErrors.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	list, _ := repo.ListByUser(ctx, tenant)
	if len(list) != 0 {
		t.Errorf("expected nothing imported, got %d", len(list))
	}

	imported, err := svc.ImportCustomers(ctx, tenant, []service.CustomerInput{{Name: "A"}, {Name: "B"}})
	if err != nil || len(imported) != 2 {
		t.Fatalf("import: %v (%d)", err, len(imported))
	}
}

func TestCustomersForSegmentIsTenantScoped(t *testing.T) {
	store := repository.NewMemoryStore()
	segments := &service.SegmentService{SegmentRepo: store.SegmentRules(), CustomerRepo: store.Customers()}
	ctx := context.Background()

	_ = store.Customers().Create(ctx, &model.Customer{UserID: tenant, Name: "mine", Location: "Nairobi"})
	_ = store.Customers().Create(ctx, &model.Customer{UserID: "other", Name: "theirs", Location: "Nairobi"})
	rule, err := segments.CreateRule(ctx, tenant, service.SegmentRuleInput{
		Name:  "nairobi",
		Rules: model.Conditions{{Field: "location", Operator: model.OpEquals, Value: "Nairobi"}},
	})
	if err != nil {
		t.Fatalf("create rule: %v", err)
	}
	if rule.LogicType != model.LogicAND {
		t.Errorf("expected default AND, got %q", rule.LogicType)
	}

	matched, err := segments.CustomersForSegment(ctx, tenant, rule.ID)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(matched) != 1 || matched[0].Name != "mine" {
		t.Errorf("expected only the tenant's customer, got %+v", matched)
	}

	if _, err := segments.CustomersForSegment(ctx, "other", rule.ID); !appErrors.IsNotFound(err) {
		t.Errorf("expected other tenant to get not found, got %v", err)
	}
}

func TestSegmentRuleRejectsUnknownOperator(t *testing.T) {
	store := repository.NewMemoryStore()
	segments := &service.SegmentService{SegmentRepo: store.SegmentRules(), CustomerRepo: store.Customers()}

	_, err := segments.CreateRule(context.Background(), tenant, service.SegmentRuleInput{
		Name:  "bad",
		Rules: model.Conditions{{Field: "location", Operator: "like", Value: "x"}},
	})
	if !appErrors.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
