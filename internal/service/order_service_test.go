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

func newOrderService(t *testing.T) (*service.OrderService, *repository.MemoryStore) {
	t.Helper()
	store := repository.NewMemoryStore()
	return &service.OrderService{OrderRepo: store.Orders(), CustomerRepo: store.Customers()}, store
}

func addCustomer(t *testing.T, store *repository.MemoryStore, userID, name string, spend float64) *model.Customer {
	t.Helper()
	c := &model.Customer{UserID: userID, Name: name, TotalSpend: spend}
	if err := store.Customers().Create(context.Background(), c); err != nil {
		t.Fatal(err)
	}
	return c
}

func TestAddOrderUpdatesCustomerTotals(t *testing.T) {
	svc, store := newOrderService(t)
	ctx := context.Background()
	c := addCustomer(t, store, tenant, "A", 90)

	order, customer, err := svc.AddOrder(ctx, tenant, service.OrderInput{
		CustomerID: c.ID,
		Items: []service.OrderItemInput{
			{Name: "shoes", Price: 15, Quantity: 2},
			{Name: "socks", Price: 2.5, Quantity: 4},
		},
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if order.Total != 40 || order.Status != model.OrderStatusPending || order.Date.IsZero() {
		t.Errorf("unexpected order %+v", order)
	}
	if customer.TotalSpend != 130 || customer.VisitCount != 1 {
		t.Errorf("unexpected totals %+v", customer)
	}

	stored, err := store.Customers().GetByID(ctx, tenant, c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.TotalSpend != 130 || !stored.LastActive.Equal(customer.LastActive) {
		t.Errorf("stored customer %+v", stored)
	}
	if got, _ := svc.GetOrder(ctx, tenant, order.ID); got == nil || len(got.Items) != 2 {
		t.Errorf("stored order %+v", got)
	}
}

func TestAddOrderExplicitTotalWins(t *testing.T) {
	svc, store := newOrderService(t)
	c := addCustomer(t, store, tenant, "A", 0)

	order, _, err := svc.AddOrder(context.Background(), tenant, service.OrderInput{
		CustomerID: c.ID,
		Items:      []service.OrderItemInput{{Name: "gift", Price: 50, Quantity: 1}},
		Total:      45,
	})
	if err != nil {
		t.Fatal(err)
	}
	if order.Total != 45 {
		t.Errorf("expected the given total, got %v", order.Total)
	}
}

func TestOrderValidation(t *testing.T) {
	svc, store := newOrderService(t)
	c := addCustomer(t, store, tenant, "A", 0)

	tests := []struct {
		in    service.OrderInput
		field string
	}{
		{service.OrderInput{Total: 10}, "customer_id"},
		{service.OrderInput{CustomerID: c.ID}, "total"},
		{service.OrderInput{CustomerID: c.ID, Total: -5}, "total"},
		{service.OrderInput{CustomerID: c.ID, Total: 5, Status: "shipped"}, "status"},
		{service.OrderInput{CustomerID: c.ID, Items: []service.OrderItemInput{{Name: "x", Price: 1}}}, "quantity"},
	}
	for _, tt := range tests {
		_, _, err := svc.AddOrder(context.Background(), tenant, tt.in)
		var verr *appErrors.ValidationError
		if !errors.As(err, &verr) || verr.Field != tt.field {
			t.Errorf("%+v: expected validation error on %s, got %v", tt.in, tt.field, err)
		}
	}
}

func TestAddOrderForeignCustomerChangesNothing(t *testing.T) {
	svc, store := newOrderService(t)
	ctx := context.Background()
	theirs := addCustomer(t, store, "other", "B", 10)

	_, _, err := svc.AddOrder(ctx, tenant, service.OrderInput{CustomerID: theirs.ID, Total: 20})
	if !appErrors.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	orders, _ := store.Orders().ListByUser(ctx, tenant)
	if len(orders) != 0 {
		t.Errorf("expected no order stored, got %d", len(orders))
	}
	stored, _ := store.Customers().GetByID(ctx, "other", theirs.ID)
	if stored.TotalSpend != 10 || stored.VisitCount != 0 {
		t.Errorf("foreign customer changed: %+v", stored)
	}
}

func TestOrderListsAreTenantScoped(t *testing.T) {
	svc, store := newOrderService(t)
	ctx := context.Background()
	mine := addCustomer(t, store, tenant, "A", 0)
	second := addCustomer(t, store, tenant, "B", 0)
	theirs := addCustomer(t, store, "other", "C", 0)

	for _, in := range []struct {
		user, customer string
	}{{tenant, mine.ID}, {tenant, mine.ID}, {tenant, second.ID}, {"other", theirs.ID}} {
		if _, _, err := svc.AddOrder(ctx, in.user, service.OrderInput{CustomerID: in.customer, Total: 5}); err != nil {
			t.Fatal(err)
		}
	}

	all, err := svc.ListOrders(ctx, tenant)
	if err != nil || len(all) != 3 {
		t.Fatalf("expected 3 orders, got %d (%v)", len(all), err)
	}
	for _, o := range all {
		if o.UserID != tenant {
			t.Errorf("leaked order %+v", o)
		}
	}
	forMine, err := svc.ListCustomerOrders(ctx, tenant, mine.ID)
	if err != nil || len(forMine) != 2 {
		t.Errorf("expected 2 orders for customer, got %d (%v)", len(forMine), err)
	}
	if _, err := svc.ListCustomerOrders(ctx, tenant, theirs.ID); !appErrors.IsNotFound(err) {
		t.Errorf("expected not found for a foreign customer, got %v", err)
	}

	theirOrders, _ := svc.ListOrders(ctx, "other")
	if _, err := svc.GetOrder(ctx, tenant, theirOrders[0].ID); !appErrors.IsNotFound(err) {
		t.Errorf("expected not found for a foreign order, got %v", err)
	}
	if err := svc.DeleteOrder(ctx, tenant, theirOrders[0].ID); !appErrors.IsNotFound(err) {
		t.Errorf("expected not found deleting a foreign order, got %v", err)
	}
}

func TestImportOrdersIsAllOrNothing(t *testing.T) {
	svc, store := newOrderService(t)
	ctx := context.Background()
	c := addCustomer(t, store, tenant, "A", 0)
	theirs := addCustomer(t, store, "other", "B", 0)

	_, err := svc.ImportOrders(ctx, tenant, []service.OrderInput{
		{CustomerID: c.ID, Total: 10},
		{CustomerID: theirs.ID, Total: 10},
	})
	if !appErrors.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := svc.ImportOrders(ctx, tenant, []service.OrderInput{{CustomerID: c.ID, Total: 10}, {CustomerID: c.ID}}); !appErrors.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if orders, _ := svc.ListOrders(ctx, tenant); len(orders) != 0 {
		t.Errorf("expected nothing imported, got %d", len(orders))
	}
	if stored, _ := store.Customers().GetByID(ctx, tenant, c.ID); stored.VisitCount != 0 {
		t.Errorf("customer totals moved: %+v", stored)
	}

	imported, err := svc.ImportOrders(ctx, tenant, []service.OrderInput{{CustomerID: c.ID, Total: 10}, {CustomerID: c.ID, Total: 5}})
	if err != nil || len(imported) != 2 {
		t.Fatalf("import: %v (%d)", err, len(imported))
	}
	if stored, _ := store.Customers().GetByID(ctx, tenant, c.ID); stored.TotalSpend != 15 || stored.VisitCount != 2 {
		t.Errorf("unexpected totals %+v", stored)
	}
}

func TestUpdateOrderKeepsCustomerAndTotals(t *testing.T) {
	svc, store := newOrderService(t)
	ctx := context.Background()
	c := addCustomer(t, store, tenant, "A", 0)
	other := addCustomer(t, store, tenant, "B", 0)
	order, _, err := svc.AddOrder(ctx, tenant, service.OrderInput{CustomerID: c.ID, Total: 30})
	if err != nil {
		t.Fatal(err)
	}

	updated, err := svc.UpdateOrder(ctx, tenant, order.ID, service.OrderInput{Total: 25, Status: model.OrderStatusCompleted})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.CustomerID != c.ID || updated.Total != 25 || updated.Status != model.OrderStatusCompleted {
		t.Errorf("unexpected order %+v", updated)
	}
	if !updated.Date.Equal(order.Date) {
		t.Errorf("date moved from %v to %v", order.Date, updated.Date)
	}
	if stored, _ := store.Customers().GetByID(ctx, tenant, c.ID); stored.TotalSpend != 30 || stored.VisitCount != 1 {
		t.Errorf("customer totals changed on update: %+v", stored)
	}

	_, err = svc.UpdateOrder(ctx, tenant, order.ID, service.OrderInput{CustomerID: other.ID, Total: 25})
	var verr *appErrors.ValidationError
	if !errors.As(err, &verr) || verr.Field != "customer_id" {
		t.Errorf("expected customer_id validation error, got %v", err)
	}
}

func TestDeletingCustomerDropsOrders(t *testing.T) {
	svc, store := newOrderService(t)
	ctx := context.Background()
	c := addCustomer(t, store, tenant, "A", 0)
	if _, _, err := svc.AddOrder(ctx, tenant, service.OrderInput{CustomerID: c.ID, Total: 5}); err != nil {
		t.Fatal(err)
	}
	if err := store.Customers().Delete(ctx, tenant, c.ID); err != nil {
		t.Fatal(err)
	}
	if orders, _ := svc.ListOrders(ctx, tenant); len(orders) != 0 {
		t.Errorf("expected orders removed with the customer, got %d", len(orders))
	}
}
