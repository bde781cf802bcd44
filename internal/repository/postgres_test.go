package repository_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/unclebandit/campaign-delivery/internal/db"
	appErrors "github.com/unclebandit/campaign-delivery/internal/errors"
	"github.com/unclebandit/campaign-delivery/internal/logger"
	"github.com/unclebandit/campaign-delivery/internal/model"
	"github.com/unclebandit/campaign-delivery/internal/repository"
)

// openTestDB connects to DATABASE_URL and applies migrations. Tests using it
// are skipped when no database is configured.
func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	conn, err := db.Init(dsn, logger.Discard())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// seedSentLogs creates a campaign for a fresh tenant with one sent log per message id.
func seedSentLogs(t *testing.T, conn *sqlx.DB, messageIDs ...string) (*model.Campaign, *repository.CommunicationLogRepository) {
	t.Helper()
	ctx := context.Background()
	userID := "pg-test-" + uuid.NewString()
	campaigns := &repository.CampaignRepository{DB: conn}
	logs := &repository.CommunicationLogRepository{DB: conn}

	c := &model.Campaign{UserID: userID, SegmentRuleID: "rule", Name: "pg", Message: "hi"}
	if err := campaigns.Create(ctx, c); err != nil {
		t.Fatalf("create campaign: %v", err)
	}
	t.Cleanup(func() { _ = campaigns.Delete(context.Background(), userID, c.ID) })

	for _, msgID := range messageIDs {
		l := &model.CommunicationLog{CampaignID: c.ID, CustomerID: "cust", UserID: userID, Message: "hi"}
		if err := logs.Create(ctx, l); err != nil {
			t.Fatalf("create log: %v", err)
		}
		if err := logs.MarkSent(ctx, l.ID, msgID, time.Now()); err != nil {
			t.Fatalf("mark sent: %v", err)
		}
	}
	return c, logs
}

func TestPostgresBulkApplyIsIdempotent(t *testing.T) {
	conn := openTestDB(t)
	ctx := context.Background()
	msgA, msgB := "pg-"+uuid.NewString(), "pg-"+uuid.NewString()
	c, logs := seedSentLogs(t, conn, msgA, msgB)

	batch := []model.ReceiptUpdate{
		{MessageID: msgA, CampaignID: c.ID, Status: model.StatusDelivered, Metadata: model.Metadata{"provider": "test"}},
		{MessageID: msgB, CampaignID: c.ID, Status: model.StatusFailed, Metadata: model.Metadata{"error": "Delivery timeout"}},
	}
	n, err := logs.BulkApplyReceipts(ctx, batch, time.Now())
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 changed logs, got %d", n)
	}

	n, err = logs.BulkApplyReceipts(ctx, batch, time.Now())
	if err != nil {
		t.Fatalf("reapply: %v", err)
	}
	if n != 0 {
		t.Errorf("expected reapplying the same batch to change nothing, got %d", n)
	}

	a, err := logs.GetByMessageID(ctx, msgA)
	if err != nil {
		t.Fatal(err)
	}
	if a.Status != model.StatusDelivered || a.DeliveredAt == nil || a.Metadata["provider"] != "test" {
		t.Errorf("unexpected delivered log %+v", a)
	}
	b, _ := logs.GetByMessageID(ctx, msgB)
	if b.Status != model.StatusFailed || b.Error != "Delivery timeout" {
		t.Errorf("unexpected failed log %+v", b)
	}

	counts, err := logs.CountByCampaign(ctx, c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if counts[model.StatusDelivered] != 1 || counts[model.StatusFailed] != 1 || counts[model.StatusSent] != 0 {
		t.Errorf("unexpected counts %v", counts)
	}
}

func TestPostgresBulkApplyNeverMovesBackwards(t *testing.T) {
	conn := openTestDB(t)
	ctx := context.Background()
	msg := "pg-" + uuid.NewString()
	c, logs := seedSentLogs(t, conn, msg)

	if _, err := logs.BulkApplyReceipts(ctx, []model.ReceiptUpdate{{MessageID: msg, CampaignID: c.ID, Status: model.StatusDelivered}}, time.Now()); err != nil {
		t.Fatalf("apply: %v", err)
	}

	late := []model.ReceiptUpdate{
		{MessageID: msg, CampaignID: c.ID, Status: model.StatusSent},
		{MessageID: msg, CampaignID: c.ID, Status: model.StatusFailed},
	}
	n, err := logs.BulkApplyReceipts(ctx, late, time.Now())
	if err != nil {
		t.Fatalf("late apply: %v", err)
	}
	if n != 0 {
		t.Errorf("expected terminal log to stay put, %d rows changed", n)
	}
	got, _ := logs.GetByMessageID(ctx, msg)
	if got.Status != model.StatusDelivered {
		t.Errorf("expected delivered, got %s", got.Status)
	}
}

func TestPostgresBulkApplyCollapsesDuplicatesInBatch(t *testing.T) {
	conn := openTestDB(t)
	ctx := context.Background()
	msg := "pg-" + uuid.NewString()
	c, logs := seedSentLogs(t, conn, msg)

	batch := []model.ReceiptUpdate{
		{MessageID: msg, CampaignID: c.ID, Status: model.StatusFailed},
		{MessageID: msg, CampaignID: c.ID, Status: model.StatusDelivered},
		{MessageID: msg, CampaignID: c.ID, Status: model.StatusSent},
	}
	n, err := logs.BulkApplyReceipts(ctx, batch, time.Now())
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if n != 1 {
		t.Errorf("expected one changed log, got %d", n)
	}
	got, _ := logs.GetByMessageID(ctx, msg)
	if got.Status != model.StatusFailed || got.Error != "Unknown error" {
		t.Errorf("expected the first terminal status to win, got %s %q", got.Status, got.Error)
	}
}

func TestPostgresOrderCreateIsAtomic(t *testing.T) {
	conn := openTestDB(t)
	ctx := context.Background()
	userID := "pg-test-" + uuid.NewString()
	customers := &repository.CustomerRepository{DB: conn}
	orders := &repository.OrderRepository{DB: conn}

	c := &model.Customer{UserID: userID, Name: "pg", TotalSpend: 10}
	if err := customers.Create(ctx, c); err != nil {
		t.Fatalf("create customer: %v", err)
	}
	t.Cleanup(func() { _ = customers.Delete(context.Background(), userID, c.ID) })

	o := &model.Order{UserID: userID, CustomerID: c.ID, Items: model.OrderItems{{Name: "tea", Price: 3, Quantity: 2}}, Total: 6}
	updated, err := orders.Create(ctx, o)
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if updated.TotalSpend != 16 || updated.VisitCount != 1 {
		t.Errorf("unexpected totals %+v", updated)
	}
	got, err := orders.GetByID(ctx, userID, o.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if len(got.Items) != 1 || got.Items[0].Quantity != 2 || got.Status != model.OrderStatusPending {
		t.Errorf("stored order %+v", got)
	}

	// a customer outside the tenant must leave no order behind
	_, err = orders.Create(ctx, &model.Order{UserID: "pg-test-" + uuid.NewString(), CustomerID: c.ID, Total: 5})
	if !appErrors.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	// the second row fails, so the first must roll back
	err = orders.BulkCreate(ctx, []*model.Order{
		{UserID: userID, CustomerID: c.ID, Total: 1},
		{UserID: userID, CustomerID: "missing", Total: 1},
	})
	if !appErrors.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}

	list, err := orders.ListByCustomer(ctx, userID, c.ID)
	if err != nil || len(list) != 1 {
		t.Errorf("expected 1 order, got %d (%v)", len(list), err)
	}
	stored, err := customers.GetByID(ctx, userID, c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.TotalSpend != 16 || stored.VisitCount != 1 {
		t.Errorf("totals moved by failed writes: %+v", stored)
	}
}
