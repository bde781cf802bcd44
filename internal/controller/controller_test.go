package controller_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/unclebandit/campaign-delivery/internal/controller"
	"github.com/unclebandit/campaign-delivery/internal/logger"
	"github.com/unclebandit/campaign-delivery/internal/model"
	"github.com/unclebandit/campaign-delivery/internal/repository"
	"github.com/unclebandit/campaign-delivery/internal/service"
	"github.com/unclebandit/campaign-delivery/internal/vendor"
)

type acceptAll struct{}

func (acceptAll) Send(ctx context.Context, c *model.Customer, message string) (vendor.SendResult, error) {
	return vendor.SendResult{MessageID: "msg-" + c.ID, AcceptedAt: time.Now()}, nil
}

func newRouter(t *testing.T) (http.Handler, *repository.MemoryStore) {
	t.Helper()
	store := repository.NewMemoryStore()
	segments := &service.SegmentService{SegmentRepo: store.SegmentRules(), CustomerRepo: store.Customers()}
	logs := &service.LogService{LogRepo: store.Logs(), CampaignRepo: store.Campaigns(), CustomerRepo: store.Customers()}
	campaigns := &service.CampaignService{
		CampaignRepo: store.Campaigns(),
		LogRepo:      store.Logs(),
		SegmentRepo:  store.SegmentRules(),
		CustomerRepo: store.Customers(),
		Segments:     segments,
		Dispatcher:   service.NewDispatcher(store.Logs(), acceptAll{}, 2, logger.Discard()),
		Log:          logger.Discard(),
	}
	orders := &service.OrderService{OrderRepo: store.Orders(), CustomerRepo: store.Customers()}
	c := &controller.Controllers{
		Campaigns: &controller.CampaignController{CampaignService: campaigns, LogService: logs},
		Customers: &controller.CustomerController{CustomerService: &service.CustomerService{CustomerRepo: store.Customers()}, LogService: logs, OrderService: orders},
		Orders:    &controller.OrderController{OrderService: orders},
		Segments:  &controller.SegmentController{SegmentService: segments},
		Logs:      &controller.LogController{LogService: logs},
	}
	r := chi.NewRouter()
	r.Route("/api", c.Mount)
	return r, store
}

func do(t *testing.T, h http.Handler, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(controller.UserHeader, user)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestMissingTenantIsUnauthorized(t *testing.T) {
	h, _ := newRouter(t)
	rec := do(t, h, http.MethodGet, "/api/campaigns", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	body := decode[map[string]any](t, rec)
	if body["success"] != false || body["error"] == "" {
		t.Errorf("unexpected error body %v", body)
	}
}

func TestCampaignLifecycleOverHTTP(t *testing.T) {
	h, _ := newRouter(t)

	for _, c := range []map[string]any{
		{"name": "Alice", "phone": "+254700000001", "total_spend": 500},
		{"name": "Bob", "phone": "+254700000002", "total_spend": 50},
	} {
		if rec := do(t, h, http.MethodPost, "/api/customers", "u1", c); rec.Code != http.StatusCreated {
			t.Fatalf("create customer: %d %s", rec.Code, rec.Body)
		}
	}

	rec := do(t, h, http.MethodPost, "/api/segment-rules", "u1", map[string]any{
		"name":      "Big spenders",
		"logicType": "AND",
		"rules":     []map[string]any{{"field": "total_spend", "operator": "greater_than", "value": 100, "type": "number"}},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create rule: %d %s", rec.Code, rec.Body)
	}
	rule := decode[model.SegmentRule](t, rec)

	rec = do(t, h, http.MethodGet, "/api/segment-rules/"+rule.ID+"/customers", "u1", nil)
	if matched := decode[[]model.Customer](t, rec); len(matched) != 1 || matched[0].Name != "Alice" {
		t.Fatalf("segment customers: %+v", matched)
	}

	rec = do(t, h, http.MethodPost, "/api/campaigns", "u1", map[string]any{
		"name": "Promo", "message": "Hi {name}", "segmentRuleId": rule.ID,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create campaign: %d %s", rec.Code, rec.Body)
	}
	campaign := decode[model.Campaign](t, rec)
	if campaign.Status != model.CampaignStatusPending {
		t.Errorf("new campaign status %q", campaign.Status)
	}

	rec = do(t, h, http.MethodPost, "/api/campaigns/"+campaign.ID+"/send", "u1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("send: %d %s", rec.Code, rec.Body)
	}
	result := decode[service.SendResult](t, rec)
	if result.CustomersCount != 1 || len(result.CommunicationLogs) != 1 {
		t.Fatalf("send result %+v", result)
	}
	if got := result.CommunicationLogs[0].Message; got != "Hi Alice" {
		t.Errorf("personalized message %q", got)
	}

	rec = do(t, h, http.MethodGet, "/api/campaigns/"+campaign.ID+"/logs", "u1", nil)
	if logs := decode[[]model.CommunicationLog](t, rec); len(logs) != 1 || logs[0].Status != model.StatusSent {
		t.Errorf("campaign logs %+v", logs)
	}

	// another tenant cannot see the campaign
	if rec := do(t, h, http.MethodGet, "/api/campaigns/"+campaign.ID, "u2", nil); rec.Code != http.StatusNotFound {
		t.Errorf("cross-tenant get: expected 404, got %d", rec.Code)
	}
}

func TestCreateCampaignValidation(t *testing.T) {
	h, _ := newRouter(t)

	rec := do(t, h, http.MethodPost, "/api/campaigns", "u1", map[string]any{"name": "No message"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/campaigns", bytes.NewBufferString("{not json"))
	req.Header.Set(controller.UserHeader, "u1")
	bad := httptest.NewRecorder()
	h.ServeHTTP(bad, req)
	if bad.Code != http.StatusBadRequest {
		t.Errorf("malformed JSON: expected 400, got %d", bad.Code)
	}
}

func TestUnknownCampaignIsNotFound(t *testing.T) {
	h, _ := newRouter(t)
	for _, path := range []string{"/api/campaigns/missing", "/api/campaigns/missing/stats"} {
		if rec := do(t, h, http.MethodGet, path, "u1", nil); rec.Code != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", path, rec.Code)
		}
	}
	if rec := do(t, h, http.MethodPost, "/api/campaigns/missing/send", "u1", nil); rec.Code != http.StatusNotFound {
		t.Errorf("send: expected 404, got %d", rec.Code)
	}
}

func TestListCampaignsPagination(t *testing.T) {
	h, store := newRouter(t)
	for i := 0; i < 3; i++ {
		if err := store.Campaigns().Create(context.Background(), &model.Campaign{UserID: "u1", Name: "c", Message: "m"}); err != nil {
			t.Fatal(err)
		}
	}

	rec := do(t, h, http.MethodGet, "/api/campaigns?page=2&page_size=2", "u1", nil)
	body := decode[struct {
		Data       []model.Campaign `json:"data"`
		Pagination map[string]int   `json:"pagination"`
	}](t, rec)
	if len(body.Data) != 1 {
		t.Errorf("expected 1 campaign on page 2, got %d", len(body.Data))
	}
	if body.Pagination["total_count"] != 3 || body.Pagination["total_pages"] != 2 {
		t.Errorf("pagination %v", body.Pagination)
	}
}

func TestRecordPurchaseAndImport(t *testing.T) {
	h, _ := newRouter(t)

	rec := do(t, h, http.MethodPost, "/api/customers/bulk", "u1", map[string]any{
		"customers": []map[string]any{{"name": "A"}, {"name": "B"}},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("bulk import: %d %s", rec.Code, rec.Body)
	}
	imported := decode[struct {
		Imported  int              `json:"imported"`
		Customers []model.Customer `json:"customers"`
	}](t, rec)
	if imported.Imported != 2 {
		t.Fatalf("imported %d", imported.Imported)
	}

	id := imported.Customers[0].ID
	rec = do(t, h, http.MethodPost, "/api/customers/"+id+"/purchases", "u1", map[string]any{"amount": 25.5})
	if rec.Code != http.StatusOK {
		t.Fatalf("purchase: %d %s", rec.Code, rec.Body)
	}
	if c := decode[model.Customer](t, rec); c.TotalSpend != 25.5 || c.VisitCount != 1 {
		t.Errorf("after purchase %+v", c)
	}

	if rec := do(t, h, http.MethodPost, "/api/customers/"+id+"/purchases", "u1", map[string]any{"amount": 0}); rec.Code != http.StatusBadRequest {
		t.Errorf("zero purchase: expected 400, got %d", rec.Code)
	}
}

func TestPersonalizedPreview(t *testing.T) {
	h, store := newRouter(t)
	ctx := context.Background()
	customer := &model.Customer{UserID: "u1", Name: "Jane Doe"}
	if err := store.Customers().Create(ctx, customer); err != nil {
		t.Fatal(err)
	}
	campaign := &model.Campaign{UserID: "u1", Name: "c", Message: "Hello {name}"}
	if err := store.Campaigns().Create(ctx, campaign); err != nil {
		t.Fatal(err)
	}

	rec := do(t, h, http.MethodPost, "/api/campaigns/"+campaign.ID+"/personalized-preview", "u1", map[string]any{
		"customer_id": customer.ID, "override_template": "Hey {first_name}",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("preview: %d %s", rec.Code, rec.Body)
	}
	if got := decode[map[string]any](t, rec)["rendered_message"]; got != "Hey Jane" {
		t.Errorf("rendered %v", got)
	}
}

func TestOrderRoutes(t *testing.T) {
	h, store := newRouter(t)
	ctx := context.Background()
	customer := &model.Customer{UserID: "u1", Name: "Jane"}
	if err := store.Customers().Create(ctx, customer); err != nil {
		t.Fatal(err)
	}

	rec := do(t, h, http.MethodPost, "/api/orders", "u1", map[string]any{
		"customer_id": customer.ID,
		"items":       []map[string]any{{"name": "tea", "price": 3, "quantity": 2}},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("add order: %d %s", rec.Code, rec.Body)
	}
	placed := decode[struct {
		Order    model.Order    `json:"order"`
		Customer model.Customer `json:"customer"`
	}](t, rec)
	if placed.Order.Total != 6 || placed.Customer.TotalSpend != 6 || placed.Customer.VisitCount != 1 {
		t.Errorf("placed %+v", placed)
	}

	rec = do(t, h, http.MethodGet, "/api/orders/customer/"+customer.ID, "u1", nil)
	if rec.Code != http.StatusOK || len(decode[[]model.Order](t, rec)) != 1 {
		t.Errorf("customer orders: %d %s", rec.Code, rec.Body)
	}
	if rec := do(t, h, http.MethodGet, "/api/orders", "u2", nil); len(decode[[]model.Order](t, rec)) != 0 {
		t.Errorf("orders leaked to another tenant: %s", rec.Body)
	}
	if rec := do(t, h, http.MethodGet, "/api/orders/"+placed.Order.ID, "u2", nil); rec.Code != http.StatusNotFound {
		t.Errorf("foreign order: expected 404, got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/api/orders", "u2", map[string]any{"customer_id": customer.ID, "total": 5}); rec.Code != http.StatusNotFound {
		t.Errorf("order for foreign customer: expected 404, got %d", rec.Code)
	}

	rec = do(t, h, http.MethodPut, "/api/orders/"+placed.Order.ID, "u1", map[string]any{"total": 6, "status": "completed"})
	if rec.Code != http.StatusOK || decode[model.Order](t, rec).Status != model.OrderStatusCompleted {
		t.Errorf("update: %d %s", rec.Code, rec.Body)
	}
	if rec := do(t, h, http.MethodDelete, "/api/orders/"+placed.Order.ID, "u1", nil); rec.Code != http.StatusOK {
		t.Errorf("delete: %d %s", rec.Code, rec.Body)
	}
}
