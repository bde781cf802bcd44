package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	appErrors "github.com/unclebandit/campaign-delivery/internal/errors"
	"github.com/unclebandit/campaign-delivery/internal/model"
)

// MemoryStore keeps every entity in process memory behind one lock. It backs
// the service when no DATABASE_URL is configured, and the tests.
type MemoryStore struct {
	mu sync.RWMutex

	customers map[string]model.Customer
	rules     map[string]model.SegmentRule
	campaigns map[string]model.Campaign
	logs      map[string]model.CommunicationLog
	orders    map[string]model.Order
	byMessage map[string]string // vendor message id -> log id

	// insertion sequence, used for stable listing order
	seq   int64
	order map[string]int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		customers: map[string]model.Customer{},
		rules:     map[string]model.SegmentRule{},
		campaigns: map[string]model.Campaign{},
		logs:      map[string]model.CommunicationLog{},
		orders:    map[string]model.Order{},
		byMessage: map[string]string{},
		order:     map[string]int64{},
	}
}

func (s *MemoryStore) Customers() CustomerRepositoryInterface       { return &memoryCustomers{s} }
func (s *MemoryStore) SegmentRules() SegmentRuleRepositoryInterface { return &memorySegmentRules{s} }
func (s *MemoryStore) Campaigns() CampaignRepositoryInterface       { return &memoryCampaigns{s} }
func (s *MemoryStore) Logs() CommunicationLogRepositoryInterface    { return &memoryLogs{s} }
func (s *MemoryStore) Orders() OrderRepositoryInterface             { return &memoryOrders{s} }

func (s *MemoryStore) track(id string) {
	s.seq++
	s.order[id] = s.seq
}

func (s *MemoryStore) sortByInsertion(ids []string) {
	sort.Slice(ids, func(i, j int) bool { return s.order[ids[i]] < s.order[ids[j]] })
}

func copyMap[M ~map[string]V, V any](m M) M {
	if m == nil {
		return nil
	}
	out := make(M, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// ====================== Customers ======================

type memoryCustomers struct{ s *MemoryStore }

func (r *memoryCustomers) Create(ctx context.Context, c *model.Customer) error {
	prepareCustomer(c)
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.insert(c)
	return nil
}

func (r *memoryCustomers) insert(c *model.Customer) {
	stored := *c
	stored.Attributes = copyMap(c.Attributes)
	r.s.customers[c.ID] = stored
	r.s.track(c.ID)
}

func (r *memoryCustomers) BulkCreate(ctx context.Context, customers []*model.Customer) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range customers {
		prepareCustomer(c)
		r.insert(c)
	}
	return nil
}

func (r *memoryCustomers) GetByID(ctx context.Context, userID, id string) (*model.Customer, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.customers[id]
	if !ok || c.UserID != userID {
		return nil, appErrors.NewCustomerNotFound(id)
	}
	c.Attributes = copyMap(c.Attributes)
	return &c, nil
}

func (r *memoryCustomers) ListByUser(ctx context.Context, userID string) ([]model.Customer, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	ids := []string{}
	for id, c := range r.s.customers {
		if c.UserID == userID {
			ids = append(ids, id)
		}
	}
	r.s.sortByInsertion(ids)
	out := make([]model.Customer, 0, len(ids))
	for _, id := range ids {
		c := r.s.customers[id]
		c.Attributes = copyMap(c.Attributes)
		out = append(out, c)
	}
	return out, nil
}

func (r *memoryCustomers) Update(ctx context.Context, c *model.Customer) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.customers[c.ID]
	if !ok || existing.UserID != c.UserID {
		return appErrors.NewCustomerNotFound(c.ID)
	}
	c.CreatedAt = existing.CreatedAt
	c.UpdatedAt = time.Now().UTC()
	if c.Attributes == nil {
		c.Attributes = model.Attributes{}
	}
	stored := *c
	stored.Attributes = copyMap(c.Attributes)
	r.s.customers[c.ID] = stored
	return nil
}

func (r *memoryCustomers) Delete(ctx context.Context, userID, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.customers[id]
	if !ok || c.UserID != userID {
		return appErrors.NewCustomerNotFound(id)
	}
	delete(r.s.customers, id)
	delete(r.s.order, id)
	for oid, o := range r.s.orders {
		if o.CustomerID == id {
			delete(r.s.orders, oid)
			delete(r.s.order, oid)
		}
	}
	return nil
}

func (r *memoryCustomers) RecordPurchase(ctx context.Context, userID, id string, amount float64, at time.Time) (*model.Customer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.recordPurchase(userID, id, amount, at)
}

// recordPurchase expects s.mu held for writing.
func (s *MemoryStore) recordPurchase(userID, id string, amount float64, at time.Time) (*model.Customer, error) {
	c, ok := s.customers[id]
	if !ok || c.UserID != userID {
		return nil, appErrors.NewCustomerNotFound(id)
	}
	c.TotalSpend += amount
	c.VisitCount++
	c.LastActive = at
	c.UpdatedAt = at
	s.customers[id] = c
	c.Attributes = copyMap(c.Attributes)
	return &c, nil
}

// ====================== Segment rules ======================

type memorySegmentRules struct{ s *MemoryStore }

func (r *memorySegmentRules) Create(ctx context.Context, rule *model.SegmentRule) error {
	now := time.Now().UTC()
	if rule.ID == "" {
		rule.ID = newID()
	}
	if rule.LogicType == "" {
		rule.LogicType = model.LogicAND
	}
	if rule.Rules == nil {
		rule.Rules = model.Conditions{}
	}
	rule.CreatedAt = now
	rule.UpdatedAt = now

	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored := *rule
	stored.Rules = append(model.Conditions{}, rule.Rules...)
	r.s.rules[rule.ID] = stored
	r.s.track(rule.ID)
	return nil
}

func (r *memorySegmentRules) GetByID(ctx context.Context, userID, id string) (*model.SegmentRule, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	rule, ok := r.s.rules[id]
	if !ok || rule.UserID != userID {
		return nil, appErrors.NewSegmentRuleNotFound(id)
	}
	rule.Rules = append(model.Conditions{}, rule.Rules...)
	return &rule, nil
}

func (r *memorySegmentRules) ListByUser(ctx context.Context, userID string) ([]model.SegmentRule, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	ids := []string{}
	for id, rule := range r.s.rules {
		if rule.UserID == userID {
			ids = append(ids, id)
		}
	}
	r.s.sortByInsertion(ids)
	out := make([]model.SegmentRule, 0, len(ids))
	for _, id := range ids {
		rule := r.s.rules[id]
		rule.Rules = append(model.Conditions{}, rule.Rules...)
		out = append(out, rule)
	}
	return out, nil
}

func (r *memorySegmentRules) Update(ctx context.Context, rule *model.SegmentRule) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.rules[rule.ID]
	if !ok || existing.UserID != rule.UserID {
		return appErrors.NewSegmentRuleNotFound(rule.ID)
	}
	if rule.LogicType == "" {
		rule.LogicType = model.LogicAND
	}
	rule.CreatedAt = existing.CreatedAt
	rule.UpdatedAt = time.Now().UTC()
	stored := *rule
	stored.Rules = append(model.Conditions{}, rule.Rules...)
	r.s.rules[rule.ID] = stored
	return nil
}

func (r *memorySegmentRules) Delete(ctx context.Context, userID, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rule, ok := r.s.rules[id]
	if !ok || rule.UserID != userID {
		return appErrors.NewSegmentRuleNotFound(id)
	}
	delete(r.s.rules, id)
	delete(r.s.order, id)
	return nil
}

// ====================== Campaigns ======================

type memoryCampaigns struct{ s *MemoryStore }

func (r *memoryCampaigns) Create(ctx context.Context, c *model.Campaign) error {
	if c.ID == "" {
		c.ID = newID()
	}
	c.CreatedAt = time.Now().UTC()
	if c.Status == "" {
		c.Status = model.CampaignStatusPending
	}
	if c.Stats == nil {
		c.Stats = model.StatusCounts{}
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored := *c
	stored.Stats = copyMap(c.Stats)
	r.s.campaigns[c.ID] = stored
	r.s.track(c.ID)
	return nil
}

func (r *memoryCampaigns) GetByID(ctx context.Context, userID, id string) (*model.Campaign, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.campaigns[id]
	if !ok || c.UserID != userID {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	c.Stats = copyMap(c.Stats)
	return &c, nil
}

// ListByUser returns newest first, matching the Postgres ordering.
func (r *memoryCampaigns) ListByUser(ctx context.Context, userID string) ([]model.Campaign, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	ids := []string{}
	for id, c := range r.s.campaigns {
		if c.UserID == userID {
			ids = append(ids, id)
		}
	}
	r.s.sortByInsertion(ids)
	out := make([]model.Campaign, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		c := r.s.campaigns[ids[i]]
		c.Stats = copyMap(c.Stats)
		out = append(out, c)
	}
	return out, nil
}

func (r *memoryCampaigns) Update(ctx context.Context, c *model.Campaign) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.campaigns[c.ID]
	if !ok || existing.UserID != c.UserID {
		return appErrors.NewCampaignNotFound(c.ID)
	}
	now := time.Now().UTC()
	existing.Name = c.Name
	existing.Intent = c.Intent
	existing.Message = c.Message
	existing.SegmentRuleID = c.SegmentRuleID
	existing.UpdatedAt = &now
	r.s.campaigns[c.ID] = existing
	c.UpdatedAt = &now
	return nil
}

func (r *memoryCampaigns) UpdateStatus(ctx context.Context, id, status string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.campaigns[id]
	if !ok {
		return nil
	}
	now := time.Now().UTC()
	c.Status = status
	c.UpdatedAt = &now
	r.s.campaigns[id] = c
	return nil
}

func (r *memoryCampaigns) UpdateStats(ctx context.Context, id string, counts model.StatusCounts) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.campaigns[id]
	if !ok {
		return nil
	}
	now := time.Now().UTC()
	c.Stats = copyMap(counts)
	c.UpdatedAt = &now
	r.s.campaigns[id] = c
	return nil
}

func (r *memoryCampaigns) Delete(ctx context.Context, userID, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.campaigns[id]
	if !ok || c.UserID != userID {
		return appErrors.NewCampaignNotFound(id)
	}
	for logID, l := range r.s.logs {
		if l.CampaignID == id {
			r.s.dropLog(logID)
		}
	}
	delete(r.s.campaigns, id)
	delete(r.s.order, id)
	return nil
}

// ====================== Communication logs ======================

type memoryLogs struct{ s *MemoryStore }

// dropLog must be called with the write lock held.
func (s *MemoryStore) dropLog(id string) {
	if l, ok := s.logs[id]; ok && l.MessageID != nil {
		delete(s.byMessage, *l.MessageID)
	}
	delete(s.logs, id)
	delete(s.order, id)
}

func cloneLog(l model.CommunicationLog) model.CommunicationLog {
	l.Metadata = copyMap(l.Metadata)
	return l
}

func (r *memoryLogs) Create(ctx context.Context, l *model.CommunicationLog) error {
	now := time.Now().UTC()
	if l.ID == "" {
		l.ID = newID()
	}
	if l.Status == "" {
		l.Status = model.StatusPending
	}
	l.CreatedAt = now
	l.UpdatedAt = now

	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.logs[l.ID] = cloneLog(*l)
	if l.MessageID != nil {
		r.s.byMessage[*l.MessageID] = l.ID
	}
	r.s.track(l.ID)
	return nil
}

func (r *memoryLogs) MarkSent(ctx context.Context, id, messageID string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.logs[id]
	if !ok || l.Status != model.StatusPending {
		return appErrors.NewLogNotFound(id)
	}
	l.Status = model.StatusSent
	l.MessageID = &messageID
	l.SentAt = &at
	l.UpdatedAt = at
	r.s.logs[id] = l
	r.s.byMessage[messageID] = id
	return nil
}

func (r *memoryLogs) MarkFailed(ctx context.Context, id, reason string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.logs[id]
	if !ok || l.Status != model.StatusPending {
		return appErrors.NewLogNotFound(id)
	}
	l.Status = model.StatusFailed
	l.Error = reason
	l.FailedAt = &at
	l.UpdatedAt = at
	r.s.logs[id] = l
	return nil
}

func (r *memoryLogs) GetByMessageID(ctx context.Context, messageID string) (*model.CommunicationLog, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	id, ok := r.s.byMessage[messageID]
	if !ok {
		return nil, appErrors.NewNotFound("communication log for message", messageID)
	}
	l := cloneLog(r.s.logs[id])
	return &l, nil
}

func (r *memoryLogs) GetByID(ctx context.Context, userID, id string) (*model.CommunicationLog, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	l, ok := r.s.logs[id]
	if !ok || l.UserID != userID {
		return nil, appErrors.NewLogNotFound(id)
	}
	l = cloneLog(l)
	return &l, nil
}

func (r *memoryLogs) filter(match func(model.CommunicationLog) bool) []model.CommunicationLog {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	ids := []string{}
	for id, l := range r.s.logs {
		if match(l) {
			ids = append(ids, id)
		}
	}
	r.s.sortByInsertion(ids)
	out := make([]model.CommunicationLog, 0, len(ids))
	for _, id := range ids {
		out = append(out, cloneLog(r.s.logs[id]))
	}
	return out
}

func (r *memoryLogs) ListByUser(ctx context.Context, userID string) ([]model.CommunicationLog, error) {
	return r.filter(func(l model.CommunicationLog) bool { return l.UserID == userID }), nil
}

func (r *memoryLogs) ListByCampaign(ctx context.Context, userID, campaignID string) ([]model.CommunicationLog, error) {
	return r.filter(func(l model.CommunicationLog) bool {
		return l.UserID == userID && l.CampaignID == campaignID
	}), nil
}

func (r *memoryLogs) ListByCustomer(ctx context.Context, userID, customerID string) ([]model.CommunicationLog, error) {
	return r.filter(func(l model.CommunicationLog) bool {
		return l.UserID == userID && l.CustomerID == customerID
	}), nil
}

func (r *memoryLogs) count(match func(model.CommunicationLog) bool) model.StatusCounts {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	counts := model.StatusCounts{}
	for _, l := range r.s.logs {
		if match(l) {
			counts[l.Status]++
		}
	}
	return counts
}

func (r *memoryLogs) CountByCampaign(ctx context.Context, campaignID string) (model.StatusCounts, error) {
	return r.count(func(l model.CommunicationLog) bool { return l.CampaignID == campaignID }), nil
}

func (r *memoryLogs) CountByUser(ctx context.Context, userID string) (model.StatusCounts, error) {
	return r.count(func(l model.CommunicationLog) bool { return l.UserID == userID }), nil
}

// BulkApplyReceipts applies the batch in order under a single lock, so
// readers never observe a partially applied batch.
func (r *memoryLogs) BulkApplyReceipts(ctx context.Context, updates []model.ReceiptUpdate, now time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	changed := map[string]struct{}{}
	for _, u := range updates {
		id, ok := r.s.byMessage[u.MessageID]
		if !ok {
			continue
		}
		l := r.s.logs[id]
		if !model.CanTransition(l.Status, u.Status) {
			continue
		}
		l.Status = u.Status
		switch u.Status {
		case model.StatusSent:
			l.SentAt = &now
		case model.StatusDelivered:
			l.DeliveredAt = &now
		case model.StatusFailed:
			l.FailedAt = &now
			l.Error = u.ErrorText()
		}
		if u.Metadata != nil {
			l.Metadata = copyMap(u.Metadata)
		}
		l.UpdatedAt = now
		r.s.logs[id] = l
		changed[id] = struct{}{}
	}
	return int64(len(changed)), nil
}

func (r *memoryLogs) Delete(ctx context.Context, userID, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.logs[id]
	if !ok || l.UserID != userID {
		return appErrors.NewLogNotFound(id)
	}
	r.s.dropLog(id)
	return nil
}

// ====================== Orders ======================

type memoryOrders struct{ s *MemoryStore }

func copyOrder(o model.Order) model.Order {
	o.Items = append(model.OrderItems{}, o.Items...)
	return o
}

func (r *memoryOrders) Create(ctx context.Context, o *model.Order) (*model.Customer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.placeOrder(o)
}

// BulkCreate checks every owning customer before touching any totals.
func (r *memoryOrders) BulkCreate(ctx context.Context, orders []*model.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, o := range orders {
		if c, ok := r.s.customers[o.CustomerID]; !ok || c.UserID != o.UserID {
			return appErrors.NewCustomerNotFound(o.CustomerID)
		}
	}
	for _, o := range orders {
		if _, err := r.s.placeOrder(o); err != nil {
			return err
		}
	}
	return nil
}

// placeOrder expects s.mu held for writing.
func (s *MemoryStore) placeOrder(o *model.Order) (*model.Customer, error) {
	prepareOrder(o)
	c, err := s.recordPurchase(o.UserID, o.CustomerID, o.Total, o.CreatedAt)
	if err != nil {
		return nil, err
	}
	s.orders[o.ID] = copyOrder(*o)
	s.track(o.ID)
	return c, nil
}

func (r *memoryOrders) GetByID(ctx context.Context, userID, id string) (*model.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	o, ok := r.s.orders[id]
	if !ok || o.UserID != userID {
		return nil, appErrors.NewOrderNotFound(id)
	}
	o = copyOrder(o)
	return &o, nil
}

func (r *memoryOrders) ListByUser(ctx context.Context, userID string) ([]model.Order, error) {
	return r.list(func(o model.Order) bool { return o.UserID == userID }), nil
}

func (r *memoryOrders) ListByCustomer(ctx context.Context, userID, customerID string) ([]model.Order, error) {
	return r.list(func(o model.Order) bool { return o.UserID == userID && o.CustomerID == customerID }), nil
}

// list returns matching orders newest first.
func (r *memoryOrders) list(keep func(model.Order) bool) []model.Order {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []model.Order{}
	for _, o := range r.s.orders {
		if keep(o) {
			out = append(out, copyOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return r.s.order[out[i].ID] < r.s.order[out[j].ID]
	})
	return out
}

func (r *memoryOrders) Update(ctx context.Context, o *model.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.orders[o.ID]
	if !ok || existing.UserID != o.UserID {
		return appErrors.NewOrderNotFound(o.ID)
	}
	existing.Date = o.Date
	existing.Items = o.Items
	existing.Total = o.Total
	existing.Status = o.Status
	existing.UpdatedAt = time.Now().UTC()
	r.s.orders[o.ID] = copyOrder(existing)
	*o = copyOrder(existing)
	return nil
}

func (r *memoryOrders) Delete(ctx context.Context, userID, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orders[id]
	if !ok || o.UserID != userID {
		return appErrors.NewOrderNotFound(id)
	}
	delete(r.s.orders, id)
	delete(r.s.order, id)
	return nil
}

var (
	_ CustomerRepositoryInterface         = (*memoryCustomers)(nil)
	_ OrderRepositoryInterface            = (*memoryOrders)(nil)
	_ SegmentRuleRepositoryInterface      = (*memorySegmentRules)(nil)
	_ CampaignRepositoryInterface         = (*memoryCampaigns)(nil)
	_ CommunicationLogRepositoryInterface = (*memoryLogs)(nil)
)
