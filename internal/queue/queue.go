// Package queue buffers delivery receipt updates and applies them to storage
// in batches, one drain loop at a time.
package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	appErrors "github.com/unclebandit/campaign-delivery/internal/errors"
	"github.com/unclebandit/campaign-delivery/internal/model"
)

const (
	DefaultBatchSize     = 50
	DefaultBatchInterval = time.Second
	DefaultApplyTimeout  = 30 * time.Second
)

var ErrClosed = errors.New("delivery queue is closed")

// Applier writes a batch of updates in one bulk operation.
type Applier interface {
	BulkApplyReceipts(ctx context.Context, updates []model.ReceiptUpdate, now time.Time) (int64, error)
}

// StatsRecomputer refreshes the aggregate counts of one campaign.
type StatsRecomputer interface {
	RecomputeStats(ctx context.Context, campaignID string) error
}

type Options struct {
	BatchSize     int
	BatchInterval time.Duration
	ApplyTimeout  time.Duration
	Now           func() time.Time
}

// Status is a point-in-time view of the queue.
type Status struct {
	QueueLength   int  `json:"queueLength"`
	IsDraining    bool `json:"isDraining"`
	NextBatchSize int  `json:"nextBatchSize"`
}

// Metrics are cumulative counters since the queue was created.
type Metrics struct {
	Enqueued      int64 `json:"enqueued"`
	Applied       int64 `json:"applied"`
	Skipped       int64 `json:"skipped"`
	Dropped       int64 `json:"dropped"`
	Cleared       int64 `json:"cleared"`
	Batches       int64 `json:"batches"`
	FailedBatches int64 `json:"failedBatches"`
	DrainsStarted int64 `json:"drainsStarted"`
}

// DeliveryQueue is idle until the first enqueue, then a single drain loop
// owns the buffer until it finds it empty. Enqueue during a drain only
// appends.
type DeliveryQueue struct {
	applier Applier
	stats   StatsRecomputer
	log     logrus.FieldLogger
	opts    Options

	mu       sync.Mutex
	buffer   []model.ReceiptUpdate
	draining bool
	closed   bool
	flushing bool
	metrics  Metrics
	wake     chan struct{}
	wg       sync.WaitGroup
}

func New(applier Applier, stats StatsRecomputer, log logrus.FieldLogger, opts Options) *DeliveryQueue {
	if opts.BatchSize < 1 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.BatchInterval < 0 {
		opts.BatchInterval = 0
	}
	if opts.ApplyTimeout <= 0 {
		opts.ApplyTimeout = DefaultApplyTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &DeliveryQueue{
		applier: applier,
		stats:   stats,
		log:     log,
		opts:    opts,
		wake:    make(chan struct{}, 1),
	}
}

// Enqueue appends the updates, in order and as one insertion, and starts a
// drain if none is running.
func (q *DeliveryQueue) Enqueue(updates ...model.ReceiptUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	now := q.opts.Now().UTC()
	for _, u := range updates {
		if u.ReceivedAt.IsZero() {
			u.ReceivedAt = now
		}
		q.buffer = append(q.buffer, u)
	}
	q.metrics.Enqueued += int64(len(updates))

	if !q.draining {
		q.draining = true
		q.metrics.DrainsStarted++
		q.wg.Add(1)
		go q.drain()
	}
	return nil
}

func (q *DeliveryQueue) Status() Status {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Status{
		QueueLength:   len(q.buffer),
		IsDraining:    q.draining,
		NextBatchSize: min(len(q.buffer), q.opts.BatchSize),
	}
}

func (q *DeliveryQueue) Metrics() Metrics {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.metrics
}

// Clear drops every buffered update and returns how many were dropped. They
// are lost. A running drain exits at its next loop-top.
func (q *DeliveryQueue) Clear() int {
	q.mu.Lock()
	n := len(q.buffer)
	q.buffer = nil
	q.metrics.Cleared += int64(n)
	draining := q.draining
	q.mu.Unlock()

	// only a running drain consumes the wake token
	if draining {
		q.nudge()
	}
	if n > 0 {
		q.log.WithField("dropped", n).Warn("delivery queue cleared")
	}
	return n
}

func (q *DeliveryQueue) nudge() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// next takes the head batch, or marks the queue idle when the buffer is empty.
func (q *DeliveryQueue) next() []model.ReceiptUpdate {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.buffer) == 0 {
		q.draining = false
		return nil
	}
	n := min(len(q.buffer), q.opts.BatchSize)
	batch := make([]model.ReceiptUpdate, n)
	copy(batch, q.buffer[:n])
	q.buffer = q.buffer[n:]
	if len(q.buffer) == 0 {
		q.buffer = nil
	}
	return batch
}

func (q *DeliveryQueue) drain() {
	defer q.wg.Done()
	for {
		batch := q.next()
		if batch == nil {
			return
		}
		q.applyBatch(batch)

		q.mu.Lock()
		flushing := q.flushing
		q.mu.Unlock()
		if !flushing {
			q.pause()
		}
	}
}

func (q *DeliveryQueue) pause() {
	if q.opts.BatchInterval == 0 {
		return
	}
	t := time.NewTimer(q.opts.BatchInterval)
	defer t.Stop()
	select {
	case <-t.C:
	case <-q.wake:
	}
}

func (q *DeliveryQueue) applyBatch(batch []model.ReceiptUpdate) {
	ctx, cancel := context.WithTimeout(context.Background(), q.opts.ApplyTimeout)
	defer cancel()

	changed, err := q.applier.BulkApplyReceipts(ctx, batch, q.opts.Now().UTC())
	if err != nil {
		applyErr := &appErrors.QueueApplyError{BatchSize: len(batch), Err: err}
		q.log.WithError(applyErr).WithField("batch_size", len(batch)).Error("dropping receipt batch")
		q.mu.Lock()
		q.metrics.Batches++
		q.metrics.FailedBatches++
		q.metrics.Dropped += int64(len(batch))
		q.mu.Unlock()
		return
	}

	q.mu.Lock()
	q.metrics.Batches++
	q.metrics.Applied += changed
	q.metrics.Skipped += int64(len(batch)) - changed
	q.mu.Unlock()

	for _, campaignID := range distinctCampaigns(batch) {
		if err := q.stats.RecomputeStats(ctx, campaignID); err != nil {
			q.log.WithError(err).WithField("campaign_id", campaignID).Warn("failed to recompute campaign stats")
		}
	}
	q.log.WithFields(logrus.Fields{"batch_size": len(batch), "changed": changed}).Debug("receipt batch applied")
}

func distinctCampaigns(batch []model.ReceiptUpdate) []string {
	seen := make(map[string]struct{}, len(batch))
	var ids []string
	for _, u := range batch {
		if u.CampaignID == "" {
			continue
		}
		if _, ok := seen[u.CampaignID]; ok {
			continue
		}
		seen[u.CampaignID] = struct{}{}
		ids = append(ids, u.CampaignID)
	}
	return ids
}

// Close rejects further updates and flushes what is buffered without
// pausing between batches. It returns ctx's error if the flush does not
// finish in time.
func (q *DeliveryQueue) Close(ctx context.Context) error {
	q.mu.Lock()
	q.closed = true
	q.flushing = true
	q.mu.Unlock()
	q.nudge()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
