package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/unclebandit/campaign-delivery/internal/model"
	"github.com/unclebandit/campaign-delivery/internal/repository"
	"github.com/unclebandit/campaign-delivery/internal/vendor"
)

// Dispatcher runs the synchronous phase of a campaign send: for every
// customer a pending log is written before the vendor is called, then the
// log moves to sent or failed.
type Dispatcher struct {
	LogRepo     repository.CommunicationLogRepositoryInterface
	Sender      vendor.Sender
	Concurrency int
	Log         logrus.FieldLogger
}

type dispatchJob struct {
	index    int
	customer *model.Customer
}

type dispatchResult struct {
	log model.CommunicationLog
	err error
}

func NewDispatcher(logs repository.CommunicationLogRepositoryInterface, sender vendor.Sender, concurrency int, log logrus.FieldLogger) *Dispatcher {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Dispatcher{LogRepo: logs, Sender: sender, Concurrency: concurrency, Log: log}
}

// Dispatch returns one log per customer, in audience order. A vendor
// rejection fails only that customer's log; storage errors are joined and
// returned.
func (d *Dispatcher) Dispatch(ctx context.Context, campaign *model.Campaign, customers []model.Customer) ([]model.CommunicationLog, error) {
	results := make([]dispatchResult, len(customers))
	jobs := make(chan dispatchJob)

	workers := min(d.Concurrency, len(customers))
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				l, err := d.sendOne(ctx, campaign, job.customer)
				results[job.index] = dispatchResult{log: l, err: err}
			}
		}()
	}
	for i := range customers {
		jobs <- dispatchJob{index: i, customer: &customers[i]}
	}
	close(jobs)
	wg.Wait()

	logs := make([]model.CommunicationLog, 0, len(results))
	var errs []error
	for _, r := range results {
		if r.err != nil {
			errs = append(errs, r.err)
			continue
		}
		logs = append(logs, r.log)
	}
	return logs, errors.Join(errs...)
}

func (d *Dispatcher) sendOne(ctx context.Context, campaign *model.Campaign, customer *model.Customer) (model.CommunicationLog, error) {
	entry := model.CommunicationLog{
		CampaignID: campaign.ID,
		CustomerID: customer.ID,
		UserID:     campaign.UserID,
		Message:    Personalize(campaign.Message, customer),
		Status:     model.StatusPending,
	}
	if err := d.LogRepo.Create(ctx, &entry); err != nil {
		return entry, fmt.Errorf("create log for customer %s: %w", customer.ID, err)
	}

	fields := logrus.Fields{"campaign_id": campaign.ID, "customer_id": customer.ID, "log_id": entry.ID}
	res, sendErr := d.Sender.Send(ctx, customer, entry.Message)
	now := time.Now().UTC()
	if sendErr != nil {
		if err := d.LogRepo.MarkFailed(ctx, entry.ID, sendErr.Error(), now); err != nil {
			return entry, fmt.Errorf("mark log %s failed: %w", entry.ID, err)
		}
		entry.Status = model.StatusFailed
		entry.Error = sendErr.Error()
		entry.FailedAt = &now
		d.Log.WithFields(fields).WithError(sendErr).Info("vendor rejected message")
		return entry, nil
	}

	if err := d.LogRepo.MarkSent(ctx, entry.ID, res.MessageID, res.AcceptedAt); err != nil {
		return entry, fmt.Errorf("mark log %s sent: %w", entry.ID, err)
	}
	entry.Status = model.StatusSent
	entry.MessageID = &res.MessageID
	entry.SentAt = &res.AcceptedAt
	d.Log.WithFields(fields).WithField("message_id", res.MessageID).Debug("vendor accepted message")
	return entry, nil
}
