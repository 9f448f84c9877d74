// Package merge moves device-local selections into the authenticated backend after login.
package merge

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"shopvisit/internal/availability"
	"shopvisit/internal/booking"
	"shopvisit/internal/events"
	"shopvisit/internal/localcart"
	"shopvisit/internal/metrics"
	"shopvisit/internal/model"
)

// Entry sources.
const (
	SourceCart    = "cart"
	SourceInquiry = "inquiry"
)

const defaultMaxParallel = 4

// Enquirer submits one enquiry after re-checking availability.
type Enquirer interface {
	Enquire(ctx context.Context, id *model.Identity, slot model.CandidateSlot, opts ...booking.EnquireOption) (*booking.Booking, error)
}

// Publisher publishes domain events.
type Publisher interface {
	PublishJSON(eventType string, payload any) error
}

// Outcome is a merged entry.
type Outcome struct {
	CatalogID string         `json:"catalog_id"`
	Source    string         `json:"source"`
	Enquiry   *model.Enquiry `json:"enquiry"`
}

// Failure is an entry that was not merged. Entries that hit an in-flight
// submission stay in their local store; all others are dropped.
type Failure struct {
	CatalogID string               `json:"catalog_id"`
	Source    string               `json:"source"`
	Reason    string               `json:"reason"`
	Result    *availability.Result `json:"availability,omitempty"`
	Err       error                `json:"-"`
}

// Report is the aggregate result of one merge.
type Report struct {
	Merged []Outcome `json:"merged"`
	Failed []Failure `json:"failed"`
}

func (r *Report) Succeeded() int   { return len(r.Merged) }
func (r *Report) FailedCount() int { return len(r.Failed) }

// Coordinator drains the local cart and the pending inquiries into the booking lifecycle.
type Coordinator struct {
	cart        *localcart.Cart
	inquiries   *localcart.Cart
	enquirer    Enquirer
	bus         Publisher
	maxParallel int
	logger      *zerolog.Logger

	mu sync.Mutex
}

// NewCoordinator creates a coordinator. inquiries and bus may be nil.
func NewCoordinator(cart, inquiries *localcart.Cart, enquirer Enquirer, bus Publisher, maxParallel int, logger *zerolog.Logger) *Coordinator {
	if maxParallel <= 0 {
		maxParallel = defaultMaxParallel
	}
	return &Coordinator{
		cart:        cart,
		inquiries:   inquiries,
		enquirer:    enquirer,
		bus:         bus,
		maxParallel: maxParallel,
		logger:      logger,
	}
}

type job struct {
	entry  model.LocalCartEntry
	source string
}

type jobResult struct {
	job     job
	booking *booking.Booking
	err     error
}

// MergeOnLogin submits every local entry for the identity. Each entry succeeds or
// fails on its own; afterwards each local store is settled once and reads empty
// for the processed entries. The returned error is only set when a store cannot be
// read or written.
func (c *Coordinator) MergeOnLogin(ctx context.Context, id *model.Identity) (*Report, error) {
	if !id.Valid() {
		return nil, booking.ErrAuthRequired
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	cartBatch, err := c.cart.Drain(ctx)
	if err != nil {
		return nil, fmt.Errorf("drain %s: %w", c.cart.Key(), err)
	}
	var inquiryBatch *localcart.Batch
	if c.inquiries != nil {
		inquiryBatch, err = c.inquiries.Drain(ctx)
		if err != nil {
			c.cart.Release(cartBatch)
			return nil, fmt.Errorf("drain %s: %w", c.inquiries.Key(), err)
		}
	}

	jobs := make([]job, 0)
	for _, e := range cartBatch.Entries {
		jobs = append(jobs, job{entry: e, source: SourceCart})
	}
	if inquiryBatch != nil {
		for _, e := range inquiryBatch.Entries {
			jobs = append(jobs, job{entry: e, source: SourceInquiry})
		}
	}

	results := c.run(ctx, id, jobs)

	report := &Report{Merged: []Outcome{}, Failed: []Failure{}}
	retry := make(map[string]map[string]bool)
	for _, r := range results {
		if r.err == nil {
			report.Merged = append(report.Merged, Outcome{
				CatalogID: r.job.entry.CatalogID,
				Source:    r.job.source,
				Enquiry:   r.booking.Enquiry,
			})
			metrics.IncMergeEntry("merged")
			continue
		}
		report.Failed = append(report.Failed, failureOf(r))
		metrics.IncMergeEntry(outcomeLabel(r.err))
		if errors.Is(r.err, booking.ErrInFlight) {
			// Another submission for the catalog is running; keep the entry for the next merge.
			if retry[r.job.source] == nil {
				retry[r.job.source] = make(map[string]bool)
			}
			retry[r.job.source][r.job.entry.CatalogID] = true
			c.logger.Info().
				Str("catalog_id", r.job.entry.CatalogID).
				Str("source", r.job.source).
				Msg("merge entry kept, submission in flight")
			continue
		}
		c.logger.Warn().Err(r.err).
			Str("catalog_id", r.job.entry.CatalogID).
			Str("source", r.job.source).
			Msg("merge entry dropped")
	}

	settleErr := c.settle(ctx, c.cart, cartBatch, retry[SourceCart])
	if inquiryBatch != nil {
		settleErr = errors.Join(settleErr, c.settle(ctx, c.inquiries, inquiryBatch, retry[SourceInquiry]))
	}

	c.logger.Info().
		Str("user_id", id.UserID).
		Int("merged", report.Succeeded()).
		Int("failed", report.FailedCount()).
		Msg("merge completed")
	if c.bus != nil && len(jobs) > 0 {
		payload := map[string]any{"user_id": id.UserID, "merged": report.Succeeded(), "failed": report.FailedCount()}
		if err := c.bus.PublishJSON(events.MergeCompleted, payload); err != nil {
			c.logger.Warn().Err(err).Msg("publish merge event failed")
		}
	}
	return report, settleErr
}

// settle deletes the batch entries except those in keep, which are released.
func (c *Coordinator) settle(ctx context.Context, cart *localcart.Cart, batch *localcart.Batch, keep map[string]bool) error {
	done := &localcart.Batch{Key: batch.Key}
	kept := &localcart.Batch{Key: batch.Key}
	for _, e := range batch.Entries {
		if keep[e.CatalogID] {
			kept.Entries = append(kept.Entries, e)
		} else {
			done.Entries = append(done.Entries, e)
		}
	}
	cart.Release(kept)
	if err := cart.Settle(ctx, done); err != nil {
		return fmt.Errorf("settle %s: %w", cart.Key(), err)
	}
	return nil
}

// run submits jobs concurrently and returns results in job order.
func (c *Coordinator) run(ctx context.Context, id *model.Identity, jobs []job) []jobResult {
	results := make([]jobResult, len(jobs))
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, c.maxParallel)

	for i, j := range jobs {
		wg.Add(1)
		go func(i int, j job) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			slot := j.entry.Slot
			if slot.CatalogID == "" {
				slot.CatalogID = j.entry.CatalogID
			}
			opts := []booking.EnquireOption{booking.WithSource(booking.SourceMerge), booking.WithFreshSchedule()}
			if j.source == SourceCart {
				opts = append(opts, booking.WithRemoteCart())
			}
			b, err := c.enquirer.Enquire(ctx, id, slot, opts...)
			results[i] = jobResult{job: j, booking: b, err: err}
		}(i, j)
	}
	wg.Wait()
	return results
}

func failureOf(r jobResult) Failure {
	f := Failure{
		CatalogID: r.job.entry.CatalogID,
		Source:    r.job.source,
		Reason:    r.err.Error(),
		Err:       r.err,
	}
	var rejected *availability.SlotRejectedError
	if errors.As(r.err, &rejected) {
		res := rejected.Result
		f.Reason = res.Message()
		f.Result = &res
	}
	return f
}

func outcomeLabel(err error) string {
	switch {
	case errors.Is(err, availability.ErrSlotRejected):
		return "rejected"
	case errors.Is(err, booking.ErrInFlight):
		return "in_flight"
	case errors.Is(err, booking.ErrSubmissionFailed):
		return "submission_failed"
	default:
		return "error"
	}
}
