package submit

import (
	"context"
	"time"

	"indexflow-go/pkg/ledger"
	"indexflow-go/pkg/logger"
)

// State is the terminal state of one submitter run. Completed and
// QuotaHalted are both successful: the ledger holds enough state for the
// next invocation to resume. AuthFailed propagates to the caller.
type State string

const (
	StateCompleted   State = "completed"
	StateQuotaHalted State = "quota_halted"
	StateAuthFailed  State = "auth_failed"
)

// Result aggregates one adapter run.
type Result struct {
	Service   ledger.Service `json:"service"`
	State     State          `json:"state"`
	Succeeded int            `json:"succeeded"`
	Failed    int            `json:"failed"`
	Skipped   int            `json:"skipped"`
}

// SubmitterConfig tunes pacing between external calls. The delays keep the
// pipeline under informal provider rate limits.
type SubmitterConfig struct {
	PerURLDelay time.Duration
	BatchDelay  time.Duration
}

func DefaultSubmitterConfig() SubmitterConfig {
	return SubmitterConfig{
		PerURLDelay: 1 * time.Second,
		BatchDelay:  2 * time.Second,
	}
}

// Submitter drives a URL list through one adapter, checkpointing the ledger
// after every state change so a killed run loses at most one URL's progress.
type Submitter struct {
	store  *ledger.Store
	config SubmitterConfig
	log    *logger.Logger
}

func NewSubmitter(store *ledger.Store, config SubmitterConfig) *Submitter {
	return &Submitter{
		store:  store,
		config: config,
		log:    logger.GetLogger().WithField("component", "submitter"),
	}
}

// Run submits urls through the adapter, mutating and persisting led as it
// goes. The urls slice must be in the sitemap reader's deterministic order:
// the resume cursor is an index into it.
func (s *Submitter) Run(ctx context.Context, adapter Adapter, urls []string, led *ledger.Ledger) (*Result, error) {
	res := &Result{Service: adapter.Service(), State: StateCompleted}
	if !adapter.Enabled() {
		s.log.WithField("service", adapter.Service()).Info("Adapter disabled, skipping")
		res.Skipped = len(urls)
		return res, nil
	}

	if adapter.DailyLimit() > 0 {
		return s.runPerURL(ctx, adapter, urls, led, res)
	}
	return s.runBatch(ctx, adapter, urls, led, res)
}

// runPerURL iterates URLs one at a time from the resume cursor, enforcing
// the daily quota before each call.
func (s *Submitter) runPerURL(ctx context.Context, adapter Adapter, urls []string, led *ledger.Ledger, res *Result) (*Result, error) {
	service := adapter.Service()
	today := ledger.Today()
	limit := adapter.DailyLimit()
	batchSize := adapter.BatchSize()

	idx := led.CurrentIndex
	if idx >= len(urls) {
		// Sitemap shrank since the cursor was written; start over.
		idx = 0
	}

	log := s.log.WithField("service", service)
	log.WithFields(map[string]interface{}{
		"total_urls": len(urls),
		"cursor":     idx,
		"remaining":  limit - led.DailySubmissionCount,
	}).Info("Starting per-URL submission run")

	for idx < len(urls) {
		if halted, err := s.checkQuota(ctx, led, idx, limit, res); halted || err != nil {
			return res, err
		}

		end := idx + batchSize
		if end > len(urls) {
			end = len(urls)
		}
		log.WithFields(map[string]interface{}{"from": idx, "to": end}).Debug("Processing batch")

		for i := idx; i < end; i++ {
			u := urls[i]
			if led.SubmittedToday(u, service, today) {
				res.Skipped++
				continue
			}
			if halted, err := s.checkQuota(ctx, led, i, limit, res); halted || err != nil {
				return res, err
			}

			err := adapter.Submit(ctx, []string{u})
			switch {
			case err == nil:
				led.MarkSubmitted([]string{u}, service, today)
				led.DailySubmissionCount++
				led.CurrentIndex = i
				if err := s.store.Save(ctx, led); err != nil {
					return res, err
				}
				res.Succeeded++
				log.WithFields(map[string]interface{}{
					"url":   u,
					"count": led.DailySubmissionCount,
					"limit": limit,
				}).Info("URL submitted")

			case isAuthError(err):
				res.State = StateAuthFailed
				led.CurrentIndex = i
				if saveErr := s.store.Save(ctx, led); saveErr != nil {
					log.WithError(saveErr).Error("Failed to persist cursor after auth failure")
				}
				log.WithError(err).Error("Authorization failed, aborting run")
				return res, err

			case isQuotaError(err):
				res.State = StateQuotaHalted
				led.CurrentIndex = i
				if err := s.store.Save(ctx, led); err != nil {
					return res, err
				}
				log.WithField("cursor", i).Warn("Service rate limit hit, halting run")
				return res, nil

			default:
				// One bad URL must not abort the batch.
				led.MarkFailed(u, today)
				if err := s.store.Save(ctx, led); err != nil {
					return res, err
				}
				res.Failed++
				log.WithError(err).WithField("url", u).Warn("URL submission failed, continuing")
			}

			if err := s.pause(ctx, s.config.PerURLDelay); err != nil {
				led.CurrentIndex = i
				if saveErr := s.store.Save(ctx, led); saveErr != nil {
					log.WithError(saveErr).Error("Failed to persist cursor on cancellation")
				}
				return res, err
			}
		}

		idx = end
		led.CurrentIndex = idx
		if err := s.store.Save(ctx, led); err != nil {
			return res, err
		}

		if idx < len(urls) {
			if err := s.pause(ctx, s.config.BatchDelay); err != nil {
				return res, err
			}
		}
	}

	// Full cycle complete: the next run starts from the top of the list.
	led.CurrentIndex = 0
	if err := s.store.Save(ctx, led); err != nil {
		return res, err
	}
	log.WithField("succeeded", res.Succeeded).Info("All URLs processed, cursor reset")
	return res, nil
}

// runBatch pushes all pending URLs in capped single calls. Failures are
// batch-granular: a failed call confirms nothing, and the unconfirmed URLs
// are retried by a later run.
func (s *Submitter) runBatch(ctx context.Context, adapter Adapter, urls []string, led *ledger.Ledger, res *Result) (*Result, error) {
	service := adapter.Service()
	today := ledger.Today()
	log := s.log.WithField("service", service)

	pending := make([]string, 0, len(urls))
	for _, u := range urls {
		if led.SubmittedToday(u, service, today) {
			res.Skipped++
			continue
		}
		pending = append(pending, u)
	}
	if len(pending) == 0 {
		log.Info("No pending URLs for batch push")
		return res, nil
	}

	batchSize := adapter.BatchSize()
	for start := 0; start < len(pending); start += batchSize {
		end := start + batchSize
		if end > len(pending) {
			end = len(pending)
		}
		chunk := pending[start:end]

		err := adapter.Submit(ctx, chunk)
		switch {
		case err == nil:
			led.MarkSubmitted(chunk, service, today)
			if err := s.store.Save(ctx, led); err != nil {
				return res, err
			}
			res.Succeeded += len(chunk)
			log.WithField("url_count", len(chunk)).Info("Batch submitted")

		case isAuthError(err):
			res.State = StateAuthFailed
			log.WithError(err).Error("Authorization failed, aborting run")
			return res, err

		case isQuotaError(err):
			res.State = StateQuotaHalted
			log.Warn("Service rate limit hit, halting run")
			return res, nil

		default:
			res.Failed += len(chunk)
			log.WithError(err).WithField("url_count", len(chunk)).Warn("Batch push failed, none confirmed")
		}

		if end < len(pending) {
			if err := s.pause(ctx, s.config.BatchDelay); err != nil {
				return res, err
			}
		}
	}
	return res, nil
}

// checkQuota halts the run when the daily counter is exhausted, persisting
// the cursor so the next invocation resumes at the same point. Hitting the
// quota is a graceful stop, not a failure.
func (s *Submitter) checkQuota(ctx context.Context, led *ledger.Ledger, cursor, limit int, res *Result) (bool, error) {
	if led.DailySubmissionCount < limit {
		return false, nil
	}
	res.State = StateQuotaHalted
	led.CurrentIndex = cursor
	if err := s.store.Save(ctx, led); err != nil {
		return true, err
	}
	s.log.WithFields(map[string]interface{}{
		"service": res.Service,
		"limit":   limit,
		"cursor":  cursor,
	}).Info("Daily submission limit reached, halting until tomorrow")
	return true, nil
}

func (s *Submitter) pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
