package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"indexflow-go/pkg/ledger"
	"indexflow-go/pkg/logger"
	"indexflow-go/pkg/sitemap"
	"indexflow-go/pkg/submit"
)

// GoogleDetails summarizes the per-URL indexing adapter's run.
type GoogleDetails struct {
	Success      int  `json:"success"`
	Failed       int  `json:"failed"`
	RateLimitHit bool `json:"rateLimitHit,omitempty"`
}

// IndexNowDetails summarizes the multi-URL push adapter's run.
type IndexNowDetails struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type Details struct {
	GoogleIndexing *GoogleDetails   `json:"googleIndexing,omitempty"`
	IndexNow       *IndexNowDetails `json:"indexNow,omitempty"`
}

// Summary is the structured outcome of one submission run. Success=false
// with an empty Error means a no-op run, not a failure; callers inspect
// Details for partial outcomes.
type Summary struct {
	RunID   string   `json:"runId"`
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Details *Details `json:"details,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// URLSource produces the ordered candidate URL list.
type URLSource interface {
	Read(ctx context.Context, path string) ([]sitemap.Entry, error)
}

// Runner is the orchestrator: it owns the run lifecycle of ledger day
// rollover, sitemap enumeration, and driving the submitter against each
// adapter independently.
type Runner struct {
	sitemapPath string
	source      URLSource
	store       *ledger.Store
	submitter   *submit.Submitter
	adapters    []submit.Adapter
	log         *logger.Logger

	mu sync.Mutex
}

func NewRunner(sitemapPath string, source URLSource, store *ledger.Store, submitter *submit.Submitter, adapters ...submit.Adapter) *Runner {
	return &Runner{
		sitemapPath: sitemapPath,
		source:      source,
		store:       store,
		submitter:   submitter,
		adapters:    adapters,
		log:         logger.GetLogger().WithField("component", "orchestrator"),
	}
}

// Run executes one submission cycle. Only one run is in flight at a time;
// an overlapping trigger gets a busy no-op summary so a slow run and a cron
// tick never race on the ledger file.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	if !r.mu.TryLock() {
		return &Summary{
			Success: false,
			Message: "a submission run is already in progress",
		}, nil
	}
	defer r.mu.Unlock()

	summary := &Summary{RunID: uuid.NewString(), Success: true}
	log := r.log.WithField("run_id", summary.RunID)
	log.Info("Starting URL submission run")

	led := r.store.Load(ctx)
	today := ledger.Today()
	if ledger.IsNewDay(led.LastSubmissionDate) {
		log.WithField("last_date", led.LastSubmissionDate).Info("New day detected, resetting quota and cursor")
		led.ResetDay(today)
		if err := r.store.Save(ctx, led); err != nil {
			return r.fail(summary, "failed to persist ledger", err)
		}
	}

	entries, err := r.source.Read(ctx, r.sitemapPath)
	if err != nil {
		return r.fail(summary, "failed to read sitemap", err)
	}

	urls := make([]string, len(entries))
	for i, e := range entries {
		urls[i] = e.URL
	}

	pending := 0
	for _, u := range urls {
		if !led.SubmittedTodayBoth(u, today) {
			pending++
		}
	}
	if pending == 0 {
		log.Info("No URLs to submit")
		summary.Success = false
		summary.Message = "no URLs to submit"
		return summary, nil
	}
	log.WithFields(map[string]interface{}{
		"total_urls": len(urls),
		"pending":    pending,
	}).Info("Selected URLs for submission")

	summary.Details = &Details{}
	var runErrs []error
	for _, adapter := range r.adapters {
		// One adapter failing must not prevent attempting the other.
		res, err := r.submitter.Run(ctx, adapter, urls, led)
		if err != nil {
			runErrs = append(runErrs, err)
			log.WithError(err).WithField("service", adapter.Service()).Error("Adapter run failed")
		}
		r.record(summary.Details, adapter, res, err)
		if ctx.Err() != nil {
			break
		}
	}

	if len(runErrs) > 0 {
		summary.Success = false
		summary.Message = "submission completed with errors"
		summary.Error = runErrs[0].Error()
		return summary, runErrs[0]
	}

	summary.Message = "URLs submitted successfully"
	log.Info("Submission run complete")
	return summary, nil
}

// PushURLs proxies an already-validated URL list straight to the multi-URL
// push adapter, recording confirmations in the ledger.
func (r *Runner) PushURLs(ctx context.Context, urls []string) error {
	adapter := r.adapter(ledger.ServiceIndexNow)
	if adapter == nil || !adapter.Enabled() {
		return fmt.Errorf("push adapter is not configured")
	}
	if err := adapter.Submit(ctx, urls); err != nil {
		return err
	}

	led := r.store.Load(ctx)
	led.MarkSubmitted(urls, ledger.ServiceIndexNow, ledger.Today())
	if err := r.store.Save(ctx, led); err != nil {
		r.log.WithError(err).Error("Failed to record pushed URLs in ledger")
	}
	return nil
}

func (r *Runner) adapter(service ledger.Service) submit.Adapter {
	for _, a := range r.adapters {
		if a.Service() == service {
			return a
		}
	}
	return nil
}

func (r *Runner) record(details *Details, adapter submit.Adapter, res *submit.Result, err error) {
	switch adapter.Service() {
	case ledger.ServiceGoogle:
		d := &GoogleDetails{}
		if res != nil {
			d.Success = res.Succeeded
			d.Failed = res.Failed
			d.RateLimitHit = res.State == submit.StateQuotaHalted
		}
		details.GoogleIndexing = d

	case ledger.ServiceIndexNow:
		d := &IndexNowDetails{}
		switch {
		case err != nil:
			d.Message = err.Error()
		case res != nil && res.Failed > 0:
			d.Message = fmt.Sprintf("%d URLs left unconfirmed", res.Failed)
		case res != nil && !adapter.Enabled():
			d.Message = "adapter disabled"
		default:
			d.Success = true
			d.Message = "URLs submitted successfully"
		}
		details.IndexNow = d
	}
}

func (r *Runner) fail(summary *Summary, msg string, err error) (*Summary, error) {
	r.log.WithError(err).Error(msg)
	summary.Success = false
	summary.Message = msg
	summary.Error = err.Error()
	return summary, err
}
