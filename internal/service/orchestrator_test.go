package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"indexflow-go/pkg/ledger"
	"indexflow-go/pkg/sitemap"
	"indexflow-go/pkg/storage"
	"indexflow-go/pkg/submit"
)

type stubSource struct {
	entries []sitemap.Entry
	err     error
}

func (s *stubSource) Read(ctx context.Context, path string) ([]sitemap.Entry, error) {
	return s.entries, s.err
}

type stubAdapter struct {
	service  ledger.Service
	enabled  bool
	limit    int
	batch    int
	failWith map[string]error
	calls    int
}

func (a *stubAdapter) Service() ledger.Service { return a.service }
func (a *stubAdapter) Enabled() bool           { return a.enabled }
func (a *stubAdapter) BatchSize() int          { return a.batch }
func (a *stubAdapter) DailyLimit() int         { return a.limit }

func (a *stubAdapter) Submit(ctx context.Context, urls []string) error {
	a.calls++
	for _, u := range urls {
		if err, ok := a.failWith[u]; ok {
			return err
		}
	}
	return nil
}

func entriesFor(n int) []sitemap.Entry {
	entries := make([]sitemap.Entry, n)
	for i := range entries {
		entries[i] = sitemap.Entry{
			URL:      fmt.Sprintf("https://example.com/page-%02d", i),
			Priority: 0.8,
		}
	}
	return entries
}

func newTestRunner(entries []sitemap.Entry, adapters ...submit.Adapter) (*Runner, *ledger.Store) {
	store := ledger.NewStore(storage.NewMemoryStorage())
	sub := submit.NewSubmitter(store, submit.SubmitterConfig{})
	runner := NewRunner("sitemap.xml", &stubSource{entries: entries}, store, sub, adapters...)
	return runner, store
}

func googleStub() *stubAdapter {
	return &stubAdapter{service: ledger.ServiceGoogle, enabled: true, limit: 200, batch: 10, failWith: map[string]error{}}
}

func indexNowStub() *stubAdapter {
	return &stubAdapter{service: ledger.ServiceIndexNow, enabled: true, batch: 10000, failWith: map[string]error{}}
}

func TestRunner_SubmitsToBothServices(t *testing.T) {
	runner, store := newTestRunner(entriesFor(5), googleStub(), indexNowStub())
	ctx := context.Background()

	summary, err := runner.Run(ctx)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !summary.Success {
		t.Errorf("Expected successful summary, got: %+v", summary)
	}
	if summary.Details.GoogleIndexing.Success != 5 {
		t.Errorf("Expected 5 Google submissions, got: %d", summary.Details.GoogleIndexing.Success)
	}
	if !summary.Details.IndexNow.Success {
		t.Errorf("Expected IndexNow success, got: %+v", summary.Details.IndexNow)
	}
	if summary.RunID == "" {
		t.Error("Expected a run ID for log correlation")
	}

	led := store.Load(ctx)
	today := ledger.Today()
	for _, e := range entriesFor(5) {
		if !led.SubmittedTodayBoth(e.URL, today) {
			t.Errorf("Expected %s confirmed by both services", e.URL)
		}
	}
}

func TestRunner_NoOpWhenEverythingDoneToday(t *testing.T) {
	google := googleStub()
	indexnow := indexNowStub()
	runner, store := newTestRunner(entriesFor(3), google, indexnow)
	ctx := context.Background()

	led := ledger.New()
	today := ledger.Today()
	for _, e := range entriesFor(3) {
		led.MarkSubmitted([]string{e.URL}, ledger.ServiceGoogle, today)
		led.MarkSubmitted([]string{e.URL}, ledger.ServiceIndexNow, today)
	}
	if err := store.Save(ctx, led); err != nil {
		t.Fatalf("Expected no error seeding ledger, got: %v", err)
	}

	summary, err := runner.Run(ctx)
	if err != nil {
		t.Fatalf("Expected no-op to not be an error, got: %v", err)
	}
	if summary.Success {
		t.Error("Expected no-op summary with success=false")
	}
	if summary.Error != "" {
		t.Errorf("Expected no error field on a no-op, got: %q", summary.Error)
	}
	if google.calls != 0 || indexnow.calls != 0 {
		t.Errorf("Expected no external calls, got google=%d indexnow=%d", google.calls, indexnow.calls)
	}
}

func TestRunner_DailyResetMakesURLsEligibleAgain(t *testing.T) {
	runner, store := newTestRunner(entriesFor(3), googleStub(), indexNowStub())
	ctx := context.Background()

	led := ledger.New()
	led.LastSubmissionDate = "2026-08-28"
	led.CurrentIndex = 3
	led.DailySubmissionCount = 200
	led.MarkSubmitted([]string{"https://example.com/page-00"}, ledger.ServiceGoogle, "2026-08-28")
	led.MarkSubmitted([]string{"https://example.com/page-00"}, ledger.ServiceIndexNow, "2026-08-28")
	led.LastSubmissionDate = "2026-08-28"
	if err := store.Save(ctx, led); err != nil {
		t.Fatalf("Expected no error seeding ledger, got: %v", err)
	}

	summary, err := runner.Run(ctx)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !summary.Success {
		t.Fatalf("Expected successful run after daily reset, got: %+v", summary)
	}
	// All 3 URLs eligible again, including yesterday's.
	if summary.Details.GoogleIndexing.Success != 3 {
		t.Errorf("Expected 3 Google submissions after reset, got: %d", summary.Details.GoogleIndexing.Success)
	}

	persisted := store.Load(ctx)
	if persisted.DailySubmissionCount != 3 {
		t.Errorf("Expected counter reset then incremented to 3, got: %d", persisted.DailySubmissionCount)
	}
}

func TestRunner_AdapterFailureDoesNotBlockOther(t *testing.T) {
	google := googleStub()
	google.failWith["https://example.com/page-00"] = &submit.AuthorizationError{
		Service: ledger.ServiceGoogle,
		Hint:    "verify domain ownership",
		Err:     errors.New("status 403"),
	}
	indexnow := indexNowStub()
	runner, _ := newTestRunner(entriesFor(3), google, indexnow)

	summary, err := runner.Run(context.Background())
	if err == nil {
		t.Fatal("Expected auth failure to surface as run error")
	}
	if summary.Success {
		t.Error("Expected overall failure in summary")
	}
	if summary.Error == "" {
		t.Error("Expected operator-readable error in summary")
	}
	// The other adapter still ran to completion.
	if indexnow.calls == 0 {
		t.Error("Expected IndexNow adapter attempted despite Google failure")
	}
	if !summary.Details.IndexNow.Success {
		t.Errorf("Expected IndexNow details to show success, got: %+v", summary.Details.IndexNow)
	}
}

func TestRunner_SitemapFailureReturnsErrorSummary(t *testing.T) {
	store := ledger.NewStore(storage.NewMemoryStorage())
	sub := submit.NewSubmitter(store, submit.SubmitterConfig{})
	source := &stubSource{err: sitemap.ErrMissingSitemap}
	runner := NewRunner("sitemap.xml", source, store, sub, googleStub())

	summary, err := runner.Run(context.Background())
	if !errors.Is(err, sitemap.ErrMissingSitemap) {
		t.Errorf("Expected missing sitemap error, got: %v", err)
	}
	if summary.Success || summary.Error == "" {
		t.Errorf("Expected failure summary, got: %+v", summary)
	}
}

func TestRunner_PushURLs(t *testing.T) {
	indexnow := indexNowStub()
	runner, store := newTestRunner(entriesFor(2), googleStub(), indexnow)
	ctx := context.Background()

	urls := []string{"https://example.com/page-00"}
	if err := runner.PushURLs(ctx, urls); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if indexnow.calls != 1 {
		t.Errorf("Expected one push call, got: %d", indexnow.calls)
	}
	led := store.Load(ctx)
	if !led.SubmittedToday(urls[0], ledger.ServiceIndexNow, ledger.Today()) {
		t.Error("Expected pushed URL recorded in ledger")
	}
}

func TestRunner_PushURLsRequiresConfiguredAdapter(t *testing.T) {
	disabled := indexNowStub()
	disabled.enabled = false
	runner, _ := newTestRunner(entriesFor(1), disabled)

	if err := runner.PushURLs(context.Background(), []string{"https://example.com/page-00"}); err == nil {
		t.Error("Expected error when push adapter is disabled")
	}
}
