package ledger

import "time"

// Service identifies an indexing backend in submission records.
type Service string

const (
	ServiceGoogle   Service = "google"
	ServiceIndexNow Service = "indexnow"
)

const dateLayout = "2006-01-02"

// Record is the per-URL submission history across both services.
type Record struct {
	URL               string `json:"url"`
	IndexNowSubmitted bool   `json:"indexNowSubmitted"`
	GoogleSubmitted   bool   `json:"googleSubmitted"`
	Failed            bool   `json:"failed,omitempty"`
	LastSubmitted     string `json:"lastSubmitted"`
}

// Ledger is the durable submission state. CurrentIndex is the resume cursor
// into the sorted URL list for the quota-limited service; its meaning depends
// on the sitemap ordering staying stable between runs.
type Ledger struct {
	LastSubmissionDate   string             `json:"lastSubmissionDate"`
	CurrentIndex         int                `json:"currentIndex"`
	DailySubmissionCount int                `json:"dailySubmissionCount"`
	Records              map[string]*Record `json:"records"`
}

// New returns an empty ledger dated today with the cursor at zero.
func New() *Ledger {
	return &Ledger{
		LastSubmissionDate: Today(),
		Records:            make(map[string]*Record),
	}
}

// Today returns the current calendar date as YYYY-MM-DD.
func Today() string {
	return time.Now().Format(dateLayout)
}

// IsNewDay reports whether lastDate names an earlier calendar day than today.
// Comparison is on dates, not timestamps.
func IsNewDay(lastDate string) bool {
	if lastDate == "" {
		return true
	}
	return lastDate != Today()
}

// ResetDay clears the daily counter and resume cursor for a new calendar day.
// Per-URL records are kept: URLs submitted yesterday become eligible again
// because their LastSubmitted no longer matches today.
func (l *Ledger) ResetDay(today string) {
	l.LastSubmissionDate = today
	l.CurrentIndex = 0
	l.DailySubmissionCount = 0
}

// MarkSubmitted upserts a record per URL, setting the service flag and
// stamping today's date. Idempotent: repeating the call for the same
// URL/service/day leaves the record unchanged.
func (l *Ledger) MarkSubmitted(urls []string, service Service, today string) {
	if l.Records == nil {
		l.Records = make(map[string]*Record)
	}
	for _, u := range urls {
		rec := l.Records[u]
		if rec == nil {
			rec = &Record{URL: u}
			l.Records[u] = rec
		}
		switch service {
		case ServiceGoogle:
			rec.GoogleSubmitted = true
		case ServiceIndexNow:
			rec.IndexNowSubmitted = true
		}
		rec.Failed = false
		rec.LastSubmitted = today
	}
	l.LastSubmissionDate = today
}

// MarkFailed records a failed attempt so a later run retries the URL. The
// service flag stays false; only the attempt date is stamped.
func (l *Ledger) MarkFailed(u string, today string) {
	if l.Records == nil {
		l.Records = make(map[string]*Record)
	}
	rec := l.Records[u]
	if rec == nil {
		rec = &Record{URL: u}
		l.Records[u] = rec
	}
	rec.Failed = true
	rec.LastSubmitted = today
}

// SubmittedToday reports whether the URL was already confirmed to the given
// service on the given day.
func (l *Ledger) SubmittedToday(u string, service Service, today string) bool {
	rec := l.Records[u]
	if rec == nil || rec.LastSubmitted != today {
		return false
	}
	switch service {
	case ServiceGoogle:
		return rec.GoogleSubmitted
	case ServiceIndexNow:
		return rec.IndexNowSubmitted
	}
	return false
}

// SubmittedTodayBoth reports whether both services confirmed the URL today.
func (l *Ledger) SubmittedTodayBoth(u string, today string) bool {
	return l.SubmittedToday(u, ServiceGoogle, today) &&
		l.SubmittedToday(u, ServiceIndexNow, today)
}
