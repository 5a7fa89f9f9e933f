package ledger

import (
	"context"
	"fmt"

	"indexflow-go/pkg/logger"
	"indexflow-go/pkg/storage"
)

const storageKey = "submission-ledger"

// fileShape accepts both the canonical ledger and the legacy
// submission-history layout (lastProcessedIndex + submittedUrls array) so an
// existing history file survives the schema change. The legacy shape is
// read-only input: the store always writes the canonical map shape back.
type fileShape struct {
	LastSubmissionDate   string             `json:"lastSubmissionDate"`
	CurrentIndex         *int               `json:"currentIndex"`
	DailySubmissionCount int                `json:"dailySubmissionCount"`
	Records              map[string]*Record `json:"records"`

	LastProcessedIndex *int           `json:"lastProcessedIndex"`
	SubmittedURLs      []legacyRecord `json:"submittedUrls"`
}

// legacyRecord covers the two historical array-entry layouts: the combined
// {url, indexNow, google, lastSubmitted} shape and the per-service
// {url, date, success} shape.
type legacyRecord struct {
	URL           string `json:"url"`
	IndexNow      bool   `json:"indexNow"`
	Google        bool   `json:"google"`
	LastSubmitted string `json:"lastSubmitted"`
	Date          string `json:"date"`
	Success       *bool  `json:"success"`
}

// Store loads and persists the submission ledger. Corrupt or structurally
// invalid state degrades to a fresh ledger, never to a failed run: the worst
// case is re-submitting URLs, which both services tolerate.
type Store struct {
	storage storage.Storage
	log     *logger.Logger
}

func NewStore(st storage.Storage) *Store {
	return &Store{
		storage: st,
		log:     logger.GetLogger().WithField("component", "ledger_store"),
	}
}

// Load reads the persisted ledger, migrating the legacy shape when found.
// It never returns an error: missing, unparseable, or malformed state yields
// a fresh default ledger.
func (s *Store) Load(ctx context.Context) *Ledger {
	var raw fileShape
	if err := s.storage.Load(ctx, storageKey, &raw); err != nil {
		s.log.WithError(err).Info("No usable submission ledger, starting fresh")
		return New()
	}

	switch {
	case raw.Records != nil:
		l := &Ledger{
			LastSubmissionDate:   raw.LastSubmissionDate,
			DailySubmissionCount: raw.DailySubmissionCount,
			Records:              raw.Records,
		}
		if raw.CurrentIndex != nil {
			l.CurrentIndex = *raw.CurrentIndex
		}
		if l.LastSubmissionDate == "" {
			l.LastSubmissionDate = Today()
		}
		return l

	case raw.SubmittedURLs != nil && (raw.LastProcessedIndex != nil || raw.CurrentIndex != nil):
		s.log.WithField("entries", len(raw.SubmittedURLs)).
			Info("Migrating legacy submission history to ledger format")
		return migrateLegacy(raw)

	default:
		s.log.Warn("Submission ledger has unrecognized structure, starting fresh")
		return New()
	}
}

// Save persists the full ledger state. Called after every state-changing
// step so a crash mid-batch loses at most one URL's progress.
func (s *Store) Save(ctx context.Context, l *Ledger) error {
	if err := s.storage.Save(ctx, storageKey, l); err != nil {
		return fmt.Errorf("failed to save submission ledger: %w", err)
	}
	return nil
}

func migrateLegacy(raw fileShape) *Ledger {
	l := &Ledger{
		LastSubmissionDate:   raw.LastSubmissionDate,
		DailySubmissionCount: raw.DailySubmissionCount,
		Records:              make(map[string]*Record, len(raw.SubmittedURLs)),
	}
	if raw.LastProcessedIndex != nil {
		l.CurrentIndex = *raw.LastProcessedIndex
	} else if raw.CurrentIndex != nil {
		l.CurrentIndex = *raw.CurrentIndex
	}
	if l.LastSubmissionDate == "" {
		l.LastSubmissionDate = Today()
	}

	for _, e := range raw.SubmittedURLs {
		if e.URL == "" {
			continue
		}
		rec := l.Records[e.URL]
		if rec == nil {
			rec = &Record{URL: e.URL}
			l.Records[e.URL] = rec
		}
		date := e.LastSubmitted
		if date == "" {
			date = e.Date
		}
		if date > rec.LastSubmitted {
			rec.LastSubmitted = date
		}
		if e.IndexNow {
			rec.IndexNowSubmitted = true
		}
		// The per-service legacy shape only tracked Google submissions.
		if e.Google || (e.Success != nil && *e.Success) {
			rec.GoogleSubmitted = true
		}
		if e.Success != nil && !*e.Success {
			rec.Failed = true
		}
	}
	return l
}
