package sitemap

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"indexflow-go/pkg/logger"
)

// ErrMissingSitemap is returned when the sitemap index file does not exist.
var ErrMissingSitemap = errors.New("sitemap index file not found")

// Entry is one page eligible for indexing. Priority is only used to order
// submissions, highest first.
type Entry struct {
	URL      string  `json:"url"`
	Priority float64 `json:"priority"`
}

type xmlURL struct {
	Loc      string `xml:"loc"`
	LastMod  string `xml:"lastmod"`
	Priority string `xml:"priority"`
}

type xmlURLSet struct {
	URLs []xmlURL `xml:"url"`
}

type xmlSitemapRef struct {
	Loc string `xml:"loc"`
}

type xmlSitemapIndex struct {
	Sitemaps []xmlSitemapRef `xml:"sitemap"`
}

// Reader parses locally generated sitemap files into an ordered URL list.
// Child sitemaps referenced by the index are resolved to files in the same
// directory by base name, matching how the static generation step lays them
// out next to sitemap.xml.
type Reader struct {
	baseURL string
	log     *logger.Logger
}

// NewReader creates a sitemap reader. When baseURL is non-empty, entries
// outside that origin are dropped with a log line.
func NewReader(baseURL string) *Reader {
	return &Reader{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		log:     logger.GetLogger().WithField("component", "sitemap_reader"),
	}
}

// Read parses the sitemap index at indexPath and every child sitemap it
// references, returning a deduplicated list sorted by descending priority,
// then ascending path depth. A missing index is fatal; a broken child
// sitemap is skipped.
func (r *Reader) Read(ctx context.Context, indexPath string) ([]Entry, error) {
	data, err := os.ReadFile(indexPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrMissingSitemap, indexPath)
		}
		return nil, fmt.Errorf("failed to read sitemap index: %w", err)
	}

	var entries []Entry

	var index xmlSitemapIndex
	if err := decodeXML(data, "sitemapindex", &index); err == nil && len(index.Sitemaps) > 0 {
		r.log.WithField("count", len(index.Sitemaps)).Info("Processing sitemap index")
		dir := filepath.Dir(indexPath)
		for _, ref := range index.Sitemaps {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if ref.Loc == "" {
				continue
			}
			childPath := filepath.Join(dir, path.Base(strings.TrimSpace(ref.Loc)))
			child, err := r.readURLSet(childPath)
			if err != nil {
				r.log.WithError(err).WithField("sitemap", childPath).Warn("Skipping unreadable child sitemap")
				continue
			}
			entries = append(entries, child...)
		}
	} else {
		// Single-sitemap sites have no index; the configured path is the
		// urlset itself.
		entries, err = r.parseURLSet(data, indexPath)
		if err != nil {
			return nil, fmt.Errorf("failed to parse sitemap %s: %w", indexPath, err)
		}
	}

	entries = dedupe(entries)
	sortEntries(entries)

	r.log.WithField("url_count", len(entries)).Info("Sitemap read complete")
	return entries, nil
}

func (r *Reader) readURLSet(filePath string) ([]Entry, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return r.parseURLSet(data, filePath)
}

func (r *Reader) parseURLSet(data []byte, filePath string) ([]Entry, error) {
	var urlset xmlURLSet
	if err := decodeXML(data, "urlset", &urlset); err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(urlset.URLs))
	for _, u := range urlset.URLs {
		loc := strings.TrimSpace(u.Loc)
		if loc == "" {
			continue
		}
		parsed, err := url.Parse(loc)
		if err != nil || !parsed.IsAbs() || (parsed.Scheme != "http" && parsed.Scheme != "https") {
			r.log.WithField("url", loc).Warn("Dropping malformed sitemap URL")
			continue
		}
		if r.baseURL != "" && !strings.HasPrefix(loc, r.baseURL) {
			r.log.WithField("url", loc).Warn("Dropping URL outside configured origin")
			continue
		}
		entries = append(entries, Entry{
			URL:      loc,
			Priority: parsePriority(u.Priority, loc),
		})
	}
	return entries, nil
}

// parsePriority falls back to a depth-based default when the sitemap carries
// no explicit priority: shallow pages such as state landing pages rank above
// deep city/service pages.
func parsePriority(raw, loc string) float64 {
	if raw != "" {
		if p, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil && p >= 0 && p <= 1 {
			return p
		}
	}
	if segmentCount(loc) <= 4 {
		return 0.8
	}
	return 0.5
}

// segmentCount counts "/"-separated segments of the full URL string, so
// https://example.com/a is 4 and each extra path level adds one.
func segmentCount(raw string) int {
	return len(strings.Split(raw, "/"))
}

func dedupe(entries []Entry) []Entry {
	seen := make(map[string]bool, len(entries))
	out := entries[:0]
	for _, e := range entries {
		if seen[e.URL] {
			continue
		}
		seen[e.URL] = true
		out = append(out, e)
	}
	return out
}

func sortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Priority != entries[j].Priority {
			return entries[i].Priority > entries[j].Priority
		}
		return segmentCount(entries[i].URL) < segmentCount(entries[j].URL)
	})
}
