package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"path"
	"strings"
	"sync"

	"cdr.dev/slog/v3"
	"github.com/coder/quartz"

	"github.com/lazypower/vaultactivity/internal/activity"
	"github.com/lazypower/vaultactivity/internal/notice"
	"github.com/lazypower/vaultactivity/internal/report"
	"github.com/lazypower/vaultactivity/internal/vault"
)

// ErrNoData is returned by commands that need tracked activity when there
// is none.
var ErrNoData = errors.New("no activity data")

// Options configure an Engine. Tracker, Vault and Notices are required.
type Options struct {
	Tracker *activity.Tracker
	Vault   *vault.Vault
	Notices *notice.Feed
	Hub     *Hub
	Clock   quartz.Clock
	Logger  slog.Logger
	// Rand drives neglected note selection. Nil seeds a new source.
	Rand *rand.Rand
}

// Engine runs the user-facing commands against the tracker and the vault.
// Failures never escape as panics; each one becomes a notice.
type Engine struct {
	Tracker *activity.Tracker
	Vault   *vault.Vault
	Notices *notice.Feed
	Hub     *Hub

	clock  quartz.Clock
	logger slog.Logger

	rngMu sync.Mutex
	rng   *rand.Rand
}

// New creates a new Engine.
func New(opts Options) *Engine {
	if opts.Clock == nil {
		opts.Clock = quartz.NewReal()
	}
	if opts.Hub == nil {
		opts.Hub = NewHub()
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Engine{
		Tracker: opts.Tracker,
		Vault:   opts.Vault,
		Notices: opts.Notices,
		Hub:     opts.Hub,
		clock:   opts.Clock,
		logger:  opts.Logger,
		rng:     opts.Rand,
	}
}

// Kind names a document event reported by the host.
type Kind string

const (
	KindOpen   Kind = "open"
	KindChange Kind = "change"
)

// Track records a host event for p. It reports whether the event was
// counted.
func (e *Engine) Track(kind Kind, p string) (bool, error) {
	clean, ok := vault.Clean(p)
	if !ok {
		return false, fmt.Errorf("invalid path %q", p)
	}
	switch kind {
	case KindOpen:
		return e.Tracker.RecordAccess(clean), nil
	case KindChange:
		return e.Tracker.RecordModification(clean), nil
	default:
		return false, fmt.Errorf("unknown event kind %q", kind)
	}
}

// MostViewed lists the most viewed documents.
func (e *Engine) MostViewed() ListView {
	return ListView{Title: "Most viewed notes", Entries: e.ranked(false, ListSize)}
}

// LeastViewed lists the least viewed documents.
func (e *Engine) LeastViewed() ListView {
	return ListView{Title: "Least viewed notes", Entries: e.ranked(true, ListSize)}
}

func (e *Engine) ranked(ascending bool, limit int) []Entry {
	full := e.Tracker.Settings().ShowFullPath
	return entries(e.Tracker.Ranked(ascending), limit, full, e.clock.Now())
}

// Dashboard assembles the dashboard from one snapshot of the store.
func (e *Engine) Dashboard() Dashboard {
	now := e.clock.Now()
	full := e.Tracker.Settings().ShowFullPath
	records := e.Tracker.Filtered()

	return Dashboard{
		Summary:      activity.Summarize(records, now),
		MostViewed:   entries(activity.SortByAccess(records, false), DashboardListSize, full, now),
		LeastViewed:  entries(activity.SortByAccess(records, true), DashboardListSize, full, now),
		Distribution: activity.Histogram(records),
		GeneratedAt:  now,
	}
}

// OpenDocument opens p for the user and counts it as an access. A path that
// no longer resolves is reported and left in the store. Documents in
// excluded folders open normally but are not counted.
func (e *Engine) OpenDocument(ctx context.Context, p string) error {
	clean, ok := vault.Clean(p)
	if !ok {
		e.notify(ctx, "Note no longer exists: "+p)
		return fmt.Errorf("%q: %w", p, vault.ErrNotFound)
	}
	if err := e.Vault.OpenDocument(ctx, clean); err != nil {
		if errors.Is(err, vault.ErrNotFound) {
			e.notify(ctx, "Note no longer exists: "+clean)
			return err
		}
		e.logger.Error(ctx, "failed to open note", slog.F("path", clean), slog.Error(err))
		e.notify(ctx, "Failed to open note: "+clean)
		return err
	}
	if e.Tracker.IsExcluded(clean) {
		e.logger.Debug(ctx, "opened excluded note, not counted", slog.F("path", clean))
		return nil
	}
	e.Tracker.RecordAccess(clean)
	return nil
}

// OpenRandomNeglected opens a random document from the least viewed ones.
func (e *Engine) OpenRandomNeglected(ctx context.Context) (activity.Record, error) {
	e.rngMu.Lock()
	rec, ok := e.Tracker.SelectNeglected(e.rng)
	e.rngMu.Unlock()
	if !ok {
		e.notify(ctx, "No activity data available yet")
		return activity.Record{}, ErrNoData
	}

	if err := e.OpenDocument(ctx, rec.Path); err != nil {
		return rec, err
	}
	e.notify(ctx, "Opened neglected note: "+baseName(rec.Path))
	return rec, nil
}

func baseName(p string) string {
	base := path.Base(p)
	return strings.TrimSuffix(base, path.Ext(base))
}

// ClearAll deletes every record and persists the empty store.
func (e *Engine) ClearAll(ctx context.Context) error {
	err := e.Tracker.Reset(ctx)
	e.notify(ctx, "Activity data cleared")
	return err
}

// GenerateReport writes the Markdown report into the vault and opens it. It
// returns the new document's path.
func (e *Engine) GenerateReport(ctx context.Context) (string, error) {
	records := e.Tracker.Filtered()
	if len(records) == 0 {
		e.notify(ctx, "No activity data to generate report")
		return "", ErrNoData
	}

	now := e.clock.Now()
	name := report.FileName(now)
	p, err := e.Vault.Create(ctx, name, []byte(report.Markdown(records, now)))
	if err != nil {
		e.logger.Error(ctx, "failed to generate report", slog.F("name", name), slog.Error(err))
		e.notify(ctx, "Failed to generate report")
		return "", fmt.Errorf("generate report: %w", err)
	}
	e.notify(ctx, "Report generated: "+name)

	if err := e.Vault.OpenDocument(ctx, p); err != nil {
		e.logger.Warn(ctx, "could not open report", slog.F("path", p), slog.Error(err))
	}
	return p, nil
}

// ExportCSV renders every tracked document, most viewed first.
func (e *Engine) ExportCSV() string {
	return report.CSV(e.Tracker.Ranked(false))
}

// Refresh tells dashboard subscribers to redraw.
func (e *Engine) Refresh() {
	e.Hub.Publish()
}

func (e *Engine) notify(ctx context.Context, msg string) {
	e.Notices.Notify(ctx, msg)
}
