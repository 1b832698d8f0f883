package activity

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"cdr.dev/slog/v3"
	"github.com/coder/quartz"
)

const (
	DefaultSaveDelay     = 2 * time.Second
	DefaultRefreshDelay  = time.Second
	DefaultFlushInterval = 5 * time.Minute

	storageTimeout = 10 * time.Second
)

// Notifier shows a short message to the user.
type Notifier interface {
	Notify(ctx context.Context, msg string)
}

// Options configure a Tracker. Storage and DataPath are required.
type Options struct {
	Storage   Storage
	DataPath  string
	ConfigDir string
	Settings  Settings

	Clock     quartz.Clock
	Logger    slog.Logger
	Notifier  Notifier
	OnRefresh func()
	Metrics   *Metrics

	SaveDelay     time.Duration
	RefreshDelay  time.Duration
	FlushInterval time.Duration
}

// Tracker records document events into the in-memory database and keeps it
// persisted. Persistence and refresh notifications are debounced so a burst
// of events costs one write and one redraw.
type Tracker struct {
	storage       Storage
	dataPath      string
	configDir     string
	clock         quartz.Clock
	logger        slog.Logger
	notifier      Notifier
	onRefresh     func()
	metrics       *Metrics
	flushInterval time.Duration

	mu       sync.Mutex
	records  Database
	settings Settings

	save    *debouncer
	refresh *debouncer

	// flushMu serializes writes so two flushes never interleave.
	flushMu sync.Mutex

	cancel    context.CancelFunc
	ticker    quartz.Waiter
	closeOnce sync.Once
	closeErr  error
}

// New creates a Tracker with an empty database. Call Load to hydrate it.
func New(opts Options) *Tracker {
	if opts.Clock == nil {
		opts.Clock = quartz.NewReal()
	}
	if opts.SaveDelay <= 0 {
		opts.SaveDelay = DefaultSaveDelay
	}
	if opts.RefreshDelay <= 0 {
		opts.RefreshDelay = DefaultRefreshDelay
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = DefaultFlushInterval
	}

	t := &Tracker{
		storage:       opts.Storage,
		dataPath:      opts.DataPath,
		configDir:     opts.ConfigDir,
		clock:         opts.Clock,
		logger:        opts.Logger,
		notifier:      opts.Notifier,
		onRefresh:     opts.OnRefresh,
		metrics:       opts.Metrics,
		flushInterval: opts.FlushInterval,
		records:       Database{},
		settings:      opts.Settings.clone(),
	}
	t.save = newDebouncer(t.clock, opts.SaveDelay, "save", t.debouncedFlush)
	t.refresh = newDebouncer(t.clock, opts.RefreshDelay, "refresh", t.refreshNow)
	return t
}

// DataPath is where the database is stored.
func (t *Tracker) DataPath() string {
	return t.dataPath
}

// Settings returns the current settings.
func (t *Tracker) Settings() Settings {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.settings.clone()
}

// UpdateSettings replaces the settings used by later calls. Existing records
// are kept; read paths filter them.
func (t *Tracker) UpdateSettings(s Settings) {
	t.mu.Lock()
	t.settings = s.clone()
	t.mu.Unlock()
}

// Filter returns the exclusion filter for the current settings.
func (t *Tracker) Filter() Filter {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.filterLocked()
}

func (t *Tracker) filterLocked() Filter {
	return Filter{ConfigDir: t.configDir, Folders: t.settings.ExcludedFolders}
}

// IsExcluded reports whether path is filtered out by the current settings.
func (t *Tracker) IsExcluded(path string) bool {
	return t.Filter().Excluded(path)
}

// RecordAccess counts an open of path. It reports whether the event was
// counted.
func (t *Tracker) RecordAccess(path string) bool {
	return t.record("open", path,
		func(s Settings) bool { return s.TrackAccess },
		func(r *Record, now time.Time) {
			r.AccessCount++
			r.LastAccessed = millis(now)
		})
}

// RecordModification stamps a change of path. The access count is untouched.
func (t *Tracker) RecordModification(path string) bool {
	return t.record("change", path,
		func(s Settings) bool { return s.TrackModification },
		func(r *Record, now time.Time) {
			r.LastModified = millis(now)
		})
}

func (t *Tracker) record(kind, path string, enabled func(Settings) bool, apply func(*Record, time.Time)) bool {
	now := t.clock.Now()

	t.mu.Lock()
	if !enabled(t.settings) {
		t.mu.Unlock()
		t.metrics.event(kind, "disabled")
		return false
	}
	if t.filterLocked().Excluded(path) {
		t.mu.Unlock()
		t.metrics.event(kind, "excluded")
		return false
	}
	rec, ok := t.records[path]
	if !ok {
		rec = Record{Path: path}
	}
	apply(&rec, now)
	t.records[path] = rec
	n := len(t.records)
	t.mu.Unlock()

	t.metrics.event(kind, "counted")
	t.metrics.setTracked(n)
	t.save.trigger()
	t.refresh.trigger()
	return true
}

// Snapshot returns a copy of the whole database, excluded paths included.
func (t *Tracker) Snapshot() Database {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.records.Clone()
}

// Filtered returns copies of every record that is not excluded, ordered by
// path.
func (t *Tracker) Filtered() []Record {
	t.mu.Lock()
	filter := t.filterLocked()
	out := make([]Record, 0, len(t.records))
	for path, r := range t.records {
		if filter.Excluded(path) {
			continue
		}
		out = append(out, r.clone())
	}
	t.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Ranked returns the filtered records ordered by access count.
func (t *Tracker) Ranked(ascending bool) []Record {
	return SortByAccess(t.Filtered(), ascending)
}

// SelectNeglected picks a random record from the least viewed ones. ok is
// false when there is no data.
func (t *Tracker) SelectNeglected(rng *rand.Rand) (Record, bool) {
	return PickNeglected(t.Ranked(true), rng)
}

// Load replaces the database with the stored one. A missing file yields an
// empty database. Any other failure is logged, shown to the user, and also
// leaves the database empty.
func (t *Tracker) Load(ctx context.Context) error {
	db, err := t.readDatabase(ctx)
	if err != nil {
		t.logger.Error(ctx, "failed to load activity data",
			slog.F("path", t.dataPath), slog.Error(err))
		t.notify(ctx, "Failed to load activity data")
		db = Database{}
	}

	t.mu.Lock()
	t.records = db
	n := len(db)
	t.mu.Unlock()
	t.metrics.setTracked(n)
	return err
}

func (t *Tracker) readDatabase(ctx context.Context) (Database, error) {
	ctx, cancel := context.WithTimeout(ctx, storageTimeout)
	defer cancel()

	ok, err := t.storage.Exists(ctx, t.dataPath)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", t.dataPath, err)
	}
	if !ok {
		return Database{}, nil
	}
	data, err := t.storage.Read(ctx, t.dataPath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", t.dataPath, err)
	}
	return Decode(data)
}

// Flush writes the current database to storage right away. Failures are
// logged and returned; a later flush may still succeed.
func (t *Tracker) Flush(ctx context.Context) error {
	t.flushMu.Lock()
	defer t.flushMu.Unlock()

	data, err := Encode(t.Snapshot())
	if err == nil {
		wctx, cancel := context.WithTimeout(ctx, storageTimeout)
		err = t.storage.Write(wctx, t.dataPath, data)
		cancel()
	}
	t.metrics.flush(err)
	if err != nil {
		t.logger.Error(ctx, "failed to save activity data",
			slog.F("path", t.dataPath), slog.Error(err))
		return fmt.Errorf("save activity data: %w", err)
	}
	t.logger.Debug(ctx, "activity data saved", slog.F("path", t.dataPath))
	return nil
}

func (t *Tracker) debouncedFlush() {
	_ = t.Flush(context.Background())
}

func (t *Tracker) refreshNow() {
	if t.onRefresh != nil {
		t.onRefresh()
	}
}

// Reset empties the database and flushes immediately.
func (t *Tracker) Reset(ctx context.Context) error {
	t.mu.Lock()
	t.records = Database{}
	t.mu.Unlock()
	t.metrics.setTracked(0)

	err := t.Flush(ctx)
	t.refreshNow()
	return err
}

// Start begins the periodic background flush. It stops when ctx is done or
// the tracker is closed.
func (t *Tracker) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	ticker := t.clock.TickerFunc(ctx, t.flushInterval, func() error {
		_ = t.Flush(ctx)
		return nil
	}, "tracker", "flush")

	t.mu.Lock()
	t.cancel = cancel
	t.ticker = ticker
	t.mu.Unlock()
}

// Pending reports whether a debounced save or refresh is scheduled.
func (t *Tracker) Pending() (save, refresh bool) {
	return t.save.pending(), t.refresh.pending()
}

// Close cancels pending timers and the periodic flush, then writes the
// database one last time. Calls after the first return the same result.
func (t *Tracker) Close(ctx context.Context) error {
	t.closeOnce.Do(func() {
		t.stop()
		t.closeErr = t.Flush(ctx)
	})
	return t.closeErr
}

// Discard shuts the tracker down like Close but skips the final write, for
// processes that only read the stored data while another one owns it. Close
// after Discard is a no-op.
func (t *Tracker) Discard() {
	t.closeOnce.Do(t.stop)
}

func (t *Tracker) stop() {
	t.save.stop()
	t.refresh.stop()

	t.mu.Lock()
	cancel, ticker := t.cancel, t.ticker
	t.mu.Unlock()
	if cancel != nil {
		cancel()
		_ = ticker.Wait()
	}
}

func (t *Tracker) notify(ctx context.Context, msg string) {
	if t.notifier != nil {
		t.notifier.Notify(ctx, msg)
	}
}
