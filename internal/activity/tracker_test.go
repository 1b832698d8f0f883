package activity

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"cdr.dev/slog/v3"
	"cdr.dev/slog/v3/sloggers/slogtest"
	"github.com/coder/quartz"
	"go.uber.org/goleak"

	"github.com/lazypower/vaultactivity/internal/storage"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const dataPath = ".obsidian/plugins/vault-activity/data.json"

type fakeNotifier struct {
	mu   sync.Mutex
	msgs []string
}

func (n *fakeNotifier) Notify(_ context.Context, msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
}

func (n *fakeNotifier) messages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.msgs...)
}

// countingStorage wraps a backend and counts writes.
type countingStorage struct {
	Storage
	writes  atomic.Int32
	failing atomic.Bool
}

func (c *countingStorage) Write(ctx context.Context, path string, data []byte) error {
	if c.failing.Load() {
		return errors.New("disk full")
	}
	c.writes.Add(1)
	return c.Storage.Write(ctx, path, data)
}

type harness struct {
	tracker   *Tracker
	clock     *quartz.Mock
	store     *countingStorage
	notifier  *fakeNotifier
	refreshes *atomic.Int32
}

func testLogger(t *testing.T) slog.Logger {
	return slogtest.Make(t, &slogtest.Options{IgnoreErrors: true})
}

func newHarness(t *testing.T, settings Settings) *harness {
	t.Helper()
	h := &harness{
		clock:     quartz.NewMock(t),
		store:     &countingStorage{Storage: storage.NewMemory()},
		notifier:  &fakeNotifier{},
		refreshes: &atomic.Int32{},
	}
	h.tracker = New(Options{
		Storage:   h.store,
		DataPath:  dataPath,
		ConfigDir: ".obsidian",
		Settings:  settings,
		Clock:     h.clock,
		Logger:    testLogger(t),
		Notifier:  h.notifier,
		OnRefresh: func() { h.refreshes.Add(1) },
	})
	return h
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestRecordAccess(t *testing.T) {
	h := newHarness(t, DefaultSettings())

	if !h.tracker.RecordAccess("notes/a.md") {
		t.Fatal("RecordAccess returned false")
	}
	h.tracker.RecordAccess("notes/a.md")

	rec := h.tracker.Snapshot()["notes/a.md"]
	if rec.AccessCount != 2 {
		t.Errorf("AccessCount = %d, want 2", rec.AccessCount)
	}
	if rec.Path != "notes/a.md" {
		t.Errorf("Path = %q", rec.Path)
	}
	if rec.LastAccessed == nil || *rec.LastAccessed != h.clock.Now().UnixMilli() {
		t.Errorf("LastAccessed = %v, want %d", rec.LastAccessed, h.clock.Now().UnixMilli())
	}
	if rec.LastModified != nil {
		t.Errorf("LastModified = %v, want nil", *rec.LastModified)
	}
}

func TestRecordModificationKeepsAccess(t *testing.T) {
	ctx := testContext(t)
	h := newHarness(t, DefaultSettings())

	h.tracker.RecordAccess("a.md")
	accessed := h.clock.Now().UnixMilli()

	h.clock.Advance(500 * time.Millisecond).MustWait(ctx)
	if !h.tracker.RecordModification("a.md") {
		t.Fatal("RecordModification returned false")
	}
	modified := h.clock.Now().UnixMilli()

	rec := h.tracker.Snapshot()["a.md"]
	if rec.AccessCount != 1 {
		t.Errorf("AccessCount = %d, want 1", rec.AccessCount)
	}
	if rec.LastAccessed == nil || *rec.LastAccessed != accessed {
		t.Errorf("LastAccessed changed by modification")
	}
	if rec.LastModified == nil || *rec.LastModified != modified {
		t.Errorf("LastModified = %v, want %d", rec.LastModified, modified)
	}

	h.clock.Advance(500 * time.Millisecond).MustWait(ctx)
	h.tracker.RecordAccess("a.md")
	rec = h.tracker.Snapshot()["a.md"]
	if rec.LastModified == nil || *rec.LastModified != modified {
		t.Errorf("access reset LastModified")
	}
}

func TestModificationWithoutAccessCreatesRecord(t *testing.T) {
	h := newHarness(t, DefaultSettings())

	h.tracker.RecordModification("fresh.md")
	rec, ok := h.tracker.Snapshot()["fresh.md"]
	if !ok {
		t.Fatal("expected a record for fresh.md")
	}
	if rec.AccessCount != 0 || rec.LastAccessed != nil {
		t.Errorf("record = %+v, want zero access", rec)
	}
}

func TestExcludedPathsNeverRecorded(t *testing.T) {
	settings := DefaultSettings()
	settings.ExcludedFolders = []string{"Archive", "templates/daily"}
	h := newHarness(t, settings)

	excluded := []string{
		".obsidian",
		".obsidian/workspace.json",
		"Archive",
		"Archive/2019/old.md",
		"templates/daily/t.md",
	}
	for _, p := range excluded {
		if h.tracker.RecordAccess(p) {
			t.Errorf("RecordAccess(%q) counted an excluded path", p)
		}
		if h.tracker.RecordModification(p) {
			t.Errorf("RecordModification(%q) counted an excluded path", p)
		}
	}
	if n := len(h.tracker.Snapshot()); n != 0 {
		t.Errorf("store has %d entries, want 0", n)
	}

	// Prefix match is by folder, not by string.
	if !h.tracker.RecordAccess("Archived.md") {
		t.Error("Archived.md should not be excluded")
	}
	if !h.tracker.RecordAccess("templates/weekly.md") {
		t.Error("templates/weekly.md should not be excluded")
	}
}

func TestTrackingDisabled(t *testing.T) {
	settings := DefaultSettings()
	settings.TrackAccess = false
	settings.TrackModification = false
	h := newHarness(t, settings)

	h.tracker.RecordAccess("a.md")
	h.tracker.RecordModification("a.md")
	if n := len(h.tracker.Snapshot()); n != 0 {
		t.Errorf("store has %d entries, want 0", n)
	}
	if save, refresh := h.tracker.Pending(); save || refresh {
		t.Errorf("timers scheduled for ignored events: save=%v refresh=%v", save, refresh)
	}
}

func TestUpdateSettingsFiltersReadsOnly(t *testing.T) {
	h := newHarness(t, DefaultSettings())
	h.tracker.RecordAccess("private/diary.md")
	h.tracker.RecordAccess("public/readme.md")

	s := h.tracker.Settings()
	s.ExcludedFolders = []string{"private"}
	h.tracker.UpdateSettings(s)

	if _, ok := h.tracker.Snapshot()["private/diary.md"]; !ok {
		t.Error("stale record was removed from the store")
	}
	for _, r := range h.tracker.Filtered() {
		if r.Path == "private/diary.md" {
			t.Error("excluded record returned by Filtered")
		}
	}
	for _, r := range h.tracker.Ranked(false) {
		if r.Path == "private/diary.md" {
			t.Error("excluded record returned by Ranked")
		}
	}
}

func TestDebouncedSaveAndRefresh(t *testing.T) {
	ctx := testContext(t)
	h := newHarness(t, DefaultSettings())

	h.tracker.RecordAccess("a.md")
	h.clock.Advance(500 * time.Millisecond).MustWait(ctx)
	h.tracker.RecordAccess("a.md")
	h.tracker.RecordModification("b.md")

	// The burst restarted both timers: refresh is due at 1.5s, save at 2.5s.
	h.clock.Advance(time.Second).MustWait(ctx)
	if got := h.refreshes.Load(); got != 1 {
		t.Errorf("refreshes = %d, want 1", got)
	}
	if got := h.store.writes.Load(); got != 0 {
		t.Errorf("writes before save delay = %d, want 0", got)
	}

	h.clock.Advance(time.Second).MustWait(ctx)
	if got := h.store.writes.Load(); got != 1 {
		t.Fatalf("writes = %d, want 1", got)
	}
	if got := h.refreshes.Load(); got != 1 {
		t.Errorf("refreshes = %d, want 1", got)
	}

	data, err := h.store.Read(ctx, dataPath)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	db, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if db["a.md"].AccessCount != 2 {
		t.Errorf("persisted AccessCount = %d, want 2", db["a.md"].AccessCount)
	}
	if _, ok := db["b.md"]; !ok {
		t.Error("b.md not persisted")
	}
	if save, refresh := h.tracker.Pending(); save || refresh {
		t.Errorf("timers still pending: save=%v refresh=%v", save, refresh)
	}
}

func TestPeriodicFlush(t *testing.T) {
	ctx := testContext(t)
	h := newHarness(t, DefaultSettings())
	h.tracker.Start(ctx)
	defer h.tracker.Close(ctx)

	h.tracker.RecordAccess("a.md")
	h.clock.Advance(time.Second).MustWait(ctx)
	h.clock.Advance(time.Second).MustWait(ctx)
	if got := h.store.writes.Load(); got != 1 {
		t.Fatalf("writes after debounce = %d, want 1", got)
	}

	h.clock.Advance(DefaultFlushInterval - 2*time.Second).MustWait(ctx)
	if got := h.store.writes.Load(); got != 2 {
		t.Errorf("writes after periodic tick = %d, want 2", got)
	}
}

func TestCloseCancelsTimersAndFlushes(t *testing.T) {
	ctx := testContext(t)
	h := newHarness(t, DefaultSettings())

	h.tracker.RecordAccess("a.md")
	if err := h.tracker.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := h.store.writes.Load(); got != 1 {
		t.Fatalf("writes after Close = %d, want 1", got)
	}
	if save, refresh := h.tracker.Pending(); save || refresh {
		t.Errorf("timers pending after Close: save=%v refresh=%v", save, refresh)
	}

	// Events after Close still mutate memory but schedule nothing.
	h.tracker.RecordAccess("a.md")
	if _, ok := h.clock.Peek(); ok {
		t.Error("a timer was scheduled after Close")
	}
	if got := h.refreshes.Load(); got != 0 {
		t.Errorf("refreshes = %d, want 0", got)
	}
	if err := h.tracker.Close(ctx); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if got := h.store.writes.Load(); got != 1 {
		t.Errorf("second Close wrote again: writes = %d", got)
	}
}

func TestDiscardSkipsFinalWrite(t *testing.T) {
	ctx := testContext(t)
	h := newHarness(t, DefaultSettings())
	h.tracker.Start(ctx)

	h.tracker.RecordAccess("a.md")
	h.tracker.Discard()
	if save, refresh := h.tracker.Pending(); save || refresh {
		t.Errorf("timers pending after Discard: save=%v refresh=%v", save, refresh)
	}
	if err := h.tracker.Close(ctx); err != nil {
		t.Errorf("Close after Discard: %v", err)
	}
	if got := h.store.writes.Load(); got != 0 {
		t.Errorf("writes = %d, want 0", got)
	}
}

func TestSaveFailureIsNotFatal(t *testing.T) {
	ctx := testContext(t)
	h := newHarness(t, DefaultSettings())
	h.store.failing.Store(true)

	h.tracker.RecordAccess("a.md")
	h.clock.Advance(time.Second).MustWait(ctx)
	h.clock.Advance(time.Second).MustWait(ctx)

	if got := h.tracker.Snapshot()["a.md"].AccessCount; got != 1 {
		t.Errorf("AccessCount = %d, want 1", got)
	}
	if msgs := h.notifier.messages(); len(msgs) != 0 {
		t.Errorf("save failure produced notices %v, want none", msgs)
	}

	h.store.failing.Store(false)
	if err := h.tracker.Flush(ctx); err != nil {
		t.Fatalf("retry Flush: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	ctx := testContext(t)
	h := newHarness(t, DefaultSettings())

	if err := h.tracker.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if n := len(h.tracker.Snapshot()); n != 0 {
		t.Errorf("store has %d entries, want 0", n)
	}
	if msgs := h.notifier.messages(); len(msgs) != 0 {
		t.Errorf("notices = %v, want none", msgs)
	}
}

func TestLoadMalformedLeavesStoreEmpty(t *testing.T) {
	ctx := testContext(t)
	h := newHarness(t, DefaultSettings())
	h.tracker.RecordAccess("in-memory.md")

	for _, content := range []string{
		`{not json`,
		`[]`,
		`{"a.md": {"path": "a.md", "accessCount": -1}}`,
		`{"a.md": {"path": "a.md", "accessCount": "many"}}`,
	} {
		if err := h.store.Storage.Write(ctx, dataPath, []byte(content)); err != nil {
			t.Fatalf("seed: %v", err)
		}
		if err := h.tracker.Load(ctx); err == nil {
			t.Errorf("Load(%s): expected error", content)
		}
		if n := len(h.tracker.Snapshot()); n != 0 {
			t.Errorf("Load(%s): store has %d entries, want 0", content, n)
		}
	}
	msgs := h.notifier.messages()
	if len(msgs) != 4 || msgs[0] != "Failed to load activity data" {
		t.Errorf("notices = %v", msgs)
	}
}

func TestLoadRoundTrip(t *testing.T) {
	ctx := testContext(t)
	h := newHarness(t, DefaultSettings())
	h.tracker.RecordAccess("a.md")
	h.tracker.RecordAccess("a.md")
	h.tracker.RecordModification("b.md")
	want := h.tracker.Snapshot()

	if err := h.tracker.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	other := New(Options{Storage: h.store, DataPath: dataPath, Clock: h.clock, Logger: testLogger(t)})
	if err := other.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	got := other.Snapshot()
	if len(got) != len(want) {
		t.Fatalf("loaded %d records, want %d", len(got), len(want))
	}
	for path, w := range want {
		if !recordsEqual(got[path], w) {
			t.Errorf("%s: got %+v, want %+v", path, got[path], w)
		}
	}
}

func TestResetClearsAndPersists(t *testing.T) {
	ctx := testContext(t)
	h := newHarness(t, DefaultSettings())
	h.tracker.RecordAccess("a.md")
	if err := h.tracker.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	if err := h.tracker.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if n := len(h.tracker.Snapshot()); n != 0 {
		t.Errorf("store has %d entries after Reset", n)
	}
	if got := h.refreshes.Load(); got != 1 {
		t.Errorf("refreshes = %d, want 1", got)
	}

	other := New(Options{Storage: h.store, DataPath: dataPath, Clock: h.clock, Logger: testLogger(t)})
	if err := other.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if n := len(other.Snapshot()); n != 0 {
		t.Errorf("reloaded store has %d entries, want 0", n)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	h := newHarness(t, DefaultSettings())
	h.tracker.RecordAccess("a.md")

	snap := h.tracker.Snapshot()
	*snap["a.md"].LastAccessed = 0
	rec := snap["a.md"]
	rec.AccessCount = 99
	snap["a.md"] = rec

	live := h.tracker.Snapshot()["a.md"]
	if live.AccessCount != 1 || *live.LastAccessed == 0 {
		t.Errorf("mutating a snapshot changed the store: %+v", live)
	}
}

func TestConcurrentRecordAccess(t *testing.T) {
	h := newHarness(t, DefaultSettings())

	const workers, each = 8, 50
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < each; j++ {
				h.tracker.RecordAccess("hot.md")
			}
		}()
	}
	wg.Wait()

	if got := h.tracker.Snapshot()["hot.md"].AccessCount; got != workers*each {
		t.Errorf("AccessCount = %d, want %d", got, workers*each)
	}
}

func recordsEqual(a, b Record) bool {
	return a.Path == b.Path && a.AccessCount == b.AccessCount &&
		ptrEqual(a.LastAccessed, b.LastAccessed) && ptrEqual(a.LastModified, b.LastModified)
}

func ptrEqual(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
