package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/op-paratest/metrics"
	"github.com/ethereum-optimism/infra/op-paratest/types"
)

// Configuration errors raised by Register. These are programmer-error class
// and fatal; everything else in the aggregator degrades silently or warns.
var (
	ErrInvalidWorkerID  = errors.New("invalid worker id")
	ErrInvalidSharedDir = errors.New("invalid shared directory")
)

const reportBanner = "================================== test logs =================================="

// Aggregator buffers per-test log messages for one process and drives the
// cross-process sync protocol. Exactly one instance exists per process,
// constructed by the process top-level and passed by handle; there is no
// package-global state. A worker instance (non-empty worker identity) syncs
// snapshots out; the coordinator instance (empty worker identity) only
// collects them. Not safe for concurrent use: the host runner calls it
// sequentially, test by test.
type Aggregator struct {
	log         log.Logger
	collector   *Collector
	failed      map[string]bool
	store       SnapshotStore
	workerID    string
	currentTest string
}

// NewAggregator creates an aggregator with no registered store or identity.
// Logging calls are dropped until a current test is set; sync and collect
// are no-ops until a store is registered.
func NewAggregator(logger log.Logger) *Aggregator {
	if logger == nil {
		logger = log.New()
	}
	return &Aggregator{
		log:       logger,
		collector: NewCollector(),
		failed:    make(map[string]bool),
	}
}

// Register sets the shared directory and worker identity. Only non-empty
// arguments overwrite, so repeated calls (once at configure time, once at
// worker setup) never erase previously set values. The shared directory
// must be absolute and the worker identity a single clean path element;
// violations fail immediately rather than silently corrupting paths.
func (a *Aggregator) Register(sharedDir, workerID string) error {
	if sharedDir != "" {
		if !filepath.IsAbs(sharedDir) {
			return fmt.Errorf("%w: %q is not an absolute path", ErrInvalidSharedDir, sharedDir)
		}
		a.store = NewDirStore(sharedDir)
	}
	if workerID != "" {
		if workerID != filepath.Base(workerID) || workerID == "." || workerID == ".." || strings.ContainsAny(workerID, `/\`) {
			return fmt.Errorf("%w: %q is not a single path element", ErrInvalidWorkerID, workerID)
		}
		a.workerID = workerID
	}
	return nil
}

// RegisterStore injects a snapshot store directly, bypassing the directory
// layout. Used by tests to swap in an in-memory store.
func (a *Aggregator) RegisterStore(store SnapshotStore) {
	a.store = store
}

// SharedDir returns the registered shared location, or "" when unregistered
func (a *Aggregator) SharedDir() string {
	if a.store == nil {
		return ""
	}
	return a.store.Root()
}

// WorkerID returns this process's worker identity, "" in the coordinator
func (a *Aggregator) WorkerID() string {
	return a.workerID
}

// SetCurrentTest marks the test that subsequent log calls attribute to.
// Callers set it at the start of every test and clear it at the end, so
// messages logged outside any test are dropped rather than mis-attributed.
func (a *Aggregator) SetCurrentTest(testID string) {
	a.currentTest = testID
}

// ClearCurrentTest unsets the active test
func (a *Aggregator) ClearCurrentTest() {
	a.currentTest = ""
}

// Log buffers a message against the active test. No-op when no test is
// active.
func (a *Aggregator) Log(level types.LogLevel, message string) {
	if a.currentTest == "" {
		return
	}
	a.collector.Add(a.currentTest, message, level)
}

// Debug logs a message at DEBUG level
func (a *Aggregator) Debug(message string) {
	a.Log(types.LevelDebug, message)
}

// Info logs a message at INFO level
func (a *Aggregator) Info(message string) {
	a.Log(types.LevelInfo, message)
}

// Warning logs a message at WARNING level
func (a *Aggregator) Warning(message string) {
	a.Log(types.LevelWarning, message)
}

// Error logs a message at ERROR level
func (a *Aggregator) Error(message string) {
	a.Log(types.LevelError, message)
}

// Critical logs a message at CRITICAL level
func (a *Aggregator) Critical(message string) {
	a.Log(types.LevelCritical, message)
}

// MarkFailed records a test as failed in this process's local failed set
func (a *Aggregator) MarkFailed(testID string) {
	a.failed[testID] = true
}

// FailedTests returns the locally known failed test identities, sorted
func (a *Aggregator) FailedTests() []string {
	ids := make([]string, 0, len(a.failed))
	for id := range a.failed {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Collector exposes the underlying collector for report building
func (a *Aggregator) Collector() *Collector {
	return a.collector
}

// SyncLogs persists this worker's full current state to the snapshot store,
// overwriting the worker's prior snapshot. Only effective in a worker
// process with a registered store; the coordinator and unregistered
// processes are silent no-ops. A worker that buffered nothing syncs
// nothing, so idle workers never materialize a snapshot.
func (a *Aggregator) SyncLogs() error {
	if a.workerID == "" {
		return nil
	}
	if a.store == nil {
		return nil
	}
	if a.collector.Len() == 0 && len(a.failed) == 0 {
		return nil
	}

	snap := &Snapshot{
		Logs:   a.collector.Export(),
		Failed: a.FailedTests(),
	}
	err := a.store.Put(a.workerID, snap)
	metrics.RecordSnapshotOp("sync", err)
	if err != nil {
		return fmt.Errorf("failed to sync logs for worker %s: %w", a.workerID, err)
	}
	return nil
}

// CollectWorkerLogs merges every synced worker snapshot into this
// process's collector and failed set. Only meaningful in the coordinator;
// workers and unregistered processes are silent no-ops. The collector and
// failed set are cleared first, so repeated collection at session end is
// idempotent: each snapshot is read once per pass and re-reads reproduce
// the same state instead of duplicating it. A snapshot that cannot be read
// is logged, counted in the error metrics, and skipped; one bad worker
// never poisons the rest.
func (a *Aggregator) CollectWorkerLogs() error {
	if a.workerID != "" {
		return nil
	}
	if a.store == nil {
		return nil
	}

	a.collector.Clear()
	a.failed = make(map[string]bool)

	workers, err := a.store.List()
	if err != nil {
		return fmt.Errorf("failed to enumerate worker snapshots: %w", err)
	}

	for _, workerID := range workers {
		snap, err := a.store.Get(workerID)
		metrics.RecordSnapshotOp("collect", err)
		if err != nil {
			a.log.Warn("Skipping unreadable worker snapshot", "worker", workerID, "err", err)
			continue
		}

		testIDs := make([]string, 0, len(snap.Logs))
		for testID := range snap.Logs {
			testIDs = append(testIDs, testID)
		}
		sort.Strings(testIDs)
		for _, testID := range testIDs {
			a.collector.Merge(testID, snap.Logs[testID])
		}
		for _, testID := range snap.Failed {
			a.failed[testID] = true
		}
	}
	return nil
}

// FilteredLogs returns the visible messages for every buffered test,
// formatted for display. See the package-level FilteredLogs for the
// visibility rules.
func (a *Aggregator) FilteredLogs(noCapture, showInfo bool) map[string][]string {
	return FilteredLogs(a.collector, a.failed, noCapture, showInfo)
}

// WriteReport writes the filtered test log report, sorted by test
// identity. Tests in the failed set are tagged FAILED, the rest PASSED,
// and each visible message is indented beneath its test. Nothing at all is
// written when no test has visible messages.
func (a *Aggregator) WriteReport(w io.Writer, noCapture, showInfo bool) error {
	filtered := a.FilteredLogs(noCapture, showInfo)
	if len(filtered) == 0 {
		return nil
	}

	if _, err := fmt.Fprintf(w, "\n%s\n\n", reportBanner); err != nil {
		return err
	}

	testIDs := make([]string, 0, len(filtered))
	for testID := range filtered {
		testIDs = append(testIDs, testID)
	}
	sort.Strings(testIDs)

	for _, testID := range testIDs {
		status := "PASSED"
		if a.failed[testID] {
			status = "FAILED"
		}
		if _, err := fmt.Fprintf(w, "%s %s\n", testID, status); err != nil {
			return err
		}
		for _, msg := range filtered[testID] {
			if _, err := fmt.Fprintf(w, "    %s\n", msg); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}
	return nil
}

// PrintReport writes the filtered test log report to stdout
func (a *Aggregator) PrintReport(noCapture, showInfo bool) error {
	return a.WriteReport(os.Stdout, noCapture, showInfo)
}
