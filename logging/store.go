package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

const (
	// LogsFilename holds a worker's serialized log map, test identity to
	// {messages, level names}. Wire format v1: the map is flat, there is no
	// wrapper object around it.
	LogsFilename = "logs.json"
	// FailedFilename holds a worker's failed test identities as a JSON array
	FailedFilename = "failed.json"
)

// Snapshot is a worker's complete, self-contained dump of its buffered logs
// and locally observed failed tests at the moment of syncing. Every sync
// replaces the previous snapshot wholesale; snapshots are never deltas.
type Snapshot struct {
	Logs   map[string]*LogEntry
	Failed []string
}

// Clone returns a deep copy of the snapshot
func (s *Snapshot) Clone() *Snapshot {
	cp := &Snapshot{
		Logs:   make(map[string]*LogEntry, len(s.Logs)),
		Failed: append([]string(nil), s.Failed...),
	}
	for id, entry := range s.Logs {
		cp.Logs[id] = entry.Clone()
	}
	return cp
}

// SnapshotStore abstracts the shared area workers sync snapshots to and the
// coordinator collects them from. Workers only ever Put under their own
// identity; the coordinator only Lists, Gets and finally Destroys. The
// backing medium is swappable (local directory in production, memory in
// tests) without touching aggregation logic.
type SnapshotStore interface {
	// Put replaces the stored snapshot for a worker
	Put(workerID string, snap *Snapshot) error
	// Get reads a worker's snapshot. A worker directory without snapshot
	// files yields an empty snapshot, not an error.
	Get(workerID string) (*Snapshot, error)
	// List returns the identities of all workers that have synced, sorted
	List() ([]string, error)
	// Root identifies the shared location backing the store
	Root() string
	// Destroy removes the whole shared area including every snapshot
	Destroy() error
}

// DirStore is the production SnapshotStore: one directory per worker under
// a single shared root, two JSON files per worker. The root may not exist
// yet when a worker first syncs; Put creates it on demand.
type DirStore struct {
	root string
}

var _ SnapshotStore = (*DirStore)(nil)

// NewDirStore creates a store rooted at the given shared directory
func NewDirStore(root string) *DirStore {
	return &DirStore{root: root}
}

// Root returns the shared root directory
func (s *DirStore) Root() string {
	return s.root
}

// Put serializes the snapshot into the worker's directory, overwriting any
// prior snapshot for that worker.
func (s *DirStore) Put(workerID string, snap *Snapshot) error {
	workerDir := filepath.Join(s.root, workerID)
	if err := os.MkdirAll(workerDir, 0755); err != nil {
		return fmt.Errorf("failed to create worker directory %s: %w", workerDir, err)
	}

	logsData, err := json.Marshal(snap.Logs)
	if err != nil {
		return fmt.Errorf("failed to serialize logs for worker %s: %w", workerID, err)
	}
	if err := os.WriteFile(filepath.Join(workerDir, LogsFilename), logsData, 0644); err != nil {
		return fmt.Errorf("failed to write %s for worker %s: %w", LogsFilename, workerID, err)
	}

	failed := append([]string(nil), snap.Failed...)
	sort.Strings(failed)
	failedData, err := json.Marshal(failed)
	if err != nil {
		return fmt.Errorf("failed to serialize failed tests for worker %s: %w", workerID, err)
	}
	if err := os.WriteFile(filepath.Join(workerDir, FailedFilename), failedData, 0644); err != nil {
		return fmt.Errorf("failed to write %s for worker %s: %w", FailedFilename, workerID, err)
	}
	return nil
}

// Get reads a worker's snapshot. Missing files mean the worker synced
// nothing of that kind; both missing yields an empty snapshot. The older
// wrapped layout, a single "test_logs" object around the test map, is a
// different wire format and is rejected rather than misread.
func (s *DirStore) Get(workerID string) (*Snapshot, error) {
	workerDir := filepath.Join(s.root, workerID)
	snap := &Snapshot{Logs: make(map[string]*LogEntry)}

	logsData, err := os.ReadFile(filepath.Join(workerDir, LogsFilename))
	if err == nil {
		if err := json.Unmarshal(logsData, &snap.Logs); err != nil {
			return nil, fmt.Errorf("failed to parse %s for worker %s: %w", LogsFilename, workerID, err)
		}
		// A wrapped file decodes as a bogus "test_logs" test with no
		// messages. Real test identities are package::name pairs.
		if legacy, ok := snap.Logs["test_logs"]; ok && len(legacy.Messages) == 0 && len(legacy.Levels) == 0 {
			return nil, fmt.Errorf("unsupported wrapped %s for worker %s: flat test map required", LogsFilename, workerID)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read %s for worker %s: %w", LogsFilename, workerID, err)
	}

	failedData, err := os.ReadFile(filepath.Join(workerDir, FailedFilename))
	if err == nil {
		if err := json.Unmarshal(failedData, &snap.Failed); err != nil {
			return nil, fmt.Errorf("failed to parse %s for worker %s: %w", FailedFilename, workerID, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read %s for worker %s: %w", FailedFilename, workerID, err)
	}

	return snap, nil
}

// List enumerates worker directories under the root. A missing root means
// no worker has synced yet and is not an error.
func (s *DirStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list shared root %s: %w", s.root, err)
	}

	var ids []string
	for _, entry := range entries {
		if entry.IsDir() {
			ids = append(ids, entry.Name())
		}
	}
	return ids, nil
}

// Destroy removes the shared root and everything under it
func (s *DirStore) Destroy() error {
	return os.RemoveAll(s.root)
}

// MemStore is an in-memory SnapshotStore used as a test double. Snapshots
// are deep-copied on Put and Get so callers cannot alias stored state.
type MemStore struct {
	snaps map[string]*Snapshot
}

var _ SnapshotStore = (*MemStore)(nil)

// NewMemStore creates an empty in-memory store
func NewMemStore() *MemStore {
	return &MemStore{snaps: make(map[string]*Snapshot)}
}

// Root identifies the store; there is no filesystem location behind it
func (s *MemStore) Root() string {
	return "memory"
}

// Put replaces the stored snapshot for a worker
func (s *MemStore) Put(workerID string, snap *Snapshot) error {
	s.snaps[workerID] = snap.Clone()
	return nil
}

// Get reads a worker's snapshot; unknown workers yield an empty snapshot
func (s *MemStore) Get(workerID string) (*Snapshot, error) {
	snap, ok := s.snaps[workerID]
	if !ok {
		return &Snapshot{Logs: make(map[string]*LogEntry)}, nil
	}
	return snap.Clone(), nil
}

// List returns the identities of all workers that have synced, sorted
func (s *MemStore) List() ([]string, error) {
	ids := make([]string, 0, len(s.snaps))
	for id := range s.snaps {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Destroy drops all snapshots
func (s *MemStore) Destroy() error {
	s.snaps = make(map[string]*Snapshot)
	return nil
}
