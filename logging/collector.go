package logging

import (
	"sort"

	"github.com/ethereum-optimism/infra/op-paratest/types"
)

// Collector owns a process's in-memory mapping from test identity to
// buffered logs. A test identity present in the map always has at least one
// message; empty entries are never inserted. The collector is not safe for
// concurrent use, the host runner drives it sequentially test by test.
type Collector struct {
	logs map[string]*LogEntry
}

// NewCollector creates an empty collector
func NewCollector() *Collector {
	return &Collector{
		logs: make(map[string]*LogEntry),
	}
}

// Add appends a message for a test, creating its entry on first write
func (c *Collector) Add(testID, message string, level types.LogLevel) {
	entry, ok := c.logs[testID]
	if !ok {
		entry = &LogEntry{}
		c.logs[testID] = entry
	}
	entry.Append(message, level)
}

// Get returns the entry for a test, or nil when the test has no logs
func (c *Collector) Get(testID string) *LogEntry {
	return c.logs[testID]
}

// Len returns the number of tests with buffered messages
func (c *Collector) Len() int {
	return len(c.logs)
}

// TestIDs returns every buffered test identity in sorted order. Display
// paths must iterate in this order; map order is never exposed.
func (c *Collector) TestIDs() []string {
	ids := make([]string, 0, len(c.logs))
	for id := range c.logs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Merge folds a snapshot entry into the collector. An absent test adopts the
// entry directly; a present one gets the entry's messages appended after its
// existing ones, preserving both internal orders. Deduplication across
// repeated merge passes is the caller's job: clear the collector before each
// pass (see Aggregator.CollectWorkerLogs). Empty entries are dropped so no
// empty test ever becomes visible.
func (c *Collector) Merge(testID string, entry *LogEntry) {
	if entry == nil || entry.Len() == 0 {
		return
	}
	existing, ok := c.logs[testID]
	if !ok {
		c.logs[testID] = entry
		return
	}
	existing.Messages = append(existing.Messages, entry.Messages...)
	existing.Levels = append(existing.Levels, entry.Levels...)
}

// Clear drops all entries
func (c *Collector) Clear() {
	c.logs = make(map[string]*LogEntry)
}

// Export returns a deep copy of the collector contents, suitable for
// handing to a snapshot store without aliasing live buffers.
func (c *Collector) Export() map[string]*LogEntry {
	out := make(map[string]*LogEntry, len(c.logs))
	for id, entry := range c.logs {
		out[id] = entry.Clone()
	}
	return out
}
