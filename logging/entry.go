// Package logging implements per-test log capture and the cross-process
// aggregation protocol used by the op-paratest runner. Worker processes
// buffer captured messages keyed by test identity, persist full-state
// snapshots to a shared store after each test, and the coordinator merges
// every worker's snapshot into one filtered report once all workers have
// been joined.
package logging

import (
	"github.com/ethereum-optimism/infra/op-paratest/types"
)

// LogEntry buffers the captured log messages for one test identity.
// Messages and Levels are parallel slices paired by index; Append is the
// only mutation, so both slices always have equal length.
type LogEntry struct {
	Messages []string         `json:"messages"`
	Levels   []types.LogLevel `json:"levels"`
}

// Append adds a message with its level to the entry
func (e *LogEntry) Append(message string, level types.LogLevel) {
	e.Messages = append(e.Messages, message)
	e.Levels = append(e.Levels, level)
}

// Len returns the number of buffered messages
func (e *LogEntry) Len() int {
	return len(e.Messages)
}

// Clone returns a deep copy of the entry
func (e *LogEntry) Clone() *LogEntry {
	cp := &LogEntry{
		Messages: make([]string, len(e.Messages)),
		Levels:   make([]types.LogLevel, len(e.Levels)),
	}
	copy(cp.Messages, e.Messages)
	copy(cp.Levels, e.Levels)
	return cp
}
