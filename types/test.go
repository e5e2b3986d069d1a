// Package types contains shared types used across the op-paratest runner
package types

import (
	"time"
)

// TestStatus represents the possible states of a test execution
type TestStatus string

const (
	TestStatusPass  TestStatus = "pass"
	TestStatusFail  TestStatus = "fail"
	TestStatusSkip  TestStatus = "skip"
	TestStatusError TestStatus = "error"
)

// TestKey builds the canonical test identity from a package import path and a
// test function name. Every log entry, snapshot and report row is keyed by it.
func TestKey(pkg, funcName string) string {
	if funcName == "" {
		return pkg
	}
	return pkg + "::" + funcName
}

// TestMetadata identifies a single discovered test function
type TestMetadata struct {
	ID       string // canonical identity, Package::FuncName
	Package  string // package import path
	FuncName string
	Timeout  time.Duration // 0 means use the run default
}

// GetName returns a name for the test based on available fields
func (m TestMetadata) GetName() string {
	if m.FuncName != "" {
		return m.FuncName
	}
	if m.Package != "" {
		return m.Package
	}
	return m.ID
}

// Key returns the canonical test identity, deriving it when ID is unset
func (m TestMetadata) Key() string {
	if m.ID != "" {
		return m.ID
	}
	return TestKey(m.Package, m.FuncName)
}

// TestResult captures the outcome of a single test run
type TestResult struct {
	Metadata TestMetadata
	Status   TestStatus
	Error    error
	Duration time.Duration
	Stdout   string // tail of raw output, kept for errored runs
	TimedOut bool
	WorkerID string // identity of the worker process that ran the test
}
