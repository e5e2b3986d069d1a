package runner

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/op-paratest/types"
)

// Go test2json (TestEvent) action constants for JSON test output
// See https://cs.opensource.google/go/go/+/master:src/cmd/test2json/main.go;l=34-60
const (
	ActionStart  = "start"
	ActionRun    = "run"
	ActionPause  = "pause"
	ActionCont   = "cont"
	ActionPass   = "pass"
	ActionFail   = "fail"
	ActionSkip   = "skip"
	ActionOutput = "output"
)

// errNoResult marks tests that never produced a terminal event, typically
// because the test binary was killed before reaching them.
var errNoResult = errors.New("test did not report a result")

// TestEvent represents a single event from the go test JSON output
type TestEvent struct {
	Time    time.Time // Time the event occurred
	Action  string    // The action taken (run, pause, cont, pass, fail, skip, output)
	Package string    // The package being tested
	Test    string    // The test function name (may be empty for package events)
	Output  string    // Output text (may be empty)
	Elapsed float64   // Elapsed time in seconds for the specific action
}

// OutputSink observes the per-test lifecycle while a JSON event stream is
// parsed. TestOutput receives raw output lines, subtest output attributed
// to the top-level test. All methods are called from the parsing goroutine.
type OutputSink interface {
	TestStarted(test types.TestMetadata)
	TestOutput(test types.TestMetadata, line string)
	TestFinished(result *types.TestResult)
}

// OutputParser turns one go test -json event stream into per-test results
type OutputParser interface {
	// Parse consumes output until EOF. It returns a result for every entry
	// in tests, in order, synthesizing an errored result for tests that
	// never reported, followed by results for any unexpected tests that ran.
	Parse(output io.Reader, pkg string, tests []types.TestMetadata) []*types.TestResult
}

// outputParser implements OutputParser
type outputParser struct {
	log  log.Logger
	sink OutputSink
}

// NewOutputParser creates a new output parser. sink may be nil.
func NewOutputParser(logger log.Logger, sink OutputSink) OutputParser {
	if logger == nil {
		logger = log.New()
	}
	return &outputParser{log: logger, sink: sink}
}

// testState tracks one top-level test function across the event stream
type testState struct {
	metadata types.TestMetadata
	start    time.Time
	output   *tailBuffer
	result   *types.TestResult
}

func (p *outputParser) Parse(output io.Reader, pkg string, tests []types.TestMetadata) []*types.TestResult {
	states := make(map[string]*testState, len(tests))
	expected := make([]string, 0, len(tests))
	var extra []string

	for _, test := range tests {
		states[test.FuncName] = &testState{
			metadata: test,
			output:   newTailBuffer(testOutputTailBytes),
		}
		expected = append(expected, test.FuncName)
	}

	var pkgFailed bool
	var pkgOutput strings.Builder

	scanner := bufio.NewScanner(output)
	// go test output lines can exceed the default scanner buffer
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventLineBytes)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		event, err := parseTestEvent(line)
		if err != nil {
			p.log.Debug("Skipping non-JSON test output line", "line", string(line))
			continue
		}

		if event.Test == "" {
			p.processPackageEvent(event, &pkgFailed, &pkgOutput)
			continue
		}

		topLevel, _, isSubtest := strings.Cut(event.Test, "/")
		state, ok := states[topLevel]
		if !ok {
			// A test we did not select, e.g. spawned via TestMain. Track it
			// so its outcome is not lost.
			state = &testState{
				metadata: types.TestMetadata{
					ID:       types.TestKey(pkg, topLevel),
					Package:  pkg,
					FuncName: topLevel,
				},
				output: newTailBuffer(testOutputTailBytes),
			}
			states[topLevel] = state
			extra = append(extra, topLevel)
		}

		if isSubtest {
			p.processSubtestEvent(event, state)
		} else {
			p.processTestEvent(event, state)
		}
	}
	if err := scanner.Err(); err != nil {
		p.log.Warn("Reading test output failed", "package", pkg, "err", err)
	}

	results := make([]*types.TestResult, 0, len(states))
	for _, funcName := range append(expected, extra...) {
		state := states[funcName]
		if state.result == nil {
			state.result = p.synthesizeResult(state, pkgFailed, pkgOutput.String())
			p.finish(state)
		}
		results = append(results, state.result)
	}
	return results
}

// processPackageEvent handles events that carry no test name, such as
// build output and the package verdict.
func (p *outputParser) processPackageEvent(event TestEvent, pkgFailed *bool, pkgOutput *strings.Builder) {
	switch event.Action {
	case ActionFail:
		*pkgFailed = true
	case ActionOutput:
		pkgOutput.WriteString(event.Output)
	}
}

// processTestEvent handles events for a top-level test function
func (p *outputParser) processTestEvent(event TestEvent, state *testState) {
	switch event.Action {
	case ActionRun:
		state.start = event.Time
		if p.sink != nil {
			p.sink.TestStarted(state.metadata)
		}
	case ActionOutput:
		_, _ = state.output.Write([]byte(event.Output))
		if p.sink != nil {
			p.sink.TestOutput(state.metadata, event.Output)
		}
	case ActionPass:
		p.finalize(state, types.TestStatusPass, event)
	case ActionFail:
		p.finalize(state, types.TestStatusFail, event)
	case ActionSkip:
		p.finalize(state, types.TestStatusSkip, event)
	}
}

// processSubtestEvent folds subtest events into the top-level test. The
// parent's terminal event carries the authoritative status, so only output
// needs attributing here.
func (p *outputParser) processSubtestEvent(event TestEvent, state *testState) {
	if event.Action != ActionOutput {
		return
	}
	_, _ = state.output.Write([]byte(event.Output))
	if p.sink != nil {
		p.sink.TestOutput(state.metadata, event.Output)
	}
}

func (p *outputParser) finalize(state *testState, status types.TestStatus, event TestEvent) {
	if state.result != nil {
		return
	}

	result := &types.TestResult{
		Metadata: state.metadata,
		Status:   status,
		Duration: testDuration(state.start, event),
	}

	if status == types.TestStatusFail {
		captured := strings.TrimSpace(string(state.output.Bytes()))
		if captured != "" {
			result.Error = fmt.Errorf("%s", captured)
			result.Stdout = captured
		} else {
			result.Error = errors.New("test failed without output")
		}
	}

	state.result = result
	p.finish(state)
}

// synthesizeResult builds the errored result for a test with no terminal
// event. Package-level output usually explains why, e.g. a build failure.
func (p *outputParser) synthesizeResult(state *testState, pkgFailed bool, pkgOutput string) *types.TestResult {
	err := errNoResult
	if trimmed := strings.TrimSpace(pkgOutput); pkgFailed && trimmed != "" {
		err = fmt.Errorf("%w: %s", errNoResult, trimmed)
	}

	return &types.TestResult{
		Metadata: state.metadata,
		Status:   types.TestStatusError,
		Error:    err,
	}
}

func (p *outputParser) finish(state *testState) {
	if p.sink != nil {
		p.sink.TestFinished(state.result)
	}
}

// testDuration prefers the measured start-to-end difference and falls back
// to the elapsed seconds reported by go test.
func testDuration(start time.Time, event TestEvent) time.Duration {
	if !start.IsZero() && !event.Time.IsZero() {
		if d := event.Time.Sub(start); d >= 0 {
			return d
		}
	}
	if event.Elapsed > 0 {
		return time.Duration(event.Elapsed * float64(time.Second))
	}
	return 0
}

// parseTestEvent parses a single line of test output into a TestEvent
func parseTestEvent(line []byte) (TestEvent, error) {
	var event TestEvent
	err := json.Unmarshal(line, &event)
	return event, err
}
