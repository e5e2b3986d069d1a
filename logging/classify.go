package logging

import (
	"regexp"
	"strings"

	"github.com/ethereum-optimism/infra/op-paratest/types"
)

// levelMarkers maps the textual markers tests emit (t.Log("WARNING: ..."))
// to severities. Checked in order; names never prefix each other.
var levelMarkers = []struct {
	marker string
	level  types.LogLevel
}{
	{"DEBUG:", types.LevelDebug},
	{"INFO:", types.LevelInfo},
	{"WARNING:", types.LevelWarning},
	{"ERROR:", types.LevelError},
	{"CRITICAL:", types.LevelCritical},
}

// testLogLocationPattern matches the "file_test.go:12: " prefix the testing
// package puts in front of t.Log output.
var testLogLocationPattern = regexp.MustCompile(`^[^\s:]+\.go:\d+: `)

// ClassifyOutput turns one line of go test output into a buffered message
// with a severity. Framework scaffolding (RUN/PAUSE/CONT markers, pass and
// skip notices, package result lines) is dropped. Failure notices classify
// as ERROR and panics as CRITICAL. Lines carrying an explicit level marker
// buffer at that level with the marker and t.Log location prefix removed.
// Everything else is DEBUG, which keeps plain prints invisible unless the
// test failed or capture is disabled.
func ClassifyOutput(line string) (string, types.LogLevel, bool) {
	clean := StripANSIEscapeSequences(strings.TrimRight(line, "\r\n"))
	trimmed := strings.TrimLeft(clean, " \t")
	if trimmed == "" {
		return "", types.LevelDebug, false
	}

	if isScaffolding(trimmed) {
		return "", types.LevelDebug, false
	}
	if strings.HasPrefix(trimmed, "--- FAIL:") {
		return trimmed, types.LevelError, true
	}
	if strings.HasPrefix(trimmed, "panic:") || strings.HasPrefix(trimmed, "fatal error:") {
		return trimmed, types.LevelCritical, true
	}

	message := testLogLocationPattern.ReplaceAllString(trimmed, "")
	for _, m := range levelMarkers {
		if strings.HasPrefix(message, m.marker) {
			return strings.TrimLeft(message[len(m.marker):], " "), m.level, true
		}
	}
	return message, types.LevelDebug, true
}

func isScaffolding(line string) bool {
	for _, prefix := range []string{
		"=== RUN ",
		"=== PAUSE ",
		"=== CONT ",
		"=== NAME ",
		"--- PASS:",
		"--- SKIP:",
		"exit status ",
		"coverage: ",
	} {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	if line == "PASS" || line == "FAIL" {
		return true
	}
	// Package result lines: "ok  <pkg> 0.5s" and "FAIL <pkg> 0.5s"
	if strings.HasPrefix(line, "ok  ") || strings.HasPrefix(line, "FAIL\t") {
		return true
	}
	return false
}
