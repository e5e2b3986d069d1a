package metrics

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/ethereum-optimism/infra/op-paratest/types"
)

func TestErrToLabel(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{
			name: "nil error",
			err:  nil,
		},
		{
			name: "simple error",
			err:  errors.New("test error"),
		},
		{
			name: "error with special chars",
			err:  errors.New("test@error#123"),
		},
		{
			name: "error with multiple spaces",
			err:  errors.New("test   error"),
		},
		{
			name: "error with multiple underscores",
			err:  errors.New("test__error"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := errToLabel(tt.err)
			validLabelRegex := regexp.MustCompile(`[a-zA-Z_][a-zA-Z0-9_]*`)
			if !validLabelRegex.MatchString(result) {
				t.Errorf("errLabel() = %v, is not a valid Prometheus label", result)
			}
		})
	}
}

func TestRecordError(t *testing.T) {
	// just test that it doesn't panic
	defer func() {
		if r := recover(); r != nil {
			t.Errorf("RecordError panic'd")
		}
	}()

	RecordError("test_error")
}

func TestRecordErrorDetails(t *testing.T) {
	// Test with nil error
	RecordErrorDetails("test", nil)

	// Test with actual error
	RecordErrorDetails("test", errors.New("sample error"))
}

func TestRecordTestResult(t *testing.T) {
	// Test recording for different status values
	RecordTestResult("run1", "example.com/m/a", "TestFoo", "gw0", types.TestStatusPass, time.Second)
	RecordTestResult("run1", "example.com/m/a", "TestBar", "gw1", types.TestStatusFail, 500*time.Millisecond)
	RecordTestResult("run1", "example.com/m/b", "TestBaz", "gw0", types.TestStatusSkip, 100*time.Millisecond)
	RecordTestResult("run1", "example.com/m/b", "TestBroken", "gw1", types.TestStatusError, 0)

	// Invalid results are dropped rather than recorded
	RecordTestResult("run1", "example.com/m/b", "TestOdd", "gw0", types.TestStatus("bogus"), time.Second)
}

func TestRecordSnapshotOp(t *testing.T) {
	RecordSnapshotOp("sync", nil)
	RecordSnapshotOp("collect", errors.New("snapshot unreadable"))
}

func TestRecordRunSummary(t *testing.T) {
	RecordRunSummary("run1", "pass", 3, 3, 0, 2, time.Second)
	RecordRunSummary("run2", "fail", 3, 1, 2, 4, 2*time.Second)
}
