package logging

import (
	"fmt"

	"github.com/ethereum-optimism/infra/op-paratest/types"
)

// FilteredLogs computes which buffered messages are visible for display.
// Per test, a message is visible when the test failed or capture is
// disabled (all levels), when its level is WARNING or above (always), or
// when showInfo is set and its level is INFO or above. Tests with zero
// visible messages are omitted entirely. Pure function, no side effects.
func FilteredLogs(c *Collector, failed map[string]bool, noCapture, showInfo bool) map[string][]string {
	filtered := make(map[string][]string)
	for _, testID := range c.TestIDs() {
		entry := c.Get(testID)
		showAll := failed[testID] || noCapture

		var messages []string
		for i, msg := range entry.Messages {
			if messageVisible(entry.Levels[i], showAll, showInfo) {
				messages = append(messages, FormatMessage(entry.Levels[i], msg))
			}
		}
		if len(messages) > 0 {
			filtered[testID] = messages
		}
	}
	return filtered
}

func messageVisible(level types.LogLevel, showAll, showInfo bool) bool {
	if showAll {
		return true
	}
	if level >= types.LevelWarning {
		return true
	}
	return showInfo && level >= types.LevelInfo
}

// FormatMessage renders one report line for a captured message
func FormatMessage(level types.LogLevel, message string) string {
	return fmt.Sprintf("%s: %s", level, message)
}
