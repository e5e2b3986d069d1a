package types

import "fmt"

// LogLevel is the severity attached to a captured test log message.
// Levels are ordered; numeric comparison is meaningful.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarning
	LevelError
	LevelCritical
)

var levelNames = [...]string{
	LevelDebug:    "DEBUG",
	LevelInfo:     "INFO",
	LevelWarning:  "WARNING",
	LevelError:    "ERROR",
	LevelCritical: "CRITICAL",
}

// String implements the Stringer interface for LogLevel
func (l LogLevel) String() string {
	if !l.IsValid() {
		return fmt.Sprintf("LogLevel(%d)", int(l))
	}
	return levelNames[l]
}

// IsValid reports whether l is one of the defined levels
func (l LogLevel) IsValid() bool {
	return l >= LevelDebug && l <= LevelCritical
}

// ParseLogLevel maps a level name ("DEBUG".."CRITICAL") back to its LogLevel
func ParseLogLevel(name string) (LogLevel, error) {
	for level, n := range levelNames {
		if n == name {
			return LogLevel(level), nil
		}
	}
	return LevelDebug, fmt.Errorf("unknown log level %q", name)
}

// MarshalText encodes the level as its name. Snapshots persist names, not
// numbers, so the on-disk format survives renumbering.
func (l LogLevel) MarshalText() ([]byte, error) {
	if !l.IsValid() {
		return nil, fmt.Errorf("invalid log level %d", int(l))
	}
	return []byte(levelNames[l]), nil
}

// UnmarshalText decodes a level name
func (l *LogLevel) UnmarshalText(text []byte) error {
	level, err := ParseLogLevel(string(text))
	if err != nil {
		return err
	}
	*l = level
	return nil
}
