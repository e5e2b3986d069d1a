package logging

import "github.com/acarl005/stripansi"

// StripANSIEscapeSequences removes terminal color and style escape
// sequences from captured test output. Only real escape bytes are removed;
// textually escaped sequences (a backslash-x1b spelled out in a string)
// are left alone.
func StripANSIEscapeSequences(s string) string {
	return stripansi.Strip(s)
}
