package internal

import (
	"regexp"
)

const (
	// A valid name is printable and must not start with whitespace.
	pattern = `^[^\pC\pZ][^\pC]*$`
	// It may not end with a whitespace character, since readers trim
	// trailing padding from the fixed-width name field.
	antiPattern = `\pZ$`

	// MaxNameLen is the width of a name field in a version 3 file.
	MaxNameLen = 256
)

var (
	re     = regexp.MustCompile(pattern)
	antiRe = regexp.MustCompile(antiPattern)
)

// IsValidCDFName returns true if name can be stored as a CDF variable or
// attribute name.
func IsValidCDFName(name string) bool {
	if len(name) > MaxNameLen {
		return false
	}
	return re.MatchString(name) && !antiRe.MatchString(name)
}
