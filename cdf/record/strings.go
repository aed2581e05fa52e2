package record

import "strings"

// StringDelimiter separates the strings packed into one CHAR attribute entry.
const StringDelimiter = "\\N "

// JoinStrings packs several strings into one entry value.
func JoinStrings(s []string) string {
	return strings.Join(s, StringDelimiter)
}

// SplitStrings unpacks an entry value. A value without delimiters is a single
// string.
func SplitStrings(s string) []string {
	return strings.Split(s, StringDelimiter)
}
