package mapping

import "strings"

// Normalize is the fallback key for mapping lookups: spaces are removed and
// newlines become a single space, so a header wrapped over two lines in the
// spreadsheet still finds its mapping.
func Normalize(column string) string {
	column = strings.ReplaceAll(column, " ", "")
	return strings.ReplaceAll(column, "\n", " ")
}
