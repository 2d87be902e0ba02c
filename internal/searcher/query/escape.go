package query

import "strings"

const specialChars = `\+-!():^[]"{}~*?|&/`

// Escape backslash-escapes every character that has a meaning in query
// syntax so that s parses as literal text.
func Escape(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if strings.ContainsRune(specialChars, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
