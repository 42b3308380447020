package karabo

import "strings"

// newlineMangle is the token the logger substitutes for literal
// newlines before writing a string field, since the store's line
// protocol is newline-delimited.
const newlineMangle = "KRB_NEWLINE"

// EscapeLogged prepares a string value for storage: backslashes and
// double quotes are escaped, newlines replaced by the mangle token.
func EscapeLogged(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return strings.ReplaceAll(s, "\n", newlineMangle)
}

// UnescapeLogged reverses EscapeLogged exactly once.
func UnescapeLogged(s string) string {
	s = strings.ReplaceAll(s, `\"`, `"`)
	s = strings.ReplaceAll(s, `\\`, `\`)
	return strings.ReplaceAll(s, newlineMangle, "\n")
}
