package shared

import "strings"

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// EscapeLike quotes the LIKE wildcards in s so it matches literally under
// the default backslash escape.
func EscapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// LikePrefix matches values starting with s.
func LikePrefix(s string) string {
	return EscapeLike(s) + "%"
}

// LikeContains matches values containing s anywhere.
func LikeContains(s string) string {
	return "%" + EscapeLike(s) + "%"
}
