package store

import "strings"

// SanitizeQuery rewrites a user-typed query into a safe FTS5 MATCH
// expression. Every token is quoted so reserved operators (AND, OR, NOT,
// NEAR, parentheses, colons) match literally. A trailing asterisk on the
// final token is kept as a prefix query; asterisks anywhere else are
// stripped. Earlier tokens match whole words only.
//
// Callers that want raw operator access pass the query through unmodified
// in advanced mode instead.
func SanitizeQuery(q string) string {
	fields := strings.Fields(q)
	parts := make([]string, 0, len(fields))
	for i, tok := range fields {
		prefix := i == len(fields)-1 && strings.HasSuffix(tok, "*")
		tok = strings.ReplaceAll(tok, "*", "")
		tok = strings.ReplaceAll(tok, `"`, `""`)
		if tok == "" {
			continue
		}
		quoted := `"` + tok + `"`
		if prefix {
			quoted += "*"
		}
		parts = append(parts, quoted)
	}
	return strings.Join(parts, " ")
}
