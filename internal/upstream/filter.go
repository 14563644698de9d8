package upstream

import "strings"

// The ERP filter grammar the gateway uses is a small subset: single-quoted
// equality on a named field, and conjunctions of equalities and date
// comparisons. Field names are case-sensitive and must match the upstream
// form definition exactly.

// Eq builds `field='value'`, escaping embedded single quotes.
func Eq(field, value string) string {
	return field + "='" + strings.ReplaceAll(value, "'", "''") + "'"
}

// DateRange builds `field>='start' AND field<='end'` with YYYY-MM-DD values.
func DateRange(field, start, end string) string {
	return field + ">='" + start + "' AND " + field + "<='" + end + "'"
}

// And joins non-empty clauses with AND.
func And(clauses ...string) string {
	parts := clauses[:0:0]
	for _, c := range clauses {
		if c != "" {
			parts = append(parts, c)
		}
	}
	return strings.Join(parts, " AND ")
}
