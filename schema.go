package main

import (
	"fmt"
	"strings"
	"unicode"
)

// pgReservedWords are PostgreSQL reserved words that must be quoted as identifiers.
var pgReservedWords = map[string]bool{
	"all": true, "analyse": true, "analyze": true, "and": true, "any": true,
	"array": true, "as": true, "asc": true, "authorization": true, "between": true,
	"binary": true, "both": true, "case": true, "cast": true, "check": true,
	"collate": true, "column": true, "constraint": true, "create": true, "cross": true,
	"current_date": true, "current_role": true, "current_time": true,
	"current_timestamp": true, "current_user": true, "default": true, "deferrable": true,
	"desc": true, "distinct": true, "do": true, "else": true, "end": true, "except": true,
	"false": true, "fetch": true, "for": true, "foreign": true, "freeze": true,
	"from": true, "full": true, "grant": true, "group": true, "having": true,
	"ilike": true, "in": true, "initially": true, "inner": true, "intersect": true,
	"into": true, "is": true, "isnull": true, "join": true, "lateral": true,
	"leading": true, "left": true, "like": true, "limit": true, "localtime": true,
	"localtimestamp": true, "natural": true, "not": true, "notnull": true, "null": true,
	"offset": true, "on": true, "only": true, "or": true, "order": true, "outer": true,
	"overlaps": true, "placing": true, "primary": true, "references": true,
	"returning": true, "right": true, "select": true, "session_user": true,
	"similar": true, "some": true, "symmetric": true, "table": true, "then": true,
	"to": true, "trailing": true, "true": true, "union": true, "unique": true,
	"user": true, "using": true, "variadic": true, "verbose": true, "when": true,
	"where": true, "window": true, "with": true,
}

// maxIdentLen caps generated identifiers well below PostgreSQL's 63-byte
// limit so option-table names ({table}__{property}) still fit.
const maxIdentLen = 50

// cleanName sanitizes a Notion title or property name into a PG identifier:
// lowercased, runs of non-alphanumerics collapsed to a single underscore,
// trimmed, prefixed when it would start with a digit, and length-capped.
func cleanName(name string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastUnderscore = false
			continue
		}
		if !lastUnderscore && b.Len() > 0 {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	cleaned := strings.Trim(b.String(), "_")
	if cleaned == "" || cleaned[0] >= '0' && cleaned[0] <= '9' {
		cleaned = "t_" + cleaned
		cleaned = strings.TrimSuffix(cleaned, "_")
	}
	if len(cleaned) > maxIdentLen {
		cleaned = strings.TrimRight(cleaned[:maxIdentLen], "_")
	}
	return cleaned
}

// uniquifier de-duplicates sanitized names by appending a numeric suffix in
// first-seen order: the first "status" stays "status", the next becomes
// "status_2", then "status_3".
type uniquifier struct {
	seen map[string]int
}

func newUniquifier() *uniquifier {
	return &uniquifier{seen: make(map[string]int)}
}

func (u *uniquifier) take(name string) string {
	n := u.seen[name]
	u.seen[name] = n + 1
	if n == 0 {
		return name
	}
	candidate := fmt.Sprintf("%s_%d", name, n+1)
	for u.seen[candidate] > 0 {
		n++
		candidate = fmt.Sprintf("%s_%d", name, n+1)
	}
	u.seen[candidate] = 1
	return candidate
}

// pgNeedsQuoting reports whether a PG identifier needs quoting beyond
// reserved-word checks (e.g. contains hyphens, spaces, uppercase, etc.).
func pgNeedsQuoting(name string) bool {
	for i, r := range name {
		if r >= 'a' && r <= 'z' || r == '_' {
			continue
		}
		if i > 0 && (r >= '0' && r <= '9' || r == '$') {
			continue
		}
		return true
	}
	return false
}

// pgIdent returns a PG-safe identifier, quoting reserved words and names
// that contain characters invalid in unquoted identifiers.
func pgIdent(name string) string {
	if pgReservedWords[name] || pgNeedsQuoting(name) {
		return `"` + name + `"`
	}
	return name
}

// pgQuoteLiteral quotes a string literal for COMMENT ON statements, which
// cannot take bind parameters.
func pgQuoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
