package dbmeta

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// quoteIdent safely quotes an identifier (table/column) for the target DB.
// Returns the identifier unquoted when it is obviously safe:
// - comprised of lowercase letters, digits, and underscores
// - does not start with a digit
// - not a common SQL reserved keyword
// Otherwise it applies database-appropriate quoting with escaping.
func quoteIdent(dbType DatabaseType, ident string) string {
	if isSafeUnquotedIdent(ident) {
		return ident
	}

	switch dbType {
	case MySQL:
		// Escape backticks by doubling them
		escaped := strings.ReplaceAll(ident, "`", "``")
		return "`" + escaped + "`"
	default:
		// Escape double quotes by doubling them
		escaped := strings.ReplaceAll(ident, "\"", "\"\"")
		return "\"" + escaped + "\""
	}
}

// quoteQualified splits on '.' and quotes each identifier part independently.
func quoteQualified(dbType DatabaseType, qualified string) string {
	parts := strings.Split(qualified, ".")
	for i, p := range parts {
		parts[i] = quoteIdent(dbType, p)
	}
	return strings.Join(parts, ".")
}

// isSafeUnquotedIdent returns true if ident can be used without quotes in a
// portable way across supported databases (lowercase [a-z_][a-z0-9_]* and not
// a common reserved keyword).
func isSafeUnquotedIdent(ident string) bool {
	if ident == "" {
		return false
	}
	c0 := ident[0]
	if !((c0 >= 'a' && c0 <= 'z') || c0 == '_') {
		return false
	}
	for i := 1; i < len(ident); i++ {
		c := ident[i]
		if !((c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '_') {
			return false
		}
	}
	if _, ok := commonReservedIdents[ident]; ok {
		return false
	}
	return true
}

// Small, conservative set of common SQL reserved keywords to avoid unquoted.
var commonReservedIdents = map[string]struct{}{
	// DML/DDL
	"select": {}, "insert": {}, "update": {}, "delete": {}, "into": {}, "values": {},
	"create": {}, "alter": {}, "drop": {}, "table": {}, "index": {}, "view": {},
	// Clauses
	"from": {}, "where": {}, "group": {}, "order": {}, "by": {}, "having": {},
	"limit": {}, "offset": {}, "join": {}, "inner": {}, "left": {}, "right": {}, "full": {}, "outer": {},
	// Operators/Predicates
	"and": {}, "or": {}, "not": {}, "in": {}, "is": {}, "like": {}, "between": {}, "exists": {},
	// Literals
	"null": {}, "true": {}, "false": {},
	// Misc
	"as": {}, "on": {},
}

// placeholder returns the parameter placeholder for 1-indexed position pos.
func placeholder(dbType DatabaseType, pos int) string {
	if databaseFeatures[dbType].positionalPlaceholder {
		return fmt.Sprintf("$%d", pos)
	}
	return "?"
}

// isNumericType reports whether a column type holds non-integer numbers.
func isNumericType(colType string) bool {
	t := strings.ToLower(colType)
	return strings.Contains(t, "numeric") || strings.Contains(t, "decimal") ||
		strings.Contains(t, "real") || strings.Contains(t, "double") ||
		strings.Contains(t, "float") || strings.Contains(t, "money")
}

// isIntegerType reports whether a column type holds integers.
func isIntegerType(colType string) bool {
	t := strings.ToLower(colType)
	return strings.Contains(t, "int") || strings.Contains(t, "serial")
}

// NormalizeValue converts driver values into display- and JSON-friendly Go
// values: dates and timestamps become ISO 8601 strings, database decimals
// (which arrive as byte slices from lib/pq and go-sql-driver/mysql) become
// float64, and remaining byte slices become strings.
func NormalizeValue(v any, colType string) any {
	switch val := v.(type) {
	case nil:
		return nil
	case time.Time:
		if val.Hour() == 0 && val.Minute() == 0 && val.Second() == 0 && val.Nanosecond() == 0 {
			return val.Format("2006-01-02")
		}
		return val.Format(time.RFC3339)
	case []byte:
		s := string(val)
		if isNumericType(colType) {
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return f
			}
		}
		if isIntegerType(colType) {
			if n, err := strconv.ParseInt(s, 10, 64); err == nil {
				return n
			}
		}
		return s
	default:
		return v
	}
}

// InputType maps a database column type to the HTML input type used to edit
// it in a generated form.
func InputType(colType string) string {
	t := strings.ToLower(colType)
	switch {
	case strings.Contains(t, "int"), strings.Contains(t, "serial"),
		strings.Contains(t, "numeric"), strings.Contains(t, "decimal"),
		strings.Contains(t, "real"), strings.Contains(t, "double"), strings.Contains(t, "float"):
		return "number"
	case strings.Contains(t, "timestamp"), strings.Contains(t, "datetime"):
		return "datetime-local"
	case strings.Contains(t, "date"):
		return "date"
	case strings.Contains(t, "time"):
		return "time"
	case strings.Contains(t, "bool"):
		return "checkbox"
	default:
		return "text"
	}
}
