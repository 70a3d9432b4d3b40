// Package sqlguard classifies ad-hoc SQL statements and executes the ones
// the dashboard permits. Classification prefers a real parse and falls back
// to leading-keyword inspection for syntax the parser's dialect does not
// cover.
package sqlguard

import (
	"errors"
	"strings"

	"github.com/pingcap/tidb/parser"
	"github.com/pingcap/tidb/parser/ast"
	_ "github.com/pingcap/tidb/parser/test_driver"
)

// Kind is the coarse statement class that drives the allow/deny decision.
type Kind int

const (
	// KindQuery statements read data and return rows.
	KindQuery Kind = iota
	// KindMutation statements change rows and report a count.
	KindMutation
	// KindDenied statements are blocked outright (DDL and permission
	// changes).
	KindDenied
	// KindOther statements are executed without a result set.
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindQuery:
		return "query"
	case KindMutation:
		return "mutation"
	case KindDenied:
		return "denied"
	default:
		return "other"
	}
}

var (
	// ErrEmptyQuery is returned for blank input.
	ErrEmptyQuery = errors.New("query must not be empty")
	// ErrDenied is returned when a statement's verb is on the deny list.
	ErrDenied = errors.New("not allowed")
	// ErrMultipleStatements is returned when the input holds more than one
	// statement.
	ErrMultipleStatements = errors.New("multiple statements are not allowed")
)

// IsRejection reports whether err is a policy rejection rather than a
// database failure.
func IsRejection(err error) bool {
	return errors.Is(err, ErrDenied) ||
		errors.Is(err, ErrEmptyQuery) ||
		errors.Is(err, ErrMultipleStatements)
}

// deniedKeywords are the statement verbs that are never executed.
var deniedKeywords = map[string]struct{}{
	"DROP": {}, "CREATE": {}, "ALTER": {}, "TRUNCATE": {}, "GRANT": {}, "REVOKE": {}, "RENAME": {},
}

var queryKeywords = map[string]struct{}{
	"SELECT": {}, "WITH": {}, "SHOW": {}, "EXPLAIN": {}, "DESCRIBE": {}, "DESC": {}, "VALUES": {}, "TABLE": {}, "PRAGMA": {},
}

var mutationKeywords = map[string]struct{}{
	"INSERT": {}, "UPDATE": {}, "DELETE": {}, "REPLACE": {}, "MERGE": {},
}

// Classify determines the statement class of sqlText and returns its leading
// verb. Multi-statement input is rejected.
func Classify(sqlText string) (Kind, string, error) {
	trimmed := strings.TrimSpace(sqlText)
	if trimmed == "" {
		return KindOther, "", ErrEmptyQuery
	}

	cleaned := stripStringsAndComments(trimmed)
	verb := leadingKeyword(cleaned)
	if verb == "" {
		// Input was nothing but comments.
		return KindOther, "", ErrEmptyQuery
	}

	p := parser.New()
	stmts, _, err := p.Parse(trimmed, "", "")
	if err == nil && len(stmts) > 0 {
		if len(stmts) > 1 {
			return KindOther, verb, ErrMultipleStatements
		}
		return classifyNode(stmts[0]), verb, nil
	}

	// Dialect the parser does not understand (postgres-specific syntax,
	// PRAGMA, ...): fall back to leading-keyword classification on the
	// string/comment-stripped text.
	if hasMultipleStatements(cleaned) {
		return KindOther, verb, ErrMultipleStatements
	}
	return classifyKeyword(verb), verb, nil
}

// classifyNode maps a parsed AST node onto a statement class.
func classifyNode(stmt ast.StmtNode) Kind {
	switch stmt.(type) {
	case *ast.SelectStmt, *ast.SetOprStmt, *ast.ShowStmt, *ast.ExplainStmt:
		return KindQuery
	case *ast.InsertStmt, *ast.UpdateStmt, *ast.DeleteStmt:
		return KindMutation
	case *ast.CreateTableStmt, *ast.CreateViewStmt, *ast.CreateIndexStmt, *ast.CreateDatabaseStmt,
		*ast.DropTableStmt, *ast.DropIndexStmt, *ast.DropDatabaseStmt,
		*ast.AlterTableStmt, *ast.TruncateTableStmt, *ast.RenameTableStmt,
		*ast.GrantStmt, *ast.RevokeStmt:
		return KindDenied
	default:
		return KindOther
	}
}

// classifyKeyword maps a leading verb onto a statement class.
func classifyKeyword(verb string) Kind {
	if _, ok := deniedKeywords[verb]; ok {
		return KindDenied
	}
	if _, ok := queryKeywords[verb]; ok {
		return KindQuery
	}
	if _, ok := mutationKeywords[verb]; ok {
		return KindMutation
	}
	return KindOther
}

// leadingKeyword returns the first token of cleaned SQL, uppercased.
func leadingKeyword(cleaned string) string {
	fields := strings.Fields(cleaned)
	if len(fields) == 0 {
		return ""
	}
	verb := strings.ToUpper(fields[0])
	// "EXPLAIN(FORMAT JSON)" style: cut at the first non-letter.
	for i := 0; i < len(verb); i++ {
		c := verb[i]
		if c < 'A' || c > 'Z' {
			return verb[:i]
		}
	}
	return verb
}

// hasMultipleStatements reports whether cleaned SQL contains a second
// non-blank statement after a semicolon. A single trailing semicolon is
// fine.
func hasMultipleStatements(cleaned string) bool {
	idx := strings.IndexByte(cleaned, ';')
	if idx == -1 {
		return false
	}
	return strings.TrimSpace(cleaned[idx+1:]) != ""
}

// stripStringsAndComments blanks out string literals and removes SQL
// comments so that keyword and semicolon checks cannot be fooled by quoted
// or commented text. Quoted identifiers are kept as-is.
func stripStringsAndComments(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == '\'':
			// String literal: emit empty quotes, honor doubled quotes.
			b.WriteByte('\'')
			i++
			for i < len(s) {
				if s[i] == '\'' {
					if i+1 < len(s) && s[i+1] == '\'' {
						i += 2
						continue
					}
					i++
					break
				}
				i++
			}
			b.WriteByte('\'')
		case c == '-' && i+1 < len(s) && s[i+1] == '-':
			// Line comment.
			for i < len(s) && s[i] != '\n' {
				i++
			}
			b.WriteByte(' ')
		case c == '#':
			for i < len(s) && s[i] != '\n' {
				i++
			}
			b.WriteByte(' ')
		case c == '/' && i+1 < len(s) && s[i+1] == '*':
			// Block comment.
			i += 2
			for i+1 < len(s) && !(s[i] == '*' && s[i+1] == '/') {
				i++
			}
			if i+1 < len(s) {
				i += 2
			} else {
				i = len(s)
			}
			b.WriteByte(' ')
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String()
}
