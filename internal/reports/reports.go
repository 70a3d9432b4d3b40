// Package reports holds the prebuilt analytical queries of the billing
// dashboard. Each report carries one SQL text per supported database so the
// dashboard behaves the same against SQLite, PostgreSQL, and MySQL.
package reports

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"dbdash/internal/dbmeta"
)

// Report is a fixed query with a stable numeric id used in URLs.
type Report struct {
	ID    int
	Slug  string
	Title string

	// sql maps a database type onto the statement text. Placeholders are
	// written as '?' and rewritten for positional dialects at run time.
	sql map[dbmeta.DatabaseType]string

	// args produces the bind parameters, given the run options.
	args func(opts Options) []any
}

// Options tunes the parameterized reports.
type Options struct {
	// AddressPattern is the LIKE pattern used by the payment sheet report.
	AddressPattern string
}

// Result is a report's resolved output.
type Result struct {
	Report  *Report
	Columns []string
	Rows    [][]any
}

// All returns the report catalog in display order.
func All() []*Report {
	return catalog
}

// ByID returns the report with the given id, or nil.
func ByID(id int) *Report {
	for _, r := range catalog {
		if r.ID == id {
			return r
		}
	}
	return nil
}

// Run executes the report against db and normalizes the row values.
func (r *Report) Run(ctx context.Context, db *sql.DB, dbType dbmeta.DatabaseType, opts Options) (*Result, error) {
	text, ok := r.sql[dbType]
	if !ok {
		return nil, fmt.Errorf("report %q has no %s variant", r.Slug, dbType)
	}
	var args []any
	if r.args != nil {
		args = r.args(opts)
	}
	if dbType == dbmeta.PostgreSQL {
		text = numberPlaceholders(text)
	}

	rows, err := db.QueryContext(ctx, text, args...)
	if err != nil {
		return nil, fmt.Errorf("report %q: %w", r.Slug, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}

	res := &Result{Report: r, Columns: cols}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i, v := range values {
			values[i] = dbmeta.NormalizeValue(v, colTypes[i].DatabaseTypeName())
		}
		res.Rows = append(res.Rows, values)
	}
	return res, rows.Err()
}

// numberPlaceholders rewrites '?' bind markers into $1, $2, ... for
// PostgreSQL. Report SQL contains no string literals with question marks, so
// a plain scan is enough.
func numberPlaceholders(text string) string {
	var b strings.Builder
	b.Grow(len(text) + 8)
	n := 0
	for i := 0; i < len(text); i++ {
		if text[i] == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteByte(text[i])
	}
	return b.String()
}
