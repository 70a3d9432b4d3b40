package sqlguard

import (
	"context"
	"database/sql"
	"fmt"

	"dbdash/internal/dbmeta"
)

// Result holds the outcome of a guarded statement execution. Columns and
// Rows are set for queries, RowsAffected for mutations.
type Result struct {
	Kind         Kind
	Verb         string
	Columns      []string
	Rows         [][]any
	RowsAffected int64
	Truncated    bool
}

// Run classifies sqlText and executes it against db. Denied statements are
// rejected before touching the database. Query results are capped at
// maxRows; maxRows <= 0 means no cap.
func Run(ctx context.Context, db *sql.DB, sqlText string, maxRows int) (*Result, error) {
	kind, verb, err := Classify(sqlText)
	if err != nil {
		return nil, err
	}
	res := &Result{Kind: kind, Verb: verb}

	switch kind {
	case KindDenied:
		return nil, fmt.Errorf("%s statements are %w", verb, ErrDenied)
	case KindQuery:
		if err := runQuery(ctx, db, sqlText, maxRows, res); err != nil {
			return nil, err
		}
	case KindMutation:
		sqlRes, err := db.ExecContext(ctx, sqlText)
		if err != nil {
			return nil, err
		}
		if n, err := sqlRes.RowsAffected(); err == nil {
			res.RowsAffected = n
		}
	default:
		if _, err := db.ExecContext(ctx, sqlText); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func runQuery(ctx context.Context, db *sql.DB, sqlText string, maxRows int, res *Result) error {
	rows, err := db.QueryContext(ctx, sqlText)
	if err != nil {
		return err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return err
	}
	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return err
	}
	res.Columns = cols

	for rows.Next() {
		if maxRows > 0 && len(res.Rows) >= maxRows {
			res.Truncated = true
			break
		}
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return err
		}
		for i, v := range values {
			values[i] = dbmeta.NormalizeValue(v, colTypes[i].DatabaseTypeName())
		}
		res.Rows = append(res.Rows, values)
	}
	return rows.Err()
}
