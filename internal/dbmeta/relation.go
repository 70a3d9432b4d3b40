package dbmeta

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// ErrTableNotFound is returned when a relation is requested for a table the
// database does not have.
var ErrTableNotFound = errors.New("table not found")

// NewRelation loads the full schema metadata for one table: columns in
// definition order, the primary key, and outgoing foreign keys.
func NewRelation(ctx context.Context, db *sql.DB, dbType DatabaseType, tableName string) (*Relation, error) {
	if tableName == "" {
		return nil, fmt.Errorf("table name is required")
	}
	handler, err := NewDatabaseHandler(dbType)
	if err != nil {
		return nil, err
	}

	rel := &Relation{
		DB:      db,
		Type:    dbType,
		Name:    tableName,
		handler: handler,
	}

	rel.Columns, rel.ColumnIndex, err = handler.LoadColumns(ctx, db, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to load table schema: %w", err)
	}
	if len(rel.Columns) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, tableName)
	}

	rel.Key, err = handler.PrimaryKey(ctx, db, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to load primary key: %w", err)
	}

	rel.References, rel.Columns, err = handler.LoadForeignKeys(ctx, db, tableName, rel.ColumnIndex, rel.Columns)
	if err != nil {
		return nil, fmt.Errorf("failed to load foreign keys: %w", err)
	}
	return rel, nil
}

// ColumnNames returns the column names in definition order.
func (rel *Relation) ColumnNames() []string {
	names := make([]string, len(rel.Columns))
	for i, c := range rel.Columns {
		names[i] = c.Name
	}
	return names
}

// RequiredColumns returns the columns a create form must fill: NOT NULL and
// no server-side default.
func (rel *Relation) RequiredColumns() []string {
	var required []string
	for _, c := range rel.Columns {
		if !c.Nullable && !c.HasDefault {
			required = append(required, c.Name)
		}
	}
	return required
}

// Editable reports whether the relation supports row-level edits: without a
// primary key there is no safe way to address a single row.
func (rel *Relation) Editable() bool {
	return len(rel.Key) > 0
}

// SelectAll fetches up to limit rows ordered by the primary key (or
// definition order when there is none), with values normalized for display.
func (rel *Relation) SelectAll(ctx context.Context, limit int) ([]string, [][]any, error) {
	var b strings.Builder
	b.WriteString("SELECT ")
	quoted := make([]string, len(rel.Columns))
	for i, c := range rel.Columns {
		quoted[i] = rel.handler.QuoteIdent(c.Name)
	}
	b.WriteString(strings.Join(quoted, ", "))
	b.WriteString(" FROM ")
	b.WriteString(quoteQualified(rel.Type, rel.Name))
	if len(rel.Key) > 0 {
		b.WriteString(" ORDER BY ")
		keyParts := make([]string, len(rel.Key))
		for i, k := range rel.Key {
			keyParts[i] = rel.handler.QuoteIdent(k)
		}
		b.WriteString(strings.Join(keyParts, ", "))
	}
	if limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", limit)
	}

	rows, err := rel.DB.QueryContext(ctx, b.String())
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var data [][]any
	for rows.Next() {
		vals := make([]any, len(rel.Columns))
		scanArgs := make([]any, len(vals))
		for i := range vals {
			scanArgs[i] = &vals[i]
		}
		if err := rows.Scan(scanArgs...); err != nil {
			return nil, nil, err
		}
		for i := range vals {
			vals[i] = NormalizeValue(vals[i], rel.Columns[i].Type)
		}
		data = append(data, vals)
	}
	return rel.ColumnNames(), data, rows.Err()
}

// FKOptions returns the distinct values of the referenced column for a
// single-column foreign key, for use as select-input options. Multi-column
// foreign keys fall back to free-form input and return nil.
func (rel *Relation) FKOptions(ctx context.Context, ref Reference) ([]any, error) {
	if len(ref.Columns) != 1 {
		return nil, nil
	}
	var refCol string
	for _, rc := range ref.Columns {
		refCol = rc
	}
	query := fmt.Sprintf("SELECT DISTINCT %s FROM %s ORDER BY %s",
		rel.handler.QuoteIdent(refCol),
		quoteQualified(rel.Type, ref.Table),
		rel.handler.QuoteIdent(refCol))

	rows, err := rel.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var values []any
	for rows.Next() {
		var v any
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		values = append(values, NormalizeValue(v, ""))
	}
	return values, rows.Err()
}

// RowCount returns the number of rows in the table.
func (rel *Relation) RowCount(ctx context.Context) (int64, error) {
	query := "SELECT COUNT(*) FROM " + quoteQualified(rel.Type, rel.Name)
	var n int64
	if err := rel.DB.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
