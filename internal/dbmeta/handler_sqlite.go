package dbmeta

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
)

// sqliteHandler implements DatabaseHandler using PRAGMA statements.
type sqliteHandler struct{}

// pragmaIdent embeds a table name into a PRAGMA, which cannot take
// placeholders. Single quotes are doubled.
func pragmaIdent(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

func (h *sqliteHandler) LoadColumns(ctx context.Context, db *sql.DB, tableName string) ([]Column, map[string]int, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", pragmaIdent(tableName)))
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var columns []Column
	columnIndex := make(map[string]int)
	for rows.Next() {
		// cid, name, type, notnull, dflt_value, pk
		var cid, notNull, pk int
		var dflt sql.NullString
		col := Column{Reference: -1}
		if err := rows.Scan(&cid, &col.Name, &col.Type, &notNull, &dflt, &pk); err != nil {
			return nil, nil, err
		}
		col.Nullable = notNull == 0
		// An INTEGER PRIMARY KEY is a rowid alias and auto-assigns.
		col.HasDefault = dflt.Valid || (pk > 0 && strings.EqualFold(col.Type, "integer"))
		columnIndex[col.Name] = len(columns)
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	if len(columns) == 0 {
		return nil, nil, fmt.Errorf("%w: %s", ErrTableNotFound, tableName)
	}
	return columns, columnIndex, nil
}

func (h *sqliteHandler) PrimaryKey(ctx context.Context, db *sql.DB, tableName string) ([]string, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", pragmaIdent(tableName)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type pkEntry struct {
		ord  int
		name string
	}
	var entries []pkEntry
	for rows.Next() {
		var cid, notNull, pk int
		var name, colType string
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pk); err != nil {
			return nil, err
		}
		if pk > 0 {
			entries = append(entries, pkEntry{ord: pk, name: name})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ord < entries[j].ord })
	cols := make([]string, 0, len(entries))
	for _, e := range entries {
		cols = append(cols, e.name)
	}
	return cols, nil
}

func (h *sqliteHandler) LoadForeignKeys(ctx context.Context, db *sql.DB, tableName string,
	columnIndex map[string]int, columns []Column) ([]Reference, []Column, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA foreign_key_list(%s)", pragmaIdent(tableName)))
	if err != nil {
		return nil, columns, err
	}
	defer rows.Close()

	type fkCol struct {
		seq      int
		col      string
		refTable string
		refCol   string
	}
	byID := map[int][]fkCol{}
	var ids []int
	for rows.Next() {
		// id, seq, table, from, to, on_update, on_delete, match
		var id, seq int
		var refTable, fromCol, onUpd, onDel, match string
		var toCol sql.NullString
		if err := rows.Scan(&id, &seq, &refTable, &fromCol, &toCol, &onUpd, &onDel, &match); err != nil {
			return nil, columns, err
		}
		// to is NULL when the FK references the parent's primary key implicitly
		target := toCol.String
		if !toCol.Valid {
			target = fromCol
		}
		if _, seen := byID[id]; !seen {
			ids = append(ids, id)
		}
		byID[id] = append(byID[id], fkCol{seq: seq, col: fromCol, refTable: refTable, refCol: target})
	}
	if err := rows.Err(); err != nil {
		return nil, columns, err
	}

	sort.Ints(ids)
	var references []Reference
	for _, id := range ids {
		cols := byID[id]
		sort.Slice(cols, func(i, j int) bool { return cols[i].seq < cols[j].seq })
		ref := Reference{Table: cols[0].refTable, Columns: make(map[string]string, len(cols))}
		refIdx := len(references)
		for _, c := range cols {
			ref.Columns[c.col] = c.refCol
			if idx, ok := columnIndex[c.col]; ok {
				columns[idx].Reference = refIdx
			}
		}
		references = append(references, ref)
	}
	return references, columns, nil
}

func (h *sqliteHandler) QuoteIdent(ident string) string {
	return quoteIdent(SQLite, ident)
}

func (h *sqliteHandler) Placeholder(pos int) string {
	return placeholder(SQLite, pos)
}
