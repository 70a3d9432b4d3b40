package dbmeta

import (
	"context"
	"database/sql"
	"sort"
	"strings"
)

// mysqlHandler implements DatabaseHandler using information_schema.
type mysqlHandler struct{}

func (h *mysqlHandler) LoadColumns(ctx context.Context, db *sql.DB, tableName string) ([]Column, map[string]int, error) {
	query := `SELECT column_name, data_type, is_nullable,
			column_default IS NOT NULL OR extra LIKE '%auto_increment%'
		FROM information_schema.columns
		WHERE table_schema = DATABASE() AND table_name = ?
		ORDER BY ordinal_position`
	rows, err := db.QueryContext(ctx, query, tableName)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var columns []Column
	columnIndex := make(map[string]int)
	for rows.Next() {
		col := Column{Reference: -1}
		var nullable string
		if err := rows.Scan(&col.Name, &col.Type, &nullable, &col.HasDefault); err != nil {
			return nil, nil, err
		}
		col.Nullable = strings.EqualFold(nullable, "yes")
		columnIndex[col.Name] = len(columns)
		columns = append(columns, col)
	}
	return columns, columnIndex, rows.Err()
}

func (h *mysqlHandler) PrimaryKey(ctx context.Context, db *sql.DB, tableName string) ([]string, error) {
	query := `SELECT column_name
		FROM information_schema.key_column_usage
		WHERE table_schema = DATABASE() AND table_name = ? AND constraint_name = 'PRIMARY'
		ORDER BY ordinal_position`
	rows, err := db.QueryContext(ctx, query, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

func (h *mysqlHandler) LoadForeignKeys(ctx context.Context, db *sql.DB, tableName string,
	columnIndex map[string]int, columns []Column) ([]Reference, []Column, error) {
	query := `SELECT constraint_name, column_name, ordinal_position,
			referenced_table_name, referenced_column_name
		FROM information_schema.key_column_usage
		WHERE table_schema = DATABASE() AND table_name = ?
			AND referenced_table_name IS NOT NULL
		ORDER BY constraint_name, ordinal_position`
	rows, err := db.QueryContext(ctx, query, tableName)
	if err != nil {
		return nil, columns, err
	}
	defer rows.Close()

	type fkCol struct {
		ord      int
		col      string
		refTable string
		refCol   string
	}
	byName := map[string][]fkCol{}
	var names []string
	for rows.Next() {
		var name, col, refTable, refCol string
		var ord int
		if err := rows.Scan(&name, &col, &ord, &refTable, &refCol); err != nil {
			return nil, columns, err
		}
		if _, seen := byName[name]; !seen {
			names = append(names, name)
		}
		byName[name] = append(byName[name], fkCol{ord: ord, col: col, refTable: refTable, refCol: refCol})
	}
	if err := rows.Err(); err != nil {
		return nil, columns, err
	}

	var references []Reference
	for _, name := range names {
		cols := byName[name]
		sort.Slice(cols, func(i, j int) bool { return cols[i].ord < cols[j].ord })
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

func (h *mysqlHandler) QuoteIdent(ident string) string {
	return quoteIdent(MySQL, ident)
}

func (h *mysqlHandler) Placeholder(pos int) string {
	return placeholder(MySQL, pos)
}
