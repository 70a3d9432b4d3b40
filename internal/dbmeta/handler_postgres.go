package dbmeta

import (
	"context"
	"database/sql"
	"sort"
	"strings"
)

// postgresHandler implements DatabaseHandler using information_schema and
// pg_catalog.
type postgresHandler struct{}

// splitSchema separates an optional schema qualifier, defaulting to public.
func splitSchema(tableName string) (schema, rel string) {
	schema, rel = "public", tableName
	if dot := strings.IndexByte(rel, '.'); dot != -1 {
		schema = rel[:dot]
		rel = rel[dot+1:]
	}
	return schema, rel
}

func (h *postgresHandler) LoadColumns(ctx context.Context, db *sql.DB, tableName string) ([]Column, map[string]int, error) {
	schema, rel := splitSchema(tableName)

	query := `SELECT column_name, data_type, is_nullable, column_default IS NOT NULL
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position`
	rows, err := db.QueryContext(ctx, query, schema, rel)
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

func (h *postgresHandler) PrimaryKey(ctx context.Context, db *sql.DB, tableName string) ([]string, error) {
	schema, rel := splitSchema(tableName)

	query := `SELECT a.attname
		FROM pg_index i
		JOIN pg_class c ON c.oid = i.indrelid
		JOIN pg_namespace n ON n.oid = c.relnamespace
		JOIN LATERAL unnest(i.indkey) WITH ORDINALITY AS k(attnum, ord) ON TRUE
		JOIN pg_attribute a ON a.attrelid = i.indrelid AND a.attnum = k.attnum
		WHERE c.relname = $1 AND n.nspname = $2 AND i.indisprimary
		ORDER BY k.ord`
	rows, err := db.QueryContext(ctx, query, rel, schema)
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

func (h *postgresHandler) LoadForeignKeys(ctx context.Context, db *sql.DB, tableName string,
	columnIndex map[string]int, columns []Column) ([]Reference, []Column, error) {
	schema, rel := splitSchema(tableName)

	// pg_constraint keeps the constrained and referenced column lists in
	// matching order, so join the two unnests on ordinality.
	query := `SELECT con.oid::text, att.attname, u.ord, frel.relname, fatt.attname
		FROM pg_constraint con
		JOIN unnest(con.conkey) WITH ORDINALITY AS u(attnum, ord) ON TRUE
		JOIN pg_class c ON c.oid = con.conrelid
		JOIN pg_namespace n ON n.oid = c.relnamespace
		JOIN pg_attribute att ON att.attrelid = c.oid AND att.attnum = u.attnum
		JOIN pg_class frel ON frel.oid = con.confrelid
		JOIN unnest(con.confkey) WITH ORDINALITY AS fu(attnum, ord) ON fu.ord = u.ord
		JOIN pg_attribute fatt ON fatt.attrelid = frel.oid AND fatt.attnum = fu.attnum
		WHERE con.contype = 'f' AND c.relname = $1 AND n.nspname = $2
		ORDER BY con.oid, u.ord`
	rows, err := db.QueryContext(ctx, query, rel, schema)
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
	byID := map[string][]fkCol{}
	var ids []string
	for rows.Next() {
		var id, col, refTable, refCol string
		var ord int
		if err := rows.Scan(&id, &col, &ord, &refTable, &refCol); err != nil {
			return nil, columns, err
		}
		if _, seen := byID[id]; !seen {
			ids = append(ids, id)
		}
		byID[id] = append(byID[id], fkCol{ord: ord, col: col, refTable: refTable, refCol: refCol})
	}
	if err := rows.Err(); err != nil {
		return nil, columns, err
	}

	var references []Reference
	for _, id := range ids {
		cols := byID[id]
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

func (h *postgresHandler) QuoteIdent(ident string) string {
	return quoteIdent(PostgreSQL, ident)
}

func (h *postgresHandler) Placeholder(pos int) string {
	return placeholder(PostgreSQL, pos)
}
