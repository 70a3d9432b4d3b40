package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"dbdash/internal/dbmeta"
)

// tableInfo describes one table in the /api/tables/info response.
type tableInfo struct {
	Name        string `json:"name"`
	RowCount    int64  `json:"row_count"`
	ColumnCount int    `json:"column_count"`
	Editable    bool   `json:"editable"`
}

// columnSchema describes one column in the /api/tables/{name}/schema
// response. Options is populated for single-column foreign keys so the UI
// can render a select input.
type columnSchema struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	InputType  string `json:"input_type"`
	Required   bool   `json:"required"`
	PrimaryKey bool   `json:"primary_key"`
	References string `json:"references,omitempty"`
	Options    []any  `json:"options,omitempty"`
}

type tableSchema struct {
	Table      string         `json:"table"`
	PrimaryKey []string       `json:"primary_key"`
	Editable   bool           `json:"editable"`
	Columns    []columnSchema `json:"columns"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("encode json", zap.Error(err))
	}
}

func (s *Server) jsonError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

// handleTablesInfo lists the database's tables with row counts.
func (s *Server) handleTablesInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.jsonError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	ctx := r.Context()

	tables, err := s.tables(ctx)
	if err != nil {
		s.log.Error("list tables", zap.Error(err))
		s.jsonError(w, http.StatusInternalServerError, err.Error())
		return
	}

	infos := make([]tableInfo, 0, len(tables))
	for _, table := range tables {
		rel, err := s.relation(ctx, table)
		if err != nil {
			s.log.Error("introspect table", zap.String("table", table), zap.Error(err))
			s.jsonError(w, http.StatusInternalServerError, err.Error())
			return
		}
		count, err := rel.RowCount(ctx)
		if err != nil {
			s.jsonError(w, http.StatusInternalServerError, err.Error())
			return
		}
		infos = append(infos, tableInfo{
			Name:        table,
			RowCount:    count,
			ColumnCount: len(rel.Columns),
			Editable:    rel.Editable(),
		})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"tables": infos})
}

// handleTableSchema returns the column metadata the UI needs to build add
// and edit forms for one table, addressed as /api/tables/{name}/schema.
func (s *Server) handleTableSchema(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.jsonError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/api/tables/")
	table, tail, ok := strings.Cut(rest, "/")
	if !ok || tail != "schema" || table == "" {
		s.jsonError(w, http.StatusNotFound, "not found")
		return
	}
	ctx := r.Context()

	rel, err := s.relation(ctx, table)
	if err != nil {
		if errors.Is(err, dbmeta.ErrTableNotFound) {
			s.jsonError(w, http.StatusNotFound, fmt.Sprintf("unknown table %q", table))
			return
		}
		s.log.Error("introspect table", zap.String("table", table), zap.Error(err))
		s.jsonError(w, http.StatusInternalServerError, err.Error())
		return
	}

	keySet := make(map[string]bool, len(rel.Key))
	for _, k := range rel.Key {
		keySet[k] = true
	}

	schema := tableSchema{
		Table:      rel.Name,
		PrimaryKey: rel.Key,
		Editable:   rel.Editable(),
		Columns:    make([]columnSchema, 0, len(rel.Columns)),
	}
	for _, col := range rel.Columns {
		cs := columnSchema{
			Name:       col.Name,
			Type:       col.Type,
			InputType:  dbmeta.InputType(col.Type),
			Required:   !col.Nullable && !col.HasDefault,
			PrimaryKey: keySet[col.Name],
		}
		if col.Reference >= 0 && col.Reference < len(rel.References) {
			ref := rel.References[col.Reference]
			cs.References = ref.Table
			options, err := rel.FKOptions(ctx, ref)
			if err != nil {
				s.log.Warn("load foreign key options",
					zap.String("table", table),
					zap.String("column", col.Name),
					zap.Error(err))
			} else {
				cs.Options = options
			}
		}
		schema.Columns = append(schema.Columns, cs)
	}
	s.writeJSON(w, http.StatusOK, schema)
}
