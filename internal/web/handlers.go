package web

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"dbdash/internal/dbmeta"
	"dbdash/internal/reports"
	"dbdash/internal/sqlguard"
)

// viewData is the model behind the main dashboard page.
type viewData struct {
	DBName      string
	DBType      string
	Tables      []string
	Table       string
	Columns     []string
	Rows        [][]any
	Editable    bool
	KeyColumns  map[string]bool
	Message     string
	MessageType string
	Reports     []*reports.Report
	QueryText   string
	Query       *sqlguard.Result
}

// reportData is the model behind a report page.
type reportData struct {
	DBName string
	Report *reports.Report
	Result *reports.Result
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.ExecuteTemplate(w, name, data); err != nil {
		s.log.Error("render template", zap.String("template", name), zap.Error(err))
	}
}

// flashRedirect sends the browser back to the table view with a one-shot
// status message carried in the query string.
func (s *Server) flashRedirect(w http.ResponseWriter, r *http.Request, table, message, messageType string) {
	q := url.Values{}
	if table != "" {
		q.Set("table", table)
	}
	q.Set("message", message)
	q.Set("message_type", messageType)
	http.Redirect(w, r, "/view?"+q.Encode(), http.StatusSeeOther)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	http.Redirect(w, r, "/view", http.StatusFound)
}

// handleView renders the table browser: a table picker, the selected
// table's rows, and the record and SQL forms.
func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	data, ok := s.loadView(w, r, r.URL.Query().Get("table"))
	if !ok {
		return
	}
	data.Message = r.URL.Query().Get("message")
	data.MessageType = r.URL.Query().Get("message_type")
	s.render(w, "view.html", data)
}

// loadView assembles the table browser model for the given table, or the
// first table when none is named. On failure it writes the error response
// and returns ok=false.
func (s *Server) loadView(w http.ResponseWriter, r *http.Request, table string) (*viewData, bool) {
	ctx := r.Context()

	tables, err := s.tables(ctx)
	if err != nil {
		s.serverError(w, "list tables", err)
		return nil, false
	}

	data := &viewData{
		DBName:  s.dbName,
		DBType:  s.dbType.String(),
		Tables:  tables,
		Reports: reports.All(),
	}
	if table == "" && len(tables) > 0 {
		table = tables[0]
	}
	if table == "" {
		return data, true
	}

	rel, err := s.relation(ctx, table)
	if err != nil {
		if errors.Is(err, dbmeta.ErrTableNotFound) {
			http.Error(w, fmt.Sprintf("unknown table %q", table), http.StatusNotFound)
			return nil, false
		}
		s.serverError(w, "introspect table", err)
		return nil, false
	}

	cols, rows, err := rel.SelectAll(ctx, s.cfg.MaxRows)
	if err != nil {
		s.serverError(w, "read table", err)
		return nil, false
	}

	data.Table = table
	data.Columns = cols
	data.Rows = rows
	data.Editable = rel.Editable()
	data.KeyColumns = make(map[string]bool, len(rel.Key))
	for _, k := range rel.Key {
		data.KeyColumns[k] = true
	}
	return data, true
}

// handleReport runs one of the prebuilt reports, addressed as /reports/N.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	idText := strings.TrimPrefix(r.URL.Path, "/reports/")
	id, err := strconv.Atoi(idText)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	rep := reports.ByID(id)
	if rep == nil {
		http.NotFound(w, r)
		return
	}

	res, err := rep.Run(r.Context(), s.db, s.dbType, reports.Options{
		AddressPattern: s.cfg.AddressPattern,
	})
	if err != nil {
		s.serverError(w, "run report", err)
		return
	}
	s.render(w, "report.html", &reportData{DBName: s.dbName, Report: rep, Result: res})
}

// handleSQL sends the browser to the dashboard page, which carries the
// SQL console.
func (s *Server) handleSQL(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/view", http.StatusFound)
}

// handleExecuteSQL runs a user-supplied statement. Queries render their
// rows inline on the dashboard page; anything else redirects back with a
// status message.
func (s *Server) handleExecuteSQL(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	table := r.PostFormValue("table")
	sqlText := r.PostFormValue("sql_query")

	res, err := sqlguard.Run(r.Context(), s.db, sqlText, s.cfg.MaxRows)
	if err != nil {
		// Policy rejections are the user's problem; execution failures are
		// worth reporting.
		if !sqlguard.IsRejection(err) {
			s.reportError(err)
		}
		s.flashRedirect(w, r, table, err.Error(), "danger")
		return
	}

	switch res.Kind {
	case sqlguard.KindQuery:
		data, ok := s.loadView(w, r, table)
		if !ok {
			return
		}
		data.QueryText = sqlText
		data.Query = res
		if res.Truncated {
			data.Message = fmt.Sprintf("Result truncated to %d rows", s.cfg.MaxRows)
			data.MessageType = "warning"
		}
		s.render(w, "view.html", data)
	case sqlguard.KindMutation:
		s.flashRedirect(w, r, table,
			fmt.Sprintf("%s completed, %d row(s) affected", res.Verb, res.RowsAffected), "success")
	default:
		s.flashRedirect(w, r, table, fmt.Sprintf("%s executed", res.Verb), "success")
	}
}

// formValues splits a record form into primary key fields (prefixed with
// "pk_") and regular column values. The table field itself is skipped.
func formValues(form url.Values) (key, values map[string]string) {
	key = make(map[string]string)
	values = make(map[string]string)
	for field := range form {
		if field == "table" {
			continue
		}
		if name, ok := strings.CutPrefix(field, "pk_"); ok {
			key[name] = form.Get(field)
			continue
		}
		values[field] = form.Get(field)
	}
	return key, values
}

// recordRelation parses a record mutation form and resolves its target
// table. On failure it writes the response and returns nil.
func (s *Server) recordRelation(w http.ResponseWriter, r *http.Request) *dbmeta.Relation {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return nil
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return nil
	}
	table := r.PostFormValue("table")
	if table == "" {
		http.Error(w, "table is required", http.StatusBadRequest)
		return nil
	}
	rel, err := s.relation(r.Context(), table)
	if err != nil {
		if errors.Is(err, dbmeta.ErrTableNotFound) {
			http.Error(w, fmt.Sprintf("unknown table %q", table), http.StatusNotFound)
			return nil
		}
		s.serverError(w, "introspect table", err)
		return nil
	}
	return rel
}

func (s *Server) handleAddRecord(w http.ResponseWriter, r *http.Request) {
	rel := s.recordRelation(w, r)
	if rel == nil {
		return
	}
	_, values := formValues(r.PostForm)
	if err := rel.InsertRow(r.Context(), values); err != nil {
		s.flashRedirect(w, r, rel.Name, "Error adding record: "+err.Error(), "danger")
		return
	}
	s.flashRedirect(w, r, rel.Name, "Record added successfully", "success")
}

func (s *Server) handleEditRecord(w http.ResponseWriter, r *http.Request) {
	rel := s.recordRelation(w, r)
	if rel == nil {
		return
	}
	key, values := formValues(r.PostForm)
	n, err := rel.UpdateRow(r.Context(), key, values)
	if err != nil {
		s.flashRedirect(w, r, rel.Name, "Error updating record: "+err.Error(), "danger")
		return
	}
	if n == 0 {
		s.flashRedirect(w, r, rel.Name, "No matching record found", "warning")
		return
	}
	s.flashRedirect(w, r, rel.Name, "Record updated successfully", "success")
}

func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	rel := s.recordRelation(w, r)
	if rel == nil {
		return
	}
	key, _ := formValues(r.PostForm)
	n, err := rel.DeleteRow(r.Context(), key)
	if err != nil {
		s.flashRedirect(w, r, rel.Name, "Error deleting record: "+err.Error(), "danger")
		return
	}
	if n == 0 {
		s.flashRedirect(w, r, rel.Name, "No matching record found", "warning")
		return
	}
	s.flashRedirect(w, r, rel.Name, "Record deleted successfully", "success")
}

func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	http.FileServer(http.FS(staticFS)).ServeHTTP(w, r)
}

func (s *Server) serverError(w http.ResponseWriter, what string, err error) {
	s.log.Error(what, zap.Error(err))
	s.reportError(fmt.Errorf("%s: %w", what, err))
	http.Error(w, what+": "+err.Error(), http.StatusInternalServerError)
}

func (s *Server) reportError(err error) {
	if s.cfg.ReportError != nil {
		s.cfg.ReportError(err)
	}
}
