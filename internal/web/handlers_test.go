package web

import (
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"dbdash/internal/dbmeta"
)

func setupTestDB(t *testing.T) *sql.DB {
	tmpFile, err := os.CreateTemp("", "web-test-*.db")
	require.NoError(t, err)
	tmpFile.Close()
	t.Cleanup(func() { os.Remove(tmpFile.Name()) })

	db, err := sql.Open("sqlite3", tmpFile.Name())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	stmts := []string{
		`CREATE TABLE clients (
			account_no INTEGER PRIMARY KEY,
			full_name TEXT NOT NULL,
			address TEXT NOT NULL,
			phone TEXT
		)`,
		`CREATE TABLE services (
			service_code INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			unit TEXT NOT NULL
		)`,
		`CREATE TABLE consumption (
			consumption_id INTEGER PRIMARY KEY,
			account_no INTEGER NOT NULL REFERENCES clients(account_no),
			service_code INTEGER NOT NULL REFERENCES services(service_code),
			period DATE NOT NULL,
			volume NUMERIC NOT NULL,
			amount_due NUMERIC NOT NULL
		)`,
		`CREATE TABLE payments (
			payment_id INTEGER PRIMARY KEY,
			account_no INTEGER NOT NULL REFERENCES clients(account_no),
			service_code INTEGER NOT NULL REFERENCES services(service_code),
			period DATE NOT NULL,
			paid_on DATE NOT NULL,
			amount NUMERIC NOT NULL
		)`,
		`CREATE TABLE tariffs (
			tariff_code INTEGER PRIMARY KEY,
			service_code INTEGER NOT NULL REFERENCES services(service_code),
			zone TEXT,
			unit_price NUMERIC NOT NULL,
			valid_from DATE NOT NULL,
			valid_to DATE
		)`,
		`INSERT INTO clients VALUES
			(1, 'Ivanov I.I.', '10 Pushkin St', '555-0101'),
			(2, 'Petrova A.S.', '3 Garden Ave', NULL)`,
		`INSERT INTO services VALUES (1, 'Water', 'm3'), (2, 'Electricity', 'kWh')`,
		`INSERT INTO consumption VALUES (1, 1, 1, '2025-01-01', 10.0, 25.0)`,
	}
	for _, s := range stmts {
		_, err := db.Exec(s)
		require.NoError(t, err)
	}
	return db
}

func setupTestServer(t *testing.T) (*httptest.Server, *sql.DB) {
	db := setupTestDB(t)

	server, err := NewServer(db, dbmeta.SQLite, "billing", Config{
		Addr:           ":0",
		MaxRows:        100,
		AddressPattern: "%",
	}, zap.NewNop())
	require.NoError(t, err)

	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return ts, db
}

// noRedirectClient returns redirect responses instead of following them.
func noRedirectClient() *http.Client {
	return &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func getBody(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestIndexRedirectsToView(t *testing.T) {
	ts, _ := setupTestServer(t)

	resp, err := noRedirectClient().Get(ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/view", resp.Header.Get("Location"))
}

func TestSQLRedirectsToView(t *testing.T) {
	ts, _ := setupTestServer(t)

	resp, err := noRedirectClient().Get(ts.URL + "/sql")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/view", resp.Header.Get("Location"))
}

func TestViewDefaultTable(t *testing.T) {
	ts, _ := setupTestServer(t)

	status, body := getBody(t, ts.URL+"/view")
	assert.Equal(t, http.StatusOK, status)
	// First table alphabetically.
	assert.Contains(t, body, "<h2>clients</h2>")
	assert.Contains(t, body, "full_name")
	assert.Contains(t, body, "Ivanov I.I.")
}

func TestViewNamedTable(t *testing.T) {
	ts, _ := setupTestServer(t)

	status, body := getBody(t, ts.URL+"/view?table=services")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "Water")
	assert.Contains(t, body, "Electricity")
}

func TestViewUnknownTable(t *testing.T) {
	ts, _ := setupTestServer(t)

	status, _ := getBody(t, ts.URL+"/view?table=no_such_table")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestViewShowsFlashMessage(t *testing.T) {
	ts, _ := setupTestServer(t)

	status, body := getBody(t, ts.URL+"/view?table=clients&message=All+good&message_type=success")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "All good")
	assert.Contains(t, body, "flash-success")
}

func TestAddRecord(t *testing.T) {
	ts, db := setupTestServer(t)

	resp, err := noRedirectClient().PostForm(ts.URL+"/records/add", url.Values{
		"table":      {"clients"},
		"account_no": {""},
		"full_name":  {"Sidorov P.P."},
		"address":    {"7 River Rd"},
		"phone":      {""},
	})
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	loc := resp.Header.Get("Location")
	assert.Contains(t, loc, "table=clients")
	assert.Contains(t, loc, "message_type=success")

	var n int
	require.NoError(t, db.QueryRow(
		"SELECT COUNT(*) FROM clients WHERE full_name = 'Sidorov P.P.'").Scan(&n))
	assert.Equal(t, 1, n)
}

func TestAddRecordInvalidValue(t *testing.T) {
	ts, db := setupTestServer(t)

	resp, err := noRedirectClient().PostForm(ts.URL+"/records/add", url.Values{
		"table":        {"consumption"},
		"account_no":   {"1"},
		"service_code": {"1"},
		"period":       {"2025-02-01"},
		"volume":       {"lots"},
		"amount_due":   {"1"},
	})
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Location"), "message_type=danger")

	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM consumption").Scan(&n))
	assert.Equal(t, 1, n)
}

func TestEditRecord(t *testing.T) {
	ts, db := setupTestServer(t)

	resp, err := noRedirectClient().PostForm(ts.URL+"/records/edit", url.Values{
		"table":         {"clients"},
		"pk_account_no": {"2"},
		"full_name":     {"Petrova A.S."},
		"address":       {"3 Garden Ave"},
		"phone":         {"555-0202"},
	})
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Location"), "message_type=success")

	var phone string
	require.NoError(t, db.QueryRow("SELECT phone FROM clients WHERE account_no = 2").Scan(&phone))
	assert.Equal(t, "555-0202", phone)
}

func TestEditRecordNoMatch(t *testing.T) {
	ts, _ := setupTestServer(t)

	resp, err := noRedirectClient().PostForm(ts.URL+"/records/edit", url.Values{
		"table":         {"clients"},
		"pk_account_no": {"999"},
		"phone":         {"555-0202"},
	})
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Location"), "message_type=warning")
}

func TestDeleteRecord(t *testing.T) {
	ts, db := setupTestServer(t)

	resp, err := noRedirectClient().PostForm(ts.URL+"/records/delete", url.Values{
		"table":             {"consumption"},
		"pk_consumption_id": {"1"},
	})
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Location"), "message_type=success")

	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM consumption").Scan(&n))
	assert.Equal(t, 0, n)
}

func TestDeleteRecordMissingTable(t *testing.T) {
	ts, _ := setupTestServer(t)

	resp, err := noRedirectClient().PostForm(ts.URL+"/records/delete", url.Values{
		"pk_consumption_id": {"1"},
	})
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestExecuteSQLSelect(t *testing.T) {
	ts, _ := setupTestServer(t)

	resp, err := http.PostForm(ts.URL+"/sql/execute", url.Values{
		"table":     {"services"},
		"sql_query": {"SELECT name, unit FROM services ORDER BY name"},
	})
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "Electricity")
	assert.Contains(t, string(body), "Water")
	assert.Contains(t, string(body), "2 row(s)")
}

func TestExecuteSQLMutation(t *testing.T) {
	ts, db := setupTestServer(t)

	resp, err := noRedirectClient().PostForm(ts.URL+"/sql/execute", url.Values{
		"table":     {"services"},
		"sql_query": {"UPDATE services SET unit = 'u' WHERE service_code = 1"},
	})
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	loc := resp.Header.Get("Location")
	assert.Contains(t, loc, "message_type=success")

	var unit string
	require.NoError(t, db.QueryRow("SELECT unit FROM services WHERE service_code = 1").Scan(&unit))
	assert.Equal(t, "u", unit)
}

func TestExecuteSQLDenied(t *testing.T) {
	ts, db := setupTestServer(t)

	resp, err := noRedirectClient().PostForm(ts.URL+"/sql/execute", url.Values{
		"table":     {"services"},
		"sql_query": {"DROP TABLE services"},
	})
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Location"), "message_type=danger")

	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM services").Scan(&n))
	assert.Equal(t, 2, n)
}

func TestReportPage(t *testing.T) {
	ts, _ := setupTestServer(t)

	status, body := getBody(t, ts.URL+"/reports/4")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "Payment sheet")

	status, _ = getBody(t, ts.URL+"/reports/99")
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = getBody(t, ts.URL+"/reports/abc")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestTablesInfoAPI(t *testing.T) {
	ts, _ := setupTestServer(t)

	resp, err := http.Get(ts.URL + "/api/tables/info")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "application/json")

	var payload struct {
		Tables []struct {
			Name        string `json:"name"`
			RowCount    int64  `json:"row_count"`
			ColumnCount int    `json:"column_count"`
			Editable    bool   `json:"editable"`
		} `json:"tables"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	require.Len(t, payload.Tables, 5)

	byName := map[string]int64{}
	for _, tbl := range payload.Tables {
		byName[tbl.Name] = tbl.RowCount
		assert.True(t, tbl.Editable, tbl.Name)
	}
	assert.Equal(t, int64(2), byName["clients"])
	assert.Equal(t, int64(1), byName["consumption"])
}

func TestTableSchemaAPI(t *testing.T) {
	ts, _ := setupTestServer(t)

	resp, err := http.Get(ts.URL + "/api/tables/consumption/schema")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var schema struct {
		Table      string   `json:"table"`
		PrimaryKey []string `json:"primary_key"`
		Editable   bool     `json:"editable"`
		Columns    []struct {
			Name       string `json:"name"`
			InputType  string `json:"input_type"`
			Required   bool   `json:"required"`
			PrimaryKey bool   `json:"primary_key"`
			References string `json:"references"`
			Options    []any  `json:"options"`
		} `json:"columns"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&schema))

	assert.Equal(t, "consumption", schema.Table)
	assert.Equal(t, []string{"consumption_id"}, schema.PrimaryKey)
	assert.True(t, schema.Editable)

	cols := map[string]int{}
	for i, c := range schema.Columns {
		cols[c.Name] = i
	}

	account := schema.Columns[cols["account_no"]]
	assert.Equal(t, "clients", account.References)
	assert.Len(t, account.Options, 2)

	period := schema.Columns[cols["period"]]
	assert.Equal(t, "date", period.InputType)
	assert.True(t, period.Required)

	id := schema.Columns[cols["consumption_id"]]
	assert.True(t, id.PrimaryKey)
}

func TestTableSchemaAPIUnknownTable(t *testing.T) {
	ts, _ := setupTestServer(t)

	resp, err := http.Get(ts.URL + "/api/tables/no_such_table/schema")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSecurityHeaders(t *testing.T) {
	ts, _ := setupTestServer(t)

	resp, err := http.Get(ts.URL + "/view")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
	assert.NotEmpty(t, resp.Header.Get("Content-Security-Policy"))
}

func TestCORSPreflight(t *testing.T) {
	ts, _ := setupTestServer(t)

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/api/tables/info", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestStaticAssets(t *testing.T) {
	ts, _ := setupTestServer(t)

	status, body := getBody(t, ts.URL+"/static/style.css")
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, strings.Contains(body, "body"))
}

func TestMethodNotAllowed(t *testing.T) {
	ts, _ := setupTestServer(t)

	resp, err := http.Get(ts.URL + "/records/add")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp2, err := http.Post(ts.URL+"/view", "text/plain", nil)
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp2.StatusCode)
}

func TestRecoverPanics(t *testing.T) {
	var captured []error
	server, err := NewServer(nil, dbmeta.SQLite, "billing", Config{
		ReportError: func(e error) { captured = append(captured, e) },
	}, zap.NewNop())
	require.NoError(t, err)

	h := server.recoverPanics(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/view", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Len(t, captured, 1)
	assert.Contains(t, captured[0].Error(), "boom")
}

func TestExecuteSQLErrorReporting(t *testing.T) {
	db := setupTestDB(t)

	var captured []error
	server, err := NewServer(db, dbmeta.SQLite, "billing", Config{
		Addr:           ":0",
		MaxRows:        100,
		AddressPattern: "%",
		ReportError:    func(e error) { captured = append(captured, e) },
	}, zap.NewNop())
	require.NoError(t, err)

	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)

	post := func(query string) {
		resp, err := noRedirectClient().PostForm(ts.URL+"/sql/execute", url.Values{"sql_query": {query}})
		require.NoError(t, err)
		resp.Body.Close()
	}

	// A denied verb is a policy rejection, not a reportable failure.
	post("DROP TABLE clients")
	assert.Empty(t, captured)

	// A query against a missing table is an execution failure.
	post("SELECT * FROM no_such_table")
	require.Len(t, captured, 1)
	assert.Contains(t, captured[0].Error(), "no_such_table")
}
