package dbmeta

import (
	"testing"
	"time"
)

func TestQuoteIdent(t *testing.T) {
	tests := []struct {
		name   string
		dbType DatabaseType
		ident  string
		want   string
	}{
		{"safe lowercase", PostgreSQL, "account_no", "account_no"},
		{"safe with digits", SQLite, "col2", "col2"},
		{"reserved word", PostgreSQL, "select", `"select"`},
		{"reserved word mysql", MySQL, "order", "`order`"},
		{"mixed case", PostgreSQL, "FullName", `"FullName"`},
		{"mixed case mysql", MySQL, "FullName", "`FullName`"},
		{"leading digit", SQLite, "2col", `"2col"`},
		{"embedded quote", PostgreSQL, `we"ird`, `"we""ird"`},
		{"embedded backtick mysql", MySQL, "we`ird", "`we``ird`"},
		{"space", SQLite, "full name", `"full name"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := quoteIdent(tt.dbType, tt.ident); got != tt.want {
				t.Errorf("quoteIdent(%v, %q) = %q, want %q", tt.dbType, tt.ident, got, tt.want)
			}
		})
	}
}

func TestQuoteQualified(t *testing.T) {
	if got := quoteQualified(PostgreSQL, "public.Payments"); got != `public."Payments"` {
		t.Errorf("got %q", got)
	}
	if got := quoteQualified(SQLite, "payments"); got != "payments" {
		t.Errorf("got %q", got)
	}
}

func TestPlaceholder(t *testing.T) {
	if got := placeholder(PostgreSQL, 3); got != "$3" {
		t.Errorf("postgres placeholder = %q, want $3", got)
	}
	if got := placeholder(SQLite, 3); got != "?" {
		t.Errorf("sqlite placeholder = %q, want ?", got)
	}
	if got := placeholder(MySQL, 1); got != "?" {
		t.Errorf("mysql placeholder = %q, want ?", got)
	}
}

func TestNormalizeValue(t *testing.T) {
	midnight := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	afternoon := time.Date(2025, 3, 1, 14, 30, 5, 0, time.UTC)

	tests := []struct {
		name    string
		value   any
		colType string
		want    any
	}{
		{"nil", nil, "text", nil},
		{"date at midnight", midnight, "date", "2025-03-01"},
		{"timestamp", afternoon, "timestamp", "2025-03-01T14:30:05Z"},
		{"decimal bytes", []byte("12.50"), "numeric(10,2)", 12.5},
		{"integer bytes", []byte("42"), "bigint", int64(42)},
		{"text bytes", []byte("hello"), "text", "hello"},
		{"unparseable decimal", []byte("n/a"), "numeric", "n/a"},
		{"int passthrough", int64(7), "integer", int64(7)},
		{"string passthrough", "plain", "text", "plain"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeValue(tt.value, tt.colType); got != tt.want {
				t.Errorf("NormalizeValue(%v, %q) = %v (%T), want %v (%T)",
					tt.value, tt.colType, got, got, tt.want, tt.want)
			}
		})
	}
}

func TestInputType(t *testing.T) {
	tests := []struct {
		colType string
		want    string
	}{
		{"INTEGER", "number"},
		{"bigint", "number"},
		{"numeric(10,2)", "number"},
		{"double precision", "number"},
		{"timestamp with time zone", "datetime-local"},
		{"datetime", "datetime-local"},
		{"date", "date"},
		{"time", "time"},
		{"boolean", "checkbox"},
		{"text", "text"},
		{"character varying(255)", "text"},
	}

	for _, tt := range tests {
		if got := InputType(tt.colType); got != tt.want {
			t.Errorf("InputType(%q) = %q, want %q", tt.colType, got, tt.want)
		}
	}
}
