package sqlguard

import (
	"errors"
	"strings"
	"testing"
)

func TestClassifyQueries(t *testing.T) {
	queries := []string{
		"SELECT * FROM clients",
		"  select account_no, full_name from clients where account_no = 1  ",
		"SELECT 'drop table clients'",
		"-- leading comment\nSELECT 1",
		"/* block comment */ SELECT 1",
		"WITH debts AS (SELECT 1 AS n) SELECT * FROM debts",
		"SELECT 1 UNION SELECT 2",
		"SHOW TABLES",
		"EXPLAIN SELECT * FROM clients",
		"SELECT 1;",
	}
	for _, q := range queries {
		kind, _, err := Classify(q)
		if err != nil {
			t.Errorf("Classify(%q) returned error: %v", q, err)
			continue
		}
		if kind != KindQuery {
			t.Errorf("Classify(%q) = %v, want query", q, kind)
		}
	}
}

func TestClassifyMutations(t *testing.T) {
	tests := []struct {
		sql  string
		verb string
	}{
		{"INSERT INTO clients (account_no) VALUES (9)", "INSERT"},
		{"UPDATE clients SET phone = NULL WHERE account_no = 1", "UPDATE"},
		{"DELETE FROM payments WHERE payment_id = 3", "DELETE"},
		{"delete from payments", "DELETE"},
	}
	for _, tt := range tests {
		kind, verb, err := Classify(tt.sql)
		if err != nil {
			t.Errorf("Classify(%q) returned error: %v", tt.sql, err)
			continue
		}
		if kind != KindMutation {
			t.Errorf("Classify(%q) = %v, want mutation", tt.sql, kind)
		}
		if verb != tt.verb {
			t.Errorf("Classify(%q) verb = %q, want %q", tt.sql, verb, tt.verb)
		}
	}
}

func TestClassifyDenied(t *testing.T) {
	statements := []string{
		"DROP TABLE clients",
		"drop table if exists clients",
		"CREATE TABLE x (y INT)",
		"ALTER TABLE clients ADD COLUMN email TEXT",
		"TRUNCATE TABLE payments",
		"GRANT ALL ON clients TO web",
		"REVOKE ALL ON clients FROM web",
		"CREATE INDEX idx ON clients (full_name)",
		"RENAME TABLE clients TO people",
	}
	for _, s := range statements {
		kind, _, err := Classify(s)
		if err != nil {
			t.Errorf("Classify(%q) returned error: %v", s, err)
			continue
		}
		if kind != KindDenied {
			t.Errorf("Classify(%q) = %v, want denied", s, kind)
		}
	}
}

func TestClassifyEmpty(t *testing.T) {
	for _, s := range []string{"", "   ", "\n\t", "-- nothing here", "/* still nothing */"} {
		_, _, err := Classify(s)
		if !errors.Is(err, ErrEmptyQuery) {
			t.Errorf("Classify(%q) err = %v, want ErrEmptyQuery", s, err)
		}
	}
}

func TestClassifyMultipleStatements(t *testing.T) {
	statements := []string{
		"SELECT 1; SELECT 2",
		"SELECT 1; DROP TABLE clients",
		"DELETE FROM payments; DELETE FROM clients",
	}
	for _, s := range statements {
		_, _, err := Classify(s)
		if !errors.Is(err, ErrMultipleStatements) {
			t.Errorf("Classify(%q) err = %v, want ErrMultipleStatements", s, err)
		}
	}
}

func TestClassifySemicolonInString(t *testing.T) {
	kind, _, err := Classify("SELECT 'a;b' AS v")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if kind != KindQuery {
		t.Errorf("kind = %v, want query", kind)
	}
}

func TestClassifyFallbackDialect(t *testing.T) {
	// Not parseable as generic SQL; falls back to keyword classification.
	tests := []struct {
		sql  string
		want Kind
	}{
		{"PRAGMA table_info('clients')", KindQuery},
		{"VACUUM", KindOther},
		{"SELECT account_no FROM clients FOR UPDATE SKIP LOCKED LIMIT 1", KindQuery},
	}
	for _, tt := range tests {
		kind, _, err := Classify(tt.sql)
		if err != nil {
			t.Errorf("Classify(%q) returned error: %v", tt.sql, err)
			continue
		}
		if kind != tt.want {
			t.Errorf("Classify(%q) = %v, want %v", tt.sql, kind, tt.want)
		}
	}
}

func TestStripStringsAndComments(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"SELECT 'drop table x'", "SELECT ''"},
		{"SELECT 'it''s fine'", "SELECT ''"},
		{"SELECT 1 -- trailing", "SELECT 1  "},
		{"SELECT /* inline */ 1", "SELECT   1"},
		{"SELECT 1 # mysql comment", "SELECT 1  "},
		{"SELECT \"quoted_ident\" FROM t", "SELECT \"quoted_ident\" FROM t"},
	}
	for _, tt := range tests {
		if got := stripStringsAndComments(tt.in); got != tt.want {
			t.Errorf("stripStringsAndComments(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLeadingKeyword(t *testing.T) {
	if got := leadingKeyword("select * from t"); got != "SELECT" {
		t.Errorf("got %q", got)
	}
	if got := leadingKeyword("EXPLAIN(FORMAT JSON) SELECT 1"); got != "EXPLAIN" {
		t.Errorf("got %q", got)
	}
	if got := leadingKeyword("   "); got != "" {
		t.Errorf("got %q", got)
	}
}

func TestKindString(t *testing.T) {
	if KindQuery.String() != "query" || KindDenied.String() != "denied" {
		t.Error("Kind.String mismatch")
	}
	if !strings.Contains(KindMutation.String(), "mutation") {
		t.Error("Kind.String mismatch")
	}
}
