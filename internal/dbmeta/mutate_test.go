package dbmeta

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestInsertRow(t *testing.T) {
	db := setupBillingDB(t)

	rel, err := NewRelation(context.Background(), db, SQLite, "clients")
	if err != nil {
		t.Fatalf("NewRelation failed: %v", err)
	}

	err = rel.InsertRow(context.Background(), map[string]string{
		"account_no": "",
		"full_name":  "Sidorov P.P.",
		"address":    "7 River Rd",
		"phone":      "",
	})
	if err != nil {
		t.Fatalf("InsertRow failed: %v", err)
	}

	var fullName string
	var phone any
	err = db.QueryRow("SELECT full_name, phone FROM clients WHERE account_no = 3").Scan(&fullName, &phone)
	if err != nil {
		t.Fatalf("row not inserted: %v", err)
	}
	if fullName != "Sidorov P.P." {
		t.Errorf("full_name = %q", fullName)
	}
	if phone != nil {
		t.Errorf("empty phone should be NULL, got %v", phone)
	}
}

func TestInsertRowCoercion(t *testing.T) {
	db := setupBillingDB(t)

	rel, err := NewRelation(context.Background(), db, SQLite, "consumption")
	if err != nil {
		t.Fatalf("NewRelation failed: %v", err)
	}

	err = rel.InsertRow(context.Background(), map[string]string{
		"account_no":   "2",
		"service_code": "2",
		"period":       "2025-02-01",
		"volume":       "88.5",
		"amount_due":   "44.25",
	})
	if err != nil {
		t.Fatalf("InsertRow failed: %v", err)
	}

	var volume float64
	err = db.QueryRow(`SELECT volume FROM consumption
		WHERE account_no = 2 AND service_code = 2`).Scan(&volume)
	if err != nil {
		t.Fatalf("row not inserted: %v", err)
	}
	if volume != 88.5 {
		t.Errorf("volume = %v", volume)
	}
}

func TestInsertRowRejectsBadNumber(t *testing.T) {
	db := setupBillingDB(t)

	rel, err := NewRelation(context.Background(), db, SQLite, "consumption")
	if err != nil {
		t.Fatalf("NewRelation failed: %v", err)
	}

	err = rel.InsertRow(context.Background(), map[string]string{
		"account_no":   "1",
		"service_code": "1",
		"period":       "2025-02-01",
		"volume":       "lots",
		"amount_due":   "1",
	})
	if err == nil {
		t.Fatal("expected error for non-numeric volume")
	}
	if !strings.Contains(err.Error(), "volume") {
		t.Errorf("error should name the column: %v", err)
	}
}

func TestInsertRowRejectsBadDate(t *testing.T) {
	db := setupBillingDB(t)

	rel, err := NewRelation(context.Background(), db, SQLite, "consumption")
	if err != nil {
		t.Fatalf("NewRelation failed: %v", err)
	}

	err = rel.InsertRow(context.Background(), map[string]string{
		"account_no":   "1",
		"service_code": "1",
		"period":       "January 2025",
		"volume":       "1",
		"amount_due":   "1",
	})
	if err == nil {
		t.Fatal("expected error for malformed date")
	}
}

func TestUpdateRow(t *testing.T) {
	db := setupBillingDB(t)

	rel, err := NewRelation(context.Background(), db, SQLite, "clients")
	if err != nil {
		t.Fatalf("NewRelation failed: %v", err)
	}

	n, err := rel.UpdateRow(context.Background(),
		map[string]string{"account_no": "1"},
		map[string]string{"phone": "555-9999", "account_no": "1"})
	if err != nil {
		t.Fatalf("UpdateRow failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("affected = %d, want 1", n)
	}

	var phone string
	if err := db.QueryRow("SELECT phone FROM clients WHERE account_no = 1").Scan(&phone); err != nil {
		t.Fatal(err)
	}
	if phone != "555-9999" {
		t.Errorf("phone = %q", phone)
	}
}

func TestUpdateRowNoMatch(t *testing.T) {
	db := setupBillingDB(t)

	rel, err := NewRelation(context.Background(), db, SQLite, "clients")
	if err != nil {
		t.Fatalf("NewRelation failed: %v", err)
	}

	n, err := rel.UpdateRow(context.Background(),
		map[string]string{"account_no": "999"},
		map[string]string{"phone": "555-9999"})
	if err != nil {
		t.Fatalf("UpdateRow failed: %v", err)
	}
	if n != 0 {
		t.Errorf("affected = %d, want 0", n)
	}
}

func TestUpdateRowMissingKey(t *testing.T) {
	db := setupBillingDB(t)

	rel, err := NewRelation(context.Background(), db, SQLite, "clients")
	if err != nil {
		t.Fatalf("NewRelation failed: %v", err)
	}

	_, err = rel.UpdateRow(context.Background(),
		map[string]string{},
		map[string]string{"phone": "555-9999"})
	if !errors.Is(err, ErrMissingKey) {
		t.Errorf("err = %v, want ErrMissingKey", err)
	}
}

func TestDeleteRow(t *testing.T) {
	db := setupBillingDB(t)

	rel, err := NewRelation(context.Background(), db, SQLite, "payments")
	if err != nil {
		t.Fatalf("NewRelation failed: %v", err)
	}

	if _, err := db.Exec(`INSERT INTO payments
		(payment_id, account_no, service_code, period, paid_on, amount)
		VALUES (1, 1, 1, '2025-01-01', '2025-01-15', 25.0)`); err != nil {
		t.Fatal(err)
	}

	n, err := rel.DeleteRow(context.Background(), map[string]string{"payment_id": "1"})
	if err != nil {
		t.Fatalf("DeleteRow failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("affected = %d, want 1", n)
	}

	n, err = rel.DeleteRow(context.Background(), map[string]string{"payment_id": "1"})
	if err != nil {
		t.Fatalf("second DeleteRow failed: %v", err)
	}
	if n != 0 {
		t.Errorf("second delete affected = %d, want 0", n)
	}
}
