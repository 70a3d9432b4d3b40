package dbmeta

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrMissingKey is returned when a row mutation does not supply every
// primary key column.
var ErrMissingKey = errors.New("incomplete primary key")

// coerceValue converts a raw form value into a driver-friendly Go value
// based on the column's declared type. An empty string becomes NULL for
// nullable columns. Unparseable input is passed through and left to the
// engine to reject.
func (rel *Relation) coerceValue(col Column, raw string) (any, error) {
	if raw == "" {
		if col.Nullable {
			return nil, nil
		}
		return "", nil
	}

	t := strings.ToLower(col.Type)
	switch {
	case strings.Contains(t, "bool"):
		switch strings.ToLower(strings.TrimSpace(raw)) {
		case "1", "true", "t", "on", "yes":
			return true, nil
		case "0", "false", "f", "off", "no":
			return false, nil
		}
		return raw, nil
	case isIntegerType(t):
		if v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64); err == nil {
			return v, nil
		}
		return nil, fmt.Errorf("invalid integer for column %s: %q", col.Name, raw)
	case isNumericType(t):
		if v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil {
			return v, nil
		}
		return nil, fmt.Errorf("invalid number for column %s: %q", col.Name, raw)
	case strings.Contains(t, "timestamp"), strings.Contains(t, "datetime"):
		for _, layout := range []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02 15:04:05", "2006-01-02"} {
			if v, err := time.Parse(layout, strings.TrimSpace(raw)); err == nil {
				return v, nil
			}
		}
		return nil, fmt.Errorf("invalid timestamp for column %s: %q (use ISO 8601)", col.Name, raw)
	case strings.Contains(t, "date"):
		if _, err := time.Parse("2006-01-02", strings.TrimSpace(raw)); err != nil {
			return nil, fmt.Errorf("invalid date for column %s: %q (use YYYY-MM-DD)", col.Name, raw)
		}
		return strings.TrimSpace(raw), nil
	default:
		return raw, nil
	}
}

// InsertRow builds and executes a parameterized INSERT from form values.
// Unknown keys are dropped; only known columns reach the statement.
func (rel *Relation) InsertRow(ctx context.Context, values map[string]string) error {
	var (
		cols         []string
		placeholders []string
		args         []any
	)
	// Walk columns in definition order for a deterministic statement.
	for _, col := range rel.Columns {
		raw, ok := values[col.Name]
		if !ok {
			continue
		}
		if raw == "" && col.HasDefault {
			// Let the engine fill the default.
			continue
		}
		v, err := rel.coerceValue(col, raw)
		if err != nil {
			return err
		}
		cols = append(cols, rel.handler.QuoteIdent(col.Name))
		placeholders = append(placeholders, rel.handler.Placeholder(len(args)+1))
		args = append(args, v)
	}
	if len(cols) == 0 {
		return fmt.Errorf("no values to insert")
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteQualified(rel.Type, rel.Name),
		strings.Join(cols, ", "),
		strings.Join(placeholders, ", "))

	if _, err := rel.DB.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert failed: %w", err)
	}
	return nil
}

// whereKey builds the primary key WHERE clause, continuing the placeholder
// numbering from argPos. Every key column must be present in key.
func (rel *Relation) whereKey(key map[string]string, argPos int) (string, []any, error) {
	if len(rel.Key) == 0 {
		return "", nil, fmt.Errorf("%s has no primary key", rel.Name)
	}
	var (
		parts []string
		args  []any
	)
	for _, keyCol := range rel.Key {
		raw, ok := key[keyCol]
		if !ok {
			return "", nil, fmt.Errorf("%w: missing %s", ErrMissingKey, keyCol)
		}
		idx, ok := rel.ColumnIndex[keyCol]
		if !ok {
			return "", nil, fmt.Errorf("key column %s not found", keyCol)
		}
		v, err := rel.coerceValue(rel.Columns[idx], raw)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, fmt.Sprintf("%s = %s",
			rel.handler.QuoteIdent(keyCol), rel.handler.Placeholder(argPos+len(args)+1)))
		args = append(args, v)
	}
	return strings.Join(parts, " AND "), args, nil
}

// UpdateRow builds and executes a parameterized UPDATE. values holds the new
// column values; key holds the primary key identifying the row. Key columns
// appearing in values are ignored there.
func (rel *Relation) UpdateRow(ctx context.Context, key, values map[string]string) (int64, error) {
	var (
		setParts []string
		args     []any
	)
	for _, col := range rel.Columns {
		raw, ok := values[col.Name]
		if !ok {
			continue
		}
		isKey := false
		for _, k := range rel.Key {
			if k == col.Name {
				isKey = true
				break
			}
		}
		if isKey {
			continue
		}
		v, err := rel.coerceValue(col, raw)
		if err != nil {
			return 0, err
		}
		setParts = append(setParts, fmt.Sprintf("%s = %s",
			rel.handler.QuoteIdent(col.Name), rel.handler.Placeholder(len(args)+1)))
		args = append(args, v)
	}
	if len(setParts) == 0 {
		return 0, fmt.Errorf("no values to update")
	}

	where, whereArgs, err := rel.whereKey(key, len(args))
	if err != nil {
		return 0, err
	}
	args = append(args, whereArgs...)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s",
		quoteQualified(rel.Type, rel.Name),
		strings.Join(setParts, ", "),
		where)

	res, err := rel.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("update failed: %w", err)
	}
	affected, _ := res.RowsAffected()
	return affected, nil
}

// DeleteRow builds and executes a parameterized DELETE addressed by primary
// key.
func (rel *Relation) DeleteRow(ctx context.Context, key map[string]string) (int64, error) {
	where, args, err := rel.whereKey(key, 0)
	if err != nil {
		return 0, err
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE %s",
		quoteQualified(rel.Type, rel.Name), where)

	res, err := rel.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete failed: %w", err)
	}
	affected, _ := res.RowsAffected()
	return affected, nil
}
