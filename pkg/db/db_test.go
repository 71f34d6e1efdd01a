package db

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestIsUniqueViolationSqlite(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := conn.Exec(`CREATE TABLE bill_keys (customer_id BIGINT, month TEXT, UNIQUE (customer_id, month))`).Error; err != nil {
		t.Fatalf("create table: %v", err)
	}
	if err := conn.Exec(`INSERT INTO bill_keys (customer_id, month) VALUES (1, '2025-07')`).Error; err != nil {
		t.Fatalf("first insert: %v", err)
	}

	dup := conn.Exec(`INSERT INTO bill_keys (customer_id, month) VALUES (1, '2025-07')`).Error
	if dup == nil {
		t.Fatal("expected unique violation on duplicate insert")
	}
	if !IsUniqueViolation(dup) {
		t.Fatalf("IsUniqueViolation(%v) = false, want true", dup)
	}
}

func TestIsUniqueViolationPostgres(t *testing.T) {
	if !IsUniqueViolation(&pgconn.PgError{Code: "23505"}) {
		t.Fatal("unique_violation code should match")
	}
	if IsUniqueViolation(&pgconn.PgError{Code: "40001"}) {
		t.Fatal("serialization_failure should not match")
	}
}

func TestIsUniqueViolationUnrelatedErrors(t *testing.T) {
	if IsUniqueViolation(nil) {
		t.Fatal("nil error should not match")
	}
	if IsUniqueViolation(errors.New("connection reset by peer")) {
		t.Fatal("unrelated error should not match")
	}
}

func TestRowLockSuffixesByDialect(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if got := RowLock(conn); got != "" {
		t.Fatalf("RowLock on sqlite = %q, want empty", got)
	}
	if got := RowLockSkipLocked(conn); got != "" {
		t.Fatalf("RowLockSkipLocked on sqlite = %q, want empty", got)
	}
}
