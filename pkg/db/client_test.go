package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type testModel struct {
	ID   int
	Name string
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&testModel{}); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}
	return conn
}

func TestWithTx_CommitsAndRollbacks(t *testing.T) {
	db := newTestDB(t)
	client := &Client{conn: db}

	ctx := context.Background()
	if err := client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&testModel{Name: "committed"}).Error
	}); err != nil {
		t.Fatalf("WithTx commit failed: %v", err)
	}

	var count int64
	if err := db.Model(&testModel{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 record, got %d", count)
	}

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&testModel{Name: "rolled"}).Error; err != nil {
			return err
		}
		return errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected WithTx to return an error")
	}
	if err := db.Model(&testModel{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed after rollback: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected rollback to leave 1 record, got %d", count)
	}
}

func TestPing(t *testing.T) {
	db := newTestDB(t)
	client := &Client{conn: db}
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected ping error: %v", err)
	}
}

func TestWithTx_RollsBackOnPanic(t *testing.T) {
	db := newTestDB(t)
	client := NewFromConn(db)

	var before int64
	if err := db.Model(&testModel{}).Count(&before).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("expected panic to propagate")
			}
		}()
		_ = client.WithTx(context.Background(), func(tx *gorm.DB) error {
			if err := tx.Create(&testModel{Name: "panicked"}).Error; err != nil {
				return err
			}
			panic("boom")
		})
	}()

	var after int64
	if err := db.Model(&testModel{}).Count(&after).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if after != before {
		t.Fatalf("expected panic rollback, before=%d after=%d", before, after)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "payments_order_id_key"}
	if !IsUniqueViolation(fmt.Errorf("insert: %w", pgErr), "") {
		t.Fatal("expected pg unique violation")
	}
	if !IsUniqueViolation(pgErr, "payments_order_id_key") {
		t.Fatal("expected constraint match")
	}
	if IsUniqueViolation(pgErr, "other_constraint") {
		t.Fatal("constraint mismatch should not match")
	}
	if IsUniqueViolation(&pgconn.PgError{Code: "23503"}, "") {
		t.Fatal("foreign key violation is not unique violation")
	}
	if !IsUniqueViolation(errors.New("UNIQUE constraint failed: payments.order_id"), "order_id") {
		t.Fatal("expected sqlite unique violation")
	}
	if IsUniqueViolation(nil, "") {
		t.Fatal("nil is never a violation")
	}
}

func TestDialectorForRejectsUnknownDriver(t *testing.T) {
	if _, err := dialectorFor(config.DBConfig{Driver: "mysql", DSN: "x"}); err == nil {
		t.Fatal("expected unsupported driver error")
	}
	if d, err := dialectorFor(config.DBConfig{Driver: "SQLite", DSN: "file::memory:"}); err != nil || d == nil {
		t.Fatalf("expected sqlite dialector, err=%v", err)
	}
}
