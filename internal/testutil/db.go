// Package testutil holds helpers for MySQL integration tests.  Tests that
// need a database call NewTestDB, which skips the test when the server is
// unreachable.
package testutil

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/iliyamo/dock-slot-reservation/internal/database"
	"github.com/iliyamo/dock-slot-reservation/internal/model"
)

const (
	defaultTestDSN = "dock:dock@tcp(localhost:3306)/dock_slots_test?charset=utf8mb4&parseTime=true&loc=UTC"
	testDBLock     = "dock_slot_reservation_tests"
)

// NewTestDB opens the database named by TEST_DATABASE_DSN, applies the
// migrations and serializes the calling test against other packages that
// share the same schema.
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		dsn = defaultTestDSN
	}

	db, err := database.OpenDSN(dsn)
	if err != nil {
		t.Skipf("skipping MySQL integration tests: %v", err)
	}
	db.SetMaxOpenConns(32)
	t.Cleanup(func() { _ = db.Close() })

	lockTestDB(t, db)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := database.Migrate(ctx, db); err != nil {
		t.Fatalf("failed to apply migrations: %v", err)
	}
	return db
}

// TruncateAll empties every domain table.
func TruncateAll(t *testing.T, ctx context.Context, db *sql.DB) {
	t.Helper()
	for _, table := range []string{"reservations", "closed_slots", "slot_locks", "users"} {
		if _, err := db.ExecContext(ctx, "TRUNCATE TABLE "+table); err != nil {
			t.Fatalf("truncate %s: %v", table, err)
		}
	}
}

// InsertPerson stores a user row and returns its id.
func InsertPerson(t *testing.T, ctx context.Context, db *sql.DB, p model.Person) uint64 {
	t.Helper()
	res, err := db.ExecContext(ctx,
		`INSERT INTO users (username, name, role, contact) VALUES (?, ?, ?, ?)`,
		p.Username, p.Name, p.Role, p.Contact)
	if err != nil {
		t.Fatalf("insert person: %v", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		t.Fatalf("insert person id: %v", err)
	}
	return uint64(id)
}

func lockTestDB(t *testing.T, db *sql.DB) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	conn, err := db.Conn(ctx)
	if err != nil {
		t.Fatalf("acquire lock conn: %v", err)
	}
	var got sql.NullInt64
	if err := conn.QueryRowContext(ctx, `SELECT GET_LOCK(?, 60)`, testDBLock).Scan(&got); err != nil || got.Int64 != 1 {
		_ = conn.Close()
		t.Fatalf("acquire test lock: %v", err)
	}

	t.Cleanup(func() {
		_, _ = conn.ExecContext(context.Background(), `SELECT RELEASE_LOCK(?)`, testDBLock)
		_ = conn.Close()
	})
}
