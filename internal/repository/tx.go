package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/dock-slot-reservation/internal/calendar"
)

type txKey struct{}

// querier is the subset of *sql.DB and *sql.Tx used by the repositories.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func txFromContext(ctx context.Context) *sql.Tx {
	tx, _ := ctx.Value(txKey{}).(*sql.Tx)
	return tx
}

// conn returns the transaction carried by ctx, or db when there is none.
func conn(ctx context.Context, db *sql.DB) querier {
	if tx := txFromContext(ctx); tx != nil {
		return tx
	}
	return db
}

// withTx runs fn inside a READ COMMITTED transaction carried by the context
// passed to fn.  A transaction already present in ctx is reused.
func withTx(ctx context.Context, db *sql.DB, fn func(ctx context.Context) error) error {
	if txFromContext(ctx) != nil {
		return fn(ctx)
	}
	tx, err := db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// SlotLocker serializes every mutation that must see a consistent view of
// one (date, slot) key across the ledger and the registry.  Each key owns a
// row in slot_locks; holders take it with SELECT ... FOR UPDATE.
type SlotLocker struct {
	db *sql.DB
}

// NewSlotLocker returns a SlotLocker bound to the given database.
func NewSlotLocker(db *sql.DB) *SlotLocker { return &SlotLocker{db: db} }

// WithSlotLock runs fn in a transaction that holds the row lock of
// (date, slot) until commit or rollback.  Repository calls made with the ctx
// handed to fn join that transaction.
func (l *SlotLocker) WithSlotLock(ctx context.Context, date time.Time, slot string, fn func(ctx context.Context) error) error {
	day := calendar.FormatDate(date)
	// The lock row is created outside the transaction so that concurrent
	// first-time holders never deadlock on duplicate-key share locks.
	if _, err := l.db.ExecContext(ctx,
		`INSERT IGNORE INTO slot_locks (slot_date, slot_label) VALUES (?, ?)`, day, slot); err != nil {
		return err
	}
	return withTx(ctx, l.db, func(txCtx context.Context) error {
		var got string
		err := conn(txCtx, l.db).QueryRowContext(txCtx,
			`SELECT slot_label FROM slot_locks WHERE slot_date = ? AND slot_label = ? FOR UPDATE`,
			day, slot).Scan(&got)
		if err != nil {
			return err
		}
		return fn(txCtx)
	})
}
