package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/dock-slot-reservation/internal/calendar"
	"github.com/iliyamo/dock-slot-reservation/internal/model"
)

// ClosureRepo is the closed-slot registry backed by the closed_slots table,
// which carries UNIQUE(slot_date, slot_label).
type ClosureRepo struct {
	db *sql.DB
}

// NewClosureRepo returns a new ClosureRepo bound to the given database.
func NewClosureRepo(db *sql.DB) *ClosureRepo { return &ClosureRepo{db: db} }

const closureColumns = `c.id, c.slot_date, c.slot_label, c.reason, c.created_by, c.created_at`

func scanClosure(s rowScanner, extra ...any) (model.Closure, error) {
	var c model.Closure
	dest := append([]any{&c.ID, &c.Date, &c.Slot, &c.Reason, &c.CreatedBy, &c.CreatedAt}, extra...)
	if err := s.Scan(dest...); err != nil {
		return c, err
	}
	c.Date = calendar.Day(c.Date)
	return c, nil
}

// Close records that (date, slot) is closed and returns the closure id.
// A second closure for the same key fails with ErrDuplicate.
func (r *ClosureRepo) Close(ctx context.Context, date time.Time, slot, reason string, actor uint64, createdAt time.Time) (uint64, error) {
	const q = `INSERT INTO closed_slots (slot_date, slot_label, reason, created_by, created_at) VALUES (?, ?, ?, ?, ?)`
	result, err := conn(ctx, r.db).ExecContext(ctx, q, calendar.FormatDate(date), slot, reason, actor, createdAt.UTC())
	if err != nil {
		if isDuplicate(err) {
			return 0, ErrDuplicate
		}
		return 0, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// Exists reports whether (date, slot) is closed.
func (r *ClosureRepo) Exists(ctx context.Context, date time.Time, slot string) (bool, error) {
	var n int
	err := conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM closed_slots WHERE slot_date = ? AND slot_label = ?`,
		calendar.FormatDate(date), slot).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListByDate returns the set of closed labels on date.
func (r *ClosureRepo) ListByDate(ctx context.Context, date time.Time) (map[string]bool, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx,
		`SELECT slot_label FROM closed_slots WHERE slot_date = ?`, calendar.FormatDate(date))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]bool)
	for rows.Next() {
		var slot string
		if err := rows.Scan(&slot); err != nil {
			return nil, err
		}
		out[slot] = true
	}
	return out, rows.Err()
}

// ListWithinHorizon returns closures dated in [start, start+days) ordered
// by date then slot, each with the display name of the administrator who
// created it.
func (r *ClosureRepo) ListWithinHorizon(ctx context.Context, start time.Time, days int) ([]model.ClosureView, error) {
	if days <= 0 {
		return nil, nil
	}
	from := calendar.Day(start)
	to := from.AddDate(0, 0, days)
	q := `SELECT ` + closureColumns + `, COALESCE(u.name, '')
	      FROM closed_slots c LEFT JOIN users u ON u.id = c.created_by
	      WHERE c.slot_date >= ? AND c.slot_date < ?
	      ORDER BY c.slot_date, c.slot_label`
	rows, err := conn(ctx, r.db).QueryContext(ctx, q, calendar.FormatDate(from), calendar.FormatDate(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.ClosureView
	for rows.Next() {
		var v model.ClosureView
		v.Closure, err = scanClosure(rows, &v.CreatedByName)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// ListBetween returns closures dated in [from, to).
func (r *ClosureRepo) ListBetween(ctx context.Context, from, to time.Time) ([]model.Closure, error) {
	q := `SELECT ` + closureColumns + ` FROM closed_slots c
	      WHERE c.slot_date >= ? AND c.slot_date < ? ORDER BY c.slot_date, c.slot_label`
	rows, err := conn(ctx, r.db).QueryContext(ctx, q, calendar.FormatDate(from), calendar.FormatDate(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Closure
	for rows.Next() {
		c, err := scanClosure(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Reopen deletes the closure with the given id and returns the removed
// row.  It returns ErrNotFound when nothing was deleted, so a repeated
// reopen of the same id is reported as missing.
func (r *ClosureRepo) Reopen(ctx context.Context, id uint64) (model.Closure, error) {
	var removed model.Closure
	err := withTx(ctx, r.db, func(ctx context.Context) error {
		q := conn(ctx, r.db)
		c, err := scanClosure(q.QueryRowContext(ctx,
			`SELECT `+closureColumns+` FROM closed_slots c WHERE c.id = ? FOR UPDATE`, id))
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if err := deleteClosure(ctx, q, c.ID); err != nil {
			return err
		}
		removed = c
		return nil
	})
	return removed, err
}

// ReopenByDateSlot deletes the closure of (date, slot).  It returns
// ErrNotFound when the key is not closed.
func (r *ClosureRepo) ReopenByDateSlot(ctx context.Context, date time.Time, slot string) (model.Closure, error) {
	var removed model.Closure
	err := withTx(ctx, r.db, func(ctx context.Context) error {
		q := conn(ctx, r.db)
		c, err := scanClosure(q.QueryRowContext(ctx,
			`SELECT `+closureColumns+` FROM closed_slots c WHERE c.slot_date = ? AND c.slot_label = ? FOR UPDATE`,
			calendar.FormatDate(date), slot))
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if err := deleteClosure(ctx, q, c.ID); err != nil {
			return err
		}
		removed = c
		return nil
	})
	return removed, err
}

func deleteClosure(ctx context.Context, q querier, id uint64) error {
	res, err := q.ExecContext(ctx, `DELETE FROM closed_slots WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
