package repository

import (
    "context"
    "database/sql"
    "errors"
    "time"

    "github.com/iliyamo/dock-slot-reservation/internal/calendar"
    "github.com/iliyamo/dock-slot-reservation/internal/model"
)

// ReservationRepo is the reservation ledger.  It records who holds which
// (date, slot) and never checks for conflicts itself: the reservations table
// carries UNIQUE(slot_date, slot_label, active_flag) where active_flag is a
// stored generated column that is 1 for active rows and NULL otherwise, so
// at most one active row can exist per key while cancelled rows pile up
// freely.  All timestamps are stored in UTC.
type ReservationRepo struct {
    db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

const reservationColumns = `r.id, r.requester_id, r.slot_date, r.slot_label, r.status, r.container_number, r.attachment_ref, r.created_at`

type rowScanner interface {
    Scan(dest ...any) error
}

func scanReservation(s rowScanner, extra ...any) (model.Reservation, error) {
    var (
        res       model.Reservation
        status    string
        container sql.NullString
        attach    sql.NullString
    )
    dest := append([]any{&res.ID, &res.RequesterID, &res.Date, &res.Slot, &status, &container, &attach, &res.CreatedAt}, extra...)
    if err := s.Scan(dest...); err != nil {
        return res, err
    }
    res.Status = model.ReservationStatus(status)
    res.Metadata.ContainerNumber = nullableString(container)
    res.Metadata.AttachmentRef = nullableString(attach)
    res.Date = calendar.Day(res.Date)
    return res, nil
}

func nullableString(ns sql.NullString) *string {
    if !ns.Valid {
        return nil
    }
    s := ns.String
    return &s
}

// Create inserts an active reservation and returns its id.  When another
// active reservation already holds the key the insert fails with
// ErrDuplicate.  The insert joins the transaction carried by ctx, if any.
func (r *ReservationRepo) Create(ctx context.Context, requesterID uint64, date time.Time, slot string, meta model.ReservationMetadata, createdAt time.Time) (uint64, error) {
    const q = `INSERT INTO reservations (requester_id, slot_date, slot_label, status, container_number, attachment_ref, created_at)
               VALUES (?, ?, ?, 'active', ?, ?, ?)`
    result, err := conn(ctx, r.db).ExecContext(ctx, q,
        requesterID, calendar.FormatDate(date), slot, meta.ContainerNumber, meta.AttachmentRef, createdAt.UTC())
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

// Get fetches a reservation by id.  It returns ErrNotFound when no row
// matches.
func (r *ReservationRepo) Get(ctx context.Context, id uint64) (model.Reservation, error) {
    q := `SELECT ` + reservationColumns + ` FROM reservations r WHERE r.id = ?`
    res, err := scanReservation(conn(ctx, r.db).QueryRowContext(ctx, q, id))
    if errors.Is(err, sql.ErrNoRows) {
        return res, ErrNotFound
    }
    return res, err
}

// HasActive reports whether an active reservation exists for (date, slot).
func (r *ReservationRepo) HasActive(ctx context.Context, date time.Time, slot string) (bool, error) {
    const q = `SELECT COUNT(*) FROM reservations WHERE slot_date = ? AND slot_label = ? AND status = 'active'`
    var n int
    if err := conn(ctx, r.db).QueryRowContext(ctx, q, calendar.FormatDate(date), slot).Scan(&n); err != nil {
        return false, err
    }
    return n > 0, nil
}

// ActiveSlots returns the labels that hold an active reservation on date.
func (r *ReservationRepo) ActiveSlots(ctx context.Context, date time.Time) (map[string]bool, error) {
    const q = `SELECT slot_label FROM reservations WHERE slot_date = ? AND status = 'active'`
    rows, err := conn(ctx, r.db).QueryContext(ctx, q, calendar.FormatDate(date))
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

// Cancel marks a reservation as cancelled.  Cancelling an already
// cancelled reservation succeeds without changes.  It returns ErrNotFound
// when the id does not exist.
func (r *ReservationRepo) Cancel(ctx context.Context, id uint64) error {
    return withTx(ctx, r.db, func(ctx context.Context) error {
        q := conn(ctx, r.db)
        var status string
        err := q.QueryRowContext(ctx, `SELECT status FROM reservations WHERE id = ? FOR UPDATE`, id).Scan(&status)
        if errors.Is(err, sql.ErrNoRows) {
            return ErrNotFound
        }
        if err != nil {
            return err
        }
        if status == string(model.StatusCancelled) {
            return nil
        }
        _, err = q.ExecContext(ctx, `UPDATE reservations SET status = 'cancelled' WHERE id = ?`, id)
        return err
    })
}

// ListByRequester returns every reservation made by the requester ordered
// by date then slot.
func (r *ReservationRepo) ListByRequester(ctx context.Context, requesterID uint64) ([]model.Reservation, error) {
    q := `SELECT ` + reservationColumns + ` FROM reservations r WHERE r.requester_id = ? ORDER BY r.slot_date, r.slot_label, r.id`
    return r.list(ctx, q, requesterID)
}

// ListByDate returns all reservations on date regardless of status.
func (r *ReservationRepo) ListByDate(ctx context.Context, date time.Time) ([]model.Reservation, error) {
    q := `SELECT ` + reservationColumns + ` FROM reservations r WHERE r.slot_date = ? ORDER BY r.slot_label, r.id`
    return r.list(ctx, q, calendar.FormatDate(date))
}

// ListBetween returns the reservations in [from, to) of any status, ordered
// by date, slot and id.
func (r *ReservationRepo) ListBetween(ctx context.Context, from, to time.Time) ([]model.Reservation, error) {
    q := `SELECT ` + reservationColumns + ` FROM reservations r
          WHERE r.slot_date >= ? AND r.slot_date < ?
          ORDER BY r.slot_date, r.slot_label, r.id`
    return r.list(ctx, q, calendar.FormatDate(from), calendar.FormatDate(to))
}

func (r *ReservationRepo) list(ctx context.Context, q string, args ...any) ([]model.Reservation, error) {
    rows, err := conn(ctx, r.db).QueryContext(ctx, q, args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var out []model.Reservation
    for rows.Next() {
        res, err := scanReservation(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, res)
    }
    return out, rows.Err()
}

// ListAll returns every reservation joined with the requester's display
// data, newest date first.  Requesters unknown to the users table come back
// with empty display fields.
func (r *ReservationRepo) ListAll(ctx context.Context) ([]model.ReservationView, error) {
    q := `SELECT ` + reservationColumns + `, COALESCE(u.name, ''), COALESCE(u.username, ''), u.contact
          FROM reservations r LEFT JOIN users u ON u.id = r.requester_id
          ORDER BY r.slot_date DESC, r.slot_label, r.id`
    rows, err := conn(ctx, r.db).QueryContext(ctx, q)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var out []model.ReservationView
    for rows.Next() {
        var (
            v       model.ReservationView
            contact sql.NullString
        )
        v.Reservation, err = scanReservation(rows, &v.RequesterName, &v.RequesterUsername, &contact)
        if err != nil {
            return nil, err
        }
        v.RequesterContact = nullableString(contact)
        out = append(out, v)
    }
    return out, rows.Err()
}
