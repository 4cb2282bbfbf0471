package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/dock-slot-reservation/internal/model"
)

// UserRepo stores display data for the people the service knows about.
// Identity itself is verified elsewhere; the rows only feed joins and the
// operator's client list.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// Create inserts a person and returns its ID.  A taken username yields
// ErrDuplicate.
func (r *UserRepo) Create(ctx context.Context, p model.Person) (uint64, error) {
	username := strings.ToLower(strings.TrimSpace(p.Username))
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (username, name, role, contact) VALUES (?,?,?,?)",
		username, strings.TrimSpace(p.Name), p.Role, p.Contact)
	if err != nil {
		if isDuplicate(err) {
			return 0, ErrDuplicate
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByID fetches a person by primary key.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.Person, error) {
	var (
		p       model.Person
		contact sql.NullString
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,username,name,role,contact FROM users WHERE id=? LIMIT 1",
		id).Scan(&p.ID, &p.Username, &p.Name, &p.Role, &contact)
	if errors.Is(err, sql.ErrNoRows) {
		return p, ErrNotFound
	}
	p.Contact = nullableString(contact)
	return p, err
}

// ListByRole returns every person with the role ordered by name.  An empty
// role lists everyone.
func (r *UserRepo) ListByRole(ctx context.Context, role string) ([]model.Person, error) {
	q := "SELECT id,username,name,role,contact FROM users"
	var args []any
	if role != "" {
		q += " WHERE role=?"
		args = append(args, role)
	}
	q += " ORDER BY name, id"
	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Person
	for rows.Next() {
		var (
			p       model.Person
			contact sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.Username, &p.Name, &p.Role, &contact); err != nil {
			return nil, err
		}
		p.Contact = nullableString(contact)
		out = append(out, p)
	}
	return out, rows.Err()
}
