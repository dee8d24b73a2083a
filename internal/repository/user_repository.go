package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/task-manager/internal/database"
	"github.com/iliyamo/task-manager/internal/model"
)

const userColumns = "id,email,username,hashed_password,role,is_active,created_at,updated_at"

// UserRepo is the user store. Email uniqueness is enforced by the
// database's unique index, never by a read-then-write check alone.
type UserRepo struct {
	DB      *sql.DB
	Dialect database.Dialect
}

func NewUserRepo(db *sql.DB, d database.Dialect) *UserRepo { return &UserRepo{DB: db, Dialect: d} }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	var (
		u        model.User
		username sql.NullString
	)
	if err := row.Scan(&u.ID, &u.Email, &username, &u.PasswordHash, &u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	if username.Valid {
		u.Username = &username.String
	}
	return &u, nil
}

// Create inserts the user and fills in ID and timestamps. It returns
// ErrEmailExists when the email is already taken.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	id, err := r.Dialect.InsertID(ctx, r.DB,
		"INSERT INTO users (email, username, hashed_password, role, is_active) VALUES (?,?,?,?,?)",
		u.Email, u.Username, u.PasswordHash, u.Role, u.IsActive)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrEmailExists
		}
		return err
	}
	// Follow-up SELECT to pick up server-side defaults (timestamps).
	stored, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	*u = *stored
	return nil
}

// GetByEmail fetches a user by exact email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx,
		r.Dialect.Rebind("SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1"), email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	return u, err
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (*model.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx,
		r.Dialect.Rebind("SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1"), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	return u, err
}

// List returns all users ordered by id.
func (r *UserRepo) List(ctx context.Context) ([]*model.User, error) {
	rows, err := r.DB.QueryContext(ctx, "SELECT "+userColumns+" FROM users ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Delete hard-deletes a user. Tasks owned by the user are kept and
// detached (user_id set to NULL) in the same transaction, which matches
// the ON DELETE SET NULL foreign key and also holds on schemas without it.
func (r *UserRepo) Delete(ctx context.Context, id uint64) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, r.Dialect.Rebind("UPDATE tasks SET user_id=NULL WHERE user_id=?"), id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, r.Dialect.Rebind("DELETE FROM users WHERE id=?"), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return tx.Commit()
}
