package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/movenorth/booking-backend/internal/apperr"
	"github.com/movenorth/booking-backend/internal/model"
)

// UserStore is the user directory contract consumed by services.
type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	GetByUID(ctx context.Context, uid string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	List(ctx context.Context) ([]model.User, error)
	SetVerified(ctx context.Context, uid string) error
	UpdatePasswordHash(ctx context.Context, uid, hash string) error
	CountAll(ctx context.Context) (int64, error)
	CountCreatedBetween(ctx context.Context, from, to time.Time) (int64, error)
}

// UserRepo is the MySQL implementation of UserStore.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = "uid,first_name,last_name,username,email,password_hash,role,is_verified,created_at,updated_at"

// Create inserts a user. Duplicate email or username surfaces as a
// conflict; the UID is generated here when absent.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	if u.UID == "" {
		u.UID = uuid.NewString()
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (uid, first_name, last_name, username, email, password_hash, role, is_verified) VALUES (?,?,?,?,?,?,?,?)",
		u.UID, u.FirstName, u.LastName, u.Username, u.Email, u.PasswordHash, u.Role, u.IsVerified)
	if err != nil {
		// 1062 = ER_DUP_ENTRY
		if strings.Contains(err.Error(), "1062") {
			return apperr.New(apperr.KindConflict, "username or email already exists")
		}
		return err
	}
	return nil
}

func (r *UserRepo) GetByUID(ctx context.Context, uid string) (*model.User, error) {
	return r.getBy(ctx, "uid", uid)
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getBy(ctx, "email", strings.ToLower(strings.TrimSpace(email)))
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.getBy(ctx, "username", username)
}

func (r *UserRepo) getBy(ctx context.Context, column, value string) (*model.User, error) {
	var u model.User
	err := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE "+column+"=? LIMIT 1", value).
		Scan(&u.UID, &u.FirstName, &u.LastName, &u.Username, &u.Email,
			&u.PasswordHash, &u.Role, &u.IsVerified, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.KindNotFound, "user not found")
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) List(ctx context.Context) ([]model.User, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users ORDER BY created_at DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.UID, &u.FirstName, &u.LastName, &u.Username, &u.Email,
			&u.PasswordHash, &u.Role, &u.IsVerified, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *UserRepo) SetVerified(ctx context.Context, uid string) error {
	return r.update(ctx, "UPDATE users SET is_verified=1, updated_at=NOW() WHERE uid=?", uid)
}

func (r *UserRepo) UpdatePasswordHash(ctx context.Context, uid, hash string) error {
	return r.update(ctx, "UPDATE users SET password_hash=?, updated_at=NOW() WHERE uid=?", hash, uid)
}

func (r *UserRepo) update(ctx context.Context, query string, args ...any) error {
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperr.New(apperr.KindNotFound, "user not found")
	}
	return nil
}

func (r *UserRepo) CountAll(ctx context.Context) (int64, error) {
	var n int64
	err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&n)
	return n, err
}

func (r *UserRepo) CountCreatedBetween(ctx context.Context, from, to time.Time) (int64, error) {
	var n int64
	err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM users WHERE created_at >= ? AND created_at < ?", from, to).Scan(&n)
	return n, err
}
