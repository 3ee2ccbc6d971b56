package models

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/lib/pq"
)

// uniqueViolation is the postgres SQLSTATE for a UNIQUE constraint failure.
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

type sqlUserRepo struct {
	db      *sql.DB
	timeout time.Duration
}

func NewSQLUserRepository(db *sql.DB, timeout time.Duration) UserRepository {
	return &sqlUserRepo{db: db, timeout: timeout}
}

func (r *sqlUserRepo) Create(ctx context.Context, u *User) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var id int64
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO users(username, email, password, role) VALUES ($1,$2,$3,$4) RETURNING id, created_at`,
		u.Username, u.Email, u.Password, u.Role).Scan(&id, &u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateUser
		}
		return err
	}
	u.ID = strconv.FormatInt(id, 10)
	u.CreatedAt = u.CreatedAt.UTC()
	return nil
}

func (r *sqlUserRepo) scanOne(ctx context.Context, query string, arg any) (User, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var u User
	var id int64
	err := r.db.QueryRowContext(ctx, query, arg).
		Scan(&id, &u.Username, &u.Email, &u.Password, &u.Role, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, err
	}
	u.ID = strconv.FormatInt(id, 10)
	u.CreatedAt = u.CreatedAt.UTC()
	return u, nil
}

func (r *sqlUserRepo) GetByUsername(ctx context.Context, username string) (User, error) {
	return r.scanOne(ctx, `SELECT id, username, email, password, role, created_at FROM users WHERE username=$1`, username)
}

func (r *sqlUserRepo) GetByID(ctx context.Context, id string) (User, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return User{}, ErrUserNotFound
	}
	return r.scanOne(ctx, `SELECT id, username, email, password, role, created_at FROM users WHERE id=$1`, n)
}
