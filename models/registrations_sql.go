package models

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"
)

type sqlRegistrationRepo struct {
	db      *sql.DB
	timeout time.Duration
}

func NewSQLRegistrationRepository(db *sql.DB, timeout time.Duration) RegistrationRepository {
	return &sqlRegistrationRepo{db: db, timeout: timeout}
}

// Register takes the seat with a conditional UPDATE and inserts the row in the same
// transaction; UNIQUE(user_id, event_id) rejects duplicates.
func (r *sqlRegistrationRepo) Register(ctx context.Context, eventID, userID string) (Registration, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	uid, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return Registration{}, ErrUserNotFound
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Registration{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var already bool
	if err := tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM registrations WHERE event_id=$1 AND user_id=$2)`,
		eventID, uid).Scan(&already); err != nil {
		return Registration{}, err
	}
	if already {
		return Registration{}, ErrAlreadyRegistered
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE events
		SET registered_count = registered_count + 1
		WHERE id = $1 AND registered_count < capacity`, eventID)
	if err != nil {
		return Registration{}, fmt.Errorf("claim seat: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Registration{}, err
	}
	if n == 0 {
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM events WHERE id=$1)`, eventID).Scan(&exists); err != nil {
			return Registration{}, err
		}
		if !exists {
			return Registration{}, ErrEventNotFound
		}
		return Registration{}, ErrEventFull
	}

	reg := Registration{EventID: eventID, UserID: userID}
	err = tx.QueryRowContext(ctx,
		`INSERT INTO registrations(event_id, user_id) VALUES ($1,$2) RETURNING registered_at`,
		eventID, uid).Scan(&reg.RegisteredAt)
	if err != nil {
		if isUniqueViolation(err) {
			return Registration{}, ErrAlreadyRegistered
		}
		return Registration{}, err
	}
	if err := tx.Commit(); err != nil {
		return Registration{}, fmt.Errorf("commit: %w", err)
	}
	reg.RegisteredAt = reg.RegisteredAt.UTC()
	return reg, nil
}

func (r *sqlRegistrationRepo) Cancel(ctx context.Context, eventID, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	uid, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return ErrRegistrationNotFound
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM registrations WHERE user_id=$1 AND event_id=$2`, uid, eventID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrRegistrationNotFound
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE events SET registered_count = registered_count - 1 WHERE id=$1 AND registered_count > 0`,
		eventID); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *sqlRegistrationRepo) ListAttendees(ctx context.Context, eventID string) ([]Attendee, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT r.event_id, r.user_id, u.username, u.email, r.registered_at
		FROM registrations r
		JOIN users u ON u.id = r.user_id
		WHERE r.event_id = $1
		ORDER BY r.registered_at ASC, r.id ASC`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Attendee, 0)
	for rows.Next() {
		var a Attendee
		var uid int64
		if err := rows.Scan(&a.EventID, &uid, &a.Username, &a.Email, &a.RegisteredAt); err != nil {
			return nil, err
		}
		a.UserID = strconv.FormatInt(uid, 10)
		a.RegisteredAt = a.RegisteredAt.UTC()
		out = append(out, a)
	}
	return out, rows.Err()
}

// NewSQLStore wires the three postgres repositories over one *sql.DB.
func NewSQLStore(db *sql.DB, timeout time.Duration) *Store {
	return &Store{
		Events:        NewSQLEventRepository(db, timeout),
		Users:         NewSQLUserRepository(db, timeout),
		Registrations: NewSQLRegistrationRepository(db, timeout),
		ping:          db.PingContext,
		close: func(context.Context) error {
			return db.Close()
		},
	}
}
