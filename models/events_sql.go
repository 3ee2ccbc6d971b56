package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

const eventColumns = `id, title, description, date, location, capacity, price, is_virtual,
	category, organizer_id, registered_count, created_at`

type sqlEventRepo struct {
	db      *sql.DB
	timeout time.Duration
}

func NewSQLEventRepository(db *sql.DB, timeout time.Duration) EventRepository {
	return &sqlEventRepo{db: db, timeout: timeout}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (Event, error) {
	var e Event
	err := row.Scan(&e.ID, &e.Title, &e.Description, &e.Date, &e.Location, &e.Capacity, &e.Price,
		&e.IsVirtual, &e.Category, &e.OrganizerID, &e.RegisteredCount, &e.CreatedAt)
	if err != nil {
		return Event{}, err
	}
	e.Date = e.Date.UTC()
	e.CreatedAt = e.CreatedAt.UTC()
	return e, nil
}

// likePattern escapes LIKE wildcards so filter text is matched literally.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

func eventWhere(f EventFilter) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.Category != "" {
		add("category ILIKE $%d", likePattern(f.Category))
	}
	if f.Search != "" {
		add("title ILIKE $%d", likePattern(f.Search))
	}
	if f.From != nil {
		add("date >= $%d", *f.From)
	}
	if f.To != nil {
		add("date <= $%d", *f.To)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *sqlEventRepo) List(ctx context.Context, f EventFilter) ([]Event, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	where, args := eventWhere(f)

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + eventColumns + ` FROM events` + where + ` ORDER BY date ASC, id ASC`
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}
	query += fmt.Sprintf(" OFFSET %d", f.Skip())

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]Event, 0)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, e)
	}
	return out, total, rows.Err()
}

func (r *sqlEventRepo) GetByID(ctx context.Context, id string) (Event, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	e, err := scanEvent(r.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Event{}, ErrEventNotFound
	}
	return e, err
}

func (r *sqlEventRepo) Create(ctx context.Context, e *Event) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO events(id, title, description, date, location, capacity, price, is_virtual,
			category, organizer_id, registered_count, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		e.ID, e.Title, e.Description, e.Date, e.Location, e.Capacity, e.Price, e.IsVirtual,
		e.Category, e.OrganizerID, e.RegisteredCount, e.CreatedAt)
	return err
}

var sqlEventColumn = map[string]string{
	"title":       "title",
	"description": "description",
	"date":        "date",
	"location":    "location",
	"capacity":    "capacity",
	"price":       "price",
	"isVirtual":   "is_virtual",
	"category":    "category",
}

func (r *sqlEventRepo) Update(ctx context.Context, id string, p EventPatch) (Event, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	fields := p.Fields()
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	sets := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys)+2)
	for _, k := range keys {
		args = append(args, fields[k])
		sets = append(sets, fmt.Sprintf("%s=$%d", sqlEventColumn[k], len(args)))
	}
	args = append(args, id)
	query := fmt.Sprintf(`UPDATE events SET %s WHERE id=$%d`, strings.Join(sets, ", "), len(args))
	if p.Capacity != nil {
		args = append(args, *p.Capacity)
		query += fmt.Sprintf(" AND registered_count <= $%d", len(args))
	}
	query += ` RETURNING ` + eventColumns

	e, err := scanEvent(r.db.QueryRowContext(ctx, query, args...))
	if err == nil {
		return e, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Event{}, err
	}
	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM events WHERE id=$1)`, id).Scan(&exists); err != nil {
		return Event{}, err
	}
	if !exists {
		return Event{}, ErrEventNotFound
	}
	return Event{}, ErrCapacityBelowRegistered
}

// Delete relies on ON DELETE CASCADE to drop the registrations.
func (r *sqlEventRepo) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE id=$1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrEventNotFound
	}
	return nil
}

func (r *sqlEventRepo) Stats(ctx context.Context) (EventStats, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `SELECT category, COUNT(*) FROM events GROUP BY category`)
	if err != nil {
		return EventStats{}, err
	}
	defer rows.Close()

	stats := EventStats{Categories: map[string]int64{}}
	for rows.Next() {
		var category string
		var count int64
		if err := rows.Scan(&category, &count); err != nil {
			return EventStats{}, err
		}
		stats.Categories[category] = count
		stats.TotalEvents += count
	}
	return stats, rows.Err()
}
