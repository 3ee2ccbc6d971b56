package models

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"
)

// memoryDB backs the in-memory store used for local development and tests.
// One mutex guards all three collections so the capacity check and insert are atomic.
type memoryDB struct {
	mu     sync.RWMutex
	events map[string]Event
	users  map[string]User
	regs   []Registration
	nextID int64
}

func NewMemoryStore() *Store {
	db := &memoryDB{
		events: map[string]Event{},
		users:  map[string]User{},
	}
	return &Store{
		Events:        &memoryEventRepo{db},
		Users:         &memoryUserRepo{db},
		Registrations: &memoryRegistrationRepo{db},
	}
}

/* -------------------- Events -------------------- */

type memoryEventRepo struct{ db *memoryDB }

func (r *memoryEventRepo) List(_ context.Context, f EventFilter) ([]Event, int64, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	matched := make([]Event, 0)
	for _, e := range r.db.events {
		if f.Matches(e) {
			matched = append(matched, e)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Date.Equal(matched[j].Date) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].Date.Before(matched[j].Date)
	})

	total := int64(len(matched))
	start := min(f.Skip(), total)
	end := total
	if f.Limit > 0 {
		end = min(start+int64(f.Limit), total)
	}
	return matched[start:end], total, nil
}

func (r *memoryEventRepo) GetByID(_ context.Context, id string) (Event, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	e, ok := r.db.events[id]
	if !ok {
		return Event{}, ErrEventNotFound
	}
	return e, nil
}

func (r *memoryEventRepo) Create(_ context.Context, e *Event) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.events[e.ID] = *e
	return nil
}

func (r *memoryEventRepo) Update(_ context.Context, id string, p EventPatch) (Event, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	e, ok := r.db.events[id]
	if !ok {
		return Event{}, ErrEventNotFound
	}
	if p.Capacity != nil && *p.Capacity < e.RegisteredCount {
		return Event{}, ErrCapacityBelowRegistered
	}
	p.Apply(&e)
	r.db.events[id] = e
	return e, nil
}

func (r *memoryEventRepo) Delete(_ context.Context, id string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.events[id]; !ok {
		return ErrEventNotFound
	}
	delete(r.db.events, id)
	kept := r.db.regs[:0]
	for _, reg := range r.db.regs {
		if reg.EventID != id {
			kept = append(kept, reg)
		}
	}
	r.db.regs = kept
	return nil
}

func (r *memoryEventRepo) Stats(_ context.Context) (EventStats, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	stats := EventStats{TotalEvents: int64(len(r.db.events)), Categories: map[string]int64{}}
	for _, e := range r.db.events {
		stats.Categories[e.Category]++
	}
	return stats, nil
}

/* -------------------- Users -------------------- */

type memoryUserRepo struct{ db *memoryDB }

func (r *memoryUserRepo) Create(_ context.Context, u *User) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	// exact match, like the unique indexes of the other backends
	for _, existing := range r.db.users {
		if existing.Username == u.Username || existing.Email == u.Email {
			return ErrDuplicateUser
		}
	}
	r.db.nextID++
	u.ID = strconv.FormatInt(r.db.nextID, 10)
	u.CreatedAt = time.Now().UTC()
	r.db.users[u.ID] = *u
	return nil
}

func (r *memoryUserRepo) GetByUsername(_ context.Context, username string) (User, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	for _, u := range r.db.users {
		if u.Username == username {
			return u, nil
		}
	}
	return User{}, ErrUserNotFound
}

func (r *memoryUserRepo) GetByID(_ context.Context, id string) (User, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	u, ok := r.db.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

/* --------------- Registrations ------------------ */

type memoryRegistrationRepo struct{ db *memoryDB }

func (r *memoryRegistrationRepo) Register(_ context.Context, eventID, userID string) (Registration, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	e, ok := r.db.events[eventID]
	if !ok {
		return Registration{}, ErrEventNotFound
	}
	for _, reg := range r.db.regs {
		if reg.EventID == eventID && reg.UserID == userID {
			return Registration{}, ErrAlreadyRegistered
		}
	}
	if e.RegisteredCount >= e.Capacity {
		return Registration{}, ErrEventFull
	}

	reg := Registration{EventID: eventID, UserID: userID, RegisteredAt: time.Now().UTC()}
	r.db.regs = append(r.db.regs, reg)
	e.RegisteredCount++
	r.db.events[eventID] = e
	return reg, nil
}

func (r *memoryRegistrationRepo) Cancel(_ context.Context, eventID, userID string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for i, reg := range r.db.regs {
		if reg.EventID == eventID && reg.UserID == userID {
			r.db.regs = append(r.db.regs[:i], r.db.regs[i+1:]...)
			if e, ok := r.db.events[eventID]; ok && e.RegisteredCount > 0 {
				e.RegisteredCount--
				r.db.events[eventID] = e
			}
			return nil
		}
	}
	return ErrRegistrationNotFound
}

func (r *memoryRegistrationRepo) ListAttendees(_ context.Context, eventID string) ([]Attendee, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	out := make([]Attendee, 0)
	for _, reg := range r.db.regs {
		if reg.EventID != eventID {
			continue
		}
		u := r.db.users[reg.UserID]
		out = append(out, Attendee{
			EventID:      reg.EventID,
			UserID:       reg.UserID,
			Username:     u.Username,
			Email:        u.Email,
			RegisteredAt: reg.RegisteredAt,
		})
	}
	return out, nil
}
