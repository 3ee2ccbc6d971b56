package models

import "context"

// ===== Events =====
type EventRepository interface {
	// List returns one page of matching events sorted by date and the total match count.
	List(ctx context.Context, f EventFilter) ([]Event, int64, error)
	GetByID(ctx context.Context, id string) (Event, error)
	Create(ctx context.Context, e *Event) error
	// Update merges p into the event. It fails with ErrCapacityBelowRegistered when the
	// new capacity is lower than the current registration count.
	Update(ctx context.Context, id string, p EventPatch) (Event, error)
	// Delete removes the event and its registrations.
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context) (EventStats, error)
}

// ===== Users =====
type UserRepository interface {
	// Create stores u (password already hashed) and fills in ID and CreatedAt.
	Create(ctx context.Context, u *User) error
	GetByUsername(ctx context.Context, username string) (User, error)
	GetByID(ctx context.Context, id string) (User, error)
}

// ===== Registrations =====
type RegistrationRepository interface {
	// Register atomically claims a seat and records the registration.
	Register(ctx context.Context, eventID, userID string) (Registration, error)
	Cancel(ctx context.Context, eventID, userID string) error
	ListAttendees(ctx context.Context, eventID string) ([]Attendee, error)
}

// Store bundles the repositories of one backend.
type Store struct {
	Events        EventRepository
	Users         UserRepository
	Registrations RegistrationRepository

	ping  func(ctx context.Context) error
	close func(ctx context.Context) error
}

func (s *Store) Ping(ctx context.Context) error {
	if s.ping == nil {
		return nil
	}
	return s.ping(ctx)
}

func (s *Store) Close(ctx context.Context) error {
	if s.close == nil {
		return nil
	}
	return s.close(ctx)
}
