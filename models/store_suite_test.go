package models

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStoreSuite exercises the repository contract. Every backend must pass it.
func runStoreSuite(t *testing.T, newStore func(t *testing.T) *Store) {
	t.Run("EventRoundTrip", func(t *testing.T) { testEventRoundTrip(t, newStore(t)) })
	t.Run("EventPartialUpdate", func(t *testing.T) { testEventPartialUpdate(t, newStore(t)) })
	t.Run("EventListPaging", func(t *testing.T) { testEventListPaging(t, newStore(t)) })
	t.Run("EventListFilters", func(t *testing.T) { testEventListFilters(t, newStore(t)) })
	t.Run("EventStats", func(t *testing.T) { testEventStats(t, newStore(t)) })
	t.Run("UserUniqueness", func(t *testing.T) { testUserUniqueness(t, newStore(t)) })
	t.Run("RegistrationCapacity", func(t *testing.T) { testRegistrationCapacity(t, newStore(t)) })
	t.Run("RegistrationCancelAndDelete", func(t *testing.T) { testRegistrationCancelAndDelete(t, newStore(t)) })
	t.Run("ConcurrentRegistration", func(t *testing.T) { testConcurrentRegistration(t, newStore(t)) })
}

func mustEvent(t *testing.T, s *Store, title, category string, date time.Time, capacity int) Event {
	t.Helper()
	price, virtual := 0.0, false
	e, err := NewEvent(EventInput{
		Title:       title,
		Description: "about " + title,
		Date:        date,
		Location:    "Hall A",
		Capacity:    capacity,
		Price:       &price,
		IsVirtual:   &virtual,
		Category:    category,
	}, "organizer-1")
	require.NoError(t, err)
	require.NoError(t, s.Events.Create(context.Background(), &e))
	return e
}

func mustUser(t *testing.T, s *Store, name string) User {
	t.Helper()
	u := User{Username: name, Email: name + "@example.com", Password: "hash", Role: RoleAttendee}
	require.NoError(t, s.Users.Create(context.Background(), &u))
	require.NotEmpty(t, u.ID)
	return u
}

func mustAttendees(t *testing.T, s *Store, eventID string) []Attendee {
	t.Helper()
	att, err := s.Registrations.ListAttendees(context.Background(), eventID)
	require.NoError(t, err)
	return att
}

var day0 = time.Date(2030, 1, 1, 18, 0, 0, 0, time.UTC)

func testEventRoundTrip(t *testing.T, s *Store) {
	ctx := context.Background()
	e := mustEvent(t, s, "GoConf", "tech", day0, 10)

	got, err := s.Events.GetByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, e.ID, got.ID)
	assert.Equal(t, e.Title, got.Title)
	assert.Equal(t, e.Category, got.Category)
	assert.Equal(t, e.Capacity, got.Capacity)
	assert.True(t, e.Date.Equal(got.Date))

	_, err = s.Events.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func testEventPartialUpdate(t *testing.T, s *Store) {
	ctx := context.Background()
	e := mustEvent(t, s, "Meetup", "social", day0, 5)

	title := "Meetup v2"
	updated, err := s.Events.Update(ctx, e.ID, EventPatch{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "Meetup v2", updated.Title)

	got, err := s.Events.GetByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "Meetup v2", got.Title)
	assert.Equal(t, e.Description, got.Description)
	assert.Equal(t, e.Location, got.Location)
	assert.Equal(t, e.Capacity, got.Capacity)
	assert.Equal(t, e.Category, got.Category)

	_, err = s.Events.Update(ctx, "missing", EventPatch{Title: &title})
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func testEventListPaging(t *testing.T, s *Store) {
	ctx := context.Background()
	for i := 0; i < 7; i++ {
		mustEvent(t, s, fmt.Sprintf("E%d", i), "tech", day0.Add(time.Duration(6-i)*time.Hour), 3)
	}

	page1, total, err := s.Events.List(ctx, EventFilter{Page: 1, Limit: 3})
	require.NoError(t, err)
	assert.EqualValues(t, 7, total)
	require.Len(t, page1, 3)
	assert.Equal(t, "E6", page1[0].Title, "sorted by date ascending")

	page3, total, err := s.Events.List(ctx, EventFilter{Page: 3, Limit: 3})
	require.NoError(t, err)
	assert.EqualValues(t, 7, total)
	assert.Len(t, page3, 1)

	beyond, _, err := s.Events.List(ctx, EventFilter{Page: 9, Limit: 3})
	require.NoError(t, err)
	assert.Empty(t, beyond)
}

func testEventListFilters(t *testing.T, s *Store) {
	ctx := context.Background()
	mustEvent(t, s, "Go Workshop", "Tech", day0, 3)
	mustEvent(t, s, "Jazz Night", "Music", day0.Add(48*time.Hour), 3)
	mustEvent(t, s, "Rust (advanced)", "tech-talks", day0.Add(96*time.Hour), 3)

	got, total, err := s.Events.List(ctx, EventFilter{Category: "tech", Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, got, 2)

	got, _, err = s.Events.List(ctx, EventFilter{Search: "jazz", Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Jazz Night", got[0].Title)

	got, _, err = s.Events.List(ctx, EventFilter{Search: "(adv", Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Len(t, got, 1, "filter text is literal")

	from, to := day0.Add(time.Hour), day0.Add(72*time.Hour)
	got, total, err = s.Events.List(ctx, EventFilter{From: &from, To: &to, Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, got, 1)
	assert.Equal(t, "Jazz Night", got[0].Title)
}

func testEventStats(t *testing.T, s *Store) {
	mustEvent(t, s, "A", "tech", day0, 1)
	mustEvent(t, s, "B", "tech", day0, 1)
	mustEvent(t, s, "C", "music", day0, 1)

	stats, err := s.Events.Stats(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 3, stats.TotalEvents)
	assert.Equal(t, map[string]int64{"tech": 2, "music": 1}, stats.Categories)
}

func testUserUniqueness(t *testing.T, s *Store) {
	ctx := context.Background()
	u := mustUser(t, s, "alice")

	got, err := s.Users.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, "hash", got.Password)

	byID, err := s.Users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", byID.Username)

	dupName := User{Username: "alice", Email: "other@example.com", Password: "x", Role: RoleAttendee}
	assert.ErrorIs(t, s.Users.Create(ctx, &dupName), ErrDuplicateUser)

	dupEmail := User{Username: "alice2", Email: "alice@example.com", Password: "x", Role: RoleAttendee}
	assert.ErrorIs(t, s.Users.Create(ctx, &dupEmail), ErrDuplicateUser)

	_, err = s.Users.GetByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, ErrUserNotFound)

	// usernames and emails are compared exactly; emails arrive lowercased from the API
	upper := User{Username: "Alice", Email: "ALICE@example.com", Password: "x", Role: RoleAttendee}
	require.NoError(t, s.Users.Create(ctx, &upper))
	got, err = s.Users.GetByUsername(ctx, "Alice")
	require.NoError(t, err)
	assert.Equal(t, upper.ID, got.ID)
	assert.NotEqual(t, u.ID, got.ID)

	_, err = s.Users.GetByUsername(ctx, "ALICE")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func testRegistrationCapacity(t *testing.T, s *Store) {
	ctx := context.Background()
	e := mustEvent(t, s, "Small", "tech", day0, 2)
	a, b, c := mustUser(t, s, "ann"), mustUser(t, s, "bob"), mustUser(t, s, "cid")

	reg, err := s.Registrations.Register(ctx, e.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, reg.UserID)

	_, err = s.Registrations.Register(ctx, e.ID, a.ID)
	assert.ErrorIs(t, err, ErrAlreadyRegistered)

	_, err = s.Registrations.Register(ctx, e.ID, b.ID)
	require.NoError(t, err)

	_, err = s.Registrations.Register(ctx, e.ID, c.ID)
	assert.ErrorIs(t, err, ErrEventFull)

	_, err = s.Registrations.Register(ctx, "missing", c.ID)
	assert.ErrorIs(t, err, ErrEventNotFound)

	assert.Len(t, mustAttendees(t, s, e.ID), 2)

	got, err := s.Events.GetByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.RegisteredCount)

	one := 1
	_, err = s.Events.Update(ctx, e.ID, EventPatch{Capacity: &one})
	assert.ErrorIs(t, err, ErrCapacityBelowRegistered)

	attendees, err := s.Registrations.ListAttendees(ctx, e.ID)
	require.NoError(t, err)
	require.Len(t, attendees, 2)
	assert.Equal(t, "ann", attendees[0].Username)
	assert.Equal(t, "ann@example.com", attendees[0].Email)
	assert.Equal(t, "bob", attendees[1].Username)
}

func testRegistrationCancelAndDelete(t *testing.T, s *Store) {
	ctx := context.Background()
	e := mustEvent(t, s, "One seat", "tech", day0, 1)
	a, b := mustUser(t, s, "amy"), mustUser(t, s, "ben")

	_, err := s.Registrations.Register(ctx, e.ID, a.ID)
	require.NoError(t, err)
	_, err = s.Registrations.Register(ctx, e.ID, b.ID)
	require.ErrorIs(t, err, ErrEventFull)

	require.NoError(t, s.Registrations.Cancel(ctx, e.ID, a.ID))
	assert.ErrorIs(t, s.Registrations.Cancel(ctx, e.ID, a.ID), ErrRegistrationNotFound)

	_, err = s.Registrations.Register(ctx, e.ID, b.ID)
	require.NoError(t, err, "cancelled seat is free again")

	require.NoError(t, s.Events.Delete(ctx, e.ID))
	assert.ErrorIs(t, s.Events.Delete(ctx, e.ID), ErrEventNotFound)

	assert.Empty(t, mustAttendees(t, s, e.ID))
}

func testConcurrentRegistration(t *testing.T, s *Store) {
	ctx := context.Background()
	const capacity, requests = 5, 40
	e := mustEvent(t, s, "Hot ticket", "tech", day0, capacity)

	users := make([]User, requests)
	for i := range users {
		users[i] = mustUser(t, s, fmt.Sprintf("gopher%d", i))
	}

	var ok, full, other int32
	var wg sync.WaitGroup
	wg.Add(requests)
	for i := 0; i < requests; i++ {
		go func(u User) {
			defer wg.Done()
			_, err := s.Registrations.Register(ctx, e.ID, u.ID)
			switch {
			case err == nil:
				atomic.AddInt32(&ok, 1)
			case errors.Is(err, ErrEventFull):
				atomic.AddInt32(&full, 1)
			default:
				atomic.AddInt32(&other, 1)
			}
		}(users[i])
	}
	wg.Wait()

	assert.EqualValues(t, capacity, ok)
	assert.EqualValues(t, requests-capacity, full)
	assert.Zero(t, other)

	assert.Len(t, mustAttendees(t, s, e.ID), capacity)
}
