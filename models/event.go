package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Event struct {
	ID              string    `json:"id" bson:"id"` // UUID, not the storage id
	Title           string    `json:"title" bson:"title"`
	Description     string    `json:"description" bson:"description"`
	Date            time.Time `json:"date" bson:"date"`
	Location        string    `json:"location" bson:"location"`
	Capacity        int       `json:"capacity" bson:"capacity"`
	Price           float64   `json:"price" bson:"price"`
	IsVirtual       bool      `json:"isVirtual" bson:"isVirtual"`
	Category        string    `json:"category" bson:"category"`
	OrganizerID     string    `json:"organizerId" bson:"organizerId"`
	RegisteredCount int       `json:"registeredCount" bson:"registeredCount"`
	CreatedAt       time.Time `json:"createdAt" bson:"createdAt"`
}

// EventInput is the body of POST /events.
type EventInput struct {
	Title       string    `json:"title" validate:"required,notblank,max=200"`
	Description string    `json:"description" validate:"required,notblank,max=5000,safehtml"`
	Date        time.Time `json:"date" validate:"required"`
	Location    string    `json:"location" validate:"required,notblank,max=200"`
	Capacity    int       `json:"capacity" validate:"min=1,max=1000000"`
	Price       *float64  `json:"price" validate:"required,min=0"`
	IsVirtual   *bool     `json:"isVirtual" validate:"required"`
	Category    string    `json:"category" validate:"required,notblank,max=100"`
}

func (in *EventInput) Validate() error { return Validate(in) }

// NewEvent validates the input and builds a new event owned by organizerID.
func NewEvent(in EventInput, organizerID string) (Event, error) {
	if err := in.Validate(); err != nil {
		return Event{}, err
	}
	return Event{
		ID:          uuid.NewString(),
		Title:       strings.TrimSpace(in.Title),
		Description: cleanDescription(in.Description),
		Date:        in.Date.UTC(),
		Location:    strings.TrimSpace(in.Location),
		Capacity:    in.Capacity,
		Price:       *in.Price,
		IsVirtual:   *in.IsVirtual,
		Category:    strings.TrimSpace(in.Category),
		OrganizerID: organizerID,
		CreatedAt:   time.Now().UTC().Truncate(time.Millisecond),
	}, nil
}

// EventPatch is the body of PUT /events/:id. Nil fields are left untouched.
type EventPatch struct {
	Title       *string    `json:"title" validate:"omitempty,notblank,max=200"`
	Description *string    `json:"description" validate:"omitempty,notblank,max=5000,safehtml"`
	Date        *time.Time `json:"date"`
	Location    *string    `json:"location" validate:"omitempty,notblank,max=200"`
	Capacity    *int       `json:"capacity" validate:"omitempty,min=1,max=1000000"`
	Price       *float64   `json:"price" validate:"omitempty,min=0"`
	IsVirtual   *bool      `json:"isVirtual"`
	Category    *string    `json:"category" validate:"omitempty,notblank,max=100"`
}

func (p *EventPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Date == nil && p.Location == nil &&
		p.Capacity == nil && p.Price == nil && p.IsVirtual == nil && p.Category == nil
}

func (p *EventPatch) Validate() error {
	if p.IsEmpty() {
		return &ValidationError{Problems: []string{"no fields to update"}}
	}
	return Validate(p)
}

// Apply merges the present fields into e.
func (p *EventPatch) Apply(e *Event) {
	if p.Title != nil {
		e.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		e.Description = cleanDescription(*p.Description)
	}
	if p.Date != nil {
		e.Date = p.Date.UTC()
	}
	if p.Location != nil {
		e.Location = strings.TrimSpace(*p.Location)
	}
	if p.Capacity != nil {
		e.Capacity = *p.Capacity
	}
	if p.Price != nil {
		e.Price = *p.Price
	}
	if p.IsVirtual != nil {
		e.IsVirtual = *p.IsVirtual
	}
	if p.Category != nil {
		e.Category = strings.TrimSpace(*p.Category)
	}
}

// Fields returns the present fields keyed by their stored (camelCase) name.
func (p *EventPatch) Fields() map[string]any {
	var e Event
	p.Apply(&e)
	out := map[string]any{}
	if p.Title != nil {
		out["title"] = e.Title
	}
	if p.Description != nil {
		out["description"] = e.Description
	}
	if p.Date != nil {
		out["date"] = e.Date
	}
	if p.Location != nil {
		out["location"] = e.Location
	}
	if p.Capacity != nil {
		out["capacity"] = e.Capacity
	}
	if p.Price != nil {
		out["price"] = e.Price
	}
	if p.IsVirtual != nil {
		out["isVirtual"] = e.IsVirtual
	}
	if p.Category != nil {
		out["category"] = e.Category
	}
	return out
}

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

type EventFilter struct {
	Category string
	Search   string
	From     *time.Time
	To       *time.Time
	Page     int
	Limit    int
}

func (f EventFilter) Skip() int64 {
	if f.Page < 1 {
		return 0
	}
	return int64(f.Page-1) * int64(f.Limit)
}

// Matches reports whether e passes the category/search/date filters (not paging).
func (f EventFilter) Matches(e Event) bool {
	if f.Category != "" && !containsFold(e.Category, f.Category) {
		return false
	}
	if f.Search != "" && !containsFold(e.Title, f.Search) {
		return false
	}
	if f.From != nil && e.Date.Before(*f.From) {
		return false
	}
	if f.To != nil && e.Date.After(*f.To) {
		return false
	}
	return true
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

type EventPage struct {
	Events []Event `json:"events"`
	Total  int64   `json:"total"`
	Page   int     `json:"page"`
	Limit  int     `json:"limit"`
}

type EventStats struct {
	TotalEvents int64            `json:"totalEvents"`
	Categories  map[string]int64 `json:"categories"`
}
