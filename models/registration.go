package models

import "time"

type Registration struct {
	EventID      string    `json:"eventId" bson:"eventId"`
	UserID       string    `json:"userId" bson:"userId"`
	RegisteredAt time.Time `json:"registeredAt" bson:"registeredAt"`
}

// Attendee is a registration joined to its user.
type Attendee struct {
	EventID      string    `json:"eventId"`
	UserID       string    `json:"userId"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	RegisteredAt time.Time `json:"registeredAt"`
}
