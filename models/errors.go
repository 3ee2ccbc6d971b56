package models

import (
	"errors"
	"strings"
)

var (
	ErrEventNotFound           = errors.New("event not found")
	ErrUserNotFound            = errors.New("user not found")
	ErrRegistrationNotFound    = errors.New("registration not found")
	ErrEventFull               = errors.New("event is at full capacity")
	ErrAlreadyRegistered       = errors.New("already registered for this event")
	ErrDuplicateUser           = errors.New("username or email already exists")
	ErrCapacityBelowRegistered = errors.New("capacity cannot be lower than the number of registrations")
)

// ValidationError lists every field problem found in a payload.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Problems, "; ")
}
