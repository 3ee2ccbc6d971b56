package models

import "time"

const (
	RoleOrganizer = "organizer"
	RoleAttendee  = "attendee"
)

type User struct {
	ID        string    `json:"id" bson:"-"`
	Username  string    `json:"username" bson:"username"`
	Email     string    `json:"email" bson:"email"`
	Password  string    `json:"-" bson:"password"` // bcrypt hash
	Role      string    `json:"role" bson:"role"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}

// UserInput is the body of POST /users/register.
type UserInput struct {
	Username string `json:"username" validate:"required,min=3,max=30,alphanum"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=6,max=72,maxbytes=72"`
	Role     string `json:"role" validate:"omitempty,oneof=organizer attendee"`
}

func (in *UserInput) Validate() error { return Validate(in) }

func (in *UserInput) RoleOrDefault() string {
	if in.Role == "" {
		return RoleAttendee
	}
	return in.Role
}

type LoginInput struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (in *LoginInput) Validate() error { return Validate(in) }

// Identity is the authenticated caller, decoded from the bearer token.
type Identity struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

func (id Identity) HasRole(allowed ...string) bool {
	for _, r := range allowed {
		if id.Role == r {
			return true
		}
	}
	return false
}
