package library

import (
	"time"

	"github.com/google/uuid"
)

// Session identifies the logged-in actor. It is passed explicitly to every
// operation that needs an actor id.
type Session struct {
	ID        string
	UserID    int64
	Role      Role
	StartedAt time.Time
}

func newSession(u *User, now time.Time) Session {
	return Session{
		ID:        uuid.NewString(),
		UserID:    u.ID,
		Role:      u.Role,
		StartedAt: now,
	}
}

func (s Session) IsAdmin() bool { return s.Role == RoleAdministrator }

// Valid is false for the zero Session.
func (s Session) Valid() bool { return s.ID != "" && s.UserID > 0 }
