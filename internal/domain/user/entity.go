package user

import (
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
)

// User represents the subset of the users table this service reads and writes.
// Accounts are created and authenticated elsewhere.
type User struct {
	ID                uuid.UUID
	Email             string
	FirstName         string
	LastName          string
	ProfilePictureURL sql.NullString
	IsOnline          bool
	LastSeenAt        sql.NullTime
	PresenceVersion   int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (User) TableName() string {
	return "users"
}

func (u User) DisplayName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}
