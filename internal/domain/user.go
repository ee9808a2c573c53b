package domain

import "time"

// Role is the coarse authorization role of a user.
type Role string

const (
	RoleAdmin Role = "ADMIN"
	RoleUser  Role = "USER"
)

// User is the domain model for people who create and work tickets.
type User struct {
	ID        string
	Email     string
	Name      string
	Role      Role
	Active    bool
	TeamIDs   []string
	CreatedAt time.Time
	UpdatedAt time.Time
}
