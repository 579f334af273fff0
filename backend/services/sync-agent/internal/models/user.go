package models

import "time"

// Role is the acting user's role.
type Role string

const (
	RoleOwner    Role = "OWNER"
	RoleOperator Role = "OPERATOR"
)

// User is a signed-in account. NIC stays in clear because the remote correlates bookings by it.
type User struct {
	ID        string    `json:"id"`
	NIC       string    `json:"nic"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CacheKey implements cache.Entity.
func (u User) CacheKey() string { return u.ID }
