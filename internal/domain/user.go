package domain

import (
	"strings"
	"time"
)

// Role represents a portal user role
type Role string

const (
	RoleCustomer   Role = "customer"
	RoleDispatcher Role = "dispatcher"
	RoleAdmin      Role = "admin"
)

// Roles lists every recognized role in display order
var Roles = []Role{RoleCustomer, RoleDispatcher, RoleAdmin}

// ParseRole matches a role case-insensitively
func ParseRole(s string) (Role, bool) {
	for _, r := range Roles {
		if strings.EqualFold(string(r), strings.TrimSpace(s)) {
			return r, true
		}
	}
	return "", false
}

// UserRecord is a user account as returned by the admin users endpoint
type UserRecord struct {
	ID        string    `json:"id" mapstructure:"id"`
	Name      string    `json:"name" mapstructure:"name" validate:"required"`
	Email     string    `json:"email" mapstructure:"email" validate:"required"`
	Role      string    `json:"role" mapstructure:"role" validate:"required,recognized_role"`
	CreatedAt time.Time `json:"createdAt" mapstructure:"createdAt"`
}
