package domain

import (
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	userValidate     *validator.Validate
	userValidateOnce sync.Once
)

func userValidator() *validator.Validate {
	userValidateOnce.Do(func() {
		userValidate = validator.New()
		_ = userValidate.RegisterValidation("recognized_role", func(fl validator.FieldLevel) bool {
			_, ok := ParseRole(fl.Field().String())
			return ok
		})
	})
	return userValidate
}

// IsWellFormed reports whether the record has a name, an email and a recognized role
func (u UserRecord) IsWellFormed() bool {
	return userValidator().Struct(u) == nil
}

// UserDirectory holds the fetched user list and per-user booking counts
type UserDirectory struct {
	users         []UserRecord
	bookingCounts map[string]int
}

// NewUserDirectory creates a directory over the given users
func NewUserDirectory(users []UserRecord) *UserDirectory {
	return &UserDirectory{
		users:         users,
		bookingCounts: make(map[string]int),
	}
}

// Users returns the raw user list
func (d *UserDirectory) Users() []UserRecord {
	return d.users
}

// SafeUsers drops malformed records. It never fails.
func (d *UserDirectory) SafeUsers() []UserRecord {
	safe := make([]UserRecord, 0, len(d.users))
	for _, u := range d.users {
		if u.IsWellFormed() {
			safe = append(safe, u)
		}
	}
	return safe
}

// FilteredUsers returns safe users whose name or email contains searchTerm
// (case-insensitive) and whose role matches roleFilter ("all" matches any).
func (d *UserDirectory) FilteredUsers(searchTerm, roleFilter string) []UserRecord {
	return FilterUsers(d.SafeUsers(), searchTerm, roleFilter)
}

// FilterUsers applies the directory search and role predicates to users, keeping order
func FilterUsers(users []UserRecord, searchTerm, roleFilter string) []UserRecord {
	term := strings.ToLower(searchTerm)
	if roleFilter == "" {
		roleFilter = FilterAll
	}

	out := make([]UserRecord, 0, len(users))
	for _, u := range users {
		matchesSearch := strings.Contains(strings.ToLower(u.Name), term) ||
			strings.Contains(strings.ToLower(u.Email), term)
		matchesRole := roleFilter == FilterAll || strings.EqualFold(u.Role, roleFilter)
		if matchesSearch && matchesRole {
			out = append(out, u)
		}
	}
	return out
}

// BookingCountFor returns the booking count for a user, 0 if unknown
func (d *UserDirectory) BookingCountFor(id string) int {
	return d.bookingCounts[id]
}

// SetBookingCount records the booking count for a user
func (d *UserDirectory) SetBookingCount(id string, count int) {
	d.bookingCounts[id] = count
}

// RoleCounts counts users per recognized role over the raw list
func (d *UserDirectory) RoleCounts() map[Role]int {
	counts := make(map[Role]int, len(Roles))
	for _, r := range Roles {
		counts[r] = 0
	}
	for _, u := range d.users {
		if r, ok := ParseRole(u.Role); ok {
			counts[r]++
		}
	}
	return counts
}
