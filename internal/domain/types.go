package domain

import "strings"

// ID is used across domain entities.
type ID = int64

// Role is one of the closed set of caller roles.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleOwner    Role = "owner"
	RoleAdmin    Role = "admin"
)

// ParseRole normalizes a role claim. Unknown values return false.
func ParseRole(s string) (Role, bool) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleCustomer, RoleOwner, RoleAdmin:
		return r, true
	default:
		return "", false
	}
}

// Pagination carries paging params and totals.
type Pagination struct {
	Page     int `json:"page"`
	PageSize int `json:"pageSize"`
	Total    int `json:"total,omitempty"`
}

// Offset returns the row offset for the current page, clamping bad input.
func (p Pagination) Offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit()
}

// Limit returns the page size bounded to [1, 200], defaulting to 50.
func (p Pagination) Limit() int {
	switch {
	case p.PageSize < 1:
		return 50
	case p.PageSize > 200:
		return 200
	default:
		return p.PageSize
	}
}

// Actor carries the authenticated caller handed over by the auth layer.
type Actor struct {
	UserID ID   `json:"userId"`
	Role   Role `json:"role"`
}

// System is the actor used by background jobs.
var System = Actor{Role: "system"}
