// Package auth defines the roles API principals can hold.
package auth

import (
	"encoding/json"
	"strings"
)

// Role is a hierarchical permission level; higher roles include lower ones
type Role int

const (
	// User may resolve images and manage session galleries
	User Role = iota
	// Operator may additionally inspect resolution internals
	Operator
	// Admin may purge cached resolutions
	Admin
)

// String returns the string representation of the role
func (r Role) String() string {
	switch r {
	case Admin:
		return "admin"
	case Operator:
		return "operator"
	case User:
		return "user"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the role by name
func (r Role) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// ParseRole converts a string to a Role, defaulting to the lowest privilege
func ParseRole(roleStr string) Role {
	switch strings.ToLower(strings.TrimSpace(roleStr)) {
	case "admin":
		return Admin
	case "operator":
		return Operator
	default:
		return User
	}
}

// HasPermission checks if the role has sufficient permissions for the required role
func (r Role) HasPermission(required Role) bool {
	return r >= required
}
