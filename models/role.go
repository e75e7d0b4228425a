package models

import (
	"fmt"
	"strings"
)

// Role is the closed set of account roles.
type Role string

const (
	RoleCitizen   Role = "citizen"
	RoleCollector Role = "collector"
	RoleAdmin     Role = "admin"
)

// ParseRole converts a raw string into a Role, rejecting anything outside the set.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleCitizen, RoleCollector, RoleAdmin:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	_, err := ParseRole(string(r))
	return err == nil
}

// HomePath is the page area a role lands on after login.
func (r Role) HomePath() string {
	switch r {
	case RoleCitizen:
		return "/citizen"
	case RoleCollector:
		return "/collector"
	case RoleAdmin:
		return "/admin"
	default:
		return "/"
	}
}

func (r Role) String() string { return string(r) }
