package auth

import "strings"

// RoleKind is the closed tag identifying which principal variant an actor is.
type RoleKind string

const (
	// RoleGuest is an unprivileged visitor
	RoleGuest RoleKind = "guest"
	// RoleMember is a regular account holder
	RoleMember RoleKind = "member"
	// RoleEmployee is an internal employee account
	RoleEmployee RoleKind = "employee"
	// RoleModerator moderates member content
	RoleModerator RoleKind = "moderator"
	// RoleStaff is tenant scoped staff (see Principal.TenantID)
	RoleStaff RoleKind = "staff"
	// RoleAdmin administers the system
	RoleAdmin RoleKind = "admin"
	// RoleOwner owns the system
	RoleOwner RoleKind = "owner"
)

// IsValid checks if the role kind is one of the predefined kinds
func (r RoleKind) IsValid() bool {
	switch r {
	case RoleGuest, RoleMember, RoleEmployee, RoleModerator, RoleStaff, RoleAdmin, RoleOwner:
		return true
	default:
		return false
	}
}

func (r RoleKind) String() string {
	return string(r)
}

// AllRoleKinds returns every predefined role kind
func AllRoleKinds() []RoleKind {
	return []RoleKind{
		RoleGuest,
		RoleMember,
		RoleEmployee,
		RoleModerator,
		RoleStaff,
		RoleAdmin,
		RoleOwner,
	}
}

// ParseRoleKind safely parses a string into a RoleKind
func ParseRoleKind(raw string) (RoleKind, bool) {
	role := RoleKind(strings.ToLower(strings.TrimSpace(raw)))
	return role, role.IsValid()
}

// RoleSet is a set of role kinds. The zero value places no requirement.
type RoleSet map[RoleKind]struct{}

// NewRoleSet builds a RoleSet, ignoring invalid kinds.
func NewRoleSet(kinds ...RoleKind) RoleSet {
	set := make(RoleSet, len(kinds))
	for _, k := range kinds {
		if k.IsValid() {
			set[k] = struct{}{}
		}
	}
	return set
}

// Contains reports whether kind is a member of the set.
func (s RoleSet) Contains(kind RoleKind) bool {
	_, ok := s[kind]
	return ok
}

// Empty reports whether the set places no requirement.
func (s RoleSet) Empty() bool {
	return len(s) == 0
}

// Kinds returns the members in AllRoleKinds order.
func (s RoleSet) Kinds() []RoleKind {
	out := make([]RoleKind, 0, len(s))
	for _, k := range AllRoleKinds() {
		if s.Contains(k) {
			out = append(out, k)
		}
	}
	return out
}
