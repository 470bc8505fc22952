package domain

import (
	"strings"
	"time"
)

// StaffRole enumerates shop roles.
type StaffRole string

const (
	StaffRoleServiceWriter StaffRole = "SERVICE_WRITER"
	StaffRoleTechnician    StaffRole = "TECHNICIAN"
	StaffRoleManager       StaffRole = "MANAGER"
)

// Valid reports whether r is a known role.
func (r StaffRole) Valid() bool {
	switch r {
	case StaffRoleServiceWriter, StaffRoleTechnician, StaffRoleManager:
		return true
	}
	return false
}

// CodePrefix is the suggested login code prefix for the role.
func (r StaffRole) CodePrefix() string {
	switch r {
	case StaffRoleServiceWriter:
		return "SW"
	case StaffRoleTechnician:
		return "T"
	case StaffRoleManager:
		return "M"
	}
	return ""
}

// Staff is a login identity.
type Staff struct {
	ID        string
	TenantID  string
	Code      string
	Name      string
	Email     *string
	Role      StaffRole
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Technician is the work-attribution identity paired with a technician staff row.
type Technician struct {
	ID        string
	TenantID  string
	StaffID   string
	Name      string
	Active    bool
	CreatedAt time.Time
}

// RosterMember is a staff row joined with its technician profile, if any.
type RosterMember struct {
	Staff
	TechnicianID     *string
	TechnicianActive *bool
}

// NormalizeCode canonicalizes a login code for storage and comparison.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
