package dto

import (
	"time"

	"github.com/shopdesk/jobtickets/internal/domain"
)

// CodeLoginRequest payload.
type CodeLoginRequest struct {
	Code string `json:"code"`
}

// MagicLinkRequest payload for requesting a sign-in link.
type MagicLinkRequest struct {
	Email string `json:"email"`
}

// MagicLinkVerifyRequest payload for redeeming a sign-in link.
type MagicLinkVerifyRequest struct {
	Token string `json:"token"`
}

// LoginResponse is returned by every sign-in path.
type LoginResponse struct {
	Token     string          `json:"token"`
	Scheme    string          `json:"scheme"`
	ExpiresAt time.Time       `json:"expires_at"`
	Identity  domain.Identity `json:"identity"`
}

// CreateMemberRequest payload.
type CreateMemberRequest struct {
	Name  string           `json:"name"`
	Code  string           `json:"code"`
	Role  domain.StaffRole `json:"role"`
	Email string           `json:"email"`
}

// UpdateCodeRequest payload.
type UpdateCodeRequest struct {
	Code string `json:"code"`
}

// RenameRequest payload.
type RenameRequest struct {
	Name string `json:"name"`
}

// MemberResponse is a roster entry.
type MemberResponse struct {
	ID               string           `json:"id"`
	Code             string           `json:"code"`
	Name             string           `json:"name"`
	Email            *string          `json:"email,omitempty"`
	Role             domain.StaffRole `json:"role"`
	Active           bool             `json:"active"`
	TechnicianID     *string          `json:"technician_id,omitempty"`
	TechnicianActive *bool            `json:"technician_active,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
}

// Member maps a staff row.
func Member(s *domain.Staff) MemberResponse {
	return MemberResponse{
		ID:        s.ID,
		Code:      s.Code,
		Name:      s.Name,
		Email:     s.Email,
		Role:      s.Role,
		Active:    s.Active,
		CreatedAt: s.CreatedAt,
	}
}

// Members maps roster rows.
func Members(members []domain.RosterMember) []MemberResponse {
	out := make([]MemberResponse, 0, len(members))
	for i := range members {
		resp := Member(&members[i].Staff)
		resp.TechnicianID = members[i].TechnicianID
		resp.TechnicianActive = members[i].TechnicianActive
		out = append(out, resp)
	}
	return out
}
