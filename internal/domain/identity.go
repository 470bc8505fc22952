package domain

// Identity is the resolved caller: who they are, what they may do, and which
// business they act for.
type Identity struct {
	StaffID  string    `cbor:"1,keyasint" json:"staff_id"`
	TenantID string    `cbor:"2,keyasint" json:"tenant_id"`
	Role     StaffRole `cbor:"3,keyasint" json:"role"`
	Name     string    `cbor:"4,keyasint" json:"name"`
	Code     string    `cbor:"5,keyasint,omitempty" json:"code,omitempty"`
}

// HasRole reports whether the identity holds one of roles.
func (i Identity) HasRole(roles ...StaffRole) bool {
	for _, r := range roles {
		if i.Role == r {
			return true
		}
	}
	return false
}

// AuthScheme identifies how a caller authenticated.
type AuthScheme string

const (
	AuthSchemeSession AuthScheme = "SESSION"
	AuthSchemeBearer  AuthScheme = "BEARER"
)
