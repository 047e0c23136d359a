package domain

import "fmt"

// Role is the closed set of authorization levels an account can hold.
// An account with no recorded role is RoleNone.
type Role string

const (
	RoleNone     Role = "NONE"
	RoleMerchant Role = "MERCHANT"
	RoleOwner    Role = "OWNER"
)

// ParseRole maps a stored string onto the closed enum.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleNone:
		return RoleNone, nil
	case RoleMerchant:
		return RoleMerchant, nil
	case RoleOwner:
		return RoleOwner, nil
	default:
		return RoleNone, fmt.Errorf("unknown role %q", s)
	}
}

// CanMint reports whether the role carries mint (cash-in) authority.
func (r Role) CanMint() bool {
	switch r {
	case RoleOwner:
		return true
	case RoleMerchant, RoleNone:
		return false
	default:
		return false
	}
}

// CanCashOutFor reports whether the role may authorize a cash-out on behalf
// of a different target holder.
func (r Role) CanCashOutFor() bool {
	switch r {
	case RoleOwner, RoleMerchant:
		return true
	case RoleNone:
		return false
	default:
		return false
	}
}

// CanAdministerRoles reports whether the role may grant or revoke roles.
func (r Role) CanAdministerRoles() bool {
	return r == RoleOwner
}
