package types

type Role string

const (
	RoleDonor Role = "donor"
	RoleNGO   Role = "ngo"
	RoleAdmin Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleDonor, RoleNGO, RoleAdmin:
		return true
	}
	return false
}

// Actor is the identity a request acts as. It is supplied by the identity
// provider and trusted as-is.
type Actor struct {
	UserID string `json:"user_id"`
	Role   Role   `json:"role"`
}
