package auth

import (
	"encoding/json"
	"fmt"
)

type roleKind uint8

const (
	kindDiner roleKind = iota
	kindFranchisee
	kindAdmin
)

// Role names as stored and serialized
const (
	RoleNameAdmin      = "admin"
	RoleNameFranchisee = "franchisee"
	RoleNameDiner      = "diner"
)

// Role is one of Admin, FranchiseeOf(franchiseID) or Diner. The zero value is Diner.
// Fields are unexported so a franchisee without a franchise cannot be built.
type Role struct {
	kind        roleKind
	franchiseID int64
}

// AdminRole is global administrative access
func AdminRole() Role {
	return Role{kind: kindAdmin}
}

// FranchiseeRole administers a single franchise
func FranchiseeRole(franchiseID int64) Role {
	return Role{kind: kindFranchisee, franchiseID: franchiseID}
}

// DinerRole is the capability every user holds
func DinerRole() Role {
	return Role{kind: kindDiner}
}

// ParseRole builds a Role from its stored name and optional object id
func ParseRole(name string, objectID int64) (Role, error) {
	switch name {
	case RoleNameAdmin:
		return AdminRole(), nil
	case RoleNameDiner:
		return DinerRole(), nil
	case RoleNameFranchisee:
		if objectID <= 0 {
			return Role{}, fmt.Errorf("franchisee role requires a franchise id")
		}
		return FranchiseeRole(objectID), nil
	default:
		return Role{}, fmt.Errorf("unknown role %q", name)
	}
}

// Name returns the stored name of the role
func (r Role) Name() string {
	switch r.kind {
	case kindAdmin:
		return RoleNameAdmin
	case kindFranchisee:
		return RoleNameFranchisee
	default:
		return RoleNameDiner
	}
}

// FranchiseID returns the franchise a franchisee role is scoped to
func (r Role) FranchiseID() (int64, bool) {
	if r.kind != kindFranchisee {
		return 0, false
	}
	return r.franchiseID, true
}

// IsAdmin reports whether r is the global admin role
func (r Role) IsAdmin() bool {
	return r.kind == kindAdmin
}

func (r Role) String() string {
	if r.kind == kindFranchisee {
		return fmt.Sprintf("%s(%d)", RoleNameFranchisee, r.franchiseID)
	}
	return r.Name()
}

type roleJSON struct {
	Role     string `json:"role"`
	ObjectID int64  `json:"objectId,omitempty"`
}

// MarshalJSON encodes {"role":"franchisee","objectId":7}
func (r Role) MarshalJSON() ([]byte, error) {
	return json.Marshal(roleJSON{Role: r.Name(), ObjectID: r.franchiseID})
}

// UnmarshalJSON rejects unknown roles and franchisees without an object id
func (r *Role) UnmarshalJSON(data []byte) error {
	var raw roleJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseRole(raw.Role, raw.ObjectID)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// User is a registered account. PasswordHash is never serialized.
type User struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	Roles        []Role `json:"roles"`
}

// HasRole reports whether the user holds role. Every user is a diner.
func (u *User) HasRole(role Role) bool {
	return hasRole(u.Roles, role)
}

// IsAdmin reports whether the user holds the global admin role
func (u *User) IsAdmin() bool {
	return hasRole(u.Roles, AdminRole())
}

func hasRole(roles []Role, role Role) bool {
	if role.kind == kindDiner {
		return true
	}
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// Identity is the verified caller attached to a request
type Identity struct {
	UserID int64
	Name   string
	Email  string
	Roles  []Role
	// Token is the raw bearer token the caller presented
	Token string
}

// NewIdentity builds the identity of user authenticated by token
func NewIdentity(user *User, token string) *Identity {
	roles := make([]Role, len(user.Roles))
	copy(roles, user.Roles)
	return &Identity{
		UserID: user.ID,
		Name:   user.Name,
		Email:  user.Email,
		Roles:  roles,
		Token:  token,
	}
}

// HasRole reports whether the identity holds role. Diner is always held.
func (i *Identity) HasRole(role Role) bool {
	return hasRole(i.Roles, role)
}

// IsAdmin reports whether the identity holds the global admin role
func (i *Identity) IsAdmin() bool {
	return hasRole(i.Roles, AdminRole())
}

// SubjectID returns the user id, satisfying rbac.Subject
func (i *Identity) SubjectID() int64 {
	return i.UserID
}

// User returns the public user view of the identity
func (i *Identity) User() *User {
	roles := make([]Role, len(i.Roles))
	copy(roles, i.Roles)
	return &User{ID: i.UserID, Name: i.Name, Email: i.Email, Roles: roles}
}
