package models

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// Role is the closed set of caller roles. The zero value is not a valid role.
type Role int

const (
	RoleVendor Role = iota + 1
	RoleTenderCreator
	RoleAdmin
)

func ParseRole(s string) (Role, error) {
	switch s {
	case "vendor":
		return RoleVendor, nil
	case "tender_creator":
		return RoleTenderCreator, nil
	case "admin":
		return RoleAdmin, nil
	default:
		return 0, fmt.Errorf("models.ParseRole: unknown role %q", s)
	}
}

func (r Role) String() string {
	switch r {
	case RoleVendor:
		return "vendor"
	case RoleTenderCreator:
		return "tender_creator"
	case RoleAdmin:
		return "admin"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

// CanCreateTenders reports whether the role may author tenders.
func (r Role) CanCreateTenders() bool {
	switch r {
	case RoleAdmin, RoleTenderCreator:
		return true
	case RoleVendor:
		return false
	default:
		return false
	}
}

// CanBid reports whether the role may submit bids.
func (r Role) CanBid() bool {
	switch r {
	case RoleVendor:
		return true
	case RoleAdmin, RoleTenderCreator:
		return false
	default:
		return false
	}
}

func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(text []byte) error {
	role, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = role
	return nil
}

// Scan implements sql.Scanner for the user_role enum column.
func (r *Role) Scan(src any) error {
	switch v := src.(type) {
	case string:
		return r.UnmarshalText([]byte(v))
	case []byte:
		return r.UnmarshalText(v)
	default:
		return fmt.Errorf("models.Role.Scan: unsupported type %T", src)
	}
}

// Value rejects roles outside the closed set so they never reach the user_role cast.
func (r Role) Value() (driver.Value, error) {
	switch r {
	case RoleVendor, RoleTenderCreator, RoleAdmin:
		return r.String(), nil
	default:
		return nil, fmt.Errorf("models.Role.Value: %w: role %d", ErrInvalidArgument, int(r))
	}
}

type User struct {
	Id        string    `json:"id"`
	Username  string    `json:"username"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"-"`
}
