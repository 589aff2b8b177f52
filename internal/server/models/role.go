package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// Role is a single permission grant. The zero value is not a valid role.
type Role uint8

const (
	RoleUser Role = 1 << iota
	RoleAdmin
)

var allRoles = []Role{RoleUser, RoleAdmin}

func (r Role) String() string {
	switch r {
	case RoleUser:
		return "user"
	case RoleAdmin:
		return "admin"
	default:
		return fmt.Sprintf("role(%d)", uint8(r))
	}
}

func ParseRole(name string) (Role, error) {
	for _, r := range allRoles {
		if strings.EqualFold(name, r.String()) {
			return r, nil
		}
	}
	return 0, fmt.Errorf("unknown role %q", name)
}

// RoleSet is a set of roles stored as a bitmask. In the database it is a
// comma separated TEXT column, in JSON and tokens a list of role names.
type RoleSet uint8

func NewRoleSet(roles ...Role) RoleSet {
	var s RoleSet
	for _, r := range roles {
		s = s.Add(r)
	}
	return s
}

func (s RoleSet) Has(r Role) bool {
	return r != 0 && s&RoleSet(r) == RoleSet(r)
}

func (s RoleSet) Add(r Role) RoleSet {
	return s | RoleSet(r)
}

func (s RoleSet) IsEmpty() bool {
	return s == 0
}

func (s RoleSet) Strings() []string {
	names := make([]string, 0, len(allRoles))
	for _, r := range allRoles {
		if s.Has(r) {
			names = append(names, r.String())
		}
	}
	return names
}

func ParseRoleSet(names []string) (RoleSet, error) {
	var s RoleSet
	for _, name := range names {
		r, err := ParseRole(strings.TrimSpace(name))
		if err != nil {
			return 0, err
		}
		s = s.Add(r)
	}
	return s, nil
}

func (s RoleSet) Value() (driver.Value, error) {
	return strings.Join(s.Strings(), ","), nil
}

func (s *RoleSet) Scan(src any) error {
	var raw string
	switch v := src.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	case nil:
		*s = 0
		return nil
	default:
		return fmt.Errorf("cannot scan %T into RoleSet", src)
	}

	if raw == "" {
		*s = 0
		return nil
	}
	parsed, err := ParseRoleSet(strings.Split(raw, ","))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func (s RoleSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Strings())
}

func (s *RoleSet) UnmarshalJSON(b []byte) error {
	var names []string
	if err := json.Unmarshal(b, &names); err != nil {
		return err
	}
	parsed, err := ParseRoleSet(names)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
