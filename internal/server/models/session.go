package models

// Session is the verified identity behind a request.
type Session struct {
	UserID string
	Roles  RoleSet
	Token  string
}

// IsAdmin is shorthand for Roles.Has(RoleAdmin).
func (s *Session) IsAdmin() bool {
	return s != nil && s.Roles.Has(RoleAdmin)
}
