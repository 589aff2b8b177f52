// Package models defines the server-side data models persisted in the database.
package models

import "time"

type User struct {
	ID           string
	FirstName    string
	LastName     *string
	Email        string
	PasswordHash string
	Roles        RoleSet
	CreatedAt    time.Time
}
