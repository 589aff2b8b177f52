package models

import "time"

// LockoutRecord tracks consecutive failed logins for one user. LockoutEnd is
// nil until the failure threshold is first reached.
type LockoutRecord struct {
	UserID         string
	FailedAttempts int
	LockoutEnd     *time.Time
}

// LockedAt reports whether the account is locked at the given instant.
func (r *LockoutRecord) LockedAt(now time.Time) bool {
	return r != nil && r.LockoutEnd != nil && now.Before(*r.LockoutEnd)
}
