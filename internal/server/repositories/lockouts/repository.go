// Package lockouts persists per-user failed login counters and lockout windows.
package lockouts

import (
	"context"
	"time"

	"github.com/jorenvermeersch/budget-api/internal/server/models"
)

type Repository interface {
	// Get returns the record for userID, or a zero record when none exists.
	Get(ctx context.Context, userID string) (*models.LockoutRecord, error)

	// Init creates the zero record for a new user.
	Init(ctx context.Context, userID string) error

	// IncrementFailures atomically adds one failure. When the new count is at
	// least threshold the lockout end is set to lockUntil.
	IncrementFailures(ctx context.Context, userID string, threshold int, lockUntil time.Time) (*models.LockoutRecord, error)

	// Reset clears the counter and any lockout.
	Reset(ctx context.Context, userID string) error
}
