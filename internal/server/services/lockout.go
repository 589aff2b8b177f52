package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jorenvermeersch/budget-api/internal/server/models"
	"github.com/jorenvermeersch/budget-api/internal/server/repositories/repomanager"
)

// LockoutTracker counts consecutive failed logins per user. Reaching the
// threshold locks the account until now + duration. The counter survives the
// end of a lockout, so the next failure locks again; only RecordSuccess
// clears it.
type LockoutTracker struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	threshold   int
	duration    time.Duration
	now         func() time.Time
}

func NewLockoutTracker(db *sql.DB, m repomanager.RepositoryManager, threshold int, duration time.Duration) *LockoutTracker {
	return &LockoutTracker{
		db:          db,
		repomanager: m,
		threshold:   threshold,
		duration:    duration,
		now:         time.Now,
	}
}

func (t *LockoutTracker) Get(ctx context.Context, userID string) (*models.LockoutRecord, error) {
	rec, err := t.repomanager.Lockouts(t.db).Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error reading lockout record: %w", err)
	}
	return rec, nil
}

// RecordFailure adds one failed attempt and reports whether the account is
// locked afterwards.
func (t *LockoutTracker) RecordFailure(ctx context.Context, userID string) (*models.LockoutRecord, bool, error) {
	now := t.now()
	rec, err := t.repomanager.Lockouts(t.db).IncrementFailures(ctx, userID, t.threshold, now.Add(t.duration))
	if err != nil {
		return nil, false, fmt.Errorf("error recording failed login: %w", err)
	}
	return rec, rec.LockedAt(now), nil
}

func (t *LockoutTracker) RecordSuccess(ctx context.Context, userID string) error {
	if err := t.repomanager.Lockouts(t.db).Reset(ctx, userID); err != nil {
		return fmt.Errorf("error resetting lockout record: %w", err)
	}
	return nil
}

func (t *LockoutTracker) IsLocked(ctx context.Context, userID string) (bool, error) {
	rec, err := t.Get(ctx, userID)
	if err != nil {
		return false, err
	}
	return rec.LockedAt(t.now()), nil
}
