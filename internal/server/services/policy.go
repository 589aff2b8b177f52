package services

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/jorenvermeersch/budget-api/internal/common"
	"github.com/jorenvermeersch/budget-api/internal/logging"
	"github.com/jorenvermeersch/budget-api/internal/server/audit"
	"github.com/jorenvermeersch/budget-api/internal/server/breach"
)

const msgPasswordRejected = "password does not meet the requirements"

// PasswordPolicy decides whether a new password is acceptable: length bounds,
// a minimum zxcvbn score and absence from the breach corpus.
type PasswordPolicy struct {
	minLength int
	maxLength int
	minScore  int
	breach    BreachChecker
	recorder  SecurityRecorder
	logger    logging.Logger
}

func NewPasswordPolicy(minLength, maxLength, minScore int, checker BreachChecker, recorder SecurityRecorder, logger logging.Logger) *PasswordPolicy {
	return &PasswordPolicy{
		minLength: minLength,
		maxLength: maxLength,
		minScore:  minScore,
		breach:    checker,
		recorder:  recorder,
		logger:    logger.With("module", "password_policy"),
	}
}

// Check returns a ValidationFailed error with the reason under the
// "password" detail key. userInputs (email, names) lower the strength score
// of passwords built from them.
//
// The breach lookup fails open: when the corpus cannot be reached the
// password is accepted and the outage is recorded.
func (p *PasswordPolicy) Check(ctx context.Context, principalID, password string, userInputs ...string) error {
	n := utf8.RuneCountInString(password)
	if n < p.minLength {
		return rejectPassword(fmt.Sprintf("must be at least %d characters", p.minLength))
	}
	if n > p.maxLength {
		return rejectPassword(fmt.Sprintf("must be at most %d characters", p.maxLength))
	}

	if p.minScore > 0 && breach.Strength(password, userInputs...) < p.minScore {
		return rejectPassword("is too easy to guess")
	}

	breached, err := p.breach.IsBreached(ctx, password)
	if err != nil {
		p.logger.Warn(ctx, "breach check unavailable, accepting password", "error", err)
		p.recorder.Record(ctx, audit.Event{
			Code:        audit.BreachCheckUnavailable,
			PrincipalID: principalID,
			Reason:      err.Error(),
		})
		return nil
	}
	if breached {
		return rejectPassword("appears in a known data breach")
	}

	return nil
}

func rejectPassword(reason string) error {
	return common.Validation(msgPasswordRejected, map[string]any{"password": reason})
}
