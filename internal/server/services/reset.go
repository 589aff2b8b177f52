package services

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/jorenvermeersch/budget-api/internal/common"
	"github.com/jorenvermeersch/budget-api/internal/dbx"
	"github.com/jorenvermeersch/budget-api/internal/logging"
	"github.com/jorenvermeersch/budget-api/internal/server/audit"
	"github.com/jorenvermeersch/budget-api/internal/server/mail"
	"github.com/jorenvermeersch/budget-api/internal/server/models"
	"github.com/jorenvermeersch/budget-api/internal/server/repositories/repomanager"
)

const (
	msgResetInvalid = "invalid or expired password reset token"
	resetTokenBytes = 32
)

type ResetInput struct {
	Email       string
	Token       string
	NewPassword string
}

type ResetOptions struct {
	Validity    time.Duration
	ResetURL    string
	MailTimeout time.Duration
}

// PasswordResetService issues single-use reset tokens by mail and applies
// them. Only the SHA-256 of a token is stored, and a new request replaces
// any pending one.
type PasswordResetService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	hasher      PasswordHasher
	lockouts    *LockoutTracker
	policy      *PasswordPolicy
	mailer      mail.Sender
	recorder    SecurityRecorder
	logger      logging.Logger
	opts        ResetOptions
	now         func() time.Time

	wg sync.WaitGroup
}

func NewPasswordResetService(db *sql.DB, m repomanager.RepositoryManager, hasher PasswordHasher, lockouts *LockoutTracker,
	policy *PasswordPolicy, mailer mail.Sender, recorder SecurityRecorder, logger logging.Logger, opts ResetOptions) *PasswordResetService {
	return &PasswordResetService{
		db:          db,
		repomanager: m,
		hasher:      hasher,
		lockouts:    lockouts,
		policy:      policy,
		mailer:      mailer,
		recorder:    recorder,
		logger:      logger.With("module", "password_reset"),
		opts:        opts,
		now:         time.Now,
	}
}

func hashResetToken(token string) []byte {
	sum := sha256.Sum256([]byte(token))
	return sum[:]
}

func resetInvalid() error {
	return common.Validation(msgResetInvalid, nil)
}

// RequestReset starts a reset for email. Unknown addresses succeed silently.
// The mail is sent in the background; its failure is logged and recorded but
// never reported to the caller. Only storage failures return an error.
func (s *PasswordResetService) RequestReset(ctx context.Context, email string) error {
	email = common.NormalizeEmail(email)

	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.recorder.Record(ctx, audit.Event{
				Code:   audit.ResetUnknownEmail,
				Reason: "no user with this email",
				Fields: map[string]any{"email": email},
			})
			return nil
		}
		return fmt.Errorf("error loading user: %w", err)
	}

	token, err := common.MakeRandHexString(resetTokenBytes)
	if err != nil {
		return fmt.Errorf("error generating reset token: %w", err)
	}

	now := s.now()
	req := &models.ResetRequest{
		UserID:    user.ID,
		TokenHash: hashResetToken(token),
		ExpiresAt: now.Add(s.opts.Validity),
		CreatedAt: now,
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.ResetTokens(tx)
		if err := repo.DeleteByUserID(ctx, user.ID); err != nil {
			return err
		}
		return repo.Create(ctx, req)
	})
	if err != nil {
		return fmt.Errorf("error storing reset request: %w", err)
	}

	s.recorder.Record(ctx, audit.Event{
		Code:   audit.ResetRequested,
		Fields: map[string]any{"user_id": user.ID, "expires_at": req.ExpiresAt},
	})

	link := s.resetLink(email, token)
	s.wg.Add(1)
	go s.sendResetMail(context.WithoutCancel(ctx), user, link)

	return nil
}

func (s *PasswordResetService) resetLink(email, token string) string {
	q := url.Values{}
	q.Set("email", email)
	q.Set("token", token)
	return s.opts.ResetURL + "?" + q.Encode()
}

func (s *PasswordResetService) sendResetMail(ctx context.Context, user *models.User, link string) {
	defer s.wg.Done()

	if s.opts.MailTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.MailTimeout)
		defer cancel()
	}

	msg, err := mail.PasswordReset(user.Email, user.FirstName, link, s.opts.Validity)
	if err == nil {
		err = s.mailer.Send(ctx, msg)
	}
	if err != nil {
		s.logger.Error(ctx, "error sending password reset mail", "user_id", user.ID, "error", err)
		s.recorder.Record(ctx, audit.Event{
			Code:   audit.ResetMailFailed,
			Reason: err.Error(),
			Fields: map[string]any{"user_id": user.ID},
		})
	}
}

// Wait blocks until every background mail dispatch has finished.
func (s *PasswordResetService) Wait() {
	s.wg.Wait()
}

// Reset applies a new password using a token from RequestReset. Unknown
// email, missing request, wrong token and expiry all yield the same
// ValidationFailed error. On success the token is consumed and the lockout
// counter is cleared.
func (s *PasswordResetService) Reset(ctx context.Context, in ResetInput) error {
	email := common.NormalizeEmail(in.Email)

	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.recordInvalid(ctx, audit.ResetInvalidToken, "no user with this email", email, "")
			return resetInvalid()
		}
		return fmt.Errorf("error loading user: %w", err)
	}

	req, err := s.repomanager.ResetTokens(s.db).FindByUserID(ctx, user.ID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.recordInvalid(ctx, audit.ResetInvalidToken, "no pending reset request", email, user.ID)
			return resetInvalid()
		}
		return fmt.Errorf("error loading reset request: %w", err)
	}

	tokenHash := hashResetToken(in.Token)
	if subtle.ConstantTimeCompare(tokenHash, req.TokenHash) != 1 {
		s.recordInvalid(ctx, audit.ResetInvalidToken, "token does not match", email, user.ID)
		return resetInvalid()
	}
	if !s.now().Before(req.ExpiresAt) {
		s.recordInvalid(ctx, audit.ResetExpiredToken, "token expired", email, user.ID)
		return resetInvalid()
	}

	inputs := []string{email, user.FirstName}
	if user.LastName != nil {
		inputs = append(inputs, *user.LastName)
	}
	if err := s.policy.Check(ctx, user.ID, in.NewPassword, inputs...); err != nil {
		s.recordRejected(ctx, user.ID, err)
		return err
	}

	same, err := s.hasher.Verify(in.NewPassword, user.PasswordHash)
	if err != nil {
		return fmt.Errorf("error verifying password: %w", err)
	}
	if same {
		err := common.Validation(msgPasswordRejected, map[string]any{"password": "must differ from the current password"})
		s.recordRejected(ctx, user.ID, err)
		return err
	}

	hash, err := s.hasher.Hash(in.NewPassword)
	if err != nil {
		return fmt.Errorf("error hashing password: %w", err)
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.ResetTokens(tx).Consume(ctx, user.ID, tokenHash); err != nil {
			return err
		}
		return s.repomanager.Users(tx).UpdatePasswordHash(ctx, user.ID, hash)
	})
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			// consumed by a concurrent reset
			s.recordInvalid(ctx, audit.ResetInvalidToken, "token already used", email, user.ID)
			return resetInvalid()
		}
		return fmt.Errorf("error applying password reset: %w", err)
	}

	if err := s.lockouts.RecordSuccess(ctx, user.ID); err != nil {
		s.logger.Error(ctx, "error clearing lockout after reset", "user_id", user.ID, "error", err)
	}

	s.recorder.Record(ctx, audit.Event{Code: audit.ResetSucceeded, PrincipalID: user.ID})

	return nil
}

func (s *PasswordResetService) recordInvalid(ctx context.Context, code audit.Code, reason, email, userID string) {
	fields := map[string]any{"email": email}
	if userID != "" {
		fields["user_id"] = userID
	}
	s.recorder.Record(ctx, audit.Event{Code: code, Reason: reason, Fields: fields})
}

func (s *PasswordResetService) recordRejected(ctx context.Context, userID string, err error) {
	e := audit.Event{Code: audit.ResetRejected, Fields: map[string]any{"user_id": userID}}
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		if reason, ok := appErr.Details["password"].(string); ok {
			e.Reason = "password " + reason
		}
	}
	s.recorder.Record(ctx, e)
}
