package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jorenvermeersch/budget-api/internal/common"
	"github.com/jorenvermeersch/budget-api/internal/dbx"
	"github.com/jorenvermeersch/budget-api/internal/logging"
	"github.com/jorenvermeersch/budget-api/internal/server/audit"
	"github.com/jorenvermeersch/budget-api/internal/server/auth"
	"github.com/jorenvermeersch/budget-api/internal/server/models"
	"github.com/jorenvermeersch/budget-api/internal/server/repositories/repomanager"
)

const (
	msgLoginFailed   = "email and password do not match"
	msgNoSession     = "you need to be signed in"
	msgInvalidToken  = "invalid authentication token"
	msgTokenExpired  = "the session has expired"
	msgRoleForbidden = "you are not allowed to view this part of the application"
)

type LoginResult struct {
	Token string
	User  *models.User
}

type RegisterInput struct {
	FirstName string
	LastName  *string
	Email     string
	Password  string
}

type AuthService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	hasher      PasswordHasher
	tokens      TokenService
	lockouts    *LockoutTracker
	policy      *PasswordPolicy
	recorder    SecurityRecorder
	logger      logging.Logger

	// dummyHash is verified against when the email is unknown, so that
	// lookups for missing accounts cost as much as real ones.
	dummyHash string
}

func NewAuthService(db *sql.DB, m repomanager.RepositoryManager, hasher PasswordHasher, tokens TokenService,
	lockouts *LockoutTracker, policy *PasswordPolicy, recorder SecurityRecorder, logger logging.Logger) (*AuthService, error) {

	secret, err := common.MakeRandHexString(16)
	if err != nil {
		return nil, fmt.Errorf("error generating dummy secret: %w", err)
	}
	dummy, err := hasher.Hash(secret)
	if err != nil {
		return nil, fmt.Errorf("error hashing dummy secret: %w", err)
	}

	return &AuthService{
		db:          db,
		repomanager: m,
		hasher:      hasher,
		tokens:      tokens,
		lockouts:    lockouts,
		policy:      policy,
		recorder:    recorder,
		logger:      logger.With("module", "auth_service"),
		dummyHash:   dummy,
	}, nil
}

func loginFailed() error {
	return common.Unauthorized(msgLoginFailed)
}

// Login checks the credentials and issues a session token. Every rejection
// returns the same Unauthorized error; the actual reason is only recorded as
// a security event. Attempts against a locked account are refused before the
// password is verified and do not count as failures.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = common.NormalizeEmail(email)

	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("error loading user: %w", err)
		}
		_, _ = s.hasher.Verify(password, s.dummyHash)
		s.recorder.Record(ctx, audit.Event{
			Code:   audit.LoginUnknownEmail,
			Reason: "no user with this email",
			Fields: map[string]any{"email": email},
		})
		return nil, loginFailed()
	}

	locked, err := s.lockouts.IsLocked(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if locked {
		s.recorder.Record(ctx, audit.Event{
			Code:   audit.LoginLockedOut,
			Reason: "account is locked",
			Fields: map[string]any{"email": email, "user_id": user.ID},
		})
		return nil, loginFailed()
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("error verifying password: %w", err)
	}
	if !ok {
		rec, lockedNow, err := s.lockouts.RecordFailure(ctx, user.ID)
		if err != nil {
			return nil, err
		}
		code, reason := audit.LoginBadPassword, "wrong password"
		if lockedNow {
			code, reason = audit.LoginLockEngaged, "failure threshold reached"
		}
		s.recorder.Record(ctx, audit.Event{
			Code:   code,
			Reason: reason,
			Fields: map[string]any{"email": email, "user_id": user.ID, "failed_attempts": rec.FailedAttempts},
		})
		return nil, loginFailed()
	}

	if err := s.lockouts.RecordSuccess(ctx, user.ID); err != nil {
		return nil, err
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("error issuing token: %w", err)
	}

	s.recorder.Record(ctx, audit.Event{Code: audit.LoginSucceeded, PrincipalID: user.ID})

	return &LoginResult{Token: token, User: user}, nil
}

// Register creates a user with the default role set and signs them in.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*LoginResult, error) {
	email := common.NormalizeEmail(in.Email)

	inputs := []string{email, in.FirstName}
	if in.LastName != nil {
		inputs = append(inputs, *in.LastName)
	}
	if err := s.policy.Check(ctx, "", in.Password, inputs...); err != nil {
		s.recordRegisterRejected(ctx, email, err)
		return nil, err
	}

	_, err := s.repomanager.Users(s.db).GetByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, s.duplicateEmail(ctx, email)
	case !errors.Is(err, common.ErrorNotFound):
		return nil, fmt.Errorf("error loading user: %w", err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	user := &models.User{
		ID:           uuid.NewString(),
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Email:        email,
		PasswordHash: hash,
		Roles:        models.NewRoleSet(models.RoleUser),
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		created, err := s.repomanager.Users(tx).Create(ctx, user)
		if err != nil {
			return err
		}
		user = created
		return s.repomanager.Lockouts(tx).Init(ctx, user.ID)
	})
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, s.duplicateEmail(ctx, email)
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("error issuing token: %w", err)
	}

	s.recorder.Record(ctx, audit.Event{Code: audit.RegisterSucceeded, PrincipalID: user.ID})
	s.logger.Info(ctx, "user registered", "user_id", user.ID)

	return &LoginResult{Token: token, User: user}, nil
}

func (s *AuthService) duplicateEmail(ctx context.Context, email string) error {
	s.recorder.Record(ctx, audit.Event{
		Code:   audit.RegisterDuplicateEmail,
		Reason: "email already registered",
		Fields: map[string]any{"email": email},
	})
	return common.Validation("registration failed", map[string]any{"email": "is already in use"})
}

func (s *AuthService) recordRegisterRejected(ctx context.Context, email string, err error) {
	e := audit.Event{Code: audit.RegisterRejected, Fields: map[string]any{"email": email}}
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		if reason, ok := appErr.Details["password"].(string); ok {
			e.Reason = "password " + reason
		}
	}
	s.recorder.Record(ctx, e)
}

// CheckAndParseSession validates the Authorization header and returns the
// session it carries. Any problem yields Unauthorized.
func (s *AuthService) CheckAndParseSession(ctx context.Context, header string) (*models.Session, error) {
	if header == "" {
		s.recorder.Record(ctx, audit.Event{Code: audit.SessionMissing, Reason: "no authorization header"})
		return nil, common.Unauthorized(msgNoSession)
	}

	token, err := auth.ParseBearer(header)
	if err != nil {
		s.recorder.Record(ctx, audit.Event{Code: audit.SessionMalformed, Reason: err.Error()})
		return nil, common.Unauthorized(msgInvalidToken)
	}

	session, err := s.tokens.Verify(token)
	switch {
	case err == nil:
		return session, nil
	case errors.Is(err, common.ErrTokenExpired):
		s.recorder.Record(ctx, audit.Event{Code: audit.SessionExpired, Reason: err.Error()})
		return nil, common.Unauthorized(msgTokenExpired)
	case errors.Is(err, common.ErrMalformedToken):
		s.recorder.Record(ctx, audit.Event{Code: audit.SessionMalformed, Reason: err.Error()})
		return nil, common.Unauthorized(msgInvalidToken)
	default:
		s.recorder.Record(ctx, audit.Event{Code: audit.SessionInvalid, Reason: err.Error()})
		return nil, common.Unauthorized(msgInvalidToken)
	}
}

// CheckRole returns Forbidden unless the session holds required.
func (s *AuthService) CheckRole(ctx context.Context, required models.Role, session *models.Session) error {
	if session != nil && session.Roles.Has(required) {
		return nil
	}

	e := audit.Event{
		Code:   audit.RoleDenied,
		Reason: "missing role " + required.String(),
	}
	if session != nil {
		e.PrincipalID = session.UserID
		e.Fields = map[string]any{"roles": session.Roles.Strings()}
	}
	s.recorder.Record(ctx, e)

	return common.Forbidden(msgRoleForbidden)
}
