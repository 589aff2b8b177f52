package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jorenvermeersch/budget-api/internal/common"
	"github.com/jorenvermeersch/budget-api/internal/server/audit"
	"github.com/jorenvermeersch/budget-api/internal/server/auth"
	"github.com/jorenvermeersch/budget-api/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	aliceEmail    = "alice@example.com"
	alicePassword = "password123456789"
)

func assertLoginRejected(t *testing.T, res *LoginResult, err error) {
	t.Helper()
	assert.Nil(t, res)
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
	assert.EqualError(t, err, "email and password do not match")
}

func TestLogin_Success(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "u-alice", aliceEmail, alicePassword)

	res, err := f.auth.Login(context.Background(), "  Alice@Example.com ", alicePassword)
	require.NoError(t, err)
	assert.Equal(t, "u-alice", res.User.ID)

	session, err := f.tokens.Verify(res.Token)
	require.NoError(t, err)
	assert.Equal(t, "u-alice", session.UserID)
	assert.True(t, session.Roles.Has(models.RoleUser))

	e := f.recorder.last()
	assert.Equal(t, audit.LoginSucceeded, e.Code)
	assert.Equal(t, "u-alice", e.PrincipalID)
}

func TestLogin_UnknownEmail(t *testing.T) {
	f := newFixture(t)

	res, err := f.auth.Login(context.Background(), "ghost@example.com", alicePassword)
	assertLoginRejected(t, res, err)

	e := f.recorder.last()
	assert.Equal(t, audit.LoginUnknownEmail, e.Code)
	assert.Empty(t, e.PrincipalID)
	assert.Equal(t, "ghost@example.com", e.Fields["email"])
}

func TestLogin_WrongPasswordCountsFailure(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "u-alice", aliceEmail, alicePassword)

	res, err := f.auth.Login(context.Background(), aliceEmail, "wrong-password-123")
	assertLoginRejected(t, res, err)

	rec, err := f.lockouts.Get(context.Background(), "u-alice")
	require.NoError(t, err)
	assert.Equal(t, 1, rec.FailedAttempts)

	e := f.recorder.last()
	assert.Equal(t, audit.LoginBadPassword, e.Code)
	assert.Equal(t, 1, e.Fields["failed_attempts"])
}

// Five wrong passwords lock the account; the correct password is then
// refused until the lockout expires, and locked attempts are not counted.
func TestLogin_LockoutScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addUser(t, "u-alice", aliceEmail, alicePassword)

	for i := 0; i < 5; i++ {
		res, err := f.auth.Login(ctx, aliceEmail, "not-the-password")
		assertLoginRejected(t, res, err)
	}
	assert.Equal(t, []audit.Code{
		audit.LoginBadPassword,
		audit.LoginBadPassword,
		audit.LoginBadPassword,
		audit.LoginBadPassword,
		audit.LoginLockEngaged,
	}, f.recorder.codes())

	f.recorder.reset()
	res, err := f.auth.Login(ctx, aliceEmail, alicePassword)
	assertLoginRejected(t, res, err)
	assert.Equal(t, []audit.Code{audit.LoginLockedOut}, f.recorder.codes())

	rec, err := f.lockouts.Get(ctx, "u-alice")
	require.NoError(t, err)
	assert.Equal(t, 5, rec.FailedAttempts)
	assert.Equal(t, testClockStart.Add(15*time.Minute), *rec.LockoutEnd)

	f.clock.Advance(15 * time.Minute)
	res, err = f.auth.Login(ctx, aliceEmail, alicePassword)
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)

	rec, err = f.lockouts.Get(ctx, "u-alice")
	require.NoError(t, err)
	assert.Equal(t, 0, rec.FailedAttempts)
	assert.Nil(t, rec.LockoutEnd)
}

func TestLogin_StorageErrorIsNotUnauthorized(t *testing.T) {
	f := newFixture(t)
	f.store.errs["users.GetByEmail"] = errors.New("connection reset")

	_, err := f.auth.Login(context.Background(), aliceEmail, alicePassword)
	require.Error(t, err)
	assert.NotErrorIs(t, err, common.ErrorUnauthorized)
	assert.Equal(t, common.ErrorInternal, common.KindOf(err))
}

func TestRegister_Success(t *testing.T) {
	f := newFixture(t)
	f.expectTx()
	last := "Liddell"

	res, err := f.auth.Register(context.Background(), RegisterInput{
		FirstName: "Alice",
		LastName:  &last,
		Email:     " Alice@Example.com",
		Password:  alicePassword,
	})
	require.NoError(t, err)
	require.NoError(t, f.mock.ExpectationsWereMet())

	assert.Equal(t, aliceEmail, res.User.Email)
	assert.Equal(t, models.NewRoleSet(models.RoleUser), res.User.Roles)
	assert.NotEqual(t, alicePassword, res.User.PasswordHash)
	assert.False(t, res.User.CreatedAt.IsZero())

	ok, err := f.hasher.Verify(alicePassword, res.User.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)

	session, err := f.tokens.Verify(res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, session.UserID)

	f.store.mu.Lock()
	_, hasLockout := f.store.lockouts[res.User.ID]
	f.store.mu.Unlock()
	assert.True(t, hasLockout)

	assert.Equal(t, audit.RegisterSucceeded, f.recorder.last().Code)

	// the new account can sign in right away
	_, err = f.auth.Login(context.Background(), aliceEmail, alicePassword)
	assert.NoError(t, err)
}

func TestRegister_RejectsWeakPassword(t *testing.T) {
	f := newFixture(t)

	_, err := f.auth.Register(context.Background(), RegisterInput{FirstName: "Alice", Email: aliceEmail, Password: "short"})
	assert.ErrorIs(t, err, common.ErrorValidation)
	assert.Equal(t, "must be at least 12 characters", passwordDetail(t, err))
	require.NoError(t, f.mock.ExpectationsWereMet())

	e := f.recorder.last()
	assert.Equal(t, audit.RegisterRejected, e.Code)
	assert.Equal(t, "password must be at least 12 characters", e.Reason)
}

func TestRegister_RejectsBreachedPassword(t *testing.T) {
	f := newFixture(t)
	f.breach.breached = true

	_, err := f.auth.Register(context.Background(), RegisterInput{FirstName: "Alice", Email: aliceEmail, Password: alicePassword})
	assert.ErrorIs(t, err, common.ErrorValidation)
	assert.Equal(t, "appears in a known data breach", passwordDetail(t, err))
}

func TestRegister_BreachOutageFailsOpen(t *testing.T) {
	f := newFixture(t)
	f.breach.err = errors.New("timeout")
	f.expectTx()

	_, err := f.auth.Register(context.Background(), RegisterInput{FirstName: "Alice", Email: aliceEmail, Password: alicePassword})
	require.NoError(t, err)
	assert.Equal(t, []audit.Code{audit.BreachCheckUnavailable, audit.RegisterSucceeded}, f.recorder.codes())
}

func TestRegister_DuplicateEmail(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "u-alice", aliceEmail, alicePassword)

	_, err := f.auth.Register(context.Background(), RegisterInput{FirstName: "Alice", Email: "ALICE@example.com", Password: "another-password-42"})
	assert.ErrorIs(t, err, common.ErrorValidation)
	require.NoError(t, f.mock.ExpectationsWereMet())

	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "is already in use", appErr.Details["email"])
	assert.Equal(t, audit.RegisterDuplicateEmail, f.recorder.last().Code)
}

func TestRegister_TransactionFailure(t *testing.T) {
	f := newFixture(t)
	f.mock.ExpectBegin().WillReturnError(errors.New("pool exhausted"))

	_, err := f.auth.Register(context.Background(), RegisterInput{FirstName: "Alice", Email: aliceEmail, Password: alicePassword})
	require.Error(t, err)
	assert.Equal(t, common.ErrorInternal, common.KindOf(err))

	f.store.mu.Lock()
	assert.Empty(t, f.store.users)
	f.store.mu.Unlock()
}

func TestRegister_LockoutInitFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	f.store.errs["lockouts.Init"] = errors.New("disk full")
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	_, err := f.auth.Register(context.Background(), RegisterInput{FirstName: "Alice", Email: aliceEmail, Password: alicePassword})
	require.Error(t, err)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestCheckAndParseSession(t *testing.T) {
	f := newFixture(t)
	user := f.addUser(t, "u-alice", aliceEmail, alicePassword)
	token, err := f.tokens.Issue(user)
	require.NoError(t, err)

	other, err := auth.NewTokenService([]byte("other-secret"), "budget.test", "budget.test", time.Hour, auth.WithClock(f.clock.Now))
	require.NoError(t, err)
	forged, err := other.Issue(user)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		code   audit.Code
	}{
		{name: "missing", header: "", code: audit.SessionMissing},
		{name: "wrong scheme", header: "Basic " + token, code: audit.SessionMalformed},
		{name: "not a jwt", header: "Bearer not-a-token", code: audit.SessionMalformed},
		{name: "bad signature", header: "Bearer " + forged, code: audit.SessionInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.recorder.reset()
			session, err := f.auth.CheckAndParseSession(context.Background(), tt.header)
			assert.Nil(t, session)
			assert.ErrorIs(t, err, common.ErrorUnauthorized)
			assert.Equal(t, []audit.Code{tt.code}, f.recorder.codes())
		})
	}

	t.Run("valid", func(t *testing.T) {
		f.recorder.reset()
		session, err := f.auth.CheckAndParseSession(context.Background(), "Bearer "+token)
		require.NoError(t, err)
		assert.Equal(t, "u-alice", session.UserID)
		assert.Equal(t, token, session.Token)
		assert.Empty(t, f.recorder.codes())
	})
}

func TestCheckAndParseSession_Expired(t *testing.T) {
	f := newFixture(t)
	user := f.addUser(t, "u-alice", aliceEmail, alicePassword)
	token, err := f.tokens.Issue(user)
	require.NoError(t, err)

	f.clock.Advance(time.Hour)

	_, err = f.auth.CheckAndParseSession(context.Background(), "Bearer "+token)
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
	assert.EqualError(t, err, "the session has expired")
	assert.Equal(t, audit.SessionExpired, f.recorder.last().Code)
}

func TestCheckRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	admin := &models.Session{UserID: "u-admin", Roles: models.NewRoleSet(models.RoleUser, models.RoleAdmin)}
	user := &models.Session{UserID: "u-1", Roles: models.NewRoleSet(models.RoleUser)}

	assert.NoError(t, f.auth.CheckRole(ctx, models.RoleAdmin, admin))
	assert.NoError(t, f.auth.CheckRole(ctx, models.RoleUser, user))
	assert.Empty(t, f.recorder.codes())

	err := f.auth.CheckRole(ctx, models.RoleAdmin, user)
	assert.ErrorIs(t, err, common.ErrorForbidden)
	e := f.recorder.last()
	assert.Equal(t, audit.RoleDenied, e.Code)
	assert.Equal(t, "u-1", e.PrincipalID)

	err = f.auth.CheckRole(ctx, models.RoleUser, nil)
	assert.ErrorIs(t, err, common.ErrorForbidden)
	assert.Empty(t, f.recorder.last().PrincipalID)
}
