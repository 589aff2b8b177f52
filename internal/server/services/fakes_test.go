package services

import (
	"bytes"
	"context"
	"database/sql"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jorenvermeersch/budget-api/internal/common"
	"github.com/jorenvermeersch/budget-api/internal/cryptox"
	"github.com/jorenvermeersch/budget-api/internal/dbx"
	"github.com/jorenvermeersch/budget-api/internal/logging"
	"github.com/jorenvermeersch/budget-api/internal/server/audit"
	"github.com/jorenvermeersch/budget-api/internal/server/auth"
	"github.com/jorenvermeersch/budget-api/internal/server/mail"
	"github.com/jorenvermeersch/budget-api/internal/server/models"
	"github.com/jorenvermeersch/budget-api/internal/server/repositories/lockouts"
	"github.com/jorenvermeersch/budget-api/internal/server/repositories/places"
	"github.com/jorenvermeersch/budget-api/internal/server/repositories/resettokens"
	"github.com/jorenvermeersch/budget-api/internal/server/repositories/transactions"
	"github.com/jorenvermeersch/budget-api/internal/server/repositories/users"
	"github.com/stretchr/testify/require"
)

// --- in-memory storage shared by the fake repositories ---

type memStore struct {
	mu           sync.Mutex
	users        map[string]*models.User
	lockouts     map[string]*models.LockoutRecord
	resets       map[string]*models.ResetRequest
	places       map[int64]*models.Place
	transactions map[int64]*models.Transaction
	nextID       int64

	// errs makes the named operation fail, e.g. "users.GetByEmail".
	errs map[string]error
}

func newMemStore() *memStore {
	return &memStore{
		users:        map[string]*models.User{},
		lockouts:     map[string]*models.LockoutRecord{},
		resets:       map[string]*models.ResetRequest{},
		places:       map[int64]*models.Place{},
		transactions: map[int64]*models.Transaction{},
		errs:         map[string]error{},
	}
}

func (s *memStore) fail(op string) error {
	return s.errs[op]
}

type fakeUsers struct{ s *memStore }

func (r fakeUsers) Create(_ context.Context, u *models.User) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("users.Create"); err != nil {
		return nil, err
	}
	for _, existing := range r.s.users {
		if existing.Email == u.Email {
			return nil, common.ErrorAlreadyExists
		}
	}
	cp := *u
	cp.CreatedAt = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	r.s.users[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (r fakeUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("users.GetByEmail"); err != nil {
		return nil, err
	}
	for _, u := range r.s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r fakeUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *u
	return &cp, nil
}

func (r fakeUsers) List(_ context.Context) ([]*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*models.User, 0, len(r.s.users))
	for _, u := range r.s.users {
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (r fakeUsers) UpdatePasswordHash(_ context.Context, id, hash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (r fakeUsers) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[id]; !ok {
		return common.ErrorNotFound
	}
	delete(r.s.users, id)
	return nil
}

type fakeLockouts struct{ s *memStore }

func (r fakeLockouts) Get(_ context.Context, userID string) (*models.LockoutRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("lockouts.Get"); err != nil {
		return nil, err
	}
	rec, ok := r.s.lockouts[userID]
	if !ok {
		return &models.LockoutRecord{UserID: userID}, nil
	}
	cp := *rec
	return &cp, nil
}

func (r fakeLockouts) Init(_ context.Context, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("lockouts.Init"); err != nil {
		return err
	}
	if _, ok := r.s.lockouts[userID]; !ok {
		r.s.lockouts[userID] = &models.LockoutRecord{UserID: userID}
	}
	return nil
}

func (r fakeLockouts) IncrementFailures(_ context.Context, userID string, threshold int, lockUntil time.Time) (*models.LockoutRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rec, ok := r.s.lockouts[userID]
	if !ok {
		rec = &models.LockoutRecord{UserID: userID}
		r.s.lockouts[userID] = rec
	}
	rec.FailedAttempts++
	if rec.FailedAttempts >= threshold {
		end := lockUntil
		rec.LockoutEnd = &end
	}
	cp := *rec
	return &cp, nil
}

func (r fakeLockouts) Reset(_ context.Context, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if rec, ok := r.s.lockouts[userID]; ok {
		rec.FailedAttempts = 0
		rec.LockoutEnd = nil
	}
	return nil
}

type fakeResets struct{ s *memStore }

func (r fakeResets) Create(_ context.Context, req *models.ResetRequest) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("resets.Create"); err != nil {
		return err
	}
	cp := *req
	r.s.resets[req.UserID] = &cp
	return nil
}

func (r fakeResets) FindByUserID(_ context.Context, userID string) (*models.ResetRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	req, ok := r.s.resets[userID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *req
	return &cp, nil
}

func (r fakeResets) DeleteByUserID(_ context.Context, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.resets, userID)
	return nil
}

func (r fakeResets) Consume(_ context.Context, userID string, tokenHash []byte) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	req, ok := r.s.resets[userID]
	if !ok || !bytes.Equal(req.TokenHash, tokenHash) {
		return common.ErrorNotFound
	}
	delete(r.s.resets, userID)
	return nil
}

type fakePlaces struct{ s *memStore }

func (r fakePlaces) Create(_ context.Context, p *models.Place) (*models.Place, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.places {
		if existing.Name == p.Name {
			return nil, common.ErrorAlreadyExists
		}
	}
	r.s.nextID++
	cp := *p
	cp.ID = r.s.nextID
	r.s.places[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (r fakePlaces) GetByID(_ context.Context, id int64) (*models.Place, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.places[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *p
	return &cp, nil
}

func (r fakePlaces) List(_ context.Context) ([]*models.Place, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*models.Place, 0, len(r.s.places))
	for _, p := range r.s.places {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r fakePlaces) Delete(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.places[id]; !ok {
		return common.ErrorNotFound
	}
	delete(r.s.places, id)
	return nil
}

type fakeTransactions struct{ s *memStore }

func (r fakeTransactions) Create(_ context.Context, t *models.Transaction) (*models.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.nextID++
	cp := *t
	cp.ID = r.s.nextID
	r.s.transactions[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (r fakeTransactions) GetByID(_ context.Context, id int64) (*models.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.transactions[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *t
	return &cp, nil
}

func (r fakeTransactions) List(_ context.Context, userID string) ([]*models.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Transaction
	for _, t := range r.s.transactions {
		if userID == "" || t.UserID == userID {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r fakeTransactions) Delete(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.transactions[id]; !ok {
		return common.ErrorNotFound
	}
	delete(r.s.transactions, id)
	return nil
}

// fakeManager hands out repositories over the same memStore regardless of
// the DBTX, so transactional and plain reads see the same data.
type fakeManager struct{ s *memStore }

func (m fakeManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m fakeManager) Users(dbx.DBTX) users.Repository { return fakeUsers(m) }
func (m fakeManager) Lockouts(dbx.DBTX) lockouts.Repository { return fakeLockouts(m) }
func (m fakeManager) ResetTokens(dbx.DBTX) resettokens.Repository { return fakeResets(m) }
func (m fakeManager) Places(dbx.DBTX) places.Repository { return fakePlaces(m) }
func (m fakeManager) Transactions(dbx.DBTX) transactions.Repository { return fakeTransactions(m) }

// --- collaborators ---

type fakeRecorder struct {
	mu     sync.Mutex
	events []audit.Event
}

func (r *fakeRecorder) Record(_ context.Context, e audit.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *fakeRecorder) codes() []audit.Code {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]audit.Code, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Code)
	}
	return out
}

func (r *fakeRecorder) last() audit.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return audit.Event{}
	}
	return r.events[len(r.events)-1]
}

func (r *fakeRecorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

type fakeBreach struct {
	breached bool
	err      error
	calls    int
}

func (b *fakeBreach) IsBreached(context.Context, string) (bool, error) {
	b.calls++
	return b.breached, b.err
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
}

func (m *fakeMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *fakeMailer) messages() []mail.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mail.Message(nil), m.sent...)
}

// --- fixture ---

var testClockStart = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	db       *sql.DB
	mock     sqlmock.Sqlmock
	store    *memStore
	clock    *clock
	hasher   *cryptox.Hasher
	tokens   *auth.TokenService
	breach   *fakeBreach
	recorder *fakeRecorder
	mailer   *fakeMailer
	lockouts *LockoutTracker
	policy   *PasswordPolicy
	auth     *AuthService
	reset    *PasswordResetService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	f := &fixture{
		db:       db,
		mock:     mock,
		store:    newMemStore(),
		clock:    &clock{now: testClockStart},
		breach:   &fakeBreach{},
		recorder: &fakeRecorder{},
		mailer:   &fakeMailer{},
	}
	m := fakeManager{s: f.store}
	log := logging.Discard()

	f.hasher, err = cryptox.NewHasher(cryptox.Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	require.NoError(t, err)

	f.tokens, err = auth.NewTokenService([]byte("test-secret"), "budget.test", "budget.test", time.Hour, auth.WithClock(f.clock.Now))
	require.NoError(t, err)

	f.lockouts = NewLockoutTracker(db, m, 5, 15*time.Minute)
	f.lockouts.now = f.clock.Now

	f.policy = NewPasswordPolicy(12, 128, 0, f.breach, f.recorder, log)

	f.auth, err = NewAuthService(db, m, f.hasher, f.tokens, f.lockouts, f.policy, f.recorder, log)
	require.NoError(t, err)

	f.reset = NewPasswordResetService(db, m, f.hasher, f.lockouts, f.policy, f.mailer, f.recorder, log, ResetOptions{
		Validity:    time.Hour,
		ResetURL:    "https://budget.test/reset-password",
		MailTimeout: time.Second,
	})
	f.reset.now = f.clock.Now

	return f
}

// addUser stores a user with the given password hashed by the fixture's hasher.
func (f *fixture) addUser(t *testing.T, id, email, password string, roles ...models.Role) *models.User {
	t.Helper()
	hash, err := f.hasher.Hash(password)
	require.NoError(t, err)
	if len(roles) == 0 {
		roles = []models.Role{models.RoleUser}
	}
	u := &models.User{
		ID:           id,
		FirstName:    "Alice",
		Email:        email,
		PasswordHash: hash,
		Roles:        models.NewRoleSet(roles...),
	}
	f.store.mu.Lock()
	f.store.users[id] = u
	f.store.mu.Unlock()
	cp := *u
	return &cp
}

func (f *fixture) expectTx() {
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
}
