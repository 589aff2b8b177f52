package rest

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/jorenvermeersch/budget-api/internal/common"
	"github.com/jorenvermeersch/budget-api/internal/server/audit"
	"github.com/jorenvermeersch/budget-api/internal/server/models"
	"github.com/jorenvermeersch/budget-api/internal/server/services"
)

const (
	userToken  = "user-token"
	adminToken = "admin-token"
)

var (
	aliceSession = &models.Session{UserID: "0b7a3c1e-9c4d-4a51-8f69-3f3e2d6d1a10", Roles: models.NewRoleSet(models.RoleUser), Token: userToken}
	adminSession = &models.Session{UserID: "6f1f5b8a-2f7e-4c8e-9d57-1f7b8a0c2e31", Roles: models.NewRoleSet(models.RoleUser, models.RoleAdmin), Token: adminToken}

	alice = &models.User{ID: aliceSession.UserID, FirstName: "Alice", Email: "alice@example.com", PasswordHash: "$argon2id$secret", Roles: aliceSession.Roles}
)

type fakeAuth struct {
	loginErr    error
	registerErr error
	lastEmail   string
}

func (f *fakeAuth) Login(_ context.Context, email, password string) (*services.LoginResult, error) {
	f.lastEmail = email
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return &services.LoginResult{Token: userToken, User: alice}, nil
}

func (f *fakeAuth) Register(_ context.Context, in services.RegisterInput) (*services.LoginResult, error) {
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	u := *alice
	u.FirstName, u.LastName, u.Email = in.FirstName, in.LastName, in.Email
	return &services.LoginResult{Token: userToken, User: &u}, nil
}

func (f *fakeAuth) CheckAndParseSession(_ context.Context, header string) (*models.Session, error) {
	switch header {
	case "Bearer " + userToken:
		return aliceSession, nil
	case "Bearer " + adminToken:
		return adminSession, nil
	case "":
		return nil, common.Unauthorized("you need to be signed in")
	default:
		return nil, common.Unauthorized("invalid authentication token")
	}
}

func (f *fakeAuth) CheckRole(_ context.Context, required models.Role, s *models.Session) error {
	if s != nil && s.Roles.Has(required) {
		return nil
	}
	return common.Forbidden("you are not allowed to view this part of the application")
}

type fakeReset struct {
	requested []string
	resetErr  error
	lastReset services.ResetInput
}

func (f *fakeReset) RequestReset(_ context.Context, email string) error {
	f.requested = append(f.requested, email)
	return nil
}

func (f *fakeReset) Reset(_ context.Context, in services.ResetInput) error {
	f.lastReset = in
	return f.resetErr
}

type fakeUsers struct{}

func (fakeUsers) List(context.Context) ([]*models.User, error) {
	return []*models.User{alice}, nil
}

func (fakeUsers) GetByID(_ context.Context, s *models.Session, id string) (*models.User, error) {
	if !s.IsAdmin() && s.UserID != id {
		return nil, common.Forbidden("you are not allowed to access this resource")
	}
	if id != alice.ID {
		return nil, common.NotFound("no user with id " + id + " exists")
	}
	return alice, nil
}

func (f fakeUsers) Me(ctx context.Context, s *models.Session) (*models.User, error) {
	return f.GetByID(ctx, s, s.UserID)
}

func (fakeUsers) Delete(_ context.Context, id string) error {
	if id != alice.ID {
		return common.NotFound("no user with id " + id + " exists")
	}
	return nil
}

type fakePlaces struct {
	mu     sync.Mutex
	places []*models.Place
}

func (f *fakePlaces) List(context.Context) ([]*models.Place, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.places, nil
}

func (f *fakePlaces) GetByID(_ context.Context, id int64) (*models.Place, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.places {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, common.NotFound("no place with id exists")
}

func (f *fakePlaces) Create(_ context.Context, name string, rating *int) (*models.Place, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := &models.Place{ID: int64(len(f.places) + 1), Name: name, Rating: rating}
	f.places = append(f.places, p)
	return p, nil
}

func (f *fakePlaces) Delete(_ context.Context, id int64) error {
	return nil
}

type fakeTransactions struct {
	created services.TransactionInput
}

func (f *fakeTransactions) List(_ context.Context, s *models.Session) ([]*models.Transaction, error) {
	return []*models.Transaction{{ID: 1, AmountCents: 1250, Date: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), UserID: s.UserID, PlaceID: 1}}, nil
}

func (f *fakeTransactions) GetByID(_ context.Context, s *models.Session, id int64) (*models.Transaction, error) {
	if id == 2 && !s.IsAdmin() {
		return nil, common.Forbidden("you are not allowed to access this resource")
	}
	return &models.Transaction{ID: id, UserID: s.UserID, PlaceID: 1}, nil
}

func (f *fakeTransactions) Create(_ context.Context, s *models.Session, in services.TransactionInput) (*models.Transaction, error) {
	f.created = in
	return &models.Transaction{ID: 9, AmountCents: in.AmountCents, Date: in.Date, UserID: s.UserID, PlaceID: in.PlaceID}, nil
}

func (f *fakeTransactions) Delete(context.Context, *models.Session, int64) error {
	return nil
}

type fakeRecorder struct {
	mu     sync.Mutex
	events []audit.Event
}

func (r *fakeRecorder) Record(ctx context.Context, e audit.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e.Resource == "" {
		e.Resource = audit.RequestInfoFrom(ctx).Resource
	}
	r.events = append(r.events, e)
}

func (r *fakeRecorder) codes() []audit.Code {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []audit.Code
	for _, e := range r.events {
		out = append(out, e.Code)
	}
	return out
}

type fakeMetrics struct {
	mu     sync.Mutex
	routes []string
}

func (m *fakeMetrics) ObserveRequest(route, _ string, _ int, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routes = append(m.routes, route)
}

func (m *fakeMetrics) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("budget_api_up 1\n"))
	})
}
