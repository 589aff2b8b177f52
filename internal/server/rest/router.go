// Package rest is the public HTTP API of the budget server, built on gin.
package rest

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jorenvermeersch/budget-api/internal/logging"
	"github.com/jorenvermeersch/budget-api/internal/server/audit"
	"github.com/jorenvermeersch/budget-api/internal/server/models"
	"github.com/jorenvermeersch/budget-api/internal/server/rest/middleware"
	"github.com/jorenvermeersch/budget-api/internal/server/services"
)

type AuthAPI interface {
	middleware.SessionChecker
	Login(ctx context.Context, email, password string) (*services.LoginResult, error)
	Register(ctx context.Context, in services.RegisterInput) (*services.LoginResult, error)
}

type ResetAPI interface {
	RequestReset(ctx context.Context, email string) error
	Reset(ctx context.Context, in services.ResetInput) error
}

type UserAPI interface {
	List(ctx context.Context) ([]*models.User, error)
	GetByID(ctx context.Context, session *models.Session, id string) (*models.User, error)
	Me(ctx context.Context, session *models.Session) (*models.User, error)
	Delete(ctx context.Context, id string) error
}

type PlaceAPI interface {
	List(ctx context.Context) ([]*models.Place, error)
	GetByID(ctx context.Context, id int64) (*models.Place, error)
	Create(ctx context.Context, name string, rating *int) (*models.Place, error)
	Delete(ctx context.Context, id int64) error
}

type TransactionAPI interface {
	List(ctx context.Context, session *models.Session) ([]*models.Transaction, error)
	GetByID(ctx context.Context, session *models.Session, id int64) (*models.Transaction, error)
	Create(ctx context.Context, session *models.Session, in services.TransactionInput) (*models.Transaction, error)
	Delete(ctx context.Context, session *models.Session, id int64) error
}

type MetricsProvider interface {
	middleware.RequestObserver
	Handler() http.Handler
}

// Deps are the collaborators of the router. Limiter and Metrics are
// optional; Health may be nil when there is nothing to check.
type Deps struct {
	Auth         AuthAPI
	Reset        ResetAPI
	Users        UserAPI
	Places       PlaceAPI
	Transactions TransactionAPI
	Recorder     middleware.Recorder
	Logger       logging.Logger
	Limiter      middleware.Allower
	Metrics      MetricsProvider
	Health       func(ctx context.Context) error
}

type Options struct {
	CORSOrigins       []string
	TimingMinDelay    time.Duration
	TimingMaxDelay    time.Duration
	RateLimitRequests int
	RateLimitWindow   time.Duration
	TrustedProxies    []string
}

type handler struct {
	Deps
}

// NewRouter fails only when a trusted proxy is not a valid IP or CIDR.
func NewRouter(deps Deps, opts Options) (*gin.Engine, error) {
	middleware.UseJSONFieldNames()

	h := &handler{Deps: deps}
	r := gin.New()
	// nil trusts no proxy: ClientIP is always the peer address.
	if err := r.SetTrustedProxies(opts.TrustedProxies); err != nil {
		return nil, fmt.Errorf("invalid trusted proxies: %w", err)
	}
	r.Use(gin.Recovery())
	if deps.Metrics != nil {
		r.Use(middleware.Metrics(deps.Metrics))
	}
	r.Use(
		middleware.RequestInfo(),
		middleware.CORS(opts.CORSOrigins, deps.Recorder),
		middleware.Errors(deps.Logger),
	)

	// sensitive wraps the credential endpoints: optional rate limiting,
	// then timing equalization.
	sensitive := func(scope string, handlers ...gin.HandlerFunc) []gin.HandlerFunc {
		var chain []gin.HandlerFunc
		if deps.Limiter != nil {
			chain = append(chain, middleware.RateLimit(deps.Limiter, deps.Recorder, scope, opts.RateLimitRequests, opts.RateLimitWindow))
		}
		chain = append(chain, middleware.TimingEqualizer(opts.TimingMinDelay, opts.TimingMaxDelay))
		return append(chain, handlers...)
	}

	authenticated := middleware.Authenticate(deps.Auth)
	adminOnly := middleware.RequireRole(deps.Auth, models.RoleAdmin)

	api := r.Group("/api")
	{
		api.POST("/sessions", sensitive("login", h.login)...)

		users := api.Group("/users")
		{
			users.POST("/register", sensitive("register", h.register)...)
			users.POST("/password/request-reset", sensitive("reset", h.requestReset)...)
			users.POST("/password/reset", sensitive("reset", h.reset)...)

			users.GET("/me", authenticated, h.me)
			users.GET("", authenticated, adminOnly, h.listUsers)
			users.GET("/:id", authenticated, h.getUser)
			users.DELETE("/:id", authenticated, adminOnly, h.deleteUser)
		}

		places := api.Group("/places", authenticated)
		{
			places.GET("", h.listPlaces)
			places.POST("", h.createPlace)
			places.GET("/:id", h.getPlace)
			places.DELETE("/:id", adminOnly, h.deletePlace)
		}

		transactions := api.Group("/transactions", authenticated)
		{
			transactions.GET("", h.listTransactions)
			transactions.POST("", h.createTransaction)
			transactions.GET("/:id", h.getTransaction)
			transactions.DELETE("/:id", h.deleteTransaction)
		}
	}

	r.GET("/health", h.health)
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	r.NoRoute(h.unknownResource)

	return r, nil
}

func (h *handler) unknownResource(c *gin.Context) {
	h.Recorder.Record(c.Request.Context(), audit.Event{
		Code:   audit.UnknownResource,
		Reason: "no route",
	})
	c.AbortWithStatusJSON(http.StatusNotFound, middleware.ErrorBody{
		Code:    middleware.CodeNotFound,
		Message: "unknown resource: " + c.Request.URL.Path,
	})
}

func (h *handler) health(c *gin.Context) {
	if h.Health != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.Health(ctx); err != nil {
			h.Logger.Warn(c.Request.Context(), "health check failed", "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// bind decodes the JSON body into dst. Failures are recorded and attached to
// the context as ValidationFailed; the caller just returns.
func (h *handler) bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		h.rejectInput(c, err)
		return false
	}
	return true
}

func (h *handler) bindURI(c *gin.Context, dst any) bool {
	if err := c.ShouldBindUri(dst); err != nil {
		h.rejectInput(c, err)
		return false
	}
	return true
}

func (h *handler) rejectInput(c *gin.Context, err error) {
	verr := middleware.BindingError(err)
	e := audit.Event{Code: audit.ValidationFailed, Reason: verr.Error()}
	if s, ok := sessionOf(c); ok {
		e.PrincipalID = s.UserID
	}
	h.Recorder.Record(c.Request.Context(), e)
	_ = c.Error(verr)
}
