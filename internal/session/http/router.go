package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/Devilair/Replit-Wolfinder-sub003/internal/session/domain"
	"github.com/Devilair/Replit-Wolfinder-sub003/internal/session/metrics"
	"github.com/Devilair/Replit-Wolfinder-sub003/internal/session/service"
	"github.com/Devilair/Replit-Wolfinder-sub003/internal/session/store"
	"github.com/Devilair/Replit-Wolfinder-sub003/pkg/clockx"
	"github.com/Devilair/Replit-Wolfinder-sub003/pkg/httpx"
	"github.com/Devilair/Replit-Wolfinder-sub003/pkg/jwtx"
	"github.com/Devilair/Replit-Wolfinder-sub003/pkg/slogx"

	_ "github.com/Devilair/Replit-Wolfinder-sub003/api/sessions" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	keys         *jwtx.KeySet
	issueToken   string
	buildVersion string
	startTime    time.Time
	clock        clockx.Clock
	logger       *slog.Logger
	store        store.Store
	metrics      *metrics.Metrics

	Issuer     *service.CredentialIssuer
	Rotation   *service.RotationEngine
	Revocation *service.RevocationService
	Verifier   *service.AccessVerifier
}

func NewRouter(
	keys *jwtx.KeySet,
	issueToken, buildVersion string,
	st store.Store,
	m *metrics.Metrics,
	clock clockx.Clock,
	logger *slog.Logger,
) *Router {
	if clock == nil {
		clock = clockx.System()
	}
	r := &Router{
		Mux:          http.NewServeMux(),
		keys:         keys,
		issueToken:   issueToken,
		buildVersion: buildVersion,
		startTime:    clock.Now(),
		clock:        clock,
		logger:       logger,
		store:        st,
		metrics:      m,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerSessions()
	r.registerSession()
	r.registerAdmin()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Wolfinder Session Service API
//	@version		0.1.0
//	@description	Issues, rotates and revokes session credentials: short-lived JWT access tokens and single-use opaque refresh tokens.
//	@description
//	@description				Replaying a spent refresh token revokes every token of its login. Access tokens verify against the JWKS endpoint.
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT access token. Format: "Bearer {token}".
//
//	@securityDefinitions.apikey	IssueToken
//	@in							header
//	@name						Authorization
//	@description				Shared secret of the login flow. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

// authenticate adapts the access verifier to the authn middleware.
func (r *Router) authenticate(ctx context.Context, bearer string) (context.Context, error) {
	p, err := r.Verifier.Authenticate(ctx, bearer)
	if err != nil {
		return ctx, err
	}
	ctx = httpx.WithSubject(ctx, p.UserID, p.Role)
	return withPrincipal(ctx, p), nil
}

func (r *Router) registerSessions() {
	// POST /sessions - strict, only the login flow calls it
	issueHandler := &IssueHandler{Issuer: r.Issuer, IssueToken: r.issueToken, Clock: r.clock}
	r.Mux.Handle("POST /v1/sessions",
		httpx.Chain(issueHandler,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// refresh and logout carry a bearer secret in the body
	refreshHandler := &RefreshHandler{Rotation: r.Rotation, Clock: r.clock}
	r.Mux.Handle("POST /v1/sessions/refresh",
		httpx.Chain(refreshHandler,
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	logoutHandler := &LogoutHandler{Revocation: r.Revocation}
	r.Mux.Handle("POST /v1/sessions/logout",
		httpx.Chain(logoutHandler,
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	logoutAllHandler := &LogoutAllHandler{Revocation: r.Revocation}
	r.Mux.Handle("POST /v1/sessions/logout-all",
		httpx.Chain(logoutAllHandler,
			httpx.AuthnMiddleware(r.authenticate),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerSession() {
	h := &SessionHandler{Revocation: r.Revocation}

	r.Mux.Handle("GET /v1/session",
		httpx.Chain(http.HandlerFunc(h.HandleGet),
			httpx.AuthnMiddleware(r.authenticate),
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("DELETE /v1/session",
		httpx.Chain(http.HandlerFunc(h.HandleDelete),
			httpx.AuthnMiddleware(r.authenticate),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerAdmin() {
	h := &ForceLogoutHandler{Revocation: r.Revocation}

	r.Mux.Handle("POST /v1/admin/users/{id}/logout",
		httpx.Chain(h,
			httpx.AuthnMiddleware(r.authenticate),
			httpx.RequireRole(domain.RoleAdmin),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /.well-known/jwks.json",
		httpx.Chain(JWKSHandler(r.keys),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)

	// monitoring may poll frequently
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.clock, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.clock, r.buildVersion, r.store, r.keys),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)

	if r.metrics != nil {
		r.Mux.Handle("GET /metrics", r.metrics.Handler())
	}
}
