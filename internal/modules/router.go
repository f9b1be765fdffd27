package routes

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"authapi/internal/modules/auth"
	"authapi/internal/modules/gatekeeper"
	"authapi/internal/modules/healthchecker"
	"authapi/internal/modules/rateLimiter"
	"authapi/internal/modules/respond"
)

type Deps struct {
	Auth     *auth.Handler
	Verifier gatekeeper.Verifier
	Limiter  *rateLimiter.FixedWindowLimiter
	KeyFunc  rateLimiter.KeyFunc
	Health   *healthchecker.HealthChecker
	Logger   *zap.Logger
}

type Options struct {
	PathPrefix   string
	AdminEnabled bool
	// AdminToken guards /admin/clients. Admin routes stay unmounted without it.
	AdminToken string
}

func CreateRouter(deps Deps, opts Options) *chi.Mux {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := chi.NewRouter()

	// RemoteAddr stays the socket peer; forwarded headers are only honoured
	// by rateLimiter.TrustedProxyKeyFunc. Recovery runs inside the logger so a
	// recovered panic is logged as a 500.
	router.Use(RequestID)
	router.Use(RequestLogger(logger))
	router.Use(Recovery(logger))

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respond.Error(w, http.StatusNotFound, "Not found")
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respond.Error(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	if deps.Health != nil {
		router.Get("/health", deps.Health.Handler)
	}

	api := func(r chi.Router) {
		r.Post("/register", deps.Auth.Register)
		r.Post("/login", deps.Auth.Login)
		r.Post("/forgot-password", deps.Auth.ForgotPassword)
		r.Post("/reset-password", deps.Auth.ResetPassword)

		// Limiter first: every request counts, authenticated or not.
		r.With(
			rateLimiter.Middleware(deps.Limiter, deps.KeyFunc, logger),
			gatekeeper.Middleware(deps.Verifier, logger),
		).Get("/private", gatekeeper.PrivateHandler)
	}

	if prefix := strings.TrimRight(opts.PathPrefix, "/"); prefix != "" {
		router.Route(prefix, api)
	} else {
		api(router)
	}

	switch {
	case opts.AdminEnabled && opts.AdminToken == "":
		logger.Warn("Admin routes disabled: no admin token configured")
	case opts.AdminEnabled:
		router.Route("/admin", func(r chi.Router) {
			r.Use(AdminAuth(opts.AdminToken, logger))
			r.Get("/clients", deps.Limiter.ClientsHandler)
			r.Delete("/clients", deps.Limiter.ClientsHandler)
		})
	}

	return router
}
