package auth

import (
	"time"

	"github.com/go-chi/chi/v5"

	"EStore/pkg/kit"
)

const (
	defaultLoginLimit    = 5
	defaultRegisterLimit = 3
	limitWindow          = 60 * time.Second
)

// RateLimits caps login and register attempts per client IP per minute.
// Zero values use the defaults.
type RateLimits struct {
	Login    int
	Register int
}

func (l RateLimits) orDefault() RateLimits {
	if l.Login <= 0 {
		l.Login = defaultLoginLimit
	}
	if l.Register <= 0 {
		l.Register = defaultRegisterLimit
	}
	return l
}

func (s *Server) MountRoutes(r chi.Router) {
	limits := s.Limits.orDefault()
	loginLimiter := kit.NewIPRateLimiter(limits.Login, limitWindow)
	registerLimiter := kit.NewIPRateLimiter(limits.Register, limitWindow)

	r.Route("/auth", func(rr chi.Router) {
		rr.With(loginLimiter.Middleware).Post("/login", s.handleLogin)
		rr.With(registerLimiter.Middleware).Post("/register", s.handleRegister)
		rr.With(RequireUser(s.JWT)).Get("/whoami", s.handleWhoAmI)
	})

	r.Route("/users", func(rr chi.Router) {
		rr.Use(RequireUser(s.JWT))
		rr.With(RequireRole(RoleAdmin)).Get("/", s.handleListUsers)
		rr.Get("/{id}", s.handleGetUser)
		rr.Put("/{id}", s.handleUpdateUser)
		rr.With(RequireRole(RoleAdmin)).Delete("/{id}", s.handleDeleteUser)
	})
}
