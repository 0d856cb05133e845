package order

import (
	"github.com/go-chi/chi/v5"

	"EStore/internal/auth"
)

func (s *Server) MountRoutes(r chi.Router) {
	r.Route("/orders", func(rr chi.Router) {
		rr.Use(auth.RequireUser(s.JWT))
		rr.Get("/", s.list)
		rr.Get("/{id}", s.get)
		rr.With(auth.RequireRole(auth.RoleAdmin)).Delete("/{id}", s.remove)
	})
}
