package catalog

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const (
	ProductsPrefix = "/products"
	KitsPrefix     = "/kits"
)

func NewServer[T Entity[T]](c *Catalog[T], prefix string, log *zap.Logger, admin func(http.Handler) http.Handler) *Server[T] {
	if log == nil {
		log = zap.NewNop()
	}
	if admin == nil {
		admin = func(next http.Handler) http.Handler { return next }
	}
	return &Server[T]{Catalog: c, Prefix: prefix, Log: log, Admin: admin}
}

func (s *Server[T]) MountRoutes(r chi.Router) {
	r.Route(s.Prefix, func(rr chi.Router) {
		rr.Get("/", s.list)
		rr.Get("/{id}", s.get)

		rr.Group(func(admin chi.Router) {
			admin.Use(s.Admin)
			admin.Post("/", s.create)
			admin.Put("/{id}", s.update)
			admin.Patch("/{id}/quantity", s.adjustQuantity)
			admin.Delete("/{id}", s.remove)
		})
	})
}
