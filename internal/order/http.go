package order

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"EStore/internal/auth"
	"EStore/pkg/kit"
)

type Server struct {
	Ledger *Ledger
	JWT    *auth.TokenMaker
	Log    *zap.Logger
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		kit.WriteError(w, r, http.StatusUnauthorized, "no user", nil)
		return
	}

	purchaser := p.ID
	if raw := r.URL.Query().Get("user"); raw != "" {
		other, err := strconv.Atoi(raw)
		if err != nil {
			kit.WriteError(w, r, http.StatusBadRequest, "bad user", map[string]any{"user": raw})
			return
		}
		if other != p.ID && !p.IsAdmin() {
			kit.WriteError(w, r, http.StatusForbidden, "forbidden", nil)
			return
		}
		purchaser = other
	}

	kit.WriteJSON(w, http.StatusOK, s.Ledger.Find(r.URL.Query().Get("name"), purchaser))
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		kit.WriteError(w, r, http.StatusUnauthorized, "no user", nil)
		return
	}

	id, ok := orderID(w, r)
	if !ok {
		return
	}

	o, found := s.Ledger.Get(id)
	if !found {
		kit.WriteError(w, r, http.StatusNotFound, "not found", map[string]any{"id": id})
		return
	}
	if o.Purchaser != p.ID && !p.IsAdmin() {
		kit.WriteError(w, r, http.StatusForbidden, "forbidden", nil)
		return
	}

	kit.WriteJSON(w, http.StatusOK, o)
}

func (s *Server) remove(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}

	removed, err := s.Ledger.Delete(id)
	if err != nil {
		s.Log.Error("delete order failed", zap.Error(err), zap.Int("order_id", id))
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
		return
	}
	if !removed {
		kit.WriteError(w, r, http.StatusNotFound, "not found", map[string]any{"id": id})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// WriteError maps ledger errors onto responses. The cart checkout handler
// shares it.
func WriteError(log *zap.Logger, w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrInvalidOrder):
		kit.WriteError(w, r, http.StatusBadRequest, err.Error(), nil)
	default:
		log.Error("order failed", zap.Error(err))
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
	}
}

func orderID(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.Atoi(raw)
	if err != nil || id < 0 {
		kit.WriteError(w, r, http.StatusBadRequest, "bad id", map[string]any{"id": raw})
		return 0, false
	}
	return id, true
}
