package cart

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"EStore/internal/auth"
	"EStore/internal/catalog"
	"EStore/internal/filestore"
	"EStore/internal/order"
	"EStore/pkg/kit"
)

type Server[T catalog.Entity[T]] struct {
	Manager *Manager[T]
	JWT     *auth.TokenMaker
	Log     *zap.Logger
}

type cartView[T catalog.Item] struct {
	Lines      []Line[T] `json:"lines"`
	TotalCents int64     `json:"total_cents"`
}

func (s *Server[T]) MountRoutes(r chi.Router) {
	r.Route("/cart", func(rr chi.Router) {
		rr.Use(auth.RequireUser(s.JWT))
		rr.Get("/", s.get)
		rr.Delete("/", s.clear)
		rr.Post("/items", s.reserve)
		rr.Delete("/items/{id}", s.release)
		rr.Post("/checkout", s.checkout)
	})
}

func (s *Server[T]) get(w http.ResponseWriter, r *http.Request) {
	user, ok := s.user(w, r)
	if !ok {
		return
	}

	lines := s.Manager.Cart(user)
	var total int64
	for _, l := range lines {
		total += l.SubtotalCents()
	}
	kit.WriteJSON(w, http.StatusOK, cartView[T]{Lines: lines, TotalCents: total})
}

type reserveReq struct {
	ItemID   int `json:"item_id"`
	Quantity int `json:"quantity"`
}

func (s *Server[T]) reserve(w http.ResponseWriter, r *http.Request) {
	user, ok := s.user(w, r)
	if !ok {
		return
	}

	var req reserveReq
	if err := kit.DecodeJSON(w, r, &req); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", map[string]any{"cause": err.Error()})
		return
	}

	res, err := s.Manager.Reserve(user, req.ItemID, req.Quantity)
	if err != nil {
		s.writeError(w, r, "reserve", err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, res)
}

func (s *Server[T]) release(w http.ResponseWriter, r *http.Request) {
	user, ok := s.user(w, r)
	if !ok {
		return
	}

	itemID, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad id", nil)
		return
	}

	qty := 1
	if raw := r.URL.Query().Get("quantity"); raw != "" {
		if qty, err = strconv.Atoi(raw); err != nil {
			kit.WriteError(w, r, http.StatusBadRequest, "bad quantity", map[string]any{"quantity": raw})
			return
		}
	}

	res, err := s.Manager.Release(user, itemID, qty)
	if err != nil {
		s.writeError(w, r, "release", err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, res)
}

func (s *Server[T]) clear(w http.ResponseWriter, r *http.Request) {
	user, ok := s.user(w, r)
	if !ok {
		return
	}

	if err := s.Manager.Clear(user); err != nil {
		s.writeError(w, r, "clear", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server[T]) checkout(w http.ResponseWriter, r *http.Request) {
	user, ok := s.user(w, r)
	if !ok {
		return
	}

	o, err := s.Manager.Checkout(user)
	switch {
	case err == nil:
		kit.WriteJSON(w, http.StatusCreated, o)
	case errors.Is(err, ErrEmptyCart):
		kit.WriteError(w, r, http.StatusConflict, "cart is empty", nil)
	default:
		order.WriteError(s.Log, w, r, err)
	}
}

func (s *Server[T]) user(w http.ResponseWriter, r *http.Request) (int, bool) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		kit.WriteError(w, r, http.StatusUnauthorized, "no user", nil)
		return 0, false
	}
	return p.ID, true
}

func (s *Server[T]) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, ErrInvalidQuantity), errors.Is(err, catalog.ErrInvalidItem):
		kit.WriteError(w, r, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, ErrItemNotFound), errors.Is(err, ErrNotInCart):
		kit.WriteError(w, r, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, ErrOutOfStock):
		kit.WriteError(w, r, http.StatusConflict, err.Error(), nil)
	default:
		s.Log.Error(op+" failed", zap.Error(err), zap.Bool("storage", errors.Is(err, filestore.ErrStorageUnavailable)))
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
	}
}
