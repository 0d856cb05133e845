package catalog

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"EStore/internal/filestore"
	"EStore/pkg/kit"
)

// Server exposes one catalog under Prefix. Writes go through Admin.
type Server[T Entity[T]] struct {
	Catalog *Catalog[T]
	Prefix  string
	Log     *zap.Logger
	Admin   func(http.Handler) http.Handler
}

func (s *Server[T]) list(w http.ResponseWriter, r *http.Request) {
	kit.WriteJSON(w, http.StatusOK, s.Catalog.Find(r.URL.Query().Get("name")))
}

func (s *Server[T]) get(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}

	it, found := s.Catalog.Get(id)
	if !found {
		kit.WriteError(w, r, http.StatusNotFound, "not found", map[string]any{"id": id})
		return
	}
	kit.WriteJSON(w, http.StatusOK, it)
}

func (s *Server[T]) create(w http.ResponseWriter, r *http.Request) {
	var draft T
	if err := kit.DecodeJSON(w, r, &draft); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", map[string]any{"cause": err.Error()})
		return
	}

	created, err := s.Catalog.Create(draft)
	if err != nil {
		s.writeError(w, r, "create item", err)
		return
	}
	kit.WriteJSON(w, http.StatusCreated, created)
}

func (s *Server[T]) update(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}

	var item T
	if err := kit.DecodeJSON(w, r, &item); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", map[string]any{"cause": err.Error()})
		return
	}

	updated, found, err := s.Catalog.Update(item.WithID(id))
	if err != nil {
		s.writeError(w, r, "update item", err)
		return
	}
	if !found {
		kit.WriteError(w, r, http.StatusNotFound, "not found", map[string]any{"id": id})
		return
	}
	kit.WriteJSON(w, http.StatusOK, updated)
}

type quantityReq struct {
	Delta int `json:"delta"`
}

func (s *Server[T]) adjustQuantity(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}

	var req quantityReq
	if err := kit.DecodeJSON(w, r, &req); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", map[string]any{"cause": err.Error()})
		return
	}

	updated, err := s.Catalog.UpdateQuantity(id, req.Delta)
	if err != nil {
		s.writeError(w, r, "update quantity", err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, updated)
}

func (s *Server[T]) remove(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}

	removed, err := s.Catalog.Delete(id)
	if err != nil {
		s.writeError(w, r, "delete item", err)
		return
	}
	if !removed {
		kit.WriteError(w, r, http.StatusNotFound, "not found", map[string]any{"id": id})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server[T]) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		kit.WriteError(w, r, http.StatusNotFound, "not found", nil)
	case errors.Is(err, ErrInsufficientStock):
		kit.WriteError(w, r, http.StatusConflict, "insufficient stock", map[string]any{"cause": err.Error()})
	case errors.Is(err, ErrInvalidItem):
		kit.WriteError(w, r, http.StatusBadRequest, err.Error(), nil)
	default:
		s.Log.Error(op+" failed", zap.String("catalog", s.Catalog.Name()), zap.Error(err),
			zap.Bool("storage", errors.Is(err, filestore.ErrStorageUnavailable)))
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
	}
}

func itemID(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.Atoi(raw)
	if err != nil || id < 0 {
		kit.WriteError(w, r, http.StatusBadRequest, "bad id", map[string]any{"id": raw})
		return 0, false
	}
	return id, true
}
