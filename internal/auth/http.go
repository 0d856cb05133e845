package auth

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"EStore/internal/filestore"
	"EStore/pkg/kit"
)

const minPasswordLen = 8

type Server struct {
	Log      *zap.Logger
	Store    *Store
	JWT      *TokenMaker
	TokenTTL time.Duration
	Limits   RateLimits
}

type userView struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Role     Role   `json:"role"`
}

func viewOf(u User) userView {
	return userView{ID: u.ID, Username: u.Username, Name: u.Name, Role: u.Role}
}

type registerReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerReq
	if err := kit.DecodeJSON(w, r, &req); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", map[string]any{"cause": err.Error()})
		return
	}

	if strings.TrimSpace(req.Username) == "" || strings.TrimSpace(req.Password) == "" {
		kit.WriteError(w, r, http.StatusBadRequest, "username/password required", nil)
		return
	}
	if len(strings.TrimSpace(req.Password)) < minPasswordLen {
		kit.WriteError(w, r, http.StatusBadRequest, "password too short", map[string]any{"min_len": minPasswordLen})
		return
	}

	u, err := s.Store.Register(req.Username, req.Password, req.Name, RoleCustomer)
	if err != nil {
		s.writeStoreError(w, r, "register", err)
		return
	}

	kit.WriteJSON(w, http.StatusCreated, viewOf(u))
}

type loginReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResp struct {
	AccessToken string `json:"access_token"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginReq
	if err := kit.DecodeJSON(w, r, &req); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", map[string]any{"cause": err.Error()})
		return
	}

	u, err := s.Store.Verify(req.Username, req.Password)
	if err != nil {
		kit.WriteError(w, r, http.StatusUnauthorized, "invalid credentials", nil)
		return
	}

	tok, err := s.JWT.New(u, s.tokenTTL())
	if err != nil {
		s.Log.Error("token issue", zap.Error(err))
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
		return
	}

	kit.WriteJSON(w, http.StatusOK, loginResp{AccessToken: tok})
}

func (s *Server) handleWhoAmI(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFromContext(r.Context())
	kit.WriteJSON(w, http.StatusOK, p)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users := s.Store.List()
	out := make([]userView, 0, len(users))
	for _, u := range users {
		out = append(out, viewOf(u))
	}
	kit.WriteJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := s.selfOrAdmin(w, r)
	if !ok {
		return
	}

	u, found := s.Store.Get(id)
	if !found {
		kit.WriteError(w, r, http.StatusNotFound, "not found", map[string]any{"id": id})
		return
	}
	kit.WriteJSON(w, http.StatusOK, viewOf(u))
}

type updateUserReq struct {
	Username *string `json:"username"`
	Name     *string `json:"name"`
	Password *string `json:"password"`
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := s.selfOrAdmin(w, r)
	if !ok {
		return
	}

	var req updateUserReq
	if err := kit.DecodeJSON(w, r, &req); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", map[string]any{"cause": err.Error()})
		return
	}
	if req.Password != nil && len(strings.TrimSpace(*req.Password)) < minPasswordLen {
		kit.WriteError(w, r, http.StatusBadRequest, "password too short", map[string]any{"min_len": minPasswordLen})
		return
	}

	u, err := s.Store.Update(id, Changes{
		Username: req.Username,
		Name:     req.Name,
		Password: req.Password,
	})
	if err != nil {
		s.writeStoreError(w, r, "update user", err)
		return
	}

	kit.WriteJSON(w, http.StatusOK, viewOf(u))
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad id", nil)
		return
	}

	removed, err := s.Store.Delete(id)
	if err != nil {
		s.writeStoreError(w, r, "delete user", err)
		return
	}
	if !removed {
		kit.WriteError(w, r, http.StatusNotFound, "not found", map[string]any{"id": id})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) selfOrAdmin(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad id", nil)
		return 0, false
	}

	p, ok := PrincipalFromContext(r.Context())
	if !ok {
		kit.WriteError(w, r, http.StatusUnauthorized, "no user", nil)
		return 0, false
	}
	if p.ID != id && !p.IsAdmin() {
		kit.WriteError(w, r, http.StatusForbidden, "forbidden", nil)
		return 0, false
	}
	return id, true
}

func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, ErrUsernameExists):
		kit.WriteError(w, r, http.StatusConflict, "username already exists", nil)
	case errors.Is(err, ErrUserNotFound):
		kit.WriteError(w, r, http.StatusNotFound, "not found", nil)
	case errors.Is(err, ErrInvalidUser):
		kit.WriteError(w, r, http.StatusBadRequest, err.Error(), nil)
	default:
		if errors.Is(err, filestore.ErrStorageUnavailable) {
			s.Log.Error(op+" failed", zap.Error(err))
		} else {
			s.Log.Error(op+" failed", zap.Error(err), zap.Bool("unexpected", true))
		}
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
	}
}

func (s *Server) tokenTTL() time.Duration {
	if s.TokenTTL <= 0 {
		return 15 * time.Minute
	}
	return s.TokenTTL
}
