package order

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"EStore/internal/auth"
)

func TestHTTP_OrdersVisibility(t *testing.T) {
	l, _ := newTestLedger(t)
	jwt := auth.NewTokenMaker("test-secret-test-secret-test-secret")

	r := chi.NewRouter()
	(&Server{Ledger: l, JWT: jwt, Log: zap.NewNop()}).MountRoutes(r)

	token := func(id int, username string, role auth.Role) string {
		tok, err := jwt.New(auth.User{ID: id, Username: username, Role: role}, time.Minute)
		require.NoError(t, err)
		return tok
	}
	aliceTok := token(alice, "alice", auth.RoleCustomer)
	bobTok := token(bob, "bob", auth.RoleCustomer)
	adminTok := token(0, "root", auth.RoleAdmin)

	o, err := l.Create(alice, []Line{{ItemID: 3, Name: "Soda", Quantity: 2, UnitPriceCents: 100}})
	require.NoError(t, err)
	path := "/orders/" + strconv.Itoa(o.ID)

	do := func(method, target, tok string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, target, nil)
		if tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	require.Equal(t, http.StatusUnauthorized, do(http.MethodGet, "/orders/", "").Code)
	require.Equal(t, http.StatusOK, do(http.MethodGet, path, aliceTok).Code)
	require.Equal(t, http.StatusForbidden, do(http.MethodGet, path, bobTok).Code)
	require.Equal(t, http.StatusOK, do(http.MethodGet, path, adminTok).Code)
	require.Equal(t, http.StatusNotFound, do(http.MethodGet, "/orders/77", aliceTok).Code)

	rec := do(http.MethodGet, "/orders/?name=soda", aliceTok)
	require.Equal(t, http.StatusOK, rec.Code)
	var mine []Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &mine))
	require.Len(t, mine, 1)

	rec = do(http.MethodGet, "/orders/", bobTok)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &mine))
	require.Empty(t, mine)

	require.Equal(t, http.StatusForbidden, do(http.MethodGet, "/orders/?user=1", bobTok).Code)
	require.Equal(t, http.StatusBadRequest, do(http.MethodGet, "/orders/?user=alice", adminTok).Code)
	rec = do(http.MethodGet, "/orders/?user=1", adminTok)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &mine))
	require.Len(t, mine, 1)

	require.Equal(t, http.StatusForbidden, do(http.MethodDelete, path, aliceTok).Code)
	require.Equal(t, http.StatusNoContent, do(http.MethodDelete, path, adminTok).Code)
	require.Equal(t, http.StatusNotFound, do(http.MethodGet, path, aliceTok).Code)
}

func TestHTTP_OwnershipFollowsUserID(t *testing.T) {
	l, _ := newTestLedger(t)
	jwt := auth.NewTokenMaker("test-secret-test-secret-test-secret")

	r := chi.NewRouter()
	(&Server{Ledger: l, JWT: jwt, Log: zap.NewNop()}).MountRoutes(r)

	o, err := l.Create(alice, []Line{{ItemID: 3, Name: "Soda", Quantity: 1, UnitPriceCents: 100}})
	require.NoError(t, err)

	get := func(id int, username string) int {
		tok, err := jwt.New(auth.User{ID: id, Username: username, Role: auth.RoleCustomer}, time.Minute)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/orders/"+strconv.Itoa(o.ID), nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec.Code
	}

	require.Equal(t, http.StatusOK, get(alice, "alice-renamed"))
	require.Equal(t, http.StatusForbidden, get(carol, "alice"))
}
