package api_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"EStore/internal/api"
	"EStore/internal/auth"
	"EStore/internal/cart"
	"EStore/internal/catalog"
	"EStore/internal/filestore"
	"EStore/internal/order"
)

const (
	jwtSecret    = "test-secret-test-secret-test-secret"
	metricsToken = "scrape-me"
)

func openStore[T filestore.Entity[T]](t *testing.T, dir, name string) *filestore.Store[T] {
	t.Helper()
	path := filepath.Join(dir, name+".json")
	require.NoError(t, filestore.Bootstrap(path))
	s, err := filestore.Open[T](name, path)
	require.NoError(t, err)
	return s
}

func newTestServer(t *testing.T) (*httptest.Server, *auth.Store) {
	t.Helper()
	dir := t.TempDir()

	users := auth.NewStore(openStore[auth.User](t, dir, "users"))
	products := catalog.New(openStore[catalog.Product](t, dir, "products"))
	kits := catalog.New(openStore[catalog.Kit](t, dir, "kits"))
	ledger := order.NewLedger(openStore[order.Order](t, dir, "orders"))

	_, _, err := users.EnsureAdmin("root", "root-password")
	require.NoError(t, err)

	h := api.NewHandler(api.Deps{
		Users:    users,
		Products: products,
		Kits:     kits,
		Ledger:   ledger,
		Cart:     cart.NewManager(kits, ledger),
		JWT:      auth.NewTokenMaker(jwtSecret),
		TokenTTL: time.Minute,
		Limits:   auth.RateLimits{Login: 100, Register: 100},
	}, api.HTTPDeps{
		Log:            zap.NewNop(),
		Service:        "estore",
		Registry:       prometheus.NewRegistry(),
		MetricsEnabled: true,
		MetricsToken:   metricsToken,
	})

	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	return ts, users
}

func doJSON(t *testing.T, method, url, token string, body any) (*http.Response, []byte) {
	t.Helper()

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, url, r)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, raw
}

func login(t *testing.T, base, username, password string) string {
	t.Helper()
	resp, raw := doJSON(t, http.MethodPost, base+"/auth/login", "", map[string]any{
		"username": username,
		"password": password,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

	var lr struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(raw, &lr))
	require.NotEmpty(t, lr.AccessToken)
	return lr.AccessToken
}

func TestPublicAPI_HappyPath(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, raw := doJSON(t, http.MethodPost, ts.URL+"/auth/register", "", map[string]any{
		"username": "shopper",
		"password": "password123",
		"name":     "Shopper",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))
	var shopper struct {
		ID int `json:"id"`
	}
	require.NoError(t, json.Unmarshal(raw, &shopper))

	adminTok := login(t, ts.URL, "root", "root-password")
	userTok := login(t, ts.URL, "shopper", "password123")

	resp, raw = doJSON(t, http.MethodPost, ts.URL+"/kits", userTok, map[string]any{
		"name": "Picnic Kit", "price_cents": 1299, "quantity": 3,
	})
	require.Equal(t, http.StatusForbidden, resp.StatusCode, string(raw))

	resp, raw = doJSON(t, http.MethodPost, ts.URL+"/kits", adminTok, map[string]any{
		"name": "Picnic Kit", "price_cents": 1299, "quantity": 3, "product_ids": []int{1, 2},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))
	var kit catalog.Kit
	require.NoError(t, json.Unmarshal(raw, &kit))

	resp, raw = doJSON(t, http.MethodGet, ts.URL+"/kits?name=picnic", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var kits []catalog.Kit
	require.NoError(t, json.Unmarshal(raw, &kits))
	require.Len(t, kits, 1)

	resp, raw = doJSON(t, http.MethodPost, ts.URL+"/cart/items", userTok, map[string]any{
		"item_id": kit.ID, "quantity": 5,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	var res cart.Reservation
	require.NoError(t, json.Unmarshal(raw, &res))
	require.Equal(t, 3, res.Granted)

	resp, raw = doJSON(t, http.MethodPost, ts.URL+"/cart/checkout", userTok, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))
	var created order.Order
	require.NoError(t, json.Unmarshal(raw, &created))
	require.Equal(t, int64(3*1299), created.TotalCents)
	require.Equal(t, shopper.ID, created.Purchaser)

	resp, raw = doJSON(t, http.MethodGet, ts.URL+"/orders/"+strconv.Itoa(created.ID), userTok, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

	resp, raw = doJSON(t, http.MethodGet, ts.URL+"/kits/"+strconv.Itoa(kit.ID), "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(raw, &kit))
	require.Equal(t, 0, kit.Quantity)
}

func register(t *testing.T, base, username, password string) int {
	t.Helper()
	resp, raw := doJSON(t, http.MethodPost, base+"/auth/register", "", map[string]any{
		"username": username,
		"password": password,
		"name":     username,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))

	var u struct {
		ID int `json:"id"`
	}
	require.NoError(t, json.Unmarshal(raw, &u))
	return u.ID
}

func TestPublicAPI_FreedUsernameDoesNotInheritOrders(t *testing.T) {
	ts, _ := newTestServer(t)
	adminTok := login(t, ts.URL, "root", "root-password")

	resp, raw := doJSON(t, http.MethodPost, ts.URL+"/kits", adminTok, map[string]any{
		"name": "Tea Kit", "price_cents": 500, "quantity": 4,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))
	var kit catalog.Kit
	require.NoError(t, json.Unmarshal(raw, &kit))

	aliceID := register(t, ts.URL, "alice", "password123")
	aliceTok := login(t, ts.URL, "alice", "password123")

	resp, raw = doJSON(t, http.MethodPost, ts.URL+"/cart/items", aliceTok, map[string]any{
		"item_id": kit.ID, "quantity": 1,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	resp, raw = doJSON(t, http.MethodPost, ts.URL+"/cart/checkout", aliceTok, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))
	var placed order.Order
	require.NoError(t, json.Unmarshal(raw, &placed))
	orderPath := ts.URL + "/orders/" + strconv.Itoa(placed.ID)

	resp, raw = doJSON(t, http.MethodPut, ts.URL+"/users/"+strconv.Itoa(aliceID), adminTok, map[string]any{
		"username": "alice2",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

	newcomerID := register(t, ts.URL, "alice", "password456")
	require.NotEqual(t, aliceID, newcomerID)
	newcomerTok := login(t, ts.URL, "alice", "password456")

	resp, raw = doJSON(t, http.MethodGet, orderPath, newcomerTok, nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode, string(raw))

	resp, raw = doJSON(t, http.MethodGet, ts.URL+"/orders/", newcomerTok, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	var listed []order.Order
	require.NoError(t, json.Unmarshal(raw, &listed))
	require.Empty(t, listed)

	renamedTok := login(t, ts.URL, "alice2", "password123")
	resp, raw = doJSON(t, http.MethodGet, orderPath, renamedTok, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

	resp, raw = doJSON(t, http.MethodDelete, ts.URL+"/users/"+strconv.Itoa(aliceID), adminTok, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode, string(raw))

	lateID := register(t, ts.URL, "alice2", "password789")
	require.Greater(t, lateID, newcomerID)
	lateTok := login(t, ts.URL, "alice2", "password789")
	resp, raw = doJSON(t, http.MethodGet, orderPath, lateTok, nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode, string(raw))
}

func TestPublicAPI_CartRequiresAuth(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, raw := doJSON(t, http.MethodPost, ts.URL+"/cart/items", "", map[string]any{"item_id": 0, "quantity": 1})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode, string(raw))

	var body struct {
		Error     string `json:"error"`
		RequestID string `json:"request_id"`
	}
	require.NoError(t, json.Unmarshal(raw, &body))
	require.Equal(t, "missing token", body.Error)
	require.NotEmpty(t, body.RequestID)
}

func TestPublicAPI_HealthAndMetrics(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, _ := doJSON(t, http.MethodGet, ts.URL+"/healthz", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/readyz", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/metrics", "", nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, raw := doJSON(t, http.MethodGet, ts.URL+"/metrics", metricsToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(raw), "http_requests_total")
}
