package kit

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestStoreMetrics_ObservePersist(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewStoreMetrics(reg)

	m.ObservePersist("products", 2*time.Millisecond, nil)
	m.ObservePersist("products", 3*time.Millisecond, errors.New("disk full"))

	require.Equal(t, 1.0, testutil.ToFloat64(m.Failures.WithLabelValues("products")))
	require.Equal(t, 0.0, testutil.ToFloat64(m.Failures.WithLabelValues("orders")))
	require.Equal(t, 1, testutil.CollectAndCount(m.Persist))
}

func TestStoreMetrics_TrackSize(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewStoreMetrics(reg)

	size := 3
	m.TrackSize("kits", func() int { return size })
	m.TrackSize("orders", func() int { return 7 })

	n, err := testutil.GatherAndCount(reg, "estore_store_entities")
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func TestMetrics_Middleware(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	h := m.Middleware("estore", func(r *http.Request) string { return r.URL.Path })(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}),
	)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/kits", nil))

	require.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("estore", http.MethodGet, "/kits", "418")))
}
