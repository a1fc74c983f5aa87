package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/mkrupp/itemcatalog/internal/infra/metrics"
)

func TestMetrics_Middleware(t *testing.T) {
	t.Parallel()

	m := New()

	router := mux.NewRouter()
	router.Use(m.Middleware())
	router.HandleFunc("/category/{id}/items/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	router.Handle("/metrics", m.Handler())

	for _, path := range []string{"/category/1/items/", "/category/2/items/"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	m.SignIn(MethodLocal, OutcomeFailure)
	m.SignUp(MethodThirdParty)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body),
		`catalog_http_requests_total{method="GET",route="/category/{id}/items/",status="200"} 2`)
	assert.Contains(t, string(body), `catalog_sign_ins_total{method="local",outcome="failure"} 1`)
	assert.Contains(t, string(body), `catalog_sign_ups_total{method="third_party"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestMetrics_SignInCounts(t *testing.T) {
	t.Parallel()

	m := New()
	m.SignIn(MethodLocal, OutcomeSuccess)
	m.SignIn(MethodLocal, OutcomeSuccess)
	m.SignIn(MethodThirdParty, OutcomeRejected)

	families, err := m.Registry.Gather()
	require.NoError(t, err)

	counts := map[string]float64{}

	for _, family := range families {
		if family.GetName() != "catalog_sign_ins_total" {
			continue
		}

		for _, metric := range family.GetMetric() {
			labels := make([]string, 0, len(metric.GetLabel()))
			for _, label := range metric.GetLabel() {
				labels = append(labels, label.GetValue())
			}

			counts[strings.Join(labels, "/")] = metric.GetCounter().GetValue()
		}
	}

	assert.Equal(t, map[string]float64{
		"local/success":        2,
		"third_party/rejected": 1,
	}, counts)
}
