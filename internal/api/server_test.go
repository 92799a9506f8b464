package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/keygate/internal/api"
	"github.com/systmms/keygate/internal/config"
	"github.com/systmms/keygate/internal/credential"
	"github.com/systmms/keygate/internal/logging"
	"github.com/systmms/keygate/internal/manager"
	"github.com/systmms/keygate/internal/store"
)

func newTestRouter(t *testing.T, opts manager.Options) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := logging.New(false)
	mgr := manager.New(
		credential.NewStore(store.NewMemory(), logger),
		credential.NewUUIDGenerator(),
		opts,
		clockwork.NewFakeClock(),
		logger,
	)

	def := config.Default()
	return api.NewServer(mgr, def, logger).Router()
}

func doRequest(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()
	router := newTestRouter(t, manager.Options{})

	rec := doRequest(t, router, http.MethodGet, "/health", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, config.ModeLocal, body["mode"])
}

func TestScheduleEndpoint(t *testing.T) {
	t.Parallel()

	t.Run("provisions_credentials", func(t *testing.T) {
		t.Parallel()
		router := newTestRouter(t, manager.Options{})

		rec := doRequest(t, router, http.MethodPost, "/apps/demo/schedule",
			map[string]int{"rotation_period_days": 30})

		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, "demo", body["app_name"])
		assert.NotEmpty(t, body["consumer_key"])
		assert.NotEmpty(t, body["consumer_secret"])
		assert.Equal(t, float64(30), body["rotation_period_days"])
	})

	t.Run("rejects_out_of_range_period", func(t *testing.T) {
		t.Parallel()
		router := newTestRouter(t, manager.Options{})

		for _, days := range []int{0, 400} {
			rec := doRequest(t, router, http.MethodPost, "/apps/demo/schedule",
				map[string]int{"rotation_period_days": days})

			require.Equal(t, http.StatusBadRequest, rec.Code, "period %d", days)
			body := decodeBody(t, rec)
			assert.Contains(t, body["error"], "rotation_period_days")
		}
	})

	t.Run("rejects_malformed_body", func(t *testing.T) {
		t.Parallel()
		router := newTestRouter(t, manager.Options{})

		req := httptest.NewRequest(http.MethodPost, "/apps/demo/schedule",
			bytes.NewBufferString("{not json"))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestRotateEndpoint(t *testing.T) {
	t.Parallel()

	t.Run("replaces_the_pair", func(t *testing.T) {
		t.Parallel()
		router := newTestRouter(t, manager.Options{})

		created := doRequest(t, router, http.MethodPost, "/apps/demo/schedule",
			map[string]int{"rotation_period_days": 30})
		require.Equal(t, http.StatusOK, created.Code)
		createdBody := decodeBody(t, created)

		rotated := doRequest(t, router, http.MethodPost, "/apps/demo/rotate", nil)
		require.Equal(t, http.StatusOK, rotated.Code)
		rotatedBody := decodeBody(t, rotated)

		assert.NotEqual(t, createdBody["consumer_key"], rotatedBody["consumer_key"])
		assert.Equal(t, float64(30), rotatedBody["rotation_period_days"])
	})

	t.Run("unknown_app_is_404_in_durable_mode", func(t *testing.T) {
		t.Parallel()
		router := newTestRouter(t, manager.Options{})

		rec := doRequest(t, router, http.MethodPost, "/apps/ghost/rotate", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("unknown_app_is_provisioned_in_lazy_init_mode", func(t *testing.T) {
		t.Parallel()
		router := newTestRouter(t, manager.Options{LazyInit: true, DefaultPeriodDays: 30})

		rec := doRequest(t, router, http.MethodPost, "/apps/fresh/rotate", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, "fresh", body["app_name"])
	})
}

func TestStatusEndpoint(t *testing.T) {
	t.Parallel()

	t.Run("returns_the_active_credential", func(t *testing.T) {
		t.Parallel()
		router := newTestRouter(t, manager.Options{})

		created := doRequest(t, router, http.MethodPost, "/apps/demo/schedule",
			map[string]int{"rotation_period_days": 7})
		require.Equal(t, http.StatusOK, created.Code)

		rec := doRequest(t, router, http.MethodGet, "/apps/demo", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, "demo", body["app_name"])
		assert.Equal(t, float64(7), body["rotation_period_days"])
	})

	t.Run("unknown_app_is_404_in_durable_mode", func(t *testing.T) {
		t.Parallel()
		router := newTestRouter(t, manager.Options{})

		rec := doRequest(t, router, http.MethodGet, "/apps/ghost", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestListEndpoint(t *testing.T) {
	t.Parallel()
	router := newTestRouter(t, manager.Options{})

	for _, app := range []string{"alpha", "beta"} {
		rec := doRequest(t, router, http.MethodPost, fmt.Sprintf("/apps/%s/schedule", app),
			map[string]int{"rotation_period_days": 30})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := doRequest(t, router, http.MethodGet, "/apps", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var creds []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &creds))
	assert.Len(t, creds, 2)
}

func TestVerifyEndpoint(t *testing.T) {
	t.Parallel()

	t.Run("known_app_reports_existence", func(t *testing.T) {
		t.Parallel()
		router := newTestRouter(t, manager.Options{})

		created := doRequest(t, router, http.MethodPost, "/apps/demo/schedule",
			map[string]int{"rotation_period_days": 30})
		require.Equal(t, http.StatusOK, created.Code)

		rec := doRequest(t, router, http.MethodGet, "/verify/demo", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, true, body["exists"])
		assert.Equal(t, true, body["has_credentials"])

		// Verification bodies never carry credential material.
		assert.NotContains(t, rec.Body.String(), "consumer_key")
		assert.NotContains(t, rec.Body.String(), "secret")
	})

	t.Run("unknown_app_is_200_with_exists_false", func(t *testing.T) {
		t.Parallel()
		router := newTestRouter(t, manager.Options{})

		rec := doRequest(t, router, http.MethodGet, "/verify/ghost", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, false, body["exists"])
	})
}
