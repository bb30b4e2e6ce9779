package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spot-the-bot/backend/internal/v1/bus"
)

func doGet(t *testing.T, h gin.HandlerFunc, path string) (int, map[string]any) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET(path, h)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w.Code, body
}

func TestLiveness(t *testing.T) {
	h := NewHandler(nil)

	code, body := doGet(t, h.Liveness, "/health")

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", body["status"])
}

func TestReadiness_RedisDisabled(t *testing.T) {
	h := NewHandler(nil)

	code, body := doGet(t, h.Readiness, "/health/ready")

	assert.Equal(t, http.StatusOK, code)
	checks := body["checks"].(map[string]any)
	assert.Equal(t, "disabled", checks["redis"])
}

func TestReadiness_RedisHealthy(t *testing.T) {
	mr := miniredis.RunT(t)
	svc, err := bus.NewService(mr.Addr(), "")
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })

	h := NewHandler(svc)

	code, body := doGet(t, h.Readiness, "/health/ready")

	assert.Equal(t, http.StatusOK, code)
	checks := body["checks"].(map[string]any)
	assert.Equal(t, "healthy", checks["redis"])
}

func TestReadiness_RedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	svc, err := bus.NewService(mr.Addr(), "")
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })
	mr.Close()

	h := NewHandler(svc)

	// A failing mirror degrades the report but the endpoint stays 200; the
	// mirror is optional infrastructure.
	code, body := doGet(t, h.Readiness, "/health/ready")

	assert.Equal(t, http.StatusOK, code)
	checks := body["checks"].(map[string]any)
	assert.Equal(t, "unhealthy", checks["redis"])
}
