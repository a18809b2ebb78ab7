package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"searchscaler/internal/features/autoscaling/domain"
	"searchscaler/internal/features/autoscaling/domain/mocks"
	"searchscaler/internal/features/autoscaling/service"
	"searchscaler/internal/features/autoscaling/trigger"
)

func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cluster := new(mocks.MockClusterProvider)
	cluster.On("LiveNodes", mock.Anything).Return([]string{"node-1"}, nil)

	scalingService := service.NewService(context.Background(), 10*time.Millisecond,
		trigger.Deps{Cluster: cluster}, nil, nil)
	t.Cleanup(func() { scalingService.Close() })

	require.NoError(t, scalingService.ApplyConfig(context.Background(), service.Config{
		Triggers: []domain.TriggerConfig{
			{Name: "node-lost", Event: "nodeLost", WaitFor: "5s"},
			{Name: "ops", Event: "manual"},
		},
	}))

	router := gin.New()
	NewHealthHandler(scalingService).SetupRoutes(router)
	NewTriggerHandler(scalingService).SetupRoutes(router)
	return router
}

func TestListTriggers(t *testing.T) {
	router := setupRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/triggers", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Triggers []service.TriggerStatus `json:"triggers"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Triggers, 2)
}

func TestGetTrigger(t *testing.T) {
	router := setupRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/triggers/node-lost", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var status service.TriggerStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, "node-lost", status.Name)
	assert.Equal(t, domain.EventTypeNodeLost, status.EventType)
	assert.Equal(t, "5s", status.WaitFor)
}

func TestGetTriggerNotFound(t *testing.T) {
	router := setupRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/triggers/missing", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSubmitEvent(t *testing.T) {
	router := setupRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/triggers/ops/events",
		strings.NewReader(`{"job":"reindex"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestSubmitEventToNonManualTrigger(t *testing.T) {
	router := setupRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/triggers/node-lost/events", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code,
		"only manual triggers accept submitted events")
}

func TestSubmitEventUnknownTrigger(t *testing.T) {
	router := setupRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/triggers/missing/events", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthEndpoints(t *testing.T) {
	router := setupRouter(t)

	for _, path := range []string{"/api/v1/health", "/api/v1/readiness", "/api/v1/liveness"} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}

func TestHealthReportsScheduledTriggerCount(t *testing.T) {
	router := setupRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Status            string `json:"status"`
		ScheduledTriggers int    `json:"scheduledTriggers"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, 2, body.ScheduledTriggers)
}

func TestReadinessBeforeTriggersScheduled(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cluster := new(mocks.MockClusterProvider)
	cluster.On("LiveNodes", mock.Anything).Return([]string{"node-1"}, nil)

	scalingService := service.NewService(context.Background(), 10*time.Millisecond,
		trigger.Deps{Cluster: cluster}, nil, nil)
	t.Cleanup(func() { scalingService.Close() })

	router := gin.New()
	NewHealthHandler(scalingService).SetupRoutes(router)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/readiness", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code,
		"readiness should fail until a trigger schedule has been applied")

	require.NoError(t, scalingService.ApplyConfig(context.Background(), service.Config{
		Triggers: []domain.TriggerConfig{{Name: "ops", Event: "manual"}},
	}))

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/readiness", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
