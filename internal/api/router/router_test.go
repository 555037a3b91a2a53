package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"resume-matcher/internal/api/handler"
	"resume-matcher/internal/auth"
	"resume-matcher/internal/types"

	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type emptyFetcher struct{}

func (emptyFetcher) Fetch(context.Context, int) ([]types.Posting, error) {
	return []types.Posting{}, nil
}

func newTestHandlers(checks map[string]HealthCheck) Handlers {
	return Handlers{
		Resume: handler.NewResumeHandler(nil, nil, 1024, zerolog.Nop()),
		Jobs:   handler.NewJobHandler(emptyFetcher{}, 10, zerolog.Nop()),
		Users:  handler.NewUserHandler(nil, zerolog.Nop()),
		Auth:   auth.Middleware(auth.NewStaticVerifier(nil), zerolog.Nop()),
		Checks: checks,
	}
}

func TestHealth(t *testing.T) {
	h := NewServer("127.0.0.1:0", 8*1024*1024)
	RegisterRoutes(h, newTestHandlers(map[string]HealthCheck{
		"database": func(context.Context) error { return nil },
	}))

	resp := ut.PerformRequest(h.Engine, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, resp.Code)

	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "ok", body.Checks["database"])
}

func TestHealthDegraded(t *testing.T) {
	h := NewServer("127.0.0.1:0", 8*1024*1024)
	RegisterRoutes(h, newTestHandlers(map[string]HealthCheck{
		"database": func(context.Context) error { return errors.New("connection refused") },
	}))

	resp := ut.PerformRequest(h.Engine, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
	assert.Contains(t, resp.Body.String(), "connection refused")
}

func TestRoutesRequireAuth(t *testing.T) {
	h := NewServer("127.0.0.1:0", 8*1024*1024)
	RegisterRoutes(h, newTestHandlers(nil))

	for _, route := range []struct{ method, path string }{
		{http.MethodPost, "/api/upload-resume"},
		{http.MethodGet, "/api/resume-status"},
		{http.MethodPost, "/api/sync-user"},
	} {
		resp := ut.PerformRequest(h.Engine, route.method, route.path, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.Code, route.path)
	}

	resp := ut.PerformRequest(h.Engine, http.MethodGet, "/api/get_jobs", nil)
	assert.Equal(t, http.StatusOK, resp.Code, "岗位目录不需要登录")
}
