package research

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"resume-matcher/pkg/ratelimit"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebResearcherDisabledWithoutKey(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
	defer srv.Close()

	r := NewWebResearcher(srv.URL, "", 0, time.Second, zerolog.Nop())
	assert.False(t, r.Enabled())

	notes, err := r.Research(context.Background(), "Acme")
	require.NoError(t, err)
	assert.NotNil(t, notes)
	assert.Empty(t, notes)
	assert.False(t, called, "没有 key 时不应发出请求")
}

func TestWebResearcherSearch(t *testing.T) {
	var got searchRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/search", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[
			{"content":"Acme values ownership.","url":"https://a.example/1"},
			{"content":"  ","url":"https://a.example/empty"},
			{"content":"Two technical rounds.","url":"https://a.example/2"}
		]}`))
	}))
	defer srv.Close()

	r := NewWebResearcher(srv.URL+"/", "k-123", 2, time.Second, zerolog.Nop())
	notes, err := r.Research(context.Background(), "Acme")
	require.NoError(t, err)

	assert.Equal(t, "k-123", got.APIKey)
	assert.Equal(t, 2, got.MaxResults)
	assert.Contains(t, got.Query, "Acme")

	require.Len(t, notes, 2, "空内容被丢弃")
	assert.Equal(t, "Acme values ownership.", notes[0].Content)
	assert.Equal(t, "https://a.example/2", notes[1].URL)
}

func TestWebResearcherHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := NewWebResearcher(srv.URL, "bad", 0, time.Second, zerolog.Nop()).Research(context.Background(), "Acme")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestWebResearcherRateLimited(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = w.Write([]byte(`{"results":[]}`))
	}))
	defer srv.Close()

	r := NewWebResearcher(srv.URL, "k", 0, time.Second, zerolog.Nop()).
		WithRateLimit(ratelimit.NewTokenBucket(1, 1))

	_, err := r.Research(context.Background(), "Acme")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = r.Research(ctx, "Globex")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, calls, "限流时不应发出请求")
}
