package github

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const searchBody = `{
	"total_count": 2,
	"items": [
		{"name": "todo", "full_name": "acme/todo", "html_url": "https://github.com/acme/todo", "stargazers_count": 120, "forks_count": 7, "language": "Go", "license": {"name": "MIT License"}},
		{"name": "tasks", "full_name": "acme/tasks", "html_url": "https://github.com/acme/tasks", "stargazers_count": 40, "forks_count": 1, "language": null, "license": null}
	]
}`

func TestSearchRepositories(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search/repositories", r.URL.Path)
		assert.Equal(t, "todo app", r.URL.Query().Get("q"))
		assert.Equal(t, "stars", r.URL.Query().Get("sort"))
		assert.Equal(t, "desc", r.URL.Query().Get("order"))
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, searchBody)
	}))
	defer srv.Close()

	c := NewClient(Options{Endpoint: srv.URL})
	res, err := c.SearchRepositories(context.Background(), "todo app")
	require.NoError(t, err)
	require.Len(t, res.Items, 2)
	assert.Equal(t, "acme/todo", res.Items[0].FullName)
	assert.Equal(t, 120, res.Items[0].Stars)
	assert.Equal(t, "MIT License", res.Items[0].LicenseName())
	assert.Equal(t, "", res.Items[1].LicenseName())
}

func TestSearchRepositories_SendsToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "token secret", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `{"items": []}`)
	}))
	defer srv.Close()

	_, err := NewClient(Options{Endpoint: srv.URL, Token: "secret"}).SearchRepositories(context.Background(), "x")
	require.NoError(t, err)
}

func TestSearchRepositories_CachesByQuery(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = io.WriteString(w, searchBody)
	}))
	defer srv.Close()

	c := NewClient(Options{Endpoint: srv.URL, CacheTTL: time.Minute})
	for i := 0; i < 3; i++ {
		_, err := c.SearchRepositories(context.Background(), "Todo App")
		require.NoError(t, err)
	}
	_, err := c.SearchRepositories(context.Background(), "todo app ")
	require.NoError(t, err)

	assert.Equal(t, int32(1), calls.Load())
}

func TestSearchRepositories_Errors(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusForbidden)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(int(status.Load()))
		_, _ = io.WriteString(w, `{"message":"nope"}`)
	}))
	defer srv.Close()

	c := NewClient(Options{Endpoint: srv.URL})
	_, err := c.SearchRepositories(context.Background(), "x")
	assert.ErrorIs(t, err, ErrRateLimited)

	status.Store(http.StatusInternalServerError)
	_, err = c.SearchRepositories(context.Background(), "y")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrRateLimited)
}
