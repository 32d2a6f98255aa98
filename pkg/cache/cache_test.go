package cache

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheGetSet(t *testing.T) {
	c := New(10, time.Minute)
	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Set("a", []byte("1"))
	got, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "1", string(got))

	c.Set("a", []byte("2"))
	got, _ = c.Get("a")
	assert.Equal(t, "2", string(got))
	assert.Equal(t, 1, c.Len())
}

func TestCacheExpiry(t *testing.T) {
	c := New(10, time.Second)
	now := time.Now()
	c.now = func() time.Time { return now }
	c.Set("a", []byte("1"))

	now = now.Add(2 * time.Second)
	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Zero(t, c.Len())
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := New(2, time.Minute)
	c.Set("a", []byte("1"))
	c.Set("b", []byte("2"))
	_, _ = c.Get("a") // b is now the oldest use
	c.Set("c", []byte("3"))

	_, ok := c.Get("b")
	assert.False(t, ok)
	_, ok = c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
}

func TestCacheInvalidateAll(t *testing.T) {
	c := New(10, time.Minute)
	c.Set("a", []byte("1"))
	c.Set("b", []byte("2"))
	c.InvalidateAll()
	assert.Zero(t, c.Len())
	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestNilCacheIsDisabled(t *testing.T) {
	c := New(10, 0)
	assert.Nil(t, c)
	c.Set("a", []byte("1"))
	_, ok := c.Get("a")
	assert.False(t, ok)
	c.InvalidateAll()
	assert.Zero(t, c.Len())
}

func TestCacheConcurrentAccess(t *testing.T) {
	c := New(50, time.Minute)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("k%d", (i*j)%80)
				c.Set(key, []byte(key))
				_, _ = c.Get(key)
			}
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Len(), 50)
}

func TestMiddleware(t *testing.T) {
	calls := 0
	status := http.StatusOK
	h := Middleware(New(10, time.Minute))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = fmt.Fprintf(w, `{"n":%d}`, calls)
	}))
	serve := func(method, path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(method, path, nil))
		return w
	}

	w := serve(http.MethodGet, "/api/statistics")
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
	w = serve(http.MethodGet, "/api/statistics")
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))
	assert.Equal(t, `{"n":1}`, w.Body.String())
	assert.Equal(t, 1, calls)

	// Query strings are part of the key.
	serve(http.MethodGet, "/api/statistics?x=1")
	assert.Equal(t, 2, calls)

	serve(http.MethodPost, "/api/statistics")
	serve(http.MethodPost, "/api/statistics")
	assert.Equal(t, 4, calls)

	status = http.StatusInternalServerError
	serve(http.MethodGet, "/api/logs/summary")
	w = serve(http.MethodGet, "/api/logs/summary")
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
	assert.Equal(t, 6, calls)
}

func TestMiddlewareNilCachePassesThrough(t *testing.T) {
	calls := 0
	h := Middleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { calls++ }))
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Empty(t, w.Header().Get("X-Cache"))
	}
	assert.Equal(t, 2, calls)
}
