package cache

import (
	"bytes"
	"net/http"
)

// recorder captures the status and body written by the wrapped handler.
type recorder struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (w *recorder) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *recorder) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// Middleware serves GET requests from c, keyed by path and query. Only 200
// answers are stored; they are replayed as JSON. X-Cache reports HIT or
// MISS. With a nil c requests pass straight through.
func Middleware(c *Cache) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if c == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				next.ServeHTTP(w, r)
				return
			}

			key := r.URL.RequestURI()
			if cached, ok := c.Get(key); ok {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("X-Cache", "HIT")
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write(cached)
				return
			}

			rec := &recorder{ResponseWriter: w}
			rec.Header().Set("X-Cache", "MISS")
			next.ServeHTTP(rec, r)
			if rec.status == http.StatusOK {
				c.Set(key, bytes.Clone(rec.body.Bytes()))
			}
		})
	}
}
