package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCheck(t *testing.T) {
	status := http.StatusOK
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/readyz", r.URL.Path)
		w.WriteHeader(status)
	}))
	defer srv.Close()
	client := &http.Client{Timeout: time.Second}

	assert.NoError(t, check(client, srv.URL+"/readyz"))

	status = http.StatusServiceUnavailable
	assert.EqualError(t, check(client, srv.URL+"/readyz"), "status 503")
}
