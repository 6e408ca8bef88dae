package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func doRequest(handler http.HandlerFunc, remoteAddr, forwardedFor string) int {
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	req.RemoteAddr = remoteAddr
	if forwardedFor != "" {
		req.Header.Set("X-Forwarded-For", forwardedFor)
	}
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec.Code
}

func TestRateLimitBlocksAfterBurst(t *testing.T) {
	rl := NewIPRateLimiter(rate.Every(time.Minute), 2)
	handler := RateLimitHandlerFunc(rl, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	assert.Equal(t, http.StatusOK, doRequest(handler, "1.2.3.4:1000", ""))
	assert.Equal(t, http.StatusOK, doRequest(handler, "1.2.3.4:1000", ""))
	assert.Equal(t, http.StatusTooManyRequests, doRequest(handler, "1.2.3.4:1000", ""))

	// A different client IP has its own bucket.
	assert.Equal(t, http.StatusOK, doRequest(handler, "5.6.7.8:1000", ""))
}

func TestClientIPHeaderPrecedence(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:4242"
	assert.Equal(t, "10.0.0.1", ClientIP(req))

	req.Header.Set("X-Real-IP", "198.51.100.7")
	assert.Equal(t, "198.51.100.7", ClientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", ClientIP(req))
}

func TestRateLimitUsesForwardedFor(t *testing.T) {
	rl := NewIPRateLimiter(rate.Every(time.Minute), 1)
	handler := RateLimitHandlerFunc(rl, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	assert.Equal(t, http.StatusOK, doRequest(handler, "10.0.0.1:1000", "203.0.113.9, 10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, doRequest(handler, "10.0.0.2:2000", "203.0.113.9"))
}
