package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/klinikflow/klinikflow/libs/auth"
)

func signedToken(t *testing.T, secret string) string {
	t.Helper()
	token, err := auth.SignHS256(auth.Claims{
		Sub:   "owner-1",
		Email: "mette@example.com",
		Role:  "owner",
		Iat:   time.Now().Unix(),
		Exp:   time.Now().Add(1 * time.Hour).Unix(),
	}, secret)
	if err != nil {
		t.Fatalf("SignHS256 failed: %v", err)
	}
	return token
}

func TestRequireAuthHS256(t *testing.T) {
	secret := "test-secret"
	h := requireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-User-Id") != "owner-1" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if r.Header.Get("X-User-Email") != "mette@example.com" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if r.Header.Get("X-Role") != "owner" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	}), secret, nil)

	req := httptest.NewRequest(http.MethodGet, "http://example.com", nil)
	req.Header.Set("Authorization", "Bearer "+signedToken(t, secret))
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Code)
	}

	reqBad := httptest.NewRequest(http.MethodGet, "http://example.com", nil)
	reqBad.Header.Set("Authorization", "Bearer badtoken")
	rwBad := httptest.NewRecorder()
	h.ServeHTTP(rwBad, reqBad)
	if rwBad.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rwBad.Code)
	}

	reqMissing := httptest.NewRequest(http.MethodGet, "http://example.com", nil)
	rwMissing := httptest.NewRecorder()
	h.ServeHTTP(rwMissing, reqMissing)
	if rwMissing.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rwMissing.Code)
	}
}

func TestRequireAuthStripsSpoofedHeaders(t *testing.T) {
	secret := "test-secret"
	h := requireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-User-Id") != "owner-1" || r.Header.Get("X-Role") != "owner" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	}), secret, nil)

	req := httptest.NewRequest(http.MethodGet, "http://example.com", nil)
	req.Header.Set("Authorization", "Bearer "+signedToken(t, secret))
	req.Header.Set("X-User-Id", "someone-else")
	req.Header.Set("X-Role", "admin")
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200 with spoofed headers replaced, got %d", rw.Code)
	}
}

func TestRoutingPublicIsOpenAssistantIsGated(t *testing.T) {
	booking := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("booking"))
	}))
	defer booking.Close()
	assistant := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("assistant"))
	}))
	defer assistant.Close()

	secret := "test-secret"
	mux := http.NewServeMux()
	registerRoutes(mux, routesConfig{
		BookingURL:   booking.URL,
		AssistantURL: assistant.URL,
		JWTSecret:    secret,
	})

	rw := httptest.NewRecorder()
	mux.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "http://gateway/api/v1/public/staff?clinicSlug=x", nil))
	if rw.Code != http.StatusOK || rw.Body.String() != "booking" {
		t.Fatalf("public route: expected booking 200, got %d %q", rw.Code, rw.Body.String())
	}

	rwNoAuth := httptest.NewRecorder()
	mux.ServeHTTP(rwNoAuth, httptest.NewRequest(http.MethodPost, "http://gateway/api/v1/assistant/chat", nil))
	if rwNoAuth.Code != http.StatusUnauthorized {
		t.Fatalf("assistant route without token: expected 401, got %d", rwNoAuth.Code)
	}

	reqAuth := httptest.NewRequest(http.MethodPost, "http://gateway/api/v1/assistant/chat", nil)
	reqAuth.Header.Set("Authorization", "Bearer "+signedToken(t, secret))
	rwAuth := httptest.NewRecorder()
	mux.ServeHTTP(rwAuth, reqAuth)
	if rwAuth.Code != http.StatusOK || rwAuth.Body.String() != "assistant" {
		t.Fatalf("assistant route with token: expected assistant 200, got %d %q", rwAuth.Code, rwAuth.Body.String())
	}
}
