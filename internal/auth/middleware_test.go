package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func okHandler() (http.Handler, *bool) {
	called := false
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}), &called
}

func TestMiddlewareDisabledWithoutHash(t *testing.T) {
	next, called := okHandler()
	s := NewService("")

	req := httptest.NewRequest(http.MethodGet, "/v1/landmarks", nil)
	rec := httptest.NewRecorder()
	s.Middleware(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || !*called {
		t.Errorf("expected passthrough when auth disabled, got %d called=%v", rec.Code, *called)
	}
}

func TestMiddlewareValidKey(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("topsecret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	next, called := okHandler()
	s := NewService(string(hash))

	req := httptest.NewRequest(http.MethodGet, "/v1/landmarks", nil)
	req.Header.Set("Authorization", "Bearer topsecret")
	rec := httptest.NewRecorder()
	s.Middleware(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || !*called {
		t.Errorf("expected 200 for valid key, got %d called=%v", rec.Code, *called)
	}
}

func TestMiddlewareRejects(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("topsecret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	s := NewService(string(hash))

	cases := map[string]string{
		"missing header": "",
		"wrong scheme":   "Basic topsecret",
		"empty key":      "Bearer ",
		"wrong key":      "Bearer nope",
	}
	for name, header := range cases {
		next, called := okHandler()
		req := httptest.NewRequest(http.MethodGet, "/v1/landmarks", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		s.Middleware(next).ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized || *called {
			t.Errorf("%s: expected 401, got %d called=%v", name, rec.Code, *called)
		}
	}
}
