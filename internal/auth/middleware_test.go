package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret"

func protected(t *testing.T, m *JWTMiddleware) (http.Handler, *string) {
	t.Helper()
	var subject string
	h := m.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c := ClaimsFromContext(r.Context()); c != nil {
			subject = c.Subject
		} else {
			subject = "anonymous"
		}
		w.WriteHeader(http.StatusOK)
	}))
	return h, &subject
}

func TestAuthenticate(t *testing.T) {
	valid, err := Issue(testSecret, "user-1", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	expired, err := Issue(testSecret, "user-1", -time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	otherKey, err := Issue("other", "user-1", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "user-1"}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		required bool
		token    string
		status   int
		subject  string
	}{
		{"valid token", true, valid, http.StatusOK, "user-1"},
		{"missing token required", true, "", http.StatusUnauthorized, ""},
		{"missing token optional", false, "", http.StatusOK, "anonymous"},
		{"expired", false, expired, http.StatusUnauthorized, ""},
		{"wrong key", false, otherKey, http.StatusUnauthorized, ""},
		{"no expiry", true, noExp, http.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, subject := protected(t, NewJWTMiddleware(testSecret, tt.required))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
			if *subject != tt.subject {
				t.Errorf("subject = %q, want %q", *subject, tt.subject)
			}
		})
	}
}

func TestWebsocketQueryToken(t *testing.T) {
	token, err := Issue(testSecret, "ws-user", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	h, subject := protected(t, NewJWTMiddleware(testSecret, true))

	req := httptest.NewRequest(http.MethodGet, "/ws?access_token="+token, nil)
	req.Header.Set("Upgrade", "websocket")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || *subject != "ws-user" {
		t.Errorf("status = %d, subject = %q", rec.Code, *subject)
	}

	// The query parameter is ignored on plain requests.
	req = httptest.NewRequest(http.MethodGet, "/ws?access_token="+token, nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}
