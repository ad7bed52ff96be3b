package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"firebase.google.com/go/v4/auth"
)

type fakeVerifier struct {
	uid string
	err error
}

func (f fakeVerifier) VerifyIDToken(_ context.Context, _ string) (*auth.Token, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &auth.Token{UID: f.uid}, nil
}

// captureNamespace records the namespace the wrapped handler sees.
func captureNamespace(got *string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*got = Namespace(r.Context())
	})
}

func TestFirebaseAuth(t *testing.T) {
	cases := []struct {
		name     string
		header   string
		verifier fakeVerifier
		status   int
		ns       string
	}{
		{name: "missing header", status: http.StatusUnauthorized},
		{name: "not bearer", header: "Basic abc", status: http.StatusUnauthorized},
		{name: "bad token", header: "Bearer x", verifier: fakeVerifier{err: errors.New("expired")}, status: http.StatusUnauthorized},
		{name: "unusable uid", header: "Bearer x", verifier: fakeVerifier{uid: "a_b"}, status: http.StatusForbidden},
		{name: "ok", header: "Bearer x", verifier: fakeVerifier{uid: "Uid123"}, status: http.StatusOK, ns: "Uid123"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := &Middleware{AuthClient: tc.verifier}
			var got string
			req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rr := httptest.NewRecorder()
			m.FirebaseAuth(captureNamespace(&got)).ServeHTTP(rr, req)

			if rr.Code != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, rr.Code)
			}
			if got != tc.ns {
				t.Fatalf("expected namespace %q, got %q", tc.ns, got)
			}
		})
	}
}

func TestHeaderNamespace(t *testing.T) {
	m := NewMiddleware(nil, "default")

	cases := []struct {
		name   string
		target string
		header string
		status int
		ns     string
	}{
		{name: "header wins", target: "/?namespace=query", header: "kitchen", status: http.StatusOK, ns: "kitchen"},
		{name: "query", target: "/?namespace=query", status: http.StatusOK, ns: "query"},
		{name: "default", target: "/", status: http.StatusOK, ns: "default"},
		{name: "invalid", target: "/", header: "bad_ns", status: http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var got string
			req := httptest.NewRequest(http.MethodGet, tc.target, nil)
			if tc.header != "" {
				req.Header.Set(NamespaceHeader, tc.header)
			}
			rr := httptest.NewRecorder()
			m.HeaderNamespace(captureNamespace(&got)).ServeHTTP(rr, req)

			if rr.Code != tc.status || got != tc.ns {
				t.Fatalf("expected %d/%q, got %d/%q", tc.status, tc.ns, rr.Code, got)
			}
		})
	}
}
