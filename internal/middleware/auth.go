package middleware

import (
	"context"
	"net/http"
	"strings"

	"firebase.google.com/go/v4/auth"

	"github.com/GregMSThompson/dashboard-backend/internal/store"
)

// NamespaceHeader selects the dashboard when identity is not token based.
const NamespaceHeader = "X-Dashboard-Namespace"

type tokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

type Middleware struct {
	AuthClient       tokenVerifier
	DefaultNamespace string
}

// NewMiddleware takes the Firebase client used by FirebaseAuth. It may be
// nil when only HeaderNamespace is mounted.
func NewMiddleware(client *auth.Client, defaultNamespace string) *Middleware {
	m := &Middleware{DefaultNamespace: defaultNamespace}
	if client != nil {
		m.AuthClient = client
	}
	return m
}

// context key
type contextKey string

const NamespaceKey contextKey = "namespace"

// FirebaseAuth verifies the bearer ID token and uses the caller's UID as
// the namespace, so every account gets its own dashboard.
func (m *Middleware) FirebaseAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			http.Error(w, "missing Authorization header", http.StatusUnauthorized)
			return
		}

		parts := strings.Fields(header)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			http.Error(w, "invalid Authorization header", http.StatusUnauthorized)
			return
		}

		token, err := m.AuthClient.VerifyIDToken(r.Context(), parts[1])
		if err != nil {
			http.Error(w, "invalid or expired token", http.StatusUnauthorized)
			return
		}
		if err := store.ValidateNamespace(token.UID); err != nil {
			http.Error(w, "account id cannot be used as a namespace", http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithNamespace(r.Context(), token.UID)))
	})
}

// HeaderNamespace takes the namespace from NamespaceHeader, then the
// "namespace" query parameter (browsers cannot set headers on websockets),
// then the default.
func (m *Middleware) HeaderNamespace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ns := r.Header.Get(NamespaceHeader)
		if ns == "" {
			ns = r.URL.Query().Get("namespace")
		}
		if ns == "" {
			ns = m.DefaultNamespace
		}
		if err := store.ValidateNamespace(ns); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithNamespace(r.Context(), ns)))
	})
}

func WithNamespace(ctx context.Context, ns string) context.Context {
	return context.WithValue(ctx, NamespaceKey, ns)
}

// Namespace returns the dashboard namespace resolved for the request.
func Namespace(ctx context.Context) string {
	ns, _ := ctx.Value(NamespaceKey).(string)
	return ns
}
