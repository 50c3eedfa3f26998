// Package tenant resolves the calling business and staff member for a request.
package tenant

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/md-rashed-zaman/groomdesk/libs/auth"
	"github.com/md-rashed-zaman/groomdesk/libs/httpx"
)

const (
	HeaderBusinessID = "X-Business-Id"
	HeaderUserID     = "X-User-Id"
	HeaderRole       = "X-Role"
)

var ErrMissing = errors.New("tenant not resolved")

type Context struct {
	BusinessID string
	UserID     string
	Role       string
}

type ctxKey struct{}

func With(ctx context.Context, tc Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, tc)
}

func From(ctx context.Context) (Context, error) {
	tc, ok := ctx.Value(ctxKey{}).(Context)
	if !ok || tc.BusinessID == "" {
		return Context{}, ErrMissing
	}
	return tc, nil
}

type Resolver struct {
	secret       string
	trustHeaders bool
	logger       *slog.Logger
}

// NewResolver verifies bearer tokens with secret; when trustHeaders is set,
// gateway-provided identity headers are accepted as well.
func NewResolver(secret string, trustHeaders bool, logger *slog.Logger) *Resolver {
	return &Resolver{secret: secret, trustHeaders: trustHeaders, logger: logger}
}

func (res *Resolver) Resolve(r *http.Request) (Context, error) {
	if token, ok := auth.BearerToken(r.Header.Get("Authorization")); ok && res.secret != "" {
		claims, err := auth.ParseAndVerifyHS256(token, res.secret)
		if err != nil {
			return Context{}, err
		}
		return Context{BusinessID: claims.BusinessID, UserID: claims.Subject, Role: claims.Role}, nil
	}
	if res.trustHeaders {
		tc := Context{
			BusinessID: strings.TrimSpace(r.Header.Get(HeaderBusinessID)),
			UserID:     strings.TrimSpace(r.Header.Get(HeaderUserID)),
			Role:       strings.TrimSpace(r.Header.Get(HeaderRole)),
		}
		if tc.BusinessID != "" {
			return tc, nil
		}
	}
	return Context{}, ErrMissing
}

// Middleware rejects requests without a resolvable tenant with 401.
func (res *Resolver) Middleware() httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tc, err := res.Resolve(r)
			if err != nil {
				res.logger.Debug("tenant resolution failed", "path", r.URL.Path, "err", err)
				httpx.WriteJSON(w, http.StatusUnauthorized, map[string]string{
					"error":   "unauthorized",
					"message": "missing or invalid credentials",
				})
				return
			}
			next.ServeHTTP(w, r.WithContext(With(r.Context(), tc)))
		})
	}
}

var fallbackKey = httpx.HeaderOrClientKey(HeaderBusinessID)

// LimitKey buckets rate limiting by the resolved business, falling back to
// the gateway header or client address before resolution.
func LimitKey(r *http.Request) string {
	if tc, err := From(r.Context()); err == nil {
		return "business=" + tc.BusinessID
	}
	return fallbackKey(r)
}
