package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/httplog/v2"
	"github.com/go-chi/render"
	"github.com/golang-jwt/jwt/v5"
)

const DefaultAuthCookie = "token"

var errMissingToken = errors.New("missing token")

type requesterKey struct{}

// Authenticator verifies HS256 tokens issued by the account service. The requester
// id is read from the "id" claim, falling back to "sub".
type Authenticator struct {
	secret     []byte
	cookieName string
}

func NewAuthenticator(secret, cookieName string) *Authenticator {
	if cookieName == "" {
		cookieName = DefaultAuthCookie
	}

	return &Authenticator{
		secret:     []byte(secret),
		cookieName: cookieName,
	}
}

// RequireAuth rejects requests without a valid token.
func (a *Authenticator) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := a.authenticate(r)
		if err != nil {
			httplog.LogEntrySetField(r.Context(), "auth_err", slog.StringValue(err.Error()))

			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, unauthorizedResponse)
			return
		}

		next.ServeHTTP(w, r.WithContext(withRequester(r.Context(), userID)))
	})
}

// OptionalAuth attaches the requester to the request context when a valid token is
// present and passes anonymous requests through.
func (a *Authenticator) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := a.authenticate(r)
		if err != nil {
			if !errors.Is(err, errMissingToken) {
				httplog.LogEntrySetField(r.Context(), "auth_err", slog.StringValue(err.Error()))
			}
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(withRequester(r.Context(), userID)))
	})
}

func (a *Authenticator) authenticate(r *http.Request) (string, error) {
	raw := a.token(r)
	if raw == "" {
		return "", errMissingToken
	}

	if len(a.secret) == 0 {
		return "", errors.New("token verification is not configured")
	}

	claims := jwt.MapClaims{}

	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}

	if id, ok := claims["id"].(string); ok && id != "" {
		return id, nil
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", errors.New("token has no subject")
	}

	return sub, nil
}

func (a *Authenticator) token(r *http.Request) string {
	if c, err := r.Cookie(a.cookieName); err == nil && c.Value != "" {
		return c.Value
	}

	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}

	return ""
}

func withRequester(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, requesterKey{}, userID)
}

// requesterFromContext returns the authenticated user id, or "" for anonymous requests.
func requesterFromContext(ctx context.Context) string {
	userID, _ := ctx.Value(requesterKey{}).(string)
	return userID
}
