package httpx

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"github.com/ariefcatur/go-storefront-checkout/internal/domain"
)

const SessionCookie = "sessionId"

type ctxKey int

const (
	identityKey ctxKey = iota
	roleKey
)

// Auth resolves the caller's identity. A bearer token signed with Secret
// yields the account in its "sub" claim; otherwise the sessionId cookie is
// used, and issued when missing.
type Auth struct {
	Secret []byte
}

func (a *Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if raw, ok := bearer(r); ok {
			sub, role, err := a.verify(raw)
			if err != nil {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid token"})
				return
			}
			ctx = context.WithValue(ctx, identityKey, domain.Account(sub))
			ctx = context.WithValue(ctx, roleKey, role)
		} else {
			ctx = context.WithValue(ctx, identityKey, domain.Session(sessionID(w, r)))
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *Auth) verify(raw string) (sub, role string, err error) {
	if len(a.Secret) == 0 {
		return "", "", fmt.Errorf("no signing secret configured")
	}
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.Secret, nil
	})
	if err != nil {
		return "", "", err
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok || !tok.Valid {
		return "", "", fmt.Errorf("invalid claims")
	}
	sub, _ = claims["sub"].(string)
	if strings.TrimSpace(sub) == "" {
		return "", "", fmt.Errorf("missing sub")
	}
	role, _ = claims["role"].(string)
	return sub, role, nil
}

func bearer(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:]), true
	}
	return "", false
}

func sessionID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(SessionCookie); err == nil && strings.TrimSpace(c.Value) != "" {
		return c.Value
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(30 * 24 * time.Hour),
	})
	return id
}

func IdentityFrom(ctx context.Context) domain.Identity {
	id, _ := ctx.Value(identityKey).(domain.Identity)
	return id
}

// RequireAdmin lets through only tokens carrying role=admin.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if role, _ := r.Context().Value(roleKey).(string); role != "admin" {
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "admin only"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Sign issues an HS256 token for sub; used by tests and local tooling.
func Sign(secret []byte, sub, role string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{"sub": sub, "exp": time.Now().Add(ttl).Unix()}
	if role != "" {
		claims["role"] = role
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
