package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const requesterIDKey contextKey = "requesterID"

// Claims is the token payload issued to requesters upstream.
type Claims struct {
	RequesterID string `json:"requester_id"`
	jwt.RegisteredClaims
}

// Authenticator validates HS256 bearer tokens.
type Authenticator struct {
	secret []byte
}

// NewAuthenticator returns authenticator for secret.
func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

// Verify decodes tokenString and returns the requester it names.
func (a *Authenticator) Verify(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return a.secret, nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return "", jwt.ErrTokenInvalidClaims
	}
	requesterID := strings.TrimSpace(claims.RequesterID)
	if requesterID == "" {
		requesterID = strings.TrimSpace(claims.Subject)
	}
	if requesterID == "" {
		return "", errors.New("requester id not present")
	}
	return requesterID, nil
}

// Identify resolves the requester of r from the Authorization header, or from the token
// query parameter that browsers use for websocket upgrades.
func (a *Authenticator) Identify(r *http.Request) (string, bool) {
	tokenString := bearerToken(r.Header.Get("Authorization"))
	if tokenString == "" {
		tokenString = strings.TrimSpace(r.URL.Query().Get("token"))
	}
	if tokenString == "" {
		return "", false
	}
	requesterID, err := a.Verify(tokenString)
	if err != nil {
		return "", false
	}
	return requesterID, true
}

// Middleware rejects requests without a valid bearer token and stores the requester id.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeUnauthorized(w, "missing authorization header")
			return
		}
		tokenString := bearerToken(authHeader)
		if tokenString == "" {
			writeUnauthorized(w, "invalid authorization header")
			return
		}
		requesterID, err := a.Verify(tokenString)
		if err != nil {
			writeUnauthorized(w, "invalid token")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithRequesterID(r.Context(), requesterID)))
	})
}

func bearerToken(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"` + message + `"}`))
}

// WithRequesterID stores requesterID in ctx.
func WithRequesterID(ctx context.Context, requesterID string) context.Context {
	return context.WithValue(ctx, requesterIDKey, requesterID)
}

// RequesterIDFromContext retrieves the requester id from request context.
func RequesterIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requesterIDKey).(string)
	return id, ok && id != ""
}
