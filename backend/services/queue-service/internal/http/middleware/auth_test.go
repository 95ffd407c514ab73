package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

func sign(t *testing.T, secret string, claims Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func validClaims(requesterID string) Claims {
	return Claims{
		RequesterID: requesterID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func echoRequester() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := RequesterIDFromContext(r.Context())
		_, _ = w.Write([]byte(id))
	})
}

func TestMiddlewareAcceptsValidToken(t *testing.T) {
	auth := NewAuthenticator(testSecret)
	req := httptest.NewRequest(http.MethodGet, "/queue/me", nil)
	req.Header.Set("Authorization", "Bearer "+sign(t, testSecret, validClaims("alice")))
	rec := httptest.NewRecorder()

	auth.Middleware(echoRequester()).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", rec.Body.String())
}

func TestMiddlewareRejects(t *testing.T) {
	auth := NewAuthenticator(testSecret)
	expired := validClaims("alice")
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	cases := map[string]string{
		"missing header": "",
		"not bearer":     "Basic abc",
		"wrong secret":   "Bearer " + sign(t, "other", validClaims("alice")),
		"expired":        "Bearer " + sign(t, testSecret, expired),
		"no requester":   "Bearer " + sign(t, testSecret, validClaims("")),
	}
	for name, header := range cases {
		req := httptest.NewRequest(http.MethodGet, "/queue/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		auth.Middleware(echoRequester()).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, name)
	}
}

func TestSubjectFallsBackForRequester(t *testing.T) {
	auth := NewAuthenticator(testSecret)
	claims := validClaims("")
	claims.Subject = "bob"
	id, err := auth.Verify(sign(t, testSecret, claims))
	require.NoError(t, err)
	assert.Equal(t, "bob", id)
}

func TestIdentifyReadsQueryToken(t *testing.T) {
	auth := NewAuthenticator(testSecret)
	req := httptest.NewRequest(http.MethodGet, "/ws?token="+sign(t, testSecret, validClaims("alice")), nil)
	id, ok := auth.Identify(req)
	assert.True(t, ok)
	assert.Equal(t, "alice", id)

	_, ok = auth.Identify(httptest.NewRequest(http.MethodGet, "/ws", nil))
	assert.False(t, ok)
}

func TestChainOrderAndRecovery(t *testing.T) {
	var order []string
	mark := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	panicking := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") })

	h := Chain(panicking, RecoveryMiddleware(zap.NewNop()), LoggingMiddleware(zap.NewNop()), mark("a"), mark("b"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, []string{"a", "b"}, order)
}
