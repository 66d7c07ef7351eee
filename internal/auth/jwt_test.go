package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cleanops/internal/config"
	"cleanops/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager() *TokenManager {
	return NewTokenManager(config.APIAuthConfig{JWTSecret: "test-secret", Issuer: "cleanops", TokenTTL: time.Hour})
}

func TestIssueAndParse(t *testing.T) {
	m := newManager()
	token, err := m.Issue(models.Actor{ID: 42, Role: models.RoleEmployee})
	require.NoError(t, err)

	actor, err := m.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, models.Actor{ID: 42, Role: models.RoleEmployee}, actor)
}

func TestIssueRejectsUnknownRole(t *testing.T) {
	_, err := newManager().Issue(models.Actor{ID: 1, Role: "root"})
	assert.ErrorIs(t, err, ErrUnknownRole)
}

func TestParseErrors(t *testing.T) {
	m := newManager()

	_, err := m.Parse("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	other := NewTokenManager(config.APIAuthConfig{JWTSecret: "other", Issuer: "cleanops"})
	token, err := other.Issue(models.Actor{ID: 1, Role: models.RoleAdmin})
	require.NoError(t, err)
	_, err = m.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	wrongIssuer := NewTokenManager(config.APIAuthConfig{JWTSecret: "test-secret", Issuer: "elsewhere"})
	token, err = wrongIssuer.Issue(models.Actor{ID: 1, Role: models.RoleAdmin})
	require.NoError(t, err)
	_, err = m.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired := newManager()
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, err = expired.Issue(models.Actor{ID: 1, Role: models.RoleAdmin})
	require.NoError(t, err)
	_, err = m.Parse(token)
	assert.ErrorIs(t, err, ErrExpiredToken)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{Role: models.RoleAdmin})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = m.Parse(unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestMiddleware(t *testing.T) {
	m := newManager()
	logger := zerolog.Nop()
	mw := NewMiddleware(m, &logger)

	var seen models.Actor
	h := mw.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = ActorFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, err := m.Issue(models.Actor{ID: 9, Role: models.RoleClient})
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, models.Actor{ID: 9, Role: models.RoleClient}, seen)
}
