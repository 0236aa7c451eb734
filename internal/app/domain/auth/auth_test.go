package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/tripweave/tripweave/internal/app/models"
	"github.com/tripweave/tripweave/internal/observability/metrics"
)

func TestMain(m *testing.M) {
	metrics.InitAppMetrics()
	os.Exit(m.Run())
}

func TestTokenRoundTrip(t *testing.T) {
	tokens := NewTokenService("test-secret", time.Hour)
	userID := uuid.New()

	signed, err := tokens.GenerateToken(userID, "ana@example.com", "ana")
	require.NoError(t, err)

	claims, err := tokens.ValidateToken(signed)
	require.NoError(t, err)
	assert.Equal(t, userID.String(), claims.UserID)
	assert.Equal(t, "ana@example.com", claims.Email)
	assert.Equal(t, tokenIssuer, claims.Issuer)
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	signed, err := NewTokenService("secret-a", time.Hour).GenerateToken(uuid.New(), "a@b.c", "a")
	require.NoError(t, err)

	_, err = NewTokenService("secret-b", time.Hour).ValidateToken(signed)
	assert.Error(t, err)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	tokens := NewTokenService("test-secret", time.Hour)
	tokens.ttl = -time.Minute

	signed, err := tokens.GenerateToken(uuid.New(), "a@b.c", "a")
	require.NoError(t, err)

	_, err = tokens.ValidateToken(signed)
	assert.Error(t, err)
}

func TestMiddlewareOptionalMode(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tokens := NewTokenService("test-secret", time.Hour)
	userID := uuid.New()

	router := gin.New()
	router.Use(Middleware(tokens, true))
	router.GET("/whoami", func(c *gin.Context) {
		raw, exists := c.Get("user_id")
		if !exists {
			c.JSON(http.StatusOK, gin.H{"anonymous": true})
			return
		}
		c.JSON(http.StatusOK, gin.H{"user_id": raw.(uuid.UUID).String()})
	})

	// Anonymous passes through
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/whoami", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "anonymous")

	// Valid token sets the user
	signed, err := tokens.GenerateToken(userID, "ana@example.com", "ana")
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), userID.String())

	// Garbage token is rejected even in optional mode
	req = httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer nonsense")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMiddlewareRequiredMode(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tokens := NewTokenService("test-secret", time.Hour)

	router := gin.New()
	router.Use(Middleware(tokens, false))
	router.GET("/private", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/private", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func newMockService(t *testing.T) (*ServiceImpl, pgxmock.PgxPoolIface) {
	t.Helper()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	repo := NewPostgresRepository(mock, zap.NewNop())
	return NewService(repo, NewTokenService("test-secret", time.Hour), zap.NewNop()), mock
}

func TestRegisterIssuesToken(t *testing.T) {
	svc, mock := newMockService(t)
	userID := uuid.New()

	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs("ana@example.com", "ana", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(userID))

	token, err := svc.Register(context.Background(), "Ana@Example.com", "ana", "longenough")
	require.NoError(t, err)

	claims, err := svc.tokens.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID.String(), claims.UserID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	svc, _ := newMockService(t)

	_, err := svc.Register(context.Background(), "ana@example.com", "ana", "short")
	assert.ErrorIs(t, err, models.ErrBadRequest)
}

func TestLogin(t *testing.T) {
	svc, mock := newMockService(t)
	userID := uuid.New()

	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	require.NoError(t, err)

	userRows := func() *pgxmock.Rows {
		return pgxmock.NewRows([]string{"id", "email", "username", "password_hash", "created_at"}).
			AddRow(userID, "ana@example.com", "ana", string(hash), time.Now())
	}

	mock.ExpectQuery(`SELECT (.+) FROM users WHERE email`).
		WithArgs("ana@example.com").
		WillReturnRows(userRows())

	token, err := svc.Login(context.Background(), "ana@example.com", "correct horse")
	require.NoError(t, err)
	assert.True(t, strings.Count(token, ".") == 2)

	mock.ExpectQuery(`SELECT (.+) FROM users WHERE email`).
		WithArgs("ana@example.com").
		WillReturnRows(userRows())

	_, err = svc.Login(context.Background(), "ana@example.com", "wrong password")
	assert.ErrorIs(t, err, models.ErrUnauthorized)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLoginUnknownEmail(t *testing.T) {
	svc, mock := newMockService(t)

	mock.ExpectQuery(`SELECT (.+) FROM users WHERE email`).
		WithArgs("ghost@example.com").
		WillReturnRows(pgxmock.NewRows([]string{"id", "email", "username", "password_hash", "created_at"}))

	_, err := svc.Login(context.Background(), "ghost@example.com", "whatever")
	assert.ErrorIs(t, err, models.ErrUnauthorized)
	require.NoError(t, mock.ExpectationsWereMet())
}
