package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadline/internal/store"
)

type fakeAdmins struct {
	admin *store.Admin
}

func (f *fakeAdmins) FindByEmail(ctx context.Context, email string) (*store.Admin, error) {
	if f.admin != nil && f.admin.Email == email {
		return f.admin, nil
	}
	return nil, nil
}

func testAdmin(t *testing.T, password string) *store.Admin {
	t.Helper()
	hash, err := HashPassword(password)
	require.NoError(t, err)
	return &store.Admin{ID: 1, Email: "ops@example.com", Name: "Ops", PasswordHash: hash}
}

func TestTokenRoundTrip(t *testing.T) {
	ts := NewTokenService("test-secret", time.Hour)
	admin := &store.Admin{ID: 1, Email: "ops@example.com"}

	token, expiresAt, err := ts.CreateToken(admin)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := ts.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(1), claims.AdminID)
	assert.Equal(t, "ops@example.com", claims.Email)
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	token, _, err := NewTokenService("secret-a", time.Hour).CreateToken(&store.Admin{ID: 1})
	require.NoError(t, err)

	_, err = NewTokenService("secret-b", time.Hour).ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	ts := NewTokenService("test-secret", -time.Minute)
	token, _, err := ts.CreateToken(&store.Admin{ID: 1})
	require.NoError(t, err)

	_, err = ts.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateRejectsGarbage(t *testing.T) {
	_, err := NewTokenService("test-secret", time.Hour).ValidateToken("not.a.jwt")
	assert.Error(t, err)
}

func login(t *testing.T, h *Handlers, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	err := h.Login(e.NewContext(req, rec))
	if err != nil {
		e.HTTPErrorHandler(err, e.NewContext(req, rec))
	}
	return rec
}

func TestLoginSuccess(t *testing.T) {
	ts := NewTokenService("test-secret", time.Hour)
	h := NewHandlers(&fakeAdmins{admin: testAdmin(t, "hunter22")}, ts)

	rec := login(t, h, `{"email":"ops@example.com","password":"hunter22"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp loginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ops@example.com", resp.Email)

	claims, err := ts.ValidateToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, int64(1), claims.AdminID)
}

func TestLoginWrongPassword(t *testing.T) {
	h := NewHandlers(&fakeAdmins{admin: testAdmin(t, "hunter22")}, NewTokenService("test-secret", time.Hour))
	rec := login(t, h, `{"email":"ops@example.com","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginUnknownEmail(t *testing.T) {
	h := NewHandlers(&fakeAdmins{}, NewTokenService("test-secret", time.Hour))
	rec := login(t, h, `{"email":"nobody@example.com","password":"hunter22"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginMissingFields(t *testing.T) {
	h := NewHandlers(&fakeAdmins{}, NewTokenService("test-secret", time.Hour))
	rec := login(t, h, `{"email":"ops@example.com"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRequireAuthMiddleware(t *testing.T) {
	ts := NewTokenService("test-secret", time.Hour)
	e := echo.New()
	e.GET("/protected", func(c echo.Context) error {
		claims := ClaimsFromContext(c)
		return c.JSON(http.StatusOK, map[string]interface{}{"admin_id": claims.AdminID})
	}, RequireAuth(ts))

	// No header
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Malformed header
	req = httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Token abc")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Valid token
	token, _, err := ts.CreateToken(&store.Admin{ID: 9, Email: "ops@example.com"})
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"admin_id":9`)
}
