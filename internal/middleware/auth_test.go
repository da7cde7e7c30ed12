package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reloop/marketplace/internal/token"
)

func newGateContext(t *testing.T, authHeader string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authHeader != "" {
		req.Header.Set(echo.HeaderAuthorization, authHeader)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func okHandler(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

func testCodec() *token.Codec {
	return &token.Codec{
		Secret:     []byte("gate-secret"),
		AccessTTL:  15 * time.Minute,
		RefreshTTL: time.Hour,
	}
}

func TestRequireAuth_MissingHeader(t *testing.T) {
	t.Parallel()

	c, _ := newGateContext(t, "")
	err := RequireAuth(testCodec())(okHandler)(c)

	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	assert.Equal(t, http.StatusUnauthorized, he.Code)
}

func TestRequireAuth_MissingSecretIsConfigError(t *testing.T) {
	t.Parallel()

	codec := testCodec()
	tok, err := codec.SignAccess("7", "n")
	require.NoError(t, err)

	unset := &token.Codec{AccessTTL: time.Minute, RefreshTTL: time.Hour}
	c, _ := newGateContext(t, "Bearer "+tok)
	err = RequireAuth(unset)(okHandler)(c)

	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	assert.Equal(t, http.StatusBadRequest, he.Code)
}

func TestRequireAuth_ExpiredToken(t *testing.T) {
	t.Parallel()

	codec := testCodec()
	claims := token.Claims{
		Nonce: "n",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "7",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(codec.Secret)
	require.NoError(t, err)

	c, _ := newGateContext(t, "Bearer "+expired)
	err = RequireAuth(codec)(okHandler)(c)

	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	assert.Equal(t, http.StatusUnauthorized, he.Code)
}

func TestRequireAuth_ForeignSignature(t *testing.T) {
	t.Parallel()

	other := &token.Codec{Secret: []byte("other-secret"), AccessTTL: time.Minute, RefreshTTL: time.Hour}
	tok, err := other.SignAccess("7", "n")
	require.NoError(t, err)

	c, _ := newGateContext(t, "Bearer "+tok)
	err = RequireAuth(testCodec())(okHandler)(c)

	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	assert.Equal(t, http.StatusUnauthorized, he.Code)
}

func TestRequireAuth_InjectsUserID(t *testing.T) {
	t.Parallel()

	codec := testCodec()
	tok, err := codec.SignAccess("42", "n")
	require.NoError(t, err)

	for _, scheme := range []string{"Bearer", "JWT"} {
		c, rec := newGateContext(t, scheme+" "+tok)
		handler := RequireAuth(codec)(func(c echo.Context) error {
			id, ok := UserID(c)
			require.True(t, ok)
			assert.EqualValues(t, 42, id)
			return c.NoContent(http.StatusOK)
		})
		require.NoError(t, handler(c))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestBearerToken(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "abc", bearerToken("Bearer abc"))
	assert.Equal(t, "abc", bearerToken("JWT abc"))
	assert.Empty(t, bearerToken("Basic abc"))
	assert.Empty(t, bearerToken("Bearer"))
	assert.Empty(t, bearerToken(""))
}
