package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reloop/marketplace/internal/models"
	"github.com/reloop/marketplace/internal/oauth"
)

func TestRegister(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	payload := map[string]string{
		"username":    "test_user",
		"email":       "A@Test.com",
		"password":    "password",
		"phoneNumber": "0501234567",
	}

	rec, c := env.doJSONRequest(t, http.MethodPost, "/auth/register", payload)
	require.NoError(t, env.Auth.Register(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Message string      `json:"message"`
		User    models.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "User registered successfully", resp.Message)
	assert.Equal(t, "test_user", resp.User.Username)
	assert.Equal(t, "a@test.com", resp.User.Email, "email is lowercased")
	assert.NotEmpty(t, resp.User.ID)
	assert.NotContains(t, rec.Body.String(), "password", "hash never leaves the server")

	// duplicate email
	rec2, c2 := env.doJSONRequest(t, http.MethodPost, "/auth/register", payload)
	require.NoError(t, env.Auth.Register(c2))
	assert.Equal(t, http.StatusBadRequest, rec2.Code)
}

func TestRegister_MissingFields(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec, c := env.doJSONRequest(t, http.MethodPost, "/auth/register", map[string]string{
		"username": "no_email",
	})
	require.NoError(t, env.Auth.Register(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogin(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.createUser(t, "a@test.com", "password")

	rec, c := env.doJSONRequest(t, http.MethodPost, "/auth/login", map[string]string{
		"email":    "a@test.com",
		"password": "password",
	})
	require.NoError(t, env.Auth.Login(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["accessToken"])
	assert.NotEmpty(t, resp["refreshToken"])
	assert.NotEmpty(t, resp["_id"])
	assert.Equal(t, "a@test.com", resp["email"])
	assert.EqualValues(t, 0, resp["postsCount"])
}

func TestLogin_GenericFailureMessage(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.createUser(t, "a@test.com", "password")

	recWrong, cWrong := env.doJSONRequest(t, http.MethodPost, "/auth/login", map[string]string{
		"email":    "a@test.com",
		"password": "wrong",
	})
	require.NoError(t, env.Auth.Login(cWrong))

	recUnknown, cUnknown := env.doJSONRequest(t, http.MethodPost, "/auth/login", map[string]string{
		"email":    "nobody@test.com",
		"password": "password",
	})
	require.NoError(t, env.Auth.Login(cUnknown))

	assert.Equal(t, http.StatusBadRequest, recWrong.Code)
	assert.Equal(t, http.StatusBadRequest, recUnknown.Code)
	assert.Equal(t, recWrong.Body.String(), recUnknown.Body.String(),
		"unknown email and wrong password must be indistinguishable")
}

func TestLogin_MissingTokenConfigIs500(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.createUser(t, "a@test.com", "password")
	env.Codec.Secret = nil

	rec, c := env.doJSONRequest(t, http.MethodPost, "/auth/login", map[string]string{
		"email":    "a@test.com",
		"password": "password",
	})
	require.NoError(t, env.Auth.Login(c))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to generate tokens", rec.Body.String())
}

func TestRefresh_RotatesToken(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.createUser(t, "a@test.com", "password")

	recLogin, cLogin := env.doJSONRequest(t, http.MethodPost, "/auth/login", map[string]string{
		"email":    "a@test.com",
		"password": "password",
	})
	require.NoError(t, env.Auth.Login(cLogin))
	require.Equal(t, http.StatusOK, recLogin.Code)

	var loginResp map[string]interface{}
	require.NoError(t, json.Unmarshal(recLogin.Body.Bytes(), &loginResp))
	oldRefresh := loginResp["refreshToken"].(string)

	recRefresh, cRefresh := env.doJSONRequest(t, http.MethodPost, "/auth/refresh", map[string]string{
		"refreshToken": oldRefresh,
	})
	require.NoError(t, env.Auth.Refresh(cRefresh))
	require.Equal(t, http.StatusOK, recRefresh.Code)

	var refreshResp map[string]string
	require.NoError(t, json.Unmarshal(recRefresh.Body.Bytes(), &refreshResp))
	assert.NotEmpty(t, refreshResp["accessToken"])
	assert.NotEmpty(t, refreshResp["refreshToken"])
	assert.NotEqual(t, oldRefresh, refreshResp["refreshToken"])

	// the consumed token is single-use
	recReplay, cReplay := env.doJSONRequest(t, http.MethodPost, "/auth/refresh", map[string]string{
		"refreshToken": oldRefresh,
	})
	require.NoError(t, env.Auth.Refresh(cReplay))
	assert.Equal(t, http.StatusBadRequest, recReplay.Code)
	assert.Equal(t, "Access Denied", recReplay.Body.String())
}

func TestAuthFlow_RegisterLoginRefreshLogout(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	rec, c := env.doJSONRequest(t, http.MethodPost, "/auth/register", map[string]string{
		"username": "flow",
		"email":    "a@test.com",
		"password": "secret",
	})
	require.NoError(t, env.Auth.Register(c))
	require.Equal(t, http.StatusOK, rec.Code)

	recLogin, cLogin := env.doJSONRequest(t, http.MethodPost, "/auth/login", map[string]string{
		"email":    "a@test.com",
		"password": "secret",
	})
	require.NoError(t, env.Auth.Login(cLogin))
	require.Equal(t, http.StatusOK, recLogin.Code)

	var loginResp map[string]interface{}
	require.NoError(t, json.Unmarshal(recLogin.Body.Bytes(), &loginResp))

	recRefresh, cRefresh := env.doJSONRequest(t, http.MethodPost, "/auth/refresh", map[string]string{
		"refreshToken": loginResp["refreshToken"].(string),
	})
	require.NoError(t, env.Auth.Refresh(cRefresh))
	require.Equal(t, http.StatusOK, recRefresh.Code)

	var refreshResp map[string]string
	require.NoError(t, json.Unmarshal(recRefresh.Body.Bytes(), &refreshResp))
	rotated := refreshResp["refreshToken"]

	recLogout, cLogout := env.doJSONRequest(t, http.MethodPost, "/auth/logout", map[string]string{
		"refreshToken": rotated,
	})
	require.NoError(t, env.Auth.Logout(cLogout))
	require.Equal(t, http.StatusOK, recLogout.Code)
	assert.Equal(t, "Logged out", recLogout.Body.String())

	// logout consumed the rotated token, so refreshing with it fails
	recAfter, cAfter := env.doJSONRequest(t, http.MethodPost, "/auth/refresh", map[string]string{
		"refreshToken": rotated,
	})
	require.NoError(t, env.Auth.Refresh(cAfter))
	assert.Equal(t, http.StatusBadRequest, recAfter.Code)
	assert.Equal(t, "Access Denied", recAfter.Body.String())
}

func TestLogout_MissingToken(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec, c := env.doJSONRequest(t, http.MethodPost, "/auth/logout", map[string]string{})
	require.NoError(t, env.Auth.Logout(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFindOrCreateGoogleUser(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	profile := &oauth.Profile{
		Subject: "google-sub-123",
		Email:   "G@Test.com",
		Name:    "google_user",
		Picture: "https://example.com/p.png",
	}

	created, err := env.Auth.findOrCreateGoogleUser(context.Background(), profile)
	require.NoError(t, err)
	require.NotNil(t, created.GoogleID)
	assert.Equal(t, "google-sub-123", *created.GoogleID)
	assert.Equal(t, "g@test.com", created.Email)

	again, err := env.Auth.findOrCreateGoogleUser(context.Background(), profile)
	require.NoError(t, err)
	assert.Equal(t, created.ID, again.ID)

	var count int64
	require.NoError(t, env.DB.Model(&models.User{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}
