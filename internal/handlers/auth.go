package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/reloop/marketplace/internal/events"
	"github.com/reloop/marketplace/internal/hash"
	"github.com/reloop/marketplace/internal/logging"
	"github.com/reloop/marketplace/internal/models"
	"github.com/reloop/marketplace/internal/oauth"
	"github.com/reloop/marketplace/internal/session"
	"github.com/reloop/marketplace/internal/token"
	"github.com/reloop/marketplace/internal/upload"
)

const oauthStateCookie = "oauthState"

type AuthHandler struct {
	DB       *gorm.DB
	Auth     *session.Authenticator
	OAuth    *oauth.Manager
	Uploads  *upload.Saver
	Producer *events.Producer
	Domain   string
}

func (h *AuthHandler) publish(c echo.Context, key string, event map[string]interface{}) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "user_events", key, event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}

func (h *AuthHandler) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_register")

	var req struct {
		Username    string `json:"username" form:"username"`
		Email       string `json:"email" form:"email"`
		Password    string `json:"password" form:"password"`
		PhoneNumber string `json:"phoneNumber" form:"phoneNumber"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("register_failed", "status", 400, "error", err)
		return c.String(http.StatusBadRequest, "Error registering user")
	}
	if req.Username == "" || req.Email == "" || req.Password == "" {
		l.Warn("register_failed", "status", 400, "reason", "missing_fields")
		return c.String(http.StatusBadRequest, "Error registering user")
	}

	pwHash, err := hash.HashPassword(req.Password)
	if err != nil {
		l.Error("register_failed", "status", 400, "reason", "cannot hash the password", "error", err)
		return c.String(http.StatusBadRequest, "Error registering user")
	}

	user := models.User{
		Username:     req.Username,
		Email:        strings.ToLower(req.Email),
		PasswordHash: pwHash,
		PhoneNumber:  req.PhoneNumber,
	}

	if file, err := c.FormFile("profilePicture"); err == nil && file != nil {
		path, err := h.Uploads.Save(file, "profilePictures")
		if err != nil {
			l.Warn("register_failed", "status", 400, "reason", "bad_upload", "error", err)
			return c.String(http.StatusBadRequest, "Error registering user")
		}
		user.ProfilePicture = path
	}

	if err := h.DB.WithContext(ctx).Create(&user).Error; err != nil {
		l.Warn("register_failed", "status", 400, "reason", "db_error", "error", err)
		return c.String(http.StatusBadRequest, "Error registering user")
	}

	h.publish(c, fmt.Sprint(user.ID), map[string]interface{}{
		"type":   "user_registered",
		"userID": user.ID,
		"email":  user.Email,
	})

	l.Info("register_success", "status", 200, "user_id", user.ID)
	return c.JSON(http.StatusOK, echo.Map{
		"message": "User registered successfully",
		"user":    user,
	})
}

func (h *AuthHandler) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_login")

	var req struct {
		Email    string `json:"email" form:"email"`
		Password string `json:"password" form:"password"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("login_failed", "status", 400, "error", err)
		return c.String(http.StatusBadRequest, "Invalid email or password")
	}

	user, pair, err := h.Auth.Login(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, session.ErrInvalidCredentials) {
			l.Warn("login_failed", "status", 400, "reason", "invalid email or password")
			return c.String(http.StatusBadRequest, "Invalid email or password")
		}
		if errors.Is(err, token.ErrConfig) {
			l.Error("login_failed", "status", 500, "reason", "token config incomplete")
			return c.String(http.StatusInternalServerError, "Failed to generate tokens")
		}
		l.Error("login_failed", "status", 500, "error", err)
		return c.String(http.StatusInternalServerError, "Internal Server Error")
	}

	postsCount, err := h.countPosts(ctx, user.ID)
	if err != nil {
		l.Error("login_failed", "status", 500, "error", err)
		return c.String(http.StatusInternalServerError, "Internal Server Error")
	}

	h.publish(c, fmt.Sprint(user.ID), map[string]interface{}{
		"type":   "user_logged_in",
		"userID": user.ID,
		"email":  user.Email,
	})

	l.Info("login_success", "user_id", user.ID)
	return c.JSON(http.StatusOK, echo.Map{
		"accessToken":    pair.AccessToken,
		"refreshToken":   pair.RefreshToken,
		"_id":            user.ID,
		"username":       user.Username,
		"email":          user.Email,
		"profilePicture": user.ProfilePicture,
		"phoneNumber":    user.PhoneNumber,
		"soldCount":      user.SoldCount,
		"postsCount":     postsCount,
	})
}

func (h *AuthHandler) Refresh(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_refresh")

	var req struct {
		RefreshToken string `json:"refreshToken" form:"refreshToken"`
	}
	if err := c.Bind(&req); err != nil {
		return c.String(http.StatusBadRequest, "Access Denied")
	}

	user, err := h.Auth.Redeem(ctx, req.RefreshToken)
	if err != nil {
		if errors.Is(err, session.ErrAccessDenied) {
			l.Warn("refresh_denied", "status", 400)
			return c.String(http.StatusBadRequest, "Access Denied")
		}
		l.Error("refresh_failed", "status", 500, "error", err)
		return c.String(http.StatusInternalServerError, "Internal Server Error")
	}

	pair, err := h.Auth.IssueTokenPair(user)
	if err != nil {
		l.Error("refresh_failed", "status", 400, "reason", "cannot generate tokens", "error", err)
		return c.String(http.StatusBadRequest, "Access Denied")
	}

	if err := h.DB.WithContext(ctx).Save(user).Error; err != nil {
		l.Error("refresh_failed", "status", 500, "error", err)
		return c.String(http.StatusInternalServerError, "Internal Server Error")
	}

	l.Info("refresh_success", "user_id", user.ID)
	return c.JSON(http.StatusOK, echo.Map{
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
	})
}

func (h *AuthHandler) Logout(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_logout")

	var req struct {
		RefreshToken string `json:"refreshToken" form:"refreshToken"`
	}
	if err := c.Bind(&req); err != nil {
		return c.String(http.StatusBadRequest, "Access Denied")
	}

	user, err := h.Auth.Redeem(ctx, req.RefreshToken)
	if err != nil {
		if errors.Is(err, session.ErrAccessDenied) {
			l.Warn("logout_denied", "status", 400)
			return c.String(http.StatusBadRequest, "Access Denied")
		}
		l.Error("logout_failed", "status", 500, "error", err)
		return c.String(http.StatusInternalServerError, "Internal Server Error")
	}

	c.SetCookie(DeleteCookie("accessToken", "/"))
	c.SetCookie(DeleteCookie("refreshToken", "/"))

	l.Info("logout_success", "user_id", user.ID)
	return c.String(http.StatusOK, "Logged out")
}

func (h *AuthHandler) GoogleLogin(c echo.Context) error {
	state, err := h.OAuth.StateToken()
	if err != nil {
		return errorResponse(c, http.StatusInternalServerError, err)
	}
	c.SetCookie(CreateCookie(oauthStateCookie, state, "/", time.Now().Add(10*time.Minute)))
	return c.Redirect(http.StatusFound, h.OAuth.AuthURL(state))
}

func (h *AuthHandler) GoogleCallback(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_google_callback")

	stateCookie, err := c.Cookie(oauthStateCookie)
	if err != nil || stateCookie.Value == "" || stateCookie.Value != c.QueryParam("state") {
		l.Warn("google_login_failed", "status", 400, "reason", "bad_state")
		return c.String(http.StatusBadRequest, "Access Denied")
	}
	c.SetCookie(DeleteCookie(oauthStateCookie, "/"))

	profile, err := h.OAuth.Exchange(ctx, c.QueryParam("code"))
	if err != nil {
		l.Warn("google_login_failed", "status", 400, "error", err)
		return c.String(http.StatusBadRequest, "Access Denied")
	}

	user, err := h.findOrCreateGoogleUser(ctx, profile)
	if err != nil {
		l.Error("google_login_failed", "status", 500, "error", err)
		return c.String(http.StatusInternalServerError, "Internal Server Error")
	}

	pair, err := h.Auth.IssueTokenPair(user)
	if err != nil {
		l.Error("google_login_failed", "status", 500, "reason", "cannot generate tokens", "error", err)
		return c.String(http.StatusInternalServerError, "Failed to generate tokens")
	}
	if err := h.DB.WithContext(ctx).Save(user).Error; err != nil {
		l.Error("google_login_failed", "status", 500, "error", err)
		return c.String(http.StatusInternalServerError, "Internal Server Error")
	}

	postsCount, err := h.countPosts(ctx, user.ID)
	if err != nil {
		l.Error("google_login_failed", "status", 500, "error", err)
		return c.String(http.StatusInternalServerError, "Internal Server Error")
	}

	h.publish(c, fmt.Sprint(user.ID), map[string]interface{}{
		"type":   "user_logged_in",
		"userID": user.ID,
		"email":  user.Email,
	})

	l.Info("google_login_success", "user_id", user.ID)

	// Browser flow when a frontend domain is configured, plain JSON
	// otherwise.
	if h.Domain == "" {
		return c.JSON(http.StatusOK, echo.Map{
			"accessToken":  pair.AccessToken,
			"refreshToken": pair.RefreshToken,
			"_id":          user.ID,
		})
	}

	accessClaims, _ := h.Auth.Codec.Verify(pair.AccessToken)
	refreshClaims, _ := h.Auth.Codec.Verify(pair.RefreshToken)
	if accessClaims != nil {
		c.SetCookie(CreateCookie("accessToken", pair.AccessToken, "/", accessClaims.ExpiresAt.Time))
	}
	if refreshClaims != nil {
		c.SetCookie(CreateCookie("refreshToken", pair.RefreshToken, "/", refreshClaims.ExpiresAt.Time))
	}

	userJSON, err := json.Marshal(echo.Map{
		"_id":            user.ID,
		"username":       user.Username,
		"email":          user.Email,
		"profilePicture": user.ProfilePicture,
		"soldCount":      user.SoldCount,
		"googleId":       user.GoogleID,
		"phoneNumber":    user.PhoneNumber,
		"postsCount":     postsCount,
	})
	if err != nil {
		return c.String(http.StatusInternalServerError, "Internal Server Error")
	}

	redirect := fmt.Sprintf(
		"https://%s/oauth-callback#accessToken=%s&refreshToken=%s&user=%s",
		h.Domain, pair.AccessToken, pair.RefreshToken, url.QueryEscape(string(userJSON)),
	)
	return c.Redirect(http.StatusFound, redirect)
}

func (h *AuthHandler) findOrCreateGoogleUser(ctx context.Context, profile *oauth.Profile) (*models.User, error) {
	var user models.User
	err := h.DB.WithContext(ctx).Where("google_id = ?", profile.Subject).First(&user).Error
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	googleID := profile.Subject
	user = models.User{
		Username:       profile.Name,
		Email:          strings.ToLower(profile.Email),
		GoogleID:       &googleID,
		ProfilePicture: profile.Picture,
	}
	if err := h.DB.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}

	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(pubCtx, "user_events", fmt.Sprint(user.ID), map[string]interface{}{
		"type":   "user_registered",
		"userID": user.ID,
		"email":  user.Email,
	}); err != nil {
		logging.FromContext(ctx).Error("kafka_publish_failed", "error", err)
	}

	return &user, nil
}

func (h *AuthHandler) countPosts(ctx context.Context, userID uint) (int64, error) {
	var postsCount int64
	err := h.DB.WithContext(ctx).Model(&models.Post{}).
		Where("sender_id = ?", userID).
		Count(&postsCount).Error
	return postsCount, err
}
