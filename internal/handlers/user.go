package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/reloop/marketplace/internal/hash"
	"github.com/reloop/marketplace/internal/logging"
	"github.com/reloop/marketplace/internal/models"
	"github.com/reloop/marketplace/internal/upload"
)

type UserHandler struct {
	DB      *gorm.DB
	Uploads *upload.Saver
}

// UpdateUser patches profile fields; only the fields present in the
// request are touched, and a new password is re-hashed before storage.
func (h *UserHandler) UpdateUser(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user_update")

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return c.String(http.StatusBadRequest, "Invalid user ID")
	}

	var req struct {
		Username    string `json:"username" form:"username"`
		Email       string `json:"email" form:"email"`
		PhoneNumber string `json:"phoneNumber" form:"phoneNumber"`
		Password    string `json:"password" form:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return c.String(http.StatusBadRequest, "Invalid body")
	}

	var user models.User
	if err := h.DB.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.String(http.StatusNotFound, "User not found")
		}
		l.Error("user_update_failed", "status", 500, "error", err)
		return c.String(http.StatusInternalServerError, "Error updating user")
	}

	if req.Username != "" {
		user.Username = req.Username
	}
	if req.Email != "" {
		user.Email = strings.ToLower(req.Email)
	}
	if req.PhoneNumber != "" {
		user.PhoneNumber = req.PhoneNumber
	}
	if req.Password != "" {
		pwHash, err := hash.HashPassword(req.Password)
		if err != nil {
			l.Error("user_update_failed", "status", 500, "error", err)
			return c.String(http.StatusInternalServerError, "Error updating user")
		}
		user.PasswordHash = pwHash
	}
	if file, err := c.FormFile("profilePicture"); err == nil && file != nil {
		path, err := h.Uploads.Save(file, "profilePictures")
		if err != nil {
			return c.String(http.StatusBadRequest, "Error updating user")
		}
		user.ProfilePicture = path
	}

	if err := h.DB.WithContext(ctx).Save(&user).Error; err != nil {
		l.Error("user_update_failed", "status", 500, "error", err)
		return c.String(http.StatusInternalServerError, "Error updating user")
	}

	l.Info("user_update_success", "user_id", user.ID)
	return c.JSON(http.StatusOK, echo.Map{
		"message": "User updated successfully",
		"user":    user,
	})
}

// SellProduct bumps the user's sold-items counter.
func (h *UserHandler) SellProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user_sell")

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return c.String(http.StatusBadRequest, "Invalid user ID")
	}

	var user models.User
	if err := h.DB.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.String(http.StatusNotFound, "User not found")
		}
		l.Error("user_sell_failed", "status", 500, "error", err)
		return c.String(http.StatusInternalServerError, "Error updating sold count")
	}

	res := h.DB.WithContext(ctx).Model(&user).
		UpdateColumn("sold_count", gorm.Expr("sold_count + 1"))
	if res.Error != nil {
		l.Error("user_sell_failed", "status", 500, "error", res.Error)
		return c.String(http.StatusInternalServerError, "Error updating sold count")
	}
	user.SoldCount++

	l.Info("user_sell_success", "user_id", user.ID, "sold_count", user.SoldCount)
	return c.JSON(http.StatusOK, echo.Map{
		"message": "Product sold count updated successfully",
		"user":    user,
	})
}
