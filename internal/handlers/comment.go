package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/reloop/marketplace/internal/events"
	appmw "github.com/reloop/marketplace/internal/middleware"
	"github.com/reloop/marketplace/internal/models"
)

type CommentHandler struct {
	DB       *gorm.DB
	Producer *events.Producer
}

func (h *CommentHandler) publish(c echo.Context, event map[string]interface{}) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "comment_events", fmt.Sprint(event["commentID"]), event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}

func (h *CommentHandler) CreateComment(c echo.Context) error {
	userID, ok := appmw.UserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Access Denied")
	}

	var req struct {
		PostID  uint   `json:"postId" form:"postId"`
		Message string `json:"message" form:"message"`
	}
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, http.StatusBadRequest, err)
	}
	if req.PostID == 0 || req.Message == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "postId and message are required")
	}

	var post models.Post
	if err := h.DB.WithContext(c.Request().Context()).First(&post, req.PostID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.String(http.StatusNotFound, "not found")
		}
		return errorResponse(c, http.StatusInternalServerError, err)
	}

	comment := models.Comment{
		PostID:  req.PostID,
		UserID:  userID,
		Message: req.Message,
	}
	if err := h.DB.WithContext(c.Request().Context()).Create(&comment).Error; err != nil {
		return errorResponse(c, http.StatusInternalServerError, err)
	}

	h.publish(c, map[string]interface{}{
		"type":      "comment_created",
		"commentID": comment.ID,
		"postID":    comment.PostID,
		"userID":    comment.UserID,
	})

	return c.JSON(http.StatusCreated, comment)
}

func (h *CommentHandler) GetComments(c echo.Context) error {
	q := h.DB.WithContext(c.Request().Context()).Model(&models.Comment{})
	if postID := c.QueryParam("postId"); postID != "" {
		q = q.Where("post_id = ?", postID)
	} else if userID := c.QueryParam("user"); userID != "" {
		q = q.Where("user_id = ?", userID)
	}

	var comments []models.Comment
	if err := q.Order("created_at ASC").Find(&comments).Error; err != nil {
		return errorResponse(c, http.StatusInternalServerError, err)
	}

	return c.JSON(http.StatusOK, comments)
}

func (h *CommentHandler) GetComment(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errorResponse(c, http.StatusBadRequest, err)
	}

	var comment models.Comment
	if err := h.DB.WithContext(c.Request().Context()).First(&comment, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.String(http.StatusNotFound, "not found")
		}
		return errorResponse(c, http.StatusInternalServerError, err)
	}

	return c.JSON(http.StatusOK, comment)
}

func (h *CommentHandler) UpdateComment(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errorResponse(c, http.StatusBadRequest, err)
	}

	var req struct {
		Message string `json:"message" form:"message"`
	}
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, http.StatusBadRequest, err)
	}

	var comment models.Comment
	if err := h.DB.WithContext(c.Request().Context()).First(&comment, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.String(http.StatusNotFound, "not found")
		}
		return errorResponse(c, http.StatusInternalServerError, err)
	}

	comment.Message = req.Message
	if err := h.DB.WithContext(c.Request().Context()).Save(&comment).Error; err != nil {
		return errorResponse(c, http.StatusInternalServerError, err)
	}

	return c.JSON(http.StatusOK, comment)
}

func (h *CommentHandler) DeleteComment(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errorResponse(c, http.StatusBadRequest, err)
	}

	if err := h.DB.WithContext(c.Request().Context()).Delete(&models.Comment{}, id).Error; err != nil {
		return errorResponse(c, http.StatusInternalServerError, err)
	}

	h.publish(c, map[string]interface{}{
		"type":      "comment_deleted",
		"commentID": id,
	})

	return c.NoContent(http.StatusOK)
}
