package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/reloop/marketplace/internal/events"
	appmw "github.com/reloop/marketplace/internal/middleware"
	"github.com/reloop/marketplace/internal/models"
	"github.com/reloop/marketplace/internal/service/search"
	"github.com/reloop/marketplace/internal/upload"
	"github.com/reloop/marketplace/internal/util"
)

type PostHandler struct {
	DB       *gorm.DB
	Producer *events.Producer
	Uploads  *upload.Saver
	ES       *elasticsearch.Client
	Index    string
}

type postSender struct {
	ID             uint   `json:"_id"`
	Username       string `json:"username"`
	ProfilePicture string `json:"profilePicture"`
}

type postView struct {
	models.Post
	Sender postSender `json:"sender"`
}

func (h *PostHandler) publish(c echo.Context, event map[string]interface{}) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "post_events", fmt.Sprint(event["postID"]), event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}

func (h *PostHandler) index(c echo.Context, post *models.Post) {
	if h.ES == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := search.IndexPost(ctx, h.ES, h.Index, post); err != nil {
		c.Logger().Errorf("ES index error: %v", err)
	}
}

func (h *PostHandler) CreatePost(c echo.Context) error {
	senderID, ok := appmw.UserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Access Denied")
	}

	var req struct {
		Title     string  `json:"title" form:"title"`
		Content   string  `json:"content" form:"content"`
		OldPrice  float64 `json:"oldPrice" form:"oldPrice"`
		NewPrice  float64 `json:"newPrice" form:"newPrice"`
		City      string  `json:"city" form:"city"`
		TimesWorn uint    `json:"timesWorn" form:"timesWorn"`
	}
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, http.StatusBadRequest, err)
	}
	if req.Title == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "title is required")
	}

	post := models.Post{
		Title:     req.Title,
		Content:   req.Content,
		OldPrice:  req.OldPrice,
		NewPrice:  req.NewPrice,
		City:      req.City,
		TimesWorn: req.TimesWorn,
		SenderID:  senderID,
	}

	if file, err := c.FormFile("picture"); err == nil && file != nil {
		path, err := h.Uploads.Save(file, "postPictures")
		if err != nil {
			return errorResponse(c, http.StatusBadRequest, err)
		}
		post.Picture = path
	}

	if err := h.DB.WithContext(c.Request().Context()).Create(&post).Error; err != nil {
		return errorResponse(c, http.StatusInternalServerError, err)
	}

	h.publish(c, map[string]interface{}{
		"type":   "post_created",
		"postID": post.ID,
		"userID": post.SenderID,
	})
	h.index(c, &post)

	return c.JSON(http.StatusCreated, post)
}

func (h *PostHandler) GetPost(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errorResponse(c, http.StatusBadRequest, err)
	}

	var post models.Post
	if err := h.DB.WithContext(c.Request().Context()).First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.String(http.StatusNotFound, "not found")
		}
		return errorResponse(c, http.StatusInternalServerError, err)
	}

	return c.JSON(http.StatusOK, post)
}

func (h *PostHandler) GetPosts(c echo.Context) error {
	ctx := c.Request().Context()

	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	q := h.DB.WithContext(ctx).Model(&models.Post{})
	if sender := c.QueryParam("sender"); sender != "" {
		q = q.Where("sender_id = ?", sender)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return errorResponse(c, http.StatusInternalServerError, err)
	}

	var posts []models.Post
	if err := q.Order("id ASC").Offset(offset).Limit(limit).Find(&posts).Error; err != nil {
		return errorResponse(c, http.StatusInternalServerError, err)
	}

	views, err := h.withSenders(ctx, posts)
	if err != nil {
		return errorResponse(c, http.StatusInternalServerError, err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"data": views,
		"meta": map[string]any{
			"page":        page,
			"size":        limit,
			"total":       total,
			"total_pages": (total + int64(limit) - 1) / int64(limit),
			"has_prev":    page > 1,
			"has_next":    int64(offset+limit) < total,
		},
	})
}

// withSenders joins the owning user's public fields onto each listing.
func (h *PostHandler) withSenders(ctx context.Context, posts []models.Post) ([]postView, error) {
	ids := make([]uint, 0, len(posts))
	seen := make(map[uint]bool, len(posts))
	for _, p := range posts {
		if !seen[p.SenderID] {
			seen[p.SenderID] = true
			ids = append(ids, p.SenderID)
		}
	}

	senders := make(map[uint]postSender, len(ids))
	if len(ids) > 0 {
		var users []models.User
		if err := h.DB.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
			return nil, err
		}
		for _, u := range users {
			senders[u.ID] = postSender{ID: u.ID, Username: u.Username, ProfilePicture: u.ProfilePicture}
		}
	}

	views := make([]postView, len(posts))
	for i, p := range posts {
		views[i] = postView{Post: p, Sender: senders[p.SenderID]}
	}
	return views, nil
}

func (h *PostHandler) UpdatePost(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errorResponse(c, http.StatusBadRequest, err)
	}

	var req struct {
		Title     string  `json:"title" form:"title"`
		Content   string  `json:"content" form:"content"`
		OldPrice  float64 `json:"oldPrice" form:"oldPrice"`
		NewPrice  float64 `json:"newPrice" form:"newPrice"`
		City      string  `json:"city" form:"city"`
		TimesWorn uint    `json:"timesWorn" form:"timesWorn"`
	}
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, http.StatusBadRequest, err)
	}

	var post models.Post
	if err := h.DB.WithContext(c.Request().Context()).First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.String(http.StatusNotFound, "not found")
		}
		return errorResponse(c, http.StatusInternalServerError, err)
	}

	post.Title = req.Title
	post.Content = req.Content
	post.OldPrice = req.OldPrice
	post.NewPrice = req.NewPrice
	post.City = req.City
	post.TimesWorn = req.TimesWorn

	if file, err := c.FormFile("picture"); err == nil && file != nil {
		path, err := h.Uploads.Save(file, "postPictures")
		if err != nil {
			return errorResponse(c, http.StatusBadRequest, err)
		}
		post.Picture = path
	}

	if err := h.DB.WithContext(c.Request().Context()).Save(&post).Error; err != nil {
		return errorResponse(c, http.StatusInternalServerError, err)
	}

	h.publish(c, map[string]interface{}{
		"type":   "post_updated",
		"postID": post.ID,
		"userID": post.SenderID,
	})
	h.index(c, &post)

	return c.JSON(http.StatusOK, post)
}

func (h *PostHandler) DeletePost(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errorResponse(c, http.StatusBadRequest, err)
	}

	if err := h.DB.WithContext(c.Request().Context()).Delete(&models.Post{}, id).Error; err != nil {
		return errorResponse(c, http.StatusInternalServerError, err)
	}

	h.publish(c, map[string]interface{}{
		"type":   "post_deleted",
		"postID": id,
	})
	if h.ES != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()
		if err := search.DeletePost(ctx, h.ES, h.Index, uint(id)); err != nil {
			c.Logger().Errorf("ES delete error: %v", err)
		}
	}

	return c.NoContent(http.StatusOK)
}
