package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/reloop/marketplace/internal/logging"
	"github.com/reloop/marketplace/internal/tips"
)

type TipsHandler struct {
	Client *tips.Client
}

func (h *TipsHandler) GetTips(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "tips")

	result, err := h.Client.SustainabilityTips(ctx)
	if err != nil {
		l.Error("tips_failed", "status", 500, "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error": "Failed to fetch sustainability tips",
		})
	}

	return c.JSON(http.StatusOK, echo.Map{"tips": result})
}
