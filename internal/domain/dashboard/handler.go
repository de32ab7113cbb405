package dashboard

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/oncore/oncore/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/dashboard", auth.RequireCapability(auth.CanViewCases))
	g.GET("/stats", h.Stats)
	g.GET("/primary-site-stats", h.PrimarySiteStats)
	g.GET("/cases-over-time", h.CasesOverTime)
	g.GET("/data-completion-stats", h.DataCompletionStats)
}

func (h *Handler) Stats(c echo.Context) error {
	stats, err := h.svc.Stats(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, stats)
}

func (h *Handler) PrimarySiteStats(c echo.Context) error {
	sites, err := h.svc.PrimarySiteStats(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, sites)
}

func (h *Handler) CasesOverTime(c echo.Context) error {
	months, err := h.svc.CasesOverTime(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, months)
}

func (h *Handler) DataCompletionStats(c echo.Context) error {
	stats, err := h.svc.DataCompletionStats(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, stats)
}
