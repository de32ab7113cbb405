package events

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/oncore/oncore/pkg/pagination"
)

// ModifiedResource is the uniform mutation response body.
type ModifiedResource struct {
	ID uuid.UUID `json:"id"`
}

// Handler serves the uniform per-resource history surface.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterHistoryRoutes mounts the history endpoints for one resource type
// onto its collection group:
//
//	GET /:id/history/events
//	GET /:id/history/events/:eventId
//	PUT /:id/history/events/:eventId/reversion
func (h *Handler) RegisterHistoryRoutes(g *echo.Group, resourceType string) {
	g.GET("/:id/history/events", h.listEvents(resourceType))
	g.GET("/:id/history/events/:eventId", h.getEvent(resourceType))
	g.PUT("/:id/history/events/:eventId/reversion", h.revert(resourceType))
}

func (h *Handler) listEvents(resourceType string) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
		}
		pg := pagination.FromContext(c)
		items, total, err := h.svc.List(c.Request().Context(), resourceType, id, pg.Limit, pg.Offset)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg, c.Path()))
	}
}

func (h *Handler) getEvent(resourceType string) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
		}
		eventID, err := uuid.Parse(c.Param("eventId"))
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid event id")
		}
		e, err := h.svc.Get(c.Request().Context(), resourceType, id, eventID)
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "event not found")
		}
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, e)
	}
}

func (h *Handler) revert(resourceType string) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
		}
		eventID, err := uuid.Parse(c.Param("eventId"))
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid event id")
		}

		err = h.svc.Revert(c.Request().Context(), resourceType, id, eventID)
		switch {
		case errors.Is(err, ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "event not found")
		case errors.Is(err, ErrConflict):
			return echo.NewHTTPError(http.StatusUnprocessableEntity, "subject has been deleted")
		case err != nil:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}

		// Observed contract: reversion answers 201 with the subject id.
		return c.JSON(http.StatusCreated, ModifiedResource{ID: id})
	}
}
