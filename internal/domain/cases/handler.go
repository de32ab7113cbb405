package cases

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/oncore/oncore/internal/platform/auth"
	"github.com/oncore/oncore/internal/platform/events"
	"github.com/oncore/oncore/pkg/pagination"
)

type Handler struct {
	svc    *Service
	events *events.Handler
}

func NewHandler(svc *Service, eventsHandler *events.Handler) *Handler {
	return &Handler{svc: svc, events: eventsHandler}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	view := api.Group("/patient-cases", auth.RequireCapability(auth.CanViewCases))
	view.GET("", h.ListCases)
	view.GET("/:id", h.GetCase)
	view.GET("/:id/data-completion", h.ListCompletions)

	manage := api.Group("/patient-cases", auth.RequireCapability(auth.CanManageCases))
	manage.POST("", h.CreateCase)
	manage.PUT("/:id", h.UpdateCase)
	manage.DELETE("/:id", h.DeleteCase)
	manage.PUT("/:id/data-completion/:category", h.MarkCompletion)
	manage.DELETE("/:id/data-completion/:category", h.UnmarkCompletion)

	h.events.RegisterHistoryRoutes(manage, "PatientCase")
}

func domainStatus(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, ErrMonthPrecision), errors.Is(err, ErrConflictingCase),
		errors.Is(err, ErrConflictingClinicalIdentifier), errors.Is(err, ErrUnknownCategory):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	default:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
}

func (h *Handler) CreateCase(c echo.Context) error {
	var pc PatientCase
	if err := c.Bind(&pc); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateCase(c.Request().Context(), &pc); err != nil {
		return domainStatus(err)
	}
	return c.JSON(http.StatusCreated, events.ModifiedResource{ID: pc.ID})
}

func (h *Handler) GetCase(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	anonymized, err := auth.AnonymizedParam(c)
	if err != nil {
		return err
	}
	pc, err := h.svc.GetCase(c.Request().Context(), id, anonymized)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "patient case not found")
	}
	return c.JSON(http.StatusOK, pc)
}

func (h *Handler) ListCases(c echo.Context) error {
	pg := pagination.FromContext(c)
	anonymized, err := auth.AnonymizedParam(c)
	if err != nil {
		return err
	}
	items, total, err := h.svc.SearchCases(c.Request().Context(),
		c.QueryParams(), c.QueryParam("ordering"), pg.Limit, pg.Offset, anonymized)
	if err != nil {
		if errors.Is(err, ErrInvalidFilter) || errors.Is(err, ErrInvalidOrdering) {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg, "/api/v1/patient-cases"))
}

func (h *Handler) UpdateCase(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var pc PatientCase
	if err := c.Bind(&pc); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	pc.ID = id
	if err := h.svc.UpdateCase(c.Request().Context(), &pc); err != nil {
		return domainStatus(err)
	}
	return c.JSON(http.StatusOK, events.ModifiedResource{ID: id})
}

func (h *Handler) DeleteCase(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteCase(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "patient case not found")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListCompletions(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	items, err := h.svc.ListCompletions(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "patient case not found")
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) MarkCompletion(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	dc, err := h.svc.MarkCompletion(c.Request().Context(), id, c.Param("category"))
	if err != nil {
		return domainStatus(err)
	}
	return c.JSON(http.StatusCreated, dc)
}

func (h *Handler) UnmarkCompletion(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.UnmarkCompletion(c.Request().Context(), id, c.Param("category")); err != nil {
		return domainStatus(err)
	}
	return c.NoContent(http.StatusNoContent)
}
