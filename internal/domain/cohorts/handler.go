package cohorts

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/oncore/oncore/internal/platform/auth"
	"github.com/oncore/oncore/internal/platform/events"
	"github.com/oncore/oncore/pkg/pagination"
)

// MembershipChecker answers whether a user belongs to a project, leader
// included, or holds a currently valid data-manager grant for it. Satisfied
// by *projects.Service.
type MembershipChecker interface {
	IsMember(ctx context.Context, projectID, userID uuid.UUID) (bool, error)
	HasValidGrant(ctx context.Context, projectID, userID uuid.UUID) (bool, error)
}

type Handler struct {
	svc        *Service
	events     *events.Handler
	membership MembershipChecker
}

func NewHandler(svc *Service, eventsHandler *events.Handler, membership MembershipChecker) *Handler {
	return &Handler{svc: svc, events: eventsHandler, membership: membership}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	projectScoped := api.Group("/projects/:projectId/cohorts", auth.RequireCapability(auth.CanViewCohorts))
	projectScoped.GET("", h.ListCohorts)

	view := api.Group("/cohorts", auth.RequireCapability(auth.CanViewCohorts))
	view.GET("/:id", h.GetCohort)
	view.GET("/:id/cases", h.ListCases)
	view.GET("/:id/contributors", h.ListContributors)
	view.GET("/:id/traits", h.GetTraits)

	manage := api.Group("/cohorts", auth.RequireCapability(auth.CanManageCohorts))
	manage.POST("", h.CreateCohort)
	manage.PUT("/:id", h.UpdateCohort)
	manage.DELETE("/:id", h.DeleteCohort)
	manage.POST("/:id/cases", h.UpdateCases)

	h.events.RegisterHistoryRoutes(manage, resourceType)
}

func parseID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

// requireProjectAccess enforces the object-scoped rule: data contributors
// manage cohorts only inside projects they belong to. A currently valid
// data-manager grant counts the same as membership.
func (h *Handler) requireProjectAccess(c echo.Context, projectID uuid.UUID) error {
	p, ok := auth.PrincipalFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	isMember, err := h.membership.IsMember(c.Request().Context(), projectID, p.UserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "project not found")
	}
	if !isMember {
		granted, err := h.membership.HasValidGrant(c.Request().Context(), projectID, p.UserID)
		if err != nil {
			return echo.NewHTTPError(http.StatusNotFound, "project not found")
		}
		isMember = granted
	}
	if !auth.CanManageProjectResource(p, isMember) {
		return echo.NewHTTPError(http.StatusForbidden, "project membership required")
	}
	return nil
}

func (h *Handler) CreateCohort(c echo.Context) error {
	var cohort Cohort
	if err := c.Bind(&cohort); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.requireProjectAccess(c, cohort.ProjectID); err != nil {
		return err
	}
	if err := h.svc.CreateCohort(c.Request().Context(), &cohort); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return c.JSON(http.StatusCreated, events.ModifiedResource{ID: cohort.ID})
}

func (h *Handler) GetCohort(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	cohort, err := h.svc.GetCohort(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "cohort not found")
	}
	return c.JSON(http.StatusOK, cohort)
}

func (h *Handler) ListCohorts(c echo.Context) error {
	projectID, err := parseID(c, "projectId")
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListCohorts(c.Request().Context(), projectID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg, c.Path()))
}

func (h *Handler) UpdateCohort(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	current, err := h.svc.GetCohort(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "cohort not found")
	}
	if err := h.requireProjectAccess(c, current.ProjectID); err != nil {
		return err
	}
	var cohort Cohort
	if err := c.Bind(&cohort); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	cohort.ID = id
	if err := h.svc.UpdateCohort(c.Request().Context(), &cohort); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return c.JSON(http.StatusOK, events.ModifiedResource{ID: id})
}

func (h *Handler) DeleteCohort(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	current, err := h.svc.GetCohort(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "cohort not found")
	}
	if err := h.requireProjectAccess(c, current.ProjectID); err != nil {
		return err
	}
	if err := h.svc.DeleteCohort(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "cohort not found")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListCases(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	cohort, err := h.svc.GetCohort(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "cohort not found")
	}
	return c.JSON(http.StatusOK, cohort.Cases)
}

// UpdateCases rematerializes the membership on demand.
func (h *Handler) UpdateCases(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	current, err := h.svc.GetCohort(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "cohort not found")
	}
	if err := h.requireProjectAccess(c, current.ProjectID); err != nil {
		return err
	}
	members, err := h.svc.UpdateCohortCases(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return c.JSON(http.StatusOK, members)
}

func (h *Handler) ListContributors(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	names, err := h.svc.Contributors(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "cohort not found")
	}
	return c.JSON(http.StatusOK, names)
}

func (h *Handler) GetTraits(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	validOnly := c.QueryParam("validOnly") == "true"
	traits, err := h.svc.Traits(c.Request().Context(), id, validOnly)
	if err != nil {
		if errors.Is(err, ErrEmptyCohort) {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
		}
		return echo.NewHTTPError(http.StatusNotFound, "cohort not found")
	}
	return c.JSON(http.StatusOK, traits)
}
