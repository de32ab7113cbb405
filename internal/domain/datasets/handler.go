package datasets

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
	projectScoped := api.Group("/projects/:projectId/datasets", auth.RequireCapability(auth.CanViewDatasets))
	projectScoped.GET("", h.ListDatasets)

	view := api.Group("/datasets", auth.RequireCapability(auth.CanViewDatasets))
	view.GET("/:id", h.GetDataset)

	manage := api.Group("/datasets", auth.RequireCapability(auth.CanManageDatasets))
	manage.POST("", h.CreateDataset)
	manage.PUT("/:id", h.UpdateDataset)
	manage.DELETE("/:id", h.DeleteDataset)

	h.events.RegisterHistoryRoutes(manage, resourceType)

	project := api.Group("/cohorts", auth.RequireCapability(auth.CanAnalyzeData))
	project.POST("/:cohortId/dataset", h.ProjectCohort)

	export := api.Group("/cohorts", auth.RequireCapability(auth.CanExportData))
	export.POST("/:cohortId/dataset/:datasetId/export", h.ExportDataset)
	export.POST("/:cohortId/export", h.ExportCohortDefinition)
}

func parseID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

// requireProjectAccess enforces the object-scoped rule: data contributors
// manage datasets only inside projects they belong to. A currently valid
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

func ruleStatus(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, ErrUnknownResource), errors.Is(err, ErrUnknownField),
		errors.Is(err, ErrInvalidTransform), errors.Is(err, ErrNoRules):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	default:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
}

func (h *Handler) CreateDataset(c echo.Context) error {
	var d Dataset
	if err := c.Bind(&d); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.requireProjectAccess(c, d.ProjectID); err != nil {
		return err
	}
	if err := h.svc.CreateDataset(c.Request().Context(), &d); err != nil {
		return ruleStatus(err)
	}
	return c.JSON(http.StatusCreated, events.ModifiedResource{ID: d.ID})
}

func (h *Handler) GetDataset(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	d, err := h.svc.GetDataset(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "dataset not found")
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) ListDatasets(c echo.Context) error {
	projectID, err := parseID(c, "projectId")
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListDatasets(c.Request().Context(), projectID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg, c.Path()))
}

func (h *Handler) UpdateDataset(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	existing, err := h.svc.GetDataset(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "dataset not found")
	}
	if err := h.requireProjectAccess(c, existing.ProjectID); err != nil {
		return err
	}
	var d Dataset
	if err := c.Bind(&d); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	d.ID = id
	if err := h.svc.UpdateDataset(c.Request().Context(), &d); err != nil {
		return ruleStatus(err)
	}
	return c.JSON(http.StatusOK, events.ModifiedResource{ID: d.ID})
}

func (h *Handler) DeleteDataset(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	existing, err := h.svc.GetDataset(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "dataset not found")
	}
	if err := h.requireProjectAccess(c, existing.ProjectID); err != nil {
		return err
	}
	if err := h.svc.DeleteDataset(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// ProjectCohort answers an ad-hoc projection of the cohort. The rule list
// comes in the body; the records page like any other list.
func (h *Handler) ProjectCohort(c echo.Context) error {
	cohortID, err := parseID(c, "cohortId")
	if err != nil {
		return err
	}
	var body struct {
		Rules []Rule `json:"rules"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	records, err := h.svc.ProjectCohort(c.Request().Context(), cohortID, body.Rules)
	if err != nil {
		return ruleStatus(err)
	}
	pg := pagination.FromContext(c)
	page := records
	if pg.Offset < len(records) {
		end := pg.Offset + pg.Limit
		if end > len(records) {
			end = len(records)
		}
		page = records[pg.Offset:end]
	} else {
		page = nil
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(page, len(records), pg, c.Path()))
}

func (h *Handler) ExportDataset(c echo.Context) error {
	cohortID, err := parseID(c, "cohortId")
	if err != nil {
		return err
	}
	datasetID, err := parseID(c, "datasetId")
	if err != nil {
		return err
	}
	p, _ := auth.PrincipalFromContext(c.Request().Context())
	out, err := h.svc.ExportDataset(c.Request().Context(), cohortID, datasetID, p.Username)
	if err != nil {
		return ruleStatus(err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) ExportCohortDefinition(c echo.Context) error {
	cohortID, err := parseID(c, "cohortId")
	if err != nil {
		return err
	}
	p, _ := auth.PrincipalFromContext(c.Request().Context())
	out, err := h.svc.ExportCohortDefinition(c.Request().Context(), cohortID, p.Username)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "cohort not found")
	}
	return c.JSON(http.StatusOK, out)
}
