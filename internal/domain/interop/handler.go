package interop

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"

	"github.com/oncore/oncore/internal/platform/auth"
	"github.com/oncore/oncore/internal/platform/events"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	export := api.Group("/interoperability", auth.RequireCapability(auth.CanExportData))
	export.GET("/bundles/:caseId", h.ExportBundle)
	export.GET("/resources/:id", h.ExportResource)

	ingest := api.Group("/interoperability", auth.RequireCapability(auth.CanImportData))
	ingest.POST("/bundles", h.ImportBundle)
}

func (h *Handler) ExportBundle(c echo.Context) error {
	caseID, err := uuid.Parse(c.Param("caseId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid case id")
	}
	p, _ := auth.PrincipalFromContext(c.Request().Context())
	b, err := h.svc.ExportBundle(c.Request().Context(), caseID, p.Username)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return echo.NewHTTPError(http.StatusNotFound, "patient case not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, b)
}

func (h *Handler) ExportResource(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	resourceType := c.QueryParam("type")
	if resourceType == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "type parameter is required")
	}
	ctx := c.Request().Context()
	resource, err := h.svc.FetchResource(ctx, resourceType, id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	p, _ := auth.PrincipalFromContext(ctx)
	exported, err := h.svc.ExportResource(ctx, resourceType, id, resource, p.Username)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, exported)
}

func (h *Handler) ImportBundle(c echo.Context) error {
	var b PatientCaseBundle
	if err := c.Bind(&b); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	conflict := c.QueryParam("conflict")
	pc, err := h.svc.ImportBundle(c.Request().Context(), &b, conflict)
	if err != nil {
		if errors.Is(err, ErrUnknownConflictResolution) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		// Conflicts and domain validation failures alike leave the bundle
		// unapplied.
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return c.JSON(http.StatusCreated, events.ModifiedResource{ID: pc.ID})
}
