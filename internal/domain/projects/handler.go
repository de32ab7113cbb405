package projects

import (
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
	view := api.Group("/projects", auth.RequireCapability(auth.CanViewProjects))
	view.GET("", h.ListProjects)
	view.GET("/:id", h.GetProject)
	view.GET("/:projectId/memberships", h.ListMemberships)
	view.GET("/:projectId/data-manager-grants", h.ListGrants)

	manage := api.Group("/projects", auth.RequireCapability(auth.CanManageProjects))
	manage.POST("", h.CreateProject)
	manage.PUT("/:id", h.UpdateProject)
	manage.DELETE("/:id", h.DeleteProject)
	manage.POST("/:projectId/memberships", h.AddMember)
	manage.POST("/:projectId/data-manager-grants", h.CreateGrant)

	h.events.RegisterHistoryRoutes(manage, projectResourceType)

	memberships := api.Group("/project-memberships", auth.RequireCapability(auth.CanManageProjects))
	memberships.GET("/:id", h.GetMembership)
	memberships.DELETE("/:id", h.RemoveMember)

	grants := api.Group("/project-data-manager-grants")
	grants.GET("/:id", h.GetGrant, auth.RequireCapability(auth.CanViewProjects))
	grantManage := api.Group("/project-data-manager-grants", auth.RequireCapability(auth.CanManageProjects))
	grantManage.POST("/:id/revoke", h.RevokeGrant)
	h.events.RegisterHistoryRoutes(grantManage, grantResourceType)
}

func parseID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

// requireAdministration enforces object-scoped project administration on top
// of the capability check: project managers only administer projects they lead.
func (h *Handler) requireAdministration(c echo.Context, projectID uuid.UUID) error {
	p, ok := auth.PrincipalFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	project, err := h.svc.GetProject(c.Request().Context(), projectID)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "project not found")
	}
	if !auth.CanAdministerProject(p, project.LeaderID == p.UserID) {
		return echo.NewHTTPError(http.StatusForbidden, "not the project leader")
	}
	return nil
}

// -- Project --

func (h *Handler) CreateProject(c echo.Context) error {
	var p Project
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateProject(c.Request().Context(), &p); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return c.JSON(http.StatusCreated, events.ModifiedResource{ID: p.ID})
}

func (h *Handler) GetProject(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	p, err := h.svc.GetProject(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "project not found")
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ListProjects(c echo.Context) error {
	principal, ok := auth.PrincipalFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	pg := pagination.FromContext(c)

	var (
		items []*Project
		total int
		err   error
	)
	if principal.AccessLevel >= auth.LevelPlatformManager {
		items, total, err = h.svc.ListProjects(c.Request().Context(), pg.Limit, pg.Offset)
	} else {
		items, total, err = h.svc.ListProjectsForUser(c.Request().Context(), principal.UserID, pg.Limit, pg.Offset)
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg, c.Path()))
}

func (h *Handler) UpdateProject(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.requireAdministration(c, id); err != nil {
		return err
	}
	var p Project
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p.ID = id
	if err := h.svc.UpdateProject(c.Request().Context(), &p); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return c.JSON(http.StatusOK, events.ModifiedResource{ID: id})
}

func (h *Handler) DeleteProject(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.requireAdministration(c, id); err != nil {
		return err
	}
	if err := h.svc.DeleteProject(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "project not found")
	}
	return c.NoContent(http.StatusNoContent)
}

// -- ProjectMembership --

func (h *Handler) AddMember(c echo.Context) error {
	projectID, err := parseID(c, "projectId")
	if err != nil {
		return err
	}
	if err := h.requireAdministration(c, projectID); err != nil {
		return err
	}
	var m ProjectMembership
	if err := c.Bind(&m); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	m.ProjectID = projectID
	if err := h.svc.AddMember(c.Request().Context(), &m); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return c.JSON(http.StatusCreated, events.ModifiedResource{ID: m.ID})
}

func (h *Handler) GetMembership(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	m, err := h.svc.GetMembership(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "membership not found")
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) ListMemberships(c echo.Context) error {
	projectID, err := parseID(c, "projectId")
	if err != nil {
		return err
	}
	items, err := h.svc.ListMemberships(c.Request().Context(), projectID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) RemoveMember(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	m, err := h.svc.GetMembership(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "membership not found")
	}
	if err := h.requireAdministration(c, m.ProjectID); err != nil {
		return err
	}
	if err := h.svc.RemoveMember(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "membership not found")
	}
	return c.NoContent(http.StatusNoContent)
}

// -- ProjectDataManagerGrant --

func (h *Handler) CreateGrant(c echo.Context) error {
	projectID, err := parseID(c, "projectId")
	if err != nil {
		return err
	}
	if err := h.requireAdministration(c, projectID); err != nil {
		return err
	}
	var g ProjectDataManagerGrant
	if err := c.Bind(&g); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	g.ProjectID = projectID
	if err := h.svc.CreateGrant(c.Request().Context(), &g); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return c.JSON(http.StatusCreated, events.ModifiedResource{ID: g.ID})
}

func (h *Handler) GetGrant(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	g, err := h.svc.GetGrant(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "grant not found")
	}
	return c.JSON(http.StatusOK, g)
}

func (h *Handler) ListGrants(c echo.Context) error {
	projectID, err := parseID(c, "projectId")
	if err != nil {
		return err
	}
	items, err := h.svc.ListGrants(c.Request().Context(), projectID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}

// RevokeGrant answers 201 even though it modifies existing state: clients
// treat revocation as minting the revoked grant record.
func (h *Handler) RevokeGrant(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	g, err := h.svc.GetGrant(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "grant not found")
	}
	if err := h.requireAdministration(c, g.ProjectID); err != nil {
		return err
	}
	revoked, err := h.svc.RevokeGrant(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return c.JSON(http.StatusCreated, events.ModifiedResource{ID: revoked.ID})
}
