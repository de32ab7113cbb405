package identity

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
	api.POST("/auth/session", h.CreateSession)
	api.POST("/auth/provider/session", h.CreateProviderSession)

	view := api.Group("", auth.RequireCapability(auth.CanViewUsers))
	view.GET("/users", h.ListUsers)
	view.GET("/users/:id", h.GetUser)

	manage := api.Group("", auth.RequireCapability(auth.CanManageUsers))
	manage.POST("/users", h.CreateUser)
	manage.DELETE("/users/:id", h.DeleteUser)

	// Users may edit their own profile; managing others needs the capability.
	api.PUT("/users/:id", h.UpdateUser, auth.RequireAuthenticated())
	api.PUT("/users/:id/password", h.SetPassword, auth.RequireAuthenticated())

	h.events.RegisterHistoryRoutes(manage.Group("/users"), "User")
}

type sessionRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (h *Handler) CreateSession(c echo.Context) error {
	var req sessionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	session, err := h.svc.Login(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}
	return c.JSON(http.StatusCreated, session)
}

type providerSessionRequest struct {
	IDToken string `json:"id_token" validate:"required"`
}

func (h *Handler) CreateProviderSession(c echo.Context) error {
	var req providerSessionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	session, err := h.svc.ProviderLogin(c.Request().Context(), req.IDToken)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid provider token")
	}
	return c.JSON(http.StatusCreated, session)
}

type createUserRequest struct {
	User
	Password string `json:"password"`
}

func (h *Handler) CreateUser(c echo.Context) error {
	var req createUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateUser(c.Request().Context(), &req.User, req.Password); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, req.User)
}

func (h *Handler) GetUser(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	u, err := h.svc.GetUser(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "user not found")
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) ListUsers(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListUsers(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg, "/api/v1/users"))
}

func (h *Handler) UpdateUser(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p, _ := auth.PrincipalFromContext(c.Request().Context())
	if !p.AccessLevel.Has(auth.CanManageUsers) && !auth.IsRequestingUser(c, p) {
		return echo.NewHTTPError(http.StatusForbidden, "forbidden")
	}

	var u User
	if err := c.Bind(&u); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	u.ID = id
	// Self-service edits cannot raise the caller's own access level.
	if !p.AccessLevel.Has(auth.CanManageUsers) && u.AccessLevel > p.AccessLevel {
		return echo.NewHTTPError(http.StatusForbidden, "cannot raise own access level")
	}
	if err := h.svc.UpdateUser(c.Request().Context(), &u); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, u)
}

type setPasswordRequest struct {
	Password string `json:"password" validate:"required,min=8"`
}

func (h *Handler) SetPassword(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p, _ := auth.PrincipalFromContext(c.Request().Context())
	if !p.AccessLevel.Has(auth.CanManageUsers) && !auth.IsRequestingUser(c, p) {
		return echo.NewHTTPError(http.StatusForbidden, "forbidden")
	}

	var req setPasswordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.SetPassword(c.Request().Context(), id, req.Password); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "user not found")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) DeleteUser(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteUser(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "user not found")
	}
	return c.NoContent(http.StatusNoContent)
}
