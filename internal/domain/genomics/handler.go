package genomics

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
	caseScoped := api.Group("/patient-cases/:caseId", auth.RequireCapability(auth.CanViewCases))
	caseScoped.GET("/genomic-variants", h.ListVariants)
	caseScoped.GET("/genomic-signatures", h.ListSignatures)

	variantView := api.Group("/genomic-variants", auth.RequireCapability(auth.CanViewCases))
	variantView.GET("/:id", h.GetVariant)
	variantManage := api.Group("/genomic-variants", auth.RequireCapability(auth.CanManageCases))
	variantManage.POST("", h.CreateVariant)
	variantManage.PUT("/:id", h.UpdateVariant)
	variantManage.DELETE("/:id", h.DeleteVariant)
	h.events.RegisterHistoryRoutes(variantManage, "GenomicVariant")

	signatureView := api.Group("/genomic-signatures", auth.RequireCapability(auth.CanViewCases))
	signatureView.GET("/:id", h.GetSignature)
	signatureManage := api.Group("/genomic-signatures", auth.RequireCapability(auth.CanManageCases))
	signatureManage.POST("", h.CreateSignature)
	signatureManage.PUT("/:id", h.UpdateSignature)
	signatureManage.DELETE("/:id", h.DeleteSignature)
	h.events.RegisterHistoryRoutes(signatureManage, "GenomicSignature")
}

func parseID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func (h *Handler) CreateVariant(c echo.Context) error {
	var gv GenomicVariant
	if err := c.Bind(&gv); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateVariant(c.Request().Context(), &gv); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, events.ModifiedResource{ID: gv.ID})
}

func (h *Handler) GetVariant(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	anonymized, err := auth.AnonymizedParam(c)
	if err != nil {
		return err
	}
	gv, err := h.svc.GetVariant(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "genomic variant not found")
	}
	if anonymized {
		h.svc.anonymizeVariant(gv)
	}
	return c.JSON(http.StatusOK, gv)
}

func (h *Handler) ListVariants(c echo.Context) error {
	caseID, err := parseID(c, "caseId")
	if err != nil {
		return err
	}
	anonymized, err := auth.AnonymizedParam(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListVariants(c.Request().Context(), caseID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if anonymized {
		h.svc.anonymizeVariants(items)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg, c.Path()))
}

func (h *Handler) UpdateVariant(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var gv GenomicVariant
	if err := c.Bind(&gv); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	gv.ID = id
	if err := h.svc.UpdateVariant(c.Request().Context(), &gv); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, events.ModifiedResource{ID: id})
}

func (h *Handler) DeleteVariant(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteVariant(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "genomic variant not found")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) CreateSignature(c echo.Context) error {
	var gs GenomicSignature
	if err := c.Bind(&gs); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateSignature(c.Request().Context(), &gs); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, events.ModifiedResource{ID: gs.ID})
}

func (h *Handler) GetSignature(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	anonymized, err := auth.AnonymizedParam(c)
	if err != nil {
		return err
	}
	gs, err := h.svc.GetSignature(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "genomic signature not found")
	}
	if anonymized {
		h.svc.anonymizeSignature(gs)
	}
	return c.JSON(http.StatusOK, gs)
}

func (h *Handler) ListSignatures(c echo.Context) error {
	caseID, err := parseID(c, "caseId")
	if err != nil {
		return err
	}
	anonymized, err := auth.AnonymizedParam(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListSignatures(c.Request().Context(), caseID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if anonymized {
		h.svc.anonymizeSignatures(items)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg, c.Path()))
}

func (h *Handler) UpdateSignature(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var gs GenomicSignature
	if err := c.Bind(&gs); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	gs.ID = id
	if err := h.svc.UpdateSignature(c.Request().Context(), &gs); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, events.ModifiedResource{ID: id})
}

func (h *Handler) DeleteSignature(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteSignature(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "genomic signature not found")
	}
	return c.NoContent(http.StatusNoContent)
}
