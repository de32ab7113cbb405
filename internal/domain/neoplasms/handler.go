package neoplasms

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
	caseScoped := api.Group("/patient-cases/:caseId", auth.RequireCapability(auth.CanViewCases))
	caseScoped.GET("/neoplastic-entities", h.ListEntities)
	caseScoped.GET("/stagings", h.ListStagings)
	caseScoped.GET("/tumor-markers", h.ListTumorMarkers)
	caseScoped.GET("/risk-assessments", h.ListRiskAssessments)
	caseScoped.GET("/tumor-boards", h.ListTumorBoards)

	for _, res := range []struct {
		path   string
		name   string
		get    echo.HandlerFunc
		create echo.HandlerFunc
		update echo.HandlerFunc
		remove echo.HandlerFunc
	}{
		{"/neoplastic-entities", "NeoplasticEntity", h.GetEntity, h.CreateEntity, h.UpdateEntity, h.DeleteEntity},
		{"/stagings", "Staging", h.GetStaging, h.CreateStaging, h.UpdateStaging, h.DeleteStaging},
		{"/tumor-markers", "TumorMarker", h.GetTumorMarker, h.CreateTumorMarker, h.UpdateTumorMarker, h.DeleteTumorMarker},
		{"/risk-assessments", "RiskAssessment", h.GetRiskAssessment, h.CreateRiskAssessment, h.UpdateRiskAssessment, h.DeleteRiskAssessment},
		{"/tumor-boards", "TumorBoard", h.GetTumorBoard, h.CreateTumorBoard, h.UpdateTumorBoard, h.DeleteTumorBoard},
	} {
		view := api.Group(res.path, auth.RequireCapability(auth.CanViewCases))
		view.GET("/:id", res.get)

		manage := api.Group(res.path, auth.RequireCapability(auth.CanManageCases))
		manage.POST("", res.create)
		manage.PUT("/:id", res.update)
		manage.DELETE("/:id", res.remove)

		h.events.RegisterHistoryRoutes(manage, res.name)
	}
}

func parseID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func writeStatus(err error) *echo.HTTPError {
	if errors.Is(err, ErrPrimaryWithRelatedPrimary) || errors.Is(err, ErrRecommendationsOnBoard) {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return echo.NewHTTPError(http.StatusBadRequest, err.Error())
}

// -- NeoplasticEntity --

func (h *Handler) CreateEntity(c echo.Context) error {
	var ne NeoplasticEntity
	if err := c.Bind(&ne); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateEntity(c.Request().Context(), &ne); err != nil {
		return writeStatus(err)
	}
	return c.JSON(http.StatusCreated, events.ModifiedResource{ID: ne.ID})
}

func (h *Handler) GetEntity(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	anonymized, err := auth.AnonymizedParam(c)
	if err != nil {
		return err
	}
	ne, err := h.svc.GetEntity(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "neoplastic entity not found")
	}
	if anonymized {
		h.svc.anonymizeEntity(ne)
	}
	return c.JSON(http.StatusOK, ne)
}

func (h *Handler) ListEntities(c echo.Context) error {
	caseID, err := parseID(c, "caseId")
	if err != nil {
		return err
	}
	anonymized, err := auth.AnonymizedParam(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListEntities(c.Request().Context(), caseID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if anonymized {
		h.svc.anonymizeEntities(items)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg, c.Path()))
}

func (h *Handler) UpdateEntity(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var ne NeoplasticEntity
	if err := c.Bind(&ne); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ne.ID = id
	if err := h.svc.UpdateEntity(c.Request().Context(), &ne); err != nil {
		return writeStatus(err)
	}
	return c.JSON(http.StatusOK, events.ModifiedResource{ID: id})
}

func (h *Handler) DeleteEntity(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteEntity(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "neoplastic entity not found")
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Staging --

func (h *Handler) CreateStaging(c echo.Context) error {
	var st Staging
	if err := c.Bind(&st); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateStaging(c.Request().Context(), &st); err != nil {
		return writeStatus(err)
	}
	return c.JSON(http.StatusCreated, events.ModifiedResource{ID: st.ID})
}

func (h *Handler) GetStaging(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	anonymized, err := auth.AnonymizedParam(c)
	if err != nil {
		return err
	}
	st, err := h.svc.GetStaging(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "staging not found")
	}
	if anonymized {
		h.svc.anonymizeStaging(st)
	}
	return c.JSON(http.StatusOK, st)
}

func (h *Handler) ListStagings(c echo.Context) error {
	caseID, err := parseID(c, "caseId")
	if err != nil {
		return err
	}
	anonymized, err := auth.AnonymizedParam(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListStagings(c.Request().Context(), caseID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if anonymized {
		h.svc.anonymizeStagings(items)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg, c.Path()))
}

func (h *Handler) UpdateStaging(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var st Staging
	if err := c.Bind(&st); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	st.ID = id
	if err := h.svc.UpdateStaging(c.Request().Context(), &st); err != nil {
		return writeStatus(err)
	}
	return c.JSON(http.StatusOK, events.ModifiedResource{ID: id})
}

func (h *Handler) DeleteStaging(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteStaging(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "staging not found")
	}
	return c.NoContent(http.StatusNoContent)
}

// -- TumorMarker --

func (h *Handler) CreateTumorMarker(c echo.Context) error {
	var tm TumorMarker
	if err := c.Bind(&tm); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateTumorMarker(c.Request().Context(), &tm); err != nil {
		return writeStatus(err)
	}
	return c.JSON(http.StatusCreated, events.ModifiedResource{ID: tm.ID})
}

func (h *Handler) GetTumorMarker(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	anonymized, err := auth.AnonymizedParam(c)
	if err != nil {
		return err
	}
	tm, err := h.svc.GetTumorMarker(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "tumor marker not found")
	}
	if anonymized {
		h.svc.anonymizeTumorMarker(tm)
	}
	return c.JSON(http.StatusOK, tm)
}

func (h *Handler) ListTumorMarkers(c echo.Context) error {
	caseID, err := parseID(c, "caseId")
	if err != nil {
		return err
	}
	anonymized, err := auth.AnonymizedParam(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListTumorMarkers(c.Request().Context(), caseID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if anonymized {
		h.svc.anonymizeTumorMarkers(items)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg, c.Path()))
}

func (h *Handler) UpdateTumorMarker(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var tm TumorMarker
	if err := c.Bind(&tm); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	tm.ID = id
	if err := h.svc.UpdateTumorMarker(c.Request().Context(), &tm); err != nil {
		return writeStatus(err)
	}
	return c.JSON(http.StatusOK, events.ModifiedResource{ID: id})
}

func (h *Handler) DeleteTumorMarker(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteTumorMarker(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "tumor marker not found")
	}
	return c.NoContent(http.StatusNoContent)
}

// -- RiskAssessment --

func (h *Handler) CreateRiskAssessment(c echo.Context) error {
	var ra RiskAssessment
	if err := c.Bind(&ra); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateRiskAssessment(c.Request().Context(), &ra); err != nil {
		return writeStatus(err)
	}
	return c.JSON(http.StatusCreated, events.ModifiedResource{ID: ra.ID})
}

func (h *Handler) GetRiskAssessment(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	anonymized, err := auth.AnonymizedParam(c)
	if err != nil {
		return err
	}
	ra, err := h.svc.GetRiskAssessment(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "risk assessment not found")
	}
	if anonymized {
		h.svc.anonymizeRiskAssessment(ra)
	}
	return c.JSON(http.StatusOK, ra)
}

func (h *Handler) ListRiskAssessments(c echo.Context) error {
	caseID, err := parseID(c, "caseId")
	if err != nil {
		return err
	}
	anonymized, err := auth.AnonymizedParam(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListRiskAssessments(c.Request().Context(), caseID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if anonymized {
		h.svc.anonymizeRiskAssessments(items)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg, c.Path()))
}

func (h *Handler) UpdateRiskAssessment(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var ra RiskAssessment
	if err := c.Bind(&ra); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ra.ID = id
	if err := h.svc.UpdateRiskAssessment(c.Request().Context(), &ra); err != nil {
		return writeStatus(err)
	}
	return c.JSON(http.StatusOK, events.ModifiedResource{ID: id})
}

func (h *Handler) DeleteRiskAssessment(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteRiskAssessment(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "risk assessment not found")
	}
	return c.NoContent(http.StatusNoContent)
}

// -- TumorBoard --

func (h *Handler) CreateTumorBoard(c echo.Context) error {
	var tb TumorBoard
	if err := c.Bind(&tb); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateTumorBoard(c.Request().Context(), &tb); err != nil {
		return writeStatus(err)
	}
	return c.JSON(http.StatusCreated, events.ModifiedResource{ID: tb.ID})
}

func (h *Handler) GetTumorBoard(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	anonymized, err := auth.AnonymizedParam(c)
	if err != nil {
		return err
	}
	tb, err := h.svc.GetTumorBoard(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "tumor board not found")
	}
	if anonymized {
		h.svc.anonymizeTumorBoard(tb)
	}
	return c.JSON(http.StatusOK, tb)
}

func (h *Handler) ListTumorBoards(c echo.Context) error {
	caseID, err := parseID(c, "caseId")
	if err != nil {
		return err
	}
	anonymized, err := auth.AnonymizedParam(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListTumorBoards(c.Request().Context(), caseID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if anonymized {
		h.svc.anonymizeTumorBoards(items)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg, c.Path()))
}

func (h *Handler) UpdateTumorBoard(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var tb TumorBoard
	if err := c.Bind(&tb); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	tb.ID = id
	if err := h.svc.UpdateTumorBoard(c.Request().Context(), &tb); err != nil {
		return writeStatus(err)
	}
	return c.JSON(http.StatusOK, events.ModifiedResource{ID: id})
}

func (h *Handler) DeleteTumorBoard(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteTumorBoard(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "tumor board not found")
	}
	return c.NoContent(http.StatusNoContent)
}
