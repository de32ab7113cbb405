package assessments

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
	caseScoped.GET("/adverse-events", h.ListAdverseEvents)
	caseScoped.GET("/treatment-responses", h.ListTreatmentResponses)
	caseScoped.GET("/performance-statuses", h.ListPerformanceStatuses)
	caseScoped.GET("/comorbidities-assessments", h.ListComorbiditiesAssessments)
	caseScoped.GET("/vitals", h.ListVitals)
	caseScoped.GET("/lifestyles", h.ListLifestyles)
	caseScoped.GET("/family-histories", h.ListFamilyHistories)

	for _, res := range []struct {
		path   string
		name   string
		get    echo.HandlerFunc
		create echo.HandlerFunc
		update echo.HandlerFunc
		remove echo.HandlerFunc
	}{
		{"/adverse-events", adverseEventResourceType, h.GetAdverseEvent, h.CreateAdverseEvent, h.UpdateAdverseEvent, h.DeleteAdverseEvent},
		{"/treatment-responses", treatmentResponseResourceType, h.GetTreatmentResponse, h.CreateTreatmentResponse, h.UpdateTreatmentResponse, h.DeleteTreatmentResponse},
		{"/performance-statuses", performanceStatusResourceType, h.GetPerformanceStatus, h.CreatePerformanceStatus, h.UpdatePerformanceStatus, h.DeletePerformanceStatus},
		{"/comorbidities-assessments", comorbiditiesResourceType, h.GetComorbiditiesAssessment, h.CreateComorbiditiesAssessment, h.UpdateComorbiditiesAssessment, h.DeleteComorbiditiesAssessment},
		{"/vitals", vitalsResourceType, h.GetVitals, h.CreateVitals, h.UpdateVitals, h.DeleteVitals},
		{"/lifestyles", lifestyleResourceType, h.GetLifestyle, h.CreateLifestyle, h.UpdateLifestyle, h.DeleteLifestyle},
		{"/family-histories", familyHistoryResourceType, h.GetFamilyHistory, h.CreateFamilyHistory, h.UpdateFamilyHistory, h.DeleteFamilyHistory},
	} {
		view := api.Group(res.path, auth.RequireCapability(auth.CanViewCases))
		view.GET("/:id", res.get)

		manage := api.Group(res.path, auth.RequireCapability(auth.CanManageCases))
		manage.POST("", res.create)
		manage.PUT("/:id", res.update)
		manage.DELETE("/:id", res.remove)

		h.events.RegisterHistoryRoutes(manage, res.name)
	}

	eventScoped := api.Group("/adverse-events/:adverseEventId", auth.RequireCapability(auth.CanViewCases))
	eventScoped.GET("/suspected-causes", h.ListSuspectedCauses)
	eventScoped.GET("/mitigations", h.ListMitigations)

	eventChildren := api.Group("/adverse-events/:adverseEventId", auth.RequireCapability(auth.CanManageCases))
	eventChildren.POST("/suspected-causes", h.CreateSuspectedCause)
	eventChildren.POST("/mitigations", h.CreateMitigation)

	causes := api.Group("/suspected-causes")
	causes.GET("/:id", h.GetSuspectedCause, auth.RequireCapability(auth.CanViewCases))
	causeManage := api.Group("/suspected-causes", auth.RequireCapability(auth.CanManageCases))
	causeManage.PUT("/:id", h.UpdateSuspectedCause)
	causeManage.DELETE("/:id", h.DeleteSuspectedCause)
	h.events.RegisterHistoryRoutes(causeManage, suspectedCauseResourceType)

	mitigations := api.Group("/mitigations")
	mitigations.GET("/:id", h.GetMitigation, auth.RequireCapability(auth.CanViewCases))
	mitigationManage := api.Group("/mitigations", auth.RequireCapability(auth.CanManageCases))
	mitigationManage.PUT("/:id", h.UpdateMitigation)
	mitigationManage.DELETE("/:id", h.DeleteMitigation)
	h.events.RegisterHistoryRoutes(mitigationManage, mitigationResourceType)
}

func parseID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

// -- AdverseEvent --

func (h *Handler) CreateAdverseEvent(c echo.Context) error {
	var ae AdverseEvent
	if err := c.Bind(&ae); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateAdverseEvent(c.Request().Context(), &ae); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return c.JSON(http.StatusCreated, events.ModifiedResource{ID: ae.ID})
}

func (h *Handler) GetAdverseEvent(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	anonymized, err := auth.AnonymizedParam(c)
	if err != nil {
		return err
	}
	ae, err := h.svc.GetAdverseEvent(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "adverse event not found")
	}
	if anonymized {
		h.svc.anonymizeAdverseEvent(ae)
	}
	return c.JSON(http.StatusOK, ae)
}

func (h *Handler) ListAdverseEvents(c echo.Context) error {
	caseID, err := parseID(c, "caseId")
	if err != nil {
		return err
	}
	anonymized, err := auth.AnonymizedParam(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListAdverseEvents(c.Request().Context(), caseID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if anonymized {
		h.svc.anonymizeAdverseEvents(items)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg, c.Path()))
}

func (h *Handler) UpdateAdverseEvent(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var ae AdverseEvent
	if err := c.Bind(&ae); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ae.ID = id
	if err := h.svc.UpdateAdverseEvent(c.Request().Context(), &ae); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return c.JSON(http.StatusOK, events.ModifiedResource{ID: id})
}

func (h *Handler) DeleteAdverseEvent(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteAdverseEvent(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "adverse event not found")
	}
	return c.NoContent(http.StatusNoContent)
}

// -- SuspectedCause --

func (h *Handler) CreateSuspectedCause(c echo.Context) error {
	adverseEventID, err := parseID(c, "adverseEventId")
	if err != nil {
		return err
	}
	var sc SuspectedCause
	if err := c.Bind(&sc); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	sc.AdverseEventID = adverseEventID
	if err := h.svc.CreateSuspectedCause(c.Request().Context(), &sc); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return c.JSON(http.StatusCreated, events.ModifiedResource{ID: sc.ID})
}

func (h *Handler) GetSuspectedCause(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	sc, err := h.svc.GetSuspectedCause(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "suspected cause not found")
	}
	return c.JSON(http.StatusOK, sc)
}

func (h *Handler) ListSuspectedCauses(c echo.Context) error {
	adverseEventID, err := parseID(c, "adverseEventId")
	if err != nil {
		return err
	}
	items, err := h.svc.ListSuspectedCauses(c.Request().Context(), adverseEventID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) UpdateSuspectedCause(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var sc SuspectedCause
	if err := c.Bind(&sc); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	sc.ID = id
	if err := h.svc.UpdateSuspectedCause(c.Request().Context(), &sc); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return c.JSON(http.StatusOK, events.ModifiedResource{ID: id})
}

func (h *Handler) DeleteSuspectedCause(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteSuspectedCause(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "suspected cause not found")
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Mitigation --

func (h *Handler) CreateMitigation(c echo.Context) error {
	adverseEventID, err := parseID(c, "adverseEventId")
	if err != nil {
		return err
	}
	var m Mitigation
	if err := c.Bind(&m); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	m.AdverseEventID = adverseEventID
	if err := h.svc.CreateMitigation(c.Request().Context(), &m); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return c.JSON(http.StatusCreated, events.ModifiedResource{ID: m.ID})
}

func (h *Handler) GetMitigation(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	anonymized, err := auth.AnonymizedParam(c)
	if err != nil {
		return err
	}
	m, err := h.svc.GetMitigation(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "mitigation not found")
	}
	if anonymized {
		h.svc.anonymizeMitigation(m)
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) ListMitigations(c echo.Context) error {
	adverseEventID, err := parseID(c, "adverseEventId")
	if err != nil {
		return err
	}
	anonymized, err := auth.AnonymizedParam(c)
	if err != nil {
		return err
	}
	items, err := h.svc.ListMitigations(c.Request().Context(), adverseEventID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if anonymized {
		h.svc.anonymizeMitigations(items)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) UpdateMitigation(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var m Mitigation
	if err := c.Bind(&m); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	m.ID = id
	if err := h.svc.UpdateMitigation(c.Request().Context(), &m); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return c.JSON(http.StatusOK, events.ModifiedResource{ID: id})
}

func (h *Handler) DeleteMitigation(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteMitigation(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "mitigation not found")
	}
	return c.NoContent(http.StatusNoContent)
}

// -- TreatmentResponse --

func (h *Handler) CreateTreatmentResponse(c echo.Context) error {
	var tr TreatmentResponse
	if err := c.Bind(&tr); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateTreatmentResponse(c.Request().Context(), &tr); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return c.JSON(http.StatusCreated, events.ModifiedResource{ID: tr.ID})
}

func (h *Handler) GetTreatmentResponse(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	anonymized, err := auth.AnonymizedParam(c)
	if err != nil {
		return err
	}
	tr, err := h.svc.GetTreatmentResponse(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "treatment response not found")
	}
	if anonymized {
		h.svc.anonymizeTreatmentResponse(tr)
	}
	return c.JSON(http.StatusOK, tr)
}

func (h *Handler) ListTreatmentResponses(c echo.Context) error {
	caseID, err := parseID(c, "caseId")
	if err != nil {
		return err
	}
	anonymized, err := auth.AnonymizedParam(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListTreatmentResponses(c.Request().Context(), caseID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if anonymized {
		h.svc.anonymizeTreatmentResponses(items)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg, c.Path()))
}

func (h *Handler) UpdateTreatmentResponse(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var tr TreatmentResponse
	if err := c.Bind(&tr); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	tr.ID = id
	if err := h.svc.UpdateTreatmentResponse(c.Request().Context(), &tr); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return c.JSON(http.StatusOK, events.ModifiedResource{ID: id})
}

func (h *Handler) DeleteTreatmentResponse(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteTreatmentResponse(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "treatment response not found")
	}
	return c.NoContent(http.StatusNoContent)
}

// -- PerformanceStatus --

func (h *Handler) CreatePerformanceStatus(c echo.Context) error {
	var ps PerformanceStatus
	if err := c.Bind(&ps); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreatePerformanceStatus(c.Request().Context(), &ps); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return c.JSON(http.StatusCreated, events.ModifiedResource{ID: ps.ID})
}

func (h *Handler) GetPerformanceStatus(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	anonymized, err := auth.AnonymizedParam(c)
	if err != nil {
		return err
	}
	ps, err := h.svc.GetPerformanceStatus(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "performance status not found")
	}
	if anonymized {
		h.svc.anonymizePerformanceStatus(ps)
	}
	return c.JSON(http.StatusOK, ps)
}

func (h *Handler) ListPerformanceStatuses(c echo.Context) error {
	caseID, err := parseID(c, "caseId")
	if err != nil {
		return err
	}
	anonymized, err := auth.AnonymizedParam(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListPerformanceStatuses(c.Request().Context(), caseID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if anonymized {
		h.svc.anonymizePerformanceStatuses(items)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg, c.Path()))
}

func (h *Handler) UpdatePerformanceStatus(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var ps PerformanceStatus
	if err := c.Bind(&ps); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ps.ID = id
	if err := h.svc.UpdatePerformanceStatus(c.Request().Context(), &ps); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return c.JSON(http.StatusOK, events.ModifiedResource{ID: id})
}

func (h *Handler) DeletePerformanceStatus(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeletePerformanceStatus(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "performance status not found")
	}
	return c.NoContent(http.StatusNoContent)
}

// -- ComorbiditiesAssessment --

func (h *Handler) CreateComorbiditiesAssessment(c echo.Context) error {
	var ca ComorbiditiesAssessment
	if err := c.Bind(&ca); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateComorbiditiesAssessment(c.Request().Context(), &ca); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return c.JSON(http.StatusCreated, events.ModifiedResource{ID: ca.ID})
}

func (h *Handler) GetComorbiditiesAssessment(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	anonymized, err := auth.AnonymizedParam(c)
	if err != nil {
		return err
	}
	ca, err := h.svc.GetComorbiditiesAssessment(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "comorbidities assessment not found")
	}
	if anonymized {
		h.svc.anonymizeComorbiditiesAssessment(ca)
	}
	return c.JSON(http.StatusOK, ca)
}

func (h *Handler) ListComorbiditiesAssessments(c echo.Context) error {
	caseID, err := parseID(c, "caseId")
	if err != nil {
		return err
	}
	anonymized, err := auth.AnonymizedParam(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListComorbiditiesAssessments(c.Request().Context(), caseID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if anonymized {
		h.svc.anonymizeComorbiditiesAssessments(items)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg, c.Path()))
}

func (h *Handler) UpdateComorbiditiesAssessment(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var ca ComorbiditiesAssessment
	if err := c.Bind(&ca); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ca.ID = id
	if err := h.svc.UpdateComorbiditiesAssessment(c.Request().Context(), &ca); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return c.JSON(http.StatusOK, events.ModifiedResource{ID: id})
}

func (h *Handler) DeleteComorbiditiesAssessment(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteComorbiditiesAssessment(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "comorbidities assessment not found")
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Vitals --

func (h *Handler) CreateVitals(c echo.Context) error {
	var v Vitals
	if err := c.Bind(&v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateVitals(c.Request().Context(), &v); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return c.JSON(http.StatusCreated, events.ModifiedResource{ID: v.ID})
}

func (h *Handler) GetVitals(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	anonymized, err := auth.AnonymizedParam(c)
	if err != nil {
		return err
	}
	v, err := h.svc.GetVitals(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "vitals not found")
	}
	if anonymized {
		h.svc.anonymizeVitals(v)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) ListVitals(c echo.Context) error {
	caseID, err := parseID(c, "caseId")
	if err != nil {
		return err
	}
	anonymized, err := auth.AnonymizedParam(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListVitals(c.Request().Context(), caseID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if anonymized {
		h.svc.anonymizeVitalsList(items)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg, c.Path()))
}

func (h *Handler) UpdateVitals(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var v Vitals
	if err := c.Bind(&v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	v.ID = id
	if err := h.svc.UpdateVitals(c.Request().Context(), &v); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return c.JSON(http.StatusOK, events.ModifiedResource{ID: id})
}

func (h *Handler) DeleteVitals(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteVitals(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "vitals not found")
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Lifestyle --

func (h *Handler) CreateLifestyle(c echo.Context) error {
	var l Lifestyle
	if err := c.Bind(&l); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateLifestyle(c.Request().Context(), &l); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return c.JSON(http.StatusCreated, events.ModifiedResource{ID: l.ID})
}

func (h *Handler) GetLifestyle(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	anonymized, err := auth.AnonymizedParam(c)
	if err != nil {
		return err
	}
	l, err := h.svc.GetLifestyle(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "lifestyle not found")
	}
	if anonymized {
		h.svc.anonymizeLifestyle(l)
	}
	return c.JSON(http.StatusOK, l)
}

func (h *Handler) ListLifestyles(c echo.Context) error {
	caseID, err := parseID(c, "caseId")
	if err != nil {
		return err
	}
	anonymized, err := auth.AnonymizedParam(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListLifestyles(c.Request().Context(), caseID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if anonymized {
		h.svc.anonymizeLifestyles(items)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg, c.Path()))
}

func (h *Handler) UpdateLifestyle(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var l Lifestyle
	if err := c.Bind(&l); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	l.ID = id
	if err := h.svc.UpdateLifestyle(c.Request().Context(), &l); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return c.JSON(http.StatusOK, events.ModifiedResource{ID: id})
}

func (h *Handler) DeleteLifestyle(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteLifestyle(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "lifestyle not found")
	}
	return c.NoContent(http.StatusNoContent)
}

// -- FamilyHistory --

func (h *Handler) CreateFamilyHistory(c echo.Context) error {
	var fh FamilyHistory
	if err := c.Bind(&fh); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateFamilyHistory(c.Request().Context(), &fh); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return c.JSON(http.StatusCreated, events.ModifiedResource{ID: fh.ID})
}

func (h *Handler) GetFamilyHistory(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	fh, err := h.svc.GetFamilyHistory(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "family history not found")
	}
	return c.JSON(http.StatusOK, fh)
}

func (h *Handler) ListFamilyHistories(c echo.Context) error {
	caseID, err := parseID(c, "caseId")
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListFamilyHistories(c.Request().Context(), caseID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg, c.Path()))
}

func (h *Handler) UpdateFamilyHistory(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var fh FamilyHistory
	if err := c.Bind(&fh); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	fh.ID = id
	if err := h.svc.UpdateFamilyHistory(c.Request().Context(), &fh); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return c.JSON(http.StatusOK, events.ModifiedResource{ID: id})
}

func (h *Handler) DeleteFamilyHistory(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteFamilyHistory(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "family history not found")
	}
	return c.NoContent(http.StatusNoContent)
}
