package therapies

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
	caseScoped.GET("/systemic-therapies", h.ListSystemicTherapies)
	caseScoped.GET("/radiotherapies", h.ListRadiotherapies)
	caseScoped.GET("/surgeries", h.ListSurgeries)
	caseScoped.GET("/therapy-lines", h.ListTherapyLines)

	for _, res := range []struct {
		path   string
		name   string
		get    echo.HandlerFunc
		create echo.HandlerFunc
		update echo.HandlerFunc
		remove echo.HandlerFunc
	}{
		{"/systemic-therapies", systemicResourceType, h.GetSystemicTherapy, h.CreateSystemicTherapy, h.UpdateSystemicTherapy, h.DeleteSystemicTherapy},
		{"/radiotherapies", radiotherapyResourceType, h.GetRadiotherapy, h.CreateRadiotherapy, h.UpdateRadiotherapy, h.DeleteRadiotherapy},
		{"/surgeries", surgeryResourceType, h.GetSurgery, h.CreateSurgery, h.UpdateSurgery, h.DeleteSurgery},
	} {
		view := api.Group(res.path, auth.RequireCapability(auth.CanViewCases))
		view.GET("/:id", res.get)

		manage := api.Group(res.path, auth.RequireCapability(auth.CanManageCases))
		manage.POST("", res.create)
		manage.PUT("/:id", res.update)
		manage.DELETE("/:id", res.remove)

		h.events.RegisterHistoryRoutes(manage, res.name)
	}

	// Therapy lines are derived, so only reads are exposed.
	lines := api.Group("/therapy-lines", auth.RequireCapability(auth.CanViewCases))
	lines.GET("/:id", h.GetTherapyLine)

	therapyScoped := api.Group("/systemic-therapies/:therapyId", auth.RequireCapability(auth.CanViewCases))
	therapyScoped.GET("/medications", h.ListMedications)

	medications := api.Group("/systemic-therapies/:therapyId/medications", auth.RequireCapability(auth.CanManageCases))
	medications.POST("", h.CreateMedication)

	medication := api.Group("/medications")
	medication.GET("/:id", h.GetMedication, auth.RequireCapability(auth.CanViewCases))
	medicationManage := api.Group("/medications", auth.RequireCapability(auth.CanManageCases))
	medicationManage.PUT("/:id", h.UpdateMedication)
	medicationManage.DELETE("/:id", h.DeleteMedication)
	h.events.RegisterHistoryRoutes(medicationManage, medicationResourceType)

	radioScoped := api.Group("/radiotherapies/:radiotherapyId", auth.RequireCapability(auth.CanViewCases))
	radioScoped.GET("/dosages", h.ListDosages)
	radioScoped.GET("/settings", h.ListSettings)

	radioChildren := api.Group("/radiotherapies/:radiotherapyId", auth.RequireCapability(auth.CanManageCases))
	radioChildren.POST("/dosages", h.CreateDosage)
	radioChildren.POST("/settings", h.CreateSetting)

	dosages := api.Group("/dosages")
	dosages.GET("/:id", h.GetDosage, auth.RequireCapability(auth.CanViewCases))
	dosageManage := api.Group("/dosages", auth.RequireCapability(auth.CanManageCases))
	dosageManage.PUT("/:id", h.UpdateDosage)
	dosageManage.DELETE("/:id", h.DeleteDosage)
	h.events.RegisterHistoryRoutes(dosageManage, dosageResourceType)

	settings := api.Group("/settings")
	settings.GET("/:id", h.GetSetting, auth.RequireCapability(auth.CanViewCases))
	settingManage := api.Group("/settings", auth.RequireCapability(auth.CanManageCases))
	settingManage.PUT("/:id", h.UpdateSetting)
	settingManage.DELETE("/:id", h.DeleteSetting)
	h.events.RegisterHistoryRoutes(settingManage, settingResourceType)
}

func parseID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

// -- SystemicTherapy --

func (h *Handler) CreateSystemicTherapy(c echo.Context) error {
	var st SystemicTherapy
	if err := c.Bind(&st); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateSystemicTherapy(c.Request().Context(), &st); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return c.JSON(http.StatusCreated, events.ModifiedResource{ID: st.ID})
}

func (h *Handler) GetSystemicTherapy(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	anonymized, err := auth.AnonymizedParam(c)
	if err != nil {
		return err
	}
	st, err := h.svc.GetSystemicTherapy(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "systemic therapy not found")
	}
	if anonymized {
		h.svc.anonymizeSystemicTherapy(st)
	}
	return c.JSON(http.StatusOK, st)
}

func (h *Handler) ListSystemicTherapies(c echo.Context) error {
	caseID, err := parseID(c, "caseId")
	if err != nil {
		return err
	}
	anonymized, err := auth.AnonymizedParam(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListSystemicTherapies(c.Request().Context(), caseID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if anonymized {
		h.svc.anonymizeSystemicTherapies(items)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg, c.Path()))
}

func (h *Handler) UpdateSystemicTherapy(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var st SystemicTherapy
	if err := c.Bind(&st); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	st.ID = id
	if err := h.svc.UpdateSystemicTherapy(c.Request().Context(), &st); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return c.JSON(http.StatusOK, events.ModifiedResource{ID: id})
}

func (h *Handler) DeleteSystemicTherapy(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteSystemicTherapy(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "systemic therapy not found")
	}
	return c.NoContent(http.StatusNoContent)
}

// -- SystemicTherapyMedication --

func (h *Handler) CreateMedication(c echo.Context) error {
	therapyID, err := parseID(c, "therapyId")
	if err != nil {
		return err
	}
	var m SystemicTherapyMedication
	if err := c.Bind(&m); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	m.TherapyID = therapyID
	if err := h.svc.CreateMedication(c.Request().Context(), &m); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return c.JSON(http.StatusCreated, events.ModifiedResource{ID: m.ID})
}

func (h *Handler) GetMedication(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	m, err := h.svc.GetMedication(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "medication not found")
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) ListMedications(c echo.Context) error {
	therapyID, err := parseID(c, "therapyId")
	if err != nil {
		return err
	}
	items, err := h.svc.ListMedications(c.Request().Context(), therapyID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) UpdateMedication(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var m SystemicTherapyMedication
	if err := c.Bind(&m); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	m.ID = id
	if err := h.svc.UpdateMedication(c.Request().Context(), &m); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return c.JSON(http.StatusOK, events.ModifiedResource{ID: id})
}

func (h *Handler) DeleteMedication(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteMedication(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "medication not found")
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Radiotherapy --

func (h *Handler) CreateRadiotherapy(c echo.Context) error {
	var rt Radiotherapy
	if err := c.Bind(&rt); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateRadiotherapy(c.Request().Context(), &rt); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return c.JSON(http.StatusCreated, events.ModifiedResource{ID: rt.ID})
}

func (h *Handler) GetRadiotherapy(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	anonymized, err := auth.AnonymizedParam(c)
	if err != nil {
		return err
	}
	rt, err := h.svc.GetRadiotherapy(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "radiotherapy not found")
	}
	if anonymized {
		h.svc.anonymizeRadiotherapy(rt)
	}
	return c.JSON(http.StatusOK, rt)
}

func (h *Handler) ListRadiotherapies(c echo.Context) error {
	caseID, err := parseID(c, "caseId")
	if err != nil {
		return err
	}
	anonymized, err := auth.AnonymizedParam(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListRadiotherapies(c.Request().Context(), caseID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if anonymized {
		h.svc.anonymizeRadiotherapies(items)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg, c.Path()))
}

func (h *Handler) UpdateRadiotherapy(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var rt Radiotherapy
	if err := c.Bind(&rt); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	rt.ID = id
	if err := h.svc.UpdateRadiotherapy(c.Request().Context(), &rt); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return c.JSON(http.StatusOK, events.ModifiedResource{ID: id})
}

func (h *Handler) DeleteRadiotherapy(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteRadiotherapy(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "radiotherapy not found")
	}
	return c.NoContent(http.StatusNoContent)
}

// -- RadiotherapyDosage --

func (h *Handler) CreateDosage(c echo.Context) error {
	radiotherapyID, err := parseID(c, "radiotherapyId")
	if err != nil {
		return err
	}
	var d RadiotherapyDosage
	if err := c.Bind(&d); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	d.RadiotherapyID = radiotherapyID
	if err := h.svc.CreateDosage(c.Request().Context(), &d); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return c.JSON(http.StatusCreated, events.ModifiedResource{ID: d.ID})
}

func (h *Handler) GetDosage(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	d, err := h.svc.GetDosage(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "dosage not found")
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) ListDosages(c echo.Context) error {
	radiotherapyID, err := parseID(c, "radiotherapyId")
	if err != nil {
		return err
	}
	items, err := h.svc.ListDosages(c.Request().Context(), radiotherapyID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) UpdateDosage(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var d RadiotherapyDosage
	if err := c.Bind(&d); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	d.ID = id
	if err := h.svc.UpdateDosage(c.Request().Context(), &d); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return c.JSON(http.StatusOK, events.ModifiedResource{ID: id})
}

func (h *Handler) DeleteDosage(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteDosage(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "dosage not found")
	}
	return c.NoContent(http.StatusNoContent)
}

// -- RadiotherapySetting --

func (h *Handler) CreateSetting(c echo.Context) error {
	radiotherapyID, err := parseID(c, "radiotherapyId")
	if err != nil {
		return err
	}
	var s RadiotherapySetting
	if err := c.Bind(&s); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	s.RadiotherapyID = radiotherapyID
	if err := h.svc.CreateSetting(c.Request().Context(), &s); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return c.JSON(http.StatusCreated, events.ModifiedResource{ID: s.ID})
}

func (h *Handler) GetSetting(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	s, err := h.svc.GetSetting(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "setting not found")
	}
	return c.JSON(http.StatusOK, s)
}

func (h *Handler) ListSettings(c echo.Context) error {
	radiotherapyID, err := parseID(c, "radiotherapyId")
	if err != nil {
		return err
	}
	items, err := h.svc.ListSettings(c.Request().Context(), radiotherapyID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) UpdateSetting(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var s RadiotherapySetting
	if err := c.Bind(&s); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	s.ID = id
	if err := h.svc.UpdateSetting(c.Request().Context(), &s); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return c.JSON(http.StatusOK, events.ModifiedResource{ID: id})
}

func (h *Handler) DeleteSetting(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteSetting(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "setting not found")
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Surgery --

func (h *Handler) CreateSurgery(c echo.Context) error {
	var sg Surgery
	if err := c.Bind(&sg); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateSurgery(c.Request().Context(), &sg); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return c.JSON(http.StatusCreated, events.ModifiedResource{ID: sg.ID})
}

func (h *Handler) GetSurgery(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	anonymized, err := auth.AnonymizedParam(c)
	if err != nil {
		return err
	}
	sg, err := h.svc.GetSurgery(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "surgery not found")
	}
	if anonymized {
		h.svc.anonymizeSurgery(sg)
	}
	return c.JSON(http.StatusOK, sg)
}

func (h *Handler) ListSurgeries(c echo.Context) error {
	caseID, err := parseID(c, "caseId")
	if err != nil {
		return err
	}
	anonymized, err := auth.AnonymizedParam(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListSurgeries(c.Request().Context(), caseID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if anonymized {
		h.svc.anonymizeSurgeries(items)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg, c.Path()))
}

func (h *Handler) UpdateSurgery(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var sg Surgery
	if err := c.Bind(&sg); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	sg.ID = id
	if err := h.svc.UpdateSurgery(c.Request().Context(), &sg); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return c.JSON(http.StatusOK, events.ModifiedResource{ID: id})
}

func (h *Handler) DeleteSurgery(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteSurgery(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "surgery not found")
	}
	return c.NoContent(http.StatusNoContent)
}

// -- TherapyLine --

func (h *Handler) GetTherapyLine(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	anonymized, err := auth.AnonymizedParam(c)
	if err != nil {
		return err
	}
	line, err := h.svc.GetTherapyLine(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "therapy line not found")
	}
	if anonymized {
		h.svc.anonymizeTherapyLine(line)
	}
	return c.JSON(http.StatusOK, line)
}

func (h *Handler) ListTherapyLines(c echo.Context) error {
	caseID, err := parseID(c, "caseId")
	if err != nil {
		return err
	}
	anonymized, err := auth.AnonymizedParam(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListTherapyLines(c.Request().Context(), caseID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if anonymized {
		h.svc.anonymizeTherapyLines(items)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg, c.Path()))
}
