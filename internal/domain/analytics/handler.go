package analytics

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"

	"github.com/oncore/oncore/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/cohorts/:id", auth.RequireCapability(auth.CanAnalyzeData))
	g.GET("/overall-survival-curve", h.OverallSurvivalCurve)
	g.GET("/progression-free-survival-curve/:therapyLineLabel", h.ProgressionFreeSurvivalCurve)
	g.GET("/progression-free-survival/:therapyLineLabel/drug-combinations", h.PFSByDrugCombination)
	g.GET("/progression-free-survival/:therapyLineLabel/therapy-classifications", h.PFSByTherapyClassification)
	g.GET("/therapy-responses/:therapyLineLabel", h.ResponseDistribution)
	g.GET("/genomics", h.GeneCounts)
}

func parseID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func (h *Handler) OverallSurvivalCurve(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	curve, err := h.svc.OverallSurvivalCurve(c.Request().Context(), id)
	if err != nil {
		return analysisError(err)
	}
	return c.JSON(http.StatusOK, curve)
}

func (h *Handler) ProgressionFreeSurvivalCurve(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	curve, err := h.svc.ProgressionFreeSurvivalCurve(c.Request().Context(), id, c.Param("therapyLineLabel"))
	if err != nil {
		return analysisError(err)
	}
	return c.JSON(http.StatusOK, curve)
}

func (h *Handler) PFSByDrugCombination(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	buckets, err := h.svc.PFSByDrugCombination(c.Request().Context(), id, c.Param("therapyLineLabel"))
	if err != nil {
		return analysisError(err)
	}
	return c.JSON(http.StatusOK, buckets)
}

func (h *Handler) PFSByTherapyClassification(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	buckets, err := h.svc.PFSByTherapyClassification(c.Request().Context(), id, c.Param("therapyLineLabel"))
	if err != nil {
		return analysisError(err)
	}
	return c.JSON(http.StatusOK, buckets)
}

func (h *Handler) ResponseDistribution(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	shares, err := h.svc.ResponseDistribution(c.Request().Context(), id, c.Param("therapyLineLabel"))
	if err != nil {
		return analysisError(err)
	}
	return c.JSON(http.StatusOK, shares)
}

func (h *Handler) GeneCounts(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	counts, err := h.svc.GeneCounts(c.Request().Context(), id)
	if err != nil {
		return analysisError(err)
	}
	return c.JSON(http.StatusOK, counts)
}

// analysisError keeps the cohort surface's contract: unknown cohort is 404,
// anything the data cannot answer (empty cohort, no observations, malformed
// line label) is 422.
func analysisError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return echo.NewHTTPError(http.StatusNotFound, "cohort not found")
	}
	return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
}
