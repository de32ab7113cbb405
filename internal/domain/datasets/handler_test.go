package datasets

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/oncore/oncore/internal/platform/auth"
)

type fakeMembership struct {
	member  bool
	granted bool
}

func (f *fakeMembership) IsMember(ctx context.Context, projectID, userID uuid.UUID) (bool, error) {
	return f.member, nil
}

func (f *fakeMembership) HasValidGrant(ctx context.Context, projectID, userID uuid.UUID) (bool, error) {
	return f.granted, nil
}

func contributorContext() echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/datasets", nil)
	p := auth.Principal{UserID: uuid.New(), Username: "dm", AccessLevel: auth.LevelDataContributor}
	req = req.WithContext(auth.WithPrincipal(req.Context(), p))
	return e.NewContext(req, httptest.NewRecorder())
}

func TestRequireProjectAccessNonMemberForbidden(t *testing.T) {
	h := &Handler{membership: &fakeMembership{}}

	err := h.requireProjectAccess(contributorContext(), uuid.New())
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-member contributor, got %v", err)
	}
}

func TestRequireProjectAccessHonorsDataManagerGrant(t *testing.T) {
	h := &Handler{membership: &fakeMembership{granted: true}}

	if err := h.requireProjectAccess(contributorContext(), uuid.New()); err != nil {
		t.Fatalf("expected granted data manager to pass, got %v", err)
	}
}
