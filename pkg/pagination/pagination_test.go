package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func contextFor(t *testing.T, query string) echo.Context {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?"+query, nil)
	return e.NewContext(req, httptest.NewRecorder())
}

func TestFromContext_Defaults(t *testing.T) {
	p := FromContext(contextFor(t, ""))
	if p.Limit != DefaultPageSize || p.Offset != 0 {
		t.Errorf("expected defaults, got %+v", p)
	}
}

func TestFromContext_PageParams(t *testing.T) {
	p := FromContext(contextFor(t, "page=3&pageSize=10"))
	if p.Limit != 10 || p.Offset != 20 {
		t.Errorf("expected limit 10 offset 20, got %+v", p)
	}
}

func TestFromContext_CapsPageSize(t *testing.T) {
	p := FromContext(contextFor(t, "pageSize=5000"))
	if p.Limit != MaxPageSize {
		t.Errorf("expected cap at %d, got %d", MaxPageSize, p.Limit)
	}
}

func TestNewResponse_Links(t *testing.T) {
	p := Params{Limit: 10, Offset: 10}
	resp := NewResponse([]int{1}, 35, p, "/api/v1/patient-cases")
	if resp.Count != 35 {
		t.Errorf("expected count 35, got %d", resp.Count)
	}
	if resp.Next == nil || *resp.Next != "/api/v1/patient-cases?page=3&pageSize=10" {
		t.Errorf("unexpected next link: %v", resp.Next)
	}
	if resp.Previous == nil || *resp.Previous != "/api/v1/patient-cases?page=1&pageSize=10" {
		t.Errorf("unexpected previous link: %v", resp.Previous)
	}
}

func TestNewResponse_NoLinksOnSinglePage(t *testing.T) {
	resp := NewResponse([]int{1}, 5, Params{Limit: 10, Offset: 0}, "/x")
	if resp.Next != nil || resp.Previous != nil {
		t.Errorf("expected no links, got next=%v previous=%v", resp.Next, resp.Previous)
	}
}
