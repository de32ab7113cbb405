package auth

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// SessionTokenHeader carries the signed session token on every request.
const SessionTokenHeader = "X-Session-Token"

// SessionMiddleware authenticates requests by the X-Session-Token header and
// attaches the verified principal to the request context. Requests without a
// token proceed unauthenticated; RequireCapability rejects them downstream.
func SessionMiddleware(issuer *SessionIssuer) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := c.Request().Header.Get(SessionTokenHeader)
			if token == "" {
				return next(c)
			}

			principal, err := issuer.Verify(token)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid session token")
			}

			ctx := WithPrincipal(c.Request().Context(), principal)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// RequireCapability returns middleware that rejects unauthenticated requests
// with 401 and authenticated requests lacking the capability with 403.
func RequireCapability(cap Capability) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, ok := PrincipalFromContext(c.Request().Context())
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			if !p.AccessLevel.Has(cap) {
				return echo.NewHTTPError(http.StatusForbidden, "insufficient access level")
			}
			return next(c)
		}
	}
}

// RequireAuthenticated rejects requests without a verified principal.
func RequireAuthenticated() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if _, ok := PrincipalFromContext(c.Request().Context()); !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			return next(c)
		}
	}
}

// AnonymizedParam reads the anonymized query flag on clinical read endpoints.
// Anonymization defaults to on; turning it off needs CanManageCases.
func AnonymizedParam(c echo.Context) (bool, error) {
	raw := c.QueryParam("anonymized")
	if raw == "" {
		return true, nil
	}
	anonymized, err := strconv.ParseBool(raw)
	if err != nil {
		return true, echo.NewHTTPError(http.StatusBadRequest, "invalid anonymized parameter")
	}
	if !anonymized {
		p, ok := PrincipalFromContext(c.Request().Context())
		if !ok || !p.AccessLevel.Has(CanManageCases) {
			return true, echo.NewHTTPError(http.StatusUnprocessableEntity, "non-anonymized access requires case-management rights")
		}
	}
	return anonymized, nil
}

// IsRequestingUser reports whether the principal is the user addressed by the
// id URL parameter, granting self-service regardless of capability.
func IsRequestingUser(c echo.Context, p Principal) bool {
	return c.Param("id") == p.UserID.String()
}

// CanManageProjectResource decides object-scoped management of cohorts and
// datasets: analysts and above pass on capability alone, data contributors
// additionally need membership in the owning project.
func CanManageProjectResource(p Principal, isMemberOrLeader bool) bool {
	switch {
	case !p.AccessLevel.Has(CanManageCohorts):
		return false
	case p.AccessLevel >= LevelDataAnalyst:
		return true
	default:
		return isMemberOrLeader
	}
}

// CanAdministerProject decides object-scoped project administration: project
// managers pass only for projects they lead, platform managers and system
// admins pass everywhere.
func CanAdministerProject(p Principal, isLeader bool) bool {
	switch {
	case !p.AccessLevel.Has(CanManageProjects):
		return false
	case p.AccessLevel >= LevelPlatformManager:
		return true
	default:
		return isLeader
	}
}

// CanViewProjectResource decides object-scoped read access: platform managers
// and above pass everywhere, others need membership in the owning project.
func CanViewProjectResource(p Principal, isMemberOrLeader bool) bool {
	if p.AccessLevel >= LevelPlatformManager {
		return true
	}
	return isMemberOrLeader
}
