package middleware

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/labstack/echo/v4"

	"github.com/veritaslaw/custodia/pkg/appcontext"
	"github.com/veritaslaw/custodia/pkg/models"
)

// HeaderUserID identifies the acting user. Authentication happens at the
// firm's gateway; this service trusts the header it forwards.
const HeaderUserID = "X-User-Id"

// UserResolver loads the acting user for a request.
type UserResolver interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// Actor resolves the X-User-Id header to a user record and stores it in
// the request context. Requests without a resolvable, active user are
// rejected.
func Actor(users UserResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID := c.Request().Header.Get(HeaderUserID)
			if userID == "" {
				return httperror.NewHTTPError(http.StatusUnauthorized, "missing X-User-Id header")
			}

			ctx := c.Request().Context()
			user, err := users.GetByID(ctx, userID)
			if err != nil {
				return err
			}
			if user == nil {
				return httperror.NewHTTPError(http.StatusUnauthorized, "unknown user")
			}
			if !user.IsActive {
				return httperror.NewHTTPError(http.StatusForbidden, "user is deactivated")
			}

			ctx = appcontext.SetActor(ctx, user)
			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}
