package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/kazi/core"
)

// actorMiddleware loads the authenticated user and their staff profile, if any.
// Must run after the JWT middleware.
func (s *Server) actorMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		claims, err := getContextClaims(ctx)
		if err != nil {
			return err
		}
		id, err := claims.UserID()
		if err != nil {
			return errUnauthorized
		}

		rctx := ctx.Request().Context()
		usr, err := s.deps.UserSvc.GetByID(rctx, id)
		if err != nil {
			if core.IsNotFound(err) {
				return errUnauthorized
			}
			return errors.Wrap(err, "finding user by ID")
		}
		if !usr.IsActive {
			return errAccountDeactivated
		}
		ctx.Set(contextUserKey, usr)

		prof, err := s.deps.StaffSvc.GetByUser(rctx, usr.ID)
		switch {
		case err == nil:
			ctx.Set(contextStaffKey, &prof)
		case !core.IsNotFound(err):
			return errors.Wrap(err, "finding staff profile")
		}
		return next(ctx)
	}
}

func adminMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		usr, err := getContextUser(ctx)
		if err != nil {
			return err
		}
		if usr.IsAdmin {
			return next(ctx)
		}
		return errHttpForbidden
	}
}

// staffMiddleware rejects users without a staff profile.
func staffMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		if getActor(ctx) == nil {
			return errNoStaffProfile
		}
		return next(ctx)
	}
}
