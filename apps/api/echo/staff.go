package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/kazi/core/reflection"
	"github.com/trezcool/kazi/core/staff"
)

type staffApi struct {
	svc           *staff.Service
	reflectionSvc *reflection.Service
	validate      *validator.Validate
}

func registerStaffAPI(g *echo.Group, authed []echo.MiddlewareFunc, deps ServerDeps) {
	api := staffApi{
		svc:           deps.StaffSvc,
		reflectionSvc: deps.ReflectionSvc,
		validate:      deps.Validate,
	}

	sg := g.Group("/staff", authed...)
	sg.GET("/members", api.members, staffMiddleware)
	sg.GET("/:id/reflections", api.reflections, staffMiddleware)
	sg.POST("", api.onboard, adminMiddleware)
	sg.PUT("/:id", api.update, adminMiddleware)

	sg.GET("/roles", api.queryRoles)
	sg.POST("/roles", api.createRole, adminMiddleware)
	sg.GET("/departments", api.queryDepartments)
	sg.POST("/departments", api.createDepartment, adminMiddleware)
}

// Handlers

func (api *staffApi) members(ctx echo.Context) error {
	filter := new(staff.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []staff.Staff{})
	}
	filter.Clean()

	members, err := api.svc.Members(ctx.Request().Context(), getActor(ctx), filter)
	if err != nil {
		return errors.Wrap(err, "listing members")
	}
	if members == nil {
		members = []staff.Staff{}
	}
	return ctx.JSON(http.StatusOK, members)
}

func (api *staffApi) reflections(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	refls, err := api.reflectionSvc.StaffReflections(ctx.Request().Context(), getActor(ctx), id)
	if err != nil {
		return errors.Wrap(err, "listing staff reflections")
	}
	if refls == nil {
		refls = []reflection.Reflection{}
	}
	return ctx.JSON(http.StatusOK, refls)
}

func (api *staffApi) onboard(ctx echo.Context) error {
	var data staff.NewStaff
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStaff")
	}
	rctx := ctx.Request().Context()
	if err := data.Validate(rctx, api.validate, api.svc); err != nil {
		return err
	}

	s, err := api.svc.Onboard(rctx, data)
	if err != nil {
		return errors.Wrap(err, "onboarding staff")
	}
	return ctx.JSON(http.StatusCreated, s)
}

func (api *staffApi) update(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	var data staff.UpdateStaff
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateStaff")
	}

	s, err := api.svc.Update(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "updating staff")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *staffApi) queryRoles(ctx echo.Context) error {
	roles, err := api.svc.QueryRoles(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying roles")
	}
	if roles == nil {
		roles = []staff.Role{}
	}
	return ctx.JSON(http.StatusOK, roles)
}

func (api *staffApi) createRole(ctx echo.Context) error {
	var data staff.NewRole
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewRole")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	role, err := api.svc.CreateRole(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating role")
	}
	return ctx.JSON(http.StatusCreated, role)
}

func (api *staffApi) queryDepartments(ctx echo.Context) error {
	depts, err := api.svc.QueryDepartments(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying departments")
	}
	if depts == nil {
		depts = []staff.Department{}
	}
	return ctx.JSON(http.StatusOK, depts)
}

func (api *staffApi) createDepartment(ctx echo.Context) error {
	var data staff.NewDepartment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewDepartment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	dept, err := api.svc.CreateDepartment(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating department")
	}
	return ctx.JSON(http.StatusCreated, dept)
}
