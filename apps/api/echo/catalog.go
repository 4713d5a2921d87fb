package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/kazi/core/catalog"
)

type catalogApi struct {
	svc      *catalog.Service
	validate *validator.Validate
}

func registerCatalogAPI(g *echo.Group, authed []echo.MiddlewareFunc, deps ServerDeps) {
	api := catalogApi{
		svc:      deps.CatalogSvc,
		validate: deps.Validate,
	}

	cg := g.Group("/catalog", authed...)
	cg.GET("/domains", api.queryDomains)
	cg.GET("/domains/:id", api.retrieveDomain)
	cg.POST("/domains", api.createDomain, adminMiddleware)
	cg.DELETE("/domains/:id", api.deleteDomain, adminMiddleware)
	cg.POST("/domains/:id/components", api.addComponent, adminMiddleware)

	cg.GET("/years", api.queryYears)
	cg.GET("/years/current", api.currentYear)
	cg.POST("/years", api.createYear, adminMiddleware)
	cg.PUT("/years/current", api.setCurrentYear, adminMiddleware)
}

// Handlers

func (api *catalogApi) queryDomains(ctx echo.Context) error {
	var filter catalog.DomainFilter
	if err := ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []catalog.Domain{})
	}
	filter.WithChildren = true

	domains, err := api.svc.QueryDomains(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying domains")
	}
	if domains == nil {
		domains = []catalog.Domain{}
	}
	return ctx.JSON(http.StatusOK, domains)
}

func (api *catalogApi) retrieveDomain(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	domain, err := api.svc.GetDomain(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "finding domain")
	}
	return ctx.JSON(http.StatusOK, domain)
}

func (api *catalogApi) createDomain(ctx echo.Context) error {
	var data catalog.NewDomain
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewDomain")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	domain, err := api.svc.CreateDomain(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating domain")
	}
	return ctx.JSON(http.StatusCreated, domain)
}

func (api *catalogApi) deleteDomain(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	if err := api.svc.DeleteDomain(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting domain")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *catalogApi) addComponent(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	var data catalog.NewComponent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewComponent")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	comp, err := api.svc.AddComponent(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "adding component")
	}
	return ctx.JSON(http.StatusCreated, comp)
}

func (api *catalogApi) queryYears(ctx echo.Context) error {
	years, err := api.svc.QueryAcademicYears(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying academic years")
	}
	if years == nil {
		years = []catalog.AcademicYear{}
	}
	return ctx.JSON(http.StatusOK, years)
}

func (api *catalogApi) currentYear(ctx echo.Context) error {
	year, err := api.svc.CurrentAcademicYear(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "finding current academic year")
	}
	return ctx.JSON(http.StatusOK, year)
}

func (api *catalogApi) createYear(ctx echo.Context) error {
	var data catalog.NewAcademicYear
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAcademicYear")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	year, err := api.svc.CreateAcademicYear(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating academic year")
	}
	return ctx.JSON(http.StatusCreated, year)
}

func (api *catalogApi) setCurrentYear(ctx echo.Context) error {
	var data SetCurrentYearRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SetCurrentYearRequest")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	year, err := api.svc.SetCurrentAcademicYear(ctx.Request().Context(), data.ID)
	if err != nil {
		return errors.Wrap(err, "setting current academic year")
	}
	return ctx.JSON(http.StatusOK, year)
}

type SetCurrentYearRequest struct {
	ID int64 `json:"id" validate:"required"`
}
