package echoapi

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/dashboard"
)

const xlsxMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type dashboardApi struct {
	svc *dashboard.Service
}

func registerDashboardAPI(g *echo.Group, authed []echo.MiddlewareFunc, deps ServerDeps) {
	api := dashboardApi{svc: deps.DashboardSvc}

	dg := g.Group("/dashboard", authed...)
	dg.GET("", api.retrieve)
	dg.GET("/export", api.export)
}

// Handlers

func (api *dashboardApi) retrieve(ctx echo.Context) error {
	dash, err := api.svc.Dashboard(ctx.Request().Context(), getActor(ctx))
	if err != nil {
		return errors.Wrap(err, "building dashboard")
	}
	return ctx.JSON(http.StatusOK, dash)
}

func (api *dashboardApi) export(ctx echo.Context) error {
	var buf bytes.Buffer
	if err := api.svc.Export(ctx.Request().Context(), getActor(ctx), &buf); err != nil {
		return errors.Wrap(err, "exporting dashboard")
	}
	filename := fmt.Sprintf("reflections-%s.xlsx", core.Now().Format("20060102"))
	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return ctx.Blob(http.StatusOK, xlsxMIME, buf.Bytes())
}
