package echoapi

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/reflection"
)

const maxStepPayload = 1 << 20

type wizardApi struct {
	svc *reflection.Service
}

func registerWizardAPI(g *echo.Group, authed []echo.MiddlewareFunc, deps ServerDeps) {
	api := wizardApi{svc: deps.ReflectionSvc}

	wg := g.Group("/wizard", authed...)
	wg.GET("/steps", api.steps)
	wg.POST("", api.start)
	wg.GET("/:sid", api.retrieve)
	wg.POST("/:sid/steps/:step", api.submit)
	wg.DELETE("/:sid", api.cancel)
}

// Handlers

func (api *wizardApi) steps(ctx echo.Context) error {
	steps, err := api.svc.Steps(ctx.Request().Context(), getActor(ctx))
	if err != nil {
		return errors.Wrap(err, "resolving wizard steps")
	}
	return ctx.JSON(http.StatusOK, steps)
}

func (api *wizardApi) start(ctx echo.Context) error {
	form, err := api.svc.StartWizard(ctx.Request().Context(), getActor(ctx))
	if err != nil {
		return errors.Wrap(err, "starting wizard")
	}
	return ctx.JSON(http.StatusCreated, form)
}

func (api *wizardApi) retrieve(ctx echo.Context) error {
	form, err := api.svc.WizardStep(ctx.Request().Context(), getActor(ctx), ctx.Param("sid"), ctx.QueryParam("step"))
	if err != nil {
		return errors.Wrap(err, "getting wizard step")
	}
	return ctx.JSON(http.StatusOK, form)
}

func (api *wizardApi) submit(ctx echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(ctx.Request().Body, maxStepPayload))
	if err != nil {
		return errors.Wrap(err, "reading step payload")
	}
	if len(body) > 0 && !json.Valid(body) {
		return core.NewValidationError(errors.New("invalid JSON payload"))
	}

	res, err := api.svc.SubmitStep(ctx.Request().Context(), getActor(ctx), ctx.Param("sid"), ctx.Param("step"), body)
	if err != nil {
		return errors.Wrap(err, "submitting wizard step")
	}
	if res.Done {
		return ctx.JSON(http.StatusCreated, res)
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *wizardApi) cancel(ctx echo.Context) error {
	if err := api.svc.CancelWizard(ctx.Request().Context(), getActor(ctx), ctx.Param("sid")); err != nil {
		return errors.Wrap(err, "cancelling wizard")
	}
	return ctx.NoContent(http.StatusNoContent)
}
