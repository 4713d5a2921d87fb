package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/reflection"
	"github.com/trezcool/kazi/core/staff"
)

type reflectionApi struct {
	svc *reflection.Service
}

func registerReflectionAPI(g *echo.Group, authed []echo.MiddlewareFunc, deps ServerDeps) {
	api := reflectionApi{svc: deps.ReflectionSvc}

	rg := g.Group("/reflections", authed...)
	rg.POST("", api.commit)
	rg.GET("", api.query)
	rg.GET("/:id", api.retrieve)
	rg.PUT("/:id/domains", api.updateDomains)
	rg.POST("/:id/growth-plans", api.addGrowthPlan)

	gg := g.Group("/growth-plans", authed...)
	gg.GET("/:id", api.retrieveGrowthPlan)
	gg.PUT("/:id", api.updateGrowthPlan)
	gg.DELETE("/:id", api.deleteGrowthPlan)
	gg.POST("/:id/observation", api.observe)
}

// Handlers

func (api *reflectionApi) commit(ctx echo.Context) error {
	var data reflection.Submission
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Submission")
	}

	id, err := api.svc.Commit(ctx.Request().Context(), getActor(ctx), data)
	if err != nil {
		return errors.Wrap(err, "committing reflection")
	}
	return ctx.JSON(http.StatusCreated, IDResponse{ID: id})
}

func (api *reflectionApi) query(ctx echo.Context) error {
	refls, err := api.svc.QueryReflections(ctx.Request().Context(), getActor(ctx))
	if err != nil {
		return errors.Wrap(err, "querying reflections")
	}
	if refls == nil {
		refls = []reflection.Reflection{}
	}
	return ctx.JSON(http.StatusOK, refls)
}

func (api *reflectionApi) retrieve(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	r, err := api.svc.GetReflection(ctx.Request().Context(), getActor(ctx), id)
	if err != nil {
		return errors.Wrap(err, "finding reflection")
	}
	return ctx.JSON(http.StatusOK, r)
}

func (api *reflectionApi) updateDomains(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	var data UpdateDomainsRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateDomainsRequest")
	}

	r, err := api.svc.UpdateReflectionDomains(ctx.Request().Context(), getActor(ctx), id, data.Domains)
	if err != nil {
		return errors.Wrap(err, "updating reflection domains")
	}
	return ctx.JSON(http.StatusOK, r)
}

func (api *reflectionApi) addGrowthPlan(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	var data reflection.GrowthPlanInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GrowthPlanInput")
	}

	gp, err := api.svc.AddGrowthPlan(ctx.Request().Context(), getActor(ctx), id, data)
	if err != nil {
		return errors.Wrap(err, "adding growth plan")
	}
	return ctx.JSON(http.StatusCreated, gp)
}

func (api *reflectionApi) retrieveGrowthPlan(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	gp, err := api.svc.GetGrowthPlan(ctx.Request().Context(), getActor(ctx), id)
	if err != nil {
		return errors.Wrap(err, "finding growth plan")
	}
	return ctx.JSON(http.StatusOK, gp)
}

func (api *reflectionApi) updateGrowthPlan(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	var data reflection.GrowthPlanInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GrowthPlanInput")
	}

	gp, err := api.svc.UpdateGrowthPlan(ctx.Request().Context(), getActor(ctx), id, data)
	if err != nil {
		return errors.Wrap(err, "updating growth plan")
	}
	return ctx.JSON(http.StatusOK, gp)
}

func (api *reflectionApi) deleteGrowthPlan(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	if err := api.svc.DeleteGrowthPlan(ctx.Request().Context(), getActor(ctx), id); err != nil {
		return errors.Wrap(err, "deleting growth plan")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *reflectionApi) observe(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	var data ObservationRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ObservationRequest")
	}

	actor := getActor(ctx)
	field := reflection.ObservationField(data.Field)
	if field == "" {
		f, ok := reflection.FieldFor(staff.CapabilitiesOf(actor))
		if !ok {
			return core.NewAuthorizationError("only reviewers can comment on growth plans")
		}
		field = f
	}

	obs, err := api.svc.SubmitObservation(ctx.Request().Context(), actor, id, field, data.Text)
	if err != nil {
		return errors.Wrap(err, "submitting observation")
	}
	return ctx.JSON(http.StatusOK, obs)
}

type (
	UpdateDomainsRequest struct {
		Domains []reflection.DomainSelection `json:"domains"`
	}

	ObservationRequest struct {
		Field string `json:"field"`
		Text  string `json:"text"`
	}
)
