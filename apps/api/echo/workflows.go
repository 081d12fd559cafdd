package echoapi

import (
	"context"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/sdoims/core"
	"github.com/trezcool/sdoims/core/opcr"
	"github.com/trezcool/sdoims/core/resource"
)

type (
	submitFunc[E validation.Validatable, R any] func(ctx context.Context, actor core.Actor, sub resource.Submission[E]) (resource.Result[R], error)

	// submitRequest is the body of a bulk form; the parent comes from the URL.
	submitRequest[E validation.Validatable] struct {
		Entries []E `json:"entries"`
	}
)

// submitHandler stores the bulk form posted for the `:id` parent.
func submitHandler[E validation.Validatable, R any](submit submitFunc[E, R], rd routeDeps) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		id, err := paramID(ctx, "id")
		if err != nil {
			return err
		}
		var body submitRequest[E]
		if err = ctx.Bind(&body); err != nil {
			return err
		}

		res, err := submit(ctx.Request().Context(), getContextActor(ctx), resource.Submission[E]{ParentID: id, Entries: body.Entries})
		if err != nil {
			return errors.Wrap(err, "submitting")
		}
		rd.dispatch(ctx, res.Events)
		return ctx.JSON(http.StatusOK, mutationResponse{Message: res.Message, Data: res.Record})
	}
}

// reviewHandler approves or disapproves the `:id` OPCR.
func reviewHandler(svc *opcr.Service, rd routeDeps) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		actor := getContextActor(ctx)
		if err := svc.Authorize(actor, core.ActionReview); err != nil {
			return err
		}
		id, err := paramID(ctx, "id")
		if err != nil {
			return err
		}
		var rv opcr.Review
		if err = ctx.Bind(&rv); err != nil {
			return err
		}

		res, err := svc.Review(ctx.Request().Context(), actor, id, rv)
		if err != nil {
			return errors.Wrap(err, "reviewing")
		}
		rd.dispatch(ctx, res.Events)
		return ctx.JSON(http.StatusOK, mutationResponse{Message: res.Message, Data: res.Record})
	}
}
