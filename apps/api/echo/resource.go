package echoapi

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/sdoims/core"
	"github.com/trezcool/sdoims/core/resource"
)

type (
	crudService[T resource.Record, N any, U any] interface {
		Authorize(actor core.Actor, action string) error
		List(ctx context.Context, actor core.Actor, q resource.Query) (resource.Page[T], error)
		Show(ctx context.Context, actor core.Actor, id int64, withTrashed bool) (T, error)
		Create(ctx context.Context, actor core.Actor, in N) (resource.Result[T], error)
		Update(ctx context.Context, actor core.Actor, id int64, in U) (resource.Result[T], error)
		Delete(ctx context.Context, actor core.Actor, id int64) (resource.Result[T], error)
	}

	// formOptioner lists the select options of a resource's create and edit forms.
	formOptioner interface {
		FormOptions(ctx context.Context) (map[string][]resource.Option, error)
	}

	routeDeps struct {
		notifier resource.Notifier
		logger   core.Logger
	}

	routeOption int

	crudAPI[T resource.Record, N any, U any] struct {
		svc   crudService[T, N, U]
		forms formOptioner
		routeDeps
	}

	mutationResponse struct {
		Message string      `json:"message"`
		Data    interface{} `json:"data,omitempty"`
	}
)

// withoutCreate leaves out the create routes of resources only written through a bulk form.
const withoutCreate routeOption = iota + 1

// registerResource mounts list, create-form, create, show, edit-form, update and destroy under path.
func registerResource[T resource.Record, N any, U any](
	g *echo.Group,
	path string,
	svc crudService[T, N, U],
	forms formOptioner,
	rd routeDeps,
	opts ...routeOption,
) *crudAPI[T, N, U] {
	api := &crudAPI[T, N, U]{svc: svc, forms: forms, routeDeps: rd}
	noCreate := len(opts) > 0 && opts[0] == withoutCreate

	rg := g.Group(path)
	rg.GET("", api.list)
	if !noCreate {
		rg.GET("/create", api.createForm)
		rg.POST("", api.create)
	}
	rg.GET("/:id", api.show)
	rg.GET("/:id/edit", api.editForm)
	rg.PUT("/:id", api.update)
	rg.DELETE("/:id", api.destroy)
	return api
}

func (api *crudAPI[T, N, U]) list(ctx echo.Context) error {
	q := resource.ParseQuery(ctx.QueryParams())
	page, err := api.svc.List(ctx.Request().Context(), getContextActor(ctx), q)
	if err != nil {
		return errors.Wrap(err, "listing")
	}
	return ctx.JSON(http.StatusOK, page)
}

// scopedList lists the children of the `:pid` parent.
func (api *crudAPI[T, N, U]) scopedList(ctx echo.Context) error {
	pid, err := paramID(ctx, "pid")
	if err != nil {
		return err
	}
	q := resource.ParseQuery(ctx.QueryParams()).Scoped(pid)
	page, err := api.svc.List(ctx.Request().Context(), getContextActor(ctx), q)
	if err != nil {
		return errors.Wrap(err, "listing")
	}
	return ctx.JSON(http.StatusOK, page)
}

func (api *crudAPI[T, N, U]) options(ctx echo.Context) (map[string][]resource.Option, error) {
	if api.forms == nil {
		return map[string][]resource.Option{}, nil
	}
	opts, err := api.forms.FormOptions(ctx.Request().Context())
	return opts, errors.Wrap(err, "listing form options")
}

func (api *crudAPI[T, N, U]) createForm(ctx echo.Context) error {
	if err := api.svc.Authorize(getContextActor(ctx), core.ActionCreate); err != nil {
		return err
	}
	opts, err := api.options(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, resource.Form[T]{Options: opts})
}

func (api *crudAPI[T, N, U]) create(ctx echo.Context) error {
	actor := getContextActor(ctx)
	if err := api.svc.Authorize(actor, core.ActionCreate); err != nil {
		return err
	}

	var in N
	if err := bindInput(ctx, &in); err != nil {
		return err
	}
	res, err := api.svc.Create(ctx.Request().Context(), actor, in)
	if err != nil {
		return errors.Wrap(err, "creating")
	}
	api.dispatch(ctx, res.Events)
	return ctx.JSON(http.StatusCreated, mutationResponse{Message: res.Message, Data: res.Record})
}

func (api *crudAPI[T, N, U]) show(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	withTrashed, _ := strconv.ParseBool(ctx.QueryParam("with_trashed"))
	rec, err := api.svc.Show(ctx.Request().Context(), getContextActor(ctx), id, withTrashed)
	if err != nil {
		return errors.Wrap(err, "showing")
	}
	return ctx.JSON(http.StatusOK, rec)
}

func (api *crudAPI[T, N, U]) editForm(ctx echo.Context) error {
	actor := getContextActor(ctx)
	if err := api.svc.Authorize(actor, core.ActionEdit); err != nil {
		return err
	}
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}

	rec, err := api.svc.Show(ctx.Request().Context(), actor, id, false)
	if err != nil {
		return errors.Wrap(err, "showing")
	}
	opts, err := api.options(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, resource.Form[T]{Data: &rec, Options: opts})
}

func (api *crudAPI[T, N, U]) update(ctx echo.Context) error {
	actor := getContextActor(ctx)
	if err := api.svc.Authorize(actor, core.ActionEdit); err != nil {
		return err
	}
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}

	var in U
	if err = bindInput(ctx, &in); err != nil {
		return err
	}
	res, err := api.svc.Update(ctx.Request().Context(), actor, id, in)
	if err != nil {
		return errors.Wrap(err, "updating")
	}
	api.dispatch(ctx, res.Events)
	return ctx.JSON(http.StatusOK, mutationResponse{Message: res.Message, Data: res.Record})
}

func (api *crudAPI[T, N, U]) destroy(ctx echo.Context) error {
	actor := getContextActor(ctx)
	if err := api.svc.Authorize(actor, core.ActionDelete); err != nil {
		return err
	}
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}

	res, err := api.svc.Delete(ctx.Request().Context(), actor, id)
	if err != nil {
		return errors.Wrap(err, "deleting")
	}
	api.dispatch(ctx, res.Events)
	return ctx.JSON(http.StatusOK, mutationResponse{Message: res.Message})
}

// dispatch publishes events once the mutation has committed, skipping the requesting socket.
func (rd routeDeps) dispatch(ctx echo.Context, events []resource.Event) {
	if len(events) == 0 {
		return
	}
	resource.Dispatch(ctx.Request().Context(), rd.notifier, rd.logger, ctx.Request().Header.Get(HeaderSocketID), events...)
}

func paramID(ctx echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(ctx.Param(name), 10, 64)
	if err != nil || id < 1 {
		return 0, errHttpNotFound
	}
	return id, nil
}
