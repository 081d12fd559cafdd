package sbm

import (
	"context"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/sdoims/core"
	"github.com/trezcool/sdoims/core/resource"
)

const (
	ChecklistResource = "sbm_checklist"
	IndicatorResource = "sbm_indicator"
	ResponseResource  = "sbm_response"
)

var (
	ChecklistTable = resource.Table{
		Name:    "sbm_checklists",
		Columns: []string{"title", "school_year"},
		Search:  []string{"title", "school_year"},
	}

	IndicatorTable = resource.Table{
		Name:        "sbm_indicators",
		Columns:     []string{"checklist_id", "code", "description"},
		Search:      []string{"code", "description"},
		ScopeColumn: "checklist_id",
		OldestFirst: true,
	}

	ResponseTable = resource.Table{
		Name:        "sbm_responses",
		Columns:     []string{"checklist_id", "indicator_id", "user_id", "rating", "remarks"},
		ScopeColumn: "checklist_id",
		OldestFirst: true,
		Unique:      [][]string{{"checklist_id", "indicator_id", "user_id"}},
	}

	responseNaturalKey = []string{"checklist_id", "indicator_id", "user_id"}
)

type ChecklistService struct {
	*resource.Service[Checklist, NewChecklist, UpdateChecklist]
}

func NewChecklistService(repo resource.Repository[Checklist], validate *validator.Validate, logger core.Logger) *ChecklistService {
	opts := resource.Options[Checklist, NewChecklist, UpdateChecklist]{
		Resource: ChecklistResource,
		Label:    "SBM checklist",
		Build: func(_ context.Context, _ core.Actor, in NewChecklist) (Checklist, error) {
			return Checklist{Title: in.Title, SchoolYear: in.SchoolYear}, nil
		},
		Apply: func(_ context.Context, _ core.Actor, c *Checklist, in UpdateChecklist) error {
			if in.Title != "" {
				c.Title = in.Title
			}
			if in.SchoolYear != "" {
				c.SchoolYear = in.SchoolYear
			}
			return nil
		},
	}
	return &ChecklistService{resource.NewService(opts, repo, validate, nil, logger)}
}

func (svc *ChecklistService) Options(ctx context.Context) ([]resource.Option, error) {
	return resource.OptionsOf(ctx, svc.Repo(), func(c Checklist) string { return c.Title + " (" + c.SchoolYear + ")" })
}

type IndicatorService struct {
	*resource.Service[Indicator, NewIndicator, UpdateIndicator]
	checklists *ChecklistService
}

func NewIndicatorService(repo resource.Repository[Indicator], checklists *ChecklistService, validate *validator.Validate, logger core.Logger) *IndicatorService {
	opts := resource.Options[Indicator, NewIndicator, UpdateIndicator]{
		Resource: IndicatorResource,
		Label:    "SBM indicator",
		Build: func(_ context.Context, _ core.Actor, in NewIndicator) (Indicator, error) {
			return Indicator{ChecklistID: in.ChecklistID, Code: in.Code, Description: in.Description}, nil
		},
		Apply: func(_ context.Context, _ core.Actor, i *Indicator, in UpdateIndicator) error {
			if in.Code != "" {
				i.Code = in.Code
			}
			if in.Description != "" {
				i.Description = in.Description
			}
			return nil
		},
	}
	return &IndicatorService{
		Service:    resource.NewService(opts, repo, validate, nil, logger),
		checklists: checklists,
	}
}

func (svc *IndicatorService) FormOptions(ctx context.Context) (map[string][]resource.Option, error) {
	checklists, err := svc.checklists.Options(ctx)
	if err != nil {
		return nil, err
	}
	return map[string][]resource.Option{"checklists": checklists}, nil
}

type ResponseService struct {
	*resource.Service[Response, ResponseEntry, UpdateResponse]
	tx         core.TxManager
	checklists resource.Repository[Checklist]
	indicators resource.Repository[Indicator]
}

func NewResponseService(
	repo resource.Repository[Response],
	checklists resource.Repository[Checklist],
	indicators resource.Repository[Indicator],
	tx core.TxManager,
	validate *validator.Validate,
	logger core.Logger,
) *ResponseService {
	opts := resource.Options[Response, ResponseEntry, UpdateResponse]{
		Resource: ResponseResource,
		Label:    "SBM response",
		Build: func(_ context.Context, _ core.Actor, _ ResponseEntry) (Response, error) {
			return Response{}, errors.New("sbm responses are created through the bulk form")
		},
		Apply: func(_ context.Context, _ core.Actor, r *Response, in UpdateResponse) error {
			if in.Rating != nil {
				r.Rating = *in.Rating
			}
			if in.Remarks != nil {
				r.Remarks = *in.Remarks
			}
			return nil
		},
	}
	return &ResponseService{
		Service:    resource.NewService(opts, repo, validate, nil, logger),
		tx:         tx,
		checklists: checklists,
		indicators: indicators,
	}
}

// Submit records the actor's rating of every entry's indicator, keyed by checklist, indicator and actor,
// in a single transaction. Any invalid entry aborts the whole submission.
func (svc *ResponseService) Submit(ctx context.Context, actor core.Actor, sub resource.Submission[ResponseEntry]) (resource.Result[[]Response], error) {
	if err := svc.Authorize(actor, core.ActionCreate); err != nil {
		return resource.Result[[]Response]{}, err
	}
	if err := sub.Validate(); err != nil {
		return resource.Result[[]Response]{}, err
	}

	checklist, err := svc.checklists.Get(ctx, sub.ParentID, false)
	if err != nil {
		return resource.Result[[]Response]{}, err
	}

	stored := make([]Response, len(sub.Entries))
	err = resource.SubmitAll(ctx, svc.tx, sub.Entries, func(ctx context.Context, i int, e ResponseEntry) error {
		ind, err := svc.indicators.Get(ctx, e.IndicatorID, false)
		if err != nil && !core.IsNotFound(err) {
			return err
		}
		if err != nil || ind.ChecklistID != checklist.ID {
			return core.NewValidationError(nil, core.FieldError{
				Field: "entries." + strconv.Itoa(i) + ".indicator_id",
				Error: "the selected indicator is not part of this checklist",
			})
		}

		stored[i] = Response{
			ChecklistID: checklist.ID,
			IndicatorID: e.IndicatorID,
			UserID:      actor.ID,
			Rating:      *e.Rating,
			Remarks:     core.CleanString(e.Remarks),
		}
		return svc.Repo().Upsert(ctx, &stored[i], responseNaturalKey...)
	})
	if err != nil {
		return resource.Result[[]Response]{}, err
	}
	return resource.Result[[]Response]{Record: stored, Message: "SBM responses saved successfully."}, nil
}
