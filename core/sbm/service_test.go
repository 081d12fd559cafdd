package sbm_test

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/sdoims/core"
	"github.com/trezcool/sdoims/core/resource"
	"github.com/trezcool/sdoims/core/sbm"
	testutil "github.com/trezcool/sdoims/tests"
)

type fixture struct {
	checklists *sbm.ChecklistService
	indicators *sbm.IndicatorService
	responses  *sbm.ResponseService
	admin      core.Actor
}

func setup(t *testing.T) fixture {
	env := testutil.NewEnv(t)
	checklistRepo := testutil.Repo[sbm.Checklist](env, sbm.ChecklistTable)
	indicatorRepo := testutil.Repo[sbm.Indicator](env, sbm.IndicatorTable)

	checklists := sbm.NewChecklistService(checklistRepo, env.Validate, env.Logger)
	return fixture{
		checklists: checklists,
		indicators: sbm.NewIndicatorService(indicatorRepo, checklists, env.Validate, env.Logger),
		responses: sbm.NewResponseService(
			testutil.Repo[sbm.Response](env, sbm.ResponseTable), checklistRepo, indicatorRepo, env.DB, env.Validate, env.Logger,
		),
		admin: testutil.Superuser(),
	}
}

func rating(n int) *int { return &n }

func TestChecklistService_schoolYear(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	c, err := f.checklists.Create(ctx, f.admin, sbm.NewChecklist{Title: "SBM Assessment", SchoolYear: "2024-2025"})
	require.NoError(t, err)
	assert.Equal(t, "SBM Assessment (2024-2025)", testutil.Must(f.checklists.Options(ctx))[0].Label)

	for _, sy := range []string{"2024", "2024-2026", "24-25"} {
		_, err = f.checklists.Update(ctx, f.admin, c.Record.ID, sbm.UpdateChecklist{SchoolYear: sy})
		var vErrs validator.ValidationErrors
		require.ErrorAs(t, err, &vErrs, sy)
		assert.Equal(t, "school_year", vErrs[0].Field())
	}
}

func TestResponseService_Submit(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	checklist := testutil.Must(f.checklists.Create(ctx, f.admin, sbm.NewChecklist{Title: "SBM Assessment", SchoolYear: "2024-2025"})).Record
	other := testutil.Must(f.checklists.Create(ctx, f.admin, sbm.NewChecklist{Title: "Old", SchoolYear: "2023-2024"})).Record
	var inds []sbm.Indicator
	for _, code := range []string{"1.1", "1.2", "1.3"} {
		inds = append(inds, testutil.Must(f.indicators.Create(ctx, f.admin, sbm.NewIndicator{
			ChecklistID: checklist.ID, Code: code, Description: "Indicator " + code,
		})).Record)
	}
	stray := testutil.Must(f.indicators.Create(ctx, f.admin, sbm.NewIndicator{ChecklistID: other.ID, Code: "9.9", Description: "Stray"})).Record

	page := testutil.Must(f.indicators.List(ctx, f.admin, resource.Query{Page: 1}.Scoped(checklist.ID)))
	require.Len(t, page.Data, 3)
	assert.Equal(t, "1.1", page.Data[0].Code, "indicators list in creation order")

	submit := func(entries ...sbm.ResponseEntry) error {
		_, err := f.responses.Submit(ctx, f.admin, resource.Submission[sbm.ResponseEntry]{ParentID: checklist.ID, Entries: entries})
		return err
	}
	stored := func() []sbm.Response {
		return testutil.Must(f.responses.List(ctx, f.admin, resource.Query{Page: 1}.Scoped(checklist.ID))).Data
	}

	require.NoError(t, submit(
		sbm.ResponseEntry{IndicatorID: inds[0].ID, Rating: rating(0)},
		sbm.ResponseEntry{IndicatorID: inds[1].ID, Rating: rating(3), Remarks: "fully practiced"},
	))
	got := stored()
	require.Len(t, got, 2)
	assert.Equal(t, 0, got[0].Rating, "zero is a valid rating")
	assert.Equal(t, f.admin.ID, got[0].UserID)

	tests := []struct {
		name    string
		entries []sbm.ResponseEntry
		want    map[string]string
	}{
		{
			"rating out of range",
			[]sbm.ResponseEntry{{IndicatorID: inds[2].ID, Rating: rating(1)}, {IndicatorID: inds[0].ID, Rating: rating(4)}},
			map[string]string{"entries.1.rating": "must be no greater than 3"},
		},
		{
			"missing rating",
			[]sbm.ResponseEntry{{IndicatorID: inds[2].ID}},
			map[string]string{"entries.0.rating": "is required"},
		},
		{
			"indicator of another checklist",
			[]sbm.ResponseEntry{{IndicatorID: inds[2].ID, Rating: rating(2)}, {IndicatorID: stray.ID, Rating: rating(2)}},
			map[string]string{"entries.1.indicator_id": "the selected indicator is not part of this checklist"},
		},
		{
			"no entries",
			nil,
			map[string]string{"entries": "cannot be blank"},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			var vErr *core.ValidationError
			require.ErrorAs(t, submit(tt.entries...), &vErr)
			assert.Equal(t, tt.want, vErr.FieldMap())
			assert.Len(t, stored(), 2, "nothing persisted")
		})
	}

	// resubmitting updates the actor's own answers
	require.NoError(t, submit(sbm.ResponseEntry{IndicatorID: inds[0].ID, Rating: rating(2)}))
	got = stored()
	require.Len(t, got, 2)
	assert.Equal(t, 2, got[0].Rating)
}
