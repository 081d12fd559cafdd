package dcp_test

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/sdoims/core"
	"github.com/trezcool/sdoims/core/dcp"
	"github.com/trezcool/sdoims/core/resource"
	"github.com/trezcool/sdoims/core/school"
	testutil "github.com/trezcool/sdoims/tests"
)

type schoolNames struct {
	repo resource.Repository[school.School]
}

func (s schoolNames) Name(ctx context.Context, id int64) (string, error) {
	sch, err := s.repo.Get(ctx, id, false)
	return sch.Name, err
}

func (s schoolNames) Options(ctx context.Context) ([]resource.Option, error) {
	return resource.OptionsOf(ctx, s.repo, func(sch school.School) string { return sch.Name })
}

type fixture struct {
	env        *testutil.Env
	batches    *dcp.BatchService
	items      *dcp.ItemService
	recipients *dcp.RecipientService
	statuses   *dcp.StatusService
	schools    []school.School
	admin      core.Actor
}

func setup(t *testing.T) fixture {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	schools := testutil.Repo[school.School](env, school.Table)
	seeded := []school.School{
		{Name: "Aparri East Central School", SchoolCode: "103245", DistrictID: 1},
		{Name: "Aparri East Central School", SchoolCode: "103246", DistrictID: 1},
	}
	for i := range seeded {
		require.NoError(t, schools.Create(ctx, &seeded[i]))
	}

	batchRepo := testutil.Repo[dcp.Batch](env, dcp.BatchTable)
	itemRepo := testutil.Repo[dcp.Item](env, dcp.ItemTable)
	recipientRepo := testutil.Repo[dcp.Recipient](env, dcp.RecipientTable)

	batches := dcp.NewBatchService(batchRepo, env.Blobs, env.Validate, env.Logger)
	return fixture{
		env:        env,
		batches:    batches,
		items:      dcp.NewItemService(itemRepo, batches, env.Validate, env.Logger),
		recipients: dcp.NewRecipientService(recipientRepo, schoolNames{schools}, batches, env.Validate, env.Logger),
		statuses: dcp.NewStatusService(
			testutil.Repo[dcp.ItemStatus](env, dcp.StatusTable), recipientRepo, itemRepo, env.DB, env.Validate, env.Logger,
		),
		schools: seeded,
		admin:   testutil.Superuser(),
	}
}

func (f fixture) batch(t *testing.T, name string) dcp.Batch {
	t.Helper()
	return testutil.Must(f.batches.Create(context.Background(), f.admin, dcp.NewBatch{Name: name, BudgetYear: 2024})).Record
}

func TestBatchService_Create(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	res, err := f.batches.Create(ctx, f.admin, dcp.NewBatch{
		Name:         "DCP Batch 2024 Package A",
		BudgetYear:   2024,
		DeliveryDate: "2024-07-15",
		Document: &core.Upload{
			Filename: "Delivery Receipt.PDF",
			Size:     3,
			Open:     func() (io.ReadCloser, error) { return io.NopCloser(strings.NewReader("pdf")), nil },
		},
	})
	require.NoError(t, err)
	b := res.Record
	assert.Equal(t, "dcp-batch-2024-package-a", b.Slug)
	assert.Equal(t, "DCP batch created successfully.", res.Message)
	require.True(t, b.DeliveryDate.Valid)
	assert.Equal(t, "2024-07-15", b.DeliveryDate.Time.Format("2006-01-02"))
	assert.True(t, strings.HasPrefix(b.Document, "dcp/batches/"))
	assert.True(t, strings.HasSuffix(b.Document, ".pdf"))

	_, err = f.batches.Create(ctx, f.admin, dcp.NewBatch{Name: "Bad date", BudgetYear: 2024, DeliveryDate: "15/07/2024"})
	assert.Error(t, err)
}

func TestBatchService_slugs(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	a := f.batch(t, "Package A")
	b := f.batch(t, "Package A")
	assert.Equal(t, "package-a", a.Slug)
	assert.Equal(t, "package-a-1", b.Slug)

	// renaming keeps the slug
	a = testutil.Must(f.batches.Update(ctx, f.admin, a.ID, dcp.UpdateBatch{Name: "Package Z"})).Record
	assert.Equal(t, "package-a", a.Slug)

	// trashed batches keep theirs
	testutil.Must(f.batches.Delete(ctx, f.admin, b.ID))
	c := f.batch(t, "package a")
	assert.Equal(t, "package-a-2", c.Slug)
}

func TestBatchService_Update_optionalFields(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	str := func(s string) *string { return &s }

	b := testutil.Must(f.batches.Create(ctx, f.admin, dcp.NewBatch{
		Name: "Package A", Description: "Laptops for grade 7", BudgetYear: 2024, DeliveryDate: "2024-07-15",
	})).Record

	// absent fields are kept
	b = testutil.Must(f.batches.Update(ctx, f.admin, b.ID, dcp.UpdateBatch{BudgetYear: 2025})).Record
	assert.Equal(t, "Laptops for grade 7", b.Description)
	assert.True(t, b.DeliveryDate.Valid)

	// empty values clear them
	b = testutil.Must(f.batches.Update(ctx, f.admin, b.ID, dcp.UpdateBatch{Description: str("  "), DeliveryDate: str("")})).Record
	assert.Empty(t, b.Description)
	assert.False(t, b.DeliveryDate.Valid)
	assert.Equal(t, 2025, b.BudgetYear)

	_, err := f.batches.Update(ctx, f.admin, b.ID, dcp.UpdateBatch{DeliveryDate: str("15/07/2024")})
	var vErr *core.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.FieldMap(), "delivery_date")

	got := testutil.Must(f.batches.Show(ctx, f.admin, b.ID, false))
	assert.Empty(t, got.Description)
	assert.False(t, got.DeliveryDate.Valid)
}

func TestRecipientService_slugs(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	b := f.batch(t, "Package A")

	r1 := testutil.Must(f.recipients.Create(ctx, f.admin, dcp.NewRecipient{BatchID: b.ID, SchoolID: f.schools[0].ID})).Record
	r2 := testutil.Must(f.recipients.Create(ctx, f.admin, dcp.NewRecipient{BatchID: b.ID, SchoolID: f.schools[1].ID})).Record
	assert.Equal(t, "aparri-east-central-school", r1.Slug)
	assert.Equal(t, "aparri-east-central-school-1", r2.Slug)

	page := testutil.Must(f.recipients.List(ctx, f.admin, resource.Query{Page: 1, Search: "central"}.Scoped(b.ID)))
	assert.Equal(t, 2, page.Total)

	opts := testutil.Must(f.recipients.FormOptions(ctx))
	assert.Len(t, opts["batches"], 1)
	assert.Len(t, opts["schools"], 2)
}

func TestStatusService_Submit(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	b := f.batch(t, "Package A")
	other := f.batch(t, "Package B")
	laptop := testutil.Must(f.items.Create(ctx, f.admin, dcp.NewItem{BatchID: b.ID, Name: "Laptop", Quantity: 10, Unit: "pc"})).Record
	tv := testutil.Must(f.items.Create(ctx, f.admin, dcp.NewItem{BatchID: b.ID, Name: "Smart TV", Quantity: 1, Unit: "unit"})).Record
	foreign := testutil.Must(f.items.Create(ctx, f.admin, dcp.NewItem{BatchID: other.ID, Name: "Router", Quantity: 1})).Record
	r := testutil.Must(f.recipients.Create(ctx, f.admin, dcp.NewRecipient{BatchID: b.ID, SchoolID: f.schools[0].ID})).Record

	submit := func(entries ...dcp.StatusEntry) (resource.Result[[]dcp.ItemStatus], error) {
		return f.statuses.Submit(ctx, f.admin, resource.Submission[dcp.StatusEntry]{ParentID: r.ID, Entries: entries})
	}
	stored := func() []dcp.ItemStatus {
		page := testutil.Must(f.statuses.List(ctx, f.admin, resource.Query{Page: 1}.Scoped(r.ID)))
		return page.Data
	}

	t.Run("valid", func(t *testing.T) {
		res, err := submit(
			dcp.StatusEntry{ItemID: laptop.ID, Condition: dcp.ConditionWorking},
			dcp.StatusEntry{ItemID: tv.ID, Condition: dcp.ConditionForRepair, Remarks: "  cracked screen "},
		)
		require.NoError(t, err)
		assert.Equal(t, "Item statuses saved successfully.", res.Message)
		require.Len(t, res.Record, 2)
		assert.Equal(t, "cracked screen", res.Record[1].Remarks)
		assert.Equal(t, f.admin.ID, res.Record[0].ReportedBy)
		assert.Len(t, stored(), 2)
	})

	t.Run("resubmitting upserts", func(t *testing.T) {
		_, err := submit(dcp.StatusEntry{ItemID: laptop.ID, Condition: dcp.ConditionLost})
		require.NoError(t, err)
		got := stored()
		require.Len(t, got, 2)
		assert.Equal(t, dcp.ConditionLost, got[0].Condition)
	})

	t.Run("invalid entry", func(t *testing.T) {
		_, err := submit(
			dcp.StatusEntry{ItemID: laptop.ID, Condition: dcp.ConditionWorking},
			dcp.StatusEntry{ItemID: tv.ID, Condition: "broken"},
		)
		var vErr *core.ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, map[string]string{"entries.1.condition": "must be a valid value"}, vErr.FieldMap())
		assert.Equal(t, dcp.ConditionLost, stored()[0].Condition, "nothing changed")
	})

	t.Run("item of another batch", func(t *testing.T) {
		_, err := submit(
			dcp.StatusEntry{ItemID: laptop.ID, Condition: dcp.ConditionWorking},
			dcp.StatusEntry{ItemID: tv.ID, Condition: dcp.ConditionWorking},
			dcp.StatusEntry{ItemID: foreign.ID, Condition: dcp.ConditionWorking},
		)
		var vErr *core.ValidationError
		require.ErrorAs(t, errors.Cause(err), &vErr)
		assert.Contains(t, vErr.FieldMap(), "entries.2.item_id")

		got := stored()
		assert.Equal(t, dcp.ConditionLost, got[0].Condition, "earlier entries were rolled back")
		assert.Equal(t, dcp.ConditionForRepair, got[1].Condition)
	})

	t.Run("unknown recipient", func(t *testing.T) {
		_, err := f.statuses.Submit(ctx, f.admin, resource.Submission[dcp.StatusEntry]{
			ParentID: 404, Entries: []dcp.StatusEntry{{ItemID: laptop.ID, Condition: dcp.ConditionWorking}},
		})
		assert.True(t, core.IsNotFound(err))
	})

	t.Run("forbidden", func(t *testing.T) {
		reader := testutil.Actor(testutil.Capabilities(dcp.StatusResource, core.ActionAccess)...)
		_, err := f.statuses.Submit(ctx, reader, resource.Submission[dcp.StatusEntry]{})
		assert.True(t, core.IsForbidden(err))
	})

	t.Run("no create through the generic form", func(t *testing.T) {
		_, err := f.statuses.Create(ctx, f.admin, dcp.StatusEntry{ItemID: laptop.ID, Condition: dcp.ConditionWorking})
		assert.Error(t, err)
	})
}
