package inmemdb_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/sdoims/core"
	"github.com/trezcool/sdoims/core/resource"
	inmemdb "github.com/trezcool/sdoims/storage/database/inmem"
)

type (
	region struct {
		ID        int64     `db:"id"`
		Name      string    `db:"name"`
		CreatedAt time.Time `db:"created_at"`
		UpdatedAt time.Time `db:"updated_at"`
	}

	town struct {
		ID        int64     `db:"id"`
		Name      string    `db:"name"`
		Code      string    `db:"code"`
		RegionID  int64     `db:"region_id"`
		CreatedAt time.Time `db:"created_at"`
		UpdatedAt time.Time `db:"updated_at"`
		DeletedAt null.Time `db:"deleted_at"`
	}
)

func (r region) GetID() int64 { return r.ID }
func (t town) GetID() int64   { return t.ID }

var (
	regionTable = resource.Table{Name: "regions", Columns: []string{"name"}, Search: []string{"name"}, OldestFirst: true}
	townTable   = resource.Table{
		Name:        "towns",
		Columns:     []string{"name", "code", "region_id"},
		Search:      []string{"name", "code"},
		Via:         []resource.Relation{{Table: "regions", ForeignKey: "region_id", Column: "name"}},
		ScopeColumn: "region_id",
		SoftDelete:  true,
		Unique:      [][]string{{"code"}},
	}
)

type world struct {
	db      *inmemdb.DB
	regions *inmemdb.Repository[region]
	towns   *inmemdb.Repository[town]
}

func newWorld(t *testing.T) world {
	t.Helper()
	db := inmemdb.NewDB()

	// every write is one second after the previous one
	clock := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	db.SetClock(func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	})
	return world{
		db:      db,
		regions: inmemdb.NewRepository[region](db, regionTable),
		towns:   inmemdb.NewRepository[town](db, townTable),
	}
}

func (w world) seed(t *testing.T) (north, south region) {
	t.Helper()
	ctx := context.Background()
	north, south = region{Name: "Northern"}, region{Name: "Southern"}
	require.NoError(t, w.regions.Create(ctx, &north))
	require.NoError(t, w.regions.Create(ctx, &south))

	for i, name := range []string{"Aparri", "Baggao", "Claveria"} {
		tw := town{Name: name, Code: fmt.Sprintf("N%d", i), RegionID: north.ID}
		require.NoError(t, w.towns.Create(ctx, &tw))
	}
	tw := town{Name: "Dumaguete", Code: "S0", RegionID: south.ID}
	require.NoError(t, w.towns.Create(ctx, &tw))
	return north, south
}

func names(towns []town) []string {
	out := make([]string, len(towns))
	for i, t := range towns {
		out[i] = t.Name
	}
	return out
}

func page(n int) resource.Query {
	return resource.Query{Page: n, PageSize: 2}
}

func TestRepository_List(t *testing.T) {
	w := newWorld(t)
	north, _ := w.seed(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		query     resource.Query
		wantNames []string
		wantTotal int
	}{
		{"newest first", page(1), []string{"Dumaguete", "Claveria"}, 4},
		{"second page", page(2), []string{"Baggao", "Aparri"}, 4},
		{"past the end", page(3), []string{}, 4},
		{"invalid page", page(0), []string{}, 4},
		{"own column", resource.Query{Page: 1, PageSize: 10, Search: "bag"}, []string{"Baggao"}, 1},
		{"code column", resource.Query{Page: 1, PageSize: 10, Search: "s0"}, []string{"Dumaguete"}, 1},
		{"related column", resource.Query{Page: 1, PageSize: 10, Search: "NORTH"}, []string{"Claveria", "Baggao", "Aparri"}, 3},
		{"no match", resource.Query{Page: 1, PageSize: 10, Search: "manila"}, []string{}, 0},
		{"scoped", page(1).Scoped(north.ID), []string{"Claveria", "Baggao"}, 3},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, total, err := w.towns.List(ctx, tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.wantNames, names(got))
			assert.Equal(t, tt.wantTotal, total)
		})
	}
}

func TestRepository_List_oldestFirst(t *testing.T) {
	w := newWorld(t)
	w.seed(t)

	got, total, err := w.regions.List(context.Background(), page(1))
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, "Northern", got[0].Name)
	assert.Equal(t, "Southern", got[1].Name)
}

func TestRepository_softDelete(t *testing.T) {
	w := newWorld(t)
	w.seed(t)
	ctx := context.Background()

	require.NoError(t, w.towns.Delete(ctx, 1))
	require.NoError(t, w.towns.Delete(ctx, 1), "deleting twice is a no-op")
	require.NoError(t, w.towns.Delete(ctx, 99), "deleting a missing row is a no-op")

	_, err := w.towns.Get(ctx, 1, false)
	assert.True(t, core.IsNotFound(err))
	trashed, err := w.towns.Get(ctx, 1, true)
	require.NoError(t, err)
	assert.True(t, trashed.DeletedAt.Valid)

	_, total, err := w.towns.List(ctx, page(1))
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	_, total, err = w.towns.List(ctx, resource.Query{Page: 1, PageSize: 2, WithTrashed: true})
	require.NoError(t, err)
	assert.Equal(t, 4, total)

	live, err := w.db.ExistsByID(ctx, "towns", 1)
	require.NoError(t, err)
	assert.False(t, live)

	taken, err := w.towns.Exists(ctx, "code", "N0", false)
	require.NoError(t, err)
	assert.False(t, taken)
	taken, err = w.towns.Exists(ctx, "code", "N0", true)
	require.NoError(t, err)
	assert.True(t, taken, "trashed rows keep their unique values")

	err = w.towns.Update(ctx, &trashed)
	assert.True(t, core.IsNotFound(err))
}

func TestRepository_unique(t *testing.T) {
	w := newWorld(t)
	w.seed(t)
	ctx := context.Background()

	dup := town{Name: "Copy", Code: "N1", RegionID: 1}
	err := w.towns.Create(ctx, &dup)
	assert.True(t, core.IsConflict(err))

	// a trashed row still holds its code
	require.NoError(t, w.towns.Delete(ctx, 1))
	dup.Code = "N0"
	assert.True(t, core.IsConflict(w.towns.Create(ctx, &dup)))

	tw, err := w.towns.Get(ctx, 2, false)
	require.NoError(t, err)
	tw.Code = "S0"
	assert.True(t, core.IsConflict(w.towns.Update(ctx, &tw)))
	tw.Name = "Baggao Town"
	tw.Code = "N1"
	require.NoError(t, w.towns.Update(ctx, &tw), "keeping its own code is no conflict")
}

func TestRepository_Update_timestamps(t *testing.T) {
	w := newWorld(t)
	w.seed(t)
	ctx := context.Background()

	before, err := w.towns.Get(ctx, 2, false)
	require.NoError(t, err)

	edited := before
	edited.Name = "Baggao Proper"
	edited.CreatedAt = time.Time{}
	require.NoError(t, w.towns.Update(ctx, &edited))

	after, err := w.towns.Get(ctx, 2, false)
	require.NoError(t, err)
	assert.Equal(t, "Baggao Proper", after.Name)
	assert.Equal(t, before.CreatedAt, after.CreatedAt)
	assert.True(t, after.UpdatedAt.After(before.UpdatedAt))
}

func TestRepository_FindBy_and_Upsert(t *testing.T) {
	w := newWorld(t)
	north, _ := w.seed(t)
	ctx := context.Background()

	found, err := w.towns.FindBy(ctx, "region_id", north.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Claveria", "Baggao", "Aparri"}, names(found))

	_, err = w.towns.FindBy(ctx, "population", 1)
	assert.Error(t, err)

	up := town{Name: "Aparri Renamed", Code: "N0", RegionID: north.ID}
	require.NoError(t, w.towns.Upsert(ctx, &up, "code"))
	assert.Equal(t, int64(1), up.ID)

	fresh := town{Name: "Enrile", Code: "N9", RegionID: north.ID}
	require.NoError(t, w.towns.Upsert(ctx, &fresh, "code"))
	assert.Equal(t, int64(5), fresh.ID)

	got, err := w.towns.Get(ctx, 1, false)
	require.NoError(t, err)
	assert.Equal(t, "Aparri Renamed", got.Name)
}

func TestDB_InTx(t *testing.T) {
	w := newWorld(t)
	w.seed(t)
	ctx := context.Background()
	links := inmemdb.NewLinks(w.db, "region_towns", "region_id", "town_id")
	require.NoError(t, links.Set(ctx, 1, []int64{1, 2}))

	boom := errors.New("boom")
	err := w.db.InTx(ctx, func(ctx context.Context) error {
		tw := town{Name: "Enrile", Code: "N9", RegionID: 1}
		if err := w.towns.Create(ctx, &tw); err != nil {
			return err
		}
		if err := w.towns.Delete(ctx, 2); err != nil {
			return err
		}
		if err := links.Set(ctx, 1, nil); err != nil {
			return err
		}
		// nested calls join the running transaction
		return w.db.InTx(ctx, func(context.Context) error { return boom })
	})
	require.ErrorIs(t, err, boom)

	_, total, err := w.towns.List(ctx, page(1))
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	_, err = w.towns.Get(ctx, 2, false)
	assert.NoError(t, err)
	ids, err := links.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, ids)

	require.NoError(t, w.db.InTx(ctx, func(ctx context.Context) error {
		tw := town{Name: "Enrile", Code: "N9", RegionID: 1}
		return w.towns.Create(ctx, &tw)
	}))
	_, total, err = w.towns.List(ctx, page(1))
	require.NoError(t, err)
	assert.Equal(t, 5, total)
}

func TestDB_InTx_keepsWritesOutsideTheTransaction(t *testing.T) {
	w := newWorld(t)
	north, _ := w.seed(t)
	outside := context.Background()

	boom := errors.New("boom")
	err := w.db.InTx(outside, func(ctx context.Context) error {
		north.Name = "Northern Renamed"
		if err := w.regions.Update(ctx, &north); err != nil {
			return err
		}

		// concurrent writers do not run in the transaction's context
		east := region{Name: "Eastern"}
		if err := w.regions.Create(outside, &east); err != nil {
			return err
		}
		tw, err := w.towns.Get(outside, 4, false)
		if err != nil {
			return err
		}
		tw.Name = "Dumaguete City"
		if err := w.towns.Update(outside, &tw); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := w.regions.Get(outside, north.ID, false)
	require.NoError(t, err)
	assert.Equal(t, "Northern", got.Name, "the transaction's write is undone")

	regions, total, err := w.regions.List(outside, resource.Query{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, "Eastern", regions[2].Name)
	tw, err := w.towns.Get(outside, 4, false)
	require.NoError(t, err)
	assert.Equal(t, "Dumaguete City", tw.Name)
}

func TestLinks(t *testing.T) {
	db := inmemdb.NewDB()
	links := inmemdb.NewLinks(db, "role_permissions", "role_id", "permission_id")
	ctx := context.Background()

	ids, err := links.Get(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, ids)

	require.NoError(t, links.Set(ctx, 1, []int64{3, 1, 3, 2}))
	ids, err = links.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, ids)

	require.NoError(t, links.Set(ctx, 1, []int64{2}))
	ids, err = links.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, ids)

	ids, err = links.Get(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, ids)
}
