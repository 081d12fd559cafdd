package tests

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/sdoims/core/district"
	"github.com/trezcool/sdoims/core/division"
	"github.com/trezcool/sdoims/core/resource"
	"github.com/trezcool/sdoims/core/school"
	testutil "github.com/trezcool/sdoims/tests"
)

// mutation is the body of create, update, delete and bulk responses.
type mutation[T any] struct {
	Message string `json:"message"`
	Data    T      `json:"data"`
}

func TestResourceApi_Division(t *testing.T) {
	w := setup(t)

	// create
	rec := do(newAuthRequest(http.MethodPost, "/v1/divisions", w.adminToken, marchallObj(t, division.NewDivision{Name: "  Cagayan ", Region: "Region II"})))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created mutation[division.Division]
	decode(t, rec, &created)
	assert.Equal(t, "Division created successfully.", created.Message)
	assert.Equal(t, "Cagayan", created.Data.Name)
	path := fmt.Sprintf("/v1/divisions/%d", created.Data.ID)

	// show
	rec = do(newAuthRequest(http.MethodGet, path, w.clerkToken))
	require.Equal(t, http.StatusOK, rec.Code)
	var shown division.Division
	decode(t, rec, &shown)
	assert.Equal(t, created.Data.ID, shown.ID)

	// edit form
	rec = do(newAuthRequest(http.MethodGet, path+"/edit", w.adminToken))
	require.Equal(t, http.StatusOK, rec.Code)
	var form resource.Form[division.Division]
	decode(t, rec, &form)
	require.NotNil(t, form.Data)
	assert.Equal(t, "Cagayan", form.Data.Name)
	assert.Empty(t, form.Options)

	// update
	rec = do(newAuthRequest(http.MethodPut, path, w.adminToken, []byte(`{"region":"Cagayan Valley"}`)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated mutation[division.Division]
	decode(t, rec, &updated)
	assert.Equal(t, "Division updated successfully.", updated.Message)
	assert.Equal(t, "Cagayan", updated.Data.Name)
	assert.Equal(t, "Cagayan Valley", updated.Data.Region)

	// delete, twice
	for i := 0; i < 2; i++ {
		rec = do(newAuthRequest(http.MethodDelete, path, w.adminToken))
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: []byte(`{"message":"Division deleted successfully."}`)}, rec)
	}

	// trashed records only show on request
	rec = do(newAuthRequest(http.MethodGet, path, w.adminToken))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = do(newAuthRequest(http.MethodGet, path+"?with_trashed=true", w.adminToken))
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &shown)
	assert.True(t, shown.DeletedAt.Valid)
}

func TestResourceApi_errors(t *testing.T) {
	w := setup(t)
	ctx := context.Background()
	div := testutil.Must(divisionsCreate(ctx, "Isabela"))
	path := fmt.Sprintf("/v1/divisions/%d", div.ID)

	runHTTPTests(t, []httpTest{
		{
			name:     "missing token",
			method:   http.MethodGet,
			path:     "/v1/divisions",
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		},
		{
			name:     "invalid token",
			method:   http.MethodGet,
			path:     "/v1/divisions",
			token:    "not-a-jwt",
			wantCode: http.StatusUnauthorized,
		},
		{
			name:     "list forbidden",
			method:   http.MethodGet,
			path:     "/v1/schools",
			token:    w.clerkToken,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errPermissionDenied),
		},
		{
			name:     "create form forbidden",
			method:   http.MethodGet,
			path:     "/v1/divisions/create",
			token:    w.clerkToken,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errPermissionDenied),
		},
		{
			name:     "create forbidden",
			method:   http.MethodPost,
			path:     "/v1/divisions",
			body:     marchallObj(t, division.NewDivision{Name: "Batanes"}),
			token:    w.clerkToken,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errPermissionDenied),
		},
		{
			name:     "edit form forbidden",
			method:   http.MethodGet,
			path:     path + "/edit",
			token:    w.clerkToken,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errPermissionDenied),
		},
		{
			name:     "update forbidden",
			method:   http.MethodPut,
			path:     path,
			body:     []byte(`{"name":"Nueva Vizcaya"}`),
			token:    w.clerkToken,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errPermissionDenied),
		},
		{
			name:     "delete forbidden",
			method:   http.MethodDelete,
			path:     path,
			token:    w.clerkToken,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errPermissionDenied),
		},
		{
			name:     "forbidden wins over a bad id",
			method:   http.MethodDelete,
			path:     "/v1/divisions/abc",
			token:    w.clerkToken,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errPermissionDenied),
		},
		{
			name:     "malformed id",
			method:   http.MethodGet,
			path:     "/v1/divisions/abc",
			token:    w.adminToken,
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
		{
			name:     "unknown id",
			method:   http.MethodGet,
			path:     "/v1/divisions/9999",
			token:    w.adminToken,
			wantCode: http.StatusNotFound,
		},
		{
			name:     "update unknown id",
			method:   http.MethodPut,
			path:     "/v1/divisions/9999",
			body:     []byte(`{"name":"Nueva Vizcaya"}`),
			token:    w.adminToken,
			wantCode: http.StatusNotFound,
		},
		{
			name:     "delete unknown id",
			method:   http.MethodDelete,
			path:     "/v1/divisions/9999",
			token:    w.adminToken,
			wantCode: http.StatusOK,
			wantData: []byte(`{"message":"Division deleted successfully."}`),
		},
		{
			name:     "malformed body",
			method:   http.MethodPost,
			path:     "/v1/divisions",
			body:     []byte(`{"name":`),
			token:    w.adminToken,
			wantCode: http.StatusBadRequest,
		},
	})

	// nothing the clerk attempted went through
	rec := do(newAuthRequest(http.MethodGet, path, w.adminToken))
	require.Equal(t, http.StatusOK, rec.Code)
	var shown division.Division
	decode(t, rec, &shown)
	assert.Equal(t, "Isabela", shown.Name)
	assert.False(t, shown.DeletedAt.Valid)
}

func TestResourceApi_validation(t *testing.T) {
	w := setup(t)

	tests := []struct {
		name      string
		path      string
		body      string
		wantField string
	}{
		{"blank division name", "/v1/divisions", `{"name":"   "}`, "name"},
		{"unknown division", "/v1/districts", `{"name":"North","division_id":77}`, "division_id"},
		{"bad school code", "/v1/schools", `{"name":"Aparri East","school_code":"12ab","district_id":1}`, "school_code"},
		{"bad school year", "/v1/sbm-checklists", `{"title":"SBM","school_year":"2024-2026"}`, "school_year"},
		{"bad permission title", "/v1/permissions", `{"title":"school show"}`, "title"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(newAuthRequest(http.MethodPost, tt.path, w.adminToken, []byte(tt.body)))
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

			var fields map[string]string
			decode(t, rec, &fields)
			assert.Contains(t, fields, tt.wantField)
		})
	}
}

func TestResourceApi_list(t *testing.T) {
	w := setup(t)
	ctx := context.Background()
	for i := 1; i <= 12; i++ {
		testutil.Must(divisionsCreate(ctx, fmt.Sprintf("Division %02d", i)))
	}

	rec := do(newAuthRequest(http.MethodGet, "/v1/divisions?page=2", w.clerkToken))
	require.Equal(t, http.StatusOK, rec.Code)
	var page resource.Page[division.Division]
	decode(t, rec, &page)
	assert.Equal(t, 12, page.Total)
	assert.Equal(t, 10, page.PerPage)
	assert.Equal(t, 2, page.CurrentPage)
	assert.Equal(t, 2, page.LastPage)
	assert.Equal(t, 11, page.From)
	assert.Equal(t, 12, page.To)
	require.Len(t, page.Data, 2)
	require.NotEmpty(t, page.Links)
	assert.Equal(t, "« Previous", page.Links[0].Label)
	assert.Equal(t, "Next »", page.Links[len(page.Links)-1].Label)
	assert.Nil(t, page.Links[len(page.Links)-1].Page)

	rec = do(newAuthRequest(http.MethodGet, "/v1/divisions?search=+division+07+", w.clerkToken))
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &page)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "Division 07", page.Data[0].Name)

	// pages past the end are empty, not errors
	rec = do(newAuthRequest(http.MethodGet, "/v1/divisions?page=9", w.clerkToken))
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &page)
	assert.Empty(t, page.Data)
	assert.Equal(t, 12, page.Total)
}

func TestResourceApi_forms(t *testing.T) {
	w := setup(t)
	ctx := context.Background()
	north := testutil.Must(divisionsCreate(ctx, "North"))
	south := testutil.Must(divisionsCreate(ctx, "South"))

	rec := do(newAuthRequest(http.MethodGet, "/v1/districts/create", w.adminToken))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var form resource.Form[district.District]
	decode(t, rec, &form)
	assert.Nil(t, form.Data)
	assert.ElementsMatch(t, []resource.Option{
		{Value: north.ID, Label: "North"},
		{Value: south.ID, Label: "South"},
	}, form.Options["divisions"])

	// create a district and a school through the API, then read the school's edit form
	rec = do(newAuthRequest(http.MethodPost, "/v1/districts", w.adminToken, marchallObj(t, district.NewDistrict{Name: "Aparri", DivisionID: north.ID})))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var dist mutation[district.District]
	decode(t, rec, &dist)

	rec = do(newAuthRequest(http.MethodPost, "/v1/schools", w.adminToken, marchallObj(t, school.NewSchool{
		Name: "Aparri East CS", SchoolCode: "103245", DistrictID: dist.Data.ID,
	})))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var sch mutation[school.School]
	decode(t, rec, &sch)

	rec = do(newAuthRequest(http.MethodGet, fmt.Sprintf("/v1/schools/%d/edit", sch.Data.ID), w.adminToken))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var schForm resource.Form[school.School]
	decode(t, rec, &schForm)
	require.NotNil(t, schForm.Data)
	assert.Equal(t, "103245", schForm.Data.SchoolCode)
	assert.Equal(t, []resource.Option{{Value: dist.Data.ID, Label: "Aparri"}}, schForm.Options["districts"])

	// duplicate school code
	rec = do(newAuthRequest(http.MethodPost, "/v1/schools", w.adminToken, marchallObj(t, school.NewSchool{
		Name: "Other", SchoolCode: "103245", DistrictID: dist.Data.ID,
	})))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var fields map[string]string
	decode(t, rec, &fields)
	assert.Contains(t, fields, "school_code")
}

// divisionsCreate stores a division through the API's own container.
func divisionsCreate(ctx context.Context, name string) (division.Division, error) {
	res, err := deps.Divisions.Create(ctx, testutil.Superuser(), division.NewDivision{Name: name})
	return res.Record, err
}
