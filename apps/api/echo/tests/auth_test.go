package tests

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/sdoims/apps/api/echo"
	"github.com/trezcool/sdoims/core"
	"github.com/trezcool/sdoims/core/user"
	testutil "github.com/trezcool/sdoims/tests"
)

func TestAuthApi_Login(t *testing.T) {
	w := setup(t)

	tests := []httpTest{
		{
			name:     "unknown email",
			body:     marchallObj(t, LoginRequest{Email: "nobody@deped.ph", Password: goodPwd}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name:     "wrong password",
			body:     marchallObj(t, LoginRequest{Email: w.clerk.Email, Password: "not-it"}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name:     "missing password",
			body:     marchallObj(t, LoginRequest{Email: w.clerk.Email}),
			wantCode: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(newRequest(http.MethodPost, "/v1/auth/login", tt.body))
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("success", func(t *testing.T) {
		rec := do(newRequest(http.MethodPost, "/v1/auth/login", marchallObj(t, LoginRequest{Email: " CLERK@deped.ph ", Password: goodPwd})))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var res LoginResponse
		decode(t, rec, &res)
		require.NotEmpty(t, res.Token)

		// the token authenticates the user
		rec = do(newAuthRequest(http.MethodGet, "/v1/auth/me", res.Token))
		require.Equal(t, http.StatusOK, rec.Code)
		var actor core.Actor
		decode(t, rec, &actor)
		assert.Equal(t, w.clerk.ID, actor.ID)

		usr := testutil.Must(users.GetByEmail(context.Background(), w.clerk.Email))
		assert.True(t, usr.LastLogin.Valid)
	})

	t.Run("inactive user", func(t *testing.T) {
		usr := testutil.Must(users.GetByEmail(context.Background(), w.reviewer.Email))
		usr.IsActive = false
		require.NoError(t, users.Save(context.Background(), &usr))

		rec := do(newRequest(http.MethodPost, "/v1/auth/login", marchallObj(t, LoginRequest{Email: usr.Email, Password: goodPwd})))
		checkCodeAndData(t, httpTest{wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "authentication failed"})}, rec)

		// tokens issued before the deactivation stop working
		rec = do(newAuthRequest(http.MethodGet, "/v1/auth/me", w.reviewerToken))
		checkCodeAndData(t, httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, httpErr{Error: "user not authenticated"})}, rec)
	})
}

func TestAuthApi_Me(t *testing.T) {
	w := setup(t)

	runHTTPTests(t, []httpTest{
		{
			name:     "no token",
			method:   http.MethodGet,
			path:     "/v1/auth/me",
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		},
		{
			name:     "clerk",
			method:   http.MethodGet,
			path:     "/v1/auth/me",
			token:    w.clerkToken,
			wantCode: http.StatusOK,
			wantData: marchallObj(t, core.NewActor(w.clerk.ID, w.clerk.Name, w.clerk.Email, "division_access", "division_show")),
		},
	})

	t.Run("deleted user", func(t *testing.T) {
		_, err := users.Delete(context.Background(), testutil.Superuser(), w.clerk.ID)
		require.NoError(t, err)

		rec := do(newAuthRequest(http.MethodGet, "/v1/auth/me", w.clerkToken))
		checkCodeAndData(t, httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, httpErr{Error: "user not authenticated"})}, rec)
	})
}

func TestAuthApi_RefreshToken(t *testing.T) {
	w := setup(t)

	rec := do(newAuthRequest(http.MethodPost, "/v1/auth/token-refresh", w.adminToken))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res LoginResponse
	decode(t, rec, &res)
	require.NotEmpty(t, res.Token)

	// a refresh window that has already closed
	old := NewClaims(conf, user.User{ID: w.admin.ID, Name: w.admin.Name, Email: w.admin.Email}, 1)
	token := testutil.Must(GenerateToken(conf, old))
	rec = do(newAuthRequest(http.MethodPost, "/v1/auth/token-refresh", token))
	checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "refresh has expired"})}, rec)
}
