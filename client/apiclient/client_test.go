package apiclient_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/sdoims/client/apiclient"
	"github.com/trezcool/sdoims/client/listcache"
	"github.com/trezcool/sdoims/core/resource"
)

const token = "tok3n"

type division struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func (d division) GetID() int64 { return d.ID }

// fakeAPI mimics the routes the client uses.
func fakeAPI(t *testing.T, events chan interface{}) *httptest.Server {
	t.Helper()
	authed := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer "+token && r.URL.Query().Get("token") != token {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing or malformed jwt"})
				return
			}
			next(w, r)
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var creds map[string]string
		_ = json.NewDecoder(r.Body).Decode(&creds)
		if creds["password"] != "secret" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "authentication failed"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"token": token})
	})
	mux.HandleFunc("/v1/auth/me", authed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"id": 7, "name": "Ana Reyes", "email": "clerk@deped.ph", "permissions": []string{"division_access"},
		})
	}))
	mux.HandleFunc("/v1/divisions", authed(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page, _ := strconv.Atoi(q.Get("page"))
		data := []division{{ID: 1, Name: "Cagayan " + q.Get("search")}, {ID: 2, Name: "Isabela"}}
		writeJSON(w, http.StatusOK, resource.Paginate(data, 12, page, 10))
	}))
	mux.HandleFunc("/v1/schools", authed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "permission denied"})
	}))
	mux.HandleFunc("/v1/districts", authed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"division_id": "division_id must reference an existing record"})
	}))
	mux.HandleFunc("/v1/realtime", authed(func(w http.ResponseWriter, r *http.Request) {
		upgrader := websocket.Upgrader{}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteJSON(map[string]string{"socket_id": "s-1", "channel": r.URL.Query().Get("channel")})
		for ev := range events {
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		}
	}))

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNew(t *testing.T) {
	_, err := apiclient.New("ftp://sdo.example.ph", nil)
	assert.Error(t, err)

	_, err = apiclient.New("https://sdo.example.ph/", nil)
	assert.NoError(t, err)
}

func TestClient_Login(t *testing.T) {
	srv := fakeAPI(t, nil)
	ctx := context.Background()
	c, err := apiclient.New(srv.URL, srv.Client())
	require.NoError(t, err)

	// unauthenticated
	_, err = apiclient.List[division](ctx, c, "/v1/divisions", resource.Query{Page: 1})
	var apiErr *apiclient.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "missing or malformed jwt", apiErr.Message)

	err = c.Login(ctx, "clerk@deped.ph", "wrong")
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "authentication failed", apiErr.Message)

	require.NoError(t, c.Login(ctx, "clerk@deped.ph", "secret"))
	_, err = apiclient.List[division](ctx, c, "/v1/divisions", resource.Query{Page: 1})
	assert.NoError(t, err)

	me, err := c.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, apiclient.Actor{ID: 7, Name: "Ana Reyes", Email: "clerk@deped.ph", Permissions: []string{"division_access"}}, me)
}

func TestList(t *testing.T) {
	srv := fakeAPI(t, nil)
	ctx := context.Background()
	c, err := apiclient.New(srv.URL, srv.Client())
	require.NoError(t, err)
	c.SetToken(token)

	page, err := apiclient.List[division](ctx, c, "/v1/divisions", resource.Query{Search: "north", Page: 2})
	require.NoError(t, err)
	assert.Equal(t, 12, page.Total)
	assert.Equal(t, 2, page.CurrentPage)
	assert.Equal(t, "Cagayan north", page.Data[0].Name)

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantFields map[string]string
		forbidden  bool
	}{
		{name: "forbidden", path: "/v1/schools", wantStatus: http.StatusForbidden, forbidden: true},
		{name: "validation", path: "/v1/districts", wantStatus: http.StatusBadRequest, wantFields: map[string]string{"division_id": "division_id must reference an existing record"}},
		{name: "unknown route", path: "/v1/nowhere", wantStatus: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := apiclient.List[division](ctx, c, tt.path, resource.Query{Page: 1})
			var apiErr *apiclient.Error
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.wantStatus, apiErr.Status)
			assert.Equal(t, tt.wantFields, apiErr.Fields)
			assert.Equal(t, tt.forbidden, apiclient.IsForbidden(err))
		})
	}
}

func TestFollow(t *testing.T) {
	events := make(chan interface{}, 4)
	srv := fakeAPI(t, events)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := apiclient.New(srv.URL, srv.Client())
	require.NoError(t, err)
	c.SetToken(token)

	q := resource.Query{Page: 1}
	first, err := apiclient.List[division](ctx, c, "/v1/divisions", q)
	require.NoError(t, err)
	changed := make(chan resource.Page[division], 4)
	cache := listcache.New(first, q, apiclient.Fetcher[division](c, "/v1/divisions"), listcache.Options[division]{
		OnChange: func(p resource.Page[division]) { changed <- p },
	})
	defer cache.Close()

	sub, err := c.Subscribe(ctx, "divisions")
	require.NoError(t, err)
	defer sub.Close()
	assert.Equal(t, "s-1", sub.SocketID)
	assert.Equal(t, "divisions", sub.Channel)
	go apiclient.Follow(ctx, sub, cache)

	events <- map[string]interface{}{"id": "01", "channel": "divisions", "event": "division.updated", "payload": division{ID: 99, Name: "Phantom"}}
	events <- map[string]interface{}{"id": "02", "channel": "divisions", "event": "division.updated", "payload": division{ID: 2, Name: "Isabela (updated)"}}
	close(events)

	select {
	case p := <-changed:
		require.Len(t, p.Data, 2)
		assert.Equal(t, "Isabela (updated)", p.Data[1].Name)
	case <-ctx.Done():
		t.Fatal("the update was not merged")
	}
	assert.Len(t, cache.Page().Data, 2)
}

func TestSubscription_Close_stopsBlockedReader(t *testing.T) {
	events := make(chan interface{}, 32)
	t.Cleanup(func() { close(events) })
	srv := fakeAPI(t, events)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := apiclient.New(srv.URL, srv.Client())
	require.NoError(t, err)
	c.SetToken(token)
	sub, err := c.Subscribe(ctx, "divisions")
	require.NoError(t, err)

	// nobody reads C: the buffer fills and the reader blocks holding one more event
	for i := 0; i < cap(sub.C)+4; i++ {
		events <- map[string]interface{}{"id": strconv.Itoa(i), "channel": "divisions", "event": "division.updated", "payload": division{ID: int64(i)}}
	}
	require.Eventually(t, func() bool { return len(sub.C) == cap(sub.C) }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, sub.Close())
	time.Sleep(50 * time.Millisecond)

	received := 0
	for {
		select {
		case _, ok := <-sub.C:
			if !ok {
				assert.Equal(t, cap(sub.C), received, "the blocked event is dropped on close")
				return
			}
			received++
		case <-ctx.Done():
			t.Fatal("C was not closed")
		}
	}
}
