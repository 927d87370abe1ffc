package rest

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/crudox/crudox/compose"
	"github.com/crudox/crudox/crud"
	"github.com/crudox/crudox/dialect"
	"github.com/crudox/crudox/dialect/sql"
	"github.com/crudox/crudox/internal/schematest"
)

func testServer(t *testing.T) (*Server, *crud.Service, *crud.SoftDeleteService) {
	t.Helper()
	drv, err := sql.Open(dialect.SQLite, "file:rest_"+strings.ReplaceAll(t.Name(), "/", "_")+"?mode=memory&cache=shared")
	require.NoError(t, err)
	drv.DB().SetMaxOpenConns(1)
	t.Cleanup(func() { drv.Close() })
	ctx := context.Background()
	for _, stmt := range []string{
		`CREATE TABLE users (
			uid INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			age INTEGER,
			active INTEGER NOT NULL,
			country TEXT
		)`,
		`CREATE TABLE orders (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			deleted_at TEXT,
			status TEXT NOT NULL,
			amount TEXT NOT NULL,
			quantity INTEGER NOT NULL,
			user_id INTEGER NOT NULL REFERENCES users (uid)
		)`,
	} {
		require.NoError(t, drv.Exec(ctx, stmt, []any{}, nil))
	}

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	users := crud.NewService(schematest.Entity("User"), drv, crud.WithLogger(quiet))
	orders, err := crud.NewSoftDeleteService(schematest.Entity("Order"), drv, crud.WithLogger(quiet))
	require.NoError(t, err)

	srv := NewServer(WithLogger(quiet))
	srv.Mount(compose.MustResource(compose.Descriptor{
		Service: users,
		Operations: map[compose.Operation]compose.OpConfig{
			compose.OpRemove: {Enable: true},
		},
	}))
	srv.Mount(compose.MustResource(compose.Descriptor{
		Service: orders,
		Operations: map[compose.Operation]compose.OpConfig{
			compose.OpSoftRemove: {Enable: true},
			compose.OpRecover:    {Enable: true},
			compose.OpHardRemove: {Enable: true},
		},
	}))
	return srv, users, orders
}

func do(t *testing.T, srv *Server, method, target, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	var decoded map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded), "body: %s", rec.Body.String())
	}
	return rec, decoded
}

func TestServer_CreateAndGet(t *testing.T) {
	srv, _, _ := testServer(t)

	rec, body := do(t, srv, http.MethodPost, "/users", `{"name": "Ariel", "age": 30, "country": "NL"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	data := body["data"].(map[string]any)
	assert.Equal(t, "Ariel", data["name"])
	assert.Equal(t, true, data["active"], "default applied")

	rec, body = do(t, srv, http.MethodGet, "/users/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Ariel", body["data"].(map[string]any)["name"])

	rec, body = do(t, srv, http.MethodGet, "/users/999", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", body["error"].(map[string]any)["kind"])
}

func TestServer_ListFilterAndPaginate(t *testing.T) {
	srv, users, _ := testServer(t)
	ctx := context.Background()
	for _, u := range []crud.Record{
		{"name": "Ariel", "country": "NL"},
		{"name": "Noa", "country": "NL"},
		{"name": "Lior", "country": "IL"},
	} {
		_, err := users.Create(ctx, u)
		require.NoError(t, err)
	}

	rec, body := do(t, srv, http.MethodGet, `/users?q={"where":{"country":"NL"},"orderBy":[{"field":"name"}]}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	data := body["data"].([]any)
	require.Len(t, data, 2)
	assert.Equal(t, "Ariel", data[0].(map[string]any)["name"])
	info := body["pageInfo"].(map[string]any)
	assert.Equal(t, float64(2), info["total"])

	rec, body = do(t, srv, http.MethodPost, "/users/query",
		`{"orderBy":[{"field":"name","direction":"desc"}],"pagination":{"page":1,"limit":2}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	data = body["data"].([]any)
	require.Len(t, data, 2)
	assert.Equal(t, "Noa", data[0].(map[string]any)["name"])
	info = body["pageInfo"].(map[string]any)
	assert.Equal(t, float64(3), info["total"])
	assert.Equal(t, true, info["hasNextPage"])

	rec, body = do(t, srv, http.MethodGet, `/users?q={"where":{"nope":1}}`, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation", body["error"].(map[string]any)["kind"])
}

func TestServer_UpdateAndRemove(t *testing.T) {
	srv, users, _ := testServer(t)
	_, err := users.Create(context.Background(), crud.Record{"name": "Ariel"})
	require.NoError(t, err)

	rec, body := do(t, srv, http.MethodPatch, "/users/1", `{"country": "NZ"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "NZ", body["data"].(map[string]any)["country"])

	rec, body = do(t, srv, http.MethodPatch, "/users/1", `{"id": 9}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation", body["error"].(map[string]any)["kind"])

	rec, _ = do(t, srv, http.MethodDelete, "/users/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	rec, _ = do(t, srv, http.MethodGet, "/users/1", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_SoftDeleteRoutes(t *testing.T) {
	srv, users, orders := testServer(t)
	ctx := context.Background()
	u, err := users.Create(ctx, crud.Record{"name": "Ariel"})
	require.NoError(t, err)
	_, err = orders.Create(ctx, crud.Record{"status": "paid", "amount": "100.00", "user": u["id"]})
	require.NoError(t, err)

	rec, body := do(t, srv, http.MethodDelete, "/orders/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotNil(t, body["data"].(map[string]any)["deletedAt"])
	rec, _ = do(t, srv, http.MethodGet, "/orders/1", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec, body = do(t, srv, http.MethodPost, "/orders/1/recover", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, body["data"].(map[string]any)["deletedAt"])
	rec, _ = do(t, srv, http.MethodGet, "/orders/1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = do(t, srv, http.MethodDelete, "/orders/1/hard", "")
	require.Equal(t, http.StatusOK, rec.Code)
	rec, _ = do(t, srv, http.MethodGet, "/orders/1?q=", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_GroupedRoute(t *testing.T) {
	srv, users, orders := testServer(t)
	ctx := context.Background()
	u, err := users.Create(ctx, crud.Record{"name": "Ariel"})
	require.NoError(t, err)
	for _, o := range []crud.Record{
		{"status": "paid", "amount": "100.00", "user": u["id"]},
		{"status": "paid", "amount": "200.00", "user": u["id"]},
		{"status": "pending", "amount": "50.00", "user": u["id"]},
	} {
		_, err := orders.Create(ctx, o)
		require.NoError(t, err)
	}

	rec, body := do(t, srv, http.MethodPost, "/orders/grouped", `{
		"groupBy": {
			"fields": {"status": true},
			"aggregates": [{"field": "amount", "fn": "sum", "alias": "totalAmount"}]
		},
		"orderBy": [{"field": "status"}]
	}`)
	require.Equal(t, http.StatusOK, rec.Code)
	data := body["data"].([]any)
	require.Len(t, data, 2)
	paid := data[0].(map[string]any)
	assert.Equal(t, "paid", paid["status"])
	assert.Equal(t, "300", paid["totalAmount"])
	assert.Equal(t, float64(2), body["pageInfo"].(map[string]any)["total"])
}
