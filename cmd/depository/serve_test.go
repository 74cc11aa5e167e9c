package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzpsarthak13/depository/internal/testutil"
	"github.com/rzpsarthak13/depository/pkg/depository"
)

const peopleDDL = `CREATE TABLE people (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name VARCHAR(255),
	age INTEGER,
	verified BOOLEAN,
	created_at DATETIME,
	updated_at DATETIME
)`

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	db := testutil.NewSQLite(t, peopleDDL)
	depository.ResetDatabases()
	t.Cleanup(depository.ResetDatabases)
	require.NoError(t, depository.RegisterDatabase("default", db))

	model, pk, err := tableModel(context.Background(), "default", "people")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name", "age", "verified", "created_at", "updated_at"}, model.Fields())
	assert.Equal(t, "id", pk)

	repo, err := depository.New(depository.Config{
		Model:      func() depository.ModelFactory { return model },
		Table:      "people",
		PrimaryKey: pk,
		Logger:     testutil.NewTestLogger(t),
	})
	require.NoError(t, err)
	return newRecordHandler("people", repo, testutil.NewTestLogger(t))
}

func do(t *testing.T, h http.Handler, method, path, body string) (int, interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out interface{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec.Code, out
}

func TestRecordHandler_CRUD(t *testing.T) {
	h := newTestHandler(t)

	code, body := do(t, h, http.MethodPost, "/people", `{"name": "ann", "age": "30", "verified": true}`)
	require.Equal(t, http.StatusCreated, code, body)
	created := body.(map[string]interface{})
	assert.Equal(t, float64(1), created["id"])
	assert.Equal(t, float64(30), created["age"])
	assert.Equal(t, true, created["verified"])
	assert.NotEmpty(t, created["created_at"])

	code, body = do(t, h, http.MethodGet, "/people/1", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ann", body.(map[string]interface{})["name"])

	code, body = do(t, h, http.MethodPut, "/people/1", `{"id": 7, "age": 31}`)
	require.Equal(t, http.StatusOK, code, body)
	updated := body.(map[string]interface{})
	assert.Equal(t, float64(1), updated["id"], "the key is not writable")
	assert.Equal(t, float64(31), updated["age"])

	code, _ = do(t, h, http.MethodDelete, "/people/1", "")
	assert.Equal(t, http.StatusNoContent, code)

	code, _ = do(t, h, http.MethodGet, "/people/1", "")
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = do(t, h, http.MethodDelete, "/people/1", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestRecordHandler_List(t *testing.T) {
	h := newTestHandler(t)
	for _, body := range []string{
		`{"name": "ann", "age": 30}`,
		`{"name": "bob", "age": 40}`,
		`{"name": "cid", "age": 50}`,
	} {
		code, _ := do(t, h, http.MethodPost, "/people", body)
		require.Equal(t, http.StatusCreated, code)
	}

	names := func(body interface{}) []string {
		var out []string
		for _, r := range body.([]interface{}) {
			out = append(out, r.(map[string]interface{})["name"].(string))
		}
		return out
	}

	tests := []struct {
		path string
		want []string
	}{
		{path: "/people", want: []string{"ann", "bob", "cid"}},
		{path: "/people?name=bob", want: []string{"bob"}},
		{path: "/people?name=ann&name=cid", want: []string{"ann", "cid"}},
		{path: "/people?order=-age&limit=2", want: []string{"cid", "bob"}},
		{path: "/people?name=zed", want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			code, body := do(t, h, http.MethodGet, tt.path, "")
			require.Equal(t, http.StatusOK, code, body)
			assert.Equal(t, tt.want, names(body))
		})
	}
}

func TestRecordHandler_BadRequests(t *testing.T) {
	h := newTestHandler(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   string
	}{
		{name: "unknown field", method: http.MethodPost, path: "/people", body: `{"name": "ann", "shoe": 42}`, want: "unknown field(s) shoe"},
		{name: "not json", method: http.MethodPost, path: "/people", body: `name=ann`, want: "invalid JSON"},
		{name: "uncoercible integer", method: http.MethodPost, path: "/people", body: `{"age": "old"}`, want: "coercion"},
		{name: "unknown filter", method: http.MethodGet, path: "/people?hat=1", want: `unknown field "hat"`},
		{name: "bad limit", method: http.MethodGet, path: "/people?limit=x", want: `invalid limit "x"`},
		{name: "bad order", method: http.MethodGet, path: "/people?order=hat", want: `unknown field "hat"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := do(t, h, tt.method, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, code)
			assert.Contains(t, body.(map[string]interface{})["error"], tt.want)
		})
	}
}

func TestRecordHandler_Health(t *testing.T) {
	h := newTestHandler(t)
	code, body := do(t, h, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, code)
	status := body.(map[string]interface{})
	assert.Equal(t, "ok", status["status"])
	assert.Equal(t, []interface{}{"default"}, status["databases"])
}
