package cmd

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIClient_GetDecodesJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tasks/task-1", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"task-1","status":"done"}`))
	}))
	defer srv.Close()

	client := newAPIClient(srv.URL)
	var out taskView
	require.NoError(t, client.get("/api/tasks/task-1", &out))
	assert.Equal(t, "task-1", out.ID)
	assert.Equal(t, "done", out.Status)
}

func TestAPIClient_PostEncodesBodyAndDecodesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"id":"task-2","status":"pending"}`))
	}))
	defer srv.Close()

	client := newAPIClient(srv.URL)
	var out taskView
	require.NoError(t, client.post("/api/tasks", map[string]string{"description": "x"}, &out))
	assert.Equal(t, "task-2", out.ID)
}

func TestAPIClient_ErrorStatusSurfacesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("description is required"))
	}))
	defer srv.Close()

	client := newAPIClient(srv.URL)
	err := client.get("/api/tasks/missing", &taskView{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "description is required")
}
