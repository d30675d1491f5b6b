package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPClient_GenerateReturnsFirstChoice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"text":"a generated plan"}]}`))
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, "secret", "gpt-test")
	text, err := client.Generate(context.Background(), "plan this")

	require.NoError(t, err)
	assert.Equal(t, "a generated plan", text)
}

func TestHTTPClient_GenerateSurfacesHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("upstream exploded"))
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, "", "gpt-test")
	_, err := client.Generate(context.Background(), "plan this")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestHTTPClient_GenerateErrorsOnNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, "", "gpt-test")
	_, err := client.Generate(context.Background(), "plan this")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}

func TestStubClient_ReturnsConfiguredResponseOrError(t *testing.T) {
	ok := &StubClient{Response: "fixed text"}
	text, err := ok.Generate(context.Background(), "anything")
	require.NoError(t, err)
	assert.Equal(t, "fixed text", text)

	failing := &StubClient{Err: assertErr("boom")}
	_, err = failing.Generate(context.Background(), "anything")
	assert.EqualError(t, err, "boom")
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
