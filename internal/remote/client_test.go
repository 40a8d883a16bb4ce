package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/berrylist/backend/internal/storage/models"
)

func TestClientReadAll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/u1/events", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		json.NewEncoder(w).Encode(map[string]models.Event{
			"b": {Title: "Second", Date: "2026-03-02"},
			"a": {Title: "First", Date: "2026-03-01"},
		})
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL, Token: "tok"})
	events, err := c.ReadAll(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, events, 2)

	// Record keys become ids, output is sorted
	assert.Equal(t, "a", events[0].ID)
	assert.Equal(t, "b", events[1].ID)
}

func TestClientReadAllEmptyPartition(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL})
	events, err := c.ReadAll(context.Background(), "new-user")
	require.NoError(t, err, "a user with no partition has no events, not an error")
	assert.Empty(t, events)
}

func TestClientAuthErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL})
	_, err := c.ReadAll(context.Background(), "u1")
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	err = c.WriteOne(context.Background(), "u1", models.Event{ID: "a"})
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestClientServerErrorsAreUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL})
	_, err := c.ReadAll(context.Background(), "u1")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestClientConnectionRefusedIsUnavailable(t *testing.T) {
	c := NewClient(ClientConfig{BaseURL: "http://127.0.0.1:1", Timeout: 200 * time.Millisecond})
	_, err := c.ReadAll(context.Background(), "u1")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestClientDeleteToleratesMissingRecord(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL})
	assert.NoError(t, c.DeleteOne(context.Background(), "u1", "already-gone"))
}

func TestClientWriteOnePath(t *testing.T) {
	var gotPath, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL})
	require.NoError(t, c.WriteOne(context.Background(), "u1", models.Event{ID: "e 1", Title: "x", Date: "2026-03-01"}))

	assert.Equal(t, http.MethodPut, gotMethod)
	// r.URL.Path arrives decoded; the escaping happened on the wire
	assert.Equal(t, "/users/u1/events/e 1", gotPath)
}

func TestClientWriteAllStampsRecords(t *testing.T) {
	var got map[string]models.Event
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/users/u1/events", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL})
	events := []models.Event{
		{ID: "a", Title: "One", Date: "2026-03-01"},
		{ID: "b", Title: "Two", Date: "2026-03-02", UpdatedAt: "2020-01-01T00:00:00Z"},
	}
	require.NoError(t, c.WriteAll(context.Background(), "u1", events))

	require.Len(t, got, 2)
	for id, e := range got {
		assert.NotEmpty(t, e.UpdatedAt, "record %s", id)
		assert.NotEqual(t, "2020-01-01T00:00:00Z", e.UpdatedAt, "full writes re-stamp every record")
	}
}

func TestMemoryStoreFanOut(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	got := make(chan Snapshot, 4)
	sub, err := s.Subscribe(ctx, "u1", func(snap Snapshot) { got <- snap }, nil)
	require.NoError(t, err)

	require.NoError(t, s.WriteOne(ctx, "u1", models.Event{ID: "a", Title: "One", Date: "2026-03-01"}))

	select {
	case snap := <-got:
		require.Len(t, snap.Events, 1)
		assert.Equal(t, "a", snap.Events[0].ID)
	case <-time.After(time.Second):
		t.Fatal("no snapshot delivered")
	}

	// Writes to other users never cross partitions
	require.NoError(t, s.WriteOne(ctx, "u2", models.Event{ID: "b", Title: "Two", Date: "2026-03-01"}))
	select {
	case snap := <-got:
		t.Fatalf("unexpected snapshot for another user's write: %+v", snap)
	case <-time.After(100 * time.Millisecond):
	}

	sub.Unsubscribe()
	sub.Unsubscribe()
	assert.Zero(t, s.SubscriberCount("u1"))
}
