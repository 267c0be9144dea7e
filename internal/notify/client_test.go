package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_DeliverSendsEveryChunkToEveryRecipient(t *testing.T) {
	var got []message
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		var m message
		require.NoError(t, json.NewDecoder(r.Body).Decode(&m))
		got = append(got, m)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := New(Options{BaseURL: srv.URL})
	err := client.Deliver(context.Background(), "TOKEN", []int64{1, 2}, []string{"part one", "part two"})
	require.NoError(t, err)

	require.Len(t, got, 4)
	// Chunks stay in order per recipient
	assert.Equal(t, message{ChatID: 1, Text: "part one"}, got[0])
	assert.Equal(t, message{ChatID: 1, Text: "part two"}, got[1])
	assert.Equal(t, message{ChatID: 2, Text: "part one"}, got[2])
}

func TestClient_DeliverFailsOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	client := New(Options{BaseURL: srv.URL})
	err := client.Deliver(context.Background(), "TOKEN", []int64{1}, []string{"chunk"})
	assert.Error(t, err)
}

func TestClient_DeliverRejectsEmptyToken(t *testing.T) {
	client := New(Options{BaseURL: "http://localhost"})
	err := client.Deliver(context.Background(), "", []int64{1}, []string{"chunk"})
	assert.Error(t, err)
}
