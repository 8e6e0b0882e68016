package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBridgeSendMessage(t *testing.T) {
	var got sendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/send", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	b, err := NewBridge(srv.URL)
	require.NoError(t, err)

	require.NoError(t, b.SendMessage(context.Background(), "c1", "hello there"))
	require.Equal(t, "c1", got.ConversationID)
	require.Equal(t, "hello there", got.Text)
}

func TestBridgeIterateHistory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/history", r.URL.Path)
		require.Equal(t, "c1", r.URL.Query().Get("conversation_id"))
		require.Equal(t, "2", r.URL.Query().Get("limit"))

		json.NewEncoder(w).Encode([]HistoryMessage{
			{SenderID: "b", SenderName: "Bob", Text: "newest", Timestamp: time.Now()},
			{SenderID: "a", SenderName: "Alice", Text: "older", Timestamp: time.Now()},
		})
	}))
	defer srv.Close()

	b, err := NewBridge(srv.URL)
	require.NoError(t, err)

	history, err := b.IterateHistory(context.Background(), "c1", 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, "newest", history[0].Text)
	require.Equal(t, "older", history[1].Text)
}

func TestBridgeSelfIdentityCached(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/me", r.URL.Path)
		calls.Add(1)
		json.NewEncoder(w).Encode(Identity{ID: "self-1", Username: "owner"})
	}))
	defer srv.Close()

	b, err := NewBridge(srv.URL)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		id, err := b.SelfIdentity(context.Background())
		require.NoError(t, err)
		require.Equal(t, "self-1", id.ID)
	}
	require.Equal(t, int32(1), calls.Load())
}

func TestBridgeErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	b, err := NewBridge(srv.URL)
	require.NoError(t, err)

	require.Error(t, b.SendMessage(context.Background(), "c1", "x"))
	_, err = b.IterateHistory(context.Background(), "c1", 5)
	require.Error(t, err)
}

func TestNewBridgeRequiresURL(t *testing.T) {
	_, err := NewBridge("  ")
	require.Error(t, err)
}
