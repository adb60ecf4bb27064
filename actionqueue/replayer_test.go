package actionqueue

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Siddamnandas/Vibely-sub004/errors"
)

func TestHTTPReplayer_ConfirmsOn2xx(t *testing.T) {
	var gotAction, gotKey string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAction = r.Header.Get("X-Vibely-Action")
		gotKey = r.Header.Get("Idempotency-Key")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	replayer, err := NewHTTPReplayer(srv.URL, nil, time.Second)
	require.NoError(t, err)

	action := &QueuedAction{ID: 7, Type: TypeTrackPlayed, Payload: json.RawMessage(`{"track":"t1"}`)}
	require.NoError(t, replayer.Replay(context.Background(), action))

	assert.Equal(t, TypeTrackPlayed, gotAction)
	assert.Equal(t, "7", gotKey)
	assert.JSONEq(t, `{"track":"t1"}`, string(gotBody))
}

func TestHTTPReplayer_ServerErrorRetriedThenFails(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	replayer, err := NewHTTPReplayer(srv.URL, nil, time.Second)
	require.NoError(t, err)

	err = replayer.Replay(context.Background(), &QueuedAction{ID: 1, Type: TypeTrackPlayed})
	assert.ErrorIs(t, err, errors.ErrQueueReplayFailed)
	assert.Greater(t, calls.Load(), int32(1), "5xx responses are retried")
}

func TestHTTPReplayer_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	replayer, err := NewHTTPReplayer(srv.URL, nil, time.Second)
	require.NoError(t, err)

	err = replayer.Replay(context.Background(), &QueuedAction{ID: 1, Type: TypePlaylistUpdated})
	assert.ErrorIs(t, err, errors.ErrQueueReplayFailed)
	assert.Equal(t, int32(1), calls.Load(), "4xx responses are not retried")
}

func TestHTTPReplayer_PerTypeEndpoint(t *testing.T) {
	var defaultHits, regenHits atomic.Int32
	defaultSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		defaultHits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer defaultSrv.Close()
	regenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		regenHits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer regenSrv.Close()

	replayer, err := NewHTTPReplayer(defaultSrv.URL, map[string]string{
		TypeCoverRegenRequest: regenSrv.URL,
	}, time.Second)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, replayer.Replay(ctx, &QueuedAction{ID: 1, Type: TypeTrackPlayed}))
	require.NoError(t, replayer.Replay(ctx, &QueuedAction{ID: 2, Type: TypeCoverRegenRequest}))

	assert.Equal(t, int32(1), defaultHits.Load())
	assert.Equal(t, int32(1), regenHits.Load())
}

func TestQueueWithHTTPReplayer_EndToEnd(t *testing.T) {
	var received []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received = append(received, r.Header.Get("X-Vibely-Action"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	replayer, err := NewHTTPReplayer(srv.URL, nil, time.Second)
	require.NoError(t, err)
	q, err := New(NewMemoryStore(), replayer, nil, nil)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = q.Enqueue(ctx, TypePlaylistCreated, json.RawMessage(`{"playlist":"p1"}`))
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, TypePlaylistUpdated, json.RawMessage(`{"playlist":"p1"}`))
	require.NoError(t, err)

	confirmed, err := q.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, confirmed)
	assert.Equal(t, []string{TypePlaylistCreated, TypePlaylistUpdated}, received)
}
