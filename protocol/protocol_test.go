package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_CachePlaylistAudio(t *testing.T) {
	data := []byte(`{"type":"CACHE_PLAYLIST_AUDIO","playlistId":"p1","trackUrls":["https://vibely.app/audio/p1/t1.mp3"]}`)

	msg, err := Decode(data)
	require.NoError(t, err)

	m, ok := msg.(CachePlaylistAudio)
	require.True(t, ok)
	assert.Equal(t, "p1", m.PlaylistID)
	assert.Equal(t, []string{"https://vibely.app/audio/p1/t1.mp3"}, m.TrackURLs)
}

func TestDecode_UnknownTypeRejected(t *testing.T) {
	_, err := Decode([]byte(`{"type":"TOTALLY_NEW_THING"}`))
	assert.Error(t, err)
}

func TestDecode_MalformedEnvelope(t *testing.T) {
	_, err := Decode([]byte(`not json`))
	assert.Error(t, err)
}

func TestEncode_StampsDiscriminator(t *testing.T) {
	data, err := Encode(NotificationClick{
		NotificationType: "regen_complete",
		Action:           "view",
		TargetURL:        "/playlist/p1",
		FocusWindow:      true,
		IDs:              map[string]string{"playlistId": "p1"},
	})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"NOTIFICATION_CLICK"`)

	msg, err := Decode(data)
	require.NoError(t, err)
	click, ok := msg.(NotificationClick)
	require.True(t, ok)
	assert.Equal(t, "view", click.Action)
	assert.Equal(t, "/playlist/p1", click.TargetURL)
	assert.True(t, click.FocusWindow)
}

func TestEncodeDecode_WorkerEmittedTypes(t *testing.T) {
	for _, msg := range []Message{
		PlaylistCached{PlaylistID: "p1", Cached: 9, Failed: 1},
		TrackCached{PlaylistID: "p1", TrackURL: "https://vibely.app/audio/p1/t1.mp3"},
		CacheCleaned{PlaylistID: "p1", Cleared: 10},
		ConnectivityChanged{Online: false},
	} {
		data, err := Encode(msg)
		require.NoError(t, err)

		decoded, err := Decode(data)
		require.NoError(t, err)
		assert.Equal(t, msg.MessageType(), decoded.MessageType())
	}
}
