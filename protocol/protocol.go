// Package protocol defines the typed JSON envelopes exchanged between page
// sessions and the worker. Every message carries a "type" discriminator;
// unknown types are rejected at decode so new message kinds fail loudly
// instead of being silently dropped.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/Siddamnandas/Vibely-sub004/errors"
)

// MessageType discriminates envelope payloads.
type MessageType string

// Worker-recognized inbound types and worker-emitted outbound types.
const (
	// Page → worker.
	TypeCachePlaylistAudio MessageType = "CACHE_PLAYLIST_AUDIO"
	TypeClearPlaylistCache MessageType = "CLEAR_PLAYLIST_CACHE"

	// Worker → page.
	TypePlaylistCached      MessageType = "PLAYLIST_CACHED"
	TypeTrackCached         MessageType = "TRACK_CACHED"
	TypeCacheCleaned        MessageType = "CACHE_CLEANED"
	TypeNotificationClick   MessageType = "NOTIFICATION_CLICK"
	TypeConnectivityChanged MessageType = "CONNECTIVITY_CHANGED"
)

// Message is one typed envelope.
type Message interface {
	MessageType() MessageType
}

// CachePlaylistAudio asks the worker to pre-cache a playlist's track URLs.
type CachePlaylistAudio struct {
	Type       MessageType `json:"type"`
	PlaylistID string      `json:"playlistId"`
	TrackURLs  []string    `json:"trackUrls"`
}

// MessageType implements Message.
func (CachePlaylistAudio) MessageType() MessageType { return TypeCachePlaylistAudio }

// ClearPlaylistCache asks the worker to drop a playlist's cached entries:
// the listed track URLs, plus everything under URLPrefix when set.
type ClearPlaylistCache struct {
	Type       MessageType `json:"type"`
	PlaylistID string      `json:"playlistId"`
	TrackURLs  []string    `json:"trackUrls,omitempty"`
	URLPrefix  string      `json:"urlPrefix,omitempty"`
}

// MessageType implements Message.
func (ClearPlaylistCache) MessageType() MessageType { return TypeClearPlaylistCache }

// PlaylistCached reports a completed pre-cache run.
type PlaylistCached struct {
	Type       MessageType `json:"type"`
	PlaylistID string      `json:"playlistId"`
	Cached     int         `json:"cached"`
	Failed     int         `json:"failed"`
}

// MessageType implements Message.
func (PlaylistCached) MessageType() MessageType { return TypePlaylistCached }

// TrackCached reports one track cached during a pre-cache run.
type TrackCached struct {
	Type       MessageType `json:"type"`
	PlaylistID string      `json:"playlistId"`
	TrackURL   string      `json:"trackUrl"`
}

// MessageType implements Message.
func (TrackCached) MessageType() MessageType { return TypeTrackCached }

// CacheCleaned reports a completed playlist cache clear.
type CacheCleaned struct {
	Type       MessageType `json:"type"`
	PlaylistID string      `json:"playlistId"`
	Cleared    int         `json:"cleared"`
}

// MessageType implements Message.
func (CacheCleaned) MessageType() MessageType { return TypeCacheCleaned }

// NotificationClick tells an open page about a clicked notification so it
// can update in-memory state without a navigation. FocusWindow directs the
// page runtime to bring its window to the front.
type NotificationClick struct {
	Type             MessageType       `json:"type"`
	NotificationType string            `json:"notificationType"`
	Action           string            `json:"action"`
	TargetURL        string            `json:"targetUrl,omitempty"`
	FocusWindow      bool              `json:"focusWindow"`
	IDs              map[string]string `json:"ids,omitempty"`
}

// MessageType implements Message.
func (NotificationClick) MessageType() MessageType { return TypeNotificationClick }

// ConnectivityChanged drives the page's offline banner.
type ConnectivityChanged struct {
	Type   MessageType `json:"type"`
	Online bool        `json:"online"`
}

// MessageType implements Message.
func (ConnectivityChanged) MessageType() MessageType { return TypeConnectivityChanged }

// Encode marshals a message, stamping its type discriminator.
func Encode(msg Message) ([]byte, error) {
	switch m := msg.(type) {
	case CachePlaylistAudio:
		m.Type = TypeCachePlaylistAudio
		return json.Marshal(m)
	case ClearPlaylistCache:
		m.Type = TypeClearPlaylistCache
		return json.Marshal(m)
	case PlaylistCached:
		m.Type = TypePlaylistCached
		return json.Marshal(m)
	case TrackCached:
		m.Type = TypeTrackCached
		return json.Marshal(m)
	case CacheCleaned:
		m.Type = TypeCacheCleaned
		return json.Marshal(m)
	case NotificationClick:
		m.Type = TypeNotificationClick
		return json.Marshal(m)
	case ConnectivityChanged:
		m.Type = TypeConnectivityChanged
		return json.Marshal(m)
	default:
		return nil, errors.WrapInvalid(
			fmt.Errorf("unsupported message %T", msg),
			"protocol", "Encode", "unknown message type")
	}
}

// Decode parses an envelope by its type discriminator.
func Decode(data []byte) (Message, error) {
	var header struct {
		Type MessageType `json:"type"`
	}
	if err := json.Unmarshal(data, &header); err != nil {
		return nil, errors.WrapInvalid(err, "protocol", "Decode", "parse envelope header")
	}

	var msg Message
	var err error
	switch header.Type {
	case TypeCachePlaylistAudio:
		var m CachePlaylistAudio
		err = json.Unmarshal(data, &m)
		msg = m
	case TypeClearPlaylistCache:
		var m ClearPlaylistCache
		err = json.Unmarshal(data, &m)
		msg = m
	case TypePlaylistCached:
		var m PlaylistCached
		err = json.Unmarshal(data, &m)
		msg = m
	case TypeTrackCached:
		var m TrackCached
		err = json.Unmarshal(data, &m)
		msg = m
	case TypeCacheCleaned:
		var m CacheCleaned
		err = json.Unmarshal(data, &m)
		msg = m
	case TypeNotificationClick:
		var m NotificationClick
		err = json.Unmarshal(data, &m)
		msg = m
	case TypeConnectivityChanged:
		var m ConnectivityChanged
		err = json.Unmarshal(data, &m)
		msg = m
	default:
		return nil, errors.WrapInvalid(
			fmt.Errorf("type %q", header.Type),
			"protocol", "Decode", "unknown message type")
	}
	if err != nil {
		return nil, errors.WrapInvalid(err, "protocol", "Decode",
			fmt.Sprintf("parse %s envelope", header.Type))
	}
	return msg, nil
}
