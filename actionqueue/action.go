package actionqueue

import (
	"encoding/json"
	"time"
)

// Known action types. The set is open-ended on the wire; these constants
// cover the mutations the app performs today.
const (
	TypeTrackPlayed       = "track_played"
	TypePlaylistCreated   = "playlist_created"
	TypePlaylistUpdated   = "playlist_updated"
	TypeCoverRegenRequest = "cover_regen_requested"
	TypeFavoriteToggled   = "favorite_toggled"
)

// QueuedAction is one buffered mutation. ID is assigned by the store and is
// strictly increasing across the queue's lifetime.
type QueuedAction struct {
	ID         uint64          `json:"id"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}
