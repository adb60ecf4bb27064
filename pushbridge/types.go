package pushbridge

import (
	"encoding/json"
	"fmt"

	"github.com/Siddamnandas/Vibely-sub004/errors"
)

// NotificationType is the closed set of server push kinds. An unrecognized
// wire value parses to TypeUnknown, which carries a dismiss-only action set:
// new push kinds fail safely instead of silently doing nothing.
type NotificationType string

// Known push kinds plus the explicit fallback arm.
const (
	TypeRegenComplete  NotificationType = "regen_complete"
	TypePlaylistShared NotificationType = "playlist_shared"
	TypeNewMusic       NotificationType = "new_music"
	TypeFriendActivity NotificationType = "friend_activity"
	TypePlayback       NotificationType = "playback"
	TypeUnknown        NotificationType = "unknown"
)

// ParseNotificationType maps a wire value into the closed set.
func ParseNotificationType(s string) NotificationType {
	switch t := NotificationType(s); t {
	case TypeRegenComplete, TypePlaylistShared, TypeNewMusic, TypeFriendActivity, TypePlayback:
		return t
	}
	return TypeUnknown
}

// Action is one notification button.
type Action string

// The fixed action vocabulary.
const (
	ActionView    Action = "view"
	ActionDismiss Action = "dismiss"
	ActionUndo    Action = "undo"
	ActionAdd     Action = "add"
	ActionPlay    Action = "play"
	ActionPause   Action = "pause"
	ActionResume  Action = "resume"
)

// actionTable maps each push kind to its available actions.
var actionTable = map[NotificationType][]Action{
	TypeRegenComplete:  {ActionView, ActionDismiss},
	TypePlaylistShared: {ActionView, ActionAdd},
	TypeNewMusic:       {ActionView, ActionPlay},
	TypeFriendActivity: {ActionView, ActionDismiss},
	TypePlayback:       {ActionPlay, ActionPause, ActionResume},
	TypeUnknown:        {ActionDismiss},
}

// ActionsFor returns the action set for a push kind.
func ActionsFor(t NotificationType) []Action {
	if actions, ok := actionTable[t]; ok {
		return actions
	}
	return actionTable[TypeUnknown]
}

// allowed reports whether the action belongs to the kind's action set.
func allowed(t NotificationType, a Action) bool {
	for _, candidate := range ActionsFor(t) {
		if candidate == a {
			return true
		}
	}
	return false
}

// PushNotification is the user-visible part of a push payload.
type PushNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Icon  string `json:"icon,omitempty"`
	Image string `json:"image,omitempty"`
}

// PushData is the routing part of a push payload.
type PushData struct {
	Type       string `json:"type"`
	Tag        string `json:"tag,omitempty"`
	PlaylistID string `json:"playlistId,omitempty"`
	TrackID    string `json:"trackId,omitempty"`
	UserID     string `json:"userId,omitempty"`
}

// PushPayload is a server-pushed message.
type PushPayload struct {
	Notification PushNotification `json:"notification"`
	Data         PushData         `json:"data"`
}

// ParsePushPayload decodes and validates a push payload.
func ParsePushPayload(data []byte) (*PushPayload, error) {
	var p PushPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, errors.WrapInvalid(err, "pushbridge", "ParsePushPayload", "decode push payload")
	}
	if p.Data.Type == "" {
		return nil, errors.WrapInvalid(errors.ErrUnknownPushType,
			"pushbridge", "ParsePushPayload", "push payload missing data.type")
	}
	return &p, nil
}

// DedupeTag returns the tag used to replace a prior notification for the
// same logical event: the payload's own tag, or one derived from the push
// kind and its ids.
func (p *PushPayload) DedupeTag() string {
	if p.Data.Tag != "" {
		return p.Data.Tag
	}
	return fmt.Sprintf("%s:%s%s%s", p.Data.Type, p.Data.PlaylistID, p.Data.TrackID, p.Data.UserID)
}

// ids collects the payload's non-empty id fields.
func (p *PushPayload) ids() map[string]string {
	out := make(map[string]string, 3)
	if p.Data.PlaylistID != "" {
		out["playlistId"] = p.Data.PlaylistID
	}
	if p.Data.TrackID != "" {
		out["trackId"] = p.Data.TrackID
	}
	if p.Data.UserID != "" {
		out["userId"] = p.Data.UserID
	}
	return out
}
