// Package pushbridge translates server-pushed messages into local
// notifications and routes notification clicks: to an open page session via
// a structured message, or to a new window at a deterministic URL.
package pushbridge

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/Siddamnandas/Vibely-sub004/errors"
	"github.com/Siddamnandas/Vibely-sub004/metric"
	"github.com/Siddamnandas/Vibely-sub004/protocol"
)

// Pages is the bridge's view of open page sessions.
type Pages interface {
	// HasOpenSession reports whether at least one page is connected.
	HasOpenSession() bool
	// Post delivers a message to the connected pages.
	Post(msg protocol.Message) error
}

// WindowOpener opens a new app window at the given URL when no page session
// exists to receive a click message.
type WindowOpener func(url string) error

// Bridge receives push payloads and manages the notification lifecycle.
type Bridge struct {
	tray        Tray
	pages       Pages
	openWindow  WindowOpener
	defaultIcon string
	metrics     *metric.Metrics
	logger      *slog.Logger

	disabled    atomic.Bool
	disableOnce sync.Once
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithDefaultIcon sets the icon used when a payload omits its own.
func WithDefaultIcon(icon string) Option {
	return func(b *Bridge) { b.defaultIcon = icon }
}

// New creates a bridge. metrics may be nil (tests).
func New(tray Tray, pages Pages, openWindow WindowOpener, metrics *metric.Metrics, logger *slog.Logger, opts ...Option) (*Bridge, error) {
	if tray == nil {
		return nil, errors.WrapInvalid(nil, "Bridge", "New", "tray cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	b := &Bridge{
		tray:       tray,
		pages:      pages,
		openWindow: openWindow,
		metrics:    metrics,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Disable turns the push path off after a notification permission denial.
// The app keeps working without alerts; the denial is reported once.
func (b *Bridge) Disable() {
	b.disabled.Store(true)
	b.disableOnce.Do(func() {
		b.logger.Warn("notification permission denied, push path disabled")
	})
}

// Disabled reports whether the push path is off.
func (b *Bridge) Disabled() bool {
	return b.disabled.Load()
}

// HandlePush processes one server push payload: parse, map the push kind to
// its action set, and display with a dedupe tag so a repeat for the same
// logical event replaces the prior notification. Malformed payloads are
// logged and dropped; they never take the subscription down.
func (b *Bridge) HandlePush(_ context.Context, data []byte) {
	if b.Disabled() {
		return
	}

	payload, err := ParsePushPayload(data)
	if err != nil {
		b.logger.Warn("push payload rejected", "error", err)
		return
	}

	kind := ParseNotificationType(payload.Data.Type)
	if kind == TypeUnknown {
		b.logger.Warn("unknown push type, showing dismiss-only", "type", payload.Data.Type)
	}

	icon := payload.Notification.Icon
	if icon == "" {
		icon = b.defaultIcon
	}

	n := &Notification{
		Tag:     payload.DedupeTag(),
		Title:   payload.Notification.Title,
		Body:    payload.Notification.Body,
		Icon:    icon,
		Image:   payload.Notification.Image,
		Kind:    kind,
		Actions: ActionsFor(kind),
		Data:    payload.Data,
	}
	if err := b.tray.Show(n); err != nil {
		b.logger.Warn("notification display failed", "tag", n.Tag, "error", err)
		return
	}

	if b.metrics != nil {
		b.metrics.NotificationsShown.WithLabelValues(string(kind)).Inc()
	}
}

// HandleClick consumes a notification interaction. Unknown or disallowed
// actions degrade to dismiss (close only, no navigation). A routing action
// posts a structured message to an open page session and directs it to
// focus; with no session open, a new window opens at the target URL.
func (b *Bridge) HandleClick(_ context.Context, tag string, action Action) error {
	n, ok := b.tray.Get(tag)
	if !ok {
		return nil // expired or already consumed
	}

	// A notification is consumed exactly once.
	defer func() { _ = b.tray.Dismiss(tag) }()

	if b.metrics != nil {
		b.metrics.NotificationsClicked.WithLabelValues(string(n.Kind), string(action)).Inc()
	}

	if action == ActionDismiss || !allowed(n.Kind, action) {
		return nil
	}

	target := targetURL(n)
	payload := PushPayload{Data: n.Data}

	if b.pages != nil && b.pages.HasOpenSession() {
		msg := protocol.NotificationClick{
			NotificationType: string(n.Kind),
			Action:           string(action),
			TargetURL:        target,
			FocusWindow:      true,
			IDs:              payload.ids(),
		}
		if err := b.pages.Post(msg); err != nil {
			return errors.WrapTransient(err, "Bridge", "HandleClick", "post click to page session")
		}
		return nil
	}

	if b.openWindow != nil && target != "" {
		if err := b.openWindow(target); err != nil {
			return errors.WrapTransient(err, "Bridge", "HandleClick", "open window")
		}
	}
	return nil
}

// targetURL resolves the deterministic click destination for a push kind
// and its ids.
func targetURL(n *Notification) string {
	switch n.Kind {
	case TypeRegenComplete, TypePlaylistShared:
		if n.Data.PlaylistID != "" {
			return "/playlist/" + n.Data.PlaylistID
		}
	case TypeNewMusic:
		if n.Data.TrackID != "" {
			return "/track/" + n.Data.TrackID
		}
		return "/discover"
	case TypeFriendActivity:
		if n.Data.UserID != "" {
			return "/friends/" + n.Data.UserID
		}
		return "/feed"
	case TypePlayback:
		return "/player"
	}
	return "/"
}
