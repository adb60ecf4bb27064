package pushbridge

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Siddamnandas/Vibely-sub004/protocol"
)

// fakePages records posted messages.
type fakePages struct {
	mu     sync.Mutex
	open   bool
	posted []protocol.Message
}

func (f *fakePages) HasOpenSession() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

func (f *fakePages) Post(msg protocol.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posted = append(f.posted, msg)
	return nil
}

func (f *fakePages) messages() []protocol.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]protocol.Message, len(f.posted))
	copy(out, f.posted)
	return out
}

type windowRecorder struct {
	mu   sync.Mutex
	urls []string
}

func (w *windowRecorder) open(url string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.urls = append(w.urls, url)
	return nil
}

func (w *windowRecorder) opened() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, len(w.urls))
	copy(out, w.urls)
	return out
}

func testBridge(t *testing.T) (*Bridge, *MemoryTray, *fakePages, *windowRecorder) {
	t.Helper()
	tray := NewMemoryTray()
	pages := &fakePages{}
	windows := &windowRecorder{}
	b, err := New(tray, pages, windows.open, nil, nil, WithDefaultIcon("/static/icons/icon-192.png"))
	require.NoError(t, err)
	return b, tray, pages, windows
}

func TestHandlePush_ShowsWithActionTable(t *testing.T) {
	b, tray, _, _ := testBridge(t)

	b.HandlePush(context.Background(), []byte(`{
		"notification": {"title": "Cover ready", "body": "Your new cover is done"},
		"data": {"type": "regen_complete", "playlistId": "p1"}
	}`))

	assert.Equal(t, 1, tray.Visible())
	n, ok := tray.Get("regen_complete:p1")
	require.True(t, ok)
	assert.Equal(t, TypeRegenComplete, n.Kind)
	assert.Equal(t, []Action{ActionView, ActionDismiss}, n.Actions)
	assert.Equal(t, "/static/icons/icon-192.png", n.Icon, "default icon fills in")
}

func TestHandlePush_SameTagReplaces(t *testing.T) {
	b, tray, _, _ := testBridge(t)
	ctx := context.Background()

	b.HandlePush(ctx, []byte(`{"notification":{"title":"first","body":"b"},"data":{"type":"regen_complete","tag":"regen-p1","playlistId":"p1"}}`))
	b.HandlePush(ctx, []byte(`{"notification":{"title":"second","body":"b"},"data":{"type":"regen_complete","tag":"regen-p1","playlistId":"p1"}}`))

	assert.Equal(t, 1, tray.Visible(), "second push replaces the first")
	assert.Equal(t, 2, tray.ShowCount())

	n, ok := tray.Get("regen-p1")
	require.True(t, ok)
	assert.Equal(t, "second", n.Title)
}

func TestHandlePush_UnknownTypeDismissOnly(t *testing.T) {
	b, tray, _, _ := testBridge(t)

	b.HandlePush(context.Background(), []byte(`{
		"notification": {"title": "?", "body": "?"},
		"data": {"type": "brand_new_feature", "tag": "x"}
	}`))

	n, ok := tray.Get("x")
	require.True(t, ok)
	assert.Equal(t, TypeUnknown, n.Kind)
	assert.Equal(t, []Action{ActionDismiss}, n.Actions)
}

func TestHandlePush_MalformedDropped(t *testing.T) {
	b, tray, _, _ := testBridge(t)
	ctx := context.Background()

	b.HandlePush(ctx, []byte(`not json`))
	b.HandlePush(ctx, []byte(`{"notification":{"title":"t"},"data":{}}`))

	assert.Zero(t, tray.Visible())
}

func TestHandlePush_DisabledDropsEverything(t *testing.T) {
	b, tray, _, _ := testBridge(t)
	b.Disable()

	b.HandlePush(context.Background(), []byte(`{
		"notification": {"title": "t", "body": "b"},
		"data": {"type": "regen_complete", "playlistId": "p1"}
	}`))

	assert.True(t, b.Disabled())
	assert.Zero(t, tray.Visible())
}

func TestHandleClick_OpenSessionGetsMessageAndFocus(t *testing.T) {
	b, tray, pages, windows := testBridge(t)
	pages.open = true
	ctx := context.Background()

	b.HandlePush(ctx, []byte(`{
		"notification": {"title": "Cover ready", "body": "b"},
		"data": {"type": "regen_complete", "playlistId": "p1"}
	}`))
	require.NoError(t, b.HandleClick(ctx, "regen_complete:p1", ActionView))

	msgs := pages.messages()
	require.Len(t, msgs, 1)
	click, ok := msgs[0].(protocol.NotificationClick)
	require.True(t, ok)
	assert.Equal(t, "regen_complete", click.NotificationType)
	assert.Equal(t, "view", click.Action)
	assert.Equal(t, "/playlist/p1", click.TargetURL)
	assert.True(t, click.FocusWindow)
	assert.Equal(t, map[string]string{"playlistId": "p1"}, click.IDs)

	assert.Empty(t, windows.opened(), "no new window when a session is open")
	assert.Zero(t, tray.Visible(), "notification consumed on click")
}

func TestHandleClick_NoSessionOpensWindow(t *testing.T) {
	b, _, pages, windows := testBridge(t)
	pages.open = false
	ctx := context.Background()

	b.HandlePush(ctx, []byte(`{
		"notification": {"title": "Cover ready", "body": "b"},
		"data": {"type": "regen_complete", "playlistId": "p1"}
	}`))
	require.NoError(t, b.HandleClick(ctx, "regen_complete:p1", ActionView))

	assert.Equal(t, []string{"/playlist/p1"}, windows.opened())
	assert.Empty(t, pages.messages())
}

func TestHandleClick_UnknownActionDegradesToDismiss(t *testing.T) {
	b, tray, pages, windows := testBridge(t)
	pages.open = true
	ctx := context.Background()

	b.HandlePush(ctx, []byte(`{
		"notification": {"title": "t", "body": "b"},
		"data": {"type": "regen_complete", "playlistId": "p1"}
	}`))
	require.NoError(t, b.HandleClick(ctx, "regen_complete:p1", Action("superpoke")))

	assert.Empty(t, pages.messages())
	assert.Empty(t, windows.opened())
	assert.Zero(t, tray.Visible(), "dismissed, nothing else")
}

func TestHandleClick_ActionOutsideTypeTableDegradesToDismiss(t *testing.T) {
	b, tray, _, windows := testBridge(t)
	ctx := context.Background()

	// "add" is valid for playlist_shared but not for regen_complete.
	b.HandlePush(ctx, []byte(`{
		"notification": {"title": "t", "body": "b"},
		"data": {"type": "regen_complete", "playlistId": "p1"}
	}`))
	require.NoError(t, b.HandleClick(ctx, "regen_complete:p1", ActionAdd))

	assert.Empty(t, windows.opened())
	assert.Zero(t, tray.Visible())
}

func TestHandleClick_ExpiredTagIsNoOp(t *testing.T) {
	b, _, pages, windows := testBridge(t)
	pages.open = true

	require.NoError(t, b.HandleClick(context.Background(), "gone", ActionView))
	assert.Empty(t, pages.messages())
	assert.Empty(t, windows.opened())
}

func TestTargetURL_PerType(t *testing.T) {
	cases := []struct {
		kind NotificationType
		data PushData
		want string
	}{
		{TypeRegenComplete, PushData{PlaylistID: "p1"}, "/playlist/p1"},
		{TypePlaylistShared, PushData{PlaylistID: "p9"}, "/playlist/p9"},
		{TypeNewMusic, PushData{TrackID: "t4"}, "/track/t4"},
		{TypeNewMusic, PushData{}, "/discover"},
		{TypeFriendActivity, PushData{UserID: "u2"}, "/friends/u2"},
		{TypePlayback, PushData{}, "/player"},
	}
	for _, tc := range cases {
		got := targetURL(&Notification{Kind: tc.kind, Data: tc.data})
		assert.Equal(t, tc.want, got, string(tc.kind))
	}
}
