package pushbridge

import (
	"sync"
)

// Notification is one displayed notification.
type Notification struct {
	Tag     string
	Title   string
	Body    string
	Icon    string
	Image   string
	Kind    NotificationType
	Actions []Action
	Data    PushData
}

// Tray displays notifications. Show with an existing tag replaces the prior
// notification rather than stacking a second one.
type Tray interface {
	Show(n *Notification) error
	Get(tag string) (*Notification, bool)
	Dismiss(tag string) error
}

// MemoryTray is an in-process Tray used in tests and headless deployments.
type MemoryTray struct {
	mu      sync.Mutex
	visible map[string]*Notification
	shown   int // total Show calls, including replacements
}

// NewMemoryTray creates an empty tray.
func NewMemoryTray() *MemoryTray {
	return &MemoryTray{visible: make(map[string]*Notification)}
}

// Show displays or replaces the notification with n's tag.
func (t *MemoryTray) Show(n *Notification) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.visible[n.Tag] = n
	t.shown++
	return nil
}

// Get returns the visible notification with the given tag.
func (t *MemoryTray) Get(tag string) (*Notification, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, ok := t.visible[tag]
	return n, ok
}

// Dismiss removes a notification. Dismissing an absent tag is a no-op.
func (t *MemoryTray) Dismiss(tag string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.visible, tag)
	return nil
}

// Visible returns the number of currently displayed notifications.
func (t *MemoryTray) Visible() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.visible)
}

// ShowCount returns the total number of Show calls.
func (t *MemoryTray) ShowCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.shown
}
