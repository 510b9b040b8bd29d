package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// NotificationMsg carries one bridge tag into the event loop.
type NotificationMsg struct {
	Tag string
}

// statusTimeoutMsg clears a transient status line.
type statusTimeoutMsg struct {
	seq int
}

// Inbox hands tags from the worker goroutine to the event loop. Exactly one
// Next command may be outstanding at a time, so tags reach Update in the
// order the worker sent them.
type Inbox struct {
	tags   chan string
	closed chan struct{}
	once   sync.Once
}

// NewInbox creates an inbox buffering up to size tags.
func NewInbox(size int) *Inbox {
	if size < 1 {
		size = 1
	}
	return &Inbox{
		tags:   make(chan string, size),
		closed: make(chan struct{}),
	}
}

// Notify is the worker's bridge.Notifier. It drops tags once the inbox is
// closed.
func (i *Inbox) Notify(tag string) {
	select {
	case i.tags <- tag:
	case <-i.closed:
	}
}

// Close stops delivery. The event loop has exited by then.
func (i *Inbox) Close() {
	i.once.Do(func() { close(i.closed) })
}

// Next waits for the next tag.
func (i *Inbox) Next() tea.Cmd {
	return func() tea.Msg {
		select {
		case tag := <-i.tags:
			return NotificationMsg{Tag: tag}
		case <-i.closed:
			return nil
		}
	}
}
