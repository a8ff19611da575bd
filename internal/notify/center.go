// Package notify holds the process-wide notification center (toasts) and
// the locally persisted notification preferences.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind classifies a toast.
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
	KindInfo    Kind = "info"
)

// Toast is one dismissible user-facing notice.
type Toast struct {
	ID        string
	Kind      Kind
	Message   string
	CreatedAt time.Time
	Dismissed bool
}

// Center collects toasts from every mutating action. History is bounded;
// the oldest entries fall off.
type Center struct {
	mu       sync.Mutex
	toasts   []Toast
	maxSize  int
	onChange []func(Toast)
}

// NewCenter creates a notification center. maxSize <= 0 defaults to 50.
func NewCenter(maxSize int) *Center {
	if maxSize <= 0 {
		maxSize = 50
	}
	return &Center{maxSize: maxSize}
}

// OnToast registers a callback invoked for every pushed toast.
func (c *Center) OnToast(fn func(Toast)) {
	c.mu.Lock()
	c.onChange = append(c.onChange, fn)
	c.mu.Unlock()
}

func (c *Center) push(kind Kind, msg string) {
	toast := Toast{
		ID:        uuid.New().String(),
		Kind:      kind,
		Message:   msg,
		CreatedAt: time.Now(),
	}

	c.mu.Lock()
	c.toasts = append(c.toasts, toast)
	if len(c.toasts) > c.maxSize {
		c.toasts = c.toasts[len(c.toasts)-c.maxSize:]
	}
	subs := make([]func(Toast), len(c.onChange))
	copy(subs, c.onChange)
	c.mu.Unlock()

	for _, fn := range subs {
		fn(toast)
	}
}

// Success publishes a success toast.
func (c *Center) Success(msg string) { c.push(KindSuccess, msg) }

// Failure publishes an error toast.
func (c *Center) Failure(msg string) { c.push(KindError, msg) }

// Info publishes an informational toast.
func (c *Center) Info(msg string) { c.push(KindInfo, msg) }

// Dismiss marks a toast dismissed.
func (c *Center) Dismiss(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.toasts {
		if c.toasts[i].ID == id {
			c.toasts[i].Dismissed = true
			return
		}
	}
}

// Active returns the non-dismissed toasts, oldest first.
func (c *Center) Active() []Toast {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Toast, 0, len(c.toasts))
	for _, t := range c.toasts {
		if !t.Dismissed {
			out = append(out, t)
		}
	}
	return out
}
