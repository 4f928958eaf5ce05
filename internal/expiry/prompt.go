package expiry

import (
	"fmt"
	"sync"
	"time"
)

// Prompt is the renew-or-exit surface shown while a session is about to expire.
type Prompt interface {
	ShowWarning(remaining time.Duration)
	UpdateCountdown(remaining time.Duration)
	Dismiss()
}

// BannerState is what a page renders for the expiry banner.
type BannerState struct {
	Visible   bool          `json:"visible"`
	Remaining time.Duration `json:"remaining"`
	Message   string        `json:"message,omitempty"`
}

// Banner is a Prompt that keeps its state for pages to poll.
type Banner struct {
	mu        sync.RWMutex
	visible   bool
	remaining time.Duration
}

// NewBanner returns a hidden banner.
func NewBanner() *Banner {
	return &Banner{}
}

func (b *Banner) ShowWarning(remaining time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.visible = true
	b.remaining = remaining
}

func (b *Banner) UpdateCountdown(remaining time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.remaining = remaining
}

func (b *Banner) Dismiss() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.visible = false
	b.remaining = 0
}

// State returns the current banner contents.
func (b *Banner) State() BannerState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.visible {
		return BannerState{}
	}
	return BannerState{
		Visible:   true,
		Remaining: b.remaining,
		Message:   fmt.Sprintf("Your session expires in %s.", FormatRemaining(b.remaining)),
	}
}

// FormatRemaining renders a countdown such as "4 minutes 0 seconds".
func FormatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d / time.Second)
	mins, secs := total/60, total%60
	return fmt.Sprintf("%d %s %d %s", mins, plural(mins, "minute"), secs, plural(secs, "second"))
}

func plural(n int, unit string) string {
	if n == 1 {
		return unit
	}
	return unit + "s"
}
