package expiry

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/portal-auth/internal/config"
	"github.com/spec-kit/portal-auth/internal/events"
	"github.com/spec-kit/portal-auth/internal/observability"
	"github.com/spec-kit/portal-auth/internal/session"
)

// SessionState is the part of the session store the notifier drives.
type SessionState interface {
	Snapshot() session.Snapshot
	MarkExpiringSoon(ctx context.Context) bool
	MarkExpired(ctx context.Context) bool
	Events() events.Dispatcher
}

// Renewer performs the remote side of extend and sign-out.
type Renewer interface {
	Refresh(ctx context.Context) (session.Snapshot, error)
	EndSession(ctx context.Context, reason string)
}

// Notifier polls the session expiry and drives the warning prompt.
type Notifier struct {
	state     SessionState
	renewer   Renewer
	prompt    Prompt
	interval  time.Duration
	threshold time.Duration
	logger    *zap.Logger
	now       func() time.Time

	mu       sync.Mutex
	warning  bool
	stop     chan struct{}
	stopOnce sync.Once
}

// New wires a notifier and subscribes it to session_cleared so a pending
// warning is dismissed whenever the session ends by another path.
func New(state SessionState, renewer Renewer, prompt Prompt, cfg config.SessionConfig, logger *zap.Logger) *Notifier {
	n := &Notifier{
		state:     state,
		renewer:   renewer,
		prompt:    prompt,
		interval:  cfg.CheckInterval(),
		threshold: cfg.WarningThreshold(),
		logger:    observability.OrNop(logger),
		now:       time.Now,
		stop:      make(chan struct{}),
	}
	state.Events().Subscribe(events.EventSessionCleared, func(context.Context, events.Event) error {
		n.dismiss()
		return nil
	})
	return n
}

// SetClock replaces the time source.
func (n *Notifier) SetClock(now func() time.Time) {
	n.now = now
}

// Warning reports whether the prompt is currently shown.
func (n *Notifier) Warning() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.warning
}

// Run checks immediately and then every interval until ctx is done or Stop is
// called. A pending warning is dismissed on the way out.
func (n *Notifier) Run(ctx context.Context) {
	ticker := time.NewTicker(n.interval)
	defer ticker.Stop()
	defer n.dismiss()

	n.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-n.stop:
			return
		case <-ticker.C:
			n.Check(ctx)
		}
	}
}

// Stop ends Run. Safe to call more than once.
func (n *Notifier) Stop() {
	n.stopOnce.Do(func() { close(n.stop) })
}

// Check runs one expiry evaluation against the current session.
func (n *Notifier) Check(ctx context.Context) {
	snap := n.state.Snapshot()
	if !snap.IsAuthenticated() || snap.Claims == nil {
		n.dismiss()
		return
	}

	remaining := snap.Claims.ExpiresAt.Sub(n.now())
	switch {
	case remaining <= 0:
		n.logger.Info("session expired, signing out", zap.String("subject_id", snap.Identity.SubjectID))
		n.forceLogout(ctx)
	case remaining > n.threshold:
		n.dismiss()
	default:
		n.mu.Lock()
		showing := n.warning
		n.warning = true
		n.mu.Unlock()

		if showing {
			n.prompt.UpdateCountdown(remaining)
			return
		}
		n.state.MarkExpiringSoon(ctx)
		n.logger.Info("session expiring soon",
			zap.String("subject_id", snap.Identity.SubjectID),
			zap.Duration("remaining", remaining))
		n.prompt.ShowWarning(remaining)
	}
}

// Extend renews the session. A failed renewal is terminal: the session is
// marked expired and signed out. No retry.
func (n *Notifier) Extend(ctx context.Context) bool {
	if _, err := n.renewer.Refresh(ctx); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return false
		}
		if errors.Is(err, session.ErrSessionReplaced) {
			// the warning belonged to a session that is already gone
			n.dismiss()
			return false
		}
		n.logger.Warn("session extend failed, signing out", zap.Error(err))
		n.forceLogout(ctx)
		return false
	}
	n.logger.Info("session extended")
	n.dismiss()
	return true
}

// Exit signs out at the user's request.
func (n *Notifier) Exit(ctx context.Context) {
	n.renewer.EndSession(ctx, session.ReasonLogout)
	n.dismiss()
}

func (n *Notifier) forceLogout(ctx context.Context) {
	n.state.MarkExpired(ctx)
	n.renewer.EndSession(ctx, session.ReasonExpired)
	n.dismiss()
}

func (n *Notifier) dismiss() {
	n.mu.Lock()
	showing := n.warning
	n.warning = false
	n.mu.Unlock()
	if showing {
		n.prompt.Dismiss()
	}
}
