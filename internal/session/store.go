package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/portal-auth/internal/auth"
	"github.com/spec-kit/portal-auth/internal/domain"
	"github.com/spec-kit/portal-auth/internal/events"
	"github.com/spec-kit/portal-auth/internal/observability"
	"github.com/spec-kit/portal-auth/internal/repository"
	apperrors "github.com/spec-kit/portal-auth/pkg/util"
)

// Reasons attached to session_cleared events.
const (
	ReasonLogout        = "logout"
	ReasonExpired       = "expired"
	ReasonDecodeFailed  = "decode_failed"
	ReasonInvalidated   = "invalidated"
	ReasonExpiredOnLoad = "expired_on_load"
)

var (
	errExpiredOnLoad = errors.New("persisted token already expired")
	errExpiredOnSet  = errors.New("token already expired")
)

// ErrSessionReplaced reports that the credential a write was based on is no
// longer current. It arrives wrapped in a REQUEST_CANCELED error.
var ErrSessionReplaced = errors.New("session replaced while request was in flight")

// Snapshot is a consistent, detached copy of the store state.
type Snapshot struct {
	Token        string
	Claims       *auth.Claims
	Identity     *domain.Identity
	State        domain.SessionState
	Loading      bool
	Initializing bool
	Err          error
}

// IsAuthenticated reports whether both an identity and a token are present.
func (s Snapshot) IsAuthenticated() bool {
	return s.Identity != nil && s.Token != ""
}

// Store is the single owner of the current identity and credential. Token,
// claims and identity are only ever replaced together.
type Store struct {
	repo       repository.TokenRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time

	// writeMu orders credential writes so a persist and its in-memory swap
	// are never split by another write.
	writeMu sync.Mutex

	mu          sync.RWMutex
	token       string
	claims      *auth.Claims
	identity    *domain.Identity
	state       domain.SessionState
	loading     bool
	initialized bool
	err         error
}

// NewStore builds a store over the given token repository. The store reports
// Initializing until Init (or a first Set) completes.
func NewStore(repo repository.TokenRepository, dispatcher events.Dispatcher, logger *zap.Logger) *Store {
	if dispatcher == nil {
		dispatcher = events.NewInMemoryDispatcher()
	}
	return &Store{
		repo:       repo,
		dispatcher: dispatcher,
		logger:     observability.OrNop(logger),
		now:        time.Now,
		state:      domain.SessionUnauthenticated,
	}
}

// Events exposes the dispatcher session events are published on.
func (s *Store) Events() events.Dispatcher {
	return s.dispatcher
}

// Init restores a persisted token. A token that fails to decode or has already
// expired is erased and the store stays unauthenticated.
func (s *Store) Init(ctx context.Context) error {
	restored, err := s.restore(ctx)
	if restored {
		s.publish(ctx, events.EventSessionEstablished, nil)
	}
	return err
}

func (s *Store) restore(ctx context.Context) (bool, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	s.loading = true
	s.mu.Unlock()

	token, ok, err := s.repo.Load(ctx)
	if err != nil {
		s.finishInit(nil)
		s.logger.Warn("load persisted token failed", zap.Error(err))
		return false, fmt.Errorf("load persisted token: %w", err)
	}
	if !ok {
		s.finishInit(nil)
		return false, nil
	}

	claims, err := auth.DecodeToken(token)
	if err == nil && claims.Expired(s.now()) {
		err = errExpiredOnLoad
	}
	if err != nil {
		reason := ReasonDecodeFailed
		if errors.Is(err, errExpiredOnLoad) {
			reason = ReasonExpiredOnLoad
		}
		s.logger.Info("discarding persisted token", zap.String("reason", reason), zap.Error(err))
		if eraseErr := s.repo.Erase(context.WithoutCancel(ctx)); eraseErr != nil {
			s.logger.Warn("erase persisted token failed", zap.Error(eraseErr))
		}
		s.finishInit(nil)
		return false, nil
	}

	identity := &domain.Identity{SubjectID: claims.SubjectID, Role: claims.Role}
	s.finishInit(func() {
		s.token = token
		s.claims = &claims
		s.identity = identity
		s.state = domain.SessionAuthenticated
	})
	return true, nil
}

func (s *Store) finishInit(apply func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if apply != nil {
		apply()
	}
	s.loading = false
	s.initialized = true
}

// Set replaces token, claims and identity in one step. SubjectID and Role are
// taken from the decoded token, never from the caller. Nothing changes when the
// token does not decode, has already expired or cannot be persisted.
func (s *Store) Set(ctx context.Context, token string, identity domain.Identity) (Snapshot, error) {
	return s.write(ctx, token, identity, func(string) bool { return true })
}

// Replace is Set guarded by the token the caller started from. When expected
// is no longer the current token nothing changes and the error wraps
// ErrSessionReplaced.
func (s *Store) Replace(ctx context.Context, expected, token string, identity domain.Identity) (Snapshot, error) {
	return s.write(ctx, token, identity, func(current string) bool { return current == expected })
}

func (s *Store) write(ctx context.Context, token string, identity domain.Identity, admit func(current string) bool) (Snapshot, error) {
	claims, err := auth.DecodeToken(token)
	if err != nil {
		return Snapshot{}, apperrors.NewMalformedToken(err)
	}
	if claims.Expired(s.now()) {
		return Snapshot{}, apperrors.NewSessionExpired(errExpiredOnSet)
	}
	identity.SubjectID = claims.SubjectID
	identity.Role = claims.Role

	s.writeMu.Lock()
	if !admit(s.Token()) {
		s.writeMu.Unlock()
		return Snapshot{}, apperrors.NewCanceled(ErrSessionReplaced)
	}
	if err := s.repo.Save(ctx, token, claims.ExpiresAt); err != nil {
		s.writeMu.Unlock()
		s.logger.Warn("persist token failed", zap.Error(err))
		return Snapshot{}, fmt.Errorf("persist token: %w", err)
	}

	s.mu.Lock()
	renewed := s.identity != nil && s.token != ""
	s.token = token
	s.claims = &claims
	s.identity = &identity
	s.state = domain.SessionAuthenticated
	s.err = nil
	s.loading = false
	s.initialized = true
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.writeMu.Unlock()

	eventType := events.EventSessionEstablished
	if renewed {
		eventType = events.EventSessionRefreshed
	}
	s.emit(ctx, eventType, snap.State, snap.Identity, nil)
	return snap, nil
}

// Clear erases the persisted token and drops identity and credential. Local
// state is always cleared; an erase failure is returned after the fact.
// Clearing an already empty store changes nothing.
func (s *Store) Clear(ctx context.Context, reason string) error {
	_, err := s.clear(ctx, reason, func(string) bool { return true })
	return err
}

// ClearIf clears only while expected is still the current token and reports
// whether it did.
func (s *Store) ClearIf(ctx context.Context, expected, reason string) (bool, error) {
	return s.clear(ctx, reason, func(current string) bool { return current == expected })
}

func (s *Store) clear(ctx context.Context, reason string, admit func(current string) bool) (bool, error) {
	s.writeMu.Lock()
	if !admit(s.Token()) {
		s.writeMu.Unlock()
		return false, nil
	}
	eraseErr := s.repo.Erase(context.WithoutCancel(ctx))

	s.mu.Lock()
	hadSession := s.identity != nil || s.token != ""
	ended := s.identity
	s.token = ""
	s.claims = nil
	s.identity = nil
	s.state = domain.SessionUnauthenticated
	s.loading = false
	s.initialized = true
	s.mu.Unlock()
	s.writeMu.Unlock()

	if hadSession {
		s.emit(ctx, events.EventSessionCleared, domain.SessionUnauthenticated, ended, events.ClearedPayload{Reason: reason})
	}
	if eraseErr != nil {
		s.logger.Warn("erase persisted token failed", zap.Error(eraseErr))
		return true, fmt.Errorf("erase persisted token: %w", eraseErr)
	}
	return true, nil
}

// BeginAuthentication marks a credential exchange in flight.
func (s *Store) BeginAuthentication() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = true
	s.err = nil
	if !s.state.Active() {
		s.state = domain.SessionAuthenticating
	}
}

// FailAuthentication records a failed exchange without touching identity.
func (s *Store) FailAuthentication(ctx context.Context, err error) {
	s.mu.Lock()
	s.loading = false
	s.err = err
	if s.state == domain.SessionAuthenticating {
		s.state = domain.SessionUnauthenticated
	}
	s.mu.Unlock()

	s.publish(ctx, events.EventAuthFailed, events.AuthFailedPayload{Code: apperrors.CodeOf(err)})
}

// SetLoading flips the in-flight flag used by forms.
func (s *Store) SetLoading(loading bool) {
	s.mu.Lock()
	s.loading = loading
	s.mu.Unlock()
}

// SetError records the last operation error; nil clears it.
func (s *Store) SetError(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// MarkExpiringSoon moves an authenticated session into its warning window.
// It returns false when the session is not in the Authenticated state.
func (s *Store) MarkExpiringSoon(ctx context.Context) bool {
	s.mu.Lock()
	if s.state != domain.SessionAuthenticated || s.identity == nil {
		s.mu.Unlock()
		return false
	}
	s.state = domain.SessionExpiringSoon
	var payload events.ExpiringPayload
	if s.claims != nil {
		payload = events.ExpiringPayload{ExpiresAt: s.claims.ExpiresAt, Remaining: s.claims.Remaining(s.now())}
	}
	s.mu.Unlock()

	s.publish(ctx, events.EventSessionExpiring, payload)
	return true
}

// MarkExpired flags an active session as terminally expired. Identity stays in
// place until Clear runs.
func (s *Store) MarkExpired(ctx context.Context) bool {
	s.mu.Lock()
	if !s.state.Active() {
		s.mu.Unlock()
		return false
	}
	s.state = domain.SessionExpired
	s.err = apperrors.NewSessionExpired(nil)
	s.mu.Unlock()

	s.publish(ctx, events.EventSessionExpired, nil)
	return true
}

// Snapshot returns a consistent copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{
		Token:        s.token,
		Identity:     s.identity.Clone(),
		State:        s.state,
		Loading:      s.loading || !s.initialized,
		Initializing: !s.initialized,
		Err:          s.err,
	}
	if s.claims != nil {
		claims := *s.claims
		snap.Claims = &claims
	}
	return snap
}

// IsAuthenticated reports whether identity and token are both present.
func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity != nil && s.token != ""
}

// Initializing reports whether the startup restore has not finished yet.
func (s *Store) Initializing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.initialized
}

// Token returns the current raw token, if any.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// State returns the current session state.
func (s *Store) State() domain.SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Store) publish(ctx context.Context, eventType events.EventType, payload interface{}) {
	s.mu.RLock()
	state, identity := s.state, s.identity.Clone()
	s.mu.RUnlock()
	s.emit(ctx, eventType, state, identity, payload)
}

// emit publishes on behalf of subject, which may differ from the current
// identity once a session has been cleared.
func (s *Store) emit(ctx context.Context, eventType events.EventType, state domain.SessionState, subject *domain.Identity, payload interface{}) {
	event := events.NewEvent(eventType, state)
	if subject != nil {
		event.SubjectID = subject.SubjectID
		event.Role = subject.Role
	}
	event.Payload = payload

	if err := s.dispatcher.Publish(context.WithoutCancel(ctx), event); err != nil {
		s.logger.Warn("session event handler failed", zap.String("event", string(eventType)), zap.Error(err))
	}
}
