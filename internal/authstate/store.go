package authstate

import (
	"context"
	"log/slog"
	"sync"

	"github.com/stickynotes/stickynotes-server/internal/domain"
)

// Store holds the app-wide State.
type Store struct {
	logger    *slog.Logger
	mu        sync.RWMutex
	state     State
	listeners []func(State)
}

// NewStore creates a signed-out store.
func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{logger: logger}
}

// Dispatch applies a to the state and notifies listeners.
func (s *Store) Dispatch(a Action) State {
	s.mu.Lock()
	s.state = Reduce(s.state, a)
	next := s.state
	listeners := append([]func(State){}, s.listeners...)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(next)
	}
	return next
}

// OnChange registers fn to be called with the new state after every dispatch.
func (s *Store) OnChange(fn func(State)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// State returns the current state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// CurrentUser returns the signed-in user, or nil.
func (s *Store) CurrentUser(_ context.Context) *domain.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.state.IsAuthenticated {
		return nil
	}
	return s.state.User
}

// Follow applies events from sub to the store until the subscription closes.
// It blocks; run it in its own goroutine.
func (s *Store) Follow(sub *Subscription) {
	for event := range sub.C {
		switch event.Type {
		case EventSignedIn:
			s.Dispatch(SetUser(event.User, event.AuthType))
		case EventSignedOut:
			s.Dispatch(Logout())
		default:
			s.logger.Warn("ignoring unknown auth event",
				slog.String("event_type", string(event.Type)))
		}
	}
}
