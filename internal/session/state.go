// Package session holds the authenticated identity of the running app.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"shopvisit/internal/merge"
	"shopvisit/internal/model"
)

var ErrNotLoggedIn = errors.New("not logged in")

// Merger runs the one-time reconciliation after login.
type Merger interface {
	MergeOnLogin(ctx context.Context, id *model.Identity) (*merge.Report, error)
}

// State is the auth state container. It replaces ambient global auth state.
type State struct {
	mu       sync.RWMutex
	identity *model.Identity
	merger   Merger
	logger   *zerolog.Logger
}

func NewState(merger Merger, logger *zerolog.Logger) *State {
	return &State{merger: merger, logger: logger}
}

// Current returns a copy of the identity, or nil when logged out.
func (s *State) Current() *model.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return nil
	}
	id := *s.identity
	return &id
}

// Login stores the identity and merges local selections into the account.
// A login for the user that is already logged in only swaps the token.
func (s *State) Login(ctx context.Context, id model.Identity) (*merge.Report, error) {
	if !id.Valid() {
		return nil, errors.New("login requires user id and token")
	}

	s.mu.Lock()
	sameUser := s.identity != nil && s.identity.UserID == id.UserID
	s.identity = &id
	s.mu.Unlock()

	if sameUser || s.merger == nil {
		return &merge.Report{Merged: []merge.Outcome{}, Failed: []merge.Failure{}}, nil
	}

	s.logger.Info().Str("user_id", id.UserID).Msg("user logged in, merging local selections")
	return s.merger.MergeOnLogin(ctx, &id)
}

// Refresh replaces the token of the current identity without merging.
func (s *State) Refresh(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity == nil {
		return ErrNotLoggedIn
	}
	s.identity.Token = token
	return nil
}

func (s *State) Logout() {
	s.mu.Lock()
	s.identity = nil
	s.mu.Unlock()
}
