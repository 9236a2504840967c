package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"forumlite/internal/forum"
)

// Authenticator resolves a username to a principal; login is get-or-create.
type Authenticator interface {
	Login(ctx context.Context, username string) (forum.User, error)
}

// Session holds the current principal. Authorization reads it at the moment
// of each action, so a role change applies to the next action.
type Session struct {
	auth Authenticator
	log  *slog.Logger

	mu   sync.Mutex
	user *forum.User
	err  string
}

func NewSession(auth Authenticator, log *slog.Logger) *Session {
	return &Session{auth: auth, log: log}
}

// Login trims username and asks the backend for the principal. On failure the
// existing session, if any, is kept.
func (s *Session) Login(ctx context.Context, username string) (forum.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		err := fmt.Errorf("%w: username cannot be empty", ErrValidation)
		s.setErr(err)
		return forum.User{}, err
	}
	u, err := s.auth.Login(ctx, username)
	if err != nil {
		s.log.Warn("login failed", "username", username, "err", err)
		s.setErr(err)
		return forum.User{}, fmt.Errorf("login: %w", err)
	}
	s.mu.Lock()
	s.user = &u
	s.err = ""
	s.mu.Unlock()
	s.log.Info("logged in", "username", u.Username, "moderator", u.IsModerator)
	return u, nil
}

// Refresh re-runs login for the current user to pick up role changes.
func (s *Session) Refresh(ctx context.Context) (forum.User, error) {
	u := s.User()
	if u == nil {
		return forum.User{}, ErrNotLoggedIn
	}
	return s.Login(ctx, u.Username)
}

// Logout clears the principal without contacting the backend.
func (s *Session) Logout() {
	s.mu.Lock()
	s.user = nil
	s.err = ""
	s.mu.Unlock()
}

func (s *Session) setErr(err error) {
	s.mu.Lock()
	s.err = err.Error()
	s.mu.Unlock()
}

// User returns a copy of the current principal or nil.
func (s *Session) User() *forum.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// Err is the message of the last failed login, cleared by a successful one.
func (s *Session) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Session) CanModify(author string) bool { return forum.CanModify(s.User(), author) }

func (s *Session) IsModerator() bool {
	u := s.User()
	return u != nil && u.IsModerator
}
