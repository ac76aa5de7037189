// Package auth tracks the signed-in identity. All user data is partitioned
// by this opaque identity string.
package auth

import (
	"errors"
	"strings"
	"sync"
)

var ErrEmptyIdentity = errors.New("identity must not be empty")

// Provider reports the current identity and its changes. The empty string
// means nobody is signed in.
type Provider interface {
	Current() string
	// Watch calls fn with the current identity and again after every
	// change until the returned func is called.
	Watch(fn func(identity string)) (cancel func())
}

// Session is an in-process Provider driven by explicit sign-in and
// sign-out calls.
type Session struct {
	mu       sync.Mutex
	current  string
	watchers map[int]func(string)
	next     int
}

var _ Provider = (*Session)(nil)

func NewSession() *Session {
	return &Session{watchers: map[int]func(string){}}
}

func (s *Session) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// SignIn switches to identity, notifying watchers when it changed.
func (s *Session) SignIn(identity string) error {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return ErrEmptyIdentity
	}
	s.set(identity)
	return nil
}

func (s *Session) SignOut() {
	s.set("")
}

// set holds the lock while notifying so watchers observe changes in order.
func (s *Session) set(identity string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == identity {
		return
	}
	s.current = identity
	for _, fn := range s.watchers {
		fn(identity)
	}
}

// Watch implements Provider. fn runs with the session locked and must not
// call back into the Session.
func (s *Session) Watch(fn func(identity string)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.next
	s.next++
	s.watchers[id] = fn
	fn(s.current)
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.watchers, id)
	}
}
