package client

import (
	"errors"
	"sync"
)

// ErrNoSession is returned when a call needs a token and none is held.
var ErrNoSession = errors.New("no open session")

// Session holds the bearer token between Open and Close. It is safe for
// concurrent use.
type Session struct {
	mu             sync.RWMutex
	token          string
	onUnauthorized func()
}

// NewSession returns a closed session. onUnauthorized, when set, runs every
// time the server rejects the token.
func NewSession(onUnauthorized func()) *Session {
	return &Session{onUnauthorized: onUnauthorized}
}

// Open stores token as the active credential.
func (s *Session) Open(token string) error {
	if token == "" {
		return errors.New("empty token")
	}
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	return nil
}

// Close forgets the token.
func (s *Session) Close() {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()
}

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Session) Active() bool {
	return s.Token() != ""
}

// expire clears the token after a 401 and notifies the owner.
func (s *Session) expire() {
	s.Close()
	if s.onUnauthorized != nil {
		s.onUnauthorized()
	}
}
