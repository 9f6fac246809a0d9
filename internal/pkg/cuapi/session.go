package cuapi

import (
	"sync"
	"time"
)

// The unit reports its own token expiration but the wall clocks of the hub
// and the client routinely disagree, so we track a fixed validity window
// computed from our own clock instead.
const tokenValidity = 55 * time.Minute

// session owns the bearer token for one client instance.  The WebSocket
// receive loop clears it on authentication failures concurrently with
// callers snapshotting it, hence the mutex.
type session struct {
	mu sync.Mutex

	token  string
	expiry time.Time

	// diagnostic, the first login is not counted
	loginCount int

	now func() time.Time
}

func newSession() session {
	return session{
		loginCount: -1,
		now:        time.Now,
	}
}

func (s *session) valid() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token != "" && s.now().Before(s.expiry)
}

// current returns a snapshot of the token for use in one outbound request
func (s *session) current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *session) logins() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loginCount
}

func (s *session) update(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.loginCount++
	s.token = token
	s.expiry = s.now().Add(tokenValidity)
}

func (s *session) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = ""
	s.expiry = time.Time{}
}
