package identity

import (
	"sync"

	"github.com/PabloGalante/chatsync/internal/domain"
)

// Session is an in-memory IdentitySource. Signing in and out is owned by the
// auth flow; the sync core only reads CurrentSenderID.
type Session struct {
	mu     sync.RWMutex
	sender domain.SenderID
}

// NewSession returns a session signed in as sender, or signed out when
// sender is empty.
func NewSession(sender domain.SenderID) *Session {
	return &Session{sender: sender}
}

func (s *Session) CurrentSenderID() (domain.SenderID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sender, s.sender != ""
}

func (s *Session) SignIn(sender domain.SenderID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sender = sender
}

// SignOut takes effect immediately for every later CurrentSenderID call.
func (s *Session) SignOut() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sender = ""
}
