package fleet

import "sync"

// AuthSession holds the token and endpoint of one authenticated control plane session.
// It is owned by a Client and safe for concurrent use.
type AuthSession struct {
	mu      sync.RWMutex
	token   string
	baseURL string
}

// Token returns the session token and base URL, and whether the session is authenticated.
func (s *AuthSession) Token() (token, baseURL string, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.baseURL, s.token != ""
}

// Authenticated reports whether a token is held.
func (s *AuthSession) Authenticated() bool {
	_, _, ok := s.Token()
	return ok
}

func (s *AuthSession) set(token, baseURL string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.baseURL = baseURL
}

// Reset drops the token so the next call logs in again.
func (s *AuthSession) Reset() {
	s.set("", "")
}

// resetIf drops the token only if it is still the one a failed call used,
// so a concurrent re-login is not thrown away.
func (s *AuthSession) resetIf(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == token {
		s.token = ""
		s.baseURL = ""
	}
}
