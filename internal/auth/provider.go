// Package auth defines the contract consumed from the identity provider.
// The sync core only needs "current user id or none" plus sign-in/out
// notifications; everything else about authentication lives outside.
package auth

import "sync"

// ChangeFunc is called on sign-in (signedIn true, userID set) and sign-out
// (signedIn false).
type ChangeFunc func(userID string, signedIn bool)

// Provider exposes the current session and session-change notifications.
type Provider interface {
	// CurrentUserID returns the signed-in user's id, or ok=false when
	// there is no session.
	CurrentUserID() (userID string, ok bool)

	// OnChange registers a session-change callback and returns a function
	// that removes it. The returned function is safe to call more than
	// once.
	OnChange(fn ChangeFunc) (unsubscribe func())
}

// SessionProvider is a Provider driven by explicit SignIn/SignOut calls.
// The HTTP layer and tests use it in place of a real identity provider.
type SessionProvider struct {
	mu        sync.Mutex
	userID    string
	signedIn  bool
	listeners map[int]ChangeFunc
	nextID    int
}

// NewSessionProvider creates a provider with no active session.
func NewSessionProvider() *SessionProvider {
	return &SessionProvider{
		listeners: make(map[int]ChangeFunc),
	}
}

// CurrentUserID implements Provider.
func (p *SessionProvider) CurrentUserID() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.userID, p.signedIn
}

// OnChange implements Provider.
func (p *SessionProvider) OnChange(fn ChangeFunc) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.listeners, id)
			p.mu.Unlock()
		})
	}
}

// SignIn establishes a session and notifies listeners.
func (p *SessionProvider) SignIn(userID string) {
	p.notify(userID, true)
}

// SignOut tears the session down and notifies listeners.
func (p *SessionProvider) SignOut() {
	p.notify("", false)
}

func (p *SessionProvider) notify(userID string, signedIn bool) {
	p.mu.Lock()
	p.userID = userID
	p.signedIn = signedIn
	fns := make([]ChangeFunc, 0, len(p.listeners))
	for _, fn := range p.listeners {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(userID, signedIn)
	}
}
