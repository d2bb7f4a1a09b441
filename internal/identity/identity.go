// Package identity tracks the current authenticated identity and fans out
// change notifications to the session managers bound to it.
package identity

import (
	"log/slog"
	"sync"
)

// Listener is invoked with the new identity id on every change.
// An empty id means signed out.
type Listener func(id string)

// Provider holds the current identity. Listeners run synchronously in
// registration order; a listener must not call Set or Clear.
type Provider struct {
	mu        sync.Mutex
	current   string
	listeners []Listener
}

// NewProvider creates a signed-out identity provider.
func NewProvider() *Provider {
	return &Provider{}
}

// Current returns the current identity id, or "" when signed out.
func (p *Provider) Current() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Subscribe registers a listener for identity changes.
func (p *Provider) Subscribe(fn Listener) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, fn)
}

// Set changes the current identity. Setting the same id again does not
// notify listeners.
func (p *Provider) Set(id string) {
	p.mu.Lock()
	if p.current == id {
		p.mu.Unlock()
		return
	}
	p.current = id
	listeners := make([]Listener, len(p.listeners))
	copy(listeners, p.listeners)
	p.mu.Unlock()

	slog.Info("Identity changed", "signed_in", id != "")
	for _, fn := range listeners {
		fn(id)
	}
}

// Clear signs the current identity out.
func (p *Provider) Clear() {
	p.Set("")
}
