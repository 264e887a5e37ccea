// Package watch implements a coalescing "something changed" broadcast
// signal, the Go analogue of tokio::sync::watch used by the original's
// Watchable stores. Subscribers observe a lossy stream, not a change log.
package watch

import "sync"

// Signal is a broadcastable notification that coalesces multiple notifies
// occurring between two observations into one.
type Signal struct {
	mu sync.Mutex
	ch chan struct{}
}

func New() *Signal {
	return &Signal{ch: make(chan struct{})}
}

// C returns the current notification channel. It is closed the next time
// Notify is called; callers should re-fetch C after observing a close.
func (s *Signal) C() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ch
}

// Notify wakes every current subscriber and rotates in a fresh channel for
// subsequent ones.
func (s *Signal) Notify() {
	s.mu.Lock()
	defer s.mu.Unlock()
	close(s.ch)
	s.ch = make(chan struct{})
}
