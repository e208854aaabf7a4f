package signalingtest

import "sync"

// handlers holds one callback of each kind; a nil callback is skipped.
type handlers struct {
	mu        sync.RWMutex
	onMessage func(string)
	onOpen    func()
	onError   func(error)
	onClose   func()
}

func (h *handlers) setMessage(fn func(string)) { h.mu.Lock(); h.onMessage = fn; h.mu.Unlock() }
func (h *handlers) setOpen(fn func())          { h.mu.Lock(); h.onOpen = fn; h.mu.Unlock() }
func (h *handlers) setError(fn func(error))    { h.mu.Lock(); h.onError = fn; h.mu.Unlock() }
func (h *handlers) setClose(fn func())         { h.mu.Lock(); h.onClose = fn; h.mu.Unlock() }

func (h *handlers) message(text string) {
	h.mu.RLock()
	fn := h.onMessage
	h.mu.RUnlock()
	if fn != nil {
		fn(text)
	}
}

func (h *handlers) open() {
	h.mu.RLock()
	fn := h.onOpen
	h.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

func (h *handlers) error(err error) {
	h.mu.RLock()
	fn := h.onError
	h.mu.RUnlock()
	if fn != nil {
		fn(err)
	}
}

func (h *handlers) close() {
	h.mu.RLock()
	fn := h.onClose
	h.mu.RUnlock()
	if fn != nil {
		fn()
	}
}
