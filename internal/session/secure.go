package session

import (
	"runtime"
	"sync"
)

// SecureBytes holds sensitive bytes in mlocked memory and zeroes them on Destroy.
type SecureBytes struct {
	mu     sync.Mutex
	data   []byte
	locked bool
}

// NewSecureBytes copies src into freshly allocated, mlocked memory.
// Locking is best effort; the copy is zeroed on Destroy either way.
func NewSecureBytes(src []byte) *SecureBytes {
	sb := &SecureBytes{data: make([]byte, len(src))}
	sb.locked = mlock(sb.data)
	copy(sb.data, src)

	// Zero even if Destroy is never called.
	runtime.SetFinalizer(sb, (*SecureBytes).Destroy)
	return sb
}

// Bytes returns the protected slice, or nil after Destroy.
func (s *SecureBytes) Bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data
}

// IsLocked reports whether the memory is mlocked.
func (s *SecureBytes) IsLocked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locked
}

// Destroy zeroes and unlocks the memory. Safe to call multiple times.
func (s *SecureBytes) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.data == nil {
		return
	}
	clear(s.data)
	if s.locked {
		munlock(s.data)
		s.locked = false
	}
	s.data = nil
	runtime.SetFinalizer(s, nil)
}
