package vault

import (
	"sync"

	"github.com/dmitrijs2005/pinvault/internal/cryptox"
)

// Listener receives session key changes. Callbacks run while the key
// manager holds its lock, so they must not call back into it.
type Listener interface {
	OnUnlock(key *cryptox.Key)
	OnLock()
}

// KeySource hands out the current session key or ErrLocked.
type KeySource interface {
	Key() (*cryptox.Key, error)
}

// KeyHolder is a Listener that keeps the published session key for
// repositories. A second OnUnlock while a live key is held is ignored.
type KeyHolder struct {
	mu  sync.RWMutex
	key *cryptox.Key
}

var (
	_ Listener  = (*KeyHolder)(nil)
	_ KeySource = (*KeyHolder)(nil)
)

func NewKeyHolder() *KeyHolder {
	return &KeyHolder{}
}

func (h *KeyHolder) OnUnlock(key *cryptox.Key) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.key.Alive() {
		return
	}
	h.key = key
}

func (h *KeyHolder) OnLock() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.key = nil
}

func (h *KeyHolder) Key() (*cryptox.Key, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.key.Alive() {
		return nil, ErrLocked
	}
	return h.key, nil
}
