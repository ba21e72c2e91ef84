package cryptox

import (
	"crypto/subtle"
	"fmt"

	"github.com/awnumar/memguard"
)

// Key is a symmetric key held in guarded, read-only memory. It is never
// serialized; Destroy wipes it.
type Key struct {
	buf *memguard.LockedBuffer
}

// NewKey moves raw into a guarded buffer. raw is wiped by this call.
func NewKey(raw []byte) (*Key, error) {
	if len(raw) != KeySize {
		memguard.WipeBytes(raw)
		return nil, fmt.Errorf("key must be %d bytes, got %d", KeySize, len(raw))
	}
	buf := memguard.NewBufferFromBytes(raw)
	buf.Freeze()
	return &Key{buf: buf}, nil
}

// Bytes exposes the key material. The slice must not be retained or modified.
func (k *Key) Bytes() []byte {
	if !k.Alive() {
		return nil
	}
	return k.buf.Bytes()
}

// Alive reports whether the key can still be used.
func (k *Key) Alive() bool {
	return k != nil && k.buf != nil && k.buf.IsAlive()
}

// Destroy wipes the key. Calling it more than once is safe.
func (k *Key) Destroy() {
	if k == nil || k.buf == nil {
		return
	}
	k.buf.Destroy()
}

// Equal compares two keys in constant time.
func (k *Key) Equal(other *Key) bool {
	if !k.Alive() || !other.Alive() {
		return false
	}
	return subtle.ConstantTimeCompare(k.Bytes(), other.Bytes()) == 1
}
