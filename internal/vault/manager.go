// Package vault owns the PIN unlock state machine.
//
// A KeyManager starts Uninitialized when no credential record exists and
// AwaitingPIN otherwise. Setup or a successful Unlock derives the session key,
// publishes it to every subscribed Listener and moves to Unlocked. Lock
// destroys the key and returns to AwaitingPIN. The PIN and the derived key are
// never persisted; only the salt and an encrypted verification token are.
package vault

import (
	"context"
	"crypto/subtle"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/pinvault/internal/common"
	"github.com/dmitrijs2005/pinvault/internal/cryptox"
	"github.com/dmitrijs2005/pinvault/internal/keystore"
	"github.com/dmitrijs2005/pinvault/internal/logging"
)

// VerificationPlaintext is encrypted under the derived key to form the
// verification token.
const VerificationPlaintext = "pinvault:verification:v1"

type KeyManager struct {
	mu        sync.Mutex
	store     keystore.CredentialStore
	logger    logging.Logger
	state     State
	key       *cryptox.Key
	listeners map[int]Listener
	nextID    int

	deriveKey func(pin, salt []byte) (*cryptox.Key, error)
}

// NewKeyManager reads the credential record to pick the initial state.
func NewKeyManager(ctx context.Context, store keystore.CredentialStore, logger logging.Logger) (*KeyManager, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	m := &KeyManager{
		store:     store,
		logger:    logger.With("component", "vault"),
		listeners: make(map[int]Listener),
		deriveKey: cryptox.DeriveKey,
	}

	creds, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}
	if creds == nil {
		m.state = Uninitialized
	} else {
		m.state = AwaitingPIN
	}
	return m, nil
}

func (m *KeyManager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// SessionKey returns the published key, or ErrLocked.
func (m *KeyManager) SessionKey() (*cryptox.Key, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Unlocked || !m.key.Alive() {
		return nil, ErrLocked
	}
	return m.key, nil
}

// Subscribe registers l. If the vault is already unlocked, l receives the
// current key immediately. The returned func unsubscribes.
func (m *KeyManager) Subscribe(l Listener) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	m.listeners[id] = l
	if m.state == Unlocked {
		l.OnUnlock(m.key)
	}

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.listeners, id)
	}
}

// Setup creates the credential record for pin and unlocks the vault.
func (m *KeyManager) Setup(ctx context.Context, pin string) error {
	if err := ValidatePIN(pin); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	existing, err := m.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load credentials: %w", err)
	}
	if existing != nil {
		return ErrAlreadyInitialized
	}

	salt, err := cryptox.GenerateSalt()
	if err != nil {
		return err
	}
	key, err := m.derive(pin, salt)
	if err != nil {
		return err
	}
	token, err := cryptox.EncryptString(VerificationPlaintext, key)
	if err != nil {
		key.Destroy()
		return err
	}
	if err := m.store.Save(ctx, keystore.Credentials{Salt: salt, VerificationToken: token}); err != nil {
		key.Destroy()
		return fmt.Errorf("save credentials: %w", err)
	}

	m.logger.Info(ctx, "vault initialized")
	m.publish(ctx, key)
	return nil
}

// Unlock checks pin against the stored verification token. Every rejection
// is reported as ErrIncorrectPIN.
func (m *KeyManager) Unlock(ctx context.Context, pin string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	creds, err := m.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load credentials: %w", err)
	}
	if creds == nil {
		return ErrNotInitialized
	}

	key, err := m.verify(pin, creds)
	if err != nil {
		m.logger.Warn(ctx, "unlock rejected")
		return ErrIncorrectPIN
	}

	if m.state == Unlocked && m.key.Alive() {
		// The session key is immutable while unlocked.
		key.Destroy()
		return nil
	}

	m.logger.Info(ctx, "vault unlocked")
	m.publish(ctx, key)
	return nil
}

func (m *KeyManager) verify(pin string, creds *keystore.Credentials) (*cryptox.Key, error) {
	if err := ValidatePIN(pin); err != nil {
		return nil, err
	}
	key, err := m.derive(pin, creds.Salt)
	if err != nil {
		return nil, err
	}
	if err := VerifyToken(creds.VerificationToken, key); err != nil {
		key.Destroy()
		return nil, err
	}
	return key, nil
}

// VerifyToken reports whether token is the verification plaintext sealed
// under key.
func VerifyToken(token string, key *cryptox.Key) error {
	plain, err := cryptox.DecryptString(token, key)
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare([]byte(plain), []byte(VerificationPlaintext)) != 1 {
		return ErrIncorrectPIN
	}
	return nil
}

// Replace swaps the credential record for creds, which pin must open, and
// re-keys the session: subscribers see OnLock followed by OnUnlock.
// Nothing is written when pin does not match creds.
func (m *KeyManager) Replace(ctx context.Context, creds keystore.Credentials, pin string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key, err := m.verify(pin, &creds)
	if err != nil {
		return ErrIncorrectPIN
	}
	if err := m.store.Save(ctx, creds); err != nil {
		key.Destroy()
		return fmt.Errorf("save credentials: %w", err)
	}

	m.lockLocked()
	m.logger.Info(ctx, "credentials replaced")
	m.publish(ctx, key)
	return nil
}

// Lock destroys the session key and notifies subscribers.
func (m *KeyManager) Lock() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lockLocked()
}

// Reset locks the vault and deletes the credential record.
func (m *KeyManager) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lockLocked()
	if err := m.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}
	m.state = Uninitialized
	m.logger.Info(ctx, "vault reset")
	return nil
}

func (m *KeyManager) lockLocked() {
	if m.state != Unlocked {
		return
	}
	for _, l := range m.listeners {
		l.OnLock()
	}
	m.key.Destroy()
	m.key = nil
	m.state = AwaitingPIN
	m.logger.Info(context.Background(), "vault locked")
}

func (m *KeyManager) publish(ctx context.Context, key *cryptox.Key) {
	m.key = key
	m.state = Unlocked
	for _, l := range m.listeners {
		l.OnUnlock(key)
	}
	m.logger.Debug(ctx, "session key published", "listeners", len(m.listeners))
}

func (m *KeyManager) derive(pin string, salt []byte) (*cryptox.Key, error) {
	raw := []byte(pin)
	defer common.WipeByteArray(raw)
	return m.deriveKey(raw, salt)
}
