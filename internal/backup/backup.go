// Package backup exports the whole vault as one encrypted artifact and
// restores it, replacing every note, event and the credential record.
//
// Artifact layout:
//
//	salt (16) || nonce (12) || AES-256-GCM(envelope JSON) || tag (16)
//
// The salt is the exporting vault's credential salt, kept in clear so the
// importing side can derive the same key from the PIN. The envelope carries
// the credential record and the raw ciphertext rows; records are not
// re-encrypted.
package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/pinvault/internal/cryptox"
	"github.com/dmitrijs2005/pinvault/internal/dbx"
	"github.com/dmitrijs2005/pinvault/internal/keystore"
	"github.com/dmitrijs2005/pinvault/internal/logging"
	"github.com/dmitrijs2005/pinvault/internal/models"
	"github.com/dmitrijs2005/pinvault/internal/repositories/events"
	"github.com/dmitrijs2005/pinvault/internal/repositories/notes"
	"github.com/dmitrijs2005/pinvault/internal/vault"
)

// FormatVersion is written into every envelope and required on import.
const FormatVersion = 1

// minArtifactSize is salt + nonce + GCM tag.
const minArtifactSize = cryptox.SaltSize + cryptox.NonceSize + 16

var (
	ErrConfirmationRequired = errors.New("import replaces all data and must be confirmed")
	ErrInvalidArtifact      = errors.New("invalid backup artifact")
)

type envelope struct {
	Version           int       `json:"version"`
	ExportedAt        time.Time `json:"exported_at"`
	Salt              []byte    `json:"salt"`
	VerificationToken string    `json:"verification_token"`
	Data              payload   `json:"data"`
}

type payload struct {
	Notes  []models.NoteRow  `json:"notes"`
	Events []models.EventRow `json:"events"`
}

// ImportOptions must carry Confirmed for Import to touch anything.
type ImportOptions struct {
	Confirmed bool
}

// ImportResult summarizes a completed import.
type ImportResult struct {
	Notes      int
	Events     int
	ExportedAt time.Time
}

// Service implements export and import over the vault's components.
type Service struct {
	db     dbx.TxRunner
	notes  *notes.SQLiteRepository
	events *events.SQLiteRepository
	creds  keystore.CredentialStore
	keys   *vault.KeyManager
	logger logging.Logger
	now    func() time.Time
}

func NewService(db dbx.TxRunner, n *notes.SQLiteRepository, e *events.SQLiteRepository,
	creds keystore.CredentialStore, keys *vault.KeyManager, logger logging.Logger) *Service {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{
		db:     db,
		notes:  n,
		events: e,
		creds:  creds,
		keys:   keys,
		logger: logger.With("component", "backup"),
		now:    time.Now,
	}
}

// Export seals the current vault under the session key.
func (s *Service) Export(ctx context.Context) ([]byte, error) {
	key, err := s.keys.SessionKey()
	if err != nil {
		return nil, err
	}
	creds, err := s.creds.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}
	if creds == nil {
		return nil, vault.ErrNotInitialized
	}

	noteRows, err := s.notes.ListRaw(ctx)
	if err != nil {
		return nil, err
	}
	eventRows, err := s.events.ListRaw(ctx)
	if err != nil {
		return nil, err
	}

	env := envelope{
		Version:           FormatVersion,
		ExportedAt:        s.now().UTC(),
		Salt:              creds.Salt,
		VerificationToken: creds.VerificationToken,
		Data:              payload{Notes: noteRows, Events: eventRows},
	}
	plain, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}
	sealed, err := cryptox.EncryptBytes(plain, key)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(creds.Salt)+len(sealed))
	out = append(out, creds.Salt...)
	out = append(out, sealed...)

	s.logger.Info(ctx, "vault exported", "notes", len(noteRows), "events", len(eventRows), "bytes", len(out))
	return out, nil
}

// Import replaces all notes, events and the credential record with the
// artifact's contents. The artifact is fully decoded and its PIN checked
// before anything is changed. Rows and credentials change together: if the
// credential record cannot be saved the row transaction rolls back.
func (s *Service) Import(ctx context.Context, artifact []byte, pin string, opts ImportOptions) (*ImportResult, error) {
	if !opts.Confirmed {
		return nil, ErrConfirmationRequired
	}

	env, err := s.decode(artifact, pin)
	if err != nil {
		s.logger.Warn(ctx, "backup rejected", "error", err)
		return nil, err
	}

	prev, err := s.creds.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}

	// The credential swap is the last step inside the transaction: if it
	// fails the rows roll back and the old record stays in place.
	var replaced bool
	err = s.db.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		n := s.notes.WithDB(tx)
		e := s.events.WithDB(tx)
		if err := n.DeleteAll(ctx); err != nil {
			return err
		}
		if err := e.DeleteAll(ctx); err != nil {
			return err
		}
		if err := n.InsertRaw(ctx, env.Data.Notes); err != nil {
			return err
		}
		if err := e.InsertRaw(ctx, env.Data.Events); err != nil {
			return err
		}

		creds := keystore.Credentials{Salt: env.Salt, VerificationToken: env.VerificationToken}
		if err := s.keys.Replace(ctx, creds, pin); err != nil {
			return fmt.Errorf("replace credentials: %w", err)
		}
		replaced = true
		return nil
	})
	if err != nil {
		if replaced {
			s.restoreCredentials(ctx, prev)
		}
		return nil, fmt.Errorf("import backup: %w", err)
	}
	s.events.NotifyUpdated()

	s.logger.Info(ctx, "vault imported", "notes", len(env.Data.Notes), "events", len(env.Data.Events))
	return &ImportResult{
		Notes:      len(env.Data.Notes),
		Events:     len(env.Data.Events),
		ExportedAt: env.ExportedAt,
	}, nil
}

// restoreCredentials puts prev back after the rows failed to commit under
// new credentials. The vault is left locked (or uninitialized) so the next
// unlock derives the key that matches the surviving rows.
func (s *Service) restoreCredentials(ctx context.Context, prev *keystore.Credentials) {
	if prev == nil {
		if err := s.keys.Reset(ctx); err != nil {
			s.logger.Error(ctx, "failed to clear credentials after import", "error", err)
		}
		return
	}
	s.keys.Lock()
	if err := s.creds.Save(ctx, *prev); err != nil {
		s.logger.Error(ctx, "failed to restore credentials after import", "error", err)
	}
}

func (s *Service) decode(artifact []byte, pin string) (*envelope, error) {
	if len(artifact) < minArtifactSize {
		return nil, fmt.Errorf("%w: too short", ErrInvalidArtifact)
	}
	if err := vault.ValidatePIN(pin); err != nil {
		return nil, vault.ErrIncorrectPIN
	}

	salt := artifact[:cryptox.SaltSize]
	key, err := cryptox.DeriveKey([]byte(pin), salt)
	if err != nil {
		return nil, err
	}
	defer key.Destroy()

	plain, err := cryptox.DecryptBytes(artifact[cryptox.SaltSize:], key)
	if err != nil {
		return nil, fmt.Errorf("%w: wrong PIN or corrupted data: %w", ErrInvalidArtifact, err)
	}

	var env envelope
	if err := json.Unmarshal(plain, &env); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArtifact, err)
	}
	if env.Version != FormatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidArtifact, env.Version)
	}
	if !bytes.Equal(env.Salt, salt) {
		return nil, fmt.Errorf("%w: salt mismatch", ErrInvalidArtifact)
	}
	if err := vault.VerifyToken(env.VerificationToken, key); err != nil {
		return nil, fmt.Errorf("%w: verification token: %w", ErrInvalidArtifact, err)
	}
	for _, n := range env.Data.Notes {
		if n.ID == "" {
			return nil, fmt.Errorf("%w: note without id", ErrInvalidArtifact)
		}
	}
	for _, e := range env.Data.Events {
		if e.ID == "" || e.TitleEncrypted == "" || e.CalendarType == "" {
			return nil, fmt.Errorf("%w: event %q missing required fields", ErrInvalidArtifact, e.ID)
		}
	}
	return &env, nil
}
