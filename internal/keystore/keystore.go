// Package keystore persists the vault's credential record (salt and
// verification token) in a small SQLite file next to the vault snapshot.
//
// The record is written on setup and replaced on backup import. It never
// contains the PIN or any derived key.
package keystore

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"

	"github.com/dmitrijs2005/pinvault/internal/dbx"
	"github.com/dmitrijs2005/pinvault/internal/keystore/migrations"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

// FileName is the keystore database name inside the data directory.
const FileName = "keystore.db"

const (
	keySalt              = "salt"
	keyVerificationToken = "verification_token"
)

// Credentials is the persisted unlock material.
type Credentials struct {
	Salt              []byte
	VerificationToken string
}

// CredentialStore is what the key manager needs from persistence.
type CredentialStore interface {
	// Load returns (nil, nil) when no credential record exists.
	Load(ctx context.Context) (*Credentials, error)
	Save(ctx context.Context, c Credentials) error
	Clear(ctx context.Context) error
}

// Keystore is a CredentialStore backed by a SQLite database.
type Keystore struct {
	db *sql.DB
}

var _ CredentialStore = (*Keystore)(nil)

// Open opens (creating if needed) the keystore at dsn and migrates it.
func Open(ctx context.Context, dsn string) (*Keystore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate keystore: %w", err)
	}
	return &Keystore{db: db}, nil
}

// OpenDir opens the keystore file inside dir.
func OpenDir(ctx context.Context, dir string) (*Keystore, error) {
	return Open(ctx, filepath.Join(dir, FileName))
}

// RunMigrations applies the embedded keystore migrations.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, migrations.Migrations)
	if err != nil {
		return err
	}
	_, err = provider.Up(ctx)
	return err
}

func (k *Keystore) Load(ctx context.Context) (*Credentials, error) {
	repo := NewSQLiteRepository(k.db)

	salt, err := repo.Get(ctx, keySalt)
	if err != nil {
		return nil, err
	}
	token, err := repo.Get(ctx, keyVerificationToken)
	if err != nil {
		return nil, err
	}
	if salt == nil || token == nil {
		return nil, nil
	}
	return &Credentials{Salt: salt, VerificationToken: string(token)}, nil
}

// Save replaces the credential record atomically.
func (k *Keystore) Save(ctx context.Context, c Credentials) error {
	if len(c.Salt) == 0 || c.VerificationToken == "" {
		return fmt.Errorf("keystore: incomplete credentials")
	}
	return dbx.WithTx(ctx, k.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := NewSQLiteRepository(tx)
		if err := repo.Set(ctx, keySalt, c.Salt); err != nil {
			return err
		}
		return repo.Set(ctx, keyVerificationToken, []byte(c.VerificationToken))
	})
}

func (k *Keystore) Clear(ctx context.Context) error {
	return NewSQLiteRepository(k.db).Clear(ctx)
}

func (k *Keystore) Close() error {
	return k.db.Close()
}
