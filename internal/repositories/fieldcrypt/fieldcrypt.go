// Package fieldcrypt encrypts and decrypts the individual sensitive columns
// of a record. Each column is sealed on its own under the session key, and
// a record's columns are opened concurrently.
package fieldcrypt

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/pinvault/internal/cryptox"
	"golang.org/x/sync/errgroup"
)

// ErrRecordUndecryptable marks a record with at least one column that could
// not be opened. It wraps the underlying cryptox.ErrDecrypt.
var ErrRecordUndecryptable = errors.New("record cannot be decrypted")

// Field pairs a stored ciphertext with where its plaintext goes.
// A NULL ciphertext leaves Plain empty and sets *Present to false.
type Field struct {
	Cipher  sql.NullString
	Plain   *string
	Present *bool
}

// Open decrypts every field of the record identified by id.
func Open(ctx context.Context, key *cryptox.Key, id string, fields ...Field) error {
	g, _ := errgroup.WithContext(ctx)
	for _, f := range fields {
		if f.Present != nil {
			*f.Present = f.Cipher.Valid
		}
		if !f.Cipher.Valid {
			*f.Plain = ""
			continue
		}
		g.Go(func() error {
			plain, err := cryptox.DecryptString(f.Cipher.String, key)
			if err != nil {
				return err
			}
			*f.Plain = plain
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrRecordUndecryptable, id, err)
	}
	return nil
}

// Seal encrypts s as a non-NULL column value.
func Seal(s string, key *cryptox.Key) (sql.NullString, error) {
	blob, err := cryptox.EncryptString(s, key)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: blob, Valid: true}, nil
}

// SealOptional encrypts *s, or returns NULL for a nil s.
func SealOptional(s *string, key *cryptox.Key) (sql.NullString, error) {
	if s == nil {
		return sql.NullString{}, nil
	}
	return Seal(*s, key)
}

// NullToPtr converts a nullable column into the pointer form used by raw rows.
func NullToPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// PtrToNull is the inverse of NullToPtr.
func PtrToNull(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
