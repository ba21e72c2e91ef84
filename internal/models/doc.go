// Package models defines the vault's record types: decrypted domain values
// (Note, Event) and their raw ciphertext rows (NoteRow, EventRow) used by
// backup.
package models
