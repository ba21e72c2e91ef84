// Package notes stores notes with their title, content and tags encrypted
// under the session key.
//
// Repository is the interface used by the shell and the backup service;
// SQLiteRepository implements it over a dbx.DBTX, normally the persistence
// engine or a transaction opened on it. The raw projections (ListRaw,
// InsertRaw, DeleteAll) move ciphertext rows without decrypting them.
package notes
