// Package cli provides the interactive pinvault shell.
//
// It wires configuration, the keystore, the persistence engine, the
// repositories and the backup service behind a line-oriented REPL. The vault
// starts locked; the user runs setup once, then unlock on every start.
// A background watcher locks the vault again after the configured idle time.
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
// See App, runREPL and StartAutoLock for details.
package cli
