package cli

import (
	"bytes"
	"context"
	"fmt"

	"github.com/dmitrijs2005/pinvault/internal/common"
	"github.com/dmitrijs2005/pinvault/internal/dbx"
	"github.com/dmitrijs2005/pinvault/internal/vault"
)

// getPIN is swapped in tests.
var getPIN = GetPIN

// Setup asks for a new PIN twice and creates the vault.
func (a *App) Setup(ctx context.Context) error {
	if a.keys.State() != vault.Uninitialized {
		return vault.ErrAlreadyInitialized
	}

	pin, err := getPIN(a.reader, "Choose a PIN", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pin)
	if err := vault.ValidatePIN(string(pin)); err != nil {
		return err
	}

	again, err := getPIN(a.reader, "Repeat the PIN", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(again)
	if !bytes.Equal(pin, again) {
		return fmt.Errorf("%w: PINs do not match", common.ErrorValidation)
	}

	if err := a.keys.Setup(ctx, string(pin)); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Vault created and unlocked.")
	return nil
}

// Unlock asks for the PIN and unlocks the vault.
func (a *App) Unlock(ctx context.Context) error {
	switch a.keys.State() {
	case vault.Uninitialized:
		return vault.ErrNotInitialized
	case vault.Unlocked:
		fmt.Fprintln(a.out, "Already unlocked.")
		return nil
	}

	pin, err := getPIN(a.reader, "Enter PIN", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pin)

	if err := a.keys.Unlock(ctx, string(pin)); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Unlocked.")
	return nil
}

// Lock drops the session key.
func (a *App) Lock(ctx context.Context) error {
	a.keys.Lock()
	fmt.Fprintln(a.out, "Locked.")
	return nil
}

// Reset erases every note and event and the credential record after
// confirmation. It works while locked, for a forgotten PIN.
func (a *App) Reset(ctx context.Context) error {
	if a.keys.State() == vault.Uninitialized {
		return vault.ErrNotInitialized
	}
	if !Confirm(a.reader, "This erases all notes, events and your PIN. Continue?", a.out) {
		return errCancelled
	}

	err := a.engine.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		if err := a.notes.WithDB(tx).DeleteAll(ctx); err != nil {
			return err
		}
		return a.events.WithDB(tx).DeleteAll(ctx)
	})
	if err != nil {
		return fmt.Errorf("wipe records: %w", err)
	}
	a.events.NotifyUpdated()
	if err := a.keys.Reset(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Vault erased. Type 'setup' to start again.")
	return nil
}

// Status prints the lock state and persistence health.
func (a *App) Status(ctx context.Context) error {
	fmt.Fprintf(a.out, "State:    %s\n", a.keys.State())
	fmt.Fprintf(a.out, "Storage:  %s (%s)\n", a.config.StoreBackend, a.config.DataDir)

	st := a.engine.Stats()
	fmt.Fprintf(a.out, "Saves:    %d attempted, %d failed\n", st.Writes, st.Failures)
	if err := a.engine.LastSaveError(); err != nil {
		fmt.Fprintf(a.out, "Warning:  last save failed: %v\n", err)
	}

	if a.isUnlocked() {
		n, err := a.notes.FindAll(ctx)
		if err != nil {
			return err
		}
		e, err := a.events.FindAll(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Records:  %d notes, %d events\n", len(n), len(e))
	}
	return nil
}
