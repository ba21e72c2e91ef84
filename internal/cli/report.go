package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/pinvault/internal/backup"
	"github.com/dmitrijs2005/pinvault/internal/common"
	"github.com/dmitrijs2005/pinvault/internal/repositories/fieldcrypt"
	"github.com/dmitrijs2005/pinvault/internal/vault"
)

// errCancelled is returned when the user declines a confirmation prompt.
var errCancelled = errors.New("cancelled")

// report prints a short message for err. Known sentinels get a fixed text;
// anything else is printed as is.
func report(w io.Writer, err error) {
	fmt.Fprintln(w, describe(err))
}

func describe(err error) string {
	switch {
	case errors.Is(err, errUsage):
		return "Usage: " + strings.TrimPrefix(err.Error(), errUsage.Error()+": ")
	case errors.Is(err, errCancelled), errors.Is(err, backup.ErrConfirmationRequired):
		return "Cancelled."
	case errors.Is(err, vault.ErrIncorrectPIN):
		return "Incorrect PIN."
	case errors.Is(err, vault.ErrInvalidPIN):
		return fmt.Sprintf("PIN must be %d to %d digits.", vault.MinPINLength, vault.MaxPINLength)
	case errors.Is(err, vault.ErrNotInitialized):
		return "No vault yet. Type 'setup' first."
	case errors.Is(err, vault.ErrAlreadyInitialized):
		return "A vault already exists. Use 'unlock', or 'reset' to start over."
	case errors.Is(err, common.ErrorLocked):
		return "Vault is locked. Type 'unlock' first."
	case errors.Is(err, backup.ErrInvalidArtifact):
		return "Backup rejected: wrong PIN or damaged file. Nothing was changed."
	case errors.Is(err, fieldcrypt.ErrRecordUndecryptable):
		return "Some records cannot be decrypted with the current key."
	case errors.Is(err, common.ErrorNotFound):
		return "Not found."
	case errors.Is(err, common.ErrorValidation):
		return "Invalid input: " + err.Error()
	default:
		return "Error: " + err.Error()
	}
}
