package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/pinvault/internal/backup"
	"github.com/dmitrijs2005/pinvault/internal/common"
)

// Export writes an encrypted backup of the unlocked vault.
func (a *App) Export(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("export <file>")
	}
	path, err := a.backup.ExportToFile(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Backup written to %s.\n", path)
	return nil
}

// Import replaces all notes, events and the PIN with a backup. It asks for
// the PIN the backup was made with and an explicit confirmation.
func (a *App) Import(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usage("import <file>")
	}
	path := strings.Join(args, " ")

	pin, err := getPIN(a.reader, "PIN of the backup", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pin)

	confirmed := Confirm(a.reader, "Import replaces ALL notes, events and your PIN. Continue?", a.out)
	res, err := a.backup.ImportFromFile(ctx, path, string(pin), backup.ImportOptions{Confirmed: confirmed})
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Imported %d notes and %d events from %s. The backup PIN is now your PIN.\n",
		res.Notes, res.Events, res.ExportedAt.Local().Format(timeLayout))
	return nil
}
