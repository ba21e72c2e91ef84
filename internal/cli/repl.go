package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// execIface is the command surface the REPL dispatches to. App implements
// it; tests use a stub.
type execIface interface {
	isUnlocked() bool
	touch()

	Setup(ctx context.Context) error
	Unlock(ctx context.Context) error
	Lock(ctx context.Context) error
	Reset(ctx context.Context) error
	Status(ctx context.Context) error

	ListNotes(ctx context.Context, args []string) error
	AddNote(ctx context.Context) error
	ShowNote(ctx context.Context, args []string) error
	EditNote(ctx context.Context, args []string) error
	DeleteNote(ctx context.Context, args []string) error
	Favorite(ctx context.Context, args []string) error
	Search(ctx context.Context, args []string) error

	ListEvents(ctx context.Context, args []string) error
	AddEvent(ctx context.Context) error
	DeleteEvent(ctx context.Context, args []string) error

	SetSetting(ctx context.Context, args []string) error
	GetSetting(ctx context.Context, args []string) error

	Export(ctx context.Context, args []string) error
	Import(ctx context.Context, args []string) error
}

var errUsage = errors.New("usage")

func usage(format string) error {
	return fmt.Errorf("%w: %s", errUsage, format)
}

const helpLocked = `Available commands:
  setup                 choose a PIN for a new vault
  unlock                enter your PIN
  reset                 erase the vault and its PIN
  import <file>         restore a backup
  status, help, exit`

const helpUnlocked = `Available commands:
  notes [fav]           list notes, most recent first
  addnote               add a note
  shownote <id>         show a note
  editnote <id>         edit a note
  delnote <id>          delete a note
  fav <id> on|off       mark or unmark a favorite
  search <text>         find notes by title, content or tag
  events [from to]      list events, dates as YYYY-MM-DD
  addevent              add an event
  delevent <id>         delete an event
  set <key> <value>     store a setting (JSON or plain text)
  get [key]             show one setting or all
  export <file>         write an encrypted backup
  import <file>         replace everything with a backup
  lock, reset, status, help, exit`

// runREPL reads commands from reader until "exit", "quit" or end of input.
// The first word is the command; the rest are its arguments. Handler
// errors are reported and the loop continues.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader, out io.Writer) {
	for {
		if ctx.Err() != nil {
			return
		}
		fmt.Fprintf(out, "pv [%s]> ", statusFn())

		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			fmt.Fprintln(out)
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		a.touch()
		cmd, args := strings.ToLower(parts[0]), parts[1:]

		var cmdErr error
		switch cmd {
		case "help", "?":
			if a.isUnlocked() {
				fmt.Fprintln(out, helpUnlocked)
			} else {
				fmt.Fprintln(out, helpLocked)
			}

		case "setup":
			cmdErr = a.Setup(ctx)
		case "unlock":
			cmdErr = a.Unlock(ctx)
		case "lock":
			cmdErr = a.Lock(ctx)
		case "reset":
			cmdErr = a.Reset(ctx)
		case "status":
			cmdErr = a.Status(ctx)

		case "notes", "ls":
			cmdErr = a.ListNotes(ctx, args)
		case "addnote":
			cmdErr = a.AddNote(ctx)
		case "shownote", "show":
			cmdErr = a.ShowNote(ctx, args)
		case "editnote", "edit":
			cmdErr = a.EditNote(ctx, args)
		case "delnote":
			cmdErr = a.DeleteNote(ctx, args)
		case "fav":
			cmdErr = a.Favorite(ctx, args)
		case "search", "find":
			cmdErr = a.Search(ctx, args)

		case "events":
			cmdErr = a.ListEvents(ctx, args)
		case "addevent":
			cmdErr = a.AddEvent(ctx)
		case "delevent":
			cmdErr = a.DeleteEvent(ctx, args)

		case "set":
			cmdErr = a.SetSetting(ctx, args)
		case "get":
			cmdErr = a.GetSetting(ctx, args)

		case "export":
			cmdErr = a.Export(ctx, args)
		case "import":
			cmdErr = a.Import(ctx, args)

		case "exit", "quit":
			fmt.Fprintln(out, "Bye!")
			return

		default:
			fmt.Fprintln(out, "Unknown command:", cmd)
		}

		if cmdErr != nil {
			report(out, cmdErr)
		}
	}
}
