package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dmitrijs2005/pinvault/internal/backup"
	"github.com/dmitrijs2005/pinvault/internal/config"
	"github.com/dmitrijs2005/pinvault/internal/filex"
	"github.com/dmitrijs2005/pinvault/internal/keystore"
	"github.com/dmitrijs2005/pinvault/internal/logging"
	"github.com/dmitrijs2005/pinvault/internal/repositories/events"
	"github.com/dmitrijs2005/pinvault/internal/repositories/notes"
	"github.com/dmitrijs2005/pinvault/internal/repositories/settings"
	"github.com/dmitrijs2005/pinvault/internal/storage/blockstore"
	"github.com/dmitrijs2005/pinvault/internal/storage/engine"
	"github.com/dmitrijs2005/pinvault/internal/vault"
)

// App wires the vault components behind the interactive shell.
type App struct {
	config *config.Config
	logger logging.Logger
	reader *bufio.Reader
	out    io.Writer

	engine   *engine.Engine
	keystore *keystore.Keystore
	keys     *vault.KeyManager
	holder   *vault.KeyHolder
	notes    *notes.SQLiteRepository
	events   *events.SQLiteRepository
	settings *settings.SQLiteRepository
	backup   *backup.Service
	calendar *calendarView

	mu           sync.Mutex
	lastActivity time.Time
	now          func() time.Time
}

// NewApp opens the keystore and the persistence engine described by cfg.
func NewApp(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer, logger logging.Logger) (*App, error) {
	store, err := openBlockStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return newApp(ctx, cfg, store, in, out, logger)
}

func newApp(ctx context.Context, cfg *config.Config, store blockstore.Store, in io.Reader, out io.Writer, logger logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	dir, err := filex.EnsureDir(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	ks, err := keystore.OpenDir(ctx, dir)
	if err != nil {
		return nil, fmt.Errorf("open keystore: %w", err)
	}

	eng, err := engine.Open(ctx, engine.Options{Store: store, SnapshotName: cfg.SnapshotName, Logger: logger})
	if err != nil {
		_ = ks.Close()
		return nil, fmt.Errorf("open vault: %w", err)
	}

	km, err := vault.NewKeyManager(ctx, ks, logger)
	if err != nil {
		_ = eng.Close(ctx)
		_ = ks.Close()
		return nil, err
	}
	holder := vault.NewKeyHolder()
	km.Subscribe(holder)

	a := &App{
		config:   cfg,
		logger:   logger,
		reader:   bufio.NewReader(in),
		out:      out,
		engine:   eng,
		keystore: ks,
		keys:     km,
		holder:   holder,
		notes:    notes.NewSQLiteRepository(eng, holder),
		events:   events.NewSQLiteRepository(eng, holder),
		settings: settings.NewSQLiteRepository(eng),
		now:      time.Now,
	}
	a.backup = backup.NewService(eng, a.notes, a.events, ks, km, logger)
	a.calendar = newCalendarView(a.events)
	km.Subscribe(a.calendar)
	a.lastActivity = a.now()
	return a, nil
}

func openBlockStore(ctx context.Context, cfg *config.Config) (blockstore.Store, error) {
	switch cfg.StoreBackend {
	case config.BackendS3:
		return blockstore.NewS3Store(ctx, blockstore.S3Options{
			Bucket:       cfg.S3Bucket,
			Region:       cfg.S3Region,
			BaseEndpoint: cfg.S3BaseEndpoint,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
		})
	default:
		return blockstore.NewFileStore(cfg.DataDir)
	}
}

// Run prints the banner, starts the idle watcher and runs the shell until
// exit or end of input. Resources are released on return.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	fmt.Fprintln(a.out, "Welcome to pinvault (type 'help' for commands)")
	switch a.keys.State() {
	case vault.Uninitialized:
		fmt.Fprintln(a.out, "No vault yet. Type 'setup' to choose a PIN.")
	case vault.AwaitingPIN:
		fmt.Fprintln(a.out, "Vault is locked. Type 'unlock' to enter your PIN.")
	}

	if a.config.UnlockTimeout > 0 {
		go a.StartAutoLock(ctx, a.config.UnlockTimeout)
	}

	runREPL(ctx, a, a.getStatus, a.reader, a.out)
	return a.Close(ctx)
}

// Close locks the vault and flushes and closes storage.
func (a *App) Close(ctx context.Context) error {
	a.keys.Lock()
	a.calendar.close()
	err := a.engine.Close(ctx)
	if errors.Is(err, engine.ErrNotReady) {
		err = nil
	}
	return errors.Join(err, a.keystore.Close())
}

func (a *App) isUnlocked() bool {
	return a.keys.State() == vault.Unlocked
}

func (a *App) getStatus() string {
	return a.keys.State().String()
}

// touch records user activity for the idle auto-lock.
func (a *App) touch() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastActivity = a.now()
}

// StartAutoLock locks the vault after timeout without activity. It returns
// when ctx is done.
func (a *App) StartAutoLock(ctx context.Context, timeout time.Duration) {
	interval := timeout / 4
	if interval > time.Second {
		interval = time.Second
	}
	if interval <= 0 {
		interval = time.Millisecond
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.lockIfIdle(ctx, timeout)
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) lockIfIdle(ctx context.Context, timeout time.Duration) bool {
	a.mu.Lock()
	idle := a.now().Sub(a.lastActivity)
	a.mu.Unlock()

	if idle < timeout || !a.isUnlocked() {
		return false
	}
	a.keys.Lock()
	a.logger.Info(ctx, "vault auto-locked", "idle", idle.Round(time.Second))
	fmt.Fprintln(a.out, "\nVault locked after inactivity.")
	return true
}
