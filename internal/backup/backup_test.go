package backup

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/pinvault/internal/cryptox"
	"github.com/dmitrijs2005/pinvault/internal/keystore"
	"github.com/dmitrijs2005/pinvault/internal/models"
	"github.com/dmitrijs2005/pinvault/internal/repositories/events"
	"github.com/dmitrijs2005/pinvault/internal/repositories/notes"
	"github.com/dmitrijs2005/pinvault/internal/storage/blockstore"
	"github.com/dmitrijs2005/pinvault/internal/storage/engine"
	"github.com/dmitrijs2005/pinvault/internal/vault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type device struct {
	km     *vault.KeyManager
	notes  *notes.SQLiteRepository
	events *events.SQLiteRepository
	svc    *Service
}

func newDevice(t *testing.T, pin string) *device {
	t.Helper()
	return newDeviceWithCreds(t, pin, nil)
}

// failingCreds passes through to a real store until saveErr is set.
type failingCreds struct {
	keystore.CredentialStore
	saveErr error
}

func (f *failingCreds) Save(ctx context.Context, c keystore.Credentials) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	return f.CredentialStore.Save(ctx, c)
}

// newDeviceWithCreds is newDevice with the credential store optionally
// wrapped by wrap.
func newDeviceWithCreds(t *testing.T, pin string, wrap func(keystore.CredentialStore) keystore.CredentialStore) *device {
	t.Helper()
	ctx := context.Background()

	eng, err := engine.Open(ctx, engine.Options{Store: blockstore.NewMemoryStore()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close(ctx) })

	ks, err := keystore.OpenDir(ctx, t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = ks.Close() })

	var creds keystore.CredentialStore = ks
	if wrap != nil {
		creds = wrap(ks)
	}

	km, err := vault.NewKeyManager(ctx, creds, nil)
	require.NoError(t, err)
	holder := vault.NewKeyHolder()
	km.Subscribe(holder)
	require.NoError(t, km.Setup(ctx, pin))

	d := &device{
		km:     km,
		notes:  notes.NewSQLiteRepository(eng, holder),
		events: events.NewSQLiteRepository(eng, holder),
	}
	d.svc = NewService(eng, d.notes, d.events, creds, km, nil)
	return d
}

func (d *device) addNote(t *testing.T, title string) {
	t.Helper()
	require.NoError(t, d.notes.Create(context.Background(), &models.Note{Title: title, Content: title + " body"}))
}

func (d *device) titles(t *testing.T) []string {
	t.Helper()
	all, err := d.notes.FindAll(context.Background())
	require.NoError(t, err)
	var out []string
	for _, n := range all {
		out = append(out, n.Title)
	}
	sort.Strings(out)
	return out
}

func TestImportReplacesEverything(t *testing.T) {
	ctx := context.Background()
	d := newDevice(t, "1234")
	d.addNote(t, "one")
	d.addNote(t, "two")
	require.NoError(t, d.events.Create(ctx, &models.Event{Title: "dentist", StartTime: time.UnixMilli(1000)}))

	artifact, err := d.svc.Export(ctx)
	require.NoError(t, err)

	d.addNote(t, "three")
	require.NoError(t, d.events.Create(ctx, &models.Event{Title: "later", StartTime: time.UnixMilli(2000)}))

	res, err := d.svc.Import(ctx, artifact, "1234", ImportOptions{Confirmed: true})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Notes)
	assert.Equal(t, 1, res.Events)

	assert.Equal(t, []string{"one", "two"}, d.titles(t))
	evs, err := d.events.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, "dentist", evs[0].Title)
	assert.Equal(t, vault.Unlocked, d.km.State())
}

func TestImportRejectionsLeaveDataUntouched(t *testing.T) {
	ctx := context.Background()
	d := newDevice(t, "1234")
	d.addNote(t, "kept")

	artifact, err := d.svc.Export(ctx)
	require.NoError(t, err)
	d.addNote(t, "after export")
	want := d.titles(t)

	flipped := append([]byte(nil), artifact...)
	flipped[len(flipped)-1] ^= 0xFF

	tests := []struct {
		name     string
		artifact []byte
		pin      string
		opts     ImportOptions
		wantErr  error
	}{
		{name: "not confirmed", artifact: artifact, pin: "1234", wantErr: ErrConfirmationRequired},
		{name: "wrong pin", artifact: artifact, pin: "0000", opts: ImportOptions{Confirmed: true}, wantErr: ErrInvalidArtifact},
		{name: "tampered", artifact: flipped, pin: "1234", opts: ImportOptions{Confirmed: true}, wantErr: ErrInvalidArtifact},
		{name: "truncated", artifact: artifact[:20], pin: "1234", opts: ImportOptions{Confirmed: true}, wantErr: ErrInvalidArtifact},
		{name: "empty", artifact: nil, pin: "1234", opts: ImportOptions{Confirmed: true}, wantErr: ErrInvalidArtifact},
		{name: "malformed pin", artifact: artifact, pin: "12ab", opts: ImportOptions{Confirmed: true}, wantErr: vault.ErrIncorrectPIN},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.svc.Import(ctx, tt.artifact, tt.pin, tt.opts)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, want, d.titles(t))
			assert.Equal(t, vault.Unlocked, d.km.State())
		})
	}
}

func TestImportCredentialSaveFailureKeepsOldVault(t *testing.T) {
	ctx := context.Background()
	a := newDevice(t, "5678")
	a.addNote(t, "from a")
	artifact, err := a.svc.Export(ctx)
	require.NoError(t, err)

	fc := &failingCreds{}
	b := newDeviceWithCreds(t, "1234", func(cs keystore.CredentialStore) keystore.CredentialStore {
		fc.CredentialStore = cs
		return fc
	})
	b.addNote(t, "kept")
	require.NoError(t, b.events.Create(ctx, &models.Event{Title: "kept", StartTime: time.UnixMilli(1000)}))

	updated, unsubscribe := b.events.Subscribe()
	defer unsubscribe()

	fc.saveErr = errors.New("disk full")
	_, err = b.svc.Import(ctx, artifact, "5678", ImportOptions{Confirmed: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	select {
	case <-updated:
		t.Fatal("failed import raised the updated signal")
	default:
	}

	assert.Equal(t, vault.Unlocked, b.km.State())
	assert.Equal(t, []string{"kept"}, b.titles(t))
	evs, err := b.events.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, evs, 1)

	fc.saveErr = nil
	b.km.Lock()
	require.ErrorIs(t, b.km.Unlock(ctx, "5678"), vault.ErrIncorrectPIN)
	require.NoError(t, b.km.Unlock(ctx, "1234"))
	assert.Equal(t, []string{"kept"}, b.titles(t))
}

func TestImportSignalsEventsAfterCommit(t *testing.T) {
	ctx := context.Background()
	d := newDevice(t, "1234")
	require.NoError(t, d.events.Create(ctx, &models.Event{Title: "dentist", StartTime: time.UnixMilli(1000)}))
	artifact, err := d.svc.Export(ctx)
	require.NoError(t, err)

	updated, unsubscribe := d.events.Subscribe()
	defer unsubscribe()

	_, err = d.svc.Import(ctx, artifact, "1234", ImportOptions{Confirmed: true})
	require.NoError(t, err)

	select {
	case <-updated:
	default:
		t.Fatal("expected an updated signal after import")
	}
}

func TestImportWrongPINWrapsDecryptError(t *testing.T) {
	ctx := context.Background()
	d := newDevice(t, "1234")
	artifact, err := d.svc.Export(ctx)
	require.NoError(t, err)

	_, err = d.svc.Import(ctx, artifact, "4321", ImportOptions{Confirmed: true})
	require.ErrorIs(t, err, cryptox.ErrDecrypt)
}

func TestImportOnAnotherDevice(t *testing.T) {
	ctx := context.Background()
	a := newDevice(t, "1234")
	a.addNote(t, "from a")
	artifact, err := a.svc.Export(ctx)
	require.NoError(t, err)

	b := newDevice(t, "5678")
	b.addNote(t, "from b")

	_, err = b.svc.Import(ctx, artifact, "1234", ImportOptions{Confirmed: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"from a"}, b.titles(t))

	b.km.Lock()
	require.ErrorIs(t, b.km.Unlock(ctx, "5678"), vault.ErrIncorrectPIN)
	require.NoError(t, b.km.Unlock(ctx, "1234"))
	assert.Equal(t, []string{"from a"}, b.titles(t))
}

func TestExportRequiresUnlockedVault(t *testing.T) {
	d := newDevice(t, "1234")
	d.km.Lock()

	_, err := d.svc.Export(context.Background())
	require.ErrorIs(t, err, vault.ErrLocked)
}

func TestArtifactLayout(t *testing.T) {
	ctx := context.Background()
	d := newDevice(t, "1234")
	d.addNote(t, "plaintext-marker")

	artifact, err := d.svc.Export(ctx)
	require.NoError(t, err)
	require.Greater(t, len(artifact), minArtifactSize)
	assert.NotContains(t, string(artifact), "plaintext-marker")
	assert.NotContains(t, string(artifact), "verification_token")
}

func TestFileRoundTrip(t *testing.T) {
	ctx := context.Background()
	d := newDevice(t, "1234")
	d.addNote(t, "on disk")

	path, err := d.svc.ExportToFile(ctx, filepath.Join(t.TempDir(), "nested", "vault"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, Extension))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	d.addNote(t, "discarded")

	_, err = d.svc.ImportFromFile(ctx, path, "1234", ImportOptions{})
	require.ErrorIs(t, err, ErrConfirmationRequired)

	_, err = d.svc.ImportFromFile(ctx, path, "1234", ImportOptions{Confirmed: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"on disk"}, d.titles(t))

	_, err = d.svc.ImportFromFile(ctx, filepath.Join(t.TempDir(), "missing.pvbak"), "1234", ImportOptions{Confirmed: true})
	require.Error(t, err)
}
