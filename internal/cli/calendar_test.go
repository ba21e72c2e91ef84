package cli

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/pinvault/internal/models"
	"github.com/dmitrijs2005/pinvault/internal/vault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalendarViewReloadsOnSignal(t *testing.T) {
	ctx := context.Background()
	a, _ := openApp(t, t.TempDir(), "")
	t.Cleanup(func() { _ = a.Close(ctx) })
	require.NoError(t, a.keys.Setup(ctx, "1234"))

	require.NoError(t, a.events.Create(ctx, &models.Event{Title: "Dentist", StartTime: time.UnixMilli(1000)}))
	list, err := a.calendar.all(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	// A raw write does not signal, so the cached list is still served.
	rows, err := a.events.ListRaw(ctx)
	require.NoError(t, err)
	rows[0].ID = "copy-of-" + rows[0].ID
	require.NoError(t, a.events.WithDB(a.engine).InsertRaw(ctx, rows))

	list, err = a.calendar.all(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	a.events.NotifyUpdated()
	list, err = a.calendar.all(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestCalendarViewForgetsOnLock(t *testing.T) {
	ctx := context.Background()
	a, _ := openApp(t, t.TempDir(), "")
	t.Cleanup(func() { _ = a.Close(ctx) })
	require.NoError(t, a.keys.Setup(ctx, "1234"))

	require.NoError(t, a.events.Create(ctx, &models.Event{Title: "Dentist", StartTime: time.UnixMilli(1000)}))
	_, err := a.calendar.all(ctx)
	require.NoError(t, err)

	a.keys.Lock()
	_, err = a.calendar.all(ctx)
	require.ErrorIs(t, err, vault.ErrLocked)

	require.NoError(t, a.keys.Unlock(ctx, "1234"))
	list, err := a.calendar.all(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestResetRefreshesEventListing(t *testing.T) {
	plainPIN(t)
	dir := t.TempDir()

	out := session(t, dir,
		"setup", "1234", "1234",
		"addevent", "Dentist", "2026-03-10 09:30", "", "", "", "",
		"events",
		"reset", "y",
		"setup", "5678", "5678",
		"events",
		"exit",
	)
	erased := strings.LastIndex(out, "Vault erased.")
	require.Positive(t, erased)
	assert.Contains(t, out[:erased], "Dentist")
	assert.NotContains(t, out[erased:], "Dentist")
	assert.Contains(t, out[erased:], "No events.")
}
