package events

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/pinvault/internal/common"
	"github.com/dmitrijs2005/pinvault/internal/cryptox"
	"github.com/dmitrijs2005/pinvault/internal/models"
	"github.com/dmitrijs2005/pinvault/internal/repositories/fieldcrypt"
	"github.com/dmitrijs2005/pinvault/internal/storage/blockstore"
	"github.com/dmitrijs2005/pinvault/internal/storage/engine"
	"github.com/dmitrijs2005/pinvault/internal/vault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T, b byte) *cryptox.Key {
	t.Helper()
	k, err := cryptox.NewKey(bytes.Repeat([]byte{b}, cryptox.KeySize))
	require.NoError(t, err)
	return k
}

func setup(t *testing.T) (*SQLiteRepository, *vault.KeyHolder) {
	t.Helper()
	ctx := context.Background()
	eng, err := engine.Open(ctx, engine.Options{Store: blockstore.NewMemoryStore()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close(ctx) })

	holder := vault.NewKeyHolder()
	holder.OnUnlock(testKey(t, 1))
	return NewSQLiteRepository(eng, holder), holder
}

func strPtr(s string) *string { return &s }

func TestCreateThenFindByID(t *testing.T) {
	repo, _ := setup(t)
	ctx := context.Background()

	start := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	end := start.Add(90 * time.Minute)
	e := &models.Event{
		Title:        "Dentist",
		Description:  "bring x-rays",
		StartTime:    start,
		EndTime:      &end,
		CalendarType: models.CalendarHijri,
		RRule:        strPtr("FREQ=YEARLY"),
	}
	require.NoError(t, repo.Create(ctx, e))
	require.NotEmpty(t, e.ID)

	got, err := repo.FindByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, *e, *got)
}

func TestCreate_DefaultsAndValidation(t *testing.T) {
	repo, _ := setup(t)
	ctx := context.Background()

	e := &models.Event{Title: "All day", StartTime: time.UnixMilli(1000), IsAllDay: true}
	require.NoError(t, repo.Create(ctx, e))

	got, err := repo.FindByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CalendarGregorian, got.CalendarType)
	assert.Nil(t, got.EndTime)
	assert.Nil(t, got.RRule)
	assert.True(t, got.IsAllDay)

	require.ErrorIs(t, repo.Create(ctx, &models.Event{Title: "no start"}), common.ErrorValidation)

	untitled := &models.Event{StartTime: time.UnixMilli(2000)}
	require.NoError(t, repo.Create(ctx, untitled))
	got, err = repo.FindByID(ctx, untitled.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Title)
}

func TestFindByDateRange(t *testing.T) {
	repo, _ := setup(t)
	ctx := context.Background()

	for _, ms := range []int64{30, 10, 20} {
		require.NoError(t, repo.Create(ctx, &models.Event{Title: "e", StartTime: time.UnixMilli(ms)}))
	}

	got, err := repo.FindByDateRange(ctx, time.UnixMilli(15), time.UnixMilli(25))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(20), got[0].StartTime.UnixMilli())

	got, err = repo.FindByDateRange(ctx, time.UnixMilli(10), time.UnixMilli(30))
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []int64{10, 20, 30}, []int64{
		got[0].StartTime.UnixMilli(), got[1].StartTime.UnixMilli(), got[2].StartTime.UnixMilli(),
	})

	got, err = repo.FindByDateRange(ctx, time.UnixMilli(31), time.UnixMilli(40))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFindAll_AscendingStart(t *testing.T) {
	repo, _ := setup(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &models.Event{Title: "later", StartTime: time.UnixMilli(2000)}))
	require.NoError(t, repo.Create(ctx, &models.Event{Title: "sooner", StartTime: time.UnixMilli(1000)}))

	all, err := repo.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "sooner", all[0].Title)
}

func TestUpdateAndDelete(t *testing.T) {
	repo, _ := setup(t)
	ctx := context.Background()

	e := &models.Event{Title: "Call", StartTime: time.UnixMilli(5000), RRule: strPtr("FREQ=WEEKLY")}
	require.NoError(t, repo.Create(ctx, e))

	e.Title = "Call mum"
	e.RRule = nil
	require.NoError(t, repo.Update(ctx, e))

	got, err := repo.FindByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "Call mum", got.Title)
	assert.Nil(t, got.RRule)

	require.NoError(t, repo.Delete(ctx, e.ID))
	_, err = repo.FindByID(ctx, e.ID)
	require.ErrorIs(t, err, common.ErrorNotFound)
	require.ErrorIs(t, repo.Delete(ctx, e.ID), common.ErrorNotFound)
	require.ErrorIs(t, repo.Update(ctx, e), common.ErrorNotFound)
}

func TestSubscribe_SignalsAndCoalesces(t *testing.T) {
	repo, _ := setup(t)
	ctx := context.Background()

	ch, unsubscribe := repo.Subscribe()

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Create(ctx, &models.Event{Title: "e", StartTime: time.UnixMilli(int64(i + 1))}))
	}

	select {
	case <-ch:
	default:
		t.Fatal("expected a pending signal")
	}
	select {
	case <-ch:
		t.Fatal("signals should coalesce")
	default:
	}

	// Raw bulk writes stay silent until the caller notifies.
	tx := repo.WithDB(repo.db)
	raw, err := tx.ListRaw(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.DeleteAll(ctx))
	require.NoError(t, tx.InsertRaw(ctx, raw))
	select {
	case <-ch:
		t.Fatal("raw writes should not signal")
	default:
	}

	// A copy bound to another handle shares subscribers.
	tx.NotifyUpdated()
	select {
	case <-ch:
	default:
		t.Fatal("expected a signal from the bound copy")
	}

	unsubscribe()
	unsubscribe()
	_, open := <-ch
	assert.False(t, open)
}

func TestLockedRepository(t *testing.T) {
	repo, holder := setup(t)
	ctx := context.Background()
	holder.OnLock()

	require.ErrorIs(t, repo.Create(ctx, &models.Event{Title: "x", StartTime: time.UnixMilli(1)}), vault.ErrLocked)
	_, err := repo.FindByDateRange(ctx, time.UnixMilli(0), time.UnixMilli(10))
	require.ErrorIs(t, err, vault.ErrLocked)
}

func TestUndecryptableRecord(t *testing.T) {
	repo, _ := setup(t)
	ctx := context.Background()

	title, err := fieldcrypt.Seal("elsewhere", testKey(t, 9))
	require.NoError(t, err)
	require.NoError(t, repo.InsertRaw(ctx, []models.EventRow{{
		ID: "foreign", TitleEncrypted: title.String, StartTime: 1, CalendarType: "gregorian",
	}}))

	_, err = repo.FindAll(ctx)
	require.ErrorIs(t, err, fieldcrypt.ErrRecordUndecryptable)
	require.ErrorIs(t, err, cryptox.ErrDecrypt)
}

func TestRawRoundTrip(t *testing.T) {
	repo, _ := setup(t)
	ctx := context.Background()

	end := time.UnixMilli(9000)
	require.NoError(t, repo.Create(ctx, &models.Event{Title: "a", StartTime: time.UnixMilli(1000), EndTime: &end}))
	require.NoError(t, repo.Create(ctx, &models.Event{Title: "b", StartTime: time.UnixMilli(2000), RRule: strPtr("FREQ=DAILY")}))

	before, err := repo.FindAll(ctx)
	require.NoError(t, err)
	raw, err := repo.ListRaw(ctx)
	require.NoError(t, err)
	require.Len(t, raw, 2)

	require.NoError(t, repo.DeleteAll(ctx))
	require.NoError(t, repo.InsertRaw(ctx, raw))

	after, err := repo.FindAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}
