package cli

import (
	"context"
	"slices"
	"sync"

	"github.com/dmitrijs2005/pinvault/internal/cryptox"
	"github.com/dmitrijs2005/pinvault/internal/models"
	"github.com/dmitrijs2005/pinvault/internal/repositories/events"
)

// calendarView caches the decrypted event list for the shell. It reloads
// when the events repository signals a change and forgets everything when
// the vault locks.
type calendarView struct {
	repo    *events.SQLiteRepository
	updated <-chan struct{}
	stop    func()

	mu     sync.Mutex
	items  []models.Event
	loaded bool
}

func newCalendarView(repo *events.SQLiteRepository) *calendarView {
	ch, stop := repo.Subscribe()
	return &calendarView{repo: repo, updated: ch, stop: stop}
}

// all returns every event, ordered by start time.
func (c *calendarView) all(ctx context.Context) ([]models.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.updated:
		c.loaded = false
	default:
	}

	if !c.loaded {
		list, err := c.repo.FindAll(ctx)
		if err != nil {
			return nil, err
		}
		c.items = list
		c.loaded = true
	}
	return slices.Clone(c.items), nil
}

// OnUnlock drops the cache; a replaced key may open different rows.
func (c *calendarView) OnUnlock(*cryptox.Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loaded = false
}

func (c *calendarView) OnLock() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = nil
	c.loaded = false
}

func (c *calendarView) close() {
	c.stop()
}
