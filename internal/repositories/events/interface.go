package events

import (
	"context"
	"time"

	"github.com/dmitrijs2005/pinvault/internal/models"
)

type Repository interface {
	// Create validates e, assigns its ID and stores it.
	Create(ctx context.Context, e *models.Event) error
	FindByID(ctx context.Context, id string) (*models.Event, error)
	// FindAll returns every event by ascending start time.
	FindAll(ctx context.Context) ([]models.Event, error)
	// FindByDateRange returns events with from <= start <= to, ascending.
	FindByDateRange(ctx context.Context, from, to time.Time) ([]models.Event, error)
	Update(ctx context.Context, e *models.Event) error
	Delete(ctx context.Context, id string) error

	// Subscribe returns a channel that receives after each Create, Update,
	// Delete and NotifyUpdated. Signals are coalesced: a slow reader sees at
	// most one pending value.
	Subscribe() (<-chan struct{}, func())
	NotifyUpdated()

	// Raw projections used inside transactions. They never signal.
	ListRaw(ctx context.Context) ([]models.EventRow, error)
	InsertRaw(ctx context.Context, rows []models.EventRow) error
	DeleteAll(ctx context.Context) error
}
