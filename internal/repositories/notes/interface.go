package notes

import (
	"context"

	"github.com/dmitrijs2005/pinvault/internal/models"
)

type Repository interface {
	// Create assigns ID and timestamps to n and stores it.
	Create(ctx context.Context, n *models.Note) error
	FindByID(ctx context.Context, id string) (*models.Note, error)
	// FindAll returns every note, most recently updated first.
	FindAll(ctx context.Context) ([]models.Note, error)
	FindFavorites(ctx context.Context) ([]models.Note, error)
	// Search matches query case-insensitively against title, content and tags.
	Search(ctx context.Context, query string) ([]models.Note, error)
	// Update rewrites every field of n and refreshes UpdatedAt.
	Update(ctx context.Context, n *models.Note) error
	SetFavorite(ctx context.Context, id string, favorite bool) error
	Delete(ctx context.Context, id string) error

	ListRaw(ctx context.Context) ([]models.NoteRow, error)
	InsertRaw(ctx context.Context, rows []models.NoteRow) error
	DeleteAll(ctx context.Context) error
}
