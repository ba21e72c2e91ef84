package settings

import (
	"context"
	"encoding/json"
)

type Repository interface {
	// Get decodes the value stored under key into dest.
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any) error
	Delete(ctx context.Context, key string) error
	All(ctx context.Context) (map[string]json.RawMessage, error)
}
