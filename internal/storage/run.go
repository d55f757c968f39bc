package storage

import (
	"time"

	"github.com/google/uuid"

	"github.com/bdougie/physeval/internal/models"
)

// Run identifies one evaluate invocation across the database mirrors.
type Run struct {
	ID        uuid.UUID
	Model     string
	Frames    int
	Variant   models.Variant
	StartedAt time.Time
}

// NewRun stamps a fresh run id for a configuration.
func NewRun(model string, frames int, variant models.Variant) Run {
	return Run{
		ID:        uuid.New(),
		Model:     model,
		Frames:    frames,
		Variant:   variant,
		StartedAt: time.Now().UTC(),
	}
}
