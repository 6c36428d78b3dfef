package repository

import (
	"context"

	"github.com/jhoicas/comandas-api/internal/domain/entity"
)

// VenueRepository define el puerto de persistencia para Venue (DIP).
// La implementación vive en infrastructure.
type VenueRepository interface {
	// GetByID devuelve nil, nil si el local no existe.
	GetByID(ctx context.Context, id string) (*entity.Venue, error)
	ListActive(ctx context.Context) ([]*entity.Venue, error)
}
