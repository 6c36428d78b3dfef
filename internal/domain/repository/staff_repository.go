package repository

import (
	"context"

	"github.com/jhoicas/comandas-api/internal/domain/entity"
)

// StaffRepository define el puerto de persistencia para el personal de cada local.
type StaffRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Staff, error)
	// ListActiveByVenue personal activo del local, usado para comparar el PIN.
	ListActiveByVenue(ctx context.Context, venueID string) ([]*entity.Staff, error)
}
