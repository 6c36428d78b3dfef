package repository

import (
	"context"

	"github.com/jhoicas/comandas-api/internal/domain/entity"
)

// AnomalyRepository registro de transiciones anómalas para conciliación manual.
type AnomalyRepository interface {
	Record(ctx context.Context, a *entity.OrderAnomaly) error
	ListOpen(ctx context.Context, scope entity.VenueScope, limit, offset int) ([]*entity.OrderAnomaly, error)
}
