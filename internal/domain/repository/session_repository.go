package repository

import (
	"context"
	"time"

	"github.com/jhoicas/comandas-api/internal/domain/entity"
)

// SessionRepository almacén de sesiones vivas del personal.
type SessionRepository interface {
	Save(ctx context.Context, s *entity.Session) error
	// Get devuelve nil, nil si la sesión no existe (revocada o purgada).
	Get(ctx context.Context, id string) (*entity.Session, error)
	Touch(ctx context.Context, id string, at time.Time) error
	UpdateScope(ctx context.Context, id string, scope entity.VenueScope) error
	// Delete es idempotente.
	Delete(ctx context.Context, id string) error
	// DeleteIdleSince borra las sesiones cuya última actividad es anterior o igual a cutoff.
	DeleteIdleSince(ctx context.Context, cutoff time.Time) (int, error)
}
