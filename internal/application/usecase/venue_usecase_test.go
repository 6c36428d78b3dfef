package usecase_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/comandas-api/internal/application/usecase"
	"github.com/jhoicas/comandas-api/internal/domain"
	"github.com/jhoicas/comandas-api/internal/domain/access"
	"github.com/jhoicas/comandas-api/internal/domain/entity"
	"github.com/jhoicas/comandas-api/internal/infrastructure/memory"
)

// passthrough autoriza devolviendo la misma sesión.
type passthrough struct{ err error }

func (p passthrough) Authorize(_ context.Context, s *entity.Session, _ access.Capability) (*entity.Session, error) {
	if p.err != nil {
		return nil, p.err
	}
	return s, nil
}

func venues() *memory.VenueStore {
	return memory.NewVenueStore(
		entity.Venue{ID: "V1", Name: "Centro", IsActive: true},
		entity.Venue{ID: "V2", Name: "Norte", IsActive: true},
		entity.Venue{ID: "V3", Name: "Cerrado", IsActive: false},
	)
}

func TestListActive(t *testing.T) {
	uc := usecase.NewVenueUseCase(venues(), passthrough{})
	out, err := uc.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, out.Items, 2)
	assert.Equal(t, "Centro", out.Items[0].Name)
}

func TestListVisible_PorScope(t *testing.T) {
	uc := usecase.NewVenueUseCase(venues(), passthrough{})
	ctx := context.Background()

	waiter := &entity.Session{VenueID: "V2", Role: entity.RoleWaiter, Scope: entity.AllVenues()}
	out, err := uc.ListVisible(ctx, waiter)
	require.NoError(t, err)
	require.Len(t, out.Items, 1)
	assert.Equal(t, "V2", out.Items[0].ID)
	assert.Equal(t, "venue:V2", out.Scope)

	owner := &entity.Session{VenueID: "V1", Role: entity.RoleOwner, Scope: entity.AllVenues()}
	out, err = uc.ListVisible(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, out.Items, 2, "los inactivos no se listan")
	assert.Equal(t, "all", out.Scope)
}

func TestListVisible_SesionExpirada(t *testing.T) {
	uc := usecase.NewVenueUseCase(venues(), passthrough{err: domain.ErrSessionExpired})
	_, err := uc.ListVisible(context.Background(), &entity.Session{})
	assert.ErrorIs(t, err, domain.ErrSessionExpired)
}
