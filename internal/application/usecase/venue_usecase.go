package usecase

import (
	"context"

	"github.com/jhoicas/comandas-api/internal/application/dto"
	"github.com/jhoicas/comandas-api/internal/domain/access"
	"github.com/jhoicas/comandas-api/internal/domain/entity"
	"github.com/jhoicas/comandas-api/internal/domain/repository"
	"github.com/jhoicas/comandas-api/internal/domain/scope"
)

// SessionAuthorizer re-valida la sesión y comprueba la capacidad (auth.AuthUseCase).
type SessionAuthorizer interface {
	Authorize(ctx context.Context, sess *entity.Session, capability access.Capability) (*entity.Session, error)
}

// VenueUseCase consultas de locales.
type VenueUseCase struct {
	repo  repository.VenueRepository
	authz SessionAuthorizer
}

// NewVenueUseCase construye el caso de uso con el puerto de persistencia.
func NewVenueUseCase(repo repository.VenueRepository, authz SessionAuthorizer) *VenueUseCase {
	return &VenueUseCase{repo: repo, authz: authz}
}

// ListActive locales activos, para el selector de la pantalla de login (público).
func (uc *VenueUseCase) ListActive(ctx context.Context) (*dto.VenueListResponse, error) {
	list, err := uc.repo.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]dto.VenueResponse, 0, len(list))
	for _, v := range list {
		items = append(items, *entityToVenueResponse(v))
	}
	return &dto.VenueListResponse{Items: items, Scope: entity.AllVenues().String()}, nil
}

// ListVisible locales activos dentro del scope efectivo de la sesión.
func (uc *VenueUseCase) ListVisible(ctx context.Context, sess *entity.Session) (*dto.VenueListResponse, error) {
	cur, err := uc.authz.Authorize(ctx, sess, access.CapOrdersView)
	if err != nil {
		return nil, err
	}
	sc := scope.For(*cur)
	list, err := uc.repo.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]dto.VenueResponse, 0, len(list))
	for _, v := range list {
		if sc.Contains(v.ID) {
			items = append(items, *entityToVenueResponse(v))
		}
	}
	return &dto.VenueListResponse{Items: items, Scope: sc.String()}, nil
}

func entityToVenueResponse(v *entity.Venue) *dto.VenueResponse {
	if v == nil {
		return nil
	}
	return &dto.VenueResponse{
		ID:       v.ID,
		Name:     v.Name,
		Type:     v.Type,
		IsActive: v.IsActive,
	}
}
