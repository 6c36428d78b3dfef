// Package scope resuelve el conjunto de locales visibles para una sesión.
//
// Regla: solo owner y manager pueden tener AllVenues; el resto de roles queda fijado
// a su local de autenticación aunque se pida otro valor.
package scope

import (
	"github.com/jhoicas/comandas-api/internal/domain"
	"github.com/jhoicas/comandas-api/internal/domain/entity"
)

// For devuelve el scope efectivo de la sesión.
func For(s entity.Session) entity.VenueScope {
	if !s.Role.Privileged() {
		return entity.SingleVenue(s.VenueID)
	}
	if s.Scope.IsZero() {
		return entity.SingleVenue(s.VenueID)
	}
	return s.Scope
}

// Resolve aplica una selección de scope pedida por la UI.
//
//   - Roles operativos: siempre SingleVenue(local de la sesión).
//   - Owner/manager con AllVenues y un único local activo: se resuelve a ese local.
//   - Owner/manager con SingleVenue(id): id debe estar entre los locales activos.
func Resolve(s entity.Session, requested entity.VenueScope, activeVenueIDs []string) (entity.VenueScope, error) {
	if !s.Role.Privileged() {
		return entity.SingleVenue(s.VenueID), nil
	}
	if requested.IsZero() {
		return entity.SingleVenue(s.VenueID), nil
	}
	if requested.IsAll() {
		if len(activeVenueIDs) == 1 {
			return entity.SingleVenue(activeVenueIDs[0]), nil
		}
		return entity.AllVenues(), nil
	}
	id, _ := requested.VenueID()
	for _, v := range activeVenueIDs {
		if v == id {
			return requested, nil
		}
	}
	return entity.VenueScope{}, domain.ErrNotFound
}

// Filter devuelve los IDs de ids que caen dentro del scope.
func Filter(sc entity.VenueScope, ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if sc.Contains(id) {
			out = append(out, id)
		}
	}
	return out
}
