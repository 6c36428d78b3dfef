package postgres

import (
	"context"
	"fmt"

	"github.com/jhoicas/comandas-api/internal/domain/entity"
	"github.com/jhoicas/comandas-api/internal/domain/repository"
)

var (
	_ repository.VenueRepository = (*VenueRepo)(nil)
	_ repository.StaffRepository = (*StaffRepo)(nil)
)

// VenueRepo implementación de VenueRepository.
type VenueRepo struct {
	q Querier
}

// NewVenueRepository construye el adaptador. Pasar pool o tx (Querier).
func NewVenueRepository(q Querier) *VenueRepo {
	return &VenueRepo{q: q}
}

// GetByID obtiene un local por ID; nil, nil si no existe.
func (r *VenueRepo) GetByID(ctx context.Context, id string) (*entity.Venue, error) {
	query := `SELECT id, name, type, is_active, created_at, updated_at FROM venues WHERE id = $1`
	var v entity.Venue
	err := r.q.QueryRow(ctx, query, id).Scan(&v.ID, &v.Name, &v.Type, &v.IsActive, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get venue: %w", err)
	}
	return &v, nil
}

// ListActive locales activos ordenados por nombre.
func (r *VenueRepo) ListActive(ctx context.Context) ([]*entity.Venue, error) {
	query := `SELECT id, name, type, is_active, created_at, updated_at FROM venues WHERE is_active ORDER BY name`
	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list venues: %w", err)
	}
	defer rows.Close()
	var list []*entity.Venue
	for rows.Next() {
		var v entity.Venue
		if err := rows.Scan(&v.ID, &v.Name, &v.Type, &v.IsActive, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, &v)
	}
	return list, rows.Err()
}

// StaffRepo implementación de StaffRepository.
type StaffRepo struct {
	q Querier
}

// NewStaffRepository construye el adaptador.
func NewStaffRepository(q Querier) *StaffRepo {
	return &StaffRepo{q: q}
}

const staffColumns = `id, venue_id, name, role, pin_hash, is_active, created_at, updated_at`

func scanStaff(row interface{ Scan(...any) error }) (*entity.Staff, error) {
	var s entity.Staff
	var role string
	if err := row.Scan(&s.ID, &s.VenueID, &s.Name, &role, &s.PinHash, &s.IsActive, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	s.Role = entity.Role(role)
	return &s, nil
}

// GetByID obtiene un miembro del personal; nil, nil si no existe.
func (r *StaffRepo) GetByID(ctx context.Context, id string) (*entity.Staff, error) {
	s, err := scanStaff(r.q.QueryRow(ctx, `SELECT `+staffColumns+` FROM staff WHERE id = $1`, id))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get staff: %w", err)
	}
	return s, nil
}

// ListActiveByVenue personal activo del local (con hash de PIN para el login).
func (r *StaffRepo) ListActiveByVenue(ctx context.Context, venueID string) ([]*entity.Staff, error) {
	rows, err := r.q.Query(ctx, `SELECT `+staffColumns+` FROM staff WHERE venue_id = $1 AND is_active ORDER BY id`, venueID)
	if err != nil {
		return nil, fmt.Errorf("list staff: %w", err)
	}
	defer rows.Close()
	var list []*entity.Staff
	for rows.Next() {
		s, err := scanStaff(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, rows.Err()
}
