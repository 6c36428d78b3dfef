package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jhoicas/comandas-api/internal/domain/entity"
	"github.com/jhoicas/comandas-api/internal/domain/repository"
)

var _ repository.SessionRepository = (*SessionRepo)(nil)

// SessionRepo sesiones persistidas en staff_sessions (varios nodos detrás de un balanceador).
// El scope se guarda como (scope_all, scope_venue_id).
type SessionRepo struct {
	q Querier
}

// NewSessionRepository construye el adaptador.
func NewSessionRepository(q Querier) *SessionRepo {
	return &SessionRepo{q: q}
}

func scopeColumns(sc entity.VenueScope) (bool, *string) {
	if sc.IsAll() {
		return true, nil
	}
	id, ok := sc.VenueID()
	if !ok {
		return false, nil
	}
	return false, &id
}

func (r *SessionRepo) Save(ctx context.Context, s *entity.Session) error {
	all, venue := scopeColumns(s.Scope)
	query := `
		INSERT INTO staff_sessions (id, staff_id, staff_name, venue_id, role, scope_all, scope_venue_id, issued_at, last_activity_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.q.Exec(ctx, query,
		s.ID, s.StaffID, s.StaffName, s.VenueID, string(s.Role), all, venue, s.IssuedAt, s.LastActivityAt)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (r *SessionRepo) Get(ctx context.Context, id string) (*entity.Session, error) {
	query := `
		SELECT id, staff_id, staff_name, venue_id, role, scope_all, scope_venue_id, issued_at, last_activity_at
		FROM staff_sessions WHERE id = $1`
	var s entity.Session
	var role string
	var all bool
	var venue *string
	err := r.q.QueryRow(ctx, query, id).Scan(
		&s.ID, &s.StaffID, &s.StaffName, &s.VenueID, &role, &all, &venue, &s.IssuedAt, &s.LastActivityAt)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	s.Role = entity.Role(role)
	switch {
	case all:
		s.Scope = entity.AllVenues()
	case venue != nil:
		s.Scope = entity.SingleVenue(*venue)
	default:
		s.Scope = entity.SingleVenue(s.VenueID)
	}
	return &s, nil
}

// Touch solo avanza last_activity_at (dos terminales pueden reportar fuera de orden).
func (r *SessionRepo) Touch(ctx context.Context, id string, at time.Time) error {
	_, err := r.q.Exec(ctx,
		`UPDATE staff_sessions SET last_activity_at = $2 WHERE id = $1 AND last_activity_at < $2`, id, at)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

func (r *SessionRepo) UpdateScope(ctx context.Context, id string, sc entity.VenueScope) error {
	all, venue := scopeColumns(sc)
	_, err := r.q.Exec(ctx,
		`UPDATE staff_sessions SET scope_all = $2, scope_venue_id = $3 WHERE id = $1`, id, all, venue)
	if err != nil {
		return fmt.Errorf("update session scope: %w", err)
	}
	return nil
}

func (r *SessionRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM staff_sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (r *SessionRepo) DeleteIdleSince(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := r.q.Exec(ctx, `DELETE FROM staff_sessions WHERE last_activity_at <= $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("sweep sessions: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
