package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jhoicas/comandas-api/internal/domain/entity"
	"github.com/jhoicas/comandas-api/internal/domain/repository"
)

var _ repository.AnomalyRepository = (*AnomalyRepo)(nil)

// AnomalyRepo registro de anomalías en order_anomalies.
type AnomalyRepo struct {
	q Querier
}

// NewAnomalyRepository construye el adaptador.
func NewAnomalyRepository(q Querier) *AnomalyRepo {
	return &AnomalyRepo{q: q}
}

func (r *AnomalyRepo) Record(ctx context.Context, a *entity.OrderAnomaly) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	query := `
		INSERT INTO order_anomalies (id, order_id, venue_id, kind, from_status, to_status, payment_status, staff_id, detected_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.q.Exec(ctx, query,
		a.ID, a.OrderID, a.VenueID, a.Kind, string(a.FromStatus), string(a.ToStatus),
		string(a.PaymentStatus), nullIfEmpty(a.StaffID), a.DetectedAt)
	if err != nil {
		return fmt.Errorf("insert anomaly: %w", err)
	}
	return nil
}

func (r *AnomalyRepo) ListOpen(ctx context.Context, sc entity.VenueScope, limit, offset int) ([]*entity.OrderAnomaly, error) {
	where, args := scopeClause("a.venue_id", sc, 1)
	args = append(args, limit, offset)
	query := fmt.Sprintf(`
		SELECT a.id, a.order_id, a.venue_id, a.kind, a.from_status, a.to_status, a.payment_status,
		       a.staff_id, a.detected_at
		FROM order_anomalies a
		WHERE a.resolved_at IS NULL AND %s
		ORDER BY a.detected_at DESC
		LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args))
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list anomalies: %w", err)
	}
	defer rows.Close()
	var list []*entity.OrderAnomaly
	for rows.Next() {
		var a entity.OrderAnomaly
		var from, to, pay string
		var staff *string
		if err := rows.Scan(&a.ID, &a.OrderID, &a.VenueID, &a.Kind, &from, &to, &pay, &staff, &a.DetectedAt); err != nil {
			return nil, err
		}
		a.FromStatus = entity.OrderStatus(from)
		a.ToStatus = entity.OrderStatus(to)
		a.PaymentStatus = entity.PaymentStatus(pay)
		a.StaffID = derefStr(staff)
		list = append(list, &a)
	}
	return list, rows.Err()
}
