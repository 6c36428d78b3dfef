package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/comandas-api/internal/domain"
	"github.com/jhoicas/comandas-api/internal/domain/entity"
	"github.com/jhoicas/comandas-api/internal/domain/repository"
)

var _ repository.OrderRepository = (*OrderRepo)(nil)

// OrderRepo almacén autoritativo de pedidos. Las actualizaciones son compare-and-set en
// el WHERE; las lecturas reintentan fallos transitorios y las escrituras solo los que
// garantizan que nada se aplicó.
type OrderRepo struct {
	q     Querier
	tx    *TxRunner
	retry Retry
}

// NewOrderRepository construye el adaptador sobre el pool (las escrituras multi-tabla usan tx).
func NewOrderRepository(q Querier, tx *TxRunner, retry Retry) *OrderRepo {
	return &OrderRepo{q: q, tx: tx, retry: retry}
}

const orderColumns = `o.id, o.venue_id, o.table_id, o.staff_id, o.status, o.payment_status,
	o.payment_method, o.total, o.notes, o.created_at, o.updated_at, o.paid_at`

// Insert persiste cabecera y líneas en una sola transacción.
func (r *OrderRepo) Insert(ctx context.Context, o *entity.Order) error {
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	return r.retry.DoWrite(ctx, "insert order", func(ctx context.Context) error {
		return r.tx.Run(ctx, func(q Querier) error {
			_, err := q.Exec(ctx, `
				INSERT INTO orders (id, venue_id, table_id, staff_id, status, payment_status, payment_method, total, notes, created_at, updated_at, paid_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
				o.ID, o.VenueID, o.TableID, nullIfEmpty(o.StaffID), string(o.Status), string(o.PaymentStatus),
				nullIfEmpty(o.PaymentMethod), o.Total, nullIfEmpty(o.Notes), o.CreatedAt, o.UpdatedAt, o.PaidAt)
			if err != nil {
				if isUniqueViolation(err) {
					return fmt.Errorf("%w: pedido %s ya existe", domain.ErrConflict, o.ID)
				}
				return fmt.Errorf("insert order: %w", err)
			}
			for i := range o.Items {
				it := &o.Items[i]
				if it.ID == "" {
					it.ID = uuid.New().String()
				}
				it.OrderID = o.ID
				_, err := q.Exec(ctx, `
					INSERT INTO order_items (id, order_id, name, quantity, unit_price, status, notes, created_at, updated_at)
					VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
					it.ID, o.ID, it.Name, it.Quantity, it.UnitPrice, string(it.Status), nullIfEmpty(it.Notes),
					it.CreatedAt, it.UpdatedAt)
				if err != nil {
					return fmt.Errorf("insert order item: %w", err)
				}
			}
			return nil
		})
	})
}

// Get devuelve el pedido con sus líneas; nil, nil si no existe.
func (r *OrderRepo) Get(ctx context.Context, id string) (*entity.Order, error) {
	var out *entity.Order
	err := r.retry.Do(ctx, "get order", func(ctx context.Context) error {
		o, err := getOrder(ctx, r.q, id)
		out = o
		return err
	})
	return out, err
}

func getOrder(ctx context.Context, q Querier, id string) (*entity.Order, error) {
	o, err := scanOrder(q.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders o WHERE o.id = $1`, id))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	if err := loadItems(ctx, q, map[string]*entity.Order{o.ID: o}); err != nil {
		return nil, err
	}
	return o, nil
}

// Query pedidos del scope con filtros, más recientes primero.
func (r *OrderRepo) Query(ctx context.Context, sc entity.VenueScope, f entity.OrderFilter) ([]*entity.Order, error) {
	where, args := scopeClause("o.venue_id", sc, 1)
	conds := []string{where}
	if len(f.Statuses) > 0 {
		statuses := make([]string, 0, len(f.Statuses))
		for _, s := range f.Statuses {
			statuses = append(statuses, string(s))
		}
		args = append(args, statuses)
		conds = append(conds, fmt.Sprintf("o.status = ANY($%d)", len(args)))
	}
	if f.PaymentStatus != "" {
		args = append(args, string(f.PaymentStatus))
		conds = append(conds, fmt.Sprintf("o.payment_status = $%d", len(args)))
	}
	if f.TableID != "" {
		args = append(args, f.TableID)
		conds = append(conds, fmt.Sprintf("o.table_id = $%d", len(args)))
	}
	if f.Since != nil {
		args = append(args, *f.Since)
		conds = append(conds, fmt.Sprintf("o.created_at >= $%d", len(args)))
	}
	query := `SELECT ` + orderColumns + ` FROM orders o WHERE ` + strings.Join(conds, " AND ") +
		` ORDER BY o.created_at DESC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	var list []*entity.Order
	err := r.retry.Do(ctx, "query orders", func(ctx context.Context) error {
		list = nil
		rows, err := r.q.Query(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("query orders: %w", err)
		}
		defer rows.Close()
		byID := make(map[string]*entity.Order)
		for rows.Next() {
			o, err := scanOrder(rows)
			if err != nil {
				return err
			}
			list = append(list, o)
			byID[o.ID] = o
		}
		if err := rows.Err(); err != nil {
			return err
		}
		return loadItems(ctx, r.q, byID)
	})
	return list, err
}

// UpdateStatus CAS sobre orders.status.
func (r *OrderRepo) UpdateStatus(ctx context.Context, orderID string, expected, next entity.OrderStatus, at time.Time) (*entity.Order, error) {
	var out *entity.Order
	err := r.retry.DoWrite(ctx, "update order status", func(ctx context.Context) error {
		return r.tx.Run(ctx, func(q Querier) error {
			tag, err := q.Exec(ctx,
				`UPDATE orders SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2`,
				orderID, string(expected), string(next), at)
			if err != nil {
				return fmt.Errorf("update order status: %w", err)
			}
			if tag.RowsAffected() == 0 {
				return missingOrConflict(ctx, q, orderID)
			}
			out, err = getOrder(ctx, q, orderID)
			return err
		})
	})
	return out, err
}

// UpdateItemStatus CAS sobre la línea, con el pedido bloqueado y en orderStatus.
// Recalcula el total excluyendo líneas canceladas; no cancela líneas de un pedido cobrado.
func (r *OrderRepo) UpdateItemStatus(ctx context.Context, orderID, itemID string, orderStatus entity.OrderStatus, expected, next entity.ItemStatus, at time.Time) (*entity.Order, error) {
	var out *entity.Order
	err := r.retry.DoWrite(ctx, "update item status", func(ctx context.Context) error {
		return r.tx.Run(ctx, func(q Querier) error {
			var current, payment string
			err := q.QueryRow(ctx, `SELECT status, payment_status FROM orders WHERE id = $1 FOR UPDATE`, orderID).
				Scan(&current, &payment)
			if err != nil {
				if isNoRows(err) {
					return domain.ErrNotFound
				}
				return fmt.Errorf("lock order: %w", err)
			}
			if current != string(orderStatus) {
				return domain.ErrConflict
			}
			if next == entity.ItemCancelled && payment == string(entity.PaymentPaid) {
				return domain.ErrConflict
			}
			tag, err := q.Exec(ctx,
				`UPDATE order_items SET status = $4, updated_at = $5 WHERE id = $1 AND order_id = $2 AND status = $3`,
				itemID, orderID, string(expected), string(next), at)
			if err != nil {
				return fmt.Errorf("update item status: %w", err)
			}
			if tag.RowsAffected() == 0 {
				return domain.ErrConflict
			}
			_, err = q.Exec(ctx, `
				UPDATE orders SET updated_at = $2, total = (
					SELECT COALESCE(SUM(quantity * unit_price), 0) FROM order_items
					WHERE order_id = $1 AND status <> 'cancelled')
				WHERE id = $1`, orderID, at)
			if err != nil {
				return fmt.Errorf("recalculate total: %w", err)
			}
			out, err = getOrder(ctx, q, orderID)
			return err
		})
	})
	return out, err
}

// UpdatePayment CAS sobre payment_status; sella paid_at al pasar a paid.
func (r *OrderRepo) UpdatePayment(ctx context.Context, orderID string, expected, next entity.PaymentStatus, method string, at time.Time) (*entity.Order, error) {
	var out *entity.Order
	err := r.retry.DoWrite(ctx, "update payment", func(ctx context.Context) error {
		return r.tx.Run(ctx, func(q Querier) error {
			tag, err := q.Exec(ctx, `
				UPDATE orders
				SET payment_status = $3,
				    payment_method = COALESCE($4, payment_method),
				    paid_at        = CASE WHEN $3 = 'paid' THEN $5 ELSE paid_at END,
				    updated_at     = $5
				WHERE id = $1 AND payment_status = $2 AND status <> 'cancelled'`,
				orderID, string(expected), string(next), nullIfEmpty(method), at)
			if err != nil {
				return fmt.Errorf("update payment: %w", err)
			}
			if tag.RowsAffected() == 0 {
				return missingOrConflict(ctx, q, orderID)
			}
			out, err = getOrder(ctx, q, orderID)
			return err
		})
	})
	return out, err
}

func missingOrConflict(ctx context.Context, q Querier, orderID string) error {
	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM orders WHERE id = $1)`, orderID).Scan(&exists); err != nil {
		return fmt.Errorf("check order: %w", err)
	}
	if !exists {
		return domain.ErrNotFound
	}
	return domain.ErrConflict
}

func scanOrder(row interface{ Scan(...any) error }) (*entity.Order, error) {
	var o entity.Order
	var status, payStatus string
	var staffID, method, notes *string
	err := row.Scan(&o.ID, &o.VenueID, &o.TableID, &staffID, &status, &payStatus,
		&method, &o.Total, &notes, &o.CreatedAt, &o.UpdatedAt, &o.PaidAt)
	if err != nil {
		return nil, err
	}
	o.Status = entity.OrderStatus(status)
	o.PaymentStatus = entity.PaymentStatus(payStatus)
	o.StaffID = derefStr(staffID)
	o.PaymentMethod = derefStr(method)
	o.Notes = derefStr(notes)
	return &o, nil
}

func loadItems(ctx context.Context, q Querier, byID map[string]*entity.Order) error {
	if len(byID) == 0 {
		return nil
	}
	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	rows, err := q.Query(ctx, `
		SELECT id, order_id, name, quantity, unit_price, status, notes, created_at, updated_at
		FROM order_items WHERE order_id = ANY($1) ORDER BY created_at, id`, ids)
	if err != nil {
		return fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var it entity.OrderItem
		var status string
		var notes *string
		if err := rows.Scan(&it.ID, &it.OrderID, &it.Name, &it.Quantity, &it.UnitPrice, &status, &notes, &it.CreatedAt, &it.UpdatedAt); err != nil {
			return err
		}
		it.Status = entity.ItemStatus(status)
		it.Notes = derefStr(notes)
		if o, ok := byID[it.OrderID]; ok {
			o.Items = append(o.Items, it)
		}
	}
	return rows.Err()
}

// scopeClause condición SQL para col dentro del scope. AllVenues se restringe a locales activos.
func scopeClause(col string, sc entity.VenueScope, argN int) (string, []any) {
	if sc.IsAll() {
		return col + " IN (SELECT id FROM venues WHERE is_active)", nil
	}
	id, ok := sc.VenueID()
	if !ok {
		return "FALSE", nil
	}
	return fmt.Sprintf("%s = $%d", col, argN), []any{id}
}
