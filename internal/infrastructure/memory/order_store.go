// Package memory contiene adaptadores en memoria de los puertos de persistencia.
// Se usan en tests y en despliegues de un solo nodo (sesiones).
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jhoicas/comandas-api/internal/domain"
	"github.com/jhoicas/comandas-api/internal/domain/entity"
	"github.com/jhoicas/comandas-api/internal/domain/repository"
)

var _ repository.OrderRepository = (*OrderStore)(nil)

// OrderStore almacén de pedidos en memoria con compare-and-set por fila.
// activeVenue decide qué locales entran en AllVenues; nil = todos.
type OrderStore struct {
	mu          sync.Mutex
	orders      map[string]*entity.Order
	activeVenue func(venueID string) bool
}

// NewOrderStore construye el almacén. activeVenue puede ser nil.
func NewOrderStore(activeVenue func(venueID string) bool) *OrderStore {
	return &OrderStore{orders: make(map[string]*entity.Order), activeVenue: activeVenue}
}

// Insert persiste un pedido nuevo.
func (s *OrderStore) Insert(_ context.Context, o *entity.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[o.ID]; ok {
		return domain.ErrConflict
	}
	c := o.Clone()
	s.orders[o.ID] = &c
	return nil
}

// Get devuelve una copia del pedido o nil, nil.
func (s *OrderStore) Get(_ context.Context, id string) (*entity.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, nil
	}
	c := o.Clone()
	return &c, nil
}

// Query filtra por scope y criterios, ordenado por creación descendente.
func (s *OrderStore) Query(_ context.Context, sc entity.VenueScope, f entity.OrderFilter) ([]*entity.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*entity.Order
	for _, o := range s.orders {
		if !s.inScope(sc, o.VenueID) || !matches(o, f) {
			continue
		}
		c := o.Clone()
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return nil, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// UpdateStatus compare-and-set del estado del pedido.
func (s *OrderStore) UpdateStatus(_ context.Context, orderID string, expected, next entity.OrderStatus, at time.Time) (*entity.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if o.Status != expected {
		return nil, domain.ErrConflict
	}
	o.Status = next
	o.UpdatedAt = at
	c := o.Clone()
	return &c, nil
}

// UpdateItemStatus compare-and-set del estado de una línea, condicionado al estado del pedido.
// Una línea no se cancela si el pedido ya se cobró.
func (s *OrderStore) UpdateItemStatus(_ context.Context, orderID, itemID string, orderStatus entity.OrderStatus, expected, next entity.ItemStatus, at time.Time) (*entity.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	item, ok := o.Item(itemID)
	if !ok {
		return nil, domain.ErrNotFound
	}
	if o.Status != orderStatus || item.Status != expected {
		return nil, domain.ErrConflict
	}
	if next == entity.ItemCancelled && o.PaymentStatus == entity.PaymentPaid {
		return nil, domain.ErrConflict
	}
	item.Status = next
	item.UpdatedAt = at
	o.UpdatedAt = at
	o.RecalculateTotal()
	c := o.Clone()
	return &c, nil
}

// UpdatePayment compare-and-set del estado de pago; paid sella PaidAt.
func (s *OrderStore) UpdatePayment(_ context.Context, orderID string, expected, next entity.PaymentStatus, method string, at time.Time) (*entity.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if o.PaymentStatus != expected || o.Status == entity.OrderCancelled {
		return nil, domain.ErrConflict
	}
	o.PaymentStatus = next
	if method != "" {
		o.PaymentMethod = method
	}
	o.UpdatedAt = at
	if next == entity.PaymentPaid {
		paidAt := at
		o.PaidAt = &paidAt
	}
	c := o.Clone()
	return &c, nil
}

func (s *OrderStore) inScope(sc entity.VenueScope, venueID string) bool {
	if !sc.Contains(venueID) {
		return false
	}
	if sc.IsAll() && s.activeVenue != nil {
		return s.activeVenue(venueID)
	}
	return true
}

func matches(o *entity.Order, f entity.OrderFilter) bool {
	if len(f.Statuses) > 0 {
		found := false
		for _, st := range f.Statuses {
			if o.Status == st {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.PaymentStatus != "" && o.PaymentStatus != f.PaymentStatus {
		return false
	}
	if f.TableID != "" && o.TableID != f.TableID {
		return false
	}
	if f.Since != nil && o.CreatedAt.Before(*f.Since) {
		return false
	}
	return true
}
