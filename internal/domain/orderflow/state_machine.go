// Package orderflow es la definición autoritativa de las transiciones válidas de pedidos,
// líneas de pedido y estado de pago.
//
// Pedido:  pending → preparing → ready → served → completed
// Línea:   pending → preparing → ready → served
// Pago:    unpaid → paid
//
// cancelled es alcanzable desde cualquier estado no terminal. No se saltan etapas ni se
// retrocede. Las funciones son puras: reciben el estado persistido y devuelven el nuevo.
package orderflow

import (
	"time"

	"github.com/jhoicas/comandas-api/internal/domain"
	"github.com/jhoicas/comandas-api/internal/domain/entity"
)

var orderNext = map[entity.OrderStatus]entity.OrderStatus{
	entity.OrderPending:   entity.OrderPreparing,
	entity.OrderPreparing: entity.OrderReady,
	entity.OrderReady:     entity.OrderServed,
	entity.OrderServed:    entity.OrderCompleted,
}

var itemNext = map[entity.ItemStatus]entity.ItemStatus{
	entity.ItemPending:   entity.ItemPreparing,
	entity.ItemPreparing: entity.ItemReady,
	entity.ItemReady:     entity.ItemServed,
}

// Result resultado de una transición aceptada. Anomaly no es nil cuando la transición
// se aplicó pero debe marcarse para conciliación manual.
type Result struct {
	Order   entity.Order
	Anomaly *domain.AnomalyError
}

// CanTransition informa si to es sucesor directo de from en el grafo de pedidos.
func CanTransition(from, to entity.OrderStatus) bool {
	if !from.Valid() || !to.Valid() || from.Terminal() {
		return false
	}
	if to == entity.OrderCancelled {
		return true
	}
	next, ok := orderNext[from]
	return ok && next == to
}

// CanTransitionItem informa si to es sucesor directo de from en el grafo de líneas.
func CanTransitionItem(from, to entity.ItemStatus) bool {
	if !from.Valid() || !to.Valid() || from.Terminal() {
		return false
	}
	if to == entity.ItemCancelled {
		return true
	}
	next, ok := itemNext[from]
	return ok && next == to
}

// NextStatuses estados alcanzables desde from (para que la UI ofrezca acciones).
func NextStatuses(from entity.OrderStatus) []entity.OrderStatus {
	if from.Terminal() || !from.Valid() {
		return nil
	}
	out := make([]entity.OrderStatus, 0, 2)
	if next, ok := orderNext[from]; ok {
		out = append(out, next)
	}
	return append(out, entity.OrderCancelled)
}

// ApplyTransition valida y aplica el cambio de estado de un pedido.
// Cancelar un pedido ya pagado se acepta pero se devuelve con Anomaly.
func ApplyTransition(o entity.Order, to entity.OrderStatus, now time.Time) (Result, error) {
	if !CanTransition(o.Status, to) {
		return Result{}, &domain.TransitionError{
			Entity:    entity.EntityOrder,
			ID:        o.ID,
			Actual:    string(o.Status),
			Requested: string(to),
		}
	}
	next := o.Clone()
	next.Status = to
	next.UpdatedAt = now

	var anomaly *domain.AnomalyError
	if to == entity.OrderCancelled && o.PaymentStatus == entity.PaymentPaid {
		anomaly = &domain.AnomalyError{
			Kind:          domain.AnomalyCancelledAfterPayment,
			OrderID:       o.ID,
			FromStatus:    string(o.Status),
			ToStatus:      string(to),
			PaymentStatus: string(o.PaymentStatus),
		}
	}
	return Result{Order: next, Anomaly: anomaly}, nil
}

// ApplyItemTransition valida y aplica el cambio de estado de una línea.
// Con el pedido terminal la única transición permitida para sus líneas es cancelarlas.
// Un pedido pagado no admite cancelar líneas: el total cobrado no cambia.
func ApplyItemTransition(o entity.Order, itemID string, to entity.ItemStatus, now time.Time) (entity.Order, error) {
	next := o.Clone()
	item, ok := next.Item(itemID)
	if !ok {
		return entity.Order{}, domain.ErrNotFound
	}
	reject := &domain.TransitionError{
		Entity:    entity.EntityOrderItem,
		ID:        itemID,
		Actual:    string(item.Status),
		Requested: string(to),
	}
	if o.Status.Terminal() && to != entity.ItemCancelled {
		return entity.Order{}, reject
	}
	if to == entity.ItemCancelled && o.PaymentStatus == entity.PaymentPaid {
		return entity.Order{}, reject
	}
	if !CanTransitionItem(item.Status, to) {
		return entity.Order{}, reject
	}
	item.Status = to
	item.UpdatedAt = now
	next.UpdatedAt = now
	next.RecalculateTotal()
	return next, nil
}

// ApplyPayment registra el cobro: unpaid → paid sella PaidAt y el método.
// No se cobra un pedido cancelado ni se vuelve a cobrar uno pagado.
func ApplyPayment(o entity.Order, to entity.PaymentStatus, method string, now time.Time) (entity.Order, error) {
	reject := &domain.TransitionError{
		Entity:    "payment",
		ID:        o.ID,
		Actual:    string(o.PaymentStatus),
		Requested: string(to),
	}
	if o.PaymentStatus != entity.PaymentUnpaid || to != entity.PaymentPaid {
		return entity.Order{}, reject
	}
	if o.Status == entity.OrderCancelled {
		return entity.Order{}, reject
	}
	next := o.Clone()
	next.PaymentStatus = entity.PaymentPaid
	next.PaymentMethod = method
	paidAt := now
	next.PaidAt = &paidAt
	next.UpdatedAt = now
	return next, nil
}
