package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus estado del ciclo de vida de un pedido.
type OrderStatus string

// Estados de pedido.
const (
	OrderPending   OrderStatus = "pending"
	OrderPreparing OrderStatus = "preparing"
	OrderReady     OrderStatus = "ready"
	OrderServed    OrderStatus = "served"
	OrderCompleted OrderStatus = "completed"
	OrderCancelled OrderStatus = "cancelled"
)

// Valid informa si s es un estado conocido.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderPreparing, OrderReady, OrderServed, OrderCompleted, OrderCancelled:
		return true
	}
	return false
}

// Terminal completed y cancelled no tienen transiciones salientes.
func (s OrderStatus) Terminal() bool {
	return s == OrderCompleted || s == OrderCancelled
}

// ItemStatus estado de una línea de pedido.
type ItemStatus string

// Estados de línea.
const (
	ItemPending   ItemStatus = "pending"
	ItemPreparing ItemStatus = "preparing"
	ItemReady     ItemStatus = "ready"
	ItemServed    ItemStatus = "served"
	ItemCancelled ItemStatus = "cancelled"
)

// Valid informa si s es un estado de línea conocido.
func (s ItemStatus) Valid() bool {
	switch s {
	case ItemPending, ItemPreparing, ItemReady, ItemServed, ItemCancelled:
		return true
	}
	return false
}

// Terminal served y cancelled cierran la línea.
func (s ItemStatus) Terminal() bool {
	return s == ItemServed || s == ItemCancelled
}

// PaymentStatus estado de cobro del pedido.
type PaymentStatus string

// Estados de pago.
const (
	PaymentUnpaid PaymentStatus = "unpaid"
	PaymentPaid   PaymentStatus = "paid"
)

// Valid informa si s es un estado de pago conocido.
func (s PaymentStatus) Valid() bool {
	return s == PaymentUnpaid || s == PaymentPaid
}

// Métodos de pago aceptados al registrar el cobro.
const (
	PaymentMethodCash     = "cash"
	PaymentMethodCard     = "card"
	PaymentMethodTransfer = "transfer"
)

// Order pedido de una mesa en un local. Nunca se borra: cancelar es un estado.
type Order struct {
	ID            string
	VenueID       string
	TableID       string
	StaffID       string // quien lo creó
	Status        OrderStatus
	PaymentStatus PaymentStatus
	PaymentMethod string
	Total         decimal.Decimal
	Notes         string
	Items         []OrderItem
	CreatedAt     time.Time
	UpdatedAt     time.Time
	PaidAt        *time.Time
}

// OrderItem línea de un pedido.
type OrderItem struct {
	ID        string
	OrderID   string
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
	Status    ItemStatus
	Notes     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Subtotal cantidad * precio unitario.
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Item busca una línea por ID.
func (o *Order) Item(itemID string) (*OrderItem, bool) {
	for i := range o.Items {
		if o.Items[i].ID == itemID {
			return &o.Items[i], true
		}
	}
	return nil, false
}

// RecalculateTotal suma los subtotales de las líneas no canceladas.
func (o *Order) RecalculateTotal() {
	total := decimal.Zero
	for _, it := range o.Items {
		if it.Status == ItemCancelled {
			continue
		}
		total = total.Add(it.Subtotal())
	}
	o.Total = total
}

// Clone copia profunda (las líneas y PaidAt no se comparten).
func (o Order) Clone() Order {
	c := o
	if o.Items != nil {
		c.Items = make([]OrderItem, len(o.Items))
		copy(c.Items, o.Items)
	}
	if o.PaidAt != nil {
		t := *o.PaidAt
		c.PaidAt = &t
	}
	return c
}

// OrderFilter criterios de consulta de pedidos dentro de un scope.
type OrderFilter struct {
	Statuses      []OrderStatus
	PaymentStatus PaymentStatus
	TableID       string
	Since         *time.Time
	Limit         int
	Offset        int
}
