package entity

import "time"

// Tipos de entidad en eventos de cambio.
const (
	EntityOrder     = "order"
	EntityOrderItem = "order_item"
)

// Tipos de mutación notificada.
const (
	ChangeCreated    = "created"
	ChangeStatus     = "status"
	ChangeItemStatus = "item_status"
	ChangePayment    = "payment"
)

// ChangeEvent notificación efímera de una mutación confirmada en el almacén de pedidos.
// Solo existe en tránsito por el bus; nunca se persiste.
type ChangeEvent struct {
	VenueID     string
	EntityType  string // order | order_item
	EntityID    string
	Kind        string // created | status | item_status | payment
	NewState    string // nuevo status o payment status
	Order       Order  // snapshot del pedido después del commit
	CommittedAt time.Time
	Seq         uint64 // secuencia por local asignada por el bus
}

// OrderAnomaly registro de una transición anómala pendiente de conciliación.
type OrderAnomaly struct {
	ID            string
	OrderID       string
	VenueID       string
	Kind          string
	FromStatus    OrderStatus
	ToStatus      OrderStatus
	PaymentStatus PaymentStatus
	StaffID       string
	DetectedAt    time.Time
	ResolvedAt    *time.Time
}
