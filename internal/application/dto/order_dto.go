package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreateOrderItemRequest línea al crear un pedido.
type CreateOrderItemRequest struct {
	Name      string          `json:"name" validate:"required,max=200"`
	Quantity  int             `json:"quantity" validate:"required,min=1"`
	UnitPrice decimal.Decimal `json:"unit_price" validate:"required"`
	Notes     string          `json:"notes" validate:"omitempty,max=500"`
}

// CreateOrderRequest entrada para crear un pedido. VenueID solo es obligatorio cuando
// la sesión tiene scope "todos los locales".
type CreateOrderRequest struct {
	VenueID string                   `json:"venue_id" validate:"omitempty,uuid"`
	TableID string                   `json:"table_id" validate:"required"`
	Notes   string                   `json:"notes" validate:"omitempty,max=500"`
	Items   []CreateOrderItemRequest `json:"items" validate:"required,min=1,dive"`
}

// TransitionRequest cambio de estado validado contra el estado persistido.
// ExpectedStatus es el estado que el terminal tiene en pantalla.
type TransitionRequest struct {
	ExpectedStatus string `json:"expected_status" validate:"required"`
	Status         string `json:"status" validate:"required"`
}

// PaymentRequest registro del cobro.
type PaymentRequest struct {
	Status string `json:"status" validate:"required,oneof=paid"`
	Method string `json:"method" validate:"omitempty,oneof=cash card transfer"`
}

// OrderItemResponse salida de una línea.
type OrderItemResponse struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Status    string          `json:"status"`
	Notes     string          `json:"notes,omitempty"`
}

// OrderResponse salida de un pedido.
type OrderResponse struct {
	ID            string              `json:"id"`
	VenueID       string              `json:"venue_id"`
	TableID       string              `json:"table_id"`
	StaffID       string              `json:"staff_id"`
	Status        string              `json:"status"`
	PaymentStatus string              `json:"payment_status"`
	PaymentMethod string              `json:"payment_method,omitempty"`
	Total         decimal.Decimal     `json:"total"`
	Notes         string              `json:"notes,omitempty"`
	Items         []OrderItemResponse `json:"items"`
	NextStatuses  []string            `json:"next_statuses"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
	PaidAt        *time.Time          `json:"paid_at,omitempty"`
}

// OrderListResponse listado paginado de pedidos.
type OrderListResponse struct {
	Items []OrderResponse `json:"items"`
	Page  PageResponse    `json:"page"`
}

// OrderListQuery filtros de listado (query string).
type OrderListQuery struct {
	PageRequest
	Status        string `query:"status"` // lista separada por comas
	PaymentStatus string `query:"payment_status"`
	TableID       string `query:"table_id"`
}

// CommandResponse resultado de un comando que muta un pedido. Anomaly no es nulo cuando
// el cambio se confirmó pero quedó marcado para conciliación manual.
type CommandResponse struct {
	Order   OrderResponse    `json:"order"`
	Anomaly *AnomalyResponse `json:"anomaly,omitempty"`
}

// AnomalyResponse salida de una anomalía registrada.
type AnomalyResponse struct {
	ID            string     `json:"id,omitempty"`
	OrderID       string     `json:"order_id"`
	VenueID       string     `json:"venue_id,omitempty"`
	Kind          string     `json:"kind"`
	FromStatus    string     `json:"from_status"`
	ToStatus      string     `json:"to_status"`
	PaymentStatus string     `json:"payment_status"`
	StaffID       string     `json:"staff_id,omitempty"`
	DetectedAt    *time.Time `json:"detected_at,omitempty"`
}

// ChangeEventResponse evento de cambio tal como se envía al terminal por SSE.
type ChangeEventResponse struct {
	VenueID     string        `json:"venue_id"`
	EntityType  string        `json:"entity_type"`
	EntityID    string        `json:"entity_id"`
	Kind        string        `json:"kind"`
	NewState    string        `json:"new_state"`
	Order       OrderResponse `json:"order"`
	CommittedAt time.Time     `json:"committed_at"`
	Seq         uint64        `json:"seq"`
}
