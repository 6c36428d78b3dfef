package repository

import (
	"context"
	"time"

	"github.com/jhoicas/comandas-api/internal/domain/entity"
)

// OrderRepository puerto del almacén autoritativo de pedidos.
//
// Las actualizaciones son compare-and-set contra el estado persistido: si el estado
// actual no coincide con el esperado devuelven domain.ErrConflict y no aplican nada.
// Los fallos transitorios de infraestructura se devuelven envueltos en
// domain.ErrStoreUnavailable.
type OrderRepository interface {
	Insert(ctx context.Context, o *entity.Order) error
	// Get devuelve nil, nil si el pedido no existe.
	Get(ctx context.Context, id string) (*entity.Order, error)
	Query(ctx context.Context, scope entity.VenueScope, f entity.OrderFilter) ([]*entity.Order, error)
	UpdateStatus(ctx context.Context, orderID string, expected, next entity.OrderStatus, at time.Time) (*entity.Order, error)
	// UpdateItemStatus exige además que el pedido siga en orderStatus (el estado con el que
	// se validó la transición de la línea).
	UpdateItemStatus(ctx context.Context, orderID, itemID string, orderStatus entity.OrderStatus, expected, next entity.ItemStatus, at time.Time) (*entity.Order, error)
	UpdatePayment(ctx context.Context, orderID string, expected, next entity.PaymentStatus, method string, at time.Time) (*entity.Order, error)
}
