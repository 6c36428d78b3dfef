package ordering

import (
	"context"

	"github.com/jhoicas/comandas-api/internal/domain/access"
	"github.com/jhoicas/comandas-api/internal/domain/entity"
)

// Authorizer re-valida la sesión y comprueba la capacidad antes de cada comando.
// Lo implementa auth.AuthUseCase.
type Authorizer interface {
	Authorize(ctx context.Context, sess *entity.Session, capability access.Capability) (*entity.Session, error)
}

// ReceiptGenerator genera el comprobante de pago de un pedido.
// La implementación (maroto) vive en infrastructure/pdf.
type ReceiptGenerator interface {
	GenerateReceipt(venue *entity.Venue, order *entity.Order) ([]byte, error)
}
