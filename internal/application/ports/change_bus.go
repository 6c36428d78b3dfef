package ports

import (
	"context"

	"github.com/jhoicas/comandas-api/internal/domain/entity"
)

// ChangePublisher puerto de salida para difundir mutaciones confirmadas de pedidos.
// Cualquier adaptador (canal en proceso, RabbitMQ, pub/sub gestionado) debe implementarlo;
// la máquina de estados y los casos de uso solo conocen este contrato.
//
// Garantías exigidas al adaptador:
//   - Entrega al menos una vez a cada suscriptor vigente del local, incluido el emisor.
//   - Orden FIFO por local respecto del orden de publicación.
//   - Un suscriptor del local A nunca observa eventos del local B.
type ChangePublisher interface {
	Publish(ctx context.Context, ev entity.ChangeEvent) error
}

// ChangeSubscriber puerto de entrada para terminales que observan un local.
// No hay buffer para suscriptores desconectados: al reconectar, el terminal debe volver
// a leer el estado actual del almacén de pedidos.
type ChangeSubscriber interface {
	// Subscribe registra interés en el canal del local. La suscripción termina al
	// cancelar ctx o al llamar Close.
	Subscribe(ctx context.Context, venueID string) (Subscription, error)
}

// Subscription handle de una suscripción viva.
type Subscription interface {
	ID() string
	VenueID() string
	// Events se cierra cuando la suscripción termina (Close, ctx o desalojo por lentitud).
	Events() <-chan entity.ChangeEvent
	// Close libera el slot del canal de inmediato. Idempotente.
	Close() error
}

// ChangeBus bus completo: publicar y suscribir.
type ChangeBus interface {
	ChangePublisher
	ChangeSubscriber
}
