// Package bus implementa el bus de cambios en proceso: un canal por local, una cola
// acotada por suscriptor y entrega FIFO por local.
package bus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jhoicas/comandas-api/internal/application/ports"
	"github.com/jhoicas/comandas-api/internal/domain"
	"github.com/jhoicas/comandas-api/internal/domain/entity"
)

var _ ports.ChangeBus = (*MemoryBus)(nil)

// MemoryConfig parámetros del bus en proceso.
type MemoryConfig struct {
	Buffer      int           // eventos en cola por suscriptor
	SendTimeout time.Duration // espera máxima por un suscriptor con la cola llena
}

// MemoryBus bus de cambios en memoria. Publish serializa por local, de modo que cada
// suscriptor recibe los eventos de su local en el orden en que se publicaron.
// Un suscriptor que no drena su cola en SendTimeout se desaloja (su canal se cierra)
// y deberá re-suscribirse y releer el estado del almacén.
type MemoryBus struct {
	mu       sync.Mutex
	channels map[string]*venueChannel
	closed   bool

	buffer      int
	sendTimeout time.Duration
	log         zerolog.Logger
}

type venueChannel struct {
	mu   sync.Mutex
	seq  uint64
	subs map[string]*memorySubscription
}

// NewMemoryBus construye el bus en proceso.
func NewMemoryBus(cfg MemoryConfig, log zerolog.Logger) *MemoryBus {
	if cfg.Buffer <= 0 {
		cfg.Buffer = 64
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 3 * time.Second
	}
	return &MemoryBus{
		channels:    make(map[string]*venueChannel),
		buffer:      cfg.Buffer,
		sendTimeout: cfg.SendTimeout,
		log:         log,
	}
}

func (b *MemoryBus) channel(venueID string) (*venueChannel, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, fmt.Errorf("bus: cerrado")
	}
	vc, ok := b.channels[venueID]
	if !ok {
		vc = &venueChannel{subs: make(map[string]*memorySubscription)}
		b.channels[venueID] = vc
	}
	return vc, nil
}

// Publish entrega ev a todos los suscriptores actuales del local del evento.
// Primero intenta la entrega sin bloquear a todos; los que tienen la cola llena
// comparten un único plazo de SendTimeout. Al vencer el plazo o cancelarse ctx, los que
// no recibieron el evento se desalojan: su canal se cierra y deben releer el estado.
// Ningún suscriptor vigente queda registrado sin haber recibido el evento.
func (b *MemoryBus) Publish(ctx context.Context, ev entity.ChangeEvent) error {
	if ev.VenueID == "" {
		return fmt.Errorf("bus: evento sin venue_id: %w", domain.ErrInvalidInput)
	}
	vc, err := b.channel(ev.VenueID)
	if err != nil {
		return err
	}

	vc.mu.Lock()
	defer vc.mu.Unlock()
	vc.seq++
	ev.Seq = vc.seq

	var full []*memorySubscription
	for _, sub := range vc.subs {
		select {
		case <-sub.done:
		case sub.ch <- ev:
		default:
			full = append(full, sub)
		}
	}
	if len(full) == 0 {
		return nil
	}

	t := time.NewTimer(b.sendTimeout)
	defer t.Stop()
	for i, sub := range full {
		select {
		case sub.ch <- ev:
		case <-sub.done:
		case <-t.C:
			b.evict(vc, ev, full[i:], "suscriptor lento desalojado")
			return nil
		case <-ctx.Done():
			b.evict(vc, ev, full[i:], "publicación cancelada, suscriptor desalojado")
			return nil
		}
	}
	return nil
}

func (b *MemoryBus) evict(vc *venueChannel, ev entity.ChangeEvent, subs []*memorySubscription, msg string) {
	for _, sub := range subs {
		if _, ok := vc.subs[sub.id]; !ok {
			continue
		}
		b.log.Warn().
			Str("venue_id", ev.VenueID).
			Str("subscription_id", sub.id).
			Uint64("seq", ev.Seq).
			Msg(msg)
		b.removeLocked(vc, sub)
	}
}

// Subscribe registra un suscriptor en el canal del local.
func (b *MemoryBus) Subscribe(ctx context.Context, venueID string) (ports.Subscription, error) {
	if venueID == "" {
		return nil, fmt.Errorf("bus: venue_id requerido: %w", domain.ErrInvalidInput)
	}
	vc, err := b.channel(venueID)
	if err != nil {
		return nil, err
	}
	sub := &memorySubscription{
		id:      uuid.New().String(),
		venueID: venueID,
		ch:      make(chan entity.ChangeEvent, b.buffer),
		done:    make(chan struct{}),
		bus:     b,
		vc:      vc,
	}
	vc.mu.Lock()
	vc.subs[sub.id] = sub
	vc.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			_ = sub.Close()
		case <-sub.done:
		}
	}()
	return sub, nil
}

// SubscriberCount suscriptores vivos del local.
func (b *MemoryBus) SubscriberCount(venueID string) int {
	b.mu.Lock()
	vc, ok := b.channels[venueID]
	b.mu.Unlock()
	if !ok {
		return 0
	}
	vc.mu.Lock()
	defer vc.mu.Unlock()
	return len(vc.subs)
}

// Close termina todas las suscripciones y rechaza nuevas operaciones.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	b.closed = true
	channels := b.channels
	b.channels = make(map[string]*venueChannel)
	b.mu.Unlock()

	for _, vc := range channels {
		vc.mu.Lock()
		for _, sub := range vc.subs {
			b.removeLocked(vc, sub)
		}
		vc.mu.Unlock()
	}
	return nil
}

// removeLocked requiere vc.mu tomado: los envíos a sub.ch solo ocurren bajo ese mutex,
// así que cerrar aquí nunca compite con un envío.
func (b *MemoryBus) removeLocked(vc *venueChannel, sub *memorySubscription) {
	if _, ok := vc.subs[sub.id]; !ok {
		return
	}
	delete(vc.subs, sub.id)
	sub.signalDone()
	close(sub.ch)
}

type memorySubscription struct {
	id      string
	venueID string
	ch      chan entity.ChangeEvent
	done    chan struct{}
	once    sync.Once
	bus     *MemoryBus
	vc      *venueChannel
}

func (s *memorySubscription) ID() string                        { return s.id }
func (s *memorySubscription) VenueID() string                   { return s.venueID }
func (s *memorySubscription) Events() <-chan entity.ChangeEvent { return s.ch }

func (s *memorySubscription) signalDone() {
	s.once.Do(func() { close(s.done) })
}

// Close señala primero done (sin lock) para que un Publish bloqueado en este
// suscriptor lo suelte de inmediato, y luego libera el slot.
func (s *memorySubscription) Close() error {
	s.signalDone()
	s.vc.mu.Lock()
	s.bus.removeLocked(s.vc, s)
	s.vc.mu.Unlock()
	return nil
}
