// Package rabbitmq implementa el bus de cambios sobre RabbitMQ: un exchange topic, una
// routing key por local y una cola exclusiva auto-delete por suscriptor. Al desconectar,
// la cola desaparece con sus mensajes: no hay reproducción de eventos perdidos.
package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/jhoicas/comandas-api/internal/application/ports"
	"github.com/jhoicas/comandas-api/internal/domain"
	"github.com/jhoicas/comandas-api/internal/domain/entity"
)

var _ ports.ChangeBus = (*ChangeBus)(nil)

// Config conexión al broker.
type Config struct {
	URL      string
	Exchange string
	Prefetch int // mensajes sin ack por suscriptor
}

// confirmation confirmación diferida de una publicación concreta.
type confirmation interface {
	WaitContext(ctx context.Context) (bool, error)
}

// publisher publica un mensaje y devuelve la confirmación ligada a su delivery tag.
type publisher interface {
	publish(ctx context.Context, exchange, key string, msg amqp.Publishing) (confirmation, error)
}

type channelPublisher struct {
	ch *amqp.Channel
}

func (p channelPublisher) publish(ctx context.Context, exchange, key string, msg amqp.Publishing) (confirmation, error) {
	dc, err := p.ch.PublishWithDeferredConfirmWithContext(ctx, exchange, key, false, false, msg)
	if err != nil {
		return nil, err
	}
	if dc == nil {
		return nil, errors.New("rabbitmq: canal sin modo confirm")
	}
	return dc, nil
}

// ChangeBus adaptador RabbitMQ del puerto ports.ChangeBus.
type ChangeBus struct {
	conn     *amqp.Connection
	pubCh    *amqp.Channel
	pub      publisher
	mu       sync.Mutex // serializa Publish: orden de publicación y secuencia por local
	seq      map[string]uint64
	exchange string
	prefetch int
	log      zerolog.Logger
}

// Dial conecta, declara el exchange y activa publisher confirms.
// Cada Publish espera la confirmación de su propio delivery tag.
func Dial(cfg Config, log zerolog.Logger) (*ChangeBus, error) {
	if cfg.Exchange == "" {
		cfg.Exchange = "comandas.changes"
	}
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 64
	}
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq: canal de publicación: %w", err)
	}
	if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq: declarar exchange: %w", err)
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq: confirm mode: %w", err)
	}
	return &ChangeBus{
		conn:     conn,
		pubCh:    ch,
		pub:      channelPublisher{ch: ch},
		seq:      make(map[string]uint64),
		exchange: cfg.Exchange,
		prefetch: cfg.Prefetch,
		log:      log,
	}, nil
}

// Ping health-check ligero de la conexión.
func (b *ChangeBus) Ping() error {
	if b.conn == nil || b.conn.IsClosed() {
		return errors.New("rabbitmq: conexión cerrada")
	}
	return nil
}

// Close cierra canal y conexión.
func (b *ChangeBus) Close() error {
	if b.pubCh != nil {
		_ = b.pubCh.Close()
	}
	if b.conn != nil {
		return b.conn.Close()
	}
	return nil
}

// RoutingKey routing key del canal de un local. Rechaza IDs con separadores o comodines
// de topic para que un suscriptor nunca pueda enlazarse a varios locales.
func RoutingKey(venueID string) (string, error) {
	if venueID == "" || strings.ContainsAny(venueID, ".*# ") {
		return "", fmt.Errorf("rabbitmq: venue_id %q no válido para routing: %w", venueID, domain.ErrInvalidInput)
	}
	return "venue." + venueID, nil
}

// Publish publica el evento y espera el ack del broker.
func (b *ChangeBus) Publish(ctx context.Context, ev entity.ChangeEvent) error {
	key, err := RoutingKey(ev.VenueID)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq[ev.VenueID]++
	ev.Seq = b.seq[ev.VenueID]
	body, err := EncodeEvent(ev)
	if err != nil {
		return err
	}

	conf, err := b.pub.publish(ctx, b.exchange, key, amqp.Publishing{
		DeliveryMode: amqp.Transient,
		ContentType:  "application/json",
		Type:         ev.Kind,
		MessageId:    fmt.Sprintf("%s:%d", ev.VenueID, ev.Seq),
		Timestamp:    ev.CommittedAt,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("rabbitmq: publish: %w", err)
	}
	// La confirmación es la de este mensaje: una espera abandonada no desplaza a las siguientes.
	acked, err := conf.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("rabbitmq: esperar confirmación: %w", err)
	}
	if !acked {
		return errors.New("rabbitmq: publish NACK del broker")
	}
	return nil
}

// Subscribe crea una cola exclusiva enlazada solo a la routing key del local.
func (b *ChangeBus) Subscribe(ctx context.Context, venueID string) (ports.Subscription, error) {
	key, err := RoutingKey(venueID)
	if err != nil {
		return nil, err
	}
	ch, err := b.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("rabbitmq: canal de suscripción: %w", err)
	}
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("rabbitmq: declarar cola: %w", err)
	}
	if err := ch.QueueBind(q.Name, key, b.exchange, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("rabbitmq: bind: %w", err)
	}
	if err := ch.Qos(b.prefetch, 0, false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("rabbitmq: qos: %w", err)
	}
	tag := "terminal-" + uuid.New().String()
	deliveries, err := ch.Consume(q.Name, tag, false, true, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("rabbitmq: consume: %w", err)
	}

	sub := &subscription{
		id:      tag,
		venueID: venueID,
		ch:      ch,
		events:  make(chan entity.ChangeEvent, b.prefetch),
		done:    make(chan struct{}),
		log:     b.log,
	}
	go sub.pump(ctx, deliveries)
	return sub, nil
}

type subscription struct {
	id      string
	venueID string
	ch      *amqp.Channel
	events  chan entity.ChangeEvent
	done    chan struct{}
	once    sync.Once
	log     zerolog.Logger
}

func (s *subscription) ID() string                        { return s.id }
func (s *subscription) VenueID() string                   { return s.venueID }
func (s *subscription) Events() <-chan entity.ChangeEvent { return s.events }

// Close cancela el consumer y cierra el canal; la cola exclusiva se borra en el broker.
func (s *subscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		_ = s.ch.Cancel(s.id, false)
		err = s.ch.Close()
	})
	return err
}

// pump es el único emisor de s.events y lo cierra al salir.
func (s *subscription) pump(ctx context.Context, deliveries <-chan amqp.Delivery) {
	defer close(s.events)
	for {
		select {
		case <-ctx.Done():
			_ = s.Close()
			return
		case <-s.done:
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			ev, err := DecodeEvent(d.Body)
			if err != nil || ev.VenueID != s.venueID {
				s.log.Error().Err(err).
					Str("subscription_id", s.id).
					Str("venue_id", s.venueID).
					Msg("evento descartado: cuerpo inválido o de otro local")
				_ = d.Nack(false, false)
				continue
			}
			select {
			case s.events <- ev:
				_ = d.Ack(false)
			case <-s.done:
				return
			case <-ctx.Done():
				_ = s.Close()
				return
			}
		}
	}
}

type wireEvent struct {
	VenueID     string       `json:"venue_id"`
	EntityType  string       `json:"entity_type"`
	EntityID    string       `json:"entity_id"`
	Kind        string       `json:"kind"`
	NewState    string       `json:"new_state"`
	Order       entity.Order `json:"order"`
	CommittedAt time.Time    `json:"committed_at"`
	Seq         uint64       `json:"seq"`
}

// EncodeEvent serializa un evento para el broker.
func EncodeEvent(ev entity.ChangeEvent) ([]byte, error) {
	return json.Marshal(wireEvent(ev))
}

// DecodeEvent deserializa un evento recibido del broker.
func DecodeEvent(body []byte) (entity.ChangeEvent, error) {
	var w wireEvent
	if err := json.Unmarshal(body, &w); err != nil {
		return entity.ChangeEvent{}, fmt.Errorf("rabbitmq: decodificar evento: %w", err)
	}
	return entity.ChangeEvent(w), nil
}
