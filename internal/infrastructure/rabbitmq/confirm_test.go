package rabbitmq

import (
	"context"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/comandas-api/internal/domain/entity"
)

type stubConfirmation struct {
	ready chan struct{}
	ack   bool
}

func (c *stubConfirmation) WaitContext(ctx context.Context) (bool, error) {
	select {
	case <-c.ready:
		return c.ack, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

type stubPublisher struct {
	mu      sync.Mutex
	pending []*stubConfirmation
	sent    []amqp.Publishing
}

func (p *stubPublisher) publish(_ context.Context, _, _ string, msg amqp.Publishing) (confirmation, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c := p.pending[len(p.sent)]
	p.sent = append(p.sent, msg)
	return c, nil
}

func confirmed(ack bool) *stubConfirmation {
	c := &stubConfirmation{ready: make(chan struct{}), ack: ack}
	close(c.ready)
	return c
}

func TestPublish_CadaMensajeEsperaSuPropiaConfirmacion(t *testing.T) {
	late := &stubConfirmation{ready: make(chan struct{}), ack: true}
	pub := &stubPublisher{pending: []*stubConfirmation{late, confirmed(false), confirmed(true)}}
	b := &ChangeBus{pub: pub, seq: make(map[string]uint64), exchange: "comandas.changes", log: zerolog.Nop()}
	ev := entity.ChangeEvent{VenueID: "V1", EntityType: entity.EntityOrder, EntityID: "O1", Kind: entity.ChangeStatus}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := b.Publish(ctx, ev)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// El ack tardío del primer mensaje no se atribuye al segundo.
	close(late.ready)
	err = b.Publish(context.Background(), ev)
	assert.EqualError(t, err, "rabbitmq: publish NACK del broker")

	require.NoError(t, b.Publish(context.Background(), ev))

	require.Len(t, pub.sent, 3)
	assert.Equal(t, "V1:1", pub.sent[0].MessageId)
	assert.Equal(t, "V1:2", pub.sent[1].MessageId)
	assert.Equal(t, "V1:3", pub.sent[2].MessageId)
}
