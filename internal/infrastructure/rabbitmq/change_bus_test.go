package rabbitmq_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/comandas-api/internal/domain"
	"github.com/jhoicas/comandas-api/internal/domain/entity"
	"github.com/jhoicas/comandas-api/internal/infrastructure/rabbitmq"
)

func TestRoutingKey_UnLocalPorClave(t *testing.T) {
	key, err := rabbitmq.RoutingKey("5b1c7a4e-0000-4000-8000-000000000001")
	require.NoError(t, err)
	assert.Equal(t, "venue.5b1c7a4e-0000-4000-8000-000000000001", key)
}

func TestRoutingKey_RechazaComodines(t *testing.T) {
	for _, id := range []string{"", "*", "#", "a.b", "V 1"} {
		_, err := rabbitmq.RoutingKey(id)
		assert.ErrorIs(t, err, domain.ErrInvalidInput, "venue_id %q debe rechazarse", id)
	}
}

func TestEncodeDecode_ConservaLocalYPedido(t *testing.T) {
	committed := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	ev := entity.ChangeEvent{
		VenueID:    "V1",
		EntityType: entity.EntityOrder,
		EntityID:   "O1",
		Kind:       entity.ChangeStatus,
		NewState:   string(entity.OrderPreparing),
		Order: entity.Order{
			ID:            "O1",
			VenueID:       "V1",
			Status:        entity.OrderPreparing,
			PaymentStatus: entity.PaymentUnpaid,
			Total:         decimal.RequireFromString("25000.50"),
		},
		CommittedAt: committed,
		Seq:         7,
	}
	body, err := rabbitmq.EncodeEvent(ev)
	require.NoError(t, err)

	got, err := rabbitmq.DecodeEvent(body)
	require.NoError(t, err)
	assert.Equal(t, "V1", got.VenueID)
	assert.Equal(t, uint64(7), got.Seq)
	assert.True(t, committed.Equal(got.CommittedAt))
	assert.True(t, ev.Order.Total.Equal(got.Order.Total))
	assert.Equal(t, entity.OrderPreparing, got.Order.Status)
}

func TestDecode_CuerpoInvalido(t *testing.T) {
	_, err := rabbitmq.DecodeEvent([]byte("{no es json"))
	assert.Error(t, err)
}
