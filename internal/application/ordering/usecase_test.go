package ordering_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/jhoicas/comandas-api/internal/application/auth"
	"github.com/jhoicas/comandas-api/internal/application/dto"
	"github.com/jhoicas/comandas-api/internal/application/ordering"
	"github.com/jhoicas/comandas-api/internal/application/ports"
	"github.com/jhoicas/comandas-api/internal/domain"
	"github.com/jhoicas/comandas-api/internal/domain/entity"
	"github.com/jhoicas/comandas-api/internal/infrastructure/bus"
	"github.com/jhoicas/comandas-api/internal/infrastructure/memory"
)

// ──────────────────────────────────────────────────────────────────────────────
// Helpers de test
// ──────────────────────────────────────────────────────────────────────────────

const deliveryWindow = time.Second

type env struct {
	auth      *auth.AuthUseCase
	orders    *ordering.OrderUseCase
	store     *memory.OrderStore
	anomalies *memory.AnomalyStore
}

type stubReceipts struct{ calls int }

func (s *stubReceipts) GenerateReceipt(_ *entity.Venue, _ *entity.Order) ([]byte, error) {
	s.calls++
	return []byte("%PDF-1.4"), nil
}

type failingBus struct{ ports.ChangeBus }

func (failingBus) Publish(context.Context, entity.ChangeEvent) error {
	return errors.New("broker caído")
}

func hash(t *testing.T, pin string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

// newEnv V1 y V2 activos. PINs: 5678 manager V1, 1111 cocina V1, 2222 caja V1,
// 3333 mesero V2, 4444 owner V2.
func newEnv(t *testing.T, changeBus ports.ChangeBus) *env {
	t.Helper()
	venues := memory.NewVenueStore(
		entity.Venue{ID: "V1", Name: "Centro", Type: entity.VenueTypeRestaurant, IsActive: true},
		entity.Venue{ID: "V2", Name: "Norte", Type: entity.VenueTypeCafe, IsActive: true},
	)
	staff := memory.NewStaffStore(
		entity.Staff{ID: "S-man", VenueID: "V1", Name: "Luis", Role: entity.RoleManager, PinHash: hash(t, "5678"), IsActive: true},
		entity.Staff{ID: "S-kit", VenueID: "V1", Name: "Eva", Role: entity.RoleKitchen, PinHash: hash(t, "1111"), IsActive: true},
		entity.Staff{ID: "S-caj", VenueID: "V1", Name: "Ana", Role: entity.RoleCashier, PinHash: hash(t, "2222"), IsActive: true},
		entity.Staff{ID: "S-mes", VenueID: "V2", Name: "Juan", Role: entity.RoleWaiter, PinHash: hash(t, "3333"), IsActive: true},
		entity.Staff{ID: "S-own", VenueID: "V2", Name: "Sofía", Role: entity.RoleOwner, PinHash: hash(t, "4444"), IsActive: true},
	)
	authUC := auth.NewAuthUseCase(staff, venues, memory.NewSessionStore(), nil, auth.Config{
		Secret:      "test-secret",
		Issuer:      "comandas-test",
		ExpMinutes:  60,
		IdleTimeout: 30 * time.Minute,
	}, zerolog.Nop())

	if changeBus == nil {
		changeBus = bus.NewMemoryBus(bus.MemoryConfig{Buffer: 16, SendTimeout: time.Second}, zerolog.Nop())
	}
	store := memory.NewOrderStore(venues.IsActive)
	anomalies := memory.NewAnomalyStore()
	orderUC := ordering.NewOrderUseCase(store, anomalies, venues, changeBus, authUC, &stubReceipts{}, zerolog.Nop())
	return &env{auth: authUC, orders: orderUC, store: store, anomalies: anomalies}
}

func (e *env) login(t *testing.T, venueID, pin string) *entity.Session {
	t.Helper()
	sess, err := e.auth.Authenticate(context.Background(), venueID, pin)
	require.NoError(t, err)
	return sess
}

func (e *env) create(t *testing.T, sess *entity.Session) *dto.OrderResponse {
	t.Helper()
	o, err := e.orders.CreateOrder(context.Background(), sess, dto.CreateOrderRequest{
		TableID: "M4",
		Items: []dto.CreateOrderItemRequest{
			{Name: "Ajiaco", Quantity: 2, UnitPrice: decimal.NewFromInt(18000)},
			{Name: "Limonada", Quantity: 1, UnitPrice: decimal.NewFromInt(5000)},
		},
	})
	require.NoError(t, err)
	return o
}

func transition(from, to entity.OrderStatus) dto.TransitionRequest {
	return dto.TransitionRequest{ExpectedStatus: string(from), Status: string(to)}
}

func receive(t *testing.T, sub ports.Subscription) entity.ChangeEvent {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		require.True(t, ok, "la suscripción se cerró")
		return ev
	case <-time.After(deliveryWindow):
		t.Fatal("no llegó el evento dentro de la ventana de entrega")
	}
	return entity.ChangeEvent{}
}

// ──────────────────────────────────────────────────────────────────────────────
// Escenario completo
// ──────────────────────────────────────────────────────────────────────────────

func TestEscenario_ManagerCocinaCajaYAnomalia(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	manager := e.login(t, "V1", "5678")
	assert.Equal(t, entity.RoleManager, manager.Role)
	kitchen := e.login(t, "V1", "1111")
	cashier := e.login(t, "V1", "2222")

	sub, err := e.orders.Subscribe(ctx, kitchen, "V1")
	require.NoError(t, err)
	defer sub.Close()

	o := e.create(t, manager)
	assert.Equal(t, "pending", o.Status)
	assert.Equal(t, "unpaid", o.PaymentStatus)
	assert.True(t, decimal.NewFromInt(41000).Equal(o.Total))

	ev := receive(t, sub)
	assert.Equal(t, entity.ChangeCreated, ev.Kind)
	assert.Equal(t, o.ID, ev.EntityID)

	_, err = e.orders.TransitionOrder(ctx, kitchen, o.ID, transition(entity.OrderPending, entity.OrderPreparing))
	require.NoError(t, err)
	_, err = e.orders.TransitionOrder(ctx, kitchen, o.ID, transition(entity.OrderPreparing, entity.OrderReady))
	require.NoError(t, err)
	assert.Equal(t, "preparing", receive(t, sub).NewState)
	assert.Equal(t, "ready", receive(t, sub).NewState)

	paid, err := e.orders.RecordPayment(ctx, cashier, o.ID, dto.PaymentRequest{Status: "paid", Method: entity.PaymentMethodCard})
	require.NoError(t, err)
	require.NotNil(t, paid.PaidAt)
	assert.Equal(t, entity.ChangePayment, receive(t, sub).Kind)

	res, err := e.orders.TransitionOrder(ctx, manager, o.ID, transition(entity.OrderReady, entity.OrderCancelled))
	require.NoError(t, err, "la cancelación se acepta")
	assert.Equal(t, "cancelled", res.Order.Status)
	require.NotNil(t, res.Anomaly, "pero queda marcada como anomalía")
	assert.Equal(t, domain.AnomalyCancelledAfterPayment, res.Anomaly.Kind)
	assert.Equal(t, "cancelled", receive(t, sub).NewState)

	open, err := e.orders.ListAnomalies(ctx, manager, dto.PageRequest{})
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, o.ID, open[0].OrderID)
}

// ──────────────────────────────────────────────────────────────────────────────
// Validación contra el estado persistido
// ──────────────────────────────────────────────────────────────────────────────

func TestTransitionOrder_EstadoEsperadoObsoleto(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	kitchen := e.login(t, "V1", "1111")
	o := e.create(t, e.login(t, "V1", "5678"))

	_, err := e.orders.TransitionOrder(ctx, kitchen, o.ID, transition(entity.OrderPending, entity.OrderPreparing))
	require.NoError(t, err)

	_, err = e.orders.TransitionOrder(ctx, kitchen, o.ID, transition(entity.OrderPending, entity.OrderPreparing))
	var te *domain.TransitionError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "pending", te.Expected)
	assert.Equal(t, "preparing", te.Actual)
}

func TestTransitionOrder_NoSaltaEtapas(t *testing.T) {
	e := newEnv(t, nil)
	manager := e.login(t, "V1", "5678")
	o := e.create(t, manager)

	_, err := e.orders.TransitionOrder(context.Background(), manager, o.ID, transition(entity.OrderPending, entity.OrderServed))
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestTransitionOrder_ConcurrenteSoloUnoConfirma(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	manager := e.login(t, "V1", "5678")
	o := e.create(t, manager)
	_, err := e.orders.TransitionOrder(ctx, manager, o.ID, transition(entity.OrderPending, entity.OrderPreparing))
	require.NoError(t, err)

	targets := []entity.OrderStatus{entity.OrderReady, entity.OrderCancelled}
	errs := make([]error, len(targets))
	var wg sync.WaitGroup
	for i, to := range targets {
		wg.Add(1)
		go func(i int, to entity.OrderStatus) {
			defer wg.Done()
			_, errs[i] = e.orders.TransitionOrder(ctx, manager, o.ID, transition(entity.OrderPreparing, to))
		}(i, to)
	}
	wg.Wait()

	committed := 0
	for _, err := range errs {
		if err == nil {
			committed++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	}
	assert.Equal(t, 1, committed)

	final, err := e.store.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Contains(t, targets, final.Status)
}

func TestTransitionItem(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	manager := e.login(t, "V1", "5678")
	kitchen := e.login(t, "V1", "1111")
	o := e.create(t, manager)
	itemID := o.Items[0].ID

	got, err := e.orders.TransitionItem(ctx, kitchen, o.ID, itemID, dto.TransitionRequest{ExpectedStatus: "pending", Status: "preparing"})
	require.NoError(t, err)
	assert.Equal(t, "preparing", got.Items[0].Status)

	_, err = e.orders.TransitionItem(ctx, kitchen, o.ID, itemID, dto.TransitionRequest{ExpectedStatus: "preparing", Status: "served"})
	assert.ErrorIs(t, err, domain.ErrAccessDenied, "cocina no sirve")

	_, err = e.orders.TransitionOrder(ctx, manager, o.ID, transition(entity.OrderPending, entity.OrderCancelled))
	require.NoError(t, err)
	_, err = e.orders.TransitionItem(ctx, kitchen, o.ID, itemID, dto.TransitionRequest{ExpectedStatus: "preparing", Status: "ready"})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition, "pedido cancelado")

	_, err = e.orders.TransitionItem(ctx, kitchen, o.ID, "nope", dto.TransitionRequest{ExpectedStatus: "pending", Status: "preparing"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// ──────────────────────────────────────────────────────────────────────────────
// Autorización y aislamiento entre locales
// ──────────────────────────────────────────────────────────────────────────────

func TestPermisosPorRol(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	kitchen := e.login(t, "V1", "1111")
	o := e.create(t, e.login(t, "V1", "5678"))

	_, err := e.orders.RecordPayment(ctx, kitchen, o.ID, dto.PaymentRequest{Status: "paid"})
	assert.ErrorIs(t, err, domain.ErrAccessDenied)

	_, err = e.orders.CreateOrder(ctx, kitchen, dto.CreateOrderRequest{TableID: "M1", Items: []dto.CreateOrderItemRequest{{Name: "x", Quantity: 1}}})
	assert.ErrorIs(t, err, domain.ErrAccessDenied)
}

func TestAislamientoEntreLocales(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	waiterV2 := e.login(t, "V2", "3333")

	subV2, err := e.orders.Subscribe(ctx, waiterV2, "V2")
	require.NoError(t, err)
	defer subV2.Close()

	_, err = e.orders.Subscribe(ctx, waiterV2, "V1")
	assert.ErrorIs(t, err, domain.ErrAccessDenied)

	o := e.create(t, e.login(t, "V1", "5678"))

	_, err = e.orders.Get(ctx, waiterV2, o.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound, "un pedido de otro local no existe para esta sesión")

	list, err := e.orders.List(ctx, waiterV2, dto.OrderListQuery{})
	require.NoError(t, err)
	assert.Empty(t, list.Items)

	select {
	case ev := <-subV2.Events():
		t.Fatalf("evento de otro local filtrado: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestOwnerTodosLosLocales(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	owner := e.login(t, "V2", "4444")
	o := e.create(t, e.login(t, "V1", "5678"))

	_, err := e.orders.Get(ctx, owner, o.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound, "sin seleccionar scope el owner ve su local")

	owner, err = e.auth.SelectScope(ctx, owner, entity.AllVenues())
	require.NoError(t, err)
	got, err := e.orders.Get(ctx, owner, o.ID)
	require.NoError(t, err)
	assert.Equal(t, "V1", got.VenueID)

	_, err = e.orders.CreateOrder(ctx, owner, dto.CreateOrderRequest{TableID: "M1", Items: []dto.CreateOrderItemRequest{{Name: "Café", Quantity: 1, UnitPrice: decimal.NewFromInt(3000)}}})
	assert.ErrorIs(t, err, domain.ErrInvalidInput, "con todos los locales hay que indicar el local")
}

func TestSesionExpiradaNoEjecutaComandos(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	manager := e.login(t, "V1", "5678")
	o := e.create(t, manager)
	require.NoError(t, e.auth.Revoke(ctx, manager.ID))

	_, err := e.orders.TransitionOrder(ctx, manager, o.ID, transition(entity.OrderPending, entity.OrderPreparing))
	assert.ErrorIs(t, err, domain.ErrSessionExpired)
}

// ──────────────────────────────────────────────────────────────────────────────
// Publicación y comprobante
// ──────────────────────────────────────────────────────────────────────────────

func TestFalloDePublicacionNoRevierteElCommit(t *testing.T) {
	e := newEnv(t, failingBus{})
	ctx := context.Background()
	manager := e.login(t, "V1", "5678")
	o := e.create(t, manager)

	_, err := e.orders.TransitionOrder(ctx, manager, o.ID, transition(entity.OrderPending, entity.OrderPreparing))
	require.NoError(t, err)
	stored, err := e.store.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.OrderPreparing, stored.Status)
}

func TestReceipt(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	cashier := e.login(t, "V1", "2222")
	o := e.create(t, e.login(t, "V1", "5678"))

	_, _, err := e.orders.Receipt(ctx, cashier, o.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidInput, "sin pago no hay comprobante")

	_, err = e.orders.RecordPayment(ctx, cashier, o.ID, dto.PaymentRequest{Status: "paid"})
	require.NoError(t, err)
	pdf, name, err := e.orders.Receipt(ctx, cashier, o.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, pdf)
	assert.Contains(t, name, "comprobante-")
}
