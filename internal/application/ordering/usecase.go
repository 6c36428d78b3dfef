// Package ordering contiene los comandos sobre pedidos. Cada comando recibe la sesión
// explícitamente, la re-valida, comprueba el scope del local, valida la transición contra
// el estado persistido, confirma con compare-and-set y publica exactamente un ChangeEvent.
package ordering

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jhoicas/comandas-api/internal/application/dto"
	"github.com/jhoicas/comandas-api/internal/application/ports"
	"github.com/jhoicas/comandas-api/internal/domain"
	"github.com/jhoicas/comandas-api/internal/domain/access"
	"github.com/jhoicas/comandas-api/internal/domain/entity"
	"github.com/jhoicas/comandas-api/internal/domain/orderflow"
	"github.com/jhoicas/comandas-api/internal/domain/repository"
	"github.com/jhoicas/comandas-api/internal/domain/scope"
)

const defaultPublishTimeout = 5 * time.Second

// OrderUseCase comandos y consultas de pedidos.
type OrderUseCase struct {
	orders    repository.OrderRepository
	anomalies repository.AnomalyRepository
	venues    repository.VenueRepository
	bus       ports.ChangeBus
	authz     Authorizer
	receipts  ReceiptGenerator
	locks     *venueLocks

	publishTimeout time.Duration
	now            func() time.Time
	log            zerolog.Logger
}

// NewOrderUseCase construye el caso de uso. receipts puede ser nil (Receipt devuelve error).
func NewOrderUseCase(
	orders repository.OrderRepository,
	anomalies repository.AnomalyRepository,
	venues repository.VenueRepository,
	bus ports.ChangeBus,
	authz Authorizer,
	receipts ReceiptGenerator,
	log zerolog.Logger,
) *OrderUseCase {
	return &OrderUseCase{
		orders:         orders,
		anomalies:      anomalies,
		venues:         venues,
		bus:            bus,
		authz:          authz,
		receipts:       receipts,
		locks:          newVenueLocks(),
		publishTimeout: defaultPublishTimeout,
		now:            time.Now,
		log:            log,
	}
}

// WithClock reemplaza el reloj (tests).
func (uc *OrderUseCase) WithClock(now func() time.Time) *OrderUseCase {
	uc.now = now
	return uc
}

// WithPublishTimeout tope de la publicación posterior al commit.
func (uc *OrderUseCase) WithPublishTimeout(d time.Duration) *OrderUseCase {
	if d > 0 {
		uc.publishTimeout = d
	}
	return uc
}

// CreateOrder crea un pedido pending/unpaid en el local del scope de la sesión.
// Con scope "todos los locales" el local debe venir en la petición.
func (uc *OrderUseCase) CreateOrder(ctx context.Context, sess *entity.Session, in dto.CreateOrderRequest) (*dto.OrderResponse, error) {
	cur, err := uc.authz.Authorize(ctx, sess, access.CapOrdersCreate)
	if err != nil {
		return nil, err
	}
	venueID, err := uc.targetVenue(ctx, scope.For(*cur), in.VenueID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.TableID) == "" {
		return nil, fmt.Errorf("%w: table_id requerido", domain.ErrInvalidInput)
	}
	if len(in.Items) == 0 {
		return nil, fmt.Errorf("%w: el pedido debe tener al menos una línea", domain.ErrInvalidInput)
	}

	now := uc.now()
	o := &entity.Order{
		ID:            uuid.New().String(),
		VenueID:       venueID,
		TableID:       in.TableID,
		StaffID:       cur.StaffID,
		Status:        entity.OrderPending,
		PaymentStatus: entity.PaymentUnpaid,
		Notes:         in.Notes,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	for i, it := range in.Items {
		if strings.TrimSpace(it.Name) == "" || it.Quantity <= 0 || it.UnitPrice.IsNegative() {
			return nil, fmt.Errorf("%w: línea %d inválida (nombre, cantidad > 0, precio >= 0)", domain.ErrInvalidInput, i+1)
		}
		o.Items = append(o.Items, entity.OrderItem{
			ID:        uuid.New().String(),
			OrderID:   o.ID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Status:    entity.ItemPending,
			Notes:     it.Notes,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	o.RecalculateTotal()

	unlock := uc.locks.lock(venueID)
	defer unlock()
	if err := uc.orders.Insert(ctx, o); err != nil {
		return nil, err
	}
	uc.log.Info().Str("order_id", o.ID).Str("venue_id", venueID).Str("staff_id", cur.StaffID).Msg("pedido creado")
	uc.publish(ctx, entity.EntityOrder, o.ID, entity.ChangeCreated, string(o.Status), o)

	out := ToOrderResponse(o)
	return &out, nil
}

// TransitionOrder cambia el estado de un pedido. in.ExpectedStatus es el estado que el
// terminal tiene en pantalla; si ya no coincide con el persistido se rechaza con
// TransitionError (Expected vs Actual) en lugar de aplicarse.
func (uc *OrderUseCase) TransitionOrder(ctx context.Context, sess *entity.Session, orderID string, in dto.TransitionRequest) (*dto.CommandResponse, error) {
	to := entity.OrderStatus(in.Status)
	expected := entity.OrderStatus(in.ExpectedStatus)
	if !to.Valid() || !expected.Valid() {
		return nil, fmt.Errorf("%w: estado desconocido", domain.ErrInvalidInput)
	}
	capability := access.ForOrderStatus(to)
	if capability == "" {
		return nil, &domain.TransitionError{Entity: entity.EntityOrder, ID: orderID, Expected: string(expected), Actual: string(expected), Requested: string(to)}
	}
	cur, err := uc.authz.Authorize(ctx, sess, capability)
	if err != nil {
		return nil, err
	}
	sc := scope.For(*cur)
	o, err := uc.load(ctx, sc, orderID)
	if err != nil {
		return nil, err
	}

	unlock := uc.locks.lock(o.VenueID)
	defer unlock()
	// Relectura bajo el lock del local: se valida contra el estado autoritativo.
	if o, err = uc.load(ctx, sc, orderID); err != nil {
		return nil, err
	}
	if o.Status != expected {
		return nil, &domain.TransitionError{Entity: entity.EntityOrder, ID: o.ID, Expected: string(expected), Actual: string(o.Status), Requested: string(to)}
	}
	res, err := orderflow.ApplyTransition(*o, to, uc.now())
	if err != nil {
		return nil, err
	}
	committed, err := uc.orders.UpdateStatus(ctx, o.ID, o.Status, to, res.Order.UpdatedAt)
	if err != nil {
		return nil, uc.conflict(ctx, err, entity.EntityOrder, o.ID, string(expected), string(to))
	}

	out := &dto.CommandResponse{Order: ToOrderResponse(committed)}
	if res.Anomaly != nil {
		out.Anomaly = uc.recordAnomaly(ctx, res.Anomaly, committed, cur.StaffID)
	}
	uc.log.Info().Str("order_id", o.ID).Str("venue_id", o.VenueID).
		Str("from", string(o.Status)).Str("to", string(to)).Str("staff_id", cur.StaffID).
		Msg("transición de pedido")
	uc.publish(ctx, entity.EntityOrder, o.ID, entity.ChangeStatus, string(to), committed)
	return out, nil
}

// TransitionItem cambia el estado de una línea. in.ExpectedStatus es el estado esperado
// de la línea; la confirmación exige además que el pedido siga en el estado validado.
func (uc *OrderUseCase) TransitionItem(ctx context.Context, sess *entity.Session, orderID, itemID string, in dto.TransitionRequest) (*dto.OrderResponse, error) {
	to := entity.ItemStatus(in.Status)
	expected := entity.ItemStatus(in.ExpectedStatus)
	if !to.Valid() || !expected.Valid() {
		return nil, fmt.Errorf("%w: estado de línea desconocido", domain.ErrInvalidInput)
	}
	capability := access.ForItemStatus(to)
	if capability == "" {
		return nil, &domain.TransitionError{Entity: entity.EntityOrderItem, ID: itemID, Expected: string(expected), Actual: string(expected), Requested: string(to)}
	}
	cur, err := uc.authz.Authorize(ctx, sess, capability)
	if err != nil {
		return nil, err
	}
	sc := scope.For(*cur)
	o, err := uc.load(ctx, sc, orderID)
	if err != nil {
		return nil, err
	}

	unlock := uc.locks.lock(o.VenueID)
	defer unlock()
	if o, err = uc.load(ctx, sc, orderID); err != nil {
		return nil, err
	}
	item, ok := o.Item(itemID)
	if !ok {
		return nil, domain.ErrNotFound
	}
	if item.Status != expected {
		return nil, &domain.TransitionError{Entity: entity.EntityOrderItem, ID: itemID, Expected: string(expected), Actual: string(item.Status), Requested: string(to)}
	}
	next, err := orderflow.ApplyItemTransition(*o, itemID, to, uc.now())
	if err != nil {
		return nil, err
	}
	committed, err := uc.orders.UpdateItemStatus(ctx, o.ID, itemID, o.Status, expected, to, next.UpdatedAt)
	if err != nil {
		return nil, uc.conflict(ctx, err, entity.EntityOrderItem, itemID, string(expected), string(to))
	}
	uc.log.Info().Str("order_id", o.ID).Str("item_id", itemID).Str("venue_id", o.VenueID).
		Str("to", string(to)).Str("staff_id", cur.StaffID).Msg("transición de línea")
	uc.publish(ctx, entity.EntityOrderItem, itemID, entity.ChangeItemStatus, string(to), committed)

	out := ToOrderResponse(committed)
	return &out, nil
}

// RecordPayment marca el pedido como pagado (unpaid → paid) y sella paidAt.
func (uc *OrderUseCase) RecordPayment(ctx context.Context, sess *entity.Session, orderID string, in dto.PaymentRequest) (*dto.OrderResponse, error) {
	to := entity.PaymentStatus(in.Status)
	if to != entity.PaymentPaid {
		return nil, fmt.Errorf("%w: solo se admite status=paid", domain.ErrInvalidInput)
	}
	method := in.Method
	if method == "" {
		method = entity.PaymentMethodCash
	}
	switch method {
	case entity.PaymentMethodCash, entity.PaymentMethodCard, entity.PaymentMethodTransfer:
	default:
		return nil, fmt.Errorf("%w: método de pago %q", domain.ErrInvalidInput, method)
	}
	cur, err := uc.authz.Authorize(ctx, sess, access.CapPayments)
	if err != nil {
		return nil, err
	}
	sc := scope.For(*cur)
	o, err := uc.load(ctx, sc, orderID)
	if err != nil {
		return nil, err
	}

	unlock := uc.locks.lock(o.VenueID)
	defer unlock()
	if o, err = uc.load(ctx, sc, orderID); err != nil {
		return nil, err
	}
	next, err := orderflow.ApplyPayment(*o, to, method, uc.now())
	if err != nil {
		return nil, err
	}
	committed, err := uc.orders.UpdatePayment(ctx, o.ID, o.PaymentStatus, to, method, *next.PaidAt)
	if err != nil {
		return nil, uc.conflict(ctx, err, "payment", o.ID, string(o.PaymentStatus), string(to))
	}
	uc.log.Info().Str("order_id", o.ID).Str("venue_id", o.VenueID).Str("method", method).
		Str("total", committed.Total.StringFixed(2)).Str("staff_id", cur.StaffID).Msg("pago registrado")
	uc.publish(ctx, entity.EntityOrder, o.ID, entity.ChangePayment, string(to), committed)

	out := ToOrderResponse(committed)
	return &out, nil
}

// Get devuelve un pedido del scope de la sesión.
func (uc *OrderUseCase) Get(ctx context.Context, sess *entity.Session, orderID string) (*dto.OrderResponse, error) {
	cur, err := uc.authz.Authorize(ctx, sess, access.CapOrdersView)
	if err != nil {
		return nil, err
	}
	o, err := uc.load(ctx, scope.For(*cur), orderID)
	if err != nil {
		return nil, err
	}
	out := ToOrderResponse(o)
	return &out, nil
}

// List lista pedidos del scope de la sesión.
func (uc *OrderUseCase) List(ctx context.Context, sess *entity.Session, q dto.OrderListQuery) (*dto.OrderListResponse, error) {
	cur, err := uc.authz.Authorize(ctx, sess, access.CapOrdersView)
	if err != nil {
		return nil, err
	}
	q.DefaultPage()
	filter := entity.OrderFilter{TableID: q.TableID, Limit: q.Limit, Offset: q.Offset}
	if q.Status != "" {
		for _, s := range strings.Split(q.Status, ",") {
			st := entity.OrderStatus(strings.TrimSpace(s))
			if !st.Valid() {
				return nil, fmt.Errorf("%w: estado %q", domain.ErrInvalidInput, s)
			}
			filter.Statuses = append(filter.Statuses, st)
		}
	}
	if q.PaymentStatus != "" {
		ps := entity.PaymentStatus(q.PaymentStatus)
		if !ps.Valid() {
			return nil, fmt.Errorf("%w: estado de pago %q", domain.ErrInvalidInput, q.PaymentStatus)
		}
		filter.PaymentStatus = ps
	}
	list, err := uc.orders.Query(ctx, scope.For(*cur), filter)
	if err != nil {
		return nil, err
	}
	items := make([]dto.OrderResponse, 0, len(list))
	for _, o := range list {
		items = append(items, ToOrderResponse(o))
	}
	return &dto.OrderListResponse{
		Items: items,
		Page:  dto.PageResponse{Limit: q.Limit, Offset: q.Offset},
	}, nil
}

// Receipt genera el comprobante PDF de un pedido pagado.
func (uc *OrderUseCase) Receipt(ctx context.Context, sess *entity.Session, orderID string) ([]byte, string, error) {
	cur, err := uc.authz.Authorize(ctx, sess, access.CapPayments)
	if err != nil {
		return nil, "", err
	}
	o, err := uc.load(ctx, scope.For(*cur), orderID)
	if err != nil {
		return nil, "", err
	}
	if o.PaymentStatus != entity.PaymentPaid {
		return nil, "", fmt.Errorf("%w: el pedido no está pagado", domain.ErrInvalidInput)
	}
	if uc.receipts == nil {
		return nil, "", errors.New("comprobante: generador no configurado")
	}
	venue, err := uc.venues.GetByID(ctx, o.VenueID)
	if err != nil {
		return nil, "", fmt.Errorf("comprobante: obtener local: %w", err)
	}
	if venue == nil {
		return nil, "", domain.ErrNotFound
	}
	pdf, err := uc.receipts.GenerateReceipt(venue, o)
	if err != nil {
		return nil, "", fmt.Errorf("comprobante: %w", err)
	}
	return pdf, fmt.Sprintf("comprobante-%s.pdf", shortID(o.ID)), nil
}

// ListAnomalies anomalías abiertas del scope de la sesión.
func (uc *OrderUseCase) ListAnomalies(ctx context.Context, sess *entity.Session, page dto.PageRequest) ([]dto.AnomalyResponse, error) {
	cur, err := uc.authz.Authorize(ctx, sess, access.CapAnomaliesView)
	if err != nil {
		return nil, err
	}
	page.DefaultPage()
	list, err := uc.anomalies.ListOpen(ctx, scope.For(*cur), page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}
	out := make([]dto.AnomalyResponse, 0, len(list))
	for _, a := range list {
		out = append(out, ToAnomalyResponse(a))
	}
	return out, nil
}

// Subscribe abre una suscripción al canal del local. El local debe estar en el scope.
func (uc *OrderUseCase) Subscribe(ctx context.Context, sess *entity.Session, venueID string) (ports.Subscription, error) {
	cur, err := uc.authz.Authorize(ctx, sess, access.CapEventsSubscribe)
	if err != nil {
		return nil, err
	}
	if !scope.For(*cur).Contains(venueID) {
		return nil, domain.ErrAccessDenied
	}
	venue, err := uc.venues.GetByID(ctx, venueID)
	if err != nil {
		return nil, err
	}
	if venue == nil || !venue.IsActive {
		return nil, domain.ErrNotFound
	}
	return uc.bus.Subscribe(ctx, venueID)
}

// load obtiene el pedido; uno inexistente o fuera del scope se informa como ErrNotFound.
func (uc *OrderUseCase) load(ctx context.Context, sc entity.VenueScope, orderID string) (*entity.Order, error) {
	o, err := uc.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o == nil || !sc.Contains(o.VenueID) {
		return nil, domain.ErrNotFound
	}
	if sc.IsAll() {
		v, err := uc.venues.GetByID(ctx, o.VenueID)
		if err != nil {
			return nil, err
		}
		if v == nil || !v.IsActive {
			return nil, domain.ErrNotFound
		}
	}
	return o, nil
}

func (uc *OrderUseCase) targetVenue(ctx context.Context, sc entity.VenueScope, requested string) (string, error) {
	venueID := requested
	if venueID == "" {
		id, ok := sc.VenueID()
		if !ok {
			return "", fmt.Errorf("%w: venue_id requerido con scope de todos los locales", domain.ErrInvalidInput)
		}
		venueID = id
	}
	if !sc.Contains(venueID) {
		return "", domain.ErrAccessDenied
	}
	v, err := uc.venues.GetByID(ctx, venueID)
	if err != nil {
		return "", err
	}
	if v == nil || !v.IsActive {
		return "", domain.ErrNotFound
	}
	return venueID, nil
}

// conflict traduce un ErrConflict del almacén a TransitionError con el estado actual,
// para que el terminal refresque y reintente.
func (uc *OrderUseCase) conflict(ctx context.Context, err error, entityType, id, expected, requested string) error {
	if !errors.Is(err, domain.ErrConflict) {
		return err
	}
	te := &domain.TransitionError{Entity: entityType, ID: id, Expected: expected, Requested: requested}
	if entityType != entity.EntityOrderItem {
		if o, gerr := uc.orders.Get(ctx, id); gerr == nil && o != nil {
			te.Actual = string(o.Status)
			if entityType == "payment" {
				te.Actual = string(o.PaymentStatus)
			}
		}
	}
	return te
}

func (uc *OrderUseCase) recordAnomaly(ctx context.Context, a *domain.AnomalyError, o *entity.Order, staffID string) *dto.AnomalyResponse {
	rec := &entity.OrderAnomaly{
		ID:            uuid.New().String(),
		OrderID:       o.ID,
		VenueID:       o.VenueID,
		Kind:          a.Kind,
		FromStatus:    entity.OrderStatus(a.FromStatus),
		ToStatus:      entity.OrderStatus(a.ToStatus),
		PaymentStatus: entity.PaymentStatus(a.PaymentStatus),
		StaffID:       staffID,
		DetectedAt:    uc.now(),
	}
	uc.log.Warn().Err(a).
		Str("order_id", o.ID).
		Str("venue_id", o.VenueID).
		Str("staff_id", staffID).
		Msg("transición anómala confirmada, requiere conciliación")
	if err := uc.anomalies.Record(ctx, rec); err != nil {
		uc.log.Error().Err(err).Str("order_id", o.ID).Msg("registrar anomalía")
	}
	out := ToAnomalyResponse(rec)
	return &out
}

// publish difunde el evento tras el commit. Usa un contexto desacoplado del de la petición:
// el commit ya ocurrió y la difusión no debe cortarse porque el cliente se fue.
// Un fallo se registra; no revierte el commit.
func (uc *OrderUseCase) publish(ctx context.Context, entityType, entityID, kind, newState string, o *entity.Order) {
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), uc.publishTimeout)
	defer cancel()
	ev := entity.ChangeEvent{
		VenueID:     o.VenueID,
		EntityType:  entityType,
		EntityID:    entityID,
		Kind:        kind,
		NewState:    newState,
		Order:       o.Clone(),
		CommittedAt: o.UpdatedAt,
	}
	if err := uc.bus.Publish(pubCtx, ev); err != nil {
		uc.log.Error().Err(err).
			Str("venue_id", o.VenueID).
			Str("order_id", o.ID).
			Str("kind", kind).
			Msg("publicar cambio confirmado")
	}
}

// venueLocks serializa commit + publicación por local para que el bus reciba los eventos
// en orden de commit.
type venueLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newVenueLocks() *venueLocks {
	return &venueLocks{locks: make(map[string]*sync.Mutex)}
}

func (l *venueLocks) lock(venueID string) func() {
	l.mu.Lock()
	m, ok := l.locks[venueID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[venueID] = m
	}
	l.mu.Unlock()
	m.Lock()
	return m.Unlock
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// ToOrderResponse mapea la entidad a DTO, incluidas las acciones disponibles.
func ToOrderResponse(o *entity.Order) dto.OrderResponse {
	items := make([]dto.OrderItemResponse, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, dto.OrderItemResponse{
			ID:        it.ID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Subtotal:  it.Subtotal(),
			Status:    string(it.Status),
			Notes:     it.Notes,
		})
	}
	next := orderflow.NextStatuses(o.Status)
	nextStr := make([]string, 0, len(next))
	for _, s := range next {
		nextStr = append(nextStr, string(s))
	}
	return dto.OrderResponse{
		ID:            o.ID,
		VenueID:       o.VenueID,
		TableID:       o.TableID,
		StaffID:       o.StaffID,
		Status:        string(o.Status),
		PaymentStatus: string(o.PaymentStatus),
		PaymentMethod: o.PaymentMethod,
		Total:         o.Total,
		Notes:         o.Notes,
		Items:         items,
		NextStatuses:  nextStr,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
		PaidAt:        o.PaidAt,
	}
}

// ToChangeEventResponse evento tal como viaja al terminal.
func ToChangeEventResponse(ev entity.ChangeEvent) dto.ChangeEventResponse {
	return dto.ChangeEventResponse{
		VenueID:     ev.VenueID,
		EntityType:  ev.EntityType,
		EntityID:    ev.EntityID,
		Kind:        ev.Kind,
		NewState:    ev.NewState,
		Order:       ToOrderResponse(&ev.Order),
		CommittedAt: ev.CommittedAt,
		Seq:         ev.Seq,
	}
}

// ToAnomalyResponse mapea una anomalía registrada.
func ToAnomalyResponse(a *entity.OrderAnomaly) dto.AnomalyResponse {
	detected := a.DetectedAt
	return dto.AnomalyResponse{
		ID:            a.ID,
		OrderID:       a.OrderID,
		VenueID:       a.VenueID,
		Kind:          a.Kind,
		FromStatus:    string(a.FromStatus),
		ToStatus:      string(a.ToStatus),
		PaymentStatus: string(a.PaymentStatus),
		StaffID:       a.StaffID,
		DetectedAt:    &detected,
	}
}
