// Package access define la política de acceso por rol: qué capacidades tiene cada rol
// y a qué ruta se redirige tras el login. Es una tabla determinista, sin I/O.
package access

import "github.com/jhoicas/comandas-api/internal/domain/entity"

// Capability etiqueta de una acción autorizable.
type Capability string

// Capacidades operativas.
const (
	CapOrdersView      Capability = "orders.view"
	CapOrdersCreate    Capability = "orders.create"
	CapOrdersPrepare   Capability = "orders.prepare"
	CapOrdersServe     Capability = "orders.serve"
	CapOrdersComplete  Capability = "orders.complete"
	CapOrdersCancel    Capability = "orders.cancel"
	CapPayments        Capability = "payments.record"
	CapEventsSubscribe Capability = "events.subscribe"
	CapTablesManage    Capability = "tables.manage"
	CapAnomaliesView   Capability = "anomalies.view"
)

// Etiquetas de capacidad propias de cada rol (una por rol).
const (
	CapOwner     Capability = "owner"
	CapManager   Capability = "manager"
	CapCashier   Capability = "cashier"
	CapWaiter    Capability = "waiter"
	CapKitchen   Capability = "kitchen"
	CapReception Capability = "reception"
)

// Route ruta de aterrizaje de la UI.
type Route string

var operational = map[entity.Role]map[Capability]struct{}{
	entity.RoleCashier: set(CapCashier,
		CapOrdersView, CapOrdersCreate, CapOrdersComplete, CapOrdersCancel,
		CapPayments, CapEventsSubscribe),
	entity.RoleWaiter: set(CapWaiter,
		CapOrdersView, CapOrdersCreate, CapOrdersServe, CapOrdersCancel, CapEventsSubscribe),
	entity.RoleKitchen: set(CapKitchen,
		CapOrdersView, CapOrdersPrepare, CapEventsSubscribe),
	entity.RoleReception: set(CapReception,
		CapOrdersView, CapOrdersCreate, CapTablesManage, CapEventsSubscribe),
}

var routes = map[entity.Role]Route{
	entity.RoleOwner:     "/owner",
	entity.RoleManager:   "/manager",
	entity.RoleCashier:   "/cashier",
	entity.RoleWaiter:    "/waiter",
	entity.RoleKitchen:   "/kitchen",
	entity.RoleReception: "/reception",
}

// LoginRoute destino para roles desconocidos.
const LoginRoute Route = "/login"

// Can informa si role tiene la capacidad. Owner y manager cumplen cualquier capacidad;
// los roles operativos solo su propio conjunto. Sin regla explícita se deniega.
func Can(role entity.Role, capability Capability) bool {
	if capability == "" || !role.Valid() {
		return false
	}
	if role.Privileged() {
		return true
	}
	caps, ok := operational[role]
	if !ok {
		return false
	}
	_, ok = caps[capability]
	return ok
}

// DefaultRoute ruta de aterrizaje del rol. Solo para redirecciones, nunca para autorizar.
func DefaultRoute(role entity.Role) Route {
	if r, ok := routes[role]; ok {
		return r
	}
	return LoginRoute
}

// ForOrderStatus capacidad requerida para llevar un pedido al estado indicado.
// Devuelve "" para estados a los que no se llega por transición (pending).
func ForOrderStatus(to entity.OrderStatus) Capability {
	switch to {
	case entity.OrderPreparing, entity.OrderReady:
		return CapOrdersPrepare
	case entity.OrderServed:
		return CapOrdersServe
	case entity.OrderCompleted:
		return CapOrdersComplete
	case entity.OrderCancelled:
		return CapOrdersCancel
	}
	return ""
}

// ForItemStatus capacidad requerida para llevar una línea al estado indicado.
func ForItemStatus(to entity.ItemStatus) Capability {
	switch to {
	case entity.ItemPreparing, entity.ItemReady:
		return CapOrdersPrepare
	case entity.ItemServed:
		return CapOrdersServe
	case entity.ItemCancelled:
		return CapOrdersCancel
	}
	return ""
}

func set(caps ...Capability) map[Capability]struct{} {
	m := make(map[Capability]struct{}, len(caps))
	for _, c := range caps {
		m[c] = struct{}{}
	}
	return m
}
