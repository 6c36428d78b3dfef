package domain

import (
	"errors"
	"fmt"
)

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound            = errors.New("recurso no encontrado")
	ErrInvalidInput        = errors.New("entrada inválida")
	ErrConflict            = errors.New("conflicto con el estado actual")
	ErrInvalidCredentials  = errors.New("credenciales inválidas")
	ErrTooManyAttempts     = errors.New("demasiados intentos de PIN, espere antes de reintentar")
	ErrSessionExpired      = errors.New("sesión expirada")
	ErrAccessDenied        = errors.New("acceso denegado")
	ErrInvalidTransition   = errors.New("transición de estado inválida")
	ErrStoreUnavailable    = errors.New("almacén de pedidos no disponible")
	ErrAnomalousTransition = errors.New("transición anómala, requiere conciliación manual")
)

// TransitionError describe una transición rechazada con el estado esperado por el cliente
// y el estado realmente persistido. Cumple errors.Is(err, ErrInvalidTransition).
type TransitionError struct {
	Entity    string // "order" | "order_item" | "payment"
	ID        string
	Expected  string // estado que el terminal creía vigente (vacío si no aplica)
	Actual    string // estado persistido al momento de validar
	Requested string
}

func (e *TransitionError) Error() string {
	if e.Expected != "" && e.Expected != e.Actual {
		return fmt.Sprintf("%s %s: se esperaba %q pero el estado actual es %q (solicitado %q)",
			e.Entity, e.ID, e.Expected, e.Actual, e.Requested)
	}
	return fmt.Sprintf("%s %s: no se permite %q -> %q", e.Entity, e.ID, e.Actual, e.Requested)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// Tipos de anomalía conocidos.
const (
	AnomalyCancelledAfterPayment = "cancelled_after_payment"
)

// AnomalyError marca una transición aceptada por la máquina de estados que requiere
// revisión manual (p. ej. cancelar un pedido ya pagado). No bloquea el commit.
type AnomalyError struct {
	Kind          string
	OrderID       string
	FromStatus    string
	ToStatus      string
	PaymentStatus string
}

func (e *AnomalyError) Error() string {
	return fmt.Sprintf("anomalía %s en pedido %s (%s -> %s, pago %s)",
		e.Kind, e.OrderID, e.FromStatus, e.ToStatus, e.PaymentStatus)
}

func (e *AnomalyError) Unwrap() error { return ErrAnomalousTransition }
