package auth

import (
	"sync"
	"time"
)

// PinLimiter cuenta fallos consecutivos de PIN por local. Tras maxAttempts fallos el local
// queda bloqueado durante lockout; un acierto reinicia el contador.
//
// Cada intento reserva su cupo en Allow antes de verificar el PIN y lo liquida con
// Failure, Success o Release. Los intentos en curso cuentan contra el límite, así que
// una ráfaga concurrente no puede verificar más de maxAttempts PIN antes del bloqueo.
type PinLimiter struct {
	mu          sync.Mutex
	maxAttempts int
	lockout     time.Duration
	venues      map[string]*pinAttempts
}

type pinAttempts struct {
	failures    int
	inFlight    int
	lockedUntil time.Time
}

// NewPinLimiter construye el limitador. maxAttempts <= 0 lo desactiva.
func NewPinLimiter(maxAttempts int, lockout time.Duration) *PinLimiter {
	return &PinLimiter{
		maxAttempts: maxAttempts,
		lockout:     lockout,
		venues:      make(map[string]*pinAttempts),
	}
}

// Allow reserva un intento en el local. Si no se admite devuelve false y, cuando el local
// está bloqueado, hasta cuándo. Con el cupo ocupado por intentos en curso devuelve
// false con tiempo cero.
func (l *PinLimiter) Allow(venueID string, now time.Time) (bool, time.Time) {
	if l.maxAttempts <= 0 {
		return true, time.Time{}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	a, ok := l.venues[venueID]
	if !ok {
		a = &pinAttempts{}
		l.venues[venueID] = a
	}
	if !a.lockedUntil.IsZero() {
		if now.Before(a.lockedUntil) {
			return false, a.lockedUntil
		}
		// Bloqueo vencido: se empieza de cero.
		a.failures = 0
		a.lockedUntil = time.Time{}
	}
	if a.failures+a.inFlight >= l.maxAttempts {
		return false, time.Time{}
	}
	a.inFlight++
	return true, time.Time{}
}

// Failure liquida un intento fallido. Devuelve true si este fallo activó el bloqueo.
func (l *PinLimiter) Failure(venueID string, now time.Time) bool {
	if l.maxAttempts <= 0 {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	a, ok := l.venues[venueID]
	if !ok {
		a = &pinAttempts{}
		l.venues[venueID] = a
	}
	if a.inFlight > 0 {
		a.inFlight--
	}
	if !a.lockedUntil.IsZero() && !now.Before(a.lockedUntil) {
		a.failures = 0
		a.lockedUntil = time.Time{}
	}
	a.failures++
	if a.failures >= l.maxAttempts {
		a.lockedUntil = now.Add(l.lockout)
		return true
	}
	return false
}

// Success liquida un intento correcto y reinicia el contador del local.
func (l *PinLimiter) Success(venueID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	a, ok := l.venues[venueID]
	if !ok {
		return
	}
	if a.inFlight > 0 {
		a.inFlight--
	}
	a.failures = 0
	a.lockedUntil = time.Time{}
	l.dropIdle(venueID, a)
}

// Release libera la reserva sin contar fallo: local desconocido o error del almacén.
func (l *PinLimiter) Release(venueID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	a, ok := l.venues[venueID]
	if !ok {
		return
	}
	if a.inFlight > 0 {
		a.inFlight--
	}
	l.dropIdle(venueID, a)
}

// Tracked locales con estado en el limitador.
func (l *PinLimiter) Tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.venues)
}

func (l *PinLimiter) dropIdle(venueID string, a *pinAttempts) {
	if a.inFlight == 0 && a.failures == 0 && a.lockedUntil.IsZero() {
		delete(l.venues, venueID)
	}
}
