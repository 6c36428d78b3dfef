package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jhoicas/comandas-api/internal/domain"
)

// isUniqueViolation verifica si un error es una violación de constraint único (23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return strings.Contains(err.Error(), "23505")
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// isTransient fallos en los que la sentencia no se aplicó y reintentar es seguro:
// la petición no llegó a enviarse, no hubo conexión, o el servidor abortó la tx
// (serialización, deadlock, apagado administrativo).
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if pgconn.SafeToRetry(err) {
		return true
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", // serialization_failure
			"40P01", // deadlock_detected
			"57P01", // admin_shutdown
			"57P03": // cannot_connect_now
			return true
		}
		return strings.HasPrefix(pgErr.Code, "08") // connection_exception
	}
	return false
}

// isSafeWriteRetry fallos de escritura que garantizan que nada se aplicó: la petición
// no salió o el servidor abortó la transacción. Un corte de conexión durante el COMMIT
// puede haber confirmado el cambio y no se reintenta.
func isSafeWriteRetry(err error) bool {
	if err == nil {
		return false
	}
	if pgconn.SafeToRetry(err) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

// Retry política de reintentos con backoff exponencial ante fallos transitorios.
type Retry struct {
	Attempts int
	Base     time.Duration
}

// Do ejecuta una lectura hasta Attempts veces. Errores de negocio (ErrConflict,
// ErrNotFound) y errores no transitorios se devuelven tal cual; agotados los intentos se
// devuelve un error que envuelve domain.ErrStoreUnavailable.
func (r Retry) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	return r.run(ctx, op, fn, isTransient)
}

// DoWrite como Do pero solo reintenta cuando la escritura seguro no se aplicó. Un fallo
// de conexión de resultado incierto se devuelve sin reintentar, envuelto en
// domain.ErrStoreUnavailable.
func (r Retry) DoWrite(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	return r.run(ctx, op, fn, isSafeWriteRetry)
}

func (r Retry) run(ctx context.Context, op string, fn func(ctx context.Context) error, retryable func(error) bool) error {
	attempts := r.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			if isTransient(err) {
				return fmt.Errorf("%w: %s: %w", domain.ErrStoreUnavailable, op, err)
			}
			return err
		}
		if i == attempts-1 {
			break
		}
		wait := r.Base << i
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %s: %w", domain.ErrStoreUnavailable, op, ctx.Err())
		case <-time.After(wait):
		}
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrStoreUnavailable, op, err)
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefStr(p *string) string {
	if p != nil {
		return *p
	}
	return ""
}
