package http

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/jhoicas/comandas-api/internal/application/ordering"
)

// DefaultHeartbeat intervalo entre latidos del stream SSE.
const DefaultHeartbeat = 10 * time.Second

// EventHandler stream SSE de eventos de cambio de un local.
type EventHandler struct {
	orders    *ordering.OrderUseCase
	sessions  sessionResolver
	heartbeat time.Duration
	log       zerolog.Logger
}

// NewEventHandler construye el handler. heartbeat <= 0 usa DefaultHeartbeat.
func NewEventHandler(orders *ordering.OrderUseCase, sessions sessionResolver, heartbeat time.Duration, log zerolog.Logger) *EventHandler {
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeat
	}
	return &EventHandler{orders: orders, sessions: sessions, heartbeat: heartbeat, log: log}
}

// Stream GET /api/venues/:id/events
//
// Cada latido vuelve a validar la sesión contra el almacén sin contarlo como actividad;
// si expiró o fue revocada se envía "session_expired" y se cierra el stream. Al
// reconectar, el terminal debe releer el estado actual: no hay reenvío de eventos perdidos.
func (h *EventHandler) Stream(c *fiber.Ctx) error {
	sess := GetSession(c)
	venueID := c.Params("id")

	// El stream sigue vivo después de que el handler retorna: el contexto es propio.
	ctx, cancel := context.WithCancel(context.Background())
	sub, err := h.orders.Subscribe(ctx, sess, venueID)
	if err != nil {
		cancel()
		return writeError(c, err)
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	log := h.log.With().Str("venue_id", venueID).Str("session_id", sess.ID).Str("subscription_id", sub.ID()).Logger()
	log.Debug().Msg("stream de eventos abierto")

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer cancel()
		defer sub.Close()
		defer log.Debug().Msg("stream de eventos cerrado")

		if err := writeSSE(w, "ready", "", map[string]string{"venue_id": venueID}); err != nil {
			return
		}
		ticker := time.NewTicker(h.heartbeat)
		defer ticker.Stop()
		for {
			select {
			case ev, ok := <-sub.Events():
				if !ok {
					// Desalojado por lento o bus cerrado: el terminal debe reconectar y releer.
					_ = writeSSE(w, "resync", "", map[string]string{"venue_id": venueID})
					return
				}
				if err := writeSSE(w, "change", fmt.Sprint(ev.Seq), ordering.ToChangeEventResponse(ev)); err != nil {
					return
				}
			case <-ticker.C:
				if _, err := h.sessions.Resolve(ctx, sess.ID); err != nil {
					_ = writeSSE(w, "session_expired", "", map[string]string{"session_id": sess.ID})
					return
				}
				if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	})
	return nil
}

// writeSSE escribe un evento en formato text/event-stream y hace flush. Un error indica
// que el cliente se desconectó.
func writeSSE(w *bufio.Writer, event, id string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if id != "" {
		if _, err := fmt.Fprintf(w, "id: %s\n", id); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	return w.Flush()
}
