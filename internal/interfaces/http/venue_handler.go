package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/comandas-api/internal/application/usecase"
)

// VenueHandler listados de locales.
type VenueHandler struct {
	uc *usecase.VenueUseCase
}

// NewVenueHandler construye el handler.
func NewVenueHandler(uc *usecase.VenueUseCase) *VenueHandler {
	return &VenueHandler{uc: uc}
}

// ListActive locales activos para el selector del login (público).
// GET /api/venues/active
func (h *VenueHandler) ListActive(c *fiber.Ctx) error {
	out, err := h.uc.ListActive(c.UserContext())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// List locales dentro del scope de la sesión.
// GET /api/venues
func (h *VenueHandler) List(c *fiber.Ctx) error {
	out, err := h.uc.ListVisible(c.UserContext(), GetSession(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}
