package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/comandas-api/internal/application/auth"
	"github.com/jhoicas/comandas-api/internal/application/dto"
	"github.com/jhoicas/comandas-api/internal/domain/entity"
)

// AuthHandler maneja login por PIN, logout y selección de scope.
type AuthHandler struct {
	uc *auth.AuthUseCase
}

// NewAuthHandler construye el handler de auth.
func NewAuthHandler(uc *auth.AuthUseCase) *AuthHandler {
	return &AuthHandler{uc: uc}
}

// Login godoc
// @Summary      Iniciar sesión con PIN
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body  dto.LoginRequest  true  "venue_id, pin"
// @Success      200   {object}  dto.LoginResponse
// @Failure      401   {object}  dto.ErrorResponse
// @Failure      429   {object}  dto.ErrorResponse
// @Router       /api/auth/login [post]
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var in dto.LoginRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	if in.VenueID == "" || in.PIN == "" {
		return validation(c, "venue_id y pin son requeridos")
	}
	out, err := h.uc.Login(c.UserContext(), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// Logout revoca la sesión actual. Idempotente.
// POST /api/auth/logout
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	if err := h.uc.Logout(c.UserContext(), GetSession(c)); err != nil {
		return writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Me devuelve la sesión vigente.
// GET /api/auth/me
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	sess := GetSession(c)
	if sess == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "SESSION_EXPIRED", Message: "sesión requerida"})
	}
	return c.JSON(auth.ToMeResponse(sess))
}

// SelectScope cambia el scope de locales. venue_id nulo pide todos los locales; los roles
// operativos quedan fijados a su local sin error.
// PUT /api/auth/scope
func (h *AuthHandler) SelectScope(c *fiber.Ctx) error {
	var in dto.SelectScopeRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	requested := entity.AllVenues()
	if in.VenueID != nil {
		if *in.VenueID == "" {
			return validation(c, "venue_id vacío; use null para todos los locales")
		}
		requested = entity.SingleVenue(*in.VenueID)
	}
	sess, err := h.uc.SelectScope(c.UserContext(), GetSession(c), requested)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(auth.ToSessionResponse(sess))
}
