package http

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/comandas-api/internal/application/dto"
	"github.com/jhoicas/comandas-api/internal/domain/access"
	"github.com/jhoicas/comandas-api/internal/domain/entity"
	"github.com/jhoicas/comandas-api/pkg/jwt"
)

// LocalSession key de c.Locals con la sesión resuelta.
const LocalSession = "session"

// sessionResolver es lo mínimo que necesita el middleware. Lo implementa *auth.AuthUseCase.
type sessionResolver interface {
	Resolve(ctx context.Context, sessionID string) (*entity.Session, error)
	Touch(ctx context.Context, sess *entity.Session)
}

// AuthMiddleware valida el Bearer Token, resuelve la sesión contra el almacén y registra
// actividad. El token solo referencia la sesión: una sesión revocada o inactiva responde
// SESSION_EXPIRED aunque la firma siga vigente.
func AuthMiddleware(jwtSecret string, sessions sessionResolver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString, ok := bearerToken(c)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "MISSING_TOKEN", Message: "Authorization header requerido"})
		}
		claims, err := jwt.Parse(jwtSecret, tokenString)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "INVALID_TOKEN", Message: "token inválido o expirado"})
		}
		sess, err := sessions.Resolve(c.UserContext(), claims.SessionID)
		if err != nil {
			return writeError(c, err)
		}
		sessions.Touch(c.UserContext(), sess)
		c.Locals(LocalSession, sess)
		return c.Next()
	}
}

// bearerToken extrae el token del header Authorization. Los EventSource del navegador no
// pueden enviar headers, así que se acepta también ?access_token=.
func bearerToken(c *fiber.Ctx) (string, bool) {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		tok := strings.TrimSpace(c.Query("access_token"))
		return tok, tok != ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	tok := strings.TrimSpace(parts[1])
	return tok, tok != ""
}

// RequireCapability corta la petición si el rol de la sesión no tiene la capacidad.
// Debe usarse DESPUÉS de AuthMiddleware. Los casos de uso vuelven a comprobarla.
func RequireCapability(capability access.Capability) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess := GetSession(c)
		if sess == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "SESSION_EXPIRED", Message: "sesión requerida"})
		}
		if !access.Can(sess.Role, capability) {
			return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
				Code:    "ACCESS_DENIED",
				Message: "el rol " + string(sess.Role) + " no tiene " + string(capability),
			})
		}
		return c.Next()
	}
}

// GetSession devuelve la sesión del contexto (después del middleware de auth).
func GetSession(c *fiber.Ctx) *entity.Session {
	v := c.Locals(LocalSession)
	if v == nil {
		return nil
	}
	s, _ := v.(*entity.Session)
	return s
}
