package http_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/jhoicas/comandas-api/internal/application/auth"
	"github.com/jhoicas/comandas-api/internal/application/dto"
	"github.com/jhoicas/comandas-api/internal/application/ordering"
	"github.com/jhoicas/comandas-api/internal/application/usecase"
	"github.com/jhoicas/comandas-api/internal/domain/entity"
	"github.com/jhoicas/comandas-api/internal/infrastructure/bus"
	"github.com/jhoicas/comandas-api/internal/infrastructure/memory"
	"github.com/jhoicas/comandas-api/internal/infrastructure/pdf"
	apphttp "github.com/jhoicas/comandas-api/internal/interfaces/http"
	pkgjwt "github.com/jhoicas/comandas-api/pkg/jwt"
)

// ──────────────────────────────────────────────────────────────────────────────
// Helpers de test
// ──────────────────────────────────────────────────────────────────────────────

const (
	testJWTSecret = "test-secret-key-for-unit-tests"
	testIssuer    = "comandas-test"
	venueCentro   = "11111111-1111-1111-1111-111111111111"
	venueNorte    = "22222222-2222-2222-2222-222222222222"
)

// buildTestApp API completa sobre adaptadores en memoria.
// PINs: 1234 mesero Centro, 1111 cocina Centro, 2222 caja Centro, 5678 manager Centro,
// 3333 mesero Norte.
func buildTestApp(t *testing.T) *fiber.App {
	t.Helper()
	hash := func(pin string) string {
		h, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.MinCost)
		require.NoError(t, err)
		return string(h)
	}
	venues := memory.NewVenueStore(
		entity.Venue{ID: venueCentro, Name: "Centro", Type: entity.VenueTypeRestaurant, IsActive: true},
		entity.Venue{ID: venueNorte, Name: "Norte", Type: entity.VenueTypeCafe, IsActive: true},
	)
	staff := memory.NewStaffStore(
		entity.Staff{ID: "S1", VenueID: venueCentro, Name: "Ana", Role: entity.RoleWaiter, PinHash: hash("1234"), IsActive: true},
		entity.Staff{ID: "S2", VenueID: venueCentro, Name: "Eva", Role: entity.RoleKitchen, PinHash: hash("1111"), IsActive: true},
		entity.Staff{ID: "S3", VenueID: venueCentro, Name: "Tom", Role: entity.RoleCashier, PinHash: hash("2222"), IsActive: true},
		entity.Staff{ID: "S4", VenueID: venueCentro, Name: "Luis", Role: entity.RoleManager, PinHash: hash("5678"), IsActive: true},
		entity.Staff{ID: "S5", VenueID: venueNorte, Name: "Juan", Role: entity.RoleWaiter, PinHash: hash("3333"), IsActive: true},
	)
	authUC := auth.NewAuthUseCase(staff, venues, memory.NewSessionStore(), auth.NewPinLimiter(3, time.Minute), auth.Config{
		Secret:      testJWTSecret,
		Issuer:      testIssuer,
		ExpMinutes:  60,
		IdleTimeout: 30 * time.Minute,
	}, zerolog.Nop())
	changeBus := bus.NewMemoryBus(bus.MemoryConfig{Buffer: 16, SendTimeout: time.Second}, zerolog.Nop())
	orderUC := ordering.NewOrderUseCase(memory.NewOrderStore(venues.IsActive), memory.NewAnomalyStore(),
		venues, changeBus, authUC, pdf.NewReceiptGenerator(), zerolog.Nop())

	app := fiber.New()
	apphttp.Router(app, apphttp.RouterDeps{
		AuthUC:    authUC,
		VenueUC:   usecase.NewVenueUseCase(venues, authUC),
		OrderUC:   orderUC,
		JWTSecret: testJWTSecret,
		Logger:    zerolog.Nop(),
	})
	return app
}

func do(t *testing.T, app *fiber.App, method, path, token string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func login(t *testing.T, app *fiber.App, venueID, pin string) dto.LoginResponse {
	t.Helper()
	resp := do(t, app, http.MethodPost, "/api/auth/login", "", dto.LoginRequest{VenueID: venueID, PIN: pin})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return decode[dto.LoginResponse](t, resp)
}

func createOrder(t *testing.T, app *fiber.App, token string) dto.OrderResponse {
	t.Helper()
	resp := do(t, app, http.MethodPost, "/api/orders", token, map[string]any{
		"table_id": "M4",
		"items":    []map[string]any{{"name": "Ajiaco", "quantity": 2, "unit_price": "18000"}},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[dto.OrderResponse](t, resp)
}

// ──────────────────────────────────────────────────────────────────────────────
// AuthMiddleware
// ──────────────────────────────────────────────────────────────────────────────

func TestAuthMiddleware_SinAuthHeader_Retorna401(t *testing.T) {
	app := buildTestApp(t)
	resp := do(t, app, http.MethodGet, "/api/auth/me", "", nil)
	body := decode[dto.ErrorResponse](t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "MISSING_TOKEN", body.Code)
}

func TestAuthMiddleware_TokenInvalido_Retorna401(t *testing.T) {
	app := buildTestApp(t)
	resp := do(t, app, http.MethodGet, "/api/auth/me", "token.invalido.aqui", nil)
	body := decode[dto.ErrorResponse](t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "INVALID_TOKEN", body.Code)
}

// Un token bien firmado cuya sesión no existe en el almacén no sirve.
func TestAuthMiddleware_TokenFirmadoSinSesion_SessionExpired(t *testing.T) {
	app := buildTestApp(t)
	tok, err := pkgjwt.Generate(testJWTSecret, pkgjwt.Subject{
		SessionID: "no-existe", StaffID: "S1", VenueID: venueCentro, Role: "waiter",
	}, testIssuer, 60)
	require.NoError(t, err)

	resp := do(t, app, http.MethodGet, "/api/auth/me", tok, nil)
	body := decode[dto.ErrorResponse](t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "SESSION_EXPIRED", body.Code)
}

func TestAuthMiddleware_AccessTokenPorQuery(t *testing.T) {
	app := buildTestApp(t)
	out := login(t, app, venueCentro, "1234")

	resp := do(t, app, http.MethodGet, "/api/auth/me?access_token="+out.Token, "", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

// ──────────────────────────────────────────────────────────────────────────────
// Auth handler
// ──────────────────────────────────────────────────────────────────────────────

func TestLogin_DevuelveSesionYRuta(t *testing.T) {
	app := buildTestApp(t)
	out := login(t, app, venueCentro, "1111")

	assert.NotEmpty(t, out.Token)
	assert.Equal(t, "kitchen", out.Session.Role)
	require.NotNil(t, out.Session.VenueID)
	assert.Equal(t, venueCentro, *out.Session.VenueID)
	assert.Equal(t, "/kitchen", out.DefaultRoute)

	me := decode[dto.MeResponse](t, do(t, app, http.MethodGet, "/api/auth/me", out.Token, nil))
	assert.Equal(t, "Eva", me.Session.Name)
	assert.Equal(t, venueCentro, me.HomeVenueID)
}

func TestLogin_PinIncorrecto_401(t *testing.T) {
	app := buildTestApp(t)
	resp := do(t, app, http.MethodPost, "/api/auth/login", "", dto.LoginRequest{VenueID: venueCentro, PIN: "0000"})
	body := decode[dto.ErrorResponse](t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "INVALID_CREDENTIALS", body.Code)
}

func TestLogin_Bloqueo_429(t *testing.T) {
	app := buildTestApp(t)
	for i := 0; i < 3; i++ {
		resp := do(t, app, http.MethodPost, "/api/auth/login", "", dto.LoginRequest{VenueID: venueCentro, PIN: "0000"})
		resp.Body.Close()
	}
	resp := do(t, app, http.MethodPost, "/api/auth/login", "", dto.LoginRequest{VenueID: venueCentro, PIN: "1234"})
	body := decode[dto.ErrorResponse](t, resp)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "TOO_MANY_ATTEMPTS", body.Code)
}

func TestLogin_SinCampos_400(t *testing.T) {
	app := buildTestApp(t)
	resp := do(t, app, http.MethodPost, "/api/auth/login", "", map[string]string{"venue_id": venueCentro})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLogout_InvalidaElToken(t *testing.T) {
	app := buildTestApp(t)
	out := login(t, app, venueCentro, "1234")

	resp := do(t, app, http.MethodPost, "/api/auth/logout", out.Token, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = do(t, app, http.MethodGet, "/api/auth/me", out.Token, nil)
	body := decode[dto.ErrorResponse](t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "SESSION_EXPIRED", body.Code)
}

func TestSelectScope_ManagerTodosYMeseroFijo(t *testing.T) {
	app := buildTestApp(t)

	manager := login(t, app, venueCentro, "5678")
	resp := do(t, app, http.MethodPut, "/api/auth/scope", manager.Token, map[string]any{"venue_id": nil})
	got := decode[dto.SessionResponse](t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Nil(t, got.VenueID, "venue_id nulo = todos los locales")

	waiter := login(t, app, venueCentro, "1234")
	resp = do(t, app, http.MethodPut, "/api/auth/scope", waiter.Token, map[string]any{"venue_id": nil})
	got = decode[dto.SessionResponse](t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotNil(t, got.VenueID)
	assert.Equal(t, venueCentro, *got.VenueID)
}

// ──────────────────────────────────────────────────────────────────────────────
// Venues y pedidos
// ──────────────────────────────────────────────────────────────────────────────

func TestHealthYVenuesPublicos(t *testing.T) {
	app := buildTestApp(t)

	resp := do(t, app, http.MethodGet, "/health", "", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	list := decode[dto.VenueListResponse](t, do(t, app, http.MethodGet, "/api/venues/active", "", nil))
	assert.Len(t, list.Items, 2)
}

func TestVenues_MeseroSoloVeSuLocal(t *testing.T) {
	app := buildTestApp(t)
	out := login(t, app, venueNorte, "3333")

	list := decode[dto.VenueListResponse](t, do(t, app, http.MethodGet, "/api/venues", out.Token, nil))
	require.Len(t, list.Items, 1)
	assert.Equal(t, venueNorte, list.Items[0].ID)
}

func TestRequireCapability_CocinaNoCreaPedidos(t *testing.T) {
	app := buildTestApp(t)
	out := login(t, app, venueCentro, "1111")

	resp := do(t, app, http.MethodPost, "/api/orders", out.Token, map[string]any{"table_id": "M1", "items": []any{}})
	body := decode[dto.ErrorResponse](t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "ACCESS_DENIED", body.Code)
}

func TestTransicion_EstadoDesactualizado_409ConDetalles(t *testing.T) {
	app := buildTestApp(t)
	waiter := login(t, app, venueCentro, "1234")
	kitchen := login(t, app, venueCentro, "1111")
	order := createOrder(t, app, waiter.Token)

	path := "/api/orders/" + order.ID + "/transitions"
	resp := do(t, app, http.MethodPost, path, kitchen.Token, dto.TransitionRequest{ExpectedStatus: "pending", Status: "preparing"})
	cmd := decode[dto.CommandResponse](t, resp)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "preparing", cmd.Order.Status)

	// Otra terminal todavía muestra "pending".
	resp = do(t, app, http.MethodPost, path, kitchen.Token, dto.TransitionRequest{ExpectedStatus: "pending", Status: "preparing"})
	body := decode[dto.ErrorResponse](t, resp)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "INVALID_TRANSITION", body.Code)
	assert.Equal(t, "pending", body.Details["expected"])
	assert.Equal(t, "preparing", body.Details["actual"])
}

func TestPedido_OtroLocal_404(t *testing.T) {
	app := buildTestApp(t)
	centro := login(t, app, venueCentro, "1234")
	norte := login(t, app, venueNorte, "3333")
	order := createOrder(t, app, centro.Token)

	resp := do(t, app, http.MethodGet, "/api/orders/"+order.ID, norte.Token, nil)
	body := decode[dto.ErrorResponse](t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", body.Code)
}

func TestPagoYComprobante(t *testing.T) {
	app := buildTestApp(t)
	waiter := login(t, app, venueCentro, "1234")
	cashier := login(t, app, venueCentro, "2222")
	order := createOrder(t, app, waiter.Token)

	resp := do(t, app, http.MethodGet, "/api/orders/"+order.ID+"/receipt", cashier.Token, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "sin pago no hay comprobante")

	resp = do(t, app, http.MethodPost, "/api/orders/"+order.ID+"/payment", cashier.Token, dto.PaymentRequest{Status: "paid", Method: "card"})
	paid := decode[dto.OrderResponse](t, resp)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "paid", paid.PaymentStatus)

	resp = do(t, app, http.MethodGet, "/api/orders/"+order.ID+"/receipt", cashier.Token, nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	pdfBytes, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdfBytes, []byte("%PDF")))
}

func TestEventos_LocalFueraDeScope_403(t *testing.T) {
	app := buildTestApp(t)
	out := login(t, app, venueNorte, "3333")

	resp := do(t, app, http.MethodGet, "/api/venues/"+venueCentro+"/events", out.Token, nil)
	body := decode[dto.ErrorResponse](t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "ACCESS_DENIED", body.Code)
}
