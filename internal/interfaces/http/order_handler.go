package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/comandas-api/internal/application/dto"
	"github.com/jhoicas/comandas-api/internal/application/ordering"
)

// OrderHandler comandos y consultas de pedidos (protegido).
type OrderHandler struct {
	uc *ordering.OrderUseCase
}

// NewOrderHandler construye el handler.
func NewOrderHandler(uc *ordering.OrderUseCase) *OrderHandler {
	return &OrderHandler{uc: uc}
}

// Create godoc
// @Summary      Crear pedido
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        body  body  dto.CreateOrderRequest  true  "mesa y líneas"
// @Success      201   {object}  dto.OrderResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      403   {object}  dto.ErrorResponse
// @Router       /api/orders [post]
func (h *OrderHandler) Create(c *fiber.Ctx) error {
	var in dto.CreateOrderRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	if in.TableID == "" || len(in.Items) == 0 {
		return validation(c, "table_id y al menos una línea son requeridos")
	}
	out, err := h.uc.CreateOrder(c.UserContext(), GetSession(c), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// List pedidos del scope de la sesión.
// GET /api/orders?status=pending,preparing&payment_status=unpaid&table_id=M4&limit=20&offset=0
func (h *OrderHandler) List(c *fiber.Ctx) error {
	q := dto.OrderListQuery{
		PageRequest: dto.PageRequest{
			Limit:  c.QueryInt("limit", 20),
			Offset: c.QueryInt("offset", 0),
		},
		Status:        c.Query("status"),
		PaymentStatus: c.Query("payment_status"),
		TableID:       c.Query("table_id"),
	}
	out, err := h.uc.List(c.UserContext(), GetSession(c), q)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// GetByID detalle de un pedido.
// GET /api/orders/:id
func (h *OrderHandler) GetByID(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return validation(c, "id requerido")
	}
	out, err := h.uc.Get(c.UserContext(), GetSession(c), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// Transition godoc
// @Summary      Cambiar estado de un pedido
// @Description  expected_status es el estado que el terminal tiene en pantalla; si no coincide con el persistido responde 409 INVALID_TRANSITION con expected/actual.
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        id    path  string                 true  "ID del pedido"
// @Param        body  body  dto.TransitionRequest  true  "expected_status, status"
// @Success      200   {object}  dto.CommandResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/orders/{id}/transitions [post]
func (h *OrderHandler) Transition(c *fiber.Ctx) error {
	var in dto.TransitionRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	if in.Status == "" || in.ExpectedStatus == "" {
		return validation(c, "expected_status y status son requeridos")
	}
	out, err := h.uc.TransitionOrder(c.UserContext(), GetSession(c), c.Params("id"), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// TransitionItem cambia el estado de una línea.
// POST /api/orders/:id/items/:itemId/transitions
func (h *OrderHandler) TransitionItem(c *fiber.Ctx) error {
	var in dto.TransitionRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	if in.Status == "" || in.ExpectedStatus == "" {
		return validation(c, "expected_status y status son requeridos")
	}
	out, err := h.uc.TransitionItem(c.UserContext(), GetSession(c), c.Params("id"), c.Params("itemId"), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// Payment registra el cobro del pedido.
// POST /api/orders/:id/payment
func (h *OrderHandler) Payment(c *fiber.Ctx) error {
	var in dto.PaymentRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	out, err := h.uc.RecordPayment(c.UserContext(), GetSession(c), c.Params("id"), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// Receipt descarga el comprobante PDF de un pedido pagado.
// GET /api/orders/:id/receipt
func (h *OrderHandler) Receipt(c *fiber.Ctx) error {
	pdf, filename, err := h.uc.Receipt(c.UserContext(), GetSession(c), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	return c.Send(pdf)
}

// Anomalies anomalías abiertas del scope de la sesión, para conciliación manual.
// GET /api/anomalies
func (h *OrderHandler) Anomalies(c *fiber.Ctx) error {
	page := dto.PageRequest{Limit: c.QueryInt("limit", 20), Offset: c.QueryInt("offset", 0)}
	out, err := h.uc.ListAnomalies(c.UserContext(), GetSession(c), page)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"items": out})
}
