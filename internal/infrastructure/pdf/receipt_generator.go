// Package pdf genera el comprobante de pago de un pedido.
//
// Layout (A5):
//
//	┌───────────────────────────────────────┐
//	│  Local + tipo     │  Pedido + fecha    │
//	│  Mesa / atendió / método de pago       │
//	│  ───────────────────────────────────   │
//	│  Cant | Descripción | P.Unit | Subtot. │
//	│  ───────────────────────────────────   │
//	│  TOTAL PAGADO                          │
//	│  QR con la referencia del pedido       │
//	└───────────────────────────────────────┘
package pdf

import (
	"fmt"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/code"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"

	"github.com/jhoicas/comandas-api/internal/domain/entity"
)

var (
	colorPrimary = &props.Color{Red: 0, Green: 70, Blue: 127}
	colorGray    = &props.Color{Red: 100, Green: 100, Blue: 100}
)

var paymentLabels = map[string]string{
	entity.PaymentMethodCash:     "Efectivo",
	entity.PaymentMethodCard:     "Tarjeta",
	entity.PaymentMethodTransfer: "Transferencia",
}

// ReceiptGenerator implementa ordering.ReceiptGenerator con Maroto v2.
type ReceiptGenerator struct{}

// NewReceiptGenerator construye el generador.
func NewReceiptGenerator() *ReceiptGenerator { return &ReceiptGenerator{} }

// GenerateReceipt genera el PDF del comprobante y devuelve sus bytes.
// Las líneas canceladas no se imprimen.
func (g *ReceiptGenerator) GenerateReceipt(venue *entity.Venue, order *entity.Order) ([]byte, error) {
	if venue == nil || order == nil {
		return nil, fmt.Errorf("pdf: local y pedido son obligatorios")
	}
	cfg := config.NewBuilder().
		WithPageSize(pagesize.A5).
		WithLeftMargin(8).WithRightMargin(8).
		WithTopMargin(8).WithBottomMargin(8).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 9}).
		WithTitle("Comprobante de pago", true).
		WithAuthor(venue.Name, true).
		Build()

	m := maroto.New(cfg)
	m.AddRows(headerRow(venue, order))
	m.AddRows(infoRow(order))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.4}))
	m.AddRows(tableHeaderRow())
	m.AddRows(itemRows(order)...)
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.4}))
	m.AddRows(totalRow(order))
	m.AddRows(line.NewRow(3))
	m.AddRows(footerRow(order))

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf: generar comprobante: %w", err)
	}
	return doc.GetBytes(), nil
}

func headerRow(venue *entity.Venue, order *entity.Order) core.Row {
	fecha := order.CreatedAt.Format("02/01/2006 15:04")
	if order.PaidAt != nil {
		fecha = order.PaidAt.Format("02/01/2006 15:04")
	}
	return row.New(16).Add(
		col.New(7).Add(
			text.New(venue.Name, props.Text{Style: fontstyle.Bold, Size: 12, Color: colorPrimary, Top: 1}),
			text.New(nonEmpty(venue.Type, "local"), props.Text{Size: 8, Top: 8, Color: colorGray}),
		),
		col.New(5).Add(
			text.New("COMPROBANTE DE PAGO", props.Text{Style: fontstyle.Bold, Size: 7, Align: align.Right, Color: colorPrimary, Top: 1}),
			text.New("#"+shortRef(order.ID), props.Text{Style: fontstyle.Bold, Size: 11, Align: align.Right, Top: 6}),
			text.New(fecha, props.Text{Size: 7, Align: align.Right, Top: 12, Color: colorGray}),
		),
	)
}

func infoRow(order *entity.Order) core.Row {
	method := paymentLabels[order.PaymentMethod]
	return row.New(8).Add(col.New(12).Add(
		text.New(fmt.Sprintf("Mesa: %s   |   Pago: %s", order.TableID, nonEmpty(method, "-")),
			props.Text{Size: 8, Top: 2, Color: colorGray}),
	))
}

func tableHeaderRow() core.Row {
	h := func(label string, size int, a align.Type) core.Col {
		return col.New(size).Add(text.New(label, props.Text{
			Style: fontstyle.Bold, Size: 8, Align: a, Color: colorPrimary, Top: 1,
		}))
	}
	return row.New(6).Add(
		h("Cant.", 2, align.Center),
		h("Descripción", 5, align.Left),
		h("P. Unit.", 2, align.Right),
		h("Subtotal", 3, align.Right),
	)
}

func itemRows(order *entity.Order) []core.Row {
	rows := make([]core.Row, 0, len(order.Items))
	for _, it := range order.Items {
		if it.Status == entity.ItemCancelled {
			continue
		}
		rows = append(rows, row.New(6).Add(
			col.New(2).Add(text.New(fmt.Sprintf("%d", it.Quantity), props.Text{Size: 8, Align: align.Center, Top: 1})),
			col.New(5).Add(text.New(it.Name, props.Text{Size: 8, Top: 1})),
			col.New(2).Add(text.New("$"+formatMoney(it.UnitPrice.StringFixed(0)), props.Text{Size: 8, Align: align.Right, Top: 1})),
			col.New(3).Add(text.New("$"+formatMoney(it.Subtotal().StringFixed(0)), props.Text{Size: 8, Align: align.Right, Top: 1})),
		))
	}
	return rows
}

func totalRow(order *entity.Order) core.Row {
	return row.New(10).Add(
		col.New(6),
		col.New(3).Add(text.New("TOTAL PAGADO:", props.Text{
			Style: fontstyle.Bold, Size: 10, Align: align.Right, Color: colorPrimary, Top: 2,
		})),
		col.New(3).Add(text.New("$"+formatMoney(order.Total.StringFixed(0)), props.Text{
			Style: fontstyle.Bold, Size: 10, Align: align.Right, Color: colorPrimary, Top: 2,
		})),
	)
}

func footerRow(order *entity.Order) core.Row {
	return row.New(32).Add(
		col.New(4).Add(code.NewQr("pedido:"+order.ID, props.Rect{Percent: 90, Center: true})),
		col.New(8).Add(
			text.New("Gracias por su visita.", props.Text{Style: fontstyle.Bold, Size: 9, Top: 6, Left: 3}),
			text.New("Este comprobante no es factura electrónica.", props.Text{Size: 7, Top: 14, Left: 3, Color: colorGray}),
		),
	)
}

func nonEmpty(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}

func shortRef(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// formatMoney inserta puntos de miles en un string numérico sin decimales.
// Ej: "25000" → "25.000".
func formatMoney(s string) string {
	n := len(s)
	if n <= 3 {
		return s
	}
	buf := make([]byte, 0, n+n/3)
	for i, c := range []byte(s) {
		if i > 0 && (n-i)%3 == 0 {
			buf = append(buf, '.')
		}
		buf = append(buf, c)
	}
	return string(buf)
}
