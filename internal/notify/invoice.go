package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"

	"github.com/ariefcatur/go-storefront-checkout/internal/domain"
)

var invoiceTmpl = template.Must(template.New("invoice").Parse(`<!doctype html>
<html><body>
<h2>Thank you for your order, {{.Contact.FirstName}}!</h2>
<p>Order #{{.RandomID}} (number {{.OrderNumber}}) placed on {{.CreatedAt.Format "2006-01-02 15:04"}}.</p>
<table border="1" cellpadding="4" cellspacing="0">
<tr><th>Product</th><th>Color</th><th>Qty</th><th>Unit price</th><th>Total</th></tr>
{{range .Lines}}<tr><td>{{.ProductName}}</td><td>{{.Color}}</td><td>{{.Quantity}}</td><td>{{.UnitPrice.StringFixed 2}}</td><td>{{.LineTotal.StringFixed 2}}</td></tr>
{{end}}</table>
<p>Subtotal: {{.Subtotal.StringFixed 2}}<br>
Shipping ({{.Contact.Governorate}}): {{.ShippingCost.StringFixed 2}}<br>
<strong>Total: {{.Total.StringFixed 2}}</strong></p>
<p>Payment: {{.Contact.PaymentMethod}}<br>
Ship to: {{.Contact.FirstName}} {{.Contact.LastName}}, {{.Contact.Address}}, {{.Contact.City}}, {{.Contact.Governorate}}<br>
Phone: {{.Contact.Phone}}</p>
</body></html>
`))

// Invoice renders the confirmation mail for an order.
func Invoice(o *domain.Order) (Message, error) {
	var html bytes.Buffer
	if err := invoiceTmpl.Execute(&html, o); err != nil {
		return Message{}, fmt.Errorf("render invoice %s: %w", o.ID, err)
	}

	var text strings.Builder
	fmt.Fprintf(&text, "Order #%s confirmed\n\n", o.RandomID)
	for _, l := range o.Lines {
		fmt.Fprintf(&text, "%s (%s) x%d  %s\n", l.ProductName, l.Color, l.Quantity, l.LineTotal.StringFixed(2))
	}
	fmt.Fprintf(&text, "\nSubtotal %s\nShipping %s\nTotal %s\n",
		o.Subtotal.StringFixed(2), o.ShippingCost.StringFixed(2), o.Total.StringFixed(2))

	return Message{
		To:      o.Contact.Email,
		Subject: fmt.Sprintf("Order #%s Confirmed", o.RandomID),
		HTML:    html.String(),
		Text:    text.String(),
	}, nil
}

// MailNotifier sends the invoice straight from the checkout process.
type MailNotifier struct {
	Sender Sender
}

func (n *MailNotifier) OrderPlaced(ctx context.Context, o *domain.Order) error {
	m, err := Invoice(o)
	if err != nil {
		return err
	}
	return n.Sender.Send(ctx, m)
}
