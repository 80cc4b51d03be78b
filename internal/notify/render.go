package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/joao-fontenele/storefront-orderflow/internal/domain"
)

type Site struct {
	URL                 string
	From                string
	PaymentReceiptEmail string
}

type Email struct {
	Subject string
	Body    string
}

type view struct {
	Site Site
	Data any
}

var templateSources = map[domain.NotificationKind]string{
	domain.NotificationPaymentInstructions: `
{{define "subject"}}Payment instructions for order {{.Data.OrderNumber}}{{end}}
{{define "body"}}Hi {{.Data.CustomerName}},

Thank you for your order {{.Data.OrderNumber}}.
{{range .Data.Items}}
  {{.Quantity}} x {{.Title}} ({{.Size}}) {{money .UnitPrice $.Data.Currency}}{{end}}

Total due: {{money .Data.Total .Data.Currency}}

Please send a bank transfer for the total to {{.Site.PaymentReceiptEmail}} with
{{.Data.OrderNumber}} as the message. Your order is held until
{{.Data.ExpiresAt.Format "January 2, 2006 15:04 MST"}}; unpaid orders expire after that.

Track your order at {{.Site.URL}}/orders/{{.Data.OrderNumber}}
{{end}}`,

	domain.NotificationPaymentConfirmation: `
{{define "subject"}}Payment received for order {{.Data.OrderNumber}}{{end}}
{{define "body"}}Hi {{.Data.CustomerName}},

We received your payment of {{money .Data.Total .Data.Currency}} for order {{.Data.OrderNumber}}.
We are preparing it now and will let you know when it ships.

{{.Site.URL}}/orders/{{.Data.OrderNumber}}
{{end}}`,

	domain.NotificationShipment: `
{{define "subject"}}Order {{.Data.OrderNumber}} has shipped{{end}}
{{define "body"}}Hi {{.Data.CustomerName}},

Your order {{.Data.OrderNumber}} is on its way.
{{if .Data.TrackingNumber}}Carrier: {{.Data.Carrier}}
Tracking number: {{.Data.TrackingNumber}}
{{end}}
{{.Site.URL}}/orders/{{.Data.OrderNumber}}
{{end}}`,

	domain.NotificationDelivery: `
{{define "subject"}}Order {{.Data.OrderNumber}} was delivered{{end}}
{{define "body"}}Hi {{.Data.CustomerName}},

Your order {{.Data.OrderNumber}} has been delivered. We hope you enjoy it.
{{end}}`,

	domain.NotificationFollowUp: `
{{define "subject"}}How is your order {{.Data.OrderNumber}}?{{end}}
{{define "body"}}Hi {{.Data.CustomerName}},

It has been a little while since your order {{.Data.OrderNumber}}. We would love to hear
what you think. Reply to this email any time.

{{.Site.URL}}
{{end}}`,

	domain.NotificationRestock: `
{{define "subject"}}{{.Data.ProductTitle}} is back in stock{{end}}
{{define "body"}}Good news: {{.Data.ProductTitle}} in size {{.Data.Size}} is available again.

{{.Site.URL}}/products/{{.Data.ProductID}}
{{end}}`,

	domain.NotificationCartAbandonment: `
{{define "subject"}}You left something in your cart{{end}}
{{define "body"}}You still have {{.Data.ItemCount}} item{{if ne .Data.ItemCount 1}}s{{end}} waiting in your cart.

{{.Site.URL}}/cart
{{end}}`,

	domain.NotificationWelcome: `
{{define "subject"}}Welcome{{end}}
{{define "body"}}Hi {{.Data.Name}},

Thanks for signing up. Browse the latest pieces at {{.Site.URL}}.
{{end}}`,
}

// Renderer turns a Message into an email using one template set per kind.
type Renderer struct {
	site      Site
	templates map[domain.NotificationKind]*template.Template
}

func NewRenderer(site Site) (*Renderer, error) {
	funcs := template.FuncMap{"money": FormatMoney}

	templates := make(map[domain.NotificationKind]*template.Template, len(templateSources))
	for kind, src := range templateSources {
		tmpl, err := template.New(string(kind)).Funcs(funcs).Option("missingkey=error").Parse(src)
		if err != nil {
			return nil, fmt.Errorf("parse %s template: %w", kind, err)
		}
		templates[kind] = tmpl
	}

	return &Renderer{site: site, templates: templates}, nil
}

func (r *Renderer) Render(msg Message) (Email, error) {
	tmpl, ok := r.templates[msg.Kind]
	if !ok {
		return Email{}, fmt.Errorf("no template for notification kind %q", msg.Kind)
	}

	data, err := decodeData(msg.Kind, msg.Data)
	if err != nil {
		return Email{}, err
	}

	v := view{Site: r.site, Data: data}

	var subject, body bytes.Buffer
	if err := tmpl.ExecuteTemplate(&subject, "subject", v); err != nil {
		return Email{}, fmt.Errorf("render %s subject: %w", msg.Kind, err)
	}
	if err := tmpl.ExecuteTemplate(&body, "body", v); err != nil {
		return Email{}, fmt.Errorf("render %s body: %w", msg.Kind, err)
	}

	return Email{
		Subject: strings.TrimSpace(subject.String()),
		Body:    strings.TrimSpace(body.String()) + "\n",
	}, nil
}

func decodeData(kind domain.NotificationKind, raw json.RawMessage) (any, error) {
	var target any
	switch kind {
	case domain.NotificationPaymentInstructions, domain.NotificationPaymentConfirmation,
		domain.NotificationShipment, domain.NotificationDelivery, domain.NotificationFollowUp:
		target = &OrderData{}
	case domain.NotificationRestock:
		target = &RestockData{}
	case domain.NotificationCartAbandonment:
		target = &CartData{}
	case domain.NotificationWelcome:
		target = &WelcomeData{}
	default:
		return nil, fmt.Errorf("unknown notification kind %q", kind)
	}

	if len(raw) > 0 {
		if err := json.Unmarshal(raw, target); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", kind, err)
		}
	}
	return target, nil
}

// FormatMoney renders cents as a decimal amount with its currency code.
func FormatMoney(cents int64, currency string) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, cents/100, cents%100, currency)
}
