package mail

import (
	"bytes"
	htmltemplate "html/template"
	"strings"
	"text/template"
	"time"

	"storefront/internal/domain/order"
)

// Composer renders the transactional emails.
type Composer struct {
	Shop        string
	FrontendURL string
}

var funcs = template.FuncMap{
	"date":  func(t time.Time) string { return t.Format("02 Jan 2006") },
	"title": func(s string) string {
		if s == "" {
			return s
		}
		return strings.ToUpper(s[:1]) + s[1:]
	},
}

var textTemplates = template.Must(template.New("mail").Funcs(funcs).Parse(`
{{define "welcome"}}Hi {{.Name}},

Welcome to {{.Shop}}! Your account is ready.

Start shopping: {{.URL}}
{{end}}

{{define "otp"}}Your {{.Shop}} code is: {{.OTP}}

It expires at {{.Expires}}.

If you didn't request this, ignore this email.
{{end}}

{{define "order"}}Hi {{.Name}},

Thank you for your order #{{.Order.OrderNumber}}.
{{range .Order.Items}}
- {{.Name}} x{{.Quantity}} @ Rs.{{.Price.StringFixed 2}}{{end}}

Subtotal: Rs.{{.Order.Subtotal.StringFixed 2}}
Discount: Rs.{{.Order.Discount.StringFixed 2}}
Tax:      Rs.{{.Order.Tax.StringFixed 2}}
Shipping: Rs.{{.Order.Shipping.StringFixed 2}}
Total:    Rs.{{.Order.Total.StringFixed 2}}

Payment: {{.Order.PaymentMethod}} ({{.Order.PaymentStatus}})
{{with .Order.EstimatedDelivery}}Estimated delivery: {{date .}}
{{end}}
Track your order: {{.URL}}/orders/{{.Order.OrderNumber}}
{{end}}

{{define "status"}}Hi {{.Name}},

Your order #{{.Order.OrderNumber}} is now {{title .Order.OrderStatus}}.
{{with .Order.TrackingNumber}}Tracking number: {{.}}
{{end}}
Details: {{.URL}}/orders/{{.Order.OrderNumber}}
{{end}}

{{define "payment"}}Hi {{.Name}},

We received your payment of Rs.{{.Order.Total.StringFixed 2}} for order #{{.Order.OrderNumber}}.
Payment id: {{.Order.PaymentID}}
{{end}}

{{define "newsletter"}}Hi {{if .Name}}{{.Name}}{{else}}there{{end}},

Thanks for subscribing to the {{.Shop}} newsletter. Expect new arrivals, offers and style tips.

Unsubscribe any time: {{.URL}}/newsletter/unsubscribe
{{end}}
`))

var orderHTML = htmltemplate.Must(htmltemplate.New("order").Parse(`<h2>Thank you for your order, {{.Name}}!</h2>
<p>Order <strong>#{{.Order.OrderNumber}}</strong></p>
<table cellpadding="6" style="border-collapse:collapse">
<tr><th align="left">Item</th><th>Qty</th><th align="right">Price</th></tr>
{{range .Order.Items}}<tr><td>{{.Name}}</td><td align="center">{{.Quantity}}</td><td align="right">&#8377;{{.Price.StringFixed 2}}</td></tr>
{{end}}</table>
<p>Subtotal: &#8377;{{.Order.Subtotal.StringFixed 2}}<br>
Discount: &#8377;{{.Order.Discount.StringFixed 2}}<br>
Tax: &#8377;{{.Order.Tax.StringFixed 2}}<br>
Shipping: &#8377;{{.Order.Shipping.StringFixed 2}}<br>
<strong>Total: &#8377;{{.Order.Total.StringFixed 2}}</strong></p>
<p><a href="{{.URL}}/orders/{{.Order.OrderNumber}}">Track your order</a></p>
`))

type data struct {
	Shop    string
	URL     string
	Name    string
	OTP     string
	Expires string
	Order   order.Order
}

func (c Composer) data(name string) data {
	return data{Shop: c.Shop, URL: strings.TrimRight(c.FrontendURL, "/"), Name: name}
}

func render(name string, d data) string {
	var buf bytes.Buffer
	if err := textTemplates.ExecuteTemplate(&buf, name, d); err != nil {
		return ""
	}
	return strings.TrimSpace(buf.String()) + "\n"
}

func (c Composer) Welcome(to, name string) Message {
	return Message{To: to, Subject: "Welcome to " + c.Shop, Text: render("welcome", c.data(name))}
}

func (c Composer) OTP(to, subject, otp string, expires time.Time) Message {
	d := c.data("")
	d.OTP = otp
	d.Expires = expires.Format(time.RFC1123)
	return Message{To: to, Subject: subject, Text: render("otp", d)}
}

func (c Composer) OrderConfirmation(to, name string, o order.Order) Message {
	d := c.data(name)
	d.Order = o
	var html bytes.Buffer
	_ = orderHTML.Execute(&html, d)
	return Message{
		To:      to,
		Subject: "Order Confirmation - #" + o.OrderNumber,
		Text:    render("order", d),
		HTML:    html.String(),
	}
}

func (c Composer) OrderStatus(to, name string, o order.Order) Message {
	d := c.data(name)
	d.Order = o
	return Message{
		To:      to,
		Subject: "Order #" + o.OrderNumber + " is " + o.OrderStatus,
		Text:    render("status", d),
	}
}

func (c Composer) PaymentConfirmation(to, name string, o order.Order) Message {
	d := c.data(name)
	d.Order = o
	return Message{
		To:      to,
		Subject: "Payment received - #" + o.OrderNumber,
		Text:    render("payment", d),
	}
}

func (c Composer) NewsletterWelcome(to, firstName string) Message {
	return Message{
		To:      to,
		Subject: "You're subscribed to " + c.Shop,
		Text:    render("newsletter", c.data(firstName)),
	}
}
