package notify

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
)

// Template names
const (
	TemplateBookingConfirmed = "booking_confirmed"
	TemplateBookingCancelled = "booking_cancelled"
	TemplateBookingRefunded  = "booking_refunded"
)

type messageTemplate struct {
	html *htmltemplate.Template
	text *texttemplate.Template
}

var templates = map[string]messageTemplate{
	TemplateBookingConfirmed: mustTemplate(TemplateBookingConfirmed,
		`<p>Hi {{.passenger_name}},</p>
<p>Your seat <strong>{{.seat_number}}</strong> on <strong>{{.bus_name}}</strong> ({{.origin}} to {{.destination}}) is confirmed for {{.journey_date}}.</p>
<p>Departure: {{.start_time}}. Amount paid: {{.amount}} {{.currency}}.</p>
<p>Your ticket is attached. Show it when boarding.</p>`,
		`Hi {{.passenger_name}},

Your seat {{.seat_number}} on {{.bus_name}} ({{.origin}} to {{.destination}}) is confirmed for {{.journey_date}}.
Departure: {{.start_time}}. Amount paid: {{.amount}} {{.currency}}.

Your ticket is attached. Show it when boarding.`),

	TemplateBookingCancelled: mustTemplate(TemplateBookingCancelled,
		`<p>Hi {{.passenger_name}},</p>
<p>Your booking for seat <strong>{{.seat_number}}</strong> on <strong>{{.bus_name}}</strong> for {{.journey_date}} has been cancelled.</p>`,
		`Hi {{.passenger_name}},

Your booking for seat {{.seat_number}} on {{.bus_name}} for {{.journey_date}} has been cancelled.`),

	TemplateBookingRefunded: mustTemplate(TemplateBookingRefunded,
		`<p>Hi {{.passenger_name}},</p>
<p>We have refunded {{.amount}} {{.currency}} for seat <strong>{{.seat_number}}</strong> on <strong>{{.bus_name}}</strong> ({{.journey_date}}).</p>
<p>The refund may take 5-7 working days to reach your account.</p>`,
		`Hi {{.passenger_name}},

We have refunded {{.amount}} {{.currency}} for seat {{.seat_number}} on {{.bus_name}} ({{.journey_date}}).
The refund may take 5-7 working days to reach your account.`),
}

func mustTemplate(name, html, text string) messageTemplate {
	return messageTemplate{
		html: htmltemplate.Must(htmltemplate.New(name).Option("missingkey=zero").Parse(html)),
		text: texttemplate.Must(texttemplate.New(name).Option("missingkey=zero").Parse(text)),
	}
}

// Render executes a message template into HTML and plain-text bodies
func Render(name string, data map[string]interface{}) (string, string, error) {
	tmpl, ok := templates[name]
	if !ok {
		return "", "", fmt.Errorf("template %s not found", name)
	}

	var htmlBuf, textBuf bytes.Buffer
	if err := tmpl.html.Execute(&htmlBuf, data); err != nil {
		return "", "", fmt.Errorf("failed to execute HTML template: %w", err)
	}
	if err := tmpl.text.Execute(&textBuf, data); err != nil {
		return "", "", fmt.Errorf("failed to execute text template: %w", err)
	}
	return htmlBuf.String(), textBuf.String(), nil
}
