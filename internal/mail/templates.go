package mail

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"text/template"
	"time"
)

var (
	otpText = template.Must(template.New("otp").Parse(
		`Your {{.Store}} verification code is {{.Code}}.
It expires in {{.Minutes}} minutes.{{if .OrderCode}} Order {{.OrderCode}}.{{end}}
If you did not place an order, ignore this email.
`))
	otpHTML = htmltemplate.Must(htmltemplate.New("otp").Parse(
		`<p>Your {{.Store}} verification code is <strong>{{.Code}}</strong>.</p>
<p>It expires in {{.Minutes}} minutes.{{if .OrderCode}} Order <strong>{{.OrderCode}}</strong>.{{end}}</p>`))

	confirmText = template.Must(template.New("confirm").Parse(
		`Thank you for shopping with {{.Store}}, {{.Name}}.
Your order {{.OrderCode}} is {{.Status}}.
Total: Rs. {{printf "%.2f" .Total}} ({{.Method}})
`))
	confirmHTML = htmltemplate.Must(htmltemplate.New("confirm").Parse(
		`<p>Thank you for shopping with {{.Store}}, {{.Name}}.</p>
<p>Your order <strong>{{.OrderCode}}</strong> is {{.Status}}.</p>
<p>Total: Rs. {{printf "%.2f" .Total}} ({{.Method}})</p>`))
)

// OTPData fills the verification code email.
type OTPData struct {
	Store     string
	Code      string
	OrderCode string
	TTL       time.Duration
}

// OTPMessage renders the verification code email.
func OTPMessage(d OTPData) (Message, error) {
	data := struct {
		OTPData
		Minutes int
	}{d, int(d.TTL / time.Minute)}
	subject := fmt.Sprintf("%s verification code", d.Store)
	return render(subject, otpText, otpHTML, data)
}

// ConfirmationData fills the order confirmation email.
type ConfirmationData struct {
	Store     string
	Name      string
	OrderCode string
	Status    string
	Method    string
	Total     float64
}

// ConfirmationMessage renders the order confirmation email.
func ConfirmationMessage(d ConfirmationData) (Message, error) {
	subject := fmt.Sprintf("%s order %s confirmed", d.Store, d.OrderCode)
	return render(subject, confirmText, confirmHTML, d)
}

func render(subject string, text *template.Template, html *htmltemplate.Template, data any) (Message, error) {
	var tb, hb bytes.Buffer
	if err := text.Execute(&tb, data); err != nil {
		return Message{}, fmt.Errorf("render text: %w", err)
	}
	if err := html.Execute(&hb, data); err != nil {
		return Message{}, fmt.Errorf("render html: %w", err)
	}
	return Message{Subject: subject, Text: tb.String(), HTML: hb.String()}, nil
}
