package email

import (
	"bytes"
	"fmt"
	"html/template"
	"sort"
)

const appName = "Esports Arena"

var broadcastTmpl = template.Must(template.New("broadcast").Parse(`<div style="font-family: Arial, sans-serif; padding: 20px; color: #333;">
<h2 style="color: #6d28d9;">{{.App}} Notification</h2>
<div style="background-color: #f3f4f6; padding: 15px; border-radius: 8px; margin: 20px 0;">{{.Message}}</div>
<p style="font-size: 12px; color: #666;">You are receiving this email because you are a registered user of {{.App}}.</p>
</div>`))

var alertTmpl = template.Must(template.New("alert").Parse(`<div style="font-family: Arial, sans-serif; padding: 20px; color: #333;">
<h2 style="color: #dc2626;">Admin Alert</h2>
<p><strong>Subject:</strong> {{.Subject}}</p>
<div style="background-color: #fee2e2; padding: 15px; border-radius: 8px; margin: 20px 0;">
<p>{{.Message}}</p>
{{- if .Details}}
<table>{{range .Details}}<tr><td><strong>{{.Key}}</strong></td><td>{{.Value}}</td></tr>{{end}}</table>
{{- end}}
</div>
</div>`))

type detail struct {
	Key   string
	Value string
}

// Broadcast renders a message sent to every user
func Broadcast(bcc []string, subject, message string) (Message, error) {
	var buf bytes.Buffer
	err := broadcastTmpl.Execute(&buf, struct{ App, Message string }{appName, message})
	if err != nil {
		return Message{}, fmt.Errorf("rendering broadcast: %w", err)
	}
	return Message{
		Bcc:     bcc,
		Subject: "[" + appName + "] " + subject,
		HTML:    buf.String(),
	}, nil
}

// AdminAlert renders an alert for the admin inbox. Details are listed in key order.
func AdminAlert(to, subject, message string, details map[string]any) (Message, error) {
	rows := make([]detail, 0, len(details))
	for k, v := range details {
		if s := fmt.Sprint(v); s != "" {
			rows = append(rows, detail{Key: k, Value: s})
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Key < rows[j].Key })

	var buf bytes.Buffer
	err := alertTmpl.Execute(&buf, struct {
		Subject string
		Message string
		Details []detail
	}{subject, message, rows})
	if err != nil {
		return Message{}, fmt.Errorf("rendering admin alert: %w", err)
	}
	return Message{
		To:      []string{to},
		Subject: "[Admin Alert] " + subject,
		HTML:    buf.String(),
	}, nil
}
