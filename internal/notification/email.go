package notification

import (
	"bytes"
	"fmt"
	"net/smtp"
	"text/template"
	"time"

	"github.com/apex/log"

	"github.com/smukkama/drone-defense/internal/protocol"
	"github.com/smukkama/drone-defense/pkg/config"
)

var intrusionTemplate = template.Must(template.New("intrusion").Parse(`
Intrusion Detected
==================

Drone: {{.DroneName}} (id {{.DroneID}})
Alert: {{.Title}}
Time: {{.CreatedAt.Format "2006-01-02 15:04:05 MST"}}
Alert ID: {{.RecordID}}{{if .Source}}
Reported by: {{.Source}}{{end}}

{{.Message}}

The drone crossed into the defense zone. Check the monitor for its live
position.

---
Drone Defense Notification System
`))

// SendFunc matches smtp.SendMail.
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailNotifier sends email notifications
type EmailNotifier struct {
	config *config.SMTPConfig
	send   SendFunc
	now    func() time.Time
}

// NewEmailNotifier creates a new email notifier
func NewEmailNotifier(cfg *config.SMTPConfig) *EmailNotifier {
	return &EmailNotifier{config: cfg, send: smtp.SendMail, now: time.Now}
}

// Configured reports whether SMTP credentials are present.
func (e *EmailNotifier) Configured() bool {
	return e.config.Host != "" && e.config.Username != "" && e.config.Password != ""
}

// SendIntrusionAlert emails an intrusion alert. Without SMTP credentials
// the message is only logged.
func (e *EmailNotifier) SendIntrusionAlert(alert *protocol.AlertNotification) error {
	if alert.Type != protocol.AlertTypeIntrusion {
		return fmt.Errorf("unknown notification type: %s", alert.Type)
	}

	subject := fmt.Sprintf("Intrusion Detected - %s", alert.DroneName)
	body, err := RenderIntrusion(alert)
	if err != nil {
		return fmt.Errorf("failed to render email template: %w", err)
	}

	return e.sendEmail(subject, body)
}

// RenderIntrusion renders the plain-text email body for an alert.
func RenderIntrusion(alert *protocol.AlertNotification) (string, error) {
	var buf bytes.Buffer
	if err := intrusionTemplate.Execute(&buf, alert); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (e *EmailNotifier) sendEmail(subject, body string) error {
	if !e.Configured() {
		log.WithField("subject", subject).Infof("SMTP not configured, skipping email:\n%s", body)
		return nil
	}

	message := fmt.Sprintf("From: %s\r\n", e.config.From)
	message += fmt.Sprintf("To: %s\r\n", e.config.To)
	message += fmt.Sprintf("Subject: %s\r\n", subject)
	message += fmt.Sprintf("Date: %s\r\n", e.now().Format(time.RFC1123Z))
	message += "\r\n"
	message += body

	auth := smtp.PlainAuth("", e.config.Username, e.config.Password, e.config.Host)

	addr := fmt.Sprintf("%s:%d", e.config.Host, e.config.Port)
	if err := e.send(addr, auth, e.config.From, []string{e.config.To}, []byte(message)); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	log.WithField("subject", subject).Info("email sent")
	return nil
}

// TestConnection tests the SMTP connection
func (e *EmailNotifier) TestConnection() error {
	if !e.Configured() {
		return fmt.Errorf("SMTP not configured")
	}

	addr := fmt.Sprintf("%s:%d", e.config.Host, e.config.Port)
	client, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer client.Close()

	log.WithField("addr", addr).Info("SMTP connection test successful")
	return nil
}
