package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"

	"gopkg.in/gomail.v2"

	"github.com/pulsewatch/pulsewatch/internal/config"
)

// EmailTransport delivers digests over SMTP. The markdown body is sent as
// plain text with a minimally styled HTML alternative.
type EmailTransport struct {
	host     string
	port     int
	username string
	password string
	to       string
}

var _ Transport = (*EmailTransport)(nil)

// NewEmailTransport creates an email transport from SMTP configuration.
func NewEmailTransport(cfg *config.Config) *EmailTransport {
	return &EmailTransport{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		username: cfg.SMTPUsername,
		password: cfg.SMTPPassword,
		to:       cfg.NotificationEmail,
	}
}

func (e *EmailTransport) Name() string {
	return "email"
}

var emailTemplate = template.Must(template.New("digest").Parse(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; color: #222; }
        .header { background-color: #0078d4; color: white; padding: 16px; border-radius: 5px; }
        pre { white-space: pre-wrap; font-family: inherit; background-color: #fafafa;
              border-left: 4px solid #0078d4; padding: 12px; }
    </style>
</head>
<body>
    <div class="header"><h2>{{.Title}}</h2></div>
    <pre>{{.Body}}</pre>
</body>
</html>
`))

// Send delivers one digest email.
func (e *EmailTransport) Send(ctx context.Context, title, markdown string) error {
	if e.to == "" {
		return fmt.Errorf("notification email not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var htmlBody bytes.Buffer
	data := struct{ Title, Body string }{Title: title, Body: markdown}
	if err := emailTemplate.Execute(&htmlBody, data); err != nil {
		return fmt.Errorf("failed to build email HTML: %w", err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", e.username)
	m.SetHeader("To", e.to)
	m.SetHeader("Subject", title)
	m.SetBody("text/plain", stripMarkdown(markdown))
	m.AddAlternative("text/html", htmlBody.String())

	d := gomail.NewDialer(e.host, e.port, e.username, e.password)
	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}

// stripMarkdown drops bold markers so the plain-text part reads cleanly.
func stripMarkdown(s string) string {
	return strings.ReplaceAll(s, "**", "")
}
