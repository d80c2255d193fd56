package notifier

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/vellko/affiliate-admin/internal/client"
	"github.com/vellko/affiliate-admin/internal/config"
)

// Worker consumes signup workflow events from NATS and delivers the emails.
// Without a SendGrid key configured it logs the rendered message instead,
// which is the development-mode behaviour.
type Worker struct {
	conn *nats.Conn
	cfg  config.EmailConfig
	log  zerolog.Logger
	sub  *nats.Subscription
}

// New creates a notification worker.
func New(conn *nats.Conn, cfg config.EmailConfig, log zerolog.Logger) *Worker {
	return &Worker{conn: conn, cfg: cfg, log: log.With().Str("component", "notifier").Logger()}
}

// Start subscribes to all affiliate notification subjects.
func (w *Worker) Start() error {
	sub, err := w.conn.Subscribe("notifications.affiliate.>", w.handle)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	w.sub = sub
	w.log.Info().Msg("notification worker started")
	return nil
}

// Stop unsubscribes and drains in-flight messages.
func (w *Worker) Stop() {
	if w.sub != nil {
		_ = w.sub.Drain()
	}
}

func (w *Worker) handle(msg *nats.Msg) {
	var event client.NotificationEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		w.log.Warn().Err(err).Str("subject", msg.Subject).Msg("dropping malformed event")
		return
	}

	subject, plain, html := w.render(&event)
	if subject == "" {
		w.log.Warn().Str("event_type", event.EventType).Msg("dropping unknown event type")
		return
	}

	for _, recipient := range event.Recipients {
		if err := w.send(recipient, subject, plain, html); err != nil {
			w.log.Warn().Err(err).
				Str("event_id", event.EventID).
				Str("event_type", event.EventType).
				Str("recipient", recipient).
				Msg("email delivery failed")
		}
	}
}

func (w *Worker) render(event *client.NotificationEvent) (subject, plain, html string) {
	p := func(key string) string {
		v, _ := event.Payload[key].(string)
		return v
	}

	switch event.EventType {
	case "approval_requested":
		subject = fmt.Sprintf("Approval requested: %s", p("company_name"))
		plain = fmt.Sprintf(
			"%s has requested approval for the signup %q.\n\nReview it here: %s/admin/signups/%s",
			p("requested_by"), p("company_name"), w.cfg.FrontendURL, event.SignupID)
	case "credentials_issued":
		subject = "Your affiliate account is ready"
		plain = fmt.Sprintf(
			"Hi %s,\n\nYour affiliate account has been approved.\nAffiliate ID: %s\nPassword: %s\n\nPlease sign in and change your password.",
			p("contact_name"), p("affiliate_id"), p("password"))
	case "referral_assigned":
		subject = fmt.Sprintf("New referral: %s", p("company_name"))
		plain = fmt.Sprintf(
			"The signup %q has been credited to you.\n\nView it here: %s/admin/signups/%s",
			p("company_name"), w.cfg.FrontendURL, event.SignupID)
	case "user_invited":
		subject = "Your operator account"
		plain = fmt.Sprintf(
			"An account has been created for you.\nUsername: %s\nTemporary password: %s\n\nSign in at %s and change your password.",
			p("username"), p("temporary_password"), w.cfg.FrontendURL)
	default:
		return "", "", ""
	}

	html = "<pre>" + plain + "</pre>"
	return subject, plain, html
}

func (w *Worker) send(to, subject, plain, html string) error {
	if w.cfg.SendGridAPIKey == "" {
		w.log.Info().
			Str("to", to).
			Str("subject", subject).
			Str("body", plain).
			Msg("email (console fallback)")
		return nil
	}

	from := mail.NewEmail(w.cfg.FromName, w.cfg.FromEmail)
	message := mail.NewSingleEmail(from, subject, mail.NewEmail("", to), plain, html)

	sgClient := sendgrid.NewSendClient(w.cfg.SendGridAPIKey)
	resp, err := sgClient.Send(message)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid returned %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}
