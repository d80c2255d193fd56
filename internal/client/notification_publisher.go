package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// NotificationPublisher publishes signup workflow events to NATS for
// consumption by the notifier worker, which renders and sends the emails.
//
// Subject convention: notifications.affiliate.<event_type>
// Event types: approval_requested, credentials_issued, referral_assigned,
//              user_invited
//
// All publish operations are non-fatal — errors are logged but never
// propagated to the caller, so notification failures never interrupt a
// decision.
type NotificationPublisher struct {
	conn *nats.Conn
	log  zerolog.Logger
}

// NotificationEvent is the JSON schema published to NATS.
type NotificationEvent struct {
	EventID    string         `json:"event_id"`
	EventType  string         `json:"event_type"`
	SignupID   string         `json:"signup_id,omitempty"`
	ActorID    string         `json:"actor_id,omitempty"`
	Recipients []string       `json:"recipients"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// NewNotificationPublisher creates a publisher backed by the given NATS
// connection. A nil connection yields a no-op publisher.
func NewNotificationPublisher(conn *nats.Conn, log zerolog.Logger) *NotificationPublisher {
	return &NotificationPublisher{conn: conn, log: log}
}

func (p *NotificationPublisher) publish(eventType string, event *NotificationEvent) {
	if p.conn == nil {
		return
	}
	if len(event.Recipients) == 0 {
		return
	}
	event.EventID = uuid.NewString()
	event.EventType = eventType

	data, err := json.Marshal(event)
	if err != nil {
		p.log.Warn().Err(err).Str("event_type", eventType).Msg("notification: failed to marshal event")
		return
	}

	subject := fmt.Sprintf("notifications.affiliate.%s", eventType)
	if err := p.conn.Publish(subject, data); err != nil {
		p.log.Warn().Err(err).
			Str("subject", subject).
			Str("signup_id", event.SignupID).
			Msg("notification: failed to publish NATS event (non-fatal)")
		return
	}

	p.log.Debug().
		Str("subject", subject).
		Str("signup_id", event.SignupID).
		Int("recipients", len(event.Recipients)).
		Msg("notification: event published")
}

// ApprovalRequested notifies eligible approvers that a referrer has asked for
// a signup to be approved.
func (p *NotificationPublisher) ApprovalRequested(ctx context.Context, signupID, requestedBy, companyName string, approverEmails []string) {
	p.publish("approval_requested", &NotificationEvent{
		SignupID:   signupID,
		ActorID:    requestedBy,
		Recipients: approverEmails,
		Payload: map[string]any{
			"company_name": companyName,
			"requested_by": requestedBy,
		},
	})
}

// CredentialsIssued delivers freshly generated partner credentials to the
// affiliate contact.
func (p *NotificationPublisher) CredentialsIssued(ctx context.Context, signupID, email, contactName, password, affiliateID string) {
	p.publish("credentials_issued", &NotificationEvent{
		SignupID:   signupID,
		Recipients: []string{email},
		Payload: map[string]any{
			"contact_name": contactName,
			"password":     password,
			"affiliate_id": affiliateID,
		},
	})
}

// ReferralAssigned tells a user a signup has been credited to them.
func (p *NotificationPublisher) ReferralAssigned(ctx context.Context, signupID, companyName, referrerEmail string) {
	p.publish("referral_assigned", &NotificationEvent{
		SignupID:   signupID,
		Recipients: []string{referrerEmail},
		Payload: map[string]any{
			"company_name": companyName,
		},
	})
}

// UserInvited sends a new operator their initial sign-in details.
func (p *NotificationPublisher) UserInvited(ctx context.Context, email, username, temporaryPassword string) {
	p.publish("user_invited", &NotificationEvent{
		ActorID:    username,
		Recipients: []string{email},
		Payload: map[string]any{
			"username":           username,
			"temporary_password": temporaryPassword,
		},
	})
}
