package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/vellko/affiliate-admin/internal/cake"
	"github.com/vellko/affiliate-admin/internal/repository"
)

// Outcome is a normalized per-platform reconciliation result. Transport and
// protocol failures both land here as Success=false; nothing escapes a worker
// as an error.
type Outcome struct {
	Success       bool
	AffiliateID   *string
	PublisherName *string
	Message       string
	RawResponse   string
}

// CakeAPI is the slice of the Cake client the worker needs.
type CakeAPI interface {
	CreateAffiliate(ctx context.Context, conn *repository.CakeConnection, params map[string]string) (*cake.CreateResult, error)
	AssignManager(ctx context.Context, conn *repository.CakeConnection, affiliateID, managerID string) error
}

// ManagerDirectory resolves referrers to their Cake account manager ids.
type ManagerDirectory interface {
	GetByID(ctx context.Context, id string) (*repository.User, error)
	GetByFullName(ctx context.Context, fullName string) (*repository.User, error)
}

// Notifier publishes fire-and-forget workflow notifications.
type Notifier interface {
	ApprovalRequested(ctx context.Context, signupID, requestedBy, companyName string, approverEmails []string)
	CredentialsIssued(ctx context.Context, signupID, email, contactName, password, affiliateID string)
	ReferralAssigned(ctx context.Context, signupID, companyName, referrerEmail string)
	UserInvited(ctx context.Context, email, username, temporaryPassword string)
}

// CakeWorker drives the Cake call sequence for one approval: create the
// affiliate (with duplicate recovery), assign the referrer's account manager,
// then deliver credentials to the contact.
type CakeWorker struct {
	client   CakeAPI
	users    ManagerDirectory
	notifier Notifier
	logger   zerolog.Logger
}

// NewCakeWorker creates a Cake reconciliation worker.
func NewCakeWorker(client CakeAPI, users ManagerDirectory, notifier Notifier, logger zerolog.Logger) *CakeWorker {
	return &CakeWorker{
		client:   client,
		users:    users,
		notifier: notifier,
		logger:   logger.With().Str("worker", "cake").Logger(),
	}
}

// Reconcile runs the Cake sequence for the given signup. A fresh password is
// generated per invocation for the affiliate's external account.
func (w *CakeWorker) Reconcile(ctx context.Context, conn *repository.CakeConnection, s *repository.Signup) Outcome {
	password, err := GeneratePassword()
	if err != nil {
		return Outcome{Success: false, Message: fmt.Sprintf("password generation failed: %v", err)}
	}

	params := AffiliateParams(s, password, time.Now())

	res, err := w.client.CreateAffiliate(ctx, conn, params)
	if err != nil {
		return Outcome{Success: false, Message: fmt.Sprintf("CAKE connection error: %v", err)}
	}
	if !res.Success {
		return Outcome{Success: false, Message: res.Message, RawResponse: res.RawResponse}
	}

	message := res.Message
	if res.Recovered {
		message = fmt.Sprintf("Existing affiliate recovered (ID %s): %s", res.AffiliateID, res.Message)
	}

	managerID := w.resolveManagerID(ctx, s)
	if err := w.client.AssignManager(ctx, conn, res.AffiliateID, managerID); err != nil {
		// A failed assignment never invalidates the creation.
		message += fmt.Sprintf("; manager assignment failed: %v", err)
		w.logger.Warn().Err(err).
			Str("signup_id", s.ID).
			Str("affiliate_id", res.AffiliateID).
			Msg("manager assignment failed")
	}

	if email := s.AccountInfo.Email; email != "" {
		contactName := s.AccountInfo.FirstName + " " + s.AccountInfo.LastName
		w.notifier.CredentialsIssued(ctx, s.ID, email, contactName, password, res.AffiliateID)
	}

	affiliateID := res.AffiliateID
	return Outcome{
		Success:     true,
		AffiliateID: &affiliateID,
		Message:     message,
		RawResponse: res.RawResponse,
	}
}

// resolveManagerID finds the referrer's configured Cake manager id, first by
// referral id, then by full-name match for legacy records. "0" means
// unassigned.
func (w *CakeWorker) resolveManagerID(ctx context.Context, s *repository.Signup) string {
	var referrer *repository.User
	if s.ReferralID != nil {
		if u, err := w.users.GetByID(ctx, *s.ReferralID); err == nil {
			referrer = u
		}
	}
	if referrer == nil && s.ReferrerName() != "" {
		if u, err := w.users.GetByFullName(ctx, s.ReferrerName()); err == nil {
			referrer = u
		}
	}
	if referrer != nil && referrer.CakeAccountManagerID != nil && *referrer.CakeAccountManagerID != "" {
		return *referrer.CakeAccountManagerID
	}
	return "0"
}
