package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/vellko/affiliate-admin/internal/repository"
	"github.com/vellko/affiliate-admin/internal/ringba"
)

// RingbaAPI is the slice of the Ringba client the worker needs.
type RingbaAPI interface {
	CreatePublisher(ctx context.Context, conn *repository.RingbaConnection, name, subID string) (*ringba.CreateResult, error)
	InvitePublisher(ctx context.Context, conn *repository.RingbaConnection, publisherID, email, firstName, lastName string) error
}

// PublisherNameSource yields the most recent approved PPC_N name.
type PublisherNameSource interface {
	LastApprovedPublisherName(ctx context.Context) (*string, error)
}

// RingbaWorker drives the Ringba call sequence for one approval: compute the
// next PPC_N name, create the publisher, then invite the contact.
type RingbaWorker struct {
	client RingbaAPI
	names  PublisherNameSource
	logger zerolog.Logger
}

// NewRingbaWorker creates a Ringba reconciliation worker.
func NewRingbaWorker(client RingbaAPI, names PublisherNameSource, logger zerolog.Logger) *RingbaWorker {
	return &RingbaWorker{
		client: client,
		names:  names,
		logger: logger.With().Str("worker", "ringba").Logger(),
	}
}

// Reconcile runs the Ringba sequence for the given signup. subID overrides
// the publisher sub-identifier; empty means derive from the signup id.
func (w *RingbaWorker) Reconcile(ctx context.Context, conn *repository.RingbaConnection, s *repository.Signup, subID string) Outcome {
	last, err := w.names.LastApprovedPublisherName(ctx)
	if err != nil {
		return Outcome{Success: false, Message: fmt.Sprintf("publisher name lookup failed: %v", err)}
	}
	name := NextPublisherName(last)

	if subID == "" {
		subID = s.ID
	}

	res, err := w.client.CreatePublisher(ctx, conn, name, subID)
	if err != nil {
		out := Outcome{Success: false, Message: fmt.Sprintf("Ringba error: %v", err), PublisherName: &name}
		if res != nil {
			out.RawResponse = res.RawResponse
		}
		return out
	}

	message := fmt.Sprintf("Publisher %s created (ID %s)", name, res.PublisherID)

	err = w.client.InvitePublisher(ctx, conn, res.PublisherID,
		s.AccountInfo.Email, s.AccountInfo.FirstName, s.AccountInfo.LastName)
	if err != nil {
		// A failed invite never invalidates the creation.
		message += fmt.Sprintf("; invitation failed: %v", err)
		w.logger.Warn().Err(err).
			Str("signup_id", s.ID).
			Str("publisher_id", res.PublisherID).
			Msg("publisher invitation failed")
	}

	publisherID := res.PublisherID
	return Outcome{
		Success:       true,
		AffiliateID:   &publisherID,
		PublisherName: &name,
		Message:       message,
		RawResponse:   res.RawResponse,
	}
}
