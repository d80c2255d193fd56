package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/vellko/affiliate-admin/internal/apperrors"
	"github.com/vellko/affiliate-admin/internal/metrics"
	"github.com/vellko/affiliate-admin/internal/repository"
)

// SignupService covers everything around a signup except the approval state
// machine: public submission, listing, edits, referral reassignment, notes,
// documents and dashboard stats.
type SignupService struct {
	signups  *repository.SignupRepository
	users    *repository.UserRepository
	notifier Notifier
	logger   zerolog.Logger
}

// NewSignupService creates a signup service.
func NewSignupService(signups *repository.SignupRepository, users *repository.UserRepository, notifier Notifier, logger zerolog.Logger) *SignupService {
	return &SignupService{
		signups:  signups,
		users:    users,
		notifier: notifier,
		logger:   logger.With().Str("service", "signup").Logger(),
	}
}

// Submit records a public signup application.
func (s *SignupService) Submit(ctx context.Context, sup *repository.Signup) error {
	if sup.MarketingInfo.ApplicationType == "" {
		sup.MarketingInfo.ApplicationType = repository.TypeWebTraffic
	}
	if err := s.signups.Create(ctx, sup); err != nil {
		return err
	}
	metrics.SignupsSubmitted.Inc()

	// Credit the referrer right away when the free-text name resolves to a
	// known user.
	if name := sup.ReferrerName(); name != "" {
		if referrer, err := s.users.GetByFullName(ctx, name); err == nil {
			if updErr := s.signups.UpdateReferral(ctx, sup.ID, &referrer.ID, referrer.FullName); updErr != nil {
				s.logger.Warn().Err(updErr).Str("signup_id", sup.ID).Msg("referral id backfill failed")
			}
			if referrer.Email != "" {
				s.notifier.ReferralAssigned(ctx, sup.ID, sup.CompanyInfo.CompanyName, referrer.Email)
			}
		}
	}
	return nil
}

// Get returns one signup. Non-admins only see signups they referred.
func (s *SignupService) Get(ctx context.Context, id string, actor *repository.User) (*repository.Signup, error) {
	sup, err := s.signups.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.Role.IsAdmin() && sup.ReferrerName() != actor.FullName {
		return nil, apperrors.Forbidden("not authorized to view this signup")
	}
	return sup, nil
}

// List returns signups with filtering and pagination. Non-admins are scoped
// to their own referrals regardless of the requested filter.
func (s *SignupService) List(ctx context.Context, actor *repository.User, f repository.ListFilter) ([]*repository.Signup, int64, error) {
	if !actor.Role.IsAdmin() {
		name := actor.FullName
		f.Referral = &name
	}
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 20
	}
	if f.Page <= 0 {
		f.Page = 1
	}
	return s.signups.List(ctx, f)
}

// UpdateSections applies a partial admin edit to the application sections.
func (s *SignupService) UpdateSections(ctx context.Context, id string, actor *repository.User, company *repository.CompanyInfo, marketing *repository.MarketingInfo, account *repository.AccountInfo, payment *repository.PaymentInfo) error {
	if !actor.Role.IsAdmin() {
		return apperrors.Forbidden("only admins can update signup details")
	}
	if company == nil && marketing == nil && account == nil && payment == nil {
		return apperrors.InvalidInput("body", "no changes provided")
	}
	return s.signups.UpdateSections(ctx, id, company, marketing, account, payment)
}

// UpdateReferral reassigns a signup's referrer by display name and notifies
// the new referrer when the name resolves to a known user.
func (s *SignupService) UpdateReferral(ctx context.Context, id string, actor *repository.User, referralName string) error {
	if !actor.Role.IsAdmin() {
		return apperrors.Forbidden("only admins can update referrals")
	}

	sup, err := s.signups.GetByID(ctx, id)
	if err != nil {
		return err
	}

	var referralID *string
	referrer, err := s.users.GetByFullName(ctx, referralName)
	if err == nil {
		referralID = &referrer.ID
	}
	if err := s.signups.UpdateReferral(ctx, id, referralID, referralName); err != nil {
		return err
	}

	if referrer != nil && referrer.Email != "" {
		s.notifier.ReferralAssigned(ctx, id, sup.CompanyInfo.CompanyName, referrer.Email)
	}
	return nil
}

// Delete purges a signup. Super-admin only.
func (s *SignupService) Delete(ctx context.Context, id string, actor *repository.User) error {
	if actor.Role != repository.RoleSuperAdmin {
		return apperrors.Forbidden("only super admins can delete signups")
	}
	return s.signups.Delete(ctx, id)
}

// Stats computes dashboard aggregates, scoped to the actor's own referrals
// for non-admins.
func (s *SignupService) Stats(ctx context.Context, actor *repository.User) (*repository.Stats, error) {
	var referral *string
	if !actor.Role.IsAdmin() {
		name := actor.FullName
		referral = &name
	}
	return s.signups.GetStats(ctx, referral)
}

// ── notes ─────────────────────────────────────────────────────────────────────

// AddNote attaches an operator note to a signup.
func (s *SignupService) AddNote(ctx context.Context, signupID string, actor *repository.User, content string) (*repository.Note, error) {
	if content == "" {
		return nil, apperrors.InvalidInput("content", "must not be empty")
	}
	if _, err := s.signups.GetByID(ctx, signupID); err != nil {
		return nil, err
	}

	note := &repository.Note{SignupID: signupID, Content: content, Author: actor.Username}
	if err := s.signups.AddNote(ctx, note); err != nil {
		return nil, err
	}
	return note, nil
}

// UpdateNote edits a note; only its author or an admin may.
func (s *SignupService) UpdateNote(ctx context.Context, noteID string, actor *repository.User, content string) error {
	note, err := s.signups.GetNote(ctx, noteID)
	if err != nil {
		return err
	}
	if note.Author != actor.Username && !actor.Role.IsAdmin() {
		return apperrors.Forbidden("only the author or an admin can edit this note")
	}
	return s.signups.UpdateNote(ctx, noteID, content)
}

// DeleteNote removes a note; only its author or an admin may.
func (s *SignupService) DeleteNote(ctx context.Context, noteID string, actor *repository.User) error {
	note, err := s.signups.GetNote(ctx, noteID)
	if err != nil {
		return err
	}
	if note.Author != actor.Username && !actor.Role.IsAdmin() {
		return apperrors.Forbidden("only the author or an admin can delete this note")
	}
	return s.signups.DeleteNote(ctx, noteID)
}

// ── documents ─────────────────────────────────────────────────────────────────

// AttachDocument records an uploaded file against a signup.
func (s *SignupService) AttachDocument(ctx context.Context, signupID string, actor *repository.User, filename, path string) (*repository.Document, error) {
	if !actor.Role.IsAdmin() {
		return nil, apperrors.Forbidden("only admins can upload documents")
	}
	if _, err := s.signups.GetByID(ctx, signupID); err != nil {
		return nil, err
	}

	doc := &repository.Document{
		SignupID:   signupID,
		Filename:   filename,
		Path:       path,
		UploadedBy: actor.Username,
	}
	if err := s.signups.AddDocument(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// RemoveDocument deletes a document record.
func (s *SignupService) RemoveDocument(ctx context.Context, signupID, filename string, actor *repository.User) error {
	if !actor.Role.IsAdmin() {
		return apperrors.Forbidden("only admins can delete documents")
	}
	return s.signups.DeleteDocument(ctx, signupID, filename)
}
