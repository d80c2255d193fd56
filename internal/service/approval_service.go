package service

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/vellko/affiliate-admin/internal/apperrors"
	"github.com/vellko/affiliate-admin/internal/metrics"
	"github.com/vellko/affiliate-admin/internal/repository"
)

// SignupDecisionStore is the slice of the signup repository the state machine
// writes through. ApplyDecision must be conditional on the signup's revision.
type SignupDecisionStore interface {
	GetByID(ctx context.Context, id string) (*repository.Signup, error)
	ApplyDecision(ctx context.Context, s *repository.Signup) error
}

// ApproverDirectory finds eligible approvers for delegated requests.
type ApproverDirectory interface {
	FindApprovers(ctx context.Context, appType repository.ApplicationType) ([]*repository.User, error)
}

// ConnectionSource resolves the active partner connections.
type ConnectionSource interface {
	GetCake(ctx context.Context) (*repository.CakeConnection, error)
	GetRingba(ctx context.Context) (*repository.RingbaConnection, error)
}

type cakeReconciler interface {
	Reconcile(ctx context.Context, conn *repository.CakeConnection, s *repository.Signup) Outcome
}

type ringbaReconciler interface {
	Reconcile(ctx context.Context, conn *repository.RingbaConnection, s *repository.Signup, subID string) Outcome
}

// ApprovalService is the approval state machine. It authorizes the actor,
// enforces permission scope, delegates to the per-platform workers, merges
// their outcomes into the signup and persists the result in one conditional
// write.
type ApprovalService struct {
	signups     SignupDecisionStore
	users       ApproverDirectory
	connections ConnectionSource
	cakeWorker  cakeReconciler
	ringba      ringbaReconciler
	notifier    Notifier
	logger      zerolog.Logger
}

// NewApprovalService wires the approval state machine.
func NewApprovalService(
	signups SignupDecisionStore,
	users ApproverDirectory,
	connections ConnectionSource,
	cakeWorker cakeReconciler,
	ringbaWorker ringbaReconciler,
	notifier Notifier,
	logger zerolog.Logger,
) *ApprovalService {
	return &ApprovalService{
		signups:     signups,
		users:       users,
		connections: connections,
		cakeWorker:  cakeWorker,
		ringba:      ringbaWorker,
		notifier:    notifier,
		logger:      logger.With().Str("service", "approval").Logger(),
	}
}

// DecisionInput carries an operator's approve/reject intent.
type DecisionInput struct {
	Reason            string                  `json:"reason"`
	AddToCake         bool                    `json:"addToCake"`
	AddToRingba       bool                    `json:"addToRingba"`
	RingbaSubID       string                  `json:"ringba_sub_id"`
	CakeQAResponses   []repository.QAResponse `json:"cake_qa_responses"`
	RingbaQAResponses []repository.QAResponse `json:"ringba_qa_responses"`
}

// PlatformOutcome is one platform's result in a decision response.
type PlatformOutcome struct {
	ID      *string `json:"id"`
	Message string  `json:"message"`
}

// DecisionResult is the caller-visible outcome of a decision.
type DecisionResult struct {
	Message   string                     `json:"message"`
	Status    repository.SignupStatus    `json:"status"`
	Requested bool                       `json:"-"`
	Details   map[string]PlatformOutcome `json:"details,omitempty"`
}

// Approve processes an APPROVE intent. Actors without direct approval rights
// are short-circuited into REQUESTED_FOR_APPROVAL with zero external calls.
// When any requested platform's worker fails, the merged state is persisted
// first and the error is raised after, so a failure response never means
// nothing changed.
func (s *ApprovalService) Approve(ctx context.Context, signupID string, actor *repository.User, in DecisionInput) (*DecisionResult, error) {
	sup, err := s.signups.GetByID(ctx, signupID)
	if err != nil {
		return nil, err
	}
	if err := authorizeDecision(actor, sup); err != nil {
		return nil, err
	}

	appType := sup.MarketingInfo.ApplicationType
	if !in.AddToCake && !in.AddToRingba {
		return nil, apperrors.InvalidInput("platforms", "at least one platform must be requested")
	}
	if in.AddToCake && !appType.WantsCake() {
		return nil, apperrors.InvalidInput("addToCake", "signup does not include web traffic")
	}
	if in.AddToRingba && !appType.WantsRingba() {
		return nil, apperrors.InvalidInput("addToRingba", "signup does not include call traffic")
	}
	if err := checkScope(actor, in.AddToCake, in.AddToRingba); err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	if !actor.CanApproveSignups {
		return s.requestApproval(ctx, sup, actor, in, now)
	}

	// Resolve every requested connection before the first external call, so a
	// missing or unreadable connection fails with no state change anywhere.
	var cakeConn *repository.CakeConnection
	var ringbaConn *repository.RingbaConnection
	if in.AddToCake {
		if cakeConn, err = s.connections.GetCake(ctx); err != nil {
			return nil, err
		}
	}
	if in.AddToRingba {
		if ringbaConn, err = s.connections.GetRingba(ctx); err != nil {
			return nil, err
		}
	}

	details := make(map[string]PlatformOutcome)
	var failures []string

	if in.AddToCake {
		out := s.cakeWorker.Reconcile(ctx, cakeConn, sup)
		applyOutcome(&sup.Cake, out, actor.Username, in.Reason, in.CakeQAResponses, now)
		recordDecisionMetric(repository.PlatformCake, out)
		details["cake"] = PlatformOutcome{ID: out.AffiliateID, Message: out.Message}
		if !out.Success {
			failures = append(failures, "cake: "+out.Message)
		}
	}

	if in.AddToRingba {
		out := s.ringba.Reconcile(ctx, ringbaConn, sup, in.RingbaSubID)
		applyOutcome(&sup.Ringba, out, actor.Username, in.Reason, in.RingbaQAResponses, now)
		recordDecisionMetric(repository.PlatformRingba, out)
		details["ringba"] = PlatformOutcome{ID: out.AffiliateID, Message: out.Message}
		if !out.Success {
			failures = append(failures, "ringba: "+out.Message)
		}
	}

	sup.Status = DeriveStatus(appType, sup.Cake.Status, sup.Ringba.Status)
	clearApprovalRequest(sup)

	if err := s.signups.ApplyDecision(ctx, sup); err != nil {
		return nil, err
	}

	if len(failures) > 0 {
		detailsMap := make(map[string]any, len(details))
		for k, v := range details {
			detailsMap[k] = v
		}
		return nil, apperrors.New(apperrors.CodeUpstream, strings.Join(failures, "; ")).WithDetails(detailsMap)
	}

	return &DecisionResult{Message: "Approved", Status: sup.Status, Details: details}, nil
}

// requestApproval is the delegated-approval path: no external calls, just a
// recorded request plus a notification to eligible approvers.
func (s *ApprovalService) requestApproval(ctx context.Context, sup *repository.Signup, actor *repository.User, in DecisionInput, now time.Time) (*DecisionResult, error) {
	sup.Status = repository.StatusRequestedForApproval
	sup.ApprovalRequestedBy = &actor.Username
	sup.ApprovalRequestedAt = &now
	sup.RequestedCakeApproval = in.AddToCake
	sup.RequestedRingbaApproval = in.AddToRingba

	if err := s.signups.ApplyDecision(ctx, sup); err != nil {
		return nil, err
	}

	approvers, err := s.users.FindApprovers(ctx, sup.MarketingInfo.ApplicationType)
	if err != nil {
		s.logger.Warn().Err(err).Str("signup_id", sup.ID).Msg("approver lookup failed, skipping notification")
	} else {
		emails := make([]string, 0, len(approvers))
		for _, a := range approvers {
			if a.Email != "" {
				emails = append(emails, a.Email)
			}
		}
		s.notifier.ApprovalRequested(ctx, sup.ID, actor.Username, sup.CompanyInfo.CompanyName, emails)
	}

	return &DecisionResult{
		Message:   "Approval requested successfully",
		Status:    repository.StatusRequestedForApproval,
		Requested: true,
	}, nil
}

// Reject processes a REJECT intent. No external calls are made. With no
// explicit platform selection, every platform still actionable for the
// signup's application type is rejected.
func (s *ApprovalService) Reject(ctx context.Context, signupID string, actor *repository.User, in DecisionInput) (*DecisionResult, error) {
	sup, err := s.signups.GetByID(ctx, signupID)
	if err != nil {
		return nil, err
	}
	if err := authorizeDecision(actor, sup); err != nil {
		return nil, err
	}

	appType := sup.MarketingInfo.ApplicationType

	rejectCake, rejectRingba := in.AddToCake, in.AddToRingba
	if !rejectCake && !rejectRingba {
		rejectCake = appType.WantsCake() && repository.Actionable(sup.Cake.Status)
		rejectRingba = appType.WantsRingba() && repository.Actionable(sup.Ringba.Status)
	} else {
		if rejectCake && !appType.WantsCake() {
			return nil, apperrors.InvalidInput("addToCake", "signup does not include web traffic")
		}
		if rejectRingba && !appType.WantsRingba() {
			return nil, apperrors.InvalidInput("addToRingba", "signup does not include call traffic")
		}
	}
	if err := checkScope(actor, rejectCake, rejectRingba); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	rejected := repository.PlatformRejected

	if rejectCake {
		sup.Cake.Status = &rejected
		setDecisionMeta(&sup.Cake, actor.Username, in.Reason, now)
		metrics.Decisions.WithLabelValues(string(repository.PlatformCake), "rejected").Inc()
	}
	if rejectRingba {
		sup.Ringba.Status = &rejected
		setDecisionMeta(&sup.Ringba, actor.Username, in.Reason, now)
		metrics.Decisions.WithLabelValues(string(repository.PlatformRingba), "rejected").Inc()
	}

	sup.Status = DeriveStatus(appType, sup.Cake.Status, sup.Ringba.Status)
	clearApprovalRequest(sup)

	if err := s.signups.ApplyDecision(ctx, sup); err != nil {
		return nil, err
	}
	return &DecisionResult{Message: "Rejected", Status: sup.Status}, nil
}

// Reset clears all decision state back to PENDING. Unconditional and
// idempotent; no external calls.
func (s *ApprovalService) Reset(ctx context.Context, signupID string, actor *repository.User) (*DecisionResult, error) {
	sup, err := s.signups.GetByID(ctx, signupID)
	if err != nil {
		return nil, err
	}
	if err := authorizeDecision(actor, sup); err != nil {
		return nil, err
	}

	sup.Cake = repository.PlatformDecision{}
	sup.Ringba = repository.PlatformDecision{}
	sup.Status = repository.StatusPending
	clearApprovalRequest(sup)

	if err := s.signups.ApplyDecision(ctx, sup); err != nil {
		return nil, err
	}
	return &DecisionResult{Message: "Signup reset to Pending", Status: repository.StatusPending}, nil
}

// ── helpers ───────────────────────────────────────────────────────────────────

// authorizeDecision admits admins and the signup's own referrer.
func authorizeDecision(actor *repository.User, sup *repository.Signup) error {
	if actor.Role.IsAdmin() {
		return nil
	}
	if sup.ReferrerName() != "" && sup.ReferrerName() == actor.FullName {
		return nil
	}
	return apperrors.Forbidden("not authorized to act on this signup")
}

// checkScope restricts non-super-admins to their application permission.
func checkScope(actor *repository.User, wantCake, wantRingba bool) error {
	if actor.Role == repository.RoleSuperAdmin {
		return nil
	}
	if wantCake && !actor.ApplicationPermission.WantsCake() {
		return apperrors.Forbidden("web traffic permission required to act on cake")
	}
	if wantRingba && !actor.ApplicationPermission.WantsRingba() {
		return apperrors.Forbidden("call traffic permission required to act on ringba")
	}
	return nil
}

// applyOutcome merges a worker outcome into the platform decision. The
// external id is adopted only on success; a failure leaves any previously
// stored id untouched.
func applyOutcome(d *repository.PlatformDecision, out Outcome, actor, reason string, qa []repository.QAResponse, now time.Time) {
	status := repository.PlatformFailed
	if out.Success {
		status = repository.PlatformApproved
	}
	d.Status = &status
	d.Message = &out.Message
	if out.RawResponse != "" {
		raw := out.RawResponse
		d.RawResponse = &raw
	}
	setDecisionMeta(d, actor, reason, now)
	if out.Success {
		d.AffiliateID = out.AffiliateID
	}
	if out.PublisherName != nil {
		d.PublisherName = out.PublisherName
	}
	if len(qa) > 0 {
		d.QAResponses = qa
	}
}

func setDecisionMeta(d *repository.PlatformDecision, actor, reason string, now time.Time) {
	d.ProcessedBy = &actor
	d.ProcessedAt = &now
	if reason != "" {
		d.DecisionReason = &reason
	}
}

func clearApprovalRequest(sup *repository.Signup) {
	sup.ApprovalRequestedBy = nil
	sup.ApprovalRequestedAt = nil
	sup.RequestedCakeApproval = false
	sup.RequestedRingbaApproval = false
}

func recordDecisionMetric(platform repository.Platform, out Outcome) {
	outcome := "failed"
	if out.Success {
		outcome = "approved"
	}
	metrics.Decisions.WithLabelValues(string(platform), outcome).Inc()
}
