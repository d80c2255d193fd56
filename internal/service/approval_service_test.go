package service

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vellko/affiliate-admin/internal/apperrors"
	"github.com/vellko/affiliate-admin/internal/repository"
)

// ── fakes ─────────────────────────────────────────────────────────────────────

type fakeStore struct {
	sup     *repository.Signup
	applied int
}

func (f *fakeStore) GetByID(ctx context.Context, id string) (*repository.Signup, error) {
	if f.sup == nil || f.sup.ID != id {
		return nil, apperrors.NotFound("signup", id)
	}
	return f.sup, nil
}

func (f *fakeStore) ApplyDecision(ctx context.Context, s *repository.Signup) error {
	f.applied++
	s.Revision++
	f.sup = s
	return nil
}

type fakeDirectory struct {
	approvers []*repository.User
}

func (f *fakeDirectory) FindApprovers(ctx context.Context, t repository.ApplicationType) ([]*repository.User, error) {
	return f.approvers, nil
}

type fakeConnections struct{}

func (fakeConnections) GetCake(ctx context.Context) (*repository.CakeConnection, error) {
	return &repository.CakeConnection{APIKey: "k", APIURL: "http://cake"}, nil
}

func (fakeConnections) GetRingba(ctx context.Context) (*repository.RingbaConnection, error) {
	return &repository.RingbaConnection{APIToken: "t", APIURL: "http://ringba", AccountID: "RA1"}, nil
}

type failingConnections struct {
	cakeErr   error
	ringbaErr error
}

func (f failingConnections) GetCake(ctx context.Context) (*repository.CakeConnection, error) {
	if f.cakeErr != nil {
		return nil, f.cakeErr
	}
	return &repository.CakeConnection{APIKey: "k", APIURL: "http://cake"}, nil
}

func (f failingConnections) GetRingba(ctx context.Context) (*repository.RingbaConnection, error) {
	if f.ringbaErr != nil {
		return nil, f.ringbaErr
	}
	return &repository.RingbaConnection{APIToken: "t", APIURL: "http://ringba", AccountID: "RA1"}, nil
}

type fakeCakeWorker struct {
	out   Outcome
	calls int
}

func (f *fakeCakeWorker) Reconcile(ctx context.Context, conn *repository.CakeConnection, s *repository.Signup) Outcome {
	f.calls++
	return f.out
}

type fakeRingbaWorker struct {
	out   Outcome
	calls int
}

func (f *fakeRingbaWorker) Reconcile(ctx context.Context, conn *repository.RingbaConnection, s *repository.Signup, subID string) Outcome {
	f.calls++
	return f.out
}

type fakeNotifier struct {
	approvalRequests int
	lastRecipients   []string
}

func (f *fakeNotifier) ApprovalRequested(ctx context.Context, signupID, requestedBy, companyName string, approverEmails []string) {
	f.approvalRequests++
	f.lastRecipients = approverEmails
}
func (f *fakeNotifier) CredentialsIssued(ctx context.Context, signupID, email, contactName, password, affiliateID string) {
}
func (f *fakeNotifier) ReferralAssigned(ctx context.Context, signupID, companyName, referrerEmail string) {
}
func (f *fakeNotifier) UserInvited(ctx context.Context, email, username, temporaryPassword string) {}

// ── helpers ───────────────────────────────────────────────────────────────────

func newSignup(t repository.ApplicationType) *repository.Signup {
	return &repository.Signup{
		ID:     "sig-1",
		Status: repository.StatusPending,
		CompanyInfo: repository.CompanyInfo{
			CompanyName: "Acme Media",
			Referral:    "Jane Smith",
		},
		MarketingInfo: repository.MarketingInfo{ApplicationType: t},
		AccountInfo:   repository.AccountInfo{Email: "contact@acme.test", FirstName: "John", LastName: "Doe"},
		Revision:      1,
	}
}

func admin() *repository.User {
	return &repository.User{
		ID: "u-admin", Username: "admin", FullName: "Admin One",
		Role:                  repository.RoleAdmin,
		ApplicationPermission: repository.TypeBoth,
		CanApproveSignups:     true,
	}
}

type fixture struct {
	store    *fakeStore
	cake     *fakeCakeWorker
	ringba   *fakeRingbaWorker
	notifier *fakeNotifier
	svc      *ApprovalService
}

func newFixture(sup *repository.Signup) *fixture {
	f := &fixture{
		store: &fakeStore{sup: sup},
		cake: &fakeCakeWorker{out: Outcome{
			Success: true, AffiliateID: strPtr("42"), Message: "Affiliate Added",
		}},
		ringba: &fakeRingbaWorker{out: Outcome{
			Success: true, AffiliateID: strPtr("RB9"), PublisherName: strPtr("PPC_N3"), Message: "Publisher created",
		}},
		notifier: &fakeNotifier{},
	}
	f.svc = NewApprovalService(f.store, &fakeDirectory{
		approvers: []*repository.User{{Email: "boss@vellko.test"}},
	}, fakeConnections{}, f.cake, f.ringba, f.notifier, zerolog.Nop())
	return f
}

func strPtr(s string) *string { return &s }

// ── tests ─────────────────────────────────────────────────────────────────────

func TestApproveBothPlatforms(t *testing.T) {
	f := newFixture(newSignup(repository.TypeBoth))

	result, err := f.svc.Approve(context.Background(), "sig-1", admin(), DecisionInput{
		Reason: "looks good", AddToCake: true, AddToRingba: true,
	})
	require.NoError(t, err)

	assert.Equal(t, repository.StatusApproved, result.Status)
	assert.Equal(t, 1, f.cake.calls)
	assert.Equal(t, 1, f.ringba.calls)
	assert.Equal(t, 1, f.store.applied)

	sup := f.store.sup
	require.NotNil(t, sup.Cake.Status)
	assert.Equal(t, repository.PlatformApproved, *sup.Cake.Status)
	assert.Equal(t, "42", *sup.Cake.AffiliateID)
	assert.Equal(t, "admin", *sup.Cake.ProcessedBy)
	assert.Equal(t, "looks good", *sup.Cake.DecisionReason)
	require.NotNil(t, sup.Ringba.Status)
	assert.Equal(t, repository.PlatformApproved, *sup.Ringba.Status)
	assert.Equal(t, "PPC_N3", *sup.Ringba.PublisherName)
}

func TestApproveDelegatedMakesNoExternalCalls(t *testing.T) {
	f := newFixture(newSignup(repository.TypeBoth))

	referrer := &repository.User{
		ID: "u-ref", Username: "jane", FullName: "Jane Smith",
		Role:                  repository.RoleUser,
		ApplicationPermission: repository.TypeBoth,
		CanApproveSignups:     false,
	}

	result, err := f.svc.Approve(context.Background(), "sig-1", referrer, DecisionInput{
		AddToCake: true, AddToRingba: false,
	})
	require.NoError(t, err)

	assert.True(t, result.Requested)
	assert.Equal(t, "Approval requested successfully", result.Message)
	assert.Equal(t, repository.StatusRequestedForApproval, result.Status)

	assert.Zero(t, f.cake.calls)
	assert.Zero(t, f.ringba.calls)

	sup := f.store.sup
	assert.Equal(t, repository.StatusRequestedForApproval, sup.Status)
	assert.True(t, sup.RequestedCakeApproval)
	assert.False(t, sup.RequestedRingbaApproval)
	assert.Equal(t, "jane", *sup.ApprovalRequestedBy)

	assert.Equal(t, 1, f.notifier.approvalRequests)
	assert.Equal(t, []string{"boss@vellko.test"}, f.notifier.lastRecipients)
}

func TestApproveScopeViolation(t *testing.T) {
	f := newFixture(newSignup(repository.TypeBoth))

	webOnly := admin()
	webOnly.ApplicationPermission = repository.TypeWebTraffic

	_, err := f.svc.Approve(context.Background(), "sig-1", webOnly, DecisionInput{
		AddToRingba: true,
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeForbidden, apperrors.CodeOf(err))

	assert.Zero(t, f.ringba.calls)
	assert.Zero(t, f.store.applied)
	assert.Nil(t, f.store.sup.Ringba.Status)
}

func TestApproveNonReferrerForbidden(t *testing.T) {
	f := newFixture(newSignup(repository.TypeBoth))

	outsider := &repository.User{
		Username: "bob", FullName: "Bob Other",
		Role:                  repository.RoleUser,
		ApplicationPermission: repository.TypeBoth,
		CanApproveSignups:     true,
	}

	_, err := f.svc.Approve(context.Background(), "sig-1", outsider, DecisionInput{AddToCake: true})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeForbidden, apperrors.CodeOf(err))
	assert.Zero(t, f.store.applied)
}

func TestApprovePartialFailurePersistsSuccess(t *testing.T) {
	f := newFixture(newSignup(repository.TypeBoth))
	f.ringba.out = Outcome{Success: false, Message: "Ringba error: connection refused"}

	_, err := f.svc.Approve(context.Background(), "sig-1", admin(), DecisionInput{
		AddToCake: true, AddToRingba: true,
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeUpstream, apperrors.CodeOf(err))
	assert.Contains(t, err.Error(), "ringba")

	// The failure response must not mean nothing happened.
	assert.Equal(t, 1, f.store.applied)
	sup := f.store.sup
	require.NotNil(t, sup.Cake.Status)
	assert.Equal(t, repository.PlatformApproved, *sup.Cake.Status)
	assert.Equal(t, "42", *sup.Cake.AffiliateID)
	require.NotNil(t, sup.Ringba.Status)
	assert.Equal(t, repository.PlatformFailed, *sup.Ringba.Status)
	assert.Nil(t, sup.Ringba.AffiliateID)
	assert.Equal(t, repository.StatusApproved, sup.Status)

	var appErr *apperrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Contains(t, appErr.Details, "cake")
	assert.Contains(t, appErr.Details, "ringba")
}

func TestApproveRingbaConnectionFailureMakesNoExternalCalls(t *testing.T) {
	f := newFixture(newSignup(repository.TypeBoth))
	svc := NewApprovalService(f.store, &fakeDirectory{},
		failingConnections{ringbaErr: apperrors.NotFound("connection", "ringba")},
		f.cake, f.ringba, f.notifier, zerolog.Nop())

	_, err := svc.Approve(context.Background(), "sig-1", admin(), DecisionInput{
		AddToCake: true, AddToRingba: true,
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeNotFound, apperrors.CodeOf(err))

	// Every requested connection must resolve before the first partner call,
	// otherwise an unresolvable connection would strand external side effects
	// that never get persisted.
	assert.Zero(t, f.cake.calls)
	assert.Zero(t, f.ringba.calls)
	assert.Zero(t, f.store.applied)
	assert.Nil(t, f.store.sup.Cake.Status)
	assert.Nil(t, f.store.sup.Ringba.Status)
}

func TestApproveIncrementalPlatforms(t *testing.T) {
	f := newFixture(newSignup(repository.TypeBoth))

	result, err := f.svc.Approve(context.Background(), "sig-1", admin(), DecisionInput{AddToCake: true})
	require.NoError(t, err)
	assert.Equal(t, repository.StatusApproved, result.Status)

	sup := f.store.sup
	assert.Equal(t, repository.PlatformApproved, *sup.Cake.Status)
	assert.Nil(t, sup.Ringba.Status)

	result, err = f.svc.Approve(context.Background(), "sig-1", admin(), DecisionInput{AddToRingba: true})
	require.NoError(t, err)
	assert.Equal(t, repository.StatusApproved, result.Status)

	sup = f.store.sup
	assert.Equal(t, repository.PlatformApproved, *sup.Cake.Status)
	assert.Equal(t, repository.PlatformApproved, *sup.Ringba.Status)
	assert.Equal(t, 1, f.cake.calls)
	assert.Equal(t, 1, f.ringba.calls)
}

func TestApprovePlatformMismatch(t *testing.T) {
	f := newFixture(newSignup(repository.TypeWebTraffic))

	_, err := f.svc.Approve(context.Background(), "sig-1", admin(), DecisionInput{AddToRingba: true})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeInvalidInput, apperrors.CodeOf(err))
}

func TestRejectDefaultsToActionablePlatforms(t *testing.T) {
	sup := newSignup(repository.TypeBoth)
	approved := repository.PlatformApproved
	sup.Cake.Status = &approved
	f := newFixture(sup)

	result, err := f.svc.Reject(context.Background(), "sig-1", admin(), DecisionInput{Reason: "spam"})
	require.NoError(t, err)
	assert.Equal(t, "Rejected", result.Message)

	got := f.store.sup
	// The already approved platform is untouched by the default selection.
	assert.Equal(t, repository.PlatformApproved, *got.Cake.Status)
	assert.Equal(t, repository.PlatformRejected, *got.Ringba.Status)
	assert.Equal(t, "spam", *got.Ringba.DecisionReason)
	assert.Equal(t, repository.StatusApproved, got.Status)
}

func TestRejectAllActionable(t *testing.T) {
	f := newFixture(newSignup(repository.TypeBoth))

	result, err := f.svc.Reject(context.Background(), "sig-1", admin(), DecisionInput{Reason: "fraud"})
	require.NoError(t, err)
	assert.Equal(t, repository.StatusRejected, result.Status)

	got := f.store.sup
	assert.Equal(t, repository.PlatformRejected, *got.Cake.Status)
	assert.Equal(t, repository.PlatformRejected, *got.Ringba.Status)
	assert.Zero(t, f.cake.calls)
	assert.Zero(t, f.ringba.calls)
}

func TestResetIsIdempotent(t *testing.T) {
	sup := newSignup(repository.TypeBoth)
	approved := repository.PlatformApproved
	failed := repository.PlatformFailed
	sup.Cake = repository.PlatformDecision{Status: &approved, AffiliateID: strPtr("42")}
	sup.Ringba = repository.PlatformDecision{Status: &failed, Message: strPtr("timeout")}
	sup.Status = repository.StatusApproved
	f := newFixture(sup)

	result, err := f.svc.Reset(context.Background(), "sig-1", admin())
	require.NoError(t, err)
	assert.Equal(t, "Signup reset to Pending", result.Message)

	first := *f.store.sup
	assert.Equal(t, repository.StatusPending, first.Status)
	assert.Equal(t, repository.PlatformDecision{}, first.Cake)
	assert.Equal(t, repository.PlatformDecision{}, first.Ringba)

	_, err = f.svc.Reset(context.Background(), "sig-1", admin())
	require.NoError(t, err)

	second := *f.store.sup
	second.Revision = first.Revision
	assert.Equal(t, first, second)
}

func TestApproveSignupNotFound(t *testing.T) {
	f := newFixture(newSignup(repository.TypeBoth))

	_, err := f.svc.Approve(context.Background(), "missing", admin(), DecisionInput{AddToCake: true})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeNotFound, apperrors.CodeOf(err))
}
