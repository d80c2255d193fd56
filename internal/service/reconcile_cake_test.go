package service

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vellko/affiliate-admin/internal/cake"
	"github.com/vellko/affiliate-admin/internal/repository"
)

type fakeCakeAPI struct {
	createResult *cake.CreateResult
	createErr    error
	assignErr    error

	createdParams   map[string]string
	assignedID      string
	assignedManager string
}

func (f *fakeCakeAPI) CreateAffiliate(ctx context.Context, conn *repository.CakeConnection, params map[string]string) (*cake.CreateResult, error) {
	f.createdParams = params
	return f.createResult, f.createErr
}

func (f *fakeCakeAPI) AssignManager(ctx context.Context, conn *repository.CakeConnection, affiliateID, managerID string) error {
	f.assignedID = affiliateID
	f.assignedManager = managerID
	return f.assignErr
}

type fakeManagerDirectory struct {
	byID   map[string]*repository.User
	byName map[string]*repository.User
}

func (f *fakeManagerDirectory) GetByID(ctx context.Context, id string) (*repository.User, error) {
	if u, ok := f.byID[id]; ok {
		return u, nil
	}
	return nil, errors.New("not found")
}

func (f *fakeManagerDirectory) GetByFullName(ctx context.Context, name string) (*repository.User, error) {
	if u, ok := f.byName[name]; ok {
		return u, nil
	}
	return nil, errors.New("not found")
}

type recordingNotifier struct {
	fakeNotifier
	credentialEmails []string
	lastPassword     string
}

func (r *recordingNotifier) CredentialsIssued(ctx context.Context, signupID, email, contactName, password, affiliateID string) {
	r.credentialEmails = append(r.credentialEmails, email)
	r.lastPassword = password
}

func cakeConn() *repository.CakeConnection {
	return &repository.CakeConnection{APIKey: "k", APIURL: "http://cake", APIV2URL: "http://cake-v2"}
}

func TestCakeWorkerSuccess(t *testing.T) {
	managerID := "77"
	api := &fakeCakeAPI{createResult: &cake.CreateResult{
		Success: true, AffiliateID: "42", Message: "Affiliate Added", RawResponse: "<xml/>",
	}}
	users := &fakeManagerDirectory{byName: map[string]*repository.User{
		"Jane Smith": {FullName: "Jane Smith", CakeAccountManagerID: &managerID},
	}}
	notifier := &recordingNotifier{}

	w := NewCakeWorker(api, users, notifier, zerolog.Nop())
	out := w.Reconcile(context.Background(), cakeConn(), newSignup(repository.TypeWebTraffic))

	assert.True(t, out.Success)
	require.NotNil(t, out.AffiliateID)
	assert.Equal(t, "42", *out.AffiliateID)

	// Referrer resolved by name, manager assigned to the created affiliate.
	assert.Equal(t, "42", api.assignedID)
	assert.Equal(t, "77", api.assignedManager)

	// Credentials went to the contact with the per-invocation password.
	assert.Equal(t, []string{"contact@acme.test"}, notifier.credentialEmails)
	assert.Len(t, notifier.lastPassword, 16)
	assert.Equal(t, notifier.lastPassword, api.createdParams["contact_password"])
}

func TestCakeWorkerManagerAssignmentFailureIsSuffixOnly(t *testing.T) {
	api := &fakeCakeAPI{
		createResult: &cake.CreateResult{Success: true, AffiliateID: "42", Message: "Affiliate Added"},
		assignErr:    errors.New("v2 unavailable"),
	}
	w := NewCakeWorker(api, &fakeManagerDirectory{}, &recordingNotifier{}, zerolog.Nop())

	out := w.Reconcile(context.Background(), cakeConn(), newSignup(repository.TypeWebTraffic))

	assert.True(t, out.Success)
	assert.Contains(t, out.Message, "manager assignment failed")
	// No referrer match means unassigned.
	assert.Equal(t, "0", api.assignedManager)
}

func TestCakeWorkerDuplicateRecoveryMessage(t *testing.T) {
	api := &fakeCakeAPI{createResult: &cake.CreateResult{
		Success: true, Recovered: true, AffiliateID: "12345",
		Message: "Affiliate with this email already exists. Affiliate ID: 12345",
	}}
	w := NewCakeWorker(api, &fakeManagerDirectory{}, &recordingNotifier{}, zerolog.Nop())

	out := w.Reconcile(context.Background(), cakeConn(), newSignup(repository.TypeWebTraffic))

	assert.True(t, out.Success)
	assert.Equal(t, "12345", *out.AffiliateID)
	assert.Contains(t, out.Message, "Existing affiliate recovered")
}

func TestCakeWorkerTransportErrorBecomesFailure(t *testing.T) {
	api := &fakeCakeAPI{createErr: errors.New("dial tcp: timeout")}
	notifier := &recordingNotifier{}
	w := NewCakeWorker(api, &fakeManagerDirectory{}, notifier, zerolog.Nop())

	out := w.Reconcile(context.Background(), cakeConn(), newSignup(repository.TypeWebTraffic))

	assert.False(t, out.Success)
	assert.Nil(t, out.AffiliateID)
	assert.Contains(t, out.Message, "timeout")
	assert.Empty(t, notifier.credentialEmails)
}

func TestCakeWorkerLogicalFailure(t *testing.T) {
	api := &fakeCakeAPI{createResult: &cake.CreateResult{
		Success: false, Message: "Invalid vertical id", RawResponse: "<xml/>",
	}}
	w := NewCakeWorker(api, &fakeManagerDirectory{}, &recordingNotifier{}, zerolog.Nop())

	out := w.Reconcile(context.Background(), cakeConn(), newSignup(repository.TypeWebTraffic))

	assert.False(t, out.Success)
	assert.Equal(t, "Invalid vertical id", out.Message)
	assert.Equal(t, "<xml/>", out.RawResponse)
	assert.Empty(t, api.assignedID)
}
