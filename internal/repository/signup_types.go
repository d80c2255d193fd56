package repository

import "time"

// ── Enumerations ──────────────────────────────────────────────────────────────

// SignupStatus is the signup-wide lifecycle state. Except for rejection and
// reset it is always derived from the per-platform statuses.
type SignupStatus string

const (
	StatusPending               SignupStatus = "PENDING"
	StatusRequestedForApproval  SignupStatus = "REQUESTED_FOR_APPROVAL"
	StatusApproved              SignupStatus = "APPROVED"
	StatusRejected              SignupStatus = "REJECTED"
)

// PlatformStatus is one partner platform's sub-state. A nil pointer means the
// platform has not been acted on yet; FAILED and nil are both actionable.
type PlatformStatus string

const (
	PlatformApproved PlatformStatus = "APPROVED"
	PlatformRejected PlatformStatus = "REJECTED"
	PlatformFailed   PlatformStatus = "FAILED"
)

// Actionable reports whether a platform can still be acted on (never
// processed, or a previous attempt failed).
func Actionable(s *PlatformStatus) bool {
	return s == nil || *s == PlatformFailed
}

// ApplicationType declares which partner platforms a signup targets.
type ApplicationType string

const (
	TypeWebTraffic  ApplicationType = "Web Traffic"
	TypeCallTraffic ApplicationType = "Call Traffic"
	TypeBoth        ApplicationType = "Both"
)

// WantsCake reports whether the application type includes web traffic.
func (t ApplicationType) WantsCake() bool {
	return t == TypeWebTraffic || t == TypeBoth
}

// WantsRingba reports whether the application type includes call traffic.
func (t ApplicationType) WantsRingba() bool {
	return t == TypeCallTraffic || t == TypeBoth
}

// Role is a user's access level.
type Role string

const (
	RoleSuperAdmin Role = "SUPER_ADMIN"
	RoleAdmin      Role = "ADMIN"
	RoleUser       Role = "USER"
)

// IsAdmin reports whether the role carries admin rights.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// Platform identifies one of the two partner networks.
type Platform string

const (
	PlatformCake   Platform = "cake"
	PlatformRingba Platform = "ringba"
)

// ── Signup ────────────────────────────────────────────────────────────────────

// CompanyInfo is the company section of a signup application.
type CompanyInfo struct {
	CompanyName      string `json:"companyName"`
	Address          string `json:"address"`
	Address2         string `json:"address2,omitempty"`
	City             string `json:"city"`
	State            string `json:"state"`
	Zip              string `json:"zip"`
	Country          string `json:"country"`
	CorporateWebsite string `json:"corporateWebsite,omitempty"`
	// Referral is the free-text referrer name captured on submission. Kept for
	// legacy records; ReferralID on the signup is authoritative when set.
	Referral string `json:"referral,omitempty"`
}

// MarketingInfo is the marketing section of a signup application.
type MarketingInfo struct {
	ApplicationType   ApplicationType `json:"applicationType"`
	PaymentModel      string          `json:"paymentModel"`
	PrimaryCategory   string          `json:"primaryCategory"`
	SecondaryCategory string          `json:"secondaryCategory,omitempty"`
	Comments          string          `json:"comments,omitempty"`
}

// AccountInfo is the contact section of a signup application.
type AccountInfo struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Title     string `json:"title,omitempty"`
	WorkPhone string `json:"workPhone"`
	CellPhone string `json:"cellPhone,omitempty"`
	Fax       string `json:"fax,omitempty"`
	Email     string `json:"email"`
	Timezone  string `json:"timezone"`
	IMService string `json:"imService,omitempty"`
	IMHandle  string `json:"imHandle,omitempty"`
}

// PaymentInfo is the payment section of a signup application.
type PaymentInfo struct {
	PayTo    string `json:"payTo"`
	Currency string `json:"currency"`
	TaxClass string `json:"taxClass"`
	SSNTaxID string `json:"ssnTaxId"`
}

// QAResponse is one answered question from a platform's QA form.
type QAResponse struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// PlatformDecision holds one platform's sub-state on a signup.
type PlatformDecision struct {
	Status         *PlatformStatus `json:"status"`
	Message        *string         `json:"message,omitempty"`
	RawResponse    *string         `json:"raw_response,omitempty"`
	DecisionReason *string         `json:"decision_reason,omitempty"`
	ProcessedBy    *string         `json:"processed_by,omitempty"`
	ProcessedAt    *time.Time      `json:"processed_at,omitempty"`
	// AffiliateID is the external id assigned by the platform; set only when
	// that platform's reconciliation succeeded.
	AffiliateID *string `json:"affiliate_id,omitempty"`
	// PublisherName is the PPC_N{n} name used on publisher creation (Ringba only).
	PublisherName *string      `json:"publisher_name,omitempty"`
	QAResponses   []QAResponse `json:"qa_responses,omitempty"`
}

// Signup is an affiliate application progressing through approval.
type Signup struct {
	ID            string        `json:"id"`
	CompanyInfo   CompanyInfo   `json:"companyInfo"`
	MarketingInfo MarketingInfo `json:"marketingInfo"`
	AccountInfo   AccountInfo   `json:"accountInfo"`
	PaymentInfo   PaymentInfo   `json:"paymentInfo"`
	IPAddress     string        `json:"ipAddress,omitempty"`

	Status SignupStatus     `json:"status"`
	Cake   PlatformDecision `json:"cake"`
	Ringba PlatformDecision `json:"ringba"`

	// Delegated-approval metadata, populated when an actor without direct
	// approval rights submits an approve intent.
	ApprovalRequestedBy     *string    `json:"approval_requested_by,omitempty"`
	ApprovalRequestedAt     *time.Time `json:"approval_requested_at,omitempty"`
	RequestedCakeApproval   bool       `json:"requested_cake_approval"`
	RequestedRingbaApproval bool       `json:"requested_ringba_approval"`

	// ReferralID is a weak reference to the referring user; the name in
	// CompanyInfo.Referral is the fallback for legacy records.
	ReferralID *string `json:"referral_id,omitempty"`

	Documents []Document `json:"documents,omitempty"`
	Notes     []Note     `json:"notes,omitempty"`

	// Revision guards concurrent decision writes (compare-and-swap).
	Revision  int64      `json:"revision"`
	IsUpdated bool       `json:"is_updated"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// Decision returns the platform decision for the given platform.
func (s *Signup) Decision(p Platform) *PlatformDecision {
	if p == PlatformCake {
		return &s.Cake
	}
	return &s.Ringba
}

// ReferrerName returns the display name of the signup's referrer.
func (s *Signup) ReferrerName() string {
	return s.CompanyInfo.Referral
}

// Note is an operator note on a signup, editable by its author or an admin.
type Note struct {
	ID        string     `json:"id"`
	SignupID  string     `json:"signup_id"`
	Content   string     `json:"content"`
	Author    string     `json:"author"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// Document is an uploaded file reference attached to a signup.
type Document struct {
	SignupID   string    `json:"-"`
	Filename   string    `json:"filename"`
	Path       string    `json:"path"`
	UploadedBy string    `json:"uploaded_by"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// ── User ──────────────────────────────────────────────────────────────────────

// User is an operator account.
type User struct {
	ID                    string          `json:"id"`
	Username              string          `json:"username"`
	Email                 string          `json:"email,omitempty"`
	FullName              string          `json:"full_name,omitempty"`
	Role                  Role            `json:"role"`
	ApplicationPermission ApplicationType `json:"application_permission"`
	CanApproveSignups     bool            `json:"can_approve_signups"`
	// CakeAccountManagerID is this user's manager id on the Cake platform,
	// used for manager assignment after affiliate creation.
	CakeAccountManagerID *string    `json:"cake_account_manager_id,omitempty"`
	Disabled             bool       `json:"disabled"`
	HashedPassword       string     `json:"-"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            *time.Time `json:"updated_at,omitempty"`
}

// ── Partner connections ───────────────────────────────────────────────────────

// CakeConnection is the active Cake credential set (secret decrypted).
type CakeConnection struct {
	APIKey   string `json:"api_key"`
	APIURL   string `json:"api_url"`
	APIV2URL string `json:"api_v2_url"`
}

// RingbaConnection is the active Ringba credential set (secret decrypted).
type RingbaConnection struct {
	APIToken  string `json:"api_token"`
	APIURL    string `json:"api_url"`
	AccountID string `json:"account_id"`
}

// QAFormField is one question in a platform's configurable QA form.
type QAFormField struct {
	ID       string   `json:"id"`
	Label    string   `json:"label"`
	Type     string   `json:"type"` // text | select | boolean
	Options  []string `json:"options,omitempty"`
	Required bool     `json:"required"`
}

// QAForm is the QA form definition for one platform.
type QAForm struct {
	Platform  Platform      `json:"platform"`
	Fields    []QAFormField `json:"fields"`
	UpdatedAt time.Time     `json:"updated_at"`
	UpdatedBy string        `json:"updated_by"`
}
