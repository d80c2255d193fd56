package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/vellko/affiliate-admin/internal/apperrors"
	"github.com/vellko/affiliate-admin/internal/database"
)

// SignupRepository handles signup data operations.
type SignupRepository struct {
	db *database.DB
}

// NewSignupRepository creates a new signup repository.
func NewSignupRepository(db *database.DB) *SignupRepository {
	return &SignupRepository{db: db}
}

const signupColumns = `
	id, company_info, marketing_info, account_info, payment_info, ip_address,
	status,
	cake_status, cake_message, cake_response, cake_decision_reason,
	cake_processed_by, cake_processed_at, cake_affiliate_id, cake_qa_responses,
	ringba_status, ringba_message, ringba_response, ringba_decision_reason,
	ringba_processed_by, ringba_processed_at, ringba_affiliate_id,
	ringba_publisher_name, ringba_qa_responses,
	approval_requested_by, approval_requested_at,
	requested_cake_approval, requested_ringba_approval,
	referral_id, revision, is_updated, created_at, updated_at`

// Create inserts a new signup in PENDING state.
func (r *SignupRepository) Create(ctx context.Context, s *Signup) error {
	query := `
		INSERT INTO signups (company_info, marketing_info, account_info, payment_info, ip_address, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, revision, created_at
	`

	err := r.db.QueryRow(ctx, query,
		s.CompanyInfo,
		s.MarketingInfo,
		s.AccountInfo,
		s.PaymentInfo,
		s.IPAddress,
		StatusPending,
	).Scan(&s.ID, &s.Revision, &s.CreatedAt)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "failed to create signup")
	}
	s.Status = StatusPending
	return nil
}

// GetByID retrieves a signup with its notes and documents.
func (r *SignupRepository) GetByID(ctx context.Context, id string) (*Signup, error) {
	query := `SELECT ` + signupColumns + ` FROM signups WHERE id = $1`

	s, err := scanSignup(r.db.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, apperrors.NotFound("signup", id)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to get signup")
	}

	if s.Notes, err = r.getNotes(ctx, id); err != nil {
		return nil, err
	}
	if s.Documents, err = r.getDocuments(ctx, id); err != nil {
		return nil, err
	}
	return s, nil
}

// ListFilter narrows List results.
type ListFilter struct {
	Status *SignupStatus
	// Referral restricts results to signups referred by this display name
	// (non-admin visibility scoping and the admin referral filter).
	Referral *string
	Page     int
	Limit    int
}

// List retrieves signups newest-first with filtering and pagination.
func (r *SignupRepository) List(ctx context.Context, f ListFilter) ([]*Signup, int64, error) {
	query := `SELECT ` + signupColumns + ` FROM signups WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM signups WHERE 1=1`

	args := []any{}
	argCount := 1

	if f.Status != nil {
		cond := fmt.Sprintf(" AND status = $%d", argCount)
		query += cond
		countQuery += cond
		args = append(args, *f.Status)
		argCount++
	}
	if f.Referral != nil {
		cond := fmt.Sprintf(" AND company_info->>'referral' = $%d", argCount)
		query += cond
		countQuery += cond
		args = append(args, *f.Referral)
		argCount++
	}

	var total int64
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, apperrors.Wrap(err, apperrors.CodeInternal, "failed to count signups")
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argCount, argCount+1)
	args = append(args, f.Limit, (f.Page-1)*f.Limit)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, apperrors.Wrap(err, apperrors.CodeInternal, "failed to list signups")
	}
	defer rows.Close()

	signups := make([]*Signup, 0)
	for rows.Next() {
		s, err := scanSignup(rows)
		if err != nil {
			return nil, 0, apperrors.Wrap(err, apperrors.CodeInternal, "failed to scan signup")
		}
		signups = append(signups, s)
	}
	return signups, total, nil
}

// ApplyDecision persists the full decision state of a signup in a single
// conditional update. The write succeeds only when the stored revision still
// matches s.Revision; a concurrent decision on the same signup surfaces as a
// conflict instead of silently losing the earlier write.
func (r *SignupRepository) ApplyDecision(ctx context.Context, s *Signup) error {
	query := `
		UPDATE signups
		SET status                    = $3,
		    cake_status               = $4,
		    cake_message              = $5,
		    cake_response             = $6,
		    cake_decision_reason      = $7,
		    cake_processed_by         = $8,
		    cake_processed_at         = $9,
		    cake_affiliate_id         = $10,
		    cake_qa_responses         = $11,
		    ringba_status             = $12,
		    ringba_message            = $13,
		    ringba_response           = $14,
		    ringba_decision_reason    = $15,
		    ringba_processed_by       = $16,
		    ringba_processed_at       = $17,
		    ringba_affiliate_id       = $18,
		    ringba_publisher_name     = $19,
		    ringba_qa_responses       = $20,
		    approval_requested_by     = $21,
		    approval_requested_at     = $22,
		    requested_cake_approval   = $23,
		    requested_ringba_approval = $24,
		    revision                  = revision + 1,
		    updated_at                = NOW()
		WHERE id = $1 AND revision = $2
		RETURNING revision
	`

	err := r.db.QueryRow(ctx, query,
		s.ID, s.Revision,
		s.Status,
		s.Cake.Status, s.Cake.Message, s.Cake.RawResponse, s.Cake.DecisionReason,
		s.Cake.ProcessedBy, s.Cake.ProcessedAt, s.Cake.AffiliateID, s.Cake.QAResponses,
		s.Ringba.Status, s.Ringba.Message, s.Ringba.RawResponse, s.Ringba.DecisionReason,
		s.Ringba.ProcessedBy, s.Ringba.ProcessedAt, s.Ringba.AffiliateID,
		s.Ringba.PublisherName, s.Ringba.QAResponses,
		s.ApprovalRequestedBy, s.ApprovalRequestedAt,
		s.RequestedCakeApproval, s.RequestedRingbaApproval,
	).Scan(&s.Revision)

	if err == pgx.ErrNoRows {
		// Either the signup vanished or another decision landed first.
		var exists bool
		if chkErr := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM signups WHERE id = $1)`, s.ID).Scan(&exists); chkErr == nil && !exists {
			return apperrors.NotFound("signup", s.ID)
		}
		return apperrors.New(apperrors.CodeConflict, "signup was modified by a concurrent decision; reload and retry")
	}
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "failed to apply decision")
	}
	return nil
}

// UpdateSections applies a partial edit to the nested application sections.
// Nil sections are left untouched.
func (r *SignupRepository) UpdateSections(ctx context.Context, id string, company *CompanyInfo, marketing *MarketingInfo, account *AccountInfo, payment *PaymentInfo) error {
	query := `
		UPDATE signups
		SET company_info   = COALESCE($2, company_info),
		    marketing_info = COALESCE($3, marketing_info),
		    account_info   = COALESCE($4, account_info),
		    payment_info   = COALESCE($5, payment_info),
		    is_updated     = TRUE,
		    updated_at     = NOW()
		WHERE id = $1
		RETURNING id
	`

	var returnedID string
	err := r.db.QueryRow(ctx, query, id, company, marketing, account, payment).Scan(&returnedID)
	if err == pgx.ErrNoRows {
		return apperrors.NotFound("signup", id)
	}
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "failed to update signup")
	}
	return nil
}

// UpdateReferral reassigns the signup's referrer.
func (r *SignupRepository) UpdateReferral(ctx context.Context, id string, referralID *string, referralName string) error {
	query := `
		UPDATE signups
		SET referral_id  = $2,
		    company_info = jsonb_set(company_info, '{referral}', to_jsonb($3::text)),
		    updated_at   = NOW()
		WHERE id = $1
		RETURNING id
	`

	var returnedID string
	err := r.db.QueryRow(ctx, query, id, referralID, referralName).Scan(&returnedID)
	if err == pgx.ErrNoRows {
		return apperrors.NotFound("signup", id)
	}
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "failed to update referral")
	}
	return nil
}

// LastApprovedPublisherName returns the PPC_N name of the most recently
// approved Ringba record, or nil when none exists.
func (r *SignupRepository) LastApprovedPublisherName(ctx context.Context) (*string, error) {
	query := `
		SELECT ringba_publisher_name
		FROM signups
		WHERE ringba_status = 'APPROVED'
		  AND ringba_publisher_name LIKE 'PPC\_N%'
		ORDER BY ringba_processed_at DESC
		LIMIT 1
	`

	var name *string
	err := r.db.QueryRow(ctx, query).Scan(&name)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to look up last publisher name")
	}
	return name, nil
}

// Delete permanently removes a signup and its notes/documents (super-admin purge).
func (r *SignupRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM signups WHERE id = $1`, id)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "failed to delete signup")
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("signup", id)
	}
	return nil
}

// ── Dashboard stats ───────────────────────────────────────────────────────────

// DayCount is one day's signup volume.
type DayCount struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

// ReferrerCount is one referrer's signup volume.
type ReferrerCount struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// Stats aggregates dashboard numbers, optionally scoped to one referrer.
type Stats struct {
	Total        int64           `json:"total"`
	Pending      int64           `json:"pending"`
	Approved     int64           `json:"approved"`
	Rejected     int64           `json:"rejected"`
	Requested    int64           `json:"requested_for_approval"`
	ChartData    []DayCount      `json:"chart_data"`
	TopReferrers []ReferrerCount `json:"top_referrers"`
}

// GetStats computes dashboard aggregates. When referral is non-nil, all
// numbers are scoped to that referrer's signups.
func (r *SignupRepository) GetStats(ctx context.Context, referral *string) (*Stats, error) {
	stats := &Stats{}

	query := `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'PENDING'),
		       COUNT(*) FILTER (WHERE status = 'APPROVED'),
		       COUNT(*) FILTER (WHERE status = 'REJECTED'),
		       COUNT(*) FILTER (WHERE status = 'REQUESTED_FOR_APPROVAL')
		FROM signups
		WHERE ($1::text IS NULL OR company_info->>'referral' = $1)
	`
	err := r.db.QueryRow(ctx, query, referral).Scan(
		&stats.Total, &stats.Pending, &stats.Approved, &stats.Rejected, &stats.Requested)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to compute stats")
	}

	chartQuery := `
		SELECT to_char(created_at, 'YYYY-MM-DD') AS day, COUNT(*)
		FROM signups
		WHERE created_at >= NOW() - INTERVAL '7 days'
		  AND ($1::text IS NULL OR company_info->>'referral' = $1)
		GROUP BY day
		ORDER BY day
	`
	rows, err := r.db.Query(ctx, chartQuery, referral)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to compute chart data")
	}
	defer rows.Close()
	for rows.Next() {
		var dc DayCount
		if err := rows.Scan(&dc.Date, &dc.Count); err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to scan chart row")
		}
		stats.ChartData = append(stats.ChartData, dc)
	}

	referrerQuery := `
		SELECT company_info->>'referral' AS name, COUNT(*)
		FROM signups
		WHERE company_info->>'referral' IS NOT NULL
		  AND company_info->>'referral' <> ''
		  AND ($1::text IS NULL OR company_info->>'referral' = $1)
		GROUP BY name
		ORDER BY COUNT(*) DESC
		LIMIT 5
	`
	refRows, err := r.db.Query(ctx, referrerQuery, referral)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to compute top referrers")
	}
	defer refRows.Close()
	for refRows.Next() {
		var rc ReferrerCount
		if err := refRows.Scan(&rc.Name, &rc.Count); err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to scan referrer row")
		}
		stats.TopReferrers = append(stats.TopReferrers, rc)
	}

	return stats, nil
}

// ── scan helper ───────────────────────────────────────────────────────────────

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSignup(row rowScanner) (*Signup, error) {
	s := &Signup{}
	err := row.Scan(
		&s.ID,
		&s.CompanyInfo,
		&s.MarketingInfo,
		&s.AccountInfo,
		&s.PaymentInfo,
		&s.IPAddress,
		&s.Status,
		&s.Cake.Status,
		&s.Cake.Message,
		&s.Cake.RawResponse,
		&s.Cake.DecisionReason,
		&s.Cake.ProcessedBy,
		&s.Cake.ProcessedAt,
		&s.Cake.AffiliateID,
		&s.Cake.QAResponses,
		&s.Ringba.Status,
		&s.Ringba.Message,
		&s.Ringba.RawResponse,
		&s.Ringba.DecisionReason,
		&s.Ringba.ProcessedBy,
		&s.Ringba.ProcessedAt,
		&s.Ringba.AffiliateID,
		&s.Ringba.PublisherName,
		&s.Ringba.QAResponses,
		&s.ApprovalRequestedBy,
		&s.ApprovalRequestedAt,
		&s.RequestedCakeApproval,
		&s.RequestedRingbaApproval,
		&s.ReferralID,
		&s.Revision,
		&s.IsUpdated,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}
