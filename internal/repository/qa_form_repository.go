package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/vellko/affiliate-admin/internal/apperrors"
	"github.com/vellko/affiliate-admin/internal/database"
)

// QAFormRepository stores the per-platform QA form definitions shown to
// operators before an approval decision.
type QAFormRepository struct {
	db *database.DB
}

// NewQAFormRepository creates a new QA form repository.
func NewQAFormRepository(db *database.DB) *QAFormRepository {
	return &QAFormRepository{db: db}
}

// Get retrieves the QA form for a platform. A platform without a stored form
// gets an empty one.
func (r *QAFormRepository) Get(ctx context.Context, platform Platform) (*QAForm, error) {
	query := `
		SELECT platform, fields, updated_at, updated_by
		FROM qa_forms
		WHERE platform = $1
	`

	form := &QAForm{}
	err := r.db.QueryRow(ctx, query, platform).Scan(&form.Platform, &form.Fields, &form.UpdatedAt, &form.UpdatedBy)
	if err == pgx.ErrNoRows {
		return &QAForm{Platform: platform, Fields: []QAFormField{}}, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to get qa form")
	}
	return form, nil
}

// Save upserts a platform's QA form.
func (r *QAFormRepository) Save(ctx context.Context, form *QAForm) error {
	query := `
		INSERT INTO qa_forms (platform, fields, updated_by)
		VALUES ($1, $2, $3)
		ON CONFLICT (platform) DO UPDATE
		SET fields = $2, updated_by = $3, updated_at = NOW()
	`

	if _, err := r.db.Exec(ctx, query, form.Platform, form.Fields, form.UpdatedBy); err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "failed to save qa form")
	}
	return nil
}
