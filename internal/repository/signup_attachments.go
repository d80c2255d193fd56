package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/vellko/affiliate-admin/internal/apperrors"
)

// Notes and documents attached to signups. Both live in side tables keyed by
// signup id and are loaded with the signup on GetByID.

func (r *SignupRepository) getNotes(ctx context.Context, signupID string) ([]Note, error) {
	query := `
		SELECT id, signup_id, content, author, created_at, updated_at
		FROM signup_notes
		WHERE signup_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.Query(ctx, query, signupID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to load notes")
	}
	defer rows.Close()

	notes := make([]Note, 0)
	for rows.Next() {
		var n Note
		if err := rows.Scan(&n.ID, &n.SignupID, &n.Content, &n.Author, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to scan note")
		}
		notes = append(notes, n)
	}
	return notes, nil
}

// AddNote creates a note on a signup.
func (r *SignupRepository) AddNote(ctx context.Context, n *Note) error {
	query := `
		INSERT INTO signup_notes (signup_id, content, author)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`

	err := r.db.QueryRow(ctx, query, n.SignupID, n.Content, n.Author).Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "failed to add note")
	}
	return nil
}

// GetNote retrieves a single note.
func (r *SignupRepository) GetNote(ctx context.Context, noteID string) (*Note, error) {
	query := `
		SELECT id, signup_id, content, author, created_at, updated_at
		FROM signup_notes
		WHERE id = $1
	`

	var n Note
	err := r.db.QueryRow(ctx, query, noteID).Scan(&n.ID, &n.SignupID, &n.Content, &n.Author, &n.CreatedAt, &n.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, apperrors.NotFound("note", noteID)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to get note")
	}
	return &n, nil
}

// UpdateNote replaces a note's content.
func (r *SignupRepository) UpdateNote(ctx context.Context, noteID, content string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE signup_notes SET content = $2, updated_at = NOW() WHERE id = $1`,
		noteID, content)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "failed to update note")
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("note", noteID)
	}
	return nil
}

// DeleteNote removes a note.
func (r *SignupRepository) DeleteNote(ctx context.Context, noteID string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM signup_notes WHERE id = $1`, noteID)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "failed to delete note")
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("note", noteID)
	}
	return nil
}

func (r *SignupRepository) getDocuments(ctx context.Context, signupID string) ([]Document, error) {
	query := `
		SELECT signup_id, filename, path, uploaded_by, uploaded_at
		FROM signup_documents
		WHERE signup_id = $1
		ORDER BY uploaded_at DESC
	`

	rows, err := r.db.Query(ctx, query, signupID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to load documents")
	}
	defer rows.Close()

	docs := make([]Document, 0)
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.SignupID, &d.Filename, &d.Path, &d.UploadedBy, &d.UploadedAt); err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to scan document")
		}
		docs = append(docs, d)
	}
	return docs, nil
}

// AddDocument records an uploaded file against a signup.
func (r *SignupRepository) AddDocument(ctx context.Context, d *Document) error {
	query := `
		INSERT INTO signup_documents (signup_id, filename, path, uploaded_by)
		VALUES ($1, $2, $3, $4)
		RETURNING uploaded_at
	`

	err := r.db.QueryRow(ctx, query, d.SignupID, d.Filename, d.Path, d.UploadedBy).Scan(&d.UploadedAt)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "failed to add document")
	}
	return nil
}

// GetDocument retrieves one document record by signup and filename.
func (r *SignupRepository) GetDocument(ctx context.Context, signupID, filename string) (*Document, error) {
	query := `
		SELECT signup_id, filename, path, uploaded_by, uploaded_at
		FROM signup_documents
		WHERE signup_id = $1 AND filename = $2
	`

	var d Document
	err := r.db.QueryRow(ctx, query, signupID, filename).Scan(&d.SignupID, &d.Filename, &d.Path, &d.UploadedBy, &d.UploadedAt)
	if err == pgx.ErrNoRows {
		return nil, apperrors.NotFound("document", filename)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to get document")
	}
	return &d, nil
}

// DeleteDocument removes a document record.
func (r *SignupRepository) DeleteDocument(ctx context.Context, signupID, filename string) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM signup_documents WHERE signup_id = $1 AND filename = $2`,
		signupID, filename)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "failed to delete document")
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("document", filename)
	}
	return nil
}
