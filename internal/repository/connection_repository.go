package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/vellko/affiliate-admin/internal/apperrors"
	"github.com/vellko/affiliate-admin/internal/database"
	"github.com/vellko/affiliate-admin/internal/secrets"
)

// ConnectionRepository stores partner platform credentials. Secrets (the Cake
// api key and the Ringba token) are encrypted at rest and decrypted on read.
type ConnectionRepository struct {
	db  *database.DB
	enc *secrets.Encryptor
}

// NewConnectionRepository creates a new connection repository.
func NewConnectionRepository(db *database.DB, enc *secrets.Encryptor) *ConnectionRepository {
	return &ConnectionRepository{db: db, enc: enc}
}

// GetCake returns the active Cake connection with its api key decrypted.
func (r *ConnectionRepository) GetCake(ctx context.Context) (*CakeConnection, error) {
	query := `
		SELECT secret, api_url, api_v2_url
		FROM platform_connections
		WHERE platform = 'cake' AND active = TRUE
	`

	var conn CakeConnection
	var sealed string
	err := r.db.QueryRow(ctx, query).Scan(&sealed, &conn.APIURL, &conn.APIV2URL)
	if err == pgx.ErrNoRows {
		return nil, apperrors.NotFound("connection", string(PlatformCake))
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to get cake connection")
	}

	if conn.APIKey, err = r.enc.Decrypt(sealed); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to decrypt cake credentials")
	}
	return &conn, nil
}

// GetRingba returns the active Ringba connection with its token decrypted.
func (r *ConnectionRepository) GetRingba(ctx context.Context) (*RingbaConnection, error) {
	query := `
		SELECT secret, api_url, account_id
		FROM platform_connections
		WHERE platform = 'ringba' AND active = TRUE
	`

	var conn RingbaConnection
	var sealed string
	err := r.db.QueryRow(ctx, query).Scan(&sealed, &conn.APIURL, &conn.AccountID)
	if err == pgx.ErrNoRows {
		return nil, apperrors.NotFound("connection", string(PlatformRingba))
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to get ringba connection")
	}

	if conn.APIToken, err = r.enc.Decrypt(sealed); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to decrypt ringba credentials")
	}
	return &conn, nil
}

// SaveCake upserts the Cake connection, encrypting the api key.
func (r *ConnectionRepository) SaveCake(ctx context.Context, conn *CakeConnection) error {
	sealed, err := r.enc.Encrypt(conn.APIKey)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "failed to encrypt cake credentials")
	}

	query := `
		INSERT INTO platform_connections (platform, secret, api_url, api_v2_url, active)
		VALUES ('cake', $1, $2, $3, TRUE)
		ON CONFLICT (platform) DO UPDATE
		SET secret = $1, api_url = $2, api_v2_url = $3, active = TRUE, updated_at = NOW()
	`
	if _, err := r.db.Exec(ctx, query, sealed, conn.APIURL, conn.APIV2URL); err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "failed to save cake connection")
	}
	return nil
}

// SaveRingba upserts the Ringba connection, encrypting the token.
func (r *ConnectionRepository) SaveRingba(ctx context.Context, conn *RingbaConnection) error {
	sealed, err := r.enc.Encrypt(conn.APIToken)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "failed to encrypt ringba credentials")
	}

	query := `
		INSERT INTO platform_connections (platform, secret, api_url, account_id, active)
		VALUES ('ringba', $1, $2, $3, TRUE)
		ON CONFLICT (platform) DO UPDATE
		SET secret = $1, api_url = $2, account_id = $3, active = TRUE, updated_at = NOW()
	`
	if _, err := r.db.Exec(ctx, query, sealed, conn.APIURL, conn.AccountID); err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "failed to save ringba connection")
	}
	return nil
}
