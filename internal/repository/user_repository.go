package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/vellko/affiliate-admin/internal/apperrors"
	"github.com/vellko/affiliate-admin/internal/database"
)

// UserRepository handles operator account data operations.
type UserRepository struct {
	db *database.DB
}

// NewUserRepository creates a new user repository.
func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `
	id, username, email, full_name, role, application_permission,
	can_approve_signups, cake_account_manager_id, disabled, hashed_password,
	created_at, updated_at`

// Create inserts a new operator account.
func (r *UserRepository) Create(ctx context.Context, u *User) error {
	query := `
		INSERT INTO users (username, email, full_name, role, application_permission,
		                   can_approve_signups, cake_account_manager_id, disabled, hashed_password)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at
	`

	err := r.db.QueryRow(ctx, query,
		u.Username, u.Email, u.FullName, u.Role, u.ApplicationPermission,
		u.CanApproveSignups, u.CakeAccountManagerID, u.Disabled, u.HashedPassword,
	).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.New(apperrors.CodeConflict, "username already taken")
		}
		return apperrors.Wrap(err, apperrors.CodeInternal, "failed to create user")
	}
	return nil
}

// GetByID retrieves a user by id.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*User, error) {
	return r.getBy(ctx, "id", id)
}

// GetByUsername retrieves a user by username.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*User, error) {
	return r.getBy(ctx, "username", username)
}

func (r *UserRepository) getBy(ctx context.Context, column, value string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + column + ` = $1`

	u, err := scanUser(r.db.QueryRow(ctx, query, value))
	if err == pgx.ErrNoRows {
		return nil, apperrors.NotFound("user", value)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to get user")
	}
	return u, nil
}

// List retrieves all operator accounts.
func (r *UserRepository) List(ctx context.Context) ([]*User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY username`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to list users")
	}
	defer rows.Close()

	users := make([]*User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to scan user")
		}
		users = append(users, u)
	}
	return users, nil
}

// Update writes the mutable fields of a user.
func (r *UserRepository) Update(ctx context.Context, u *User) error {
	query := `
		UPDATE users
		SET email                   = $2,
		    full_name               = $3,
		    role                    = $4,
		    application_permission  = $5,
		    can_approve_signups     = $6,
		    cake_account_manager_id = $7,
		    disabled                = $8,
		    updated_at              = NOW()
		WHERE id = $1
		RETURNING id
	`

	var id string
	err := r.db.QueryRow(ctx, query,
		u.ID, u.Email, u.FullName, u.Role, u.ApplicationPermission,
		u.CanApproveSignups, u.CakeAccountManagerID, u.Disabled,
	).Scan(&id)
	if err == pgx.ErrNoRows {
		return apperrors.NotFound("user", u.ID)
	}
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "failed to update user")
	}
	return nil
}

// UpdatePassword replaces a user's password hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, id, hashedPassword string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET hashed_password = $2, updated_at = NOW() WHERE id = $1`,
		id, hashedPassword)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "failed to update password")
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("user", id)
	}
	return nil
}

// Delete removes an operator account.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "failed to delete user")
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("user", id)
	}
	return nil
}

// GetByFullName retrieves a user by display name. Referrers on legacy signups
// are recorded by name only, so manager resolution falls back to this lookup.
func (r *UserRepository) GetByFullName(ctx context.Context, fullName string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE full_name = $1 LIMIT 1`

	u, err := scanUser(r.db.QueryRow(ctx, query, fullName))
	if err == pgx.ErrNoRows {
		return nil, apperrors.NotFound("user", fullName)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to get user by name")
	}
	return u, nil
}

// FindApprovers returns enabled admins whose application permission covers the
// given application type. Used to route delegated approval requests.
func (r *UserRepository) FindApprovers(ctx context.Context, appType ApplicationType) ([]*User, error) {
	query := `SELECT ` + userColumns + `
		FROM users
		WHERE role IN ('ADMIN', 'SUPER_ADMIN')
		  AND can_approve_signups = TRUE
		  AND disabled = FALSE
		  AND (application_permission = 'Both' OR application_permission = $1)
		ORDER BY username`

	rows, err := r.db.Query(ctx, query, appType)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to find approvers")
	}
	defer rows.Close()

	users := make([]*User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to scan approver")
		}
		users = append(users, u)
	}
	return users, nil
}

func scanUser(row rowScanner) (*User, error) {
	u := &User{}
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.FullName,
		&u.Role,
		&u.ApplicationPermission,
		&u.CanApproveSignups,
		&u.CakeAccountManagerID,
		&u.Disabled,
		&u.HashedPassword,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return u, nil
}
