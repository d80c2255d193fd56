package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/vellko/affiliate-admin/internal/apperrors"
	"github.com/vellko/affiliate-admin/internal/auth"
	"github.com/vellko/affiliate-admin/internal/repository"
)

// UserService handles authentication and operator account management.
type UserService struct {
	users      *repository.UserRepository
	tokens     *auth.Manager
	notifier   Notifier
	bcryptCost int
	logger     zerolog.Logger
}

// NewUserService creates a user service.
func NewUserService(users *repository.UserRepository, tokens *auth.Manager, notifier Notifier, bcryptCost int, logger zerolog.Logger) *UserService {
	return &UserService{
		users:      users,
		tokens:     tokens,
		notifier:   notifier,
		bcryptCost: bcryptCost,
		logger:     logger.With().Str("service", "user").Logger(),
	}
}

// Login verifies credentials and issues an access token.
func (s *UserService) Login(ctx context.Context, username, password string) (string, *repository.User, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		// Uniform error; do not leak which part was wrong.
		return "", nil, apperrors.Unauthorized("invalid username or password")
	}
	if user.Disabled {
		return "", nil, apperrors.Unauthorized("account disabled")
	}
	if !auth.CheckPassword(user.HashedPassword, password) {
		return "", nil, apperrors.Unauthorized("invalid username or password")
	}

	token, err := s.tokens.Issue(user.Username)
	if err != nil {
		return "", nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to issue token")
	}
	return token, user, nil
}

// Resolve loads the user behind a validated token's username. Role and
// permissions always come from the database, never from the token.
func (s *UserService) Resolve(ctx context.Context, username string) (*repository.User, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, apperrors.Unauthorized("unknown user")
	}
	if user.Disabled {
		return nil, apperrors.Unauthorized("account disabled")
	}
	return user, nil
}

// CreateUser provisions a new operator account with a generated temporary
// password, delivered by email.
func (s *UserService) CreateUser(ctx context.Context, actor *repository.User, user *repository.User) error {
	if !actor.Role.IsAdmin() {
		return apperrors.Forbidden("only admins can create users")
	}
	if user.Role == repository.RoleSuperAdmin && actor.Role != repository.RoleSuperAdmin {
		return apperrors.Forbidden("only super admins can grant the super admin role")
	}
	if user.Username == "" {
		return apperrors.InvalidInput("username", "must not be empty")
	}
	if user.ApplicationPermission == "" {
		user.ApplicationPermission = repository.TypeBoth
	}

	tempPassword, err := GeneratePassword()
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "failed to generate password")
	}
	hash, err := auth.HashPassword(tempPassword, s.bcryptCost)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "failed to hash password")
	}
	user.HashedPassword = hash

	if err := s.users.Create(ctx, user); err != nil {
		return err
	}

	if user.Email != "" {
		s.notifier.UserInvited(ctx, user.Email, user.Username, tempPassword)
	}
	return nil
}

// UpdateUser edits an operator account.
func (s *UserService) UpdateUser(ctx context.Context, actor *repository.User, user *repository.User) error {
	if !actor.Role.IsAdmin() {
		return apperrors.Forbidden("only admins can update users")
	}

	existing, err := s.users.GetByID(ctx, user.ID)
	if err != nil {
		return err
	}
	if (existing.Role == repository.RoleSuperAdmin || user.Role == repository.RoleSuperAdmin) &&
		actor.Role != repository.RoleSuperAdmin {
		return apperrors.Forbidden("only super admins can modify super admin accounts")
	}

	return s.users.Update(ctx, user)
}

// ChangePassword lets a user change their own password.
func (s *UserService) ChangePassword(ctx context.Context, actor *repository.User, currentPassword, newPassword string) error {
	if !auth.CheckPassword(actor.HashedPassword, currentPassword) {
		return apperrors.Unauthorized("current password is incorrect")
	}
	if len(newPassword) < 8 {
		return apperrors.InvalidInput("new_password", "must be at least 8 characters")
	}
	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "failed to hash password")
	}
	return s.users.UpdatePassword(ctx, actor.ID, hash)
}

// ListUsers returns all operator accounts.
func (s *UserService) ListUsers(ctx context.Context, actor *repository.User) ([]*repository.User, error) {
	if !actor.Role.IsAdmin() {
		return nil, apperrors.Forbidden("only admins can list users")
	}
	return s.users.List(ctx)
}

// DeleteUser removes an operator account.
func (s *UserService) DeleteUser(ctx context.Context, actor *repository.User, id string) error {
	if actor.Role != repository.RoleSuperAdmin {
		return apperrors.Forbidden("only super admins can delete users")
	}
	if actor.ID == id {
		return apperrors.InvalidInput("id", "cannot delete your own account")
	}
	return s.users.Delete(ctx, id)
}
