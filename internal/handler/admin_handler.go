package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/vellko/affiliate-admin/internal/apperrors"
	"github.com/vellko/affiliate-admin/internal/repository"
)

// ── auth ──────────────────────────────────────────────────────────────────────

// Login exchanges credentials for an access token.
func (h *Handler) Login(c echo.Context) error {
	var req struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}
	if err := h.bind(c, &req); err != nil {
		return h.writeError(c, err)
	}

	token, user, err := h.users.Login(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"access_token": token,
		"token_type":   "bearer",
		"user":         user,
	})
}

// Me returns the authenticated user.
func (h *Handler) Me(c echo.Context) error {
	return c.JSON(http.StatusOK, currentUser(c))
}

// ChangePassword updates the authenticated user's password.
func (h *Handler) ChangePassword(c echo.Context) error {
	var req struct {
		CurrentPassword string `json:"current_password" validate:"required"`
		NewPassword     string `json:"new_password" validate:"required"`
	}
	if err := h.bind(c, &req); err != nil {
		return h.writeError(c, err)
	}

	err := h.users.ChangePassword(c.Request().Context(), currentUser(c), req.CurrentPassword, req.NewPassword)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Password updated"})
}

// ── users ─────────────────────────────────────────────────────────────────────

// ListUsers returns all operator accounts.
func (h *Handler) ListUsers(c echo.Context) error {
	users, err := h.users.ListUsers(c.Request().Context(), currentUser(c))
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, users)
}

type userRequest struct {
	Username              string                     `json:"username"`
	Email                 string                     `json:"email"`
	FullName              string                     `json:"full_name"`
	Role                  repository.Role            `json:"role" validate:"required,oneof=SUPER_ADMIN ADMIN USER"`
	ApplicationPermission repository.ApplicationType `json:"application_permission"`
	CanApproveSignups     bool                       `json:"can_approve_signups"`
	CakeAccountManagerID  *string                    `json:"cake_account_manager_id"`
	Disabled              bool                       `json:"disabled"`
}

// CreateUser provisions a new operator account.
func (h *Handler) CreateUser(c echo.Context) error {
	var req userRequest
	if err := h.bind(c, &req); err != nil {
		return h.writeError(c, err)
	}

	user := &repository.User{
		Username:              req.Username,
		Email:                 req.Email,
		FullName:              req.FullName,
		Role:                  req.Role,
		ApplicationPermission: req.ApplicationPermission,
		CanApproveSignups:     req.CanApproveSignups,
		CakeAccountManagerID:  req.CakeAccountManagerID,
		Disabled:              req.Disabled,
	}
	if err := h.users.CreateUser(c.Request().Context(), currentUser(c), user); err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusCreated, user)
}

// UpdateUser edits an operator account.
func (h *Handler) UpdateUser(c echo.Context) error {
	var req userRequest
	if err := h.bind(c, &req); err != nil {
		return h.writeError(c, err)
	}

	user := &repository.User{
		ID:                    c.Param("id"),
		Email:                 req.Email,
		FullName:              req.FullName,
		Role:                  req.Role,
		ApplicationPermission: req.ApplicationPermission,
		CanApproveSignups:     req.CanApproveSignups,
		CakeAccountManagerID:  req.CakeAccountManagerID,
		Disabled:              req.Disabled,
	}
	if err := h.users.UpdateUser(c.Request().Context(), currentUser(c), user); err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "User updated"})
}

// DeleteUser removes an operator account.
func (h *Handler) DeleteUser(c echo.Context) error {
	if err := h.users.DeleteUser(c.Request().Context(), currentUser(c), c.Param("id")); err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "User deleted"})
}

// ── partner connections ───────────────────────────────────────────────────────

// GetConnection returns a platform's connection settings with the secret
// omitted.
func (h *Handler) GetConnection(c echo.Context) error {
	ctx := c.Request().Context()
	switch repository.Platform(c.Param("platform")) {
	case repository.PlatformCake:
		conn, err := h.connections.GetCake(ctx)
		if err != nil {
			return h.writeError(c, err)
		}
		return c.JSON(http.StatusOK, map[string]string{
			"api_url":    conn.APIURL,
			"api_v2_url": conn.APIV2URL,
		})
	case repository.PlatformRingba:
		conn, err := h.connections.GetRingba(ctx)
		if err != nil {
			return h.writeError(c, err)
		}
		return c.JSON(http.StatusOK, map[string]string{
			"api_url":    conn.APIURL,
			"account_id": conn.AccountID,
		})
	default:
		return h.writeError(c, apperrors.InvalidInput("platform", "must be cake or ringba"))
	}
}

// SaveConnection stores a platform's connection settings.
func (h *Handler) SaveConnection(c echo.Context) error {
	ctx := c.Request().Context()
	switch repository.Platform(c.Param("platform")) {
	case repository.PlatformCake:
		var conn repository.CakeConnection
		if err := h.bind(c, &conn); err != nil {
			return h.writeError(c, err)
		}
		if err := h.connections.SaveCake(ctx, &conn); err != nil {
			return h.writeError(c, err)
		}
	case repository.PlatformRingba:
		var conn repository.RingbaConnection
		if err := h.bind(c, &conn); err != nil {
			return h.writeError(c, err)
		}
		if err := h.connections.SaveRingba(ctx, &conn); err != nil {
			return h.writeError(c, err)
		}
	default:
		return h.writeError(c, apperrors.InvalidInput("platform", "must be cake or ringba"))
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Connection saved"})
}

// ── QA forms ──────────────────────────────────────────────────────────────────

// GetQAForm returns a platform's QA form definition.
func (h *Handler) GetQAForm(c echo.Context) error {
	platform := repository.Platform(c.Param("platform"))
	if platform != repository.PlatformCake && platform != repository.PlatformRingba {
		return h.writeError(c, apperrors.InvalidInput("platform", "must be cake or ringba"))
	}

	form, err := h.qaForms.Get(c.Request().Context(), platform)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, form)
}

// SaveQAForm replaces a platform's QA form definition.
func (h *Handler) SaveQAForm(c echo.Context) error {
	platform := repository.Platform(c.Param("platform"))
	if platform != repository.PlatformCake && platform != repository.PlatformRingba {
		return h.writeError(c, apperrors.InvalidInput("platform", "must be cake or ringba"))
	}

	var req struct {
		Fields []repository.QAFormField `json:"fields" validate:"required"`
	}
	if err := h.bind(c, &req); err != nil {
		return h.writeError(c, err)
	}

	form := &repository.QAForm{
		Platform:  platform,
		Fields:    req.Fields,
		UpdatedBy: currentUser(c).Username,
	}
	if err := h.qaForms.Save(c.Request().Context(), form); err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, form)
}
