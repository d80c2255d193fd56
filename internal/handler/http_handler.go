package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/vellko/affiliate-admin/internal/apperrors"
	"github.com/vellko/affiliate-admin/internal/auth"
	"github.com/vellko/affiliate-admin/internal/repository"
	"github.com/vellko/affiliate-admin/internal/service"
)

const userContextKey = "current_user"

// Handler owns the HTTP surface: public submission, auth, and the admin API.
type Handler struct {
	signups     *service.SignupService
	approvals   *service.ApprovalService
	users       *service.UserService
	connections *service.ConnectionService
	qaForms     *repository.QAFormRepository
	tokens      *auth.Manager
	validate    *validator.Validate
	uploadDir   string
	log         zerolog.Logger
}

// New creates the HTTP handler.
func New(
	signups *service.SignupService,
	approvals *service.ApprovalService,
	users *service.UserService,
	connections *service.ConnectionService,
	qaForms *repository.QAFormRepository,
	tokens *auth.Manager,
	uploadDir string,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		signups:     signups,
		approvals:   approvals,
		users:       users,
		connections: connections,
		qaForms:     qaForms,
		tokens:      tokens,
		validate:    validator.New(),
		uploadDir:   uploadDir,
		log:         log.With().Str("component", "http").Logger(),
	}
}

// RegisterRoutes mounts all endpoints on the echo instance.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api")
	api.POST("/public/signups", h.SubmitSignup)
	api.POST("/auth/login", h.Login)

	authed := api.Group("", h.Authenticate)
	authed.GET("/auth/me", h.Me)
	authed.POST("/auth/change-password", h.ChangePassword)

	admin := authed.Group("/admin")
	admin.GET("/stats", h.GetStats)

	admin.GET("/signups", h.ListSignups)
	admin.GET("/signups/:id", h.GetSignup)
	admin.PATCH("/signups/:id", h.UpdateSignup)
	admin.DELETE("/signups/:id", h.DeleteSignup)
	admin.PATCH("/signups/:id/referral", h.UpdateReferral)
	admin.POST("/signups/:id/approve", h.ApproveSignup)
	admin.POST("/signups/:id/reject", h.RejectSignup)
	admin.POST("/signups/:id/reset", h.ResetSignup)

	admin.POST("/signups/:id/notes", h.AddNote)
	admin.PATCH("/notes/:noteId", h.UpdateNote)
	admin.DELETE("/notes/:noteId", h.DeleteNote)

	admin.POST("/signups/:id/documents", h.UploadDocument)
	admin.DELETE("/signups/:id/documents/:filename", h.DeleteDocument)

	admin.GET("/users", h.ListUsers, h.RequireAdmin)
	admin.POST("/users", h.CreateUser, h.RequireAdmin)
	admin.PATCH("/users/:id", h.UpdateUser, h.RequireAdmin)
	admin.DELETE("/users/:id", h.DeleteUser, h.RequireAdmin)

	admin.GET("/connections/:platform", h.GetConnection, h.RequireAdmin)
	admin.PUT("/connections/:platform", h.SaveConnection, h.RequireAdmin)
	admin.GET("/qa-forms/:platform", h.GetQAForm, h.RequireAdmin)
	admin.PUT("/qa-forms/:platform", h.SaveQAForm, h.RequireAdmin)
}

// Health is the liveness probe.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// ── middleware ────────────────────────────────────────────────────────────────

// Authenticate validates the bearer token and loads the current user from the
// database, so role and permission changes take effect immediately.
func (h *Handler) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			return h.writeError(c, apperrors.Unauthorized("missing bearer token"))
		}

		claims, err := h.tokens.Validate(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			return h.writeError(c, apperrors.Unauthorized("invalid or expired token"))
		}

		user, err := h.users.Resolve(c.Request().Context(), claims.Username)
		if err != nil {
			return h.writeError(c, err)
		}

		c.Set(userContextKey, user)
		return next(c)
	}
}

// RequireAdmin gates a route to ADMIN and SUPER_ADMIN.
func (h *Handler) RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !currentUser(c).Role.IsAdmin() {
			return h.writeError(c, apperrors.Forbidden("admin access required"))
		}
		return next(c)
	}
}

func currentUser(c echo.Context) *repository.User {
	u, _ := c.Get(userContextKey).(*repository.User)
	return u
}

// ── response helpers ──────────────────────────────────────────────────────────

func (h *Handler) writeError(c echo.Context, err error) error {
	status := apperrors.HTTPStatus(err)
	body := map[string]any{"detail": "internal server error"}

	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		body["detail"] = appErr.Message
		if appErr.Details != nil {
			body["details"] = appErr.Details
		}
	}

	if status >= 500 {
		h.log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
	}
	return c.JSON(status, body)
}

func (h *Handler) bind(c echo.Context, dest any) error {
	if err := c.Bind(dest); err != nil {
		return apperrors.InvalidInput("body", "malformed request body")
	}
	if err := h.validate.Struct(dest); err != nil {
		return apperrors.InvalidInput("body", err.Error())
	}
	return nil
}
