package handler

import (
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/labstack/echo/v4"

	"github.com/vellko/affiliate-admin/internal/repository"
	"github.com/vellko/affiliate-admin/internal/service"
)

// SubmitSignup accepts a public affiliate application.
func (h *Handler) SubmitSignup(c echo.Context) error {
	var req struct {
		CompanyInfo   repository.CompanyInfo   `json:"companyInfo" validate:"required"`
		MarketingInfo repository.MarketingInfo `json:"marketingInfo" validate:"required"`
		AccountInfo   repository.AccountInfo   `json:"accountInfo" validate:"required"`
		PaymentInfo   repository.PaymentInfo   `json:"paymentInfo" validate:"required"`
	}
	if err := h.bind(c, &req); err != nil {
		return h.writeError(c, err)
	}

	sup := &repository.Signup{
		CompanyInfo:   req.CompanyInfo,
		MarketingInfo: req.MarketingInfo,
		AccountInfo:   req.AccountInfo,
		PaymentInfo:   req.PaymentInfo,
		IPAddress:     c.RealIP(),
	}
	if err := h.signups.Submit(c.Request().Context(), sup); err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusCreated, map[string]string{
		"message": "Application submitted successfully",
		"id":      sup.ID,
	})
}

// ListSignups returns signups filtered by status/referral with pagination.
func (h *Handler) ListSignups(c echo.Context) error {
	f := repository.ListFilter{}
	if v := c.QueryParam("status"); v != "" {
		status := repository.SignupStatus(v)
		f.Status = &status
	}
	if v := c.QueryParam("referral"); v != "" {
		f.Referral = &v
	}
	echo.QueryParamsBinder(c).Int("page", &f.Page).Int("limit", &f.Limit)

	signups, total, err := h.signups.List(c.Request().Context(), currentUser(c), f)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"signups": signups,
		"total":   total,
	})
}

// GetSignup returns one signup with notes and documents.
func (h *Handler) GetSignup(c echo.Context) error {
	sup, err := h.signups.Get(c.Request().Context(), c.Param("id"), currentUser(c))
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, sup)
}

// UpdateSignup applies a partial edit to the application sections.
func (h *Handler) UpdateSignup(c echo.Context) error {
	var req struct {
		CompanyInfo   *repository.CompanyInfo   `json:"companyInfo"`
		MarketingInfo *repository.MarketingInfo `json:"marketingInfo"`
		AccountInfo   *repository.AccountInfo   `json:"accountInfo"`
		PaymentInfo   *repository.PaymentInfo   `json:"paymentInfo"`
	}
	if err := c.Bind(&req); err != nil {
		return h.writeError(c, echo.ErrBadRequest)
	}

	err := h.signups.UpdateSections(c.Request().Context(), c.Param("id"), currentUser(c),
		req.CompanyInfo, req.MarketingInfo, req.AccountInfo, req.PaymentInfo)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Signup updated successfully"})
}

// DeleteSignup purges a signup (super admin only).
func (h *Handler) DeleteSignup(c echo.Context) error {
	if err := h.signups.Delete(c.Request().Context(), c.Param("id"), currentUser(c)); err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Signup deleted"})
}

// UpdateReferral reassigns the signup's referrer.
func (h *Handler) UpdateReferral(c echo.Context) error {
	var req struct {
		Referral string `json:"referral" validate:"required"`
	}
	if err := h.bind(c, &req); err != nil {
		return h.writeError(c, err)
	}

	err := h.signups.UpdateReferral(c.Request().Context(), c.Param("id"), currentUser(c), req.Referral)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Referral updated successfully"})
}

// GetStats returns dashboard aggregates.
func (h *Handler) GetStats(c echo.Context) error {
	stats, err := h.signups.Stats(c.Request().Context(), currentUser(c))
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}

// ── decisions ─────────────────────────────────────────────────────────────────

// ApproveSignup submits an APPROVE intent. A partial platform failure returns
// 400 with per-platform details; the persisted state already reflects the
// attempt.
func (h *Handler) ApproveSignup(c echo.Context) error {
	var in service.DecisionInput
	if err := c.Bind(&in); err != nil {
		return h.writeError(c, echo.ErrBadRequest)
	}

	result, err := h.approvals.Approve(c.Request().Context(), c.Param("id"), currentUser(c), in)
	if err != nil {
		return h.writeError(c, err)
	}
	if result.Requested {
		return c.JSON(http.StatusOK, map[string]string{
			"message": result.Message,
			"status":  string(result.Status),
		})
	}
	return c.JSON(http.StatusOK, result)
}

// RejectSignup submits a REJECT intent.
func (h *Handler) RejectSignup(c echo.Context) error {
	var in service.DecisionInput
	if err := c.Bind(&in); err != nil {
		return h.writeError(c, echo.ErrBadRequest)
	}

	result, err := h.approvals.Reject(c.Request().Context(), c.Param("id"), currentUser(c), in)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// ResetSignup clears all decision state back to pending.
func (h *Handler) ResetSignup(c echo.Context) error {
	result, err := h.approvals.Reset(c.Request().Context(), c.Param("id"), currentUser(c))
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// ── notes ─────────────────────────────────────────────────────────────────────

// AddNote attaches a note to a signup.
func (h *Handler) AddNote(c echo.Context) error {
	var req struct {
		Content string `json:"content" validate:"required"`
	}
	if err := h.bind(c, &req); err != nil {
		return h.writeError(c, err)
	}

	note, err := h.signups.AddNote(c.Request().Context(), c.Param("id"), currentUser(c), req.Content)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusCreated, note)
}

// UpdateNote edits a note's content.
func (h *Handler) UpdateNote(c echo.Context) error {
	var req struct {
		Content string `json:"content" validate:"required"`
	}
	if err := h.bind(c, &req); err != nil {
		return h.writeError(c, err)
	}

	err := h.signups.UpdateNote(c.Request().Context(), c.Param("noteId"), currentUser(c), req.Content)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Note updated"})
}

// DeleteNote removes a note.
func (h *Handler) DeleteNote(c echo.Context) error {
	err := h.signups.DeleteNote(c.Request().Context(), c.Param("noteId"), currentUser(c))
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Note deleted"})
}

// ── documents ─────────────────────────────────────────────────────────────────

// UploadDocument stores an uploaded file and records it on the signup.
func (h *Handler) UploadDocument(c echo.Context) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return h.writeError(c, echo.ErrBadRequest)
	}

	signupID := c.Param("id")
	filename := filepath.Base(fileHeader.Filename)
	dir := filepath.Join(h.uploadDir, signupID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return h.writeError(c, err)
	}
	path := filepath.Join(dir, filename)

	src, err := fileHeader.Open()
	if err != nil {
		return h.writeError(c, err)
	}
	defer src.Close()

	dst, err := os.Create(path)
	if err != nil {
		return h.writeError(c, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return h.writeError(c, err)
	}

	doc, err := h.signups.AttachDocument(c.Request().Context(), signupID, currentUser(c), filename, path)
	if err != nil {
		os.Remove(path)
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusCreated, doc)
}

// DeleteDocument removes a document record and its file.
func (h *Handler) DeleteDocument(c echo.Context) error {
	signupID, filename := c.Param("id"), filepath.Base(c.Param("filename"))

	err := h.signups.RemoveDocument(c.Request().Context(), signupID, filename, currentUser(c))
	if err != nil {
		return h.writeError(c, err)
	}
	os.Remove(filepath.Join(h.uploadDir, signupID, filename))
	return c.JSON(http.StatusOK, map[string]string{"message": "Document deleted"})
}
