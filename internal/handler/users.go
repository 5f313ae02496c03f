package handler

import (
	"encoding/json"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/pipeline-crm/internal/account"
	"github.com/iliyamo/pipeline-crm/internal/middleware"
)

// UserHandler serves team management under /api/users.
type UserHandler struct {
	Accounts *account.Service
	Secure   bool
}

func NewUserHandler(acc *account.Service, secure bool) *UserHandler {
	return &UserHandler{Accounts: acc, Secure: secure}
}

type inviteReq struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type profileReq struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type passwordReq struct {
	UserID          string `json:"userId"`
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type statusReq struct {
	ID       string `json:"id"`
	IsActive *bool  `json:"isActive"`
}

func (h *UserHandler) List(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()
	return writeResult(c, h.Accounts.List(ctx, middleware.Credentials(c)), h.Secure)
}

func (h *UserHandler) Invite(c echo.Context) error {
	var req inviteReq
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
		return badBody(c)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	return writeResult(c, h.Accounts.Invite(ctx, middleware.Credentials(c), req.Name, req.Email, req.Role), h.Secure)
}

func (h *UserHandler) UpdateProfile(c echo.Context) error {
	var req profileReq
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
		return badBody(c)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	return writeResult(c, h.Accounts.UpdateProfile(ctx, middleware.Credentials(c), req.ID, req.Name, req.Email), h.Secure)
}

func (h *UserHandler) ChangePassword(c echo.Context) error {
	var req passwordReq
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
		return badBody(c)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	res := h.Accounts.ChangePassword(ctx, middleware.Credentials(c), req.UserID, req.CurrentPassword, req.NewPassword)
	return writeResult(c, res, h.Secure)
}

// SetStatus requires isActive to be present; a missing flag is not read
// as false.
func (h *UserHandler) SetStatus(c echo.Context) error {
	var req statusReq
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil || req.IsActive == nil || req.ID == "" {
		return badBody(c)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	return writeResult(c, h.Accounts.SetActive(ctx, middleware.Credentials(c), req.ID, *req.IsActive), h.Secure)
}
