package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/pipeline-crm/internal/account"
	"github.com/iliyamo/pipeline-crm/internal/auth"
	"github.com/iliyamo/pipeline-crm/internal/middleware"
	"github.com/iliyamo/pipeline-crm/internal/respond"
)

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Auth     *auth.Service
	Accounts *account.Service
	Secure   bool
	Log      *zap.Logger
}

func NewAuthHandler(a *auth.Service, acc *account.Service, secure bool, log *zap.Logger) *AuthHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthHandler{Auth: a, Accounts: acc, Secure: secure, Log: log}
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login checks credentials and sets both token cookies.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, respond.Envelope{Status: http.StatusBadRequest, Message: auth.MsgIncomplete})
	}

	ctx, cancel := requestCtx(c)
	defer cancel()

	res := h.Auth.Login(ctx, req.Email, req.Password)
	if res.Issued != nil {
		middleware.SetTokens(c, *res.Issued, h.Secure)
	}
	env := respond.Envelope{Status: res.Status, Message: res.Message}
	if res.User != nil {
		env.Data = res.User
	}
	return c.JSON(res.Status, env)
}

// Logout revokes the refresh session and clears both cookies.  It succeeds
// without a session too.
func (h *AuthHandler) Logout(c echo.Context) error {
	creds := middleware.Credentials(c)

	ctx, cancel := requestCtx(c)
	defer cancel()

	if err := h.Auth.Revoke(ctx, creds.RefreshToken); err != nil {
		h.Log.Error("logout: revoke", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, respond.Envelope{Status: http.StatusInternalServerError, Message: auth.MsgInternal})
	}
	middleware.ClearTokens(c, h.Secure)
	return c.JSON(http.StatusOK, respond.Envelope{Status: http.StatusOK, Message: "Logged out"})
}

// Me returns the signed-in user.
func (h *AuthHandler) Me(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()
	return writeResult(c, h.Accounts.Me(ctx, middleware.Credentials(c)), h.Secure)
}
