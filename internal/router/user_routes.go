package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/pipeline-crm/internal/handler"
)

// RegisterUsers registers team management.  Role checks happen in the
// account service after verification.
func RegisterUsers(e *echo.Echo, h *handler.UserHandler) {
	g := e.Group("/api/users")
	g.GET("", h.List)
	g.POST("", h.Invite)
	g.PUT("/profile", h.UpdateProfile)
	g.PUT("/password", h.ChangePassword)
	g.PATCH("/status", h.SetStatus)
}
