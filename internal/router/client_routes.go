package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/pipeline-crm/internal/handler"
)

// RegisterClients registers the pipeline endpoints.  Every handler verifies
// the caller through the token service, so no auth middleware is attached
// here: a rotation must happen inside the operation to be written back.
func RegisterClients(e *echo.Echo, h *handler.ClientHandler, a *handler.AnalyticsHandler) {
	g := e.Group("/api")
	g.GET("/client", h.List)
	g.POST("/client", h.Create)
	g.PUT("/client", h.Edit)
	g.PATCH("/client", h.UpdateStage)
	g.DELETE("/client", h.Delete)

	g.GET("/analytics", a.Summary)
}
