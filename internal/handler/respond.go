package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/pipeline-crm/internal/middleware"
	"github.com/iliyamo/pipeline-crm/internal/respond"
)

// storeTimeout bounds every service call made on behalf of a request.
const storeTimeout = 5 * time.Second

func requestCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), storeTimeout)
}

// writeResult persists any cookie change carried by r and renders the
// envelope with the HTTP status equal to r.Status.
func writeResult(c echo.Context, r respond.Result, secure bool) error {
	middleware.WriteSession(c, r.Session, secure)
	return c.JSON(r.Status, r.Envelope())
}

func badBody(c echo.Context) error {
	return c.JSON(http.StatusBadRequest, respond.Envelope{Status: http.StatusBadRequest, Message: "invalid body"})
}
