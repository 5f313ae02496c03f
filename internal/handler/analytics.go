package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/pipeline-crm/internal/analytics"
	"github.com/iliyamo/pipeline-crm/internal/middleware"
)

type AnalyticsHandler struct {
	Analytics *analytics.Service
	Secure    bool
}

func NewAnalyticsHandler(a *analytics.Service, secure bool) *AnalyticsHandler {
	return &AnalyticsHandler{Analytics: a, Secure: secure}
}

func (h *AnalyticsHandler) Summary(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()
	return writeResult(c, h.Analytics.Summary(ctx, middleware.Credentials(c)), h.Secure)
}
