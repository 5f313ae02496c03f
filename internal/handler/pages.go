package handler

import (
	"net/http"
	"path/filepath"

	"github.com/labstack/echo/v4"
)

// Page serves the single-page app shell for the gateway-guarded routes.
// Without a static directory it answers with the route name so the
// gateway can still be exercised.
func Page(staticDir string) echo.HandlerFunc {
	index := ""
	if staticDir != "" {
		index = filepath.Join(staticDir, "index.html")
	}
	return func(c echo.Context) error {
		if index != "" {
			return c.File(index)
		}
		return c.String(http.StatusOK, c.Request().URL.Path)
	}
}
