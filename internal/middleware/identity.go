package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/labstack/echo/v4"
)

var nowFunc = time.Now

// sessionKey identifies the caller for rate limiting.  The refresh token
// is hashed so raw tokens never end up in Redis keys.  Callers without a
// session share the "anon" bucket of their IP.
func sessionKey(c echo.Context) string {
	ck, err := c.Cookie(RefreshCookie)
	if err != nil || ck.Value == "" {
		return "anon"
	}
	sum := sha256.Sum256([]byte(ck.Value))
	return hex.EncodeToString(sum[:8])
}
