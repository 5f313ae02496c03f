package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/pipeline-crm/internal/auth"
)

// Cookie names carrying the two tokens.
const (
	AccessCookie  = "accessToken"
	RefreshCookie = "refreshToken"
)

// Credentials reads both token cookies.  Missing cookies yield empty
// strings.
func Credentials(c echo.Context) auth.Credentials {
	var creds auth.Credentials
	if ck, err := c.Cookie(AccessCookie); err == nil {
		creds.AccessToken = ck.Value
	}
	if ck, err := c.Cookie(RefreshCookie); err == nil {
		creds.RefreshToken = ck.Value
	}
	return creds
}

// HasSession reports whether either token cookie is present.  Presence is
// all the page gateway looks at.
func HasSession(c echo.Context) bool {
	for _, name := range []string{AccessCookie, RefreshCookie} {
		if ck, err := c.Cookie(name); err == nil && ck.Value != "" {
			return true
		}
	}
	return false
}

// SetTokens writes both cookies for a freshly issued pair.
func SetTokens(c echo.Context, pair auth.TokenPair, secure bool) {
	c.SetCookie(tokenCookie(AccessCookie, pair.AccessToken, int(pair.AccessExpires.Sub(nowFunc()).Seconds()), secure))
	c.SetCookie(tokenCookie(RefreshCookie, pair.RefreshToken, int(pair.RefreshExpires.Sub(nowFunc()).Seconds()), secure))
}

// ClearTokens expires both cookies.
func ClearTokens(c echo.Context, secure bool) {
	c.SetCookie(tokenCookie(AccessCookie, "", -1, secure))
	c.SetCookie(tokenCookie(RefreshCookie, "", -1, secure))
}

// WriteSession applies a verification to the response: a rotated pair is
// written back, a failed rotation clears both cookies.
func WriteSession(c echo.Context, v auth.Verification, secure bool) {
	switch {
	case v.Issued != nil:
		SetTokens(c, *v.Issued, secure)
	case v.Clear:
		ClearTokens(c, secure)
	}
}

func tokenCookie(name, value string, maxAge int, secure bool) *http.Cookie {
	if maxAge == 0 {
		maxAge = 1
	}
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	}
}
