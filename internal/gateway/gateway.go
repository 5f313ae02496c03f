// Package gateway decides, from the path alone and the presence of a
// session cookie, whether a page request passes or is redirected.  It
// does not verify tokens; the protected operations do that.
package gateway

// Action is what the gateway does with a request.
type Action int

const (
	Pass Action = iota
	Redirect
)

// Decision is the gateway outcome.  Location is set for Redirect.
type Decision struct {
	Action   Action
	Location string
}

const (
	LoginPath = "/login"
	HomePath  = "/"
)

// Protected lists the pages that need a session indicator.
var Protected = map[string]bool{
	"/":          true,
	"/analytics": true,
	"/clients":   true,
	"/settings":  true,
}

// Decide maps (path, hasSession) to a decision.  Signed-in users are kept
// off the login page and anonymous users are sent to it.
func Decide(path string, hasSession bool) Decision {
	switch {
	case path == LoginPath && hasSession:
		return Decision{Action: Redirect, Location: HomePath}
	case Protected[path] && !hasSession:
		return Decision{Action: Redirect, Location: LoginPath}
	}
	return Decision{Action: Pass}
}
