package auth

import "github.com/iliyamo/pipeline-crm/internal/utils"

// State is the per-browser-session authentication state.
type State int

const (
	Anonymous State = iota
	Authenticated
	RefreshPending
	Expired
)

func (s State) String() string {
	switch s {
	case Authenticated:
		return "authenticated"
	case RefreshPending:
		return "refresh_pending"
	case Expired:
		return "expired"
	default:
		return "anonymous"
	}
}

// Before classifies credentials as presented, prior to verification.  An
// access token that no longer verifies puts the session in RefreshPending
// when a refresh token is available.
func (s *Service) Before(creds Credentials) State {
	switch {
	case creds.AccessToken == "" && creds.RefreshToken == "":
		return Anonymous
	case creds.AccessToken != "" && s.accessValid(creds.AccessToken):
		return Authenticated
	case creds.RefreshToken != "":
		return RefreshPending
	default:
		return Expired
	}
}

// After is the state a Verification leaves the session in.
func (v Verification) After() State {
	switch {
	case v.OK():
		return Authenticated
	case v.Clear:
		return Anonymous
	default:
		return Expired
	}
}

func (s *Service) accessValid(raw string) bool {
	_, err := utils.ParseAccessToken(s.cfg.Secret, raw, s.now().UTC())
	return err == nil
}
