// Package auth issues access tokens, rotates refresh tokens and revokes
// sessions.  Every protected operation in the application starts with
// Service.Verify.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/pipeline-crm/internal/model"
	"github.com/iliyamo/pipeline-crm/internal/repository"
	"github.com/iliyamo/pipeline-crm/internal/utils"
)

// Response messages shared with the HTTP layer.
const (
	MsgUnauthenticated = "Unauthenticated"
	MsgSessionExpired  = "Session expired"
	MsgInternal        = "Internal server error"
	MsgIncomplete      = "Incomplete Data Provided"
	MsgUnauthorized    = "Unauthorized user"
	MsgLoginOK         = "Login Successfull"
)

// SessionStore persists refresh-token sessions.  Redeem must delete and
// return a live row in one atomic step and report ErrSessionNotFound when
// nothing was deleted.
type SessionStore interface {
	Create(ctx context.Context, s *model.Session) error
	Redeem(ctx context.Context, id string, now time.Time) (*model.Session, error)
	Delete(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// UserFinder is the slice of the credential store that login needs.
type UserFinder interface {
	GetByEmail(ctx context.Context, email string) (model.User, error)
}

// Recorder receives auth outcomes for metrics.
type Recorder interface {
	AuthEvent(event, outcome string)
}

// Config holds the signing secret and token lifetimes.
type Config struct {
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Credentials are the two opaque tokens a request carries.  Either may be
// empty.
type Credentials struct {
	AccessToken  string
	RefreshToken string
}

// Claims identify the verified caller.
type Claims struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
}

// TokenPair is a freshly issued access token and refresh token.
type TokenPair struct {
	AccessToken    string
	AccessExpires  time.Time
	RefreshToken   string
	RefreshExpires time.Time
}

// Verification is the outcome of Verify.  Status is an HTTP status code.
// Issued is set when a rotation produced new tokens that the transport
// must hand back to the caller; Clear is set when both tokens must be
// dropped.
type Verification struct {
	Status  int
	Message string
	Claims  *Claims
	Issued  *TokenPair
	Clear   bool
}

// OK reports whether the caller is authenticated.
func (v Verification) OK() bool { return v.Status == http.StatusOK && v.Claims != nil }

// LoginResult is the outcome of Login.
type LoginResult struct {
	Status  int
	Message string
	User    *model.User
	Issued  *TokenPair
}

type Service struct {
	cfg      Config
	users    UserFinder
	sessions SessionStore
	now      func() time.Time
	log      *zap.Logger
	rec      Recorder
}

type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

func WithRecorder(r Recorder) Option { return func(s *Service) { s.rec = r } }

func NewService(cfg Config, users UserFinder, sessions SessionStore, opts ...Option) *Service {
	s := &Service{
		cfg:      cfg,
		users:    users,
		sessions: sessions,
		now:      time.Now,
		log:      zap.NewNop(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Login checks email and password and issues a token pair.
func (s *Service) Login(ctx context.Context, email, password string) LoginResult {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		s.record("login", "incomplete")
		return LoginResult{Status: http.StatusBadRequest, Message: MsgIncomplete}
	}
	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		s.record("login", "unknown_user")
		return LoginResult{Status: http.StatusUnauthorized, Message: MsgUnauthorized}
	}
	if err != nil {
		s.log.Error("login: load user", zap.Error(err))
		s.record("login", "error")
		return LoginResult{Status: http.StatusInternalServerError, Message: MsgInternal}
	}
	if !utils.VerifyPassword(u.PasswordHash, password) || !u.IsActive {
		s.record("login", "rejected")
		return LoginResult{Status: http.StatusUnauthorized, Message: MsgUnauthorized}
	}
	pair, err := s.Issue(ctx, u.ID, u.Role)
	if err != nil {
		s.log.Error("login: issue tokens", zap.String("user_id", u.ID), zap.Error(err))
		s.record("login", "error")
		return LoginResult{Status: http.StatusInternalServerError, Message: MsgInternal}
	}
	s.record("login", "ok")
	return LoginResult{Status: http.StatusOK, Message: MsgLoginOK, User: &u, Issued: &pair}
}

// Issue signs an access token and stores a new session for userID.
func (s *Service) Issue(ctx context.Context, userID, role string) (TokenPair, error) {
	now := s.now().UTC()
	refresh, err := utils.NewRefreshToken(s.cfg.RefreshTTL, now)
	if err != nil {
		return TokenPair{}, err
	}
	sess := &model.Session{
		ID:        refresh.Raw,
		UserID:    userID,
		Role:      role,
		ExpiresAt: refresh.Exp,
		CreatedAt: now,
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return TokenPair{}, err
	}
	access, err := utils.NewAccessToken(s.cfg.Secret, userID, role, s.cfg.AccessTTL, now)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:    access.Token,
		AccessExpires:  access.Exp,
		RefreshToken:   refresh.Raw,
		RefreshExpires: refresh.Exp,
	}, nil
}

// Verify authenticates a request.  A valid access token is accepted as is.
// Otherwise the refresh token is redeemed exactly once: the session row is
// consumed by an atomic conditional delete, and only the caller that
// consumed it receives a new pair.  Every other caller presenting the same
// token, and any caller with an expired token, gets 401 with Clear set.
func (s *Service) Verify(ctx context.Context, creds Credentials) Verification {
	v := s.verify(ctx, creds)
	if ce := s.log.Check(zap.DebugLevel, "auth state"); ce != nil {
		ce.Write(zap.Stringer("from", s.Before(creds)), zap.Stringer("to", v.After()), zap.Int("status", v.Status))
	}
	return v
}

func (s *Service) verify(ctx context.Context, creds Credentials) Verification {
	now := s.now().UTC()

	if creds.AccessToken != "" {
		if c, err := utils.ParseAccessToken(s.cfg.Secret, creds.AccessToken, now); err == nil {
			return Verification{Status: http.StatusOK, Claims: &Claims{UserID: c.UserID, Role: c.Role}}
		}
	}

	if creds.RefreshToken == "" {
		return Verification{Status: http.StatusUnauthorized, Message: MsgUnauthenticated}
	}

	sess, err := s.sessions.Redeem(ctx, creds.RefreshToken, now)
	if errors.Is(err, repository.ErrSessionNotFound) {
		s.record("rotation", "rejected")
		return Verification{Status: http.StatusUnauthorized, Message: MsgSessionExpired, Clear: true}
	}
	if err != nil {
		s.log.Error("verify: redeem session", zap.Error(err))
		s.record("rotation", "error")
		return Verification{Status: http.StatusInternalServerError, Message: MsgInternal}
	}

	pair, err := s.Issue(ctx, sess.UserID, sess.Role)
	if err != nil {
		s.log.Error("verify: reissue after rotation", zap.String("user_id", sess.UserID), zap.Error(err))
		s.record("rotation", "error")
		return Verification{Status: http.StatusInternalServerError, Message: MsgInternal, Clear: true}
	}
	s.record("rotation", "ok")
	s.log.Debug("session rotated", zap.String("user_id", sess.UserID))
	return Verification{
		Status: http.StatusOK,
		Claims: &Claims{UserID: sess.UserID, Role: sess.Role},
		Issued: &pair,
	}
}

// Revoke deletes the session behind refreshToken.  Unknown or empty tokens
// are ignored.
func (s *Service) Revoke(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	if err := s.sessions.Delete(ctx, refreshToken); err != nil {
		return err
	}
	s.record("logout", "ok")
	return nil
}

// Sweep drops every expired session and returns how many were removed.
func (s *Service) Sweep(ctx context.Context) (int64, error) {
	return s.sessions.DeleteExpired(ctx, s.now().UTC())
}

func (s *Service) record(event, outcome string) {
	if s.rec != nil {
		s.rec.AuthEvent(event, outcome)
	}
}
