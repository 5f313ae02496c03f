// Package account manages team members: listing, admin invites, profile
// and password changes and activation.
package account

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/iliyamo/pipeline-crm/internal/auth"
	"github.com/iliyamo/pipeline-crm/internal/model"
	"github.com/iliyamo/pipeline-crm/internal/pipeline"
	"github.com/iliyamo/pipeline-crm/internal/repository"
	"github.com/iliyamo/pipeline-crm/internal/respond"
	"github.com/iliyamo/pipeline-crm/internal/utils"
)

const (
	MsgUserCreated      = "User Created"
	MsgUserUpdated      = "User Updated"
	MsgPasswordUpdated  = "Password Updated Succesfully"
	MsgWrongPassword    = "Incorrect Current password"
	MsgUserNotFound     = "user not found"
	MsgEmailTaken       = "email already exists"
	MsgStatusUpdated    = "User status updated"
	MsgInvalidInvite    = "name, email and role are required"
	MsgMissingPasswords = "current and new password are required"
	MsgInternal         = "Internal server error"
)

// UserStore is the credential store.
type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	GetByID(ctx context.Context, id string) (model.User, error)
	List(ctx context.Context) ([]model.User, error)
	UpdateProfile(ctx context.Context, id, name, email string) error
	UpdatePassword(ctx context.Context, id, hash string) error
	SetActive(ctx context.Context, id string, active bool) error
}

// Invitation is returned once to the inviting admin.
type Invitation struct {
	User              model.User `json:"user"`
	TemporaryPassword string     `json:"temporaryPassword"`
}

type Service struct {
	auth       pipeline.Verifier
	users      UserStore
	bcryptCost int
	log        *zap.Logger
}

func NewService(v pipeline.Verifier, users UserStore, bcryptCost int, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{auth: v, users: users, bcryptCost: bcryptCost, log: log}
}

// Me returns the verified caller's user record.
func (s *Service) Me(ctx context.Context, creds auth.Credentials) respond.Result {
	v := s.auth.Verify(ctx, creds)
	if !v.OK() {
		return respond.FromVerification(v)
	}
	u, err := s.users.GetByID(ctx, v.Claims.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return respond.BadRequest(v, MsgUserNotFound)
	}
	if err != nil {
		s.log.Error("load current user", zap.Error(err))
		return respond.Internal(v, MsgInternal)
	}
	return respond.OK(v, "", u)
}

func (s *Service) List(ctx context.Context, creds auth.Credentials) respond.Result {
	v := s.auth.Verify(ctx, creds)
	if !v.OK() {
		return respond.FromVerification(v)
	}
	users, err := s.users.List(ctx)
	if err != nil {
		s.log.Error("list users", zap.Error(err))
		return respond.Internal(v, MsgInternal)
	}
	return respond.OK(v, "", users)
}

// Invite creates an active user with a random temporary password.  Only
// admins may invite.
func (s *Service) Invite(ctx context.Context, creds auth.Credentials, name, email, role string) respond.Result {
	v := s.auth.Verify(ctx, creds)
	if !v.OK() {
		return respond.FromVerification(v)
	}
	if v.Claims.Role != model.RoleAdmin {
		return respond.Forbidden(v)
	}
	role = strings.ToUpper(strings.TrimSpace(role))
	name = strings.TrimSpace(name)
	if name == "" || strings.TrimSpace(email) == "" || !model.ValidRole(role) {
		return respond.BadRequest(v, MsgInvalidInvite)
	}
	tmp, err := utils.TemporaryPassword()
	if err != nil {
		return respond.Internal(v, MsgInternal)
	}
	hash, err := utils.HashPassword(tmp, s.bcryptCost)
	if err != nil {
		return respond.Internal(v, MsgInternal)
	}
	u := model.User{Name: name, Email: email, PasswordHash: hash, Role: role, IsActive: true}
	err = s.users.Create(ctx, &u)
	if errors.Is(err, repository.ErrEmailExists) {
		return respond.BadRequest(v, MsgEmailTaken)
	}
	if err != nil {
		s.log.Error("invite user", zap.Error(err))
		return respond.Internal(v, MsgInternal)
	}
	s.log.Info("user invited", zap.String("user_id", u.ID), zap.String("by", v.Claims.UserID))
	return respond.Created(v, MsgUserCreated, Invitation{User: u, TemporaryPassword: tmp})
}

// UpdateProfile changes name and email of id.  Users may edit themselves;
// admins may edit anyone.
func (s *Service) UpdateProfile(ctx context.Context, creds auth.Credentials, id, name, email string) respond.Result {
	v := s.auth.Verify(ctx, creds)
	if !v.OK() {
		return respond.FromVerification(v)
	}
	if id == "" {
		id = v.Claims.UserID
	}
	if id != v.Claims.UserID && v.Claims.Role != model.RoleAdmin {
		return respond.Forbidden(v)
	}
	if strings.TrimSpace(email) == "" {
		return respond.BadRequest(v, "email is required")
	}
	err := s.users.UpdateProfile(ctx, id, strings.TrimSpace(name), email)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return respond.BadRequest(v, MsgUserNotFound)
	case errors.Is(err, repository.ErrEmailExists):
		return respond.BadRequest(v, MsgEmailTaken)
	case err != nil:
		s.log.Error("update profile", zap.Error(err))
		return respond.Internal(v, MsgInternal)
	}
	return respond.OK(v, MsgUserUpdated, nil)
}

// ChangePassword replaces the password of userID after checking the
// current one.
func (s *Service) ChangePassword(ctx context.Context, creds auth.Credentials, userID, current, next string) respond.Result {
	v := s.auth.Verify(ctx, creds)
	if !v.OK() {
		return respond.FromVerification(v)
	}
	if userID == "" {
		userID = v.Claims.UserID
	}
	if userID != v.Claims.UserID && v.Claims.Role != model.RoleAdmin {
		return respond.Forbidden(v)
	}
	if current == "" || next == "" {
		return respond.BadRequest(v, MsgMissingPasswords)
	}
	u, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return respond.BadRequest(v, MsgUserNotFound)
	}
	if err != nil {
		s.log.Error("load user for password change", zap.Error(err))
		return respond.Internal(v, MsgInternal)
	}
	if !utils.VerifyPassword(u.PasswordHash, current) {
		return respond.BadRequest(v, MsgWrongPassword)
	}
	hash, err := utils.HashPassword(next, s.bcryptCost)
	if err != nil {
		return respond.Internal(v, MsgInternal)
	}
	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return respond.BadRequest(v, "Something went wrong")
		}
		s.log.Error("update password", zap.Error(err))
		return respond.Internal(v, MsgInternal)
	}
	return respond.OK(v, MsgPasswordUpdated, nil)
}

// SetActive enables or disables id.  Admin only; admins cannot disable
// themselves.
func (s *Service) SetActive(ctx context.Context, creds auth.Credentials, id string, active bool) respond.Result {
	v := s.auth.Verify(ctx, creds)
	if !v.OK() {
		return respond.FromVerification(v)
	}
	if v.Claims.Role != model.RoleAdmin {
		return respond.Forbidden(v)
	}
	if id == v.Claims.UserID && !active {
		return respond.BadRequest(v, "cannot deactivate yourself")
	}
	err := s.users.SetActive(ctx, id, active)
	if errors.Is(err, repository.ErrNotFound) {
		return respond.BadRequest(v, MsgUserNotFound)
	}
	if err != nil {
		s.log.Error("set user active", zap.Error(err))
		return respond.Internal(v, MsgInternal)
	}
	return respond.OK(v, MsgStatusUpdated, nil)
}

// Seeder is what SeedAdmin needs from the credential store.
type Seeder interface {
	Create(ctx context.Context, u *model.User) error
	GetByEmail(ctx context.Context, email string) (model.User, error)
}

// SeedAdmin creates the first admin when no user owns email.  It reports
// whether a user was created.  There is no public sign-up, so this is how
// a fresh install gets its first login.
func SeedAdmin(ctx context.Context, users Seeder, name, email, password string, bcryptCost int) (bool, error) {
	if email == "" || password == "" {
		return false, nil
	}
	_, err := users.GetByEmail(ctx, email)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return false, err
	}
	hash, err := utils.HashPassword(password, bcryptCost)
	if err != nil {
		return false, err
	}
	u := model.User{Name: name, Email: email, PasswordHash: hash, Role: model.RoleAdmin, IsActive: true}
	if err := users.Create(ctx, &u); err != nil {
		return false, err
	}
	return true, nil
}
