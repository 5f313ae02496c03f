// Package team is the client-side view of the user list with optimistic
// invite, profile and status changes.
package team

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/iliyamo/pipeline-crm/internal/account"
	"github.com/iliyamo/pipeline-crm/internal/model"
	"github.com/iliyamo/pipeline-crm/internal/optimistic"
)

const Key = "users"

type API interface {
	Users(ctx context.Context) ([]model.User, error)
	InviteUser(ctx context.Context, name, email, role string) (account.Invitation, error)
	UpdateProfile(ctx context.Context, id, name, email string) error
	SetUserActive(ctx context.Context, id string, active bool) error
}

type Team struct {
	api   API
	cache *optimistic.Cache[model.User]
}

func New(api API, cache *optimistic.Cache[model.User]) *Team {
	cache.Register(Key, api.Users)
	return &Team{api: api, cache: cache}
}

func (t *Team) Load(ctx context.Context) ([]model.User, error) {
	return t.cache.Fetch(ctx, Key, nil)
}

func (t *Team) Users() []model.User {
	us, _ := t.cache.Get(Key)
	return us
}

// Invite shows the new member under a temporary id until the server
// returns the real record.  The invitation carries the one-time password.
func (t *Team) Invite(ctx context.Context, name, email, role string) (account.Invitation, error) {
	tempID := "temp-" + uuid.NewString()
	pending := model.User{ID: tempID, Name: name, Email: email, Role: strings.ToUpper(role), IsActive: true}

	var inv account.Invitation
	err := t.cache.Mutate(ctx, Key, optimistic.Mutation[model.User]{
		Apply: func(us []model.User) []model.User { return append(us, pending) },
		Dispatch: func(ctx context.Context) (any, error) {
			return t.api.InviteUser(ctx, name, email, role)
		},
		OnSuccess: func(us []model.User, res any) []model.User {
			inv = res.(account.Invitation)
			return replace(us, tempID, func(u *model.User) { *u = inv.User })
		},
		Reconcile: optimistic.Invalidate,
	})
	return inv, err
}

func (t *Team) UpdateProfile(ctx context.Context, id, name, email string) error {
	return t.cache.Mutate(ctx, Key, optimistic.Mutation[model.User]{
		Apply: func(us []model.User) []model.User {
			return replace(us, id, func(u *model.User) { u.Name, u.Email = name, email })
		},
		Dispatch: func(ctx context.Context) (any, error) {
			return nil, t.api.UpdateProfile(ctx, id, name, email)
		},
		Reconcile: optimistic.Invalidate,
	})
}

func (t *Team) SetActive(ctx context.Context, id string, active bool) error {
	return t.cache.Mutate(ctx, Key, optimistic.Mutation[model.User]{
		Apply: func(us []model.User) []model.User {
			return replace(us, id, func(u *model.User) { u.IsActive = active })
		},
		Dispatch: func(ctx context.Context) (any, error) {
			return nil, t.api.SetUserActive(ctx, id, active)
		},
	})
}

func replace(us []model.User, id string, edit func(*model.User)) []model.User {
	out := make([]model.User, len(us))
	for i, u := range us {
		if u.ID == id {
			edit(&u)
		}
		out[i] = u
	}
	return out
}
