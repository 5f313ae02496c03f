package pipeline

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/pipeline-crm/internal/auth"
	"github.com/iliyamo/pipeline-crm/internal/model"
	"github.com/iliyamo/pipeline-crm/internal/queue"
	"github.com/iliyamo/pipeline-crm/internal/repository/memstore"
)

type stubVerifier struct {
	v     auth.Verification
	calls int
}

func (s *stubVerifier) Verify(context.Context, auth.Credentials) auth.Verification {
	s.calls++
	return s.v
}

func authed(userID string) *stubVerifier {
	return &stubVerifier{v: auth.Verification{Status: http.StatusOK, Claims: &auth.Claims{UserID: userID, Role: model.RoleUser}}}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.PipelineEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev queue.PipelineEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

type countingInvalidator struct{ n int }

func (c *countingInvalidator) Invalidate(context.Context) { c.n++ }

func strPtr(s string) *string { return &s }

func seedUser(t *testing.T, store *memstore.Store, name string) model.User {
	t.Helper()
	u := model.User{Name: name, Email: name + "@example.com", Role: model.RoleUser, IsActive: true}
	require.NoError(t, store.Users().Create(context.Background(), &u))
	return u
}

func TestCreateDefaultsAndStampsCreator(t *testing.T) {
	store := memstore.New()
	u := seedUser(t, store, "Dana")
	pub := &recordingPublisher{}
	inv := &countingInvalidator{}
	svc := NewService(authed(u.ID), store.Clients(), WithPublisher(pub), WithInvalidator(inv))

	res := svc.Create(context.Background(), auth.Credentials{}, CreateInput{Name: strPtr("Acme Deal"), DealValue: 1200})
	require.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, MsgCreated, res.Message)

	c, ok := res.Data.(*model.Client)
	require.True(t, ok)
	assert.Equal(t, model.StageLead, c.Stage)
	assert.Equal(t, "Dana", c.CreatorName)
	assert.Equal(t, u.ID, c.UserID)

	stored, err := store.Clients().GetByID(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StageLead, stored.Stage)
	assert.Equal(t, "Dana", stored.CreatorName)

	require.Len(t, pub.events, 1)
	assert.Equal(t, queue.ClientCreated, pub.events[0].Kind)
	assert.Equal(t, u.ID, pub.events[0].ActorID)
	assert.Equal(t, 1, inv.n)
}

func TestCreateValidation(t *testing.T) {
	store := memstore.New()
	u := seedUser(t, store, "Dana")
	svc := NewService(authed(u.ID), store.Clients())
	ctx := context.Background()

	res := svc.Create(ctx, auth.Credentials{}, CreateInput{})
	assert.Equal(t, http.StatusBadRequest, res.Status)
	assert.Equal(t, MsgNameRequired, res.Message)

	res = svc.Create(ctx, auth.Credentials{}, CreateInput{Name: strPtr("x"), Stage: "closed"})
	assert.Equal(t, http.StatusBadRequest, res.Status)
	assert.Equal(t, MsgInvalidStage, res.Message)

	res = svc.Create(ctx, auth.Credentials{}, CreateInput{Name: strPtr("x"), DealValue: -1})
	assert.Equal(t, http.StatusBadRequest, res.Status)

	// An empty name is not NULL and is stored.
	res = svc.Create(ctx, auth.Credentials{}, CreateInput{Name: strPtr(""), Stage: "Won"})
	require.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, model.StageWon, res.Data.(*model.Client).Stage)
}

func TestCreateForUnknownCallerFails(t *testing.T) {
	svc := NewService(authed("ghost"), memstore.New().Clients())

	res := svc.Create(context.Background(), auth.Credentials{}, CreateInput{Name: strPtr("x")})
	assert.Equal(t, http.StatusBadRequest, res.Status)
	assert.Equal(t, MsgCreateFailed, res.Message)
}

func TestFailedVerificationPropagatesUnchanged(t *testing.T) {
	failed := auth.Verification{Status: http.StatusUnauthorized, Message: auth.MsgSessionExpired, Clear: true}
	v := &stubVerifier{v: failed}
	store := memstore.New()
	pub := &recordingPublisher{}
	svc := NewService(v, store.Clients(), WithPublisher(pub))
	ctx := context.Background()

	results := []struct {
		name string
		run  func() int
	}{
		{"create", func() int { return svc.Create(ctx, auth.Credentials{}, CreateInput{Name: strPtr("x")}).Status }},
		{"list", func() int { return svc.List(ctx, auth.Credentials{}).Status }},
		{"stage", func() int { return svc.UpdateStage(ctx, auth.Credentials{}, "id", "won").Status }},
		{"edit", func() int { return svc.Edit(ctx, auth.Credentials{}, EditInput{ID: "id", Name: strPtr("x")}).Status }},
		{"delete", func() int { return svc.Delete(ctx, auth.Credentials{}, "id").Status }},
	}
	for _, tc := range results {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, http.StatusUnauthorized, tc.run())
		})
	}

	res := svc.List(ctx, auth.Credentials{})
	assert.Equal(t, auth.MsgSessionExpired, res.Message)
	assert.True(t, res.Session.Clear)
	assert.Nil(t, res.Data)
	assert.Empty(t, pub.events)
	assert.Equal(t, 6, v.calls)
}

func TestRotatedSessionTravelsWithResult(t *testing.T) {
	store := memstore.New()
	u := seedUser(t, store, "Dana")
	v := authed(u.ID)
	v.v.Issued = &auth.TokenPair{AccessToken: "new-a", RefreshToken: "new-r"}
	svc := NewService(v, store.Clients())

	res := svc.List(context.Background(), auth.Credentials{RefreshToken: "old"})
	require.Equal(t, http.StatusOK, res.Status)
	require.NotNil(t, res.Session.Issued)
	assert.Equal(t, "new-r", res.Session.Issued.RefreshToken)
}

func TestFreeTransitionGraph(t *testing.T) {
	store := memstore.New()
	u := seedUser(t, store, "Dana")
	svc := NewService(authed(u.ID), store.Clients())
	ctx := context.Background()

	for _, from := range model.Stages {
		for _, to := range model.Stages {
			if from == to {
				continue
			}
			created := svc.Create(ctx, auth.Credentials{}, CreateInput{Name: strPtr("deal"), Stage: string(from)})
			require.Equal(t, http.StatusOK, created.Status)
			id := created.Data.(*model.Client).ID

			res := svc.UpdateStage(ctx, auth.Credentials{}, id, string(to))
			require.Equal(t, http.StatusOK, res.Status, "%s -> %s", from, to)
			assert.Equal(t, MsgStageUpdated, res.Message)

			stored, err := store.Clients().GetByID(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, to, stored.Stage)
			assert.NotNil(t, stored.UpdatedAt)
		}
	}
}

func TestUpdateStageFailures(t *testing.T) {
	store := memstore.New()
	u := seedUser(t, store, "Dana")
	svc := NewService(authed(u.ID), store.Clients())
	ctx := context.Background()

	res := svc.UpdateStage(ctx, auth.Credentials{}, "missing", "won")
	assert.Equal(t, http.StatusBadRequest, res.Status)
	assert.Equal(t, MsgStageFailed, res.Message)

	res = svc.UpdateStage(ctx, auth.Credentials{}, "missing", "archived")
	assert.Equal(t, http.StatusBadRequest, res.Status)
	assert.Equal(t, MsgInvalidStage, res.Message)
}

func TestEditKeepsStageAndCreator(t *testing.T) {
	store := memstore.New()
	u := seedUser(t, store, "Dana")
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	svc := NewService(authed(u.ID), store.Clients(), WithClock(func() time.Time { return now }))
	ctx := context.Background()

	created := svc.Create(ctx, auth.Credentials{}, CreateInput{Name: strPtr("Old"), Stage: "proposal"})
	id := created.Data.(*model.Client).ID

	res := svc.Edit(ctx, auth.Credentials{}, EditInput{ID: id, Name: strPtr("New"), Company: "Co", Email: "a@b.c", Phone: "1", DealValue: 99, Notes: "n"})
	require.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, MsgUpdated, res.Message)

	stored, err := store.Clients().GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "New", stored.Name)
	assert.EqualValues(t, 99, stored.DealValue)
	assert.Equal(t, model.StageProposal, stored.Stage)
	assert.Equal(t, "Dana", stored.CreatorName)
	require.NotNil(t, stored.UpdatedAt)
	assert.Equal(t, now, *stored.UpdatedAt)

	res = svc.Edit(ctx, auth.Credentials{}, EditInput{ID: "missing", Name: strPtr("x")})
	assert.Equal(t, http.StatusBadRequest, res.Status)
	assert.Equal(t, MsgUpdateFailed, res.Message)
}

func TestDeleteIsSoftOnMissing(t *testing.T) {
	store := memstore.New()
	u := seedUser(t, store, "Dana")
	pub := &recordingPublisher{err: errors.New("broker down")}
	svc := NewService(authed(u.ID), store.Clients(), WithPublisher(pub))
	ctx := context.Background()

	res := svc.Delete(ctx, auth.Credentials{}, "does-not-exist")
	assert.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, MsgCannotDelete, res.Message)
	assert.Empty(t, pub.events)

	created := svc.Create(ctx, auth.Credentials{}, CreateInput{Name: strPtr("x")})
	id := created.Data.(*model.Client).ID
	res = svc.Delete(ctx, auth.Credentials{}, id)
	assert.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, MsgDeleted, res.Message)

	list := svc.List(ctx, auth.Credentials{})
	assert.Empty(t, list.Data)
	// Publish failures are logged, never surfaced.
	assert.Len(t, pub.events, 2)
}
