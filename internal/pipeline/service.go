// Package pipeline implements the client (opportunity) operations.  Each
// operation verifies the caller first and hands failed verifications back
// unchanged.
package pipeline

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/pipeline-crm/internal/auth"
	"github.com/iliyamo/pipeline-crm/internal/model"
	"github.com/iliyamo/pipeline-crm/internal/queue"
	"github.com/iliyamo/pipeline-crm/internal/repository"
	"github.com/iliyamo/pipeline-crm/internal/respond"
)

const (
	MsgCreated       = "Client Added Successfully."
	MsgCreateFailed  = "Something went wrong"
	MsgStageUpdated  = "Client stage updated"
	MsgStageFailed   = "Something Went Wrong"
	MsgUpdated       = "Client Updated"
	MsgUpdateFailed  = "Something went wrong"
	MsgDeleted       = "Client deleted successfully"
	MsgCannotDelete  = "Cannot delete client"
	MsgInternal      = "Internal server error"
	MsgNameRequired  = "name is required"
	MsgIDRequired    = "id is required"
	MsgInvalidStage  = "invalid stage"
	MsgNegativeValue = "deal_value must not be negative"
)

// Verifier authenticates the caller of every operation.
type Verifier interface {
	Verify(ctx context.Context, creds auth.Credentials) auth.Verification
}

// ClientStore persists clients.  Mutations report matched rows.
type ClientStore interface {
	Create(ctx context.Context, c *model.Client, creatorID string) error
	List(ctx context.Context) ([]model.Client, error)
	UpdateStage(ctx context.Context, id string, stage model.Stage, now time.Time) (int64, error)
	Update(ctx context.Context, c model.Client, now time.Time) (int64, error)
	Delete(ctx context.Context, id string) (int64, error)
}

// Publisher delivers activity events.  Failures never fail the operation.
type Publisher interface {
	Publish(ctx context.Context, ev queue.PipelineEvent) error
}

// Invalidator drops derived data (the analytics cache) after a mutation.
type Invalidator interface {
	Invalidate(ctx context.Context)
}

// CreateInput is a new client.  Name is a pointer so a missing name can be
// told apart from an empty one.  An empty Stage means lead.
type CreateInput struct {
	Name      *string
	Company   string
	Email     string
	Phone     string
	DealValue int64
	Stage     string
	Notes     string
}

// EditInput overwrites the editable fields of client ID.
type EditInput struct {
	ID        string
	Name      *string
	Company   string
	Email     string
	Phone     string
	DealValue int64
	Notes     string
}

type Service struct {
	auth    Verifier
	clients ClientStore
	events  Publisher
	derived Invalidator
	now     func() time.Time
	log     *zap.Logger
}

type Option func(*Service)

func WithPublisher(p Publisher) Option      { return func(s *Service) { s.events = p } }
func WithInvalidator(i Invalidator) Option  { return func(s *Service) { s.derived = i } }
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

func NewService(v Verifier, clients ClientStore, opts ...Option) *Service {
	s := &Service{auth: v, clients: clients, now: time.Now, log: zap.NewNop()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Create stores a new client owned by the caller.
func (s *Service) Create(ctx context.Context, creds auth.Credentials, in CreateInput) respond.Result {
	v := s.auth.Verify(ctx, creds)
	if !v.OK() {
		return respond.FromVerification(v)
	}
	if in.Name == nil {
		return respond.BadRequest(v, MsgNameRequired)
	}
	stage := model.StageLead
	if in.Stage != "" {
		st, ok := model.ParseStage(in.Stage)
		if !ok {
			return respond.BadRequest(v, MsgInvalidStage)
		}
		stage = st
	}
	if in.DealValue < 0 {
		return respond.BadRequest(v, MsgNegativeValue)
	}

	c := &model.Client{
		Name:      *in.Name,
		Company:   in.Company,
		Email:     in.Email,
		Phone:     in.Phone,
		DealValue: in.DealValue,
		Stage:     stage,
		Notes:     in.Notes,
		CreatedAt: s.now().UTC(),
	}
	err := s.clients.Create(ctx, c, v.Claims.UserID)
	if errors.Is(err, repository.ErrNoCreator) {
		return respond.BadRequest(v, MsgCreateFailed)
	}
	if err != nil {
		s.log.Error("create client", zap.String("user_id", v.Claims.UserID), zap.Error(err))
		return respond.Internal(v, MsgInternal)
	}
	s.after(ctx, v, queue.PipelineEvent{Kind: queue.ClientCreated, ClientID: c.ID, ClientName: c.Name, Stage: string(c.Stage), DealValue: c.DealValue})
	return respond.OK(v, MsgCreated, c)
}

// List returns every client.  Any authenticated caller sees all of them.
func (s *Service) List(ctx context.Context, creds auth.Credentials) respond.Result {
	v := s.auth.Verify(ctx, creds)
	if !v.OK() {
		return respond.FromVerification(v)
	}
	clients, err := s.clients.List(ctx)
	if err != nil {
		s.log.Error("list clients", zap.Error(err))
		return respond.Internal(v, MsgInternal)
	}
	return respond.OK(v, "", clients)
}

// UpdateStage moves client id to stage.  Every stage can follow every
// other, including moves out of won and lost.
func (s *Service) UpdateStage(ctx context.Context, creds auth.Credentials, id, stage string) respond.Result {
	v := s.auth.Verify(ctx, creds)
	if !v.OK() {
		return respond.FromVerification(v)
	}
	st, ok := model.ParseStage(stage)
	if !ok {
		return respond.BadRequest(v, MsgInvalidStage)
	}
	if id == "" {
		return respond.BadRequest(v, MsgIDRequired)
	}
	n, err := s.clients.UpdateStage(ctx, id, st, s.now())
	if err != nil {
		s.log.Error("update stage", zap.String("client_id", id), zap.Error(err))
		return respond.Internal(v, MsgInternal)
	}
	if n == 0 {
		return respond.BadRequest(v, MsgStageFailed)
	}
	s.after(ctx, v, queue.PipelineEvent{Kind: queue.ClientStageChanged, ClientID: id, Stage: string(st)})
	return respond.OK(v, MsgStageUpdated, nil)
}

// Edit overwrites name, company, deal value, email, notes and phone.
func (s *Service) Edit(ctx context.Context, creds auth.Credentials, in EditInput) respond.Result {
	v := s.auth.Verify(ctx, creds)
	if !v.OK() {
		return respond.FromVerification(v)
	}
	if in.ID == "" {
		return respond.BadRequest(v, MsgIDRequired)
	}
	if in.Name == nil {
		return respond.BadRequest(v, MsgNameRequired)
	}
	if in.DealValue < 0 {
		return respond.BadRequest(v, MsgNegativeValue)
	}
	n, err := s.clients.Update(ctx, model.Client{
		ID:        in.ID,
		Name:      *in.Name,
		Company:   in.Company,
		Email:     in.Email,
		Phone:     in.Phone,
		DealValue: in.DealValue,
		Notes:     in.Notes,
	}, s.now())
	if err != nil {
		s.log.Error("edit client", zap.String("client_id", in.ID), zap.Error(err))
		return respond.Internal(v, MsgInternal)
	}
	if n == 0 {
		return respond.BadRequest(v, MsgUpdateFailed)
	}
	s.after(ctx, v, queue.PipelineEvent{Kind: queue.ClientUpdated, ClientID: in.ID, ClientName: *in.Name, DealValue: in.DealValue})
	return respond.OK(v, MsgUpdated, nil)
}

// Delete removes client id.  Deleting an id that does not exist is a soft
// failure: status 200 with MsgCannotDelete.
func (s *Service) Delete(ctx context.Context, creds auth.Credentials, id string) respond.Result {
	v := s.auth.Verify(ctx, creds)
	if !v.OK() {
		return respond.FromVerification(v)
	}
	if id == "" {
		return respond.BadRequest(v, "clientId is required")
	}
	n, err := s.clients.Delete(ctx, id)
	if err != nil {
		s.log.Error("delete client", zap.String("client_id", id), zap.Error(err))
		return respond.Internal(v, MsgInternal)
	}
	if n == 0 {
		return respond.OK(v, MsgCannotDelete, nil)
	}
	s.after(ctx, v, queue.PipelineEvent{Kind: queue.ClientDeleted, ClientID: id})
	return respond.OK(v, MsgDeleted, nil)
}

func (s *Service) after(ctx context.Context, v auth.Verification, ev queue.PipelineEvent) {
	if s.derived != nil {
		s.derived.Invalidate(ctx)
	}
	if s.events == nil {
		return
	}
	ev.ActorID = v.Claims.UserID
	ev.ActorRole = v.Claims.Role
	ev.OccurredAt = s.now().UTC()
	if err := s.events.Publish(ctx, ev); err != nil {
		s.log.Warn("publish pipeline event", zap.String("kind", ev.Kind), zap.Error(err))
	}
}
