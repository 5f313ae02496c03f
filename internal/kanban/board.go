// Package kanban is the client-side pipeline board: one column per stage,
// cards moved by drag and drop, every write applied optimistically.
package kanban

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/pipeline-crm/internal/apiclient"
	"github.com/iliyamo/pipeline-crm/internal/model"
	"github.com/iliyamo/pipeline-crm/internal/optimistic"
)

// Key is the cache key the board's clients live under.
const Key = "clients"

// API is the part of the HTTP client the board writes through.
type API interface {
	Clients(ctx context.Context) ([]model.Client, error)
	CreateClient(ctx context.Context, in apiclient.ClientInput) (model.Client, error)
	EditClient(ctx context.Context, id string, in apiclient.ClientInput) error
	MoveClient(ctx context.Context, id string, stage model.Stage) error
	DeleteClient(ctx context.Context, id string) (bool, error)
}

// DropTarget is where a card was released: a column or another card.
// Exactly one field is set.
type DropTarget struct {
	Column model.Stage
	Card   string
}

type Board struct {
	api   API
	cache *optimistic.Cache[model.Client]
	now   func() time.Time
}

// NewBoard registers the client loader on cache.  Pass the same cache to
// every view that shows clients so they observe one state.
func NewBoard(api API, cache *optimistic.Cache[model.Client]) *Board {
	cache.Register(Key, api.Clients)
	return &Board{api: api, cache: cache, now: time.Now}
}

// Load fetches the clients from the server.
func (b *Board) Load(ctx context.Context) ([]model.Client, error) {
	return b.cache.Fetch(ctx, Key, nil)
}

// Clients is the current, possibly optimistic, list.
func (b *Board) Clients() []model.Client {
	cs, _ := b.cache.Get(Key)
	return cs
}

func find(cs []model.Client, id string) (model.Client, bool) {
	for _, c := range cs {
		if c.ID == id {
			return c, true
		}
	}
	return model.Client{}, false
}

// Drop moves cardID to the stage of target.  It reports whether a move
// was attempted; unknown cards and same-stage drops make no calls.
func (b *Board) Drop(ctx context.Context, cardID string, target DropTarget) (bool, error) {
	cs := b.Clients()
	card, ok := find(cs, cardID)
	if !ok {
		return false, nil
	}
	stage := target.Column
	if target.Card != "" {
		over, ok := find(cs, target.Card)
		if !ok {
			return false, nil
		}
		stage = over.Stage
	}
	if !stage.Valid() || stage == card.Stage {
		return false, nil
	}

	err := b.cache.Mutate(ctx, Key, optimistic.Mutation[model.Client]{
		Apply: replace(cardID, func(c *model.Client) { c.Stage = stage }),
		Dispatch: func(ctx context.Context) (any, error) {
			return nil, b.api.MoveClient(ctx, cardID, stage)
		},
		Reconcile: optimistic.KeepOptimistic,
	})
	return true, err
}

// Create appends a placeholder card, then refetches once the server
// accepts it.
func (b *Board) Create(ctx context.Context, in apiclient.ClientInput) error {
	tempID := "temp-" + uuid.NewString()
	stage := in.Stage
	if stage == "" {
		stage = model.StageLead
	}
	placeholder := model.Client{
		ID:        tempID,
		Name:      in.Name,
		Company:   in.Company,
		Email:     in.Email,
		Phone:     in.Phone,
		DealValue: in.DealValue,
		Stage:     stage,
		Notes:     in.Notes,
		CreatedAt: b.now().UTC(),
	}
	return b.cache.Mutate(ctx, Key, optimistic.Mutation[model.Client]{
		Apply: func(cs []model.Client) []model.Client { return append(cs, placeholder) },
		Dispatch: func(ctx context.Context) (any, error) {
			return b.api.CreateClient(ctx, in)
		},
		OnSuccess: func(cs []model.Client, res any) []model.Client {
			created := res.(model.Client)
			return replace(tempID, func(c *model.Client) { *c = created })(cs)
		},
		Reconcile: optimistic.Invalidate,
	})
}

// Edit overwrites the editable fields of id.  The stage is left alone.
func (b *Board) Edit(ctx context.Context, id string, in apiclient.ClientInput) error {
	return b.cache.Mutate(ctx, Key, optimistic.Mutation[model.Client]{
		Apply: replace(id, func(c *model.Client) {
			c.Name, c.Company, c.Email = in.Name, in.Company, in.Email
			c.Phone, c.DealValue, c.Notes = in.Phone, in.DealValue, in.Notes
		}),
		Dispatch: func(ctx context.Context) (any, error) {
			return nil, b.api.EditClient(ctx, id, in)
		},
		Reconcile: optimistic.Invalidate,
	})
}

func (b *Board) Delete(ctx context.Context, id string) error {
	return b.cache.Mutate(ctx, Key, optimistic.Mutation[model.Client]{
		Apply: func(cs []model.Client) []model.Client {
			out := make([]model.Client, 0, len(cs))
			for _, c := range cs {
				if c.ID != id {
					out = append(out, c)
				}
			}
			return out
		},
		Dispatch: func(ctx context.Context) (any, error) {
			return b.api.DeleteClient(ctx, id)
		},
		Reconcile: optimistic.Invalidate,
	})
}

// replace returns a map-replace over the list that edits the card with id
// in a copy.
func replace(id string, edit func(*model.Client)) func([]model.Client) []model.Client {
	return func(cs []model.Client) []model.Client {
		out := make([]model.Client, len(cs))
		for i, c := range cs {
			if c.ID == id {
				edit(&c)
			}
			out[i] = c
		}
		return out
	}
}

type Column struct {
	Stage   model.Stage
	Label   string
	Clients []model.Client
	Value   int64
}

// Columns groups the clients matching query by stage, in pipeline order.
// Every stage gets a column, empty or not.
func (b *Board) Columns(query string) []Column {
	matched := Filter(b.Clients(), Criteria{Search: query})
	cols := make([]Column, len(model.Stages))
	for i, st := range model.Stages {
		cols[i] = Column{Stage: st, Label: st.Label()}
	}
	for _, c := range matched {
		if i := c.Stage.Index(); i >= 0 {
			cols[i].Clients = append(cols[i].Clients, c)
			cols[i].Value += c.DealValue
		}
	}
	return cols
}

type Stats struct {
	TotalDeals    int
	PipelineValue int64 // every stage except lost
	WonValue      int64
	WinRate       int // won / total, rounded percent
}

// Stats summarizes the whole board; the search box does not narrow it.
func (b *Board) Stats() Stats {
	return Summarize(b.Clients())
}

func Summarize(cs []model.Client) Stats {
	var s Stats
	won := 0
	for _, c := range cs {
		s.TotalDeals++
		if c.Stage != model.StageLost {
			s.PipelineValue += c.DealValue
		}
		if c.Stage == model.StageWon {
			won++
			s.WonValue += c.DealValue
		}
	}
	if s.TotalDeals > 0 {
		s.WinRate = (won*100 + s.TotalDeals/2) / s.TotalDeals
	}
	return s
}

func matches(c model.Client, q string) bool {
	if q == "" {
		return true
	}
	for _, f := range []string{c.Name, c.Company, c.Email} {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}
