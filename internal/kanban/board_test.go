package kanban

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/pipeline-crm/internal/apiclient"
	"github.com/iliyamo/pipeline-crm/internal/model"
	"github.com/iliyamo/pipeline-crm/internal/optimistic"
)

// fakeAPI keeps the server side list and counts every call.
type fakeAPI struct {
	mu      sync.Mutex
	clients []model.Client
	fail    error
	listErr error
	calls   map[string]int
	seen    []model.Client // board state observed during the last write
	board   *Board
}

func newFake(cs ...model.Client) *fakeAPI {
	return &fakeAPI{clients: cs, calls: map[string]int{}}
}

func (f *fakeAPI) record(op string) error {
	f.mu.Lock()
	f.calls[op]++
	f.mu.Unlock()
	if f.board != nil {
		f.seen = f.board.Clients()
	}
	return f.fail
}

func (f *fakeAPI) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeAPI) writes() int {
	return f.count("move") + f.count("create") + f.count("edit") + f.count("delete")
}

func (f *fakeAPI) Clients(context.Context) ([]model.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["list"]++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]model.Client(nil), f.clients...), nil
}

func (f *fakeAPI) CreateClient(_ context.Context, in apiclient.ClientInput) (model.Client, error) {
	if err := f.record("create"); err != nil {
		return model.Client{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	c := model.Client{ID: fmt.Sprintf("srv-%d", len(f.clients)+1), Name: in.Name, Stage: model.StageLead, DealValue: in.DealValue}
	f.clients = append(f.clients, c)
	return c, nil
}

func (f *fakeAPI) EditClient(_ context.Context, id string, in apiclient.ClientInput) error {
	if err := f.record("edit"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.clients {
		if f.clients[i].ID == id {
			f.clients[i].Name = in.Name
			f.clients[i].DealValue = in.DealValue
		}
	}
	return nil
}

func (f *fakeAPI) MoveClient(_ context.Context, id string, stage model.Stage) error {
	if err := f.record("move"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.clients {
		if f.clients[i].ID == id {
			f.clients[i].Stage = stage
		}
	}
	return nil
}

func (f *fakeAPI) DeleteClient(_ context.Context, id string) (bool, error) {
	if err := f.record("delete"); err != nil {
		return false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.clients {
		if f.clients[i].ID == id {
			f.clients = append(f.clients[:i], f.clients[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func loaded(t *testing.T, f *fakeAPI, opts ...optimistic.Option[model.Client]) *Board {
	t.Helper()
	b := NewBoard(f, optimistic.New(opts...))
	f.board = b
	_, err := b.Load(context.Background())
	require.NoError(t, err)
	return b
}

func fixtures() []model.Client {
	return []model.Client{
		{ID: "a", Name: "Ada Lovelace", Company: "Analytical", Email: "ada@engine.io", DealValue: 500, Stage: model.StageLead},
		{ID: "b", Name: "Grace Hopper", Company: "Navy", Email: "grace@navy.mil", DealValue: 300, Stage: model.StageWon},
		{ID: "c", Name: "Alan Turing", Company: "Bletchley", Email: "alan@bp.uk", DealValue: 200, Stage: model.StageLost},
		{ID: "d", Name: "Edsger Dijkstra", Company: "THE", Email: "ewd@utexas.edu", DealValue: 1000, Stage: model.StageProposal},
	}
}

func TestDropNoOpsMakeNoCalls(t *testing.T) {
	f := newFake(fixtures()...)
	b := loaded(t, f)
	ctx := context.Background()

	cases := []struct {
		name   string
		card   string
		target DropTarget
	}{
		{"unknown card", "zz", DropTarget{Column: model.StageWon}},
		{"same column", "a", DropTarget{Column: model.StageLead}},
		{"unknown target card", "a", DropTarget{Card: "zz"}},
		{"card in same stage", "a", DropTarget{Card: "a"}},
		{"not a stage", "a", DropTarget{Column: "archived"}},
		{"empty target", "a", DropTarget{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			moved, err := b.Drop(ctx, tc.card, tc.target)
			require.NoError(t, err)
			assert.False(t, moved)
		})
	}
	assert.Zero(t, f.writes())
	assert.Equal(t, fixtures(), b.Clients())
}

func TestDropOnCardTakesItsStage(t *testing.T) {
	f := newFake(fixtures()...)
	b := loaded(t, f)

	moved, err := b.Drop(context.Background(), "a", DropTarget{Card: "d"})
	require.NoError(t, err)
	assert.True(t, moved)

	card, _ := find(b.Clients(), "a")
	assert.Equal(t, model.StageProposal, card.Stage)
	assert.Equal(t, 1, f.count("move"))
	// kept optimistic: no refetch
	assert.Equal(t, 1, f.count("list"))
}

func TestDropShowsMoveBeforeServerAnswers(t *testing.T) {
	f := newFake(fixtures()...)
	b := loaded(t, f)

	_, err := b.Drop(context.Background(), "a", DropTarget{Column: model.StageQualified})
	require.NoError(t, err)
	card, _ := find(f.seen, "a")
	assert.Equal(t, model.StageQualified, card.Stage)
}

func TestDropFailureRollsBack(t *testing.T) {
	f := newFake(fixtures()...)
	var notified []error
	b := loaded(t, f, optimistic.WithNotifier[model.Client](func(_ string, err error) { notified = append(notified, err) }))
	before := b.Clients()
	f.fail = &apiclient.APIError{Status: http.StatusBadRequest, Message: "Something Went Wrong"}

	moved, err := b.Drop(context.Background(), "b", DropTarget{Column: model.StageLead})
	assert.True(t, moved)
	require.Error(t, err)
	assert.Equal(t, before, b.Clients())
	assert.Len(t, notified, 1)
}

func TestDropUnauthenticatedRedirects(t *testing.T) {
	f := newFake(fixtures()...)
	redirects := 0
	b := loaded(t, f, optimistic.WithUnauthenticated[model.Client](func(error) { redirects++ }))
	f.fail = &apiclient.APIError{Status: http.StatusUnauthorized, Message: "Session expired"}

	_, err := b.Drop(context.Background(), "a", DropTarget{Column: model.StageWon})
	assert.True(t, apiclient.IsUnauthenticated(err))
	assert.Equal(t, 1, redirects)
	assert.Equal(t, fixtures(), b.Clients())
}

func TestEveryTransitionIsAllowed(t *testing.T) {
	for _, from := range model.Stages {
		for _, to := range model.Stages {
			if from == to {
				continue
			}
			f := newFake(model.Client{ID: "x", Name: "X", Stage: from})
			b := loaded(t, f)
			moved, err := b.Drop(context.Background(), "x", DropTarget{Column: to})
			require.NoError(t, err, "%s -> %s", from, to)
			assert.True(t, moved)
			assert.Equal(t, to, f.clients[0].Stage)
			assert.Equal(t, to, b.Clients()[0].Stage)
		}
	}
}

func TestCreateAppendsThenRefetches(t *testing.T) {
	f := newFake(fixtures()...)
	b := loaded(t, f)

	require.NoError(t, b.Create(context.Background(), apiclient.ClientInput{Name: "Barbara Liskov", DealValue: 42}))

	require.Len(t, f.seen, 5)
	assert.Contains(t, f.seen[4].ID, "temp-")
	assert.Equal(t, model.StageLead, f.seen[4].Stage)

	got := b.Clients()
	require.Len(t, got, 5)
	assert.Equal(t, "srv-5", got[4].ID)
	assert.Equal(t, 2, f.count("list"))
}

func TestCreateKeepsCardsWhenRefetchFails(t *testing.T) {
	var notified []error
	f := newFake(fixtures()...)
	b := loaded(t, f, optimistic.WithNotifier[model.Client](func(_ string, err error) { notified = append(notified, err) }))
	f.listErr = errors.New("connection reset")

	require.NoError(t, b.Create(context.Background(), apiclient.ClientInput{Name: "Barbara Liskov"}))

	got := b.Clients()
	require.Len(t, got, 5)
	assert.Equal(t, fixtures(), got[:4])
	assert.Equal(t, "srv-5", got[4].ID)
	require.Len(t, notified, 1)
	assert.EqualError(t, notified[0], "connection reset")

	f.listErr = nil
	_, err := b.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, b.Clients(), 5)
}

func TestCreateFailureRemovesPlaceholder(t *testing.T) {
	f := newFake(fixtures()...)
	b := loaded(t, f)
	f.fail = errors.New("network down")

	require.Error(t, b.Create(context.Background(), apiclient.ClientInput{Name: "Nobody"}))
	assert.Equal(t, fixtures(), b.Clients())
}

func TestEditAndDeleteInvalidate(t *testing.T) {
	f := newFake(fixtures()...)
	b := loaded(t, f)
	ctx := context.Background()

	require.NoError(t, b.Edit(ctx, "d", apiclient.ClientInput{Name: "E. W. Dijkstra", DealValue: 1100}))
	card, _ := find(f.seen, "d")
	assert.Equal(t, "E. W. Dijkstra", card.Name)
	assert.Equal(t, model.StageProposal, card.Stage)

	require.NoError(t, b.Delete(ctx, "c"))
	_, present := find(f.seen, "c")
	assert.False(t, present)

	assert.Len(t, b.Clients(), 3)
	assert.Equal(t, 3, f.count("list"))
}

func TestDeleteFailureRestoresCard(t *testing.T) {
	f := newFake(fixtures()...)
	b := loaded(t, f)
	f.fail = &apiclient.APIError{Status: http.StatusInternalServerError, Message: "Internal server error"}

	require.Error(t, b.Delete(context.Background(), "a"))
	assert.Equal(t, fixtures(), b.Clients())
}

func TestColumnsSearch(t *testing.T) {
	b := loaded(t, newFake(fixtures()...))

	cols := b.Columns("")
	require.Len(t, cols, len(model.Stages))
	assert.Equal(t, "Proposal Sent", cols[model.StageProposal.Index()].Label)
	assert.Len(t, cols[model.StageLead.Index()].Clients, 1)
	assert.EqualValues(t, 1000, cols[model.StageProposal.Index()].Value)
	assert.Empty(t, cols[model.StageContacted.Index()].Clients)

	total := func(cols []Column) int {
		n := 0
		for _, c := range cols {
			n += len(c.Clients)
		}
		return n
	}
	assert.Equal(t, 1, total(b.Columns("NAVY")))
	assert.Equal(t, 1, total(b.Columns("ewd@")))
	assert.Equal(t, 2, total(b.Columns("al")))
	assert.Equal(t, 0, total(b.Columns("nobody")))
}

func TestStats(t *testing.T) {
	b := loaded(t, newFake(fixtures()...))
	s := b.Stats()
	assert.Equal(t, 4, s.TotalDeals)
	assert.EqualValues(t, 1800, s.PipelineValue)
	assert.EqualValues(t, 300, s.WonValue)
	assert.Equal(t, 25, s.WinRate)

	assert.Equal(t, Stats{}, Summarize(nil))
}
