package optimistic

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	ID    string
	Stage string
}

type statusErr int

func (e statusErr) Error() string   { return http.StatusText(int(e)) }
func (e statusErr) StatusCode() int { return int(e) }

func seeded(opts ...Option[item]) *Cache[item] {
	c := New(opts...)
	c.Set("items", []item{{"1", "lead"}, {"2", "won"}})
	return c
}

func setStage(id, stage string) func([]item) []item {
	return func(in []item) []item {
		out := make([]item, len(in))
		for i, it := range in {
			if it.ID == id {
				it.Stage = stage
			}
			out[i] = it
		}
		return out
	}
}

func TestMutateKeepsOptimisticState(t *testing.T) {
	c := seeded()
	err := c.Mutate(context.Background(), "items", Mutation[item]{
		Apply:    setStage("1", "won"),
		Dispatch: func(context.Context) (any, error) { return nil, nil },
	})
	require.NoError(t, err)

	got, ok := c.Get("items")
	require.True(t, ok)
	assert.Equal(t, []item{{"1", "won"}, {"2", "won"}}, got)
}

func TestMutateRollsBackVerbatim(t *testing.T) {
	var notified []string
	c := seeded(WithNotifier[item](func(key string, err error) { notified = append(notified, key+": "+err.Error()) }))
	before, _ := c.Get("items")

	var during []item
	boom := errors.New("boom")
	err := c.Mutate(context.Background(), "items", Mutation[item]{
		Apply: setStage("2", "lost"),
		Dispatch: func(context.Context) (any, error) {
			during, _ = c.Get("items")
			return nil, boom
		},
	})
	require.ErrorIs(t, err, boom)

	assert.Equal(t, "lost", during[1].Stage)
	after, _ := c.Get("items")
	assert.Equal(t, before, after)
	assert.Equal(t, []string{"items: boom"}, notified)
}

func TestRollbackOfMissingEntryLeavesItMissing(t *testing.T) {
	c := New[item]()
	err := c.Mutate(context.Background(), "items", Mutation[item]{
		Apply:    func(in []item) []item { return append(in, item{"9", "lead"}) },
		Dispatch: func(context.Context) (any, error) { return nil, errors.New("down") },
	})
	require.Error(t, err)
	_, ok := c.Get("items")
	assert.False(t, ok)
}

func TestUnauthenticatedSkipsNotifier(t *testing.T) {
	var notified, redirected int
	c := seeded(
		WithNotifier[item](func(string, error) { notified++ }),
		WithUnauthenticated[item](func(error) { redirected++ }),
	)
	err := c.Mutate(context.Background(), "items", Mutation[item]{
		Apply:    setStage("1", "won"),
		Dispatch: func(context.Context) (any, error) { return nil, statusErr(http.StatusUnauthorized) },
	})
	require.Error(t, err)
	assert.Equal(t, 0, notified)
	assert.Equal(t, 1, redirected)

	got, _ := c.Get("items")
	assert.Equal(t, "lead", got[0].Stage)
}

func TestForbiddenGoesToNotifier(t *testing.T) {
	var notified, redirected int
	c := seeded(
		WithNotifier[item](func(string, error) { notified++ }),
		WithUnauthenticated[item](func(error) { redirected++ }),
	)
	_ = c.Mutate(context.Background(), "items", Mutation[item]{
		Apply:    setStage("1", "won"),
		Dispatch: func(context.Context) (any, error) { return nil, statusErr(http.StatusForbidden) },
	})
	assert.Equal(t, 1, notified)
	assert.Equal(t, 0, redirected)
}

func TestOnSuccessThenInvalidateRefetches(t *testing.T) {
	c := seeded()
	server := []item{{"1", "lead"}, {"2", "won"}, {"3", "lead"}}
	c.Register("items", func(context.Context) ([]item, error) { return server, nil })

	var patched []item
	err := c.Mutate(context.Background(), "items", Mutation[item]{
		Apply:    func(in []item) []item { return append(in, item{"temp", "lead"}) },
		Dispatch: func(context.Context) (any, error) { return item{"3", "lead"}, nil },
		OnSuccess: func(cur []item, res any) []item {
			for i := range cur {
				if cur[i].ID == "temp" {
					cur[i] = res.(item)
				}
			}
			patched = cur
			return cur
		},
		Reconcile: Invalidate,
	})
	require.NoError(t, err)
	assert.Equal(t, "3", patched[2].ID)

	got, ok := c.Get("items")
	require.True(t, ok)
	assert.Equal(t, server, got)
}

func TestFailedRefetchKeepsOptimisticState(t *testing.T) {
	var notified []string
	c := seeded(WithNotifier[item](func(key string, err error) { notified = append(notified, key+": "+err.Error()) }))
	c.Register("items", func(context.Context) ([]item, error) { return nil, errors.New("offline") })

	err := c.Mutate(context.Background(), "items", Mutation[item]{
		Apply:     func(in []item) []item { return append(in, item{"temp", "lead"}) },
		Dispatch:  func(context.Context) (any, error) { return item{"3", "lead"}, nil },
		OnSuccess: func(cur []item, res any) []item { return append(cur[:len(cur)-1], res.(item)) },
		Reconcile: Invalidate,
	})
	require.NoError(t, err)

	got, ok := c.Get("items")
	require.True(t, ok)
	assert.Equal(t, []item{{"1", "lead"}, {"2", "won"}, {"3", "lead"}}, got)
	assert.Equal(t, []string{"items: offline"}, notified)
}

func TestUnauthenticatedRefetchRedirectsOnce(t *testing.T) {
	notified, redirected := 0, 0
	c := seeded(
		WithNotifier[item](func(string, error) { notified++ }),
		WithUnauthenticated[item](func(error) { redirected++ }),
	)
	c.Register("items", func(context.Context) ([]item, error) { return nil, statusErr(http.StatusUnauthorized) })

	err := c.Mutate(context.Background(), "items", Mutation[item]{
		Apply:     setStage("1", "won"),
		Dispatch:  func(context.Context) (any, error) { return nil, nil },
		Reconcile: Invalidate,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, redirected)
	assert.Equal(t, 0, notified)
	got, _ := c.Get("items")
	assert.Equal(t, "won", got[0].Stage)
}

func TestInvalidateWithoutLoaderLeavesEntryEmpty(t *testing.T) {
	c := seeded()
	err := c.Mutate(context.Background(), "items", Mutation[item]{
		Apply:     setStage("1", "won"),
		Dispatch:  func(context.Context) (any, error) { return nil, nil },
		Reconcile: Invalidate,
	})
	require.NoError(t, err)
	_, ok := c.Get("items")
	assert.False(t, ok)
}

func TestSupersededFetchIsDiscarded(t *testing.T) {
	c := seeded()
	release := make(chan struct{})
	started := make(chan struct{})
	stale := func(context.Context) ([]item, error) {
		close(started)
		<-release
		return []item{{"1", "lead"}}, nil
	}

	done := make(chan []item)
	go func() {
		got, err := c.Fetch(context.Background(), "items", stale)
		assert.NoError(t, err)
		done <- got
	}()
	<-started

	require.NoError(t, c.Mutate(context.Background(), "items", Mutation[item]{
		Apply:    setStage("1", "won"),
		Dispatch: func(context.Context) (any, error) { return nil, nil },
	}))
	close(release)

	got := <-done
	assert.Equal(t, "won", got[0].Stage)
	cached, _ := c.Get("items")
	assert.Equal(t, []item{{"1", "won"}, {"2", "won"}}, cached)
}

func TestFetchStoresResult(t *testing.T) {
	c := New[item]()
	_, err := c.Fetch(context.Background(), "items", nil)
	require.Error(t, err)

	c.Register("items", func(context.Context) ([]item, error) { return []item{{"1", "lead"}}, nil })
	got, err := c.Fetch(context.Background(), "items", nil)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	cached, ok := c.Get("items")
	assert.True(t, ok)
	assert.Equal(t, got, cached)
}

func TestFetchUnauthenticatedCallsHook(t *testing.T) {
	var redirected int
	c := New(WithUnauthenticated[item](func(error) { redirected++ }))
	_, err := c.Fetch(context.Background(), "items", func(context.Context) ([]item, error) {
		return nil, statusErr(http.StatusUnauthorized)
	})
	require.Error(t, err)
	assert.Equal(t, 1, redirected)
}

func TestMutationsOnOneKeyAreSerialized(t *testing.T) {
	c := seeded()
	var inFlight, maxInFlight int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = c.Mutate(context.Background(), "items", Mutation[item]{
				Apply: func(in []item) []item { return append(in, item{ID: "x"}) },
				Dispatch: func(context.Context) (any, error) {
					n := atomic.AddInt32(&inFlight, 1)
					for {
						m := atomic.LoadInt32(&maxInFlight)
						if n <= m || atomic.CompareAndSwapInt32(&maxInFlight, m, n) {
							break
						}
					}
					time.Sleep(time.Millisecond)
					atomic.AddInt32(&inFlight, -1)
					return nil, nil
				},
			})
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, maxInFlight)
	got, _ := c.Get("items")
	assert.Len(t, got, 10)
}

func TestMutateHonoursContextWhileWaiting(t *testing.T) {
	c := seeded()
	hold := make(chan struct{})
	entered := make(chan struct{})
	go func() {
		_ = c.Mutate(context.Background(), "items", Mutation[item]{
			Apply: setStage("1", "won"),
			Dispatch: func(context.Context) (any, error) {
				close(entered)
				<-hold
				return nil, nil
			},
		})
	}()
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := c.Mutate(ctx, "items", Mutation[item]{
		Apply:    setStage("2", "lost"),
		Dispatch: func(context.Context) (any, error) { return nil, nil },
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	close(hold)
}

func TestCustomCloneIsUsedForSnapshots(t *testing.T) {
	var clones int32
	c := New(WithClone[item](func(in []item) []item {
		atomic.AddInt32(&clones, 1)
		return append([]item(nil), in...)
	}))
	c.Set("items", []item{{"1", "lead"}})
	assert.Positive(t, atomic.LoadInt32(&clones))
}
