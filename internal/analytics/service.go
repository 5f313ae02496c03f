package analytics

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/iliyamo/pipeline-crm/internal/auth"
	"github.com/iliyamo/pipeline-crm/internal/model"
	"github.com/iliyamo/pipeline-crm/internal/pipeline"
	"github.com/iliyamo/pipeline-crm/internal/respond"
)

type ClientLister interface {
	List(ctx context.Context) ([]model.Client, error)
}

type UserLister interface {
	List(ctx context.Context) ([]model.User, error)
}

// Service serves the summary behind verification.
type Service struct {
	auth    pipeline.Verifier
	clients ClientLister
	users   UserLister
	cache   *Cache
	log     *zap.Logger
	group   singleflight.Group
}

func NewService(v pipeline.Verifier, clients ClientLister, users UserLister, cache *Cache, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{auth: v, clients: clients, users: users, cache: cache, log: log}
}

// computeTimeout bounds a shared computation, which outlives the request
// that started it.
const computeTimeout = 10 * time.Second

func (s *Service) Summary(ctx context.Context, creds auth.Credentials) respond.Result {
	v := s.auth.Verify(ctx, creds)
	if !v.OK() {
		return respond.FromVerification(v)
	}
	ver, cacheable := s.cache.Version(ctx)
	if cacheable {
		if cached, ok := s.cache.Get(ctx, ver); ok {
			return respond.OK(v, "", cached)
		}
	}
	// concurrent misses of one generation share a computation that no
	// single caller can cancel
	ch := s.group.DoChan("summary:"+strconv.FormatInt(ver, 10), func() (any, error) {
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), computeTimeout)
		defer cancel()
		return s.compute(cctx, ver, cacheable)
	})
	select {
	case r := <-ch:
		if r.Err != nil {
			return respond.Internal(v, "Internal server error")
		}
		return respond.OK(v, "", r.Val.(Summary))
	case <-ctx.Done():
		return respond.Internal(v, "Internal server error")
	}
}

func (s *Service) compute(ctx context.Context, ver int64, cacheable bool) (Summary, error) {
	clients, err := s.clients.List(ctx)
	if err != nil {
		s.log.Error("analytics: list clients", zap.Error(err))
		return Summary{}, err
	}
	users, err := s.users.List(ctx)
	if err != nil {
		s.log.Error("analytics: list users", zap.Error(err))
		return Summary{}, err
	}
	sum := Compute(clients, users)
	if cacheable {
		s.cache.Put(ctx, ver, sum)
	}
	return sum, nil
}
