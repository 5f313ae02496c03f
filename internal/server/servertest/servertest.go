// Package servertest runs the full server over an in-memory store for
// client-side tests.
package servertest

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iliyamo/pipeline-crm/internal/config"
	"github.com/iliyamo/pipeline-crm/internal/model"
	"github.com/iliyamo/pipeline-crm/internal/repository/memstore"
	"github.com/iliyamo/pipeline-crm/internal/server"
	"github.com/iliyamo/pipeline-crm/internal/utils"
)

// Password is shared by every seeded account.
const Password = "correct-horse"

const (
	AdminEmail = "dana@example.com"
	UserEmail  = "lee@example.com"
)

type Server struct {
	*httptest.Server
	Store *memstore.Store
	App   *server.App
}

// Start seeds an admin and a regular user and serves the API until the
// test ends.
func Start(t *testing.T) *Server {
	t.Helper()
	store := memstore.New()
	seed := []model.User{
		{Name: "Dana Admin", Email: AdminEmail, Role: model.RoleAdmin, IsActive: true},
		{Name: "Lee Rep", Email: UserEmail, Role: model.RoleUser, IsActive: true},
	}
	hash, err := utils.HashPassword(Password, 4)
	require.NoError(t, err)
	for i := range seed {
		seed[i].PasswordHash = hash
		require.NoError(t, store.Users().Create(context.Background(), &seed[i]))
	}

	app := server.New(config.Config{
		Env:        "test",
		JWTSecret:  "servertest-secret",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 24 * time.Hour,
		BcryptCost: 4,
	}, config.RateLimitConfig{}, config.CacheConfig{}, server.Deps{
		Users:    store.Users(),
		Sessions: store.Sessions(),
		Clients:  store.Clients(),
	})
	ts := httptest.NewServer(app.Echo)
	t.Cleanup(ts.Close)
	return &Server{Server: ts, Store: store, App: app}
}
