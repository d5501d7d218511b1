package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/flexcrow/escrowctl/internal/app/notify"
	"github.com/flexcrow/escrowctl/internal/app/services/auth"
	"github.com/flexcrow/escrowctl/internal/config"
	"github.com/flexcrow/escrowctl/internal/logging"
	"github.com/flexcrow/escrowctl/pkg/logger"
	"github.com/flexcrow/escrowctl/pkg/testutil"
)

func testConfig(url string) *config.Config {
	cfg := config.Default()
	cfg.API.URL = url
	cfg.API.MaxRetries = -1
	cfg.API.RequestsPerSecond = 0
	return cfg
}

func TestLoginThenSession(t *testing.T) {
	fake := testutil.NewFakeAPI(t)
	m := fake.Seed()
	ctx := context.Background()

	a, err := New(ctx, testConfig(fake.URL()), logger.Discard())
	require.NoError(t, err)
	require.IsType(t, &notify.LogNotifier{}, a.Notifier)

	_, _, err = a.Session(ctx)
	require.Error(t, err, "no token yet")

	s, err := a.Auth.Login(ctx, auth.Credentials{Email: m.Buyer.Email, Password: "secret123"})
	require.NoError(t, err)
	require.Equal(t, m.Buyer.ID, s.UserID)

	sctx, resumed, err := a.Session(ctx)
	require.NoError(t, err)
	require.Equal(t, m.Buyer.ID, resumed.UserID)
	require.Equal(t, m.Buyer.ID, logging.GetUserID(sctx))

	sum, err := a.Dashboard.Member(sctx)
	require.NoError(t, err)
	require.Equal(t, "1000", sum.Balance.String())
}

func TestStoredTokenIsSent(t *testing.T) {
	fake := testutil.NewFakeAPI(t)
	m := fake.Seed()
	cfg := testConfig(fake.URL())
	cfg.Auth.Token = m.Seller.Token

	a, err := New(context.Background(), cfg, logger.Discard())
	require.NoError(t, err)
	ctx, s, err := a.Session(context.Background())
	require.NoError(t, err)
	require.Equal(t, m.Seller.ID, s.UserID)

	me, err := a.Users.Me(ctx)
	require.NoError(t, err)
	require.Equal(t, "seller01", me.Username)
}

func TestWatchLifecycle(t *testing.T) {
	fake := testutil.NewFakeAPI(t)
	m := fake.Seed()
	cfg := testConfig(fake.URL())
	cfg.Auth.Token = m.Buyer.Token
	cfg.Watch.Schedule = "@every 1h"
	cfg.Cache.Backend = "none"

	a, err := New(context.Background(), cfg, logger.Discard())
	require.NoError(t, err)
	_, err = a.Watch(nil, "127.0.0.1:0")
	require.NoError(t, err)
	_, err = a.Watch(nil, "")
	require.Error(t, err, "only one watcher per application")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, a.Start(ctx))
	require.NoError(t, a.Stop(ctx))
}
