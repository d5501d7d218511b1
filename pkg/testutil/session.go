package testutil

import (
	"context"

	"github.com/flexcrow/escrowctl/internal/app/api"
	"github.com/flexcrow/escrowctl/internal/app/domain/user"
	"github.com/flexcrow/escrowctl/internal/httputil"
	"github.com/flexcrow/escrowctl/internal/logging"
	"github.com/flexcrow/escrowctl/pkg/logger"
)

// Client returns an API client that talks to the fake as u. A zero user
// sends no token.
func (f *FakeAPI) Client(u user.User) *api.Client {
	token := u.Token
	return api.New(httputil.NewClient(httputil.ClientConfig{
		BaseURL:    f.URL(),
		MaxRetries: -1,
		Token:      func() string { return token },
		Logger:     logger.Discard(),
	}))
}

// Context carries u's identity the way a logged-in session does.
func Context(u user.User) context.Context {
	ctx := logging.WithUserID(context.Background(), u.ID)
	return logging.WithRole(ctx, string(u.Type))
}
