package app

import (
	"context"
	"fmt"
	"io"

	"github.com/flexcrow/escrowctl/internal/app/api"
	"github.com/flexcrow/escrowctl/internal/app/cache"
	"github.com/flexcrow/escrowctl/internal/app/hydrate"
	"github.com/flexcrow/escrowctl/internal/app/metrics"
	"github.com/flexcrow/escrowctl/internal/app/notify"
	"github.com/flexcrow/escrowctl/internal/app/ops"
	"github.com/flexcrow/escrowctl/internal/app/services/addresses"
	"github.com/flexcrow/escrowctl/internal/app/services/auth"
	"github.com/flexcrow/escrowctl/internal/app/services/dashboard"
	"github.com/flexcrow/escrowctl/internal/app/services/products"
	"github.com/flexcrow/escrowctl/internal/app/services/transactions"
	"github.com/flexcrow/escrowctl/internal/app/services/users"
	"github.com/flexcrow/escrowctl/internal/app/services/withdrawals"
	"github.com/flexcrow/escrowctl/internal/app/system"
	"github.com/flexcrow/escrowctl/internal/app/watch"
	"github.com/flexcrow/escrowctl/internal/config"
	"github.com/flexcrow/escrowctl/internal/httputil"
	"github.com/flexcrow/escrowctl/internal/logging"
	"github.com/flexcrow/escrowctl/pkg/logger"
)

// Application ties the client services together and manages the
// lifecycle of the long-running ones.
type Application struct {
	cfg     *config.Config
	manager *system.Manager
	log     *logger.Logger
	closers []io.Closer

	API      *api.Client
	Tokens   *auth.Holder
	Hydrator *hydrate.Hydrator
	Notifier notify.Notifier

	Auth         *auth.Service
	Transactions *transactions.Service
	Products     *products.Service
	Addresses    *addresses.Service
	Withdrawals  *withdrawals.Service
	Users        *users.Service
	Dashboard    *dashboard.Service
}

// New builds the application from cfg. The stored token, if any, is loaded
// into the transport.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Application, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if log == nil {
		log = logger.NewDefault("app")
	}

	tokens := &auth.Holder{}
	tokens.Set(cfg.Auth.Token)

	transport := httputil.NewClient(httputil.ClientConfig{
		BaseURL:           cfg.API.URL,
		Timeout:           cfg.API.Timeout,
		MaxRetries:        cfg.API.MaxRetries,
		RequestsPerSecond: cfg.API.RequestsPerSecond,
		Burst:             int(cfg.API.RequestsPerSecond),
		Token:             tokens.Token,
		Transport:         metrics.InstrumentTransport(nil),
		Logger:            log.Named("http"),
	})
	client := api.New(transport)

	a := &Application{
		cfg:     cfg,
		manager: system.NewManager(),
		log:     log,
		API:     client,
		Tokens:  tokens,
	}

	lookups, err := a.buildCache(ctx)
	if err != nil {
		return nil, err
	}
	a.Hydrator = hydrate.New(client, lookups, hydrate.Config{TTL: cfg.Cache.TTL}, log.Named("hydrate"))

	if cfg.Email.Enabled() {
		n, err := notify.NewEmailJS(notify.EmailJSConfig{
			Endpoint:            cfg.Email.Endpoint,
			ServiceID:           cfg.Email.ServiceID,
			PublicKey:           cfg.Email.PublicKey,
			TemplateTransaction: cfg.Email.TemplateTransaction,
			TemplateHelp:        cfg.Email.TemplateHelp,
			ToEmail:             cfg.Email.ToEmail,
			URLEmail:            cfg.Email.URLEmail,
			Timeout:             cfg.API.Timeout,
		}, log.Named("notify"))
		if err != nil {
			return nil, fmt.Errorf("configure emailjs: %w", err)
		}
		a.Notifier = n
	} else {
		log.Debug("emailjs not configured; notices are only logged")
		a.Notifier = notify.NewLogNotifier(log.Named("notify"))
	}

	a.Auth = auth.New(client, tokens, log.Named("auth"))
	a.Transactions = transactions.New(client, a.Hydrator, a.Notifier, transactions.Config{Currency: cfg.Currency}, log.Named("transactions"))
	a.Products = products.New(client, log.Named("products"))
	a.Addresses = addresses.New(client, log.Named("addresses"))
	a.Withdrawals = withdrawals.New(client, log.Named("withdrawals"))
	a.Users = users.New(client, log.Named("users"))
	a.Dashboard = dashboard.New(client, log.Named("dashboard"))
	return a, nil
}

func (a *Application) buildCache(ctx context.Context) (cache.Cache, error) {
	switch a.cfg.Cache.Backend {
	case "redis":
		r, err := cache.NewRedis(ctx, cache.RedisConfig{
			Addr:     a.cfg.Cache.RedisAddr,
			Password: a.cfg.Cache.RedisPassword,
			DB:       a.cfg.Cache.RedisDB,
			Prefix:   "escrowctl:",
		})
		if err != nil {
			return nil, fmt.Errorf("connect redis cache: %w", err)
		}
		a.closers = append(a.closers, r)
		return r, nil
	case "none":
		return cache.Nop{}, nil
	}
	return cache.NewMemory(), nil
}

// Session restores the stored token into an identity-carrying context.
func (a *Application) Session(ctx context.Context) (context.Context, *auth.Session, error) {
	s, err := a.Auth.Resume(ctx, a.Tokens.Token())
	if err != nil {
		return ctx, nil, err
	}
	return s.Context(ctx), s, nil
}

// Watch registers a transaction watcher and, when addr is set, an ops
// server exposing its metrics. Call before Start.
func (a *Application) Watch(onChange func(watch.Change), addr string) (*watch.Watcher, error) {
	w := watch.New(a.API, a.cfg.Watch.Schedule, onChange, a.log.Named("watch"))
	if err := a.manager.Register(w); err != nil {
		return nil, err
	}
	if addr != "" {
		srv := ops.New(addr, 0, logging.Wrap(a.log.Named("ops")))
		srv.AddProbe("watcher", w.Health)
		if err := a.manager.Register(srv); err != nil {
			return nil, err
		}
	}
	return w, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services and releases the cache connection.
func (a *Application) Stop(ctx context.Context) error {
	err := a.manager.Stop(ctx)
	for _, c := range a.closers {
		if cerr := c.Close(); cerr != nil {
			a.log.WithError(cerr).Warn("close resource")
		}
	}
	a.closers = nil
	return err
}
