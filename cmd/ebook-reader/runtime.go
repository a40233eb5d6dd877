package main

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/drallgood/ebook-reader/internal/api"
	"github.com/drallgood/ebook-reader/internal/api/accounts"
	"github.com/drallgood/ebook-reader/internal/api/catalog"
	"github.com/drallgood/ebook-reader/internal/api/notifications"
	"github.com/drallgood/ebook-reader/internal/config"
	"github.com/drallgood/ebook-reader/internal/credentials"
	"github.com/drallgood/ebook-reader/internal/logger"
	"github.com/drallgood/ebook-reader/internal/push"
	"github.com/drallgood/ebook-reader/internal/state/inbox"
	"github.com/drallgood/ebook-reader/internal/state/library"
	"github.com/drallgood/ebook-reader/internal/state/session"
	"github.com/drallgood/ebook-reader/internal/util"
)

// runtime is everything a command needs, wired from the configuration
type runtime struct {
	cfg       *config.Config
	store     credentials.StoreCloser
	client    *api.Client
	session   *session.Container
	library   *library.Container
	inbox     *inbox.Container
	bridge    *push.Bridge
	scheduler *push.Scheduler
	out       io.Writer
	log       *logger.Logger

	unsubscribe []func()
}

func newRuntime(ctx context.Context, cfg *config.Config, ephemeral bool, out io.Writer) (*runtime, error) {
	log := logger.Component("cli")

	opts := credentials.Options{
		Backend:       cfg.Storage.Backend,
		Path:          cfg.Storage.Path,
		DSN:           cfg.Storage.DSN,
		RedisAddr:     cfg.Storage.RedisAddr,
		RedisPassword: cfg.Storage.RedisPassword,
		Scope:         cfg.Storage.Scope,
		DataDir:       cfg.Paths.DataDir,
		EncryptionKey: cfg.Storage.EncryptionKey,
	}
	if ephemeral {
		opts.Backend = credentials.BackendMemory
	}
	store, err := credentials.Open(ctx, opts, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open credential store: %w", err)
	}

	clientOpts := []api.Option{api.WithLogger(logger.Component("api_client"))}
	if cfg.API.RateLimit > 0 {
		clientOpts = append(clientOpts, api.WithRateLimiter(
			util.NewRateLimiter(cfg.API.RateLimit, cfg.API.RateBurst, logger.Component("rate_limiter")),
		))
	}
	client := api.NewClient(cfg.API.URL, clientOpts...)

	rt := &runtime{
		cfg:    cfg,
		store:  store,
		client: client,
		out:    out,
		log:    log,
	}

	rt.session = session.New(accounts.NewClient(client), store, nil)
	client.SetTokenSource(rt.session)

	notificationsAPI := notifications.NewClient(client)
	rt.library = library.New(catalog.NewClient(client), nil)
	rt.inbox = inbox.New(notificationsAPI, nil)
	rt.scheduler = push.NewScheduler(&consolePresenter{out: out}, nil)
	rt.bridge = push.NewBridge(notificationsAPI, rt.inbox, push.NavigatorFunc(func(d push.Destination) {
		fmt.Fprintf(out, "-> %s\n", d)
	}), cfg.Push.DedupeWindow, nil)

	rt.unsubscribe = append(rt.unsubscribe,
		rt.inbox.Subscribe(func(s inbox.Snapshot) { rt.scheduler.SetBadgeCount(s.UnreadCount) }),
		rt.session.Subscribe(func(s session.Snapshot) {
			if s.Error != "" {
				log.Debug("Session error", map[string]interface{}{"error": s.Error})
			}
		}),
	)

	return rt, nil
}

// restore loads a previously stored session. A stale session is not an
// error for the CLI; the command decides whether it needs one.
func (rt *runtime) restore(ctx context.Context) {
	if err := rt.session.LoadFromStorage(ctx); err != nil {
		rt.log.Warn("Could not restore session", map[string]interface{}{"error": err.Error()})
	}
}

func (rt *runtime) requireSession() error {
	if !rt.session.Snapshot().IsAuthenticated {
		return fmt.Errorf("not signed in, run `ebook-reader login` first")
	}
	return nil
}

func (rt *runtime) Close(ctx context.Context) error {
	for _, fn := range rt.unsubscribe {
		fn()
	}
	rt.scheduler.Stop(ctx)
	return rt.store.Close()
}

// consolePresenter prints local notifications instead of raising them
type consolePresenter struct {
	out   io.Writer
	badge atomic.Int64
}

func (p *consolePresenter) Present(n push.LocalNotification) {
	fmt.Fprintf(p.out, "[%s] %s\n", n.Title, n.Message)
}

func (p *consolePresenter) SetBadge(count int) {
	p.badge.Store(int64(count))
}
