// Package app wires the decision engine to its collaborators and runs the
// scheduler, the ops HTTP server and the NOTIFY listener until shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"pausee/internal/api"
	"pausee/internal/appsflyer"
	"pausee/internal/config"
	"pausee/internal/credentials"
	"pausee/internal/engine"
	"pausee/internal/googleads"
	"pausee/internal/listener"
	"pausee/internal/notify"
	"pausee/internal/scheduler"
	"pausee/internal/storage"
)

const shutdownTimeout = 10 * time.Second

// Deps are the collaborators of a decision cycle.
type Deps struct {
	Store    engine.StateStore
	Reports  engine.ReportFetcher
	Platform engine.Platform
	Notifier engine.Notifier
	// Pool enables the NOTIFY listener when set.
	Pool *pgxpool.Pool
}

type Service struct {
	cfg   config.Config
	deps  Deps
	sched *scheduler.Scheduler
}

func New(cfg config.Config, deps Deps) *Service {
	ctrl := engine.NewController(cfg.Settings(), deps.Store, deps.Reports, deps.Platform, deps.Notifier)
	return &Service{cfg: cfg, deps: deps, sched: scheduler.New(ctrl, cfg.RepeatEvery())}
}

func (s *Service) Scheduler() *scheduler.Scheduler { return s.sched }

func (s *Service) Handler() http.Handler {
	return api.Router(api.NewOpsHandler(s.sched, s.deps.Store))
}

// Run blocks until ctx is done or a component fails.
func (s *Service) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return s.sched.Run(gctx) })

	if addr := s.cfg.Server.Addr; addr != "" && addr != "-" {
		srv := &http.Server{
			Addr:         addr,
			Handler:      s.Handler(),
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
		g.Go(func() error {
			log.Info().Str("addr", addr).Msg("http server starting")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shCtx)
		})
	}

	if s.deps.Pool != nil {
		g.Go(func() error {
			listener.ListenAndTrigger(gctx, s.deps.Pool, s.sched, s.cfg.Listener.Channel, s.cfg.Backoff())
			return nil
		})
	}

	err := g.Wait()
	log.Info().Msg("shutdown complete")
	return err
}

// Build creates the production collaborators from cfg. The returned func
// releases the storage backend. credsPath overrides google_ads.credentials when non-empty.
func Build(ctx context.Context, cfg config.Config, credsPath string) (Deps, func(), error) {
	if credsPath == "" {
		credsPath = cfg.GoogleAds.Credentials
	}
	creds, err := credentials.Load(credsPath)
	if err != nil {
		return Deps{}, nil, err
	}
	ads, err := googleads.NewFromConfig(ctx, cfg, creds)
	if err != nil {
		return Deps{}, nil, fmt.Errorf("init google ads: %w", err)
	}
	notifier, err := notify.New(cfg)
	if err != nil {
		return Deps{}, nil, fmt.Errorf("init notifier: %w", err)
	}

	store, closeStore, err := storage.Open(ctx, cfg)
	if err != nil {
		return Deps{}, nil, fmt.Errorf("init storage: %w", err)
	}

	deps := Deps{
		Store:    store,
		Reports:  appsflyer.New(appsflyer.OptionsFromConfig(cfg)),
		Platform: ads,
		Notifier: notifier,
	}
	if pg, ok := store.(*storage.PostgresStore); ok {
		deps.Pool = pg.PgxPool()
	}
	return deps, closeStore, nil
}

// Run builds the production collaborators and runs until ctx is done.
func Run(ctx context.Context, cfg config.Config, credsPath string) error {
	deps, closeStore, err := Build(ctx, cfg, credsPath)
	if err != nil {
		return err
	}
	defer closeStore()

	log.Info().Strs("app_ids", cfg.AppsFlyer.AppIDs).Str("storage", cfg.Storage.Driver).
		Int("email_alert", cfg.Params.EmailAlert).Int("pause_campaigns", cfg.Params.PauseCampaigns).
		Int("from", cfg.Params.From).Int("to", cfg.Params.To).Str("timezone", cfg.Params.Timezone).
		Msg("starting")
	return New(cfg, deps).Run(ctx)
}
