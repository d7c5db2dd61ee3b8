package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/example/tablebook/internal/api"
	"github.com/example/tablebook/internal/auth"
	"github.com/example/tablebook/internal/config"
	"github.com/example/tablebook/internal/crypto"
	"github.com/example/tablebook/internal/db"
	"github.com/example/tablebook/internal/logging"
	"github.com/example/tablebook/internal/metrics"
	"github.com/example/tablebook/internal/migrate"
	"github.com/example/tablebook/internal/scheduler"
	"github.com/example/tablebook/internal/storage"
	"github.com/example/tablebook/internal/web"
)

// slotRetention is how long a signed-in browser's stored token outlives
// its last write. It matches the session cookie lifetime.
const slotRetention = 30 * 24 * time.Hour

func newServerCmd() *cobra.Command {
	var (
		migrateUp bool
		interval  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run the web UI",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			if err := cfg.RequireCookieKeys(); err != nil {
				return err
			}
			log := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
			metrics.Register()

			ctx := cmd.Context()
			sched := &scheduler.Scheduler{Interval: interval, Log: log}

			var slots storage.Store
			switch cfg.SessionBackend {
			case config.BackendRedis:
				rdb := redis.NewClient(&redis.Options{
					Addr:     cfg.RedisAddr,
					Password: cfg.RedisPassword,
					DB:       cfg.RedisDB,
				})
				defer rdb.Close()
				if err := rdb.Ping(ctx).Err(); err != nil {
					return fmt.Errorf("redis ping: %w", err)
				}
				slots = storage.NewRedis(rdb, slotRetention)

			case config.BackendPostgres:
				d, err := db.Open(ctx, cfg.DatabaseURL)
				if err != nil {
					return err
				}
				defer d.Close()
				if err := d.Ping(ctx); err != nil {
					return fmt.Errorf("db ping: %w", err)
				}
				if migrateUp {
					if err := migrate.Up(ctx, d); err != nil {
						return err
					}
				}
				pg := storage.NewPostgres(d)
				sched.Add("prune-sessions", func(ctx context.Context) error {
					n, err := pg.Prune(ctx, time.Now().Add(-slotRetention))
					if n > 0 {
						log.Info().Int64("rows", n).Msg("pruned stale sessions")
					}
					return err
				})
				slots = pg
			}

			if slots != nil && len(cfg.StoreKey) > 0 {
				aead, err := crypto.New(cfg.StoreKey)
				if err != nil {
					return err
				}
				slots = storage.NewSealed(slots, aead)
			}

			ws := &web.Server{
				API:                api.New(cfg.APIBaseURL, log),
				Cookies:            auth.NewCookies(cfg.CookieHashKey, cfg.CookieBlockKey, strings.HasPrefix(cfg.BaseURL, "https://")),
				Slots:              slots,
				Location:           cfg.Location,
				SessionTTL:         cfg.SessionTTL,
				LoginRatePerMinute: cfg.LoginRatePerMinute,
				Log:                log,
			}
			sched.Add("expire-state", ws.Expire)
			go func() { _ = sched.Run(ctx) }()

			log.Info().
				Str("api", cfg.APIBaseURL).
				Str("backend", cfg.SessionBackend).
				Str("base_url", cfg.BaseURL).
				Msg("starting web UI")
			return web.Start(ctx, cfg.ListenAddr, ws.Routes(), log)
		},
	}

	cmd.Flags().BoolVar(&migrateUp, "migrate", true, "run database migrations on startup (postgres backend)")
	cmd.Flags().DurationVar(&interval, "housekeeping-interval", time.Minute, "how often idle sessions are expired")

	cmd.Flags().Lookup("migrate").NoOptDefVal = "true"
	return cmd
}
