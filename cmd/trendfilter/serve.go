package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"github.com/spf13/cobra"

	"trendfilter/config"
	"trendfilter/internal/filter"
	"trendfilter/internal/gateway"
	"trendfilter/internal/metrics"
	"trendfilter/internal/model"
	"trendfilter/internal/notify"
	redisstore "trendfilter/internal/store/redis"
	sqlitestore "trendfilter/internal/store/sqlite"
)

var (
	serveListen        string
	serveMetricsListen string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the filter over HTTP and WebSocket",
	Long: `Serve wires the full service: filter runs over stored or inline bars,
run history in SQLite, optional Redis stream publishing, webhook and
Telegram notifications, Prometheus metrics, and WebSocket replay of
completed runs.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "API listen address (overrides config)")
	serveCmd.Flags().StringVar(&serveMetricsListen, "metrics-listen", "", "Metrics listen address (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := setup("serve")
	if err != nil {
		return err
	}
	if serveListen != "" {
		cfg.Server.Listen = serveListen
	}
	if serveMetricsListen != "" {
		cfg.Server.MetricsListen = serveMetricsListen
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := sqlitestore.Open(cfg.SQLite.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	m := metrics.NewMetrics()
	health := metrics.NewHealthStatus(cfg.Redis.Enabled)

	var (
		pub model.RunPublisher
		rdb *goredis.Client
	)
	if cfg.Redis.Enabled {
		p, err := redisstore.New(redisstore.Config{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			StreamMaxLen: cfg.Redis.StreamMaxLen,
		})
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		p.OnBreakerChange = func(_, to gobreaker.State) {
			m.BreakerState.Set(breakerGauge(to))
			if to == gobreaker.StateOpen {
				m.BreakerTrips.Inc()
			}
		}
		defer p.Close()
		pub = p
		rdb = p.Client()
	}

	health.CheckSQLite(ctx, st.DB())
	if rdb != nil {
		health.CheckRedis(ctx, rdb)
	}
	health.StartLivenessChecker(ctx, rdb, st.DB(), 15*time.Second)

	svc := &gateway.Service{
		Bars:     st,
		Runs:     st,
		Snaps:    st,
		Pub:      pub,
		Notifier: buildNotifier(cfg),
		Metrics:  m,
		Health:   health,
		Profiles: profileParams(cfg),
	}

	gw := gateway.NewServer(cfg.Server.Listen, svc)
	gw.Start()
	ms := metrics.NewServer(cfg.Server.MetricsListen, health)
	ms.Start()

	log.Info().Str("version", version).
		Str("listen", cfg.Server.Listen).Str("metrics", cfg.Server.MetricsListen).
		Bool("redis", cfg.Redis.Enabled).Int("profiles", len(cfg.Profiles)).
		Msg("trendfilter serving")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("shutting down")
	cancel()
	shutCtx, shutCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutCancel()
	gw.Stop(shutCtx)
	ms.Stop(shutCtx)
	return nil
}

// buildNotifier assembles the configured notification backends, falling
// back to the log when none are set.
func buildNotifier(cfg *config.Config) notify.Notifier {
	var multi notify.Multi
	if cfg.Notify.WebhookURL != "" {
		multi = append(multi, notify.NewWebhookNotifier(cfg.Notify.WebhookURL))
	}
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChat != "" {
		multi = append(multi, notify.NewTelegramNotifier(cfg.Notify.TelegramToken, cfg.Notify.TelegramChat))
	}
	if len(multi) == 0 {
		return notify.NewLogNotifier()
	}
	return multi
}

func profileParams(cfg *config.Config) map[string]filter.Params {
	out := make(map[string]filter.Params, len(cfg.Profiles))
	for name, prof := range cfg.Profiles {
		out[name] = prof.Params()
	}
	return out
}

func breakerGauge(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 2
	default:
		return 0
	}
}
