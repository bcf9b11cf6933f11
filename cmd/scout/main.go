package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/wallet-scout/pkg/alerts"
	"github.com/wallet-scout/pkg/config"
	"github.com/wallet-scout/pkg/confluence"
	"github.com/wallet-scout/pkg/dashboard"
	"github.com/wallet-scout/pkg/db"
	"github.com/wallet-scout/pkg/discovery"
	"github.com/wallet-scout/pkg/ingest"
	"github.com/wallet-scout/pkg/monitor"
	"github.com/wallet-scout/pkg/price"
	"github.com/wallet-scout/pkg/stats"
	"github.com/wallet-scout/pkg/upstream"
	"github.com/wallet-scout/pkg/watchlist"
)

func main() {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).With().Timestamp().Logger()
	log.Info().Msg("🔭 Alpha Wallet Scout starting...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("config invalid")
	}

	store, err := db.NewStore(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("database init failed")
	}
	defer store.Close()

	registry := buildRegistry(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() { <-sigCh; log.Info().Msg("shutting down..."); cancel() }()

	windows := confluence.NewRedisWindow(cfg.RedisAddr, cfg.RedisDB)
	if err := windows.Ping(ctx); err != nil {
		// Alerts degrade to fewer, never to wrong: the monitor records
		// trades regardless and retries the store each tick.
		log.Warn().Err(err).Msg("window store unreachable at startup")
	}

	var alerter alerts.Alerter = alerts.NopAlerter{}
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		alerter = alerts.NewTelegramAlerter(cfg.TelegramBotToken, cfg.TelegramChatID)
	} else {
		log.Warn().Msg("telegram not configured, alerts will be dropped")
	}

	weights := watchlist.NewWeightController(cfg, store)
	prices := price.NewEnricher(registry, store)
	detector := confluence.NewDetector(cfg, windows, store, alerter, weights.Current)
	ingestor := ingest.NewIngestor(cfg, store, registry)
	discoverer := discovery.NewDiscoverer(cfg, store, registry, prices)
	roller := stats.NewRoller(cfg, store, prices)
	maintainer := watchlist.NewMaintainer(cfg, store, weights)
	mon := monitor.NewMonitor(cfg, store, registry, prices, detector)

	// Seed curated wallets so the monitor picks them up before the first
	// maintenance run.
	for _, cw := range cfg.AlwaysWatch {
		_ = store.UpsertWallet(cw.Chain, cw.Address, time.Now().UTC())
		if cw.Label != "" {
			_ = store.AddWalletLabel(cw.Chain, cw.Address, cw.Label)
		}
	}

	errCh := make(chan error, 10)
	go func() { errCh <- runEvery(ctx, "ingest", cfg.IngestInterval, ingestor.Run) }()
	go func() { errCh <- runEvery(ctx, "discover", cfg.DiscoverInterval, discoverer.Run) }()
	go func() { errCh <- runEvery(ctx, "stats", cfg.StatsInterval, roller.Run) }()
	go func() { errCh <- runEvery(ctx, "monitor", cfg.MonitorInterval, mon.Run) }()

	c := cron.New()
	if _, err := c.AddFunc(cfg.WatchlistCron, func() {
		deadline, cancelRun := context.WithTimeout(ctx, time.Hour)
		defer cancelRun()
		if err := maintainer.Run(deadline); err != nil {
			log.Error().Err(err).Msg("watchlist maintenance failed")
		}
	}); err != nil {
		log.Fatal().Err(err).Str("spec", cfg.WatchlistCron).Msg("bad maintenance cron spec")
	}
	c.Start()
	defer c.Stop()

	dash := dashboard.New(store, cfg, mon, roller, cfg.DashboardPort)
	go func() { errCh <- dash.Run() }()

	printBanner(cfg, store)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && err != context.Canceled {
			log.Error().Err(err).Msg("job exited")
		}
	}
	log.Info().Msg("goodbye 👋")
}

// buildRegistry wires every adapter once at startup; the registry is
// read-only afterwards.
func buildRegistry(cfg *config.Config) *upstream.Registry {
	registry := upstream.NewRegistry()

	dexscreener := upstream.NewDexScreener()
	gecko := upstream.NewGeckoTerminal()
	honeypot := upstream.NewHoneypotIs()

	var alchemy *upstream.Alchemy
	if cfg.AlchemyAPIKey != "" {
		alchemy = upstream.NewAlchemy(cfg.AlchemyAPIKey, cfg.TransferBlockRange)
	}
	var helius *upstream.Helius
	if cfg.HeliusAPIKey != "" {
		helius = upstream.NewHelius(cfg.HeliusAPIKey)
	}
	var birdeye *upstream.Birdeye
	if cfg.BirdeyeAPIKey != "" {
		birdeye = upstream.NewBirdeye(cfg.BirdeyeAPIKey)
	}

	for _, chain := range cfg.Chains {
		registry.RegisterTrending(chain, dexscreener)
		registry.RegisterTrending(chain, gecko)
		registry.RegisterPrices(chain, dexscreener)
		registry.RegisterPrices(chain, gecko)

		if config.IsEVM(chain) {
			if alchemy != nil {
				registry.RegisterTransfers(chain, alchemy)
			}
			registry.RegisterSafety(chain, honeypot)
		} else {
			if helius != nil {
				registry.RegisterTransfers(chain, helius)
			}
			if birdeye != nil {
				registry.RegisterTrending(chain, birdeye)
				registry.RegisterPrices(chain, birdeye)
			}
		}
	}
	return registry
}

// runEvery runs job immediately and then on the interval. Each run gets a
// deadline of twice the interval; three consecutive overruns raise an
// operational error in the log.
func runEvery(ctx context.Context, name string, interval time.Duration, job func(context.Context) error) error {
	overruns := 0
	run := func() {
		start := time.Now()
		deadline, cancel := context.WithTimeout(ctx, 2*interval)
		defer cancel()

		if err := job(deadline); err != nil && ctx.Err() == nil {
			log.Error().Str("job", name).Err(err).Msg("job run failed")
		}

		if time.Since(start) > interval {
			overruns++
			if overruns >= 3 {
				log.Error().Str("job", name).Int("consecutive", overruns).
					Msg("job keeps exceeding its interval")
			}
		} else {
			overruns = 0
		}
	}

	run()
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			run()
		}
	}
}

func printBanner(cfg *config.Config, store *db.Store) {
	counts, _ := store.Counts()

	chainList := make([]string, len(cfg.Chains))
	for i, c := range cfg.Chains {
		chainList[i] = string(c)
	}

	bold := color.New(color.Bold)
	fmt.Println("\n" + strings.Repeat("═", 60))
	bold.Println("  🔭 ALPHA WALLET SCOUT - RUNNING")
	fmt.Println(strings.Repeat("═", 60))
	fmt.Printf("  Chains:     %s\n", strings.Join(chainList, ", "))
	fmt.Printf("  Watchlist:  top %d per chain, confluence ≥ %d in %s\n",
		cfg.WatchlistTopN, cfg.MinConfluence, cfg.ConfluenceWindow)
	fmt.Printf("  Dashboard:  http://localhost:%d\n", cfg.DashboardPort)
	telegramStatus := color.RedString("disabled")
	if cfg.TelegramBotToken != "" {
		telegramStatus = color.GreenString("enabled")
	}
	fmt.Printf("  Telegram:   %s\n", telegramStatus)
	if counts != nil {
		fmt.Printf("  DB:         %d tokens, %d wallets, %d trades, %d alerts\n",
			counts["tokens"], counts["wallets"], counts["trades"], counts["alerts"])
	}
	fmt.Println(strings.Repeat("═", 60) + "\n")
}
