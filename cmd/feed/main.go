package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/rxtech-lab/argo-feed/internal/feed"
	enginev1 "github.com/rxtech-lab/argo-feed/internal/feed/engine_v1"
	"github.com/rxtech-lab/argo-feed/internal/logger"
	"github.com/rxtech-lab/argo-feed/internal/session"
	"github.com/rxtech-lab/argo-feed/internal/sink"
	"github.com/rxtech-lab/argo-feed/internal/types"
	"github.com/rxtech-lab/argo-feed/internal/version"
	"github.com/rxtech-lab/argo-feed/pkg/marketdata"
	"github.com/rxtech-lab/argo-feed/pkg/marketdata/provider"
)

// fileConfig mirrors feed.FeedEngineConfig with string durations so a
// YAML file can say "24h" instead of nanosecond counts.
type fileConfig struct {
	Symbols            []string `yaml:"symbols"`
	ExchangeTimezone   string   `yaml:"exchange_timezone"`
	BandPeriod         int      `yaml:"band_period"`
	BandMultiplier     float64  `yaml:"band_multiplier"`
	EmaPeriod          int      `yaml:"ema_period"`
	RetentionBars      int      `yaml:"retention_bars"`
	BackfillWindow     string   `yaml:"backfill_window"`
	BackfillFlushDelay string   `yaml:"backfill_flush_delay"`
	EnablePreview      bool     `yaml:"enable_preview"`
	MinEngineVersion   string   `yaml:"min_engine_version"`
}

// loadEngineConfig reads a YAML config file into an engine config.
func loadEngineConfig(path string) (feed.FeedEngineConfig, error) {
	var config feed.FeedEngineConfig

	data, err := os.ReadFile(path)
	if err != nil {
		return config, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var raw fileConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return config, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	config.Symbols = raw.Symbols
	config.ExchangeTimezone = raw.ExchangeTimezone
	config.BandPeriod = raw.BandPeriod
	config.BandMultiplier = raw.BandMultiplier
	config.EmaPeriod = raw.EmaPeriod
	config.RetentionBars = raw.RetentionBars
	config.EnablePreview = raw.EnablePreview
	config.MinEngineVersion = raw.MinEngineVersion

	if raw.BackfillWindow != "" {
		window, err := time.ParseDuration(raw.BackfillWindow)
		if err != nil {
			return config, fmt.Errorf("invalid backfill_window: %w", err)
		}

		config.BackfillWindow = window
	}

	if raw.BackfillFlushDelay != "" {
		delay, err := time.ParseDuration(raw.BackfillFlushDelay)
		if err != nil {
			return config, fmt.Errorf("invalid backfill_flush_delay: %w", err)
		}

		config.BackfillFlushDelay = delay
	}

	return config, nil
}

// buildProvider creates the market data provider from CLI flags.
func buildProvider(cmd *cli.Command) (provider.Provider, error) {
	providerType := provider.ProviderType(cmd.String("provider"))

	var providerConfig any

	switch providerType {
	case provider.ProviderPolygon:
		apiKey := cmd.String("polygon-api-key")
		if apiKey == "" {
			apiKey = os.Getenv("POLYGON_API_KEY")
		}

		providerConfig = apiKey
	case provider.ProviderWebsocketFeed:
		providerConfig = cmd.String("feed-url")
	case provider.ProviderBinance:
		providerConfig = nil
	}

	return provider.NewProvider(providerType, providerConfig)
}

func runAction(ctx context.Context, cmd *cli.Command) error {
	config, err := loadEngineConfig(cmd.String("config"))
	if err != nil {
		return err
	}

	config.ApplyDefaults()

	engine, err := enginev1.NewFeedEngineV1()
	if err != nil {
		return err
	}

	if err := engine.Initialize(config); err != nil {
		return err
	}

	dataProvider, err := buildProvider(cmd)
	if err != nil {
		return err
	}

	if err := engine.SetProvider(dataProvider); err != nil {
		return err
	}

	appLog, err := logger.NewLogger()
	if err != nil {
		return err
	}

	redisSink, err := sink.NewRedisSink(ctx, cmd.String("redis-addr"), os.Getenv("REDIS_PASSWORD"), int(cmd.Int("redis-db")), appLog)
	if err != nil {
		return fmt.Errorf("failed to connect to redis at %s: %w", cmd.String("redis-addr"), err)
	}
	defer redisSink.Close()

	if err := engine.SetSink(redisSink); err != nil {
		return err
	}

	if archiveDir := cmd.String("archive-dir"); archiveDir != "" {
		if err := engine.SetArchiveDir(archiveDir); err != nil {
			return err
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if metricsAddr := cmd.String("metrics-addr"); metricsAddr != "" {
		startMetricsServer(runCtx, metricsAddr, engine)
	}

	// The engine serves exactly one trading session. The scheduler
	// cancels the run at the pre-open roll so a supervisor restarts the
	// process with fresh pipelines for the new date.
	clock, err := types.NewMarketClock(config.ExchangeTimezone)
	if err != nil {
		return err
	}

	scheduler, err := session.NewRollScheduler(clock, cmd.String("roll-spec"), appLog, func(tradingDate string) {
		log.Printf("session rolled to %s, shutting down for restart", tradingDate)
		cancel()
	})
	if err != nil {
		return err
	}

	scheduler.Start()
	defer scheduler.Stop()

	onStart := feed.OnEngineStartCallback(func(symbols []string) error {
		log.Printf("feed engine started for %d symbols", len(symbols))

		return nil
	})
	onFlushed := feed.OnBackfillFlushedCallback(func(symbol string, oneMinute int, fiveMinute int) {
		log.Printf("%s backfill flushed: %d one-minute bars, %d five-minute bars", symbol, oneMinute, fiveMinute)
	})
	onError := feed.OnErrorCallback(func(err error) {
		log.Printf("feed error: %v", err)
	})

	return engine.Run(runCtx, feed.FeedEngineCallbacks{
		OnEngineStart:     &onStart,
		OnEngineStop:      nil,
		OnBackfillFlushed: &onFlushed,
		OnBarClosed:       nil,
		OnError:           &onError,
	})
}

func startMetricsServer(ctx context.Context, addr string, engine *enginev1.FeedEngineV1) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", engine.Metrics().Handler())

	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server failed: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_ = server.Shutdown(shutdownCtx)
	}()
}

func schemaAction(_ context.Context, cmd *cli.Command) error {
	if providerName := cmd.String("provider"); providerName != "" {
		schema, err := marketdata.GetBackfillConfigSchema(providerName)
		if err != nil {
			return err
		}

		fmt.Println(schema)

		return nil
	}

	schema, err := feed.GetConfigSchema()
	if err != nil {
		return err
	}

	fmt.Println(schema)

	return nil
}

func backfillAction(ctx context.Context, cmd *cli.Command) error {
	clientConfig := marketdata.ClientConfig{
		ProviderType:     provider.ProviderType(cmd.String("provider")),
		DataPath:         cmd.String("data"),
		PolygonApiKey:    os.Getenv("POLYGON_API_KEY"),
		FeedURL:          cmd.String("feed-url"),
		ExchangeTimezone: cmd.String("timezone"),
		BandPeriod:       0,
		BandMultiplier:   0,
		EmaPeriod:        0,
		RetentionBars:    int(cmd.Int("retention")),
	}

	bar := progressbar.Default(-1, "replaying bars")

	client, err := marketdata.NewClient(clientConfig, func(string, int) {
		_ = bar.Add(1)
	})
	if err != nil {
		return err
	}

	err = client.Download(ctx, marketdata.DownloadParams{
		Symbols:   cmd.StringSlice("symbols"),
		StartDate: cmd.Timestamp("start"),
		EndDate:   cmd.Timestamp("end"),
	})
	if err != nil {
		return err
	}

	_ = bar.Finish()
	log.Println("backfill completed")

	return nil
}

func main() {
	cmd := &cli.Command{
		Name:    "argo-feed",
		Usage:   "Real-time market bar enrichment feed",
		Version: version.GetVersion(),
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Run the live feed engine for one trading session",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "config",
						Aliases:  []string{"c"},
						Usage:    "Path to the YAML engine config file",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "provider",
						Usage: fmt.Sprintf("Market data provider (%s, %s, %s)", provider.ProviderPolygon, provider.ProviderBinance, provider.ProviderWebsocketFeed),
						Value: string(provider.ProviderBinance),
					},
					&cli.StringFlag{
						Name:  "polygon-api-key",
						Usage: "Polygon API key (or POLYGON_API_KEY env)",
					},
					&cli.StringFlag{
						Name:  "feed-url",
						Usage: "Websocket feed URL for the websocket-feed provider",
					},
					&cli.StringFlag{
						Name:  "redis-addr",
						Usage: "Redis address for the series sink",
						Value: "localhost:6379",
					},
					&cli.IntFlag{
						Name:  "redis-db",
						Usage: "Redis database number",
						Value: 0,
					},
					&cli.StringFlag{
						Name:  "archive-dir",
						Usage: "Directory for parquet session archives (disabled when empty)",
					},
					&cli.StringFlag{
						Name:  "metrics-addr",
						Usage: "Listen address for the Prometheus metrics endpoint (disabled when empty)",
						Value: ":9102",
					},
					&cli.StringFlag{
						Name:  "roll-spec",
						Usage: "Cron spec for the pre-open session roll (empty for the weekday 09:00 default)",
					},
				},
				Action: runAction,
			},
			{
				Name:  "schema",
				Usage: "Print the engine config JSON schema, or a provider's backfill config schema",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "provider",
						Usage: "Print the backfill config schema for this provider instead",
					},
				},
				Action: schemaAction,
			},
			{
				Name:  "backfill",
				Usage: "Download and enrich a historical window into parquet archives",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:     "symbols",
						Usage:    "Symbols to backfill",
						Required: true,
					},
					&cli.TimestampFlag{
						Name:     "start",
						Aliases:  []string{"s"},
						Usage:    "Start date in `YYYY-MM-DD` format (or other RFC3339 compatible)",
						Required: true,
						Config: cli.TimestampConfig{
							Layouts: []string{"2006-01-02", time.RFC3339},
						},
					},
					&cli.TimestampFlag{
						Name:    "end",
						Aliases: []string{"e"},
						Usage:   "End date in `YYYY-MM-DD` format (or other RFC3339 compatible). Defaults to now.",
						Value:   time.Now(),
						Config: cli.TimestampConfig{
							Layouts: []string{"2006-01-02", time.RFC3339},
						},
					},
					&cli.StringFlag{
						Name:  "provider",
						Usage: fmt.Sprintf("Data provider (%s, %s, %s)", provider.ProviderPolygon, provider.ProviderBinance, provider.ProviderWebsocketFeed),
						Value: string(provider.ProviderBinance),
					},
					&cli.StringFlag{
						Name:  "feed-url",
						Usage: "Websocket feed URL for the websocket-feed provider",
					},
					&cli.StringFlag{
						Name:    "data",
						Aliases: []string{"d"},
						Usage:   "Path to the archive output directory",
						Value:   "data",
					},
					&cli.StringFlag{
						Name:  "timezone",
						Usage: "IANA exchange timezone",
						Value: feed.DefaultExchangeTimezone,
					},
					&cli.IntFlag{
						Name:  "retention",
						Usage: "Maximum stored bars per series",
						Value: int64(feed.DefaultRetentionBars),
					},
				},
				Action: backfillAction,
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
