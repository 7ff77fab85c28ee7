package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"price-threshold-alerts/internal/alerting"
	"price-threshold-alerts/internal/config"
	"price-threshold-alerts/internal/lock"
	"price-threshold-alerts/internal/metrics"
	"price-threshold-alerts/internal/scheduler"
	"price-threshold-alerts/internal/service"
	"price-threshold-alerts/internal/source"
	"price-threshold-alerts/internal/threshold"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

// newSources builds one price source per kind used by the configured groups.
func (a *App) newSources() map[threshold.Kind]source.Source {
	sources := make(map[threshold.Kind]source.Source)
	for _, kind := range a.Config.Kinds() {
		switch kind {
		case threshold.FloorPrice:
			sources[kind] = source.NewOpenSea(source.OpenSeaOptions{
				APIKey:  a.Config.OpenSea.APIKey,
				BaseURL: a.Config.OpenSea.BaseURL,
				Timeout: a.Config.OpenSea.RequestTimeout,
			}, a.Logger)
		case threshold.SpotPrice:
			sources[kind] = a.newSpotSource()
		case threshold.FeedPrice:
			sources[kind] = source.NewFeed(source.FeedOptions{
				RPCURL:  a.Config.Ethereum.RPCURL,
				Timeout: a.Config.Ethereum.RequestTimeout,
				MaxAge:  a.Config.Ethereum.MaxAnswerAge,
			}, a.Logger)
		}
	}
	return sources
}

func (a *App) newSpotSource() source.Source {
	if a.Config.SpotProvider == config.SpotProviderBinance {
		return source.NewBinance(source.BinanceOptions{
			BaseURL:    a.Config.Binance.BaseURL,
			QuoteAsset: a.Config.Binance.QuoteAsset,
			Timeout:    a.Config.Binance.RequestTimeout,
		}, a.Logger)
	}
	return source.NewCoinMarketCap(source.CoinMarketCapOptions{
		APIKey:  a.Config.CoinMarketCap.APIKey,
		BaseURL: a.Config.CoinMarketCap.BaseURL,
		Convert: a.Config.CoinMarketCap.Convert,
		Timeout: a.Config.CoinMarketCap.RequestTimeout,
	}, a.Logger)
}

// newNotifier fans out to the configured channels. It returns nil when
// alerting is disabled.
func (a *App) newNotifier() alerting.Notifier {
	if !a.Config.Alerting.Enabled {
		return nil
	}

	var targets []alerting.Named
	for _, ch := range a.Config.Alerting.Channels {
		switch ch {
		case alerting.ChannelEmail:
			cfg := a.Config.Alerting.Email
			targets = append(targets, alerting.Named{Channel: ch, Notifier: alerting.NewEmailNotifier(alerting.EmailOptions{
				Host:     cfg.SMTPHost,
				Port:     cfg.SMTPPort,
				Sender:   cfg.Sender,
				Receiver: cfg.Receiver,
				Password: cfg.Password,
				Timeout:  cfg.Timeout,
			}, a.Logger)})
		case alerting.ChannelTelegram:
			cfg := a.Config.Alerting.Telegram
			targets = append(targets, alerting.Named{
				Channel:  ch,
				Notifier: alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, cfg.Timeout, a.Logger),
			})
		}
	}
	if len(targets) == 0 {
		return nil
	}
	return alerting.NewMulti(a.Logger, targets...)
}

func (a *App) newRunner(notifier alerting.Notifier, sinks ...service.DiagnosticSink) *service.Runner {
	all := append(service.Sinks{service.NewLogSink(a.Logger)}, sinks...)
	return service.NewRunner(a.newSources(), notifier, all)
}

func (a *App) openLock(ctx context.Context) (*lock.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := lock.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := lock.NewStore(pool)
	return store, store.Close, nil
}

// RunOnce performs a single evaluation pass over every configured group.
func (a *App) RunOnce(ctx context.Context) (service.Report, error) {
	runner := a.newRunner(a.newNotifier())
	svc := service.New(a.Config, nil, runner, nil, a.Logger)
	return svc.RunOnce(ctx)
}

// Run executes the long-running monitoring service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openLock(ctx)
	if err != nil {
		return err
	}
	if closeStore != nil {
		defer closeStore()
	}

	var locker lock.AdvisoryLocker
	if store != nil {
		locker = store
	} else if a.Config.Scheduler.AdvisoryLockKey != 0 {
		a.Logger.Warn().Msg("database.dsn not configured; advisory lock disabled")
	}

	if addr := a.Config.Metrics.Listen; addr != "" {
		go func() {
			if err := metrics.Serve(ctx, addr, a.Logger); err != nil {
				a.Logger.Error().Err(err).Str("addr", addr).Msg("metrics listener failed")
			}
		}()
	}

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToStart: a.Config.Scheduler.AlignToBucket,
		StartupDelay: a.Config.Scheduler.StartupDelay,
		RunOnStart:   a.Config.Scheduler.RunOnStart,
	}, a.Logger)

	runner := a.newRunner(a.newNotifier(), metrics.Sink{})
	svc := service.New(a.Config, sched, runner, locker, a.Logger)

	a.Logger.Info().
		Int("groups", len(a.Config.Groups)).
		Int("instruments", a.Config.InstrumentCount()).
		Dur("interval", a.Config.Scheduler.Interval).
		Msg("starting monitoring service")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("monitoring service stopped")
	return nil
}

// CheckOptions configure the check command.
type CheckOptions struct {
	PNGPath string
}

// SimulateOptions configure the simulate-alert command.
type SimulateOptions struct {
	Group      string
	Instrument string
	Value      string
}
