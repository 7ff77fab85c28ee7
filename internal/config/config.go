package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/samber/lo"
	"github.com/spf13/viper"

	"price-threshold-alerts/internal/logging"
	"price-threshold-alerts/internal/threshold"
)

// ErrConfiguration marks a fatal configuration defect.
var ErrConfiguration = errors.New("invalid configuration")

// Spot price providers.
const (
	SpotProviderCoinMarketCap = "coinmarketcap"
	SpotProviderBinance       = "binance"
)

var knownChannels = []string{"email", "telegram"}

// Config materialises application configuration.
type Config struct {
	App           AppConfig           `mapstructure:"app"`
	Logging       logging.Config      `mapstructure:"logging"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Scheduler     SchedulerConfig     `mapstructure:"scheduler"`
	OpenSea       OpenSeaConfig       `mapstructure:"opensea"`
	CoinMarketCap CoinMarketCapConfig `mapstructure:"coinmarketcap"`
	Binance       BinanceConfig       `mapstructure:"binance"`
	SpotProvider  string              `mapstructure:"spot_provider"`
	Ethereum      EthereumConfig      `mapstructure:"ethereum"`
	Alerting      AlertingConfig      `mapstructure:"alerting"`
	Metrics       MetricsConfig       `mapstructure:"metrics"`

	// Groups are decoded separately to keep file order and key case.
	Groups []threshold.Group `mapstructure:"-"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig is only used for the cross-replica advisory lock.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// SchedulerConfig governs sampling cadence.
type SchedulerConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	AlignToBucket   bool          `mapstructure:"align_to_bucket"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
	RunOnStart      bool          `mapstructure:"run_on_start"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
}

// OpenSeaConfig covers the floor price provider.
type OpenSeaConfig struct {
	APIKey         string        `mapstructure:"api_key"`
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// CoinMarketCapConfig covers the default spot price provider.
type CoinMarketCapConfig struct {
	APIKey         string        `mapstructure:"api_key"`
	BaseURL        string        `mapstructure:"base_url"`
	Convert        string        `mapstructure:"convert"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// BinanceConfig covers the alternative spot price provider.
type BinanceConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	QuoteAsset     string        `mapstructure:"quote_asset"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// EthereumConfig covers on-chain oracle access.
type EthereumConfig struct {
	RPCURL         string        `mapstructure:"rpc_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxAnswerAge   time.Duration `mapstructure:"max_answer_age"`
}

// AlertingConfig defines notification routing.
type AlertingConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Channels []string       `mapstructure:"channels"`
	Email    EmailConfig    `mapstructure:"email"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// EmailConfig describes the SMTP relay.
type EmailConfig struct {
	SMTPHost string        `mapstructure:"smtp_host"`
	SMTPPort int           `mapstructure:"smtp_port"`
	Sender   string        `mapstructure:"sender"`
	Receiver string        `mapstructure:"receiver"`
	Password string        `mapstructure:"password"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// TelegramConfig describes the Telegram channel.
type TelegramConfig struct {
	BotToken string        `mapstructure:"bot_token"`
	ChatID   string        `mapstructure:"chat_id"`
	APIBase  string        `mapstructure:"api_base"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// MetricsConfig controls the Prometheus listener.
type MetricsConfig struct {
	Listen string `mapstructure:"listen"`
}

// Load builds configuration from .env, file, environment, and defaults.
func Load(path string) (*Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("PRICEWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("%w: unmarshal config: %v", ErrConfiguration, err)
	}

	if file := v.ConfigFileUsed(); file != "" {
		groups, err := LoadGroups(file)
		if err != nil {
			return nil, err
		}
		cfg.Groups = groups
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("%w: read config: %v", ErrConfiguration, err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "pricewatch")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.file_mode", logging.FileModeTruncate)
	v.SetDefault("logging.max_size_mb", 10)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age_days", 0)

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")

	v.SetDefault("scheduler.interval", "15m")
	v.SetDefault("scheduler.align_to_bucket", true)
	v.SetDefault("scheduler.startup_delay", "0s")
	v.SetDefault("scheduler.run_on_start", true)
	v.SetDefault("scheduler.advisory_lock_key", int64(0))

	v.SetDefault("opensea.api_key", "")
	v.SetDefault("opensea.base_url", "https://api.opensea.io/api/v2")
	v.SetDefault("opensea.request_timeout", "10s")

	v.SetDefault("coinmarketcap.api_key", "")
	v.SetDefault("coinmarketcap.base_url", "https://pro-api.coinmarketcap.com")
	v.SetDefault("coinmarketcap.convert", "USD")
	v.SetDefault("coinmarketcap.request_timeout", "10s")

	v.SetDefault("binance.base_url", "")
	v.SetDefault("binance.quote_asset", "USDT")
	v.SetDefault("binance.request_timeout", "10s")

	v.SetDefault("spot_provider", SpotProviderCoinMarketCap)

	v.SetDefault("ethereum.rpc_url", "")
	v.SetDefault("ethereum.request_timeout", "10s")
	v.SetDefault("ethereum.max_answer_age", "0s")

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.channels", []string{"email"})
	v.SetDefault("alerting.email.smtp_host", "smtp.gmail.com")
	v.SetDefault("alerting.email.smtp_port", 587)
	v.SetDefault("alerting.email.sender", "")
	v.SetDefault("alerting.email.receiver", "")
	v.SetDefault("alerting.email.password", "")
	v.SetDefault("alerting.email.timeout", "15s")
	v.SetDefault("alerting.telegram.bot_token", "")
	v.SetDefault("alerting.telegram.chat_id", "")
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")
	v.SetDefault("alerting.telegram.timeout", "10s")

	v.SetDefault("metrics.listen", "")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

func (c *Config) normalize() {
	c.SpotProvider = strings.ToLower(strings.TrimSpace(c.SpotProvider))
	c.Logging.FileMode = strings.ToLower(strings.TrimSpace(c.Logging.FileMode))
	c.Alerting.Channels = lo.Uniq(lo.FilterMap(c.Alerting.Channels, func(ch string, _ int) (string, bool) {
		ch = strings.ToLower(strings.TrimSpace(ch))
		return ch, ch != ""
	}))
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// Validate performs sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Scheduler.Interval <= 0 {
		return invalid("scheduler.interval must be greater than zero")
	}
	switch c.Logging.FileMode {
	case "", logging.FileModeTruncate, logging.FileModeAppend, logging.FileModeRotate:
	default:
		return invalid("logging.file_mode %q is not supported", c.Logging.FileMode)
	}
	if c.SpotProvider != SpotProviderCoinMarketCap && c.SpotProvider != SpotProviderBinance {
		return invalid("spot_provider %q is not supported", c.SpotProvider)
	}

	for _, kind := range c.Kinds() {
		switch kind {
		case threshold.FloorPrice:
			if c.OpenSea.APIKey == "" {
				return invalid("opensea.api_key is required for floor price groups")
			}
		case threshold.SpotPrice:
			if c.SpotProvider == SpotProviderCoinMarketCap && c.CoinMarketCap.APIKey == "" {
				return invalid("coinmarketcap.api_key is required for spot price groups")
			}
		case threshold.FeedPrice:
			if c.Ethereum.RPCURL == "" {
				return invalid("ethereum.rpc_url is required for feed price groups")
			}
		default:
			return invalid("group kind %s has no provider", kind)
		}
	}

	if !c.Alerting.Enabled {
		return nil
	}
	if len(c.Alerting.Channels) == 0 {
		return invalid("alerting.channels must list at least one channel")
	}
	for _, ch := range c.Alerting.Channels {
		switch ch {
		case "email":
			e := c.Alerting.Email
			if e.Sender == "" || e.Receiver == "" || e.Password == "" {
				return invalid("alerting.email.sender, receiver and password are required")
			}
			if e.SMTPPort <= 0 {
				return invalid("alerting.email.smtp_port must be positive")
			}
		case "telegram":
			if c.Alerting.Telegram.BotToken == "" {
				return invalid("alerting.telegram.bot_token is required")
			}
			if c.Alerting.Telegram.ChatID == "" {
				return invalid("alerting.telegram.chat_id is required")
			}
		default:
			return invalid("alerting.channels: unknown channel %q (known: %s)", ch, strings.Join(knownChannels, ", "))
		}
	}
	return nil
}

// Kinds lists the distinct kinds of the groups that have members.
func (c *Config) Kinds() []threshold.Kind {
	return lo.Uniq(lo.FilterMap(c.Groups, func(g threshold.Group, _ int) (threshold.Kind, bool) {
		return g.Kind, len(g.Members) > 0
	}))
}

// InstrumentCount is the number of configured instruments across groups.
func (c *Config) InstrumentCount() int {
	return lo.SumBy(c.Groups, func(g threshold.Group) int { return len(g.Members) })
}
