package config

import (
	"errors"
	"fmt"
	iofs "io/fs"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/angeloszaimis/subwatch/internal/model"
)

const (
	EnvDev     = "dev"
	EnvStaging = "staging"
	EnvProd    = "prod"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

const (
	TransportLog      = "log"
	TransportTelegram = "telegram"
	TransportKafka    = "kafka"
)

type LoggingConfig struct {
	Level     string `mapstructure:"level"`
	AddSource bool   `mapstructure:"add_source"`
}

type FilesConfig struct {
	Hosts   string `mapstructure:"hosts"`
	Result  string `mapstructure:"result"`
	History string `mapstructure:"history"`
}

type StoreConfig struct {
	Backend    string `mapstructure:"backend"`
	SQLitePath string `mapstructure:"sqlite_path"`
}

type ProbeConfig struct {
	Concurrency        int           `mapstructure:"concurrency"`
	Timeout            time.Duration `mapstructure:"timeout"`
	FollowRedirects    bool          `mapstructure:"follow_redirects"`
	MaxRedirects       int           `mapstructure:"max_redirects"`
	InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify"`
	UserAgent          string        `mapstructure:"user_agent"`
	SuppressFailures   []string      `mapstructure:"suppress_failures"`
	Schemes            []string      `mapstructure:"schemes"`
	KeyBy              string        `mapstructure:"key_by"`
}

type BreakerConfig struct {
	Threshold    int           `mapstructure:"threshold"`
	ResetTimeout time.Duration `mapstructure:"reset_timeout"`
}

type TelegramConfig struct {
	Token   string        `mapstructure:"token"`
	ChatID  string        `mapstructure:"chat_id"`
	APIURL  string        `mapstructure:"api_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type AlertConfig struct {
	Transport string         `mapstructure:"transport"`
	BatchSize int            `mapstructure:"batch_size"`
	Rate      float64        `mapstructure:"rate"`
	Burst     int            `mapstructure:"burst"`
	Breaker   BreakerConfig  `mapstructure:"breaker"`
	Telegram  TelegramConfig `mapstructure:"telegram"`
	Kafka     KafkaConfig    `mapstructure:"kafka"`
}

type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

type Config struct {
	Environment string        `mapstructure:"environment"`
	Logging     LoggingConfig `mapstructure:"logging"`
	Files       FilesConfig   `mapstructure:"files"`
	Store       StoreConfig   `mapstructure:"store"`
	Probe       ProbeConfig   `mapstructure:"probe"`
	Alert       AlertConfig   `mapstructure:"alert"`
	Metrics     MetricsConfig `mapstructure:"metrics"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", EnvDev)
	v.SetDefault("logging.level", LogLevelInfo)
	v.SetDefault("logging.add_source", false)

	v.SetDefault("files.hosts", "subdomains.txt")
	v.SetDefault("files.result", "result.json")
	v.SetDefault("files.history", "log.json")

	v.SetDefault("store.backend", BackendJSON)
	v.SetDefault("store.sqlite_path", "subwatch.db")

	v.SetDefault("probe.concurrency", 100)
	v.SetDefault("probe.timeout", "5s")
	v.SetDefault("probe.follow_redirects", true)
	v.SetDefault("probe.max_redirects", 10)
	v.SetDefault("probe.insecure_skip_verify", false)
	v.SetDefault("probe.user_agent", "subwatch/1.0")
	v.SetDefault("probe.suppress_failures", []string{string(model.FailureDNS), string(model.FailureConnection)})
	v.SetDefault("probe.schemes", []string{string(model.SchemeHTTP), string(model.SchemeHTTPS)})
	// Host keys share one history between schemes. A host whose http and
	// https answers differ alternates and re-alerts every run; set
	// probe.key_by to "target" for such host lists.
	v.SetDefault("probe.key_by", string(model.KeyByHost))

	v.SetDefault("alert.transport", TransportLog)
	v.SetDefault("alert.batch_size", 15)
	v.SetDefault("alert.rate", 1.0)
	v.SetDefault("alert.burst", 1)
	v.SetDefault("alert.breaker.threshold", 5)
	v.SetDefault("alert.breaker.reset_timeout", "30s")
	v.SetDefault("alert.telegram.token", "")
	v.SetDefault("alert.telegram.chat_id", "")
	v.SetDefault("alert.telegram.api_url", "https://api.telegram.org")
	v.SetDefault("alert.telegram.timeout", "10s")
	v.SetDefault("alert.kafka.brokers", []string{})
	v.SetDefault("alert.kafka.topic", "subwatch.alerts")

	v.SetDefault("metrics.textfile", "")
}

// NewFlagSet returns the command-line flags Load understands.
func NewFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.String("config", "", "path to a config file (default: config.yaml in ./config or .)")
	fs.String("hosts", "", "host list file")
	fs.String("result", "", "result store file")
	fs.String("history", "", "history store file")
	fs.String("log-level", "", "log level (debug, info, warn, error)")
	return fs
}

var flagKeys = map[string]string{
	"hosts":     "files.hosts",
	"result":    "files.result",
	"history":   "files.history",
	"log-level": "logging.level",
}

// Load builds the configuration from defaults, an optional config file, an
// optional .env file, environment variables and command-line args, in
// increasing order of precedence.
func Load(args []string) (*Config, error) {
	fs := NewFlagSet("subwatch")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, iofs.ErrNotExist) {
		slog.Warn("failed to read .env file", slog.String("error", err.Error()))
	}

	v := viper.New()
	setDefaults(v)

	if path, _ := fs.GetString("config"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	for name, key := range flagKeys {
		if f := fs.Lookup(name); f != nil && f.Changed {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, err
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Error("failed to read config file", slog.String("error", err.Error()))
			return nil, err
		}
		slog.Debug("config file not found, using defaults and environment variables")
	} else {
		slog.Debug("loaded config file", slog.String("file", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		slog.Error("failed to unmarshal config", slog.String("error", err.Error()))
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Environment,
			validation.Required,
			validation.In(EnvDev, EnvStaging, EnvProd),
		),
		validation.Field(&c.Logging,
			validation.By(func(value interface{}) error {
				lc, ok := value.(LoggingConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a LoggingConfig")
				}
				return validation.ValidateStruct(&lc,
					validation.Field(&lc.Level,
						validation.Required,
						validation.In(LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError),
					),
				)
			}),
		),
		validation.Field(&c.Files),
		validation.Field(&c.Store),
		validation.Field(&c.Probe),
		validation.Field(&c.Alert),
	)
}

func (f FilesConfig) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.Hosts, validation.Required),
		validation.Field(&f.Result, validation.Required),
		validation.Field(&f.History, validation.Required),
	)
}

func (s StoreConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Backend,
			validation.Required,
			validation.In(BackendJSON, BackendSQLite),
		),
		validation.Field(&s.SQLitePath,
			validation.When(s.Backend == BackendSQLite, validation.Required),
		),
	)
}

func (p ProbeConfig) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Concurrency, validation.Required, validation.Min(1)),
		validation.Field(&p.Timeout, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&p.MaxRedirects, validation.Min(0)),
		validation.Field(&p.SuppressFailures,
			validation.Each(validation.In(failureKindNames()...)),
		),
		validation.Field(&p.Schemes,
			validation.Required,
			validation.Each(validation.In(string(model.SchemeHTTP), string(model.SchemeHTTPS))),
		),
		validation.Field(&p.KeyBy,
			validation.Required,
			validation.In(string(model.KeyByHost), string(model.KeyByTarget)),
		),
	)
}

func (a AlertConfig) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.Transport,
			validation.Required,
			validation.In(TransportLog, TransportTelegram, TransportKafka),
		),
		validation.Field(&a.BatchSize, validation.Required, validation.Min(1)),
		validation.Field(&a.Rate, validation.Required, validation.Min(0.0).Exclusive()),
		validation.Field(&a.Burst, validation.Required, validation.Min(1)),
		validation.Field(&a.Breaker),
		validation.Field(&a.Telegram,
			validation.When(a.Transport == TransportTelegram, validation.By(validateTelegram)),
		),
		validation.Field(&a.Kafka,
			validation.When(a.Transport == TransportKafka, validation.By(validateKafka)),
		),
	)
}

func (b BreakerConfig) Validate() error {
	return validation.ValidateStruct(&b,
		validation.Field(&b.Threshold, validation.Required, validation.Min(1)),
		validation.Field(&b.ResetTimeout, validation.Required, validation.Min(time.Millisecond)),
	)
}

func validateTelegram(value interface{}) error {
	tc, ok := value.(TelegramConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a TelegramConfig")
	}
	return validation.ValidateStruct(&tc,
		validation.Field(&tc.Token, validation.Required),
		validation.Field(&tc.ChatID, validation.Required),
		validation.Field(&tc.APIURL, validation.Required, is.URL),
		validation.Field(&tc.Timeout, validation.Required, validation.Min(time.Millisecond)),
	)
}

func validateKafka(value interface{}) error {
	kc, ok := value.(KafkaConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a KafkaConfig")
	}
	return validation.ValidateStruct(&kc,
		validation.Field(&kc.Brokers,
			validation.Required,
			validation.Each(validation.Required, is.DialString),
		),
		validation.Field(&kc.Topic, validation.Required),
	)
}

func failureKindNames() []interface{} {
	names := make([]interface{}, 0, len(model.FailureKinds))
	for _, kind := range model.FailureKinds {
		names = append(names, string(kind))
	}
	return names
}

// FailureKinds returns the configured suppressed failure kinds.
func (p ProbeConfig) FailureKinds() []model.FailureKind {
	kinds := make([]model.FailureKind, 0, len(p.SuppressFailures))
	for _, name := range p.SuppressFailures {
		kinds = append(kinds, model.FailureKind(name))
	}
	return kinds
}

// SchemeList returns the configured schemes in probe order.
func (p ProbeConfig) SchemeList() []model.Scheme {
	schemes := make([]model.Scheme, 0, len(p.Schemes))
	for _, name := range p.Schemes {
		schemes = append(schemes, model.Scheme(name))
	}
	return schemes
}

// KeyMode returns the store key mode.
func (p ProbeConfig) KeyMode() model.KeyMode {
	return model.KeyMode(p.KeyBy)
}
