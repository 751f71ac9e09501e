package config

import (
	"os"
	"time"

	"codeberg.org/renedaq/hvmond/internal/crate"
	"codeberg.org/renedaq/hvmond/internal/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	defaultPollingIntervalMs = 1000
	defaultCommitIntervalMs  = 30000
	defaultShutdownTimeoutMs = 5000
	defaultDatabase          = "/var/lib/hvmond/hv.db"
	defaultGatewayAddress    = "127.0.0.1:502"
	defaultGatewayTimeoutMs  = 2000
)

// SlotConfig declares one populated crate slot.
type SlotConfig struct {
	Slot     int    `mapstructure:"slot"`
	Model    string `mapstructure:"model"`
	Channels int    `mapstructure:"channels"`
}

// GatewayConfig holds the crate gateway connection settings.
type GatewayConfig struct {
	Address   string `mapstructure:"address"`
	TimeoutMs int    `mapstructure:"timeout_ms"`
}

// Config is the process-wide configuration, loaded once at startup and
// read-only for the process lifetime.
type Config struct {
	PollingIntervalMs int           `mapstructure:"polling_interval_ms"`
	CommitIntervalMs  int           `mapstructure:"commit_interval_ms"`
	ShutdownTimeoutMs int           `mapstructure:"shutdown_timeout_ms"`
	Database          string        `mapstructure:"database"`
	Parameters        []string      `mapstructure:"parameters"`
	Gateway           GatewayConfig `mapstructure:"gateway"`
	Slots             []SlotConfig  `mapstructure:"slots"`
	Debug             bool          `mapstructure:"debug"`
	Verbose           bool          `mapstructure:"verbose"`
}

// Load reads configuration from flags, the HVMOND_CONFIG file (or
// hvmond.toml on the search path) and built-in defaults, validates it
// and sets the global log level. Flags win over file values.
func Load() (*Config, error) {
	errFactory := errors.New()

	fs := pflag.NewFlagSet("hvmond", pflag.ContinueOnError)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	configFlag := fs.String("config", "", "Path to configuration file")
	debugFlag := fs.Bool("debug", false, "Enable debugging mode")
	verboseFlag := fs.Bool("verbose", false, "Enable verbose logging")

	if err := fs.Parse(os.Args[1:]); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	v := viper.New()
	v.SetConfigName("hvmond")
	v.SetConfigType("toml")
	v.AddConfigPath("/etc")
	v.AddConfigPath(".")

	if path := os.Getenv("HVMOND_CONFIG"); path != "" {
		v.SetConfigFile(path)
	}
	if *configFlag != "" {
		v.SetConfigFile(*configFlag)
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errFactory.Wrap(errors.ErrReadConfig, err)
		}
	}

	// Command-line flags override file values
	fs.Visit(func(f *pflag.Flag) {
		v.Set(f.Name, f.Value.String())
	})

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	config.Debug = config.Debug || *debugFlag
	config.Verbose = config.Verbose || *verboseFlag

	if err := config.Validate(); err != nil {
		return nil, err
	}

	if config.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else if config.Verbose {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	}

	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("polling_interval_ms", defaultPollingIntervalMs)
	v.SetDefault("commit_interval_ms", defaultCommitIntervalMs)
	v.SetDefault("shutdown_timeout_ms", defaultShutdownTimeoutMs)
	v.SetDefault("database", defaultDatabase)
	v.SetDefault("parameters", crate.DefaultParameterNames())
	v.SetDefault("gateway.address", defaultGatewayAddress)
	v.SetDefault("gateway.timeout_ms", defaultGatewayTimeoutMs)

	// Reference crate layout; production deployments override this
	// with their own [[slots]] sections.
	v.SetDefault("slots", []map[string]any{
		{"slot": 1, "model": "A7030P", "channels": 48},
		{"slot": 4, "model": "A7435SN", "channels": 24},
		{"slot": 8, "model": "A7435SN", "channels": 24},
	})
}

// Validate fails fast on a configuration the engine cannot serve with.
func (c *Config) Validate() error {
	errFactory := errors.New()

	if c.PollingIntervalMs <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, struct {
			Field string
			Value int
		}{"polling_interval_ms", c.PollingIntervalMs})
	}
	if c.CommitIntervalMs <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, struct {
			Field string
			Value int
		}{"commit_interval_ms", c.CommitIntervalMs})
	}
	if c.Database == "" {
		return errFactory.WithMessage(errors.ErrMissingConfig, "database path is required")
	}
	if c.Gateway.Address == "" {
		return errFactory.WithMessage(errors.ErrMissingConfig, "gateway address is required")
	}
	if len(c.Slots) == 0 {
		return errFactory.WithMessage(errors.ErrInvalidCrate, "at least one slot must be declared")
	}
	if len(c.Parameters) == 0 {
		return errFactory.WithMessage(errors.ErrInvalidParams, "at least one parameter must be tracked")
	}

	return nil
}

// PollInterval returns the polling interval as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollingIntervalMs) * time.Millisecond
}

// CommitInterval returns the commit interval as a duration.
func (c *Config) CommitInterval() time.Duration {
	return time.Duration(c.CommitIntervalMs) * time.Millisecond
}

// ShutdownTimeout returns the bound on the final shutdown flush.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutMs) * time.Millisecond
}

// GatewayTimeout returns the device request timeout.
func (c *Config) GatewayTimeout() time.Duration {
	return time.Duration(c.Gateway.TimeoutMs) * time.Millisecond
}

// SlotDefs converts the configured slots into topology definitions.
func (c *Config) SlotDefs() []crate.SlotDef {
	defs := make([]crate.SlotDef, len(c.Slots))
	for i, s := range c.Slots {
		defs[i] = crate.SlotDef{
			Slot:     s.Slot,
			Model:    s.Model,
			Channels: s.Channels,
		}
	}

	return defs
}
