// Package config loads the configuration of the netcheck command: defaults, then an optional config file,
// environment variables (prefixed with NETCHECK_) and flags, in increasing order of precedence.
package config

import (
	"strings"

	"github.com/gomlx/netbuilder/backends"
	"github.com/gomlx/netbuilder/optest"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix of the environment variables, e.g. NETCHECK_TARGET or NETCHECK_NO_COLOR.
const EnvPrefix = "NETCHECK"

// Config keys match the flag names, so the same names are used in config files.
type Config struct {
	Target string   `mapstructure:"target"`
	Seed   uint64   `mapstructure:"seed"`
	Cases  []string `mapstructure:"cases"`
	Grads  bool     `mapstructure:"grads"`

	// Atol and Rtol override the default tolerance of each dtype. Negative values mean "use the default".
	Atol float64 `mapstructure:"atol"`
	Rtol float64 `mapstructure:"rtol"`

	NoColor  bool `mapstructure:"no-color"`
	Progress bool `mapstructure:"progress"`
}

type LoadOptions struct {
	Cmd        flagBinder
	ConfigFile string
	Defaults   Config
}

type flagBinder interface {
	Flags() *pflag.FlagSet
}

func DefaultConfig() Config {
	return Config{
		Target: backends.HostPlatform,
		Seed:   42,
		Grads:  true,
		Atol:   -1,
		Rtol:   -1,
	}
}

func RegisterFlags(fs *pflag.FlagSet, defaults Config) {
	fs.String("target", defaults.Target, "Target to run the candidate programs on: host, cpu, cuda or gpu, optionally with a device number (cuda:1)")
	fs.Uint64("seed", defaults.Seed, "Seed used to generate the inputs of the cases")
	fs.StringSlice("cases", defaults.Cases, "Names of the cases to run, all if empty")
	fs.Bool("grads", defaults.Grads, "Run the cases that check gradients")
	fs.Float64("atol", defaults.Atol, "Absolute tolerance, negative to use the default of the dtype")
	fs.Float64("rtol", defaults.Rtol, "Relative tolerance, negative to use the default of the dtype")
	fs.Bool("no-color", defaults.NoColor, "Disable colors in the report")
	fs.Bool("progress", defaults.Progress, "Show a progress bar on stderr while the cases run")
}

func Load(opts LoadOptions) (Config, error) {
	v := viper.New()

	setDefaults(v, opts.Defaults)
	if opts.Cmd != nil {
		if err := v.BindPFlags(opts.Cmd.Flags()); err != nil {
			return Config{}, errors.Wrap(err, "bind flags")
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errors.Wrap(err, "read config file")
		}
	} else {
		v.SetConfigName("netcheck")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, errors.Wrap(err, "read config file")
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "decode config")
	}
	if _, err := cfg.ParseTarget(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("target", c.Target)
	v.SetDefault("seed", c.Seed)
	v.SetDefault("cases", c.Cases)
	v.SetDefault("grads", c.Grads)
	v.SetDefault("atol", c.Atol)
	v.SetDefault("rtol", c.Rtol)
	v.SetDefault("no-color", c.NoColor)
	v.SetDefault("progress", c.Progress)
}

// ParseTarget parses the configured target.
func (c Config) ParseTarget() (backends.Target, error) {
	target, err := backends.ParseTarget(c.Target)
	if err != nil {
		return backends.Target{}, errors.WithMessage(err, "invalid configuration of target")
	}
	return target, nil
}

// Tolerance returns the configured tolerance override, or nil if none was configured. If only one of Atol or
// Rtol is set, the other one is 0.
func (c Config) Tolerance() *optest.Tolerance {
	if c.Atol < 0 && c.Rtol < 0 {
		return nil
	}
	return &optest.Tolerance{Atol: max(c.Atol, 0), Rtol: max(c.Rtol, 0)}
}
