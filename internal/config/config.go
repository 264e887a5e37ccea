// Package config builds the node's flag set and resolves it, together with
// any config file and environment variables, into a Config via viper.
package config

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cast"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/LayerTwo-Labs/bitassetsd/internal/log"
)

const (
	DataDirKey        = "data-dir"
	ConfigFileKey     = "config-file"
	NetworkIDKey      = "network-id"
	MetricsAddrKey    = "metrics-addr"
	LogLevelKey       = "log-level"
	LogFileKey        = "log-file"
	MempoolMaxKey     = "mempool-max-size"
	DisplayVersionKey = "version"
)

// BuildFlagSet declares every flag the node accepts, with its default.
func BuildFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("bitassetsd", pflag.ContinueOnError)

	fs.String(DataDirKey, "./data", "Directory holding the node's ledger store")
	fs.String(ConfigFileKey, "", "Path to a YAML config file; flags take precedence over it")
	fs.Uint32(NetworkIDKey, 0, "Sidechain network id, reported in the startup log")
	fs.String(MetricsAddrKey, "127.0.0.1:9591", "Address the Prometheus /metrics endpoint binds")
	fs.String(LogLevelKey, "info", "Log level: debug, info, warn, error")
	fs.String(LogFileKey, "bitassetsd.log", "Rotated log file path")
	fs.Int(MempoolMaxKey, 50_000, "Maximum number of transactions the mempool admits")
	fs.Bool(DisplayVersionKey, false, "Display version information and exit")

	return fs
}

// BuildViper parses args against fs, binds every flag into a fresh Viper,
// and layers in a config file when one was provided. Returns pflag.ErrHelp
// unmodified when -h/--help was requested, for main to special-case.
func BuildViper(fs *pflag.FlagSet, args []string) (*viper.Viper, error) {
	if !fs.Parsed() {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
	}

	v := viper.New()
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("config: bind flags: %w", err)
	}
	v.SetEnvPrefix("BITASSETSD")
	v.AutomaticEnv()

	if path := v.GetString(ConfigFileKey); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read config file: %w", err)
		}
	}
	return v, nil
}

// Config is the node's fully resolved runtime configuration.
type Config struct {
	DataDir        string
	NetworkID      uint32
	MetricsAddr    string
	Log            log.Config
	MempoolMaxSize int
}

// rawConfig is the flat decode target viper unmarshals into; the flag keys
// double as the mapstructure field names.
type rawConfig struct {
	DataDir     string `mapstructure:"data-dir"`
	NetworkID   uint32 `mapstructure:"network-id"`
	MetricsAddr string `mapstructure:"metrics-addr"`
	LogLevel    string `mapstructure:"log-level"`
	LogFile     string `mapstructure:"log-file"`
}

// Get resolves v into a Config.
func Get(v *viper.Viper) (Config, error) {
	var raw rawConfig
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&raw, hook); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}

	logCfg := log.DefaultConfig()
	logCfg.Level = raw.LogLevel
	logCfg.FilePath = raw.LogFile

	cfg := Config{
		DataDir:     raw.DataDir,
		NetworkID:   raw.NetworkID,
		MetricsAddr: raw.MetricsAddr,
		Log:         logCfg,
		// An env override arrives as a string; cast handles either form.
		MempoolMaxSize: cast.ToInt(v.Get(MempoolMaxKey)),
	}
	if cfg.DataDir == "" {
		return Config{}, fmt.Errorf("config: %s must not be empty", DataDirKey)
	}
	if cfg.MempoolMaxSize <= 0 {
		return Config{}, fmt.Errorf("config: %s must be positive", MempoolMaxKey)
	}
	return cfg, nil
}

// DisplayVersionAndExit reports whether --version was passed, the one flag
// main.go checks before doing any further config resolution.
func DisplayVersionAndExit(v *viper.Viper) bool {
	return v.GetBool(DisplayVersionKey)
}

// shutdownGracePeriod bounds how long the node waits for in-flight work to
// drain before a forced exit.
const shutdownGracePeriod = 10 * time.Second

// ShutdownGracePeriod returns the grace period main.go waits for on signal.
func ShutdownGracePeriod() time.Duration { return shutdownGracePeriod }
