package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "YIELDSCOPE"

// LedgerConfig is shared by every command that talks to the ledger.
type LedgerConfig struct {
	RPCs          []string
	SecondaryRPC  string
	AssetContract string
	YieldContract string
	Decimals      uint8
	MetricsAddr   string
	LogLevel      string
}

// Validate checks the fields every ledger command needs.
func (c LedgerConfig) Validate() error {
	if len(c.RPCs) == 0 {
		return fmt.Errorf("at least one rpc endpoint is required")
	}
	return nil
}

// PollConfig controls the confirmation watcher.
type PollConfig struct {
	Interval    time.Duration
	MaxAttempts int
	Timeout     time.Duration
}

// WatchConfig holds configuration for the watch and decode-receipt commands.
type WatchConfig struct {
	Ledger       LedgerConfig
	Poll         PollConfig
	TxHash       string
	MintResponse string
	Out          string
	PGDSN        string
}

// ReconcileConfig holds configuration for the reconcile command.
type ReconcileConfig struct {
	Ledger          LedgerConfig
	Account         string
	Window          uint64
	LogBatch        uint64
	Concurrency     int
	IPFSGateway     string
	MetadataTimeout time.Duration
	Out             string
	PGDSN           string
}

func (c ReconcileConfig) Validate() error {
	if err := c.Ledger.Validate(); err != nil {
		return err
	}
	if c.Ledger.AssetContract == "" || c.Ledger.YieldContract == "" {
		return fmt.Errorf("asset-contract and yield-contract are required")
	}
	if c.Account == "" {
		return fmt.Errorf("account is required")
	}
	return nil
}

// ClaimConfig holds configuration for the claim command.
type ClaimConfig struct {
	Reconcile  ReconcileConfig
	Poll       PollConfig
	AssetID    string
	PrivateKey string
	ChainID    int64
}

func (c ClaimConfig) Validate() error {
	if err := c.Reconcile.Validate(); err != nil {
		return err
	}
	if c.AssetID == "" {
		return fmt.Errorf("asset-id is required")
	}
	if c.PrivateKey == "" {
		return fmt.Errorf("private-key is required")
	}
	return nil
}

// LoadWatch merges config file, environment variables, and flags into WatchConfig.
func LoadWatch(cfgFile string, flags *pflag.FlagSet) (WatchConfig, error) {
	v, err := load(cfgFile, flags, func(v *viper.Viper) {
		v.SetDefault("out", "-")
	})
	if err != nil {
		return WatchConfig{}, err
	}

	return WatchConfig{
		Ledger:       ledgerConfig(v),
		Poll:         pollConfig(v),
		TxHash:       v.GetString("tx"),
		MintResponse: v.GetString("mint-response"),
		Out:          v.GetString("out"),
		PGDSN:        v.GetString("pg-dsn"),
	}, nil
}

// LoadReconcile merges config file, environment variables, and flags into ReconcileConfig.
func LoadReconcile(cfgFile string, flags *pflag.FlagSet) (ReconcileConfig, error) {
	v, err := load(cfgFile, flags, func(v *viper.Viper) {
		v.SetDefault("out", "-")
	})
	if err != nil {
		return ReconcileConfig{}, err
	}
	return reconcileConfig(v), nil
}

// LoadClaim merges config file, environment variables, and flags into ClaimConfig.
func LoadClaim(cfgFile string, flags *pflag.FlagSet) (ClaimConfig, error) {
	v, err := load(cfgFile, flags, func(v *viper.Viper) {
		v.SetDefault("out", "-")
		v.SetDefault("chain-id", int64(0))
	})
	if err != nil {
		return ClaimConfig{}, err
	}

	return ClaimConfig{
		Reconcile:  reconcileConfig(v),
		Poll:       pollConfig(v),
		AssetID:    v.GetString("asset-id"),
		PrivateKey: v.GetString("private-key"),
		ChainID:    v.GetInt64("chain-id"),
	}, nil
}

func load(cfgFile string, flags *pflag.FlagSet, defaults func(v *viper.Viper)) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("decimals", 18)
	v.SetDefault("window", uint64(50000))
	v.SetDefault("log-batch", uint64(10000))
	v.SetDefault("concurrency", 4)
	v.SetDefault("poll-interval", 2*time.Second)
	v.SetDefault("max-attempts", 60)
	v.SetDefault("timeout", 120*time.Second)
	v.SetDefault("ipfs-gateway", "https://ipfs.io")
	v.SetDefault("metadata-timeout", 10*time.Second)
	v.SetDefault("log-level", "info")
	if defaults != nil {
		defaults(v)
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return v, nil
}

func ledgerConfig(v *viper.Viper) LedgerConfig {
	return LedgerConfig{
		RPCs:          getStringSlice(v, "rpc"),
		SecondaryRPC:  v.GetString("secondary-rpc"),
		AssetContract: v.GetString("asset-contract"),
		YieldContract: v.GetString("yield-contract"),
		Decimals:      uint8(v.GetUint("decimals")),
		MetricsAddr:   v.GetString("metrics-addr"),
		LogLevel:      v.GetString("log-level"),
	}
}

func pollConfig(v *viper.Viper) PollConfig {
	return PollConfig{
		Interval:    v.GetDuration("poll-interval"),
		MaxAttempts: v.GetInt("max-attempts"),
		Timeout:     v.GetDuration("timeout"),
	}
}

func reconcileConfig(v *viper.Viper) ReconcileConfig {
	return ReconcileConfig{
		Ledger:          ledgerConfig(v),
		Account:         v.GetString("account"),
		Window:          v.GetUint64("window"),
		LogBatch:        v.GetUint64("log-batch"),
		Concurrency:     v.GetInt("concurrency"),
		IPFSGateway:     v.GetString("ipfs-gateway"),
		MetadataTimeout: v.GetDuration("metadata-timeout"),
		Out:             v.GetString("out"),
		PGDSN:           v.GetString("pg-dsn"),
	}
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	return cleanStrings(strings.Split(input, ","))
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
