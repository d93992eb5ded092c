package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "yieldscope",
		Short:        "Transaction confirmation and yield reconciliation for tokenized assets",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Wait for a transaction to confirm and report the minted asset id",
		RunE:  runWatch,
	}
	addLedgerFlags(watchCmd.Flags())
	addPollFlags(watchCmd.Flags())
	watchCmd.Flags().String("tx", "", "transaction hash (0x prefix optional)")
	watchCmd.Flags().String("mint-response", "", "backend mint response JSON file; its txId is watched")
	watchCmd.Flags().String("out", "-", "output JSONL path, - for stdout")
	watchCmd.Flags().String("pg-dsn", "", "Postgres DSN for watch results")
	root.AddCommand(watchCmd)

	reconcileCmd := &cobra.Command{
		Use:   "reconcile",
		Short: "List owned assets and claimable yield for an account",
		RunE:  runReconcile,
	}
	addLedgerFlags(reconcileCmd.Flags())
	addScanFlags(reconcileCmd.Flags())
	reconcileCmd.Flags().String("out", "-", "output JSONL path, - for stdout")
	reconcileCmd.Flags().String("pg-dsn", "", "Postgres DSN for snapshots")
	root.AddCommand(reconcileCmd)

	claimCmd := &cobra.Command{
		Use:   "claim",
		Short: "Claim yield for one asset, wait for confirmation and reconcile again",
		RunE:  runClaim,
	}
	addLedgerFlags(claimCmd.Flags())
	addScanFlags(claimCmd.Flags())
	addPollFlags(claimCmd.Flags())
	claimCmd.Flags().String("asset-id", "", "asset id to claim")
	claimCmd.Flags().String("private-key", "", "hex private key of the account (prefer YIELDSCOPE_PRIVATE_KEY)")
	claimCmd.Flags().Int64("chain-id", 0, "chain id for signing, 0 asks the rpc")
	claimCmd.Flags().String("out", "-", "output JSONL path, - for stdout")
	claimCmd.Flags().String("pg-dsn", "", "Postgres DSN for results")
	root.AddCommand(claimCmd)

	decodeCmd := &cobra.Command{
		Use:   "decode-receipt",
		Short: "Decode the known events in a transaction receipt",
		RunE:  runDecodeReceipt,
	}
	addLedgerFlags(decodeCmd.Flags())
	decodeCmd.Flags().String("tx", "", "transaction hash (0x prefix optional)")
	decodeCmd.Flags().String("out", "-", "output JSONL path, - for stdout")
	root.AddCommand(decodeCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addLedgerFlags(flags *pflag.FlagSet) {
	flags.StringSlice("rpc", nil, "ledger RPC URLs, first is primary (comma-separated)")
	flags.String("secondary-rpc", "", "wallet-bound RPC consulted when the gateway sees no receipt")
	flags.String("asset-contract", "", "asset (ERC-721) contract address")
	flags.String("yield-contract", "", "yield distributor contract address")
	flags.Uint8("decimals", 18, "decimal exponent of yield amounts")
	flags.String("metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9102)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
}

func addScanFlags(flags *pflag.FlagSet) {
	flags.String("account", "", "account address to reconcile")
	flags.Uint64("window", 50000, "blocks scanned back from the head, 0 scans from genesis")
	flags.Uint64("log-batch", 10000, "blocks per eth_getLogs request")
	flags.Int("concurrency", 4, "concurrent candidate reads")
	flags.String("ipfs-gateway", "https://ipfs.io", "gateway used for ipfs:// metadata locators")
	flags.Duration("metadata-timeout", 10*time.Second, "timeout per metadata request")
}

func addPollFlags(flags *pflag.FlagSet) {
	flags.Duration("poll-interval", 2*time.Second, "delay between receipt polls")
	flags.Int("max-attempts", 60, "receipt polls before timing out")
	flags.Duration("timeout", 120*time.Second, "hard ceiling on one watch")
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
