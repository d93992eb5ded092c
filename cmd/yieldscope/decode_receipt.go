package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"yieldScope/internal/chain"
	"yieldScope/internal/config"
	"yieldScope/internal/contract"
	"yieldScope/internal/model"
)

type decodedLogLine struct {
	TxHash   string                 `json:"tx_hash"`
	LogIndex uint64                 `json:"log_index"`
	Address  string                 `json:"address"`
	Topic0   string                 `json:"topic0"`
	Event    string                 `json:"event,omitempty"`
	Args     map[string]interface{} `json:"args,omitempty"`
	Decoded  bool                   `json:"decoded"`
}

func runDecodeReceipt(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadWatch(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Ledger.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	hash, err := chain.ParseTxHash(cfg.TxHash)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	l, err := dialLedger(ctx, cfg.Ledger, logger)
	if err != nil {
		return err
	}
	defer l.Close()

	outcome, err := l.gateway.Receipt(ctx, hash)
	if err != nil {
		return err
	}
	if !outcome.HasReceipt() {
		return fmt.Errorf("no receipt for %s yet", hash.Hex())
	}

	out, err := newJSONLWriter(cfg.Out)
	if err != nil {
		return err
	}
	defer out.Close()

	var decoded int
	for _, entry := range outcome.Logs {
		line := decodeLine(entry)
		if line.Decoded {
			decoded++
		}
		if err := out.Write(line); err != nil {
			return err
		}
	}

	logger.Info("decode complete",
		zap.String("tx", hash.Hex()),
		zap.String("status", outcome.Status.String()),
		zap.Int("logs", len(outcome.Logs)),
		zap.Int("decoded", decoded),
	)
	return nil
}

func decodeLine(entry model.LogEntry) decodedLogLine {
	line := decodedLogLine{
		TxHash:   entry.TxHash.Hex(),
		LogIndex: entry.LogIndex,
		Address:  entry.Address.Hex(),
		Topic0:   entry.Topic0().Hex(),
	}
	ev, ok := contract.DecodeAny(entry)
	if !ok {
		return line
	}
	line.Decoded = true
	line.Event = ev.Name
	line.Args = make(map[string]interface{}, len(ev.Named))
	for name, value := range ev.Named {
		line.Args[name] = formatArg(value)
	}
	return line
}

func formatArg(value interface{}) interface{} {
	switch v := value.(type) {
	case *big.Int:
		return v.String()
	case common.Address:
		return v.Hex()
	default:
		return v
	}
}

type jsonlWriter struct {
	file   *os.File
	writer *bufio.Writer
}

func newJSONLWriter(path string) (*jsonlWriter, error) {
	if path == "" || path == "-" {
		return &jsonlWriter{writer: bufio.NewWriter(os.Stdout)}, nil
	}

	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create dir: %w", err)
		}
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	return &jsonlWriter{file: file, writer: bufio.NewWriter(file)}, nil
}

func (w *jsonlWriter) Write(value interface{}) error {
	line, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	if _, err := w.writer.Write(line); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := w.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("write newline: %w", err)
	}
	return nil
}

func (w *jsonlWriter) Close() error {
	if err := w.writer.Flush(); err != nil {
		if w.file != nil {
			w.file.Close()
		}
		return err
	}
	if w.file == nil {
		return nil
	}
	return w.file.Close()
}
