package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"yieldScope/internal/chain"
	"yieldScope/internal/config"
	"yieldScope/internal/metrics"
	"yieldScope/internal/storage"
	"yieldScope/internal/storage/postgres"
)

// ledger bundles the dialed endpoints of one command run.
type ledger struct {
	gateway   *chain.Gateway
	clients   []*chain.Client
	secondary *chain.Client
	metrics   *metrics.Metrics
	server    *http.Server
	logger    *zap.Logger
}

func dialLedger(ctx context.Context, cfg config.LedgerConfig, logger *zap.Logger) (*ledger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	l := &ledger{metrics: metrics.New(reg), logger: logger}

	endpoints := make([]chain.Endpoint, 0, len(cfg.RPCs))
	for _, url := range cfg.RPCs {
		client, err := chain.NewClient(ctx, url)
		if err != nil {
			l.Close()
			return nil, fmt.Errorf("connect rpc: %w", err)
		}
		l.clients = append(l.clients, client)
		endpoints = append(endpoints, client)
	}

	if cfg.SecondaryRPC != "" {
		client, err := chain.NewClient(ctx, cfg.SecondaryRPC)
		if err != nil {
			l.Close()
			return nil, fmt.Errorf("connect secondary rpc: %w", err)
		}
		l.secondary = client
	}

	gw, err := chain.NewGateway(endpoints, chain.WithLogger(logger), chain.WithMetrics(l.metrics))
	if err != nil {
		l.Close()
		return nil, err
	}
	l.gateway = gw

	if cfg.MetricsAddr != "" {
		l.server = &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := l.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warn("metrics listener stopped", zap.Error(err))
			}
		}()
		logger.Info("metrics listening", zap.String("addr", cfg.MetricsAddr))
	}

	return l, nil
}

// Primary returns the first dialed client, used for signing.
func (l *ledger) Primary() *chain.Client {
	return l.clients[0]
}

// secondaryEndpoint returns nil when no secondary rpc is configured.
func (l *ledger) secondaryEndpoint() chain.Endpoint {
	if l.secondary == nil {
		return nil
	}
	return l.secondary
}

func (l *ledger) Close() {
	if l.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = l.server.Shutdown(ctx)
		cancel()
	}
	for _, client := range l.clients {
		client.Close()
	}
	if l.secondary != nil {
		l.secondary.Close()
	}
}

// openSink builds the configured result sinks.
func openSink(ctx context.Context, out, dsn string, logger *zap.Logger) (storage.Sink, func(), error) {
	var sinks storage.Multi
	closeFn := func() {}

	if out != "" {
		sinks = append(sinks, storage.NewJsonlStorage(out))
	}
	if dsn != "" {
		store, err := postgres.NewStore(ctx, dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := store.Migrate(ctx); err != nil {
			store.Close()
			return nil, nil, err
		}
		sinks = append(sinks, store)
		closeFn = store.Close
		logger.Info("postgres sink enabled")
	}
	return sinks, closeFn, nil
}
