// Package watcher polls the ledger until a submitted transaction reaches a terminal state.
package watcher

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/raulk/clock"
	"go.uber.org/zap"

	"yieldScope/internal/chain"
	"yieldScope/internal/contract"
	"yieldScope/internal/metrics"
	"yieldScope/internal/model"
)

var (
	ErrReverted  = errors.New("transaction reverted")
	ErrTimeout   = errors.New("transaction not confirmed in time")
	ErrAbandoned = errors.New("watch abandoned")
)

var (
	DefaultInterval    = 2 * time.Second
	DefaultMaxAttempts = 60
	DefaultTimeout     = 120 * time.Second
)

type WatcherOpt func(w *Watcher)

func WithInterval(d time.Duration) WatcherOpt {
	return func(w *Watcher) {
		w.interval = d
	}
}

func WithMaxAttempts(n int) WatcherOpt {
	return func(w *Watcher) {
		w.maxAttempts = n
	}
}

// WithTimeout sets the hard ceiling on one poll loop, independent of attempts.
func WithTimeout(d time.Duration) WatcherOpt {
	return func(w *Watcher) {
		w.timeout = d
	}
}

func WithClock(clk clock.Clock) WatcherOpt {
	return func(w *Watcher) {
		w.clock = clk
	}
}

// WithSecondary adds an endpoint read in the same cycle whenever the gateway reports no receipt.
func WithSecondary(ep chain.Endpoint) WatcherOpt {
	return func(w *Watcher) {
		w.secondary = ep
	}
}

// WithAssetContract restricts id extraction to Transfer logs emitted by addr.
func WithAssetContract(addr common.Address) WatcherOpt {
	return func(w *Watcher) {
		w.asset = addr
	}
}

func WithLogger(logger *zap.Logger) WatcherOpt {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) WatcherOpt {
	return func(w *Watcher) {
		w.metrics = m
	}
}

// Watcher owns one poll loop per transaction hash.
type Watcher struct {
	gateway *chain.Gateway

	interval    time.Duration
	maxAttempts int
	timeout     time.Duration
	clock       clock.Clock
	secondary   chain.Endpoint
	asset       common.Address
	logger      *zap.Logger
	metrics     *metrics.Metrics

	mu       sync.Mutex
	inflight map[common.Hash]*poll
}

func NewWatcher(gateway *chain.Gateway, opts ...WatcherOpt) *Watcher {
	w := &Watcher{
		gateway:     gateway,
		interval:    DefaultInterval,
		maxAttempts: DefaultMaxAttempts,
		timeout:     DefaultTimeout,
		clock:       clock.New(),
		logger:      zap.NewNop(),
		inflight:    make(map[common.Hash]*poll),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.maxAttempts < 1 {
		w.maxAttempts = 1
	}
	return w
}

type poll struct {
	hash   common.Hash
	cancel context.CancelFunc
	done   chan struct{}
	refs   int

	result model.Confirmation
	err    error
}

// Task is one caller's hold on a poll loop.
type Task struct {
	w         *Watcher
	p         *poll
	once      sync.Once
	abandoned chan struct{}
}

// Start begins watching hash, or joins the loop already watching it.
func (w *Watcher) Start(hash common.Hash) *Task {
	w.mu.Lock()
	defer w.mu.Unlock()

	p, ok := w.inflight[hash]
	if !ok {
		ctx, cancel := context.WithCancel(context.Background())
		p = &poll{hash: hash, cancel: cancel, done: make(chan struct{})}
		w.inflight[hash] = p
		go w.run(ctx, p)
	} else {
		w.logger.Debug("joining in-flight watch", zap.String("tx", hash.Hex()))
	}
	p.refs++

	return &Task{w: w, p: p, abandoned: make(chan struct{})}
}

// Wait starts or joins a watch for hash and blocks until it ends or ctx is done.
func (w *Watcher) Wait(ctx context.Context, hash common.Hash) (model.Confirmation, error) {
	task := w.Start(hash)
	defer task.Cancel()
	return task.Wait(ctx)
}

// Hash returns the watched transaction hash.
func (t *Task) Hash() common.Hash {
	return t.p.hash
}

// Done is closed when the underlying poll loop has finished.
func (t *Task) Done() <-chan struct{} {
	return t.p.done
}

// Wait blocks until the transaction is terminal. A terminal confirmation is returned with a
// nil error; use Err to map it. Cancelling the task or ctx returns ErrAbandoned.
func (t *Task) Wait(ctx context.Context) (model.Confirmation, error) {
	select {
	case <-t.abandoned:
		return t.abandonedResult(), ErrAbandoned
	default:
	}

	select {
	case <-t.p.done:
		return t.p.result, t.p.err
	case <-t.abandoned:
		return t.abandonedResult(), ErrAbandoned
	case <-ctx.Done():
		t.Cancel()
		return t.abandonedResult(), ErrAbandoned
	}
}

// Cancel releases this hold. The poll loop stops once every holder has cancelled.
func (t *Task) Cancel() {
	t.once.Do(func() {
		close(t.abandoned)
		t.w.release(t.p)
	})
}

func (t *Task) abandonedResult() model.Confirmation {
	return model.Confirmation{TxHash: t.p.hash, State: model.StatePolling}
}

func (w *Watcher) release(p *poll) {
	w.mu.Lock()
	defer w.mu.Unlock()

	p.refs--
	if p.refs > 0 {
		return
	}
	p.cancel()
	if w.inflight[p.hash] == p {
		delete(w.inflight, p.hash)
	}
}

func (w *Watcher) finish(p *poll, result model.Confirmation, err error) {
	w.mu.Lock()
	if w.inflight[p.hash] == p {
		delete(w.inflight, p.hash)
	}
	w.mu.Unlock()

	p.result = result
	p.err = err
	close(p.done)
}

func (w *Watcher) run(ctx context.Context, p *poll) {
	defer p.cancel()

	log := w.logger.With(zap.String("tx", p.hash.Hex()))
	deadline := w.clock.Now().Add(w.timeout)
	conf := model.Confirmation{TxHash: p.hash, State: model.StateSubmitted}

	for attempt := 1; attempt <= w.maxAttempts; attempt++ {
		conf.State = model.StatePolling
		conf.Attempts = attempt

		outcome := w.attempt(ctx, p.hash, deadline)
		conf.Last = outcome
		if ctx.Err() != nil {
			log.Debug("watch abandoned", zap.Int("attempts", attempt))
			w.finish(p, conf, ErrAbandoned)
			return
		}

		switch outcome.Status {
		case model.ReceiptConfirmed:
			conf.State = model.StateConfirmed
			conf.AssetID = w.extractAssetID(outcome.Logs)
			w.complete(log, p, conf)
			return
		case model.ReceiptReverted:
			conf.State = model.StateFailed
			w.complete(log, p, conf)
			return
		case model.ReceiptUnreachable:
			log.Warn("receipt read failed", zap.Int("attempt", attempt), zap.Error(outcome.Err))
		}

		if attempt == w.maxAttempts {
			break
		}
		remaining := deadline.Sub(w.clock.Now())
		if remaining <= 0 {
			log.Info("hard timeout reached", zap.Int("attempts", attempt))
			break
		}
		if !w.sleep(ctx, minDuration(w.interval, remaining)) {
			w.finish(p, conf, ErrAbandoned)
			return
		}
	}

	conf.State = model.StateTimedOut
	w.complete(log, p, conf)
}

func (w *Watcher) complete(log *zap.Logger, p *poll, conf model.Confirmation) {
	fields := []zap.Field{zap.String("state", conf.State.String()), zap.Int("attempts", conf.Attempts)}
	if conf.AssetID != nil {
		fields = append(fields, zap.String("asset_id", conf.AssetID.String()))
	}
	log.Info("watch finished", fields...)
	w.metrics.ObserveConfirmation(conf.State.String(), conf.Attempts)
	w.finish(p, conf, nil)
}

// attempt performs one polling cycle: the gateway read plus the secondary endpoint when
// the gateway saw no receipt and the secondary was not the endpoint that answered.
func (w *Watcher) attempt(ctx context.Context, hash common.Hash, deadline time.Time) model.ReceiptOutcome {
	readCtx, cancel := context.WithTimeout(ctx, maxDuration(deadline.Sub(w.clock.Now()), time.Millisecond))
	defer cancel()

	outcome, _ := w.gateway.Receipt(readCtx, hash)
	if outcome.HasReceipt() || w.secondary == nil || ctx.Err() != nil {
		return outcome
	}

	name := w.secondary.Name()
	if name == outcome.Endpoint {
		return outcome
	}
	if outcome.Status == model.ReceiptUnreachable && w.gateway.Has(name) {
		return outcome
	}

	second, err := w.gateway.ReceiptFrom(readCtx, w.secondary, hash)
	if err != nil {
		if outcome.Status == model.ReceiptUnreachable {
			return second
		}
		return outcome
	}
	if second.HasReceipt() {
		w.logger.Debug("receipt seen by secondary endpoint", zap.String("tx", hash.Hex()), zap.String("endpoint", name))
	}
	return second
}

// extractAssetID returns the third argument of the first matching Transfer log.
func (w *Watcher) extractAssetID(logs []model.LogEntry) *big.Int {
	schema, err := contract.TransferSchema()
	if err != nil {
		w.logger.Error("transfer schema unavailable", zap.Error(err))
		return nil
	}
	for _, entry := range logs {
		if w.asset != (common.Address{}) && entry.Address != w.asset {
			continue
		}
		ev, ok := contract.Decode(schema, entry)
		if !ok {
			continue
		}
		if id, ok := contract.TransferTokenID(ev); ok {
			return id
		}
	}
	return nil
}

func (w *Watcher) sleep(ctx context.Context, d time.Duration) bool {
	timer := w.clock.Timer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// Err maps a terminal confirmation onto the watcher's sentinel errors.
func Err(conf model.Confirmation) error {
	switch conf.State {
	case model.StateConfirmed:
		return nil
	case model.StateFailed:
		return ErrReverted
	case model.StateTimedOut:
		return ErrTimeout
	default:
		return ErrAbandoned
	}
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}

func maxDuration(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}
