package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

const DefaultPollInterval = 3 * time.Second

var ErrPollerRunning = errors.New("safeshipper: poller is already running")

type PollState int

const (
	PollIdle PollState = iota
	PollPolling
	PollTerminal
)

func (s PollState) String() string {
	switch s {
	case PollIdle:
		return "idle"
	case PollPolling:
		return "polling"
	case PollTerminal:
		return "terminal"
	}
	return "unknown"
}

// StatusFetcher is the read the poller repeats.
type StatusFetcher interface {
	GetManifestStatus(ctx context.Context, shipmentID string) (*ManifestStatusResponse, error)
}

// Poller watches one shipment until no manifest is still being processed.
// It moves Idle -> Polling -> Terminal; cancelling a running poll returns it
// to Idle. Fetch errors are recorded and retried on the next tick.
type Poller struct {
	fetcher    StatusFetcher
	shipmentID string
	interval   time.Duration
	log        *zap.Logger
	onUpdate   func(*ManifestStatusResponse)

	mu       sync.Mutex
	state    PollState
	latest   *ManifestStatusResponse
	lastErr  error
	failures int
	cancel   context.CancelFunc
	done     chan struct{}
}

type PollerOption func(*Poller)

func WithInterval(d time.Duration) PollerOption {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

func WithPollLogger(log *zap.Logger) PollerOption {
	return func(p *Poller) { p.log = log }
}

// WithOnUpdate registers a callback run after every successful fetch.
func WithOnUpdate(fn func(*ManifestStatusResponse)) PollerOption {
	return func(p *Poller) { p.onUpdate = fn }
}

func NewPoller(fetcher StatusFetcher, shipmentID string, opts ...PollerOption) *Poller {
	p := &Poller{
		fetcher:    fetcher,
		shipmentID: shipmentID,
		interval:   DefaultPollInterval,
		log:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Poller) State() PollState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Poller) Latest() *ManifestStatusResponse {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.latest
}

func (p *Poller) LastError() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

// Failures counts fetch errors since the poll started.
func (p *Poller) Failures() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failures
}

// Run polls until the aggregate status leaves analyzing/processing or ctx
// ends. The first fetch happens immediately. Run may be called again after
// it returns.
func (p *Poller) Run(ctx context.Context) (*ManifestStatusResponse, error) {
	if err := p.begin(); err != nil {
		return nil, err
	}
	return p.poll(ctx)
}

// begin claims the poller. Only one Run or Start may hold it at a time.
func (p *Poller) begin() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == PollPolling {
		return ErrPollerRunning
	}
	p.state = PollPolling
	p.lastErr = nil
	p.failures = 0
	return nil
}

func (p *Poller) poll(ctx context.Context) (*ManifestStatusResponse, error) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if resp, done := p.tick(ctx); done {
			return resp, nil
		}

		select {
		case <-ctx.Done():
			p.mu.Lock()
			p.state = PollIdle
			latest := p.latest
			p.mu.Unlock()
			return latest, ctx.Err()
		case <-ticker.C:
		}
	}
}

// tick performs one fetch and reports whether polling reached a terminal status.
func (p *Poller) tick(ctx context.Context) (*ManifestStatusResponse, bool) {
	resp, err := p.fetcher.GetManifestStatus(ctx, p.shipmentID)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false
		}
		p.mu.Lock()
		p.lastErr = err
		p.failures++
		failures := p.failures
		p.mu.Unlock()
		p.log.Warn("manifest status poll failed",
			zap.String("shipment_id", p.shipmentID),
			zap.Int("failures", failures),
			zap.Error(err))
		return nil, false
	}

	p.mu.Lock()
	p.latest = resp
	p.lastErr = nil
	if !resp.Active() {
		p.state = PollTerminal
	}
	terminal := p.state == PollTerminal
	p.mu.Unlock()

	if p.onUpdate != nil {
		p.onUpdate(resp)
	}
	if terminal {
		p.log.Info("manifest status settled",
			zap.String("shipment_id", p.shipmentID),
			zap.String("overall_status", resp.OverallStatus))
	}
	return resp, terminal
}

// Start runs the poll in a goroutine. Use Wait or Stop to collect it. It
// returns ErrPollerRunning while an earlier Start or Run is still polling.
func (p *Poller) Start(ctx context.Context) error {
	if err := p.begin(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	p.mu.Lock()
	p.cancel = cancel
	p.done = done
	p.mu.Unlock()

	go func() {
		defer close(done)
		defer cancel()
		if _, err := p.poll(ctx); err != nil && !errors.Is(err, context.Canceled) {
			p.mu.Lock()
			p.lastErr = err
			p.mu.Unlock()
		}
	}()
	return nil
}

// Wait blocks until a poll started with Start returns.
func (p *Poller) Wait() {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Stop cancels a poll started with Start and waits for it to exit.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	p.Wait()
}
