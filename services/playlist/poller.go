package playlist

import (
	"context"
	"log"
	"slices"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"

	"slideflow/models"
)

const (
	// maxConcurrentFetches bounds parallel channel requests per poll.
	maxConcurrentFetches = 4

	// DefaultPollFloor is the minimum poll cadence regardless of how short
	// the slideshow interval is.
	DefaultPollFloor = 10 * time.Second
)

// Fetcher retrieves one channel's listing. Implemented by source.Client.
type Fetcher interface {
	FetchChannel(ctx context.Context, channel, credential string) models.ChannelResult
}

// TokenSource supplies the freshest provider credential. Implemented by
// tokenbroker.Broker. The poller reads it immediately before each poll and
// never caches the value.
type TokenSource interface {
	GetValidAccessToken(ctx context.Context) (string, bool)
}

// Poller periodically fetches all configured channels, aggregates the
// results into a fresh snapshot, and hands it to subscribers. Each poll
// replaces the previous snapshot wholesale.
type Poller struct {
	fetcher Fetcher
	tokens  TokenSource

	mu        sync.RWMutex
	channels  []string
	cadence   time.Duration
	floor     time.Duration
	snapshot  models.PlaylistSnapshot
	listeners []func(models.PlaylistSnapshot)

	running bool
	kick    chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewPoller creates a poller. floor <= 0 uses DefaultPollFloor.
func NewPoller(fetcher Fetcher, tokens TokenSource, floor time.Duration) *Poller {
	if floor <= 0 {
		floor = DefaultPollFloor
	}
	return &Poller{
		fetcher: fetcher,
		tokens:  tokens,
		floor:   floor,
		cadence: 2 * floor,
		kick:    make(chan struct{}, 1),
	}
}

// Subscribe registers fn to receive every new snapshot. Must be called
// before Start.
func (p *Poller) Subscribe(fn func(models.PlaylistSnapshot)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, fn)
}

// Snapshot returns the most recent snapshot.
func (p *Poller) Snapshot() models.PlaylistSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snapshot
}

// SetChannels replaces the channel list and schedules an immediate poll.
func (p *Poller) SetChannels(channels []string) {
	p.mu.Lock()
	p.channels = append([]string(nil), channels...)
	p.mu.Unlock()
	p.requestPoll()
}

// Refresh schedules an immediate poll without changing configuration.
func (p *Poller) Refresh() {
	p.requestPoll()
}

// SetSlideInterval derives the poll cadence from the slideshow interval:
// 2x the interval, floored.
func (p *Poller) SetSlideInterval(interval time.Duration) {
	cadence := 2 * interval
	if cadence < p.floor {
		cadence = p.floor
	}
	p.mu.Lock()
	p.cadence = cadence
	p.mu.Unlock()
}

// Start begins the background poll loop and performs an initial poll.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.ctx, p.cancel = context.WithCancel(ctx)
	p.mu.Unlock()

	p.wg.Add(1)
	go p.loop()
	p.requestPoll()
}

// Stop cancels the poll loop and waits for it to exit.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	cancel := p.cancel
	p.mu.Unlock()

	cancel()
	p.wg.Wait()
}

func (p *Poller) requestPoll() {
	select {
	case p.kick <- struct{}{}:
	default:
	}
}

func (p *Poller) loop() {
	defer p.wg.Done()

	for {
		p.mu.RLock()
		cadence := p.cadence
		p.mu.RUnlock()

		timer := time.NewTimer(cadence)
		select {
		case <-p.ctx.Done():
			timer.Stop()
			return
		case <-p.kick:
			timer.Stop()
		case <-timer.C:
		}
		p.pollOnce()
	}
}

// pollOnce fetches every configured channel and publishes a new snapshot.
func (p *Poller) pollOnce() {
	p.mu.RLock()
	channels := append([]string(nil), p.channels...)
	p.mu.RUnlock()

	if len(channels) == 0 {
		p.publish(models.PlaylistSnapshot{FetchedAt: time.Now().UTC()})
		return
	}

	// Credential gating: without a valid token no network call is made and
	// the snapshot tells the user to connect, not that fetching "errored".
	credential, ok := p.tokens.GetValidAccessToken(p.ctx)
	if !ok {
		log.Printf("[playlist] skipping poll: provider not connected")
		p.publish(models.PlaylistSnapshot{
			AllFailed: true,
			Warnings:  []string{"content provider not connected"},
			FetchedAt: time.Now().UTC(),
		})
		return
	}

	results := make([]models.ChannelResult, len(channels))
	fetchPool := pool.New().WithMaxGoroutines(maxConcurrentFetches)
	for i, channel := range channels {
		fetchPool.Go(func() {
			results[i] = p.fetcher.FetchChannel(p.ctx, channel, credential)
		})
	}
	fetchPool.Wait()

	snapshot := BuildSnapshot(results, time.Now().UTC())
	for _, w := range snapshot.Warnings {
		log.Printf("[playlist] channel warning: %s", w)
	}
	p.publish(snapshot)
}

func (p *Poller) publish(snapshot models.PlaylistSnapshot) {
	p.mu.Lock()
	p.snapshot = snapshot
	listeners := slices.Clone(p.listeners)
	p.mu.Unlock()

	for _, fn := range listeners {
		fn(snapshot)
	}
}
