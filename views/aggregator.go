// Package views composes resilient contract reads into per-page view models.
// Every call re-reads the chain; only booster holdings and vesting
// certificate lists are cached, and those only until Reset.
package views

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"backchain/chain"
	"backchain/chain/resilient"
	"backchain/config"
	"backchain/metadata"
	"backchain/observability"
)

// HandleSource yields the active handle set. *wallet.Connector satisfies it.
type HandleSource interface {
	Handles() *chain.HandleSet
}

// Option customises an Aggregator.
type Option func(*Aggregator)

// WithReader supplies the resilient reader.
func WithReader(r *resilient.Reader) Option {
	return func(a *Aggregator) { a.reader = r }
}

// WithTiers overrides the booster tier catalogue.
func WithTiers(tiers []config.BoosterTier) Option {
	return func(a *Aggregator) { a.tiers = append([]config.BoosterTier(nil), tiers...) }
}

// WithFetcher supplies the NFT metadata fetcher. Without one, tier defaults
// are shown.
func WithFetcher(f *metadata.Fetcher) Option {
	return func(a *Aggregator) { a.fetcher = f }
}

// WithClock overrides the time source used for lock and status checks.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// WithLogger overrides the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Aggregator) { a.logger = logger }
}

// WithNetworkMetrics publishes dashboard figures as gauges.
func WithNetworkMetrics(m *observability.NetworkMetrics) Option {
	return func(a *Aggregator) { a.network = m }
}

// DefaultActionWindow bounds how many of the newest actions one listing reads.
const DefaultActionWindow = 500

// WithActionWindow overrides DefaultActionWindow. Non-positive values keep
// the default.
func WithActionWindow(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.actionWindow = uint64(n)
		}
	}
}

// WithoutCaches reads booster and certificate holdings from the chain on
// every call. Long-running multi-account readers such as the gateway use it,
// since nothing there resets the caches after holdings change.
func WithoutCaches() Option {
	return func(a *Aggregator) {
		a.boosters = nil
		a.certificates = nil
	}
}

// Aggregator builds view models from the active handles.
type Aggregator struct {
	source  HandleSource
	reader  *resilient.Reader
	tiers   []config.BoosterTier
	fetcher *metadata.Fetcher
	network *observability.NetworkMetrics
	logger  *slog.Logger
	now     func() time.Time

	actionWindow uint64

	boosters     *Cache[BoosterHolding]
	certificates *Cache[Certificate]
}

// New constructs an Aggregator over source.
func New(source HandleSource, opts ...Option) *Aggregator {
	a := &Aggregator{
		source:       source,
		tiers:        config.DefaultBoosterTiers(),
		logger:       slog.Default(),
		now:          time.Now,
		actionWindow: DefaultActionWindow,
		boosters:     NewCache[BoosterHolding](),
		certificates: NewCache[Certificate](),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	if a.now == nil {
		a.now = time.Now
	}
	if a.reader == nil {
		a.reader = resilient.NewReader(resilient.WithLogger(a.logger))
	}
	return a
}

// BoosterCache exposes the booster holdings cache for invalidation. It is
// nil when the aggregator was built WithoutCaches.
func (a *Aggregator) BoosterCache() *Cache[BoosterHolding] { return a.boosters }

// CertificateCache exposes the certificate list cache for invalidation.
func (a *Aggregator) CertificateCache() *Cache[Certificate] { return a.certificates }

// Refresh reloads the user-dependent views. It matches the orchestrator's
// refresh hook.
func (a *Aggregator) Refresh(ctx context.Context, user common.Address) error {
	_, err := a.UserView(ctx, user)
	return err
}

func (a *Aggregator) handles() *chain.HandleSet {
	if a.source == nil {
		return nil
	}
	return a.source.Handles()
}

func (a *Aggregator) tier(bips uint64) (config.BoosterTier, bool) {
	for _, t := range a.tiers {
		if t.BoostBips == bips {
			return t, true
		}
	}
	return config.BoosterTier{}, false
}

// Cache holds per-account lists until Reset. A nil *Cache stores nothing.
type Cache[T any] struct {
	mu      sync.Mutex
	entries map[common.Address][]T
}

// NewCache returns an empty cache.
func NewCache[T any]() *Cache[T] {
	return &Cache[T]{entries: make(map[common.Address][]T)}
}

// Get returns a copy of the cached list for owner.
func (c *Cache[T]) Get(owner common.Address) ([]T, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	list, ok := c.entries[owner]
	if !ok {
		return nil, false
	}
	return append([]T(nil), list...), true
}

// Put stores list for owner.
func (c *Cache[T]) Put(owner common.Address, list []T) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.entries[owner] = append([]T(nil), list...)
	c.mu.Unlock()
}

// Reset drops every entry.
func (c *Cache[T]) Reset() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.entries = make(map[common.Address][]T)
	c.mu.Unlock()
}
