package wallet

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"

	"backchain/chain"
)

// Session is the connected-wallet context threaded through orchestrator and
// view operations.
type Session struct {
	User        common.Address
	ChainID     *big.Int
	Signer      *bind.TransactOpts
	Handles     *chain.HandleSet
	ConnectedAt time.Time
}

// Connected reports whether the session can sign.
func (s *Session) Connected() bool {
	return s != nil && s.Signer != nil && s.User != (common.Address{})
}

// Binder builds a handle set for a binding.
type Binder func(b chain.Binding) (*chain.HandleSet, error)

// Option customises a Connector.
type Option func(*Connector)

// WithBinder replaces contract binding, mainly for tests.
func WithBinder(b Binder) Option {
	return func(c *Connector) {
		if b != nil {
			c.binder = b
		}
	}
}

// WithLogger overrides the connector logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Connector) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock overrides the time source for session timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Connector) {
		if now != nil {
			c.now = now
		}
	}
}

// Connector owns the single active session and its contract handles. Before
// Connect, and after Disconnect, handles are bound read-only.
type Connector struct {
	backend  chain.Backend
	provider Provider
	chainID  *big.Int
	binder   Binder
	logger   *slog.Logger
	now      func() time.Time

	mu       sync.RWMutex
	session  *Session
	readOnly *chain.HandleSet
}

// NewConnector binds read-only handles over backend. provider may be nil for
// query-only use.
func NewConnector(backend chain.Backend, provider Provider, addrs chain.Addresses, chainID *big.Int, opts ...Option) (*Connector, error) {
	if chainID == nil || chainID.Sign() <= 0 {
		return nil, fmt.Errorf("wallet: chain id required")
	}
	c := &Connector{
		backend:  backend,
		provider: provider,
		chainID:  new(big.Int).Set(chainID),
		logger:   slog.Default(),
		now:      time.Now,
	}
	c.binder = func(b chain.Binding) (*chain.HandleSet, error) {
		return chain.NewHandleSet(addrs, b)
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	handles, err := c.binder(chain.Binding{Backend: backend})
	if err != nil {
		return nil, fmt.Errorf("wallet: bind read-only handles: %w", err)
	}
	c.readOnly = handles
	return c, nil
}

// Connect establishes a signing session: ensure the agent targets the
// configured chain, read the account, build a transactor and rebind every
// handle to it. Any failure leaves the connector disconnected.
func (c *Connector) Connect(ctx context.Context) (*Session, error) {
	if c.provider == nil {
		c.Disconnect()
		return nil, ErrNoProvider
	}
	session, err := c.connect(ctx)
	if err != nil {
		c.Disconnect()
		c.logger.Warn("wallet connection failed", slog.String("error", err.Error()))
		return nil, err
	}
	c.mu.Lock()
	c.session = session
	c.mu.Unlock()
	c.logger.Info("wallet connected",
		slog.String("user", session.User.Hex()),
		slog.String("chain_id", session.ChainID.String()))
	return session, nil
}

func (c *Connector) connect(ctx context.Context) (*Session, error) {
	current, err := c.provider.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("wallet: read chain id: %w", err)
	}
	if current.Cmp(c.chainID) != 0 {
		if err := c.provider.SwitchChain(ctx, c.chainID); err != nil {
			return nil, fmt.Errorf("wallet: switch to chain %s: %w", c.chainID, err)
		}
	}
	user, err := c.provider.Account(ctx)
	if err != nil {
		return nil, fmt.Errorf("wallet: request account: %w", err)
	}
	if user == (common.Address{}) {
		return nil, ErrNoAccount
	}
	signer, err := c.provider.Transactor(ctx, c.chainID)
	if err != nil {
		return nil, fmt.Errorf("wallet: build signer: %w", err)
	}
	handles, err := c.binder(chain.Binding{Backend: c.backend, From: user, Signer: signer})
	if err != nil {
		return nil, fmt.Errorf("wallet: bind signer handles: %w", err)
	}
	return &Session{
		User:        user,
		ChainID:     new(big.Int).Set(c.chainID),
		Signer:      signer,
		Handles:     handles,
		ConnectedAt: c.now(),
	}, nil
}

// Disconnect drops the session; handles revert to read-only.
func (c *Connector) Disconnect() {
	c.mu.Lock()
	had := c.session != nil
	c.session = nil
	c.mu.Unlock()
	if had {
		c.logger.Info("wallet disconnected")
	}
}

// Session returns the active session or nil.
func (c *Connector) Session() *Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// Handles returns the active handle set: signer-bound when connected,
// read-only otherwise.
func (c *Connector) Handles() *chain.HandleSet {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session != nil {
		return c.session.Handles
	}
	return c.readOnly
}

// WatchAsset forwards to the provider.
func (c *Connector) WatchAsset(ctx context.Context, asset Asset) (bool, error) {
	if c.provider == nil {
		return false, ErrNoProvider
	}
	return c.provider.WatchAsset(ctx, asset)
}
