// Package wallet connects a signing agent and binds contract handles for the
// active session.
package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"backchain/chain"
)

// StandardERC721 is the asset standard used for booster NFTs.
const StandardERC721 = "ERC721"

var (
	ErrNoProvider = errors.New("wallet: no signing agent configured")
	ErrNoAccount  = errors.New("wallet: signing agent exposes no account")
)

// Provider is the signing agent boundary.
type Provider interface {
	// Account returns the address that will sign transactions.
	Account(ctx context.Context) (common.Address, error)
	// ChainID reports the network the agent currently targets.
	ChainID(ctx context.Context) (*big.Int, error)
	// SwitchChain asks the agent to move to chainID.
	SwitchChain(ctx context.Context, chainID *big.Int) error
	// Transactor returns signing options bound to chainID.
	Transactor(ctx context.Context, chainID *big.Int) (*bind.TransactOpts, error)
	// WatchAsset asks the agent to track a token. It reports whether the
	// asset was newly added.
	WatchAsset(ctx context.Context, asset Asset) (bool, error)
}

// PassphraseFunc supplies the keystore passphrase on demand.
type PassphraseFunc func() (string, error)

// ChainReader reports the chain an RPC endpoint serves.
type ChainReader interface {
	ChainID(ctx context.Context) (*big.Int, error)
}

// KeystoreProvider signs with a local v3 keystore and targets the chain of
// its RPC endpoint. It cannot change networks; SwitchChain fails with
// chain.ErrWrongNetwork when the endpoint serves another chain.
type KeystoreProvider struct {
	client     ChainReader
	path       string
	passphrase PassphraseFunc
	watchlist  *Watchlist

	mu  sync.Mutex
	key *ecdsa.PrivateKey
}

// NewKeystoreProvider builds a provider. watchlist may be nil, in which case
// WatchAsset is refused.
func NewKeystoreProvider(client ChainReader, keystorePath string, passphrase PassphraseFunc, watchlist *Watchlist) *KeystoreProvider {
	return &KeystoreProvider{
		client:     client,
		path:       strings.TrimSpace(keystorePath),
		passphrase: passphrase,
		watchlist:  watchlist,
	}
}

func (p *KeystoreProvider) unlock() (*ecdsa.PrivateKey, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.key != nil {
		return p.key, nil
	}
	if p.path == "" {
		return nil, ErrNoAccount
	}
	pass := ""
	if p.passphrase != nil {
		v, err := p.passphrase()
		if err != nil {
			return nil, fmt.Errorf("wallet: passphrase: %w", err)
		}
		pass = v
	}
	key, err := LoadKeystore(p.path, pass)
	if err != nil {
		return nil, fmt.Errorf("wallet: unlock %s: %w", p.path, err)
	}
	p.key = key
	return key, nil
}

func (p *KeystoreProvider) Account(ctx context.Context) (common.Address, error) {
	key, err := p.unlock()
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(key.PublicKey), nil
}

func (p *KeystoreProvider) ChainID(ctx context.Context) (*big.Int, error) {
	if p.client == nil {
		return nil, errors.New("wallet: no rpc client")
	}
	return p.client.ChainID(ctx)
}

func (p *KeystoreProvider) SwitchChain(ctx context.Context, chainID *big.Int) error {
	current, err := p.ChainID(ctx)
	if err != nil {
		return err
	}
	if current.Cmp(chainID) != 0 {
		return fmt.Errorf("%w: endpoint serves chain %s, want %s", chain.ErrWrongNetwork, current, chainID)
	}
	return nil
}

func (p *KeystoreProvider) Transactor(ctx context.Context, chainID *big.Int) (*bind.TransactOpts, error) {
	key, err := p.unlock()
	if err != nil {
		return nil, err
	}
	return bind.NewKeyedTransactorWithChainID(key, chainID)
}

func (p *KeystoreProvider) WatchAsset(ctx context.Context, asset Asset) (bool, error) {
	if p.watchlist == nil {
		return false, errors.New("wallet: asset watch list not configured")
	}
	return p.watchlist.Add(asset)
}
