package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Contract is the ledger boundary: typed reads, signed writes and log scans
// against one deployed contract.
type Contract interface {
	Role() Role
	Address() common.Address
	// Call invokes a view method and decodes the result into out, which must
	// be a pointer to the Go type of the method outputs.
	Call(ctx context.Context, out any, method string, args ...any) error
	// Transact submits a state-changing call and returns once the node has
	// accepted the transaction.
	Transact(ctx context.Context, method string, args ...any) (*types.Transaction, error)
	// FilterLogs returns logs emitted by the contract matching topics.
	FilterLogs(ctx context.Context, topics [][]common.Hash) ([]types.Log, error)
}

// Backend is the RPC surface needed to bind contracts. *ethclient.Client
// satisfies it.
type Backend interface {
	bind.ContractBackend
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	ChainID(ctx context.Context) (*big.Int, error)
}

// Binding selects whether handles sign transactions or only read.
type Binding struct {
	Backend Backend
	// From is used as the sender of view calls. Zero when disconnected.
	From common.Address
	// Signer is nil for read-only bindings.
	Signer *bind.TransactOpts
}

// ReadOnly reports whether writes through this binding will be refused.
func (b Binding) ReadOnly() bool { return b.Signer == nil }

type boundContract struct {
	role     Role
	address  common.Address
	abi      abi.ABI
	contract *bind.BoundContract
	backend  Backend
	from     common.Address
	signer   *bind.TransactOpts
}

// Bind attaches the ABI for role to address over the binding.
func Bind(role Role, address common.Address, b Binding) (Contract, error) {
	if b.Backend == nil {
		return nil, fmt.Errorf("chain: bind %s: backend required", role)
	}
	parsed, err := ABI(role)
	if err != nil {
		return nil, err
	}
	return &boundContract{
		role:     role,
		address:  address,
		abi:      parsed,
		contract: bind.NewBoundContract(address, parsed, b.Backend, b.Backend, b.Backend),
		backend:  b.Backend,
		from:     b.From,
		signer:   b.Signer,
	}, nil
}

func (c *boundContract) Role() Role              { return c.role }
func (c *boundContract) Address() common.Address { return c.address }

func (c *boundContract) Call(ctx context.Context, out any, method string, args ...any) error {
	if _, ok := c.abi.Methods[method]; !ok {
		return fmt.Errorf("chain: %s has no method %q", c.role, method)
	}
	results := []any{out}
	return c.contract.Call(&bind.CallOpts{Context: ctx, From: c.from}, &results, method, args...)
}

func (c *boundContract) Transact(ctx context.Context, method string, args ...any) (*types.Transaction, error) {
	if c.signer == nil {
		return nil, ErrReadOnly
	}
	opts := *c.signer
	opts.Context = ctx
	return c.contract.Transact(&opts, method, args...)
}

func (c *boundContract) FilterLogs(ctx context.Context, topics [][]common.Hash) ([]types.Log, error) {
	return c.backend.FilterLogs(ctx, filterQuery(c.address, topics))
}
