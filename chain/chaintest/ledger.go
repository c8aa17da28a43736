// Package chaintest provides an in-memory ledger implementing chain.Contract
// for tests.
package chaintest

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"reflect"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"backchain/chain"
)

// ViewFunc answers a read call.
type ViewFunc func(args ...any) (any, error)

// WriteFunc applies a state-changing call. from is the signer address.
type WriteFunc func(from common.Address, args ...any) error

// Sent records a transaction accepted by the ledger.
type Sent struct {
	Role   chain.Role
	Method string
	Args   []any
	Hash   common.Hash
}

// Ledger sequences fake transactions and stores their receipts.
type Ledger struct {
	mu        sync.Mutex
	nonce     uint64
	block     uint64
	sent      []Sent
	receipts  map[common.Hash]*types.Receipt
	failMined map[string]bool
	user      common.Address
	reads     map[string]int
}

// NewLedger returns an empty ledger whose writes are signed by user.
func NewLedger(user common.Address) *Ledger {
	return &Ledger{
		user:      user,
		receipts:  make(map[common.Hash]*types.Receipt),
		failMined: make(map[string]bool),
		reads:     make(map[string]int),
		block:     1,
	}
}

// User returns the signing address.
func (l *Ledger) User() common.Address { return l.user }

// Sent returns a copy of every accepted transaction in submission order.
func (l *Ledger) Sent() []Sent {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Sent, len(l.sent))
	copy(out, l.sent)
	return out
}

// Methods returns the method names of accepted transactions.
func (l *Ledger) Methods() []string {
	sent := l.Sent()
	out := make([]string, len(sent))
	for i, s := range sent {
		out[i] = s.Method
	}
	return out
}

// Reads reports how many times method was read on role.
func (l *Ledger) Reads(role chain.Role, method string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reads[string(role)+"."+method]
}

// FailMined makes transactions for method mine with a failed status.
func (l *Ledger) FailMined(method string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failMined[method] = true
}

// WaitMined returns the stored receipt for tx.
func (l *Ledger) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	receipt, ok := l.receipts[tx.Hash()]
	if !ok {
		return nil, fmt.Errorf("chaintest: unknown transaction %s", tx.Hash().Hex())
	}
	return receipt, nil
}

func (l *Ledger) record(role chain.Role, to common.Address, method string, args []any) *types.Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    l.nonce,
		To:       &to,
		Gas:      21000,
		GasPrice: big.NewInt(1),
		Value:    new(big.Int),
		Data:     []byte(method),
	})
	l.nonce++
	l.block++
	status := types.ReceiptStatusSuccessful
	if l.failMined[method] {
		status = types.ReceiptStatusFailed
	}
	l.receipts[tx.Hash()] = &types.Receipt{
		Status:      status,
		TxHash:      tx.Hash(),
		BlockNumber: new(big.Int).SetUint64(l.block),
	}
	l.sent = append(l.sent, Sent{Role: role, Method: method, Args: args, Hash: tx.Hash()})
	return tx
}

func (l *Ledger) countRead(role chain.Role, method string) {
	l.mu.Lock()
	l.reads[string(role)+"."+method]++
	l.mu.Unlock()
}

// Contract is a programmable chain.Contract backed by a Ledger.
type Contract struct {
	ledger  *Ledger
	role    chain.Role
	address common.Address

	mu     sync.Mutex
	views  map[string]ViewFunc
	writes map[string]WriteFunc
	logs   []types.Log
}

var _ chain.Contract = (*Contract)(nil)

// NewContract registers a contract for role at address.
func (l *Ledger) NewContract(role chain.Role, address common.Address) *Contract {
	return &Contract{
		ledger:  l,
		role:    role,
		address: address,
		views:   make(map[string]ViewFunc),
		writes:  make(map[string]WriteFunc),
	}
}

// ReadOnly returns a view of c that refuses writes.
func (c *Contract) ReadOnly() chain.Contract {
	return readOnlyContract{c}
}

type readOnlyContract struct {
	*Contract
}

func (readOnlyContract) Transact(context.Context, string, ...any) (*types.Transaction, error) {
	return nil, chain.ErrReadOnly
}

func (c *Contract) Role() chain.Role        { return c.role }
func (c *Contract) Address() common.Address { return c.address }

// OnCall installs a read handler.
func (c *Contract) OnCall(method string, fn ViewFunc) *Contract {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.views[method] = fn
	return c
}

// Returns installs a read handler yielding a constant.
func (c *Contract) Returns(method string, value any) *Contract {
	return c.OnCall(method, func(...any) (any, error) { return value, nil })
}

// Fails installs a read handler yielding err.
func (c *Contract) Fails(method string, err error) *Contract {
	return c.OnCall(method, func(...any) (any, error) { return nil, err })
}

// OnTransact installs a write handler. Writes without a handler succeed.
func (c *Contract) OnTransact(method string, fn WriteFunc) *Contract {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes[method] = fn
	return c
}

// EmitTransfer appends an ERC-721 Transfer log.
func (c *Contract) EmitTransfer(from, to common.Address, tokenID int64, block uint64) *Contract {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logs = append(c.logs, types.Log{
		Address: c.address,
		Topics: []common.Hash{
			chain.TransferTopic,
			common.BytesToHash(from.Bytes()),
			common.BytesToHash(to.Bytes()),
			common.BigToHash(big.NewInt(tokenID)),
		},
		BlockNumber: block,
		Index:       uint(len(c.logs)),
	})
	return c
}

func (c *Contract) Call(ctx context.Context, out any, method string, args ...any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.ledger.countRead(c.role, method)
	c.mu.Lock()
	fn, ok := c.views[method]
	c.mu.Unlock()
	if !ok {
		return ErrEmpty
	}
	value, err := fn(args...)
	if err != nil {
		return err
	}
	return assign(out, value)
}

func (c *Contract) Transact(ctx context.Context, method string, args ...any) (*types.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	fn := c.writes[method]
	c.mu.Unlock()
	if fn != nil {
		if err := fn(c.ledger.user, args...); err != nil {
			return nil, err
		}
	}
	return c.ledger.record(c.role, c.address, method, args), nil
}

func (c *Contract) FilterLogs(ctx context.Context, topics [][]common.Hash) ([]types.Log, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []types.Log
	for _, log := range c.logs {
		if matchTopics(log.Topics, topics) {
			out = append(out, log)
		}
	}
	return out, nil
}

func matchTopics(have []common.Hash, want [][]common.Hash) bool {
	for i, options := range want {
		if len(options) == 0 {
			continue
		}
		if i >= len(have) {
			return false
		}
		matched := false
		for _, opt := range options {
			if have[i] == opt {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

func assign(out any, value any) error {
	dst := reflect.ValueOf(out)
	if dst.Kind() != reflect.Pointer || dst.IsNil() {
		return fmt.Errorf("chaintest: out must be a non-nil pointer, got %T", out)
	}
	if b, ok := value.(*big.Int); ok && b != nil {
		value = new(big.Int).Set(b)
	}
	src := reflect.ValueOf(value)
	if !src.IsValid() {
		dst.Elem().Set(reflect.Zero(dst.Elem().Type()))
		return nil
	}
	if !src.Type().AssignableTo(dst.Elem().Type()) {
		return fmt.Errorf("abi: cannot unmarshal %s in to %s", src.Type(), dst.Elem().Type())
	}
	dst.Elem().Set(src)
	return nil
}

// ErrEmpty mimics a call against an address without the method.
var ErrEmpty = errors.New("abi: attempting to unmarshal an empty string while arguments are expected")

// ErrNoCode mimics a call against an address without contract code.
var ErrNoCode = bind.ErrNoCode

// RevertError is a node error carrying ABI-encoded Error(string) data.
type RevertError struct {
	reason string
	data   string
}

// Revert builds the error a node returns when a call reverts with reason.
func Revert(reason string) *RevertError {
	str, _ := abi.NewType("string", "", nil)
	packed, _ := abi.Arguments{{Type: str}}.Pack(reason)
	selector := []byte{0x08, 0xc3, 0x79, 0xa0}
	return &RevertError{reason: reason, data: hexutil.Encode(append(selector, packed...))}
}

func (e *RevertError) Error() string {
	return "execution reverted: " + e.reason
}

func (e *RevertError) ErrorCode() int { return 3 }

func (e *RevertError) ErrorData() interface{} { return e.data }

// NetworkError simulates a transport failure.
type NetworkError struct{ Msg string }

func (e NetworkError) Error() string {
	if strings.TrimSpace(e.Msg) == "" {
		return "dial tcp 127.0.0.1:8545: connect: connection refused"
	}
	return e.Msg
}

// Rejected is the error a wallet returns when the user declines signing.
type Rejected struct{}

func (Rejected) Error() string  { return "user rejected transaction" }
func (Rejected) ErrorCode() int { return 4001 }
