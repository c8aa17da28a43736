package chaintest

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"backchain/chain"
)

var (
	TokenAddress        = common.HexToAddress("0x00000000000000000000000000000000000b0c01")
	DelegationAddress   = common.HexToAddress("0x00000000000000000000000000000000000b0c02")
	RewardAddress       = common.HexToAddress("0x00000000000000000000000000000000000b0c03")
	BoosterAddress      = common.HexToAddress("0x00000000000000000000000000000000000b0c04")
	BondingCurveAddress = common.HexToAddress("0x00000000000000000000000000000000000b0c05")
	ActionsAddress      = common.HexToAddress("0x00000000000000000000000000000000000b0c06")
)

// Token is an ERC-20 with in-memory balances and allowances.
type Token struct {
	*Contract

	mu         sync.Mutex
	supply     *big.Int
	balances   map[common.Address]*big.Int
	allowances map[[2]common.Address]*big.Int
}

// NewToken installs ERC-20 handlers on a fresh contract.
func NewToken(l *Ledger, address common.Address) *Token {
	t := &Token{
		Contract:   l.NewContract(chain.RoleToken, address),
		supply:     new(big.Int),
		balances:   make(map[common.Address]*big.Int),
		allowances: make(map[[2]common.Address]*big.Int),
	}
	t.OnCall("totalSupply", func(...any) (any, error) {
		t.mu.Lock()
		defer t.mu.Unlock()
		return new(big.Int).Set(t.supply), nil
	})
	t.OnCall("balanceOf", func(args ...any) (any, error) {
		return t.BalanceOf(args[0].(common.Address)), nil
	})
	t.OnCall("allowance", func(args ...any) (any, error) {
		return t.Allowance(args[0].(common.Address), args[1].(common.Address)), nil
	})
	t.OnTransact("approve", func(from common.Address, args ...any) error {
		value, ok := args[1].(*big.Int)
		if !ok {
			return fmt.Errorf("approve: value must be *big.Int, got %T", args[1])
		}
		t.SetAllowance(from, args[0].(common.Address), value)
		return nil
	})
	return t
}

// SetSupply sets totalSupply.
func (t *Token) SetSupply(v *big.Int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.supply = new(big.Int).Set(v)
}

// SetBalance sets the balance of owner.
func (t *Token) SetBalance(owner common.Address, v *big.Int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.balances[owner] = new(big.Int).Set(v)
}

// BalanceOf returns the balance of owner.
func (t *Token) BalanceOf(owner common.Address) *big.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if v, ok := t.balances[owner]; ok {
		return new(big.Int).Set(v)
	}
	return new(big.Int)
}

// SetAllowance sets the allowance owner grants spender.
func (t *Token) SetAllowance(owner, spender common.Address, v *big.Int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.allowances[[2]common.Address{owner, spender}] = new(big.Int).Set(v)
}

// Allowance returns the allowance owner grants spender.
func (t *Token) Allowance(owner, spender common.Address) *big.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if v, ok := t.allowances[[2]common.Address{owner, spender}]; ok {
		return new(big.Int).Set(v)
	}
	return new(big.Int)
}

// Deployment is a full set of fake protocol contracts sharing one ledger.
type Deployment struct {
	*Ledger
	Token        *Token
	Delegation   *Contract
	Reward       *Contract
	Booster      *Contract
	BondingCurve *Contract
	Actions      *Contract
}

// NewDeployment creates every contract with no handlers besides the token's.
func NewDeployment(user common.Address) *Deployment {
	l := NewLedger(user)
	return &Deployment{
		Ledger:       l,
		Token:        NewToken(l, TokenAddress),
		Delegation:   l.NewContract(chain.RoleDelegation, DelegationAddress),
		Reward:       l.NewContract(chain.RoleReward, RewardAddress),
		Booster:      l.NewContract(chain.RoleBooster, BoosterAddress),
		BondingCurve: l.NewContract(chain.RoleBondingCurve, BondingCurveAddress),
		Actions:      l.NewContract(chain.RoleActions, ActionsAddress),
	}
}

// Addresses returns the role map for the deployment.
func (d *Deployment) Addresses() chain.Addresses {
	return chain.Addresses{
		chain.RoleToken:        TokenAddress,
		chain.RoleDelegation:   DelegationAddress,
		chain.RoleReward:       RewardAddress,
		chain.RoleBooster:      BoosterAddress,
		chain.RoleBondingCurve: BondingCurveAddress,
		chain.RoleActions:      ActionsAddress,
	}
}

// Handles returns a signer-bound handle set.
func (d *Deployment) Handles() *chain.HandleSet {
	return chain.Assemble(false, d.Token.Contract, d.Delegation, d.Reward, d.Booster, d.BondingCurve, d.Actions)
}

// ReadOnlyHandles returns a handle set refusing writes.
func (d *Deployment) ReadOnlyHandles() *chain.HandleSet {
	return chain.Assemble(true,
		d.Token.ReadOnly(),
		d.Delegation.ReadOnly(),
		d.Reward.ReadOnly(),
		d.Booster.ReadOnly(),
		d.BondingCurve.ReadOnly(),
		d.Actions.ReadOnly(),
	)
}
