package chain

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Addresses maps each role to its deployed address. Optional roles may be
// absent.
type Addresses map[Role]common.Address

// HandleSet holds one bound contract per configured role. A set is either
// entirely signer-bound or entirely read-only.
type HandleSet struct {
	readOnly bool
	handles  map[Role]Contract
}

// NewHandleSet binds every address in addrs. Required roles must be present.
func NewHandleSet(addrs Addresses, b Binding) (*HandleSet, error) {
	contracts := make([]Contract, 0, len(Roles))
	for _, role := range Roles {
		addr, ok := addrs[role]
		if !ok || addr == (common.Address{}) {
			if role.Optional() {
				continue
			}
			return nil, fmt.Errorf("chain: address for %s is required", role)
		}
		c, err := Bind(role, addr, b)
		if err != nil {
			return nil, err
		}
		contracts = append(contracts, c)
	}
	return Assemble(b.ReadOnly(), contracts...), nil
}

// Assemble groups already-bound contracts into a set.
func Assemble(readOnly bool, contracts ...Contract) *HandleSet {
	set := &HandleSet{readOnly: readOnly, handles: make(map[Role]Contract, len(contracts))}
	for _, c := range contracts {
		if c != nil {
			set.handles[c.Role()] = c
		}
	}
	return set
}

// ReadOnly reports whether the set was bound without a signer.
func (h *HandleSet) ReadOnly() bool {
	return h == nil || h.readOnly
}

// Get returns the handle for role, if configured.
func (h *HandleSet) Get(role Role) (Contract, bool) {
	if h == nil {
		return nil, false
	}
	c, ok := h.handles[role]
	return c, ok
}

// Must returns the handle for role or ErrNoHandle.
func (h *HandleSet) Must(role Role) (Contract, error) {
	c, ok := h.Get(role)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoHandle, role)
	}
	return c, nil
}

func (h *HandleSet) Token() Contract {
	c, _ := h.Get(RoleToken)
	return c
}

func (h *HandleSet) Delegation() Contract {
	c, _ := h.Get(RoleDelegation)
	return c
}

func (h *HandleSet) Reward() Contract {
	c, _ := h.Get(RoleReward)
	return c
}

func (h *HandleSet) Booster() Contract {
	c, _ := h.Get(RoleBooster)
	return c
}

func (h *HandleSet) BondingCurve() Contract {
	c, _ := h.Get(RoleBondingCurve)
	return c
}

func (h *HandleSet) Actions() Contract {
	c, _ := h.Get(RoleActions)
	return c
}
