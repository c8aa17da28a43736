package chain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Struct field names below follow abi.ToCamelCase of the output names so
// multi-value returns decode directly into them.

// ValidatorRecord mirrors DelegationManager.validators(address).
type ValidatorRecord struct {
	IsRegistered         bool
	SelfStakeAmount      *big.Int
	SelfStakeUnlockTime  *big.Int
	TotalPStake          *big.Int
	TotalDelegatedAmount *big.Int
}

// EmptyValidator is the record reported for an unknown validator.
func EmptyValidator() ValidatorRecord {
	return ValidatorRecord{
		SelfStakeAmount:      new(big.Int),
		SelfStakeUnlockTime:  new(big.Int),
		TotalPStake:          new(big.Int),
		TotalDelegatedAmount: new(big.Int),
	}
}

// DelegationRecord is one element of getDelegationsOf. Tuple decoding is
// positional, so the field order must match the ABI components.
type DelegationRecord struct {
	Amount       *big.Int
	UnlockTime   *big.Int
	LockDuration *big.Int
	Validator    common.Address
}

// VestingPosition mirrors RewardManager.vestingPositions(tokenId).
type VestingPosition struct {
	TotalAmount *big.Int
	StartTime   *big.Int
}

// PoolRecord mirrors NFTBondingCurve.pools(boostBips).
type PoolRecord struct {
	TokenBalance  *big.Int
	NftCount      *big.Int
	K             *big.Int
	IsInitialized bool
}

// EmptyPool is the record reported for an uninitialised tier.
func EmptyPool() PoolRecord {
	return PoolRecord{TokenBalance: new(big.Int), NftCount: new(big.Int), K: new(big.Int)}
}

// ActionType enumerates ActionsManager action kinds.
type ActionType uint8

const (
	ActionSports ActionType = iota
	ActionCharity
)

func (t ActionType) String() string {
	switch t {
	case ActionSports:
		return "Sports"
	case ActionCharity:
		return "Charity"
	default:
		return "Unknown"
	}
}

// ActionStatus enumerates ActionsManager lifecycle states.
type ActionStatus uint8

const (
	ActionOpen ActionStatus = iota
	ActionFinalized
)

// ActionRecord mirrors ActionsManager.actions(id).
type ActionRecord struct {
	ID              *big.Int
	Creator         common.Address
	Description     string
	ActionType      uint8
	Status          uint8
	EndTime         *big.Int
	TotalPot        *big.Int
	CreatorStake    *big.Int
	IsStakeReturned bool
	Beneficiary     common.Address
	TotalCoupons    *big.Int
	Winner          common.Address
	ClosingBlock    *big.Int
	WinningCoupon   *big.Int
}

// EmptyAction is reported for ids that could not be read; callers drop it.
func EmptyAction() ActionRecord {
	return ActionRecord{
		ID:            new(big.Int),
		EndTime:       new(big.Int),
		TotalPot:      new(big.Int),
		CreatorStake:  new(big.Int),
		TotalCoupons:  new(big.Int),
		ClosingBlock:  new(big.Int),
		WinningCoupon: new(big.Int),
	}
}
