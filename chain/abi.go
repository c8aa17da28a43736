package chain

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Role identifies one of the deployed protocol contracts.
type Role string

const (
	RoleToken        Role = "token"
	RoleDelegation   Role = "delegation_manager"
	RoleReward       Role = "reward_manager"
	RoleBooster      Role = "reward_booster"
	RoleBondingCurve Role = "nft_bonding_curve"
	RoleActions      Role = "actions_manager"
)

// Roles lists every role in binding order.
var Roles = []Role{RoleToken, RoleDelegation, RoleReward, RoleBooster, RoleBondingCurve, RoleActions}

// Optional reports whether a deployment may omit the role.
func (r Role) Optional() bool {
	return r == RoleBooster || r == RoleBondingCurve
}

const tokenABI = `[
{"type":"function","name":"totalSupply","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"allowance","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"name","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
{"type":"function","name":"symbol","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
{"type":"function","name":"approve","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"value","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
{"type":"function","name":"transferFrom","stateMutability":"nonpayable","inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"value","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]}
]`

const delegationABI = `[
{"type":"function","name":"totalNetworkPStake","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"getAllValidators","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address[]"}]},
{"type":"function","name":"validators","stateMutability":"view","inputs":[{"name":"","type":"address"}],"outputs":[{"name":"isRegistered","type":"bool"},{"name":"selfStakeAmount","type":"uint256"},{"name":"selfStakeUnlockTime","type":"uint256"},{"name":"totalPStake","type":"uint256"},{"name":"totalDelegatedAmount","type":"uint256"}]},
{"type":"function","name":"userTotalPStake","stateMutability":"view","inputs":[{"name":"","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"getDelegationsOf","stateMutability":"view","inputs":[{"name":"_user","type":"address"}],"outputs":[{"name":"","type":"tuple[]","components":[{"name":"amount","type":"uint256"},{"name":"unlockTime","type":"uint256"},{"name":"lockDuration","type":"uint256"},{"name":"validator","type":"address"}]}]},
{"type":"function","name":"pendingDelegatorRewards","stateMutability":"view","inputs":[{"name":"_user","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"DELEGATION_FEE_BIPS","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"VALIDATOR_LOCK_DURATION","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"hasPaidRegistrationFee","stateMutability":"view","inputs":[{"name":"","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
{"type":"function","name":"getDelegationPStake","stateMutability":"view","inputs":[{"name":"_delegator","type":"address"},{"name":"_index","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"MIN_LOCK_DURATION","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"MAX_LOCK_DURATION","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"MINT_POOL","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"TGE_SUPPLY","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"getMinValidatorStake","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"payRegistrationFee","stateMutability":"nonpayable","inputs":[],"outputs":[]},
{"type":"function","name":"registerValidator","stateMutability":"nonpayable","inputs":[{"name":"_validatorAddress","type":"address"}],"outputs":[]},
{"type":"function","name":"delegate","stateMutability":"nonpayable","inputs":[{"name":"_validatorAddress","type":"address"},{"name":"_totalAmount","type":"uint256"},{"name":"_lockDuration","type":"uint256"}],"outputs":[]},
{"type":"function","name":"unstake","stateMutability":"nonpayable","inputs":[{"name":"_delegationIndex","type":"uint256"}],"outputs":[]},
{"type":"function","name":"forceUnstake","stateMutability":"nonpayable","inputs":[{"name":"_delegationIndex","type":"uint256"}],"outputs":[]},
{"type":"function","name":"claimDelegatorReward","stateMutability":"nonpayable","inputs":[],"outputs":[]}
]`

const rewardABI = `[
{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"tokenOfOwnerByIndex","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"index","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"vestingPositions","stateMutability":"view","inputs":[{"name":"","type":"uint256"}],"outputs":[{"name":"totalAmount","type":"uint256"},{"name":"startTime","type":"uint256"}]},
{"type":"function","name":"VESTING_DURATION","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"INITIAL_PENALTY_BIPS","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"tokenURI","stateMutability":"view","inputs":[{"name":"_tokenId","type":"uint256"}],"outputs":[{"name":"","type":"string"}]},
{"type":"function","name":"minerRewardsOwed","stateMutability":"view","inputs":[{"name":"","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"withdraw","stateMutability":"nonpayable","inputs":[{"name":"_tokenId","type":"uint256"}],"outputs":[]},
{"type":"function","name":"claimMinerRewards","stateMutability":"nonpayable","inputs":[],"outputs":[]},
{"type":"function","name":"createVestingCertificate","stateMutability":"nonpayable","inputs":[{"name":"_recipient","type":"address"},{"name":"_grossAmount","type":"uint256"}],"outputs":[]}
]`

const boosterABI = `[
{"type":"event","name":"Transfer","anonymous":false,"inputs":[{"name":"from","type":"address","indexed":true},{"name":"to","type":"address","indexed":true},{"name":"tokenId","type":"uint256","indexed":true}]},
{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"boostBips","stateMutability":"view","inputs":[{"name":"","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"tokenURI","stateMutability":"view","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"string"}]},
{"type":"function","name":"ownerOf","stateMutability":"view","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"address"}]},
{"type":"function","name":"getHighestBoost","stateMutability":"view","inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"approve","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"tokenId","type":"uint256"}],"outputs":[]}
]`

const bondingCurveABI = `[
{"type":"function","name":"pools","stateMutability":"view","inputs":[{"name":"","type":"uint256"}],"outputs":[{"name":"tokenBalance","type":"uint256"},{"name":"nftCount","type":"uint256"},{"name":"k","type":"uint256"},{"name":"isInitialized","type":"bool"}]},
{"type":"function","name":"getBuyPrice","stateMutability":"view","inputs":[{"name":"_boostBips","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"getSellPrice","stateMutability":"view","inputs":[{"name":"_boostBips","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"tokenIdToBoostBips","stateMutability":"view","inputs":[{"name":"","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"nftPurchaseTimestamp","stateMutability":"view","inputs":[{"name":"","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"LOCK_DURATION","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"buyNFT","stateMutability":"nonpayable","inputs":[{"name":"_boostBips","type":"uint256"},{"name":"_tokenId","type":"uint256"}],"outputs":[]},
{"type":"function","name":"sellNFT","stateMutability":"nonpayable","inputs":[{"name":"_tokenId","type":"uint256"}],"outputs":[]}
]`

const actionsABI = `[
{"type":"function","name":"actionCounter","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"actions","stateMutability":"view","inputs":[{"name":"","type":"uint256"}],"outputs":[{"name":"ID","type":"uint256"},{"name":"creator","type":"address"},{"name":"description","type":"string"},{"name":"actionType","type":"uint8"},{"name":"status","type":"uint8"},{"name":"endTime","type":"uint256"},{"name":"totalPot","type":"uint256"},{"name":"creatorStake","type":"uint256"},{"name":"isStakeReturned","type":"bool"},{"name":"beneficiary","type":"address"},{"name":"totalCoupons","type":"uint256"},{"name":"winner","type":"address"},{"name":"closingBlock","type":"uint256"},{"name":"winningCoupon","type":"uint256"}]},
{"type":"function","name":"getMinCreatorStake","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"createAction","stateMutability":"nonpayable","inputs":[{"name":"_duration","type":"uint256"},{"name":"_actionType","type":"uint8"},{"name":"_charityStake","type":"uint256"},{"name":"_description","type":"string"}],"outputs":[]},
{"type":"function","name":"participate","stateMutability":"nonpayable","inputs":[{"name":"_actionId","type":"uint256"},{"name":"_bkcAmount","type":"uint256"}],"outputs":[]},
{"type":"function","name":"finalizeAction","stateMutability":"nonpayable","inputs":[{"name":"_actionId","type":"uint256"}],"outputs":[]}
]`

var rawABIs = map[Role]string{
	RoleToken:        tokenABI,
	RoleDelegation:   delegationABI,
	RoleReward:       rewardABI,
	RoleBooster:      boosterABI,
	RoleBondingCurve: bondingCurveABI,
	RoleActions:      actionsABI,
}

var (
	abiOnce   sync.Once
	abiParsed map[Role]abi.ABI
	abiErr    error
)

// ABI returns the parsed interface for the role.
func ABI(role Role) (abi.ABI, error) {
	abiOnce.Do(func() {
		abiParsed = make(map[Role]abi.ABI, len(rawABIs))
		for r, raw := range rawABIs {
			parsed, err := abi.JSON(strings.NewReader(raw))
			if err != nil {
				abiErr = fmt.Errorf("parse %s abi: %w", r, err)
				return
			}
			abiParsed[r] = parsed
		}
	})
	if abiErr != nil {
		return abi.ABI{}, abiErr
	}
	parsed, ok := abiParsed[role]
	if !ok {
		return abi.ABI{}, fmt.Errorf("chain: unknown contract role %q", role)
	}
	return parsed, nil
}
