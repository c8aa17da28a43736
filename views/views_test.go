package views

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"

	"backchain/chain"
	"backchain/chain/chaintest"
)

var (
	testUser = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	testNow  = time.Unix(1_700_000_000, 0)
)

type staticHandles struct{ set *chain.HandleSet }

func (s staticHandles) Handles() *chain.HandleSet { return s.set }

func tokens(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e18))
}

func newTestAggregator(t *testing.T) (*Aggregator, *chaintest.Deployment) {
	t.Helper()
	d := chaintest.NewDeployment(testUser)
	agg := New(staticHandles{d.ReadOnlyHandles()}, WithClock(func() time.Time { return testNow }))
	return agg, d
}

func TestDashboardEstimatesSupplyFromTGE(t *testing.T) {
	agg, d := newTestAggregator(t)
	d.Token.Fails("totalSupply", chaintest.ErrEmpty)
	d.Delegation.Returns("TGE_SUPPLY", tokens(1_000_000))
	d.Delegation.Returns("MINT_POOL", tokens(200_000))
	d.Token.SetBalance(chaintest.DelegationAddress, tokens(150_000))
	d.Token.SetBalance(chaintest.BondingCurveAddress, tokens(100_000))

	view, err := agg.Dashboard(context.Background())
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if !view.SupplyEstimated {
		t.Fatalf("expected supply to be flagged as estimated")
	}
	if view.TotalSupply.Cmp(tokens(1_000_000)) != 0 {
		t.Fatalf("unexpected supply %s", view.TotalSupply)
	}
	if view.LockedPercent != 25 {
		t.Fatalf("expected 25%% locked, got %v", view.LockedPercent)
	}
	if view.RemainingMintable.Cmp(tokens(200_000)) != 0 {
		t.Fatalf("unexpected remaining %s", view.RemainingMintable)
	}
	if view.ScarcityBips != 10_000 {
		t.Fatalf("unexpected scarcity %d", view.ScarcityBips)
	}
}

func TestDashboardMintedSupply(t *testing.T) {
	agg, d := newTestAggregator(t)
	d.Token.SetSupply(tokens(1_050_000))
	d.Delegation.Returns("TGE_SUPPLY", tokens(1_000_000))
	d.Delegation.Returns("MINT_POOL", tokens(200_000))
	d.Delegation.Returns("totalNetworkPStake", big.NewInt(42))

	view, err := agg.Dashboard(context.Background())
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if view.SupplyEstimated {
		t.Fatalf("real supply must not be flagged")
	}
	if view.RemainingMintable.Cmp(tokens(150_000)) != 0 {
		t.Fatalf("unexpected remaining %s", view.RemainingMintable)
	}
	if view.ScarcityBips != 7_500 {
		t.Fatalf("unexpected scarcity %d", view.ScarcityBips)
	}
	if view.LockedPercent != 0 {
		t.Fatalf("nothing is locked, got %v", view.LockedPercent)
	}
	if view.TotalPStake.Int64() != 42 {
		t.Fatalf("unexpected pstake %s", view.TotalPStake)
	}
}

func TestDashboardPropagatesNetworkFailure(t *testing.T) {
	agg, d := newTestAggregator(t)
	d.Delegation.Fails("MINT_POOL", chaintest.NetworkError{})
	if _, err := agg.Dashboard(context.Background()); err == nil || chain.Classify(err) != chain.KindNetworkFailure {
		t.Fatalf("expected network failure, got %v", err)
	}
}

func TestDashboardValidators(t *testing.T) {
	agg, d := newTestAggregator(t)
	v1 := common.HexToAddress("0x0000000000000000000000000000000000000001")
	v2 := common.HexToAddress("0x0000000000000000000000000000000000000002")
	d.Delegation.Returns("getAllValidators", []common.Address{v1, v2})
	d.Delegation.OnCall("validators", func(args ...any) (any, error) {
		if args[0].(common.Address) == v2 {
			return nil, chaintest.Revert("unknown validator")
		}
		rec := chain.EmptyValidator()
		rec.IsRegistered = true
		rec.SelfStakeAmount = tokens(10)
		rec.TotalDelegatedAmount = tokens(5)
		return rec, nil
	})
	d.Delegation.OnCall("userTotalPStake", func(args ...any) (any, error) {
		if args[0].(common.Address) == v1 {
			return big.NewInt(900), nil
		}
		return big.NewInt(100), nil
	})

	view, err := agg.Dashboard(context.Background())
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if len(view.Validators) != 2 {
		t.Fatalf("expected 2 validators, got %d", len(view.Validators))
	}
	if !view.Validators[0].Registered || view.Validators[0].SelfStake.Cmp(tokens(10)) != 0 {
		t.Fatalf("unexpected first validator %+v", view.Validators[0])
	}
	if view.Validators[1].Registered || view.Validators[1].SelfStake.Sign() != 0 {
		t.Fatalf("reverted lookup should fall back to an empty record: %+v", view.Validators[1])
	}
	SortByPStake(view.Validators)
	if view.Validators[0].Address != v2 {
		t.Fatalf("expected smallest pstake first")
	}
}

func TestLockedPercentageZeroSupply(t *testing.T) {
	if got := LockedPercentage(tokens(5), new(big.Int)); got != 0 {
		t.Fatalf("expected 0 for zero supply, got %v", got)
	}
	if got := LockedPercentage(big.NewInt(1), big.NewInt(3)); got < 33.33 || got > 33.34 {
		t.Fatalf("unexpected ratio %v", got)
	}
}

func TestScarcityWithoutMintPool(t *testing.T) {
	zero := new(big.Int)
	if got := Scarcity(big.NewInt(1), zero, zero); got != 10_000 {
		t.Fatalf("expected full scarcity before minting, got %d", got)
	}
	if got := Scarcity(zero, zero, big.NewInt(5)); got != 0 {
		t.Fatalf("expected zero scarcity, got %d", got)
	}
	if got := RemainingMintable(big.NewInt(10), big.NewInt(50), big.NewInt(30)); got.Sign() != 0 {
		t.Fatalf("remaining must floor at zero, got %s", got)
	}
}

func TestRewardEfficiencyBoundaries(t *testing.T) {
	cases := []struct {
		bips uint64
		want float64
	}{
		{0, 50},
		{1000, 60},
		{1050, 60.5},
		{5000, 100},
		{6000, 100},
	}
	for _, tc := range cases {
		if got := RewardEfficiency(tc.bips); got != tc.want {
			t.Fatalf("efficiency(%d) = %v, want %v", tc.bips, got, tc.want)
		}
	}
}

func TestUserView(t *testing.T) {
	agg, d := newTestAggregator(t)
	v := common.HexToAddress("0x0000000000000000000000000000000000000001")
	d.Token.SetBalance(testUser, tokens(7))
	d.Delegation.Returns("getDelegationsOf", []chain.DelegationRecord{
		{Amount: tokens(100), UnlockTime: big.NewInt(testNow.Unix() + 3600), LockDuration: big.NewInt(86400), Validator: v},
		{Amount: tokens(10), UnlockTime: big.NewInt(testNow.Unix()), LockDuration: big.NewInt(86400), Validator: v},
	})
	d.Delegation.OnCall("getDelegationPStake", func(args ...any) (any, error) {
		index := args[1].(*big.Int).Int64()
		return big.NewInt(1000 * (index + 1)), nil
	})
	d.Delegation.Returns("userTotalPStake", big.NewInt(3000))
	d.Reward.Returns("minerRewardsOwed", tokens(2))

	view, err := agg.UserView(context.Background(), testUser)
	if err != nil {
		t.Fatalf("user view: %v", err)
	}
	if view.Balance.Cmp(tokens(7)) != 0 || view.TotalPStake.Int64() != 3000 {
		t.Fatalf("unexpected balances %+v", view)
	}
	if len(view.Delegations) != 2 {
		t.Fatalf("expected 2 delegations, got %d", len(view.Delegations))
	}
	first, second := view.Delegations[0], view.Delegations[1]
	if !first.Locked || first.Penalty.Cmp(tokens(50)) != 0 || first.PStake.Int64() != 1000 {
		t.Fatalf("unexpected first delegation %+v", first)
	}
	if second.Locked || second.Index != 1 || second.PStake.Int64() != 2000 {
		t.Fatalf("delegation at its unlock time must be unlocked: %+v", second)
	}
	if view.Rewards.Staking.Sign() != 0 || view.Rewards.Total.Cmp(tokens(2)) != 0 {
		t.Fatalf("unexpected rewards %+v", view.Rewards)
	}
	if !view.ClaimEnabled {
		t.Fatalf("claim should be enabled with pending rewards")
	}
}

func TestUserViewNothingToClaim(t *testing.T) {
	agg, _ := newTestAggregator(t)
	view, err := agg.UserView(context.Background(), testUser)
	if err != nil {
		t.Fatalf("user view: %v", err)
	}
	if view.ClaimEnabled || len(view.Delegations) != 0 {
		t.Fatalf("empty account should have nothing to claim: %+v", view)
	}
}

func giveBoosters(d *chaintest.Deployment) {
	other := common.HexToAddress("0x0000000000000000000000000000000000000bad")
	d.Booster.
		EmitTransfer(common.Address{}, testUser, 1, 10).
		EmitTransfer(common.Address{}, testUser, 2, 11).
		EmitTransfer(testUser, other, 1, 12).
		EmitTransfer(other, testUser, 3, 13)
	d.Booster.OnCall("boostBips", func(args ...any) (any, error) {
		switch args[0].(*big.Int).Int64() {
		case 2:
			return big.NewInt(1000), nil
		case 3:
			return big.NewInt(3000), nil
		}
		return big.NewInt(5000), nil
	})
}

func TestBoostersReplayAndCache(t *testing.T) {
	agg, d := newTestAggregator(t)
	giveBoosters(d)

	holdings, err := agg.Boosters(context.Background(), testUser)
	if err != nil {
		t.Fatalf("boosters: %v", err)
	}
	if len(holdings) != 2 || holdings[0].TokenID.Int64() != 2 || holdings[1].TokenID.Int64() != 3 {
		t.Fatalf("unexpected holdings %+v", holdings)
	}
	reads := d.Reads(chain.RoleBooster, "boostBips")
	if _, err := agg.Boosters(context.Background(), testUser); err != nil {
		t.Fatalf("boosters: %v", err)
	}
	if d.Reads(chain.RoleBooster, "boostBips") != reads {
		t.Fatalf("cached holdings should not be re-read")
	}
	agg.BoosterCache().Reset()
	if _, err := agg.Boosters(context.Background(), testUser); err != nil {
		t.Fatalf("boosters: %v", err)
	}
	if d.Reads(chain.RoleBooster, "boostBips") == reads {
		t.Fatalf("reset cache should be rebuilt")
	}
}

func TestBoostersWithoutCachesReadEveryTime(t *testing.T) {
	d := chaintest.NewDeployment(testUser)
	agg := New(staticHandles{d.ReadOnlyHandles()}, WithClock(func() time.Time { return testNow }), WithoutCaches())
	giveBoosters(d)

	if _, err := agg.Boosters(context.Background(), testUser); err != nil {
		t.Fatalf("boosters: %v", err)
	}
	reads := d.Reads(chain.RoleBooster, "boostBips")
	d.Booster.EmitTransfer(testUser, common.HexToAddress("0x0000000000000000000000000000000000000bad"), 3, 14)
	holdings, err := agg.Boosters(context.Background(), testUser)
	if err != nil {
		t.Fatalf("boosters: %v", err)
	}
	if len(holdings) != 1 || holdings[0].TokenID.Int64() != 2 {
		t.Fatalf("transfer out not reflected: %+v", holdings)
	}
	if d.Reads(chain.RoleBooster, "boostBips") == reads {
		t.Fatalf("holdings should be re-read without a cache")
	}
	agg.BoosterCache().Reset()
}

func TestHighestBoosterAndRewards(t *testing.T) {
	agg, d := newTestAggregator(t)
	giveBoosters(d)
	d.Delegation.Returns("pendingDelegatorRewards", big.NewInt(1000))

	best, err := agg.HighestBooster(context.Background(), testUser)
	if err != nil {
		t.Fatalf("highest booster: %v", err)
	}
	if best.TokenID.Int64() != 3 || best.Name != "Gold Booster" || best.Efficiency != 80 {
		t.Fatalf("unexpected best booster %+v", best)
	}

	rewards, err := agg.Rewards(context.Background(), testUser)
	if err != nil {
		t.Fatalf("rewards: %v", err)
	}
	if rewards.EfficiencyBips != 8000 || rewards.Claimable.Int64() != 800 || rewards.Treasury.Int64() != 200 {
		t.Fatalf("unexpected split %+v", rewards)
	}
}

func TestHighestBoosterWithoutHoldings(t *testing.T) {
	agg, _ := newTestAggregator(t)
	best, err := agg.HighestBooster(context.Background(), testUser)
	if err != nil {
		t.Fatalf("highest booster: %v", err)
	}
	if best.Name != "None" || best.Efficiency != 50 || best.TokenID != nil {
		t.Fatalf("unexpected summary %+v", best)
	}
}

func TestCertificatesNewestFirst(t *testing.T) {
	agg, d := newTestAggregator(t)
	d.Reward.Returns("balanceOf", big.NewInt(4))
	d.Reward.OnCall("tokenOfOwnerByIndex", func(args ...any) (any, error) {
		index := args[1].(*big.Int).Int64()
		if index == 3 {
			return big.NewInt(0), nil
		}
		return big.NewInt(10 + index), nil
	})

	certs, err := agg.Certificates(context.Background(), testUser)
	if err != nil {
		t.Fatalf("certificates: %v", err)
	}
	if len(certs) != 3 || certs[0].TokenID.Int64() != 12 || certs[2].TokenID.Int64() != 10 {
		t.Fatalf("unexpected certificates %+v", certs)
	}
}

func TestCertificateDetail(t *testing.T) {
	agg, d := newTestAggregator(t)
	start := testNow.Add(-25 * 24 * time.Hour).Unix()
	d.Reward.Returns("VESTING_DURATION", big.NewInt(100*86400))
	d.Reward.Returns("INITIAL_PENALTY_BIPS", big.NewInt(5000))
	d.Reward.Returns("vestingPositions", chain.VestingPosition{TotalAmount: tokens(1000), StartTime: big.NewInt(start)})

	detail, err := agg.CertificateDetail(context.Background(), big.NewInt(7))
	if err != nil {
		t.Fatalf("detail: %v", err)
	}
	if detail.Progress != 25 {
		t.Fatalf("expected 25%% progress, got %d", detail.Progress)
	}
	if detail.Penalty.Cmp(tokens(500)) != 0 {
		t.Fatalf("unexpected penalty %s", detail.Penalty)
	}
	if detail.Tier != "Certificate" {
		t.Fatalf("unexpected tier %q", detail.Tier)
	}
	if want := time.Unix(start+100*86400, 0).UTC(); !detail.NoFeeDate.Equal(want) {
		t.Fatalf("unexpected no-fee date %v", detail.NoFeeDate)
	}

	d.Reward.Returns("vestingPositions", chain.VestingPosition{TotalAmount: tokens(1000), StartTime: big.NewInt(start - 100*86400)})
	detail, err = agg.CertificateDetail(context.Background(), big.NewInt(7))
	if err != nil {
		t.Fatalf("detail: %v", err)
	}
	if detail.Progress != 100 || detail.Penalty.Sign() != 0 {
		t.Fatalf("vested certificate should carry no penalty: %+v", detail)
	}
}

func TestStoreTiers(t *testing.T) {
	agg, d := newTestAggregator(t)
	giveBoosters(d)
	d.BondingCurve.OnCall("pools", func(args ...any) (any, error) {
		pool := chain.EmptyPool()
		if args[0].(*big.Int).Int64() == 3000 {
			pool.NftCount = big.NewInt(4)
			pool.IsInitialized = true
		}
		return pool, nil
	})
	d.BondingCurve.OnCall("getBuyPrice", func(args ...any) (any, error) {
		if args[0].(*big.Int).Int64() == 3000 {
			return tokens(90), nil
		}
		return nil, chaintest.Revert("pool not initialized")
	})
	d.BondingCurve.Returns("LOCK_DURATION", big.NewInt(86400))
	d.BondingCurve.OnCall("nftPurchaseTimestamp", func(args ...any) (any, error) {
		if args[0].(*big.Int).Int64() == 3 {
			return big.NewInt(testNow.Unix() - 86400), nil
		}
		return big.NewInt(0), nil
	})

	tiers, err := agg.Store(context.Background(), testUser)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	if len(tiers) != 5 {
		t.Fatalf("expected 5 tiers, got %d", len(tiers))
	}
	for _, tier := range tiers {
		switch tier.BoostBips {
		case 3000:
			if !tier.BuyEnabled || tier.Owned != 1 || tier.SellableToken == nil || tier.SellableToken.Int64() != 3 {
				t.Fatalf("unexpected gold tier %+v", tier)
			}
		case 1000:
			if tier.BuyEnabled || tier.BuyPrice.Cmp(math.MaxBig256) != 0 {
				t.Fatalf("uninitialised tier must not be buyable: %+v", tier)
			}
			if tier.Owned != 1 || tier.SellableToken != nil {
				t.Fatalf("token minted outside the pool is not sellable: %+v", tier)
			}
		}
	}
}

func TestStoreRequiresPoolContracts(t *testing.T) {
	d := chaintest.NewDeployment(testUser)
	set := chain.Assemble(true, d.Token.ReadOnly(), d.Delegation.ReadOnly())
	agg := New(staticHandles{set})
	if _, err := agg.Store(context.Background(), testUser); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestActionsListing(t *testing.T) {
	agg, d := newTestAggregator(t)
	d.Actions.Returns("actionCounter", big.NewInt(4))
	d.Actions.OnCall("actions", func(args ...any) (any, error) {
		id := args[0].(*big.Int).Int64()
		rec := chain.EmptyAction()
		switch id {
		case 1:
			rec.ID, rec.ActionType, rec.EndTime = big.NewInt(1), uint8(chain.ActionSports), big.NewInt(testNow.Unix()-10)
		case 2:
			rec.ID, rec.ActionType, rec.EndTime = big.NewInt(2), uint8(chain.ActionCharity), big.NewInt(testNow.Unix()+10)
		case 3:
			return nil, chaintest.Revert("missing")
		case 4:
			rec.ID, rec.ActionType, rec.Status = big.NewInt(4), uint8(chain.ActionSports), uint8(chain.ActionFinalized)
		}
		return rec, nil
	})

	all, err := agg.Actions(context.Background(), FilterAll)
	if err != nil {
		t.Fatalf("actions: %v", err)
	}
	if len(all) != 3 || all[0].ID != 4 || all[2].ID != 1 {
		t.Fatalf("unexpected listing %+v", all)
	}
	labels := map[uint64]string{1: "Ready to Finalize", 2: "Open", 4: "Finalized"}
	for _, a := range all {
		if a.StatusLabel != labels[a.ID] {
			t.Fatalf("action %d: label %q, want %q", a.ID, a.StatusLabel, labels[a.ID])
		}
	}
	sports, err := agg.Actions(context.Background(), FilterSports)
	if err != nil {
		t.Fatalf("actions: %v", err)
	}
	if len(sports) != 2 {
		t.Fatalf("expected 2 sports actions, got %d", len(sports))
	}
}

func TestActionsReadsOnlyNewestWindow(t *testing.T) {
	d := chaintest.NewDeployment(testUser)
	agg := New(staticHandles{d.ReadOnlyHandles()}, WithClock(func() time.Time { return testNow }), WithActionWindow(3))
	d.Actions.Returns("actionCounter", new(big.Int).SetUint64(1_000_000_000_000))
	d.Actions.OnCall("actions", func(args ...any) (any, error) {
		rec := chain.EmptyAction()
		rec.ID = new(big.Int).Set(args[0].(*big.Int))
		return rec, nil
	})

	listed, err := agg.Actions(context.Background(), FilterAll)
	if err != nil {
		t.Fatalf("actions: %v", err)
	}
	if reads := d.Reads(chain.RoleActions, "actions"); reads != 3 {
		t.Fatalf("read %d actions, want 3", reads)
	}
	if len(listed) != 3 || listed[0].ID != 1_000_000_000_000 || listed[2].ID != 999_999_999_998 {
		t.Fatalf("unexpected listing %+v", listed)
	}
}

func TestPaginateClamps(t *testing.T) {
	items := make([]int, 13)
	for i := range items {
		items[i] = i
	}
	page := Paginate(items, 9, ActionsPerPage)
	if page.Page != 3 || page.TotalPages != 3 || len(page.Items) != 1 || page.Items[0] != 12 {
		t.Fatalf("unexpected last page %+v", page)
	}
	page = Paginate(items, 0, ActionsPerPage)
	if page.Page != 1 || len(page.Items) != 6 {
		t.Fatalf("unexpected first page %+v", page)
	}
	empty := Paginate([]int(nil), 4, ActionsPerPage)
	if empty.Page != 1 || empty.TotalPages != 1 || len(empty.Items) != 0 {
		t.Fatalf("unexpected empty page %+v", empty)
	}
}

func TestValidatorPanelStages(t *testing.T) {
	agg, d := newTestAggregator(t)
	ctx := context.Background()

	panel, err := agg.ValidatorPanel(ctx, testUser)
	if err != nil {
		t.Fatalf("panel: %v", err)
	}
	if panel.Stage != StageStakeUnavailable {
		t.Fatalf("expected stake unavailable, got %s", panel.Stage)
	}

	d.Delegation.Returns("getMinValidatorStake", tokens(100))
	d.Token.SetBalance(testUser, tokens(150))
	if panel, _ = agg.ValidatorPanel(ctx, testUser); panel.Stage != StageInsufficient || panel.Required.Cmp(tokens(200)) != 0 {
		t.Fatalf("unpaid fee doubles the requirement: %+v", panel)
	}

	d.Token.SetBalance(testUser, tokens(200))
	if panel, _ = agg.ValidatorPanel(ctx, testUser); panel.Stage != StagePayFee {
		t.Fatalf("expected pay fee, got %s", panel.Stage)
	}

	d.Delegation.Returns("hasPaidRegistrationFee", true)
	if panel, _ = agg.ValidatorPanel(ctx, testUser); panel.Stage != StageRegister || panel.Required.Cmp(tokens(100)) != 0 {
		t.Fatalf("expected register, got %+v", panel)
	}

	rec := chain.EmptyValidator()
	rec.IsRegistered = true
	d.Delegation.Returns("validators", rec)
	if panel, _ = agg.ValidatorPanel(ctx, testUser); panel.Stage != StageRegistered {
		t.Fatalf("expected registered, got %s", panel.Stage)
	}
}

func TestDelegationPreview(t *testing.T) {
	p := DelegationPreview(tokens(1000), 30, DefaultDelegationFeeBips)
	if p.Fee.Cmp(tokens(5)) != 0 || p.Net.Cmp(tokens(995)) != 0 {
		t.Fatalf("unexpected fee split %+v", p)
	}
	if p.PStake.Int64() != 995*30 {
		t.Fatalf("unexpected pstake %s", p.PStake)
	}
}

func TestDelegationFeeDefault(t *testing.T) {
	agg, d := newTestAggregator(t)
	bips, err := agg.DelegationFeeBips(context.Background())
	if err != nil || bips != DefaultDelegationFeeBips {
		t.Fatalf("expected default fee, got %d (%v)", bips, err)
	}
	d.Delegation.Returns("DELEGATION_FEE_BIPS", big.NewInt(75))
	if bips, _ = agg.DelegationFeeBips(context.Background()); bips != 75 {
		t.Fatalf("expected contract fee, got %d", bips)
	}
}
