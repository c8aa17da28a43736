package routes

import (
	"time"

	"backchain/format"
	"backchain/views"
)

type dashboardResponse struct {
	TotalSupply        string              `json:"totalSupply"`
	TotalSupplyDisplay string              `json:"totalSupplyDisplay"`
	SupplyEstimated    bool                `json:"supplyEstimated"`
	TotalPStake        string              `json:"totalPStake"`
	TotalPStakeDisplay string              `json:"totalPStakeDisplay"`
	MintPool           string              `json:"mintPool"`
	TGESupply          string              `json:"tgeSupply"`
	LockedAmount       string              `json:"lockedAmount"`
	LockedPercent      float64             `json:"lockedPercent"`
	RemainingMintable  string              `json:"remainingMintable"`
	ScarcityBips       uint64              `json:"scarcityBips"`
	ScarcityDisplay    string              `json:"scarcityDisplay"`
	ValidatorCount     int                 `json:"validatorCount"`
	Validators         []validatorResponse `json:"validators"`
}

func newDashboardResponse(d views.Dashboard) dashboardResponse {
	return dashboardResponse{
		TotalSupply:        amount(d.TotalSupply),
		TotalSupplyDisplay: format.Tokens(d.TotalSupply),
		SupplyEstimated:    d.SupplyEstimated,
		TotalPStake:        amount(d.TotalPStake),
		TotalPStakeDisplay: format.PStake(d.TotalPStake),
		MintPool:           amount(d.MintPool),
		TGESupply:          amount(d.TGESupply),
		LockedAmount:       amount(d.LockedAmount),
		LockedPercent:      d.LockedPercent,
		RemainingMintable:  amount(d.RemainingMintable),
		ScarcityBips:       d.ScarcityBips,
		ScarcityDisplay:    format.Bips(d.ScarcityBips),
		ValidatorCount:     len(d.Validators),
		Validators:         newValidatorResponses(d.Validators),
	}
}

type validatorResponse struct {
	Address        string `json:"address"`
	Registered     bool   `json:"registered"`
	SelfStake      string `json:"selfStake"`
	DelegatedStake string `json:"delegatedStake"`
	PStake         string `json:"pStake"`
}

func newValidatorResponses(list []views.ValidatorInfo) []validatorResponse {
	out := make([]validatorResponse, 0, len(list))
	for _, v := range list {
		out = append(out, validatorResponse{
			Address:        v.Address.Hex(),
			Registered:     v.Registered,
			SelfStake:      amount(v.SelfStake),
			DelegatedStake: amount(v.DelegatedStake),
			PStake:         amount(v.PStake),
		})
	}
	return out
}

type storeTierResponse struct {
	Name          string `json:"name"`
	BoostBips     uint64 `json:"boostBips"`
	Image         string `json:"image"`
	Initialized   bool   `json:"initialized"`
	Available     string `json:"available"`
	PoolBalance   string `json:"poolBalance"`
	BuyPrice      string `json:"buyPrice,omitempty"`
	BuyEnabled    bool   `json:"buyEnabled"`
	SellPrice     string `json:"sellPrice"`
	Owned         int    `json:"owned"`
	SellableToken string `json:"sellableToken,omitempty"`
}

func newStoreTierResponse(t views.StoreTier) storeTierResponse {
	out := storeTierResponse{
		Name:        t.Name,
		BoostBips:   t.BoostBips,
		Image:       t.Image,
		Initialized: t.Initialized,
		Available:   amount(t.Available),
		PoolBalance: amount(t.PoolBalance),
		BuyEnabled:  t.BuyEnabled,
		SellPrice:   amount(t.SellPrice),
		Owned:       t.Owned,
	}
	// An unreadable price is reported as the max sentinel; omit it.
	if t.BuyEnabled {
		out.BuyPrice = amount(t.BuyPrice)
	}
	if t.SellableToken != nil {
		out.SellableToken = t.SellableToken.String()
	}
	return out
}

type actionResponse struct {
	ID          uint64    `json:"id"`
	Creator     string    `json:"creator"`
	Description string    `json:"description"`
	Type        string    `json:"type"`
	Status      string    `json:"status"`
	EndTime     time.Time `json:"endTime"`
	TotalPot    string    `json:"totalPot"`
	Beneficiary string    `json:"beneficiary"`
	Winner      string    `json:"winner"`
}

func newActionResponse(a views.Action) actionResponse {
	return actionResponse{
		ID:          a.ID,
		Creator:     a.Creator.Hex(),
		Description: a.Description,
		Type:        a.Type.String(),
		Status:      a.StatusLabel,
		EndTime:     a.EndTime,
		TotalPot:    amount(a.TotalPot),
		Beneficiary: a.Beneficiary.Hex(),
		Winner:      a.Winner.Hex(),
	}
}

type rewardTotalsResponse struct {
	Staking string `json:"staking"`
	Miner   string `json:"miner"`
	Total   string `json:"total"`
}

func newRewardTotalsResponse(r views.RewardTotals) rewardTotalsResponse {
	return rewardTotalsResponse{Staking: amount(r.Staking), Miner: amount(r.Miner), Total: amount(r.Total)}
}

type delegationResponse struct {
	Index        uint64 `json:"index"`
	Validator    string `json:"validator"`
	Amount       string `json:"amount"`
	UnlockTime   string `json:"unlockTime"`
	LockDuration string `json:"lockDuration"`
	PStake       string `json:"pStake"`
	Locked       bool   `json:"locked"`
	Penalty      string `json:"penalty"`
}

type accountResponse struct {
	Address      string               `json:"address"`
	Balance      string               `json:"balance"`
	TotalPStake  string               `json:"totalPStake"`
	Delegations  []delegationResponse `json:"delegations"`
	Rewards      rewardTotalsResponse `json:"rewards"`
	ClaimEnabled bool                 `json:"claimEnabled"`
}

func newAccountResponse(v views.UserView) accountResponse {
	out := accountResponse{
		Address:      v.Account.Hex(),
		Balance:      amount(v.Balance),
		TotalPStake:  amount(v.TotalPStake),
		Delegations:  make([]delegationResponse, 0, len(v.Delegations)),
		Rewards:      newRewardTotalsResponse(v.Rewards),
		ClaimEnabled: v.ClaimEnabled,
	}
	for _, d := range v.Delegations {
		out.Delegations = append(out.Delegations, delegationResponse{
			Index:        d.Index,
			Validator:    d.Validator.Hex(),
			Amount:       amount(d.Amount),
			UnlockTime:   amount(d.UnlockTime),
			LockDuration: amount(d.LockDuration),
			PStake:       amount(d.PStake),
			Locked:       d.Locked,
			Penalty:      amount(d.Penalty),
		})
	}
	return out
}

type boosterResponse struct {
	TokenID    string  `json:"tokenId,omitempty"`
	BoostBips  uint64  `json:"boostBips"`
	Name       string  `json:"name"`
	Image      string  `json:"image,omitempty"`
	Efficiency float64 `json:"efficiency"`
}

type rewardsResponse struct {
	rewardTotalsResponse
	Booster        boosterResponse `json:"booster"`
	EfficiencyBips uint64          `json:"efficiencyBips"`
	Claimable      string          `json:"claimable"`
	Treasury       string          `json:"treasury"`
}

func newRewardsResponse(v views.RewardsView) rewardsResponse {
	booster := boosterResponse{
		BoostBips:  v.Booster.BoostBips,
		Name:       v.Booster.Name,
		Image:      v.Booster.Image,
		Efficiency: v.Booster.Efficiency,
	}
	if v.Booster.TokenID != nil {
		booster.TokenID = v.Booster.TokenID.String()
	}
	return rewardsResponse{
		rewardTotalsResponse: newRewardTotalsResponse(v.RewardTotals),
		Booster:              booster,
		EfficiencyBips:       v.EfficiencyBips,
		Claimable:            amount(v.Claimable),
		Treasury:             amount(v.Treasury),
	}
}

type certificateResponse struct {
	TokenID     string    `json:"tokenId"`
	TotalAmount string    `json:"totalAmount"`
	StartTime   time.Time `json:"startTime"`
	NoFeeDate   time.Time `json:"noFeeDate"`
	Progress    uint64    `json:"progress"`
	Penalty     string    `json:"penalty"`
	Tier        string    `json:"tier"`
	Image       string    `json:"image,omitempty"`
}

func newCertificateResponse(c views.CertificateDetail) certificateResponse {
	return certificateResponse{
		TokenID:     amount(c.TokenID),
		TotalAmount: amount(c.TotalAmount),
		StartTime:   c.StartTime,
		NoFeeDate:   c.NoFeeDate,
		Progress:    c.Progress,
		Penalty:     amount(c.Penalty),
		Tier:        c.Tier,
		Image:       c.Image,
	}
}
