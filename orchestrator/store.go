package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"backchain/chain"
	"backchain/chain/resilient"
	"backchain/wallet"
)

// ErrNoBoosterAvailable means the pool holds no token of the requested tier.
var ErrNoBoosterAvailable = errors.New("orchestrator: no booster of this tier is held by the pool")

const noBoosterMessage = "Error: No NFT of this tier was found in the pool or contract data is corrupt."

// BuyBooster buys one booster of tier boostBips from the bonding-curve pool
// at price. It locates a pool-held token of that tier first; when none
// exists it fails before any transaction. After purchase it offers the
// token to the wallet's asset list. An approval granted before a later step
// fails is left standing.
func (o *Orchestrator) BuyBooster(ctx context.Context, boostBips uint64, price *big.Int, ctrl Control) (Outcome, error) {
	return o.run(ctx, "buy_booster", ctrl, func(ctx context.Context, sess *wallet.Session, out *Outcome) error {
		if !positive(price) {
			return o.reject(ctx, "Invalid price.", ErrInvalidAmount)
		}
		booster, err := sess.Handles.Must(chain.RoleBooster)
		if err != nil {
			return err
		}
		pool, err := sess.Handles.Must(chain.RoleBondingCurve)
		if err != nil {
			return err
		}
		o.notify(ctx, LevelInfo, "Finding an available NFT...", common.Hash{})
		tokenID, err := o.findPoolToken(ctx, booster, pool, boostBips)
		if errors.Is(err, ErrNoBoosterAvailable) {
			return o.reject(ctx, noBoosterMessage, err)
		}
		if err != nil {
			return err
		}
		out.TokenID = tokenID
		err = o.approveAndTransact(ctx, sess, out, pool.Address(), price, "NFT Purchase",
			call(chain.RoleBondingCurve, "buyNFT", new(big.Int).SetUint64(boostBips), tokenID),
			"Purchase successful!", "Error during purchase")
		if err != nil {
			return err
		}
		resetCache(o.boosters)
		o.registerAsset(ctx, booster.Address(), tokenID)
		return nil
	})
}

// findPoolToken scans transfers into the pool, newest first, and returns the
// first token the pool still owns whose tier matches. Logs are only hints;
// ownership and tier are confirmed with live reads.
func (o *Orchestrator) findPoolToken(ctx context.Context, booster, pool chain.Contract, boostBips uint64) (*big.Int, error) {
	poolAddr := pool.Address()
	transfers, err := resilient.Transfers(ctx, o.reader, booster, nil, &poolAddr)
	if err != nil {
		return nil, err
	}
	want := new(big.Int).SetUint64(boostBips)
	seen := make(map[string]bool)
	for i := len(transfers) - 1; i >= 0; i-- {
		tokenID := transfers[i].TokenID
		if seen[tokenID.String()] {
			continue
		}
		seen[tokenID.String()] = true
		// A failed ownerOf must not look like pool ownership.
		owner, err := resilient.Call(ctx, o.reader, booster, "ownerOf", common.Address{}, tokenID)
		if err != nil {
			o.logger.Debug("skipping candidate booster", slog.String("token_id", tokenID.String()), slog.String("error", err.Error()))
			continue
		}
		if owner != poolAddr {
			continue
		}
		bips, err := resilient.Call(ctx, o.reader, pool, "tokenIdToBoostBips", new(big.Int), tokenID)
		if err != nil {
			o.logger.Debug("skipping candidate booster", slog.String("token_id", tokenID.String()), slog.String("error", err.Error()))
			continue
		}
		if bips.Cmp(want) == 0 {
			return new(big.Int).Set(tokenID), nil
		}
	}
	return nil, ErrNoBoosterAvailable
}

func (o *Orchestrator) registerAsset(ctx context.Context, contract common.Address, tokenID *big.Int) {
	if o.registrar == nil {
		return
	}
	asset := wallet.Asset{Standard: wallet.StandardERC721, Address: contract, TokenID: new(big.Int).Set(tokenID), AddedAt: o.now()}
	added, err := o.registrar.WatchAsset(ctx, asset)
	if err != nil {
		o.logger.Warn("asset registration failed",
			slog.String("token_id", tokenID.String()),
			slog.String("error", err.Error()))
		return
	}
	if added {
		o.notify(ctx, LevelInfo, fmt.Sprintf("Booster #%s added to your wallet.", tokenID), common.Hash{})
	}
}

// SellBooster approves the pool for tokenID and sells it back.
func (o *Orchestrator) SellBooster(ctx context.Context, tokenID *big.Int, ctrl Control) (Outcome, error) {
	return o.run(ctx, "sell_booster", ctrl, func(ctx context.Context, sess *wallet.Session, out *Outcome) error {
		if tokenID == nil || tokenID.Sign() < 0 {
			return o.reject(ctx, "Invalid token.", errors.New("orchestrator: token id required"))
		}
		pool, err := sess.Handles.Must(chain.RoleBondingCurve)
		if err != nil {
			return err
		}
		out.TokenID = new(big.Int).Set(tokenID)
		o.notify(ctx, LevelInfo, fmt.Sprintf("Approving transfer of NFT #%s...", tokenID), common.Hash{})
		hash, err := o.confirm(ctx, sess, call(chain.RoleBooster, "approve", pool.Address(), tokenID))
		if err != nil {
			return err
		}
		out.TxHashes = append(out.TxHashes, hash)
		o.notify(ctx, LevelSuccess, "NFT approved successfully!", hash)
		err = o.transact(ctx, sess, out,
			call(chain.RoleBondingCurve, "sellNFT", tokenID),
			"Sale successful!", "Error during sale")
		if err == nil {
			resetCache(o.boosters)
		}
		return err
	})
}
