package views

import (
	"context"
	"log/slog"
	"math/big"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"backchain/chain"
	"backchain/chain/resilient"
	"backchain/metadata"
)

// BoosterHolding is a booster NFT the account holds.
type BoosterHolding struct {
	TokenID   *big.Int
	BoostBips uint64
}

// BoosterSummary describes the account's strongest booster.
type BoosterSummary struct {
	TokenID    *big.Int // nil without a booster
	BoostBips  uint64
	Name       string
	Image      string
	Efficiency float64
}

// Boosters returns the account's boosters, derived by replaying Transfer
// logs into and out of the account. A non-empty result is cached until the
// booster cache is reset.
func (a *Aggregator) Boosters(ctx context.Context, user common.Address) ([]BoosterHolding, error) {
	if cached, ok := a.boosters.Get(user); ok {
		return cached, nil
	}
	booster := a.handles().Booster()
	if booster == nil {
		return nil, nil
	}

	var in, out []chain.Transfer
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		in, err = resilient.Transfers(gctx, a.reader, booster, nil, &user)
		return err
	})
	g.Go(func() (err error) {
		out, err = resilient.Transfers(gctx, a.reader, booster, &user, nil)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	owned := replayOwnership(user, append(in, out...))
	if len(owned) == 0 {
		return nil, nil
	}

	holdings := make([]BoosterHolding, len(owned))
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(readConcurrency)
	for i, tokenID := range owned {
		g.Go(func() error {
			bips, err := resilient.Call(gctx, a.reader, booster, "boostBips", new(big.Int), tokenID)
			if err != nil {
				return err
			}
			holdings[i] = BoosterHolding{TokenID: tokenID, BoostBips: bips.Uint64()}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	a.boosters.Put(user, holdings)
	a.logger.Debug("booster holdings loaded", slog.String("account", user.Hex()), slog.Int("count", len(holdings)))
	return holdings, nil
}

// replayOwnership applies transfers in chain order and returns the token ids
// still held by user, ordered by id.
func replayOwnership(user common.Address, transfers []chain.Transfer) []*big.Int {
	chain.SortTransfers(transfers)
	held := make(map[string]*big.Int)
	for _, tr := range transfers {
		key := tr.TokenID.String()
		switch {
		case tr.To == user:
			held[key] = tr.TokenID
		case tr.From == user:
			delete(held, key)
		}
	}
	ids := make([]*big.Int, 0, len(held))
	for _, id := range held {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Cmp(ids[j]) < 0 })
	return ids
}

// HighestBooster picks the account's strongest booster and describes it
// from the tier catalogue, overridden by on-chain metadata when available.
func (a *Aggregator) HighestBooster(ctx context.Context, user common.Address) (BoosterSummary, error) {
	none := BoosterSummary{Name: "None", Efficiency: RewardEfficiency(0)}
	holdings, err := a.Boosters(ctx, user)
	if err != nil {
		return BoosterSummary{}, err
	}
	if len(holdings) == 0 {
		return none, nil
	}
	best := holdings[0]
	for _, h := range holdings[1:] {
		if h.BoostBips > best.BoostBips {
			best = h
		}
	}
	summary := BoosterSummary{
		TokenID:    best.TokenID,
		BoostBips:  best.BoostBips,
		Name:       "Booster NFT",
		Efficiency: RewardEfficiency(best.BoostBips),
	}
	if tier, ok := a.tier(best.BoostBips); ok {
		summary.Name = tier.Name + " Booster"
		summary.Image = tier.Image
	}
	a.applyMetadata(ctx, a.handles().Booster(), best.TokenID, &summary.Name, &summary.Image)
	return summary, nil
}

// applyMetadata overrides name and image from the token's metadata document.
// Metadata is decorative: failures only log.
func (a *Aggregator) applyMetadata(ctx context.Context, c chain.Contract, tokenID *big.Int, name, image *string) {
	doc, ok := a.metadataFor(ctx, c, tokenID)
	if !ok {
		return
	}
	if strings.TrimSpace(doc.Name) != "" && name != nil {
		*name = doc.Name
	}
	if doc.Image != "" && image != nil {
		*image = doc.Image
	}
}

// Certificate is a vesting certificate held by the account.
type Certificate struct {
	TokenID *big.Int
}

// Certificates lists the account's vesting certificates, newest first. The
// enumeration stops at the first unreadable index. A non-empty result is
// cached until the certificate cache is reset.
func (a *Aggregator) Certificates(ctx context.Context, user common.Address) ([]Certificate, error) {
	if cached, ok := a.certificates.Get(user); ok {
		return cached, nil
	}
	rm := a.handles().Reward()
	count, err := resilient.BalanceOf(ctx, a.reader, rm, user)
	if err != nil {
		return nil, err
	}
	if count.Sign() == 0 {
		return nil, nil
	}
	var certs []Certificate
	for i := uint64(0); count.IsUint64() && i < count.Uint64(); i++ {
		id, err := resilient.Call(ctx, a.reader, rm, "tokenOfOwnerByIndex", new(big.Int), user, new(big.Int).SetUint64(i))
		if err != nil {
			a.logger.Warn("certificate enumeration stopped",
				slog.Uint64("index", i),
				slog.String("error", err.Error()))
			break
		}
		if id.Sign() == 0 {
			break
		}
		certs = append(certs, Certificate{TokenID: id})
	}
	for i, j := 0, len(certs)-1; i < j; i, j = i+1, j-1 {
		certs[i], certs[j] = certs[j], certs[i]
	}
	if len(certs) > 0 {
		a.certificates.Put(user, certs)
	}
	return certs, nil
}

// CertificateDetail is a vesting certificate's position and early-exit cost.
type CertificateDetail struct {
	TokenID     *big.Int
	TotalAmount *big.Int
	StartTime   time.Time
	// NoFeeDate is when withdrawal stops paying a penalty.
	NoFeeDate time.Time
	Progress  uint64 // percent vested, 0-100
	Penalty   *big.Int
	Tier      string
	Image     string
}

// CertificateDetail reads the vesting position of tokenID.
func (a *Aggregator) CertificateDetail(ctx context.Context, tokenID *big.Int) (CertificateDetail, error) {
	rm := a.handles().Reward()
	var (
		duration, penaltyBips *big.Int
		position              chain.VestingPosition
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		duration, err = resilient.Call(gctx, a.reader, rm, "VESTING_DURATION", new(big.Int))
		return err
	})
	g.Go(func() (err error) {
		penaltyBips, err = resilient.Call(gctx, a.reader, rm, "INITIAL_PENALTY_BIPS", new(big.Int))
		return err
	})
	g.Go(func() (err error) {
		position, err = resilient.Call(gctx, a.reader, rm, "vestingPositions",
			chain.VestingPosition{TotalAmount: new(big.Int), StartTime: new(big.Int)}, tokenID)
		return err
	})
	if err := g.Wait(); err != nil {
		return CertificateDetail{}, err
	}

	total, start := orZero(position.TotalAmount), orZero(position.StartTime)
	detail := CertificateDetail{
		TokenID:     new(big.Int).Set(tokenID),
		TotalAmount: total,
		StartTime:   time.Unix(start.Int64(), 0).UTC(),
		NoFeeDate:   time.Unix(new(big.Int).Add(start, duration).Int64(), 0).UTC(),
		Tier:        "Certificate",
	}
	elapsed := new(big.Int).Sub(big.NewInt(a.now().Unix()), start)
	if elapsed.Sign() < 0 {
		elapsed.SetInt64(0)
	}
	detail.Progress = vestingProgress(elapsed, duration)
	detail.Penalty = new(big.Int)
	if elapsed.Cmp(duration) < 0 {
		detail.Penalty.Mul(total, penaltyBips)
		detail.Penalty.Quo(detail.Penalty, big.NewInt(bipsDenominator))
	}

	if doc, ok := a.metadataFor(ctx, rm, tokenID); ok {
		detail.Image = doc.Image
		if tier, found := doc.Trait("Tier"); found && tier != "" {
			detail.Tier = tier
		}
	}
	return detail, nil
}

// vestingProgress is floor(elapsed * 100 / duration) capped at 100. An
// unset duration counts as fully vested.
func vestingProgress(elapsed, duration *big.Int) uint64 {
	if duration.Sign() <= 0 {
		return 100
	}
	pct := new(big.Int).Mul(elapsed, big.NewInt(100))
	pct.Quo(pct, duration)
	if pct.Cmp(big.NewInt(100)) > 0 {
		return 100
	}
	return pct.Uint64()
}

func (a *Aggregator) metadataFor(ctx context.Context, c chain.Contract, tokenID *big.Int) (metadata.Document, bool) {
	if a.fetcher == nil || c == nil {
		return metadata.Document{}, false
	}
	uri, err := resilient.Call(ctx, a.reader, c, "tokenURI", "", tokenID)
	if err != nil || strings.TrimSpace(uri) == "" {
		return metadata.Document{}, false
	}
	doc, err := a.fetcher.Fetch(ctx, uri)
	if err != nil {
		a.logger.Warn("metadata unavailable",
			slog.String("token_id", tokenID.String()),
			slog.String("error", err.Error()))
		return metadata.Document{}, false
	}
	return doc, true
}
