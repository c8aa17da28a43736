package views

import (
	"context"
	"errors"
	"math/big"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"backchain/chain"
	"backchain/chain/resilient"
)

// ActionsPerPage is the default page size of the actions list.
const ActionsPerPage = 6

// ActionFilter selects which action types a listing includes.
type ActionFilter int

const (
	FilterAll ActionFilter = iota
	FilterSports
	FilterCharity
)

// ParseActionFilter accepts "all", "sports", "charity" and the numeric
// action types "0" and "1".
func ParseActionFilter(s string) (ActionFilter, error) {
	switch s {
	case "", "all":
		return FilterAll, nil
	case "0", "sports":
		return FilterSports, nil
	case "1", "charity":
		return FilterCharity, nil
	}
	return FilterAll, errors.New("views: unknown action filter " + s)
}

func (f ActionFilter) match(t chain.ActionType) bool {
	switch f {
	case FilterSports:
		return t == chain.ActionSports
	case FilterCharity:
		return t == chain.ActionCharity
	default:
		return true
	}
}

// Action is one listed action.
type Action struct {
	ID           uint64
	Creator      common.Address
	Description  string
	Type         chain.ActionType
	Status       chain.ActionStatus
	StatusLabel  string
	EndTime      time.Time
	TotalPot     *big.Int
	CreatorStake *big.Int
	TotalCoupons *big.Int
	Beneficiary  common.Address
	Winner       common.Address
}

// Finalizable reports whether anyone may finalize the action now.
func (a Action) Finalizable(now time.Time) bool {
	return a.Status == chain.ActionOpen && !now.Before(a.EndTime)
}

// Actions lists the most recent actions matching filter, newest first. Only
// the last actionWindow ids are read (see WithActionWindow).
func (a *Aggregator) Actions(ctx context.Context, filter ActionFilter) ([]Action, error) {
	manager := a.handles().Actions()
	counter, err := resilient.Call(ctx, a.reader, manager, "actionCounter", new(big.Int))
	if err != nil {
		return nil, err
	}
	if counter.Sign() == 0 || !counter.IsUint64() {
		return nil, nil
	}
	last := counter.Uint64()
	first := uint64(1)
	if last > a.actionWindow {
		first = last - a.actionWindow + 1
	}
	records := make([]chain.ActionRecord, last-first+1)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(readConcurrency)
	for id := first; id <= last; id++ {
		g.Go(func() (err error) {
			records[id-first], err = resilient.Call(gctx, a.reader, manager, "actions", chain.EmptyAction(), new(big.Int).SetUint64(id))
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	now := a.now()
	var out []Action
	for _, rec := range records {
		if rec.ID == nil || rec.ID.Sign() == 0 {
			continue
		}
		action := toAction(rec)
		if !filter.match(action.Type) {
			continue
		}
		action.StatusLabel = statusLabel(action, now)
		out = append(out, action)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

// Action reads a single action by id.
func (a *Aggregator) Action(ctx context.Context, id uint64) (Action, bool, error) {
	rec, err := resilient.Call(ctx, a.reader, a.handles().Actions(), "actions", chain.EmptyAction(), new(big.Int).SetUint64(id))
	if err != nil {
		return Action{}, false, err
	}
	if rec.ID == nil || rec.ID.Sign() == 0 {
		return Action{}, false, nil
	}
	action := toAction(rec)
	action.StatusLabel = statusLabel(action, a.now())
	return action, true, nil
}

func toAction(rec chain.ActionRecord) Action {
	return Action{
		ID:           rec.ID.Uint64(),
		Creator:      rec.Creator,
		Description:  rec.Description,
		Type:         chain.ActionType(rec.ActionType),
		Status:       chain.ActionStatus(rec.Status),
		EndTime:      time.Unix(orZero(rec.EndTime).Int64(), 0).UTC(),
		TotalPot:     orZero(rec.TotalPot),
		CreatorStake: orZero(rec.CreatorStake),
		TotalCoupons: orZero(rec.TotalCoupons),
		Beneficiary:  rec.Beneficiary,
		Winner:       rec.Winner,
	}
}

func statusLabel(a Action, now time.Time) string {
	switch a.Status {
	case chain.ActionOpen:
		if a.Finalizable(now) {
			return "Ready to Finalize"
		}
		return "Open"
	case chain.ActionFinalized:
		return "Finalized"
	default:
		return "Unknown"
	}
}

// Page is one page of a listing.
type Page[T any] struct {
	Items      []T
	Page       int
	TotalPages int
	Total      int
}

// Paginate returns page (1-based) of items. The page is clamped into range
// and an empty listing still has one page.
func Paginate[T any](items []T, page, perPage int) Page[T] {
	if perPage <= 0 {
		perPage = ActionsPerPage
	}
	totalPages := (len(items) + perPage - 1) / perPage
	if totalPages < 1 {
		totalPages = 1
	}
	page = min(max(page, 1), totalPages)
	start := (page - 1) * perPage
	end := min(start+perPage, len(items))
	return Page[T]{
		Items:      items[start:end],
		Page:       page,
		TotalPages: totalPages,
		Total:      len(items),
	}
}
