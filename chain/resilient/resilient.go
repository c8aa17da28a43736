// Package resilient wraps contract reads with a per-call fallback policy:
// reads that come back empty or revert yield a caller-supplied default so a
// page can still render, while transport and signer failures propagate.
//
// A fallback of zero cannot be told apart from a genuine zero on-chain.
package resilient

import (
	"context"
	"log/slog"
	"math/big"
	"reflect"

	"github.com/ethereum/go-ethereum/common"

	"backchain/chain"
	"backchain/observability"
)

// Reader applies the fallback policy and reports substitutions.
type Reader struct {
	logger  *slog.Logger
	metrics *observability.ReadMetrics
}

// Option customises a Reader.
type Option func(*Reader)

// WithLogger overrides the logger used for fallback warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reader) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMetrics attaches a metrics sink.
func WithMetrics(m *observability.ReadMetrics) Option {
	return func(r *Reader) {
		r.metrics = m
	}
}

// NewReader builds a Reader. Without options it logs through slog.Default
// and records no metrics.
func NewReader(opts ...Option) *Reader {
	r := &Reader{logger: slog.Default()}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Call reads method from c into a value of type T. Recoverable failures
// return a copy of fallback and a nil error; any other failure is returned
// as a *chain.CallError.
func Call[T any](ctx context.Context, r *Reader, c chain.Contract, method string, fallback T, args ...any) (T, error) {
	if r == nil {
		r = NewReader()
	}
	if c == nil {
		var zero T
		return zero, &chain.CallError{Method: method, Kind: chain.KindNetworkFailure, Err: chain.ErrNoHandle}
	}
	var out T
	err := c.Call(ctx, &out, method, args...)
	if err == nil {
		return out, nil
	}
	kind := chain.Classify(err)
	if kind.Recoverable() {
		r.logger.Warn("contract read fell back to default",
			slog.String("contract", string(c.Role())),
			slog.String("method", method),
			slog.String("kind", kind.String()),
			slog.String("reason", chain.Reason(err)))
		r.metrics.RecordFallback(string(c.Role()), method, kind.String())
		return Clone(fallback), nil
	}
	r.metrics.RecordFailure(string(c.Role()), method)
	var zero T
	return zero, &chain.CallError{Role: c.Role(), Method: method, Kind: kind, Err: err}
}

// BalanceOf reads an ERC-20/721 balance, falling back to zero.
func BalanceOf(ctx context.Context, r *Reader, c chain.Contract, owner common.Address) (*big.Int, error) {
	return Call(ctx, r, c, "balanceOf", new(big.Int), owner)
}

// Transfers scans Transfer logs, falling back to none when the scan fails
// recoverably.
func Transfers(ctx context.Context, r *Reader, c chain.Contract, from, to *common.Address) ([]chain.Transfer, error) {
	if r == nil {
		r = NewReader()
	}
	if c == nil {
		return nil, &chain.CallError{Method: "Transfer", Kind: chain.KindNetworkFailure, Err: chain.ErrNoHandle}
	}
	transfers, err := chain.Transfers(ctx, c, from, to)
	if err == nil {
		return transfers, nil
	}
	kind := chain.Classify(err)
	if kind.Recoverable() {
		r.logger.Warn("transfer log scan fell back to empty",
			slog.String("contract", string(c.Role())),
			slog.String("kind", kind.String()),
			slog.String("reason", chain.Reason(err)))
		r.metrics.RecordFallback(string(c.Role()), "Transfer", kind.String())
		return nil, nil
	}
	r.metrics.RecordFailure(string(c.Role()), "Transfer")
	return nil, &chain.CallError{Role: c.Role(), Method: "Transfer", Kind: kind, Err: err}
}

// Clone copies v so callers cannot mutate a shared fallback: *big.Int values
// are duplicated, slices and maps are shallow-copied, everything else is
// copied by assignment.
func Clone[T any](v T) T {
	if b, ok := any(v).(*big.Int); ok {
		if b == nil {
			return v
		}
		return any(new(big.Int).Set(b)).(T)
	}
	rv := reflect.ValueOf(&v).Elem()
	switch rv.Kind() {
	case reflect.Slice:
		if rv.IsNil() {
			return v
		}
		cp := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
		reflect.Copy(cp, rv)
		return cp.Interface().(T)
	case reflect.Map:
		if rv.IsNil() {
			return v
		}
		cp := reflect.MakeMapWithSize(rv.Type(), rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			cp.SetMapIndex(iter.Key(), iter.Value())
		}
		return cp.Interface().(T)
	}
	return v
}
