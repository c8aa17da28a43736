package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ReceiptReader is the subset of the RPC used to follow a transaction.
type ReceiptReader interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// ReceiptPoller waits for transactions by polling for their receipts.
type ReceiptPoller struct {
	client   ReceiptReader
	interval time.Duration
	logger   *slog.Logger
}

// NewReceiptPoller polls client every interval (one second when zero).
func NewReceiptPoller(client ReceiptReader, interval time.Duration) *ReceiptPoller {
	if interval <= 0 {
		interval = time.Second
	}
	return &ReceiptPoller{client: client, interval: interval, logger: slog.Default()}
}

// WithLogger sets the logger used for transient receipt lookup failures.
func (p *ReceiptPoller) WithLogger(logger *slog.Logger) *ReceiptPoller {
	if logger != nil {
		p.logger = logger
	}
	return p
}

// WaitMined blocks until tx has a receipt or ctx ends. Lookup errors are
// logged and polling continues; a broadcast transaction may still be mined.
// The receipt is returned whatever its status; callers check for failure
// themselves.
func (p *ReceiptPoller) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	if p == nil || p.client == nil {
		return nil, fmt.Errorf("chain: receipt poller not initialised")
	}
	if tx == nil {
		return nil, fmt.Errorf("chain: transaction required")
	}
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	var lastErr error
	for {
		receipt, err := p.client.TransactionReceipt(ctx, tx.Hash())
		switch {
		case err == nil && receipt != nil:
			return receipt, nil
		case err != nil && !errors.Is(err, ethereum.NotFound):
			lastErr = err
			if p.logger != nil {
				p.logger.Warn("receipt lookup failed",
					slog.String("tx_hash", tx.Hash().Hex()),
					slog.String("error", err.Error()))
			}
		}
		select {
		case <-ctx.Done():
			if lastErr != nil {
				return nil, fmt.Errorf("wait receipt %s: %w (last lookup error: %v)", tx.Hash().Hex(), ctx.Err(), lastErr)
			}
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// CheckReceipt converts a failed receipt into ErrReceiptFailed.
func CheckReceipt(receipt *types.Receipt) error {
	if receipt == nil {
		return fmt.Errorf("chain: transaction receipt missing")
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("%w: %s", ErrReceiptFailed, receipt.TxHash.Hex())
	}
	return nil
}
