package chain

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

type scriptedReceipts struct {
	calls   int
	results []error
}

func (s *scriptedReceipts) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	i := s.calls
	s.calls++
	if i < len(s.results) && s.results[i] != nil {
		return nil, s.results[i]
	}
	return &types.Receipt{TxHash: hash, Status: types.ReceiptStatusSuccessful}, nil
}

func testTx() *types.Transaction {
	return types.NewTx(&types.LegacyTx{Nonce: 7, GasPrice: big.NewInt(1), Gas: 21000, Value: big.NewInt(0)})
}

func TestWaitMinedSurvivesTransientErrors(t *testing.T) {
	reader := &scriptedReceipts{results: []error{
		errors.New("502 Bad Gateway"),
		ethereum.NotFound,
	}}
	poller := NewReceiptPoller(reader, time.Millisecond).WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	receipt, err := poller.WaitMined(context.Background(), testTx())
	if err != nil {
		t.Fatalf("wait mined: %v", err)
	}
	if receipt == nil || receipt.Status != types.ReceiptStatusSuccessful {
		t.Fatalf("unexpected receipt %+v", receipt)
	}
	if reader.calls != 3 {
		t.Fatalf("polled %d times, want 3", reader.calls)
	}
}

func TestWaitMinedStopsWithContext(t *testing.T) {
	failures := make([]error, 1000)
	for i := range failures {
		failures[i] = errors.New("connection reset")
	}
	reader := &scriptedReceipts{results: failures}
	poller := NewReceiptPoller(reader, time.Millisecond).WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := poller.WaitMined(ctx, testTx())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if reader.calls < 2 {
		t.Fatalf("gave up after %d lookups", reader.calls)
	}
}
