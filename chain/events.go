package chain

import (
	"context"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// TransferTopic is the ERC-20/ERC-721 Transfer event signature.
var TransferTopic = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))

// Transfer is a decoded ERC-721 Transfer log.
type Transfer struct {
	From        common.Address
	To          common.Address
	TokenID     *big.Int
	BlockNumber uint64
	LogIndex    uint
	TxHash      common.Hash
}

func filterQuery(address common.Address, topics [][]common.Hash) ethereum.FilterQuery {
	return ethereum.FilterQuery{
		FromBlock: big.NewInt(0),
		Addresses: []common.Address{address},
		Topics:    topics,
	}
}

// TransferTopics builds the topic filter for Transfer(from, to, *). A nil
// address matches any value in that position.
func TransferTopics(from, to *common.Address) [][]common.Hash {
	topics := [][]common.Hash{{TransferTopic}, nil, nil}
	if from != nil {
		topics[1] = []common.Hash{common.BytesToHash(from.Bytes())}
	}
	if to != nil {
		topics[2] = []common.Hash{common.BytesToHash(to.Bytes())}
	}
	return topics
}

// DecodeTransfer reads an ERC-721 Transfer log where all three arguments
// are indexed.
func DecodeTransfer(log types.Log) (Transfer, bool) {
	if len(log.Topics) < 4 || log.Topics[0] != TransferTopic {
		return Transfer{}, false
	}
	return Transfer{
		From:        common.BytesToAddress(log.Topics[1].Bytes()),
		To:          common.BytesToAddress(log.Topics[2].Bytes()),
		TokenID:     new(big.Int).SetBytes(log.Topics[3].Bytes()),
		BlockNumber: log.BlockNumber,
		LogIndex:    log.Index,
		TxHash:      log.TxHash,
	}, true
}

// Transfers scans c for Transfer logs between from and to, in chain order.
func Transfers(ctx context.Context, c Contract, from, to *common.Address) ([]Transfer, error) {
	logs, err := c.FilterLogs(ctx, TransferTopics(from, to))
	if err != nil {
		return nil, err
	}
	out := make([]Transfer, 0, len(logs))
	for _, log := range logs {
		if log.Removed {
			continue
		}
		if tr, ok := DecodeTransfer(log); ok {
			out = append(out, tr)
		}
	}
	SortTransfers(out)
	return out, nil
}

// SortTransfers orders transfers by block then log index.
func SortTransfers(transfers []Transfer) {
	sort.SliceStable(transfers, func(i, j int) bool {
		if transfers[i].BlockNumber != transfers[j].BlockNumber {
			return transfers[i].BlockNumber < transfers[j].BlockNumber
		}
		return transfers[i].LogIndex < transfers[j].LogIndex
	})
}
