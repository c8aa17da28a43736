package chain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

// Kind is the closed set of failure categories for ledger interaction.
type Kind int

const (
	// KindNetworkFailure covers transport errors and anything unclassified.
	KindNetworkFailure Kind = iota
	// KindRecoverableEmpty means the call returned no data or undecodable data.
	KindRecoverableEmpty
	// KindReverted means the contract rejected the call.
	KindReverted
	// KindRejected means the signing agent or user declined.
	KindRejected
)

func (k Kind) String() string {
	switch k {
	case KindRecoverableEmpty:
		return "recoverable_empty"
	case KindReverted:
		return "reverted"
	case KindRejected:
		return "rejected"
	default:
		return "network_failure"
	}
}

// Recoverable reports whether reads failing with this kind may fall back.
func (k Kind) Recoverable() bool {
	return k == KindRecoverableEmpty || k == KindReverted
}

// EIP-1193 "user rejected request".
const userRejectedCode = 4001

var (
	ErrReadOnly      = errors.New("chain: contract handle is bound to a read-only endpoint")
	ErrUserRejected  = errors.New("chain: request rejected by user")
	ErrWrongNetwork  = errors.New("chain: signer is connected to the wrong network")
	ErrReceiptFailed = errors.New("chain: transaction reverted on-chain")
	ErrNoHandle      = errors.New("chain: contract not configured")
)

// CallError annotates a ledger failure with the contract and method involved.
type CallError struct {
	Role   Role
	Method string
	Kind   Kind
	Err    error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("%s.%s: %s: %v", e.Role, e.Method, e.Kind, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }

// Classify maps err onto a Kind. err must be non-nil.
func Classify(err error) Kind {
	var callErr *CallError
	if errors.As(err, &callErr) {
		return callErr.Kind
	}
	switch {
	case errors.Is(err, ErrUserRejected),
		errors.Is(err, ErrWrongNetwork),
		errors.Is(err, ErrReadOnly),
		errors.Is(err, keystore.ErrDecrypt):
		return KindRejected
	case errors.Is(err, bind.ErrNoCode):
		return KindRecoverableEmpty
	case errors.Is(err, ErrReceiptFailed):
		return KindReverted
	}
	var coded rpc.Error
	if errors.As(err, &coded) && coded.ErrorCode() == userRejectedCode {
		return KindRejected
	}
	if _, ok := revertData(err); ok {
		return KindReverted
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "execution reverted"):
		return KindReverted
	case strings.Contains(msg, "attempting to unmarshal an empty string"),
		strings.Contains(msg, "improperly formatted output"),
		strings.Contains(msg, "abi: cannot unmarshal"),
		strings.Contains(msg, "no contract code at given address"):
		return KindRecoverableEmpty
	case strings.Contains(msg, "user rejected"), strings.Contains(msg, "user denied"):
		return KindRejected
	}
	return KindNetworkFailure
}

// Reason extracts the most readable explanation for a failed call: the
// decoded revert reason when the node supplied one, otherwise the text
// following "execution reverted:", otherwise the error message.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	if data, ok := revertData(err); ok {
		if reason, uerr := abi.UnpackRevert(data); uerr == nil && reason != "" {
			return reason
		}
	}
	msg := err.Error()
	const marker = "execution reverted: "
	if idx := strings.LastIndex(msg, marker); idx >= 0 {
		if reason := strings.TrimSpace(msg[idx+len(marker):]); reason != "" {
			return reason
		}
	}
	return msg
}

func revertData(err error) ([]byte, bool) {
	var dataErr rpc.DataError
	if !errors.As(err, &dataErr) {
		return nil, false
	}
	switch data := dataErr.ErrorData().(type) {
	case string:
		decoded, derr := hexutil.Decode(data)
		if derr != nil || len(decoded) < 4 {
			return nil, false
		}
		return decoded, true
	case []byte:
		if len(data) < 4 {
			return nil, false
		}
		return data, true
	}
	return nil, false
}
