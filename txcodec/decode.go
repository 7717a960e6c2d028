// Package txcodec implements the Transaction Codec of spec.md §4.3: RLP
// decode/encode for legacy, EIP-2930 and EIP-1559 signed transactions,
// signer recovery, and chain-id binding. It delegates the actual RLP
// decoding and signature recovery to go-ethereum's own
// core/types.Transaction and core/types.Signer — exactly how
// x/vm/types/eth.go's EthereumTx wrapper and
// x/vm/keeper/state_transition.go's ApplyTransaction do it — since
// go-ethereum's decoder already implements EIP-155/2930/1559 precisely and
// spec.md §4.4 explicitly allows a vendored interpreter.
package txcodec

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/aurora-is-near/engine-go/hosterror"
)

// Transaction is the decoded, chain-id-bound, sender-recovered view of a
// signed transaction the rest of the engine operates on.
type Transaction struct {
	Raw    *types.Transaction
	Sender common.Address
}

// Decode parses raw RLP bytes into a *types.Transaction. It does not yet
// recover the sender or check the chain id — those are separate admission
// steps (spec.md §4.6 steps 2-3) so each can fail with its own distinct
// host error.
func Decode(raw []byte) (*types.Transaction, error) {
	if len(raw) == 0 {
		return nil, hosterror.New(hosterror.CodeParseTransaction)
	}
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		return nil, hosterror.Newf(hosterror.CodeParseTransaction, "%v", err)
	}
	return tx, nil
}

// CheckChainID implements spec.md §4.3's chain-id binding: legacy
// transactions with v ∈ {27,28} are unchained and always pass; all other
// transactions must carry exactly the engine's configured chain id.
func CheckChainID(tx *types.Transaction, engineChainID *big.Int) error {
	if tx.Protected() && tx.ChainId().Cmp(engineChainID) != 0 {
		return hosterror.Newf(hosterror.CodeInvalidChainID, "expected %s, got %s", engineChainID, tx.ChainId())
	}
	return nil
}

// RecoverSender recovers the sending address using the fork-appropriate
// signer for engineChainID, implementing the v/recovery-id rules of
// spec.md §4.3 (unchained legacy v ∈ {27,28}; EIP-155 v = chain_id*2+35/36;
// typed transactions use y_parity) via go-ethereum's types.Signer.
func RecoverSender(tx *types.Transaction, engineChainID *big.Int) (common.Address, error) {
	signer := types.LatestSignerForChainID(engineChainID)
	addr, err := types.Sender(signer, tx)
	if err != nil {
		return common.Address{}, hosterror.Newf(hosterror.CodeInvalidSignature, "%v", err)
	}
	return addr, nil
}

// DecodeAndRecover runs Decode, CheckChainID and RecoverSender in sequence,
// the way `submit`'s first three admission steps do.
func DecodeAndRecover(raw []byte, engineChainID *big.Int) (*Transaction, error) {
	tx, err := Decode(raw)
	if err != nil {
		return nil, err
	}
	if err := CheckChainID(tx, engineChainID); err != nil {
		return nil, err
	}
	sender, err := RecoverSender(tx, engineChainID)
	if err != nil {
		return nil, err
	}
	return &Transaction{Raw: tx, Sender: sender}, nil
}
