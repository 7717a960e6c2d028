// Package replay implements spec.md §4.10's standalone replay engine: a
// TransactionMessage journal that drives the exact in-engine code paths
// used on-chain against kv/standalone's RocksDB-backed kv.Backend, plus the
// secondary indices and snapshot export/import a replay deployment needs.
//
// Grounded on x/vm/keeper/msg_server.go's "one method per message type,
// dispatched by the caller" shape (EthereumTx is itself just one case of a
// larger MsgServer), re-expressed as a closed TransactionKind enum replayed
// from a journal instead of routed from a Cosmos Tx's message list.
package replay

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/log"

	"github.com/aurora-is-near/engine-go/diff"
	"github.com/aurora-is-near/engine-go/kv"
	"github.com/aurora-is-near/engine-go/kv/standalone"
)

// ErrBlockNotConsumed is returned by ConsumeTransaction when no ConsumeBlock
// call has recorded the referenced block hash yet.
var ErrBlockNotConsumed = errorsmod.Register("replay", 1, "block was never consumed via ConsumeBlock")

// TransactionKind discriminates every entry-point the original engine
// exposes as a distinct NEAR method, so one journal can replay the whole
// of spec.md's surface rather than only EVM submissions.
type TransactionKind uint8

const (
	KindUnknown TransactionKind = iota
	KindSubmit
	KindCall
	KindDeployCode
	KindDeployErc20
	KindFtOnTransfer
	KindFtTransferCall
	KindDeposit
	KindWithdraw
	KindSetEthConnector
	KindFactoryUpdate
	KindFactorySetWNearAddress
	KindRegisterRelayer
)

func (k TransactionKind) String() string {
	switch k {
	case KindSubmit:
		return "submit"
	case KindCall:
		return "call"
	case KindDeployCode:
		return "deploy_code"
	case KindDeployErc20:
		return "deploy_erc20_token"
	case KindFtOnTransfer:
		return "ft_on_transfer"
	case KindFtTransferCall:
		return "ft_transfer_call"
	case KindDeposit:
		return "deposit"
	case KindWithdraw:
		return "withdraw"
	case KindSetEthConnector:
		return "set_eth_connector_contract_account"
	case KindFactoryUpdate:
		return "factory_update"
	case KindFactorySetWNearAddress:
		return "factory_set_wnear_address"
	case KindRegisterRelayer:
		return "register_relayer"
	default:
		return "unknown"
	}
}

// TransactionMessage is one journal entry: the unit consume_message
// replays. ReceiptID stands in for the NEAR receipt id the original
// journal keys entries by; in this engine it is any caller-supplied unique
// string (a relayer-assigned id, or the submitted transaction's own hash
// hex-encoded for Kind == KindSubmit).
type TransactionMessage struct {
	BlockHash common.Hash     `json:"block_hash"`
	Position  uint16          `json:"position"`
	ReceiptID string          `json:"receipt_id"`
	Kind      TransactionKind `json:"kind"`
	Input     []byte          `json:"input"`
}

// BlockMessage is the per-height journal entry consume_message folds before
// any of that height's transactions are replayed.
type BlockMessage struct {
	Hash     common.Hash `json:"hash"`
	Height   uint64      `json:"height"`
	Metadata []byte      `json:"metadata"`
}

// Dispatcher routes a TransactionMessage to the same in-engine code path
// used on-chain, through backend (kv/standalone's Store, already cursor-set
// by the Replayer) and scope (a fresh diff.NewScope the Replayer commits to
// the store only when the call succeeds). Implemented by package engine; declared here
// instead of imported to avoid replay<->engine import cycle, the same
// interface-injection shape xcc.StorageFunder and engineprecompiles.
// XCCHandler already use.
type Dispatcher interface {
	Dispatch(ctx context.Context, backend kv.Backend, scope *diff.Scope, msg TransactionMessage) (output []byte, err error)
}

// Replayer is the standalone engine's replay loop: it owns the RocksDB
// backend transactions are actually executed and committed against, the
// secondary Index built on top of it, and the Dispatcher that knows how to
// run one TransactionMessage.
type Replayer struct {
	store      *standalone.Store
	index      *Index
	dispatcher Dispatcher
	logger     log.Logger
}

func NewReplayer(store *standalone.Store, index *Index, dispatcher Dispatcher, logger log.Logger) *Replayer {
	return &Replayer{store: store, index: index, dispatcher: dispatcher, logger: logger}
}

// ConsumeBlock records height<->hash and the block's opaque metadata blob
// (e.g. timestamp, gas used) so later BLOCKHASH lookups and audits can
// resolve a height to the hash replay saw for it.
func (r *Replayer) ConsumeBlock(blk BlockMessage) error {
	if err := r.index.PutBlock(blk.Hash, blk.Height, blk.Metadata); err != nil {
		return errorsmod.Wrapf(err, "record block %s", blk.Hash)
	}
	r.logger.Info("replay: consumed block", "height", blk.Height, "hash", blk.Hash)
	return nil
}

// ConsumeTransaction replays one TransactionMessage: it fixes the backend's
// cursor to (height, position), runs the dispatcher against a fresh child
// scope, and — only on success — commits the resulting diff to RocksDB and
// records it (plus the TrackedKey history and the receipt/position
// indices) in the secondary Index. A failing dispatch leaves no trace: the
// scope is simply dropped, matching the all-or-nothing commit semantics
// spec.md §8's P4 revert-atomicity invariant requires of on-chain execution
// too.
func (r *Replayer) ConsumeTransaction(ctx context.Context, msg TransactionMessage) ([]byte, error) {
	height, ok, err := r.index.HeightForBlock(msg.BlockHash)
	if err != nil {
		return nil, errorsmod.Wrapf(err, "resolve height for block %s", msg.BlockHash)
	}
	if !ok {
		return nil, errorsmod.Wrapf(ErrBlockNotConsumed, "block %s", msg.BlockHash)
	}

	r.store.SetCursor(height, msg.Position)
	r.store.SetInput(msg.Input)

	scope := diff.NewScope()
	output, err := r.dispatcher.Dispatch(ctx, r.store, scope, msg)
	if err != nil {
		return nil, err
	}

	d := scope.Root()

	entries := make(map[string]standalone.DiffEntry, d.Len())
	d.Each(func(key string, e diff.Entry) {
		entries[key] = standalone.DiffEntry{Value: e.Value, Deleted: e.Deleted}
	})
	if err := r.store.CommitDiff(height, msg.Position, entries); err != nil {
		return nil, errorsmod.Wrapf(err, "commit diff for %s", msg.ReceiptID)
	}

	if err := r.index.PutTransaction(msg); err != nil {
		return nil, errorsmod.Wrapf(err, "index transaction %s", msg.ReceiptID)
	}
	if err := r.index.PutPositionReceipt(msg.BlockHash, msg.Position, msg.ReceiptID); err != nil {
		return nil, errorsmod.Wrapf(err, "index position %d", msg.Position)
	}
	if err := r.index.PutDiff(msg.BlockHash, msg.Position, d); err != nil {
		return nil, errorsmod.Wrapf(err, "index diff for %s", msg.ReceiptID)
	}
	if err := r.index.RecordTrackedKeys(height, msg.Position, d); err != nil {
		return nil, errorsmod.Wrapf(err, "record tracked keys for %s", msg.ReceiptID)
	}

	r.logger.Info("replay: consumed transaction", "kind", msg.Kind, "receipt_id", msg.ReceiptID, "keys_touched", d.Len())
	return output, nil
}
