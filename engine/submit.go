package engine

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/params"
	"github.com/holiman/uint256"

	"cosmossdk.io/log"

	"github.com/aurora-is-near/engine-go/admin"
	"github.com/aurora-is-near/engine-go/bridge"
	"github.com/aurora-is-near/engine-go/diff"
	"github.com/aurora-is-near/engine-go/evmcore"
	"github.com/aurora-is-near/engine-go/hashchain"
	"github.com/aurora-is-near/engine-go/host"
	"github.com/aurora-is-near/engine-go/hosterror"
	"github.com/aurora-is-near/engine-go/kv"
	ecommon "github.com/aurora-is-near/engine-go/precompiles/common"
	"github.com/aurora-is-near/engine-go/precompiles/engineprecompiles"
	"github.com/aurora-is-near/engine-go/precompiles/standard"
	"github.com/aurora-is-near/engine-go/silo"
	"github.com/aurora-is-near/engine-go/state"
	"github.com/aurora-is-near/engine-go/txcodec"
	"github.com/aurora-is-near/engine-go/xcc"
)

// BlockConfig carries the block-level facts a dispatched message's EVM
// instance needs — the per-block equivalent of evmcore.Config, plus the
// hashchain accumulator the transaction's digest/logs fold into.
type BlockConfig struct {
	Height   uint64
	Time     uint64
	Coinbase common.Address
	GasLimit uint64
	BaseFee  *big.Int
	GetHash  evmcore.GetHashFunc
}

// Orchestrator implements spec.md §4.6: it owns no state itself (every
// keeper it builds is a thin wrapper over the state.Keeper handed to it per
// call) and is safe to share across concurrently dispatched transactions
// as long as each call gets its own backend/scope pair — exactly
// replay.Replayer's and the real host binding's usage pattern.
type Orchestrator struct {
	logger log.Logger
}

func NewOrchestrator(logger log.Logger) *Orchestrator {
	return &Orchestrator{logger: logger.With("module", "engine")}
}

// keepers bundles every sibling package's accessor, all pointed at the same
// state.Keeper for one dispatched message.
type keepers struct {
	state  *state.Keeper
	admin  *admin.Keeper
	silo   *silo.Keeper
	bridge *bridge.Keeper
	router *xcc.Keeper
}

func (o *Orchestrator) keepers(backend kv.Backend, scope *diff.Scope) *keepers {
	s := state.NewKeeper(backend, scope, o.logger)
	return &keepers{
		state:  s,
		admin:  admin.NewKeeper(s),
		silo:   silo.NewKeeper(s),
		bridge: bridge.NewKeeper(s),
		router: xcc.NewKeeper(s),
	}
}

// buildPrecompiles assembles one transaction's full precompile table:
// go-ethereum's own 0x01-0x0a set, then every registered bridged ERC-20
// token's view precompile, then this engine's bespoke precompiles, each
// layer added with precompiles/standard.Merge (the later layer wins on an
// address collision).
func (o *Orchestrator) buildPrecompiles(ctx context.Context, ec *ecommon.ExecutionContext, k *keepers, rules params.Rules) (map[common.Address]vm.PrecompiledContract, error) {
	base := standard.ActiveSet(rules)
	bridgeSet, err := k.bridge.Set(ctx, ec)
	if err != nil {
		return nil, err
	}
	engineSet := engineprecompiles.Set(ec, k.bridge, xcc.NewHandler(k.router))
	out := standard.Merge(base, bridgeSet)
	out = standard.Merge(out, engineSet)
	return out, nil
}

// SubmitInput is the decoded payload `submit`/`submit_with_args` takes: the
// raw signed transaction plus the ambient admission facts the host
// supplies out-of-band (spec.md §4.6 steps 1-3 operate on Raw; steps 4+
// need PredecessorAccountID for the silo gate).
type SubmitInput struct {
	Raw                  []byte
	PredecessorAccountID string
	MaxGasPrice          *big.Int // nil disables the cap
}

// Submit implements spec.md §4.6's full pipeline: decode, chain-id check,
// sender recovery, silo gate, nonce check, intrinsic gas, fixed-gas
// override, upfront debit, EVM execution, refund, and the hashchain digest
// fold — everything except the final commit, which the caller performs by
// deciding whether to keep or discard scope (package replay keeps it only
// on a nil error; the real host binding does the same around its own
// commit boundary).
func (o *Orchestrator) Submit(ctx context.Context, backend kv.Backend, scope *diff.Scope, env host.Environment, promises host.Promises, blk BlockConfig, in SubmitInput) (*SubmitResult, error) {
	k := o.keepers(backend, scope)

	es, err := k.admin.State(ctx)
	if err != nil {
		return nil, err
	}

	tx, err := txcodec.Decode(in.Raw)
	if err != nil {
		return nil, err
	}
	chainID := new(big.Int).SetBytes(es.ChainID[:])
	if err := txcodec.CheckChainID(tx, chainID); err != nil {
		return nil, err
	}
	sender, err := txcodec.RecoverSender(tx, chainID)
	if err != nil {
		return nil, err
	}

	if in.MaxGasPrice != nil && tx.GasPrice() != nil && tx.GasPrice().Cmp(in.MaxGasPrice) > 0 {
		return nil, hosterror.New(hosterror.CodeMaxGasPriceExceeded)
	}

	if err := k.silo.CheckSubmit(ctx, es.HasFixedGas, in.PredecessorAccountID, sender); err != nil {
		return nil, err
	}
	if tx.To() == nil {
		if err := k.silo.CheckDeploy(ctx, es.HasFixedGas, in.PredecessorAccountID, sender); err != nil {
			return nil, err
		}
	}

	nonce, err := k.state.GetNonce(ctx, sender)
	if err != nil {
		return nil, err
	}
	if tx.Nonce() != nonce {
		return nil, hosterror.Newf(hosterror.CodeIncorrectNonce, "ac: %d, tx: %d", nonce, tx.Nonce())
	}

	intrinsicGas := txcodec.IntrinsicGas(tx)
	if tx.Gas() < intrinsicGas {
		return nil, hosterror.New(hosterror.CodeIntrinsicGas)
	}
	if es.HasFixedGas && tx.Gas() < es.FixedGas {
		return nil, hosterror.New(hosterror.CodeFixedGasOverflow)
	}

	msg := &core.Message{
		From:      sender,
		To:        tx.To(),
		Value:     tx.Value(),
		Data:      tx.Data(),
		GasLimit:  tx.Gas(),
		GasPrice:  effectiveGasPrice(tx, blk.BaseFee),
		GasFeeCap: tx.GasFeeCap(),
		GasTipCap: tx.GasTipCap(),
		Nonce:     tx.Nonce(),
		AccessList: tx.AccessList(),
	}

	sdb := evmcore.NewStateDB(ctx, k.state, evmcore.TxConfig{TxHash: tx.Hash()}, o.logger)
	ec := &ecommon.ExecutionContext{State: k.state, StateDB: sdb, Env: env, Promises: promises, Caller: sender}

	evmCfg := evmcore.Config{ChainID: chainID, BlockNumber: new(big.Int).SetUint64(blk.Height), BlockTime: blk.Time, Coinbase: blk.Coinbase, GasLimit: blk.GasLimit, BaseFee: blk.BaseFee, GetHash: blk.GetHash}
	evm := evmcore.NewEVM(evmCfg, msg, sdb)

	rules := evm.ChainConfig().Rules(evm.Context.BlockNumber, true, evm.Context.Time)
	precompiles, err := o.buildPrecompiles(ctx, ec, k, rules)
	if err != nil {
		return nil, err
	}
	evm.WithPrecompiles(precompiles)

	upfrontCost := new(big.Int).Mul(msg.GasPrice, new(big.Int).SetUint64(msg.GasLimit))
	upfrontCost.Add(upfrontCost, msg.Value)
	balance, err := k.state.GetBalance(ctx, sender)
	if err != nil {
		return nil, err
	}
	cost256, overflow := uint256.FromBig(upfrontCost)
	if overflow || balance.Cmp(cost256) < 0 {
		return nil, hosterror.New(hosterror.CodeOutOfFund)
	}
	debit, _ := uint256.FromBig(new(big.Int).Mul(msg.GasPrice, new(big.Int).SetUint64(msg.GasLimit)))
	k.state.SetBalance(ctx, sender, new(uint256.Int).Sub(balance, debit))

	res, applyErr := evmcore.ApplyMessage(evm, sdb, msg, intrinsicGas)
	if applyErr != nil {
		return nil, applyErr
	}

	// A CREATE already bumps the sender's nonce inside ApplyMessage (CREATE's
	// own semantics, independent of transaction accounting); every other
	// message kind still needs the ordinary per-transaction nonce bump here.
	if tx.To() != nil {
		k.state.SetNonce(ctx, sender, nonce+1)
	}

	reportedGas := res.GasUsed
	if es.HasFixedGas {
		reportedGas = es.FixedGas
	}
	refund := new(uint256.Int).Mul(uint256.MustFromBig(msg.GasPrice), uint256.NewInt(msg.GasLimit-reportedGas))
	after, err := k.state.GetBalance(ctx, sender)
	if err != nil {
		return nil, err
	}
	k.state.SetBalance(ctx, sender, new(uint256.Int).Add(after, refund))

	// Step 10: credit the charged gas cost (FixedGas in silo fixed-gas mode)
	// to the relayer address behind PredecessorAccountID — balance
	// conservation (spec.md §3, P3) requires this land somewhere, not vanish.
	relayerAddr, err := k.state.RelayerAddress(ctx, in.PredecessorAccountID)
	if err != nil {
		return nil, err
	}
	relayerBalance, err := k.state.GetBalance(ctx, relayerAddr)
	if err != nil {
		return nil, err
	}
	gasCredit := new(uint256.Int).Mul(uint256.MustFromBig(msg.GasPrice), uint256.NewInt(reportedGas))
	k.state.SetBalance(ctx, relayerAddr, new(uint256.Int).Add(relayerBalance, gasCredit))

	hc := hashchain.NewKeeper(k.state, chainID, env.CurrentAccountID())
	height, previousHashchain, acc, err := hc.Load(ctx)
	if err != nil {
		return nil, err
	}
	acc.AddTransaction("submit", in.Raw, res.ReturnData, res.Logs)
	if err := hc.Save(height, previousHashchain, acc); err != nil {
		return nil, err
	}

	return &SubmitResult{
		Version:         submitResultVersion,
		Status:          statusFromVMError(res.VMError),
		GasUsed:         reportedGas,
		ContractAddress: res.ContractAddress,
		Output:          res.ReturnData,
		Logs:            res.Logs,
		VMError:         res.VMError,
	}, nil
}

// effectiveGasPrice mirrors go-ethereum's own EIP-1559 effective-price rule:
// legacy/2930 transactions charge their flat GasPrice; 1559 transactions
// charge min(tip+baseFee, feeCap).
func effectiveGasPrice(tx interface {
	GasPrice() *big.Int
	GasFeeCap() *big.Int
	GasTipCap() *big.Int
}, baseFee *big.Int) *big.Int {
	if tx.GasFeeCap().Sign() == 0 || baseFee == nil {
		return tx.GasPrice()
	}
	tip := new(big.Int).Add(tx.GasTipCap(), baseFee)
	if tip.Cmp(tx.GasFeeCap()) > 0 {
		return tx.GasFeeCap()
	}
	return tip
}

// ErrUnknownTransactionKind is returned by Dispatch for a TransactionKind
// this orchestrator has no handler for.
var ErrUnknownTransactionKind = fmt.Errorf("engine: unknown transaction kind")
