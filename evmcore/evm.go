package evmcore

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/core/tracing"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/params"
	"github.com/holiman/uint256"

	"github.com/aurora-is-near/engine-go/hosterror"
)

// ChainConfig returns the chain configuration this engine runs: every fork
// through Cancun active from genesis. Unlike a public Ethereum chain, this
// engine has no fork-activation schedule of its own (spec.md §4.4) — the
// host chain (NEAR shard) decides when to roll the binary forward, so the
// EVM semantics it exposes are always "the latest fork", pinned at
// deployment time rather than activated block-by-block.
func ChainConfig(chainID *big.Int) *params.ChainConfig {
	zero := big.NewInt(0)
	return &params.ChainConfig{
		ChainID:                       chainID,
		HomesteadBlock:                zero,
		EIP150Block:                   zero,
		EIP155Block:                   zero,
		EIP158Block:                   zero,
		ByzantiumBlock:                zero,
		ConstantinopleBlock:           zero,
		PetersburgBlock:               zero,
		IstanbulBlock:                 zero,
		MuirGlacierBlock:              zero,
		BerlinBlock:                   zero,
		LondonBlock:                   zero,
		ArrowGlacierBlock:             zero,
		GrayGlacierBlock:              zero,
		MergeNetsplitBlock:            zero,
		TerminalTotalDifficulty:       zero,
		TerminalTotalDifficultyPassed: true,
		ShanghaiTime:                  new(uint64),
		CancunTime:                    new(uint64),
	}
}

// GetHashFunc resolves a historical block number to its hash for the
// BLOCKHASH opcode, supplied by the caller through Config.GetHash.
// hashchain.Keeper.GetHashFunc builds one from hashchain's per-height hash
// index (spec.md §4.9); engine.Dispatch's block config and the enginecli
// submit command pass one that returns the zero hash for every height.
type GetHashFunc = vm.GetHashFunc

// Config carries the block-level facts every transaction in a block shares
// — the equivalent of x/vm/keeper/state_transition.go's statedb.EVMConfig,
// trimmed of the Cosmos-specific fee-market/access-control fields this
// engine has no equivalent of.
type Config struct {
	ChainID     *big.Int
	BlockNumber *big.Int
	BlockTime   uint64
	Coinbase    common.Address
	GasLimit    uint64
	BaseFee     *big.Int
	GetHash     GetHashFunc
}

// NewEVM constructs a *vm.EVM wired to sdb and msg, in the shape of
// x/vm/keeper/state_transition.go's NewEVMWithOverridePrecompiles — minus
// the opcode-hook/access-control machinery this engine has no Cosmos
// governance layer to drive, and minus tracer wiring (spec.md's Non-goals
// exclude a JSON-RPC debug surface; logging instead goes through the
// ambient structured logger, not an EVM tracer).
func NewEVM(cfg Config, msg *core.Message, sdb *StateDB) *vm.EVM {
	blockCtx := vm.BlockContext{
		CanTransfer: core.CanTransfer,
		Transfer:    core.Transfer,
		GetHash:     cfg.GetHash,
		Coinbase:    cfg.Coinbase,
		GasLimit:    cfg.GasLimit,
		BlockNumber: cfg.BlockNumber,
		Time:        cfg.BlockTime,
		Difficulty:  big.NewInt(0),
		BaseFee:     cfg.BaseFee,
		Random:      &common.MaxHash,
	}
	chainCfg := ChainConfig(cfg.ChainID)
	evm := vm.NewEVM(blockCtx, sdb, chainCfg, vm.Config{})
	evm.SetTxContext(core.NewEVMTxContext(msg))
	return evm
}

// Result is the raw outcome of running one message through the EVM — the
// level below engine.SubmitResult (spec.md §4.6's version-tagged ABI),
// which wraps this with the admission-level fields (status byte, gas used
// in the host's own accounting) the host interface exposes.
type Result struct {
	ReturnData      []byte
	GasUsed         uint64
	GasRefunded     uint64
	Logs            []*types.Log
	ContractAddress common.Address
	Reverted        bool
	VMError         string
}

// Failed reports whether the EVM itself rejected or reverted the message —
// distinct from a hosterror admission failure, which never reaches this far.
func (r *Result) Failed() bool { return r.VMError != "" }

// toPanicError converts a recovered panic value back into an error:
// StateDB.must() panics with the original error it was handed (a corrupt
// backend or a cancelled context), so the common case just unwraps it;
// anything else becomes a ERR_STATE_CORRUPT-class hosterror instead of
// crashing the whole replay/submit process over one bad transaction.
func toPanicError(r interface{}) error {
	if err, ok := r.(error); ok {
		return err
	}
	return hosterror.Newf(hosterror.CodeStateCorrupt, "panic: %v", r)
}

// ApplyMessage runs msg against evm/sdb, implementing the gas-accounting
// half of x/vm/keeper/state_transition.go's ApplyMessageWithConfig: intrinsic
// gas has already been checked by the caller (txcodec.IntrinsicGas, per
// spec.md §4.3's earlier admission step), so this only drives the
// Call/Create dispatch and the post-execution refund calculation.
func ApplyMessage(evm *vm.EVM, sdb *StateDB, msg *core.Message, intrinsicGas uint64) (result *Result, err error) {
	if msg.GasLimit < intrinsicGas {
		return nil, hosterror.New(hosterror.CodeIntrinsicGas)
	}

	defer func() {
		if r := recover(); r != nil {
			result, err = nil, toPanicError(r)
		}
	}()

	leftoverGas := msg.GasLimit - intrinsicGas

	rules := evm.ChainConfig().Rules(evm.Context.BlockNumber, true, evm.Context.Time)
	sdb.Prepare(rules, msg.From, evm.Context.Coinbase, msg.To, evm.ActivePrecompiles(), msg.AccessList)

	value, overflow := uint256.FromBig(msg.Value)
	if overflow {
		return nil, hosterror.New(hosterror.CodeInvalidValue)
	}

	var (
		ret             []byte
		vmErr           error
		contractAddress common.Address
	)
	if msg.To == nil {
		sdb.SetNonce(msg.From, msg.Nonce, tracing.NonceChangeEoACall)
		ret, contractAddress, leftoverGas, vmErr = evm.Create(msg.From, msg.Data, leftoverGas, value)
		sdb.SetNonce(msg.From, msg.Nonce+1, tracing.NonceChangeContractCreator)
		if vmErr == nil {
			sdb.MarkCreatedThisTx(contractAddress)
		}
	} else {
		ret, leftoverGas, vmErr = evm.Call(msg.From, *msg.To, msg.Data, leftoverGas, value)
	}

	refundQuotient := params.RefundQuotientEIP3529
	maxUsedGas := msg.GasLimit - leftoverGas
	refund := sdb.GetRefund()
	if refundCap := maxUsedGas / refundQuotient; refund > refundCap {
		refund = refundCap
	}
	gasUsed := maxUsedGas - refund

	vmError := ""
	if vmErr != nil {
		vmError = vmErr.Error()
	}
	if vmErr == vm.ErrExecutionReverted {
		ret = evm.Interpreter().ReturnData()
	}

	return &Result{
		ReturnData:      ret,
		GasUsed:         gasUsed,
		GasRefunded:     refund,
		Logs:            sdb.Logs(),
		ContractAddress: contractAddress,
		Reverted:        vmErr == vm.ErrExecutionReverted,
		VMError:         vmError,
	}, nil
}
