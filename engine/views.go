package engine

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core"

	"github.com/aurora-is-near/engine-go/diff"
	"github.com/aurora-is-near/engine-go/evmcore"
	"github.com/aurora-is-near/engine-go/host"
	"github.com/aurora-is-near/engine-go/kv"
	ecommon "github.com/aurora-is-near/engine-go/precompiles/common"
)

// CallInput is `call`'s payload (spec.md §4.6's eth_call-equivalent entry
// point): an unsigned message run against current state with no nonce,
// signature or balance-debit admission — only the EVM result matters.
type CallInput struct {
	From  common.Address
	To    *common.Address
	Value *big.Int
	Data  []byte
	Gas   uint64
}

// Call runs in a child scope that is unconditionally discarded: a view
// call must never leave a trace, success or failure, even if its own
// precompiles (e.g. a promise Create) try to stage a write.
func (o *Orchestrator) Call(ctx context.Context, backend kv.Backend, scope *diff.Scope, env host.Environment, blk BlockConfig, in CallInput) (*SubmitResult, error) {
	child := scope.Enter()
	defer child.Discard()

	k := o.keepers(backend, child)
	es, err := k.admin.State(ctx)
	if err != nil {
		return nil, err
	}
	chainID := new(big.Int).SetBytes(es.ChainID[:])

	value := in.Value
	if value == nil {
		value = big.NewInt(0)
	}
	msg := &core.Message{
		From:      in.From,
		To:        in.To,
		Value:     value,
		Data:      in.Data,
		GasLimit:  in.Gas,
		GasPrice:  big.NewInt(0),
		GasFeeCap: big.NewInt(0),
		GasTipCap: big.NewInt(0),
	}
	if msg.GasLimit == 0 {
		msg.GasLimit = blk.GasLimit
	}

	sdb := evmcore.NewStateDB(ctx, k.state, evmcore.TxConfig{}, o.logger)
	ec := &ecommon.ExecutionContext{State: k.state, StateDB: sdb, Env: env, Promises: &RecordingPromises{}, Caller: in.From, ReadOnly: true}

	evmCfg := evmcore.Config{ChainID: chainID, BlockNumber: new(big.Int).SetUint64(blk.Height), BlockTime: blk.Time, Coinbase: blk.Coinbase, GasLimit: blk.GasLimit, BaseFee: blk.BaseFee, GetHash: blk.GetHash}
	evm := evmcore.NewEVM(evmCfg, msg, sdb)

	rules := evm.ChainConfig().Rules(evm.Context.BlockNumber, true, evm.Context.Time)
	precompiles, err := o.buildPrecompiles(ctx, ec, k, rules)
	if err != nil {
		return nil, err
	}
	evm.WithPrecompiles(precompiles)

	res, err := evmcore.ApplyMessage(evm, sdb, msg, 0)
	if err != nil {
		return nil, err
	}

	return &SubmitResult{
		Version:         submitResultVersion,
		Status:          statusFromVMError(res.VMError),
		GasUsed:         res.GasUsed,
		ContractAddress: res.ContractAddress,
		Output:          res.ReturnData,
		Logs:            res.Logs,
		VMError:         res.VMError,
	}, nil
}

// DeployCodeInput is `deploy_code`'s payload: a CREATE with no signed RLP
// wrapper, the shape the host uses when its own predecessor (rather than
// a recovered ECDSA sender) is the deploying identity.
type DeployCodeInput struct {
	From  common.Address
	Value *big.Int
	Code  []byte
	Gas   uint64
}

// DeployCode implements `deploy_code`, committing to scope on success like
// Submit — the caller decides whether to keep or discard it.
func (o *Orchestrator) DeployCode(ctx context.Context, backend kv.Backend, scope *diff.Scope, env host.Environment, promises host.Promises, blk BlockConfig, in DeployCodeInput) (*SubmitResult, error) {
	k := o.keepers(backend, scope)
	es, err := k.admin.State(ctx)
	if err != nil {
		return nil, err
	}
	chainID := new(big.Int).SetBytes(es.ChainID[:])

	if err := k.silo.CheckDeploy(ctx, es.HasFixedGas, env.PredecessorAccountID(), in.From); err != nil {
		return nil, err
	}

	nonce, err := k.state.GetNonce(ctx, in.From)
	if err != nil {
		return nil, err
	}

	value := in.Value
	if value == nil {
		value = big.NewInt(0)
	}
	msg := &core.Message{
		From:      in.From,
		To:        nil,
		Value:     value,
		Data:      in.Code,
		GasLimit:  in.Gas,
		GasPrice:  big.NewInt(0),
		GasFeeCap: big.NewInt(0),
		GasTipCap: big.NewInt(0),
		Nonce:     nonce,
	}

	sdb := evmcore.NewStateDB(ctx, k.state, evmcore.TxConfig{}, o.logger)
	ec := &ecommon.ExecutionContext{State: k.state, StateDB: sdb, Env: env, Promises: promises, Caller: in.From}

	evmCfg := evmcore.Config{ChainID: chainID, BlockNumber: new(big.Int).SetUint64(blk.Height), BlockTime: blk.Time, Coinbase: blk.Coinbase, GasLimit: blk.GasLimit, BaseFee: blk.BaseFee, GetHash: blk.GetHash}
	evm := evmcore.NewEVM(evmCfg, msg, sdb)

	rules := evm.ChainConfig().Rules(evm.Context.BlockNumber, true, evm.Context.Time)
	precompiles, err := o.buildPrecompiles(ctx, ec, k, rules)
	if err != nil {
		return nil, err
	}
	evm.WithPrecompiles(precompiles)

	res, err := evmcore.ApplyMessage(evm, sdb, msg, 53_000)
	if err != nil {
		return nil, err
	}

	return &SubmitResult{
		Version:         submitResultVersion,
		Status:          statusFromVMError(res.VMError),
		GasUsed:         res.GasUsed,
		ContractAddress: res.ContractAddress,
		Output:          res.ReturnData,
		Logs:            res.Logs,
		VMError:         res.VMError,
	}, nil
}

// DeployErc20Token implements `deploy_erc20_token`: a thin wrapper over
// bridge.Keeper.RegisterToken, which installs the new token's view
// precompile via bridge.Keeper.Set the next time a precompile table is
// assembled.
func (o *Orchestrator) DeployErc20Token(ctx context.Context, backend kv.Backend, scope *diff.Scope, nep141AccountID, name, symbol string, decimals uint8) (common.Address, error) {
	k := o.keepers(backend, scope)
	return k.bridge.RegisterToken(ctx, nep141AccountID, name, symbol, decimals)
}

// FtOnTransferInput is the NEP-141 token contract's ft_on_transfer
// callback: amount of nep141AccountID's token was deposited on the
// engine's behalf, msg names the destination EVM address.
type FtOnTransferInput struct {
	Nep141AccountID string
	Amount          *big.Int
	Msg             string
}

// FtOnTransfer implements spec.md §4.7's deposit leg: mints the bridged
// ERC-20 balance, returning the amount to refund the caller (zero on a
// clean mint).
func (o *Orchestrator) FtOnTransfer(ctx context.Context, backend kv.Backend, scope *diff.Scope, env host.Environment, promises host.Promises, in FtOnTransferInput) (*big.Int, error) {
	k := o.keepers(backend, scope)
	sdb := evmcore.NewStateDB(ctx, k.state, evmcore.TxConfig{}, o.logger)
	ec := &ecommon.ExecutionContext{State: k.state, StateDB: sdb, Env: env, Promises: promises}
	return k.bridge.FtOnTransfer(ctx, ec, in.Nep141AccountID, in.Amount, in.Msg)
}

// WithdrawInput is the exit leg's standalone entry point: burn amount of
// token (identified by its ERC-20 address) from sender's balance and
// return the NEP-141 account id the host promise should pay out to.
type WithdrawInput struct {
	Token  common.Address
	Sender common.Address
	Amount *big.Int
}

// Withdraw implements spec.md §4.7's exit leg outside of an EVM call
// (exit_to_near/exit_to_eth normally reach bridge.Keeper.Burn through the
// exit precompile; this is the same operation invoked directly for a host
// that models withdraw as its own NEAR method rather than routing it
// through `submit`).
func (o *Orchestrator) Withdraw(ctx context.Context, backend kv.Backend, scope *diff.Scope, env host.Environment, promises host.Promises, in WithdrawInput) (string, error) {
	k := o.keepers(backend, scope)
	sdb := evmcore.NewStateDB(ctx, k.state, evmcore.TxConfig{}, o.logger)
	ec := &ecommon.ExecutionContext{State: k.state, StateDB: sdb, Env: env, Promises: promises, Caller: in.Sender}
	return k.bridge.Burn(ec, in.Token, in.Sender, in.Amount)
}

// RegisterRelayer implements `register_relayer` (spec.md §6): the
// predecessor account id records the EVM address its `submit` gas fees
// should be credited to, as looked up by Submit's relayer fee-credit
// step (state.Keeper.RelayerAddress).
func (o *Orchestrator) RegisterRelayer(ctx context.Context, backend kv.Backend, scope *diff.Scope, predecessorAccountID string, addr common.Address) error {
	k := o.keepers(backend, scope)
	k.state.RegisterRelayer(ctx, predecessorAccountID, addr)
	return nil
}

// GetBalance, GetNonce, GetCode and GetStorageAt are the view accessors
// spec.md §4.6 names: direct state.Keeper reads with no EVM execution.

func (o *Orchestrator) GetBalance(ctx context.Context, backend kv.Backend, scope *diff.Scope, addr common.Address) (*big.Int, error) {
	k := o.keepers(backend, scope)
	b, err := k.state.GetBalance(ctx, addr)
	if err != nil {
		return nil, err
	}
	return b.ToBig(), nil
}

func (o *Orchestrator) GetNonce(ctx context.Context, backend kv.Backend, scope *diff.Scope, addr common.Address) (uint64, error) {
	k := o.keepers(backend, scope)
	return k.state.GetNonce(ctx, addr)
}

func (o *Orchestrator) GetCode(ctx context.Context, backend kv.Backend, scope *diff.Scope, addr common.Address) ([]byte, error) {
	k := o.keepers(backend, scope)
	return k.state.GetCode(ctx, addr)
}

func (o *Orchestrator) GetStorageAt(ctx context.Context, backend kv.Backend, scope *diff.Scope, addr common.Address, slot common.Hash) (common.Hash, error) {
	k := o.keepers(backend, scope)
	return k.state.StorageGet(ctx, addr, slot)
}
