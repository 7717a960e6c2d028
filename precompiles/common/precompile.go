// Package common is the base every engine precompile (package
// engineprecompiles, package bridge, package xcc) builds on: gas
// accounting, snapshot/revert around the native action, and ABI method
// dispatch. Grounded on precompiles/common/precompile.go's
// Precompile/RunNativeAction/SetupABI shape, stripped of the Cosmos SDK
// gas-meter/event-manager machinery (there is no multistore or event bus
// here) and re-expressed over evmcore.StateDB's own Snapshot/
// RevertToSnapshot instead of a CacheContext commit closure.
//
// Unlike the teacher, whose forked go-ethereum adds a CALL-hook so
// stateful precompiles can see the live *vm.EVM and *vm.Contract inside
// Run, this engine uses vanilla go-ethereum, whose vm.PrecompiledContract
// interface is just RequiredGas(input)/Run(input) — no evm, no contract.
// Statefulness instead comes from building a fresh precompile set per
// transaction (precompiles/standard.ActiveSet, called once per
// evmcore.NewEVM) whose closures already capture the live
// ExecutionContext, and wiring it in via vm.EVM.WithPrecompiles — a
// vanilla go-ethereum feature the teacher itself uses for eth_call state
// overrides.
package common

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/vm"

	"github.com/aurora-is-near/engine-go/evmcore"
	"github.com/aurora-is-near/engine-go/host"
	"github.com/aurora-is-near/engine-go/state"
)

// ErrReadOnlyWrite is returned when a view call reaches a method that
// would mutate state.
var ErrReadOnlyWrite = errors.New("precompile: state-changing method called in a read-only context")

// ExecutionContext is everything a NativeAction needs beyond its raw
// arguments: the state keeper (for cross-package reads like the bridge
// registry or relayer table), the live StateDB (for Snapshot/
// RevertToSnapshot and balance movement), and the ambient host-environment
// facts (predecessor/current account id, attached deposit, random seed,
// prepaid gas) spec.md §4.5's engine precompiles expose to contracts.
type ExecutionContext struct {
	State    *state.Keeper
	StateDB  *evmcore.StateDB
	Env      host.Environment
	Promises host.Promises
	Caller   common.Address
	ReadOnly bool
}

// NativeAction is the precompile-specific business logic, handed the
// execution context and its arguments (either raw bytes for the
// raw-selector-dispatched engine precompiles, or decoded ABI args for the
// Solidity-ABI ones like the bridge and XCC precompiles).
type NativeAction func(ec *ExecutionContext) ([]byte, error)

// GasSchedule is the flat-plus-per-byte cost model for engine precompiles,
// mirroring the teacher's KvGasConfig-derived RequiredGas rather than a
// Cosmos KVStore gas config. No precompile in package engineprecompiles sets
// one, so their RequiredGas is 0; the cross-contract-call precompile prices
// its input through its XCCHandler's own RequiredGas instead.
type GasSchedule struct {
	BaseCost    uint64
	PerByteCost uint64
}

// Precompile is the base struct every engine precompile embeds.
type Precompile struct {
	ContractAddress common.Address
	Gas             GasSchedule
}

func (p Precompile) Address() common.Address      { return p.ContractAddress }
func (p *Precompile) SetAddress(a common.Address) { p.ContractAddress = a }

// RequiredGas implements vm.PrecompiledContract's gas-estimation half.
func (p Precompile) RequiredGas(input []byte) uint64 {
	return p.Gas.BaseCost + p.Gas.PerByteCost*uint64(len(input))
}

// RunNativeAction snapshots ec.StateDB, runs action, and reverts on error
// — the same shape as the teacher's runNativeAction, but the "multistore
// snapshot" here is just evmcore.StateDB.Snapshot()/RevertToSnapshot(),
// since diff.Scope already gives it for free.
func RunNativeAction(ec *ExecutionContext, action NativeAction) ([]byte, error) {
	snapshot := ec.StateDB.Snapshot()
	out, err := action(ec)
	if err != nil {
		ec.StateDB.RevertToSnapshot(snapshot)
		return nil, err
	}
	return out, nil
}

// SetupABI dispatches input to an ABI method the same way precompiles/
// common/precompile.go's SetupABI does: empty calldata looks for
// receive/fallback, short calldata falls back, standard calldata resolves
// by 4-byte selector. Re-expressed over raw (input, value) rather than a
// *vm.Contract, since vanilla go-ethereum's PrecompiledContract.Run only
// ever receives the input bytes.
func SetupABI(api abi.ABI, input []byte, value *big.Int, readOnly bool, isTransaction func(*abi.Method) bool) (*abi.Method, []interface{}, error) {
	var (
		method *abi.Method
		err    error
	)

	switch {
	case len(input) == 0:
		method, err = emptyCallData(api, value)
	case len(input) < 4:
		method, err = shortCallData(api)
	default:
		method, err = standardCallData(api, input)
	}
	if err != nil {
		return nil, nil, err
	}

	if readOnly && isTransaction(method) {
		return nil, nil, ErrReadOnlyWrite
	}

	var args []interface{}
	if method.Type == abi.Function {
		args, err = method.Inputs.Unpack(input[4:])
		if err != nil {
			return nil, nil, err
		}
	}
	return method, args, nil
}

func emptyCallData(api abi.ABI, value *big.Int) (*abi.Method, error) {
	switch {
	case value != nil && value.Sign() > 0 && api.HasReceive():
		return &api.Receive, nil
	case api.HasFallback():
		return &api.Fallback, nil
	default:
		return nil, vm.ErrExecutionReverted
	}
}

func shortCallData(api abi.ABI) (*abi.Method, error) {
	if !api.HasFallback() {
		return nil, vm.ErrExecutionReverted
	}
	return &api.Fallback, nil
}

func standardCallData(api abi.ABI, input []byte) (*abi.Method, error) {
	method, err := api.MethodById(input[:4])
	if err != nil {
		if api.HasFallback() {
			return &api.Fallback, nil
		}
		return nil, err
	}
	return method, nil
}
