// Package standard assembles the per-transaction precompile set every EVM
// instance runs against: go-ethereum's own precompiles for the active fork
// rules (0x01-0x0a under this engine's Cancun configuration; the BLS12-381
// EIP-2537 precompiles are not in the set) reused verbatim, layered with
// this engine's own
// precompiles at their fixed addresses (spec.md §4.5). Grounded on
// x/vm/keeper/state_transition.go's `vm.ActivePrecompiledContracts(rules)` +
// `evm.WithPrecompiles(precompiles)` override pattern — the same vanilla
// go-ethereum mechanism the teacher uses for eth_call state overrides is
// how this engine injects its own stateful precompiles, since there is no
// forked interpreter CALL-hook here.
package standard

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/params"
)

// ActiveSet returns the base go-ethereum precompile table for rules —
// addresses 0x01 (ecrecover) through 0x0a (point evaluation, post-Cancun),
// all implemented by go-ethereum itself rather than reimplemented, per
// spec.md §4.4's explicit allowance for a vendored interpreter.
func ActiveSet(rules params.Rules) map[common.Address]vm.PrecompiledContract {
	active := vm.ActivePrecompiledContracts(rules)
	out := make(map[common.Address]vm.PrecompiledContract, len(active))
	for addr, contract := range active {
		out[addr] = contract
	}
	return out
}

// Merge layers extra (the engine's own precompiles at spec.md §4.5's fixed
// addresses) on top of base, extra winning on any address collision —
// there are none by construction, since the engine's addresses are chosen
// outside go-ethereum's reserved 0x01-0x0a range.
func Merge(base map[common.Address]vm.PrecompiledContract, extra map[common.Address]vm.PrecompiledContract) map[common.Address]vm.PrecompiledContract {
	out := make(map[common.Address]vm.PrecompiledContract, len(base)+len(extra))
	for addr, c := range base {
		out[addr] = c
	}
	for addr, c := range extra {
		out[addr] = c
	}
	return out
}
