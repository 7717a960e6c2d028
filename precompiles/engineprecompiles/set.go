package engineprecompiles

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/vm"

	ecommon "github.com/aurora-is-near/engine-go/precompiles/common"
)

// Set assembles every bespoke engine precompile bound to a single
// transaction's ExecutionContext — called once per evmcore.NewEVM, the same
// place precompiles/standard.ActiveSet is called, and merged with it via
// precompiles/standard.Merge before being installed with evm.WithPrecompiles.
func Set(ec *ecommon.ExecutionContext, burner ERC20Burner, xcc XCCHandler) map[common.Address]vm.PrecompiledContract {
	out := map[common.Address]vm.PrecompiledContract{
		PredecessorAccountIDAddress: NewPredecessorAccountID(ec),
		CurrentAccountIDAddress:     NewCurrentAccountID(ec),
		RandomSeedAddress:           NewRandomSeed(ec),
		PrepaidGasAddress:           NewPrepaidGas(ec),
		ExitToNearAddress:           NewExitToNear(ec, burner),
		ExitToEthereumAddress:       NewExitToEthereum(ec),
	}
	if xcc != nil {
		out[CrossContractCallAddress] = NewCrossContractCall(ec, xcc)
	}
	return out
}
