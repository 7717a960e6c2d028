package engineprecompiles

import (
	"github.com/ethereum/go-ethereum/core/vm"

	"github.com/aurora-is-near/engine-go/precompiles/common"
)

// XCCHandler is implemented by package xcc and injected here rather than
// imported, since xcc depends on this package's ExecutionContext/address
// constants and a reverse import would cycle. It decodes the tagged
// CrossContractCallArgs payload (spec.md §4.8) and returns whatever the EVM
// caller should see as the call's return data. RequiredGas is asked for
// separately since the cross-contract-call precompile prices by the
// caller-supplied promise graph's size, not the fixed GasSchedule every
// other engine precompile uses.
type XCCHandler interface {
	Execute(ec *common.ExecutionContext, input []byte) ([]byte, error)
	RequiredGas(input []byte) uint64
}

// CrossContractCall implements spec.md §4.5/§4.8's cross_contract_call:
// translates an in-EVM call into a host promise graph via Handler.
type CrossContractCall struct {
	common.Precompile
	Ctx     *common.ExecutionContext
	Handler XCCHandler
}

func NewCrossContractCall(ec *common.ExecutionContext, handler XCCHandler) *CrossContractCall {
	p := &CrossContractCall{Ctx: ec, Handler: handler}
	p.SetAddress(CrossContractCallAddress)
	return p
}

// RequiredGas overrides the embedded common.Precompile's fixed
// GasSchedule, deferring entirely to Handler since only it knows how the
// promise graph's size should be priced.
func (p *CrossContractCall) RequiredGas(input []byte) uint64 {
	return p.Handler.RequiredGas(input)
}

func (p *CrossContractCall) Run(input []byte) ([]byte, error) {
	return common.RunNativeAction(p.Ctx, func(ec *common.ExecutionContext) ([]byte, error) {
		return p.Handler.Execute(ec, input)
	})
}

var _ vm.PrecompiledContract = (*CrossContractCall)(nil)
