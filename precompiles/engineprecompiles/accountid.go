package engineprecompiles

import (
	"github.com/ethereum/go-ethereum/core/vm"

	"github.com/aurora-is-near/engine-go/precompiles/common"
)

// PredecessorAccountID returns the NEAR account id that called into the
// engine for this transaction, as raw UTF-8 — spec.md §4.5.
type PredecessorAccountID struct {
	common.Precompile
	Ctx *common.ExecutionContext
}

// NewPredecessorAccountID builds the precompile bound to ec; ec is mutated
// in place by the per-transaction StateDB/State wiring, so the precompile
// set does not need to be rebuilt on every call within the same tx.
func NewPredecessorAccountID(ec *common.ExecutionContext) *PredecessorAccountID {
	p := &PredecessorAccountID{Ctx: ec}
	p.SetAddress(PredecessorAccountIDAddress)
	return p
}

func (p *PredecessorAccountID) Run([]byte) ([]byte, error) {
	return []byte(p.Ctx.Env.PredecessorAccountID()), nil
}

var _ vm.PrecompiledContract = (*PredecessorAccountID)(nil)

// CurrentAccountID returns the engine's own NEAR account id as raw UTF-8.
type CurrentAccountID struct {
	common.Precompile
	Ctx *common.ExecutionContext
}

func NewCurrentAccountID(ec *common.ExecutionContext) *CurrentAccountID {
	p := &CurrentAccountID{Ctx: ec}
	p.SetAddress(CurrentAccountIDAddress)
	return p
}

func (p *CurrentAccountID) Run([]byte) ([]byte, error) {
	return []byte(p.Ctx.Env.CurrentAccountID()), nil
}

var _ vm.PrecompiledContract = (*CurrentAccountID)(nil)
