package engineprecompiles

import (
	"github.com/ethereum/go-ethereum/core/vm"

	"github.com/aurora-is-near/engine-go/precompiles/common"
)

// RandomSeed returns the current block's 32-byte random seed — spec.md
// §4.5. The seed is fixed for the whole block (host.Environment.RandomSeed),
// so every call within a block returns the same value.
type RandomSeed struct {
	common.Precompile
	Ctx *common.ExecutionContext
}

func NewRandomSeed(ec *common.ExecutionContext) *RandomSeed {
	p := &RandomSeed{Ctx: ec}
	p.SetAddress(RandomSeedAddress)
	return p
}

func (p *RandomSeed) Run([]byte) ([]byte, error) {
	seed := p.Ctx.Env.RandomSeed()
	return seed[:], nil
}

var _ vm.PrecompiledContract = (*RandomSeed)(nil)

// PrepaidGas returns the transaction's prepaid NEAR gas as a big-endian
// uint64 — spec.md §4.5.
type PrepaidGas struct {
	common.Precompile
	Ctx *common.ExecutionContext
}

func NewPrepaidGas(ec *common.ExecutionContext) *PrepaidGas {
	p := &PrepaidGas{Ctx: ec}
	p.SetAddress(PrepaidGasAddress)
	return p
}

func (p *PrepaidGas) Run([]byte) ([]byte, error) {
	gas := p.Ctx.Env.PrepaidGas()
	out := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		out[i] = byte(gas)
		gas >>= 8
	}
	return out, nil
}

var _ vm.PrecompiledContract = (*PrepaidGas)(nil)
