package bridge

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/vm"

	ecommon "github.com/aurora-is-near/engine-go/precompiles/common"
)

// Set assembles a native ERC-20 precompile for every registered bridged
// token, bound to this transaction's ExecutionContext — called once per
// evmcore.NewEVM alongside precompiles/standard.ActiveSet and
// engineprecompiles.Set, and merged in before evm.WithPrecompiles.
func (k *Keeper) Set(ctx context.Context, ec *ecommon.ExecutionContext) (map[common.Address]vm.PrecompiledContract, error) {
	tokens, err := k.ListTokens(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[common.Address]vm.PrecompiledContract, len(tokens))
	for _, nep141 := range tokens {
		meta, ok, err := k.LookupByNep141(ctx, nep141)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		out[meta.Erc20Address] = NewPrecompile(meta).Bound(ec)
	}
	return out, nil
}
