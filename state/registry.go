package state

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// SetTokenPair records both directions of the NEP-141↔ERC-20 mapping
// established by deploy_erc20_token (spec.md §4.7).
func (k *Keeper) SetTokenPair(_ context.Context, nep141 string, erc20 common.Address) {
	k.write(Key(PrefixNep141ToErc20, []byte(nep141)), erc20[:])
	k.write(Key(PrefixErc20ToNep141, erc20[:]), []byte(nep141))
}

// Erc20ForNep141 resolves the ERC-20 contract address deployed for a given
// NEP-141 token account id, if any.
func (k *Keeper) Erc20ForNep141(ctx context.Context, nep141 string) (common.Address, bool, error) {
	v, ok, err := k.read(ctx, Key(PrefixNep141ToErc20, []byte(nep141)))
	if err != nil || !ok || len(v) != 20 {
		return common.Address{}, false, err
	}
	return common.Address(v), true, nil
}

// Nep141ForErc20 resolves the NEP-141 token account id for a deployed
// ERC-20 contract address, if any.
func (k *Keeper) Nep141ForErc20(ctx context.Context, erc20 common.Address) (string, bool, error) {
	v, ok, err := k.read(ctx, Key(PrefixErc20ToNep141, erc20[:]))
	if err != nil || !ok {
		return "", false, err
	}
	return string(v), true, nil
}
