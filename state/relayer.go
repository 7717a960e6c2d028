package state

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// RegisterRelayer implements `register_relayer` (spec.md §6): the
// predecessor account id records the 20-byte EVM address its gas fees
// should be credited to. Grounded on original_source/
// engine-standalone-storage/src/relayer_db/types.rs's RelayerKey, which
// maps a NEAR account id to an EVM address the same way.
func (k *Keeper) RegisterRelayer(_ context.Context, accountID string, addr common.Address) {
	k.write(Key(PrefixRelayerEvmAddress, []byte(accountID)), addr[:])
}

// RelayerAddress looks up the EVM address `submit`'s fee-credit step should
// pay, falling back to a deterministic keccak-derived address (truncated to
// 20 bytes) when the predecessor account id never called register_relayer —
// this fallback keeps `submit` usable for relayers that skip explicit
// registration, matching the original's tolerance for an unregistered
// relayer.
func (k *Keeper) RelayerAddress(ctx context.Context, accountID string) (common.Address, error) {
	v, ok, err := k.read(ctx, Key(PrefixRelayerEvmAddress, []byte(accountID)))
	if err != nil {
		return common.Address{}, err
	}
	if ok && len(v) == 20 {
		return common.Address(v), nil
	}
	return DeriveRelayerAddress(accountID), nil
}

// DeriveRelayerAddress computes the fallback relayer address for an account
// id that never explicitly registered one: keccak256(accountID)[12:32].
func DeriveRelayerAddress(accountID string) common.Address {
	h := keccak256([]byte(accountID))
	var addr common.Address
	copy(addr[:], h[12:])
	return addr
}
