// Package state implements the State Model of spec.md §4.2: a one-byte
// prefix schema over the kv.Backend, with typed accessors for engine
// config, account nonce/balance/code, per-account storage slots, the
// NEP-141↔ERC-20 registry, the relayer table, silo/whitelist sets and pause
// flags. Grounded on x/vm/keeper/keeper.go's one-accessor-method-per-concern
// shape and x/vm/types/utils.go's key-building helpers, re-pointed at
// kv.Backend instead of a Cosmos storetypes.KVStore.
package state

// Prefix is a one-byte key-space discriminator. Values match spec.md §4.2's
// prefix list; callers compose a full key as Prefix ‖ rest.
type Prefix byte

const (
	PrefixConfig            Prefix = 0x00
	PrefixNonce             Prefix = 0x01
	PrefixBalance           Prefix = 0x02
	PrefixCode              Prefix = 0x03
	PrefixStorage           Prefix = 0x04
	PrefixGeneration        Prefix = 0x05
	PrefixRelayerEvmAddress Prefix = 0x06
	PrefixNep141ToErc20     Prefix = 0x07
	PrefixErc20ToNep141     Prefix = 0x08
	PrefixEthConnector      Prefix = 0x09
	PrefixCrossContractCall Prefix = 0x0a
	PrefixWhitelist         Prefix = 0x0b
	PrefixPauseMask         Prefix = 0x0c
	PrefixHashchain         Prefix = 0x0d
)

// Key builds Prefix ‖ rest as a single byte slice.
func Key(p Prefix, rest ...[]byte) []byte {
	n := 1
	for _, r := range rest {
		n += len(r)
	}
	out := make([]byte, 1, n)
	out[0] = byte(p)
	for _, r := range rest {
		out = append(out, r...)
	}
	return out
}
