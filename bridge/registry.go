// Package bridge implements spec.md §4.7's ERC-20 ↔ native-token bridge: a
// NEP-141↔ERC-20 registry and the deploy/ft_on_transfer/exit accounting that
// keeps the two representations of a bridged token in lockstep.
//
// Grounded on x/erc20/keeper/keeper.go's Keeper-holding-a-registry shape and
// precompiles/erc20/erc20.go's stateful-precompile idiom, with one
// deliberate departure: the teacher (and real Aurora Engine) deploys real
// compiled ERC-20 bytecode per bridged token, but this retrieval pack
// carries no Solidity compiler output for an ERC-20 contract (contracts/
// erc20_recursive_reverting.go only shows the embed-and-load shape, not the
// bytecode itself) and hand-written EVM bytecode cannot be verified without
// running it. Instead, each registered token gets a native precompile at a
// deterministic address — exactly the pattern precompiles/erc20/erc20.go
// already uses for Cosmos EVM's own bank-backed ERC-20 view — with balances
// and allowances kept in ordinary EVM storage slots at that address, laid
// out the same way solc would lay out `mapping(address=>uint256) balances`
// at slot 0 and `mapping(address=>mapping(address=>uint256)) allowances` at
// slot 1, so the precompile is indistinguishable from deployed bytecode to
// any caller that only uses the ERC-20 ABI.
package bridge

import (
	"context"
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/aurora-is-near/engine-go/state"
)

// TokenMetadata is the registry entry for one bridged NEP-141 token.
type TokenMetadata struct {
	Nep141AccountID string         `json:"nep141_account_id"`
	Name            string         `json:"name"`
	Symbol          string         `json:"symbol"`
	Decimals        uint8          `json:"decimals"`
	Erc20Address    common.Address `json:"erc20_address"`
}

// Keeper owns the NEP-141↔ERC-20 registry (state.PrefixNep141ToErc20 /
// state.PrefixErc20ToNep141) plus the deployed precompiles' balance ledger.
type Keeper struct {
	state *state.Keeper
}

func NewKeeper(s *state.Keeper) *Keeper {
	return &Keeper{state: s}
}

// DeriveErc20Address computes the deterministic address a NEP-141 account
// id's bridged representation lives at — keccak256(nep141AccountID)[12:],
// the same address-from-seed derivation x/erc20's TokenPair uses for its
// Cosmos-native denominations, substituting the NEP-141 id for the denom.
func DeriveErc20Address(nep141AccountID string) common.Address {
	return common.BytesToAddress(crypto.Keccak256([]byte(nep141AccountID))[12:])
}

// RegisterToken records a new bridged token and returns its deterministic
// ERC-20 address. It is idempotent: calling it again for the same NEP-141
// account id returns the existing entry rather than erroring, matching
// deploy_erc20_token's "already deployed" no-op in the original engine.
func (k *Keeper) RegisterToken(ctx context.Context, nep141AccountID, name, symbol string, decimals uint8) (common.Address, error) {
	if existing, ok, err := k.LookupByNep141(ctx, nep141AccountID); err != nil {
		return common.Address{}, err
	} else if ok {
		return existing.Erc20Address, nil
	}

	addr := DeriveErc20Address(nep141AccountID)
	meta := TokenMetadata{
		Nep141AccountID: nep141AccountID,
		Name:            name,
		Symbol:          symbol,
		Decimals:        decimals,
		Erc20Address:    addr,
	}
	encoded, err := json.Marshal(meta)
	if err != nil {
		return common.Address{}, err
	}
	k.state.WriteRaw(state.Key(state.PrefixNep141ToErc20, []byte(nep141AccountID)), encoded)
	k.state.WriteRaw(state.Key(state.PrefixErc20ToNep141, addr[:]), []byte(nep141AccountID))

	tokens, err := k.ListTokens(ctx)
	if err != nil {
		return common.Address{}, err
	}
	tokens = append(tokens, nep141AccountID)
	encodedList, err := json.Marshal(tokens)
	if err != nil {
		return common.Address{}, err
	}
	k.state.WriteRaw(tokenIndexKey, encodedList)
	return addr, nil
}

// tokenIndexKey holds the JSON-encoded list of every registered NEP-141
// account id, so bridge.Set can enumerate all bridged tokens' precompile
// addresses for one transaction's vm.EVM.WithPrecompiles map — kv.Backend
// has no key-prefix scan, so the registry keeps its own append-only index
// rather than relying on one.
var tokenIndexKey = state.Key(state.PrefixConfig, []byte("bridge:tokens"))

// ListTokens returns every registered NEP-141 account id, in registration
// order.
func (k *Keeper) ListTokens(ctx context.Context) ([]string, error) {
	v, ok, err := k.state.ReadRaw(ctx, tokenIndexKey)
	if err != nil || !ok {
		return nil, err
	}
	var tokens []string
	if err := json.Unmarshal(v, &tokens); err != nil {
		return nil, err
	}
	return tokens, nil
}

func (k *Keeper) LookupByNep141(ctx context.Context, nep141AccountID string) (TokenMetadata, bool, error) {
	v, ok, err := k.state.ReadRaw(ctx, state.Key(state.PrefixNep141ToErc20, []byte(nep141AccountID)))
	if err != nil || !ok {
		return TokenMetadata{}, ok, err
	}
	var meta TokenMetadata
	if err := json.Unmarshal(v, &meta); err != nil {
		return TokenMetadata{}, false, err
	}
	return meta, true, nil
}

func (k *Keeper) LookupByErc20(ctx context.Context, addr common.Address) (TokenMetadata, bool, error) {
	nep141, ok, err := k.state.ReadRaw(ctx, state.Key(state.PrefixErc20ToNep141, addr[:]))
	if err != nil || !ok {
		return TokenMetadata{}, ok, err
	}
	return k.LookupByNep141(ctx, string(nep141))
}
