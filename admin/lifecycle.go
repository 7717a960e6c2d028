// Package admin implements spec.md §4.12: one-time engine initialisation,
// the delayed code-upgrade flow, the pause mask and owner/key-manager
// changes. Grounded on x/vm/keeper/migrator.go's upgrade-staging idiom and
// x/erc20/keeper/keeper.go's authority-gated mutation pattern, re-pointed
// at state.Keeper's EngineState instead of a Cosmos params subspace.
package admin

import (
	"context"
	"encoding/binary"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/aurora-is-near/engine-go/hosterror"
	"github.com/aurora-is-near/engine-go/state"
)

// Pause-mask bit flags, matching the original engine's admin control-flow
// flags (original_source/engine-tests-connector/src/utils.rs): each
// mutating surface can be independently paused rather than an
// all-or-nothing switch.
const (
	PauseNone     uint8 = 0
	PauseDeposit  uint8 = 1 << 0
	PauseWithdraw uint8 = 1 << 1
	PauseFT       uint8 = 1 << 2
)

// Keeper owns EngineState's lifecycle transitions: new/pause/resume/
// owner/key-manager changes and staged upgrades.
type Keeper struct {
	state *state.Keeper
}

func NewKeeper(s *state.Keeper) *Keeper {
	return &Keeper{state: s}
}

// New implements spec.md §4.12's `new`: initialises EngineState exactly
// once.
func (k *Keeper) New(ctx context.Context, chainID *big.Int, ownerAccountID, bridgeProverID string, upgradeDelayBlocks uint64) error {
	return k.state.InitEngineState(ctx, state.EngineState{
		ChainID:            common.BigToHash(chainID),
		OwnerAccountID:     ownerAccountID,
		BridgeProverID:     bridgeProverID,
		UpgradeDelayBlocks: upgradeDelayBlocks,
	})
}

// RequireOwner fails unless predecessorAccountID is the configured owner —
// the gate spec.md §4.12 implies every owner-only mutation (pause/resume,
// set_owner, set_upgrade_delay_blocks, stage_upgrade, set_key_manager)
// passes through.
func (k *Keeper) RequireOwner(ctx context.Context, predecessorAccountID string) (state.EngineState, error) {
	es, ok, err := k.state.GetEngineState(ctx)
	if err != nil {
		return state.EngineState{}, err
	}
	if !ok {
		return state.EngineState{}, hosterror.New(hosterror.CodeNotInitialized)
	}
	if es.OwnerAccountID != predecessorAccountID {
		return state.EngineState{}, hosterror.New(hosterror.CodeNotAllowed)
	}
	return es, nil
}

// State returns the current EngineState without an owner check — used by
// the submit pipeline to read chain_id/fixed-gas/pause facts that apply to
// every caller, not just the owner.
func (k *Keeper) State(ctx context.Context) (state.EngineState, error) {
	es, ok, err := k.state.GetEngineState(ctx)
	if err != nil {
		return state.EngineState{}, err
	}
	if !ok {
		return state.EngineState{}, hosterror.New(hosterror.CodeNotInitialized)
	}
	return es, nil
}

// RequireRunning implements spec.md §4.12's require_running: asserted at
// the entry of every mutating method against the bits in feature.
func (k *Keeper) RequireRunning(ctx context.Context, feature uint8) error {
	es, ok, err := k.state.GetEngineState(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return hosterror.New(hosterror.CodeNotInitialized)
	}
	if es.PausedMask&feature != 0 {
		return hosterror.New(hosterror.CodePaused)
	}
	return nil
}

// PauseContract ORs flags into the pause mask.
func (k *Keeper) PauseContract(ctx context.Context, predecessorAccountID string, flags uint8) error {
	es, err := k.RequireOwner(ctx, predecessorAccountID)
	if err != nil {
		return err
	}
	es.PausedMask |= flags
	k.state.SetEngineState(ctx, es)
	return nil
}

// ResumeContract clears flags from the pause mask.
func (k *Keeper) ResumeContract(ctx context.Context, predecessorAccountID string, flags uint8) error {
	es, err := k.RequireOwner(ctx, predecessorAccountID)
	if err != nil {
		return err
	}
	es.PausedMask &^= flags
	k.state.SetEngineState(ctx, es)
	return nil
}

// SetOwner transfers ownership.
func (k *Keeper) SetOwner(ctx context.Context, predecessorAccountID, newOwnerAccountID string) error {
	es, err := k.RequireOwner(ctx, predecessorAccountID)
	if err != nil {
		return err
	}
	es.OwnerAccountID = newOwnerAccountID
	k.state.SetEngineState(ctx, es)
	return nil
}

// SetUpgradeDelayBlocks changes the delay new stage_upgrade calls wait
// before deploy_upgrade may run; already-staged upgrades keep the
// activation height they were staged with.
func (k *Keeper) SetUpgradeDelayBlocks(ctx context.Context, predecessorAccountID string, blocks uint64) error {
	es, err := k.RequireOwner(ctx, predecessorAccountID)
	if err != nil {
		return err
	}
	es.UpgradeDelayBlocks = blocks
	k.state.SetEngineState(ctx, es)
	return nil
}

// SetBridgeProverID changes the account id authorized to relay deposit
// proofs to this engine's ft_on_transfer — original_source's
// set_eth_connector_contract_account.
func (k *Keeper) SetBridgeProverID(ctx context.Context, predecessorAccountID, bridgeProverID string) error {
	es, err := k.RequireOwner(ctx, predecessorAccountID)
	if err != nil {
		return err
	}
	es.BridgeProverID = bridgeProverID
	k.state.SetEngineState(ctx, es)
	return nil
}

// SetKeyManager designates (or, if accountID is empty, clears) the account
// allowed to add/remove relayer function-call keys on the engine account.
func (k *Keeper) SetKeyManager(ctx context.Context, predecessorAccountID, accountID string) error {
	es, err := k.RequireOwner(ctx, predecessorAccountID)
	if err != nil {
		return err
	}
	es.KeyManagerAccountID = accountID
	k.state.SetEngineState(ctx, es)
	return nil
}

var stagedUpgradeKey = state.Key(state.PrefixConfig, []byte("upgrade:staged"))

type stagedUpgrade struct {
	Code             []byte
	ActivationHeight uint64
}

// StageUpgrade implements stage_upgrade(wasm_bytes): records code under a
// pending key at currentHeight + UpgradeDelayBlocks. Owner-gated; only one
// upgrade may be staged at a time, and a new call overwrites any pending
// one (matching the original's "staging a new upgrade replaces the
// previous pending one" behavior).
func (k *Keeper) StageUpgrade(ctx context.Context, predecessorAccountID string, currentHeight uint64, code []byte) error {
	es, err := k.RequireOwner(ctx, predecessorAccountID)
	if err != nil {
		return err
	}
	encoded := encodeStagedUpgrade(stagedUpgrade{
		Code:             code,
		ActivationHeight: currentHeight + es.UpgradeDelayBlocks,
	})
	k.state.WriteRaw(stagedUpgradeKey, encoded)
	return nil
}

// DeployUpgrade implements deploy_upgrade(): callable by anyone (the delay
// itself is the security barrier, not the caller identity) at or after the
// staged activation height. It returns the staged code for the caller to
// hand to the host's own code-replacement mechanism, and clears the
// pending entry so a second call after deployment fails cleanly.
func (k *Keeper) DeployUpgrade(ctx context.Context, currentHeight uint64) ([]byte, error) {
	v, ok, err := k.state.ReadRaw(ctx, stagedUpgradeKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, hosterror.New("ERR_NO_STAGED_UPGRADE")
	}
	staged, err := decodeStagedUpgrade(v)
	if err != nil {
		return nil, err
	}
	if currentHeight < staged.ActivationHeight {
		return nil, hosterror.New("ERR_UPGRADE_NOT_READY")
	}
	k.state.RemoveRaw(stagedUpgradeKey)
	return staged.Code, nil
}

func encodeStagedUpgrade(u stagedUpgrade) []byte {
	var heightBuf [8]byte
	binary.BigEndian.PutUint64(heightBuf[:], u.ActivationHeight)
	buf := make([]byte, 0, 8+len(u.Code))
	buf = append(buf, heightBuf[:]...)
	return append(buf, u.Code...)
}

func decodeStagedUpgrade(b []byte) (stagedUpgrade, error) {
	if len(b) < 8 {
		return stagedUpgrade{}, hosterror.New(hosterror.CodeStateCorrupt)
	}
	return stagedUpgrade{
		ActivationHeight: binary.BigEndian.Uint64(b[:8]),
		Code:             append([]byte(nil), b[8:]...),
	}, nil
}
