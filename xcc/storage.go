package xcc

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	ecommon "github.com/aurora-is-near/engine-go/precompiles/common"
)

// Gas constants mirroring original_source/etc/xcc-router/src/lib.rs's
// WNEAR_WITHDRAW_GAS and REFUND_GAS (REFUND_AMOUNT is RefundAmount below).
const (
	wnearWithdrawGas uint64 = 5_000_000_000_000
	refundGas        uint64 = 5_000_000_000_000
)

// RefundAmount is the yoctoNEAR amount the router sends back to its parent
// engine account when a caller's wrapped-native unwrap needs the storage
// deposit refunded — must match whatever amount the engine charged the
// caller up front to cover the router sub-account's storage staking.
var RefundAmount = big.NewInt(2_000_000_000_000_000_000_000_000)

// UnwrapAndRefund implements StorageFunder for the router itself:
// original_source's unwrap_and_refund_storage, issued as a
// near_withdraw promise against the configured wNEAR account, optionally
// chained into a transfer back to the engine's own account (the "parent"
// in the original sub-account model; here there is only one account, so
// the refund targets it directly rather than a separate send_refund
// callback).
func (k *Keeper) UnwrapAndRefund(ec *ecommon.ExecutionContext, owner common.Address, amount *big.Int, refundNeeded bool) error {
	wnear, ok, err := k.WNearAccountID(context.Background())
	if err != nil {
		return err
	}
	if !ok {
		return ErrWNearNotConfigured
	}

	withdrawArgs := []byte(fmt.Sprintf(`{"amount":"%s"}`, amount.String()))
	id, err := ec.Promises.Create(wnear, "near_withdraw", withdrawArgs, balanceToU128LE(big.NewInt(1)), wnearWithdrawGas)
	if err != nil {
		return err
	}
	if !refundNeeded {
		ec.Promises.Return(id)
		return nil
	}
	// host.Promises has no standalone transfer action, only function calls
	// with an attached balance; an empty method name against the engine's
	// own account is this host's way of expressing a plain value transfer,
	// matching what send_refund's Promise::new(parent).transfer(..) compiles
	// down to at the NEAR runtime level.
	parent := ec.Env.CurrentAccountID()
	refundID, err := ec.Promises.Then(id, parent, "", nil, balanceToU128LE(RefundAmount), refundGas)
	if err != nil {
		return err
	}
	ec.Promises.Return(refundID)
	return nil
}

var _ StorageFunder = (*Keeper)(nil)
