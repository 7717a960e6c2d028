package engineprecompiles

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	ecommon "github.com/aurora-is-near/engine-go/precompiles/common"
)

// ErrExitTooShort is returned when an exit precompile's input is too short
// to contain its token flag and recipient.
var ErrExitTooShort = errors.New("engineprecompiles: input too short")

// exit event topics, mirroring spec.md §4.5's "emits an event log
// (is_erc20, dest, amount)".
var (
	exitToNearTopic = crypto.Keccak256Hash([]byte("ExitToNear(bool,bytes,uint256)"))
	exitToEthTopic  = crypto.Keccak256Hash([]byte("ExitToEthereum(bool,bytes,uint256)"))
)

const (
	exitFlagNative = 0
	exitFlagERC20  = 1

	// ft_transfer / ft_withdraw prepaid gas and attached yoctoNEAR, chosen
	// to match the one-yocto-attached, fixed-gas NEP-141 convention the
	// bridge contracts this engine talks to expect.
	exitPromiseGas              = 10_000_000_000_000 // 10 Tgas
	exitPromiseAttachedYoctoNear = 1
)

// ERC20Burner lets package bridge supply ERC-20-ledger burn semantics
// without engineprecompiles importing bridge (which would import
// engineprecompiles back, for the precompile addresses). Left nil,
// ExitToNear rejects the ERC-20 flag outright.
type ERC20Burner interface {
	Burn(ec *ecommon.ExecutionContext, token common.Address, from common.Address, amount *big.Int) (nep141AccountID string, err error)
}

// ExitToNear implements spec.md §4.5's exit_to_near(token_flag, recipient):
// burn the caller's ERC-20 (or native) amount and schedule a ft_transfer (or
// withdraw) promise to recipient on the connector contract.
type ExitToNear struct {
	ecommon.Precompile
	Ctx    *ecommon.ExecutionContext
	Burner ERC20Burner
}

func NewExitToNear(ec *ecommon.ExecutionContext, burner ERC20Burner) *ExitToNear {
	p := &ExitToNear{Ctx: ec, Burner: burner}
	p.SetAddress(ExitToNearAddress)
	return p
}

func (p *ExitToNear) Run(input []byte) ([]byte, error) {
	return ecommon.RunNativeAction(p.Ctx, func(ec *ecommon.ExecutionContext) ([]byte, error) {
		return p.exit(ec, input)
	})
}

func (p *ExitToNear) exit(ec *ecommon.ExecutionContext, input []byte) ([]byte, error) {
	if len(input) < 1 {
		return nil, ErrExitTooShort
	}

	var (
		amount  *big.Int
		isERC20 bool
	)

	switch input[0] {
	case exitFlagNative:
		amount = ec.StateDB.GetBalance(p.Address()).ToBig()
		ec.StateDB.SubBalance(p.Address(), uint256.MustFromBig(amount), 0)
		recipient := string(input[1:])
		if err := p.scheduleTransfer(ec, "ft_transfer", recipient, amount); err != nil {
			return nil, err
		}
		p.emitLog(ec, false, []byte(recipient), amount)
		return nil, nil
	case exitFlagERC20:
		if p.Burner == nil {
			return nil, errors.New("engineprecompiles: ERC-20 exit not wired")
		}
		if len(input) < 1+20+32 {
			return nil, ErrExitTooShort
		}
		token := common.BytesToAddress(input[1:21])
		amount = new(big.Int).SetBytes(input[21:53])
		recipient := string(input[53:])
		nep141, err := p.Burner.Burn(ec, token, ec.Caller, amount)
		if err != nil {
			return nil, err
		}
		if err := p.scheduleTransfer(ec, "ft_transfer", recipient, amount); err != nil {
			return nil, err
		}
		_ = nep141
		isERC20 = true
		p.emitLog(ec, isERC20, []byte(recipient), amount)
		return nil, nil
	default:
		return nil, errors.New("engineprecompiles: unknown exit token flag")
	}
}

func (p *ExitToNear) scheduleTransfer(ec *ecommon.ExecutionContext, method, recipient string, amount *big.Int) error {
	if ec.Promises == nil {
		return errors.New("engineprecompiles: no promise scheduler bound")
	}
	args, err := json.Marshal(struct {
		ReceiverID string `json:"receiver_id"`
		Amount     string `json:"amount"`
	}{ReceiverID: recipient, Amount: amount.String()})
	if err != nil {
		return err
	}
	var attached [16]byte
	binary.BigEndian.PutUint64(attached[8:], exitPromiseAttachedYoctoNear)
	_, err = ec.Promises.Create(ec.Env.CurrentAccountID(), method, args, attached, exitPromiseGas)
	return err
}

func (p *ExitToNear) emitLog(ec *ecommon.ExecutionContext, isERC20 bool, dest []byte, amount *big.Int) {
	ec.StateDB.AddLog(&types.Log{
		Address: p.Address(),
		Topics:  []common.Hash{exitToNearTopic, boolHash(isERC20)},
		Data:    append(common.LeftPadBytes(amount.Bytes(), 32), dest...),
	})
}

func boolHash(b bool) common.Hash {
	var h common.Hash
	if b {
		h[31] = 1
	}
	return h
}

var _ vm.PrecompiledContract = (*ExitToNear)(nil)

// ExitToEthereum implements spec.md §4.5's exit_to_eth(recipient_20_bytes):
// analogous to ExitToNear but targeting an external chain, recipient given
// as a raw 20-byte address rather than a NEAR account id.
type ExitToEthereum struct {
	ecommon.Precompile
	Ctx *ecommon.ExecutionContext
}

func NewExitToEthereum(ec *ecommon.ExecutionContext) *ExitToEthereum {
	p := &ExitToEthereum{Ctx: ec}
	p.SetAddress(ExitToEthereumAddress)
	return p
}

func (p *ExitToEthereum) Run(input []byte) ([]byte, error) {
	return ecommon.RunNativeAction(p.Ctx, func(ec *ecommon.ExecutionContext) ([]byte, error) {
		if len(input) != 20 {
			return nil, ErrExitTooShort
		}
		amount := ec.StateDB.GetBalance(p.Address()).ToBig()
		ec.StateDB.SubBalance(p.Address(), uint256.MustFromBig(amount), 0)

		if ec.Promises != nil {
			args, err := json.Marshal(struct {
				Recipient string `json:"recipient_address"`
			}{Recipient: common.BytesToAddress(input).Hex()})
			if err != nil {
				return nil, err
			}
			var attached [16]byte
			binary.BigEndian.PutUint64(attached[8:], exitPromiseAttachedYoctoNear)
			if _, err := ec.Promises.Create(ec.Env.CurrentAccountID(), "withdraw", args, attached, exitPromiseGas); err != nil {
				return nil, err
			}
		}

		ec.StateDB.AddLog(&types.Log{
			Address: p.Address(),
			Topics:  []common.Hash{exitToEthTopic, boolHash(false)},
			Data:    append(common.LeftPadBytes(amount.Bytes(), 32), input...),
		})
		return nil, nil
	})
}

var _ vm.PrecompiledContract = (*ExitToEthereum)(nil)
