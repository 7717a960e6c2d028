package bridge

import (
	"embed"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/crypto"

	ecommon "github.com/aurora-is-near/engine-go/precompiles/common"
)

//go:embed abi.json
var abiFS embed.FS

// ABI is the IERC20Metadata-shaped interface every bridged token's
// precompile answers to.
var ABI abi.ABI

func init() {
	var err error
	ABI, err = ecommon.LoadABI(abiFS, "abi.json")
	if err != nil {
		panic(err)
	}
}

const (
	balanceSlotIndex   = 0
	allowanceSlotIndex = 1
	totalSupplySlot    = 2

	// Gas costs mirror precompiles/erc20/erc20.go's flat per-method table —
	// this engine has no equivalent gas-tape to derive values from, so the
	// same figures are reused directly rather than invented.
	gasTransfer     = 9_000
	gasTransferFrom = 30_500
	gasApprove      = 8_100
	gasName         = 3_421
	gasSymbol       = 3_464
	gasDecimals     = 427
	gasTotalSupply  = 2_480
	gasBalanceOf    = 2_870
	gasAllowance    = 3_225
)

var (
	errUnknownMethod     = errors.New("bridge: unknown erc20 method")
	errInsufficientFunds = errors.New("bridge: insufficient balance")
	errInsufficientAllow = errors.New("bridge: insufficient allowance")

	transferTopic = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))
	approvalTopic = crypto.Keccak256Hash([]byte("Approval(address,address,uint256)"))
)

// Precompile is the native ERC-20 view bound to one bridged token, in the
// same Precompile-embedding/ABI-dispatch shape as precompiles/erc20/erc20.go,
// but reading/writing its ledger through ordinary EVM storage slots at its
// own address instead of a bank keeper.
type Precompile struct {
	ecommon.Precompile
	Token TokenMetadata
}

func NewPrecompile(token TokenMetadata) *Precompile {
	p := &Precompile{Token: token}
	p.SetAddress(token.Erc20Address)
	return p
}

func (p *Precompile) RequiredGas(input []byte) uint64 {
	if len(input) < 4 {
		return 0
	}
	method, err := ABI.MethodById(input[:4])
	if err != nil {
		return 0
	}
	switch method.Name {
	case "transfer":
		return gasTransfer
	case "transferFrom":
		return gasTransferFrom
	case "approve":
		return gasApprove
	case "name":
		return gasName
	case "symbol":
		return gasSymbol
	case "decimals":
		return gasDecimals
	case "totalSupply":
		return gasTotalSupply
	case "balanceOf":
		return gasBalanceOf
	case "allowance":
		return gasAllowance
	default:
		return 0
	}
}

// Bound constructs a Run-ready closure over ec — called once per call site
// from the engine precompile set assembly rather than kept as a field,
// since ExecutionContext is rebuilt fresh every transaction.
func (p *Precompile) Bound(ec *ecommon.ExecutionContext) vm.PrecompiledContract {
	return boundERC20{p: p, ec: ec}
}

type boundERC20 struct {
	p  *Precompile
	ec *ecommon.ExecutionContext
}

func (b boundERC20) RequiredGas(input []byte) uint64 { return b.p.RequiredGas(input) }

func (b boundERC20) Run(input []byte) ([]byte, error) {
	return ecommon.RunNativeAction(b.ec, func(ec *ecommon.ExecutionContext) ([]byte, error) {
		return b.p.execute(ec, input)
	})
}

func (p *Precompile) execute(ec *ecommon.ExecutionContext, input []byte) ([]byte, error) {
	method, args, err := ecommon.SetupABI(ABI, input, nil, ec.ReadOnly, p.isTransaction)
	if err != nil {
		return nil, err
	}

	switch method.Name {
	case "name":
		return method.Outputs.Pack(p.Token.Name)
	case "symbol":
		return method.Outputs.Pack(p.Token.Symbol)
	case "decimals":
		return method.Outputs.Pack(p.Token.Decimals)
	case "totalSupply":
		return method.Outputs.Pack(p.TotalSupply(ec))
	case "balanceOf":
		return method.Outputs.Pack(p.BalanceOf(ec, args[0].(common.Address)))
	case "allowance":
		return method.Outputs.Pack(p.Allowance(ec, args[0].(common.Address), args[1].(common.Address)))
	case "transfer":
		return p.transfer(ec, ec.Caller, args[0].(common.Address), args[1].(*big.Int))
	case "approve":
		return p.approve(ec, ec.Caller, args[0].(common.Address), args[1].(*big.Int))
	case "transferFrom":
		return p.transferFrom(ec, ec.Caller, args[0].(common.Address), args[1].(common.Address), args[2].(*big.Int))
	default:
		return nil, errUnknownMethod
	}
}

func (p *Precompile) isTransaction(method *abi.Method) bool {
	switch method.Name {
	case "transfer", "approve", "transferFrom":
		return true
	default:
		return false
	}
}

// --- storage layout: mirrors solc's mapping slot derivation so the
// precompile behaves exactly as deployed bytecode would to any inspector
// that reads raw storage. ---

func mappingSlot(key common.Hash, base uint64) common.Hash {
	var baseBytes common.Hash
	baseBytes.SetBytes(big.NewInt(int64(base)).Bytes())
	return crypto.Keccak256Hash(key.Bytes(), baseBytes.Bytes())
}

func (p *Precompile) balanceKey(owner common.Address) common.Hash {
	return mappingSlot(owner.Hash(), balanceSlotIndex)
}

func (p *Precompile) allowanceKey(owner, spender common.Address) common.Hash {
	ownerSlot := mappingSlot(owner.Hash(), allowanceSlotIndex)
	return crypto.Keccak256Hash(spender.Hash().Bytes(), ownerSlot.Bytes())
}

func (p *Precompile) totalSupplyKey() common.Hash {
	return common.BigToHash(big.NewInt(totalSupplySlot))
}

func (p *Precompile) BalanceOf(ec *ecommon.ExecutionContext, owner common.Address) *big.Int {
	return ec.StateDB.GetState(p.Address(), p.balanceKey(owner)).Big()
}

func (p *Precompile) Allowance(ec *ecommon.ExecutionContext, owner, spender common.Address) *big.Int {
	return ec.StateDB.GetState(p.Address(), p.allowanceKey(owner, spender)).Big()
}

func (p *Precompile) TotalSupply(ec *ecommon.ExecutionContext) *big.Int {
	return ec.StateDB.GetState(p.Address(), p.totalSupplyKey()).Big()
}

// Mint credits amount to recipient and bumps total supply — called by
// bridge's ft_on_transfer handler, not reachable through the ABI.
func (p *Precompile) Mint(ec *ecommon.ExecutionContext, recipient common.Address, amount *big.Int) {
	p.setBalance(ec, recipient, new(big.Int).Add(p.BalanceOf(ec, recipient), amount))
	p.setTotalSupply(ec, new(big.Int).Add(p.TotalSupply(ec), amount))
	ec.StateDB.AddLog(&types.Log{
		Address: p.Address(),
		Topics:  []common.Hash{transferTopic, common.Hash{}, recipient.Hash()},
		Data:    common.LeftPadBytes(amount.Bytes(), 32),
	})
}

// Burn debits amount from owner and shrinks total supply — called by
// bridge's exit_to_near/exit_to_eth ERC20Burner implementation.
func (p *Precompile) Burn(ec *ecommon.ExecutionContext, owner common.Address, amount *big.Int) error {
	bal := p.BalanceOf(ec, owner)
	if bal.Cmp(amount) < 0 {
		return errInsufficientFunds
	}
	p.setBalance(ec, owner, new(big.Int).Sub(bal, amount))
	p.setTotalSupply(ec, new(big.Int).Sub(p.TotalSupply(ec), amount))
	ec.StateDB.AddLog(&types.Log{
		Address: p.Address(),
		Topics:  []common.Hash{transferTopic, owner.Hash(), common.Hash{}},
		Data:    common.LeftPadBytes(amount.Bytes(), 32),
	})
	return nil
}

func (p *Precompile) setBalance(ec *ecommon.ExecutionContext, owner common.Address, value *big.Int) {
	ec.StateDB.SetState(p.Address(), p.balanceKey(owner), common.BigToHash(value))
}

func (p *Precompile) setTotalSupply(ec *ecommon.ExecutionContext, value *big.Int) {
	ec.StateDB.SetState(p.Address(), p.totalSupplyKey(), common.BigToHash(value))
}

func (p *Precompile) transfer(ec *ecommon.ExecutionContext, from, to common.Address, amount *big.Int) ([]byte, error) {
	fromBal := p.BalanceOf(ec, from)
	if fromBal.Cmp(amount) < 0 {
		return nil, errInsufficientFunds
	}
	p.setBalance(ec, from, new(big.Int).Sub(fromBal, amount))
	p.setBalance(ec, to, new(big.Int).Add(p.BalanceOf(ec, to), amount))
	ec.StateDB.AddLog(&types.Log{
		Address: p.Address(),
		Topics:  []common.Hash{transferTopic, from.Hash(), to.Hash()},
		Data:    common.LeftPadBytes(amount.Bytes(), 32),
	})
	return ABI.Methods["transfer"].Outputs.Pack(true)
}

func (p *Precompile) approve(ec *ecommon.ExecutionContext, owner, spender common.Address, amount *big.Int) ([]byte, error) {
	ec.StateDB.SetState(p.Address(), p.allowanceKey(owner, spender), common.BigToHash(amount))
	ec.StateDB.AddLog(&types.Log{
		Address: p.Address(),
		Topics:  []common.Hash{approvalTopic, owner.Hash(), spender.Hash()},
		Data:    common.LeftPadBytes(amount.Bytes(), 32),
	})
	return ABI.Methods["approve"].Outputs.Pack(true)
}

func (p *Precompile) transferFrom(ec *ecommon.ExecutionContext, spender, from, to common.Address, amount *big.Int) ([]byte, error) {
	allowed := p.Allowance(ec, from, spender)
	if allowed.Cmp(amount) < 0 {
		return nil, errInsufficientAllow
	}
	fromBal := p.BalanceOf(ec, from)
	if fromBal.Cmp(amount) < 0 {
		return nil, errInsufficientFunds
	}
	ec.StateDB.SetState(p.Address(), p.allowanceKey(from, spender), common.BigToHash(new(big.Int).Sub(allowed, amount)))
	p.setBalance(ec, from, new(big.Int).Sub(fromBal, amount))
	p.setBalance(ec, to, new(big.Int).Add(p.BalanceOf(ec, to), amount))
	ec.StateDB.AddLog(&types.Log{
		Address: p.Address(),
		Topics:  []common.Hash{transferTopic, from.Hash(), to.Hash()},
		Data:    common.LeftPadBytes(amount.Bytes(), 32),
	})
	return ABI.Methods["transferFrom"].Outputs.Pack(true)
}

var _ vm.PrecompiledContract = boundERC20{}
