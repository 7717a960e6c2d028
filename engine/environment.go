package engine

import (
	"github.com/aurora-is-near/engine-go/host"
)

// StaticEnvironment is a plain-data host.Environment, filled in once per
// dispatched message from whatever ambient facts the caller (the real host
// binding, or replay's decoded TransactionMessage payload) carries. Unlike
// a live host binding there is nothing to call out to — every field is
// already known at construction time.
type StaticEnvironment struct {
	Predecessor  string
	Signer       string
	Current      string
	Height       uint64
	TimestampNs  uint64
	Deposit      [32]byte
	Random       [32]byte
	Prepaid      uint64
}

var _ host.Environment = StaticEnvironment{}

func (e StaticEnvironment) PredecessorAccountID() string { return e.Predecessor }
func (e StaticEnvironment) SignerAccountID() string      { return e.Signer }
func (e StaticEnvironment) CurrentAccountID() string     { return e.Current }
func (e StaticEnvironment) BlockHeight() uint64           { return e.Height }
func (e StaticEnvironment) BlockTimestampNs() uint64      { return e.TimestampNs }
func (e StaticEnvironment) AttachedDeposit() [32]byte     { return e.Deposit }
func (e StaticEnvironment) RandomSeed() [32]byte          { return e.Random }
func (e StaticEnvironment) PrepaidGas() uint64             { return e.Prepaid }

// RecordingPromises implements host.Promises by assigning sequential ids
// and recording every call instead of actually scheduling anything —
// exactly what replay mode needs: spec.md §8's P5 diff-replay invariant
// asks for a bit-identical SubmitResult and Diff, which only requires the
// *ids* a contract observes to be deterministic, not that the promise
// actually runs (promise execution is the host's job, a later, independent
// invocation spec.md §5 explicitly places outside this engine's
// single-transaction boundary). The real host binding supplies its own
// host.Promises that actually schedules; this one is for standalone
// replay and for tests.
type RecordingPromises struct {
	Scheduled []ScheduledPromise
	Results   []host.PromiseResult
}

// ScheduledPromise is one Create/Then/And call RecordingPromises captured.
type ScheduledPromise struct {
	Base            uint64
	Then            bool
	And             []uint64
	AccountID       string
	Method          string
	Args            []byte
	AttachedBalance [16]byte
	Gas             uint64
}

var _ host.Promises = (*RecordingPromises)(nil)

func (p *RecordingPromises) Create(accountID, method string, args []byte, attachedBalance [16]byte, gas uint64) (uint64, error) {
	id := uint64(len(p.Scheduled))
	p.Scheduled = append(p.Scheduled, ScheduledPromise{
		AccountID: accountID, Method: method, Args: args, AttachedBalance: attachedBalance, Gas: gas,
	})
	return id, nil
}

func (p *RecordingPromises) Then(base uint64, accountID, method string, args []byte, attachedBalance [16]byte, gas uint64) (uint64, error) {
	id := uint64(len(p.Scheduled))
	p.Scheduled = append(p.Scheduled, ScheduledPromise{
		Base: base, Then: true, AccountID: accountID, Method: method, Args: args, AttachedBalance: attachedBalance, Gas: gas,
	})
	return id, nil
}

func (p *RecordingPromises) And(ids []uint64) (uint64, error) {
	id := uint64(len(p.Scheduled))
	p.Scheduled = append(p.Scheduled, ScheduledPromise{And: append([]uint64(nil), ids...)})
	return id, nil
}

func (p *RecordingPromises) Return(uint64) {}

func (p *RecordingPromises) PromiseResultsCount() uint32 { return uint32(len(p.Results)) }

func (p *RecordingPromises) PromiseResult(i uint32) (host.PromiseResult, error) {
	if int(i) >= len(p.Results) {
		return host.PromiseResult{}, errNoPromiseResult
	}
	return p.Results[i], nil
}
