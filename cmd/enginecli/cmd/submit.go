package cmd

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/aurora-is-near/engine-go/config"
	"github.com/aurora-is-near/engine-go/diff"
	"github.com/aurora-is-near/engine-go/engine"
	"github.com/aurora-is-near/engine-go/kv/standalone"
)

// newSubmitCmd implements the one-off equivalent of replaying a single
// KindSubmit TransactionMessage: open the configured RocksDB store directly
// (no journal, no secondary index), run the transaction through the same
// engine.Orchestrator.Submit path the real host binding and replay.Replayer
// both use, and commit its diff.Scope the same way
// replay.Replayer.ConsumeTransaction does — only on success.
func newSubmitCmd(v *viper.Viper) *cobra.Command {
	var (
		raw                  string
		predecessorAccountID string
		signerAccountID      string
		currentAccountID     string
		height               uint64
		timestampNs          uint64
		gasLimit             uint64
		baseFee              string
		maxGasPrice          string
	)

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a single raw signed transaction against the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}

			rawTx, err := hexutil.Decode(raw)
			if err != nil {
				return fmt.Errorf("decode --raw: %w", err)
			}

			store, err := standalone.Open(cfg.RocksDBPath)
			if err != nil {
				return err
			}
			defer store.Close()
			store.SetCursor(height, 0)

			bf, ok := new(big.Int).SetString(baseFee, 10)
			if !ok {
				bf = big.NewInt(0)
			}

			var maxPrice *big.Int
			if maxGasPrice != "" {
				maxPrice, ok = new(big.Int).SetString(maxGasPrice, 10)
				if !ok {
					return fmt.Errorf("invalid --max-gas-price %q", maxGasPrice)
				}
			}

			env := engine.StaticEnvironment{
				Predecessor: predecessorAccountID,
				Signer:      signerAccountID,
				Current:     currentAccountID,
				Height:      height,
				TimestampNs: timestampNs,
			}
			blk := engine.BlockConfig{
				Height:   height,
				Time:     timestampNs / 1_000_000_000,
				GasLimit: gasLimit,
				BaseFee:  bf,
				GetHash:  func(uint64) common.Hash { return common.Hash{} },
			}

			scope := diff.NewScope()
			promises := &engine.RecordingPromises{}
			o := engine.NewOrchestrator(logger())

			res, err := o.Submit(cmd.Context(), store, scope, env, promises, blk, engine.SubmitInput{
				Raw:                  rawTx,
				PredecessorAccountID: predecessorAccountID,
				MaxGasPrice:          maxPrice,
			})
			if err != nil {
				return err
			}

			d := scope.Root()
			entries := make(map[string]standalone.DiffEntry, d.Len())
			d.Each(func(key string, e diff.Entry) {
				entries[key] = standalone.DiffEntry{Value: e.Value, Deleted: e.Deleted}
			})
			if err := store.CommitDiff(height, 0, entries); err != nil {
				return err
			}

			out, err := json.MarshalIndent(submitResultView{
				Status:          uint8(res.Status),
				GasUsed:         res.GasUsed,
				ContractAddress: res.ContractAddress.Hex(),
				Output:          hexutil.Encode(res.Output),
				VMError:         res.VMError,
				KeysTouched:     d.Len(),
			}, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&raw, "raw", "", "hex-encoded signed transaction (0x-prefixed)")
	flags.StringVar(&predecessorAccountID, "predecessor-account-id", "", "calling account id")
	flags.StringVar(&signerAccountID, "signer-account-id", "", "signer account id")
	flags.StringVar(&currentAccountID, "current-account-id", "", "this engine's own account id")
	flags.Uint64Var(&height, "height", 0, "block height to submit at")
	flags.Uint64Var(&timestampNs, "timestamp-ns", 0, "block timestamp, nanoseconds")
	flags.Uint64Var(&gasLimit, "gas-limit", 30_000_000, "block gas limit")
	flags.StringVar(&baseFee, "base-fee", "0", "block base fee, wei, base-10")
	flags.StringVar(&maxGasPrice, "max-gas-price", "", "reject the transaction above this gas price, wei, base-10 (unset disables the cap)")
	_ = cmd.MarkFlagRequired("raw")

	return cmd
}

// submitResultView is the printable shape of engine.SubmitResult — the
// binary Encode() form isn't meant for a human reading a terminal.
type submitResultView struct {
	Status          uint8  `json:"status"`
	GasUsed         uint64 `json:"gas_used"`
	ContractAddress string `json:"contract_address"`
	Output          string `json:"output"`
	VMError         string `json:"vm_error,omitempty"`
	KeysTouched     int    `json:"keys_touched"`
}
