package txcodec

import "github.com/ethereum/go-ethereum/core/types"

// Intrinsic gas constants of spec.md §4.3.
const (
	gasTransaction           uint64 = 21_000
	gasTxDataZero            uint64 = 4
	gasTxDataNonZero         uint64 = 16
	gasContractCreation      uint64 = 32_000
	gasAccessListAddress     uint64 = 2_400
	gasAccessListStorageSlot uint64 = 1_900
)

// IntrinsicGas computes 21000 + 16·non-zero-bytes + 4·zero-bytes +
// 32000·[create] + access-list surcharge, per spec.md §4.3.
func IntrinsicGas(tx *types.Transaction) uint64 {
	gas := gasTransaction

	var zero, nonZero uint64
	for _, b := range tx.Data() {
		if b == 0 {
			zero++
		} else {
			nonZero++
		}
	}
	gas += zero*gasTxDataZero + nonZero*gasTxDataNonZero

	if tx.To() == nil {
		gas += gasContractCreation
	}

	al := tx.AccessList()
	gas += uint64(len(al)) * gasAccessListAddress
	for _, entry := range al {
		gas += uint64(len(entry.StorageKeys)) * gasAccessListStorageSlot
	}

	return gas
}
