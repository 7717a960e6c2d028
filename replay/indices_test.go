package replay_test

import (
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/aurora-is-near/engine-go/diff"
	"github.com/aurora-is-near/engine-go/replay"
)

func openIndex(t *testing.T) *replay.Index {
	t.Helper()
	ix, err := replay.OpenIndex(filepath.Join(t.TempDir(), "idx"))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, ix.Close()) })
	return ix
}

func TestIndex_BlockBijection(t *testing.T) {
	ix := openIndex(t)
	hash := common.HexToHash("0xaa")

	require.NoError(t, ix.PutBlock(hash, 7, []byte("meta")))

	h, ok, err := ix.HeightForBlock(hash)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(7), h)

	gotHash, ok, err := ix.BlockForHeight(7)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, hash, gotHash)

	meta, ok, err := ix.BlockMetadata(hash)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("meta"), meta)

	_, ok, err = ix.HeightForBlock(common.HexToHash("0xbb"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestIndex_TransactionAndPositionIndices(t *testing.T) {
	ix := openIndex(t)
	hash := common.HexToHash("0xcc")
	msg := replay.TransactionMessage{
		BlockHash: hash,
		Position:  3,
		ReceiptID: "receipt-1",
		Kind:      replay.KindSubmit,
		Input:     []byte{0x01, 0x02},
	}

	require.NoError(t, ix.PutTransaction(msg))
	require.NoError(t, ix.PutPositionReceipt(hash, 3, "receipt-1"))

	got, ok, err := ix.Transaction("receipt-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, msg, got)

	receiptID, ok, err := ix.ReceiptAtPosition(hash, 3)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "receipt-1", receiptID)

	_, ok, err = ix.Transaction("no-such-receipt")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestIndex_DiffRoundtrip(t *testing.T) {
	ix := openIndex(t)
	hash := common.HexToHash("0xdd")

	d := diff.New()
	d.Set([]byte("alpha"), []byte("1"))
	d.Set([]byte("beta"), []byte("2"))
	d.Remove([]byte("gamma"))

	require.NoError(t, ix.PutDiff(hash, 0, d))

	got, ok, err := ix.Diff(hash, 0)
	require.NoError(t, err)
	require.True(t, ok)

	for _, k := range d.Sorted() {
		wantEntry, _ := d.Get([]byte(k))
		gotEntry, ok := got.Get([]byte(k))
		require.True(t, ok)
		require.Equal(t, wantEntry, gotEntry)
	}
	require.Equal(t, d.Len(), got.Len())

	_, ok, err = ix.Diff(hash, 99)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestIndex_TrackedKeyHistoryIsOrdered(t *testing.T) {
	ix := openIndex(t)
	key := []byte("storage:slot:1")

	d1 := diff.New()
	d1.Set(key, []byte("v1"))
	require.NoError(t, ix.RecordTrackedKeys(10, 0, d1))

	d2 := diff.New()
	d2.Set(key, []byte("v2"))
	require.NoError(t, ix.RecordTrackedKeys(11, 2, d2))

	d3 := diff.New()
	d3.Remove(key)
	require.NoError(t, ix.RecordTrackedKeys(12, 0, d3))

	history, err := ix.TrackedKeyHistory(key)
	require.NoError(t, err)
	require.Len(t, history, 3)

	require.Equal(t, uint64(10), history[0].Height)
	require.Equal(t, []byte("v1"), history[0].Value)
	require.False(t, history[0].Deleted)

	require.Equal(t, uint64(11), history[1].Height)
	require.Equal(t, uint16(2), history[1].Position)
	require.Equal(t, []byte("v2"), history[1].Value)

	require.Equal(t, uint64(12), history[2].Height)
	require.True(t, history[2].Deleted)
}

func TestIndex_TrackedKeyHistoryDoesNotLeakAcrossKeys(t *testing.T) {
	ix := openIndex(t)

	d := diff.New()
	d.Set([]byte("key-a"), []byte("va"))
	d.Set([]byte("key-ab"), []byte("vab"))
	require.NoError(t, ix.RecordTrackedKeys(1, 0, d))

	history, err := ix.TrackedKeyHistory([]byte("key-a"))
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, []byte("va"), history[0].Value)
}
