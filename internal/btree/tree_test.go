package btree

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/relicdb/relicdb/internal/pager"
)

const testPageSize = 44 // yields BT_MAX_KEY = 3

func openTestTree(t *testing.T) *Tree {
	t.Helper()
	path := filepath.Join(t.TempDir(), "t.idx")
	tree, err := Open(path, pager.ModeWrite, testPageSize)
	require.NoError(t, err)
	t.Cleanup(func() { tree.Close() })
	return tree
}

func rid(n int32) RecordId { return RecordId{Pid: n, Sid: 0} }

// TestTree_S1 reproduces scenario S1: a single leaf holding [10,20,30].
func TestTree_S1(t *testing.T) {
	tree := openTestTree(t)
	for _, k := range []int32{10, 20, 30} {
		require.NoError(t, tree.Insert(k, rid(k)))
	}
	require.EqualValues(t, 1, tree.Height())
}

// TestTree_S2 continues S1 with insert(5): the leaf splits and a new
// internal root appears.
func TestTree_S2(t *testing.T) {
	tree := openTestTree(t)
	for _, k := range []int32{10, 20, 30} {
		require.NoError(t, tree.Insert(k, rid(k)))
	}
	require.NoError(t, tree.Insert(5, rid(5)))
	require.EqualValues(t, 2, tree.Height())

	cur, err := tree.Locate(5)
	require.NoError(t, err)
	key, gotRid, _, err := tree.ReadForward(cur)
	require.NoError(t, err)
	require.Equal(t, int32(5), key)
	require.Equal(t, rid(5), gotRid)
}

// TestTree_S3 continues S2 with inserts 15,25,35: the right leaf splits
// once and the root takes a second separator ([20,30]), which still
// fits, so the height stays 2.
func TestTree_S3(t *testing.T) {
	tree := openTestTree(t)
	for _, k := range []int32{10, 20, 30, 5, 15, 25, 35} {
		require.NoError(t, tree.Insert(k, rid(k)))
	}
	require.EqualValues(t, 2, tree.Height())
}

// TestTree_S4 continues S3: Locate(25) finds it, and forward iteration
// yields 25, 30, 35 then end-of-tree.
func TestTree_S4(t *testing.T) {
	tree := openTestTree(t)
	for _, k := range []int32{10, 20, 30, 5, 15, 25, 35} {
		require.NoError(t, tree.Insert(k, rid(k)))
	}

	cur, err := tree.Locate(25)
	require.NoError(t, err)

	var got []int32
	for {
		key, _, next, err := tree.ReadForward(cur)
		if err == ErrEndOfTree {
			break
		}
		require.NoError(t, err)
		got = append(got, key)
		cur = next
	}
	require.Equal(t, []int32{25, 30, 35}, got)
}

// TestTree_RangeCompleteness verifies invariant 6: any [lo,hi] window,
// walked via Locate(lo)+ReadForward, yields every inserted key in range
// exactly once, ascending.
func TestTree_RangeCompleteness(t *testing.T) {
	tree := openTestTree(t)
	keys := []int32{50, 10, 30, 70, 20, 60, 40, 80, 5, 25, 35, 45, 55, 65, 75, 85}
	for _, k := range keys {
		require.NoError(t, tree.Insert(k, rid(k)))
	}

	cur, _ := tree.Locate(20)
	var got []int32
	for {
		key, _, next, err := tree.ReadForward(cur)
		if err == ErrEndOfTree || key > 60 {
			break
		}
		got = append(got, key)
		cur = next
	}
	require.Equal(t, []int32{20, 25, 30, 35, 40, 45, 50, 55, 60}, got)
}

// TestTree_RangeStartingInPostSplitGap covers a Locate(lo) that lands on
// eid == leaf.KeyCount() of a leaf whose trailing slots still hold
// entries moved to a sibling by an earlier split: ReadForward must skip
// to the sibling rather than reading that stale slot (would otherwise
// emit 30 twice for key>=25 below, or one phantom key for key>=1000).
func TestTree_RangeStartingInPostSplitGap(t *testing.T) {
	tree := openTestTree(t)
	for _, k := range []int32{10, 20, 30, 40} {
		require.NoError(t, tree.Insert(k, rid(k)))
	}

	cur, err := tree.Locate(25)
	require.ErrorIs(t, err, ErrNoSuchRecord)

	var got []int32
	for {
		key, gotRid, next, err := tree.ReadForward(cur)
		if err == ErrEndOfTree {
			break
		}
		require.NoError(t, err)
		got = append(got, key)
		require.Equal(t, rid(key), gotRid)
		cur = next
	}
	require.Equal(t, []int32{30, 40}, got)

	cur, err = tree.Locate(1000)
	require.ErrorIs(t, err, ErrNoSuchRecord)
	_, _, _, err = tree.ReadForward(cur)
	require.ErrorIs(t, err, ErrEndOfTree)
}

func TestTree_LocateMissingKeepsInsertionCursor(t *testing.T) {
	tree := openTestTree(t)
	for _, k := range []int32{10, 20, 30} {
		require.NoError(t, tree.Insert(k, rid(k)))
	}
	cur, err := tree.Locate(999)
	require.ErrorIs(t, err, ErrNoSuchRecord)
	require.Equal(t, int32(3), cur.Eid)
}

func TestTree_MetaSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.idx")
	tree, err := Open(path, pager.ModeWrite, testPageSize)
	require.NoError(t, err)
	for _, k := range []int32{10, 20, 30, 5, 15, 25, 35} {
		require.NoError(t, tree.Insert(k, rid(k)))
	}
	wantHeight := tree.Height()
	wantRoot := tree.RootPid()
	require.NoError(t, tree.Close())

	reopened, err := Open(path, pager.ModeWrite, testPageSize)
	require.NoError(t, err)
	defer reopened.Close()
	require.Equal(t, wantHeight, reopened.Height())
	require.Equal(t, wantRoot, reopened.RootPid())

	cur, err := reopened.Locate(25)
	require.NoError(t, err)
	key, _, _, err := reopened.ReadForward(cur)
	require.NoError(t, err)
	require.Equal(t, int32(25), key)
}
