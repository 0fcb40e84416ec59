package lol

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/grailbio/base/recordio"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/hlamatch/hla"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/require"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := vcontext.Background()
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	g := buildTestGraph(t)
	path := filepath.Join(tempDir, "donors.rio")
	require.NoError(t, g.Save(ctx, path))

	loaded, err := Load(ctx, path)
	require.NoError(t, err)
	require.Equal(t, g.NumNodes(), loaded.NumNodes())
	require.Equal(t, g.NumEdges(), loaded.NumEdges())
	for id := int32(0); id < int32(g.NumNodes()); id++ {
		expect.EQ(t, loaded.Key(id), g.Key(id))
		got, ok := loaded.CompactID(g.Key(id))
		require.True(t, ok)
		expect.EQ(t, got, id)
		e1, e2 := g.EdgesID(id), loaded.EdgesID(id)
		require.Equal(t, e1.Len(), e2.Len())
		for i := 0; i < e1.Len(); i++ {
			expect.EQ(t, e2.ID(i), e1.ID(i))
			expect.EQ(t, e2.Weight(i), e1.Weight(i))
		}
	}
	ids, values := g.ClassNeighbors(testGeno1.ClassI())
	loadedIDs, loadedValues := loaded.ClassNeighbors(testGeno1.ClassI())
	expect.EQ(t, loadedIDs, ids)
	expect.EQ(t, loadedValues, values)
	sub := hla.EncodeSubclass(testGeno1[:hla.ClassIEnd], 1)
	ids, _ = loaded.Neighbors2nd(sub)
	expect.EQ(t, len(ids), 2)
}

func TestLoadRejectsBadVersion(t *testing.T) {
	ctx := vcontext.Background()
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	path := filepath.Join(tempDir, "bogus.rio")
	out, err := os.Create(path)
	require.NoError(t, err)
	w := recordio.NewWriter(out, recordio.WriterOpts{})
	w.AddHeader(fileVersionHeader, "HLAGRAPH_V0")
	w.Append([]byte("x"))
	require.NoError(t, w.Finish())
	require.NoError(t, out.Close())

	_, err = Load(ctx, path)
	require.Error(t, err)
}
