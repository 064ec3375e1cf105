package delta

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Contract: the digest ignores order and differs for different contents.
func TestDigest_OrderIndependent(t *testing.T) {
	a := Of("file.c:12", "file.c:40", "util.c:7")
	b := Of("util.c:7", "file.c:12", "file.c:40")
	c := Of("file.c:12", "file.c:40")

	assert.Equal(t, a.Digest(), b.Digest())
	assert.NotEqual(t, a.Digest(), c.Digest())
	assert.Len(t, a.Digest(), 32)
	assert.Equal(t, a.Digest(), a.Digest(), "digest must be stable")
}

// Contract: token boundaries are part of the digest.
func TestDigest_TokenBoundaries(t *testing.T) {
	assert.NotEqual(t, Of("ab", "c").Digest(), Of("a", "bc").Digest())
}

// Contract: Split covers its input with disjoint, contiguous parts whose
// sizes are floor(n/g) or ceil(n/g).
func TestSplit_Coverage(t *testing.T) {
	for size := 1; size <= 23; size++ {
		tokens := make([]string, size)
		for i := range tokens {
			tokens[i] = string(rune('a' + i))
		}
		s := Of(tokens...)

		for g := 2; g <= 7; g++ {
			parts := Split(s, g)
			require.Len(t, parts, min(g, size))

			floor, ceil := size/len(parts), (size+len(parts)-1)/len(parts)
			var joined Set
			for _, p := range parts {
				assert.True(t, p.Len() == floor || p.Len() == ceil,
					"size=%d g=%d part len %d not in {%d,%d}", size, g, p.Len(), floor, ceil)
				joined = append(joined, p...)
			}
			assert.Equal(t, s, joined, "parts must concatenate back to the input")
		}
	}
}

// Contract: Split is deterministic and puts the larger parts last.
func TestSplit_Stable(t *testing.T) {
	s := Of("a", "b", "c", "d", "e")
	first := Split(s, 2)
	second := Split(s, 2)

	assert.Equal(t, first, second)
	assert.Equal(t, []Set{Of("a", "b"), Of("c", "d", "e")}, first)
	assert.Nil(t, Split(nil, 2))
	assert.Equal(t, []Set{Of("a")}, Split(Of("a"), 4))
}

// Contract: appending to a part does not clobber its neighbour.
func TestSplit_PartsAreIndependent(t *testing.T) {
	s := Of("a", "b", "c", "d")
	parts := Split(s, 2)
	_ = append(parts[0], "z")

	assert.Equal(t, Of("c", "d"), parts[1])
	assert.Equal(t, Of("a", "b", "c", "d"), s)
}

func TestSetOperations(t *testing.T) {
	s := Of("a", "b", "c", "d")

	assert.Equal(t, Of("a", "c"), s.Minus(Of("d", "b", "x")))
	assert.Equal(t, Of("b", "d"), s.Intersect(Of("d", "b", "x")))
	assert.Equal(t, Of("a", "b", "c", "d", "x"), s.Union(Of("d", "x")))
	assert.Equal(t, Of("a", "b", "c"), Flatten([]Set{Of("a", "b"), Of("b", "c")}))
	assert.True(t, s.Equal(Of("d", "c", "b", "a")))
	assert.False(t, s.Equal(Of("a", "b", "c")))
	assert.True(t, s.Contains("c"))
	assert.False(t, s.Contains("x"))
}

// Contract: MergeFiles keeps the first file's order and de-duplicates.
func TestMergeFiles(t *testing.T) {
	dir := t.TempDir()
	p1 := filepath.Join(dir, "dd.line.101")
	p2 := filepath.Join(dir, "dd.line.102")
	require.NoError(t, os.WriteFile(p1, []byte("x.c:1\nx.c:2\n\n"), 0o644))
	require.NoError(t, os.WriteFile(p2, []byte("x.c:2\r\ny.c:9\n"), 0o644))

	merged, err := MergeFiles([]string{p1, p2})
	require.NoError(t, err)
	assert.Equal(t, Of("x.c:1", "x.c:2", "y.c:9"), merged)

	out := filepath.Join(dir, "dd.line")
	require.NoError(t, WriteFile(out, merged))
	back, err := ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, merged, back)

	_, err = MergeFiles(nil)
	assert.ErrorIs(t, err, ErrNoDeltaFiles)
}
