package diff

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiffPatchRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		old  []byte
		new  []byte
	}{
		{"both empty", []byte{}, []byte{}},
		{"empty to data", []byte{}, []byte("SOME DATA TO PUT INTO FILE")},
		{"data to empty", []byte("SOME DATA TO PUT INTO FILE"), []byte{}},
		{"identical", []byte("same bytes"), []byte("same bytes")},
		{
			"full replace",
			[]byte("SOME DATA TO PUT INTO FILE"),
			[]byte("SOME OTHER DATA TO REPLACE WHAT WAS BEFORE"),
		},
		{"prefix insert", []byte("world"), []byte("hello world")},
		{"suffix insert", []byte("hello"), []byte("hello world")},
		{"middle delete", []byte("hello cruel world"), []byte("hello world")},
		{"single byte", []byte("a"), []byte("b")},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			script := Diff(tc.old, tc.new)
			assert.Equal(t, tc.new, Patch(tc.old, script))
		})
	}
}

func TestDiffRoundTripRandom(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 50; i++ {
		old := randomBytes(rng, rng.Intn(8192))
		new := mutate(rng, old)

		script := Diff(old, new)
		require.Equal(t, new, Patch(old, script),
			"round trip failed for inputs of %d/%d bytes", len(old), len(new))
	}
}

func TestDiffEmptyScriptForEqualInputs(t *testing.T) {
	data := bytes.Repeat([]byte("abcdef"), 500)
	script := Diff(data, data)
	assert.True(t, script.Empty())
}

func TestDiffOffsetsAreBaseRelative(t *testing.T) {
	// Deletions stay sorted and non-overlapping in old coordinates, and
	// insertions stay sorted, regardless of how many edits the script holds.
	old := randomBytes(rand.New(rand.NewSource(7)), 4096)
	new := mutate(rand.New(rand.NewSource(8)), old)

	script := Diff(old, new)

	prevEnd := 0
	for _, d := range script.Deletions {
		require.Less(t, d.Start, d.End)
		require.GreaterOrEqual(t, d.Start, prevEnd)
		require.LessOrEqual(t, d.End, len(old))
		prevEnd = d.End
	}

	prevStart := -1
	for _, ins := range script.Insertions {
		require.Greater(t, ins.Start, prevStart)
		require.NotEmpty(t, ins.Data)
		prevStart = ins.Start
	}
}

func TestDiffChunkBoundsLargeInput(t *testing.T) {
	// With the default divisor, large inputs still diff through a bounded
	// chunk count, and insertion payloads keep full byte fidelity.
	old := bytes.Repeat([]byte("0123456789abcdef"), 64*1024)
	new := append(append([]byte("HEAD"), old...), []byte("TAIL")...)

	script := Diff(old, new)
	assert.Equal(t, new, Patch(old, script))
}

func TestEngineCustomDivisor(t *testing.T) {
	e := NewEngine(10)

	old := []byte("the quick brown fox jumps over the lazy dog")
	new := []byte("the quick red fox leaps over the lazy dog")

	script := e.Diff(old, new)
	assert.Equal(t, new, Patch(old, script))
}

func TestPatchInsertionAtEnd(t *testing.T) {
	base := []byte("abc")
	script := Script{Insertions: []Insertion{{Start: 3, Data: []byte("def")}}}
	assert.Equal(t, []byte("abcdef"), Patch(base, script))
}

func TestPatchDeleteAll(t *testing.T) {
	base := []byte("abcdef")
	script := Script{Deletions: []Deletion{{Start: 0, End: 6}}}
	assert.Equal(t, []byte{}, Patch(base, script))
}

func randomBytes(rng *rand.Rand, n int) []byte {
	b := make([]byte, n)
	for i := range b {
		// Small alphabet so chunks actually repeat.
		b[i] = byte('a' + rng.Intn(4))
	}
	return b
}

// mutate applies a few random splices so the diff has real work to do.
func mutate(rng *rand.Rand, src []byte) []byte {
	out := append([]byte(nil), src...)
	for k := 0; k < 1+rng.Intn(4); k++ {
		if len(out) == 0 {
			out = randomBytes(rng, 1+rng.Intn(64))
			continue
		}
		at := rng.Intn(len(out))
		switch rng.Intn(3) {
		case 0: // insert
			ins := randomBytes(rng, 1+rng.Intn(64))
			out = append(out[:at], append(ins, out[at:]...)...)
		case 1: // delete
			end := at + rng.Intn(len(out)-at)
			out = append(out[:at], out[end:]...)
		default: // overwrite
			end := at + rng.Intn(len(out)-at)
			repl := randomBytes(rng, 1+rng.Intn(64))
			out = append(out[:at], append(repl, out[end:]...)...)
		}
	}
	return out
}
