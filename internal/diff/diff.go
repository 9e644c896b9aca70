// internal/diff/diff.go
package diff

import (
	"bytes"
)

// DefaultDivisor bounds the number of chunks fed to the LCS pass. With a
// divisor of 1000 the matrix stays around 1000x1000 regardless of input size.
const DefaultDivisor = 1000

// Deletion is a half-open byte range [Start, End) in the coordinate space of
// the buffer the script applies to.
type Deletion struct {
	Start int
	End   int
}

// Insertion splices Data immediately before the byte at Start in the base
// buffer. Start may equal or exceed the base length, which appends at the end.
type Insertion struct {
	Start int
	Data  []byte
}

// Script is an edit script transforming one byte buffer into another. All
// offsets refer to the unpatched base buffer; applying the script is a single
// left-to-right pass, never a cumulative re-indexing.
type Script struct {
	Deletions  []Deletion
	Insertions []Insertion
}

// Empty reports whether the script carries no edits.
func (s Script) Empty() bool {
	return len(s.Deletions) == 0 && len(s.Insertions) == 0
}

// Engine computes edit scripts between byte buffers at chunk granularity.
type Engine struct {
	divisor int
}

// NewEngine creates a diff engine. A divisor <= 0 selects DefaultDivisor.
func NewEngine(divisor int) *Engine {
	if divisor <= 0 {
		divisor = DefaultDivisor
	}
	return &Engine{divisor: divisor}
}

// Diff computes the script that transforms old into new, so that
// Patch(old, script) == new byte-for-byte.
//
// Both buffers are partitioned into chunks of len/divisor bytes and the LCS
// pass runs over the chunk sequences. Deletion ranges are therefore
// chunk-aligned and may be coarser than a byte-exact diff would produce;
// insertion payloads always carry the exact inserted bytes.
func (e *Engine) Diff(old, new []byte) Script {
	c := min(len(old), len(new)) / e.divisor
	if c == 0 {
		c = 1
	}

	oldChunks := split(old, c)
	newChunks := split(new, c)

	lcs := computeLCS(oldChunks, newChunks)
	dels, inss := backtrack(oldChunks, newChunks, lcs)

	return expand(oldChunks, c, dels, inss)
}

// Diff computes an edit script with the default chunk divisor.
func Diff(old, new []byte) Script {
	return NewEngine(0).Diff(old, new)
}

// split partitions b into contiguous chunks of c bytes; the final chunk may
// be shorter.
func split(b []byte, c int) [][]byte {
	chunks := make([][]byte, 0, len(b)/c+1)
	for len(b) > c {
		chunks = append(chunks, b[:c])
		b = b[c:]
	}
	if len(b) > 0 {
		chunks = append(chunks, b)
	}
	return chunks
}

// computeLCS builds the longest-common-subsequence matrix over two chunk
// sequences.
func computeLCS(oldChunks, newChunks [][]byte) [][]int {
	matrix := make([][]int, len(oldChunks)+1)
	for i := range matrix {
		matrix[i] = make([]int, len(newChunks)+1)
	}

	for i := 1; i <= len(oldChunks); i++ {
		for j := 1; j <= len(newChunks); j++ {
			if bytes.Equal(oldChunks[i-1], newChunks[j-1]) {
				matrix[i][j] = matrix[i-1][j-1] + 1
			} else {
				matrix[i][j] = max(matrix[i-1][j], matrix[i][j-1])
			}
		}
	}

	return matrix
}

// chunkInsertion anchors a run of inserted new-chunks at an old-chunk index.
type chunkInsertion struct {
	at     int
	chunks [][]byte
}

// backtrack walks the LCS matrix from the bottom-right corner and yields
// deletions as old-chunk index ranges and insertions anchored at old-chunk
// indices, both sorted ascending.
func backtrack(oldChunks, newChunks [][]byte, lcs [][]int) ([]Deletion, []chunkInsertion) {
	var dels []Deletion
	var inss []chunkInsertion

	i, j := len(oldChunks), len(newChunks)
	for i > 0 || j > 0 {
		switch {
		case i > 0 && j > 0 && bytes.Equal(oldChunks[i-1], newChunks[j-1]):
			i--
			j--
		case j > 0 && (i == 0 || lcs[i][j-1] >= lcs[i-1][j]):
			// Inserted chunk, spliced before old chunk i. Backtracking
			// visits runs right to left, so prepend to keep j order.
			if len(inss) > 0 && inss[len(inss)-1].at == i {
				last := &inss[len(inss)-1]
				last.chunks = append([][]byte{newChunks[j-1]}, last.chunks...)
			} else {
				inss = append(inss, chunkInsertion{at: i, chunks: [][]byte{newChunks[j-1]}})
			}
			j--
		default:
			if len(dels) > 0 && dels[len(dels)-1].Start == i {
				dels[len(dels)-1].Start = i - 1
			} else {
				dels = append(dels, Deletion{Start: i - 1, End: i})
			}
			i--
		}
	}

	reverseDeletions(dels)
	reverseInsertions(inss)
	return dels, inss
}

// expand maps chunk-index deletions and insertions back into byte
// coordinates of the old buffer.
func expand(oldChunks [][]byte, c int, dels []Deletion, inss []chunkInsertion) Script {
	var script Script

	for _, d := range dels {
		length := 0
		for _, chunk := range oldChunks[d.Start:d.End] {
			length += len(chunk)
		}
		start := d.Start * c
		script.Deletions = append(script.Deletions, Deletion{
			Start: start,
			End:   start + length,
		})
	}

	for _, ins := range inss {
		var data []byte
		for _, chunk := range ins.chunks {
			data = append(data, chunk...)
		}
		script.Insertions = append(script.Insertions, Insertion{
			Start: ins.at * c,
			Data:  data,
		})
	}

	return script
}

func reverseDeletions(s []Deletion) {
	for l, r := 0, len(s)-1; l < r; l, r = l+1, r-1 {
		s[l], s[r] = s[r], s[l]
	}
}

func reverseInsertions(s []chunkInsertion) {
	for l, r := 0, len(s)-1; l < r; l, r = l+1, r-1 {
		s[l], s[r] = s[r], s[l]
	}
}
