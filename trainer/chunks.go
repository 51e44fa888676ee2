package trainer

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"slices"
)

const defaultChunkWindow = 4096

// FindChunkBoundaries splits a corpus of size bytes into up to n chunks and
// returns the sorted, deduplicated boundary offsets, 0 and size always
// included. Starting from uniformly spaced guesses, each interior boundary
// is moved forward to the start of the next occurrence of sep so no chunk
// splits a document; if no occurrence remains, the boundary collapses to
// size. The corpus is read in fixed-size windows, never all at once.
func FindChunkBoundaries(r io.ReaderAt, size int64, n int, sep []byte) ([]int64, error) {
	return findChunkBoundaries(r, size, n, sep, defaultChunkWindow)
}

func findChunkBoundaries(r io.ReaderAt, size int64, n int, sep []byte, window int) ([]int64, error) {
	if n < 1 {
		return nil, fmt.Errorf("chunk count must be at least 1, got %d", n)
	}

	if len(sep) == 0 {
		return nil, errors.New("chunk separator must not be empty")
	}

	if window < len(sep) {
		window = len(sep)
	}

	bounds := make([]int64, n+1)
	stride := size / int64(n)
	for i := range bounds {
		bounds[i] = int64(i) * stride
	}
	bounds[n] = size

	buf := make([]byte, window)
	for i := 1; i < n; i++ {
		pos := bounds[i]
		for {
			if pos >= size {
				bounds[i] = size
				break
			}

			want := window
			if rest := size - pos; rest < int64(want) {
				want = int(rest)
			}

			m, err := r.ReadAt(buf[:want], pos)
			if err != nil && !errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("read corpus at offset %d: %w", pos, err)
			}

			if m == 0 {
				bounds[i] = size
				break
			}

			if j := bytes.Index(buf[:m], sep); j >= 0 {
				bounds[i] = pos + int64(j)
				break
			}

			if pos+int64(m) >= size {
				bounds[i] = size
				break
			}

			// overlap successive windows by len(sep)-1 bytes so a
			// separator straddling a window edge is still found
			pos += int64(m - len(sep) + 1)
		}
	}

	slices.Sort(bounds)
	return slices.Compact(bounds), nil
}
