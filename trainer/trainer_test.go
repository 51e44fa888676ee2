package trainer

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trainBytes(t *testing.T, corpus []byte, opts Options) *Result {
	t.Helper()

	result, err := Train(context.Background(), bytes.NewReader(corpus), int64(len(corpus)), opts)
	require.NoError(t, err)
	return result
}

func TestTrainBaseVocabularyOnly(t *testing.T) {
	// target at or below the base vocabulary size yields no merges
	for _, target := range []int{1, 255, 256, 257} {
		result := trainBytes(t, []byte("some corpus text"), Options{
			VocabSize:     target,
			SpecialTokens: []string{"<|endoftext|>"},
		})

		assert.Empty(t, result.Merges, "target %d", target)
		assert.Equal(t, 257, result.Vocab.Len(), "target %d", target)
	}
}

func TestTrainSingleMerge(t *testing.T) {
	// corpus "aaba", target 257: every pair occurs once, and the
	// lexicographically greatest tie-break picks (b, a)
	result := trainBytes(t, []byte("aaba"), Options{VocabSize: 257})

	require.Len(t, result.Merges, 1)
	assert.Equal(t, []byte("b"), result.Merges[0].Left)
	assert.Equal(t, []byte("a"), result.Merges[0].Right)

	assert.Equal(t, 257, result.Vocab.Len())
	assert.Equal(t, []byte("ba"), result.Vocab.Bytes(256))

	// the merge shrinks the sequence from 4 tokens to 3
	assert.Equal(t, 3, result.TokenCount)
}

func TestTrainMergeListLength(t *testing.T) {
	corpus := []byte(strings.Repeat("the quick brown fox ", 50))

	result := trainBytes(t, corpus, Options{VocabSize: 300})
	assert.Len(t, result.Merges, 300-256)
	assert.Equal(t, 300, result.Vocab.Len())
}

func TestTrainExhaustsPairs(t *testing.T) {
	// two bytes merge once, then nothing is left to merge
	result := trainBytes(t, []byte("ab"), Options{VocabSize: 1000})

	assert.Len(t, result.Merges, 1)
	assert.Equal(t, 257, result.Vocab.Len())
	assert.Equal(t, 1, result.TokenCount)
}

func TestTrainEmptyCorpus(t *testing.T) {
	result := trainBytes(t, nil, Options{VocabSize: 300, SpecialTokens: []string{"<|endoftext|>"}})

	assert.Empty(t, result.Merges)
	assert.Equal(t, 257, result.Vocab.Len())
	assert.Zero(t, result.TokenCount)
}

func TestTrainParallelismIsObservationallyTransparent(t *testing.T) {
	sep := "<|endoftext|>"
	var sb strings.Builder
	for _, doc := range []string{
		"the cat sat on the mat",
		"the dog sat on the log",
		"a cat and a dog and a log",
		"mats and logs and cats and dogs",
	} {
		sb.WriteString(doc)
		sb.WriteString(sep)
	}
	corpus := []byte(sb.String())

	sequential := trainBytes(t, corpus, Options{
		VocabSize:     280,
		SpecialTokens: []string{sep},
		NumWorkers:    1,
	})

	parallel := trainBytes(t, corpus, Options{
		VocabSize:     280,
		SpecialTokens: []string{sep},
		NumWorkers:    8,
	})

	if diff := cmp.Diff(sequential.Merges, parallel.Merges); diff != "" {
		t.Errorf("merge lists diverge between 1 and 8 workers (-sequential +parallel):\n%s", diff)
	}

	if diff := cmp.Diff(sequential.Vocab.Map(), parallel.Vocab.Map()); diff != "" {
		t.Errorf("vocabularies diverge between 1 and 8 workers (-sequential +parallel):\n%s", diff)
	}

	assert.Equal(t, sequential.TokenCount, parallel.TokenCount)
}

func TestTrainSpecialTokenNeverSplitAcrossChunks(t *testing.T) {
	// the separator sits at offset 40, just past the midpoint guess of 36,
	// so the forward search must land the boundary exactly on it
	sep := "<|endoftext|>"
	left := strings.Repeat("a", 40)
	right := strings.Repeat("b", 20)
	corpus := []byte(left + sep + right)

	// the interior boundary must land exactly on the special token
	bounds, err := findChunkBoundaries(bytes.NewReader(corpus), int64(len(corpus)), 2, []byte(sep), 16)
	require.NoError(t, err)
	require.Len(t, bounds, 3)
	assert.Equal(t, int64(len(left)), bounds[1])

	// and both chunk layouts tokenize it as one atomic ID
	vocab := newBaseVocabulary([]string{sep})
	tok := newCorpusTokenizer([]string{sep}, vocab)

	var ids []int
	for i := 0; i+1 < len(bounds); i++ {
		ids = append(ids, tok.Tokenize(corpus[bounds[i]:bounds[i+1]])...)
	}

	specialCount := 0
	for _, id := range ids {
		if id == 256 {
			specialCount++
		}
	}
	assert.Equal(t, 1, specialCount)
	assert.Len(t, ids, len(left)+len(right)+1)
}

// failingReaderAt serves reads that end before failAt and errors on any read
// past it, so early reads (boundary search, first chunk) succeed while a
// later chunk read fails.
type failingReaderAt struct {
	data   []byte
	failAt int64
}

var errReadFailed = errors.New("read failed")

func (r *failingReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off+int64(len(p)) > r.failAt {
		return 0, errReadFailed
	}

	return bytes.NewReader(r.data).ReadAt(p, off)
}

func TestTrainWorkerReadFailureAbortsRun(t *testing.T) {
	sep := "<|endoftext|>"
	corpus := []byte(strings.Repeat("a", 40) + sep + strings.Repeat("b", 20))

	// boundary search windows and the first chunk stay below failAt; the
	// second chunk's read crosses it and must abort the whole run
	r := &failingReaderAt{data: corpus, failAt: 60}

	result, err := Train(context.Background(), r, int64(len(corpus)), Options{
		VocabSize:     300,
		SpecialTokens: []string{sep},
		NumWorkers:    2,
		ChunkWindow:   16,
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, errReadFailed)
	assert.Contains(t, err.Error(), "read chunk")
	assert.Nil(t, result)
}

func TestTrainRejectsEmptySpecialToken(t *testing.T) {
	_, err := Train(context.Background(), bytes.NewReader([]byte("abc")), 3, Options{
		VocabSize:     300,
		SpecialTokens: []string{"<|endoftext|>", ""},
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "special tokens must not be empty")
}

func TestTrainParallelWithoutSpecialTokens(t *testing.T) {
	_, err := Train(context.Background(), bytes.NewReader([]byte("abc")), 3, Options{
		VocabSize:  300,
		NumWorkers: 4,
	})

	assert.ErrorIs(t, err, ErrNoSeparator)
}

func TestTrainInvalidOptions(t *testing.T) {
	_, err := Train(context.Background(), bytes.NewReader([]byte("abc")), 3, Options{VocabSize: 0})
	assert.Error(t, err)

	_, err = Train(context.Background(), bytes.NewReader([]byte("abc")), 3, Options{VocabSize: 300, NumWorkers: -2})
	assert.Error(t, err)
}

func TestTrainMergeReplayRoundTrip(t *testing.T) {
	sep := "<|endoftext|>"
	corpus := []byte("banana bandana" + sep + "banana banana" + sep)

	opts := Options{VocabSize: 262, SpecialTokens: []string{sep}}
	result := trainBytes(t, corpus, opts)
	require.Len(t, result.Merges, 5)

	// replaying the recorded merges in order over a fresh tokenization
	// must land on the same final sequence length
	vocab := newBaseVocabulary(opts.SpecialTokens)
	ids := newCorpusTokenizer(opts.SpecialTokens, vocab).Tokenize(corpus)

	lookup := make(map[string]int, result.Vocab.Len())
	for id := range result.Vocab.Len() {
		if _, ok := lookup[string(result.Vocab.Bytes(id))]; !ok {
			lookup[string(result.Vocab.Bytes(id))] = id
		}
	}

	for _, m := range result.Merges {
		left, ok := lookup[string(m.Left)]
		require.True(t, ok)
		right, ok := lookup[string(m.Right)]
		require.True(t, ok)
		merged, ok := lookup[string(m.Left)+string(m.Right)]
		require.True(t, ok)

		ids = applyMerge(ids, pair{left, right}, merged)
	}

	assert.Equal(t, result.TokenCount, len(ids))
}

func TestTrainFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "corpus.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello hello hello"), 0o644))

	result, err := TrainFile(context.Background(), path, Options{VocabSize: 260})
	require.NoError(t, err)
	assert.Len(t, result.Merges, 4)
}

func TestTrainFileMissing(t *testing.T) {
	_, err := TrainFile(context.Background(), filepath.Join(t.TempDir(), "nope"), Options{VocabSize: 300})
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestVocabularyMapIsCopy(t *testing.T) {
	result := trainBytes(t, []byte("aaba"), Options{VocabSize: 257})

	m := result.Vocab.Map()
	require.Len(t, m, 257)
	assert.Equal(t, []byte("ba"), m[256])

	delete(m, 256)
	assert.Equal(t, []byte("ba"), result.Vocab.Bytes(256), "mutating the map must not affect the vocabulary")
}
