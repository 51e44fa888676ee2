// Package trainer derives a byte pair encoding vocabulary from a raw byte
// corpus: an ID to byte-sequence vocabulary plus the ordered merge rules a
// downstream tokenizer replays to reproduce the encoding.
package trainer

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/nlpforge/bpetrain/logutil"
)

// ErrNoSeparator is returned when parallel chunking is requested without a
// special token to serve as the chunk boundary separator.
var ErrNoSeparator = errors.New("parallel chunking requires at least one special token")

// Merge is one recorded merge rule: replace adjacent tokens whose byte
// values are (Left, Right) with their concatenation. Rules must be replayed
// in the recorded order.
type Merge struct {
	Left  []byte
	Right []byte
}

type Options struct {
	// VocabSize is the target vocabulary size. Training stops once the
	// vocabulary reaches it, or earlier if no mergeable pairs remain. A
	// target at or below the base vocabulary size yields no merges.
	VocabSize int

	// SpecialTokens are encoded as single atomic tokens, in order; the
	// first one doubles as the chunk boundary separator when NumWorkers
	// is greater than 1.
	SpecialTokens []string

	// NumWorkers is the tokenization parallelism degree. Defaults to 1,
	// which is observationally identical to any other value.
	NumWorkers int

	// ChunkWindow overrides the read window for the boundary search.
	ChunkWindow int

	Logger *slog.Logger
}

// Result is the in-memory handoff to downstream encoders.
type Result struct {
	Vocab  *Vocabulary
	Merges []Merge

	// TokenCount is the length of the token sequence after the final
	// merge, kept for reporting and round-trip verification.
	TokenCount int
}

// TrainFile opens path and trains on its contents.
func TrainFile(ctx context.Context, path string, opts Options) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open corpus: %w", err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat corpus: %w", err)
	}

	return Train(ctx, f, fi.Size(), opts)
}

// Train derives a BPE vocabulary from the first size bytes of r. The corpus
// is tokenized (in parallel when opts.NumWorkers > 1), then adjacent token
// pairs are merged greedily by frequency until the target vocabulary size
// is reached or no pairs remain.
func Train(ctx context.Context, r io.ReaderAt, size int64, opts Options) (*Result, error) {
	if opts.VocabSize < 1 {
		return nil, fmt.Errorf("vocab size must be positive, got %d", opts.VocabSize)
	}

	workers := cmp.Or(opts.NumWorkers, 1)
	if workers < 1 {
		return nil, fmt.Errorf("worker count must be positive, got %d", opts.NumWorkers)
	}

	if workers > 1 && len(opts.SpecialTokens) == 0 {
		return nil, ErrNoSeparator
	}

	for _, special := range opts.SpecialTokens {
		if special == "" {
			return nil, errors.New("special tokens must not be empty")
		}
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("run", uuid.New().String())

	vocab := newBaseVocabulary(opts.SpecialTokens)
	logger.Debug("built base vocabulary", "entries", vocab.Len(), "special_tokens", len(opts.SpecialTokens))

	ids, err := tokenizeCorpus(ctx, r, size, workers, opts, vocab, logger)
	if err != nil {
		return nil, err
	}

	merges := []Merge{}
	for vocab.Len() < opts.VocabSize {
		p, count, ok := selectPair(countPairs(ids), vocab)
		if !ok {
			logger.Debug("no mergeable pairs remain", "vocab", vocab.Len())
			break
		}

		left, right := vocab.Bytes(p.left), vocab.Bytes(p.right)
		merged := make([]byte, 0, len(left)+len(right))
		merged = append(append(merged, left...), right...)

		id := vocab.add(merged)
		ids = applyMerge(ids, p, id)
		merges = append(merges, Merge{Left: left, Right: right})

		logutil.Trace("merged pair", "id", id, "token", merged, "count", count, "sequence", len(ids))
	}

	logger.Debug("training complete", "vocab", vocab.Len(), "merges", len(merges), "tokens", len(ids))
	return &Result{Vocab: vocab, Merges: merges, TokenCount: len(ids)}, nil
}

// tokenizeCorpus produces the initial token sequence. With a single worker
// the corpus is tokenized in one pass. Otherwise it is split at separator
// occurrences and the chunks are tokenized concurrently; outputs are joined
// strictly in corpus order, and any worker failure aborts the whole run so
// the frequency statistics never reflect a partial corpus.
func tokenizeCorpus(ctx context.Context, r io.ReaderAt, size int64, workers int, opts Options, vocab *Vocabulary, logger *slog.Logger) ([]int, error) {
	tok := newCorpusTokenizer(opts.SpecialTokens, vocab)

	if workers == 1 {
		data, err := io.ReadAll(io.NewSectionReader(r, 0, size))
		if err != nil {
			return nil, fmt.Errorf("read corpus: %w", err)
		}

		return tok.Tokenize(data), nil
	}

	window := cmp.Or(opts.ChunkWindow, defaultChunkWindow)
	bounds, err := findChunkBoundaries(r, size, workers, []byte(opts.SpecialTokens[0]), window)
	if err != nil {
		return nil, err
	}

	chunks := make([][]int, len(bounds)-1)
	sem := semaphore.NewWeighted(int64(workers))

	g, ctx := errgroup.WithContext(ctx)
	for i := range chunks {
		g.Go(func() error {
			if err := sem.Acquire(ctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)

			start, end := bounds[i], bounds[i+1]
			data, err := io.ReadAll(io.NewSectionReader(r, start, end-start))
			if err != nil {
				return fmt.Errorf("read chunk %d [%d, %d): %w", i, start, end, err)
			}

			chunks[i] = tok.Tokenize(data)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var ids []int
	for _, chunk := range chunks {
		ids = append(ids, chunk...)
	}

	logger.Debug("tokenized corpus", "bytes", size, "chunks", len(chunks), "tokens", len(ids))
	return ids, nil
}
