package trainer

import "bytes"

type specialToken struct {
	bytes []byte
	id    int
}

// corpusTokenizer converts raw chunks into token ID sequences. It holds no
// mutable state after construction, so one instance is shared safely across
// parallel chunk workers.
type corpusTokenizer struct {
	specials []specialToken
}

// newCorpusTokenizer resolves the special tokens against a snapshot of the
// vocabulary. Specials keep their supplied order; at overlapping positions
// the earlier token wins.
func newCorpusTokenizer(specials []string, vocab *Vocabulary) *corpusTokenizer {
	lookup := vocab.reverse()

	t := &corpusTokenizer{}
	for _, special := range specials {
		// an empty special would match at every position and stall the scan
		if special == "" {
			continue
		}

		if id, ok := lookup[special]; ok {
			t.specials = append(t.specials, specialToken{bytes: []byte(special), id: id})
		}
	}

	return t
}

// Tokenize scans data left to right, emitting each special token as a single
// atomic ID and falling back to the single-byte token otherwise. Byte IDs
// are the byte values themselves; IDs 0-255 map bijectively to bytes.
func (t *corpusTokenizer) Tokenize(data []byte) []int {
	ids := make([]int, 0, len(data))
	for i := 0; i < len(data); {
		if st, ok := t.match(data[i:]); ok {
			ids = append(ids, st.id)
			i += len(st.bytes)
			continue
		}

		ids = append(ids, int(data[i]))
		i++
	}

	return ids
}

func (t *corpusTokenizer) match(rest []byte) (specialToken, bool) {
	for _, st := range t.specials {
		if bytes.HasPrefix(rest, st.bytes) {
			return st, true
		}
	}

	return specialToken{}, false
}
