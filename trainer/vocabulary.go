package trainer

// Vocabulary maps dense token IDs, starting at 0, to the byte sequences they
// stand for. IDs 0-255 are the single bytes, followed by one entry per
// special token in the order supplied at training start, followed by one
// entry per merge in the order merges were performed. Entries are never
// removed or reassigned.
type Vocabulary struct {
	entries [][]byte
}

func newBaseVocabulary(specials []string) *Vocabulary {
	v := &Vocabulary{entries: make([][]byte, 0, 256+len(specials))}
	for i := range 256 {
		v.entries = append(v.entries, []byte{byte(i)})
	}

	for _, special := range specials {
		v.entries = append(v.entries, []byte(special))
	}

	return v
}

func (v *Vocabulary) Len() int {
	return len(v.entries)
}

// Bytes returns the byte sequence for id, or nil if id is out of range.
// Callers must not mutate the returned slice.
func (v *Vocabulary) Bytes(id int) []byte {
	if id < 0 || id >= len(v.entries) {
		return nil
	}

	return v.entries[id]
}

// Map returns a copy of the vocabulary as an ID to bytes mapping, the
// handoff shape downstream tokenizers consume.
func (v *Vocabulary) Map() map[int][]byte {
	m := make(map[int][]byte, len(v.entries))
	for id, b := range v.entries {
		m[id] = b
	}

	return m
}

func (v *Vocabulary) add(b []byte) int {
	v.entries = append(v.entries, b)
	return len(v.entries) - 1
}

// reverse builds a bytes-to-ID lookup from the current entries. The snapshot
// is taken once per tokenization pass and never mutated mid-pass. When two
// entries share a byte sequence the lowest ID wins, so a duplicated special
// token always resolves to its first-supplied ID.
func (v *Vocabulary) reverse() map[string]int {
	m := make(map[string]int, len(v.entries))
	for id, b := range v.entries {
		if _, ok := m[string(b)]; !ok {
			m[string(b)] = id
		}
	}

	return m
}
