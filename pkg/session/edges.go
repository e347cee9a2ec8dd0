package session

// edgeSet is an insertion-ordered set of graph edges. The value is true for
// edges included in session state and false for excluded ones.
type edgeSet struct {
	keys []any
	vals map[any]bool
}

func newEdgeSet() *edgeSet {
	return &edgeSet{vals: make(map[any]bool)}
}

func (s *edgeSet) get(k any) (included, ok bool) {
	included, ok = s.vals[k]
	return included, ok
}

func (s *edgeSet) set(k any, included bool) {
	if _, ok := s.vals[k]; !ok {
		s.keys = append(s.keys, k)
	}
	s.vals[k] = included
}

func (s *edgeSet) delete(k any) {
	if _, ok := s.vals[k]; !ok {
		return
	}
	delete(s.vals, k)
	for i, key := range s.keys {
		if key == k {
			s.keys = append(s.keys[:i], s.keys[i+1:]...)
			break
		}
	}
}

func (s *edgeSet) len() int { return len(s.keys) }

// list returns a snapshot of the keys, optionally only the included ones.
func (s *edgeSet) list(includedOnly bool) []any {
	out := make([]any, 0, len(s.keys))
	for _, k := range s.keys {
		if includedOnly && !s.vals[k] {
			continue
		}
		out = append(out, k)
	}
	return out
}
