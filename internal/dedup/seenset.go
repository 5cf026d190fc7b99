package dedup

// SeenSet is a grow-only membership set of fingerprints, scoped to one
// scanning session. No eviction, no TTL; it dies with the tracker that owns
// it. Not safe for concurrent use: each tracker owns its set exclusively.
type SeenSet struct {
	seen map[Fingerprint]struct{}
}

func NewSeenSet() *SeenSet {
	return &SeenSet{seen: make(map[Fingerprint]struct{})}
}

func (s *SeenSet) Contains(fp Fingerprint) bool {
	_, ok := s.seen[fp]
	return ok
}

func (s *SeenSet) Insert(fp Fingerprint) {
	s.seen[fp] = struct{}{}
}

// Len is used by logging only; correctness never depends on it.
func (s *SeenSet) Len() int {
	return len(s.seen)
}
