package ledger

import "sync/atomic"

type IDSource interface {
	Next() uint64
}

// Sequence hands out 1, 2, 3, ... and is safe for concurrent use. A single
// Sequence shared by several ledgers yields ids unique across all of them.
type Sequence struct {
	n atomic.Uint64
}

func (s *Sequence) Next() uint64 {
	return s.n.Add(1)
}

func (s *Sequence) Last() uint64 {
	return s.n.Load()
}
