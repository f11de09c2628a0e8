package session

import (
	"sync"

	"live-interpreter-service/internal/model"
)

// Sequencer restores transcript-segment order for results that complete out
// of order. Expect is called once per segment, in segment order, as segments
// are finalized; Complete buffers a finished result and releases every
// head-of-line result whose predecessors have all been delivered. Failed
// results are sequenced like any other: a failure placeholder for segment N
// is still delivered before segment N+1's result.
type Sequencer struct {
	mu      sync.Mutex
	pending []uint64
	ready   map[uint64]model.PipelineEvent
	emit    func(model.PipelineEvent)
}

// NewSequencer creates a sequencer delivering released events to emit.
func NewSequencer(emit func(model.PipelineEvent)) *Sequencer {
	return &Sequencer{
		ready: make(map[uint64]model.PipelineEvent),
		emit:  emit,
	}
}

// Expect registers the next segment in delivery order.
func (s *Sequencer) Expect(seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, seq)
}

// Complete records the result for a segment and releases any results that
// are now at the head of the line, in order.
func (s *Sequencer) Complete(seq uint64, ev model.PipelineEvent) {
	s.mu.Lock()
	s.ready[seq] = ev
	released := s.releaseLocked()
	s.mu.Unlock()

	for _, ev := range released {
		s.emit(ev)
	}
}

// releaseLocked pops every head-of-line result that is ready.
func (s *Sequencer) releaseLocked() []model.PipelineEvent {
	var out []model.PipelineEvent
	for len(s.pending) > 0 {
		head := s.pending[0]
		ev, ok := s.ready[head]
		if !ok {
			break
		}
		delete(s.ready, head)
		s.pending = s.pending[1:]
		out = append(out, ev)
	}
	return out
}

// Outstanding reports how many expected segments have not been delivered.
func (s *Sequencer) Outstanding() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}
