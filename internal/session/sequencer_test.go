package session

import (
	"testing"

	"live-interpreter-service/internal/model"
)

func transcriptEvent(seq uint64) model.PipelineEvent {
	return model.PipelineEvent{
		Type:        model.EventTranslation,
		Translation: &model.TranslationResult{Seq: seq, Status: model.StatusSucceeded},
	}
}

func emittedSeqs(events []model.PipelineEvent) []uint64 {
	seqs := make([]uint64, 0, len(events))
	for _, ev := range events {
		seqs = append(seqs, ev.Translation.Seq)
	}
	return seqs
}

func TestSequencerInOrder(t *testing.T) {
	var emitted []model.PipelineEvent
	seq := NewSequencer(func(ev model.PipelineEvent) { emitted = append(emitted, ev) })

	for _, n := range []uint64{3, 7, 9} {
		seq.Expect(n)
	}
	for _, n := range []uint64{3, 7, 9} {
		seq.Complete(n, transcriptEvent(n))
	}

	got := emittedSeqs(emitted)
	want := []uint64{3, 7, 9}
	if len(got) != len(want) {
		t.Fatalf("emitted %d events, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("emitted order %v, want %v", got, want)
		}
	}
}

func TestSequencerReordersCompletions(t *testing.T) {
	var emitted []model.PipelineEvent
	seq := NewSequencer(func(ev model.PipelineEvent) { emitted = append(emitted, ev) })

	seq.Expect(1)
	seq.Expect(2)
	seq.Expect(3)

	seq.Complete(2, transcriptEvent(2))
	if len(emitted) != 0 {
		t.Fatalf("emitted %d events before head completed, want 0", len(emitted))
	}

	seq.Complete(1, transcriptEvent(1))
	if got := emittedSeqs(emitted); len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("after head completion emitted %v, want [1 2]", got)
	}

	seq.Complete(3, transcriptEvent(3))
	if got := emittedSeqs(emitted); len(got) != 3 || got[2] != 3 {
		t.Fatalf("after tail completion emitted %v, want [1 2 3]", got)
	}
}

func TestSequencerFailedResultHoldsSlot(t *testing.T) {
	var emitted []model.PipelineEvent
	seq := NewSequencer(func(ev model.PipelineEvent) { emitted = append(emitted, ev) })

	seq.Expect(1)
	seq.Expect(2)

	// The later segment succeeds first but must wait for the failed head.
	seq.Complete(2, transcriptEvent(2))
	failed := model.PipelineEvent{
		Type:        model.EventTranslation,
		Translation: &model.TranslationResult{Seq: 1, Status: model.StatusFailed, Error: "boom"},
	}
	seq.Complete(1, failed)

	got := emittedSeqs(emitted)
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("emitted %v, want failed seq 1 first then 2", got)
	}
	if emitted[0].Translation.Status != model.StatusFailed {
		t.Fatalf("head event status = %s, want failed", emitted[0].Translation.Status)
	}
}

func TestSequencerOutstanding(t *testing.T) {
	seq := NewSequencer(func(model.PipelineEvent) {})

	seq.Expect(1)
	seq.Expect(2)
	if got := seq.Outstanding(); got != 2 {
		t.Fatalf("Outstanding = %d, want 2", got)
	}
	seq.Complete(1, transcriptEvent(1))
	if got := seq.Outstanding(); got != 1 {
		t.Fatalf("Outstanding after one completion = %d, want 1", got)
	}
	seq.Complete(2, transcriptEvent(2))
	if got := seq.Outstanding(); got != 0 {
		t.Fatalf("Outstanding after all completions = %d, want 0", got)
	}
}
