package generation

import (
	"testing"
	"time"

	"inkflow-backend/internal/model"
)

type progressCall struct {
	index    int
	content  string
	complete bool
	rate     int
	total    int
}

func chunkFor(pairs ...model.CompletionChoice) model.CompletionChunk {
	return model.CompletionChunk{Object: "text.completion.chunk", Choices: pairs}
}

func delta(index int, text string) model.CompletionChoice {
	return model.CompletionChoice{Index: index, Delta: model.CompletionDelta{Content: text}}
}

func TestDemuxAccumulatesPerIndexInArrivalOrder(t *testing.T) {
	var calls []progressCall
	d := NewDemux(3, func(index int, content string, complete bool, rate, total int) {
		calls = append(calls, progressCall{index, content, complete, rate, total})
	})

	d.Apply(chunkFor(delta(0, "ab")))
	d.Apply(chunkFor(delta(1, "cd")))
	d.Apply(chunkFor(delta(0, "c")))
	d.Finish()

	if got := d.Content(0); got != "abc" {
		t.Fatalf("index 0: expected %q, got %q", "abc", got)
	}
	if got := d.Content(1); got != "cd" {
		t.Fatalf("index 1: expected %q, got %q", "cd", got)
	}
	if got := d.Content(2); got != "" {
		t.Fatalf("index 2: expected empty, got %q", got)
	}

	// One callback per delta plus one final per non-empty buffer; the empty
	// third stream gets none.
	if len(calls) != 5 {
		t.Fatalf("expected 5 callbacks, got %d: %#v", len(calls), calls)
	}
	for _, call := range calls {
		if call.index == 2 {
			t.Fatalf("empty stream received a callback: %#v", call)
		}
	}
	finals := 0
	for _, call := range calls {
		if call.complete {
			finals++
			if call.total != 5 {
				t.Fatalf("final callback carries total %d, expected 5", call.total)
			}
		}
	}
	if finals != 2 {
		t.Fatalf("expected 2 final callbacks, got %d", finals)
	}
}

func TestDemuxIgnoresOutOfRangeIndices(t *testing.T) {
	calls := 0
	d := NewDemux(2, func(int, string, bool, int, int) { calls++ })

	d.Apply(chunkFor(delta(-1, "x"), delta(2, "y"), delta(5, "z")))

	if calls != 0 {
		t.Fatalf("expected no callbacks for out-of-range indices, got %d", calls)
	}
	if d.TotalTokens() != 0 {
		t.Fatalf("expected no tokens counted, got %d", d.TotalTokens())
	}
}

func TestDemuxRateIsZeroAtZeroElapsed(t *testing.T) {
	d := NewDemux(1, func(int, string, bool, int, int) {})

	frozen := time.Now()
	d.now = func() time.Time { return frozen }
	d.startedAt = frozen

	d.Apply(chunkFor(delta(0, "hello")))

	if rate := d.Rate(); rate != 0 {
		t.Fatalf("expected rate 0 at zero elapsed time, got %d", rate)
	}
	if d.TotalTokens() != 5 {
		t.Fatalf("expected 5 tokens, got %d", d.TotalTokens())
	}
}

func TestDemuxRateRoundsToNearest(t *testing.T) {
	d := NewDemux(1, func(int, string, bool, int, int) {})

	start := time.Now()
	d.startedAt = start
	d.now = func() time.Time { return start.Add(2 * time.Second) }

	d.Apply(chunkFor(delta(0, "abc")))

	// 3 tokens over 2 seconds rounds to 2.
	if rate := d.Rate(); rate != 2 {
		t.Fatalf("expected rate 2, got %d", rate)
	}
}

func TestDemuxSeedIsContentButNotTokens(t *testing.T) {
	var lastContent string
	d := NewDemux(2, func(index int, content string, complete bool, rate, total int) {
		if index == 0 {
			lastContent = content
		}
	})

	d.Seed([]string{"foo\n\n", "bar\n\n"})
	if d.TotalTokens() != 0 {
		t.Fatalf("seed text must not count as tokens, got %d", d.TotalTokens())
	}

	d.Apply(chunkFor(delta(0, "baz")))
	if lastContent != "foo\n\nbaz" {
		t.Fatalf("expected seeded prefix in accumulated content, got %q", lastContent)
	}
	if d.TotalTokens() != 3 {
		t.Fatalf("expected 3 tokens from the delta alone, got %d", d.TotalTokens())
	}
}
