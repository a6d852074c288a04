package generation

import (
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"inkflow-backend/internal/model"
)

// ProgressFunc receives one callback per applied delta, and one final
// complete callback per non-empty stream when the input ends.
type ProgressFunc func(index int, content string, complete bool, tokenRate, totalTokens int)

// streamBuffer accumulates one logical stream. Content is append-only for
// the lifetime of a run; only the owning Demux writes it.
type streamBuffer struct {
	content    strings.Builder
	complete   bool
	tokenCount int
}

// Demux routes decoded delta events to per-index buffers and tracks the
// aggregate token metrics for the run.
//
// Tokens are approximated as characters of applied delta text. The original
// UI used the same proxy; keeping it makes rate figures comparable. It is a
// display metric, not a billing-grade count.
type Demux struct {
	buffers     []streamBuffer
	totalTokens int
	startedAt   time.Time
	now         func() time.Time
	onProgress  ProgressFunc
}

func NewDemux(streamCount int, onProgress ProgressFunc) *Demux {
	d := &Demux{
		buffers:    make([]streamBuffer, streamCount),
		now:        time.Now,
		onProgress: onProgress,
	}
	d.startedAt = d.now()
	return d
}

// Seed pre-loads buffers with continuation contexts. Seeded text is part of
// the accumulated content but does not count toward token totals and fires
// no callbacks.
func (d *Demux) Seed(prefixes []string) {
	for i, p := range prefixes {
		if i >= len(d.buffers) {
			break
		}
		d.buffers[i].content.WriteString(p)
	}
}

// Apply appends every in-range delta carried by one event and fires the
// progress callback once per applied delta. Out-of-range indices are ignored.
func (d *Demux) Apply(ev model.CompletionChunk) {
	for _, choice := range ev.Choices {
		if choice.Index < 0 || choice.Index >= len(d.buffers) {
			continue
		}
		delta := choice.Delta.Content
		if delta == "" {
			continue
		}
		buf := &d.buffers[choice.Index]
		buf.content.WriteString(delta)

		n := utf8.RuneCountInString(delta)
		buf.tokenCount += n
		d.totalTokens += n

		d.onProgress(choice.Index, buf.content.String(), false, d.Rate(), d.totalTokens)
	}
}

// Finish marks the end of the input sequence: every non-empty buffer gets a
// final complete callback with the closing rate/total snapshot. Buffers that
// never received a delta are skipped.
func (d *Demux) Finish() {
	rate := d.Rate()
	for i := range d.buffers {
		buf := &d.buffers[i]
		if buf.content.Len() == 0 {
			continue
		}
		buf.complete = true
		d.onProgress(i, buf.content.String(), true, rate, d.totalTokens)
	}
}

// Rate is totalTokens / elapsedSeconds rounded to the nearest integer. Zero
// elapsed time yields zero.
func (d *Demux) Rate() int {
	elapsed := d.now().Sub(d.startedAt).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return int(math.Round(float64(d.totalTokens) / elapsed))
}

func (d *Demux) TotalTokens() int {
	return d.totalTokens
}

func (d *Demux) StreamCount() int {
	return len(d.buffers)
}

// Content returns the accumulated text for one stream.
func (d *Demux) Content(index int) string {
	if index < 0 || index >= len(d.buffers) {
		return ""
	}
	return d.buffers[index].content.String()
}
