package sse

import (
	"testing"
)

func TestDecoderParsesCompleteLine(t *testing.T) {
	d := NewDecoder()
	events := d.Feed([]byte("data: {\"object\":\"text.completion.chunk\",\"choices\":[{\"index\":0,\"delta\":{\"content\":\"hi\"}}]}\n"))
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if len(events[0].Choices) != 1 || events[0].Choices[0].Delta.Content != "hi" {
		t.Fatalf("unexpected event: %#v", events[0])
	}
}

func TestDecoderCarriesPartialLineAcrossChunks(t *testing.T) {
	d := NewDecoder()

	first := d.Feed([]byte("data: {\"choices\":[{\"index\":1,\"del"))
	if len(first) != 0 {
		t.Fatalf("expected no events from a partial line, got %d", len(first))
	}

	second := d.Feed([]byte("ta\":{\"content\":\"ab\"}}]}\ndata: "))
	if len(second) != 1 {
		t.Fatalf("expected 1 event after the line completed, got %d", len(second))
	}
	if second[0].Choices[0].Index != 1 || second[0].Choices[0].Delta.Content != "ab" {
		t.Fatalf("unexpected event: %#v", second[0])
	}

	third := d.Feed([]byte("{\"choices\":[{\"index\":0,\"delta\":{\"content\":\"c\"}}]}\n"))
	if len(third) != 1 || third[0].Choices[0].Delta.Content != "c" {
		t.Fatalf("expected carried prefix to complete the second frame, got %#v", third)
	}
}

func TestDecoderIgnoresDoneAndNonDataLines(t *testing.T) {
	d := NewDecoder()
	events := d.Feed([]byte("\n: comment\nevent: message\ndata: [DONE]\ndata:\n"))
	if len(events) != 0 {
		t.Fatalf("expected no events, got %d", len(events))
	}
}

func TestDecoderSkipsMalformedLine(t *testing.T) {
	d := NewDecoder()
	input := "data: {not json}\ndata: {\"choices\":[{\"index\":0,\"delta\":{\"content\":\"ok\"}}]}\n"
	events := d.Feed([]byte(input))
	if len(events) != 1 {
		t.Fatalf("expected the malformed line skipped and the valid one kept, got %d events", len(events))
	}
	if events[0].Choices[0].Delta.Content != "ok" {
		t.Fatalf("unexpected event: %#v", events[0])
	}
}

func TestDecoderFlushDecodesUnterminatedTail(t *testing.T) {
	d := NewDecoder()
	if events := d.Feed([]byte("data: {\"choices\":[{\"index\":0,\"delta\":{\"content\":\"tail\"}}]}")); len(events) != 0 {
		t.Fatalf("expected no events before flush, got %d", len(events))
	}
	events := d.Flush()
	if len(events) != 1 || events[0].Choices[0].Delta.Content != "tail" {
		t.Fatalf("expected flush to decode the tail, got %#v", events)
	}
	if again := d.Flush(); len(again) != 0 {
		t.Fatalf("expected second flush to be empty, got %#v", again)
	}
}
