package usecase

import (
	"testing"

	"whisprly/internal/ports"
)

func TestTranscriptAggregatorUsesFinalsAndLastSpokenFallback(t *testing.T) {
	t.Parallel()

	agg := newTranscriptAggregator()
	agg.Add(ports.TranscriptEvent{Kind: ports.TranscriptKindPartial, Text: "hello"})
	agg.Add(ports.TranscriptEvent{Kind: ports.TranscriptKindFinal, Text: "hello world"})
	agg.Add(ports.TranscriptEvent{Kind: ports.TranscriptKindPartial, Text: "hello world again"})

	if got := agg.Raw(); got != "hello world hello world again" {
		t.Fatalf("unexpected transcript: %q", got)
	}
}

func TestTranscriptAggregatorPartialOnly(t *testing.T) {
	t.Parallel()

	agg := newTranscriptAggregator()
	agg.Add(ports.TranscriptEvent{Kind: ports.TranscriptKindPartial, Text: "draft"})
	if got := agg.Raw(); got != "draft" {
		t.Fatalf("expected partial fallback, got %q", got)
	}
}

func TestTranscriptAggregatorIgnoresEmpty(t *testing.T) {
	t.Parallel()

	agg := newTranscriptAggregator()
	agg.Add(ports.TranscriptEvent{Kind: ports.TranscriptKindPartial, Text: "   "})
	if got := agg.Raw(); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
}
