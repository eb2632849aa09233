package usecase

import (
	"fmt"
	"strings"

	"whisprly/internal/domain"
	"whisprly/internal/ports"
)

// transcriptFinalizer turns a raw transcript into the delivered text.
type transcriptFinalizer struct {
	rules ports.RulesEngine
}

func newTranscriptFinalizer(rules ports.RulesEngine) transcriptFinalizer {
	return transcriptFinalizer{rules: rules}
}

func (f transcriptFinalizer) Finalize(raw string) (domain.PipelineResult, error) {
	raw = strings.TrimSpace(raw)
	result := domain.PipelineResult{RawText: raw, CleanedText: raw}
	if f.rules == nil || raw == "" {
		return result, nil
	}

	cleaned, err := f.rules.Apply(raw)
	if err != nil {
		return domain.PipelineResult{}, fmt.Errorf("failed to apply cleanup rules: %w", err)
	}
	result.CleanedText = strings.TrimSpace(cleaned)
	return result, nil
}
