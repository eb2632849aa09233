package usecase

import (
	"errors"
	"strings"

	"whisprly/internal/domain"
)

const previewLength = 100

// sessionJob is one capture handed from Stop to its worker.
type sessionJob struct {
	id    string
	audio []byte
	tone  string
	done  chan struct{}
}

func pipelineFailureMessage(err error) string {
	var pe *domain.PipelineError
	if !errors.As(err, &pe) {
		return "Error: " + truncate(err.Error(), previewLength)
	}

	switch pe.Kind {
	case domain.PipelineUnreachable:
		return "Server unreachable. Is the dictation server running?"
	case domain.PipelineTimedOut:
		return "Timeout: the server did not respond in time."
	case domain.PipelineRejected:
		detail := pe.Detail
		if detail == "" {
			detail = "Unknown error"
		}
		return "Server error: " + detail
	default:
		detail := pe.Detail
		if detail == "" {
			detail = pe.Error()
		}
		return "Error: " + truncate(detail, previewLength)
	}
}

func deliveredMessage(text string) string {
	preview := truncate(text, previewLength)
	if preview != text {
		preview += "..."
	}
	return "Pasted!\n" + preview
}

// truncate shortens s to at most n runes.
func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
