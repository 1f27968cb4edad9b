package reconcile

import (
	"strings"

	"thoughtstream/internal/domain"
)

// History is the result of replaying a full message history.
type History struct {
	Lines       []string
	Memory      *domain.Memory
	Prompt      *string
	NumRestarts *int
}

// Rebuild deterministically reconstructs RenderLines from an ordered history
// in a single pass. Telemetry fields are last-write-wins across the whole
// history, not per line.
func Rebuild(messages []domain.TelemetryMessage) History {
	var h History
	var active strings.Builder
	lines := make([]string, 0, len(messages)+1)

	for _, msg := range messages {
		for _, ch := range domain.NormalizeLineBreaks(msg.Text) {
			if ch == '\n' {
				lines = append(lines, active.String())
				active.Reset()
				continue
			}
			active.WriteRune(ch)
		}
		if msg.Memory != nil {
			mem := *msg.Memory
			h.Memory = &mem
		}
		if msg.Prompt != nil {
			prompt := *msg.Prompt
			h.Prompt = &prompt
		}
		if msg.Status != nil && msg.Status.NumRestarts != nil {
			n := *msg.Status.NumRestarts
			h.NumRestarts = &n
		}
	}

	h.Lines = append(lines, active.String())
	return h
}
