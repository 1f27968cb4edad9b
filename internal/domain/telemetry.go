// Package domain holds the wire types, snapshots, events and error sentinels
// shared by every layer of thoughtstream.
package domain

import "strings"

// EnvelopeType tags a frame as a full history replay or a live increment.
type EnvelopeType string

const (
	EnvelopeHistory EnvelopeType = "history"
	EnvelopeLive    EnvelopeType = "live"
)

// Memory is a point-in-time memory snapshot reported by the server.
type Memory struct {
	AvailableMB float64 `json:"available_mb"`
	PercentUsed float64 `json:"percent_used"`
	TotalMB     float64 `json:"total_mb"`
}

// Status carries lifecycle signals. A non-nil IsRestarting marks a transition;
// NumRestarts is absolute and always authoritative when present.
type Status struct {
	IsRestarting *bool `json:"is_restarting,omitempty"`
	NumRestarts  *int  `json:"num_restarts,omitempty"`
}

// Restarting reports whether the status explicitly signals a restart.
func (s *Status) Restarting() bool {
	return s != nil && s.IsRestarting != nil && *s.IsRestarting
}

// Settled reports whether the status explicitly signals is_restarting == false.
func (s *Status) Settled() bool {
	return s != nil && s.IsRestarting != nil && !*s.IsRestarting
}

// TelemetryMessage is one unit of the feed. Text may be empty.
type TelemetryMessage struct {
	Text      string   `json:"text"`
	Memory    *Memory  `json:"memory,omitempty"`
	Status    *Status  `json:"status,omitempty"`
	Prompt    *string  `json:"prompt,omitempty"`
	Timestamp *float64 `json:"timestamp,omitempty"`
}

// IsBlank reports whether the message text is empty or whitespace only.
func (m TelemetryMessage) IsBlank() bool {
	return strings.TrimSpace(m.Text) == ""
}

// Envelope is one wire frame.
type Envelope struct {
	Type     EnvelopeType       `json:"type,omitempty"`
	Messages []TelemetryMessage `json:"messages"`
}

// Kind returns the envelope type, treating an absent tag as live.
func (e Envelope) Kind() EnvelopeType {
	if e.Type == "" {
		return EnvelopeLive
	}
	return e.Type
}

// NormalizeLineBreaks folds \r\n and lone \r into \n.
func NormalizeLineBreaks(s string) string {
	if !strings.Contains(s, "\r") {
		return s
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
