package domain

// Snapshot is the read-only view handed to renderers. Seq increases with every
// published snapshot; renderers ignore snapshots that are not newer than the
// last one applied. ScrollSeq increases whenever the core forces the view to
// the end (history applied, background backlog flushed).
type Snapshot struct {
	Seq           uint64   `json:"seq"`
	Lines         []string `json:"lines"`
	CursorVisible bool     `json:"cursor_visible"`
	LastMemory    *Memory  `json:"last_memory,omitempty"`
	NumRestarts   int      `json:"num_restarts"`
	Prompt        string   `json:"prompt"`
	IsLoading     bool     `json:"is_loading"`
	IsRestarting  bool     `json:"is_restarting"`
	IsProcessing  bool     `json:"is_processing"`
	Connected     bool     `json:"connected"`
	ScrollSeq     uint64   `json:"scroll_seq"`
}

// CompletedLines returns every line except the active (last) one.
func (s Snapshot) CompletedLines() []string {
	if len(s.Lines) == 0 {
		return nil
	}
	return s.Lines[:len(s.Lines)-1]
}

// ActiveLine returns the line currently receiving characters.
func (s Snapshot) ActiveLine() string {
	if len(s.Lines) == 0 {
		return ""
	}
	return s.Lines[len(s.Lines)-1]
}
