// Package monitor is the Bubble Tea renderer for the thought stream. It only
// reads snapshots; visibility changes are the one signal it sends back.
package monitor

import "thoughtstream/internal/domain"

// SnapshotMsg delivers a snapshot published by the engine.
type SnapshotMsg struct {
	Snapshot domain.Snapshot
}

// NoticeMsg shows a transient notice in the status bar. An empty Text clears it.
type NoticeMsg struct {
	Text string
}

// QuitMsg signals the program to exit.
type QuitMsg struct{}
