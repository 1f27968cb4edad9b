package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thoughtstream/internal/domain"
	"thoughtstream/internal/infra/clock"
	"thoughtstream/internal/usecase/reconcile"
)

func newTestMachine() (*Machine, *clock.Manual, *int) {
	c := clock.NewManual(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	changes := 0
	m := New(clock.NewInline(c), Options{DefaultPrompt: "default"}, func() { changes++ })
	return m, c, &changes
}

func boolPtr(b bool) *bool { return &b }
func intPtr(n int) *int    { return &n }

func TestInitialPhaseIsLoading(t *testing.T) {
	m, _, _ := newTestMachine()
	assert.Equal(t, PhaseLoading, m.Phase())
	assert.Equal(t, "default", m.Prompt())
	assert.Nil(t, m.Memory())
}

func TestHideLoadingRespectsMinimumDuration(t *testing.T) {
	m, c, _ := newTestMachine()
	m.ShowLoading()
	c.Advance(10 * time.Millisecond)
	m.ApplyHistory(reconcile.History{Lines: []string{""}})

	assert.True(t, m.Loading(), "indicator must stay visible before 1s")
	c.Advance(980 * time.Millisecond)
	assert.True(t, m.Loading())
	c.Advance(10 * time.Millisecond)
	assert.False(t, m.Loading())
	assert.Equal(t, PhaseActive, m.Phase())
}

func TestHideLoadingAfterMinimumIsImmediate(t *testing.T) {
	m, c, _ := newTestMachine()
	m.ShowLoading()
	c.Advance(2 * time.Second)
	m.HideLoading()
	assert.False(t, m.Loading())
}

func TestShowLoadingCancelsDeferredHide(t *testing.T) {
	m, c, _ := newTestMachine()
	m.ShowLoading()
	m.HideLoading()
	c.Advance(500 * time.Millisecond)
	m.ShowLoading()
	c.Advance(600 * time.Millisecond)
	assert.True(t, m.Loading(), "deferred hide from the earlier show must not fire")
	c.Advance(time.Second)
	assert.True(t, m.Loading(), "no hide was requested for the second show")
}

func TestRepeatedHideReplacesTimer(t *testing.T) {
	m, c, _ := newTestMachine()
	m.ShowLoading()
	m.HideLoading()
	c.Advance(300 * time.Millisecond)
	m.HideLoading()
	assert.Equal(t, 1, c.Pending())
	c.Advance(700 * time.Millisecond)
	assert.False(t, m.Loading())
}

func TestRestartResetsState(t *testing.T) {
	m, c, _ := newTestMachine()
	m.ShowLoading()
	m.ApplyHistory(reconcile.History{Memory: &domain.Memory{TotalMB: 1}, Prompt: strPtr("p")})
	c.Advance(2 * time.Second)
	genBefore := m.Generation()

	out := m.Observe(domain.TelemetryMessage{
		Text:   "rebooting now",
		Status: &domain.Status{IsRestarting: boolPtr(true), NumRestarts: intPtr(7)},
	})

	assert.True(t, out.Restarted)
	assert.False(t, out.Silent)
	assert.Greater(t, m.Generation(), genBefore)
	assert.True(t, m.Restarting())
	assert.True(t, m.AwaitingPostRestart())
	assert.False(t, m.HistoryLoaded())
	assert.True(t, m.Loading())
	assert.Nil(t, m.Memory())
	assert.Equal(t, "default", m.Prompt())
	assert.Equal(t, 7, m.NumRestarts())
	assert.Equal(t, PhaseRestarting, m.Phase())
}

func TestSilentRestartSkipsRemainingFields(t *testing.T) {
	m, _, _ := newTestMachine()
	out := m.Observe(domain.TelemetryMessage{
		Text:   "  \n",
		Status: &domain.Status{IsRestarting: boolPtr(true), NumRestarts: intPtr(2)},
		Memory: &domain.Memory{TotalMB: 64},
		Prompt: strPtr("ignored"),
	})
	assert.True(t, out.Silent)
	assert.Equal(t, 2, m.NumRestarts())
	assert.Nil(t, m.Memory())
	assert.Equal(t, "default", m.Prompt())
}

func TestSettledStatusReleasesLatch(t *testing.T) {
	m, c, _ := newTestMachine()
	m.Observe(domain.TelemetryMessage{Status: &domain.Status{IsRestarting: boolPtr(true)}})
	require.True(t, m.AwaitingPostRestart())

	c.Advance(400 * time.Millisecond)
	out := m.Observe(domain.TelemetryMessage{Text: "back", Status: &domain.Status{IsRestarting: boolPtr(false)}})
	assert.True(t, out.Settled)
	assert.False(t, m.AwaitingPostRestart())
	assert.False(t, m.Restarting())
	assert.True(t, m.Loading(), "hide is deferred to the 1s minimum")
	c.Advance(600 * time.Millisecond)
	assert.False(t, m.Loading())
}

func TestNoteQueuedReleasesLatchOnce(t *testing.T) {
	m, c, _ := newTestMachine()
	m.Observe(domain.TelemetryMessage{Status: &domain.Status{IsRestarting: boolPtr(true)}})
	m.NoteQueued()
	assert.False(t, m.AwaitingPostRestart())
	c.Advance(time.Second)
	assert.False(t, m.Loading())

	m.ShowLoading()
	m.NoteQueued()
	assert.True(t, m.Loading(), "latch already released; queueing must not hide")
}

func TestNumRestartsAppliedInAnyPhase(t *testing.T) {
	m, _, _ := newTestMachine()
	m.Observe(domain.TelemetryMessage{Text: "x", Status: &domain.Status{NumRestarts: intPtr(11)}})
	assert.Equal(t, 11, m.NumRestarts())
	assert.Equal(t, PhaseLoading, m.Phase())
}

func TestApplyHistoryEndsRestartAndBumpsGeneration(t *testing.T) {
	m, _, _ := newTestMachine()
	m.Observe(domain.TelemetryMessage{Status: &domain.Status{IsRestarting: boolPtr(true)}})
	gen := m.Generation()
	m.ApplyHistory(reconcile.History{NumRestarts: intPtr(3)})
	assert.False(t, m.Restarting())
	assert.True(t, m.HistoryLoaded())
	assert.Equal(t, 3, m.NumRestarts())
	assert.Greater(t, m.Generation(), gen)
}

func TestObserveNotifies(t *testing.T) {
	m, _, changes := newTestMachine()
	before := *changes
	m.Observe(domain.TelemetryMessage{Text: "x", Memory: &domain.Memory{PercentUsed: 12}})
	assert.Greater(t, *changes, before)
	assert.Equal(t, 12.0, m.Memory().PercentUsed)
}

func strPtr(s string) *string { return &s }
