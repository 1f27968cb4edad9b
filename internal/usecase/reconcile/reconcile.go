// Package reconcile turns validated frames into render state: a full rebuild
// for history replays and a deduplicated delta for live chunks.
package reconcile

import "time"

// Defaults for live overlap detection.
const (
	DefaultMinOverlap      = 10
	DefaultDuplicateWindow = 750 * time.Millisecond
	DefaultBacklogCap      = 5000
	DefaultBacklogKeep     = 2000
)

// Options tunes the live heuristics. Zero fields take the defaults.
type Options struct {
	MinOverlap      int
	DuplicateWindow time.Duration
	BacklogCap      int
	BacklogKeep     int
}

func (o Options) withDefaults() Options {
	if o.MinOverlap <= 0 {
		o.MinOverlap = DefaultMinOverlap
	}
	if o.DuplicateWindow <= 0 {
		o.DuplicateWindow = DefaultDuplicateWindow
	}
	if o.BacklogCap <= 0 {
		o.BacklogCap = DefaultBacklogCap
	}
	if o.BacklogKeep <= 0 || o.BacklogKeep >= o.BacklogCap {
		o.BacklogKeep = min(DefaultBacklogKeep, o.BacklogCap/2)
	}
	return o
}

// Reconciler tracks the previous live chunk and a bounded backlog of
// reconciled text. It is not safe for concurrent use; the engine calls it
// from its executor only.
type Reconciler struct {
	opts    Options
	now     func() time.Time
	backlog []rune
	prev    string
	prevAt  time.Time
	hasPrev bool
}

// New creates a Reconciler. now supplies arrival times for duplicate detection.
func New(opts Options, now func() time.Time) *Reconciler {
	if now == nil {
		now = time.Now
	}
	return &Reconciler{opts: opts.withDefaults(), now: now}
}

// Reset clears the backlog and the previous-chunk memory.
func (r *Reconciler) Reset() {
	r.backlog = r.backlog[:0]
	r.prev = ""
	r.prevAt = time.Time{}
	r.hasPrev = false
}

// Backlog returns the recently reconciled live text.
func (r *Reconciler) Backlog() string {
	return string(r.backlog)
}

// Live reconciles one raw live chunk. It returns the new content to queue for
// animation and false when there is nothing to queue.
//
// Overlap is only ever measured against the immediately preceding chunk. An
// exact repeat of the overlapped region with nothing extra is passed through
// unchanged, and overlaps shorter than MinOverlap are never trimmed.
func (r *Reconciler) Live(text string) (string, bool) {
	if text == "" {
		return "", false
	}

	now := r.now()
	if r.hasPrev && text == r.prev && now.Sub(r.prevAt) < r.opts.DuplicateWindow {
		return "", false
	}

	content := text
	if r.hasPrev {
		if k := Overlap(r.prev, text, r.opts.MinOverlap); k > 0 {
			runes := []rune(text)
			if len(runes) > k {
				content = string(runes[k:])
			}
		}
	}

	r.appendBacklog(content)
	r.prev = text
	r.prevAt = now
	r.hasPrev = true

	if content == "" {
		return "", false
	}
	return content, true
}

func (r *Reconciler) appendBacklog(s string) {
	r.backlog = append(r.backlog, []rune(s)...)
	if len(r.backlog) > r.opts.BacklogCap {
		keep := r.backlog[len(r.backlog)-r.opts.BacklogKeep:]
		r.backlog = append(r.backlog[:0], keep...)
	}
}

// Overlap returns the largest k, minOverlap <= k <= min(len(prev), len(next))
// in characters, such that the last k characters of prev equal the first k
// characters of next. It returns 0 when no such k exists.
func Overlap(prev, next string, minOverlap int) int {
	p := []rune(prev)
	n := []rune(next)
	upper := min(len(p), len(n))
	for k := upper; k >= minOverlap && k > 0; k-- {
		if equalRunes(p[len(p)-k:], n[:k]) {
			return k
		}
	}
	return 0
}

func equalRunes(a, b []rune) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
