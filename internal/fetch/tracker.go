package fetch

// Tracker turns a byte stream into coarse progress callbacks: it reports at
// most once per step-percent boundary crossed, never moving backwards.
// Without a known total it only counts bytes.
type Tracker struct {
	done     int64
	total    int64
	step     float64
	lastStep int64
	report   ProgressFunc
}

// NewTracker creates a tracker. report may be nil.
func NewTracker(total int64, stepPercent float64, report ProgressFunc) *Tracker {
	if stepPercent <= 0 {
		stepPercent = DefaultStepPercent
	}
	return &Tracker{total: total, step: stepPercent, report: report}
}

// Advance records n more bytes.
func (t *Tracker) Advance(n int64) {
	if n <= 0 {
		return
	}
	t.done += n
	if t.total <= 0 || t.report == nil {
		return
	}
	percent := float64(t.done) / float64(t.total) * 100
	current := int64(percent / t.step)
	if current <= t.lastStep {
		return
	}
	t.lastStep = current
	t.report(t.done, t.total)
}

// Done returns the bytes recorded so far.
func (t *Tracker) Done() int64 {
	return t.done
}

// Percent returns the completion percentage, or -1 when the total is unknown.
func (t *Tracker) Percent() float64 {
	if t.total <= 0 {
		return -1
	}
	return float64(t.done) / float64(t.total) * 100
}
