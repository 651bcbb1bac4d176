package video

import "time"

// frameRate counts frames inside a sliding window.
type frameRate struct {
	window time.Duration
	stamps []time.Time
}

func newFrameRate(window time.Duration) *frameRate {
	return &frameRate{window: window}
}

func (f *frameRate) add(now time.Time) {
	f.stamps = append(f.stamps, now)
}

// rate returns frames seen during (now-window, now].
func (f *frameRate) rate(now time.Time) int {
	cutoff := now.Add(-f.window)
	i := 0
	for i < len(f.stamps) && !f.stamps[i].After(cutoff) {
		i++
	}
	f.stamps = f.stamps[i:]
	return len(f.stamps)
}

func (f *frameRate) reset() {
	f.stamps = nil
}
