package collector

import "time"

// schedule decides, on every loop wake-up, which streams are due and how
// long the loop may sleep afterwards. Elapsed time is always recomputed
// from the clock rather than carried over from the previous timeout, so
// spurious and early wake-ups only cost an extra decision, never a skewed
// cadence.
type schedule struct {
	historyPeriod time.Duration
	profilePeriod time.Duration
	historyLast   time.Time
	profileLast   time.Time
}

func newSchedule(historyPeriod, profilePeriod time.Duration, now time.Time) schedule {
	return schedule{
		historyPeriod: historyPeriod,
		profilePeriod: profilePeriod,
		historyLast:   now,
		profileLast:   now,
	}
}

// setPeriods applies reloaded cadences. Last-sample times are kept, so a
// shortened period can make a stream immediately due.
func (s *schedule) setPeriods(historyPeriod, profilePeriod time.Duration) {
	s.historyPeriod = historyPeriod
	s.profilePeriod = profilePeriod
}

// tick reports which streams are due at now. A zero period keeps its
// stream permanently idle.
func (s *schedule) tick(now time.Time) (writeHistory, writeProfile bool) {
	writeHistory = s.historyPeriod > 0 && now.Sub(s.historyLast) >= s.historyPeriod
	writeProfile = s.profilePeriod > 0 && now.Sub(s.profileLast) >= s.profilePeriod
	return writeHistory, writeProfile
}

// mark resets the last-sample time of each stream that was just written.
// Each stream resets independently so the cadences stay decoupled.
func (s *schedule) mark(now time.Time, wroteHistory, wroteProfile bool) {
	if wroteHistory {
		s.historyLast = now
	}
	if wroteProfile {
		s.profileLast = now
	}
}

// timeout returns the sleep duration until the earlier of the two next
// deadlines. ok is false when both streams are disabled and the loop
// should wait indefinitely for an external signal.
func (s *schedule) timeout(now time.Time) (d time.Duration, ok bool) {
	historyTimeout := remaining(s.historyPeriod, s.historyLast, now)
	profileTimeout := remaining(s.profilePeriod, s.profileLast, now)

	switch {
	case s.historyPeriod > 0 && s.profilePeriod > 0:
		if historyTimeout < profileTimeout {
			return historyTimeout, true
		}
		return profileTimeout, true
	case s.historyPeriod > 0:
		return historyTimeout, true
	case s.profilePeriod > 0:
		return profileTimeout, true
	}
	return 0, false
}

func remaining(period time.Duration, last, now time.Time) time.Duration {
	if period == 0 {
		return 0
	}
	if d := period - now.Sub(last); d > 0 {
		return d
	}
	return 0
}
