package oncalendar

import (
	"time"
)

// BackwardIterator walks matches in decreasing order, strictly before
// the reference time, down to a floor of year 1970. Useful for "when
// should this have last fired" questions.
type BackwardIterator struct {
	specs  []*Spec
	cursor time.Time
	done   bool
}

// Backward returns an iterator over matches strictly before before,
// most recent first.
func (e *Expr) Backward(before time.Time) *BackwardIterator {
	return &BackwardIterator{specs: e.specs, cursor: before.Truncate(time.Second)}
}

// Next steps to the previous matching time. Returns false permanently
// once every alternative has run out before year 1970.
func (it *BackwardIterator) Next() (time.Time, bool) {
	if it.done {
		return time.Time{}, false
	}
	var best time.Time
	found := false
	for _, spec := range it.specs {
		t, ok := spec.prevBefore(it.cursor)
		if ok && (!found || t.After(best)) {
			best = t
			found = true
		}
	}
	if !found {
		it.done = true
		return time.Time{}, false
	}
	it.cursor = best
	return best, true
}

// Previous returns the latest match strictly before ref, or false if
// none exists at or after year 1970.
func (e *Expr) Previous(before time.Time) (time.Time, bool) {
	return e.Backward(before).Next()
}

// prevBefore mirrors nextAfter: largest matching time smaller than ref.
// Carries reset finer fields to their maximum (day to the month's last
// day, clock fields to 23:59:59) and restart from the top.
//
// Wall times lowered into a DST spring-forward gap do not exist;
// time.Date normalizes them forward, which would undo the search's
// progress and loop. All carries therefore go through instants that
// exist (dayFloor, retreat), and the clock scans skip wall values the
// gap erased.
func (s *Spec) prevBefore(ref time.Time) (time.Time, bool) {
	loc := ref.Location()
	if s.Location != nil {
		loc = s.Location
		ref = ref.In(loc)
	}
	t := ref.Add(-time.Second)
	for {
		year, month, day := t.Date()
		if year < minYear {
			return time.Time{}, false
		}
		if !s.Years[year] {
			t = dayFloor(year, time.January, 1, loc)
			continue
		}
		if !s.Months[int(month)] {
			if m, ok := prevAllowed(s.Months, int(month)-1, 1); ok {
				// Midnight of the following month, minus a second.
				t = dayFloor(year, time.Month(m)+1, 1, loc)
			} else {
				t = dayFloor(year, time.January, 1, loc)
			}
			continue
		}
		if !s.dayMatches(year, month, day) {
			if d, ok := s.prevDay(year, month, day-1); ok {
				t = dayFloor(year, month, d+1, loc)
			} else {
				t = dayFloor(year, month, 1, loc)
			}
			continue
		}
		if !s.Weekdays[mondayIndexed(t.Weekday())] {
			t = dayFloor(year, month, day, loc)
			continue
		}
		hour := t.Hour()
		if !s.Hours[hour] {
			if c, ok := s.lastHourBefore(t, year, month, day, hour-1, loc); ok {
				t = c
			} else {
				t = dayFloor(year, month, day, loc)
			}
			continue
		}
		minute := t.Minute()
		if !s.Minutes[minute] {
			if c, ok := s.lastMinuteBefore(t, year, month, day, hour, minute-1, loc); ok {
				t = c
			} else {
				t = retreat(t, time.Date(year, month, day, hour, 0, 0, 0, loc).Add(-time.Second))
			}
			continue
		}
		second := t.Second()
		if !s.Seconds[second] {
			if c, ok := s.lastSecondBefore(t, year, month, day, hour, minute, second-1, loc); ok {
				t = c
			} else {
				t = retreat(t, time.Date(year, month, day, hour, minute, 0, 0, loc).Add(-time.Second))
			}
			continue
		}
		return earlierFold(t), true
	}
}

// lastHourBefore finds the latest allowed hour at or below from whose
// wall clock exists on the given day. An hour erased by a
// spring-forward gap normalizes to a different hour and is skipped.
func (s *Spec) lastHourBefore(t time.Time, year int, month time.Month, day, from int, loc *time.Location) (time.Time, bool) {
	for h, ok := prevAllowed(s.Hours, from, 0); ok; h, ok = prevAllowed(s.Hours, h-1, 0) {
		c := time.Date(year, month, day, h, 59, 59, 0, loc)
		if c.Hour() == h && c.Before(t) {
			return c, true
		}
	}
	return time.Time{}, false
}

func (s *Spec) lastMinuteBefore(t time.Time, year int, month time.Month, day, hour, from int, loc *time.Location) (time.Time, bool) {
	for m, ok := prevAllowed(s.Minutes, from, 0); ok; m, ok = prevAllowed(s.Minutes, m-1, 0) {
		c := time.Date(year, month, day, hour, m, 59, 0, loc)
		if c.Hour() == hour && c.Minute() == m && c.Before(t) {
			return c, true
		}
	}
	return time.Time{}, false
}

func (s *Spec) lastSecondBefore(t time.Time, year int, month time.Month, day, hour, minute, from int, loc *time.Location) (time.Time, bool) {
	for sec, ok := prevAllowed(s.Seconds, from, 0); ok; sec, ok = prevAllowed(s.Seconds, sec-1, 0) {
		c := time.Date(year, month, day, hour, minute, sec, 0, loc)
		if c.Minute() == minute && c.Second() == sec && c.Before(t) {
			return c, true
		}
	}
	return time.Time{}, false
}

// dayFloor returns the last instant before the wall date's midnight.
// Built by subtracting from an existing instant, so a gap spanning
// midnight cannot normalize the value forward.
func dayFloor(year int, month time.Month, day int, loc *time.Location) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, loc).Add(-time.Second)
}

// retreat accepts a carry candidate only if it moves the search
// backward; otherwise it steps a single second, which always exists
// and always progresses.
func retreat(t, c time.Time) time.Time {
	if c.Before(t) {
		return c
	}
	return t.Add(-time.Second)
}

// earlierFold resolves a wall time made ambiguous by a fall-back
// transition to its first occurrence, the pre-transition offset.
func earlierFold(t time.Time) time.Time {
	for _, shift := range []time.Duration{time.Hour, 30 * time.Minute} {
		if alt := t.Add(-shift); sameWallClock(alt, t) {
			return alt
		}
	}
	return t
}

func sameWallClock(a, b time.Time) bool {
	ah, am, as := a.Clock()
	bh, bm, bs := b.Clock()
	return a.Day() == b.Day() && ah == bh && am == bm && as == bs
}
