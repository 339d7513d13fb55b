package oncalendar

import (
	"time"
)

// Iterator lazily produces the times matching an expression, strictly
// after a reference time and in increasing order. It is exhausted once
// the search reaches year 2200; after that Next keeps returning false.
// An Iterator must not be shared between goroutines; build one per
// consumer from the same Expr instead.
type Iterator struct {
	specs  []*Spec
	cursor time.Time
	done   bool
}

// Iterator returns a forward iterator positioned at after. The first
// Next call produces the earliest match strictly later than after.
func (e *Expr) Iterator(after time.Time) *Iterator {
	return &Iterator{specs: e.specs, cursor: after.Truncate(time.Second)}
}

// Next advances to the next matching time. The second return value is
// false once no match exists before year 2200; that state is terminal.
func (it *Iterator) Next() (time.Time, bool) {
	if it.done {
		return time.Time{}, false
	}
	var best time.Time
	found := false
	for _, spec := range it.specs {
		t, ok := spec.nextAfter(it.cursor)
		if ok && (!found || t.Before(best)) {
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

// Next returns the earliest match strictly after ref, or false if the
// expression cannot match again before year 2200.
func (e *Expr) Next(after time.Time) (time.Time, bool) {
	return e.Iterator(after).Next()
}

// nextAfter finds the smallest matching time greater than ref for one
// alternative. The search walks fields from coarsest to finest; every
// adjustment resets the finer fields to their minimum and restarts from
// the top, because a carry can invalidate anything already chosen
// (including the day/month-length pairing). Each step either advances
// the candidate or carries a coarser field, so the year ceiling bounds
// the loop.
func (s *Spec) nextAfter(ref time.Time) (time.Time, bool) {
	loc := ref.Location()
	if s.Location != nil {
		loc = s.Location
		ref = ref.In(loc)
	}
	t := ref.Add(time.Second)
	for {
		year, month, day := t.Date()
		if year >= ceilingYear {
			return time.Time{}, false
		}
		if !s.Years[year] {
			t = time.Date(year+1, time.January, 1, 0, 0, 0, 0, loc)
			continue
		}
		if !s.Months[int(month)] {
			if m, ok := nextAllowed(s.Months, int(month)+1, 12); ok {
				t = time.Date(year, time.Month(m), 1, 0, 0, 0, 0, loc)
			} else {
				t = time.Date(year+1, time.January, 1, 0, 0, 0, 0, loc)
			}
			continue
		}
		if !s.dayMatches(year, month, day) {
			if d, ok := s.nextDay(year, month, day+1); ok {
				t = time.Date(year, month, d, 0, 0, 0, 0, loc)
			} else {
				// No usable day left in this month; covers both
				// exhausted day sets and days that don't exist on the
				// calendar (Feb 30, Feb 29 outside leap years).
				t = time.Date(year, month+1, 1, 0, 0, 0, 0, loc)
			}
			continue
		}
		if !s.Weekdays[mondayIndexed(t.Weekday())] {
			t = time.Date(year, month, day+1, 0, 0, 0, 0, loc)
			continue
		}
		hour := t.Hour()
		if !s.Hours[hour] {
			if h, ok := nextAllowed(s.Hours, hour+1, 23); ok {
				t = time.Date(year, month, day, h, 0, 0, 0, loc)
			} else {
				t = time.Date(year, month, day+1, 0, 0, 0, 0, loc)
			}
			continue
		}
		minute := t.Minute()
		if !s.Minutes[minute] {
			if m, ok := nextAllowed(s.Minutes, minute+1, 59); ok {
				t = time.Date(year, month, day, hour, m, 0, 0, loc)
			} else {
				t = time.Date(year, month, day, hour+1, 0, 0, 0, loc)
			}
			continue
		}
		second := t.Second()
		if !s.Seconds[second] {
			if sec, ok := nextAllowed(s.Seconds, second+1, 59); ok {
				t = time.Date(year, month, day, hour, minute, sec, 0, loc)
			} else {
				t = time.Date(year, month, day, hour, minute+1, 0, 0, loc)
			}
			continue
		}
		return t, true
	}
}

// dayMatches checks the day constraint for a concrete date, resolving
// reverse day keys against the month's length.
func (s *Spec) dayMatches(year int, month time.Month, day int) bool {
	if s.Days[day] {
		return true
	}
	return s.Days[day-daysIn(year, month)-1]
}

// nextDay returns the smallest allowed day of the month at or after
// from, honoring the month's actual length.
func (s *Spec) nextDay(year int, month time.Month, from int) (int, bool) {
	for d := from; d <= daysIn(year, month); d++ {
		if s.dayMatches(year, month, d) {
			return d, true
		}
	}
	return 0, false
}

// prevDay is nextDay's backward counterpart.
func (s *Spec) prevDay(year int, month time.Month, from int) (int, bool) {
	start := from
	if last := daysIn(year, month); start > last {
		start = last
	}
	for d := start; d >= 1; d-- {
		if s.dayMatches(year, month, d) {
			return d, true
		}
	}
	return 0, false
}

// daysIn returns the number of days in a month. Day zero of the next
// month normalizes to the last day of this one.
func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// mondayIndexed converts Go's Sunday-based weekday to the grammar's
// Monday-based numbering.
func mondayIndexed(w time.Weekday) int {
	return (int(w) + 6) % 7
}
