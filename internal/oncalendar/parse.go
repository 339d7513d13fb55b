// Package oncalendar parses systemd OnCalendar expressions and computes
// the times that satisfy them. An expression names allowed values for
// each calendar field ("Mon, 12:34", "*-*-1 00:00:00", "*~1"); the
// iterators walk forward or backward from a reference time to the
// matching instants. The search is bounded: forward iteration gives up
// at year 2200 and backward iteration at 1970, so an expression that
// can never match again terminates instead of spinning.
package oncalendar

import (
	"strings"
	"time"
	"unicode"
)

// Field names used in ParseError messages.
const (
	yearField       = "year"
	monthField      = "month"
	dayOfMonthField = "day-of-month"
	hourField       = "hour"
	minuteField     = "minute"
	secondField     = "second"
	dayOfWeekField  = "day-of-week"
	dateField       = "date"
	timeField       = "time"
	timezoneField   = "timezone"
)

// ParseError reports why an expression was rejected. The message names
// the offending field ("Bad hour", "Bad day-of-week").
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return e.Reason
}

func badField(name string) error {
	return &ParseError{Reason: "Bad " + name}
}

var errWrongFieldCount = &ParseError{Reason: "Wrong number of fields"}

// Spec is the compiled form of a single expression: one allowed-value
// set per calendar field. Weekdays use 0 for Monday through 6 for
// Sunday. Negative Days keys count from the end of the month, -1 being
// the last day. Location is non-nil only for expressions compiled with
// ParseTZ that carry a trailing zone name. A Spec is never mutated
// after parsing and may back any number of iterators.
type Spec struct {
	Years    map[int]bool
	Months   map[int]bool
	Days     map[int]bool
	Hours    map[int]bool
	Minutes  map[int]bool
	Seconds  map[int]bool
	Weekdays map[int]bool
	Location *time.Location
}

// Expr is a compiled expression: one Spec per newline-separated
// alternative. Alternatives are evaluated independently and merged by
// the iterators (minimum forward, maximum backward).
type Expr struct {
	specs []*Spec
}

// Parse compiles an OnCalendar expression. Newlines separate
// independent alternatives. The returned error, if any, is a
// *ParseError naming the first offending field.
func Parse(expr string) (*Expr, error) {
	return parseExpr(expr, false)
}

// ParseTZ is Parse with the timezone-aware grammar: each alternative
// may end with an IANA zone name ("*-*-1 00:00:00 Europe/Riga"), and
// matches for that alternative are computed and returned in that zone.
func ParseTZ(expr string) (*Expr, error) {
	return parseExpr(expr, true)
}

func parseExpr(expr string, allowTZ bool) (*Expr, error) {
	var specs []*Spec
	for _, line := range strings.Split(expr, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		spec, err := parseSingle(line, allowTZ)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	if len(specs) == 0 {
		return nil, errWrongFieldCount
	}
	return &Expr{specs: specs}, nil
}

// Shorthand expressions, per systemd.special(7). Expanded before
// component classification so "daily Europe/Riga" still works under
// ParseTZ.
var specials = map[string]string{
	"minutely":     "*-*-* *:*:00",
	"hourly":       "*-*-* *:00:00",
	"daily":        "*-*-* 00:00:00",
	"weekly":       "Mon *-*-* 00:00:00",
	"monthly":      "*-*-01 00:00:00",
	"quarterly":    "*-01,04,07,10-01 00:00:00",
	"semiannually": "*-01,07-01 00:00:00",
	"yearly":       "*-01-01 00:00:00",
	"annually":     "*-01-01 00:00:00",
}

func parseSingle(line string, allowTZ bool) (*Spec, error) {
	fields := strings.Fields(line)

	spec := &Spec{}
	if allowTZ && len(fields) >= 2 {
		if last := fields[len(fields)-1]; looksLikeZone(last) {
			loc, err := time.LoadLocation(last)
			if err != nil {
				return nil, badField(timezoneField)
			}
			spec.Location = loc
			fields = fields[:len(fields)-1]
		}
	}
	if len(fields) == 1 {
		if exp, ok := specials[strings.ToLower(fields[0])]; ok {
			fields = strings.Fields(exp)
		}
	}
	if len(fields) == 0 || len(fields) > 3 {
		return nil, errWrongFieldCount
	}

	// Components are positional but optional: [weekdays] [date] [time].
	// A time component always contains a colon; anything opening with a
	// letter can only be a weekday list.
	var wdayRaw, dateRaw, timeRaw string
	switch len(fields) {
	case 1:
		switch f := fields[0]; {
		case strings.ContainsRune(f, ':'):
			timeRaw = f
		case startsWithLetter(f):
			wdayRaw = f
		default:
			dateRaw = f
		}
	case 2:
		if strings.ContainsRune(fields[1], ':') {
			timeRaw = fields[1]
			if startsWithLetter(fields[0]) {
				wdayRaw = fields[0]
			} else {
				dateRaw = fields[0]
			}
		} else {
			// Only a weekday list may precede a date.
			wdayRaw, dateRaw = fields[0], fields[1]
		}
	case 3:
		// Three components must be weekday, date, time. Anything else
		// in the first slot means the expression has too many fields,
		// most often an unsolicited trailing timezone.
		if !startsWithLetter(fields[0]) {
			return nil, errWrongFieldCount
		}
		wdayRaw, dateRaw, timeRaw = fields[0], fields[1], fields[2]
	}

	var err error
	if wdayRaw != "" {
		spec.Weekdays, err = parseWeekdays(wdayRaw)
	} else {
		spec.Weekdays = allValues(0, 6)
	}
	if err != nil {
		return nil, err
	}
	if dateRaw != "" {
		err = spec.parseDate(dateRaw)
	} else {
		spec.Years = allValues(minYear, maxYear)
		spec.Months = allValues(1, 12)
		spec.Days = allValues(1, 31)
	}
	if err != nil {
		return nil, err
	}
	if timeRaw != "" {
		err = spec.parseTime(timeRaw)
	} else {
		spec.Hours = map[int]bool{0: true}
		spec.Minutes = map[int]bool{0: true}
		spec.Seconds = map[int]bool{0: true}
	}
	if err != nil {
		return nil, err
	}
	return spec, nil
}

// looksLikeZone reports whether a trailing token can only be a zone
// name. Date and time tokens never contain letters, and time tokens
// are the only ones with colons.
func looksLikeZone(s string) bool {
	if strings.ContainsRune(s, ':') {
		return false
	}
	for _, c := range s {
		if unicode.IsLetter(c) {
			return true
		}
	}
	return false
}

func startsWithLetter(s string) bool {
	for _, c := range s {
		return unicode.IsLetter(c)
	}
	return false
}

// Weekday numbering follows systemd: Monday is 0.
var weekdayNames = map[string]int{
	"mon": 0, "monday": 0,
	"tue": 1, "tuesday": 1,
	"wed": 2, "wednesday": 2,
	"thu": 3, "thursday": 3,
	"fri": 4, "friday": 4,
	"sat": 5, "saturday": 5,
	"sun": 6, "sunday": 6,
}

// parseWeekdays expands a weekday list. Names may be abbreviated or
// full, in any case; ranges accept both ".." and "-"; a trailing comma
// ("Mon, 12:34") is tolerated. Numeric weekdays are not part of the
// grammar.
func parseWeekdays(raw string) (map[int]bool, error) {
	bad := badField(dayOfWeekField)
	raw = strings.TrimSuffix(raw, ",")
	if raw == "" {
		return nil, bad
	}
	set := make(map[int]bool)
	for _, chunk := range strings.Split(raw, ",") {
		startStr, endStr, isRange := strings.Cut(chunk, "..")
		if !isRange {
			startStr, endStr, isRange = strings.Cut(chunk, "-")
		}
		start, ok := weekdayNames[strings.ToLower(startStr)]
		if !ok {
			return nil, bad
		}
		end := start
		if isRange {
			end, ok = weekdayNames[strings.ToLower(endStr)]
			if !ok || start > end {
				return nil, bad
			}
		}
		for v := start; v <= end; v++ {
			set[v] = true
		}
	}
	return set, nil
}

// parseDate fills Years, Months and Days from a date component:
// [year-]month-day, [year-]month~reverse-day, or a bare "*". The year
// defaults to the whole 1970-2199 domain when omitted.
func (s *Spec) parseDate(raw string) error {
	if raw == "*" {
		s.Years = allValues(minYear, maxYear)
		s.Months = allValues(1, 12)
		s.Days = allValues(1, 31)
		return nil
	}
	datePart, revPart, hasRev := strings.Cut(raw, "~")
	chunks := strings.Split(datePart, "-")

	var yearRaw, monthRaw, dayRaw string
	if hasRev {
		switch len(chunks) {
		case 1:
			monthRaw = chunks[0]
		case 2:
			yearRaw, monthRaw = chunks[0], chunks[1]
		default:
			return badField(dateField)
		}
	} else {
		switch len(chunks) {
		case 2:
			monthRaw, dayRaw = chunks[0], chunks[1]
		case 3:
			yearRaw, monthRaw, dayRaw = chunks[0], chunks[1], chunks[2]
		default:
			return badField(dateField)
		}
	}

	var err error
	if yearRaw != "" {
		s.Years, err = parseField(yearField, yearRaw, minYear, maxYear, true)
	} else {
		s.Years = allValues(minYear, maxYear)
	}
	if err != nil {
		return err
	}
	if s.Months, err = parseField(monthField, monthRaw, 1, 12, false); err != nil {
		return err
	}
	if hasRev {
		s.Days, err = parseReverseDays(revPart)
	} else {
		s.Days, err = parseField(dayOfMonthField, dayRaw, 1, 31, false)
	}
	return err
}

// parseTime fills Hours, Minutes and Seconds from hour:minute[:second];
// seconds default to 0 when omitted.
func (s *Spec) parseTime(raw string) error {
	chunks := strings.Split(raw, ":")
	if len(chunks) < 2 || len(chunks) > 3 {
		return badField(timeField)
	}
	var err error
	if s.Hours, err = parseField(hourField, chunks[0], 0, 23, false); err != nil {
		return err
	}
	if s.Minutes, err = parseField(minuteField, chunks[1], 0, 59, false); err != nil {
		return err
	}
	if len(chunks) == 3 {
		s.Seconds, err = parseField(secondField, chunks[2], 0, 59, false)
	} else {
		s.Seconds = map[int]bool{0: true}
	}
	return err
}
