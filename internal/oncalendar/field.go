package oncalendar

import (
	"strings"
)

// Field domains. Days additionally admit negative keys for reverse
// day-of-month constraints (-1 is the last day of the month); those are
// produced by parseReverseDays, never by parseField.
const (
	minYear = 1970
	maxYear = 2199

	// A candidate reaching this year terminates the search. Keeps
	// unsatisfiable expressions (a fixed Feb 29 on a non-leap year)
	// from looping forever.
	ceilingYear = 2200

	// Reverse days count backwards from the month's last day, so they
	// must land inside every month, including non-leap February.
	maxReverseDay = 28
)

// allValues returns the wildcard set for a field's domain.
func allValues(min, max int) map[int]bool {
	set := make(map[int]bool, max-min+1)
	for v := min; v <= max; v++ {
		set[v] = true
	}
	return set
}

// nextAllowed returns the smallest allowed value in [from, max].
func nextAllowed(set map[int]bool, from, max int) (int, bool) {
	for v := from; v <= max; v++ {
		if set[v] {
			return v, true
		}
	}
	return 0, false
}

// prevAllowed returns the largest allowed value in [min, from].
func prevAllowed(set map[int]bool, from, min int) (int, bool) {
	for v := from; v >= min; v-- {
		if set[v] {
			return v, true
		}
	}
	return 0, false
}

// parseValue parses a strictly numeric token. Signs, separators and
// anything else strconv would tolerate are rejected; the grammar has no
// negative literals and "1_0" must not read as 10. When year is true,
// one- and two-digit values map to 1970-2069 the way systemd does.
func parseValue(s string, year bool) (int, bool) {
	if s == "" || len(s) > 4 {
		return 0, false
	}
	v := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, false
		}
		v = v*10 + int(c-'0')
	}
	if year && len(s) <= 2 {
		if v < 70 {
			v += 2000
		} else {
			v += 1900
		}
	}
	return v, true
}

// parseField expands one field token into its allowed-value set.
// Grammar: "*" alone, or a comma list of value, value..value and
// value..value/step chunks; value/step runs from value to the domain
// maximum. name is the field name used in error messages. year enables
// two-digit year mapping.
func parseField(name, raw string, min, max int, year bool) (map[int]bool, error) {
	if raw == "*" {
		return allValues(min, max), nil
	}
	set := make(map[int]bool)
	for _, chunk := range strings.Split(raw, ",") {
		start, end, step, err := parseChunk(name, chunk, min, max, year)
		if err != nil {
			return nil, err
		}
		for v := start; v <= end; v += step {
			set[v] = true
		}
	}
	return set, nil
}

// parseChunk validates a single list element and returns its expansion
// bounds. The wildcard is only legal as a whole field, so "*" inside a
// list, "*/2" and "1..*" all fail here.
func parseChunk(name, chunk string, min, max int, year bool) (start, end, step int, err error) {
	bad := badField(name)
	base, stepStr, hasStep := strings.Cut(chunk, "/")
	step = 1
	if hasStep {
		v, ok := parseValue(stepStr, false)
		if !ok || v == 0 {
			return 0, 0, 0, bad
		}
		step = v
	}
	startStr, endStr, isRange := strings.Cut(base, "..")
	start, ok := parseValue(startStr, year)
	if !ok {
		return 0, 0, 0, bad
	}
	switch {
	case isRange:
		end, ok = parseValue(endStr, year)
		if !ok || start > end {
			return 0, 0, 0, bad
		}
	case hasStep:
		end = max
	default:
		end = start
	}
	if start < min || end > max {
		return 0, 0, 0, bad
	}
	return start, end, step, nil
}

// parseReverseDays expands the day token after a "~" into negative day
// keys (-1 is the month's last day). A bare value with a step counts
// further from the end: "3/2" selects the last and third-from-last
// days. Values above 28 are rejected because the selection must exist
// in February.
func parseReverseDays(raw string) (map[int]bool, error) {
	bad := badField(dayOfMonthField)
	set := make(map[int]bool)
	for _, chunk := range strings.Split(raw, ",") {
		base, stepStr, hasStep := strings.Cut(chunk, "/")
		step := 1
		if hasStep {
			v, ok := parseValue(stepStr, false)
			if !ok || v == 0 {
				return nil, bad
			}
			step = v
		}
		startStr, endStr, isRange := strings.Cut(base, "..")
		start, ok := parseValue(startStr, false)
		if !ok || start < 1 || start > maxReverseDay {
			return nil, bad
		}
		switch {
		case isRange:
			end, ok := parseValue(endStr, false)
			if !ok || start > end || end > maxReverseDay {
				return nil, bad
			}
			for v := start; v <= end; v += step {
				set[-v] = true
			}
		case hasStep:
			for v := start; v >= 1; v -= step {
				set[-v] = true
			}
		default:
			set[-start] = true
		}
	}
	return set, nil
}
