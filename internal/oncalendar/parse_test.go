package oncalendar

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, expr string) *Spec {
	t.Helper()
	e, err := Parse(expr)
	require.NoError(t, err)
	require.Len(t, e.specs, 1)
	return e.specs[0]
}

func set(values ...int) map[int]bool {
	m := make(map[int]bool, len(values))
	for _, v := range values {
		m[v] = true
	}
	return m
}

// assertDefaults checks that the named fields hold their defaults:
// w=all weekdays, y=1970-2199, m=all months, d=all days, H/M/S=zero.
func assertDefaults(t *testing.T, s *Spec, fields string) {
	t.Helper()
	for _, f := range fields {
		switch f {
		case 'w':
			assert.Equal(t, allValues(0, 6), s.Weekdays)
		case 'y':
			assert.Equal(t, allValues(minYear, maxYear), s.Years)
		case 'm':
			assert.Equal(t, allValues(1, 12), s.Months)
		case 'd':
			assert.Equal(t, allValues(1, 31), s.Days)
		case 'H':
			assert.Equal(t, set(0), s.Hours)
		case 'M':
			assert.Equal(t, set(0), s.Minutes)
		case 'S':
			assert.Equal(t, set(0), s.Seconds)
		}
	}
}

func TestParseStars(t *testing.T) {
	s := mustParse(t, "*-*-* *:*:*")
	assertDefaults(t, s, "wymd")
	assert.Equal(t, allValues(0, 23), s.Hours)
	assert.Equal(t, allValues(0, 59), s.Minutes)
	assert.Equal(t, allValues(0, 59), s.Seconds)
}

func TestParseWeekday(t *testing.T) {
	for _, sample := range []string{"Mon", "MON", "Monday", "MONDAY"} {
		t.Run(sample, func(t *testing.T) {
			s := mustParse(t, sample)
			assertDefaults(t, s, "ymdHMS")
			assert.Equal(t, set(0), s.Weekdays)
		})
	}
}

func TestParseWeekdayWithTrailingComma(t *testing.T) {
	s := mustParse(t, "Mon, 12:34")
	assertDefaults(t, s, "ymdS")
	assert.Equal(t, set(0), s.Weekdays)
	assert.Equal(t, set(12), s.Hours)
	assert.Equal(t, set(34), s.Minutes)
}

func TestParseWeekdayInterval(t *testing.T) {
	for _, sample := range []string{"Mon..Tue", "Mon,Tue", "Mon-Tue"} {
		t.Run(sample, func(t *testing.T) {
			s := mustParse(t, sample)
			assertDefaults(t, s, "ymdHMS")
			assert.Equal(t, set(0, 1), s.Weekdays)
		})
	}
}

func TestParseDate(t *testing.T) {
	s := mustParse(t, "2023-11-30")
	assertDefaults(t, s, "wHMS")
	assert.Equal(t, set(2023), s.Years)
	assert.Equal(t, set(11), s.Months)
	assert.Equal(t, set(30), s.Days)
}

func TestParseOmittedYear(t *testing.T) {
	s := mustParse(t, "11-30")
	assertDefaults(t, s, "wyHMS")
	assert.Equal(t, set(11), s.Months)
	assert.Equal(t, set(30), s.Days)
}

func TestParseTwoDigitYear(t *testing.T) {
	s := mustParse(t, "69-*-*")
	assertDefaults(t, s, "wmdHMS")
	assert.Equal(t, set(2069), s.Years)

	s = mustParse(t, "70-*-*")
	assert.Equal(t, set(1970), s.Years)
}

func TestParseTime(t *testing.T) {
	s := mustParse(t, "11:22:33")
	assertDefaults(t, s, "wymd")
	assert.Equal(t, set(11), s.Hours)
	assert.Equal(t, set(22), s.Minutes)
	assert.Equal(t, set(33), s.Seconds)
}

func TestParseOmittedSeconds(t *testing.T) {
	s := mustParse(t, "11:22")
	assertDefaults(t, s, "wymdS")
	assert.Equal(t, set(11), s.Hours)
	assert.Equal(t, set(22), s.Minutes)
}

func TestParseValueSets(t *testing.T) {
	tests := []struct {
		expr string
		want map[int]bool
	}{
		{"*:1,2,3", set(1, 2, 3)},
		{"*:1..3", set(1, 2, 3)},
		{"*:1..3,7..9:*", set(1, 2, 3, 7, 8, 9)},
		{"*:0/15", set(0, 15, 30, 45)},
		{"*:0..10/2", set(0, 2, 4, 6, 8, 10)},
		{"*:5/15", set(5, 20, 35, 50)},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			s := mustParse(t, tt.expr)
			assert.Equal(t, tt.want, s.Minutes)
		})
	}
}

func TestParseReverseDays(t *testing.T) {
	tests := []struct {
		expr string
		want map[int]bool
	}{
		{"*-*~1", set(-1)},
		{"*~1", set(-1)},
		{"*-*~1,8", set(-1, -8)},
		{"*-*~1..3", set(-1, -2, -3)},
		{"*-*~1..2,4..5", set(-1, -2, -4, -5)},
		{"*-*~1..5/2", set(-1, -3, -5)},
		{"*-*~3/2", set(-1, -3)},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			s := mustParse(t, tt.expr)
			assert.Equal(t, tt.want, s.Days)
		})
	}
}

func TestParseSpecials(t *testing.T) {
	for _, sample := range []string{"minutely", "Minutely", "MINUTELY", "MiNuTeLY"} {
		t.Run(sample, func(t *testing.T) {
			s := mustParse(t, sample)
			assertDefaults(t, s, "wymdS")
			assert.Equal(t, allValues(0, 23), s.Hours)
			assert.Equal(t, allValues(0, 59), s.Minutes)
		})
	}

	s := mustParse(t, "weekly")
	assertDefaults(t, s, "ymdHMS")
	assert.Equal(t, set(0), s.Weekdays)

	s = mustParse(t, "monthly")
	assert.Equal(t, set(1), s.Days)

	s = mustParse(t, "quarterly")
	assert.Equal(t, set(1, 4, 7, 10), s.Months)
	assert.Equal(t, set(1), s.Days)

	s = mustParse(t, "annually")
	assert.Equal(t, set(1), s.Months)
	assert.Equal(t, set(1), s.Days)
}

func TestParseAlternatives(t *testing.T) {
	e, err := Parse("12:00\n*-*-1 00:00:00")
	require.NoError(t, err)
	assert.Len(t, e.specs, 2)
}

func TestParseRejectsEmpty(t *testing.T) {
	_, err := Parse("")
	assert.EqualError(t, err, "Wrong number of fields")

	_, err = Parse("  \n \n")
	assert.EqualError(t, err, "Wrong number of fields")
}

func TestParseRejectsFourComponents(t *testing.T) {
	_, err := Parse("Mon *-*-* *:*:* surprise")
	assert.EqualError(t, err, "Wrong number of fields")
}

func TestParseRejectsBadValues(t *testing.T) {
	patterns := []string{
		"%s *-*-* *:*:*",
		"%s-*-*",
		"*-%s-*",
		"*-*-%s",
		"*-*~%s",
		"%s:*:*",
		"*:%s:*",
		"*:*:%s",
	}
	badValues := []string{
		"-1", "1000", "ABC", "1-1", "1:1",
		"Mon/1", "~1", "*/1", "*,1", "1..*",
	}
	for _, pattern := range patterns {
		for _, v := range badValues {
			expr := fmt.Sprintf(pattern, v)
			_, err := Parse(expr)
			assert.Error(t, err, "expression %q should not parse", expr)
			if err != nil {
				assert.IsType(t, &ParseError{}, err)
			}
		}
	}
}

func TestParseRejections(t *testing.T) {
	tests := []struct {
		name string
		expr string
		want string
	}{
		{"lopsided range", "*-*-5..1", "Bad day-of-month"},
		{"underscores", "*:1..1_0", "Bad minute"},
		{"zero step", "*:*/0", "Bad minute"},
		{"day of month range", "1-32", "Bad day-of-month"},
		{"weekday star", "* 1-1", "Bad day-of-week"},
		{"reverse day above 28", "1~29", "Bad day-of-month"},
		{"hour out of range", "123:456", "Bad hour"},
		{"weekday list hour out of range", "Mon, 123:456", "Bad hour"},
		{"lone day", "5", "Bad date"},
		{"bad month name", "Janissary-1", "Bad day-of-week"},
		{"lopsided weekday range", "Tue..Mon", "Bad day-of-week"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.expr)
			assert.EqualError(t, err, tt.want)
		})
	}
}

func TestParseTZ(t *testing.T) {
	e, err := ParseTZ("*-*-1 00:00:00 Europe/Riga")
	require.NoError(t, err)
	require.Len(t, e.specs, 1)
	require.NotNil(t, e.specs[0].Location)
	assert.Equal(t, "Europe/Riga", e.specs[0].Location.String())

	// Shorthand with a zone.
	e, err = ParseTZ("daily UTC")
	require.NoError(t, err)
	assert.NotNil(t, e.specs[0].Location)

	// Without a zone suffix the grammar is unchanged.
	e, err = ParseTZ("Mon, 12:34")
	require.NoError(t, err)
	assert.Nil(t, e.specs[0].Location)

	_, err = ParseTZ("*-*-1 00:00:00 Europe/Atlantis")
	assert.EqualError(t, err, "Bad timezone")
}

func TestParseRejectsTimezoneInPlainGrammar(t *testing.T) {
	_, err := Parse("*-*-1 00:00:00 Europe/Riga")
	assert.EqualError(t, err, "Wrong number of fields")
}
