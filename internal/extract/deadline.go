package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var deadlineLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"2006-1-2",
	"2006/1/2",
	"2 January 2006",
	"2 Jan 2006",
	"January 2 2006",
	"Jan 2 2006",
	"02.01.2006",
	"2.1.2006",
}

var (
	ordinalRe = regexp.MustCompile(`(\d{1,2})(st|nd|rd|th)\b`)
	parenRe   = regexp.MustCompile(`\([^)]*\)`)
	slashRe   = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})$`)

	// candidate date substrings, tried in order of position in the text
	dateRes = []*regexp.Regexp{
		regexp.MustCompile(`\d{4}[-/]\d{1,2}[-/]\d{1,2}`),
		regexp.MustCompile(`\d{1,2}\s+[A-Za-z]{3,9}\.?,?\s+\d{4}`),
		regexp.MustCompile(`[A-Za-z]{3,9}\.?\s+\d{1,2},?\s+\d{4}`),
		regexp.MustCompile(`\d{1,2}[./]\d{1,2}[./]\d{4}`),
	}
)

// ParseDeadline reads a calendar date out of free text. It returns nil when
// nothing parses, when the text means "no fixed deadline", and for slash
// dates such as 03/04/2026 where day and month could be swapped.
func ParseDeadline(s string) *time.Time {
	s = normalizeDateText(s)
	if s == "" {
		return nil
	}
	if t, ok := parseDate(s); ok {
		return t
	}

	at := -1
	var match string
	for _, re := range dateRes {
		loc := re.FindStringIndex(s)
		if loc == nil {
			continue
		}
		if at < 0 || loc[0] < at {
			at = loc[0]
			match = s[loc[0]:loc[1]]
		}
	}
	if at < 0 {
		return nil
	}
	if t, ok := parseDate(match); ok {
		return t
	}
	return nil
}

func normalizeDateText(s string) string {
	s = parenRe.ReplaceAllString(s, " ")
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return ""
	}
	s = ordinalRe.ReplaceAllString(s, "$1")
	s = strings.ReplaceAll(s, ",", " ")
	s = strings.ReplaceAll(s, ". ", " ")
	s = strings.ReplaceAll(s, "Sept ", "Sep ")
	s = strings.ReplaceAll(s, "sept ", "sep ")
	s = strings.TrimSuffix(s, ".")
	return strings.Join(strings.Fields(s), " ")
}

func parseDate(s string) (*time.Time, bool) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", " "))
	s = strings.Join(strings.Fields(s), " ")

	if m := slashRe.FindStringSubmatch(s); m != nil {
		a, _ := strconv.Atoi(m[1])
		b, _ := strconv.Atoi(m[2])
		y, _ := strconv.Atoi(m[3])
		switch {
		case a > 12 && b <= 12:
			return dateOf(y, b, a)
		case b > 12 && a <= 12:
			return dateOf(y, a, b)
		default:
			// both halves fit a month
			return nil, false
		}
	}

	for _, layout := range deadlineLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		return dateOf(t.Year(), int(t.Month()), t.Day())
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return dateOf(t.Year(), int(t.Month()), t.Day())
	}
	return nil, false
}

func dateOf(year, month, day int) (*time.Time, bool) {
	if year < 1990 || year > 2100 || month < 1 || month > 12 || day < 1 || day > 31 {
		return nil, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// reject overflow like 31 February
	if t.Day() != day {
		return nil, false
	}
	return &t, true
}
