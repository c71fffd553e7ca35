package extract

import (
	"regexp"
	"strings"
	"time"

	"phdhunt-engine/internal/domain"
	"phdhunt-engine/internal/scrape/util"
)

// Fields are the values ExtractFields could find. Empty strings and a nil
// Deadline mean "not found".
type Fields struct {
	Institution  string
	Department   string
	Country      string
	Region       domain.Region
	Discipline   string
	Deadline     *time.Time
	DeadlineText string
	Supervisor   string
}

var (
	institutionLabels = []string{"host institution:", "institution:", "university:", "organisation/company:", "organization:", "organisation:", "employer:"}
	departmentLabels  = []string{"department:", "faculty:"}
	countryLabels     = []string{"country:", "work locations:", "work location:", "location:"}
	disciplineLabels  = []string{"research field:", "discipline:", "subject area:", "subject:"}
	deadlineLabels    = []string{"application deadline:", "closing date:", "deadline:", "apply by:"}
	supervisorLabels  = []string{"supervisors:", "supervisor:", "principal investigator:"}

	allLabels = concat(institutionLabels, departmentLabels, countryLabels, disciplineLabels,
		deadlineLabels, supervisorLabels, []string{"funding:", "salary:", "contract:", "start date:"})

	institutionRe = regexp.MustCompile(`(?:[A-Z][\p{L}'’&-]+\s+)*(?:University|Universität|Université|Universiteit|Universidad|Università|Institute|College)(?:\s+of(?:\s+[A-Z][\p{L}'’&-]+)+)?`)
	supervisorRe  = regexp.MustCompile(`(?:[Ss]upervised by|[Ss]upervision of|[Ss]upervisors?:?)\s*((?:[Pp]rof(?:essor)?\.?|[Dd]r\.?)\s+[A-Z][\p{L}'’.-]*(?:\s+[A-Z][\p{L}'’-]+){0,3})`)
)

func concat(groups ...[]string) []string {
	var out []string
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// asciiLower lowercases A-Z only, so byte offsets in the result line up
// with the input.
func asciiLower(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= 'A' && r <= 'Z' {
			return r + ('a' - 'A')
		}
		return r
	}, s)
}

// labeledValue extracts the text after the first matching "Label:" up to the
// next known label or line break.
func labeledValue(s, low string, labels []string) string {
	for _, lab := range labels {
		i := strings.Index(low, lab)
		if i < 0 {
			continue
		}
		start := i + len(lab)
		end := len(s)
		for _, cut := range []string{"\n", "\r", " | ", " · "} {
			if j := strings.Index(s[start:end], cut); j >= 0 {
				end = start + j
			}
		}
		for _, other := range allLabels {
			if j := strings.Index(low[start:end], other); j >= 0 {
				end = start + j
			}
		}
		v := strings.Trim(util.CleanText(s[start:end]), " ,;.")
		if v != "" && len(v) <= 160 {
			return v
		}
	}
	return ""
}

// ExtractFields pulls institution, department, country, discipline, deadline
// and supervisor out of loosely structured listing text. Labeled values
// ("Deadline: ...") win over patterns found in running prose.
func (e *Extractor) ExtractFields(text string) Fields {
	var f Fields
	low := asciiLower(text)

	f.Institution = labeledValue(text, low, institutionLabels)
	if f.Institution == "" {
		if m := institutionRe.FindString(text); len(m) <= 100 {
			f.Institution = util.CleanText(m)
		}
	}

	f.Department = labeledValue(text, low, departmentLabels)

	if v := labeledValue(text, low, countryLabels); v != "" {
		for _, part := range strings.Split(v, ",") {
			if name, region, ok := e.ResolveCountry(part); ok {
				f.Country, f.Region = name, region
				break
			}
		}
	}
	if f.Country == "" {
		if name, region, ok := e.findCountry(text); ok {
			f.Country, f.Region = name, region
		}
	}

	f.Discipline = labeledValue(text, low, disciplineLabels)
	if f.Discipline == "" {
		f.Discipline = e.DetectDiscipline(text)
	}

	if v := labeledValue(text, low, deadlineLabels); v != "" {
		f.DeadlineText = v
		f.Deadline = ParseDeadline(v)
	}

	if v := labeledValue(text, low, supervisorLabels); v != "" {
		if i := strings.Index(v, " ("); i > 0 {
			v = v[:i]
		}
		f.Supervisor = v
	} else if m := supervisorRe.FindStringSubmatch(text); m != nil {
		f.Supervisor = util.CleanText(m[1])
	}

	return f
}
