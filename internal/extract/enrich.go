package extract

import (
	"phdhunt-engine/internal/domain"
)

// Enrich fills the fields of l that an adapter could not read from
// dedicated markup, using the listing's full text. It also canonicalizes the
// country, derives the region from it and classifies funding.
func (e *Extractor) Enrich(l *domain.Listing, text string) {
	f := e.ExtractFields(text)

	if l.Institution == "" {
		l.Institution = f.Institution
	}
	if l.Department == "" {
		l.Department = f.Department
	}
	if l.Country != "" {
		if name, region, ok := e.ResolveCountry(l.Country); ok {
			l.Country = name
			if l.Region == "" {
				l.Region = region
			}
		}
	} else if f.Country != "" {
		l.Country = f.Country
		if l.Region == "" {
			l.Region = f.Region
		}
	}
	if l.Discipline == "" {
		l.Discipline = f.Discipline
	}
	if l.DeadlineText == "" && l.Deadline == nil {
		l.DeadlineText = f.DeadlineText
		l.Deadline = f.Deadline
	} else if l.Deadline == nil {
		l.Deadline = ParseDeadline(l.DeadlineText)
	}
	if l.Supervisor == "" {
		l.Supervisor = f.Supervisor
	}
	if l.FundingType == "" || l.FundingType == domain.FundingUnknown {
		l.FundingType = e.ClassifyFunding(l.Title + "\n" + text)
	}
}
