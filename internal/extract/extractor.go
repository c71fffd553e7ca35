// Package extract turns loosely structured listing text into typed fields:
// funding category, discipline, deadline, country and region.
package extract

import (
	"fmt"
	"strings"

	"phdhunt-engine/internal/config"
	"phdhunt-engine/internal/domain"
)

type Extractor struct {
	funding     map[domain.FundingType][]string
	disciplines []config.Rule
	countries   *countryIndex
}

func New(cfg config.ClassifyConfig) (*Extractor, error) {
	e := &Extractor{funding: map[domain.FundingType][]string{}}

	for k, terms := range cfg.FundingKeywords {
		ft := domain.FundingType(strings.ToLower(strings.TrimSpace(k)))
		if !ft.Valid() || ft == domain.FundingUnknown {
			return nil, fmt.Errorf("extract: unknown funding type %q", k)
		}
		for _, t := range terms {
			if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
				e.funding[ft] = append(e.funding[ft], t)
			}
		}
	}

	for _, r := range cfg.Disciplines {
		rule := config.Rule{Tag: strings.TrimSpace(r.Tag)}
		for _, t := range r.Any {
			if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
				rule.Any = append(rule.Any, t)
			}
		}
		if rule.Tag != "" && len(rule.Any) > 0 {
			e.disciplines = append(e.disciplines, rule)
		}
	}

	ci, err := newCountryIndex(1024)
	if err != nil {
		return nil, err
	}
	e.countries = ci
	return e, nil
}
