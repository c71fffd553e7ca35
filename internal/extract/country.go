package extract

import (
	"strings"

	"github.com/antzucaro/matchr"
	lru "github.com/hashicorp/golang-lru/v2"

	"phdhunt-engine/internal/domain"
)

type country struct {
	Name    string
	Region  domain.Region
	Aliases []string
}

var countries = []country{
	{"Austria", domain.RegionEurope, []string{"österreich"}},
	{"Belgium", domain.RegionEurope, []string{"belgique", "belgië"}},
	{"Bulgaria", domain.RegionEurope, nil},
	{"Croatia", domain.RegionEurope, nil},
	{"Cyprus", domain.RegionEurope, nil},
	{"Czech Republic", domain.RegionEurope, []string{"czechia"}},
	{"Denmark", domain.RegionEurope, []string{"danmark"}},
	{"Estonia", domain.RegionEurope, nil},
	{"Finland", domain.RegionEurope, []string{"suomi"}},
	{"France", domain.RegionEurope, nil},
	{"Germany", domain.RegionEurope, []string{"deutschland"}},
	{"Greece", domain.RegionEurope, nil},
	{"Hungary", domain.RegionEurope, nil},
	{"Iceland", domain.RegionEurope, nil},
	{"Ireland", domain.RegionEurope, []string{"republic of ireland"}},
	{"Italy", domain.RegionEurope, []string{"italia"}},
	{"Latvia", domain.RegionEurope, nil},
	{"Lithuania", domain.RegionEurope, nil},
	{"Luxembourg", domain.RegionEurope, nil},
	{"Malta", domain.RegionEurope, nil},
	{"Netherlands", domain.RegionEurope, []string{"the netherlands", "holland", "nederland"}},
	{"Norway", domain.RegionEurope, []string{"norge"}},
	{"Poland", domain.RegionEurope, []string{"polska"}},
	{"Portugal", domain.RegionEurope, nil},
	{"Romania", domain.RegionEurope, nil},
	{"Serbia", domain.RegionEurope, nil},
	{"Slovakia", domain.RegionEurope, nil},
	{"Slovenia", domain.RegionEurope, nil},
	{"Spain", domain.RegionEurope, []string{"españa"}},
	{"Sweden", domain.RegionEurope, []string{"sverige"}},
	{"Switzerland", domain.RegionEurope, []string{"schweiz", "suisse"}},
	{"Turkey", domain.RegionEurope, []string{"türkiye"}},
	{"Ukraine", domain.RegionEurope, nil},
	{"United Kingdom", domain.RegionEurope, []string{"uk", "u.k.", "great britain", "britain", "england", "scotland", "wales", "northern ireland"}},

	{"Australia", domain.RegionAustralia, nil},
	{"New Zealand", domain.RegionAustralia, nil},

	{"United States", domain.RegionNorthAmerica, []string{"usa", "u.s.a.", "us", "u.s.", "united states of america", "america"}},
	{"Canada", domain.RegionNorthAmerica, nil},
	{"Mexico", domain.RegionNorthAmerica, []string{"méxico"}},

	{"China", domain.RegionAsia, []string{"prc", "people's republic of china", "mainland china"}},
	{"Hong Kong", domain.RegionAsia, []string{"hong kong sar"}},
	{"Japan", domain.RegionAsia, nil},
	{"South Korea", domain.RegionAsia, []string{"korea", "republic of korea"}},
	{"Singapore", domain.RegionAsia, nil},
	{"Taiwan", domain.RegionAsia, nil},
	{"India", domain.RegionAsia, nil},
	{"Malaysia", domain.RegionAsia, nil},
	{"Thailand", domain.RegionAsia, nil},
	{"Vietnam", domain.RegionAsia, []string{"viet nam"}},
	{"Indonesia", domain.RegionAsia, nil},
	{"Saudi Arabia", domain.RegionAsia, nil},
	{"United Arab Emirates", domain.RegionAsia, []string{"uae"}},
	{"Qatar", domain.RegionAsia, nil},

	{"Israel", domain.RegionOther, nil},
	{"Brazil", domain.RegionOther, []string{"brasil"}},
	{"Chile", domain.RegionOther, nil},
	{"Argentina", domain.RegionOther, nil},
	{"South Africa", domain.RegionOther, nil},
	{"Egypt", domain.RegionOther, nil},
}

// fuzzyThreshold is the minimum Jaro-Winkler similarity for a misspelled
// country ("Germnay") to resolve.
const fuzzyThreshold = 0.93

type countryHit struct {
	c  country
	ok bool
}

type countryIndex struct {
	byKey map[string]country
	cache *lru.Cache[string, countryHit]
}

func newCountryIndex(size int) (*countryIndex, error) {
	cache, err := lru.New[string, countryHit](size)
	if err != nil {
		return nil, err
	}
	ci := &countryIndex{byKey: map[string]country{}, cache: cache}
	for _, c := range countries {
		ci.byKey[strings.ToLower(c.Name)] = c
		for _, a := range c.Aliases {
			ci.byKey[a] = c
		}
	}
	return ci, nil
}

func countryKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Trim(s, " ,;:()[]")
	s = strings.TrimPrefix(s, "the ")
	return strings.Join(strings.Fields(s), " ")
}

func (ci *countryIndex) resolve(s string) (country, bool) {
	key := countryKey(s)
	if key == "" {
		return country{}, false
	}
	if hit, ok := ci.cache.Get(key); ok {
		return hit.c, hit.ok
	}
	c, ok := ci.lookup(key)
	ci.cache.Add(key, countryHit{c: c, ok: ok})
	return c, ok
}

func (ci *countryIndex) lookup(key string) (country, bool) {
	if c, ok := ci.byKey[key]; ok {
		return c, true
	}
	if c, ok := ci.byKey["the "+key]; ok {
		return c, true
	}
	// short keys ("us", "uk", "pl") only match exactly
	if len(key) < 5 {
		return country{}, false
	}

	var best country
	var bestSim float64
	for k, c := range ci.byKey {
		if len(k) < 5 {
			continue
		}
		sim := matchr.JaroWinkler(key, k, false)
		if sim > bestSim || (sim == bestSim && c.Name < best.Name) {
			bestSim = sim
			best = c
		}
	}
	if bestSim >= fuzzyThreshold {
		return best, true
	}
	return country{}, false
}

// ResolveCountry maps free text such as "the Netherlands", "UK" or a
// misspelling to a canonical country name and its region.
func (e *Extractor) ResolveCountry(s string) (string, domain.Region, bool) {
	c, ok := e.countries.resolve(s)
	if !ok {
		return "", "", false
	}
	return c.Name, c.Region, true
}

// findCountry scans text for the earliest canonical country name that
// appears as a whole word. Aliases are skipped; "us" and "america" occur in
// ordinary prose.
func (e *Extractor) findCountry(text string) (string, domain.Region, bool) {
	low := strings.ToLower(text)
	bestAt := -1
	var best country
	for _, c := range countries {
		i := indexWord(low, strings.ToLower(c.Name), true)
		if i < 0 {
			continue
		}
		// longer name wins when two start at the same offset
		if bestAt < 0 || i < bestAt || (i == bestAt && len(c.Name) > len(best.Name)) {
			bestAt = i
			best = c
		}
	}
	if bestAt < 0 {
		return "", "", false
	}
	return best.Name, best.Region, true
}
