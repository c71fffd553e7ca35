package extract

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"phdhunt-engine/internal/domain"
)

func isWordRune(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }

// indexWord finds kw in text (both already lowercased) where the match starts
// on a word boundary and, if whole is set, also ends on one. Keywords that
// start or end with non-ASCII letters (CJK terms) skip the boundary check on
// that side, since those scripts don't separate words with spaces.
func indexWord(text, kw string, whole bool) int {
	if kw == "" {
		return -1
	}
	first, _ := utf8.DecodeRuneInString(kw)
	last, _ := utf8.DecodeLastRuneInString(kw)

	for from := 0; from <= len(text)-len(kw); {
		i := strings.Index(text[from:], kw)
		if i < 0 {
			return -1
		}
		i += from

		ok := true
		if first <= unicode.MaxASCII && isWordRune(first) && i > 0 {
			prev, _ := utf8.DecodeLastRuneInString(text[:i])
			ok = !isWordRune(prev)
		}
		if ok && whole && last <= unicode.MaxASCII && isWordRune(last) && i+len(kw) < len(text) {
			next, _ := utf8.DecodeRuneInString(text[i+len(kw):])
			ok = !isWordRune(next)
		}
		if ok {
			return i
		}
		_, size := utf8.DecodeRuneInString(text[i:])
		from = i + size
	}
	return -1
}

// ClassifyFunding picks the first funding category, in domain.FundingPrecedence
// order, with a keyword present in text as a whole word.
func (e *Extractor) ClassifyFunding(text string) domain.FundingType {
	low := strings.ToLower(text)
	for _, ft := range domain.FundingPrecedence {
		for _, kw := range e.funding[ft] {
			if indexWord(low, kw, true) >= 0 {
				return ft
			}
		}
	}
	return domain.FundingUnknown
}

// DetectDiscipline returns up to two discipline tags whose terms appear in
// text, in configured rule order. Terms may be stems ("biolog").
func (e *Extractor) DetectDiscipline(text string) string {
	low := strings.ToLower(text)
	var tags []string
	for _, r := range e.disciplines {
		for _, needle := range r.Any {
			if indexWord(low, needle, false) >= 0 {
				tags = append(tags, r.Tag)
				break
			}
		}
		if len(tags) == 2 {
			break
		}
	}
	return strings.Join(tags, ", ")
}
