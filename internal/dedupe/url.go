package dedupe

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/purell"
)

var ErrInvalidURL = errors.New("invalid source url")

const canonicalFlags = purell.FlagsSafe |
	purell.FlagRemoveDotSegments |
	purell.FlagRemoveDuplicateSlashes |
	purell.FlagRemoveTrailingSlash |
	purell.FlagRemoveFragment |
	purell.FlagSortQuery

func isTrackingParam(k string) bool {
	lk := strings.ToLower(k)
	if strings.HasPrefix(lk, "utm_") {
		return true
	}
	switch lk {
	case "gclid", "fbclid", "msclkid", "mc_cid", "mc_eid", "mkt_tok", "_ga", "_hsenc", "_hsmi":
		return true
	}
	return false
}

var (
	escapeRe     = regexp.MustCompile(`%[0-9a-fA-F]{2}`)
	dupSlashesRe = regexp.MustCompile(`/{2,}`)
)

// CanonicalURL is the dedup key for a listing. It lowercases scheme and host,
// drops the default port, fragment and tracking parameters, removes the
// trailing slash and sorts the query. Applying it to its own output is a no-op.
// Anything that is not an absolute http(s) URL returns ErrInvalidURL.
func CanonicalURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidURL
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	if (u.Scheme != "http" && u.Scheme != "https") || u.Hostname() == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}

	// drop common tracking params
	q := u.Query()
	for k := range q {
		if isTrackingParam(k) {
			q.Del(k)
		}
	}
	u.RawQuery = q.Encode()

	if u.RawPath == "" {
		return purell.NormalizeURL(u, canonicalFlags), nil
	}
	return keepEscapedPath(u)
}

// keepEscapedPath normalizes u like CanonicalURL but leaves the path in its
// escaped form. purell works on the decoded path, which would turn
// /a%2Fb into /a/b.
func keepEscapedPath(u *url.URL) (string, error) {
	esc := u.EscapedPath()
	esc = escapeRe.ReplaceAllStringFunc(esc, strings.ToUpper)
	esc = dupSlashesRe.ReplaceAllString(esc, "/")
	esc = strings.TrimSuffix(esc, "/")

	u.Path, u.RawPath = "", ""
	v, err := url.Parse(purell.NormalizeURL(u, canonicalFlags))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if v.Path, err = url.PathUnescape(esc); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	v.RawPath = esc
	return v.String(), nil
}
