package types

import (
	"net/url"
	"strings"

	"phdhunt-engine/internal/config"
	"phdhunt-engine/internal/domain"
)

// FeedsFrom turns a source's configured feeds into Feeds labeled by their
// path and query ("PhD-scholarships-in-Germany").
func FeedsFrom(cfg config.SourceConfig) []Feed {
	out := make([]Feed, 0, len(cfg.Feeds))
	for _, f := range cfg.Feeds {
		out = append(out, Feed{Label: feedLabel(f.URL), Region: domain.Region(f.Region), URL: f.URL})
	}
	return out
}

func feedLabel(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	label := strings.Trim(u.Path, "/")
	if u.RawQuery != "" {
		if label != "" {
			label += "?"
		}
		label += u.RawQuery
	}
	if label == "" {
		return u.Host
	}
	return label
}
