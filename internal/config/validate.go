package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"phdhunt-engine/internal/domain"
)

type Validation struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (v *Validation) addErr(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}
func (v *Validation) addWarn(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}
func (v Validation) OK() bool { return len(v.Errors) == 0 }

// Err folds the errors into one error, or nil when the config is usable.
func (v Validation) Err() error {
	if v.OK() {
		return nil
	}
	return errors.New("config validation failed:\n- " + strings.Join(v.Errors, "\n- "))
}

var timeOfDayRe = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

// NormalizeAndValidate returns a normalized copy of cfg along with
// every problem found. Warnings never block a run.
func NormalizeAndValidate(cfg Config) (Config, Validation) {
	var out = cfg
	var res Validation

	trimList := func(xs []string, lower bool) []string {
		seen := map[string]bool{}
		var ys []string
		for _, x := range xs {
			x = strings.TrimSpace(x)
			if x == "" {
				continue
			}
			key := strings.ToLower(x)
			if seen[key] {
				continue
			}
			seen[key] = true
			if lower {
				x = key
			}
			ys = append(ys, x)
		}
		return ys
	}

	// Normalize common lists
	out.Sources.Enabled = trimList(out.Sources.Enabled, true)
	out.Events.KafkaBrokers = trimList(out.Events.KafkaBrokers, false)

	kw := make(map[string][]string, len(out.Classify.FundingKeywords))
	for k, terms := range out.Classify.FundingKeywords {
		kw[strings.ToLower(strings.TrimSpace(k))] = trimList(terms, true)
	}
	out.Classify.FundingKeywords = kw

	rules := make([]Rule, 0, len(out.Classify.Disciplines))
	for _, r := range out.Classify.Disciplines {
		rules = append(rules, Rule{Tag: strings.TrimSpace(r.Tag), Any: trimList(r.Any, true)})
	}
	out.Classify.Disciplines = rules

	// ---- Validation rules ----

	if out.App.Port <= 0 || out.App.Port > 65535 {
		res.addErr("app.port must be 1..65535")
	}

	switch out.Store.Driver {
	case "sqlite", "libsql":
	default:
		res.addErr("store.driver must be sqlite or libsql, got %q", out.Store.Driver)
	}
	if out.Store.Driver == "libsql" && strings.TrimSpace(out.Store.DSN) == "" {
		res.addErr("store.dsn is required when store.driver=libsql")
	}

	switch out.Lock.Backend {
	case "file", "none":
	case "redis":
		if strings.TrimSpace(out.Lock.RedisAddr) == "" {
			res.addErr("lock.redis_addr is required when lock.backend=redis")
		}
		if out.Lock.TTLSeconds <= 0 {
			res.addErr("lock.ttl_seconds must be > 0")
		}
	default:
		res.addErr("lock.backend must be file, redis or none, got %q", out.Lock.Backend)
	}

	// scrape sanity
	s := out.Scrape
	if s.MaxPages <= 0 {
		res.addErr("scrape.max_pages must be > 0")
	}
	if s.RequestDelaySeconds < 0 {
		res.addErr("scrape.request_delay_seconds must be >= 0")
	} else if s.RequestDelaySeconds < 1 {
		res.addWarn("scrape.request_delay_seconds is very low (%.2f) and may get the engine blocked.", s.RequestDelaySeconds)
	}
	if s.RequestTimeoutSeconds <= 0 {
		res.addErr("scrape.request_timeout_seconds must be > 0")
	}
	if s.MaxRetries < 0 {
		res.addErr("scrape.max_retries must be >= 0")
	}
	if s.RetryBackoffMS < 0 || s.RetryMaxBackoffMS < s.RetryBackoffMS {
		res.addErr("scrape.retry_backoff_ms must be >= 0 and <= retry_max_backoff_ms")
	}
	if s.MaxConsecutiveFailures <= 0 {
		res.addErr("scrape.max_consecutive_failures must be > 0")
	}
	if s.Workers <= 0 {
		res.addErr("scrape.workers must be > 0")
	}

	// sources
	if len(out.Sources.Enabled) == 0 {
		res.addWarn("sources.enabled is empty; runs will collect nothing.")
	}
	for _, name := range out.Sources.Enabled {
		src := domain.SourceName(name)
		if !src.Valid() {
			res.addErr("sources.enabled: unknown source %q", name)
			continue
		}
		sc, _ := out.Source(src)
		if sc.MaxPages < 0 {
			res.addErr("sources.%s.max_pages must be >= 0", name)
		}
		if len(sc.Feeds) == 0 {
			res.addErr("sources.%s.feeds must have at least 1 feed", name)
		}
		for i, f := range sc.Feeds {
			if !strings.HasPrefix(f.URL, "http://") && !strings.HasPrefix(f.URL, "https://") {
				res.addErr("sources.%s.feeds[%d].url must be an http(s) URL", name, i)
			}
			if !domain.Region(f.Region).Valid() {
				res.addErr("sources.%s.feeds[%d].region: unknown region %q", name, i, f.Region)
			}
		}
		if src == domain.SourceFindAPhD {
			res.addWarn("findaphd renders most results client-side; expect few or no listings.")
		}
	}

	// classify
	for k, terms := range out.Classify.FundingKeywords {
		ft := domain.FundingType(k)
		if !ft.Valid() || ft == domain.FundingUnknown {
			res.addErr("classify.funding_keywords: unknown funding type %q", k)
		}
		if len(terms) == 0 {
			res.addErr("classify.funding_keywords.%s must have at least 1 term", k)
		}
	}
	for i, r := range out.Classify.Disciplines {
		if r.Tag == "" {
			res.addErr("classify.disciplines[%d].tag is required", i)
		}
		if len(r.Any) == 0 {
			res.addErr("classify.disciplines[%d].any must have at least 1 term", i)
		}
	}

	// schedule
	if out.Schedule.Enabled {
		if !timeOfDayRe.MatchString(out.Schedule.TimeOfDay) {
			res.addErr("schedule.time_of_day must be HH:MM, got %q", out.Schedule.TimeOfDay)
		}
		if _, err := time.LoadLocation(out.Schedule.Timezone); err != nil {
			res.addErr("schedule.timezone: %v", err)
		}
	}

	if len(out.Events.KafkaBrokers) > 0 && strings.TrimSpace(out.Events.KafkaTopic) == "" {
		res.addErr("events.kafka_topic is required when kafka_brokers is set")
	}

	switch out.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		res.addWarn("logging.level %q is unknown; using info.", out.Logging.Level)
	}

	return out, res
}

func Validate(cfg Config) error {
	_, res := NormalizeAndValidate(cfg)
	return res.Err()
}
