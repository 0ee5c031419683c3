package robots

import (
	"context"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/rohmanhakim/connector-etl/internal/metadata"
	"github.com/rohmanhakim/connector-etl/internal/robots/cache"
)

/*
Responsibilities

- Fetch robots.txt per host
- Cache rules for crawl duration
- Decide allow/disallow for a URL when the crawler visits it

Robots checks occur when a dequeued URL is visited, after it has entered
the frontier.
*/

// CachedRobot is the Robot implementation: it fetches robots.txt through a
// RobotsFetcher (caching per host for the crawl's lifetime) and decides
// Allow/Disallow per Google's longest-match-wins, ties-to-allow rule.
type CachedRobot struct {
	metadataSink metadata.MetadataSink
	fetcher      *RobotsFetcher
	userAgent    string
}

// NewCachedRobot returns a CachedRobot holding only the metadata sink; call Init or
// InitWithCache before Decide.
func NewCachedRobot(metadataSink metadata.MetadataSink) CachedRobot {
	return CachedRobot{metadataSink: metadataSink}
}

// Init wires a default in-memory cache.
func (r *CachedRobot) Init(userAgent string) {
	r.InitWithCache(userAgent, cache.NewMemoryCache())
}

// InitWithCache wires a caller-supplied cache (nil disables caching).
func (r *CachedRobot) InitWithCache(userAgent string, c cache.Cache) {
	r.userAgent = userAgent
	r.fetcher = NewRobotsFetcher(r.metadataSink, userAgent, c)
}

// Decide fetches (or reuses the cached) robots.txt for target's host and
// evaluates it against target's path.
func (r *CachedRobot) Decide(target url.URL) (Decision, error) {
	result, err := r.fetcher.Fetch(context.Background(), schemeOf(target), target.Hostname())
	if err != nil {
		r.metadataSink.RecordError(
			time.Now(),
			"robots",
			"CachedRobot.Decide",
			mapRobotsErrorToMetadataCause(err),
			err.Error(),
			[]metadata.Attribute{metadata.NewAttr(metadata.AttrURL, target.String())},
		)
		return Decision{}, err
	}

	if result.Response.IsEmpty() {
		return Decision{Url: target, Allowed: true, Reason: EmptyRuleSet}, nil
	}

	rs := MapResponseToRuleSet(result.Response, r.userAgent, result.FetchedAt)

	if !rs.matchedGroup {
		return Decision{Url: target, Allowed: true, Reason: UserAgentNotMatched}, nil
	}

	path := target.EscapedPath()
	if path == "" {
		path = "/"
	}
	if target.RawQuery != "" {
		path += "?" + target.RawQuery
	}

	allowed, matched := decidePath(path, rs.allowRules, rs.disallowRules)

	decision := Decision{Url: target, Allowed: allowed}
	switch {
	case !matched:
		decision.Reason = NoMatchingRules
	case allowed:
		decision.Reason = AllowedByRobots
	default:
		decision.Reason = DisallowedByRobots
	}
	if rs.crawlDelay != nil {
		decision.CrawlDelay = *rs.crawlDelay
	}
	return decision, nil
}

func schemeOf(u url.URL) string {
	if u.Scheme == "" {
		return "https"
	}
	return u.Scheme
}

// decidePath applies the longest-matching-rule-wins policy (ties favor
// allow), per the robots.txt convention Google's spec documents.
func decidePath(path string, allows, disallows []pathRule) (allowed bool, matched bool) {
	bestLen := -1
	bestAllow := true

	consider := func(rules []pathRule, isAllow bool) {
		for _, rule := range rules {
			re, err := compilePathPattern(rule.prefix)
			if err != nil || !re.MatchString(path) {
				continue
			}
			length := len(rule.prefix)
			if length > bestLen || (length == bestLen && isAllow) {
				bestLen = length
				bestAllow = isAllow
				matched = true
			}
		}
	}
	consider(disallows, false)
	consider(allows, true)

	if !matched {
		return true, false
	}
	return bestAllow, true
}

// compilePathPattern translates a robots.txt path pattern ('*' wildcard,
// trailing '$' end-anchor) into a prefix-matching regexp.
func compilePathPattern(pattern string) (*regexp.Regexp, error) {
	anchored := strings.HasSuffix(pattern, "$")
	body := pattern
	if anchored {
		body = pattern[:len(pattern)-1]
	}

	var sb strings.Builder
	sb.WriteString("^")
	for _, part := range strings.Split(body, "*") {
		sb.WriteString(regexp.QuoteMeta(part))
		sb.WriteString(".*")
	}
	reStr := strings.TrimSuffix(sb.String(), ".*")
	if anchored {
		reStr += "$"
	}
	return regexp.Compile(reStr)
}
