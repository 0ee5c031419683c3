package urimatch

import (
	"bufio"
	"context"
	"crypto/tls"
	"io"
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/rohmanhakim/connector-etl/pkg/failure"
	"github.com/rohmanhakim/connector-etl/pkg/urlutil"
)

// Matcher holds the three ordered rule sequences, loaded once per run
// and treated as immutable thereafter.
type Matcher struct {
	start   []string
	follow  []string
	ignore  []*regexp.Regexp

	httpClient *http.Client
}

// New builds an empty Matcher; load rules with LoadStart/LoadFollow/
// LoadIgnore before calling Classify.
func New() *Matcher {
	return &Matcher{httpClient: &http.Client{Timeout: 10 * time.Second}}
}

// SetInsecureTLS opts the start validator into accepting any server
// certificate. Named opt-in (`insecure_tls`), default off.
func (m *Matcher) SetInsecureTLS(insecure bool) {
	if !insecure {
		return
	}
	m.httpClient.Transport = &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
	}
}

// LoadStart reads start-URI prefixes from path, one per line, `#`-comments
// stripped.
func (m *Matcher) LoadStart(path string) failure.ClassifiedError {
	lines, err := readRuleLines(path)
	if err != nil {
		return err
	}
	m.start = lines
	return nil
}

// LoadFollow reads follow-URI prefixes the same way as LoadStart.
func (m *Matcher) LoadFollow(path string) failure.ClassifiedError {
	lines, err := readRuleLines(path)
	if err != nil {
		return err
	}
	m.follow = lines
	return nil
}

// LoadIgnore reads ignore regex patterns, one per line, `#`-comments
// stripped, and compiles each with regexp.MustCompile's safe counterpart.
func (m *Matcher) LoadIgnore(path string) failure.ClassifiedError {
	lines, cerr := readRuleLines(path)
	if cerr != nil {
		return cerr
	}
	compiled := make([]*regexp.Regexp, 0, len(lines))
	for _, line := range lines {
		re, err := regexp.Compile(line)
		if err != nil {
			return &MatchError{
				Cause:   ErrCauseInvalidRegex,
				Message: err.Error(),
				URI:     line,
			}
		}
		compiled = append(compiled, re)
	}
	m.ignore = compiled
	return nil
}

// Classify normalizes uri, tests ignore regexes first (first match
// wins), then tests exact prefix against start[] then follow[]; returns
// Unknown otherwise. Empty input returns Unknown. Percent-decoding is
// not performed.
func (m *Matcher) Classify(uri string) Decision {
	if uri == "" {
		return Decision{URI: uri, Classification: Unknown}
	}
	normalized := urlutil.NormalizeURIOrPath(uri)

	for _, re := range m.ignore {
		if re.MatchString(normalized) {
			return Decision{URI: uri, Classification: Ignore, MatchedRule: re.String()}
		}
	}
	if rule, ok := matchPrefix(normalized, m.start); ok {
		return Decision{URI: uri, Classification: Start, MatchedRule: rule}
	}
	if rule, ok := matchPrefix(normalized, m.follow); ok {
		return Decision{URI: uri, Classification: Follow, MatchedRule: rule}
	}
	return Decision{URI: uri, Classification: Unknown}
}

// Starts returns the loaded start entries, for callers that need to seed
// the Extractor's initial frontier.
func (m *Matcher) Starts() []string {
	return append([]string(nil), m.start...)
}

// ValidateStarts checks every start entry is reachable: an http(s) entry
// must answer HEAD with a status in [200,206] or [300,304] (falling back
// to a ranged GET if the server 405s on HEAD); a filesystem entry must
// exist and be readable. The first unreachable entry is returned as a
// MatchError.
func (m *Matcher) ValidateStarts(ctx context.Context) failure.ClassifiedError {
	for _, s := range m.start {
		if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
			if err := m.validateHTTPStart(ctx, s); err != nil {
				return err
			}
			continue
		}
		if err := validateFilesystemStart(s); err != nil {
			return err
		}
	}
	return nil
}

func (m *Matcher) validateHTTPStart(ctx context.Context, uri string) failure.ClassifiedError {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, uri, nil)
	if err != nil {
		return &MatchError{Cause: ErrCauseStartUnreachable, Message: err.Error(), URI: uri}
	}
	resp, err := m.httpClient.Do(req)
	if err == nil {
		defer resp.Body.Close()
		if statusOK(resp.StatusCode) {
			return nil
		}
		if resp.StatusCode == http.StatusMethodNotAllowed {
			return m.validateHTTPStartRangedGet(ctx, uri)
		}
		return &MatchError{Cause: ErrCauseStartUnreachable, Message: resp.Status, URI: uri}
	}
	return &MatchError{Cause: ErrCauseStartUnreachable, Message: err.Error(), URI: uri}
}

func (m *Matcher) validateHTTPStartRangedGet(ctx context.Context, uri string) failure.ClassifiedError {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return &MatchError{Cause: ErrCauseStartUnreachable, Message: err.Error(), URI: uri}
	}
	req.Header.Set("Range", "bytes=0-0")
	resp, err := m.httpClient.Do(req)
	if err != nil {
		return &MatchError{Cause: ErrCauseStartUnreachable, Message: err.Error(), URI: uri}
	}
	defer resp.Body.Close()
	if !statusOK(resp.StatusCode) {
		return &MatchError{Cause: ErrCauseStartUnreachable, Message: resp.Status, URI: uri}
	}
	return nil
}

func statusOK(code int) bool {
	return (code >= 200 && code <= 206) || (code >= 300 && code <= 304)
}

func validateFilesystemStart(path string) failure.ClassifiedError {
	f, err := os.Open(path)
	if err != nil {
		return &MatchError{Cause: ErrCauseStartUnreachable, Message: err.Error(), URI: path}
	}
	f.Close()
	return nil
}

func matchPrefix(normalized string, rules []string) (string, bool) {
	for _, rule := range rules {
		if strings.HasPrefix(normalized, urlutil.NormalizeURIOrPath(rule)) {
			return rule, true
		}
	}
	return "", false
}

func readRuleLines(path string) ([]string, failure.ClassifiedError) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &MatchError{Cause: ErrCauseRuleFileUnreadable, Message: err.Error(), URI: path}
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		return nil, &MatchError{Cause: ErrCauseRuleFileUnreadable, Message: err.Error(), URI: path}
	}
	return lines, nil
}
