package web

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/rohmanhakim/connector-etl/internal/extract"
	"github.com/rohmanhakim/connector-etl/internal/fetcher"
	"github.com/rohmanhakim/connector-etl/internal/frontier"
	"github.com/rohmanhakim/connector-etl/internal/metadata"
	"github.com/rohmanhakim/connector-etl/internal/pipeline"
	"github.com/rohmanhakim/connector-etl/internal/robots"
	"github.com/rohmanhakim/connector-etl/internal/urimatch"
	"github.com/rohmanhakim/connector-etl/pkg/failure"
	"github.com/rohmanhakim/connector-etl/pkg/hashutil"
	"github.com/rohmanhakim/connector-etl/pkg/limiter"
	"github.com/rohmanhakim/connector-etl/pkg/retry"
	"github.com/rohmanhakim/connector-etl/pkg/urlutil"
)

/*
Responsibilities

- Walk start/follow URIs breadth-first, honoring the URI Matcher's
  classification and robots.txt
- Fetch each page through HtmlFetcher, politeness-governed by a
  per-host ConcurrentRateLimiter and a whole-crawl rate.Limiter
- Emit one Document per fetched page, carrying the raw HTML for the
  Transformer instead of writing a markdown file directly

The web Extractor never parses DOM structure beyond link discovery; body
scoring and sanitization belong to the Transformer (C4).
*/

type frontierItem struct {
	uri   string
	depth int
}

// WebExtractor implements extract.Extractor over one or more http(s)
// start URIs.
type WebExtractor struct {
	matcher      *urimatch.Matcher
	fetcher      fetcher.Fetcher
	robot        robots.CachedRobot
	rateLimiter  *limiter.ConcurrentRateLimiter
	governor     *limiter.Governor
	metadataSink metadata.MetadataSink

	userAgent  string
	maxDepth   int
	jsAware    bool
	retryParam retry.RetryParam
}

// Params bundles the knobs config.Config exposes for the web extractor.
type Params struct {
	UserAgent  string
	MaxDepth   int
	JsAware    bool
	PoliteMs   time.Duration
	GovernorRPS float64
	GovernorBurst int
	RetryParam retry.RetryParam
}

// New wires a WebExtractor from the fetcher/robots/limiter stack plus
// the whole-crawl governor.
func New(matcher *urimatch.Matcher, metadataSink metadata.MetadataSink, p Params) *WebExtractor {
	rl := limiter.NewConcurrentRateLimiter()
	rl.SetBaseDelay(p.PoliteMs)

	robot := robots.NewCachedRobot(metadataSink)
	robot.Init(p.UserAgent)

	htmlFetcher := fetcher.NewHtmlFetcher(metadataSink)

	return &WebExtractor{
		matcher:      matcher,
		fetcher:      &htmlFetcher,
		robot:        robot,
		rateLimiter:  rl,
		governor:     limiter.NewGovernor(p.GovernorRPS, p.GovernorBurst),
		metadataSink: metadataSink,
		userAgent:    p.UserAgent,
		maxDepth:     p.MaxDepth,
		jsAware:      p.JsAware,
		retryParam:   p.RetryParam,
	}
}

// Run performs the breadth-first crawl, staging one Document per fetched
// page until the frontier drains or run is aborted.
func (w *WebExtractor) Run(ctx context.Context, run *pipeline.CrawlRun, sink extract.Sink) failure.ClassifiedError {
	if w.jsAware {
		return failure.New(failure.KindNotImplemented, string(ErrCauseJsAwareUnset))
	}

	workList := frontier.NewCrawlFrontier()
	workList.Init(w.maxDepth, 0)

	for _, start := range w.matcher.Starts() {
		if !strings.HasPrefix(start, "http://") && !strings.HasPrefix(start, "https://") {
			continue
		}
		parsed, err := url.Parse(start)
		if err != nil {
			continue
		}
		workList.Submit(frontier.NewCrawlAdmissionCandidate(
			*parsed, frontier.SourceSeed, frontier.NewDiscoveryMetadata(0, nil)))
	}

	for {
		if run.AbortRequested() {
			return failure.New(failure.KindAborted, "web extractor stopped: abort requested")
		}
		select {
		case <-ctx.Done():
			return failure.Wrap(failure.KindAborted, "web extractor stopped: context done", ctx.Err())
		default:
		}

		token, ok := workList.Dequeue()
		if !ok {
			break
		}
		item := frontierItem{uri: token.URL().String(), depth: token.Depth()}

		links, extractErr := w.visit(ctx, item, sink)
		if extractErr != nil {
			w.metadataSink.RecordError(
				time.Now(),
				"extract/web",
				"WebExtractor.Run",
				metadata.CauseNetworkFailure,
				extractErr.Error(),
				[]metadata.Attribute{metadata.NewAttr(metadata.AttrURL, item.uri)},
			)
			continue
		}

		for _, link := range links {
			decision := w.matcher.Classify(link)
			if decision.Classification != urimatch.Start && decision.Classification != urimatch.Follow {
				continue
			}
			parsed, err := url.Parse(link)
			if err != nil {
				continue
			}
			// the frontier enforces dedup and the depth limit
			workList.Submit(frontier.NewCrawlAdmissionCandidate(
				*parsed, frontier.SourceCrawl, frontier.NewDiscoveryMetadata(item.depth+1, nil)))
		}
	}
	return nil
}

func (w *WebExtractor) visit(ctx context.Context, item frontierItem, sink extract.Sink) ([]string, failure.ClassifiedError) {
	parsed, err := url.Parse(item.uri)
	if err != nil {
		return nil, &WebExtractError{Cause: ErrCauseFetchExhausted, URL: item.uri, Message: err.Error()}
	}
	host := parsed.Hostname()

	robotsDecision, rerr := w.robot.Decide(*parsed)
	if rerr == nil && !robotsDecision.Allowed {
		return nil, &WebExtractError{Cause: ErrCauseRobotsDenied, URL: item.uri, Message: string(robotsDecision.Reason)}
	}
	if robotsDecision.CrawlDelay > 0 {
		w.rateLimiter.SetCrawlDelay(host, robotsDecision.CrawlDelay)
	}

	if wait := w.rateLimiter.ResolveDelay(host); wait > 0 {
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, &WebExtractError{Cause: ErrCauseFetchExhausted, URL: item.uri, Message: ctx.Err().Error()}
		}
	}
	if err := w.governor.Wait(ctx); err != nil {
		return nil, &WebExtractError{Cause: ErrCauseFetchExhausted, URL: item.uri, Message: err.Error()}
	}

	fetchParam := fetcher.NewFetchParam(*parsed, w.userAgent)
	result, ferr := w.fetcher.Fetch(ctx, item.depth, fetchParam, w.retryParam)
	w.rateLimiter.MarkLastFetchAsNow(host)
	if ferr != nil {
		w.rateLimiter.Backoff(host)
		return nil, &WebExtractError{Cause: ErrCauseFetchExhausted, URL: item.uri, Message: ferr.Error()}
	}
	w.rateLimiter.ResetBackoff(host)

	body := result.Body()
	nsdID, hashErr := hashutil.HashBytes(body, hashutil.HashAlgoBLAKE3)
	if hashErr != nil {
		return nil, &WebExtractError{Cause: ErrCauseFetchExhausted, URL: item.uri, Message: hashErr.Error()}
	}

	doc := pipeline.NewDocument(nsdID, pipeline.TypeHTML, parsed.Path)
	doc.SetField("url", result.URL().String())
	doc.SetField("body_html", string(body))
	doc.SetField("http_status", strconv.Itoa(result.Code()))
	doc.SetField("content_type", result.Headers()["Content-Type"])
	doc.SetField("crawl_depth", strconv.Itoa(item.depth))
	doc.SetField("fetched_at", result.FetchedAt().Format(time.RFC3339))

	if err := sink.Stage(ctx, doc); err != nil {
		return nil, err
	}

	return discoverLinks(*parsed, body), nil
}

// discoverLinks resolves every anchor href against base using goquery,
// filtered to the same-document-set of reachable http(s) absolute URIs.
func discoverLinks(base url.URL, body []byte) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil
	}

	var links []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok || href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "javascript:") {
			return
		}
		resolved, err := urlutil.Resolve(base, href)
		if err != nil {
			return
		}
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			return
		}
		links = append(links, resolved.String())
	})
	return links
}
