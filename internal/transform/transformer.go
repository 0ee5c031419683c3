package transform

import (
	"context"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/rohmanhakim/connector-etl/internal/assets"
	"github.com/rohmanhakim/connector-etl/internal/extractor"
	"github.com/rohmanhakim/connector-etl/internal/mdconvert"
	"github.com/rohmanhakim/connector-etl/internal/metadata"
	"github.com/rohmanhakim/connector-etl/internal/normalize"
	"github.com/rohmanhakim/connector-etl/internal/pipeline"
	"github.com/rohmanhakim/connector-etl/internal/sanitizer"
	"github.com/rohmanhakim/connector-etl/internal/storage"
	"github.com/rohmanhakim/connector-etl/pkg/failure"
	"github.com/rohmanhakim/connector-etl/pkg/hashutil"
	"github.com/rohmanhakim/connector-etl/pkg/retry"
)

/*
Responsibilities

- Derive the document type from extension or URL heuristics
- Refine HTML bodies into indexable text: DOM content scoring, sanitization,
  Markdown conversion
- Apply the configured field mapping, deletion, and bag-copy rules
- Optionally archive a normalized Markdown rendition of each HTML document

Errors are recoverable: the document is dropped, the run continues.
*/

// Params bundles the knobs config.Config exposes for the Transformer.
type Params struct {
	Rules               Rules
	ExtractParam        extractor.ExtractParam
	Archive             ArchiveParam
	RetryParam          retry.RetryParam
	UserAgent           string
	AllowedPathPrefixes []string
	HashAlgo            hashutil.HashAlgo
}

// Transformer applies the C4 phase to one document at a time. It is
// stateless across documents, so a pool of workers can share one value.
type Transformer struct {
	rules        Rules
	archive      ArchiveParam
	domExtractor extractor.Extractor
	sanitizer    sanitizer.Sanitizer
	convertRule  mdconvert.ConvertRule
	resolver     assets.Resolver
	constraint   normalize.MarkdownConstraint
	storageSink  storage.Sink
	metadataSink metadata.MetadataSink

	retryParam          retry.RetryParam
	userAgent           string
	allowedPathPrefixes []string
	hashAlgo            hashutil.HashAlgo
}

// New wires a Transformer from the DOM scoring, sanitization, and
// conversion stack.
func New(metadataSink metadata.MetadataSink, resolver assets.Resolver, p Params) *Transformer {
	domExtractor := extractor.NewDomExtractor(metadataSink, p.ExtractParam)
	htmlSanitizer := sanitizer.NewHTMLSanitizer(metadataSink)
	convertRule := mdconvert.NewRule(metadataSink)
	constraint := normalize.NewMarkdownConstraint(metadataSink)
	localSink := storage.NewLocalSink(metadataSink)

	algo := p.HashAlgo
	if algo == "" {
		algo = hashutil.HashAlgoBLAKE3
	}

	return &Transformer{
		rules:               p.Rules,
		archive:             p.Archive,
		domExtractor:        &domExtractor,
		sanitizer:           &htmlSanitizer,
		convertRule:         convertRule,
		resolver:            resolver,
		constraint:          constraint,
		storageSink:         &localSink,
		metadataSink:        metadataSink,
		retryParam:          p.RetryParam,
		userAgent:           p.UserAgent,
		allowedPathPrefixes: p.AllowedPathPrefixes,
		hashAlgo:            algo,
	}
}

// NewWithDeps creates a Transformer with injected pipeline stages for
// testing, mirroring New's wiring otherwise.
func NewWithDeps(
	metadataSink metadata.MetadataSink,
	domExtractor extractor.Extractor,
	htmlSanitizer sanitizer.Sanitizer,
	convertRule mdconvert.ConvertRule,
	resolver assets.Resolver,
	p Params,
) *Transformer {
	constraint := normalize.NewMarkdownConstraint(metadataSink)
	localSink := storage.NewLocalSink(metadataSink)

	algo := p.HashAlgo
	if algo == "" {
		algo = hashutil.HashAlgoBLAKE3
	}

	return &Transformer{
		rules:               p.Rules,
		archive:             p.Archive,
		domExtractor:        domExtractor,
		sanitizer:           htmlSanitizer,
		convertRule:         convertRule,
		resolver:            resolver,
		constraint:          constraint,
		storageSink:         &localSink,
		metadataSink:        metadataSink,
		retryParam:          p.RetryParam,
		userAgent:           p.UserAgent,
		allowedPathPrefixes: p.AllowedPathPrefixes,
		hashAlgo:            algo,
	}
}

// Apply runs the transform phase on doc in place: typing, HTML body
// refinement, field mapping, deletion, bag copy. A returned error means
// the document must be dropped from the pipeline.
func (t *Transformer) Apply(ctx context.Context, doc *pipeline.Document) failure.ClassifiedError {
	doc.Type = DeriveType(doc)

	if doc.Type == pipeline.TypeHTML {
		if body, ok := doc.Fields["body_html"]; ok && body.Value != "" {
			if err := t.refineHTML(ctx, doc, []byte(body.Value)); err != nil {
				return err
			}
		}
	}

	for from, to := range t.rules.FieldMap {
		doc.RenameField(from, to)
	}
	for _, name := range t.rules.DeleteFields {
		doc.DeleteField(name)
	}
	if t.rules.BagCopyPrefix != "" {
		doc.CopyBag(t.rules.BagCopyPrefix)
	}
	return nil
}

// refineHTML runs the DOM scoring / sanitization / Markdown conversion
// chain over the raw fetched HTML and populates body_text and Title.
func (t *Transformer) refineHTML(ctx context.Context, doc *pipeline.Document, body []byte) failure.ClassifiedError {
	srcURL := t.sourceURL(doc)

	extraction, err := t.domExtractor.Extract(srcURL, body)
	if err != nil {
		return &TransformError{Cause: ErrCauseBodyMalformed, DocID: doc.NSDId, Message: err.Error()}
	}

	sanitized, err := t.sanitizer.Sanitize(extraction.ContentNode)
	if err != nil {
		return &TransformError{Cause: ErrCauseContentRejected, DocID: doc.NSDId, Message: err.Error()}
	}

	conv, err := t.convertRule.Convert(sanitized)
	if err != nil {
		return &TransformError{Cause: ErrCauseConversionFailed, DocID: doc.NSDId, Message: err.Error()}
	}

	doc.SetField("body_text", string(conv.GetMarkdownContent()))
	if doc.Title == "" {
		doc.Title = findTitle(extraction.DocumentRoot)
	}

	if t.archive.Enabled {
		t.archiveMarkdown(ctx, doc, srcURL, conv)
	}
	return nil
}

// archiveMarkdown persists the normalized Markdown rendition. Archive
// failures are observational only: the document still continues to the
// Publisher.
func (t *Transformer) archiveMarkdown(ctx context.Context, doc *pipeline.Document, srcURL url.URL, conv mdconvert.ConversionResult) {
	assetful := assets.NewAssetfulMarkdownDoc(conv.GetMarkdownContent(), nil, nil, nil)
	if t.archive.ResolveAssets && t.resolver != nil {
		resolveParam := assets.NewResolveParam(t.archive.Dir, 10<<20)
		resolved, err := t.resolver.Resolve(ctx, srcURL, conv, resolveParam, t.retryParam)
		if err == nil {
			assetful = resolved
		}
	}

	depth := 0
	if d, ok := doc.Fields["crawl_depth"]; ok {
		depth, _ = strconv.Atoi(d.Value)
	}
	normalizeParam := normalize.NewNormalizeParam(
		t.archive.AppVersion,
		time.Now(),
		t.hashAlgo,
		depth,
		t.allowedPathPrefixes,
	)

	normalized, err := t.constraint.Normalize(srcURL, assetful, normalizeParam)
	if err != nil {
		return
	}
	if _, err := t.storageSink.Write(t.archive.Dir, normalized, t.hashAlgo); err != nil {
		return
	}
}

func (t *Transformer) sourceURL(doc *pipeline.Document) url.URL {
	raw := doc.SourcePath
	if f, ok := doc.Fields["url"]; ok && f.Value != "" {
		raw = f.Value
	}
	if u, err := url.Parse(raw); err == nil {
		return *u
	}
	return url.URL{Path: doc.SourcePath}
}

// DeriveType maps a document to its type from file extension or URL
// heuristics. A document that matches nothing maps to Unknown.
func DeriveType(doc *pipeline.Document) pipeline.DocumentType {
	if doc.Type == pipeline.TypeCSVRow {
		return pipeline.TypeCSVRow
	}
	if _, ok := doc.Fields["body_html"]; ok {
		return pipeline.TypeHTML
	}

	ext := strings.ToLower(filepath.Ext(doc.SourcePath))
	switch ext {
	case ".html", ".htm":
		return pipeline.TypeHTML
	case ".txt", ".md", ".csv", ".json", ".xml", ".log":
		return pipeline.TypeText
	}

	if ct, ok := doc.Fields["content_type"]; ok {
		switch {
		case strings.Contains(ct.Value, "html"):
			return pipeline.TypeHTML
		case strings.HasPrefix(ct.Value, "text/"):
			return pipeline.TypeText
		}
	}

	if doc.Type != "" {
		return doc.Type
	}
	return pipeline.TypeUnknown
}

// findTitle walks the parsed document for the first <title> element's
// text.
func findTitle(root *html.Node) string {
	if root == nil {
		return ""
	}
	var walk func(*html.Node) string
	walk = func(n *html.Node) string {
		if n.Type == html.ElementNode && n.Data == "title" {
			var sb strings.Builder
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.TextNode {
					sb.WriteString(c.Data)
				}
			}
			return strings.TrimSpace(sb.String())
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if title := walk(c); title != "" {
				return title
			}
		}
		return ""
	}
	return walk(root)
}
