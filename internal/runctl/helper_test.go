package runctl_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rohmanhakim/connector-etl/internal/config"
	"github.com/rohmanhakim/connector-etl/internal/extract"
	"github.com/rohmanhakim/connector-etl/internal/extract/fileshare"
	"github.com/rohmanhakim/connector-etl/internal/mail"
	"github.com/rohmanhakim/connector-etl/internal/metadata"
	"github.com/rohmanhakim/connector-etl/internal/pipeline"
	"github.com/rohmanhakim/connector-etl/internal/runctl"
	"github.com/rohmanhakim/connector-etl/internal/searchindex"
	"github.com/rohmanhakim/connector-etl/internal/transform"
	"github.com/rohmanhakim/connector-etl/internal/urimatch"
	"github.com/rohmanhakim/connector-etl/pkg/failure"
)

// fakeIndex counts upserts/commits and can fail on demand.
type fakeIndex struct {
	mu          sync.Mutex
	upserted    []string
	commits     int
	failUpserts int
}

func (f *fakeIndex) UpsertBatch(ctx context.Context, docs []*pipeline.Document) failure.ClassifiedError {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpserts > 0 {
		f.failUpserts--
		return &searchindex.IndexError{Cause: searchindex.ErrCauseUnreachable, Message: "down", Retryable: true}
	}
	for _, d := range docs {
		f.upserted = append(f.upserted, d.NSDId)
	}
	return nil
}

func (f *fakeIndex) Commit(ctx context.Context) failure.ClassifiedError {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commits++
	return nil
}

func (f *fakeIndex) SchemaFragment(field searchindex.FieldSchema) string { return "" }

func (f *fakeIndex) upsertCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.upserted)
}

func (f *fakeIndex) commitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.commits
}

// fakeNotifier records every outcome mail the controller sends.
type fakeNotifier struct {
	mu       sync.Mutex
	outcomes []mail.RunOutcome
}

func (f *fakeNotifier) NotifyRunOutcome(outcome mail.RunOutcome) failure.ClassifiedError {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes = append(f.outcomes, outcome)
	return nil
}

func (f *fakeNotifier) sent() []mail.RunOutcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]mail.RunOutcome(nil), f.outcomes...)
}

// faultyTransformer fails documents whose name matches, otherwise
// delegates to the real Transformer.
type faultyTransformer struct {
	inner    runctl.DocumentTransformer
	failName string
}

func (f *faultyTransformer) Apply(ctx context.Context, doc *pipeline.Document) failure.ClassifiedError {
	if doc.Name == f.failName {
		return &transform.TransformError{Cause: transform.ErrCauseBodyMalformed, DocID: doc.NSDId, Message: "injected fault"}
	}
	return f.inner.Apply(ctx, doc)
}

// scenarioEnv is one controller run's filesystem fixture.
type scenarioEnv struct {
	workDir   string
	shareDir  string
	cfg       config.Config
	index     *fakeIndex
	notifier  *fakeNotifier
	deps      runctl.Deps
}

// writeRuleFile writes one rule per line.
func writeRuleFile(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	content := ""
	for _, line := range lines {
		content += line + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// writeShareFile creates a file under the share directory, creating
// parent directories as needed.
func writeShareFile(t *testing.T, shareDir, rel, content string) string {
	t.Helper()
	path := filepath.Join(shareDir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// newScenario builds a file-share crawl fixture: workdir, share dir,
// rule files, config, fakes, and production-shaped deps.
func newScenario(t *testing.T, ignoreRules ...string) *scenarioEnv {
	t.Helper()

	workDir := t.TempDir()
	shareDir := t.TempDir()

	startFile := writeRuleFile(t, workDir, "start.txt", shareDir)
	followFile := writeRuleFile(t, workDir, "follow.txt", shareDir)
	ignoreFile := writeRuleFile(t, workDir, "ignore.txt", ignoreRules...)

	builder := config.NewBuilder().
		WithCrawlStartFile(startFile).
		WithCrawlFollowFile(followFile).
		WithCrawlIgnoreFile(ignoreFile).
		WithWorkDir(workDir).
		WithSearchIndexURL("http://index.test/solr/corpus").
		WithTimeout(10 * time.Second)
	cfg, err := builder.Build()
	require.NoError(t, err)

	index := &fakeIndex{}
	notifier := &fakeNotifier{}
	sink := &metadata.NoopSink{}
	transformer := transform.New(sink, nil, transform.Params{})

	deps := runctl.Deps{
		Config:       cfg,
		MetadataSink: sink,
		Index:        index,
		Notifier:     notifier,
		Transformer:  transformer,
		BuildExtractors: func(matcher *urimatch.Matcher) []extract.Extractor {
			return []extract.Extractor{fileshare.New(matcher, sink)}
		},
	}

	return &scenarioEnv{
		workDir:  workDir,
		shareDir: shareDir,
		cfg:      cfg,
		index:    index,
		notifier: notifier,
		deps:     deps,
	}
}
