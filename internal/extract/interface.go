package extract

import (
	"context"

	"github.com/rohmanhakim/connector-etl/internal/pipeline"
	"github.com/rohmanhakim/connector-etl/pkg/failure"
)

/*
Responsibilities

- Pull raw content from a source (file share or web)
- Stamp each item with its extraction phase time
- Hand the item to the staging sink for the Transformer to pick up

The Extractor never interprets content; it only discovers and fetches it.
*/

// Sink receives one freshly extracted Document at a time. Implementations
// persist it to the staging area and enqueue its id for the Transformer.
type Sink interface {
	Stage(ctx context.Context, doc *pipeline.Document) failure.ClassifiedError
}

// Extractor drives one source end-to-end for the lifetime of run,
// pushing every discovered Document through sink until the source is
// exhausted or run.AbortRequested() becomes true.
type Extractor interface {
	Run(ctx context.Context, run *pipeline.CrawlRun, sink Sink) failure.ClassifiedError
}
