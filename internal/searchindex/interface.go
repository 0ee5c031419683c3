package searchindex

import (
	"context"

	"github.com/rohmanhakim/connector-etl/internal/pipeline"
	"github.com/rohmanhakim/connector-etl/pkg/failure"
)

// Index is the narrow publisher-facing capability over the downstream
// search index.
type Index interface {
	// UpsertBatch submits docs as one update. Idempotent on NSD-Id: the
	// index treats equal ids as upsert.
	UpsertBatch(ctx context.Context, docs []*pipeline.Document) failure.ClassifiedError

	// Commit is the durability barrier: documents upserted before a
	// successful Commit survive an index restart.
	Commit(ctx context.Context) failure.ClassifiedError

	// SchemaFragment renders the per-field XML fragment used when
	// publishing schema.
	SchemaFragment(field FieldSchema) string
}
