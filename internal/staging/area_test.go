package staging_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohmanhakim/connector-etl/internal/pipeline"
	"github.com/rohmanhakim/connector-etl/internal/staging"
	"github.com/rohmanhakim/connector-etl/pkg/failure"
)

func openArea(t *testing.T) *staging.Area {
	t.Helper()
	area, err := staging.Open(t.TempDir())
	require.Nil(t, err)
	t.Cleanup(func() { area.Close() })
	return area
}

func TestPutThenTakeRoundTripsDocument(t *testing.T) {
	area := openArea(t)

	doc := pipeline.NewDocument("abc123", pipeline.TypeFile, "a.txt")
	doc.SourcePath = "/tmp/corp/a.txt"
	doc.SetField("body_text", "hello")
	doc.SetFieldWithFlags("author", "someone", pipeline.FieldFlags{IsIndexed: true})

	require.Nil(t, area.Put(doc))

	got, err := area.Take("abc123")
	require.Nil(t, err)
	assert.Equal(t, "abc123", got.NSDId)
	assert.Equal(t, pipeline.TypeFile, got.Type)
	assert.Equal(t, "/tmp/corp/a.txt", got.SourcePath)
	assert.Equal(t, "hello", got.Fields["body_text"].Value)
	assert.True(t, got.Fields["author"].Flags.IsIndexed)
}

func TestTakeDeletesTheDocument(t *testing.T) {
	area := openArea(t)

	doc := pipeline.NewDocument("abc123", pipeline.TypeFile, "a.txt")
	require.Nil(t, area.Put(doc))

	_, err := area.Take("abc123")
	require.Nil(t, err)

	_, err = area.Take("abc123")
	require.NotNil(t, err)
	var stagingErr *staging.StagingError
	require.ErrorAs(t, err, &stagingErr)
	assert.Equal(t, staging.ErrCauseNotStaged, stagingErr.Cause)
}

func TestTakeMissingIDIsRecoverable(t *testing.T) {
	area := openArea(t)

	_, err := area.Take("never-staged")
	require.NotNil(t, err)
	assert.Equal(t, failure.SeverityRecoverable, err.Severity())
}

func TestPutIsIdempotentOnNSDId(t *testing.T) {
	area := openArea(t)

	first := pipeline.NewDocument("same-id", pipeline.TypeText, "v1")
	first.SetField("body_text", "old")
	require.Nil(t, area.Put(first))

	second := pipeline.NewDocument("same-id", pipeline.TypeText, "v2")
	second.SetField("body_text", "new")
	require.Nil(t, area.Put(second))

	n, lerr := area.Len()
	require.Nil(t, lerr)
	assert.Equal(t, 1, n)

	got, err := area.Take("same-id")
	require.Nil(t, err)
	assert.Equal(t, "new", got.Fields["body_text"].Value)
}
