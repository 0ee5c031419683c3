package fileshare

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rohmanhakim/connector-etl/internal/extract"
	"github.com/rohmanhakim/connector-etl/internal/metadata"
	"github.com/rohmanhakim/connector-etl/internal/pipeline"
	"github.com/rohmanhakim/connector-etl/internal/urimatch"
	"github.com/rohmanhakim/connector-etl/pkg/failure"
	"github.com/rohmanhakim/connector-etl/pkg/hashutil"
)

/*
Responsibilities

- Walk every filesystem start path, honoring the URI Matcher's
  classification (ignore regexes still apply to filesystem paths)
- Sniff each file's MIME type and expand CSV files into one Document
  per row, tagged with a ParentNSDId back to the source file
- Stage every discovered Document, same contract as the web adapter

The file share Extractor never parses non-CSV content; body extraction
for other file types is the Transformer's job once a format needs it.
*/

const sniffLen = 512

// FileShareExtractor implements extract.Extractor over one or more
// filesystem start paths.
type FileShareExtractor struct {
	matcher      *urimatch.Matcher
	metadataSink metadata.MetadataSink
}

// New wires a FileShareExtractor from the loaded URI Matcher.
func New(matcher *urimatch.Matcher, metadataSink metadata.MetadataSink) *FileShareExtractor {
	return &FileShareExtractor{matcher: matcher, metadataSink: metadataSink}
}

// Run walks every filesystem start path depth-first, in lexical order, via WalkDir,
// staging one Document per eligible file (or one per CSV row) until the
// tree is exhausted or run is aborted.
func (e *FileShareExtractor) Run(ctx context.Context, run *pipeline.CrawlRun, sink extract.Sink) failure.ClassifiedError {
	for _, start := range e.matcher.Starts() {
		if strings.HasPrefix(start, "http://") || strings.HasPrefix(start, "https://") {
			continue
		}
		if err := e.walkRoot(ctx, run, start, sink); err != nil {
			return err
		}
	}
	return nil
}

func (e *FileShareExtractor) walkRoot(ctx context.Context, run *pipeline.CrawlRun, root string, sink extract.Sink) failure.ClassifiedError {
	var aborted failure.ClassifiedError

	walkErr := filepath.WalkDir(root, func(path string, d os.DirEntry, statErr error) error {
		if run.AbortRequested() {
			aborted = failure.New(failure.KindAborted, "fileshare extractor stopped: abort requested")
			return filepath.SkipAll
		}
		select {
		case <-ctx.Done():
			aborted = failure.Wrap(failure.KindAborted, "fileshare extractor stopped: context done", ctx.Err())
			return filepath.SkipAll
		default:
		}
		if statErr != nil {
			e.recordWalkError(path, statErr)
			return nil
		}
		if d.IsDir() {
			return nil
		}
		decision := e.matcher.Classify(path)
		if decision.Classification == urimatch.Ignore {
			return nil
		}
		if run.CrawlType == pipeline.CrawlIncremental {
			if info, err := d.Info(); err == nil && !info.ModTime().After(run.LastIncrementalAt) {
				return nil
			}
		}
		if err := e.visit(ctx, path, sink); err != nil {
			if err.Severity() == failure.SeverityFatal {
				aborted = err
				return filepath.SkipAll
			}
			e.recordVisitError(path, err)
		}
		return nil
	})
	if aborted != nil {
		return aborted
	}
	if walkErr != nil {
		return &FileShareError{Cause: ErrCauseWalkFailed, Path: root, Message: walkErr.Error()}
	}
	return nil
}

func (e *FileShareExtractor) visit(ctx context.Context, path string, sink extract.Sink) failure.ClassifiedError {
	info, err := os.Stat(path)
	if err != nil {
		return &FileShareError{Cause: ErrCauseReadFailed, Path: path, Message: err.Error()}
	}

	f, err := os.Open(path)
	if err != nil {
		return &FileShareError{Cause: ErrCauseReadFailed, Path: path, Message: err.Error()}
	}
	defer f.Close()

	sniffBuf := make([]byte, sniffLen)
	n, _ := io.ReadFull(f, sniffBuf)
	contentType := http.DetectContentType(sniffBuf[:n])

	if isCSV(path, contentType) {
		return e.visitCSV(ctx, path, info, f, sink)
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return &FileShareError{Cause: ErrCauseReadFailed, Path: path, Message: err.Error()}
	}
	body, err := io.ReadAll(f)
	if err != nil {
		return &FileShareError{Cause: ErrCauseReadFailed, Path: path, Message: err.Error()}
	}

	nsdID, hashErr := hashutil.HashBytes(body, hashutil.HashAlgoBLAKE3)
	if hashErr != nil {
		return &FileShareError{Cause: ErrCauseReadFailed, Path: path, Message: hashErr.Error()}
	}

	doc := pipeline.NewDocument(nsdID, pipeline.TypeFile, filepath.Base(path))
	doc.SourcePath = path
	doc.ArrivalAt = time.Now().UnixMilli()
	doc.SetField("path", path)
	doc.SetField("content_type", contentType)
	doc.SetField("size_bytes", strconv.FormatInt(info.Size(), 10))
	doc.SetField("last_modified_ts", strconv.FormatInt(info.ModTime().UnixMilli(), 10))
	if isTextLike(contentType) {
		doc.SetField("body_text", string(body))
	}

	return sink.Stage(ctx, doc)
}

// visitCSV expands a CSV file into one Document per data row, each
// carrying ParentNSDId back to the source file's own Document id.
func (e *FileShareExtractor) visitCSV(ctx context.Context, path string, info os.FileInfo, f *os.File, sink extract.Sink) failure.ClassifiedError {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return &FileShareError{Cause: ErrCauseReadFailed, Path: path, Message: err.Error()}
	}

	parentID, hashErr := hashutil.HashBytes([]byte(path+strconv.FormatInt(info.ModTime().UnixMilli(), 10)), hashutil.HashAlgoBLAKE3)
	if hashErr != nil {
		return &FileShareError{Cause: ErrCauseReadFailed, Path: path, Message: hashErr.Error()}
	}

	parentDoc := pipeline.NewDocument(parentID, pipeline.TypeFile, filepath.Base(path))
	parentDoc.SourcePath = path
	parentDoc.ArrivalAt = time.Now().UnixMilli()
	parentDoc.SetField("path", path)
	parentDoc.SetField("content_type", "text/csv")
	parentDoc.SetField("size_bytes", strconv.FormatInt(info.Size(), 10))
	parentDoc.SetField("last_modified_ts", strconv.FormatInt(info.ModTime().UnixMilli(), 10))
	if err := sink.Stage(ctx, parentDoc); err != nil {
		return err
	}

	reader := csv.NewReader(bufio.NewReader(f))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return &FileShareError{Cause: ErrCauseCSVMalformed, Path: path, Message: err.Error()}
	}

	rowNum := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return &FileShareError{Cause: ErrCauseCSVMalformed, Path: path, Message: err.Error()}
		}
		rowNum++

		rowID, hashErr := hashutil.HashBytes([]byte(fmt.Sprintf("%s#%d", path, rowNum)), hashutil.HashAlgoBLAKE3)
		if hashErr != nil {
			return &FileShareError{Cause: ErrCauseCSVMalformed, Path: path, Message: hashErr.Error()}
		}

		rowDoc := pipeline.NewDocument(rowID, pipeline.TypeCSVRow, fmt.Sprintf("%s row %d", filepath.Base(path), rowNum))
		rowDoc.SourcePath = path
		rowDoc.ParentNSDId = parentID
		rowDoc.ArrivalAt = time.Now().UnixMilli()
		for i, value := range record {
			if i >= len(header) {
				break
			}
			rowDoc.SetField(header[i], value)
		}
		if err := sink.Stage(ctx, rowDoc); err != nil {
			return err
		}
	}
	return nil
}

func isCSV(path, contentType string) bool {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return true
	}
	return strings.Contains(contentType, "csv")
}

func isTextLike(contentType string) bool {
	return strings.HasPrefix(contentType, "text/") || strings.Contains(contentType, "json") || strings.Contains(contentType, "xml")
}

func (e *FileShareExtractor) recordWalkError(path string, err error) {
	e.metadataSink.RecordError(time.Now(), "extract/fileshare", "FileShareExtractor.walkRoot",
		metadata.CauseStorageFailure, err.Error(),
		[]metadata.Attribute{metadata.NewAttr(metadata.AttrPath, path)})
}

func (e *FileShareExtractor) recordVisitError(path string, err failure.ClassifiedError) {
	e.metadataSink.RecordError(time.Now(), "extract/fileshare", "FileShareExtractor.visit",
		metadata.CauseContentInvalid, err.Error(),
		[]metadata.Attribute{metadata.NewAttr(metadata.AttrPath, path)})
}

var _ extract.Extractor = (*FileShareExtractor)(nil)
