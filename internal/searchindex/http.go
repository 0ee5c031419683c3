package searchindex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rohmanhakim/connector-etl/internal/pipeline"
	"github.com/rohmanhakim/connector-etl/pkg/failure"
)

/*
Responsibilities

- Speak the Solr-style JSON update API: POST /update for batches,
  POST /update with a commit body for the durability barrier
- Classify transport and status failures as retryable or not; the retry
  loop itself belongs to the Publisher

The client holds no batch state. One value is shared by all Publish
workers.
*/

// HTTPIndex is the production Index implementation over a configured
// endpoint.
type HTTPIndex struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPIndex builds an HTTPIndex for baseURL, e.g.
// "http://solr:8983/solr/corpus".
func NewHTTPIndex(baseURL string, timeout time.Duration) *HTTPIndex {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPIndex{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// NewHTTPIndexWithClient injects the HTTP client, for tests.
func NewHTTPIndexWithClient(baseURL string, httpClient *http.Client) *HTTPIndex {
	return &HTTPIndex{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

func (x *HTTPIndex) UpsertBatch(ctx context.Context, docs []*pipeline.Document) failure.ClassifiedError {
	if len(docs) == 0 {
		return nil
	}
	payload := make([]map[string]any, 0, len(docs))
	for _, doc := range docs {
		payload = append(payload, docToUpdate(doc))
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return &IndexError{Cause: ErrCauseEncodingFailed, Message: err.Error(), Retryable: false}
	}
	return x.post(ctx, x.baseURL+"/update", raw, ErrCauseRejected)
}

func (x *HTTPIndex) Commit(ctx context.Context) failure.ClassifiedError {
	return x.post(ctx, x.baseURL+"/update", []byte(`{"commit":{}}`), ErrCauseCommitFailed)
}

// SchemaFragment renders the Solr-style field element for one schema
// field.
func (x *HTTPIndex) SchemaFragment(field FieldSchema) string {
	fieldType := "string"
	if field.Text {
		fieldType = "text_general"
	}
	var b strings.Builder
	fmt.Fprintf(&b, `<field name=%q type=%q`, field.Name, fieldType)
	fmt.Fprintf(&b, ` indexed="%t" stored="%t" multiValued="%t"`, field.Indexed, field.Stored, field.MultiValued)
	if field.Text {
		fmt.Fprintf(&b, ` tokenized="%t"`, field.Tokenized)
	}
	b.WriteString("/>")
	return b.String()
}

func (x *HTTPIndex) post(ctx context.Context, url string, body []byte, rejectCause IndexErrorCause) failure.ClassifiedError {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return &IndexError{Cause: ErrCauseEncodingFailed, Message: err.Error(), Retryable: false}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := x.httpClient.Do(req)
	if err != nil {
		return &IndexError{Cause: ErrCauseUnreachable, Message: err.Error(), Retryable: true}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	message := fmt.Sprintf("%s: %s", resp.Status, strings.TrimSpace(string(detail)))
	if resp.StatusCode >= 500 {
		return &IndexError{Cause: ErrCauseUnreachable, Message: message, Retryable: true}
	}
	return &IndexError{Cause: rejectCause, Message: message, Retryable: false}
}

// docToUpdate flattens a Document into the JSON object the index ingests.
// Multi-value fields are split on their configured delimiter so the index
// receives a real array.
func docToUpdate(doc *pipeline.Document) map[string]any {
	update := map[string]any{
		"id":   doc.NSDId,
		"type": string(doc.Type),
		"name": doc.Name,
	}
	if doc.Title != "" {
		update["title"] = doc.Title
	}
	if doc.ParentNSDId != "" {
		update["parent_id"] = doc.ParentNSDId
	}
	for name, field := range doc.Fields {
		if field.Flags.IsHidden {
			continue
		}
		if field.Flags.IsMultiValue && field.Flags.MVDelimiter != "" {
			update[name] = strings.Split(field.Value, field.Flags.MVDelimiter)
			continue
		}
		update[name] = field.Value
	}
	return update
}

var _ Index = (*HTTPIndex)(nil)
