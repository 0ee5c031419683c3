// Package pipeline holds the data model shared by every phase of the
// crawl pipeline: the Document field bag, the CrawlRun context, and the
// feature flags that travel with a field.
package pipeline

// DocumentType is derived by the Transformer from file extension or URL
// heuristics. Unknown is the safe fallback.
type DocumentType string

const (
	TypeUnknown  DocumentType = "Unknown"
	TypeHTML     DocumentType = "HTML"
	TypeText     DocumentType = "Text"
	TypeCSVRow   DocumentType = "CSVRow"
	TypeFile     DocumentType = "File"
)

// FieldFlags are the per-field feature flags. They ride along with a
// field value but are never interpreted by the pipeline itself;
// data-source-specific keys pass through uninterpreted.
type FieldFlags struct {
	IsPrimaryKey bool
	IsRequired   bool
	IsIndexed    bool
	IsHidden     bool
	IsMultiValue bool
	MVDelimiter  string
}

// FieldValue is one entry of a Document's field bag: a value plus its
// flags. The value is kept as a string; type coercion (numeric, date) is
// an external document-model concern the pipeline does not reimplement.
type FieldValue struct {
	Value string
	Flags FieldFlags
}

// Document is the unit crossing the pipeline. The full tree/relationship/
// schema model lives in an external collaborator; the pipeline
// only needs the flat parts: identity, typed envelope, and an opaque
// field bag.
type Document struct {
	NSDId        string
	Type         DocumentType
	Name         string
	Title        string
	ParentNSDId  string // child relationship reference, e.g. CSV row -> source file
	Fields       map[string]FieldValue
	SourcePath   string // file path or URL this document was extracted from
	ArrivalAt    int64  // unix millis, stamped by the Extractor on discovery
}

// NewDocument creates an empty Document ready for field population.
func NewDocument(nsdID string, docType DocumentType, name string) *Document {
	return &Document{
		NSDId:  nsdID,
		Type:   docType,
		Name:   name,
		Fields: make(map[string]FieldValue),
	}
}

// SetField sets or overwrites a field, with default (non-flagged) flags.
func (d *Document) SetField(key, value string) {
	d.Fields[key] = FieldValue{Value: value}
}

// SetFieldWithFlags sets a field carrying explicit feature flags.
func (d *Document) SetFieldWithFlags(key string, value string, flags FieldFlags) {
	d.Fields[key] = FieldValue{Value: value, Flags: flags}
}

// DeleteField removes a field if present; a no-op otherwise.
func (d *Document) DeleteField(key string) {
	delete(d.Fields, key)
}

// RenameField moves a field's value+flags to a new key, leaving the old
// key absent. A no-op if the source key does not exist.
func (d *Document) RenameField(from, to string) {
	v, ok := d.Fields[from]
	if !ok {
		return
	}
	delete(d.Fields, from)
	d.Fields[to] = v
}

// CopyBag duplicates every field under a new key, computed by prefix, so
// "bag_copy" transformer rules can run without the caller iterating the
// map themselves. Feature flags are preserved.
func (d *Document) CopyBag(prefix string) {
	copied := make(map[string]FieldValue, len(d.Fields))
	for k, v := range d.Fields {
		copied[prefix+k] = v
	}
	for k, v := range copied {
		d.Fields[k] = v
	}
}
