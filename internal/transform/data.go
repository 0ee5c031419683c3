package transform

// Rules are the per-run transformation rules applied to every document, in
// order: field mapping (rename), field deletion, bag copy. They are loaded
// once per run and treated as immutable, like the URI rule files.
type Rules struct {
	// FieldMap renames fields: key is the current field name, value the
	// new one. A rename onto an existing field overwrites it.
	FieldMap map[string]string

	// DeleteFields lists field names removed after mapping has run.
	DeleteFields []string

	// BagCopyPrefix, when non-empty, duplicates every field under
	// prefix+name, preserving feature flags (the bag_copy transformer).
	BagCopyPrefix string
}

// ArchiveParam enables the optional Markdown archive: each successfully
// transformed HTML document is also normalized and written as a Markdown
// artifact under Dir, the same layout the standalone crawler produced.
type ArchiveParam struct {
	Enabled       bool
	Dir           string
	ResolveAssets bool
	AppVersion    string
}
