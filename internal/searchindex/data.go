package searchindex

// FieldSchema describes one target-index field. It is consumed read-only:
// the pipeline renders schema fragments from it but never mutates it.
type FieldSchema struct {
	Name        string
	Text        bool
	Tokenized   bool
	Stored      bool
	Indexed     bool
	MultiValued bool
}
