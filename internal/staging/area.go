package staging

import (
	"encoding/json"
	"errors"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/rohmanhakim/connector-etl/internal/pipeline"
	"github.com/rohmanhakim/connector-etl/pkg/failure"
)

/*
Responsibilities

- Hold extracted document bodies between the Extract and Transform phases,
  keyed by NSD-Id
- Writes come from the Extractor only; reads are read-then-delete and come
  from the Transformer only
- Survive nothing: the area is per-run scratch space, wiped on open

The Publisher never touches the staging area.
*/

// Area is the per-run staging store backed by an embedded Badger database
// under the run's work directory.
type Area struct {
	db *badger.DB
}

// Open creates (or reopens and wipes) the staging database at dir.
func Open(dir string) (*Area, failure.ClassifiedError) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, &StagingError{Cause: ErrCauseOpenFailed, Message: err.Error()}
	}
	if err := db.DropAll(); err != nil {
		db.Close()
		return nil, &StagingError{Cause: ErrCauseOpenFailed, Message: err.Error()}
	}
	return &Area{db: db}, nil
}

// Close releases the underlying database. Safe to call once after the run
// has flushed.
func (a *Area) Close() error {
	return a.db.Close()
}

// Put stages doc under its NSD-Id, overwriting any previous body with the
// same id (idempotent on NSD-Id, same as the publisher's upsert contract).
func (a *Area) Put(doc *pipeline.Document) failure.ClassifiedError {
	raw, err := json.Marshal(doc)
	if err != nil {
		return &StagingError{Cause: ErrCauseWriteFailed, DocID: doc.NSDId, Message: err.Error()}
	}
	err = a.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(doc.NSDId), raw)
	})
	if err != nil {
		return &StagingError{Cause: ErrCauseWriteFailed, DocID: doc.NSDId, Message: err.Error()}
	}
	return nil
}

// Take returns the staged document for nsdID and deletes it in the same
// transaction, so two Transform workers can never materialize the same id.
func (a *Area) Take(nsdID string) (*pipeline.Document, failure.ClassifiedError) {
	var raw []byte
	err := a.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(nsdID))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		if err != nil {
			return err
		}
		return txn.Delete([]byte(nsdID))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, &StagingError{Cause: ErrCauseNotStaged, DocID: nsdID, Message: "no staged body for id"}
	}
	if err != nil {
		return nil, &StagingError{Cause: ErrCauseReadFailed, DocID: nsdID, Message: err.Error()}
	}

	var doc pipeline.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, &StagingError{Cause: ErrCauseCorrupt, DocID: nsdID, Message: err.Error()}
	}
	return &doc, nil
}

// Len reports how many documents are currently staged. Used by tests; no
// production code path calls it.
func (a *Area) Len() (int, failure.ClassifiedError) {
	count := 0
	err := a.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, &StagingError{Cause: ErrCauseReadFailed, Message: err.Error()}
	}
	return count, nil
}
