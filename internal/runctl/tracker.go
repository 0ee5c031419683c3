package runctl

import (
	"encoding/xml"
	"os"
	"time"

	"github.com/rohmanhakim/connector-etl/pkg/fileutil"
)

const trackerVersion = "1"

// ServiceTracker is the persisted pair of last-service timestamps
// governing incremental-vs-full scheduling. It is written only by the
// run controller, during Unlocking, and only when the run earned an
// advance.
type ServiceTracker struct {
	XMLName                  xml.Name  `xml:"service-tracker"`
	Version                  string    `xml:"version,attr"`
	LastFullServiceTs        time.Time `xml:"lastFullServiceTs"`
	LastIncrementalServiceTs time.Time `xml:"lastIncrementalServiceTs"`
}

// LoadTracker reads the tracker snapshot from path. Any failure yields a
// zero tracker: a missing or unreadable snapshot just means "first run".
func LoadTracker(path string) ServiceTracker {
	raw, err := os.ReadFile(path)
	if err != nil {
		return ServiceTracker{Version: trackerVersion}
	}
	var tracker ServiceTracker
	if err := xml.Unmarshal(raw, &tracker); err != nil {
		return ServiceTracker{Version: trackerVersion}
	}
	if tracker.Version == "" {
		tracker.Version = trackerVersion
	}
	return tracker
}

// Save persists the tracker with write-then-rename so readers never see a
// partial snapshot.
func (t ServiceTracker) Save(path string) error {
	t.Version = trackerVersion
	raw, err := xml.MarshalIndent(t, "", "  ")
	if err != nil {
		return err
	}
	return fileutil.WriteAtomic(path, append([]byte(xml.Header), raw...), 0644)
}

// Advance returns a copy with the timestamps a completed run of
// crawlType earns: a full run advances both (it covered everything an
// incremental would), an incremental run advances only its own.
func (t ServiceTracker) Advance(full bool, now time.Time) ServiceTracker {
	next := t
	if full {
		next.LastFullServiceTs = now
		next.LastIncrementalServiceTs = now
		return next
	}
	next.LastIncrementalServiceTs = now
	return next
}
