package frontier

import (
	"sync"

	"github.com/rohmanhakim/connector-etl/pkg/urlutil"
)

/*
Frontier Responsibilities
- Maintain BFS ordering
- Deduplicate URLs (after canonicalization)
- Track crawl depth
- Prevent infinite traversal
- Knows nothing about:
	- fetching
	- extraction
	- publishing

It is a data structure + policy module, not a pipeline executor. Scope
and ignore checks happen before Submit, and robots.txt is consulted by the
caller when a dequeued token is visited; the frontier MUST treat
every submitted candidate as already admitted semantically and only
enforces ordering, dedup, and the depth/page limits.
*/

// CrawlFrontier is the shared BFS work list for the web extractor's
// workers. Safe for concurrent Submit/Dequeue.
type CrawlFrontier struct {
	mu       sync.Mutex
	byDepth  map[int]*FIFOQueue[CrawlToken]
	visited  Set[string]
	maxDepth int // 0 means unlimited
	maxPages int // 0 means unlimited
}

// NewCrawlFrontier builds an empty frontier; call Init before use.
func NewCrawlFrontier() *CrawlFrontier {
	return &CrawlFrontier{
		byDepth: make(map[int]*FIFOQueue[CrawlToken]),
		visited: NewSet[string](),
	}
}

// Init sets the traversal limits. Zero means unlimited.
func (f *CrawlFrontier) Init(maxDepth, maxPages int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.maxDepth = maxDepth
	f.maxPages = maxPages
}

// Submit offers an admitted candidate. Duplicates (after URL
// canonicalization), candidates past the depth limit, and candidates
// past the page limit are silently dropped; the frontier is the sole
// enforcer of these limits.
func (f *CrawlFrontier) Submit(candidate CrawlAdmissionCandidate) {
	f.mu.Lock()
	defer f.mu.Unlock()

	depth := candidate.DiscoveryMetadata().Depth()
	if f.maxDepth > 0 && depth > f.maxDepth {
		return
	}
	if f.maxPages > 0 && f.visited.Size() >= f.maxPages {
		return
	}

	canonical := urlutil.Canonicalize(candidate.TargetURL())
	key := canonical.String()
	if f.visited.Contains(key) {
		return
	}
	f.visited.Add(key)

	q, ok := f.byDepth[depth]
	if !ok {
		q = NewFIFOQueue[CrawlToken]()
		f.byDepth[depth] = q
	}
	q.Enqueue(NewCrawlToken(candidate.TargetURL(), depth))
}

// Dequeue returns the next token in strict BFS order: every depth-d
// token is delivered before any depth-(d+1) token. ok is false when the
// frontier is currently empty.
func (f *CrawlFrontier) Dequeue() (CrawlToken, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for depth := 0; ; depth++ {
		q, ok := f.byDepth[depth]
		if ok && q.Size() > 0 {
			return q.Dequeue()
		}
		if depth > f.highestDepthLocked() {
			return CrawlToken{}, false
		}
	}
}

// IsDepthExhausted reports whether no pending token remains at depth.
func (f *CrawlFrontier) IsDepthExhausted(depth int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	q, ok := f.byDepth[depth]
	return !ok || q.Size() == 0
}

// CurrentMinDepth returns the shallowest depth with pending tokens, or
// -1 when the frontier is empty.
func (f *CrawlFrontier) CurrentMinDepth() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	for depth := 0; depth <= f.highestDepthLocked(); depth++ {
		if q, ok := f.byDepth[depth]; ok && q.Size() > 0 {
			return depth
		}
	}
	return -1
}

// VisitedCount reports how many distinct canonical URLs the frontier has
// accepted so far (pending or already dequeued).
func (f *CrawlFrontier) VisitedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.visited.Size()
}

func (f *CrawlFrontier) highestDepthLocked() int {
	highest := 0
	for depth := range f.byDepth {
		if depth > highest {
			highest = depth
		}
	}
	return highest
}
