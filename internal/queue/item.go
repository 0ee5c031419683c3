package queue

import (
	"strconv"
	"strings"
)

// Sentinel values carry no doc id. They are the only three QueueItem
// strings a consumer may receive without a leading docId segment.
const (
	SentinelCrawlStart  = "NSD-CrawlStart"
	SentinelCrawlFinish = "NSD-CrawlFinish"
	SentinelCrawlAbort  = "NSD-CrawlAbort"
)

// PhaseTime is one `phase:millis` segment of a QueueItem.
type PhaseTime struct {
	Phase  string
	Millis int64
}

// IsSentinel reports whether item is one of the three reserved sentinel
// strings.
func IsSentinel(item string) bool {
	switch item {
	case SentinelCrawlStart, SentinelCrawlFinish, SentinelCrawlAbort:
		return true
	default:
		return false
	}
}

// Encode produces `docId '|' phase:millis ( '|' phase:millis )*`, with
// `|` inside docId backslash-escaped.
func Encode(docID string, phases []PhaseTime) string {
	var b strings.Builder
	b.WriteString(escape(docID))
	for _, p := range phases {
		b.WriteByte('|')
		b.WriteString(p.Phase)
		b.WriteByte(':')
		b.WriteString(strconv.FormatInt(p.Millis, 10))
	}
	return b.String()
}

// AppendPhase returns item with one more `|phase:millis` segment
// appended — the "metric stamp" step every phase performs before handing
// an item to the next queue.
func AppendPhase(item string, phase string, millis int64) string {
	var b strings.Builder
	b.WriteString(item)
	b.WriteByte('|')
	b.WriteString(phase)
	b.WriteByte(':')
	b.WriteString(strconv.FormatInt(millis, 10))
	return b.String()
}

// Decode splits item into its doc id and ordered phase/time pairs. It
// does not distinguish sentinels; callers must check IsSentinel first.
func Decode(item string) (docID string, phases []PhaseTime) {
	segments := splitUnescaped(item)
	if len(segments) == 0 {
		return "", nil
	}
	docID = unescape(segments[0])
	for _, seg := range segments[1:] {
		idx := strings.IndexByte(seg, ':')
		if idx < 0 {
			continue
		}
		ms, _ := strconv.ParseInt(seg[idx+1:], 10, 64)
		phases = append(phases, PhaseTime{Phase: seg[:idx], Millis: ms})
	}
	return docID, phases
}

// splitUnescaped splits on '|' that is not preceded by an odd run of
// backslashes (i.e. not escaped).
func splitUnescaped(s string) []string {
	var segments []string
	var cur strings.Builder
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			cur.WriteByte(c)
			escaped = false
		case c == '\\':
			cur.WriteByte(c)
			escaped = true
		case c == '|':
			segments = append(segments, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	segments = append(segments, cur.String())
	return segments
}

func escape(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}

func unescape(s string) string {
	return strings.ReplaceAll(s, "\\|", "|")
}

