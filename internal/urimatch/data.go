// Package urimatch decides whether a candidate URI or filesystem path is
// a crawl start, should be followed, or must be ignored.
package urimatch

// Classification is the outcome of Matcher.Classify.
type Classification string

const (
	Start   Classification = "Start"
	Follow  Classification = "Follow"
	Ignore  Classification = "Ignore"
	Unknown Classification = "Unknown"
)

// Decision carries the classification plus which rule produced it, for
// logging and debugging.
type Decision struct {
	URI            string
	Classification Classification
	MatchedRule    string
}
