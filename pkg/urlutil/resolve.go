package urlutil

import (
	"net/url"
	"strings"
)

// Resolve resolves ref against base, returning the canonicalized absolute
// URL. Relative refs (href="../foo", href="/bar") are the common case when
// walking links out of a fetched page.
func Resolve(base url.URL, ref string) (url.URL, error) {
	parsedRef, err := url.Parse(ref)
	if err != nil {
		return url.URL{}, err
	}
	resolved := base.ResolveReference(parsedRef)
	return Canonicalize(*resolved), nil
}

// FilterByHost reports whether candidate shares a host with base, ignoring
// case. The web extractor uses this to decide whether a discovered link
// stays within the same site before it is even checked against the start
// and follow prefixes.
func FilterByHost(base url.URL, candidate url.URL) bool {
	return strings.EqualFold(base.Hostname(), candidate.Hostname())
}

// NormalizeURIOrPath prepares a raw URI-matcher pattern for prefix
// comparison: it strips a leading single-letter drive designator (as in
// "C:\docs\site") and rewrites backslashes to forward slashes, so Windows
// style configuration values compare correctly against URL paths produced
// by this package.
func NormalizeURIOrPath(raw string) string {
	s := raw
	if len(s) >= 2 && s[1] == ':' && isASCIILetter(s[0]) {
		s = s[2:]
	}
	return strings.ReplaceAll(s, "\\", "/")
}

func isASCIILetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
