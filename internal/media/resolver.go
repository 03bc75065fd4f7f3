// Package media recognizes Instagram links and downloads the media behind
// them through the external resolution API.
package media

import "regexp"

var contentURLPattern = regexp.MustCompile(`https?://(?:www\.)?instagram\.com/(p|reels?|tv)/([A-Za-z0-9_-]+)/?`)

// ContentRef identifies one Instagram post, reel or video.
type ContentRef struct {
	// Kind is the path segment: "p", "reel", "reels" or "tv".
	Kind string
	// Code is the canonical shortcode.
	Code string
	// URL is the full matched link.
	URL string
}

// ExtractRef returns the first supported content link in text. No match is
// reported with ok=false; it is not an error.
func ExtractRef(text string) (ContentRef, bool) {
	m := contentURLPattern.FindStringSubmatch(text)
	if m == nil {
		return ContentRef{}, false
	}
	return ContentRef{Kind: m[1], Code: m[2], URL: m[0]}, true
}
