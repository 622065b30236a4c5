// Package imageref classifies image references handed to the resolver.
package imageref

import (
	"net/url"
	"regexp"
	"strings"
)

// Kind is the category of an image reference
type Kind int

const (
	// Generic is an opaque file identifier that needs a backend lookup
	Generic Kind = iota
	// Passthrough is already a displayable URL or data URI
	Passthrough
	// Legacy is an old synthetic identifier served by the static-file endpoint
	Legacy
)

// String returns the label used in logs and metrics
func (k Kind) String() string {
	switch k {
	case Passthrough:
		return "passthrough"
	case Legacy:
		return "legacy"
	default:
		return "generic"
	}
}

var (
	passthroughPattern = regexp.MustCompile(`(?i)^(data:|https?://)`)
	legacyPattern      = regexp.MustCompile(`^img_\d+$`)
)

// Classify determines the kind of a reference.
// Order: passthrough → legacy → generic.
func Classify(ref string) Kind {
	if IsPassthrough(ref) {
		return Passthrough
	}
	if IsLegacy(ref) {
		return Legacy
	}
	return Generic
}

// IsPassthrough reports whether ref is an absolute http(s) URL or a data URI
func IsPassthrough(ref string) bool {
	return passthroughPattern.MatchString(ref)
}

// IsLegacy reports whether ref matches the legacy synthetic pattern (e.g. "img_42")
func IsLegacy(ref string) bool {
	return legacyPattern.MatchString(ref)
}

// LegacyURL builds the static-file URL for a legacy identifier.
// Returns "" when no base URL is configured.
func LegacyURL(baseURL, ref string) string {
	if baseURL == "" {
		return ""
	}
	return strings.TrimSuffix(baseURL, "/") + "/static/" + url.PathEscape(ref)
}
