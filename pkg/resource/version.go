package resource

import (
	"fmt"
	"strings"
)

const (
	// DefaultVersion is requested when the caller leaves the version blank.
	// The server answers with its latest representation.
	DefaultVersion = "application/json"

	// VersionTemplate expands an abbreviated version token such as "16" or
	// "v16.0.0" into the media type sent in the Accept header.
	VersionTemplate = "application/vnd.hedtech.integration.v%s+json"

	// DefaultContentType tags a reconciled notification whose response
	// carried no content restriction.
	DefaultContentType = "resource-representation"
)

// NormalizeVersion expands an abbreviated version token into a full media
// type. Values that already look like a media type are returned trimmed but
// otherwise unchanged. Blank input yields blank output.
//
//	NormalizeVersion("16")       // application/vnd.hedtech.integration.v16+json
//	NormalizeVersion("v16.0.0")  // application/vnd.hedtech.integration.v16.0.0+json
func NormalizeVersion(version string) string {
	v := strings.TrimSpace(version)
	if v == "" || strings.Contains(v, "/") {
		return v
	}
	if v[0] == 'v' || v[0] == 'V' {
		v = v[1:]
	}
	if v == "" {
		return ""
	}
	return fmt.Sprintf(VersionTemplate, v)
}

// SameVersion reports whether two version strings name the same
// representation once both are normalized.
func SameVersion(a, b string) bool {
	return NormalizeVersion(a) == NormalizeVersion(b)
}
