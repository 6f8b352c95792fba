// Package etag implements version-token handling for optimistic concurrency:
// ETag rendering, If-None-Match short-circuits and If-Match checks.
package etag

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/joao-fontenele/shopflow/internal/domain"
)

// Format renders a version as a strong entity tag.
func Format(version int) string {
	return `"` + strconv.Itoa(version) + `"`
}

// NotModified reports whether an If-None-Match header names the current version.
func NotModified(ifNoneMatch string, current int) bool {
	if strings.TrimSpace(ifNoneMatch) == "" {
		return false
	}
	want := strconv.Itoa(current)
	for _, tag := range strings.Split(ifNoneMatch, ",") {
		tag = strings.TrimSpace(tag)
		if tag == "*" || unquote(tag) == want {
			return true
		}
	}
	return false
}

// CheckIfMatch validates an If-Match header against the stored version and
// returns the version the entity will carry after the write.
//
// Older versions are rejected; equal or newer ones are accepted, so clients
// that re-read the same version concurrently are not penalised.
func CheckIfMatch(ifMatch string, stored int) (int, error) {
	if strings.TrimSpace(ifMatch) == "" {
		return 0, domain.ErrPreconditionRequired
	}
	version, err := Parse(ifMatch)
	if err != nil {
		return 0, err
	}
	if version < stored {
		return 0, fmt.Errorf("%w: got %d, stored %d", domain.ErrVersionConflict, version, stored)
	}
	return stored + 1, nil
}

// Parse extracts the integer version from a header value such as `"3"` or `W/"3"`.
func Parse(header string) (int, error) {
	v, err := strconv.Atoi(unquote(strings.TrimSpace(header)))
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a version", domain.ErrVersionConflict, header)
	}
	return v, nil
}

func unquote(tag string) string {
	tag = strings.TrimPrefix(tag, "W/")
	return strings.Trim(tag, `"`)
}
