package confutil

import (
	"regexp"

	"github.com/google/uuid"
)

// uuidLikeRegexp matches the canonical UUID textual form; used to reject
// NodeGroup names that would be confused with UUIDs.
var uuidLikeRegexp = regexp.MustCompile(
	`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// NewUUID returns a random RFC 4122 version-4 UUID string.
func NewUUID() string {
	return uuid.New().String()
}

// LooksLikeUUID reports whether s has the canonical UUID textual shape.
func LooksLikeUUID(s string) bool {
	return uuidLikeRegexp.MatchString(s)
}
