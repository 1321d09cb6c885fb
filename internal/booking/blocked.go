package booking

import "strings"

// A booking's specialRequests field doubles as the carrier for internal
// blocked-dates records (maintenance, owner stays). Two spellings exist in
// the wild; only the canonical one is ever written.
const (
	// BlockedDatesPrefix is the canonical marker, always used on emission.
	BlockedDatesPrefix = "[SYSTEM_BLOCKED_DATES] "

	// legacyBlockedDatesToken is recognized for backward compatibility with
	// records written before the canonical form existed. Never emitted.
	legacyBlockedDatesToken = "SYSTEM:BLOCKED_DATES"
)

// IsBlockedDatesMarker reports whether specialRequests carries a blocked-dates
// marker, in either the canonical or the legacy form.
func IsBlockedDatesMarker(specialRequests string) bool {
	return strings.HasPrefix(specialRequests, BlockedDatesPrefix) ||
		strings.HasPrefix(specialRequests, legacyBlockedDatesToken)
}

// BlockedDatesReason extracts the free-text reason from a blocked-dates
// marker. The second return is false when no marker is present.
func BlockedDatesReason(specialRequests string) (string, bool) {
	if rest, ok := strings.CutPrefix(specialRequests, BlockedDatesPrefix); ok {
		return strings.TrimSpace(rest), true
	}
	if rest, ok := strings.CutPrefix(specialRequests, legacyBlockedDatesToken); ok {
		return strings.TrimSpace(rest), true
	}
	return "", false
}

// BlockedDatesMarker renders the canonical marker for a reason.
func BlockedDatesMarker(reason string) string {
	return BlockedDatesPrefix + reason
}
