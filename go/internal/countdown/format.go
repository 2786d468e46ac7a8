package countdown

import (
	"fmt"
	"strings"
	"time"
)

// Display texts shared by the server-rendered quest list and the CLI client.
const (
	TextExpired      = "Expired!"
	TextNoExpiry     = "No expiry date"
	TextExpiringSoon = "Expiring soon!"
)

// FormatRemaining renders a non-negative remaining duration as a compound
// unit string ("1d 4h 02m 31s" style without padding): leading zero-valued
// units are suppressed, but once a unit is emitted every smaller unit is
// shown. A negative duration renders as "Expired!". If every unit is zero
// (sub-second remainder) the string would be empty, so "Expiring soon!" is
// returned instead.
func FormatRemaining(remaining time.Duration) string {
	if remaining < 0 {
		return TextExpired
	}

	total := int64(remaining / time.Second)
	days := total / 86400
	hours := (total % 86400) / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60

	var b strings.Builder
	started := false
	if days > 0 {
		fmt.Fprintf(&b, "%dd ", days)
		started = true
	}
	if started || hours > 0 {
		fmt.Fprintf(&b, "%dh ", hours)
		started = true
	}
	if started || minutes > 0 {
		fmt.Fprintf(&b, "%dm ", minutes)
		started = true
	}
	if started || seconds > 0 {
		fmt.Fprintf(&b, "%ds", seconds)
		started = true
	}

	if !started {
		return TextExpiringSoon
	}
	return strings.TrimSpace(b.String())
}
